//  Copyright (c) 2025 The Quill Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// 		http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package index

import (
	"math"
	"sort"
)

// MergePolicy decides, at commit time, which segment groups to merge.
// Merges returns groups of indexes into the given record list; groups must
// be disjoint.
type MergePolicy interface {
	Merges(records []SegmentRecord) [][]int
}

// TieredMergePolicy is a logarithmic strategy: segments are binned into
// size tiers, each tier tolerates PerTier segments, and overflowing the
// budget merges up to MaxAtOnce of the smallest eligible segments.
// Segment sizes are prorated by their live fraction, with DeletionBoost
// shrinking deletion-heavy segments further so they merge (and compact)
// sooner.
type TieredMergePolicy struct {
	MaxAtOnce        int
	PerTier          int
	SegmentSizeFloor uint64
	MaxMergedSize    uint64
	DeletionBoost    float64
}

// NewTieredMergePolicy returns the default policy.
func NewTieredMergePolicy() *TieredMergePolicy {
	return &TieredMergePolicy{
		MaxAtOnce:        10,
		PerTier:          10,
		SegmentSizeFloor: 2 * 1024 * 1024,
		MaxMergedSize:    5 * 1024 * 1024 * 1024,
		DeletionBoost:    2.0,
	}
}

func (p *TieredMergePolicy) proratedSize(rec *SegmentRecord) uint64 {
	if rec.DocCount == 0 {
		return rec.ByteSize
	}
	liveRatio := float64(rec.LiveCount()) / float64(rec.DocCount)
	size := float64(rec.ByteSize) * liveRatio
	if liveRatio < 1 && p.DeletionBoost > 1 {
		size /= p.DeletionBoost
	}
	return uint64(size)
}

func (p *TieredMergePolicy) floored(size uint64) uint64 {
	if size < p.SegmentSizeFloor {
		return p.SegmentSizeFloor
	}
	return size
}

// Merges implements MergePolicy.
func (p *TieredMergePolicy) Merges(records []SegmentRecord) [][]int {
	type sized struct {
		idx  int
		size uint64
	}
	var eligible []sized
	var totalFloored uint64
	for i := range records {
		size := p.proratedSize(&records[i])
		if size >= p.MaxMergedSize/2 {
			continue
		}
		eligible = append(eligible, sized{idx: i, size: size})
		totalFloored += p.floored(size)
	}
	if len(eligible) <= 1 {
		return nil
	}

	// how many segments the tier budget tolerates
	allowed := 0
	levelSize := p.SegmentSizeFloor
	remaining := totalFloored
	for remaining > 0 {
		count := float64(remaining) / float64(levelSize)
		if count < float64(p.PerTier) {
			allowed += int(math.Ceil(count))
			break
		}
		allowed += p.PerTier
		remaining -= uint64(p.PerTier) * levelSize
		levelSize *= 10
	}
	if len(eligible) <= allowed {
		return nil
	}

	// merge the smallest segments: sort largest first and take the group
	// from the tail; the group is put back in record order below so the
	// output order is deterministic
	sort.Slice(eligible, func(i, j int) bool {
		if eligible[i].size != eligible[j].size {
			return eligible[i].size > eligible[j].size
		}
		return eligible[i].idx < eligible[j].idx
	})

	group := make([]int, 0, p.MaxAtOnce)
	var groupSize uint64
	for i := len(eligible) - 1; i >= 0 && len(group) < p.MaxAtOnce; i-- {
		if groupSize+eligible[i].size > p.MaxMergedSize {
			break
		}
		group = append(group, eligible[i].idx)
		groupSize += eligible[i].size
	}
	if len(group) < 2 {
		return nil
	}
	sort.Ints(group)
	return [][]int{group}
}

// optimizePolicy merges everything into a single segment.
type optimizePolicy struct{}

func (optimizePolicy) Merges(records []SegmentRecord) [][]int {
	if len(records) < 2 {
		return nil
	}
	group := make([]int, len(records))
	for i := range group {
		group[i] = i
	}
	return [][]int{group}
}

// noMergePolicy never merges.
type noMergePolicy struct{}

func (noMergePolicy) Merges([]SegmentRecord) [][]int { return nil }
