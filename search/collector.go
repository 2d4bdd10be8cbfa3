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

package search

import (
	"container/heap"
	"sort"
)

// Collectors consume the driver's stream of hits and keep the ones worth
// ranking. The driver feeds them every matched document; a collector's
// minQuality feeds block-max pruning back into the matcher tree.
type collector interface {
	collect(hit Hit)
	minQuality() float64
	results() []Hit
}

// topKCollector keeps the K best-scoring hits in a min-heap; once full,
// its floor score drives SkipToQuality.
type topKCollector struct {
	k    int
	heap scoreHeap
}

func newTopKCollector(k int) *topKCollector {
	return &topKCollector{k: k}
}

func (c *topKCollector) collect(hit Hit) {
	if len(c.heap) < c.k {
		heap.Push(&c.heap, hit)
		return
	}
	if scoreBetter(hit, c.heap[0]) {
		c.heap[0] = hit
		heap.Fix(&c.heap, 0)
	}
}

func (c *topKCollector) minQuality() float64 {
	if len(c.heap) < c.k {
		return 0
	}
	return c.heap[0].Score
}

func (c *topKCollector) results() []Hit {
	hits := append([]Hit(nil), c.heap...)
	sort.Slice(hits, func(i, j int) bool {
		return scoreBetter(hits[i], hits[j])
	})
	return hits
}

// scoreBetter ranks by descending score, ties broken by ascending
// docnum.
func scoreBetter(a, b Hit) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	return a.DocNum < b.DocNum
}

// scoreHeap is a min-heap: the worst kept hit sits on top.
type scoreHeap []Hit

func (h scoreHeap) Len() int            { return len(h) }
func (h scoreHeap) Less(i, j int) bool  { return scoreBetter(h[j], h[i]) }
func (h scoreHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *scoreHeap) Push(x interface{}) { *h = append(*h, x.(Hit)) }
func (h *scoreHeap) Pop() interface{} {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

// sortedCollector keeps hits ordered by facet sort keys (already attached
// to the Hit by the driver). With a positive limit only the best K are
// retained. Sort-key pruning has no block bounds, so minQuality stays
// zero.
type sortedCollector struct {
	limit    int
	reverses []bool
	heap     keyHeap
	all      []Hit
}

func newSortedCollector(limit int, reverses []bool) *sortedCollector {
	c := &sortedCollector{limit: limit, reverses: reverses}
	c.heap.c = c
	return c
}

// keyBetter ranks by the key vector, per-key reversed as configured,
// ties broken by ascending docnum.
func (c *sortedCollector) keyBetter(a, b Hit) bool {
	for i := range a.SortKeys {
		cmp := CompareKeys(a.SortKeys[i], b.SortKeys[i])
		if i < len(c.reverses) && c.reverses[i] {
			cmp = -cmp
		}
		if cmp != 0 {
			return cmp < 0
		}
	}
	return a.DocNum < b.DocNum
}

func (c *sortedCollector) collect(hit Hit) {
	if c.limit <= 0 {
		c.all = append(c.all, hit)
		return
	}
	if len(c.heap.hits) < c.limit {
		heap.Push(&c.heap, hit)
		return
	}
	if c.keyBetter(hit, c.heap.hits[0]) {
		c.heap.hits[0] = hit
		heap.Fix(&c.heap, 0)
	}
}

func (c *sortedCollector) minQuality() float64 { return 0 }

func (c *sortedCollector) results() []Hit {
	hits := c.all
	if c.limit > 0 {
		hits = append([]Hit(nil), c.heap.hits...)
	}
	sort.Slice(hits, func(i, j int) bool {
		return c.keyBetter(hits[i], hits[j])
	})
	return hits
}

type keyHeap struct {
	c    *sortedCollector
	hits []Hit
}

func (h keyHeap) Len() int           { return len(h.hits) }
func (h keyHeap) Less(i, j int) bool { return h.c.keyBetter(h.hits[j], h.hits[i]) }
func (h keyHeap) Swap(i, j int)      { h.hits[i], h.hits[j] = h.hits[j], h.hits[i] }
func (h *keyHeap) Push(x interface{}) {
	h.hits = append(h.hits, x.(Hit))
}
func (h *keyHeap) Pop() interface{} {
	old := h.hits
	n := len(old)
	x := old[n-1]
	h.hits = old[:n-1]
	return x
}

// unlimitedCollector keeps everything in docnum order.
type unlimitedCollector struct {
	hits []Hit
}

func (c *unlimitedCollector) collect(hit Hit)      { c.hits = append(c.hits, hit) }
func (c *unlimitedCollector) minQuality() float64  { return 0 }
func (c *unlimitedCollector) results() []Hit       { return c.hits }
