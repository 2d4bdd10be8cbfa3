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

// Hit is one matched document in rank order.
type Hit struct {
	DocNum   uint64
	Score    float64
	SortKeys []interface{}
	// Terms holds the query terms matching this hit, populated only when
	// the search requested them.
	Terms []Term
}

// Results is the outcome of one search: the ranked hits, match-count
// information, and any facet groupings.
type Results struct {
	searcher *Searcher

	hits []Hit

	// matched is how many documents the collector saw; when quality
	// pruning skipped blocks it is only a lower bound.
	matched    uint64
	exactTotal bool

	groups map[string]map[interface{}]interface{}

	// collapsed is how many documents the collapse step removed.
	collapsed int
}

// Len returns the number of hits.
func (r *Results) Len() int { return len(r.hits) }

// Hits returns the ranked hits. Callers must not mutate the slice.
func (r *Results) Hits() []Hit { return r.hits }

// At returns hit i.
func (r *Results) At(i int) Hit { return r.hits[i] }

// DocNums returns the hit docnums in rank order.
func (r *Results) DocNums() []uint64 {
	nums := make([]uint64, len(r.hits))
	for i := range r.hits {
		nums[i] = r.hits[i].DocNum
	}
	return nums
}

// ScoredLength returns how many hits were actually collected and ranked
// (at most the search limit).
func (r *Results) ScoredLength() int { return len(r.hits) }

// Total returns the number of matching documents. When exact is false —
// quality pruning terminated scoring early — the count is a lower bound.
func (r *Results) Total() (total uint64, exact bool) {
	return r.matched, r.exactTotal
}

// Groups returns the facet grouping collected under name: a map from
// facet key to the group's accumulated value (doc list, count or best
// doc, per the facet map in use).
func (r *Results) Groups(name string) map[interface{}]interface{} {
	return r.groups[name]
}

// Collapsed returns how many documents the collapse step removed.
func (r *Results) Collapsed() int { return r.collapsed }

// Stored returns hit i's stored fields.
func (r *Results) Stored(i int) (map[string]interface{}, error) {
	return r.searcher.Reader().StoredFields(r.hits[i].DocNum)
}
