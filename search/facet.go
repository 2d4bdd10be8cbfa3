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
	"fmt"
	"sort"
	"strings"

	"github.com/RoaringBitmap/roaring/v2/roaring64"

	"github.com/quillindex/quill/index"
	"github.com/quillindex/quill/schema"
)

// A Facet derives one or more grouping/sorting keys per document. Keys
// are small comparable values: int64, float64, string, bool, or nil for
// documents outside the facet.
type Facet interface {
	Categorizer(s *Searcher) (Categorizer, error)
}

// Categorizer is a Facet bound to a searcher's snapshot.
type Categorizer interface {
	Keys(id uint64, score float64) []interface{}
}

// CompareKeys orders two facet keys. nil sorts before everything; mixed
// key types order by a fixed type rank so sorts stay total.
func CompareKeys(a, b interface{}) int {
	ra, rb := keyRank(a), keyRank(b)
	if ra != rb {
		return ra - rb
	}
	switch av := a.(type) {
	case nil:
		return 0
	case bool:
		bv := b.(bool)
		switch {
		case av == bv:
			return 0
		case !av:
			return -1
		default:
			return 1
		}
	case int64:
		bv := b.(int64)
		switch {
		case av < bv:
			return -1
		case av > bv:
			return 1
		default:
			return 0
		}
	case float64:
		bv := b.(float64)
		switch {
		case av < bv:
			return -1
		case av > bv:
			return 1
		default:
			return 0
		}
	case string:
		return strings.Compare(av, b.(string))
	}
	return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
}

func keyRank(k interface{}) int {
	switch k.(type) {
	case nil:
		return 0
	case bool:
		return 1
	case int64:
		return 2
	case float64:
		return 3
	case string:
		return 4
	default:
		return 5
	}
}

// groupKey normalizes a facet key for use as a map key.
func groupKey(k interface{}) interface{} {
	switch v := k.(type) {
	case []byte:
		return string(v)
	default:
		return k
	}
}

// FieldFacet keys documents by a sortable field's column value.
type FieldFacet struct {
	Field string
}

func (f *FieldFacet) Categorizer(s *Searcher) (Categorizer, error) {
	def := s.Reader().Schema().Field(f.Field)
	if def == nil {
		return nil, fmt.Errorf("%w: no such field %q", ErrQuery, f.Field)
	}
	if def.Column == schema.NoColumn {
		return nil, fmt.Errorf("%w: field %q is not sortable", ErrQuery, f.Field)
	}
	return &fieldCategorizer{r: s.Reader(), field: f.Field, typ: def.Column}, nil
}

type fieldCategorizer struct {
	r     *index.Reader
	field string
	typ   schema.ColumnType
}

func (c *fieldCategorizer) Keys(id uint64, _ float64) []interface{} {
	cv, err := c.r.ColumnValue(id, c.field)
	if err != nil || !cv.Present {
		return []interface{}{nil}
	}
	switch c.typ {
	case schema.NumericColumn:
		return []interface{}{cv.Numeric}
	case schema.BitColumn:
		return []interface{}{cv.Bit}
	default:
		return []interface{}{string(cv.Bytes)}
	}
}

// ScoreFacet keys documents by their score.
type ScoreFacet struct{}

func (ScoreFacet) Categorizer(*Searcher) (Categorizer, error) {
	return scoreCategorizer{}, nil
}

type scoreCategorizer struct{}

func (scoreCategorizer) Keys(_ uint64, score float64) []interface{} {
	// negated so that ascending key order is best-first, matching the
	// other facets
	return []interface{}{-score}
}

// FunctionFacet keys documents through a user callback.
type FunctionFacet struct {
	Fn func(r *index.Reader, id uint64) interface{}
}

func (f *FunctionFacet) Categorizer(s *Searcher) (Categorizer, error) {
	return &functionCategorizer{r: s.Reader(), fn: f.Fn}, nil
}

type functionCategorizer struct {
	r  *index.Reader
	fn func(r *index.Reader, id uint64) interface{}
}

func (c *functionCategorizer) Keys(id uint64, _ float64) []interface{} {
	return []interface{}{c.fn(c.r, id)}
}

// QueryFacet keys documents by which of the named queries match them; a
// document may land in several buckets.
type QueryFacet struct {
	Queries map[string]Query
}

func (f *QueryFacet) Categorizer(s *Searcher) (Categorizer, error) {
	c := &queryCategorizer{}
	names := make([]string, 0, len(f.Queries))
	for name := range f.Queries {
		names = append(names, name)
	}
	// deterministic bucket order
	sort.Strings(names)
	for _, name := range names {
		bm, err := s.DocsForQuery(f.Queries[name])
		if err != nil {
			return nil, err
		}
		c.names = append(c.names, name)
		c.sets = append(c.sets, bm)
	}
	return c, nil
}

type queryCategorizer struct {
	names []string
	sets  []*roaring64.Bitmap
}

func (c *queryCategorizer) Keys(id uint64, _ float64) []interface{} {
	var keys []interface{}
	for i, bm := range c.sets {
		if bm.Contains(id) {
			keys = append(keys, c.names[i])
		}
	}
	if keys == nil {
		keys = []interface{}{nil}
	}
	return keys
}

// RangeFacet buckets a numeric field into [Start+k·Gap, Start+(k+1)·Gap)
// intervals keyed by the bucket's lower bound.
type RangeFacet struct {
	Field      string
	Start, End int64
	Gap        int64
}

func (f *RangeFacet) Categorizer(s *Searcher) (Categorizer, error) {
	if f.Gap <= 0 {
		return nil, fmt.Errorf("%w: range facet gap must be positive", ErrQuery)
	}
	def := s.Reader().Schema().Field(f.Field)
	if def == nil || def.Column != schema.NumericColumn {
		return nil, fmt.Errorf("%w: range facet needs a numeric column on %q", ErrQuery, f.Field)
	}
	return &rangeCategorizer{r: s.Reader(), f: f}, nil
}

type rangeCategorizer struct {
	r *index.Reader
	f *RangeFacet
}

func (c *rangeCategorizer) Keys(id uint64, _ float64) []interface{} {
	cv, err := c.r.ColumnValue(id, c.f.Field)
	if err != nil || !cv.Present {
		return []interface{}{nil}
	}
	v := cv.Numeric
	if v < c.f.Start || v >= c.f.End {
		return []interface{}{nil}
	}
	bucket := c.f.Start + ((v-c.f.Start)/c.f.Gap)*c.f.Gap
	return []interface{}{bucket}
}

// MultiFacet composes facets into a lexicographic key vector, mainly for
// multi-key sorting.
type MultiFacet struct {
	Facets []Facet
}

func (f *MultiFacet) Categorizer(s *Searcher) (Categorizer, error) {
	c := &multiCategorizer{}
	for _, sub := range f.Facets {
		cat, err := sub.Categorizer(s)
		if err != nil {
			return nil, err
		}
		c.cats = append(c.cats, cat)
	}
	return c, nil
}

type multiCategorizer struct {
	cats []Categorizer
}

func (c *multiCategorizer) Keys(id uint64, score float64) []interface{} {
	parts := make([]string, len(c.cats))
	for i, cat := range c.cats {
		parts[i] = fmt.Sprint(cat.Keys(id, score)[0])
	}
	return []interface{}{strings.Join(parts, "\x1f")}
}

// FacetMap decides how a group accumulates its documents.
type FacetMap interface {
	Add(id uint64, score float64)
	Value() interface{}
}

// FacetMapFactory builds one FacetMap per distinct key.
type FacetMapFactory func() FacetMap

// OrderedList keeps every docnum in collection order.
func OrderedList() FacetMap { return &orderedList{} }

type orderedList struct {
	docs []uint64
}

func (l *orderedList) Add(id uint64, _ float64) { l.docs = append(l.docs, id) }
func (l *orderedList) Value() interface{}       { return l.docs }

// Count keeps only how many documents landed in the group.
func Count() FacetMap { return &countMap{} }

type countMap struct {
	n int
}

func (c *countMap) Add(uint64, float64) { c.n++ }
func (c *countMap) Value() interface{}  { return c.n }

// Best keeps the single highest-scoring docnum.
func Best() FacetMap { return &bestMap{doc: ^uint64(0)} }

type bestMap struct {
	doc   uint64
	score float64
}

func (b *bestMap) Add(id uint64, score float64) {
	if b.doc == ^uint64(0) || score > b.score {
		b.doc, b.score = id, score
	}
}

func (b *bestMap) Value() interface{} { return b.doc }
