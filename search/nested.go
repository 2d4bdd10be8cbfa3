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
)

// Nested queries rely on the writer's Group contract: a parent and its
// children occupy contiguous docnums inside one segment, parent first.
// The parent set is computed at search time from the parents query, and
// each child resolves to the nearest prior parent docnum.

// NestedParentQuery matches the parents whose children match Child,
// scoring each parent by the sum of its matching children.
type NestedParentQuery struct {
	Parents Query
	Child   Query
}

func (q *NestedParentQuery) String() string {
	return fmt.Sprintf("NestedParent(%s, %s)", q.Parents, q.Child)
}

func (q *NestedParentQuery) Normalize() Query {
	parents := q.Parents.Normalize()
	child := q.Child.Normalize()
	if isNull(parents) || isNull(child) {
		return NullQuery{}
	}
	return &NestedParentQuery{Parents: parents, Child: child}
}

func (q *NestedParentQuery) Matcher(s *Searcher) (Matcher, error) {
	parents, err := parentArray(s, q.Parents)
	if err != nil {
		return nil, err
	}
	if len(parents) == 0 {
		return NullMatcher(), nil
	}
	child, err := q.Child.Matcher(s)
	if err != nil {
		return nil, err
	}
	m := &nestedParentMatcher{parents: parents, child: child}
	m.advance()
	return m, nil
}

func parentArray(s *Searcher, parents Query) ([]uint64, error) {
	pm, err := parents.Matcher(s)
	if err != nil {
		return nil, err
	}
	return docsOf(pm).ToArray(), nil
}

// priorParent returns the largest parent docnum <= id.
func priorParent(parents []uint64, id uint64) (uint64, bool) {
	i := sort.Search(len(parents), func(i int) bool { return parents[i] > id })
	if i == 0 {
		return 0, false
	}
	return parents[i-1], true
}

// nextParentAfter returns the smallest parent docnum > id, or maxUint64.
func nextParentAfter(parents []uint64, id uint64) uint64 {
	i := sort.Search(len(parents), func(i int) bool { return parents[i] > id })
	if i == len(parents) {
		return ^uint64(0)
	}
	return parents[i]
}

type nestedParentMatcher struct {
	parents []uint64
	child   Matcher

	active bool
	cur    uint64
	score  float64
	terms  []Term
}

// advance groups the child stream by owning parent and aggregates the
// group's scores.
func (m *nestedParentMatcher) advance() {
	m.terms = m.terms[:0]
	for m.child.IsActive() {
		parent, ok := priorParent(m.parents, m.child.ID())
		if !ok {
			m.child.Next()
			continue
		}
		bound := nextParentAfter(m.parents, parent)
		m.cur = parent
		m.score = 0
		for m.child.IsActive() && m.child.ID() < bound {
			m.score += m.child.Score()
			m.terms = m.child.MatchingTerms(m.terms)
			m.child.Next()
		}
		m.active = true
		return
	}
	m.active = false
}

func (m *nestedParentMatcher) IsActive() bool { return m.active }
func (m *nestedParentMatcher) ID() uint64     { return m.cur }

func (m *nestedParentMatcher) Next() bool {
	if !m.active {
		return false
	}
	m.advance()
	return m.active
}

func (m *nestedParentMatcher) SkipTo(target uint64) bool {
	for m.active && m.cur < target {
		m.advance()
	}
	return m.active
}

func (m *nestedParentMatcher) Weight() float64            { return m.score }
func (m *nestedParentMatcher) Score() float64             { return m.score }
func (m *nestedParentMatcher) SupportsQuality() bool      { return false }
func (m *nestedParentMatcher) MaxQuality() float64        { return 0 }
func (m *nestedParentMatcher) BlockQuality() float64      { return 0 }
func (m *nestedParentMatcher) SkipToQuality(float64) bool { return m.active }

func (m *nestedParentMatcher) MatchingTerms(dst []Term) []Term {
	return append(dst, m.terms...)
}

// NestedChildrenQuery matches the children of parents matching
// ParentFilter: for each matching parent, every live docnum strictly
// between it and the next parent.
type NestedChildrenQuery struct {
	Parents      Query
	ParentFilter Query
}

func (q *NestedChildrenQuery) String() string {
	return fmt.Sprintf("NestedChildren(%s, %s)", q.Parents, q.ParentFilter)
}

func (q *NestedChildrenQuery) Normalize() Query {
	parents := q.Parents.Normalize()
	filter := q.ParentFilter.Normalize()
	if isNull(parents) || isNull(filter) {
		return NullQuery{}
	}
	return &NestedChildrenQuery{Parents: parents, ParentFilter: filter}
}

func (q *NestedChildrenQuery) Matcher(s *Searcher) (Matcher, error) {
	parents, err := parentArray(s, q.Parents)
	if err != nil {
		return nil, err
	}
	if len(parents) == 0 {
		return NullMatcher(), nil
	}
	filter, err := q.ParentFilter.Matcher(s)
	if err != nil {
		return nil, err
	}
	parentSet := make(map[uint64]bool, len(parents))
	for _, p := range parents {
		parentSet[p] = true
	}
	m := &nestedChildrenMatcher{
		parents:   parents,
		parentSet: parentSet,
		filter:    filter,
		live:      s.liveDocsContains(),
		maxDoc:    s.Reader().MaxDoc(),
	}
	m.nextParent()
	return m, nil
}

type nestedChildrenMatcher struct {
	parents   []uint64
	parentSet map[uint64]bool
	filter    Matcher
	live      func(uint64) bool
	maxDoc    uint64

	active bool
	cur    uint64 // current child
	bound  uint64 // next parent after the current one
}

// nextParent advances the filter to its next matching parent and
// positions on the first live child.
func (m *nestedChildrenMatcher) nextParent() {
	for m.filter.IsActive() {
		p := m.filter.ID()
		if !m.parentSet[p] {
			m.filter.Next()
			continue
		}
		m.bound = nextParentAfter(m.parents, p)
		if m.bound > m.maxDoc {
			m.bound = m.maxDoc
		}
		m.cur = p // first candidate child is p+1
		m.filter.Next()
		if m.nextChild() {
			return
		}
	}
	m.active = false
}

// nextChild steps to the next live docnum before the bound.
func (m *nestedChildrenMatcher) nextChild() bool {
	for {
		m.cur++
		if m.cur >= m.bound || m.parentSet[m.cur] {
			return false
		}
		if m.live(m.cur) {
			m.active = true
			return true
		}
	}
}

func (m *nestedChildrenMatcher) IsActive() bool { return m.active }
func (m *nestedChildrenMatcher) ID() uint64     { return m.cur }

func (m *nestedChildrenMatcher) Next() bool {
	if !m.active {
		return false
	}
	if !m.nextChild() {
		m.nextParent()
	}
	return m.active
}

func (m *nestedChildrenMatcher) SkipTo(target uint64) bool {
	for m.active && m.cur < target {
		m.Next()
	}
	return m.active
}

func (m *nestedChildrenMatcher) Weight() float64            { return 1 }
func (m *nestedChildrenMatcher) Score() float64             { return 1 }
func (m *nestedChildrenMatcher) SupportsQuality() bool      { return false }
func (m *nestedChildrenMatcher) MaxQuality() float64        { return 0 }
func (m *nestedChildrenMatcher) BlockQuality() float64      { return 0 }
func (m *nestedChildrenMatcher) SkipToQuality(float64) bool { return m.active }
func (m *nestedChildrenMatcher) MatchingTerms(d []Term) []Term { return d }
