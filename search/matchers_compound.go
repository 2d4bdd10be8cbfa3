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
	"github.com/RoaringBitmap/roaring/v2/roaring64"
)

// AndMatcher intersects its children: it is positioned on a document only
// when every child is. Score is the sum of child scores.
type AndMatcher struct {
	children []Matcher
	active   bool
}

// NewAndMatcher intersects children; with fewer than two children the
// input (or the null matcher) is returned unchanged.
func NewAndMatcher(children []Matcher) Matcher {
	switch len(children) {
	case 0:
		return NullMatcher()
	case 1:
		return children[0]
	}
	m := &AndMatcher{children: children}
	m.active = m.align(0)
	return m
}

// align advances the lagging children until all agree on one docnum at or
// above target.
func (m *AndMatcher) align(target uint64) bool {
	for {
		max := target
		agreed := true
		for _, c := range m.children {
			if !c.IsActive() {
				return false
			}
			if c.ID() > max {
				max = c.ID()
			}
		}
		for _, c := range m.children {
			if c.ID() < max {
				if !c.SkipTo(max) {
					return false
				}
				if c.ID() > max {
					agreed = false
				}
			}
		}
		if agreed {
			return true
		}
	}
}

func (m *AndMatcher) IsActive() bool { return m.active }
func (m *AndMatcher) ID() uint64     { return m.children[0].ID() }

func (m *AndMatcher) Next() bool {
	if !m.active {
		return false
	}
	if !m.children[0].Next() {
		m.active = false
		return false
	}
	m.active = m.align(m.children[0].ID())
	return m.active
}

func (m *AndMatcher) SkipTo(target uint64) bool {
	if !m.active {
		return false
	}
	if m.ID() >= target {
		return true
	}
	if !m.children[0].SkipTo(target) {
		m.active = false
		return false
	}
	m.active = m.align(m.children[0].ID())
	return m.active
}

func (m *AndMatcher) Weight() float64 {
	var sum float64
	for _, c := range m.children {
		sum += c.Weight()
	}
	return sum
}

func (m *AndMatcher) Score() float64 {
	var sum float64
	for _, c := range m.children {
		sum += c.Score()
	}
	return sum
}

func (m *AndMatcher) SupportsQuality() bool {
	for _, c := range m.children {
		if !c.SupportsQuality() {
			return false
		}
	}
	return true
}

func (m *AndMatcher) MaxQuality() float64 {
	var sum float64
	for _, c := range m.children {
		sum += c.MaxQuality()
	}
	return sum
}

func (m *AndMatcher) BlockQuality() float64 {
	var sum float64
	for _, c := range m.children {
		sum += c.BlockQuality()
	}
	return sum
}

func (m *AndMatcher) SkipToQuality(min float64) bool {
	if !m.active || !m.SupportsQuality() {
		return m.active
	}
	for m.active && m.BlockQuality() <= min {
		// push the child with the weakest block past its share of the
		// deficit
		weakest := 0
		weakestQ := m.children[0].BlockQuality()
		total := weakestQ
		for i := 1; i < len(m.children); i++ {
			q := m.children[i].BlockQuality()
			total += q
			if q < weakestQ {
				weakest, weakestQ = i, q
			}
		}
		if !m.children[weakest].SkipToQuality(min - (total - weakestQ)) {
			m.active = false
			return false
		}
		m.active = m.align(0)
	}
	return m.active
}

func (m *AndMatcher) MatchingTerms(dst []Term) []Term {
	for _, c := range m.children {
		dst = c.MatchingTerms(dst)
	}
	return dst
}

// UnionMatcher is the n-ary disjunction: positioned on the smallest
// docnum any child matches, scoring the sum of the children aligned
// there.
type UnionMatcher struct {
	children []Matcher
	// minimum children that must align for a doc to be emitted
	minMatch int
	// score scale awarding a bonus per additional matching child; zero
	// disables it
	scale float64

	active bool
	cur    uint64
}

// NewUnionMatcher builds a disjunction; minMatch below two disables the
// minimum-should-match filter.
func NewUnionMatcher(children []Matcher, minMatch int, scale float64) Matcher {
	if len(children) == 0 {
		return NullMatcher()
	}
	if len(children) == 1 && minMatch <= 1 && scale == 0 {
		return children[0]
	}
	m := &UnionMatcher{children: children, minMatch: minMatch, scale: scale}
	m.active = m.settle(0)
	return m
}

// settle positions the union on the smallest matching docnum >= target
// that satisfies minMatch.
func (m *UnionMatcher) settle(target uint64) bool {
	for {
		found := false
		var low uint64
		for _, c := range m.children {
			if !c.IsActive() {
				continue
			}
			if c.ID() < target {
				if !c.SkipTo(target) {
					continue
				}
			}
			if !found || c.ID() < low {
				low = c.ID()
				found = true
			}
		}
		if !found {
			return false
		}
		if m.minMatch > 1 && m.matchingAt(low) < m.minMatch {
			target = low + 1
			continue
		}
		m.cur = low
		return true
	}
}

func (m *UnionMatcher) matchingAt(id uint64) int {
	n := 0
	for _, c := range m.children {
		if c.IsActive() && c.ID() == id {
			n++
		}
	}
	return n
}

func (m *UnionMatcher) IsActive() bool { return m.active }
func (m *UnionMatcher) ID() uint64     { return m.cur }

func (m *UnionMatcher) Next() bool {
	if !m.active {
		return false
	}
	m.active = m.settle(m.cur + 1)
	return m.active
}

func (m *UnionMatcher) SkipTo(target uint64) bool {
	if !m.active {
		return false
	}
	if m.cur >= target {
		return true
	}
	m.active = m.settle(target)
	return m.active
}

func (m *UnionMatcher) Weight() float64 {
	var sum float64
	for _, c := range m.children {
		if c.IsActive() && c.ID() == m.cur {
			sum += c.Weight()
		}
	}
	return sum
}

func (m *UnionMatcher) Score() float64 {
	var sum float64
	matching := 0
	for _, c := range m.children {
		if c.IsActive() && c.ID() == m.cur {
			sum += c.Score()
			matching++
		}
	}
	if m.scale > 0 && matching > 1 && len(m.children) > 1 {
		sum *= 1 + m.scale*float64(matching-1)/float64(len(m.children)-1)
	}
	return sum
}

func (m *UnionMatcher) SupportsQuality() bool {
	// minimum-should-match changes which docs are emitted, so block
	// bounds no longer hold
	if m.minMatch > 1 {
		return false
	}
	for _, c := range m.children {
		if c.IsActive() && !c.SupportsQuality() {
			return false
		}
	}
	return true
}

func (m *UnionMatcher) qualityScale() float64 {
	if m.scale > 0 {
		return 1 + m.scale
	}
	return 1
}

func (m *UnionMatcher) MaxQuality() float64 {
	var sum float64
	for _, c := range m.children {
		if c.IsActive() {
			sum += c.MaxQuality()
		}
	}
	return sum * m.qualityScale()
}

func (m *UnionMatcher) BlockQuality() float64 {
	var sum float64
	for _, c := range m.children {
		if c.IsActive() {
			sum += c.BlockQuality()
		}
	}
	return sum * m.qualityScale()
}

func (m *UnionMatcher) SkipToQuality(min float64) bool {
	if !m.active || !m.SupportsQuality() {
		return m.active
	}
	min /= m.qualityScale()
	for m.active {
		var sum float64
		weakest := -1
		var weakestQ float64
		for i, c := range m.children {
			if !c.IsActive() {
				continue
			}
			q := c.BlockQuality()
			sum += q
			if weakest < 0 || q < weakestQ {
				weakest, weakestQ = i, q
			}
		}
		if weakest < 0 {
			m.active = false
			return false
		}
		if sum > min {
			return true
		}
		m.children[weakest].SkipToQuality(min - (sum - weakestQ))
		m.active = m.settle(0)
	}
	return false
}

func (m *UnionMatcher) MatchingTerms(dst []Term) []Term {
	for _, c := range m.children {
		if c.IsActive() && c.ID() == m.cur {
			dst = c.MatchingTerms(dst)
		}
	}
	return dst
}

// AndNotMatcher emits a's documents absent from b; scored by a alone.
type AndNotMatcher struct {
	a, b Matcher
}

func NewAndNotMatcher(a, b Matcher) Matcher {
	m := &AndNotMatcher{a: a, b: b}
	m.exclude()
	return m
}

// exclude advances a past documents b matches.
func (m *AndNotMatcher) exclude() {
	for m.a.IsActive() && m.b.IsActive() {
		if m.b.ID() < m.a.ID() {
			if !m.b.SkipTo(m.a.ID()) {
				return
			}
		}
		if m.b.ID() != m.a.ID() {
			return
		}
		if !m.a.Next() {
			return
		}
	}
}

func (m *AndNotMatcher) IsActive() bool { return m.a.IsActive() }
func (m *AndNotMatcher) ID() uint64     { return m.a.ID() }

func (m *AndNotMatcher) Next() bool {
	if !m.a.Next() {
		return false
	}
	m.exclude()
	return m.a.IsActive()
}

func (m *AndNotMatcher) SkipTo(target uint64) bool {
	if !m.a.SkipTo(target) {
		return false
	}
	m.exclude()
	return m.a.IsActive()
}

func (m *AndNotMatcher) Weight() float64           { return m.a.Weight() }
func (m *AndNotMatcher) Score() float64            { return m.a.Score() }
func (m *AndNotMatcher) SupportsQuality() bool     { return m.a.SupportsQuality() }
func (m *AndNotMatcher) MaxQuality() float64       { return m.a.MaxQuality() }
func (m *AndNotMatcher) BlockQuality() float64     { return m.a.BlockQuality() }

func (m *AndNotMatcher) SkipToQuality(min float64) bool {
	if !m.a.SkipToQuality(min) {
		return false
	}
	m.exclude()
	return m.a.IsActive()
}

func (m *AndNotMatcher) MatchingTerms(dst []Term) []Term {
	return m.a.MatchingTerms(dst)
}

// AndMaybeMatcher is driven by a; b contributes to the score when aligned
// but never constrains matching.
type AndMaybeMatcher struct {
	a, b Matcher
}

func NewAndMaybeMatcher(a, b Matcher) Matcher {
	return &AndMaybeMatcher{a: a, b: b}
}

func (m *AndMaybeMatcher) aligned() bool {
	if !m.a.IsActive() || !m.b.IsActive() {
		return false
	}
	if m.b.ID() < m.a.ID() {
		m.b.SkipTo(m.a.ID())
	}
	return m.b.IsActive() && m.b.ID() == m.a.ID()
}

func (m *AndMaybeMatcher) IsActive() bool       { return m.a.IsActive() }
func (m *AndMaybeMatcher) ID() uint64           { return m.a.ID() }
func (m *AndMaybeMatcher) Next() bool           { return m.a.Next() }
func (m *AndMaybeMatcher) SkipTo(t uint64) bool { return m.a.SkipTo(t) }

func (m *AndMaybeMatcher) Weight() float64 {
	w := m.a.Weight()
	if m.aligned() {
		w += m.b.Weight()
	}
	return w
}

func (m *AndMaybeMatcher) Score() float64 {
	s := m.a.Score()
	if m.aligned() {
		s += m.b.Score()
	}
	return s
}

func (m *AndMaybeMatcher) SupportsQuality() bool { return m.a.SupportsQuality() }

func (m *AndMaybeMatcher) MaxQuality() float64 {
	q := m.a.MaxQuality()
	if m.b.IsActive() {
		q += m.b.MaxQuality()
	}
	return q
}

func (m *AndMaybeMatcher) BlockQuality() float64 {
	q := m.a.BlockQuality()
	if m.b.IsActive() {
		q += m.b.BlockQuality()
	}
	return q
}

func (m *AndMaybeMatcher) SkipToQuality(min float64) bool {
	// the optional side cannot be relied on, so only a's own quality is
	// safe to prune with
	return m.a.SkipToQuality(min)
}

func (m *AndMaybeMatcher) MatchingTerms(dst []Term) []Term {
	dst = m.a.MatchingTerms(dst)
	if m.aligned() {
		dst = m.b.MatchingTerms(dst)
	}
	return dst
}

// RequireMatcher matches where both a and b match but scores by a alone.
type RequireMatcher struct {
	and Matcher
	a   Matcher
}

func NewRequireMatcher(a, b Matcher) Matcher {
	return &RequireMatcher{and: NewAndMatcher([]Matcher{a, b}), a: a}
}

func (m *RequireMatcher) IsActive() bool       { return m.and.IsActive() }
func (m *RequireMatcher) ID() uint64           { return m.and.ID() }
func (m *RequireMatcher) Next() bool           { return m.and.Next() }
func (m *RequireMatcher) SkipTo(t uint64) bool { return m.and.SkipTo(t) }
func (m *RequireMatcher) Weight() float64      { return m.a.Weight() }
func (m *RequireMatcher) Score() float64       { return m.a.Score() }
func (m *RequireMatcher) SupportsQuality() bool { return m.a.SupportsQuality() }
func (m *RequireMatcher) MaxQuality() float64   { return m.a.MaxQuality() }
func (m *RequireMatcher) BlockQuality() float64 { return m.a.BlockQuality() }
func (m *RequireMatcher) SkipToQuality(min float64) bool {
	if !m.a.SkipToQuality(min) {
		return false
	}
	return m.and.SkipTo(m.a.ID())
}
func (m *RequireMatcher) MatchingTerms(dst []Term) []Term {
	return m.a.MatchingTerms(dst)
}

// DisjunctionMaxMatcher is a union scored by the best child plus a
// tie-break fraction of the rest.
type DisjunctionMaxMatcher struct {
	*UnionMatcher
	tieBreak float64
}

func NewDisjunctionMaxMatcher(children []Matcher, tieBreak float64) Matcher {
	union := NewUnionMatcher(children, 0, 0)
	u, ok := union.(*UnionMatcher)
	if !ok {
		return union
	}
	return &DisjunctionMaxMatcher{UnionMatcher: u, tieBreak: tieBreak}
}

func (m *DisjunctionMaxMatcher) Score() float64 {
	var max, sum float64
	for _, c := range m.children {
		if c.IsActive() && c.ID() == m.cur {
			s := c.Score()
			sum += s
			if s > max {
				max = s
			}
		}
	}
	return max + m.tieBreak*(sum-max)
}

// filterMatcher restricts (or, inverted, excludes) a child by a docnum
// set.
type filterMatcher struct {
	child   Matcher
	set     *roaring64.Bitmap
	exclude bool
}

// NewFilterMatcher hides the child's documents outside the allow set.
func NewFilterMatcher(child Matcher, allow *roaring64.Bitmap) Matcher {
	m := &filterMatcher{child: child, set: allow}
	m.settle()
	return m
}

// NewExcludeMatcher hides the child's documents inside the deny set.
func NewExcludeMatcher(child Matcher, deny *roaring64.Bitmap) Matcher {
	m := &filterMatcher{child: child, set: deny, exclude: true}
	m.settle()
	return m
}

func (m *filterMatcher) allowed(id uint64) bool {
	return m.set.Contains(id) != m.exclude
}

func (m *filterMatcher) settle() {
	for m.child.IsActive() && !m.allowed(m.child.ID()) {
		m.child.Next()
	}
}

func (m *filterMatcher) IsActive() bool { return m.child.IsActive() }
func (m *filterMatcher) ID() uint64     { return m.child.ID() }

func (m *filterMatcher) Next() bool {
	if !m.child.Next() {
		return false
	}
	m.settle()
	return m.child.IsActive()
}

func (m *filterMatcher) SkipTo(target uint64) bool {
	if !m.child.SkipTo(target) {
		return false
	}
	m.settle()
	return m.child.IsActive()
}

func (m *filterMatcher) Weight() float64       { return m.child.Weight() }
func (m *filterMatcher) Score() float64        { return m.child.Score() }
func (m *filterMatcher) SupportsQuality() bool { return m.child.SupportsQuality() }
func (m *filterMatcher) MaxQuality() float64   { return m.child.MaxQuality() }
func (m *filterMatcher) BlockQuality() float64 { return m.child.BlockQuality() }

func (m *filterMatcher) SkipToQuality(min float64) bool {
	if !m.child.SkipToQuality(min) {
		return false
	}
	m.settle()
	return m.child.IsActive()
}

func (m *filterMatcher) MatchingTerms(dst []Term) []Term {
	return m.child.MatchingTerms(dst)
}

// InverseMatcher emits the universe's documents the child does not match.
type InverseMatcher struct {
	child    Matcher
	universe roaring64.IntPeekable64
	cur      uint64
	active   bool
	score    float64
}

// NewInverseMatcher inverts child against the given docnum universe
// (typically the reader's live docs).
func NewInverseMatcher(child Matcher, universe *roaring64.Bitmap, score float64) Matcher {
	m := &InverseMatcher{child: child, universe: universe.Iterator(), score: score}
	m.advance()
	return m
}

func (m *InverseMatcher) advance() {
	for m.universe.HasNext() {
		id := m.universe.Next()
		if m.child.IsActive() && m.child.ID() < id {
			m.child.SkipTo(id)
		}
		if m.child.IsActive() && m.child.ID() == id {
			continue
		}
		m.cur = id
		m.active = true
		return
	}
	m.active = false
}

func (m *InverseMatcher) IsActive() bool { return m.active }
func (m *InverseMatcher) ID() uint64     { return m.cur }

func (m *InverseMatcher) Next() bool {
	if !m.active {
		return false
	}
	m.advance()
	return m.active
}

func (m *InverseMatcher) SkipTo(target uint64) bool {
	if !m.active {
		return false
	}
	if m.cur >= target {
		return true
	}
	m.universe.AdvanceIfNeeded(target)
	m.advance()
	return m.active
}

func (m *InverseMatcher) Weight() float64            { return m.score }
func (m *InverseMatcher) Score() float64             { return m.score }
func (m *InverseMatcher) SupportsQuality() bool      { return false }
func (m *InverseMatcher) MaxQuality() float64        { return m.score }
func (m *InverseMatcher) BlockQuality() float64      { return m.score }
func (m *InverseMatcher) SkipToQuality(float64) bool { return m.active }
func (m *InverseMatcher) MatchingTerms(d []Term) []Term { return d }

// ConstantScoreMatcher overrides a child's scoring with a fixed value.
type ConstantScoreMatcher struct {
	child Matcher
	score float64
}

func NewConstantScoreMatcher(child Matcher, score float64) Matcher {
	return &ConstantScoreMatcher{child: child, score: score}
}

func (m *ConstantScoreMatcher) IsActive() bool            { return m.child.IsActive() }
func (m *ConstantScoreMatcher) ID() uint64                { return m.child.ID() }
func (m *ConstantScoreMatcher) Next() bool                { return m.child.Next() }
func (m *ConstantScoreMatcher) SkipTo(t uint64) bool      { return m.child.SkipTo(t) }
func (m *ConstantScoreMatcher) Weight() float64           { return m.score }
func (m *ConstantScoreMatcher) Score() float64            { return m.score }
func (m *ConstantScoreMatcher) SupportsQuality() bool     { return false }
func (m *ConstantScoreMatcher) MaxQuality() float64       { return m.score }
func (m *ConstantScoreMatcher) BlockQuality() float64     { return m.score }
func (m *ConstantScoreMatcher) SkipToQuality(float64) bool { return m.child.IsActive() }
func (m *ConstantScoreMatcher) MatchingTerms(dst []Term) []Term {
	return m.child.MatchingTerms(dst)
}

// BoostMatcher multiplies a child's scores by a constant.
type BoostMatcher struct {
	child Matcher
	boost float64
}

func NewBoostMatcher(child Matcher, boost float64) Matcher {
	if boost == 1 {
		return child
	}
	return &BoostMatcher{child: child, boost: boost}
}

func (m *BoostMatcher) IsActive() bool        { return m.child.IsActive() }
func (m *BoostMatcher) ID() uint64            { return m.child.ID() }
func (m *BoostMatcher) Next() bool            { return m.child.Next() }
func (m *BoostMatcher) SkipTo(t uint64) bool  { return m.child.SkipTo(t) }
func (m *BoostMatcher) Weight() float64       { return m.child.Weight() * m.boost }
func (m *BoostMatcher) Score() float64        { return m.child.Score() * m.boost }
func (m *BoostMatcher) SupportsQuality() bool { return m.child.SupportsQuality() }
func (m *BoostMatcher) MaxQuality() float64   { return m.child.MaxQuality() * m.boost }
func (m *BoostMatcher) BlockQuality() float64 { return m.child.BlockQuality() * m.boost }
func (m *BoostMatcher) SkipToQuality(min float64) bool {
	return m.child.SkipToQuality(min / m.boost)
}
func (m *BoostMatcher) MatchingTerms(dst []Term) []Term {
	return m.child.MatchingTerms(dst)
}
