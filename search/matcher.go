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

	"github.com/quillindex/quill/segment"
)

// Matcher is a stateful forward iterator over ascending matching docnums.
// ID, Weight and Score are undefined while IsActive is false. Quality
// methods implement block-max pruning: BlockQuality is an upper bound on
// Score within the current posting block, and SkipToQuality advances past
// blocks that cannot beat the given floor.
type Matcher interface {
	IsActive() bool
	ID() uint64
	Next() bool
	SkipTo(target uint64) bool

	Weight() float64
	Score() float64

	SupportsQuality() bool
	MaxQuality() float64
	BlockQuality() float64
	SkipToQuality(min float64) bool

	// MatchingTerms appends the (field, term) pairs matching at the
	// current document.
	MatchingTerms(dst []Term) []Term
}

// TermMatcher is the leaf of the matcher algebra: the concatenation of one
// term's per-segment posting iterators, which are already rebased and
// globally ordered.
type TermMatcher struct {
	term   Term
	its    []*segment.PostingsIterator
	cur    int
	scorer Scorer
}

// NewTermMatcher builds a leaf matcher; its must be in base order with
// inactive iterators removed.
func NewTermMatcher(term Term, its []*segment.PostingsIterator, scorer Scorer) *TermMatcher {
	return &TermMatcher{term: term, its: its, scorer: scorer}
}

// Term returns the matched term.
func (m *TermMatcher) Term() Term { return m.term }

func (m *TermMatcher) IsActive() bool {
	return m.cur < len(m.its)
}

func (m *TermMatcher) ID() uint64 {
	return m.its[m.cur].ID()
}

func (m *TermMatcher) Next() bool {
	if !m.IsActive() {
		return false
	}
	if !m.its[m.cur].Next() {
		m.cur++
	}
	return m.IsActive()
}

func (m *TermMatcher) SkipTo(target uint64) bool {
	for m.IsActive() {
		if m.its[m.cur].SkipTo(target) {
			return true
		}
		m.cur++
	}
	return false
}

func (m *TermMatcher) Weight() float64 {
	return m.its[m.cur].Weight()
}

func (m *TermMatcher) Score() float64 {
	return m.scorer.Score(m.ID(), m.Weight())
}

func (m *TermMatcher) SupportsQuality() bool {
	return m.scorer.SupportsBlockQuality()
}

func (m *TermMatcher) MaxQuality() float64 {
	return m.scorer.MaxQuality()
}

func (m *TermMatcher) BlockQuality() float64 {
	return m.scorer.BlockQuality(m.its[m.cur].BlockMaxWeight())
}

func (m *TermMatcher) SkipToQuality(min float64) bool {
	if !m.scorer.SupportsBlockQuality() {
		return m.IsActive()
	}
	w := m.scorer.WeightForQuality(min)
	for m.IsActive() {
		if m.its[m.cur].SkipToQuality(w) {
			return true
		}
		m.cur++
	}
	return false
}

// Positions returns the term's positions at the current doc, when the
// field records them.
func (m *TermMatcher) Positions() []uint32 {
	return m.its[m.cur].Positions()
}

func (m *TermMatcher) MatchingTerms(dst []Term) []Term {
	return append(dst, m.term)
}

// nullMatcher matches nothing; the matcher of empty and normalized-away
// queries.
type nullMatcher struct{}

// NullMatcher returns the matcher that matches no documents.
func NullMatcher() Matcher { return nullMatcher{} }

func (nullMatcher) IsActive() bool               { return false }
func (nullMatcher) ID() uint64                   { return 0 }
func (nullMatcher) Next() bool                   { return false }
func (nullMatcher) SkipTo(uint64) bool           { return false }
func (nullMatcher) Weight() float64              { return 0 }
func (nullMatcher) Score() float64               { return 0 }
func (nullMatcher) SupportsQuality() bool        { return false }
func (nullMatcher) MaxQuality() float64          { return 0 }
func (nullMatcher) BlockQuality() float64        { return 0 }
func (nullMatcher) SkipToQuality(float64) bool   { return false }
func (nullMatcher) MatchingTerms(d []Term) []Term { return d }

// bitmapMatcher iterates a precomputed docnum set with a constant score.
// Used by Every queries.
type bitmapMatcher struct {
	it     roaring64.IntPeekable64
	cur    uint64
	active bool
	score  float64
}

// NewBitmapMatcher returns a matcher over the given docnum set. The
// bitmap must not be mutated afterwards.
func NewBitmapMatcher(bm *roaring64.Bitmap, score float64) Matcher {
	m := &bitmapMatcher{it: bm.Iterator(), score: score}
	m.advance()
	return m
}

func (m *bitmapMatcher) advance() {
	if m.it.HasNext() {
		m.cur = m.it.Next()
		m.active = true
	} else {
		m.active = false
	}
}

func (m *bitmapMatcher) IsActive() bool { return m.active }
func (m *bitmapMatcher) ID() uint64     { return m.cur }

func (m *bitmapMatcher) Next() bool {
	if !m.active {
		return false
	}
	m.advance()
	return m.active
}

func (m *bitmapMatcher) SkipTo(target uint64) bool {
	if !m.active {
		return false
	}
	if m.cur >= target {
		return true
	}
	m.it.AdvanceIfNeeded(target)
	m.advance()
	return m.active
}

func (m *bitmapMatcher) Weight() float64             { return m.score }
func (m *bitmapMatcher) Score() float64              { return m.score }
func (m *bitmapMatcher) SupportsQuality() bool       { return false }
func (m *bitmapMatcher) MaxQuality() float64         { return m.score }
func (m *bitmapMatcher) BlockQuality() float64       { return m.score }
func (m *bitmapMatcher) SkipToQuality(float64) bool  { return m.active }
func (m *bitmapMatcher) MatchingTerms(d []Term) []Term { return d }

// docsOf drains a matcher into a bitmap.
func docsOf(m Matcher) *roaring64.Bitmap {
	bm := roaring64.New()
	for m.IsActive() {
		bm.Add(m.ID())
		m.Next()
	}
	return bm
}
