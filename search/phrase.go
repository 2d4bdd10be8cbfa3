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
	"bytes"
	"fmt"
	"strings"

	"github.com/quillindex/quill/schema"
	"github.com/quillindex/quill/segment"
)

// PhraseQuery matches documents where Terms occur in order. Slop is the
// total insertion budget: adjacent phrase terms may sit up to slop+1
// positions apart, drawn down across the whole phrase.
type PhraseQuery struct {
	Field string
	Terms []string
	Slop  int
}

// NewPhrase matches the exact consecutive phrase.
func NewPhrase(field string, terms ...string) *PhraseQuery {
	return &PhraseQuery{Field: field, Terms: terms}
}

func (q *PhraseQuery) String() string {
	return fmt.Sprintf("Phrase(%s:%q~%d)", q.Field, strings.Join(q.Terms, " "), q.Slop)
}

func (q *PhraseQuery) Normalize() Query {
	if len(q.Terms) == 0 {
		return NullQuery{}
	}
	if len(q.Terms) == 1 {
		return &TermQuery{Field: q.Field, Text: q.Terms[0]}
	}
	return q
}

func (q *PhraseQuery) Matcher(s *Searcher) (Matcher, error) {
	def := s.Reader().Schema().Field(q.Field)
	if def == nil {
		return nil, fmt.Errorf("%w: no such field %q", ErrQuery, q.Field)
	}
	useVector := def.Vector
	if !def.Format.Has(schema.Positions) && !useVector {
		return nil, fmt.Errorf("%w: field %q records no positions for phrase matching",
			ErrQuery, q.Field)
	}

	children := make([]*TermMatcher, len(q.Terms))
	for i, text := range q.Terms {
		m, err := s.termMatcher(q.Field, []byte(text))
		if err != nil {
			return nil, err
		}
		tm, ok := m.(*TermMatcher)
		if !ok || !tm.IsActive() {
			return NullMatcher(), nil
		}
		children[i] = tm
	}

	pm := &phraseMatcher{
		searcher:  s,
		field:     q.Field,
		terms:     q.Terms,
		children:  children,
		slop:      q.Slop,
		useVector: useVector,
	}
	pm.active = pm.settle(0)
	return pm, nil
}

// phraseMatcher intersects the phrase terms' documents and verifies
// position adjacency within the slop budget. When the field stores a
// forward vector the positions come from it instead of the inverted
// postings.
type phraseMatcher struct {
	searcher  *Searcher
	field     string
	terms     []string
	children  []*TermMatcher
	slop      int
	useVector bool
	active    bool
}

// align advances the lagging children until all sit on one docnum.
func (m *phraseMatcher) align(target uint64) bool {
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

// settle finds the next aligned document at or above target that passes
// the positional check.
func (m *phraseMatcher) settle(target uint64) bool {
	if !m.align(target) {
		return false
	}
	for {
		if m.verify() {
			return true
		}
		if !m.children[0].Next() {
			return false
		}
		if !m.align(m.children[0].ID()) {
			return false
		}
	}
}

// verify checks the phrase ordering at the currently aligned document:
// each next term must appear after the previous one, and every extra gap
// position draws down the shared slop budget.
func (m *phraseMatcher) verify() bool {
	positions, ok := m.termPositions()
	if !ok {
		return false
	}

	type cand struct {
		pos    uint32
		budget int
	}
	current := make([]cand, 0, len(positions[0]))
	for _, p := range positions[0] {
		current = append(current, cand{pos: p, budget: m.slop})
	}
	for i := 1; i < len(positions); i++ {
		var next []cand
		for _, c := range current {
			for _, p := range positions[i] {
				if p <= c.pos {
					continue
				}
				cost := int(p-c.pos) - 1
				if cost <= c.budget {
					next = append(next, cand{pos: p, budget: c.budget - cost})
				}
			}
		}
		if len(next) == 0 {
			return false
		}
		current = next
	}
	return true
}

// termPositions fetches each phrase term's positions at the current doc.
func (m *phraseMatcher) termPositions() ([][]uint32, bool) {
	positions := make([][]uint32, len(m.children))
	if m.useVector {
		vec, err := m.searcher.Reader().Vector(m.ID(), m.field)
		if err != nil || vec == nil {
			return nil, false
		}
		for i, text := range m.terms {
			entry := findVectorEntry(vec, []byte(text))
			if entry == nil || len(entry.Positions) == 0 {
				return nil, false
			}
			positions[i] = entry.Positions
		}
		return positions, true
	}
	for i, c := range m.children {
		positions[i] = c.Positions()
		if len(positions[i]) == 0 {
			return nil, false
		}
	}
	return positions, true
}

func findVectorEntry(vec []segment.VectorEntry, term []byte) *segment.VectorEntry {
	for i := range vec {
		if bytes.Equal(vec[i].Term, term) {
			return &vec[i]
		}
	}
	return nil
}

func (m *phraseMatcher) IsActive() bool { return m.active }
func (m *phraseMatcher) ID() uint64     { return m.children[0].ID() }

func (m *phraseMatcher) Next() bool {
	if !m.active {
		return false
	}
	if !m.children[0].Next() {
		m.active = false
		return false
	}
	m.active = m.settle(m.children[0].ID())
	return m.active
}

func (m *phraseMatcher) SkipTo(target uint64) bool {
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
	m.active = m.settle(m.children[0].ID())
	return m.active
}

func (m *phraseMatcher) Weight() float64 {
	var sum float64
	for _, c := range m.children {
		sum += c.Weight()
	}
	return sum
}

func (m *phraseMatcher) Score() float64 {
	var sum float64
	for _, c := range m.children {
		sum += c.Score()
	}
	return sum
}

// The positional check makes block bounds unreliable, so phrase matchers
// opt out of quality pruning.
func (m *phraseMatcher) SupportsQuality() bool      { return false }
func (m *phraseMatcher) MaxQuality() float64        { return 0 }
func (m *phraseMatcher) BlockQuality() float64      { return 0 }
func (m *phraseMatcher) SkipToQuality(float64) bool { return m.active }

func (m *phraseMatcher) MatchingTerms(dst []Term) []Term {
	for _, c := range m.children {
		dst = c.MatchingTerms(dst)
	}
	return dst
}
