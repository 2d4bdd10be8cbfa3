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
)

// AndQuery intersects its subqueries.
type AndQuery struct {
	Children []Query
}

// NewAnd builds the conjunction of qs.
func NewAnd(qs ...Query) *AndQuery {
	return &AndQuery{Children: qs}
}

func (q *AndQuery) String() string {
	return fmt.Sprintf("And(%s)", joinQueries(q.Children))
}

// Normalize flattens nested conjunctions, short-circuits empties, and
// rewrites negated children into an AndNot over the positive rest.
func (q *AndQuery) Normalize() Query {
	var positives []Query
	var negated []Query
	for _, child := range normalizeAll(q.Children) {
		switch c := child.(type) {
		case NullQuery:
			return NullQuery{}
		case *AndQuery:
			positives = append(positives, c.Children...)
		case *NotQuery:
			negated = append(negated, c.Child)
		default:
			positives = append(positives, child)
		}
	}

	var positive Query
	switch len(positives) {
	case 0:
		if len(negated) == 0 {
			return NullQuery{}
		}
		positive = &EveryQuery{}
	case 1:
		positive = positives[0]
	default:
		positive = &AndQuery{Children: positives}
	}

	if len(negated) == 0 {
		return positive
	}
	var negative Query
	if len(negated) == 1 {
		negative = negated[0]
	} else {
		negative = (&OrQuery{Children: negated}).Normalize()
	}
	return &AndNotQuery{Positive: positive, Negative: negative}
}

func (q *AndQuery) Matcher(s *Searcher) (Matcher, error) {
	children := make([]Matcher, 0, len(q.Children))
	for _, child := range q.Children {
		m, err := child.Matcher(s)
		if err != nil {
			return nil, err
		}
		if !m.IsActive() {
			return NullMatcher(), nil
		}
		children = append(children, m)
	}
	return NewAndMatcher(children), nil
}

// OrQuery unions its subqueries. MinMatch requires at least that many
// subqueries to match; Scale, when positive, awards a score bonus to
// documents matching more subqueries (the "OrGroup" behavior).
type OrQuery struct {
	Children []Query
	MinMatch int
	Scale    float64
}

// NewOr builds the disjunction of qs.
func NewOr(qs ...Query) *OrQuery {
	return &OrQuery{Children: qs}
}

func (q *OrQuery) String() string {
	return fmt.Sprintf("Or(%s)", joinQueries(q.Children))
}

func (q *OrQuery) Normalize() Query {
	var children []Query
	for _, child := range normalizeAll(q.Children) {
		switch c := child.(type) {
		case NullQuery:
			// dropped
		case *OrQuery:
			if c.MinMatch == q.MinMatch && c.Scale == q.Scale {
				children = append(children, c.Children...)
			} else {
				children = append(children, c)
			}
		default:
			children = append(children, child)
		}
	}
	switch len(children) {
	case 0:
		return NullQuery{}
	case 1:
		if q.MinMatch <= 1 {
			return children[0]
		}
	}
	return &OrQuery{Children: children, MinMatch: q.MinMatch, Scale: q.Scale}
}

func (q *OrQuery) Matcher(s *Searcher) (Matcher, error) {
	children := make([]Matcher, 0, len(q.Children))
	for _, child := range q.Children {
		m, err := child.Matcher(s)
		if err != nil {
			return nil, err
		}
		if m.IsActive() {
			children = append(children, m)
		}
	}
	if q.MinMatch > len(q.Children) {
		return NullMatcher(), nil
	}
	return NewUnionMatcher(children, q.MinMatch, q.Scale), nil
}

// NotQuery negates its child. Standalone it matches every live document
// the child does not; inside a conjunction the normalizer folds it into
// an AndNot.
type NotQuery struct {
	Child Query
}

// NewNot negates q.
func NewNot(q Query) *NotQuery {
	return &NotQuery{Child: q}
}

func (q *NotQuery) String() string {
	return fmt.Sprintf("Not(%s)", q.Child)
}

func (q *NotQuery) Normalize() Query {
	child := q.Child.Normalize()
	if isNull(child) {
		return &EveryQuery{}
	}
	if inner, ok := child.(*NotQuery); ok {
		return inner.Child
	}
	return &NotQuery{Child: child}
}

func (q *NotQuery) Matcher(s *Searcher) (Matcher, error) {
	child, err := q.Child.Matcher(s)
	if err != nil {
		return nil, err
	}
	return NewInverseMatcher(child, s.liveDocs(), 1), nil
}

// AndNotQuery matches Positive's documents not matched by Negative.
type AndNotQuery struct {
	Positive Query
	Negative Query
}

// NewAndNot matches a minus b.
func NewAndNot(a, b Query) *AndNotQuery {
	return &AndNotQuery{Positive: a, Negative: b}
}

func (q *AndNotQuery) String() string {
	return fmt.Sprintf("AndNot(%s, %s)", q.Positive, q.Negative)
}

func (q *AndNotQuery) Normalize() Query {
	pos := q.Positive.Normalize()
	neg := q.Negative.Normalize()
	if isNull(pos) {
		return NullQuery{}
	}
	if isNull(neg) {
		return pos
	}
	return &AndNotQuery{Positive: pos, Negative: neg}
}

func (q *AndNotQuery) Matcher(s *Searcher) (Matcher, error) {
	a, err := q.Positive.Matcher(s)
	if err != nil {
		return nil, err
	}
	b, err := q.Negative.Matcher(s)
	if err != nil {
		return nil, err
	}
	return NewAndNotMatcher(a, b), nil
}

// AndMaybeQuery requires Required and lets Optional sweeten the score of
// documents matching both.
type AndMaybeQuery struct {
	Required Query
	Optional Query
}

// NewAndMaybe matches a, scored up by b where it co-matches.
func NewAndMaybe(a, b Query) *AndMaybeQuery {
	return &AndMaybeQuery{Required: a, Optional: b}
}

func (q *AndMaybeQuery) String() string {
	return fmt.Sprintf("AndMaybe(%s, %s)", q.Required, q.Optional)
}

func (q *AndMaybeQuery) Normalize() Query {
	req := q.Required.Normalize()
	opt := q.Optional.Normalize()
	if isNull(req) {
		return NullQuery{}
	}
	if isNull(opt) {
		return req
	}
	return &AndMaybeQuery{Required: req, Optional: opt}
}

func (q *AndMaybeQuery) Matcher(s *Searcher) (Matcher, error) {
	a, err := q.Required.Matcher(s)
	if err != nil {
		return nil, err
	}
	b, err := q.Optional.Matcher(s)
	if err != nil {
		return nil, err
	}
	return NewAndMaybeMatcher(a, b), nil
}

// RequireQuery matches where both subqueries match but scores only by
// Scored.
type RequireQuery struct {
	Scored   Query
	Required Query
}

func (q *RequireQuery) String() string {
	return fmt.Sprintf("Require(%s, %s)", q.Scored, q.Required)
}

func (q *RequireQuery) Normalize() Query {
	scored := q.Scored.Normalize()
	required := q.Required.Normalize()
	if isNull(scored) || isNull(required) {
		return NullQuery{}
	}
	return &RequireQuery{Scored: scored, Required: required}
}

func (q *RequireQuery) Matcher(s *Searcher) (Matcher, error) {
	a, err := q.Scored.Matcher(s)
	if err != nil {
		return nil, err
	}
	b, err := q.Required.Matcher(s)
	if err != nil {
		return nil, err
	}
	return NewRequireMatcher(a, b), nil
}

// DisjunctionMaxQuery unions its subqueries, scoring by the best child
// plus TieBreak times the rest.
type DisjunctionMaxQuery struct {
	Children []Query
	TieBreak float64
}

func (q *DisjunctionMaxQuery) String() string {
	return fmt.Sprintf("DisMax(%s)", joinQueries(q.Children))
}

func (q *DisjunctionMaxQuery) Normalize() Query {
	var children []Query
	for _, child := range normalizeAll(q.Children) {
		if !isNull(child) {
			children = append(children, child)
		}
	}
	switch len(children) {
	case 0:
		return NullQuery{}
	case 1:
		return children[0]
	}
	return &DisjunctionMaxQuery{Children: children, TieBreak: q.TieBreak}
}

func (q *DisjunctionMaxQuery) Matcher(s *Searcher) (Matcher, error) {
	children := make([]Matcher, 0, len(q.Children))
	for _, child := range q.Children {
		m, err := child.Matcher(s)
		if err != nil {
			return nil, err
		}
		if m.IsActive() {
			children = append(children, m)
		}
	}
	return NewDisjunctionMaxMatcher(children, q.TieBreak), nil
}
