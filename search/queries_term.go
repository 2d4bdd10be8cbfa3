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
	"strings"
	"time"

	"github.com/blevesearch/vellum/levenshtein"
	vregexp "github.com/blevesearch/vellum/regexp"

	"github.com/quillindex/quill/schema"
)

// TermQuery matches documents containing exactly (Field, Text).
type TermQuery struct {
	Field string
	Text  string
	Boost float64
}

// NewTerm is the common constructor for a simple term query.
func NewTerm(field, text string) *TermQuery {
	return &TermQuery{Field: field, Text: text}
}

func (q *TermQuery) String() string {
	if q.Boost != 0 && q.Boost != 1 {
		return fmt.Sprintf("Term(%s:%s)^%g", q.Field, q.Text, q.Boost)
	}
	return fmt.Sprintf("Term(%s:%s)", q.Field, q.Text)
}

func (q *TermQuery) Normalize() Query { return q }

func (q *TermQuery) Matcher(s *Searcher) (Matcher, error) {
	def := s.Reader().Schema().Field(q.Field)
	if def == nil {
		return nil, fmt.Errorf("%w: no such field %q", ErrQuery, q.Field)
	}
	if def.Numeric != schema.NotNumeric {
		return nil, fmt.Errorf("%w: term text against numeric field %q", ErrQuery, q.Field)
	}
	m, err := s.termMatcher(q.Field, []byte(q.Text))
	if err != nil {
		return nil, err
	}
	if q.Boost != 0 && q.Boost != 1 {
		m = NewBoostMatcher(m, q.Boost)
	}
	return m, nil
}

// EveryQuery matches all live documents, or all live documents carrying
// Field when one is named.
type EveryQuery struct {
	Field string
}

func (q *EveryQuery) String() string {
	if q.Field == "" {
		return "Every()"
	}
	return fmt.Sprintf("Every(%s)", q.Field)
}

func (q *EveryQuery) Normalize() Query { return q }

func (q *EveryQuery) Matcher(s *Searcher) (Matcher, error) {
	if q.Field == "" {
		return NewBitmapMatcher(s.liveDocs(), 1), nil
	}
	docs, err := s.Reader().FieldDocs(q.Field)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrQuery, err)
	}
	return NewBitmapMatcher(docs, 1), nil
}

// expandedMatcher is the shared matcher construction of every query that
// enumerates dictionary terms and unions their matchers.
func expandedMatcher(s *Searcher, field string, terms [][]byte) (Matcher, error) {
	children := make([]Matcher, 0, len(terms))
	for _, term := range terms {
		m, err := s.termMatcher(field, term)
		if err != nil {
			return nil, err
		}
		if m.IsActive() {
			children = append(children, m)
		}
	}
	return NewUnionMatcher(children, 0, 0), nil
}

// PrefixQuery matches every term beginning with Prefix.
type PrefixQuery struct {
	Field  string
	Prefix string
}

func (q *PrefixQuery) String() string {
	return fmt.Sprintf("Prefix(%s:%s*)", q.Field, q.Prefix)
}

func (q *PrefixQuery) Normalize() Query { return q }

func (q *PrefixQuery) Matcher(s *Searcher) (Matcher, error) {
	terms, err := s.Reader().TermsWithPrefix(q.Field, []byte(q.Prefix), s.termCap)
	if err != nil {
		return nil, err
	}
	return expandedMatcher(s, q.Field, terms)
}

// WildcardQuery matches terms against a shell-style pattern where `*`
// spans any run and `?` any single character.
type WildcardQuery struct {
	Field   string
	Pattern string
}

func (q *WildcardQuery) String() string {
	return fmt.Sprintf("Wildcard(%s:%s)", q.Field, q.Pattern)
}

func (q *WildcardQuery) Normalize() Query {
	// a pattern without metacharacters is a plain term
	if !strings.ContainsAny(q.Pattern, "*?") {
		return &TermQuery{Field: q.Field, Text: q.Pattern}
	}
	// strip a trailing bare `*` with no other metas down to a prefix
	if strings.HasSuffix(q.Pattern, "*") {
		head := q.Pattern[:len(q.Pattern)-1]
		if !strings.ContainsAny(head, "*?") {
			return &PrefixQuery{Field: q.Field, Prefix: head}
		}
	}
	return q
}

func (q *WildcardQuery) Matcher(s *Searcher) (Matcher, error) {
	var expr strings.Builder
	for _, r := range q.Pattern {
		switch r {
		case '*':
			expr.WriteString(".*")
		case '?':
			expr.WriteString(".")
		default:
			expr.WriteString(regexpQuote(r))
		}
	}
	return regexpMatcher(s, q.Field, expr.String())
}

func regexpQuote(r rune) string {
	if strings.ContainsRune(`\.+*?()|[]{}^$`, r) {
		return `\` + string(r)
	}
	return string(r)
}

// RegexpQuery matches terms accepted by a regular expression.
type RegexpQuery struct {
	Field string
	Expr  string
}

func (q *RegexpQuery) String() string {
	return fmt.Sprintf("Regexp(%s:/%s/)", q.Field, q.Expr)
}

func (q *RegexpQuery) Normalize() Query { return q }

func (q *RegexpQuery) Matcher(s *Searcher) (Matcher, error) {
	return regexpMatcher(s, q.Field, q.Expr)
}

func regexpMatcher(s *Searcher, field, expr string) (Matcher, error) {
	aut, err := vregexp.New(expr)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrQuery, err)
	}
	terms, err := s.Reader().TermsMatching(field, aut, s.termCap)
	if err != nil {
		return nil, err
	}
	return expandedMatcher(s, field, terms)
}

// FuzzyQuery matches terms within MaxEdits Levenshtein distance of Text,
// optionally requiring the first Prefix bytes to match exactly.
type FuzzyQuery struct {
	Field    string
	Text     string
	MaxEdits int
	Prefix   int
}

func (q *FuzzyQuery) String() string {
	return fmt.Sprintf("Fuzzy(%s:%s~%d)", q.Field, q.Text, q.MaxEdits)
}

func (q *FuzzyQuery) Normalize() Query {
	if q.MaxEdits <= 0 {
		return &TermQuery{Field: q.Field, Text: q.Text}
	}
	return q
}

func (q *FuzzyQuery) Matcher(s *Searcher) (Matcher, error) {
	edits := q.MaxEdits
	if edits > 2 {
		edits = 2
	}
	lb, err := levenshtein.NewLevenshteinAutomatonBuilder(uint8(edits), false)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrQuery, err)
	}
	dfa, err := lb.BuildDfa(q.Text, uint8(edits))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrQuery, err)
	}
	terms, err := s.Reader().TermsMatching(q.Field, dfa, s.termCap)
	if err != nil {
		return nil, err
	}
	if q.Prefix > 0 {
		required := q.Text
		if q.Prefix < len(required) {
			required = required[:q.Prefix]
		}
		kept := terms[:0]
		for _, term := range terms {
			if strings.HasPrefix(string(term), required) {
				kept = append(kept, term)
			}
		}
		terms = kept
	}
	return expandedMatcher(s, q.Field, terms)
}

// TermRangeQuery matches terms in a byte range.
type TermRangeQuery struct {
	Field        string
	Lo, Hi       string // empty means unbounded
	IncLo, IncHi bool
}

func (q *TermRangeQuery) String() string {
	lo, hi := "(", ")"
	if q.IncLo {
		lo = "["
	}
	if q.IncHi {
		hi = "]"
	}
	return fmt.Sprintf("Range(%s:%s%s TO %s%s)", q.Field, lo, q.Lo, q.Hi, hi)
}

func (q *TermRangeQuery) Normalize() Query { return q }

func (q *TermRangeQuery) Matcher(s *Searcher) (Matcher, error) {
	lo, hi := rangeBounds([]byte(q.Lo), []byte(q.Hi), q.Lo != "", q.Hi != "", q.IncLo, q.IncHi)
	terms, err := s.Reader().TermsInRange(q.Field, lo, hi, s.termCap)
	if err != nil {
		return nil, err
	}
	return expandedMatcher(s, q.Field, terms)
}

// rangeBounds converts inclusive/exclusive endpoints into the half-open
// [lo, hi) form the dictionary iterators take. A nil bound is open.
func rangeBounds(lo, hi []byte, haveLo, haveHi, incLo, incHi bool) ([]byte, []byte) {
	var outLo, outHi []byte
	if haveLo {
		outLo = lo
		if !incLo {
			outLo = append(append([]byte(nil), lo...), 0)
		}
	}
	if haveHi {
		outHi = hi
		if incHi {
			outHi = append(append([]byte(nil), hi...), 0)
		}
	}
	return outLo, outHi
}

// NumericRangeQuery matches numeric terms in a value range. Lo and Hi
// take the Go values the field accepts; nil means unbounded.
type NumericRangeQuery struct {
	Field        string
	Lo, Hi       interface{}
	IncLo, IncHi bool
}

func (q *NumericRangeQuery) String() string {
	return fmt.Sprintf("NumericRange(%s:%v TO %v)", q.Field, q.Lo, q.Hi)
}

func (q *NumericRangeQuery) Normalize() Query { return q }

func (q *NumericRangeQuery) Matcher(s *Searcher) (Matcher, error) {
	def := s.Reader().Schema().Field(q.Field)
	if def == nil {
		return nil, fmt.Errorf("%w: no such field %q", ErrQuery, q.Field)
	}
	if def.Numeric == schema.NotNumeric {
		return nil, fmt.Errorf("%w: numeric range against text field %q", ErrQuery, q.Field)
	}
	var lo, hi []byte
	var err error
	if q.Lo != nil {
		if lo, err = def.EncodeNumericValue(q.Lo); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrQuery, err)
		}
	}
	if q.Hi != nil {
		if hi, err = def.EncodeNumericValue(q.Hi); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrQuery, err)
		}
	}
	boundedLo, boundedHi := rangeBounds(lo, hi, q.Lo != nil, q.Hi != nil, q.IncLo, q.IncHi)
	terms, err := s.Reader().TermsInRange(q.Field, boundedLo, boundedHi, s.termCap)
	if err != nil {
		return nil, err
	}
	return expandedMatcher(s, q.Field, terms)
}

// NumericEqualsQuery matches one exact numeric value.
type NumericEqualsQuery struct {
	Field string
	Value interface{}
}

func (q *NumericEqualsQuery) String() string {
	return fmt.Sprintf("NumericEquals(%s:%v)", q.Field, q.Value)
}

func (q *NumericEqualsQuery) Normalize() Query { return q }

func (q *NumericEqualsQuery) Matcher(s *Searcher) (Matcher, error) {
	def := s.Reader().Schema().Field(q.Field)
	if def == nil {
		return nil, fmt.Errorf("%w: no such field %q", ErrQuery, q.Field)
	}
	term, err := def.EncodeNumericValue(q.Value)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrQuery, err)
	}
	return s.termMatcher(q.Field, term)
}

// DateRangeQuery matches DATETIME terms between two instants. Zero times
// are unbounded.
type DateRangeQuery struct {
	Field        string
	Lo, Hi       time.Time
	IncLo, IncHi bool
}

func (q *DateRangeQuery) String() string {
	return fmt.Sprintf("DateRange(%s:%s TO %s)",
		q.Field, q.Lo.Format(time.RFC3339), q.Hi.Format(time.RFC3339))
}

func (q *DateRangeQuery) Normalize() Query { return q }

func (q *DateRangeQuery) Matcher(s *Searcher) (Matcher, error) {
	nr := &NumericRangeQuery{Field: q.Field, IncLo: q.IncLo, IncHi: q.IncHi}
	if !q.Lo.IsZero() {
		nr.Lo = q.Lo
	}
	if !q.Hi.IsZero() {
		nr.Hi = q.Hi
	}
	return nr.Matcher(s)
}

// ConstantScoreQuery replaces the child's scoring with a fixed score.
type ConstantScoreQuery struct {
	Child Query
	Score float64
}

func (q *ConstantScoreQuery) String() string {
	return fmt.Sprintf("Constant(%s, %g)", q.Child, q.Score)
}

func (q *ConstantScoreQuery) Normalize() Query {
	child := q.Child.Normalize()
	if isNull(child) {
		return NullQuery{}
	}
	return &ConstantScoreQuery{Child: child, Score: q.Score}
}

func (q *ConstantScoreQuery) Matcher(s *Searcher) (Matcher, error) {
	child, err := q.Child.Matcher(s)
	if err != nil {
		return nil, err
	}
	return NewConstantScoreMatcher(child, q.Score), nil
}

// BoostQuery multiplies the child's scores.
type BoostQuery struct {
	Child Query
	Boost float64
}

func (q *BoostQuery) String() string {
	return fmt.Sprintf("(%s)^%g", q.Child, q.Boost)
}

func (q *BoostQuery) Normalize() Query {
	child := q.Child.Normalize()
	if isNull(child) {
		return NullQuery{}
	}
	if q.Boost == 1 {
		return child
	}
	return &BoostQuery{Child: child, Boost: q.Boost}
}

func (q *BoostQuery) Matcher(s *Searcher) (Matcher, error) {
	child, err := q.Child.Matcher(s)
	if err != nil {
		return nil, err
	}
	return NewBoostMatcher(child, q.Boost), nil
}
