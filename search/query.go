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

// Package search implements the query algebra, the streaming matcher
// combinators it compiles into, the scoring models, and the collectors
// that turn a matcher into a result set.
package search

import (
	"fmt"
	"strings"
)

// Term names one (field, text) pair.
type Term struct {
	Field string
	Text  string
}

func (t Term) String() string {
	return t.Field + ":" + t.Text
}

// Query is the algebraic representation of a search. Queries are
// immutable values: Normalize returns a simplified copy, and Matcher
// compiles the query against a searcher's snapshot. Two queries are
// interchangeable iff their String forms are equal.
type Query interface {
	fmt.Stringer
	Normalize() Query
	Matcher(s *Searcher) (Matcher, error)
}

// NullQuery matches nothing; the normal form of empty compounds.
type NullQuery struct{}

func (NullQuery) String() string    { return "<null>" }
func (NullQuery) Normalize() Query  { return NullQuery{} }
func (NullQuery) Matcher(*Searcher) (Matcher, error) {
	return NullMatcher(), nil
}

// Equal reports whether two queries are interchangeable.
func Equal(a, b Query) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.String() == b.String()
}

func joinQueries(qs []Query) string {
	parts := make([]string, len(qs))
	for i, q := range qs {
		parts[i] = q.String()
	}
	return strings.Join(parts, ", ")
}

func normalizeAll(qs []Query) []Query {
	out := make([]Query, 0, len(qs))
	for _, q := range qs {
		out = append(out, q.Normalize())
	}
	return out
}

func isNull(q Query) bool {
	_, ok := q.(NullQuery)
	return ok
}
