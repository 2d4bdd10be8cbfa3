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

package search_test

import (
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/quillindex/quill/index"
	"github.com/quillindex/quill/schema"
	"github.com/quillindex/quill/search"
	"github.com/quillindex/quill/store"
)

// buildIndex commits docs into a fresh in-memory index and returns a
// searcher over it.
func buildIndex(t *testing.T, sch *schema.Schema, docs []index.Document) (*index.Index, *search.Searcher) {
	t.Helper()
	ix, err := index.Create(store.NewMemStorage(), sch)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ix.Close() })

	w, err := ix.Writer()
	require.NoError(t, err)
	for _, doc := range docs {
		require.NoError(t, w.AddDocument(doc))
	}
	require.NoError(t, w.Commit())

	r, err := ix.Reader()
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })
	return ix, search.NewSearcher(r)
}

func quickstartSchema(t *testing.T) *schema.Schema {
	t.Helper()
	sch, err := schema.New(
		schema.TEXT("title", schema.Stored()),
		schema.ID("path", schema.Stored(), schema.Unique()),
		schema.TEXT("content"),
	)
	require.NoError(t, err)
	return sch
}

func TestQuickstartTermSearch(t *testing.T) {
	_, s := buildIndex(t, quickstartSchema(t), []index.Document{
		{"title": "First document", "path": "/a",
			"content": "This is the first document we've added"},
		{"title": "Second document", "path": "/b",
			"content": "The second one is even more interesting"},
	})

	res, err := s.Search(search.NewTerm("content", "first"))
	require.NoError(t, err)
	require.Equal(t, 1, res.Len())

	fields, err := res.Stored(0)
	require.NoError(t, err)
	require.Equal(t, "/a", fields["path"])

	total, exact := res.Total()
	require.True(t, exact)
	require.Equal(t, uint64(1), total)
}

func TestPhraseSlop(t *testing.T) {
	_, s := buildIndex(t, quickstartSchema(t), []index.Document{
		{"path": "/m", "content": "Mary had a little lamb"},
	})

	cases := []struct {
		terms []string
		slop  int
		hits  int
	}{
		{[]string{"little", "lamb"}, 1, 1},
		{[]string{"little", "lamb"}, 0, 1},
		{[]string{"mary", "lamb"}, 1, 0},
		{[]string{"mary", "lamb"}, 4, 1},
		{[]string{"mary", "little", "lamb"}, 2, 1},
		{[]string{"lamb", "mary"}, 4, 0},
	}
	for _, tc := range cases {
		q := &search.PhraseQuery{Field: "content", Terms: tc.terms, Slop: tc.slop}
		res, err := s.Search(q)
		require.NoError(t, err)
		require.Equalf(t, tc.hits, res.Len(), "%v slop=%d", tc.terms, tc.slop)
	}
}

func TestBooleanAlgebra(t *testing.T) {
	_, s := buildIndex(t, quickstartSchema(t), []index.Document{
		{"path": "/1", "content": "apple pie"},
		{"path": "/2", "content": "apple"},
	})

	res, err := s.Search(search.NewAnd(
		search.NewTerm("content", "apple"), search.NewTerm("content", "pie")))
	require.NoError(t, err)
	require.Equal(t, 1, res.Len())
	fields, _ := res.Stored(0)
	require.Equal(t, "/1", fields["path"])

	res, err = s.Search(search.NewOr(
		search.NewTerm("content", "apple"), search.NewTerm("content", "pie")))
	require.NoError(t, err)
	require.Equal(t, 2, res.Len())

	res, err = s.Search(search.NewAndNot(
		search.NewTerm("content", "apple"), search.NewTerm("content", "pie")))
	require.NoError(t, err)
	require.Equal(t, 1, res.Len())
	fields, _ = res.Stored(0)
	require.Equal(t, "/2", fields["path"])

	// Not inside an And normalizes to AndNot
	res, err = s.Search(search.NewAnd(
		search.NewTerm("content", "apple"),
		search.NewNot(search.NewTerm("content", "pie"))))
	require.NoError(t, err)
	require.Equal(t, 1, res.Len())
	fields, _ = res.Stored(0)
	require.Equal(t, "/2", fields["path"])

	// standalone Not runs against the live-docs universe
	res, err = s.Search(search.NewNot(search.NewTerm("content", "pie")))
	require.NoError(t, err)
	require.Equal(t, 1, res.Len())
}

func TestAndMaybeAndRequire(t *testing.T) {
	_, s := buildIndex(t, quickstartSchema(t), []index.Document{
		{"path": "/1", "content": "apple pie crust"},
		{"path": "/2", "content": "apple tart"},
	})

	// AndMaybe matches everything the required side does
	res, err := s.Search(search.NewAndMaybe(
		search.NewTerm("content", "apple"), search.NewTerm("content", "pie")))
	require.NoError(t, err)
	require.Equal(t, 2, res.Len())
	// the doc with the optional match scores higher
	fields, _ := res.Stored(0)
	require.Equal(t, "/1", fields["path"])

	// Require matches the intersection
	res, err = s.Search(&search.RequireQuery{
		Scored:   search.NewTerm("content", "apple"),
		Required: search.NewTerm("content", "pie"),
	})
	require.NoError(t, err)
	require.Equal(t, 1, res.Len())
}

func TestNestedParentAndChildren(t *testing.T) {
	sch, err := schema.New(
		schema.ID("kind", schema.Stored()),
		schema.ID("name", schema.Stored()),
	)
	require.NoError(t, err)

	ix, err := index.Create(store.NewMemStorage(), sch)
	require.NoError(t, err)
	defer func() { _ = ix.Close() }()

	w, err := ix.Writer()
	require.NoError(t, err)
	require.NoError(t, w.Group(func() error {
		if err := w.AddDocument(index.Document{"kind": "class", "name": "Index"}); err != nil {
			return err
		}
		if err := w.AddDocument(index.Document{"kind": "method", "name": "add"}); err != nil {
			return err
		}
		return w.AddDocument(index.Document{"kind": "method", "name": "close"})
	}))
	require.NoError(t, w.Group(func() error {
		if err := w.AddDocument(index.Document{"kind": "class", "name": "Reader"}); err != nil {
			return err
		}
		return w.AddDocument(index.Document{"kind": "method", "name": "stored"})
	}))
	require.NoError(t, w.Commit())

	r, err := ix.Reader()
	require.NoError(t, err)
	defer func() { _ = r.Close() }()
	s := search.NewSearcher(r)

	res, err := s.Search(&search.NestedParentQuery{
		Parents: search.NewTerm("kind", "class"),
		Child:   search.NewTerm("name", "close"),
	})
	require.NoError(t, err)
	require.Equal(t, 1, res.Len())
	fields, err := res.Stored(0)
	require.NoError(t, err)
	require.Equal(t, "Index", fields["name"])

	// children of the parent matching name=Reader
	res, err = s.Search(&search.NestedChildrenQuery{
		Parents:      search.NewTerm("kind", "class"),
		ParentFilter: search.NewTerm("name", "Reader"),
	})
	require.NoError(t, err)
	require.Equal(t, 1, res.Len())
	fields, err = res.Stored(0)
	require.NoError(t, err)
	require.Equal(t, "stored", fields["name"])
}

func sortedSchema(t *testing.T) *schema.Schema {
	t.Helper()
	sch, err := schema.New(
		schema.ID("path", schema.Stored(), schema.Unique()),
		schema.NUMERIC("price", schema.Sortable(), schema.Stored()),
		schema.TEXT("content"),
	)
	require.NoError(t, err)
	return sch
}

func TestSortByNumericColumn(t *testing.T) {
	_, s := buildIndex(t, sortedSchema(t), []index.Document{
		{"path": "/a", "price": 20, "content": "widget"},
		{"path": "/b", "price": 10, "content": "widget"},
		{"path": "/c", "price": 15, "content": "widget"},
	})

	prices := func(res *search.Results) []int64 {
		var out []int64
		for i := range res.Hits() {
			fields, err := res.Stored(i)
			require.NoError(t, err)
			out = append(out, int64(asInt(t, fields["price"])))
		}
		return out
	}

	res, err := s.Search(&search.EveryQuery{}, search.WithSortByField("price", false))
	require.NoError(t, err)
	require.Equal(t, []int64{10, 15, 20}, prices(res))

	res, err = s.Search(&search.EveryQuery{}, search.WithSortByField("price", true))
	require.NoError(t, err)
	require.Equal(t, []int64{20, 15, 10}, prices(res))
}

func asInt(t *testing.T, v interface{}) int64 {
	t.Helper()
	switch n := v.(type) {
	case int64:
		return n
	case uint64:
		return int64(n)
	default:
		t.Fatalf("unexpected numeric type %T", v)
		return 0
	}
}

func TestNumericRange(t *testing.T) {
	_, s := buildIndex(t, sortedSchema(t), []index.Document{
		{"path": "/a", "price": 20, "content": "widget"},
		{"path": "/b", "price": 10, "content": "widget"},
		{"path": "/c", "price": 15, "content": "widget"},
	})

	res, err := s.Search(&search.NumericRangeQuery{
		Field: "price", Lo: 12, Hi: 20, IncHi: true,
	})
	require.NoError(t, err)
	require.Equal(t, 2, res.Len())

	res, err = s.Search(&search.NumericRangeQuery{
		Field: "price", Lo: 12, Hi: 20,
	})
	require.NoError(t, err)
	require.Equal(t, 1, res.Len())

	res, err = s.Search(&search.NumericRangeQuery{Field: "price", Lo: nil, Hi: 15, IncHi: true})
	require.NoError(t, err)
	require.Equal(t, 2, res.Len())
}

func TestTopKMatchesBruteForce(t *testing.T) {
	words := []string{"apple", "banana", "cherry"}
	var docs []index.Document
	for i := 0; i < 30; i++ {
		content := ""
		for j, w := range words {
			for k := 0; k < 1+(i*(j+1))%7; k++ {
				content += w + " "
			}
		}
		docs = append(docs, index.Document{
			"path": fmt.Sprintf("/%02d", i), "content": content,
		})
	}
	_, s := buildIndex(t, quickstartSchema(t), docs)

	q := search.NewOr(
		search.NewTerm("content", "apple"),
		search.NewTerm("content", "banana"),
	)

	full, err := s.Search(q, search.WithLimit(0))
	require.NoError(t, err)
	expected := append([]search.Hit(nil), full.Hits()...)
	sort.SliceStable(expected, func(i, j int) bool {
		if expected[i].Score != expected[j].Score {
			return expected[i].Score > expected[j].Score
		}
		return expected[i].DocNum < expected[j].DocNum
	})

	topK, err := s.Search(q, search.WithLimit(5))
	require.NoError(t, err)
	require.Equal(t, 5, topK.Len())
	for i, hit := range topK.Hits() {
		require.Equal(t, expected[i].DocNum, hit.DocNum, "rank %d", i)
		require.InDelta(t, expected[i].Score, hit.Score, 1e-9)
	}
}

func TestExpandingQueries(t *testing.T) {
	_, s := buildIndex(t, quickstartSchema(t), []index.Document{
		{"path": "/1", "content": "search searcher searching seared"},
		{"path": "/2", "content": "sea shells"},
	})

	res, err := s.Search(&search.PrefixQuery{Field: "content", Prefix: "search"})
	require.NoError(t, err)
	require.Equal(t, 1, res.Len())

	res, err = s.Search(&search.PrefixQuery{Field: "content", Prefix: "sea"})
	require.NoError(t, err)
	require.Equal(t, 2, res.Len())

	res, err = s.Search(&search.WildcardQuery{Field: "content", Pattern: "s*ells"})
	require.NoError(t, err)
	require.Equal(t, 1, res.Len())

	res, err = s.Search(&search.RegexpQuery{Field: "content", Expr: "sear(ch|ed)"})
	require.NoError(t, err)
	require.Equal(t, 1, res.Len())

	res, err = s.Search(&search.FuzzyQuery{Field: "content", Text: "shelly", MaxEdits: 2})
	require.NoError(t, err)
	require.Equal(t, 1, res.Len())
}

func TestTermCap(t *testing.T) {
	var docs []index.Document
	for i := 0; i < 20; i++ {
		docs = append(docs, index.Document{
			"path": fmt.Sprintf("/%d", i), "content": fmt.Sprintf("word%02d", i),
		})
	}
	ix, _ := buildIndex(t, quickstartSchema(t), docs)

	r, err := ix.Reader()
	require.NoError(t, err)
	defer func() { _ = r.Close() }()
	s := search.NewSearcher(r, search.WithTermCap(5))

	_, err = s.Search(&search.PrefixQuery{Field: "content", Prefix: "word"})
	require.ErrorIs(t, err, index.ErrTooManyTerms)
}

func TestFilterAndMask(t *testing.T) {
	_, s := buildIndex(t, quickstartSchema(t), []index.Document{
		{"path": "/1", "content": "apple red"},
		{"path": "/2", "content": "apple green"},
		{"path": "/3", "content": "apple blue"},
	})

	res, err := s.Search(search.NewTerm("content", "apple"),
		search.WithFilter(search.NewTerm("content", "green")))
	require.NoError(t, err)
	require.Equal(t, 1, res.Len())

	res, err = s.Search(search.NewTerm("content", "apple"),
		search.WithMask(search.NewTerm("content", "green")))
	require.NoError(t, err)
	require.Equal(t, 2, res.Len())
}

func facetSchema(t *testing.T) *schema.Schema {
	t.Helper()
	sch, err := schema.New(
		schema.ID("path", schema.Stored(), schema.Unique()),
		schema.ID("category", schema.Stored(), schema.Sortable()),
		schema.TEXT("content"),
	)
	require.NoError(t, err)
	return sch
}

func TestFacetGrouping(t *testing.T) {
	_, s := buildIndex(t, facetSchema(t), []index.Document{
		{"path": "/1", "category": "fruit", "content": "apple"},
		{"path": "/2", "category": "fruit", "content": "banana apple"},
		{"path": "/3", "category": "veg", "content": "carrot apple"},
	})

	res, err := s.Search(search.NewTerm("content", "apple"),
		search.WithGroupBy("bycat", &search.FieldFacet{Field: "category"}, nil))
	require.NoError(t, err)

	groups := res.Groups("bycat")
	require.Len(t, groups, 2)
	require.Len(t, groups["fruit"], 2)
	require.Len(t, groups["veg"], 1)

	// counting facet map
	res, err = s.Search(search.NewTerm("content", "apple"),
		search.WithGroupBy("bycat", &search.FieldFacet{Field: "category"}, search.Count))
	require.NoError(t, err)
	require.Equal(t, 2, res.Groups("bycat")["fruit"])
	require.Equal(t, 1, res.Groups("bycat")["veg"])
}

func TestCollapse(t *testing.T) {
	_, s := buildIndex(t, facetSchema(t), []index.Document{
		{"path": "/1", "category": "fruit", "content": "apple apple apple"},
		{"path": "/2", "category": "fruit", "content": "apple"},
		{"path": "/3", "category": "veg", "content": "apple carrot"},
	})

	res, err := s.Search(search.NewTerm("content", "apple"),
		search.WithCollapse(&search.FieldFacet{Field: "category"}, 1))
	require.NoError(t, err)
	require.Equal(t, 2, res.Len())
	require.Equal(t, 1, res.Collapsed())
}

func TestMatchedTerms(t *testing.T) {
	_, s := buildIndex(t, quickstartSchema(t), []index.Document{
		{"path": "/1", "content": "apple pie"},
		{"path": "/2", "content": "apple"},
	})

	res, err := s.Search(search.NewOr(
		search.NewTerm("content", "apple"), search.NewTerm("content", "pie")),
		search.WithTerms())
	require.NoError(t, err)
	require.Equal(t, 2, res.Len())
	for _, hit := range res.Hits() {
		require.NotEmpty(t, hit.Terms)
		fields, err := s.Document(hit.DocNum)
		require.NoError(t, err)
		if fields["path"] == "/1" {
			require.Len(t, hit.Terms, 2)
		} else {
			require.Equal(t, []search.Term{{Field: "content", Text: "apple"}}, hit.Terms)
		}
	}
}

func TestTimeLimit(t *testing.T) {
	var docs []index.Document
	for i := 0; i < 200; i++ {
		docs = append(docs, index.Document{
			"path": fmt.Sprintf("/%d", i), "content": "common filler words",
		})
	}
	_, s := buildIndex(t, quickstartSchema(t), docs)

	res, err := s.Search(search.NewTerm("content", "common"),
		search.WithTimeLimit(time.Nanosecond), search.WithLimit(0))
	require.ErrorIs(t, err, search.ErrTimeLimit)
	require.NotNil(t, res)
	require.Less(t, res.Len(), 200, "partial results expected")
	require.NotZero(t, res.Len(), "partial results must be retrievable")
}

func TestKeyTerms(t *testing.T) {
	sch, err := schema.New(
		schema.ID("path", schema.Stored(), schema.Unique()),
		schema.TEXT("content", schema.WithVector()),
	)
	require.NoError(t, err)
	_, s := buildIndex(t, sch, []index.Document{
		{"path": "/1", "content": "quantum quantum quantum entanglement theory"},
		{"path": "/2", "content": "cooking recipes"},
	})

	res, err := s.Search(search.NewTerm("content", "entanglement"))
	require.NoError(t, err)
	require.Equal(t, 1, res.Len())

	terms, err := s.KeyTerms([]uint64{res.At(0).DocNum}, "content", 2)
	require.NoError(t, err)
	require.Len(t, terms, 2)
	require.Equal(t, "quantum", terms[0])
}

func TestDeleteByQuery(t *testing.T) {
	ix, _ := buildIndex(t, quickstartSchema(t), []index.Document{
		{"path": "/1", "content": "apple pie"},
		{"path": "/2", "content": "apple"},
		{"path": "/3", "content": "banana"},
	})

	w, err := ix.Writer()
	require.NoError(t, err)
	n, err := search.DeleteByQuery(w, search.NewTerm("content", "apple"))
	require.NoError(t, err)
	require.Equal(t, 2, n)
	require.NoError(t, w.Commit())

	count, err := ix.DocCount()
	require.NoError(t, err)
	require.Equal(t, uint64(1), count)

	r, err := ix.Reader()
	require.NoError(t, err)
	defer func() { _ = r.Close() }()
	res, err := search.NewSearcher(r).Search(search.NewTerm("content", "banana"))
	require.NoError(t, err)
	require.Equal(t, 1, res.Len())
}

func TestMergePreservesResults(t *testing.T) {
	sch := quickstartSchema(t)
	ix, err := index.Create(store.NewMemStorage(), sch)
	require.NoError(t, err)
	defer func() { _ = ix.Close() }()

	// two generations, two segments
	for _, batch := range [][]index.Document{
		{{"path": "/1", "content": "apple pie"}, {"path": "/2", "content": "apple"}},
		{{"path": "/3", "content": "banana apple"}, {"path": "/4", "content": "cherry"}},
	} {
		w, err := ix.Writer()
		require.NoError(t, err)
		for _, doc := range batch {
			require.NoError(t, w.AddDocument(doc))
		}
		require.NoError(t, w.Commit(index.NoMerge()))
	}

	query := search.NewTerm("content", "apple")

	r, err := ix.Reader()
	require.NoError(t, err)
	s := search.NewSearcher(r)
	before, err := s.Search(query, search.WithLimit(0))
	require.NoError(t, err)
	var beforePaths []string
	for i := range before.Hits() {
		fields, _ := before.Stored(i)
		beforePaths = append(beforePaths, fields["path"].(string))
	}
	require.NoError(t, r.Close())

	// optimize and compare
	w, err := ix.Writer()
	require.NoError(t, err)
	require.NoError(t, w.Commit(index.Optimize()))

	r, err = ix.Reader()
	require.NoError(t, err)
	defer func() { _ = r.Close() }()
	require.Len(t, r.Segments(), 1)
	after, err := search.NewSearcher(r).Search(query, search.WithLimit(0))
	require.NoError(t, err)
	var afterPaths []string
	for i := range after.Hits() {
		fields, _ := after.Stored(i)
		afterPaths = append(afterPaths, fields["path"].(string))
	}
	require.ElementsMatch(t, beforePaths, afterPaths)
}
