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
	"time"

	"github.com/RoaringBitmap/roaring/v2/roaring64"

	"github.com/quillindex/quill/index"
)

// DefaultTermCap bounds how many terms an expanding query (prefix,
// wildcard, range, fuzzy) may enumerate before failing.
const DefaultTermCap = 1024

// Searcher executes queries against one reader snapshot. It caches
// collection statistics between queries and is meant to be used from one
// goroutine; open one searcher per goroutine over a shared reader.
type Searcher struct {
	reader    *index.Reader
	weighting Weighting
	termCap   int

	idfCache map[string]float64
	live     *roaring64.Bitmap
}

// SearcherOption configures a Searcher.
type SearcherOption func(*Searcher)

// WithWeighting selects the scoring model; BM25F is the default.
func WithWeighting(w Weighting) SearcherOption {
	return func(s *Searcher) { s.weighting = w }
}

// WithTermCap bounds expanding queries' term enumeration.
func WithTermCap(n int) SearcherOption {
	return func(s *Searcher) { s.termCap = n }
}

// NewSearcher wraps a reader snapshot.
func NewSearcher(r *index.Reader, opts ...SearcherOption) *Searcher {
	s := &Searcher{
		reader:    r,
		weighting: NewBM25F(),
		termCap:   DefaultTermCap,
		idfCache:  make(map[string]float64),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Reader returns the underlying snapshot.
func (s *Searcher) Reader() *index.Reader { return s.reader }

// IDF returns the smoothed inverse document frequency of (field, term),
// cached per searcher.
func (s *Searcher) IDF(field string, term []byte) float64 {
	key := field + "\x00" + string(term)
	if v, ok := s.idfCache[key]; ok {
		return v
	}
	info, _, err := s.reader.TermInfo(field, term)
	v := 1.0
	if err == nil {
		v = idf(s.reader.MaxDoc(), info.DocFreq)
	}
	s.idfCache[key] = v
	return v
}

// termMatcher builds the leaf matcher for (field, term).
func (s *Searcher) termMatcher(field string, term []byte) (Matcher, error) {
	its, err := s.reader.Postings(field, term)
	if err != nil {
		return nil, err
	}
	if len(its) == 0 {
		return NullMatcher(), nil
	}
	maxWeight := 0.0
	for _, it := range its {
		if w := it.MaxWeight(); w > maxWeight {
			maxWeight = w
		}
	}
	scorer, err := s.weighting.Scorer(s, field, term, maxWeight)
	if err != nil {
		return nil, err
	}
	return NewTermMatcher(Term{Field: field, Text: string(term)}, its, scorer), nil
}

func (s *Searcher) liveDocs() *roaring64.Bitmap {
	if s.live == nil {
		s.live = s.reader.LiveDocs()
	}
	return s.live
}

func (s *Searcher) liveDocsContains() func(uint64) bool {
	live := s.liveDocs()
	return live.Contains
}

// DocsForQuery materializes the docnum set matching q.
func (s *Searcher) DocsForQuery(q Query) (*roaring64.Bitmap, error) {
	m, err := q.Normalize().Matcher(s)
	if err != nil {
		return nil, err
	}
	return docsOf(m), nil
}

// Document returns the stored fields of one docnum.
func (s *Searcher) Document(docnum uint64) (map[string]interface{}, error) {
	return s.reader.StoredFields(docnum)
}

// Documents returns the stored fields of every document matching q, in
// docnum order.
func (s *Searcher) Documents(q Query) ([]map[string]interface{}, error) {
	bm, err := s.DocsForQuery(q)
	if err != nil {
		return nil, err
	}
	var docs []map[string]interface{}
	it := bm.Iterator()
	for it.HasNext() {
		fields, err := s.reader.StoredFields(it.Next())
		if err != nil {
			return nil, err
		}
		docs = append(docs, fields)
	}
	return docs, nil
}

// SearchOption adjusts one search.
type SearchOption func(*searchConfig)

type sortSpec struct {
	facet   Facet
	reverse bool
}

type groupSpec struct {
	name    string
	facet   Facet
	factory FacetMapFactory
}

type collapseSpec struct {
	facet Facet
	limit int
}

type searchConfig struct {
	limit    int
	sorts    []sortSpec
	groups   []groupSpec
	filter   Query
	mask     Query
	terms    bool
	collapse *collapseSpec
	deadline time.Duration
}

// WithLimit bounds the number of returned hits; zero or negative means
// unlimited.
func WithLimit(n int) SearchOption {
	return func(c *searchConfig) { c.limit = n }
}

// WithSortBy appends a sort key; earlier keys dominate.
func WithSortBy(f Facet, reverse bool) SearchOption {
	return func(c *searchConfig) {
		c.sorts = append(c.sorts, sortSpec{facet: f, reverse: reverse})
	}
}

// WithSortByField sorts by a sortable field's column value.
func WithSortByField(field string, reverse bool) SearchOption {
	return WithSortBy(&FieldFacet{Field: field}, reverse)
}

// WithGroupBy collects a facet grouping under name; a nil factory keeps
// ordered doc lists.
func WithGroupBy(name string, f Facet, factory FacetMapFactory) SearchOption {
	return func(c *searchConfig) {
		if factory == nil {
			factory = OrderedList
		}
		c.groups = append(c.groups, groupSpec{name: name, facet: f, factory: factory})
	}
}

// WithFilter restricts results to documents matching q.
func WithFilter(q Query) SearchOption {
	return func(c *searchConfig) { c.filter = q }
}

// WithMask hides documents matching q.
func WithMask(q Query) SearchOption {
	return func(c *searchConfig) { c.mask = q }
}

// WithTerms records, per hit, which query terms matched it.
func WithTerms() SearchOption {
	return func(c *searchConfig) { c.terms = true }
}

// WithCollapse keeps at most limit hits per facet key.
func WithCollapse(f Facet, limit int) SearchOption {
	return func(c *searchConfig) {
		c.collapse = &collapseSpec{facet: f, limit: limit}
	}
}

// WithTimeLimit aborts collection after d, returning the partial results
// together with ErrTimeLimit.
func WithTimeLimit(d time.Duration) SearchOption {
	return func(c *searchConfig) { c.deadline = d }
}

// Search runs q and collects its results.
func (s *Searcher) Search(q Query, opts ...SearchOption) (*Results, error) {
	cfg := searchConfig{limit: 10}
	for _, opt := range opts {
		opt(&cfg)
	}

	normalized := q.Normalize()
	results := &Results{searcher: s, exactTotal: true}
	if isNull(normalized) {
		return results, nil
	}

	m, err := normalized.Matcher(s)
	if err != nil {
		return nil, err
	}
	if cfg.filter != nil {
		allow, err := s.DocsForQuery(cfg.filter)
		if err != nil {
			return nil, err
		}
		m = NewFilterMatcher(m, allow)
	}
	if cfg.mask != nil {
		deny, err := s.DocsForQuery(cfg.mask)
		if err != nil {
			return nil, err
		}
		m = NewExcludeMatcher(m, deny)
	}

	// sort categorizers
	var sortCats []Categorizer
	var reverses []bool
	for _, spec := range cfg.sorts {
		cat, err := spec.facet.Categorizer(s)
		if err != nil {
			return nil, err
		}
		sortCats = append(sortCats, cat)
		reverses = append(reverses, spec.reverse)
	}

	// group categorizers and facet maps
	type groupState struct {
		spec groupSpec
		cat  Categorizer
		maps map[interface{}]FacetMap
	}
	var groupStates []groupState
	for _, spec := range cfg.groups {
		cat, err := spec.facet.Categorizer(s)
		if err != nil {
			return nil, err
		}
		groupStates = append(groupStates, groupState{
			spec: spec,
			cat:  cat,
			maps: make(map[interface{}]FacetMap),
		})
	}

	var collapseCat Categorizer
	limit := cfg.limit
	if cfg.collapse != nil {
		// collapsing can evict already-kept hits, so collect everything
		// and trim afterwards
		collapseCat, err = cfg.collapse.facet.Categorizer(s)
		if err != nil {
			return nil, err
		}
	}

	var coll collector
	switch {
	case cfg.collapse != nil:
		coll = &unlimitedCollector{}
	case len(sortCats) > 0:
		coll = newSortedCollector(limit, reverses)
	case limit > 0:
		coll = newTopKCollector(limit)
	default:
		coll = &unlimitedCollector{}
	}

	// pruning is sound only for pure score-ranked collection with no
	// side consumers that need every match
	useQuality := len(sortCats) == 0 && len(groupStates) == 0 &&
		cfg.collapse == nil && limit > 0 && m.SupportsQuality()

	var start time.Time
	if cfg.deadline > 0 {
		start = time.Now()
	}

	var timeErr error
	checked := 0
	for m.IsActive() {
		if cfg.deadline > 0 {
			checked++
			if checked%32 == 0 && time.Since(start) > cfg.deadline {
				timeErr = ErrTimeLimit
				break
			}
		}

		id := m.ID()
		score := m.Score()
		results.matched++

		hit := Hit{DocNum: id, Score: score}
		if len(sortCats) > 0 {
			hit.SortKeys = make([]interface{}, len(sortCats))
			for i, cat := range sortCats {
				hit.SortKeys[i] = cat.Keys(id, score)[0]
			}
		}
		if cfg.terms {
			hit.Terms = m.MatchingTerms(nil)
		}
		coll.collect(hit)

		for gi := range groupStates {
			g := &groupStates[gi]
			for _, key := range g.cat.Keys(id, score) {
				key = groupKey(key)
				fm := g.maps[key]
				if fm == nil {
					fm = g.spec.factory()
					g.maps[key] = fm
				}
				fm.Add(id, score)
			}
		}

		if useQuality {
			if q := coll.minQuality(); q > 0 {
				results.exactTotal = false
				m.Next()
				if !m.SkipToQuality(q) {
					break
				}
				continue
			}
		}
		m.Next()
	}

	hits := coll.results()

	if cfg.collapse != nil {
		hits, results.collapsed = collapseHits(hits, collapseCat, cfg.collapse.limit)
		if limit > 0 && len(hits) > limit {
			hits = hits[:limit]
		}
	}

	results.hits = hits
	for gi := range groupStates {
		g := &groupStates[gi]
		group := make(map[interface{}]interface{}, len(g.maps))
		for key, fm := range g.maps {
			group[key] = fm.Value()
		}
		if results.groups == nil {
			results.groups = make(map[string]map[interface{}]interface{})
		}
		results.groups[g.spec.name] = group
	}

	return results, timeErr
}

// collapseHits walks hits in rank order keeping at most limit per facet
// key; documents without a key are never collapsed.
func collapseHits(hits []Hit, cat Categorizer, limit int) ([]Hit, int) {
	if limit <= 0 {
		limit = 1
	}
	// rank by score when no sort keys are present
	sort.SliceStable(hits, func(i, j int) bool {
		return scoreBetter(hits[i], hits[j])
	})
	counts := make(map[interface{}]int)
	kept := hits[:0]
	collapsed := 0
	for _, hit := range hits {
		key := groupKey(cat.Keys(hit.DocNum, hit.Score)[0])
		if key == nil {
			kept = append(kept, hit)
			continue
		}
		if counts[key] >= limit {
			collapsed++
			continue
		}
		counts[key]++
		kept = append(kept, hit)
	}
	return kept, collapsed
}

// KeyTerms extracts the n most characteristic terms of field across the
// given documents, using their forward vectors weighted by inverse
// document frequency.
func (s *Searcher) KeyTerms(docnums []uint64, field string, n int) ([]string, error) {
	def := s.reader.Schema().Field(field)
	if def == nil || !def.Vector {
		return nil, fmt.Errorf("%w: field %q stores no term vectors", ErrQuery, field)
	}
	freqs := make(map[string]uint64)
	for _, docnum := range docnums {
		vec, err := s.reader.Vector(docnum, field)
		if err != nil {
			return nil, err
		}
		for _, entry := range vec {
			freqs[string(entry.Term)] += uint64(len(entry.Positions))
		}
	}
	type scored struct {
		term  string
		score float64
	}
	ranked := make([]scored, 0, len(freqs))
	for term, freq := range freqs {
		score := float64(freq) * s.IDF(field, []byte(term))
		ranked = append(ranked, scored{term: term, score: score})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].score != ranked[j].score {
			return ranked[i].score > ranked[j].score
		}
		return ranked[i].term < ranked[j].term
	})
	if n > 0 && len(ranked) > n {
		ranked = ranked[:n]
	}
	terms := make([]string, len(ranked))
	for i := range ranked {
		terms[i] = ranked[i].term
	}
	return terms, nil
}

// DeleteByQuery marks every document matching q as deleted in the
// writer's pending set, returning how many were marked. The evaluation
// runs against the writer's base snapshot.
func DeleteByQuery(w *index.Writer, q Query) (int, error) {
	r, err := w.Reader()
	if err != nil {
		return 0, err
	}
	defer func() { _ = r.Close() }()
	s := NewSearcher(r)
	bm, err := s.DocsForQuery(q)
	if err != nil {
		return 0, err
	}
	return w.DeleteDocs(bm)
}
