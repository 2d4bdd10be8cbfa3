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
	"math"

	"github.com/quillindex/quill/index"
)

// Weighting is a scoring model: it builds a Scorer per (field, term) when
// the term's matcher is instantiated, pre-computing collection-level
// factors at that point.
type Weighting interface {
	Scorer(s *Searcher, field string, term []byte, maxWeight float64) (Scorer, error)
}

// Scorer scores one term's occurrences. The quality methods support
// block-max pruning: BlockQuality converts a posting block's max weight
// into a score upper bound and WeightForQuality inverts it.
type Scorer interface {
	Score(id uint64, weight float64) float64
	SupportsBlockQuality() bool
	MaxQuality() float64
	BlockQuality(blockMaxWeight float64) float64
	WeightForQuality(quality float64) float64
}

// idf is the classic smoothed inverse document frequency.
func idf(docCount, docFreq uint64) float64 {
	return math.Log(float64(docCount)/float64(docFreq+1)) + 1
}

// BM25F is the default model. B dampens length normalization per field
// (FieldB overrides the global B by field name); K1 controls term
// frequency saturation.
type BM25F struct {
	B      float64
	K1     float64
	FieldB map[string]float64
}

// NewBM25F returns BM25F with the conventional defaults.
func NewBM25F() *BM25F {
	return &BM25F{B: 0.75, K1: 1.2}
}

func bm25(idf, tf, fl, avgfl, B, K1 float64) float64 {
	return idf * ((tf * (K1 + 1)) / (tf + K1*((1-B)+B*fl/avgfl)))
}

func (w *BM25F) Scorer(s *Searcher, field string, term []byte, maxWeight float64) (Scorer, error) {
	b := w.B
	if fb, ok := w.FieldB[field]; ok {
		b = fb
	}
	termIDF := s.IDF(field, term)
	avgfl := s.Reader().AvgFieldLength(field)
	return &bm25Scorer{
		reader: s.Reader(),
		field:  field,
		idf:    termIDF,
		avgfl:  avgfl,
		b:      b,
		k1:     w.K1,
		max:    maxWeight * termIDF,
	}, nil
}

type bm25Scorer struct {
	reader *index.Reader
	field  string
	idf    float64
	avgfl  float64
	b      float64
	k1     float64
	max    float64
}

func (sc *bm25Scorer) Score(id uint64, weight float64) float64 {
	if sc.avgfl <= 0 {
		return sc.idf * weight
	}
	fl := float64(sc.reader.DocFieldLength(id, sc.field))
	return bm25(sc.idf, weight, fl, sc.avgfl, sc.b, sc.k1)
}

func (sc *bm25Scorer) SupportsBlockQuality() bool { return true }
func (sc *bm25Scorer) MaxQuality() float64        { return sc.max }

func (sc *bm25Scorer) BlockQuality(blockMaxWeight float64) float64 {
	return blockMaxWeight * sc.idf
}

func (sc *bm25Scorer) WeightForQuality(quality float64) float64 {
	return quality / sc.idf
}

// TFIDF scores weight times inverse document frequency.
type TFIDF struct{}

func (TFIDF) Scorer(s *Searcher, field string, term []byte, maxWeight float64) (Scorer, error) {
	termIDF := s.IDF(field, term)
	return &linearScorer{factor: termIDF, max: maxWeight * termIDF}, nil
}

// Frequency scores the raw term weight.
type Frequency struct{}

func (Frequency) Scorer(s *Searcher, field string, term []byte, maxWeight float64) (Scorer, error) {
	return &linearScorer{factor: 1, max: maxWeight}, nil
}

// linearScorer scales the weight by a constant factor, which keeps block
// bounds exact.
type linearScorer struct {
	factor float64
	max    float64
}

func (sc *linearScorer) Score(_ uint64, weight float64) float64 { return weight * sc.factor }
func (sc *linearScorer) SupportsBlockQuality() bool             { return true }
func (sc *linearScorer) MaxQuality() float64                    { return sc.max }
func (sc *linearScorer) BlockQuality(blockMax float64) float64  { return blockMax * sc.factor }
func (sc *linearScorer) WeightForQuality(q float64) float64     { return q / sc.factor }

// MultiWeighting selects a model per field, with a default for the rest.
type MultiWeighting struct {
	Default Weighting
	Fields  map[string]Weighting
}

func (w *MultiWeighting) Scorer(s *Searcher, field string, term []byte, maxWeight float64) (Scorer, error) {
	if model, ok := w.Fields[field]; ok {
		return model.Scorer(s, field, term, maxWeight)
	}
	return w.Default.Scorer(s, field, term, maxWeight)
}

// ReverseWeighting inverts another model's ordering. Block pruning is
// disabled since bounds become floors.
type ReverseWeighting struct {
	Inner Weighting
}

func (w *ReverseWeighting) Scorer(s *Searcher, field string, term []byte, maxWeight float64) (Scorer, error) {
	inner, err := w.Inner.Scorer(s, field, term, maxWeight)
	if err != nil {
		return nil, err
	}
	return &reverseScorer{inner: inner}, nil
}

type reverseScorer struct {
	inner Scorer
}

func (sc *reverseScorer) Score(id uint64, weight float64) float64 {
	return 0 - sc.inner.Score(id, weight)
}
func (sc *reverseScorer) SupportsBlockQuality() bool            { return false }
func (sc *reverseScorer) MaxQuality() float64                   { return 0 }
func (sc *reverseScorer) BlockQuality(float64) float64          { return 0 }
func (sc *reverseScorer) WeightForQuality(q float64) float64    { return q }

// FunctionWeighting delegates scoring to a user callback receiving the
// matcher state.
type FunctionWeighting struct {
	Fn func(r *index.Reader, field string, term []byte, id uint64, weight float64) float64
}

func (w *FunctionWeighting) Scorer(s *Searcher, field string, term []byte, _ float64) (Scorer, error) {
	return &functionScorer{r: s.Reader(), field: field, term: term, fn: w.Fn}, nil
}

type functionScorer struct {
	r     *index.Reader
	field string
	term  []byte
	fn    func(r *index.Reader, field string, term []byte, id uint64, weight float64) float64
}

func (sc *functionScorer) Score(id uint64, weight float64) float64 {
	return sc.fn(sc.r, sc.field, sc.term, id, weight)
}
func (sc *functionScorer) SupportsBlockQuality() bool         { return false }
func (sc *functionScorer) MaxQuality() float64                { return 0 }
func (sc *functionScorer) BlockQuality(float64) float64       { return 0 }
func (sc *functionScorer) WeightForQuality(q float64) float64 { return q }
