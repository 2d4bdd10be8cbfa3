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

package index

import (
	"fmt"
	"sort"

	"github.com/RoaringBitmap/roaring/v2/roaring64"
	"github.com/blevesearch/vellum"

	"github.com/quillindex/quill/schema"
	"github.com/quillindex/quill/segment"
)

// Reader is a snapshot view over the segments of one generation. Each
// segment is assigned a document-number base so external docnums are
// globally ordered; a reader never observes commits made after it was
// opened. Safe for concurrent use.
type Reader struct {
	ix     *Index
	toc    *TOC
	segs   []*segment.Segment
	bases  []uint64
	maxDoc uint64
	closed bool
}

// SegmentView pairs a pinned segment with its docnum base.
type SegmentView struct {
	Seg  *segment.Segment
	Base uint64
}

// Reader opens a snapshot over the latest generation.
func (ix *Index) Reader() (*Reader, error) {
	toc, err := ix.load()
	if err != nil {
		return nil, err
	}
	return ix.readerForTOC(toc)
}

func (ix *Index) readerForTOC(toc *TOC) (*Reader, error) {
	r := &Reader{ix: ix, toc: toc}
	for i := range toc.Segments {
		rec := &toc.Segments[i]
		seg, err := ix.acquireSegment(toc.Schema, rec)
		if err != nil {
			_ = r.Close()
			return nil, err
		}
		r.segs = append(r.segs, seg)
		r.bases = append(r.bases, r.maxDoc)
		r.maxDoc += seg.Count()
	}
	return r, nil
}

// Generation returns the generation this reader observes.
func (r *Reader) Generation() uint64 { return r.toc.Generation }

// Schema returns the snapshot's schema.
func (r *Reader) Schema() *schema.Schema { return r.toc.Schema }

// Segments returns the pinned segment views in TOC order.
func (r *Reader) Segments() []SegmentView {
	views := make([]SegmentView, len(r.segs))
	for i, seg := range r.segs {
		views[i] = SegmentView{Seg: seg, Base: r.bases[i]}
	}
	return views
}

// DocCount returns the number of live documents.
func (r *Reader) DocCount() uint64 {
	var n uint64
	for _, seg := range r.segs {
		n += seg.LiveCount()
	}
	return n
}

// MaxDoc returns one past the largest assignable external docnum.
func (r *Reader) MaxDoc() uint64 { return r.maxDoc }

// HasDeletions reports whether any segment carries deletions.
func (r *Reader) HasDeletions() bool {
	for _, seg := range r.segs {
		if seg.HasDeletions() {
			return true
		}
	}
	return false
}

// Resolve maps an external docnum onto (segment index, local docnum).
func (r *Reader) Resolve(docnum uint64) (int, uint32, error) {
	i := sort.Search(len(r.bases), func(i int) bool {
		return r.bases[i] > docnum
	}) - 1
	if i < 0 || docnum-r.bases[i] >= r.segs[i].Count() {
		return 0, 0, fmt.Errorf("docnum %d out of range", docnum)
	}
	return i, uint32(docnum - r.bases[i]), nil
}

// IsDeleted reports whether the external docnum is deleted.
func (r *Reader) IsDeleted(docnum uint64) bool {
	i, local, err := r.Resolve(docnum)
	if err != nil {
		return false
	}
	return r.segs[i].IsDeleted(local)
}

// TermInfo aggregates (doc frequency, total frequency) for (field, term)
// across all segments. Deleted documents still count, as is conventional
// for scoring statistics.
func (r *Reader) TermInfo(field string, term []byte) (segment.TermInfo, bool, error) {
	if r.toc.Schema.Field(field) == nil {
		return segment.TermInfo{}, false, fmt.Errorf("%w: %q", ErrNoSuchField, field)
	}
	var agg segment.TermInfo
	found := false
	for _, seg := range r.segs {
		info, ok, err := seg.TermInfo(field, term)
		if err != nil {
			return segment.TermInfo{}, false, err
		}
		if ok {
			agg.DocFreq += info.DocFreq
			agg.TotalFreq += info.TotalFreq
			found = true
		}
	}
	return agg, found, nil
}

// Postings returns the per-segment posting iterators of (field, term),
// rebased and in TOC order; concatenating them yields globally ascending
// docnums. Segments lacking the term are omitted.
func (r *Reader) Postings(field string, term []byte) ([]*segment.PostingsIterator, error) {
	if r.toc.Schema.Field(field) == nil {
		return nil, fmt.Errorf("%w: %q", ErrNoSuchField, field)
	}
	var its []*segment.PostingsIterator
	for i, seg := range r.segs {
		it, err := seg.PostingsIterator(field, term, r.bases[i])
		if err != nil {
			return nil, err
		}
		if it != nil && it.IsActive() {
			its = append(its, it)
		}
	}
	return its, nil
}

// StoredFields returns the stored field map of the external docnum.
func (r *Reader) StoredFields(docnum uint64) (map[string]interface{}, error) {
	i, local, err := r.Resolve(docnum)
	if err != nil {
		return nil, err
	}
	return r.segs[i].StoredFields(local)
}

// DocFieldLength returns the token count of (docnum, field).
func (r *Reader) DocFieldLength(docnum uint64, field string) int {
	i, local, err := r.Resolve(docnum)
	if err != nil {
		return 0
	}
	return r.segs[i].FieldLength(local, field)
}

// FieldLenTotal returns the collection-wide token total for field.
func (r *Reader) FieldLenTotal(field string) uint64 {
	fieldID := r.toc.Schema.FieldID(field)
	if fieldID < 0 {
		return 0
	}
	var total uint64
	for i := range r.toc.Segments {
		totals := r.toc.Segments[i].FieldLenTotals
		if fieldID < len(totals) {
			total += totals[fieldID]
		}
	}
	return total
}

// AvgFieldLength returns the mean token count of field across all
// documents.
func (r *Reader) AvgFieldLength(field string) float64 {
	if r.maxDoc == 0 {
		return 0
	}
	return float64(r.FieldLenTotal(field)) / float64(r.maxDoc)
}

// LiveDocs materializes the bitmap of all live external docnums.
func (r *Reader) LiveDocs() *roaring64.Bitmap {
	live := roaring64.New()
	for i, seg := range r.segs {
		base := r.bases[i]
		it := seg.LiveDocs().Iterator()
		for it.HasNext() {
			live.Add(base + uint64(it.Next()))
		}
	}
	return live
}

// FieldDocs materializes the bitmap of live docnums that carry a value
// for field (length > 0 or a present column entry).
func (r *Reader) FieldDocs(field string) (*roaring64.Bitmap, error) {
	def := r.toc.Schema.Field(field)
	if def == nil {
		return nil, fmt.Errorf("%w: %q", ErrNoSuchField, field)
	}
	docs := roaring64.New()
	fieldID := r.toc.Schema.FieldID(field)
	for i, seg := range r.segs {
		base := r.bases[i]
		col := seg.Column(field)
		it := seg.LiveDocs().Iterator()
		for it.HasNext() {
			local := it.Next()
			if col != nil {
				if col.Present(local) {
					docs.Add(base + uint64(local))
				}
			} else if seg.Lengths().Length(fieldID, local) > 0 {
				docs.Add(base + uint64(local))
			}
		}
	}
	return docs, nil
}

// Vector returns the forward vector of (docnum, field).
func (r *Reader) Vector(docnum uint64, field string) ([]segment.VectorEntry, error) {
	i, local, err := r.Resolve(docnum)
	if err != nil {
		return nil, err
	}
	return r.segs[i].Vector(local, field)
}

// ColumnValue returns docnum's column value for field.
func (r *Reader) ColumnValue(docnum uint64, field string) (segment.ColumnValue, error) {
	i, local, err := r.Resolve(docnum)
	if err != nil {
		return segment.ColumnValue{}, err
	}
	col := r.segs[i].Column(field)
	if col == nil {
		return segment.ColumnValue{}, nil
	}
	return col.Value(local), nil
}

// HasColumn reports whether field carries a column.
func (r *Reader) HasColumn(field string) bool {
	def := r.toc.Schema.Field(field)
	return def != nil && def.Column != schema.NoColumn
}

// expand collects the union of terms produced by per-segment dictionary
// iterators, deduplicated and sorted, failing with ErrTooManyTerms past
// cap.
func (r *Reader) expand(field string, limit int,
	open func(d *segment.Dictionary) (*segment.DictIterator, error)) ([][]byte, error) {
	if r.toc.Schema.Field(field) == nil {
		return nil, fmt.Errorf("%w: %q", ErrNoSuchField, field)
	}
	seen := make(map[string]bool)
	for _, seg := range r.segs {
		dict, err := seg.Dictionary(field)
		if err != nil {
			return nil, err
		}
		itr, err := open(dict)
		if err != nil {
			return nil, err
		}
		for {
			entry, err := itr.Next()
			if err != nil {
				return nil, err
			}
			if entry == nil {
				break
			}
			if !seen[string(entry.Term)] {
				seen[string(entry.Term)] = true
				if limit > 0 && len(seen) > limit {
					return nil, fmt.Errorf("field %q: %w", field, ErrTooManyTerms)
				}
			}
		}
	}
	terms := make([][]byte, 0, len(seen))
	for t := range seen {
		terms = append(terms, []byte(t))
	}
	sort.Slice(terms, func(i, j int) bool {
		return string(terms[i]) < string(terms[j])
	})
	return terms, nil
}

// TermsWithPrefix returns every term of field beginning with prefix.
func (r *Reader) TermsWithPrefix(field string, prefix []byte, limit int) ([][]byte, error) {
	return r.expand(field, limit, func(d *segment.Dictionary) (*segment.DictIterator, error) {
		return d.PrefixIterator(prefix)
	})
}

// TermsInRange returns every term of field in [lo, hi); nil bounds are
// open.
func (r *Reader) TermsInRange(field string, lo, hi []byte, limit int) ([][]byte, error) {
	return r.expand(field, limit, func(d *segment.Dictionary) (*segment.DictIterator, error) {
		return d.RangeIterator(lo, hi)
	})
}

// TermsMatching returns every term of field accepted by the automaton.
func (r *Reader) TermsMatching(field string, a vellum.Automaton, limit int) ([][]byte, error) {
	return r.expand(field, limit, func(d *segment.Dictionary) (*segment.DictIterator, error) {
		return d.AutomatonIterator(a, nil, nil)
	})
}

// FieldTerms returns every term of field.
func (r *Reader) FieldTerms(field string, limit int) ([][]byte, error) {
	return r.expand(field, limit, func(d *segment.Dictionary) (*segment.DictIterator, error) {
		return d.Iterator()
	})
}

// Refresh returns a reader over the latest generation, reusing this
// reader's segments where still current. The receiver stays valid; when a
// newer generation exists the caller should close the old reader once
// done with it. If nothing changed the receiver itself is returned.
func (r *Reader) Refresh() (*Reader, error) {
	gen, found, err := latestGeneration(r.ix.st, r.ix.name)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrEmptyIndex
	}
	if gen == r.toc.Generation {
		return r, nil
	}
	toc, err := readTOC(r.ix.st, r.ix.name, gen)
	if err != nil {
		return nil, err
	}
	return r.ix.readerForTOC(toc)
}

// Close releases the reader's segment references.
func (r *Reader) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	var err error
	for _, seg := range r.segs {
		if cerr := seg.DecRef(); err == nil {
			err = cerr
		}
	}
	r.segs = nil
	return err
}
