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
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/RoaringBitmap/roaring/v2/roaring64"
	"golang.org/x/sync/errgroup"

	"github.com/quillindex/quill/analysis"
	"github.com/quillindex/quill/schema"
	"github.com/quillindex/quill/segment"
	"github.com/quillindex/quill/store"
)

// Document maps field names to values to index and/or store.
type Document = map[string]interface{}

// DefaultMemoryBudgetMB bounds the in-memory postings pool before runs
// spill to temp storage.
const DefaultMemoryBudgetMB = 128

// WriterOption configures a Writer.
type WriterOption func(*Writer)

// WithMemoryBudget sets the postings pool budget in megabytes, shared
// across the writer's pools.
func WithMemoryBudget(mb int) WriterOption {
	return func(w *Writer) { w.budgetMB = mb }
}

// WithProcs partitions buffered documents across n pools, each flushed to
// its own segment in parallel at commit.
func WithProcs(n int) WriterOption {
	return func(w *Writer) {
		if n > 0 {
			w.procs = n
		}
	}
}

// WithMergePolicy overrides the commit-time merge policy.
func WithMergePolicy(mp MergePolicy) WriterOption {
	return func(w *Writer) { w.mergePolicy = mp }
}

// CommitOption adjusts one commit.
type CommitOption func(*commitConfig)

type commitConfig struct {
	optimize bool
	clear    bool
	noMerge  bool
}

// Optimize forces a full merge down to a single segment.
func Optimize() CommitOption {
	return func(c *commitConfig) { c.optimize = true }
}

// Clear replaces the whole index with only this writer's content.
func Clear() CommitOption {
	return func(c *commitConfig) { c.clear = true }
}

// NoMerge skips the merge policy for this commit.
func NoMerge() CommitOption {
	return func(c *commitConfig) { c.noMerge = true }
}

type bufRef struct {
	pool int
	doc  uint32
}

// Writer buffers added and deleted documents and turns them into a new
// generation on Commit. One writer at a time per index, enforced by the
// storage lock; a Writer itself is not safe for concurrent use.
type Writer struct {
	ix   *Index
	lock store.Lock
	toc  *TOC
	sch  *schema.Schema

	budgetMB    int
	procs       int
	mergePolicy MergePolicy

	analyzers map[int]analysis.Analyzer

	pools    []*pool
	rr       int
	groupDep int
	groupIdx int

	// field\x00term of unique fields -> buffered doc holding it
	uniqueCache map[string]bufRef

	// pending deletions of committed docs, by segment id
	pendingDeletes map[uint64]*roaring.Bitmap

	baseReader *Reader

	closed bool
}

// Writer acquires the write lock and returns a writer positioned on the
// latest generation.
func (ix *Index) Writer(opts ...WriterOption) (*Writer, error) {
	lock, err := ix.st.Lock(lockName(ix.name))
	if err != nil {
		if errors.Is(err, store.ErrLocked) {
			return nil, fmt.Errorf("index %q: %w", ix.name, ErrLocked)
		}
		return nil, err
	}

	w := &Writer{
		ix:             ix,
		lock:           lock,
		budgetMB:       DefaultMemoryBudgetMB,
		procs:          1,
		mergePolicy:    NewTieredMergePolicy(),
		uniqueCache:    make(map[string]bufRef),
		pendingDeletes: make(map[uint64]*roaring.Bitmap),
	}
	for _, opt := range opts {
		opt(w)
	}

	w.toc, err = ix.load()
	if err != nil {
		_ = lock.Release()
		return nil, err
	}
	w.sch = w.toc.Schema

	w.analyzers = make(map[int]analysis.Analyzer)
	for fieldID, def := range w.sch.Fields() {
		if def.Indexed() && def.Numeric == schema.NotNumeric {
			a, err := ix.analyzers.Lookup(def.Analyzer)
			if err != nil {
				_ = lock.Release()
				return nil, fmt.Errorf("field %q: %w", def.Name, err)
			}
			w.analyzers[fieldID] = a
		}
	}

	budget := int64(w.budgetMB) * 1024 * 1024 / int64(w.procs)
	for i := 0; i < w.procs; i++ {
		prefix := fmt.Sprintf("%s_w%d_p%d_", ix.name, w.toc.Generation, i)
		w.pools = append(w.pools, newPool(ix.st, w.sch, prefix, budget))
	}
	return w, nil
}

// Schema returns the schema the writer indexes under.
func (w *Writer) Schema() *schema.Schema { return w.sch }

// Reader returns a snapshot over the writer's base generation, used to
// evaluate deletions by query. The caller closes it.
func (w *Writer) Reader() (*Reader, error) {
	if w.closed {
		return nil, ErrWriterClosed
	}
	return w.ix.readerForTOC(w.toc)
}

func (w *Writer) reader() (*Reader, error) {
	if w.baseReader == nil {
		r, err := w.ix.readerForTOC(w.toc)
		if err != nil {
			return nil, err
		}
		w.baseReader = r
	}
	return w.baseReader, nil
}

// pickPool selects the pool receiving the next document.
func (w *Writer) pickPool() int {
	if w.groupDep > 0 {
		return w.groupIdx
	}
	idx := w.rr % len(w.pools)
	w.rr++
	return idx
}

// Group runs fn with every document it adds kept contiguous in one
// segment, in insertion order, so nested parent/children queries can rely
// on docnum adjacency. Groups cannot span commits.
func (w *Writer) Group(fn func() error) error {
	if w.closed {
		return ErrWriterClosed
	}
	if w.groupDep == 0 {
		w.groupIdx = w.rr % len(w.pools)
		w.rr++
	}
	w.groupDep++
	err := fn()
	w.groupDep--
	return err
}

// AddDocument buffers one document.
func (w *Writer) AddDocument(doc Document) error {
	return w.addDocument(doc, false)
}

// UpdateDocument deletes any document sharing a unique field value with
// doc, then buffers doc. Superseded documents buffered in this same
// session are dropped too.
func (w *Writer) UpdateDocument(doc Document) error {
	return w.addDocument(doc, true)
}

func (w *Writer) addDocument(doc Document, update bool) error {
	if w.closed {
		return ErrWriterClosed
	}
	for name := range doc {
		if w.sch.Field(name) == nil {
			return fmt.Errorf("%w: %q", ErrNoSuchField, name)
		}
	}

	if update {
		if err := w.deleteSuperseded(doc); err != nil {
			return err
		}
	}

	poolIdx := w.pickPool()
	p := w.pools[poolIdx]
	local := uint32(p.docCount())

	data := segment.DocData{
		Lengths: make([]uint32, w.sch.Len()),
		Columns: make([]segment.ColumnValue, w.sch.Len()),
		Vectors: make([][]segment.VectorEntry, w.sch.Len()),
	}

	for fieldID, def := range w.sch.Fields() {
		value, ok := doc[def.Name]
		if !ok {
			continue
		}

		if def.Indexed() {
			if def.Numeric != schema.NotNumeric {
				term, err := def.EncodeNumericValue(value)
				if err != nil {
					return fmt.Errorf("%w: %v", ErrIndexingFailure, err)
				}
				p.addOccurrence(fieldID, term, local, 0, 0, 0, 1)
			} else {
				text, ok := value.(string)
				if !ok {
					return fmt.Errorf("%w: field %q: indexed value must be text, got %T",
						ErrIndexingFailure, def.Name, value)
				}
				n, vec, err := w.analyzeField(p, fieldID, &def, text, local)
				if err != nil {
					return err
				}
				data.Lengths[fieldID] = n
				data.Vectors[fieldID] = vec
			}
		}

		if def.Stored {
			if data.Stored == nil {
				data.Stored = make(map[string]interface{})
			}
			data.Stored[def.Name] = value
		}

		if def.Column != schema.NoColumn {
			cv, err := columnValueFor(&def, value)
			if err != nil {
				return fmt.Errorf("%w: %v", ErrIndexingFailure, err)
			}
			data.Columns[fieldID] = cv
		}

		if def.Unique {
			term, err := w.termBytes(&def, value)
			if err != nil {
				return fmt.Errorf("%w: %v", ErrIndexingFailure, err)
			}
			w.uniqueCache[def.Name+"\x00"+string(term)] = bufRef{pool: poolIdx, doc: local}
		}
	}

	p.nextDoc(data)
	return p.maybeSpill()
}

// analyzeField runs the field's analyzer over text, accumulating postings
// and, when requested, the forward vector. Returns the token count.
func (w *Writer) analyzeField(p *pool, fieldID int, def *schema.FieldDef,
	text string, local uint32) (uint32, []segment.VectorEntry, error) {
	ts := w.analyzers[fieldID].Tokens(text)
	var n uint32
	var vecAcc map[string][]uint32
	if def.Vector {
		vecAcc = make(map[string][]uint32)
	}
	for {
		tok, err := ts.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return 0, nil, fmt.Errorf("%w: field %q: %v", ErrIndexingFailure, def.Name, err)
		}
		p.addOccurrence(fieldID, tok.Term, local,
			uint32(tok.Pos), uint32(tok.Start), uint32(tok.End), float32(tok.Boost))
		if vecAcc != nil {
			vecAcc[string(tok.Term)] = append(vecAcc[string(tok.Term)], uint32(tok.Pos))
		}
		n++
	}
	var vec []segment.VectorEntry
	if len(vecAcc) > 0 {
		terms := make([]string, 0, len(vecAcc))
		for t := range vecAcc {
			terms = append(terms, t)
		}
		sort.Strings(terms)
		vec = make([]segment.VectorEntry, len(terms))
		for i, t := range terms {
			vec[i] = segment.VectorEntry{Term: []byte(t), Positions: vecAcc[t]}
		}
	}
	return n, vec, nil
}

// deleteSuperseded removes older documents sharing any of doc's unique
// field values, both committed and buffered.
func (w *Writer) deleteSuperseded(doc Document) error {
	for _, def := range w.sch.Fields() {
		if !def.Unique {
			continue
		}
		value, ok := doc[def.Name]
		if !ok {
			continue
		}
		term, err := w.termBytes(&def, value)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrIndexingFailure, err)
		}
		if _, err := w.deleteCommitted(def.Name, term); err != nil {
			return err
		}
		if ref, ok := w.uniqueCache[def.Name+"\x00"+string(term)]; ok {
			w.pools[ref.pool].deleted.Add(ref.doc)
		}
	}
	return nil
}

// termBytes converts a field value into its dictionary term, without
// analysis: numeric fields use the order-preserving encoding, text fields
// the verbatim bytes.
func (w *Writer) termBytes(def *schema.FieldDef, value interface{}) ([]byte, error) {
	if def.Numeric != schema.NotNumeric {
		return def.EncodeNumericValue(value)
	}
	switch v := value.(type) {
	case string:
		return []byte(v), nil
	case []byte:
		return v, nil
	}
	return nil, fmt.Errorf("field %s: unsupported term value %T", def.Name, value)
}

// columnValueFor converts a field value into its column representation.
func columnValueFor(def *schema.FieldDef, value interface{}) (segment.ColumnValue, error) {
	switch def.Column {
	case schema.NumericColumn:
		n, err := def.NumericSortValue(value)
		if err != nil {
			return segment.ColumnValue{}, err
		}
		return segment.ColumnValue{Present: true, Numeric: n}, nil
	case schema.BitColumn:
		b, ok := value.(bool)
		if !ok {
			return segment.ColumnValue{}, fmt.Errorf(
				"field %s: bit column needs a bool, got %T", def.Name, value)
		}
		return segment.ColumnValue{Present: true, Bit: b}, nil
	default:
		switch v := value.(type) {
		case string:
			return segment.ColumnValue{Present: true, Bytes: []byte(v)}, nil
		case []byte:
			return segment.ColumnValue{Present: true, Bytes: v}, nil
		}
		return segment.ColumnValue{}, fmt.Errorf(
			"field %s: column needs bytes, got %T", def.Name, value)
	}
}

// DeleteByTerm marks every document containing (field, value) as deleted,
// returning how many documents were marked. Buffered documents are
// covered for postings still held in memory.
func (w *Writer) DeleteByTerm(field string, value interface{}) (int, error) {
	if w.closed {
		return 0, ErrWriterClosed
	}
	def := w.sch.Field(field)
	if def == nil {
		return 0, fmt.Errorf("%w: %q", ErrNoSuchField, field)
	}
	term, err := w.termBytes(def, value)
	if err != nil {
		return 0, err
	}

	count, err := w.deleteCommitted(field, term)
	if err != nil {
		return 0, err
	}

	fieldID := w.sch.FieldID(field)
	for _, p := range w.pools {
		buf := p.fields[fieldID][string(term)]
		if buf == nil {
			continue
		}
		for i := range buf.postings {
			if !p.deleted.Contains(buf.postings[i].Doc) {
				p.deleted.Add(buf.postings[i].Doc)
				count++
			}
		}
	}
	return count, nil
}

// deleteCommitted evaluates (field, term) against the writer's base
// snapshot and records the hits in the pending-deletions sets.
func (w *Writer) deleteCommitted(field string, term []byte) (int, error) {
	r, err := w.reader()
	if err != nil {
		return 0, err
	}
	count := 0
	for _, view := range r.Segments() {
		it, err := view.Seg.PostingsIterator(field, term, 0)
		if err != nil {
			return count, err
		}
		if it == nil {
			continue
		}
		pending := w.pendingDeletes[view.Seg.ID()]
		for it.IsActive() {
			local := it.LocalID()
			if pending == nil {
				pending = roaring.New()
				w.pendingDeletes[view.Seg.ID()] = pending
			}
			if !pending.Contains(local) {
				pending.Add(local)
				count++
			}
			it.Next()
		}
	}
	return count, nil
}

// DeleteDocs marks the given external docnums (relative to the writer's
// base snapshot, as returned by Writer.Reader) as deleted. It is the
// primitive delete-by-query builds on.
func (w *Writer) DeleteDocs(docs *roaring64.Bitmap) (int, error) {
	if w.closed {
		return 0, ErrWriterClosed
	}
	r, err := w.reader()
	if err != nil {
		return 0, err
	}
	count := 0
	it := docs.Iterator()
	for it.HasNext() {
		docnum := it.Next()
		segIdx, local, err := r.Resolve(docnum)
		if err != nil {
			return count, err
		}
		seg := r.segs[segIdx]
		if seg.IsDeleted(local) {
			continue
		}
		pending := w.pendingDeletes[seg.ID()]
		if pending == nil {
			pending = roaring.New()
			w.pendingDeletes[seg.ID()] = pending
		}
		if !pending.Contains(local) {
			pending.Add(local)
			count++
		}
	}
	return count, nil
}

// Cancel discards all buffered work, removes temp files and releases the
// lock. No generation is written.
func (w *Writer) Cancel() error {
	if w.closed {
		return nil
	}
	w.closed = true
	for _, p := range w.pools {
		p.discard()
	}
	if w.baseReader != nil {
		_ = w.baseReader.Close()
	}
	return w.lock.Release()
}

// Commit flushes the buffered documents to new segments, applies pending
// deletions copy-on-write, runs the merge policy, writes the next
// generation's table of contents and sweeps unreferenced files. The
// writer is closed afterwards. A commit with nothing to do leaves the
// generation untouched.
func (w *Writer) Commit(opts ...CommitOption) error {
	if w.closed {
		return ErrWriterClosed
	}
	var cfg commitConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	err := w.commit(&cfg)

	w.closed = true
	for _, p := range w.pools {
		p.discard()
	}
	if w.baseReader != nil {
		_ = w.baseReader.Close()
		w.baseReader = nil
	}
	if lerr := w.lock.Release(); err == nil {
		err = lerr
	}
	return err
}

func (w *Writer) commit(cfg *commitConfig) error {
	st := w.ix.st
	sch := w.sch
	changed := false

	// 1. flush the pools, in parallel when there are several
	type flushResult struct {
		rec SegmentRecord
		ok  bool
	}
	results := make([]flushResult, len(w.pools))
	var g errgroup.Group
	for i, p := range w.pools {
		if p.docCount() == 0 {
			continue
		}
		i, p := i, p
		g.Go(func() error {
			rec, err := w.flushPool(p)
			if err != nil {
				return err
			}
			results[i] = flushResult{rec: rec, ok: true}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("%w: %v", ErrIndexingFailure, err)
	}
	var newRecs []SegmentRecord
	for _, res := range results {
		if res.ok {
			newRecs = append(newRecs, res.rec)
			changed = true
		}
	}

	// 2. apply pending deletions to the base segments, copy-on-write
	baseRecs := make([]SegmentRecord, len(w.toc.Segments))
	copy(baseRecs, w.toc.Segments)
	for i := range baseRecs {
		rec := &baseRecs[i]
		pending := w.pendingDeletes[rec.ID]
		if pending == nil || pending.IsEmpty() {
			continue
		}
		merged := pending.Clone()
		if rec.DelGen > 0 {
			old, err := segment.ReadDeletions(st, rec.ID, rec.DelGen)
			if err != nil {
				return fmt.Errorf("%w: %v", ErrIndexingFailure, err)
			}
			merged.Or(old)
		}
		rec.DelGen++
		rec.DelCount = merged.GetCardinality()
		if err := segment.WriteDeletions(st, rec.ID, rec.DelGen, merged); err != nil {
			return fmt.Errorf("%w: %v", ErrIndexingFailure, err)
		}
		changed = true
	}

	// 3. assemble the candidate segment list per commit mode
	var records []SegmentRecord
	if cfg.clear {
		records = newRecs
		changed = true
	} else {
		records = append(baseRecs, newRecs...)
	}

	// drop fully deleted segments
	kept := records[:0]
	for _, rec := range records {
		if rec.LiveCount() > 0 {
			kept = append(kept, rec)
		} else {
			changed = true
		}
	}
	records = kept

	// 4. merge
	if !cfg.noMerge && !cfg.clear {
		var groups [][]int
		if cfg.optimize {
			groups = w.optimizeGroups(records)
		} else {
			groups = w.mergePolicy.Merges(records)
		}
		if len(groups) > 0 {
			var err error
			records, err = w.applyMerges(records, groups)
			if err != nil {
				return err
			}
			changed = true
		}
	}

	if !changed {
		return nil
	}

	// 5. rotate the table of contents
	newTOC := &TOC{
		Generation: w.toc.Generation + 1,
		Schema:     sch,
		Segments:   records,
	}
	if err := writeTOC(st, w.ix.name, newTOC); err != nil {
		return fmt.Errorf("%w: %v", ErrIndexingFailure, err)
	}
	w.ix.syncDir()
	w.ix.logger.Infof("committed generation %d: %d segments, %d docs",
		newTOC.Generation, len(newTOC.Segments), newTOC.DocCount())

	// 6. retire cache entries and sweep files the new TOC no longer
	// references
	w.ix.retireSegments(newTOC)
	w.sweep(newTOC)
	return nil
}

// optimizeGroups merges everything into one segment, also when a single
// segment merely carries deletions to compact away.
func (w *Writer) optimizeGroups(records []SegmentRecord) [][]int {
	if len(records) == 0 {
		return nil
	}
	if len(records) == 1 && records[0].DelCount == 0 {
		return nil
	}
	group := make([]int, len(records))
	for i := range group {
		group[i] = i
	}
	return [][]int{group}
}

// flushPool turns one pool into a segment. Documents superseded within
// the session become the new segment's first deletion generation.
func (w *Writer) flushPool(p *pool) (SegmentRecord, error) {
	segID, err := newSegmentID()
	if err != nil {
		return SegmentRecord{}, err
	}
	it, err := p.finish()
	if err != nil {
		return SegmentRecord{}, err
	}
	stats, err := segment.Write(w.ix.st, segID, w.sch, it, p.docs)
	if err != nil {
		return SegmentRecord{}, err
	}
	p.discard()

	rec := SegmentRecord{
		ID:             segID,
		DocCount:       stats.NumDocs,
		ByteSize:       stats.ByteSize,
		FieldLenTotals: stats.FieldLenTotals,
	}
	if !p.deleted.IsEmpty() {
		if err := segment.WriteDeletions(w.ix.st, segID, 1, p.deleted); err != nil {
			return SegmentRecord{}, err
		}
		rec.DelGen = 1
		rec.DelCount = p.deleted.GetCardinality()
	}
	return rec, nil
}

// applyMerges performs the planned merge groups and splices the merged
// records into place, keeping TOC order stable.
func (w *Writer) applyMerges(records []SegmentRecord, groups [][]int) ([]SegmentRecord, error) {
	merged := make(map[int]bool)
	replacement := make(map[int]SegmentRecord) // first index of group -> new record

	for _, group := range groups {
		segs := make([]*segment.Segment, 0, len(group))
		drops := make([]*roaring.Bitmap, 0, len(group))
		release := func() {
			for _, seg := range segs {
				_ = seg.DecRef()
			}
		}
		for _, idx := range group {
			seg, err := w.ix.acquireSegment(w.sch, &records[idx])
			if err != nil {
				release()
				return nil, fmt.Errorf("%w: %v", ErrIndexingFailure, err)
			}
			segs = append(segs, seg)
			drops = append(drops, seg.Deleted())
		}

		newID, err := newSegmentID()
		if err != nil {
			release()
			return nil, err
		}
		stats, err := segment.Merge(w.ix.st, w.sch, newID, segs, drops)
		release()
		if err != nil {
			return nil, fmt.Errorf("%w: merge: %v", ErrIndexingFailure, err)
		}
		w.ix.logger.Infof("merged %d segments into %016x (%d docs)",
			len(group), newID, stats.NumDocs)

		for _, idx := range group {
			merged[idx] = true
		}
		replacement[group[0]] = SegmentRecord{
			ID:             newID,
			DocCount:       stats.NumDocs,
			ByteSize:       stats.ByteSize,
			FieldLenTotals: stats.FieldLenTotals,
		}
	}

	var out []SegmentRecord
	for i, rec := range records {
		if newRec, ok := replacement[i]; ok {
			out = append(out, newRec)
		} else if !merged[i] {
			out = append(out, rec)
		}
	}
	return out, nil
}

// sweep removes older TOCs and any segment files the current TOC does not
// reference. Open readers keep their data alive through their mapped
// handles, so eager removal is safe.
func (w *Writer) sweep(current *TOC) {
	st := w.ix.st
	names, err := st.List()
	if err != nil {
		w.ix.logger.Errorf("sweep: list storage: %v", err)
		return
	}

	liveSeg := make(map[uint64]uint64, len(current.Segments)) // id -> delGen
	for i := range current.Segments {
		liveSeg[current.Segments[i].ID] = current.Segments[i].DelGen
	}

	for _, name := range names {
		if gen, ok := parseTOCFileName(name, w.ix.name); ok {
			if gen < current.Generation {
				_ = st.Remove(name)
			}
			continue
		}
		if strings.HasSuffix(name, ".run") &&
			strings.HasPrefix(name, w.ix.name+"_w") {
			_ = st.Remove(name)
			continue
		}
		if store.IsTempName(name) {
			_ = st.Remove(name)
			continue
		}
		id, ok := segment.ParseFileName(name)
		if !ok {
			continue
		}
		delGen, isLive := liveSeg[id]
		if !isLive {
			_ = st.Remove(name)
			continue
		}
		// stale deletion generations of a live segment
		if strings.HasSuffix(name, ".del") {
			if gen, ok := parseDelGen(name); ok && gen != delGen {
				_ = st.Remove(name)
			}
		}
	}
}

// parseDelGen extracts the deletion generation from a "<id>_<gen>.del"
// file name.
func parseDelGen(name string) (uint64, bool) {
	base := strings.TrimSuffix(name, ".del")
	i := strings.LastIndexByte(base, '_')
	if i < 0 {
		return 0, false
	}
	var gen uint64
	_, err := fmt.Sscanf(base[i+1:], "%d", &gen)
	return gen, err == nil
}

// newSegmentID draws a random non-zero 64-bit segment identity.
func newSegmentID() (uint64, error) {
	var buf [8]byte
	for {
		if _, err := rand.Read(buf[:]); err != nil {
			return 0, fmt.Errorf("%w: segment id: %v", ErrIndexingFailure, err)
		}
		id := binary.LittleEndian.Uint64(buf[:])
		if id != 0 {
			return id, nil
		}
	}
}
