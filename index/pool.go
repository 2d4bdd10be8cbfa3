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
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"sort"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/quillindex/quill/schema"
	"github.com/quillindex/quill/segment"
	"github.com/quillindex/quill/store"
)

// pool buffers one flush batch: an in-memory term→postings accumulation
// plus the per-document data, bounded by a memory budget. When the budget
// overflows, the postings are spilled to a sorted run in temp storage and
// the accumulation restarts; at flush the runs and the live pool merge
// k-way into the segment builder.
type pool struct {
	st     store.Storage
	sch    *schema.Schema
	prefix string // run file name prefix
	budget int64

	fields  []map[string]*termBuffer
	docs    []segment.DocData
	deleted *roaring.Bitmap // buffered docs superseded before flush

	mem      int64
	runs     []string
	runCount int
}

type termBuffer struct {
	postings []segment.Posting
}

func newPool(st store.Storage, sch *schema.Schema, prefix string, budget int64) *pool {
	p := &pool{
		st:      st,
		sch:     sch,
		prefix:  prefix,
		budget:  budget,
		fields:  make([]map[string]*termBuffer, sch.Len()),
		deleted: roaring.New(),
	}
	for i := range p.fields {
		p.fields[i] = make(map[string]*termBuffer)
	}
	return p
}

// docCount returns the number of buffered documents.
func (p *pool) docCount() int { return len(p.docs) }

// nextDoc reserves the next pool-local docnum for the document being
// added.
func (p *pool) nextDoc(data segment.DocData) uint32 {
	doc := uint32(len(p.docs))
	p.docs = append(p.docs, data)
	return doc
}

// addOccurrence records one token occurrence of term in (fieldID, doc).
func (p *pool) addOccurrence(fieldID int, term []byte, doc uint32,
	pos, start, end uint32, boost float32) {
	def := &p.sch.Fields()[fieldID]
	buf := p.fields[fieldID][string(term)]
	if buf == nil {
		buf = &termBuffer{}
		p.fields[fieldID][string(term)] = buf
		p.mem += int64(len(term)) + 48
	}
	if n := len(buf.postings); n == 0 || buf.postings[n-1].Doc != doc {
		buf.postings = append(buf.postings, segment.Posting{Doc: doc})
		p.mem += 32
	}
	posting := &buf.postings[len(buf.postings)-1]
	posting.Freq++
	if def.Format.Has(schema.Positions) {
		posting.Positions = append(posting.Positions, pos)
		p.mem += 4
	}
	if def.Format.Has(schema.Chars) {
		posting.Starts = append(posting.Starts, start)
		posting.Ends = append(posting.Ends, end)
		p.mem += 8
	}
	if def.Format.Has(schema.Boosts) {
		posting.Boosts = append(posting.Boosts, boost)
		p.mem += 4
	}
}

// maybeSpill spills the accumulated postings to a run when over budget.
// Called between documents only, so a document's postings never straddle
// runs.
func (p *pool) maybeSpill() error {
	if p.budget <= 0 || p.mem <= p.budget {
		return nil
	}
	return p.spill()
}

func (p *pool) spill() error {
	if p.termCount() == 0 {
		return nil
	}
	name := fmt.Sprintf("%s%d.run", p.prefix, p.runCount)
	p.runCount++

	f, err := p.st.Create(name)
	if err != nil {
		return err
	}
	w := bufio.NewWriter(f)
	if err := p.writeRun(w); err != nil {
		_ = f.Close()
		return err
	}
	if err := w.Flush(); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}

	p.runs = append(p.runs, name)
	for i := range p.fields {
		p.fields[i] = make(map[string]*termBuffer)
	}
	p.mem = 0
	return nil
}

func (p *pool) termCount() int {
	n := 0
	for i := range p.fields {
		n += len(p.fields[i])
	}
	return n
}

// sortedTerms returns the in-memory terms of fieldID in order.
func (p *pool) sortedTerms(fieldID int) []string {
	terms := make([]string, 0, len(p.fields[fieldID]))
	for term := range p.fields[fieldID] {
		terms = append(terms, term)
	}
	sort.Strings(terms)
	return terms
}

// writeRun serializes the pool's postings sorted by (field, term, doc).
func (p *pool) writeRun(w *bufio.Writer) error {
	var varBuf [binary.MaxVarintLen64]byte
	putUvarint := func(v uint64) error {
		n := binary.PutUvarint(varBuf[:], v)
		_, err := w.Write(varBuf[:n])
		return err
	}
	putFloat32 := func(v float32) error {
		binary.LittleEndian.PutUint32(varBuf[:4], math.Float32bits(v))
		_, err := w.Write(varBuf[:4])
		return err
	}

	for fieldID := range p.fields {
		def := &p.sch.Fields()[fieldID]
		for _, term := range p.sortedTerms(fieldID) {
			buf := p.fields[fieldID][term]
			if err := putUvarint(uint64(fieldID)); err != nil {
				return err
			}
			if err := putUvarint(uint64(len(term))); err != nil {
				return err
			}
			if _, err := w.WriteString(term); err != nil {
				return err
			}
			if err := putUvarint(uint64(len(buf.postings))); err != nil {
				return err
			}
			for i := range buf.postings {
				pp := &buf.postings[i]
				if err := putUvarint(uint64(pp.Doc)); err != nil {
					return err
				}
				if err := putUvarint(uint64(pp.Freq)); err != nil {
					return err
				}
				if def.Format.Has(schema.Positions) {
					prev := uint32(0)
					for _, pos := range pp.Positions {
						if err := putUvarint(uint64(pos - prev)); err != nil {
							return err
						}
						prev = pos
					}
				}
				if def.Format.Has(schema.Chars) {
					prev := uint32(0)
					for j := range pp.Starts {
						if err := putUvarint(uint64(pp.Starts[j] - prev)); err != nil {
							return err
						}
						if err := putUvarint(uint64(pp.Ends[j] - pp.Starts[j])); err != nil {
							return err
						}
						prev = pp.Starts[j]
					}
				}
				if def.Format.Has(schema.Boosts) {
					for _, b := range pp.Boosts {
						if err := putFloat32(b); err != nil {
							return err
						}
					}
				}
			}
		}
	}
	return nil
}

// discard removes spilled runs, after a flush or a cancel.
func (p *pool) discard() {
	for _, name := range p.runs {
		_ = p.st.Remove(name)
	}
	p.runs = nil
}

// finish returns the TermIterator feeding the segment builder: the merge
// of every spilled run plus the live pool, in (field, term, doc) order.
func (p *pool) finish() (segment.TermIterator, error) {
	sources := make([]termSource, 0, len(p.runs)+1)
	for _, name := range p.runs {
		h, err := p.st.Open(name)
		if err != nil {
			return nil, err
		}
		src := &runReader{sch: p.sch, handle: h, data: h.Data()}
		if err := src.advance(); err != nil {
			return nil, err
		}
		sources = append(sources, src)
	}
	mem := &memSource{pool: p, fieldID: -1}
	mem.advanceField()
	sources = append(sources, mem)
	return newPoolMerge(sources), nil
}

// termSource is one sorted stream of TermPostings feeding the flush merge.
type termSource interface {
	current() *segment.TermPostings // nil when exhausted
	next() error
	close() error
}

// memSource walks the live in-memory pool in sorted order.
type memSource struct {
	pool    *pool
	fieldID int
	terms   []string
	idx     int
	cur     segment.TermPostings
}

func (m *memSource) advanceField() {
	for {
		m.fieldID++
		if m.fieldID >= len(m.pool.fields) {
			m.terms = nil
			return
		}
		if len(m.pool.fields[m.fieldID]) > 0 {
			m.terms = m.pool.sortedTerms(m.fieldID)
			m.idx = 0
			return
		}
	}
}

func (m *memSource) current() *segment.TermPostings {
	if m.terms == nil {
		return nil
	}
	term := m.terms[m.idx]
	m.cur = segment.TermPostings{
		FieldID:  m.fieldID,
		Term:     []byte(term),
		Postings: m.pool.fields[m.fieldID][term].postings,
	}
	return &m.cur
}

func (m *memSource) next() error {
	m.idx++
	if m.idx >= len(m.terms) {
		m.advanceField()
	}
	return nil
}

func (m *memSource) close() error { return nil }

// runReader walks one spilled run file.
type runReader struct {
	sch    *schema.Schema
	handle store.Handle
	data   []byte
	pos    uint64
	cur    *segment.TermPostings
}

func (r *runReader) readUvarint() (uint64, error) {
	v, n := binary.Uvarint(r.data[r.pos:])
	if n <= 0 {
		return 0, fmt.Errorf("run file corrupt at %d", r.pos)
	}
	r.pos += uint64(n)
	return v, nil
}

func (r *runReader) advance() error {
	if r.pos >= uint64(len(r.data)) {
		r.cur = nil
		return nil
	}
	fieldID, err := r.readUvarint()
	if err != nil {
		return err
	}
	if int(fieldID) >= r.sch.Len() {
		return fmt.Errorf("run file: field id %d out of range", fieldID)
	}
	def := &r.sch.Fields()[fieldID]
	termLen, err := r.readUvarint()
	if err != nil {
		return err
	}
	term := r.data[r.pos : r.pos+termLen]
	r.pos += termLen
	numPostings, err := r.readUvarint()
	if err != nil {
		return err
	}
	postings := make([]segment.Posting, numPostings)
	for i := range postings {
		pp := &postings[i]
		doc, err := r.readUvarint()
		if err != nil {
			return err
		}
		freq, err := r.readUvarint()
		if err != nil {
			return err
		}
		pp.Doc = uint32(doc)
		pp.Freq = uint32(freq)
		if def.Format.Has(schema.Positions) {
			pp.Positions = make([]uint32, freq)
			prev := uint32(0)
			for j := range pp.Positions {
				delta, err := r.readUvarint()
				if err != nil {
					return err
				}
				prev += uint32(delta)
				pp.Positions[j] = prev
			}
		}
		if def.Format.Has(schema.Chars) {
			pp.Starts = make([]uint32, freq)
			pp.Ends = make([]uint32, freq)
			prev := uint32(0)
			for j := range pp.Starts {
				sd, err := r.readUvarint()
				if err != nil {
					return err
				}
				l, err := r.readUvarint()
				if err != nil {
					return err
				}
				prev += uint32(sd)
				pp.Starts[j] = prev
				pp.Ends[j] = prev + uint32(l)
			}
		}
		if def.Format.Has(schema.Boosts) {
			pp.Boosts = make([]float32, freq)
			for j := range pp.Boosts {
				if r.pos+4 > uint64(len(r.data)) {
					return fmt.Errorf("run file truncated")
				}
				pp.Boosts[j] = math.Float32frombits(
					binary.LittleEndian.Uint32(r.data[r.pos:]))
				r.pos += 4
			}
		}
	}
	r.cur = &segment.TermPostings{
		FieldID:  int(fieldID),
		Term:     term,
		Postings: postings,
	}
	return nil
}

func (r *runReader) current() *segment.TermPostings { return r.cur }

func (r *runReader) next() error { return r.advance() }

func (r *runReader) close() error { return r.handle.Close() }

// poolMerge merges the sorted sources into one TermIterator, concatenating
// the postings of a term that appears in several sources. Sources are
// consulted in spill order with the live pool last, which preserves
// ascending doc order because spills happen on document boundaries.
type poolMerge struct {
	sources []termSource
	cur     segment.TermPostings
}

func newPoolMerge(sources []termSource) *poolMerge {
	return &poolMerge{sources: sources}
}

func (pm *poolMerge) Next() (*segment.TermPostings, error) {
	// find the smallest (field, term) among sources
	var low *segment.TermPostings
	for _, src := range pm.sources {
		cur := src.current()
		if cur == nil {
			continue
		}
		if low == nil || lessFieldTerm(cur, low) {
			low = cur
		}
	}
	if low == nil {
		for _, src := range pm.sources {
			_ = src.close()
		}
		return nil, io.EOF
	}

	pm.cur = segment.TermPostings{
		FieldID: low.FieldID,
		Term:    append(pm.cur.Term[:0], low.Term...),
	}
	pm.cur.Postings = pm.cur.Postings[:0]
	for _, src := range pm.sources {
		cur := src.current()
		if cur == nil || cur.FieldID != pm.cur.FieldID ||
			string(cur.Term) != string(pm.cur.Term) {
			continue
		}
		pm.cur.Postings = append(pm.cur.Postings, cur.Postings...)
		if err := src.next(); err != nil {
			return nil, err
		}
	}
	return &pm.cur, nil
}

func lessFieldTerm(a, b *segment.TermPostings) bool {
	if a.FieldID != b.FieldID {
		return a.FieldID < b.FieldID
	}
	return string(a.Term) < string(b.Term)
}
