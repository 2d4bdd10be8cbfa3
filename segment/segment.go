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

// Package segment implements the immutable on-disk unit of an index: the
// codec that writes term dictionaries, postings, lengths, stored fields,
// columns and forward vectors, and the read-side object over them.
package segment

import (
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/blevesearch/vellum"

	"github.com/quillindex/quill/schema"
	"github.com/quillindex/quill/store"
)

// Segment is the read-side view of one immutable segment plus its current
// deletion bitmap. It is safe for concurrent readers and reference
// counted: the files are released when the last reference drops.
type Segment struct {
	id     uint64
	sch    *schema.Schema
	delGen uint64

	handles []store.Handle

	trmPayload []byte
	pstPayload []byte

	dictLocs map[int][2]uint64 // fieldID -> FST offset, length

	lengths *LengthsReader
	stored  *StoredReader
	vectors *VectorsReader

	numDocs  uint64
	byteSize uint64
	deleted  *roaring.Bitmap // nil when no deletions

	cacheMu sync.Mutex
	fsts    map[int]*vellum.FST
	columns map[string]*ColumnReader

	m    sync.Mutex // protects refs
	refs int64
}

// Open maps a segment's files and validates their footers. delGen selects
// the deletion bitmap generation; zero means no deletions.
func Open(st store.Storage, sch *schema.Schema, id uint64, delGen uint64) (*Segment, error) {
	s := &Segment{
		id:      id,
		sch:     sch,
		delGen:  delGen,
		dictLocs: make(map[int][2]uint64),
		fsts:    make(map[int]*vellum.FST),
		columns: make(map[string]*ColumnReader),
		refs:    1,
	}

	fail := func(err error) (*Segment, error) {
		_ = s.closeActual()
		return nil, err
	}

	var err error
	if s.trmPayload, err = s.openPayload(st, TermsFileName(id)); err != nil {
		return fail(err)
	}
	if err = s.loadDictLocs(); err != nil {
		return fail(err)
	}
	if s.pstPayload, err = s.openPayload(st, PostingsFileName(id)); err != nil {
		return fail(err)
	}

	lenPayload, err := s.openPayload(st, LengthsFileName(id))
	if err != nil {
		return fail(err)
	}
	if s.lengths, err = NewLengthsReader(lenPayload); err != nil {
		return fail(err)
	}
	s.numDocs = uint64(s.lengths.NumDocs())

	fldPayload, err := s.openPayload(st, StoredFileName(id))
	if err != nil {
		return fail(err)
	}
	if s.stored, err = NewStoredReader(fldPayload); err != nil {
		return fail(err)
	}

	if hasVectorField(sch) {
		vecPayload, err := s.openPayload(st, VectorsFileName(id))
		if err != nil {
			return fail(err)
		}
		if s.vectors, err = NewVectorsReader(vecPayload); err != nil {
			return fail(err)
		}
	}

	for _, def := range sch.Fields() {
		if def.Column == schema.NoColumn {
			continue
		}
		payload, err := s.openPayload(st, ColumnFileName(id, def.Name))
		if err != nil {
			return fail(err)
		}
		col, err := NewColumnReader(payload)
		if err != nil {
			return fail(fmt.Errorf("column %s: %w", def.Name, err))
		}
		s.columns[def.Name] = col
	}

	if delGen > 0 {
		if s.deleted, err = ReadDeletions(st, id, delGen); err != nil {
			return fail(err)
		}
	}

	return s, nil
}

func (s *Segment) openPayload(st store.Storage, name string) ([]byte, error) {
	h, payload, err := openChecked(st, name)
	if err != nil {
		return nil, err
	}
	s.handles = append(s.handles, h)
	s.byteSize += uint64(len(h.Data()))
	return payload, nil
}

func (s *Segment) loadDictLocs() error {
	payload := s.trmPayload
	if len(payload) < 8 {
		return fmt.Errorf("terms file too short")
	}
	dirOffset := binary.LittleEndian.Uint64(payload[len(payload)-8:])
	if dirOffset > uint64(len(payload)-8) {
		return fmt.Errorf("terms directory offset out of range")
	}
	numEntries, pos, err := readUvarint(payload, dirOffset)
	if err != nil {
		return err
	}
	for i := uint64(0); i < numEntries; i++ {
		var fieldID, offset, length uint64
		if fieldID, pos, err = readUvarint(payload, pos); err != nil {
			return err
		}
		if offset, pos, err = readUvarint(payload, pos); err != nil {
			return err
		}
		if length, pos, err = readUvarint(payload, pos); err != nil {
			return err
		}
		s.dictLocs[int(fieldID)] = [2]uint64{offset, length}
	}
	return nil
}

// ID returns the segment's random 64-bit identity.
func (s *Segment) ID() uint64 { return s.id }

// DelGen returns the deletion generation this view was opened at.
func (s *Segment) DelGen() uint64 { return s.delGen }

// Count returns the number of documents written into the segment,
// deletions included.
func (s *Segment) Count() uint64 { return s.numDocs }

// DeletedCount returns the number of deleted documents.
func (s *Segment) DeletedCount() uint64 {
	if s.deleted == nil {
		return 0
	}
	return s.deleted.GetCardinality()
}

// LiveCount returns the number of live documents.
func (s *Segment) LiveCount() uint64 {
	return s.numDocs - s.DeletedCount()
}

// ByteSize returns the total size of the segment's mapped files.
func (s *Segment) ByteSize() uint64 { return s.byteSize }

// HasDeletions reports whether any document is deleted.
func (s *Segment) HasDeletions() bool { return s.deleted != nil && !s.deleted.IsEmpty() }

// IsDeleted reports whether the local docnum is deleted.
func (s *Segment) IsDeleted(local uint32) bool {
	return s.deleted != nil && s.deleted.Contains(local)
}

// Deleted returns the deletion bitmap, possibly nil. Callers must not
// mutate it.
func (s *Segment) Deleted() *roaring.Bitmap { return s.deleted }

// LiveDocs materializes the bitmap of live local docnums.
func (s *Segment) LiveDocs() *roaring.Bitmap {
	live := roaring.New()
	live.AddRange(0, s.numDocs)
	if s.deleted != nil {
		live.AndNot(s.deleted)
	}
	return live
}

// Schema returns the schema the segment was written under.
func (s *Segment) Schema() *schema.Schema { return s.sch }

// Dictionary returns the term dictionary for field. Fields without terms
// yield an empty dictionary.
func (s *Segment) Dictionary(field string) (*Dictionary, error) {
	def := s.sch.Field(field)
	if def == nil {
		return nil, fmt.Errorf("no such field %q", field)
	}
	rv := &Dictionary{
		field:      field,
		format:     def.Format,
		fieldBoost: def.Boost,
		postings:   s.pstPayload,
	}
	fieldID := s.sch.FieldID(field)
	loc, ok := s.dictLocs[fieldID]
	if !ok {
		return rv, nil
	}

	s.cacheMu.Lock()
	fst, ok := s.fsts[fieldID]
	s.cacheMu.Unlock()
	if !ok {
		var err error
		fst, err = vellum.Load(s.trmPayload[loc[0] : loc[0]+loc[1]])
		if err != nil {
			return nil, fmt.Errorf("dictionary for field %s: %w", field, err)
		}
		s.cacheMu.Lock()
		s.fsts[fieldID] = fst
		s.cacheMu.Unlock()
	}
	rv.fst = fst
	return rv, nil
}

// TermInfo returns the segment-local statistics for (field, term).
func (s *Segment) TermInfo(field string, term []byte) (TermInfo, bool, error) {
	dict, err := s.Dictionary(field)
	if err != nil {
		return TermInfo{}, false, err
	}
	return dict.TermInfo(term)
}

// PostingsIterator returns the iterator for (field, term), rebased by
// docBase and with deleted documents hidden. A nil iterator means the term
// is absent.
func (s *Segment) PostingsIterator(field string, term []byte, docBase uint64) (*PostingsIterator, error) {
	dict, err := s.Dictionary(field)
	if err != nil {
		return nil, err
	}
	return dict.PostingsIterator(term, docBase, s.deleted)
}

// StoredFields returns the stored field map for the local docnum.
func (s *Segment) StoredFields(local uint32) (map[string]interface{}, error) {
	return s.stored.Doc(local)
}

// StoredReader exposes the raw stored-fields reader (merge path).
func (s *Segment) StoredReader() *StoredReader { return s.stored }

// FieldLength returns the token count of (field, doc).
func (s *Segment) FieldLength(local uint32, field string) int {
	fieldID := s.sch.FieldID(field)
	if fieldID < 0 {
		return 0
	}
	return int(s.lengths.Length(fieldID, local))
}

// Lengths exposes the lengths reader (merge and scoring paths).
func (s *Segment) Lengths() *LengthsReader { return s.lengths }

// Column returns the column reader for field, or nil when the field has no
// column.
func (s *Segment) Column(field string) *ColumnReader {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	return s.columns[field]
}

// Vector returns the forward vector of (doc, field), nil when absent.
func (s *Segment) Vector(local uint32, field string) ([]VectorEntry, error) {
	if s.vectors == nil {
		return nil, nil
	}
	fieldID := s.sch.FieldID(field)
	if fieldID < 0 {
		return nil, fmt.Errorf("no such field %q", field)
	}
	return s.vectors.Vector(local, fieldID)
}

// Vectors exposes the raw vectors reader, possibly nil (merge path).
func (s *Segment) Vectors() *VectorsReader { return s.vectors }

// AddRef pins the segment's files for an additional holder.
func (s *Segment) AddRef() {
	s.m.Lock()
	s.refs++
	s.m.Unlock()
}

// DecRef releases one holder; the last release closes the files.
func (s *Segment) DecRef() (err error) {
	s.m.Lock()
	s.refs--
	if s.refs == 0 {
		err = s.closeActual()
	}
	s.m.Unlock()
	return err
}

// Close is DecRef under the conventional name.
func (s *Segment) Close() error {
	return s.DecRef()
}

func (s *Segment) closeActual() (err error) {
	for _, h := range s.handles {
		if cerr := h.Close(); err == nil {
			err = cerr
		}
	}
	s.handles = nil
	return err
}

