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

package segment

import (
	"encoding/binary"
	"fmt"
)

// Forward vectors store, per document, the term/position lists of fields
// that requested them. They serve vector-based phrase checking and
// key-term extraction.
//
//	per doc: uvarint numFields, per field { uvarint fieldID,
//	         uvarint numTerms, per term { uvarint termLen, term,
//	         uvarint numPositions, position deltas } }
//	numDocs × uint64 offsets
//	uint64 tableOffset, uint64 numDocs

type vectorWriter struct {
	w       *CountHashWriter
	offsets []uint64
}

func newVectorWriter(w *CountHashWriter) *vectorWriter {
	return &vectorWriter{w: w}
}

// Add appends one document's vectors; vecs is indexed by schema field id
// and may hold nil entries for fields without vectors.
func (vw *vectorWriter) Add(vecs [][]VectorEntry) error {
	vw.offsets = append(vw.offsets, uint64(vw.w.Count()))
	numFields := 0
	for _, entries := range vecs {
		if len(entries) > 0 {
			numFields++
		}
	}
	if err := writeUvarint(vw.w, uint64(numFields)); err != nil {
		return err
	}
	for fieldID, entries := range vecs {
		if len(entries) == 0 {
			continue
		}
		if err := writeUvarints(vw.w, uint64(fieldID), uint64(len(entries))); err != nil {
			return err
		}
		for _, e := range entries {
			if err := writeUvarint(vw.w, uint64(len(e.Term))); err != nil {
				return err
			}
			if _, err := vw.w.Write(e.Term); err != nil {
				return err
			}
			if err := writeUvarint(vw.w, uint64(len(e.Positions))); err != nil {
				return err
			}
			prev := uint32(0)
			for _, p := range e.Positions {
				if err := writeUvarint(vw.w, uint64(p-prev)); err != nil {
					return err
				}
				prev = p
			}
		}
	}
	return nil
}

// AddRaw appends an already-encoded record verbatim (merge path).
func (vw *vectorWriter) AddRaw(record []byte) error {
	vw.offsets = append(vw.offsets, uint64(vw.w.Count()))
	_, err := vw.w.Write(record)
	return err
}

func (vw *vectorWriter) Finish() error {
	tableOffset := uint64(vw.w.Count())
	for _, off := range vw.offsets {
		if err := writeUint64(vw.w, off); err != nil {
			return err
		}
	}
	if err := writeUint64(vw.w, tableOffset); err != nil {
		return err
	}
	return writeUint64(vw.w, uint64(len(vw.offsets)))
}

// VectorsReader retrieves per-document forward vectors.
type VectorsReader struct {
	mem     []byte
	table   uint64
	numDocs int
}

func NewVectorsReader(payload []byte) (*VectorsReader, error) {
	if len(payload) < 16 {
		return nil, fmt.Errorf("vectors file too short")
	}
	numDocs := binary.LittleEndian.Uint64(payload[len(payload)-8:])
	table := binary.LittleEndian.Uint64(payload[len(payload)-16:])
	if table+numDocs*8 > uint64(len(payload)) {
		return nil, fmt.Errorf("vectors offset table overruns file")
	}
	return &VectorsReader{mem: payload, table: table, numDocs: int(numDocs)}, nil
}

// Vector returns doc's (term, positions) list for fieldID, or nil when the
// document carries no vector for the field.
func (r *VectorsReader) Vector(doc uint32, fieldID int) ([]VectorEntry, error) {
	record, err := r.RawRecord(doc)
	if err != nil {
		return nil, err
	}
	numFields, pos, err := readUvarint(record, 0)
	if err != nil {
		return nil, err
	}
	for f := uint64(0); f < numFields; f++ {
		var fid, numTerms uint64
		if fid, pos, err = readUvarint(record, pos); err != nil {
			return nil, err
		}
		if numTerms, pos, err = readUvarint(record, pos); err != nil {
			return nil, err
		}
		want := int(fid) == fieldID
		var entries []VectorEntry
		if want {
			entries = make([]VectorEntry, 0, numTerms)
		}
		for t := uint64(0); t < numTerms; t++ {
			var termLen uint64
			if termLen, pos, err = readUvarint(record, pos); err != nil {
				return nil, err
			}
			term := record[pos : pos+termLen]
			pos += termLen
			var numPositions uint64
			if numPositions, pos, err = readUvarint(record, pos); err != nil {
				return nil, err
			}
			var positions []uint32
			if want {
				positions = make([]uint32, 0, numPositions)
			}
			p := uint32(0)
			for i := uint64(0); i < numPositions; i++ {
				var delta uint64
				if delta, pos, err = readUvarint(record, pos); err != nil {
					return nil, err
				}
				p += uint32(delta)
				if want {
					positions = append(positions, p)
				}
			}
			if want {
				entries = append(entries, VectorEntry{Term: term, Positions: positions})
			}
		}
		if want {
			return entries, nil
		}
	}
	return nil, nil
}

// RawRecord returns doc's encoded record, for verbatim copy during merge.
func (r *VectorsReader) RawRecord(doc uint32) ([]byte, error) {
	if int(doc) >= r.numDocs {
		return nil, fmt.Errorf("vectors: doc %d out of range", doc)
	}
	start := binary.LittleEndian.Uint64(r.mem[r.table+uint64(doc)*8:])
	end := r.table
	if int(doc)+1 < r.numDocs {
		end = binary.LittleEndian.Uint64(r.mem[r.table+uint64(doc+1)*8:])
	}
	return r.mem[start:end], nil
}
