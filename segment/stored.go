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

	"github.com/fxamacker/cbor/v2"
	"github.com/golang/snappy"
)

// Stored fields are kept per document as a CBOR-encoded field map,
// snappy-compressed, addressed through a fixed-width offset table at the
// end of the file:
//
//	per doc: uvarint compressedLen, compressed bytes
//	numDocs × uint64 offsets
//	uint64 tableOffset, uint64 numDocs
//
// CBOR uses the deterministic core encoding so byte output is stable for
// identical input.

var cborEnc = func() cbor.EncMode {
	em, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(err)
	}
	return em
}()

type storedWriter struct {
	w       *CountHashWriter
	offsets []uint64
	scratch []byte
}

func newStoredWriter(w *CountHashWriter) *storedWriter {
	return &storedWriter{w: w}
}

// Add appends one document's stored field map.
func (sw *storedWriter) Add(fields map[string]interface{}) error {
	raw, err := cborEnc.Marshal(fields)
	if err != nil {
		return fmt.Errorf("stored fields encode: %w", err)
	}
	sw.scratch = snappy.Encode(sw.scratch[:0], raw)
	sw.offsets = append(sw.offsets, uint64(sw.w.Count()))
	if err := writeUvarint(sw.w, uint64(len(sw.scratch))); err != nil {
		return err
	}
	_, err = sw.w.Write(sw.scratch)
	return err
}

// AddRaw appends an already-encoded record verbatim; used by segment
// merging so stored data never round-trips through CBOR.
func (sw *storedWriter) AddRaw(record []byte) error {
	sw.offsets = append(sw.offsets, uint64(sw.w.Count()))
	_, err := sw.w.Write(record)
	return err
}

// Finish writes the offset table and trailer.
func (sw *storedWriter) Finish() error {
	tableOffset := uint64(sw.w.Count())
	for _, off := range sw.offsets {
		if err := writeUint64(sw.w, off); err != nil {
			return err
		}
	}
	if err := writeUint64(sw.w, tableOffset); err != nil {
		return err
	}
	return writeUint64(sw.w, uint64(len(sw.offsets)))
}

// StoredReader retrieves per-document stored field maps.
type StoredReader struct {
	mem     []byte
	table   uint64
	numDocs int
}

func NewStoredReader(payload []byte) (*StoredReader, error) {
	if len(payload) < 16 {
		return nil, fmt.Errorf("stored file too short")
	}
	numDocs := binary.LittleEndian.Uint64(payload[len(payload)-8:])
	table := binary.LittleEndian.Uint64(payload[len(payload)-16:])
	if table+numDocs*8 > uint64(len(payload)) {
		return nil, fmt.Errorf("stored offset table overruns file")
	}
	return &StoredReader{mem: payload, table: table, numDocs: int(numDocs)}, nil
}

// NumDocs returns the number of stored documents.
func (r *StoredReader) NumDocs() int { return r.numDocs }

// Doc decodes doc's stored field map.
func (r *StoredReader) Doc(doc uint32) (map[string]interface{}, error) {
	record, err := r.RawRecord(doc)
	if err != nil {
		return nil, err
	}
	l, pos, err := readUvarint(record, 0)
	if err != nil {
		return nil, err
	}
	raw, err := snappy.Decode(nil, record[pos:pos+l])
	if err != nil {
		return nil, fmt.Errorf("stored fields doc %d: %w", doc, err)
	}
	var fields map[string]interface{}
	if err := cbor.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("stored fields doc %d: %w", doc, err)
	}
	return fields, nil
}

// RawRecord returns doc's encoded record, for verbatim copy during merge.
func (r *StoredReader) RawRecord(doc uint32) ([]byte, error) {
	if int(doc) >= r.numDocs {
		return nil, fmt.Errorf("stored fields: doc %d out of range", doc)
	}
	start := binary.LittleEndian.Uint64(r.mem[r.table+uint64(doc)*8:])
	end := r.table
	if int(doc)+1 < r.numDocs {
		end = binary.LittleEndian.Uint64(r.mem[r.table+uint64(doc+1)*8:])
	}
	return r.mem[start:end], nil
}
