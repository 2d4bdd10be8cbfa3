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

// The lengths file is a dense (field, doc) matrix of token counts used by
// the length-normalizing scorers. Layout: uvarint numFields, uvarint
// numDocs, then one uint32 row per field in schema order. Fetch is O(1).

func writeLengths(w *CountHashWriter, numFields int, numDocs int,
	lengths func(fieldID int, doc int) uint32) error {
	if err := writeUvarints(w, uint64(numFields), uint64(numDocs)); err != nil {
		return err
	}
	for fieldID := 0; fieldID < numFields; fieldID++ {
		for doc := 0; doc < numDocs; doc++ {
			if err := writeUint32(w, lengths(fieldID, doc)); err != nil {
				return err
			}
		}
	}
	return nil
}

// LengthsReader fetches per-document field lengths.
type LengthsReader struct {
	mem       []byte
	base      uint64
	numFields int
	numDocs   int
}

func NewLengthsReader(payload []byte) (*LengthsReader, error) {
	numFields, pos, err := readUvarint(payload, 0)
	if err != nil {
		return nil, err
	}
	numDocs, pos, err := readUvarint(payload, pos)
	if err != nil {
		return nil, err
	}
	need := pos + numFields*numDocs*4
	if need > uint64(len(payload)) {
		return nil, fmt.Errorf("lengths file truncated: need %d have %d", need, len(payload))
	}
	return &LengthsReader{
		mem:       payload,
		base:      pos,
		numFields: int(numFields),
		numDocs:   int(numDocs),
	}, nil
}

// NumDocs returns the number of documents covered.
func (r *LengthsReader) NumDocs() int { return r.numDocs }

// Length returns the token count of (fieldID, doc); 0 when the document
// has no value for the field.
func (r *LengthsReader) Length(fieldID int, doc uint32) uint32 {
	if fieldID >= r.numFields || int(doc) >= r.numDocs {
		return 0
	}
	off := r.base + (uint64(fieldID)*uint64(r.numDocs)+uint64(doc))*4
	return binary.LittleEndian.Uint32(r.mem[off : off+4])
}
