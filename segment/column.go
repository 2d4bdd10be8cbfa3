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
	"bytes"
	"encoding/binary"
	"fmt"
	"sort"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/klauspost/compress/zstd"

	"github.com/quillindex/quill/schema"
)

// Columns are dense per-document value files used for sorting, grouping
// and faceting. Element formats: numeric (fixed int64), var bytes, fixed
// bytes, reference-dictionary bytes, bit, and zstd-compressed var bytes.
//
// Payload layout:
//
//	byte colType
//	uvarint numDocs
//	present bitmap (uvarint len + roaring bytes; Bit columns store the
//	values themselves here)
//	format-specific body
//
// Bodies: Numeric is numDocs fixed int64. VarBytes is a data blob
// followed by numDocs+1 fixed uint64 cumulative offsets. FixedBytes is
// uvarint width then numDocs cells. RefBytes is a sorted dictionary of
// distinct values then numDocs fixed uint32 ordinals (0 = missing).
// CompressedBytes is the VarBytes body zstd-compressed.

var zstdEncoder, _ = zstd.NewWriter(nil,
	zstd.WithEncoderConcurrency(1), zstd.WithEncoderLevel(zstd.SpeedDefault))
var zstdDecoder, _ = zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))

// ColumnWriter accumulates one field's per-document values during a flush
// or merge and persists them as a column file payload.
type ColumnWriter struct {
	typ     schema.ColumnType
	width   int
	numeric []int64
	blobs   [][]byte
	present *roaring.Bitmap
	bits    *roaring.Bitmap
}

func NewColumnWriter(typ schema.ColumnType, fixedWidth int) *ColumnWriter {
	return &ColumnWriter{
		typ:     typ,
		width:   fixedWidth,
		present: roaring.New(),
		bits:    roaring.New(),
	}
}

// Add records doc's value. Docs must be added in ascending order; gaps are
// missing values.
func (cw *ColumnWriter) Add(doc uint32, v ColumnValue) {
	if !v.Present {
		return
	}
	cw.present.Add(doc)
	switch cw.typ {
	case schema.NumericColumn:
		cw.growNumeric(int(doc) + 1)
		cw.numeric[doc] = v.Numeric
	case schema.BitColumn:
		if v.Bit {
			cw.bits.Add(doc)
		}
	default:
		cw.growBlobs(int(doc))
		cw.blobs = append(cw.blobs, append([]byte(nil), v.Bytes...))
	}
}

func (cw *ColumnWriter) growNumeric(n int) {
	for len(cw.numeric) < n {
		cw.numeric = append(cw.numeric, 0)
	}
}

func (cw *ColumnWriter) growBlobs(n int) {
	for len(cw.blobs) < n {
		cw.blobs = append(cw.blobs, nil)
	}
}

// Persist writes the column payload for numDocs documents.
func (cw *ColumnWriter) Persist(w *CountHashWriter, numDocs int) error {
	if _, err := w.Write([]byte{byte(cw.typ)}); err != nil {
		return err
	}
	if err := writeUvarint(w, uint64(numDocs)); err != nil {
		return err
	}
	presence := cw.present
	if cw.typ == schema.BitColumn {
		presence = cw.bits
	}
	if err := writeBitmap(w, presence); err != nil {
		return err
	}
	switch cw.typ {
	case schema.NumericColumn:
		cw.growNumeric(numDocs)
		for _, v := range cw.numeric[:numDocs] {
			if err := writeUint64(w, uint64(v)); err != nil {
				return err
			}
		}
		return nil
	case schema.BitColumn:
		return nil
	case schema.VarBytesColumn:
		_, err := w.Write(cw.varBytesBody(numDocs))
		return err
	case schema.FixedBytesColumn:
		return cw.persistFixedBytes(w, numDocs)
	case schema.RefBytesColumn:
		return cw.persistRefBytes(w, numDocs)
	case schema.CompressedBytesColumn:
		raw := cw.varBytesBody(numDocs)
		compressed := zstdEncoder.EncodeAll(raw, nil)
		if err := writeUvarints(w, uint64(len(raw)), uint64(len(compressed))); err != nil {
			return err
		}
		_, err := w.Write(compressed)
		return err
	}
	return fmt.Errorf("column: unknown type %d", cw.typ)
}

// varBytesBody is the blob+offset-table body shared by VarBytesColumn and
// CompressedBytesColumn.
func (cw *ColumnWriter) varBytesBody(numDocs int) []byte {
	cw.growBlobs(numDocs)
	var buf bytes.Buffer
	offsets := make([]uint64, numDocs+1)
	for i, b := range cw.blobs[:numDocs] {
		offsets[i] = uint64(buf.Len())
		buf.Write(b)
	}
	offsets[numDocs] = uint64(buf.Len())
	var u [8]byte
	for _, off := range offsets {
		binary.LittleEndian.PutUint64(u[:], off)
		buf.Write(u[:])
	}
	return buf.Bytes()
}

func (cw *ColumnWriter) persistFixedBytes(w *CountHashWriter, numDocs int) error {
	cw.growBlobs(numDocs)
	if err := writeUvarint(w, uint64(cw.width)); err != nil {
		return err
	}
	zero := make([]byte, cw.width)
	for _, b := range cw.blobs[:numDocs] {
		cell := zero
		if len(b) == cw.width {
			cell = b
		}
		if _, err := w.Write(cell); err != nil {
			return err
		}
	}
	return nil
}

func (cw *ColumnWriter) persistRefBytes(w *CountHashWriter, numDocs int) error {
	cw.growBlobs(numDocs)
	uniq := make(map[string]int)
	for _, b := range cw.blobs[:numDocs] {
		if b != nil {
			uniq[string(b)] = 0
		}
	}
	keys := make([]string, 0, len(uniq))
	for k := range uniq {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for i, k := range keys {
		uniq[k] = i
	}
	if err := writeUvarint(w, uint64(len(keys))); err != nil {
		return err
	}
	for _, k := range keys {
		if err := writeUvarint(w, uint64(len(k))); err != nil {
			return err
		}
		if _, err := w.Write([]byte(k)); err != nil {
			return err
		}
	}
	var u [4]byte
	for doc := 0; doc < numDocs; doc++ {
		ord := uint32(0)
		if b := cw.blobs[doc]; b != nil {
			ord = uint32(uniq[string(b)]) + 1
		}
		binary.LittleEndian.PutUint32(u[:], ord)
		if _, err := w.Write(u[:]); err != nil {
			return err
		}
	}
	return nil
}

func writeBitmap(w *CountHashWriter, bm *roaring.Bitmap) error {
	data, err := bm.ToBytes()
	if err != nil {
		return err
	}
	if err := writeUvarint(w, uint64(len(data))); err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

func readBitmap(data []byte, pos uint64) (*roaring.Bitmap, uint64, error) {
	n, pos, err := readUvarint(data, pos)
	if err != nil {
		return nil, 0, err
	}
	if pos+n > uint64(len(data)) {
		return nil, 0, fmt.Errorf("bitmap overruns payload")
	}
	bm := roaring.New()
	if err := bm.UnmarshalBinary(data[pos : pos+n]); err != nil {
		return nil, 0, err
	}
	return bm, pos + n, nil
}

// ColumnReader gives random access to one column file's values.
type ColumnReader struct {
	typ     schema.ColumnType
	numDocs int
	mem     []byte
	present *roaring.Bitmap

	numericBase uint64

	dataStart  uint64
	tableStart uint64

	width int

	dict     [][]byte
	ordStart uint64
}

// NewColumnReader parses a column file payload.
func NewColumnReader(payload []byte) (*ColumnReader, error) {
	if len(payload) < 1 {
		return nil, fmt.Errorf("column payload empty")
	}
	r := &ColumnReader{typ: schema.ColumnType(payload[0]), mem: payload}
	n, pos, err := readUvarint(payload, 1)
	if err != nil {
		return nil, err
	}
	r.numDocs = int(n)
	if r.present, pos, err = readBitmap(payload, pos); err != nil {
		return nil, err
	}

	switch r.typ {
	case schema.NumericColumn:
		r.numericBase = pos
		if pos+uint64(r.numDocs)*8 > uint64(len(payload)) {
			return nil, fmt.Errorf("numeric column truncated")
		}
		return r, nil
	case schema.BitColumn:
		return r, nil
	case schema.VarBytesColumn:
		return r, r.initVarBytes(payload, pos, uint64(len(payload)))
	case schema.FixedBytesColumn:
		var width uint64
		if width, pos, err = readUvarint(payload, pos); err != nil {
			return nil, err
		}
		r.width = int(width)
		r.dataStart = pos
		return r, nil
	case schema.RefBytesColumn:
		var numUniq uint64
		if numUniq, pos, err = readUvarint(payload, pos); err != nil {
			return nil, err
		}
		r.dict = make([][]byte, numUniq)
		for i := range r.dict {
			var l uint64
			if l, pos, err = readUvarint(payload, pos); err != nil {
				return nil, err
			}
			if pos+l > uint64(len(payload)) {
				return nil, fmt.Errorf("ref column dictionary truncated")
			}
			r.dict[i] = payload[pos : pos+l]
			pos += l
		}
		r.ordStart = pos
		return r, nil
	case schema.CompressedBytesColumn:
		var rawLen, compLen uint64
		if rawLen, pos, err = readUvarint(payload, pos); err != nil {
			return nil, err
		}
		if compLen, pos, err = readUvarint(payload, pos); err != nil {
			return nil, err
		}
		if pos+compLen > uint64(len(payload)) {
			return nil, fmt.Errorf("compressed column truncated")
		}
		raw, err := zstdDecoder.DecodeAll(payload[pos:pos+compLen], make([]byte, 0, rawLen))
		if err != nil {
			return nil, fmt.Errorf("column decompress: %w", err)
		}
		r.mem = raw
		return r, r.initVarBytes(raw, 0, uint64(len(raw)))
	}
	return nil, fmt.Errorf("column: unknown type %d", r.typ)
}

func (r *ColumnReader) initVarBytes(body []byte, start, end uint64) error {
	tableLen := uint64(r.numDocs+1) * 8
	if end < start+tableLen {
		return fmt.Errorf("var-bytes column body too short")
	}
	r.dataStart = start
	r.tableStart = end - tableLen
	return nil
}

// NumDocs returns the document count the column covers.
func (r *ColumnReader) NumDocs() int { return r.numDocs }

// Type returns the column element format.
func (r *ColumnReader) Type() schema.ColumnType { return r.typ }

// Present reports whether doc has a value. For Bit columns a value always
// exists and Present reports the bit itself.
func (r *ColumnReader) Present(doc uint32) bool {
	return r.present.Contains(doc)
}

// Numeric returns doc's int64 value.
func (r *ColumnReader) Numeric(doc uint32) (int64, bool) {
	if r.typ != schema.NumericColumn || int(doc) >= r.numDocs || !r.present.Contains(doc) {
		return 0, false
	}
	off := r.numericBase + uint64(doc)*8
	return int64(binary.LittleEndian.Uint64(r.mem[off : off+8])), true
}

// Bytes returns doc's byte value for the byte-shaped formats.
func (r *ColumnReader) Bytes(doc uint32) ([]byte, bool) {
	if int(doc) >= r.numDocs {
		return nil, false
	}
	switch r.typ {
	case schema.VarBytesColumn, schema.CompressedBytesColumn:
		if !r.present.Contains(doc) {
			return nil, false
		}
		o1 := binary.LittleEndian.Uint64(r.mem[r.tableStart+uint64(doc)*8:])
		o2 := binary.LittleEndian.Uint64(r.mem[r.tableStart+uint64(doc+1)*8:])
		return r.mem[r.dataStart+o1 : r.dataStart+o2], true
	case schema.FixedBytesColumn:
		if !r.present.Contains(doc) {
			return nil, false
		}
		off := r.dataStart + uint64(doc)*uint64(r.width)
		return r.mem[off : off+uint64(r.width)], true
	case schema.RefBytesColumn:
		ord := r.ordinal(doc)
		if ord == 0 {
			return nil, false
		}
		return r.dict[ord-1], true
	}
	return nil, false
}

// Bit returns doc's boolean value.
func (r *ColumnReader) Bit(doc uint32) bool {
	return r.typ == schema.BitColumn && r.present.Contains(doc)
}

func (r *ColumnReader) ordinal(doc uint32) uint32 {
	off := r.ordStart + uint64(doc)*4
	return binary.LittleEndian.Uint32(r.mem[off : off+4])
}

// Value returns doc's value in transferable form, used when merging
// segments.
func (r *ColumnReader) Value(doc uint32) ColumnValue {
	switch r.typ {
	case schema.NumericColumn:
		v, ok := r.Numeric(doc)
		return ColumnValue{Present: ok, Numeric: v}
	case schema.BitColumn:
		return ColumnValue{Present: true, Bit: r.Bit(doc)}
	default:
		b, ok := r.Bytes(doc)
		return ColumnValue{Present: ok, Bytes: b}
	}
}
