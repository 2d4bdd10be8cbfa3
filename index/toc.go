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
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"strconv"
	"strings"

	"github.com/quillindex/quill/schema"
	"github.com/quillindex/quill/segment"
	"github.com/quillindex/quill/store"
)

// The table of contents is one generation's manifest: the schema, the
// ordered segment list and their deletion state. It is written to a temp
// name, fsynced, and renamed into place, so a commit becomes visible
// atomically.

const tocMagic uint32 = 0x514c5831 // "QLX1"

// FormatVersion gates on-disk compatibility between the library and an
// index directory.
const FormatVersion uint32 = 1

// SegmentRecord is one segment's entry in a table of contents.
type SegmentRecord struct {
	ID             uint64
	DocCount       uint64
	DelGen         uint64
	DelCount       uint64
	ByteSize       uint64
	FieldLenTotals []uint64
}

// LiveCount returns the record's undeleted document count.
func (r *SegmentRecord) LiveCount() uint64 {
	return r.DocCount - r.DelCount
}

// TOC is the decoded table of contents of one generation.
type TOC struct {
	Generation uint64
	Schema     *schema.Schema
	Segments   []SegmentRecord
}

// DocCount returns the total live documents across all segments.
func (t *TOC) DocCount() uint64 {
	var n uint64
	for i := range t.Segments {
		n += t.Segments[i].LiveCount()
	}
	return n
}

func tocFileName(name string, generation uint64) string {
	return fmt.Sprintf("%s_%d.toc", name, generation)
}

// parseTOCFileName extracts the generation from a TOC file name belonging
// to the named index.
func parseTOCFileName(fileName, name string) (uint64, bool) {
	prefix := name + "_"
	if !strings.HasPrefix(fileName, prefix) || !strings.HasSuffix(fileName, ".toc") {
		return 0, false
	}
	genStr := strings.TrimSuffix(strings.TrimPrefix(fileName, prefix), ".toc")
	gen, err := strconv.ParseUint(genStr, 10, 64)
	if err != nil {
		return 0, false
	}
	return gen, true
}

// latestGeneration scans the storage for the highest TOC generation of the
// named index; ok is false when none exists.
func latestGeneration(st store.Storage, name string) (uint64, bool, error) {
	names, err := st.List()
	if err != nil {
		return 0, false, err
	}
	var best uint64
	found := false
	for _, fileName := range names {
		if gen, ok := parseTOCFileName(fileName, name); ok {
			if !found || gen > best {
				best = gen
				found = true
			}
		}
	}
	return best, found, nil
}

// writeTOC persists t under a temp name and atomically renames it to the
// generation's canonical name.
func writeTOC(st store.Storage, name string, t *TOC) error {
	final := tocFileName(name, t.Generation)
	temp := store.TempName(final)

	f, err := st.Create(temp)
	if err != nil {
		return err
	}
	w := segment.NewCountHashWriter(f)

	fail := func(err error) error {
		_ = f.Close()
		_ = st.Remove(temp)
		return err
	}

	var fixed [8]byte
	binary.LittleEndian.PutUint32(fixed[:4], tocMagic)
	binary.LittleEndian.PutUint32(fixed[4:], FormatVersion)
	if _, err = w.Write(fixed[:]); err != nil {
		return fail(err)
	}
	binary.LittleEndian.PutUint64(fixed[:], t.Generation)
	if _, err = w.Write(fixed[:]); err != nil {
		return fail(err)
	}

	schemaBlob, err := t.Schema.Marshal()
	if err != nil {
		return fail(err)
	}
	if err = writeTOCUvarint(w, uint64(len(schemaBlob))); err != nil {
		return fail(err)
	}
	if _, err = w.Write(schemaBlob); err != nil {
		return fail(err)
	}

	if err = writeTOCUvarint(w, uint64(len(t.Segments))); err != nil {
		return fail(err)
	}
	for i := range t.Segments {
		rec := &t.Segments[i]
		binary.LittleEndian.PutUint64(fixed[:], rec.ID)
		if _, err = w.Write(fixed[:]); err != nil {
			return fail(err)
		}
		for _, v := range []uint64{rec.DocCount, rec.DelGen, rec.DelCount,
			rec.ByteSize, uint64(len(rec.FieldLenTotals))} {
			if err = writeTOCUvarint(w, v); err != nil {
				return fail(err)
			}
		}
		for _, v := range rec.FieldLenTotals {
			if err = writeTOCUvarint(w, v); err != nil {
				return fail(err)
			}
		}
	}

	binary.LittleEndian.PutUint32(fixed[:4], w.Sum32())
	if _, err = w.Write(fixed[:4]); err != nil {
		return fail(err)
	}

	if err = f.Sync(); err != nil {
		return fail(err)
	}
	if err = f.Close(); err != nil {
		_ = st.Remove(temp)
		return err
	}
	return st.Rename(temp, final)
}

func writeTOCUvarint(w *segment.CountHashWriter, v uint64) error {
	var buf [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(buf[:], v)
	_, err := w.Write(buf[:n])
	return err
}

// readTOC loads and validates the TOC for (name, generation).
func readTOC(st store.Storage, name string, generation uint64) (*TOC, error) {
	h, err := st.Open(tocFileName(name, generation))
	if err != nil {
		return nil, err
	}
	defer func() { _ = h.Close() }()

	data := h.Data()
	if len(data) < 24 {
		return nil, fmt.Errorf("toc generation %d: file too short", generation)
	}
	crc := binary.LittleEndian.Uint32(data[len(data)-4:])
	if got := crc32.ChecksumIEEE(data[:len(data)-4]); got != crc {
		return nil, fmt.Errorf("toc generation %d: crc mismatch", generation)
	}
	payload := data[:len(data)-4]

	if binary.LittleEndian.Uint32(payload[:4]) != tocMagic {
		return nil, fmt.Errorf("toc generation %d: bad magic", generation)
	}
	if v := binary.LittleEndian.Uint32(payload[4:8]); v != FormatVersion {
		return nil, fmt.Errorf("toc generation %d: version %d: %w",
			generation, v, ErrIncompatibleFormat)
	}
	t := &TOC{Generation: binary.LittleEndian.Uint64(payload[8:16])}
	pos := uint64(16)

	schemaLen, pos, err := readTOCUvarint(payload, pos)
	if err != nil {
		return nil, err
	}
	if t.Schema, err = schema.Unmarshal(payload[pos : pos+schemaLen]); err != nil {
		return nil, err
	}
	pos += schemaLen

	numSegments, pos, err := readTOCUvarint(payload, pos)
	if err != nil {
		return nil, err
	}
	t.Segments = make([]SegmentRecord, numSegments)
	for i := range t.Segments {
		rec := &t.Segments[i]
		if pos+8 > uint64(len(payload)) {
			return nil, fmt.Errorf("toc generation %d: truncated segment record", generation)
		}
		rec.ID = binary.LittleEndian.Uint64(payload[pos:])
		pos += 8
		var numFields uint64
		for _, dst := range []*uint64{&rec.DocCount, &rec.DelGen, &rec.DelCount,
			&rec.ByteSize, &numFields} {
			if *dst, pos, err = readTOCUvarint(payload, pos); err != nil {
				return nil, err
			}
		}
		rec.FieldLenTotals = make([]uint64, numFields)
		for f := range rec.FieldLenTotals {
			if rec.FieldLenTotals[f], pos, err = readTOCUvarint(payload, pos); err != nil {
				return nil, err
			}
		}
	}
	return t, nil
}

func readTOCUvarint(data []byte, pos uint64) (uint64, uint64, error) {
	v, n := binary.Uvarint(data[pos:])
	if n <= 0 {
		return 0, 0, fmt.Errorf("toc: corrupt uvarint at %d", pos)
	}
	return v, pos + uint64(n), nil
}
