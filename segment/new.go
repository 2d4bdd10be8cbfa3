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
	"fmt"
	"io"

	"github.com/blevesearch/vellum"

	"github.com/quillindex/quill/schema"
	"github.com/quillindex/quill/store"
)

// WriteStats summarizes a freshly written segment for the table of
// contents and the merge policy.
type WriteStats struct {
	NumDocs        uint64
	ByteSize       uint64
	FieldLenTotals []uint64
	Files          []string
}

// Write builds a complete segment from a flush batch: a TermIterator
// streaming every (field, term, postings) in order, plus the per-document
// data. Output is deterministic for identical input ordering.
func Write(st store.Storage, id uint64, sch *schema.Schema,
	terms TermIterator, docs []DocData) (*WriteStats, error) {
	stats := &WriteStats{
		NumDocs:        uint64(len(docs)),
		FieldLenTotals: make([]uint64, sch.Len()),
	}
	for i := range docs {
		for f, l := range docs[i].Lengths {
			stats.FieldLenTotals[f] += uint64(l)
		}
	}

	fieldTerms, err := writePostingsFile(st, id, sch, terms, stats)
	if err != nil {
		return nil, err
	}
	if err := writeTermsFile(st, id, fieldTerms, stats); err != nil {
		return nil, err
	}

	err = persistFile(st, LengthsFileName(id), stats, func(w *CountHashWriter) error {
		return writeLengths(w, sch.Len(), len(docs), func(fieldID, doc int) uint32 {
			if fieldID < len(docs[doc].Lengths) {
				return docs[doc].Lengths[fieldID]
			}
			return 0
		})
	})
	if err != nil {
		return nil, err
	}

	err = persistFile(st, StoredFileName(id), stats, func(w *CountHashWriter) error {
		sw := newStoredWriter(w)
		for i := range docs {
			fields := docs[i].Stored
			if fields == nil {
				fields = map[string]interface{}{}
			}
			if err := sw.Add(fields); err != nil {
				return err
			}
		}
		return sw.Finish()
	})
	if err != nil {
		return nil, err
	}

	for fieldID, def := range sch.Fields() {
		if def.Column == schema.NoColumn {
			continue
		}
		fieldID := fieldID
		err = persistFile(st, ColumnFileName(id, def.Name), stats, func(w *CountHashWriter) error {
			cw := NewColumnWriter(def.Column, def.FixedWidth)
			for i := range docs {
				if fieldID < len(docs[i].Columns) {
					cw.Add(uint32(i), docs[i].Columns[fieldID])
				}
			}
			return cw.Persist(w, len(docs))
		})
		if err != nil {
			return nil, err
		}
	}

	if hasVectorField(sch) {
		err = persistFile(st, VectorsFileName(id), stats, func(w *CountHashWriter) error {
			vw := newVectorWriter(w)
			for i := range docs {
				if err := vw.Add(docs[i].Vectors); err != nil {
					return err
				}
			}
			return vw.Finish()
		})
		if err != nil {
			return nil, err
		}
	}

	return stats, nil
}

func hasVectorField(sch *schema.Schema) bool {
	for _, def := range sch.Fields() {
		if def.Vector {
			return true
		}
	}
	return false
}

// writePostingsFile streams every term's postings record into the .pst
// file and returns the per-field (term, offset) lists for the dictionary.
func writePostingsFile(st store.Storage, id uint64, sch *schema.Schema,
	terms TermIterator, stats *WriteStats) ([][]TermEntry, error) {
	fieldTerms := make([][]TermEntry, sch.Len())
	defs := sch.Fields()

	err := persistFile(st, PostingsFileName(id), stats, func(w *CountHashWriter) error {
		for {
			tp, err := terms.Next()
			if err == io.EOF {
				return nil
			}
			if err != nil {
				return err
			}
			if tp.FieldID < 0 || tp.FieldID >= len(defs) {
				return fmt.Errorf("postings for unknown field id %d", tp.FieldID)
			}
			def := &defs[tp.FieldID]
			offset, err := writePostingsRecord(w, tp.Postings, def.Format, def.Boost)
			if err != nil {
				return err
			}
			fieldTerms[tp.FieldID] = append(fieldTerms[tp.FieldID], TermEntry{
				Term:   append([]byte(nil), tp.Term...),
				Offset: offset,
			})
		}
	})
	if err != nil {
		return nil, err
	}
	return fieldTerms, nil
}

// writeTermsFile builds one vellum FST per field over the term/offset
// lists and appends the field directory.
func writeTermsFile(st store.Storage, id uint64,
	fieldTerms [][]TermEntry, stats *WriteStats) error {
	return persistFile(st, TermsFileName(id), stats, func(w *CountHashWriter) error {
		type dirEntry struct {
			fieldID int
			offset  uint64
			length  uint64
		}
		var dir []dirEntry

		for fieldID, entries := range fieldTerms {
			if len(entries) == 0 {
				continue
			}
			start := uint64(w.Count())
			builder, err := vellum.New(w, nil)
			if err != nil {
				return err
			}
			for _, e := range entries {
				if err = builder.Insert(e.Term, e.Offset); err != nil {
					return fmt.Errorf("field %d term %q: %w", fieldID, e.Term, err)
				}
			}
			if err = builder.Close(); err != nil {
				return err
			}
			dir = append(dir, dirEntry{
				fieldID: fieldID,
				offset:  start,
				length:  uint64(w.Count()) - start,
			})
		}

		dirOffset := uint64(w.Count())
		if err := writeUvarint(w, uint64(len(dir))); err != nil {
			return err
		}
		for _, e := range dir {
			if err := writeUvarints(w, uint64(e.fieldID), e.offset, e.length); err != nil {
				return err
			}
		}
		return writeUint64(w, dirOffset)
	})
}

// persistFile creates name, fills its payload, and seals it with the
// common footer. The file's size is accounted into stats.
func persistFile(st store.Storage, name string, stats *WriteStats,
	fill func(w *CountHashWriter) error) error {
	f, err := st.Create(name)
	if err != nil {
		return err
	}
	w := NewCountHashWriter(f)
	if err = fill(w); err != nil {
		_ = f.Close()
		return fmt.Errorf("%s: %w", name, err)
	}
	if err = writeFooter(w); err != nil {
		_ = f.Close()
		return err
	}
	if err = f.Sync(); err != nil {
		_ = f.Close()
		return err
	}
	if err = f.Close(); err != nil {
		return err
	}
	stats.ByteSize += uint64(w.Count())
	stats.Files = append(stats.Files, name)
	return nil
}
