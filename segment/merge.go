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

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/blevesearch/vellum"

	"github.com/quillindex/quill/schema"
	"github.com/quillindex/quill/store"
)

// Merge combines the given segments into one new segment, dropping the
// documents marked in drops (usually each segment's deletion bitmap) and
// renumbering the survivors densely in input order. The inputs are read
// through their normal readers; output goes through the same writers a
// flush uses, so merged segments are indistinguishable from fresh ones.
func Merge(st store.Storage, sch *schema.Schema, newID uint64,
	segs []*Segment, drops []*roaring.Bitmap) (*WriteStats, error) {
	if len(segs) == 0 {
		return nil, fmt.Errorf("merge: no input segments")
	}
	if len(drops) != len(segs) {
		return nil, fmt.Errorf("merge: %d drop sets for %d segments", len(drops), len(segs))
	}

	// dense renumbering: newDocNums[i][local] is the merged docnum or -1
	newDocNums := make([][]int64, len(segs))
	type docRef struct {
		seg   int
		local uint32
	}
	var docMap []docRef
	for i, seg := range segs {
		m := make([]int64, seg.Count())
		for local := uint32(0); uint64(local) < seg.Count(); local++ {
			if drops[i] != nil && drops[i].Contains(local) {
				m[local] = -1
				continue
			}
			m[local] = int64(len(docMap))
			docMap = append(docMap, docRef{seg: i, local: local})
		}
		newDocNums[i] = m
	}

	stats := &WriteStats{
		NumDocs:        uint64(len(docMap)),
		FieldLenTotals: make([]uint64, sch.Len()),
	}

	fieldTerms, err := mergePostingsFile(st, newID, sch, segs, newDocNums, stats)
	if err != nil {
		return nil, err
	}
	if err := writeTermsFile(st, newID, fieldTerms, stats); err != nil {
		return nil, err
	}

	err = persistFile(st, LengthsFileName(newID), stats, func(w *CountHashWriter) error {
		return writeLengths(w, sch.Len(), len(docMap), func(fieldID, doc int) uint32 {
			ref := docMap[doc]
			return segs[ref.seg].Lengths().Length(fieldID, ref.local)
		})
	})
	if err != nil {
		return nil, err
	}
	for fieldID := range stats.FieldLenTotals {
		for _, ref := range docMap {
			stats.FieldLenTotals[fieldID] += uint64(segs[ref.seg].Lengths().Length(fieldID, ref.local))
		}
	}

	err = persistFile(st, StoredFileName(newID), stats, func(w *CountHashWriter) error {
		sw := newStoredWriter(w)
		for _, ref := range docMap {
			record, err := segs[ref.seg].StoredReader().RawRecord(ref.local)
			if err != nil {
				return err
			}
			if err := sw.AddRaw(record); err != nil {
				return err
			}
		}
		return sw.Finish()
	})
	if err != nil {
		return nil, err
	}

	for _, def := range sch.Fields() {
		if def.Column == schema.NoColumn {
			continue
		}
		err = persistFile(st, ColumnFileName(newID, def.Name), stats, func(w *CountHashWriter) error {
			cw := NewColumnWriter(def.Column, def.FixedWidth)
			for newDoc, ref := range docMap {
				if col := segs[ref.seg].Column(def.Name); col != nil {
					cw.Add(uint32(newDoc), col.Value(ref.local))
				}
			}
			return cw.Persist(w, len(docMap))
		})
		if err != nil {
			return nil, err
		}
	}

	if hasVectorField(sch) {
		err = persistFile(st, VectorsFileName(newID), stats, func(w *CountHashWriter) error {
			vw := newVectorWriter(w)
			for _, ref := range docMap {
				vectors := segs[ref.seg].Vectors()
				if vectors == nil {
					if err := vw.Add(nil); err != nil {
						return err
					}
					continue
				}
				record, err := vectors.RawRecord(ref.local)
				if err != nil {
					return err
				}
				if err := vw.AddRaw(record); err != nil {
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

// mergePostingsFile walks the input dictionaries field by field with a
// term enumerator, re-encoding each surviving posting list with remapped
// docnums.
func mergePostingsFile(st store.Storage, newID uint64, sch *schema.Schema,
	segs []*Segment, newDocNums [][]int64, stats *WriteStats) ([][]TermEntry, error) {
	fieldTerms := make([][]TermEntry, sch.Len())

	err := persistFile(st, PostingsFileName(newID), stats, func(w *CountHashWriter) error {
		for fieldID, def := range sch.Fields() {
			if !def.Indexed() {
				continue
			}
			itrs := make([]vellum.Iterator, 0, len(segs))
			srcSegs := make([]int, 0, len(segs))
			for i, seg := range segs {
				dict, err := seg.Dictionary(def.Name)
				if err != nil {
					return err
				}
				if dict.fst == nil {
					continue
				}
				itr, err := dict.fst.Iterator(nil, nil)
				if err == vellum.ErrIteratorDone {
					continue
				}
				if err != nil {
					return err
				}
				itrs = append(itrs, itr)
				srcSegs = append(srcSegs, i)
			}
			if len(itrs) == 0 {
				continue
			}

			enum := newTermEnumerator(itrs)
			var postings []Posting
			for {
				term, idxs, ok := enum.Current()
				if !ok {
					break
				}
				postings = postings[:0]
				for _, idx := range idxs {
					segIdx := srcSegs[idx]
					it, err := NewPostingsIterator(segs[segIdx].pstPayload,
						enum.Value(idx), def.Format, def.Boost, 0, nil)
					if err != nil {
						_ = enum.Close()
						return err
					}
					for it.IsActive() {
						nd := newDocNums[segIdx][it.LocalID()]
						if nd < 0 {
							it.Next()
							continue
						}
						p := Posting{Doc: uint32(nd), Freq: it.Freq()}
						if def.Format.Has(schema.Positions) {
							p.Positions = append([]uint32(nil), it.Positions()...)
						}
						if def.Format.Has(schema.Chars) {
							for _, se := range it.Chars() {
								p.Starts = append(p.Starts, se[0])
								p.Ends = append(p.Ends, se[1])
							}
						}
						if def.Format.Has(schema.Boosts) {
							p.Boosts = append([]float32(nil), it.Boosts()...)
						}
						postings = append(postings, p)
						it.Next()
					}
				}
				if len(postings) > 0 {
					offset, err := writePostingsRecord(w, postings, def.Format, def.Boost)
					if err != nil {
						_ = enum.Close()
						return err
					}
					fieldTerms[fieldID] = append(fieldTerms[fieldID], TermEntry{
						Term:   append([]byte(nil), term...),
						Offset: offset,
					})
				}
				if err := enum.Next(); err != nil {
					_ = enum.Close()
					return err
				}
			}
			if err := enum.Close(); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return fieldTerms, nil
}
