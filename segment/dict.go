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
)

// Dictionary is the term dictionary of one field within one segment: a
// vellum FST mapping term bytes to the offset of the term's postings
// record.
type Dictionary struct {
	field      string
	format     schema.Format
	fieldBoost float64
	fst        *vellum.FST
	postings   []byte // .pst payload
}

// TermInfo holds the per-segment statistics of one term.
type TermInfo struct {
	DocFreq   uint64
	TotalFreq uint64
}

// Field returns the field this dictionary indexes.
func (d *Dictionary) Field() string { return d.field }

// Len returns the number of terms in the dictionary.
func (d *Dictionary) Len() int {
	if d.fst == nil {
		return 0
	}
	return d.fst.Len()
}

// TermInfo returns the statistics for term, or ok=false if absent.
func (d *Dictionary) TermInfo(term []byte) (TermInfo, bool, error) {
	if d.fst == nil {
		return TermInfo{}, false, nil
	}
	offset, exists, err := d.fst.Get(term)
	if err != nil || !exists {
		return TermInfo{}, false, err
	}
	docFreq, pos, err := readUvarint(d.postings, offset)
	if err != nil {
		return TermInfo{}, false, err
	}
	totalFreq, _, err := readUvarint(d.postings, pos)
	if err != nil {
		return TermInfo{}, false, err
	}
	return TermInfo{DocFreq: docFreq, TotalFreq: totalFreq}, true, nil
}

// PostingsIterator returns an iterator over term's documents, rebased by
// docBase and hiding docnums in except. A nil iterator is returned for
// absent terms.
func (d *Dictionary) PostingsIterator(term []byte, docBase uint64,
	except *roaring.Bitmap) (*PostingsIterator, error) {
	if d.fst == nil {
		return nil, nil
	}
	offset, exists, err := d.fst.Get(term)
	if err != nil {
		return nil, fmt.Errorf("dictionary %s: %w", d.field, err)
	}
	if !exists {
		return nil, nil
	}
	return NewPostingsIterator(d.postings, offset, d.format, d.fieldBoost,
		docBase, except)
}

// TermEntry is one dictionary term with its postings record offset.
type TermEntry struct {
	Term   []byte
	Offset uint64
}

// DictIterator walks dictionary terms in order, wrapping the vellum
// iterators. Next returns nil at the end.
type DictIterator struct {
	itr vellum.Iterator
	err error
	cur TermEntry
}

// Next returns the next term entry in order. The entry is reused; its
// Term bytes are valid until the following call.
func (d *DictIterator) Next() (*TermEntry, error) {
	if d.err != nil || d.itr == nil {
		return nil, d.errOrNil()
	}
	term, offset := d.itr.Current()
	d.cur.Term = append(d.cur.Term[:0], term...)
	d.cur.Offset = offset
	d.err = d.itr.Next()
	return &d.cur, nil
}

func (d *DictIterator) errOrNil() error {
	if d.err == vellum.ErrIteratorDone || d.err == nil {
		return nil
	}
	return d.err
}

func (d *Dictionary) newIterator(itr vellum.Iterator, err error) (*DictIterator, error) {
	if err == vellum.ErrIteratorDone {
		return &DictIterator{}, nil
	}
	if err != nil {
		return nil, err
	}
	return &DictIterator{itr: itr}, nil
}

// Iterator iterates every term in order.
func (d *Dictionary) Iterator() (*DictIterator, error) {
	if d.fst == nil {
		return &DictIterator{}, nil
	}
	itr, err := d.fst.Iterator(nil, nil)
	return d.newIterator(itr, err)
}

// RangeIterator iterates terms in [lo, hi); a nil hi means unbounded.
func (d *Dictionary) RangeIterator(lo, hi []byte) (*DictIterator, error) {
	if d.fst == nil {
		return &DictIterator{}, nil
	}
	itr, err := d.fst.Iterator(lo, hi)
	return d.newIterator(itr, err)
}

// PrefixIterator iterates terms beginning with prefix.
func (d *Dictionary) PrefixIterator(prefix []byte) (*DictIterator, error) {
	if d.fst == nil {
		return &DictIterator{}, nil
	}
	end := incrementBytes(prefix)
	itr, err := d.fst.Iterator(prefix, end)
	return d.newIterator(itr, err)
}

// AutomatonIterator iterates terms accepted by a, optionally bounded by
// [start, end).
func (d *Dictionary) AutomatonIterator(a vellum.Automaton, start, end []byte) (*DictIterator, error) {
	if d.fst == nil {
		return &DictIterator{}, nil
	}
	itr, err := d.fst.Search(a, start, end)
	return d.newIterator(itr, err)
}

// incrementBytes returns the smallest byte string greater than every
// string prefixed by in, or nil when no such bound exists.
func incrementBytes(in []byte) []byte {
	rv := make([]byte, len(in))
	copy(rv, in)
	for i := len(rv) - 1; i >= 0; i-- {
		rv[i]++
		if rv[i] != 0 {
			return rv[:i+1]
		}
	}
	return nil
}
