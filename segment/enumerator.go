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

	"github.com/blevesearch/vellum"
)

// termEnumerator merges several vellum iterators, presenting the smallest
// current term and the set of inputs positioned at it. Used by segment
// merging to walk N dictionaries in one sorted pass.
type termEnumerator struct {
	itrs    []vellum.Iterator
	keys    [][]byte
	vals    []uint64
	alive   []bool
	lowKey  []byte
	lowIdxs []int
}

func newTermEnumerator(itrs []vellum.Iterator) *termEnumerator {
	e := &termEnumerator{
		itrs:  itrs,
		keys:  make([][]byte, len(itrs)),
		vals:  make([]uint64, len(itrs)),
		alive: make([]bool, len(itrs)),
	}
	for i, itr := range itrs {
		if itr != nil {
			k, v := itr.Current()
			e.keys[i] = append(e.keys[i][:0], k...)
			e.vals[i] = v
			e.alive[i] = true
		}
	}
	e.updateMatches()
	return e
}

// updateMatches finds the smallest live key and records which inputs sit
// on it.
func (e *termEnumerator) updateMatches() {
	e.lowKey = nil
	e.lowIdxs = e.lowIdxs[:0]
	for i := range e.itrs {
		if !e.alive[i] {
			continue
		}
		cmp := 1
		if e.lowKey != nil {
			cmp = bytes.Compare(e.keys[i], e.lowKey)
		}
		if cmp < 0 || e.lowKey == nil {
			e.lowKey = e.keys[i]
			e.lowIdxs = e.lowIdxs[:0]
			e.lowIdxs = append(e.lowIdxs, i)
		} else if cmp == 0 {
			e.lowIdxs = append(e.lowIdxs, i)
		}
	}
}

// Current returns the smallest term, the indexes of the inputs at it, and
// whether anything is left.
func (e *termEnumerator) Current() (term []byte, idxs []int, ok bool) {
	if len(e.lowIdxs) == 0 {
		return nil, nil, false
	}
	return e.lowKey, e.lowIdxs, true
}

// Value returns input idx's current FST value.
func (e *termEnumerator) Value(idx int) uint64 {
	return e.vals[idx]
}

// Next advances every input positioned at the current term.
func (e *termEnumerator) Next() error {
	for _, i := range e.lowIdxs {
		err := e.itrs[i].Next()
		if err == vellum.ErrIteratorDone {
			e.alive[i] = false
			continue
		}
		if err != nil {
			return err
		}
		k, v := e.itrs[i].Current()
		e.keys[i] = append(e.keys[i][:0], k...)
		e.vals[i] = v
	}
	e.updateMatches()
	return nil
}

// Close releases the underlying iterators.
func (e *termEnumerator) Close() error {
	var rv error
	for _, itr := range e.itrs {
		if itr == nil {
			continue
		}
		if err := itr.Close(); err != nil && rv == nil {
			rv = err
		}
	}
	return rv
}
