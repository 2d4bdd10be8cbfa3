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
	"reflect"
	"testing"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/quillindex/quill/store"
)

func TestMergeTwoSegments(t *testing.T) {
	st := store.NewMemStorage()
	sch := testSchema(t)

	buildTestSegment(t, st, 1)
	buildTestSegment(t, st, 2)

	seg1, err := Open(st, sch, 1, 0)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = seg1.Close() }()
	seg2, err := Open(st, sch, 2, 0)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = seg2.Close() }()

	// drop doc 0 of the second segment
	drop := roaring.New()
	drop.Add(0)

	stats, err := Merge(st, sch, 3, []*Segment{seg1, seg2},
		[]*roaring.Bitmap{nil, drop})
	if err != nil {
		t.Fatalf("error merging: %v", err)
	}
	if stats.NumDocs != 3 {
		t.Fatalf("expected 3 merged docs, got %d", stats.NumDocs)
	}

	merged, err := Open(st, sch, 3, 0)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = merged.Close() }()

	// apple appeared in all four docs; one was dropped
	it, err := merged.PostingsIterator("desc", []byte("apple"), 0)
	if err != nil {
		t.Fatal(err)
	}
	var docs []uint64
	for it.IsActive() {
		docs = append(docs, it.ID())
		it.Next()
	}
	if !reflect.DeepEqual([]uint64{0, 1, 2}, docs) {
		t.Errorf("expected docs [0 1 2], got %v", docs)
	}

	// "ball" only existed in each segment's doc 0; the second copy was
	// dropped
	info, ok, err := merged.TermInfo("desc", []byte("ball"))
	if err != nil || !ok {
		t.Fatalf("missing ball: %v", err)
	}
	if info.DocFreq != 1 {
		t.Errorf("expected doc freq 1, got %d", info.DocFreq)
	}

	// stored fields follow the renumbering: merged doc 2 is the second
	// segment's doc 1
	fields, err := merged.StoredFields(2)
	if err != nil {
		t.Fatal(err)
	}
	if fields["id"] != "b" {
		t.Errorf("unexpected stored fields %v", fields)
	}

	// columns are carried over
	col := merged.Column("price")
	if v, ok := col.Numeric(2); !ok || v != 10 {
		t.Errorf("expected price 10, got %d (%v)", v, ok)
	}

	// vectors are carried over raw
	vec, err := merged.Vector(2, "desc")
	if err != nil {
		t.Fatal(err)
	}
	if len(vec) != 2 || string(vec[1].Term) != "dog" {
		t.Errorf("unexpected merged vector %v", vec)
	}

	// lengths and their totals survive
	if l := merged.FieldLength(0, "desc"); l != 3 {
		t.Errorf("expected length 3, got %d", l)
	}
	if stats.FieldLenTotals[sch.FieldID("desc")] != 3+2+2 {
		t.Errorf("unexpected merged length totals %v", stats.FieldLenTotals)
	}
}
