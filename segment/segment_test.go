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
	"io"
	"reflect"
	"testing"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/quillindex/quill/schema"
	"github.com/quillindex/quill/store"
)

// sliceTermIterator feeds a literal, pre-sorted batch to the builder.
type sliceTermIterator struct {
	items []TermPostings
	i     int
}

func (s *sliceTermIterator) Next() (*TermPostings, error) {
	if s.i >= len(s.items) {
		return nil, io.EOF
	}
	tp := &s.items[s.i]
	s.i++
	return tp, nil
}

func testSchema(t *testing.T) *schema.Schema {
	t.Helper()
	sch, err := schema.New(
		schema.TEXT("desc", schema.WithVector()),
		schema.ID("id", schema.Stored(), schema.Unique()),
		schema.NUMERIC("price", schema.Sortable(), schema.Stored()),
	)
	if err != nil {
		t.Fatal(err)
	}
	return sch
}

// buildTestSegment indexes two small documents by hand:
//
//	doc 0: desc "apple ball cat", id "a", price 20
//	doc 1: desc "apple dog", id "b", price 10
func buildTestSegment(t *testing.T, st store.Storage, id uint64) *WriteStats {
	t.Helper()
	sch := testSchema(t)
	descID := sch.FieldID("desc")
	idID := sch.FieldID("id")
	priceID := sch.FieldID("price")

	terms := []TermPostings{
		{FieldID: descID, Term: []byte("apple"), Postings: []Posting{
			{Doc: 0, Freq: 1, Positions: []uint32{0}},
			{Doc: 1, Freq: 1, Positions: []uint32{0}},
		}},
		{FieldID: descID, Term: []byte("ball"), Postings: []Posting{
			{Doc: 0, Freq: 1, Positions: []uint32{1}},
		}},
		{FieldID: descID, Term: []byte("cat"), Postings: []Posting{
			{Doc: 0, Freq: 1, Positions: []uint32{2}},
		}},
		{FieldID: descID, Term: []byte("dog"), Postings: []Posting{
			{Doc: 1, Freq: 1, Positions: []uint32{1}},
		}},
		{FieldID: idID, Term: []byte("a"), Postings: []Posting{{Doc: 0, Freq: 1}}},
		{FieldID: idID, Term: []byte("b"), Postings: []Posting{{Doc: 1, Freq: 1}}},
		// numeric terms sort by encoded bytes, so 10 precedes 20
		{FieldID: priceID, Term: schema.EncodeInt64(10), Postings: []Posting{{Doc: 1, Freq: 1}}},
		{FieldID: priceID, Term: schema.EncodeInt64(20), Postings: []Posting{{Doc: 0, Freq: 1}}},
	}

	mkLengths := func(desc uint32) []uint32 {
		l := make([]uint32, 3)
		l[descID] = desc
		return l
	}
	mkColumns := func(price int64) []ColumnValue {
		c := make([]ColumnValue, 3)
		c[priceID] = ColumnValue{Present: true, Numeric: price}
		return c
	}
	mkVectors := func(entries []VectorEntry) [][]VectorEntry {
		v := make([][]VectorEntry, 3)
		v[descID] = entries
		return v
	}
	docs := []DocData{
		{
			Stored:  map[string]interface{}{"id": "a", "price": int64(20)},
			Lengths: mkLengths(3),
			Columns: mkColumns(20),
			Vectors: mkVectors([]VectorEntry{
				{Term: []byte("apple"), Positions: []uint32{0}},
				{Term: []byte("ball"), Positions: []uint32{1}},
				{Term: []byte("cat"), Positions: []uint32{2}},
			}),
		},
		{
			Stored:  map[string]interface{}{"id": "b", "price": int64(10)},
			Lengths: mkLengths(2),
			Columns: mkColumns(10),
			Vectors: mkVectors([]VectorEntry{
				{Term: []byte("apple"), Positions: []uint32{0}},
				{Term: []byte("dog"), Positions: []uint32{1}},
			}),
		},
	}

	stats, err := Write(st, id, sch, &sliceTermIterator{items: terms}, docs)
	if err != nil {
		t.Fatalf("error writing segment: %v", err)
	}
	return stats
}

func TestSegmentRoundTrip(t *testing.T) {
	st := store.NewMemStorage()
	stats := buildTestSegment(t, st, 0x1234)
	if stats.NumDocs != 2 {
		t.Fatalf("expected 2 docs, got %d", stats.NumDocs)
	}

	sch := testSchema(t)
	seg, err := Open(st, sch, 0x1234, 0)
	if err != nil {
		t.Fatalf("error opening segment: %v", err)
	}
	defer func() { _ = seg.Close() }()

	if seg.Count() != 2 {
		t.Errorf("expected count 2, got %d", seg.Count())
	}

	// dictionary iteration
	dict, err := seg.Dictionary("desc")
	if err != nil {
		t.Fatal(err)
	}
	expected := []string{"apple", "ball", "cat", "dog"}
	var got []string
	itr, err := dict.Iterator()
	if err != nil {
		t.Fatal(err)
	}
	for {
		entry, err := itr.Next()
		if err != nil {
			t.Fatal(err)
		}
		if entry == nil {
			break
		}
		got = append(got, string(entry.Term))
	}
	if !reflect.DeepEqual(expected, got) {
		t.Errorf("expected terms %v, got %v", expected, got)
	}

	// term stats
	info, ok, err := seg.TermInfo("desc", []byte("apple"))
	if err != nil || !ok {
		t.Fatalf("missing term info: %v", err)
	}
	if info.DocFreq != 2 || info.TotalFreq != 2 {
		t.Errorf("unexpected term info %+v", info)
	}

	// postings with positions
	it, err := seg.PostingsIterator("desc", []byte("apple"), 0)
	if err != nil {
		t.Fatal(err)
	}
	var docs []uint64
	for it.IsActive() {
		docs = append(docs, it.ID())
		if got := it.Positions(); len(got) != 1 || got[0] != 0 {
			t.Errorf("doc %d: unexpected positions %v", it.ID(), got)
		}
		it.Next()
	}
	if !reflect.DeepEqual([]uint64{0, 1}, docs) {
		t.Errorf("expected docs [0 1], got %v", docs)
	}

	// stored fields
	fields, err := seg.StoredFields(1)
	if err != nil {
		t.Fatal(err)
	}
	if fields["id"] != "b" {
		t.Errorf("unexpected stored fields %v", fields)
	}

	// lengths
	if l := seg.FieldLength(0, "desc"); l != 3 {
		t.Errorf("expected length 3, got %d", l)
	}
	if l := seg.FieldLength(1, "desc"); l != 2 {
		t.Errorf("expected length 2, got %d", l)
	}
	if stats.FieldLenTotals[sch.FieldID("desc")] != 5 {
		t.Errorf("unexpected field length totals %v", stats.FieldLenTotals)
	}

	// numeric column
	col := seg.Column("price")
	if col == nil {
		t.Fatal("missing price column")
	}
	if v, ok := col.Numeric(0); !ok || v != 20 {
		t.Errorf("expected price 20, got %d (%v)", v, ok)
	}
	if v, ok := col.Numeric(1); !ok || v != 10 {
		t.Errorf("expected price 10, got %d (%v)", v, ok)
	}

	// forward vector
	vec, err := seg.Vector(0, "desc")
	if err != nil {
		t.Fatal(err)
	}
	if len(vec) != 3 || string(vec[0].Term) != "apple" || string(vec[2].Term) != "cat" {
		t.Errorf("unexpected vector %v", vec)
	}

	// numeric terms order by value
	priceTerms, err := seg.Dictionary("price")
	if err != nil {
		t.Fatal(err)
	}
	pitr, err := priceTerms.Iterator()
	if err != nil {
		t.Fatal(err)
	}
	var prices []int64
	for {
		entry, err := pitr.Next()
		if err != nil {
			t.Fatal(err)
		}
		if entry == nil {
			break
		}
		prices = append(prices, schema.DecodeInt64(entry.Term))
	}
	if !reflect.DeepEqual([]int64{10, 20}, prices) {
		t.Errorf("expected prices [10 20], got %v", prices)
	}
}

func TestSegmentDeletions(t *testing.T) {
	st := store.NewMemStorage()
	buildTestSegment(t, st, 0x42)

	deleted := roaring.New()
	deleted.Add(0)
	if err := WriteDeletions(st, 0x42, 1, deleted); err != nil {
		t.Fatal(err)
	}

	seg, err := Open(st, testSchema(t), 0x42, 1)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = seg.Close() }()

	if seg.LiveCount() != 1 {
		t.Errorf("expected 1 live doc, got %d", seg.LiveCount())
	}
	if !seg.IsDeleted(0) || seg.IsDeleted(1) {
		t.Error("wrong deletion bits")
	}

	// deleted docs are hidden from postings
	it, err := seg.PostingsIterator("desc", []byte("apple"), 0)
	if err != nil {
		t.Fatal(err)
	}
	var docs []uint64
	for it.IsActive() {
		docs = append(docs, it.ID())
		it.Next()
	}
	if !reflect.DeepEqual([]uint64{1}, docs) {
		t.Errorf("expected docs [1], got %v", docs)
	}
}

func TestSegmentFooterValidation(t *testing.T) {
	st := store.NewMemStorage()
	buildTestSegment(t, st, 0x99)

	// corrupt one byte of the terms file
	h, err := st.Open(TermsFileName(0x99))
	if err != nil {
		t.Fatal(err)
	}
	data := append([]byte(nil), h.Data()...)
	_ = h.Close()
	data[0] ^= 0xff
	f, err := st.Create(TermsFileName(0x99))
	if err != nil {
		t.Fatal(err)
	}
	if _, err = f.Write(data); err != nil {
		t.Fatal(err)
	}
	if err = f.Close(); err != nil {
		t.Fatal(err)
	}

	if _, err := Open(st, testSchema(t), 0x99, 0); err == nil {
		t.Fatal("expected crc mismatch error")
	}
}
