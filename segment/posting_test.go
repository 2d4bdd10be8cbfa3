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
	"testing"

	"github.com/quillindex/quill/schema"
)

// buildPostingsRecord encodes a posting list into a scratch buffer and
// returns an iterator over it.
func buildPostingsRecord(t *testing.T, postings []Posting, format schema.Format) *PostingsIterator {
	t.Helper()
	var buf bytes.Buffer
	w := NewCountHashWriter(&buf)
	offset, err := writePostingsRecord(w, postings, format, 1)
	if err != nil {
		t.Fatalf("error writing postings record: %v", err)
	}
	it, err := NewPostingsIterator(buf.Bytes(), offset, format, 1, 0, nil)
	if err != nil {
		t.Fatalf("error opening postings iterator: %v", err)
	}
	return it
}

func TestPostingsMultiBlock(t *testing.T) {
	// 300 docs spans three blocks at 128 docs per block
	postings := make([]Posting, 300)
	for i := range postings {
		postings[i] = Posting{Doc: uint32(i * 3), Freq: uint32(1 + i%5)}
	}
	it := buildPostingsRecord(t, postings, schema.Exists|schema.Freqs)

	if it.DocFreq() != 300 {
		t.Fatalf("expected doc freq 300, got %d", it.DocFreq())
	}

	// full iteration yields strictly ascending docs
	prev := int64(-1)
	n := 0
	for it.IsActive() {
		if int64(it.ID()) <= prev {
			t.Fatalf("docs not ascending at %d", it.ID())
		}
		prev = int64(it.ID())
		n++
		it.Next()
	}
	if n != 300 {
		t.Fatalf("expected 300 docs, got %d", n)
	}
}

func TestPostingsSkipTo(t *testing.T) {
	postings := make([]Posting, 300)
	for i := range postings {
		postings[i] = Posting{Doc: uint32(i * 3), Freq: 1}
	}
	it := buildPostingsRecord(t, postings, schema.Exists|schema.Freqs)

	// skip across block boundaries
	if !it.SkipTo(500) {
		t.Fatal("skip to 500 should remain active")
	}
	if it.ID() != 501 {
		t.Errorf("expected doc 501, got %d", it.ID())
	}
	// skip to an exact member
	if !it.SkipTo(600) {
		t.Fatal("skip to 600 should remain active")
	}
	if it.ID() != 600 {
		t.Errorf("expected doc 600, got %d", it.ID())
	}
	// skip past the end
	if it.SkipTo(10000) {
		t.Error("skip past the end should deactivate")
	}
}

func TestPostingsBlockMaxQuality(t *testing.T) {
	// one heavy doc in the last block, light docs elsewhere
	postings := make([]Posting, 300)
	for i := range postings {
		postings[i] = Posting{Doc: uint32(i), Freq: 1}
	}
	postings[299].Freq = 50
	it := buildPostingsRecord(t, postings, schema.Exists|schema.Freqs)

	if it.MaxWeight() != 50 {
		t.Fatalf("expected max weight 50, got %g", it.MaxWeight())
	}

	// skipping past quality 1 must land inside the final block
	if !it.SkipToQuality(1) {
		t.Fatal("quality skip should remain active")
	}
	if it.ID() < 256 {
		t.Errorf("expected to land in the last block, got doc %d", it.ID())
	}
	found := false
	for it.IsActive() {
		if it.ID() == 299 && it.Weight() == 50 {
			found = true
		}
		it.Next()
	}
	if !found {
		t.Error("heavy doc not reachable after quality skip")
	}
}

func TestPostingsCharsAndWeights(t *testing.T) {
	postings := []Posting{
		{
			Doc: 7, Freq: 2,
			Positions: []uint32{1, 4},
			Starts:    []uint32{5, 20},
			Ends:      []uint32{9, 26},
		},
	}
	it := buildPostingsRecord(t, postings, schema.Exists|schema.Freqs|schema.Positions|schema.Chars)

	if !it.IsActive() || it.ID() != 7 {
		t.Fatal("expected doc 7")
	}
	chars := it.Chars()
	if len(chars) != 2 || chars[0] != [2]uint32{5, 9} || chars[1] != [2]uint32{20, 26} {
		t.Errorf("unexpected chars %v", chars)
	}
	if it.Weight() != 2 {
		t.Errorf("expected weight 2, got %g", it.Weight())
	}
}
