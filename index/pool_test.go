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
	"io"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/quillindex/quill/segment"
	"github.com/quillindex/quill/store"
)

// TestPoolSpillAndMerge forces run spills with a tiny budget and checks
// that the flush-time merge reassembles each term's postings in order.
func TestPoolSpillAndMerge(t *testing.T) {
	st := store.NewMemStorage()
	sch := testSchema(t)
	contentID := sch.FieldID("content")

	p := newPool(st, sch, "t_", 64) // bytes; spills after nearly every doc

	words := [][]string{
		{"alpha", "beta"},
		{"alpha", "gamma"},
		{"beta", "gamma", "alpha"},
	}
	for doc, tokens := range words {
		for pos, tok := range tokens {
			p.addOccurrence(contentID, []byte(tok), uint32(doc), uint32(pos), 0, 0, 1)
		}
		p.nextDoc(segment.DocData{Lengths: make([]uint32, sch.Len())})
		require.NoError(t, p.maybeSpill())
	}
	require.NotEmpty(t, p.runs, "tiny budget must have spilled")

	it, err := p.finish()
	require.NoError(t, err)

	got := map[string][]uint32{}
	for {
		tp, err := it.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		require.Equal(t, contentID, tp.FieldID)
		var docs []uint32
		prev := int64(-1)
		for _, posting := range tp.Postings {
			require.Greater(t, int64(posting.Doc), prev, "postings must stay sorted")
			prev = int64(posting.Doc)
			docs = append(docs, posting.Doc)
		}
		got[string(tp.Term)] = docs
	}
	p.discard()

	require.Equal(t, map[string][]uint32{
		"alpha": {0, 1, 2},
		"beta":  {0, 2},
		"gamma": {1, 2},
	}, got)
}
