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
	"github.com/quillindex/quill/schema"
)

// Posting is one (term, document) entry handed to the segment builder.
// Positions, Starts/Ends and Boosts are parallel and present only as the
// field format demands.
type Posting struct {
	Doc       uint32
	Freq      uint32
	Positions []uint32
	Starts    []uint32
	Ends      []uint32
	Boosts    []float32
}

// TermPostings is the full posting list of one term within the flush
// batch, postings sorted by ascending Doc.
type TermPostings struct {
	FieldID  int
	Term     []byte
	Postings []Posting
}

// TermIterator streams TermPostings in strict (fieldID, term) order. It is
// how the writer's in-memory pool — or the k-way merge of its spilled
// runs — feeds the segment builder. Next returns io.EOF at the end.
type TermIterator interface {
	Next() (*TermPostings, error)
}

// VectorEntry is one term of a document's forward vector.
type VectorEntry struct {
	Term      []byte
	Positions []uint32
}

// ColumnValue is a document's value in a sortable column.
type ColumnValue struct {
	Present bool
	Numeric int64
	Bytes   []byte
	Bit     bool
}

// DocData carries everything about one buffered document other than its
// postings: the stored field map, per-field lengths, column values and
// forward vectors. Slices are indexed by schema field id.
type DocData struct {
	Stored  map[string]interface{}
	Lengths []uint32
	Columns []ColumnValue
	Vectors [][]VectorEntry
}

// postingWeight computes the raw scoring weight of one posting: the sum of
// position boosts when the format carries boosts, otherwise the term
// frequency, both scaled by the field boost.
func postingWeight(p *Posting, format schema.Format, fieldBoost float64) float32 {
	if format.Has(schema.Boosts) && len(p.Boosts) > 0 {
		var sum float64
		for _, b := range p.Boosts {
			sum += float64(b)
		}
		return float32(sum * fieldBoost)
	}
	if format.Has(schema.Freqs) {
		return float32(float64(p.Freq) * fieldBoost)
	}
	return float32(fieldBoost)
}
