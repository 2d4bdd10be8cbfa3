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
	"encoding/binary"
	"fmt"
	"math"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/quillindex/quill/schema"
)

// Postings are laid out as fixed-capacity blocks of ascending doc deltas
// with per-block min/max doc and max weight, so that a consumer can skip a
// whole block either by doc id (SkipTo) or by quality (SkipToQuality)
// without decoding it.
//
// Record layout in the .pst file:
//
//	uvarint docFreq
//	uvarint totalFreq
//	float32 maxWeight
//	uvarint numBlocks
//	numBlocks × { uvarint firstDoc, uvarint lastDoc, uvarint count,
//	              float32 maxWeight, uvarint byteLen }
//	block data …
//
// Block data holds the per-doc arrays in format order: doc deltas, freqs,
// position deltas per doc, char start/end pairs per position, boosts per
// position.
const blockCapacity = 128

// writePostingsRecord encodes one term's postings and returns the record's
// offset within the writer.
func writePostingsRecord(w *CountHashWriter, postings []Posting,
	format schema.Format, fieldBoost float64) (uint64, error) {
	offset := uint64(w.Count())

	var totalFreq uint64
	maxWeight := float32(0)
	for i := range postings {
		if format.Has(schema.Freqs) {
			totalFreq += uint64(postings[i].Freq)
		} else {
			totalFreq++
		}
		if wt := postingWeight(&postings[i], format, fieldBoost); wt > maxWeight {
			maxWeight = wt
		}
	}

	numBlocks := (len(postings) + blockCapacity - 1) / blockCapacity

	// encode the blocks into scratch space first so the index can record
	// their byte lengths
	type blockMeta struct {
		firstDoc, lastDoc uint32
		count             int
		maxWeight         float32
		data              []byte
	}
	blocks := make([]blockMeta, 0, numBlocks)

	var scratch bytes.Buffer
	var varBuf [binary.MaxVarintLen64]byte
	putUvarint := func(v uint64) {
		n := binary.PutUvarint(varBuf[:], v)
		scratch.Write(varBuf[:n])
	}
	putFloat32 := func(v float32) {
		binary.LittleEndian.PutUint32(varBuf[:4], math.Float32bits(v))
		scratch.Write(varBuf[:4])
	}

	for start := 0; start < len(postings); start += blockCapacity {
		end := start + blockCapacity
		if end > len(postings) {
			end = len(postings)
		}
		blk := postings[start:end]
		scratch.Reset()

		blockMax := float32(0)
		prev := blk[0].Doc
		for i := range blk {
			putUvarint(uint64(blk[i].Doc - prev))
			prev = blk[i].Doc
			if wt := postingWeight(&blk[i], format, fieldBoost); wt > blockMax {
				blockMax = wt
			}
		}
		if format.Has(schema.Freqs) {
			for i := range blk {
				putUvarint(uint64(blk[i].Freq))
			}
		}
		if format.Has(schema.Positions) {
			for i := range blk {
				prevPos := uint32(0)
				for _, pos := range blk[i].Positions {
					putUvarint(uint64(pos - prevPos))
					prevPos = pos
				}
			}
		}
		if format.Has(schema.Chars) {
			for i := range blk {
				prevStart := uint32(0)
				for j := range blk[i].Starts {
					putUvarint(uint64(blk[i].Starts[j] - prevStart))
					putUvarint(uint64(blk[i].Ends[j] - blk[i].Starts[j]))
					prevStart = blk[i].Starts[j]
				}
			}
		}
		if format.Has(schema.Boosts) {
			for i := range blk {
				for _, b := range blk[i].Boosts {
					putFloat32(b)
				}
			}
		}

		blocks = append(blocks, blockMeta{
			firstDoc:  blk[0].Doc,
			lastDoc:   blk[len(blk)-1].Doc,
			count:     len(blk),
			maxWeight: blockMax,
			data:      append([]byte(nil), scratch.Bytes()...),
		})
	}

	if err := writeUvarints(w, uint64(len(postings)), totalFreq); err != nil {
		return 0, err
	}
	if err := writeFloat32(w, maxWeight); err != nil {
		return 0, err
	}
	if err := writeUvarint(w, uint64(len(blocks))); err != nil {
		return 0, err
	}
	for _, b := range blocks {
		err := writeUvarints(w, uint64(b.firstDoc), uint64(b.lastDoc), uint64(b.count))
		if err != nil {
			return 0, err
		}
		if err = writeFloat32(w, b.maxWeight); err != nil {
			return 0, err
		}
		if err = writeUvarint(w, uint64(len(b.data))); err != nil {
			return 0, err
		}
	}
	for _, b := range blocks {
		if _, err := w.Write(b.data); err != nil {
			return 0, err
		}
	}

	return offset, nil
}

type blockEntry struct {
	firstDoc  uint32
	lastDoc   uint32
	count     int
	maxWeight float32
	offset    uint64
	length    uint64
}

// PostingsIterator streams one term's documents in ascending order within
// one segment. It is the leaf the matcher algebra is built on. DocBase is
// added to every local docnum so a multi-segment reader can hand out
// globally ordered ids.
type PostingsIterator struct {
	mem        []byte
	format     schema.Format
	fieldBoost float64
	except     *roaring.Bitmap

	docFreq   uint64
	totalFreq uint64
	maxWeight float32
	blocks    []blockEntry

	docBase uint64

	// decoded state of the current block
	cur     int
	docs    []uint32
	freqs   []uint32
	weights []float32
	posEnds []int // prefix ends into positions/starts/ends/boosts pools
	posPool []uint32
	chrPool [][2]uint32
	bstPool []float32

	i      int
	active bool
}

// NewPostingsIterator decodes the record header at offset in the postings
// payload. except marks local docnums to hide (deleted documents).
func NewPostingsIterator(mem []byte, offset uint64, format schema.Format,
	fieldBoost float64, docBase uint64, except *roaring.Bitmap) (*PostingsIterator, error) {
	it := &PostingsIterator{
		mem:        mem,
		format:     format,
		fieldBoost: fieldBoost,
		except:     except,
		docBase:    docBase,
		cur:        -1,
		i:          -1,
	}

	pos := offset
	var err error
	if it.docFreq, pos, err = readUvarint(mem, pos); err != nil {
		return nil, err
	}
	if it.totalFreq, pos, err = readUvarint(mem, pos); err != nil {
		return nil, err
	}
	if pos+4 > uint64(len(mem)) {
		return nil, fmt.Errorf("postings record truncated at %d", pos)
	}
	it.maxWeight = math.Float32frombits(binary.LittleEndian.Uint32(mem[pos:]))
	pos += 4

	numBlocks, pos, err := readUvarint(mem, pos)
	if err != nil {
		return nil, err
	}
	it.blocks = make([]blockEntry, numBlocks)
	for b := range it.blocks {
		var first, last, count, length uint64
		if first, pos, err = readUvarint(mem, pos); err != nil {
			return nil, err
		}
		if last, pos, err = readUvarint(mem, pos); err != nil {
			return nil, err
		}
		if count, pos, err = readUvarint(mem, pos); err != nil {
			return nil, err
		}
		if pos+4 > uint64(len(mem)) {
			return nil, fmt.Errorf("postings block index truncated at %d", pos)
		}
		maxW := math.Float32frombits(binary.LittleEndian.Uint32(mem[pos:]))
		pos += 4
		if length, pos, err = readUvarint(mem, pos); err != nil {
			return nil, err
		}
		it.blocks[b] = blockEntry{
			firstDoc:  uint32(first),
			lastDoc:   uint32(last),
			count:     int(count),
			maxWeight: maxW,
			length:    length,
		}
	}
	// block data offsets follow the index contiguously
	for b := range it.blocks {
		it.blocks[b].offset = pos
		pos += it.blocks[b].length
	}
	if pos > uint64(len(mem)) {
		return nil, fmt.Errorf("postings blocks overrun file: %d > %d", pos, len(mem))
	}

	it.active = it.advance()
	return it, nil
}

// DocFreq returns the number of documents carrying the term, deletions not
// subtracted.
func (it *PostingsIterator) DocFreq() uint64 { return it.docFreq }

// TotalFreq returns the term's total occurrence count in the segment.
func (it *PostingsIterator) TotalFreq() uint64 { return it.totalFreq }

// MaxWeight returns the largest posting weight across the whole list.
func (it *PostingsIterator) MaxWeight() float64 { return float64(it.maxWeight) }

// IsActive reports whether the iterator currently points at a document.
func (it *PostingsIterator) IsActive() bool { return it.active }

// ID returns the current rebased docnum. Undefined when !IsActive.
func (it *PostingsIterator) ID() uint64 {
	return it.docBase + uint64(it.docs[it.i])
}

// LocalID returns the current segment-local docnum.
func (it *PostingsIterator) LocalID() uint32 { return it.docs[it.i] }

// Next advances to the following live document.
func (it *PostingsIterator) Next() bool {
	if !it.active {
		return false
	}
	it.active = it.advance()
	return it.active
}

// advance steps once, loading blocks as needed and skipping deleted docs.
func (it *PostingsIterator) advance() bool {
	for {
		it.i++
		for it.cur < 0 || it.i >= len(it.docs) {
			if it.cur+1 >= len(it.blocks) {
				return false
			}
			it.cur++
			if err := it.loadBlock(it.cur); err != nil {
				return false
			}
			it.i = 0
		}
		if it.except != nil && it.except.Contains(it.docs[it.i]) {
			continue
		}
		return true
	}
}

// SkipTo advances to the first live document with rebased id >= target.
func (it *PostingsIterator) SkipTo(target uint64) bool {
	if !it.active {
		return false
	}
	if target <= it.ID() {
		return true
	}
	local := uint32(0)
	if target > it.docBase {
		t := target - it.docBase
		if t > math.MaxUint32 {
			it.active = false
			return false
		}
		local = uint32(t)
	}

	// skip whole blocks whose lastDoc is below the target
	blk := it.cur
	for blk < len(it.blocks) && it.blocks[blk].lastDoc < local {
		blk++
	}
	if blk >= len(it.blocks) {
		it.active = false
		return false
	}
	if blk != it.cur {
		it.cur = blk
		if err := it.loadBlock(blk); err != nil {
			it.active = false
			return false
		}
		it.i = 0
	}
	for it.active {
		if it.docs[it.i] >= local &&
			(it.except == nil || !it.except.Contains(it.docs[it.i])) {
			return true
		}
		it.active = it.advanceFrom()
	}
	return false
}

// advanceFrom is advance without re-entering the current position.
func (it *PostingsIterator) advanceFrom() bool {
	it.i++
	for it.i >= len(it.docs) {
		if it.cur+1 >= len(it.blocks) {
			return false
		}
		it.cur++
		if err := it.loadBlock(it.cur); err != nil {
			return false
		}
		it.i = 0
	}
	return true
}

// Weight returns the raw term weight at the current document.
func (it *PostingsIterator) Weight() float64 {
	return float64(it.weights[it.i])
}

// Freq returns the term frequency at the current document.
func (it *PostingsIterator) Freq() uint32 {
	if it.freqs == nil {
		return 1
	}
	return it.freqs[it.i]
}

// Positions returns the token positions at the current document. The slice
// is valid until the iterator advances past the current block.
func (it *PostingsIterator) Positions() []uint32 {
	if it.posEnds == nil {
		return nil
	}
	start := 0
	if it.i > 0 {
		start = it.posEnds[it.i-1]
	}
	return it.posPool[start:it.posEnds[it.i]]
}

// Chars returns the start/end character offsets parallel to Positions.
func (it *PostingsIterator) Chars() [][2]uint32 {
	if it.chrPool == nil {
		return nil
	}
	start := 0
	if it.i > 0 {
		start = it.posEnds[it.i-1]
	}
	return it.chrPool[start:it.posEnds[it.i]]
}

// Boosts returns the per-position boosts parallel to Positions.
func (it *PostingsIterator) Boosts() []float32 {
	if it.bstPool == nil || it.posEnds == nil {
		return nil
	}
	start := 0
	if it.i > 0 {
		start = it.posEnds[it.i-1]
	}
	return it.bstPool[start:it.posEnds[it.i]]
}

// BlockMaxWeight returns the weight upper bound of the current block.
func (it *PostingsIterator) BlockMaxWeight() float64 {
	if !it.active {
		return 0
	}
	return float64(it.blocks[it.cur].maxWeight)
}

// SkipToQuality advances past blocks whose max weight does not exceed
// minWeight. Returns IsActive.
func (it *PostingsIterator) SkipToQuality(minWeight float64) bool {
	if !it.active {
		return false
	}
	blk := it.cur
	if float64(it.blocks[blk].maxWeight) > minWeight {
		return true
	}
	for blk < len(it.blocks) && float64(it.blocks[blk].maxWeight) <= minWeight {
		blk++
	}
	if blk >= len(it.blocks) {
		it.active = false
		return false
	}
	it.cur = blk
	if err := it.loadBlock(blk); err != nil {
		it.active = false
		return false
	}
	it.i = -1
	it.active = it.advance()
	return it.active
}

// loadBlock decodes block b into the iterator's working arrays.
func (it *PostingsIterator) loadBlock(b int) error {
	entry := &it.blocks[b]
	data := it.mem[entry.offset : entry.offset+entry.length]
	pos := uint64(0)

	var err error
	it.docs = resizeUint32(it.docs, entry.count)
	doc := entry.firstDoc
	for i := 0; i < entry.count; i++ {
		var delta uint64
		if delta, pos, err = readUvarint(data, pos); err != nil {
			return err
		}
		doc += uint32(delta)
		it.docs[i] = doc
	}

	totalPositions := 0
	if it.format.Has(schema.Freqs) {
		it.freqs = resizeUint32(it.freqs, entry.count)
		for i := 0; i < entry.count; i++ {
			var f uint64
			if f, pos, err = readUvarint(data, pos); err != nil {
				return err
			}
			it.freqs[i] = uint32(f)
			totalPositions += int(f)
		}
	} else {
		it.freqs = nil
		totalPositions = entry.count
	}

	if it.format.Has(schema.Positions) {
		if cap(it.posEnds) < entry.count {
			it.posEnds = make([]int, entry.count)
		}
		it.posEnds = it.posEnds[:entry.count]
		it.posPool = resizeUint32(it.posPool, totalPositions)
		n := 0
		for i := 0; i < entry.count; i++ {
			freq := 1
			if it.freqs != nil {
				freq = int(it.freqs[i])
			}
			p := uint32(0)
			for j := 0; j < freq; j++ {
				var delta uint64
				if delta, pos, err = readUvarint(data, pos); err != nil {
					return err
				}
				p += uint32(delta)
				it.posPool[n] = p
				n++
			}
			it.posEnds[i] = n
		}
	} else {
		it.posEnds = nil
	}

	if it.format.Has(schema.Chars) {
		if cap(it.chrPool) < totalPositions {
			it.chrPool = make([][2]uint32, totalPositions)
		}
		it.chrPool = it.chrPool[:totalPositions]
		n := 0
		for i := 0; i < entry.count; i++ {
			freq := 1
			if it.freqs != nil {
				freq = int(it.freqs[i])
			}
			start := uint32(0)
			for j := 0; j < freq; j++ {
				var sd, l uint64
				if sd, pos, err = readUvarint(data, pos); err != nil {
					return err
				}
				if l, pos, err = readUvarint(data, pos); err != nil {
					return err
				}
				start += uint32(sd)
				it.chrPool[n] = [2]uint32{start, start + uint32(l)}
				n++
			}
		}
	} else {
		it.chrPool = nil
	}

	if it.format.Has(schema.Boosts) {
		if cap(it.bstPool) < totalPositions {
			it.bstPool = make([]float32, totalPositions)
		}
		it.bstPool = it.bstPool[:totalPositions]
		for n := 0; n < totalPositions; n++ {
			if pos+4 > uint64(len(data)) {
				return fmt.Errorf("postings block boosts truncated")
			}
			it.bstPool[n] = math.Float32frombits(binary.LittleEndian.Uint32(data[pos:]))
			pos += 4
		}
	} else {
		it.bstPool = nil
	}

	// weights derive from freqs and boosts
	it.weights = resizeFloat32(it.weights, entry.count)
	bn := 0
	for i := 0; i < entry.count; i++ {
		freq := 1
		if it.freqs != nil {
			freq = int(it.freqs[i])
		}
		if it.bstPool != nil {
			var sum float64
			for j := 0; j < freq; j++ {
				sum += float64(it.bstPool[bn])
				bn++
			}
			it.weights[i] = float32(sum * it.fieldBoost)
		} else if it.freqs != nil {
			it.weights[i] = float32(float64(freq) * it.fieldBoost)
		} else {
			it.weights[i] = float32(it.fieldBoost)
		}
	}

	return nil
}

func resizeUint32(s []uint32, n int) []uint32 {
	if cap(s) < n {
		return make([]uint32, n)
	}
	return s[:n]
}

func resizeFloat32(s []float32, n int) []float32 {
	if cap(s) < n {
		return make([]float32, n)
	}
	return s[:n]
}
