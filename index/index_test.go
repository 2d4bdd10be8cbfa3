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
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/quillindex/quill/schema"
	"github.com/quillindex/quill/store"
)

func testSchema(t *testing.T) *schema.Schema {
	t.Helper()
	sch, err := schema.New(
		schema.TEXT("title", schema.Stored()),
		schema.ID("path", schema.Stored(), schema.Unique()),
		schema.TEXT("content"),
	)
	require.NoError(t, err)
	return sch
}

func newTestIndex(t *testing.T) *Index {
	t.Helper()
	ix, err := Create(store.NewMemStorage(), testSchema(t))
	require.NoError(t, err)
	return ix
}

// addTwoDocs commits the two classic quickstart documents.
func addTwoDocs(t *testing.T, ix *Index) {
	t.Helper()
	w, err := ix.Writer()
	require.NoError(t, err)
	require.NoError(t, w.AddDocument(Document{
		"title":   "First document",
		"path":    "/a",
		"content": "This is the first document we've added",
	}))
	require.NoError(t, w.AddDocument(Document{
		"title":   "Second document",
		"path":    "/b",
		"content": "The second one is even more interesting",
	}))
	require.NoError(t, w.Commit())
}

func TestCreateAndOpen(t *testing.T) {
	st := store.NewMemStorage()

	_, err := Open(st)
	require.ErrorIs(t, err, ErrEmptyIndex)

	ix, err := Create(st, testSchema(t))
	require.NoError(t, err)
	defer func() { _ = ix.Close() }()

	gen, err := ix.LatestGeneration()
	require.NoError(t, err)
	require.Equal(t, uint64(1), gen)

	count, err := ix.DocCount()
	require.NoError(t, err)
	require.Zero(t, count)

	ix2, err := Open(st)
	require.NoError(t, err)
	defer func() { _ = ix2.Close() }()
	sch, err := ix2.Schema()
	require.NoError(t, err)
	require.Equal(t, []string{"content", "path", "title"}, sch.Names())
}

func TestWriteAndRead(t *testing.T) {
	ix := newTestIndex(t)
	defer func() { _ = ix.Close() }()
	addTwoDocs(t, ix)

	gen, err := ix.LatestGeneration()
	require.NoError(t, err)
	require.Equal(t, uint64(2), gen)

	r, err := ix.Reader()
	require.NoError(t, err)
	defer func() { _ = r.Close() }()

	require.Equal(t, uint64(2), r.DocCount())

	info, found, err := r.TermInfo("content", []byte("first"))
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, uint64(1), info.DocFreq)

	its, err := r.Postings("content", []byte("first"))
	require.NoError(t, err)
	require.Len(t, its, 1)
	require.True(t, its[0].IsActive())

	fields, err := r.StoredFields(its[0].ID())
	require.NoError(t, err)
	require.Equal(t, "/a", fields["path"])

	// lengths drive scoring
	require.Equal(t, 8, r.DocFieldLength(its[0].ID(), "content"))
	require.Equal(t, uint64(8+7), r.FieldLenTotal("content"))
}

func TestUnknownFieldRejected(t *testing.T) {
	ix := newTestIndex(t)
	defer func() { _ = ix.Close() }()
	w, err := ix.Writer()
	require.NoError(t, err)
	defer func() { _ = w.Cancel() }()

	err = w.AddDocument(Document{"bogus": "value"})
	require.ErrorIs(t, err, ErrNoSuchField)
}

func TestSnapshotIsolationAndRefresh(t *testing.T) {
	ix := newTestIndex(t)
	defer func() { _ = ix.Close() }()
	addTwoDocs(t, ix)

	r, err := ix.Reader()
	require.NoError(t, err)
	defer func() { _ = r.Close() }()
	require.Equal(t, uint64(2), r.DocCount())

	w, err := ix.Writer()
	require.NoError(t, err)
	n, err := w.DeleteByTerm("path", "/a")
	require.NoError(t, err)
	require.Equal(t, 1, n)
	require.NoError(t, w.Commit())

	// the old snapshot is unaffected
	require.Equal(t, uint64(2), r.DocCount())
	its, err := r.Postings("content", []byte("first"))
	require.NoError(t, err)
	require.Len(t, its, 1)

	// a refreshed reader observes the deletion
	r2, err := r.Refresh()
	require.NoError(t, err)
	require.NotSame(t, r, r2)
	defer func() { _ = r2.Close() }()
	require.Equal(t, uint64(1), r2.DocCount())
	its, err = r2.Postings("content", []byte("first"))
	require.NoError(t, err)
	require.Empty(t, its)

	// refreshing an up-to-date reader returns the receiver
	r3, err := r2.Refresh()
	require.NoError(t, err)
	require.Same(t, r2, r3)
}

func TestIdempotentCommit(t *testing.T) {
	ix := newTestIndex(t)
	defer func() { _ = ix.Close() }()
	addTwoDocs(t, ix)

	before, err := ix.LatestGeneration()
	require.NoError(t, err)

	w, err := ix.Writer()
	require.NoError(t, err)
	require.NoError(t, w.Commit())

	after, err := ix.LatestGeneration()
	require.NoError(t, err)
	require.Equal(t, before, after, "empty commit must not advance the generation")
}

func TestDeleteVisibility(t *testing.T) {
	ix := newTestIndex(t)
	defer func() { _ = ix.Close() }()
	addTwoDocs(t, ix)

	w, err := ix.Writer()
	require.NoError(t, err)
	n, err := w.DeleteByTerm("content", "second")
	require.NoError(t, err)
	require.Equal(t, 1, n)
	require.NoError(t, w.Commit())

	count, err := ix.DocCount()
	require.NoError(t, err)
	require.Equal(t, uint64(1), count)

	r, err := ix.Reader()
	require.NoError(t, err)
	defer func() { _ = r.Close() }()
	its, err := r.Postings("content", []byte("second"))
	require.NoError(t, err)
	require.Empty(t, its)
}

func TestUpdateDocumentUnique(t *testing.T) {
	ix := newTestIndex(t)
	defer func() { _ = ix.Close() }()

	// three updates of the same unique value within one session
	w, err := ix.Writer()
	require.NoError(t, err)
	for _, content := range []string{"one", "two", "three"} {
		require.NoError(t, w.UpdateDocument(Document{
			"path": "/x", "title": content, "content": content,
		}))
	}
	require.NoError(t, w.Commit())

	count, err := ix.DocCount()
	require.NoError(t, err)
	require.Equal(t, uint64(1), count)

	r, err := ix.Reader()
	require.NoError(t, err)
	its, err := r.Postings("path", []byte("/x"))
	require.NoError(t, err)
	require.Len(t, its, 1)
	live := 0
	var docnum uint64
	for its[0].IsActive() {
		docnum = its[0].ID()
		live++
		its[0].Next()
	}
	require.Equal(t, 1, live)
	fields, err := r.StoredFields(docnum)
	require.NoError(t, err)
	require.Equal(t, "three", fields["title"])
	require.NoError(t, r.Close())

	// one more update in a later session replaces the committed doc
	w, err = ix.Writer()
	require.NoError(t, err)
	require.NoError(t, w.UpdateDocument(Document{
		"path": "/x", "title": "four", "content": "four",
	}))
	require.NoError(t, w.Commit())

	count, err = ix.DocCount()
	require.NoError(t, err)
	require.Equal(t, uint64(1), count)
}

func TestWriterLock(t *testing.T) {
	ix := newTestIndex(t)
	defer func() { _ = ix.Close() }()

	w, err := ix.Writer()
	require.NoError(t, err)

	_, err = ix.Writer()
	require.ErrorIs(t, err, ErrLocked)

	require.NoError(t, w.Cancel())

	w2, err := ix.Writer()
	require.NoError(t, err)
	require.NoError(t, w2.Cancel())
}

func TestCancelDiscards(t *testing.T) {
	ix := newTestIndex(t)
	defer func() { _ = ix.Close() }()

	w, err := ix.Writer()
	require.NoError(t, err)
	require.NoError(t, w.AddDocument(Document{"path": "/a", "content": "hello"}))
	require.NoError(t, w.Cancel())

	count, err := ix.DocCount()
	require.NoError(t, err)
	require.Zero(t, count)
}

func TestProcsProduceMultipleSegments(t *testing.T) {
	ix := newTestIndex(t)
	defer func() { _ = ix.Close() }()

	w, err := ix.Writer(WithProcs(2), WithMergePolicy(noMergePolicy{}))
	require.NoError(t, err)
	for _, path := range []string{"/a", "/b", "/c", "/d"} {
		require.NoError(t, w.AddDocument(Document{
			"path": path, "content": "shared token plus " + path,
		}))
	}
	require.NoError(t, w.Commit())

	r, err := ix.Reader()
	require.NoError(t, err)
	defer func() { _ = r.Close() }()
	require.Len(t, r.Segments(), 2)
	require.Equal(t, uint64(4), r.DocCount())

	// the shared token spans both segments with globally ascending ids
	its, err := r.Postings("content", []byte("shared"))
	require.NoError(t, err)
	require.Len(t, its, 2)
	var docs []uint64
	for _, it := range its {
		for it.IsActive() {
			docs = append(docs, it.ID())
			it.Next()
		}
	}
	require.Len(t, docs, 4)
	for i := 1; i < len(docs); i++ {
		require.Greater(t, docs[i], docs[i-1])
	}
}

func TestOptimizeCommit(t *testing.T) {
	ix := newTestIndex(t)
	defer func() { _ = ix.Close() }()
	addTwoDocs(t, ix)

	// second generation, second segment
	w, err := ix.Writer(WithMergePolicy(noMergePolicy{}))
	require.NoError(t, err)
	require.NoError(t, w.AddDocument(Document{
		"path": "/c", "content": "third document arrives later",
	}))
	require.NoError(t, w.Commit())

	r, err := ix.Reader()
	require.NoError(t, err)
	require.Len(t, r.Segments(), 2)
	require.NoError(t, r.Close())

	// optimize down to one segment
	w, err = ix.Writer()
	require.NoError(t, err)
	require.NoError(t, w.Commit(Optimize()))

	r, err = ix.Reader()
	require.NoError(t, err)
	defer func() { _ = r.Close() }()
	require.Len(t, r.Segments(), 1)
	require.Equal(t, uint64(3), r.DocCount())

	info, found, err := r.TermInfo("content", []byte("document"))
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, uint64(2), info.DocFreq)
}

func TestSweepRemovesOldGenerations(t *testing.T) {
	st := store.NewMemStorage()
	ix, err := Create(st, testSchema(t))
	require.NoError(t, err)
	defer func() { _ = ix.Close() }()

	addTwoDocs(t, ix)
	addMore := func(path string) {
		w, err := ix.Writer()
		require.NoError(t, err)
		require.NoError(t, w.AddDocument(Document{"path": path, "content": "more"}))
		require.NoError(t, w.Commit())
	}
	addMore("/c")

	names, err := st.List()
	require.NoError(t, err)
	tocs := 0
	for _, name := range names {
		if _, ok := parseTOCFileName(name, ix.Name()); ok {
			tocs++
		}
	}
	require.Equal(t, 1, tocs, "old generations should be swept")
}

func TestTieredMergePolicy(t *testing.T) {
	policy := NewTieredMergePolicy()

	records := make([]SegmentRecord, 12)
	for i := range records {
		records[i] = SegmentRecord{ID: uint64(i + 1), DocCount: 10, ByteSize: 1000}
	}
	groups := policy.Merges(records)
	require.Len(t, groups, 1)
	require.Len(t, groups[0], policy.MaxAtOnce)

	// few large segments stay untouched
	few := []SegmentRecord{
		{ID: 1, DocCount: 1000, ByteSize: 50 << 20},
		{ID: 2, DocCount: 1000, ByteSize: 60 << 20},
	}
	require.Empty(t, policy.Merges(few))
}
