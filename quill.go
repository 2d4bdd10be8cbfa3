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

// Package quill is an embeddable full-text search engine: a segmented
// inverted index on disk, a Boolean/ranked query algebra over it, and a
// single-writer/many-reader concurrency model with snapshot isolation.
//
// The convenience functions here cover the common case of an index in a
// filesystem directory:
//
//	sch := schema.MustNew(
//		schema.TEXT("title", schema.Stored()),
//		schema.ID("path", schema.Stored(), schema.Unique()),
//		schema.TEXT("content"),
//	)
//	ix, err := quill.Create("/srv/myindex", sch)
//	w, err := ix.Writer()
//	err = w.AddDocument(index.Document{"title": "First document",
//		"path": "/a", "content": "This is the first document we've added"})
//	err = w.Commit()
//
//	r, err := ix.Reader()
//	res, err := search.NewSearcher(r).Search(search.NewTerm("content", "first"))
//
// The underlying layers are importable on their own: store (byte-stream
// storage), schema, analysis, segment (the codec), index (generations,
// readers, writers) and search (queries, matchers, scoring, collectors).
package quill

import (
	"github.com/quillindex/quill/index"
	"github.com/quillindex/quill/schema"
	"github.com/quillindex/quill/store"
)

// Create initializes a new index in the directory, wiping any previous
// index of the same name.
func Create(dir string, sch *schema.Schema, opts ...index.Option) (*index.Index, error) {
	st, err := store.OpenFileStorage(dir)
	if err != nil {
		return nil, err
	}
	return index.Create(st, sch, opts...)
}

// Open returns a handle over an existing index directory.
func Open(dir string, opts ...index.Option) (*index.Index, error) {
	st, err := store.OpenFileStorage(dir)
	if err != nil {
		return nil, err
	}
	return index.Open(st, opts...)
}

// CreateInMemory initializes a memory-backed index, useful for tests and
// ephemeral workloads.
func CreateInMemory(sch *schema.Schema, opts ...index.Option) (*index.Index, error) {
	return index.Create(store.NewMemStorage(), sch, opts...)
}

// Exists reports whether dir holds an index under the default name.
func Exists(dir string) (bool, error) {
	st, err := store.OpenFileStorage(dir)
	if err != nil {
		return false, err
	}
	return index.Exists(st, "")
}
