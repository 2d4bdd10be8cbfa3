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

// Package index ties the storage, schema and segment layers into a
// generational index: a table of contents per commit, snapshot readers
// over the segments it lists, and a single-writer commit path that
// flushes, deletes, merges and rotates the table of contents atomically.
package index

import (
	"fmt"
	"sync"

	"github.com/quillindex/quill/analysis"
	"github.com/quillindex/quill/schema"
	"github.com/quillindex/quill/segment"
	"github.com/quillindex/quill/store"
)

// DefaultName is the index name used when none is configured; it prefixes
// every TOC and lock file. Segment files carry no index name, and Create and
// the commit sweep remove segment files that this index's TOC does not
// reference, so two indexes in one storage remove each other's segments.
const DefaultName = "MAIN"

// Index is the top-level handle over a storage directory. It hands out
// snapshot readers and (one at a time) writers, and keeps a cache of open
// segments shared between readers so a refresh does not remap unchanged
// segments.
type Index struct {
	st        store.Storage
	name      string
	analyzers analysis.Registry
	logger    Logger

	mu    sync.Mutex
	cache map[cacheKey]*segment.Segment
}

type cacheKey struct {
	id     uint64
	delGen uint64
}

// Option configures an Index handle.
type Option func(*Index)

// WithName selects the index name within the storage.
func WithName(name string) Option {
	return func(ix *Index) { ix.name = name }
}

// WithAnalyzers injects the analyzer registry resolving the schema's
// analyzer names.
func WithAnalyzers(reg analysis.Registry) Option {
	return func(ix *Index) { ix.analyzers = reg }
}

// WithLogger sets the lifecycle-event logger.
func WithLogger(l Logger) Option {
	return func(ix *Index) { ix.logger = l }
}

func newIndex(st store.Storage, opts []Option) *Index {
	ix := &Index{
		st:        st,
		name:      DefaultName,
		analyzers: analysis.NewRegistry(),
		logger:    noopLogger{},
		cache:     make(map[cacheKey]*segment.Segment),
	}
	for _, opt := range opts {
		opt(ix)
	}
	return ix
}

// Create initializes a new index over st with the given schema, removing
// any previous index of the same name, and returns its handle.
func Create(st store.Storage, sch *schema.Schema, opts ...Option) (*Index, error) {
	ix := newIndex(st, opts)

	if err := validateSchema(sch, ix.analyzers); err != nil {
		return nil, err
	}

	// clear any previous incarnation
	names, err := st.List()
	if err != nil {
		return nil, err
	}
	for _, name := range names {
		if _, ok := parseTOCFileName(name, ix.name); ok {
			if err := st.Remove(name); err != nil {
				return nil, err
			}
		} else if _, ok := segment.ParseFileName(name); ok {
			if err := st.Remove(name); err != nil {
				return nil, err
			}
		}
	}

	toc := &TOC{Generation: 1, Schema: sch}
	if err := writeTOC(st, ix.name, toc); err != nil {
		return nil, err
	}
	ix.syncDir()
	return ix, nil
}

// Open returns a handle over an existing index; ErrEmptyIndex when none
// is present.
func Open(st store.Storage, opts ...Option) (*Index, error) {
	ix := newIndex(st, opts)
	if _, err := ix.load(); err != nil {
		return nil, err
	}
	return ix, nil
}

// Exists reports whether an index of the given name lives in st.
func Exists(st store.Storage, name string) (bool, error) {
	if name == "" {
		name = DefaultName
	}
	_, found, err := latestGeneration(st, name)
	return found, err
}

func validateSchema(sch *schema.Schema, reg analysis.Registry) error {
	if sch == nil || sch.Len() == 0 {
		return fmt.Errorf("index: schema has no fields")
	}
	for _, def := range sch.Fields() {
		if def.Indexed() && def.Numeric == schema.NotNumeric {
			if _, err := reg.Lookup(def.Analyzer); err != nil {
				return fmt.Errorf("field %q: %w", def.Name, err)
			}
		}
	}
	return nil
}

// Name returns the index name.
func (ix *Index) Name() string { return ix.name }

// Storage returns the backing storage.
func (ix *Index) Storage() store.Storage { return ix.st }

// Analyzers returns the analyzer registry in use.
func (ix *Index) Analyzers() analysis.Registry { return ix.analyzers }

// load reads the latest table of contents.
func (ix *Index) load() (*TOC, error) {
	gen, found, err := latestGeneration(ix.st, ix.name)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrEmptyIndex
	}
	return readTOC(ix.st, ix.name, gen)
}

// Schema returns the schema of the latest generation.
func (ix *Index) Schema() (*schema.Schema, error) {
	toc, err := ix.load()
	if err != nil {
		return nil, err
	}
	return toc.Schema, nil
}

// LatestGeneration returns the current generation number.
func (ix *Index) LatestGeneration() (uint64, error) {
	toc, err := ix.load()
	if err != nil {
		return 0, err
	}
	return toc.Generation, nil
}

// DocCount returns the number of live documents in the latest generation.
func (ix *Index) DocCount() (uint64, error) {
	toc, err := ix.load()
	if err != nil {
		return 0, err
	}
	return toc.DocCount(), nil
}

// acquireSegment returns an opened, pinned segment for rec; the caller
// owns one reference and must DecRef it. The cache itself holds another
// reference until the segment ages out of every TOC.
func (ix *Index) acquireSegment(sch *schema.Schema, rec *SegmentRecord) (*segment.Segment, error) {
	key := cacheKey{id: rec.ID, delGen: rec.DelGen}
	ix.mu.Lock()
	if seg, ok := ix.cache[key]; ok {
		seg.AddRef()
		ix.mu.Unlock()
		return seg, nil
	}
	ix.mu.Unlock()

	seg, err := segment.Open(ix.st, sch, rec.ID, rec.DelGen)
	if err != nil {
		return nil, err
	}

	ix.mu.Lock()
	if cached, ok := ix.cache[key]; ok {
		// lost the race; keep the cached one
		cached.AddRef()
		ix.mu.Unlock()
		_ = seg.DecRef()
		return cached, nil
	}
	seg.AddRef() // the caller's reference, on top of the cache's
	ix.cache[key] = seg
	ix.mu.Unlock()
	return seg, nil
}

// retireSegments drops the cache's reference for segment views no longer
// listed in the current TOC. Readers still holding references keep their
// files alive.
func (ix *Index) retireSegments(current *TOC) {
	live := make(map[cacheKey]bool, len(current.Segments))
	for i := range current.Segments {
		rec := &current.Segments[i]
		live[cacheKey{id: rec.ID, delGen: rec.DelGen}] = true
	}
	ix.mu.Lock()
	var drop []*segment.Segment
	for key, seg := range ix.cache {
		if !live[key] {
			delete(ix.cache, key)
			drop = append(drop, seg)
		}
	}
	ix.mu.Unlock()
	for _, seg := range drop {
		if err := seg.DecRef(); err != nil {
			ix.logger.Errorf("retiring segment %016x: %v", seg.ID(), err)
		}
	}
}

// Close releases the segment cache. Outstanding readers remain valid
// until individually closed.
func (ix *Index) Close() error {
	ix.mu.Lock()
	segs := make([]*segment.Segment, 0, len(ix.cache))
	for _, seg := range ix.cache {
		segs = append(segs, seg)
	}
	ix.cache = make(map[cacheKey]*segment.Segment)
	ix.mu.Unlock()

	var err error
	for _, seg := range segs {
		if cerr := seg.DecRef(); err == nil {
			err = cerr
		}
	}
	return err
}

func (ix *Index) syncDir() {
	if fs, ok := ix.st.(*store.FileStorage); ok {
		if err := fs.SyncDir(); err != nil {
			ix.logger.Errorf("sync index directory: %v", err)
		}
	}
}

// lockName is the advisory write-lock entry for the named index.
func lockName(name string) string {
	return name + "_WRITELOCK"
}
