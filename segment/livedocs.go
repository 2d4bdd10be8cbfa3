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
	"github.com/RoaringBitmap/roaring/v2"

	"github.com/quillindex/quill/store"
)

// Deletions are recorded per segment as a roaring bitmap of deleted local
// docnums. Segment data files are never rewritten; each deletion commit
// writes a fresh bitmap under a new deletion generation and the TOC points
// at it.

// WriteDeletions persists the deleted-doc bitmap for (id, delGen).
func WriteDeletions(st store.Storage, id uint64, delGen uint64,
	deleted *roaring.Bitmap) error {
	f, err := st.Create(DeletionsFileName(id, delGen))
	if err != nil {
		return err
	}
	w := NewCountHashWriter(f)
	if err = writeBitmap(w, deleted); err != nil {
		_ = f.Close()
		return err
	}
	if err = writeFooter(w); err != nil {
		_ = f.Close()
		return err
	}
	if err = f.Sync(); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// ReadDeletions loads the deleted-doc bitmap for (id, delGen).
func ReadDeletions(st store.Storage, id uint64, delGen uint64) (*roaring.Bitmap, error) {
	h, payload, err := openChecked(st, DeletionsFileName(id, delGen))
	if err != nil {
		return nil, err
	}
	defer func() { _ = h.Close() }()
	bm, _, err := readBitmap(payload, 0)
	if err != nil {
		return nil, err
	}
	// the bitmap must survive the handle, so clone out of the mmap
	return bm.Clone(), nil
}
