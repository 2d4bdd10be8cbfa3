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

package store

import (
	"errors"
	"testing"
)

func storages(t *testing.T) map[string]Storage {
	t.Helper()
	fs, err := OpenFileStorage(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	return map[string]Storage{
		"file": fs,
		"mem":  NewMemStorage(),
	}
}

func TestStorageRoundTrip(t *testing.T) {
	for name, st := range storages(t) {
		t.Run(name, func(t *testing.T) {
			f, err := st.Create("a.dat")
			if err != nil {
				t.Fatal(err)
			}
			if _, err = f.Write([]byte("hello world")); err != nil {
				t.Fatal(err)
			}
			if err = f.Sync(); err != nil {
				t.Fatal(err)
			}
			if err = f.Close(); err != nil {
				t.Fatal(err)
			}

			h, err := st.Open("a.dat")
			if err != nil {
				t.Fatal(err)
			}
			if string(h.Data()) != "hello world" {
				t.Errorf("unexpected contents %q", h.Data())
			}
			if err = h.Close(); err != nil {
				t.Fatal(err)
			}

			if _, err = st.Open("missing.dat"); !errors.Is(err, ErrNotFound) {
				t.Errorf("expected ErrNotFound, got %v", err)
			}
		})
	}
}

func TestStorageRename(t *testing.T) {
	for name, st := range storages(t) {
		t.Run(name, func(t *testing.T) {
			f, _ := st.Create("x.tmp")
			_, _ = f.Write([]byte("payload"))
			_ = f.Close()

			if err := st.Rename("x.tmp", "x.dat"); err != nil {
				t.Fatal(err)
			}
			if _, err := st.Open("x.tmp"); !errors.Is(err, ErrNotFound) {
				t.Errorf("old name still present: %v", err)
			}
			h, err := st.Open("x.dat")
			if err != nil {
				t.Fatal(err)
			}
			if string(h.Data()) != "payload" {
				t.Errorf("unexpected contents %q", h.Data())
			}
			_ = h.Close()

			names, err := st.List()
			if err != nil {
				t.Fatal(err)
			}
			if len(names) != 1 || names[0] != "x.dat" {
				t.Errorf("unexpected listing %v", names)
			}
		})
	}
}

func TestStorageLock(t *testing.T) {
	for name, st := range storages(t) {
		t.Run(name, func(t *testing.T) {
			lock, err := st.Lock("WRITELOCK")
			if err != nil {
				t.Fatal(err)
			}
			if _, err = st.Lock("WRITELOCK"); !errors.Is(err, ErrLocked) {
				t.Errorf("expected ErrLocked, got %v", err)
			}
			if err = lock.Release(); err != nil {
				t.Fatal(err)
			}
			lock2, err := st.Lock("WRITELOCK")
			if err != nil {
				t.Fatalf("relock after release failed: %v", err)
			}
			_ = lock2.Release()
		})
	}
}
