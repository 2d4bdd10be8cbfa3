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
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	mmap "github.com/blevesearch/mmap-go"
)

// FileStorage keeps every stream as one file inside a directory. Opens are
// mmap'ed read-only so concurrent readers share the page cache and no seek
// state.
type FileStorage struct {
	dir string
}

// OpenFileStorage returns a FileStorage over dir, creating dir if needed.
func OpenFileStorage(dir string) (*FileStorage, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &FileStorage{dir: dir}, nil
}

// Dir returns the backing directory.
func (s *FileStorage) Dir() string {
	return s.dir
}

func (s *FileStorage) path(name string) string {
	return filepath.Join(s.dir, name)
}

func (s *FileStorage) Create(name string) (File, error) {
	f, err := os.OpenFile(s.path(name), os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, err
	}
	return f, nil
}

func (s *FileStorage) Open(name string) (Handle, error) {
	f, err := os.Open(s.path(name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("open %s: %w", name, ErrNotFound)
		}
		return nil, err
	}
	fi, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	if fi.Size() == 0 {
		// mmap of an empty file fails on some platforms
		_ = f.Close()
		return &fileHandle{}, nil
	}
	mm, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	return &fileHandle{f: f, mm: mm}, nil
}

func (s *FileStorage) Rename(oldName, newName string) error {
	return os.Rename(s.path(oldName), s.path(newName))
}

func (s *FileStorage) List() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	return names, nil
}

func (s *FileStorage) Remove(name string) error {
	err := os.Remove(s.path(name))
	if os.IsNotExist(err) {
		return fmt.Errorf("remove %s: %w", name, ErrNotFound)
	}
	return err
}

func (s *FileStorage) Exists(name string) (bool, error) {
	_, err := os.Stat(s.path(name))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

// Lock creates the named lock file with O_EXCL. The file records the owner
// pid to aid debugging of stale locks.
func (s *FileStorage) Lock(name string) (Lock, error) {
	path := s.path(name)
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return nil, fmt.Errorf("lock %s: %w", name, ErrLocked)
		}
		return nil, err
	}
	_, _ = f.WriteString(strconv.Itoa(os.Getpid()))
	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return nil, err
	}
	return &fileLock{path: path}, nil
}

// SyncDir fsyncs the storage directory so that a completed rename survives
// a crash. Called by the index after each TOC rotation.
func (s *FileStorage) SyncDir() error {
	f, err := os.Open(s.dir)
	if err != nil {
		return err
	}
	err = f.Sync()
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	return err
}

type fileHandle struct {
	f  *os.File
	mm mmap.MMap
}

func (h *fileHandle) Data() []byte {
	return h.mm
}

func (h *fileHandle) Close() error {
	var err error
	if h.mm != nil {
		err = h.mm.Unmap()
	}
	// try to close the file even if unmap failed
	if h.f != nil {
		err2 := h.f.Close()
		if err == nil {
			err = err2
		}
	}
	return err
}

type fileLock struct {
	path     string
	released bool
}

func (l *fileLock) Release() error {
	if l.released {
		return nil
	}
	l.released = true
	return os.Remove(l.path)
}

// TempName derives a temp-file name that sorts away from index artifacts.
func TempName(base string) string {
	return base + ".tmp"
}

// IsTempName reports whether name is a temp artifact left by an interrupted
// writer.
func IsTempName(name string) bool {
	return strings.HasSuffix(name, ".tmp")
}
