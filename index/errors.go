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

import "errors"

var (
	// ErrEmptyIndex is returned when no table of contents exists where one
	// was expected.
	ErrEmptyIndex = errors.New("index is empty")

	// ErrIncompatibleFormat is returned when a table of contents was
	// written by a different file-format version.
	ErrIncompatibleFormat = errors.New("incompatible index format")

	// ErrOutOfDate is returned when an operation required the latest
	// generation but the caller's view was stale.
	ErrOutOfDate = errors.New("index view is out of date")

	// ErrLocked is returned when the writer lock is already held.
	ErrLocked = errors.New("index is locked for writing")

	// ErrNoSuchField is returned for lookups against fields absent from
	// the schema.
	ErrNoSuchField = errors.New("no such field")

	// ErrTooManyTerms is returned when an expanding query exceeds its term
	// cap.
	ErrTooManyTerms = errors.New("query expands to too many terms")

	// ErrReaderClosed is returned when a closed reader is used.
	ErrReaderClosed = errors.New("reader is closed")

	// ErrWriterClosed is returned when a committed or cancelled writer is
	// used.
	ErrWriterClosed = errors.New("writer is closed")

	// ErrIndexingFailure wraps codec or storage failures during a write.
	ErrIndexingFailure = errors.New("indexing failure")
)

// Logger is the minimal logging surface the index reports lifecycle
// events through. The default discards everything.
type Logger interface {
	Infof(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

type noopLogger struct{}

func (noopLogger) Infof(format string, args ...interface{})  {}
func (noopLogger) Errorf(format string, args ...interface{}) {}
