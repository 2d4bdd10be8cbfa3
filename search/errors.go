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

package search

import "errors"

var (
	// ErrTimeLimit is returned when a collector's deadline passes. The
	// partial results collected so far remain retrievable.
	ErrTimeLimit = errors.New("search time limit exceeded")

	// ErrQuery marks a structurally invalid query, e.g. term text against
	// a numeric field.
	ErrQuery = errors.New("malformed query")

	// ErrReadTooFar marks a matcher advanced past its end of stream.
	ErrReadTooFar = errors.New("matcher read past end of stream")
)
