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
	"fmt"
	"strconv"
	"strings"
)

// A segment is a set of files keyed by the segment's random 64-bit id plus
// a role suffix. Column files carry the field name as a further suffix.

func idString(id uint64) string {
	return fmt.Sprintf("%016x", id)
}

// TermsFileName returns the term-dictionary file name for id.
func TermsFileName(id uint64) string { return idString(id) + ".trm" }

// PostingsFileName returns the postings file name for id.
func PostingsFileName(id uint64) string { return idString(id) + ".pst" }

// LengthsFileName returns the field-lengths file name for id.
func LengthsFileName(id uint64) string { return idString(id) + ".len" }

// StoredFileName returns the stored-fields file name for id.
func StoredFileName(id uint64) string { return idString(id) + ".fld" }

// VectorsFileName returns the forward-vectors file name for id.
func VectorsFileName(id uint64) string { return idString(id) + ".vec" }

// ColumnFileName returns the column file name for id and field.
func ColumnFileName(id uint64, field string) string {
	return idString(id) + ".col." + field
}

// DeletionsFileName returns the deleted-docs bitmap file name for id at the
// given deletion generation.
func DeletionsFileName(id uint64, delGen uint64) string {
	return fmt.Sprintf("%s_%d.del", idString(id), delGen)
}

// OwnsFileName reports whether name belongs to the segment with the given
// id, across every role.
func OwnsFileName(name string, id uint64) bool {
	return strings.HasPrefix(name, idString(id)+".") ||
		strings.HasPrefix(name, idString(id)+"_")
}

// ParseFileName extracts the owning segment id from a segment file name.
func ParseFileName(name string) (uint64, bool) {
	if len(name) < 17 {
		return 0, false
	}
	sep := name[16]
	if sep != '.' && sep != '_' {
		return 0, false
	}
	id, err := strconv.ParseUint(name[:16], 16, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}
