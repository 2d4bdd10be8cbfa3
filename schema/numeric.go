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

package schema

import (
	"encoding/binary"
	"fmt"
	"math"
	"time"
)

// Numeric values become 8-byte big-endian terms whose lexicographic order
// equals their numeric order, so term-range iteration over the dictionary
// answers numeric range queries directly.
//
// int64 is biased by flipping the sign bit. float64 uses the usual IEEE
// monotone transform: flip the sign bit for positives, flip all bits for
// negatives. Timestamps are the int64 encoding of UnixNano.

// EncodeInt64 returns the order-preserving term bytes for v.
func EncodeInt64(v int64) []byte {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(v)^(1<<63))
	return buf[:]
}

// DecodeInt64 reverses EncodeInt64.
func DecodeInt64(term []byte) int64 {
	return int64(binary.BigEndian.Uint64(term) ^ (1 << 63))
}

// EncodeFloat64 returns the order-preserving term bytes for v.
func EncodeFloat64(v float64) []byte {
	bits := math.Float64bits(v)
	if bits&(1<<63) != 0 {
		bits = ^bits
	} else {
		bits ^= 1 << 63
	}
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], bits)
	return buf[:]
}

// DecodeFloat64 reverses EncodeFloat64.
func DecodeFloat64(term []byte) float64 {
	bits := binary.BigEndian.Uint64(term)
	if bits&(1<<63) != 0 {
		bits ^= 1 << 63
	} else {
		bits = ^bits
	}
	return math.Float64frombits(bits)
}

// EncodeTime returns the order-preserving term bytes for t.
func EncodeTime(t time.Time) []byte {
	return EncodeInt64(t.UnixNano())
}

// DecodeTime reverses EncodeTime.
func DecodeTime(term []byte) time.Time {
	return time.Unix(0, DecodeInt64(term)).UTC()
}

// EncodeNumericValue converts a field value of a numeric field into its
// term bytes, accepting the Go types a caller would naturally pass.
func (d *FieldDef) EncodeNumericValue(value interface{}) ([]byte, error) {
	switch d.Numeric {
	case Int64:
		switch v := value.(type) {
		case int:
			return EncodeInt64(int64(v)), nil
		case int32:
			return EncodeInt64(int64(v)), nil
		case int64:
			return EncodeInt64(v), nil
		case uint64:
			if v > math.MaxInt64 {
				return nil, fmt.Errorf("field %s: value %d overflows int64", d.Name, v)
			}
			return EncodeInt64(int64(v)), nil
		}
	case Float64:
		switch v := value.(type) {
		case float32:
			return EncodeFloat64(float64(v)), nil
		case float64:
			return EncodeFloat64(v), nil
		case int:
			return EncodeFloat64(float64(v)), nil
		case int64:
			return EncodeFloat64(float64(v)), nil
		}
	case Timestamp:
		if v, ok := value.(time.Time); ok {
			return EncodeTime(v), nil
		}
	}
	return nil, fmt.Errorf("field %s: unsupported numeric value %T", d.Name, value)
}

// NumericSortValue converts a field value into the int64 stored in the
// field's numeric column.
func (d *FieldDef) NumericSortValue(value interface{}) (int64, error) {
	switch d.Numeric {
	case Int64:
		switch v := value.(type) {
		case int:
			return int64(v), nil
		case int32:
			return int64(v), nil
		case int64:
			return v, nil
		}
	case Float64:
		switch v := value.(type) {
		case float32:
			return sortableFloatBits(float64(v)), nil
		case float64:
			return sortableFloatBits(v), nil
		case int:
			return sortableFloatBits(float64(v)), nil
		}
	case Timestamp:
		if v, ok := value.(time.Time); ok {
			return v.UnixNano(), nil
		}
	}
	return 0, fmt.Errorf("field %s: unsupported numeric value %T", d.Name, value)
}

// sortableFloatBits maps a float64 onto an int64 whose integer order
// matches the float order.
func sortableFloatBits(v float64) int64 {
	bits := int64(math.Float64bits(v))
	if bits < 0 {
		bits ^= math.MaxInt64
	}
	return bits
}
