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
	"bytes"
	"math"
	"testing"
	"time"
)

func TestNumericEncodingOrder(t *testing.T) {
	ints := []int64{math.MinInt64, -1000, -1, 0, 1, 42, 1000, math.MaxInt64}
	for i := 1; i < len(ints); i++ {
		a, b := EncodeInt64(ints[i-1]), EncodeInt64(ints[i])
		if bytes.Compare(a, b) >= 0 {
			t.Errorf("int64 order broken between %d and %d", ints[i-1], ints[i])
		}
	}
	floats := []float64{math.Inf(-1), -1e300, -1.5, -0.0001, 0, 0.0001, 1.5, 1e300, math.Inf(1)}
	for i := 1; i < len(floats); i++ {
		a, b := EncodeFloat64(floats[i-1]), EncodeFloat64(floats[i])
		if bytes.Compare(a, b) >= 0 {
			t.Errorf("float64 order broken between %g and %g", floats[i-1], floats[i])
		}
	}
}

func TestNumericEncodingRoundTrip(t *testing.T) {
	for _, v := range []int64{math.MinInt64, -7, 0, 7, math.MaxInt64} {
		if got := DecodeInt64(EncodeInt64(v)); got != v {
			t.Errorf("int64 round trip: %d != %d", got, v)
		}
	}
	for _, v := range []float64{-123.25, 0, 0.5, 9e18} {
		if got := DecodeFloat64(EncodeFloat64(v)); got != v {
			t.Errorf("float64 round trip: %g != %g", got, v)
		}
	}
	now := time.Unix(1723200000, 12345).UTC()
	if got := DecodeTime(EncodeTime(now)); !got.Equal(now) {
		t.Errorf("time round trip: %v != %v", got, now)
	}
}

func TestSchemaMarshalRoundTrip(t *testing.T) {
	sch, err := New(
		TEXT("title", Stored()),
		ID("path", Stored(), Unique()),
		TEXT("content", WithVector()),
		NUMERIC("price", Sortable()),
	)
	if err != nil {
		t.Fatal(err)
	}
	blob, err := sch.Marshal()
	if err != nil {
		t.Fatal(err)
	}
	got, err := Unmarshal(blob)
	if err != nil {
		t.Fatal(err)
	}
	if got.Len() != sch.Len() {
		t.Fatalf("field count changed: %d != %d", got.Len(), sch.Len())
	}
	for _, name := range sch.Names() {
		a, b := sch.Field(name), got.Field(name)
		if b == nil || *a != *b {
			t.Errorf("field %q changed across marshal: %+v != %+v", name, a, b)
		}
	}
	if !got.Field("path").Unique || !got.Field("content").Vector {
		t.Error("flags lost across marshal")
	}
	// fields order by name, so ids are stable
	if got.FieldID("content") != 0 || got.FieldID("title") != 3 {
		t.Errorf("unexpected field ordering: %v", got.Names())
	}
}

func TestSchemaValidation(t *testing.T) {
	if _, err := New(TEXT("a"), TEXT("a")); err == nil {
		t.Error("expected duplicate field error")
	}
	if _, err := New(FieldDef{}); err == nil {
		t.Error("expected empty name error")
	}
}
