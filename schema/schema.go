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

// Package schema defines the field surface of an index: which fields exist,
// how their values are analyzed, what their postings carry, and which of
// them are stored, unique, or sortable. A schema is fixed when a segment is
// written and travels inside the table of contents.
package schema

import (
	"fmt"
	"sort"

	"github.com/fxamacker/cbor/v2"
)

// Format is the set of per-posting attributes a field records.
type Format uint8

const (
	// Exists records only document membership.
	Exists Format = 1 << iota
	// Freqs records the per-document term frequency.
	Freqs
	// Positions records token positions within the document.
	Positions
	// Chars records start/end character offsets per position.
	Chars
	// Boosts records a per-position boost multiplier.
	Boosts
)

func (f Format) Has(flag Format) bool {
	return f&flag != 0
}

// ColumnType selects the element format of a field's column file.
type ColumnType uint8

const (
	NoColumn ColumnType = iota
	NumericColumn
	VarBytesColumn
	FixedBytesColumn
	RefBytesColumn
	BitColumn
	CompressedBytesColumn
)

// NumericType distinguishes the value encodings of numeric fields.
type NumericType uint8

const (
	NotNumeric NumericType = iota
	Int64
	Float64
	Timestamp
)

// FieldDef describes one field.
type FieldDef struct {
	Name     string      `cbor:"1,keyasint"`
	Analyzer string      `cbor:"2,keyasint"`
	Format   Format      `cbor:"3,keyasint"`
	Stored   bool        `cbor:"4,keyasint"`
	Unique   bool        `cbor:"5,keyasint"`
	Column   ColumnType  `cbor:"6,keyasint"`
	Vector   bool        `cbor:"7,keyasint"`
	Boost    float64     `cbor:"8,keyasint"`
	Numeric  NumericType `cbor:"9,keyasint"`
	// FixedWidth applies to FixedBytesColumn only.
	FixedWidth int `cbor:"10,keyasint,omitempty"`
}

// Indexed reports whether the field produces postings at all.
func (d *FieldDef) Indexed() bool {
	return d.Format != 0
}

// Schema is an ordered set of field definitions. Field order is by name so
// that field numbering is stable across writers.
type Schema struct {
	fields []FieldDef
	byName map[string]int
}

// New builds a schema from the given definitions. Duplicate names are an
// error; a zero Boost is defaulted to 1.
func New(defs ...FieldDef) (*Schema, error) {
	s := &Schema{byName: make(map[string]int, len(defs))}
	for _, def := range defs {
		if def.Name == "" {
			return nil, fmt.Errorf("schema: field with empty name")
		}
		if _, exists := s.byName[def.Name]; exists {
			return nil, fmt.Errorf("schema: duplicate field %q", def.Name)
		}
		if def.Boost == 0 {
			def.Boost = 1
		}
		s.byName[def.Name] = -1 // placeholder until sort
		s.fields = append(s.fields, def)
	}
	sort.Slice(s.fields, func(i, j int) bool {
		return s.fields[i].Name < s.fields[j].Name
	})
	for i := range s.fields {
		s.byName[s.fields[i].Name] = i
	}
	return s, nil
}

// MustNew is New for static schemas; it panics on definition errors.
func MustNew(defs ...FieldDef) *Schema {
	s, err := New(defs...)
	if err != nil {
		panic(err)
	}
	return s
}

// Field returns the definition for name, or nil if absent.
func (s *Schema) Field(name string) *FieldDef {
	idx, ok := s.byName[name]
	if !ok {
		return nil
	}
	return &s.fields[idx]
}

// FieldID returns the stable ordinal of name, or -1.
func (s *Schema) FieldID(name string) int {
	idx, ok := s.byName[name]
	if !ok {
		return -1
	}
	return idx
}

// Fields returns the definitions in schema order. The returned slice is
// shared; callers must not mutate it.
func (s *Schema) Fields() []FieldDef {
	return s.fields
}

// Names returns the field names in schema order.
func (s *Schema) Names() []string {
	names := make([]string, len(s.fields))
	for i := range s.fields {
		names[i] = s.fields[i].Name
	}
	return names
}

// Len returns the number of fields.
func (s *Schema) Len() int {
	return len(s.fields)
}

// UniqueFields returns the names of unique fields in schema order.
func (s *Schema) UniqueFields() []string {
	var names []string
	for i := range s.fields {
		if s.fields[i].Unique {
			names = append(names, s.fields[i].Name)
		}
	}
	return names
}

// Marshal encodes the schema for embedding in a table of contents.
func (s *Schema) Marshal() ([]byte, error) {
	return cbor.Marshal(s.fields)
}

// Unmarshal decodes a schema blob written by Marshal.
func Unmarshal(data []byte) (*Schema, error) {
	var defs []FieldDef
	if err := cbor.Unmarshal(data, &defs); err != nil {
		return nil, fmt.Errorf("schema: decode: %w", err)
	}
	return New(defs...)
}

// Option mutates a field definition under construction.
type Option func(*FieldDef)

// Stored marks the field's value for verbatim retrieval.
func Stored() Option {
	return func(d *FieldDef) { d.Stored = true }
}

// Unique marks the field as a per-document identity: update and delete by
// term key on it, and at most one live document may hold a given value.
func Unique() Option {
	return func(d *FieldDef) { d.Unique = true }
}

// Sortable attaches a column so the field can drive sorts, groups and
// facets.
func Sortable() Option {
	return func(d *FieldDef) {
		if d.Column == NoColumn {
			if d.Numeric != NotNumeric {
				d.Column = NumericColumn
			} else {
				d.Column = RefBytesColumn
			}
		}
	}
}

// WithColumn overrides the column element format.
func WithColumn(t ColumnType) Option {
	return func(d *FieldDef) { d.Column = t }
}

// WithBoost multiplies every term score for the field.
func WithBoost(boost float64) Option {
	return func(d *FieldDef) { d.Boost = boost }
}

// WithVector stores a per-document forward vector of (term, positions).
func WithVector() Option {
	return func(d *FieldDef) { d.Vector = true }
}

// WithoutPositions drops positions (and chars and boosts) from the posting format,
// which disables phrase queries on the field.
func WithoutPositions() Option {
	return func(d *FieldDef) { d.Format &^= Positions | Chars | Boosts }
}

// WithChars adds character offsets to the posting format.
func WithChars() Option {
	return func(d *FieldDef) { d.Format |= Chars }
}

// WithAnalyzer selects a registered analyzer by name.
func WithAnalyzer(name string) Option {
	return func(d *FieldDef) { d.Analyzer = name }
}

func apply(d FieldDef, opts []Option) FieldDef {
	for _, opt := range opts {
		opt(&d)
	}
	return d
}

// TEXT is a full-text field: analyzed, frequencies and positions, scored.
func TEXT(name string, opts ...Option) FieldDef {
	return apply(FieldDef{
		Name:     name,
		Analyzer: "standard",
		Format:   Exists | Freqs | Positions,
		Boost:    1,
	}, opts)
}

// ID is an exact-match field: one keyword token, no frequencies.
func ID(name string, opts ...Option) FieldDef {
	return apply(FieldDef{
		Name:     name,
		Analyzer: "keyword",
		Format:   Exists,
		Boost:    1,
	}, opts)
}

// KEYWORD is like TEXT but without positions: term membership and
// frequency only.
func KEYWORD(name string, opts ...Option) FieldDef {
	return apply(FieldDef{
		Name:     name,
		Analyzer: "standard",
		Format:   Exists | Freqs,
		Boost:    1,
	}, opts)
}

// NUMERIC indexes int64 values as order-preserving terms.
func NUMERIC(name string, opts ...Option) FieldDef {
	return apply(FieldDef{
		Name:    name,
		Format:  Exists,
		Numeric: Int64,
		Boost:   1,
	}, opts)
}

// FLOAT indexes float64 values as order-preserving terms.
func FLOAT(name string, opts ...Option) FieldDef {
	return apply(FieldDef{
		Name:    name,
		Format:  Exists,
		Numeric: Float64,
		Boost:   1,
	}, opts)
}

// DATETIME indexes time.Time values at nanosecond resolution.
func DATETIME(name string, opts ...Option) FieldDef {
	return apply(FieldDef{
		Name:    name,
		Format:  Exists,
		Numeric: Timestamp,
		Boost:   1,
	}, opts)
}

// STORED is a stored-only field: retrievable, never indexed.
func STORED(name string) FieldDef {
	return FieldDef{Name: name, Stored: true, Boost: 1}
}
