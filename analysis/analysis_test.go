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

package analysis

import (
	"io"
	"reflect"
	"testing"
)

func drain(t *testing.T, ts TokenStream) ([]string, []int) {
	t.Helper()
	var terms []string
	var positions []int
	for {
		tok, err := ts.Next()
		if err == io.EOF {
			return terms, positions
		}
		if err != nil {
			t.Fatal(err)
		}
		terms = append(terms, string(tok.Term))
		positions = append(positions, tok.Pos)
	}
}

func TestStandardAnalyzer(t *testing.T) {
	terms, positions := drain(t, NewStandard().Tokens("This is the first document we've added"))
	expected := []string{"this", "is", "the", "first", "document", "we", "ve", "added"}
	if !reflect.DeepEqual(expected, terms) {
		t.Errorf("expected %v, got %v", expected, terms)
	}
	if !reflect.DeepEqual([]int{0, 1, 2, 3, 4, 5, 6, 7}, positions) {
		t.Errorf("unexpected positions %v", positions)
	}
}

func TestStandardAnalyzerOffsets(t *testing.T) {
	ts := NewStandard().Tokens("Mary had a little lamb")
	value := "Mary had a little lamb"
	for {
		tok, err := ts.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatal(err)
		}
		if got := value[tok.Start:tok.End]; len(got) != len(tok.Term) {
			t.Errorf("offset mismatch for %q: %q", tok.Term, got)
		}
	}
}

func TestStandardAnalyzerUnicode(t *testing.T) {
	terms, _ := drain(t, NewStandard().Tokens("Łódź café №42"))
	expected := []string{"łódź", "café", "42"}
	if !reflect.DeepEqual(expected, terms) {
		t.Errorf("expected %v, got %v", expected, terms)
	}
}

func TestKeywordAnalyzer(t *testing.T) {
	terms, _ := drain(t, Keyword{}.Tokens("/a/b c"))
	if !reflect.DeepEqual([]string{"/a/b c"}, terms) {
		t.Errorf("unexpected keyword tokens %v", terms)
	}
	if terms, _ := drain(t, Keyword{}.Tokens("")); terms != nil {
		t.Errorf("empty value should yield no tokens, got %v", terms)
	}
}

func TestRegistryLookup(t *testing.T) {
	reg := NewRegistry()
	if _, err := reg.Lookup("standard"); err != nil {
		t.Fatal(err)
	}
	if _, err := reg.Lookup("bogus"); err == nil {
		t.Error("expected unknown analyzer error")
	}
}
