// Copyright 2023 Sneller, Inc.
//
//  Licensed under the Apache License, Version 2.0 (the "License");
//  you may not use this file except in compliance with the License.
//  You may obtain a copy of the License at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
//  Unless required by applicable law or agreed to in writing, software
//  distributed under the License is distributed on an "AS IS" BASIS,
//  WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
//  See the License for the specific language governing permissions and
//  limitations under the License.

package avro

import (
	"errors"
	"reflect"
	"testing"
)

const personJSON = `{
	"type": "record",
	"name": "Person",
	"namespace": "com.example",
	"fields": [
		{"name": "name", "type": "string"},
		{"name": "age", "type": "int", "default": 0},
		{"name": "email", "type": ["null", "string"], "default": null},
		{"name": "phone_numbers", "type": {"type": "array", "items": "string"}}
	]
}`

func TestParseRecord(t *testing.T) {
	s, err := Parse(personJSON)
	if err != nil {
		t.Fatal(err)
	}
	if s.Type != RecordType || s.Name.Full() != "com.example.Person" {
		t.Fatalf("parsed %s %s", s.Type, s.Name)
	}
	if len(s.Fields) != 4 {
		t.Fatalf("got %d fields", len(s.Fields))
	}
	if s.Fields[1].Default == nil || s.Fields[1].Default.Long != 0 {
		t.Errorf("age default = %+v", s.Fields[1].Default)
	}
	email := s.Fields[2].Schema
	if email.Type != UnionType || email.Branches[0].Type != NullType {
		t.Errorf("email schema = %s", email)
	}
	// the union default is recorded against branch 0
	if d := s.Fields[2].Default; d == nil || d.Type != UnionType || d.Branch != 0 {
		t.Errorf("email default = %+v", s.Fields[2].Default)
	}
	if s.Fields[3].Schema.Type != ArrayType {
		t.Errorf("phone_numbers schema = %s", s.Fields[3].Schema)
	}

	// the builder-constructed equivalent fingerprints identically
	c := personCodec(t)
	if Fingerprint(s) != Fingerprint(c.Schema()) {
		t.Errorf("canonical mismatch:\n %s\n %s",
			CanonicalJSON(s), CanonicalJSON(c.Schema()))
	}
}

func TestParsePrimitivesAndLogical(t *testing.T) {
	s, err := Parse(`"long"`)
	if err != nil {
		t.Fatal(err)
	}
	if s.Type != LongType {
		t.Errorf("got %s", s.Type)
	}
	s, err = Parse(`{"type": "long", "logicalType": "timestamp-micros"}`)
	if err != nil {
		t.Fatal(err)
	}
	if s.Logical != LogicalTimestampMicros {
		t.Errorf("logical = %q", s.Logical)
	}
	s, err = Parse(`{"type": "fixed", "name": "Duration", "size": 12, "logicalType": "duration"}`)
	if err != nil {
		t.Fatal(err)
	}
	if s.Size != 12 || s.Logical != LogicalDuration {
		t.Errorf("fixed = %+v", s)
	}
}

func TestParseNamespacePropagation(t *testing.T) {
	s, err := Parse(`{
		"type": "record", "name": "Outer", "namespace": "com.example",
		"fields": [
			{"name": "inner", "type": {"type": "record", "name": "Inner",
				"fields": [{"name": "x", "type": "int"}]}},
			{"name": "other", "type": {"type": "record", "name": "other.Qualified",
				"fields": [{"name": "y", "type": "int"}]}},
			{"name": "again", "type": "Inner"}
		]
	}`)
	if err != nil {
		t.Fatal(err)
	}
	inner := s.Fields[0].Schema
	if inner.Name.Full() != "com.example.Inner" {
		t.Errorf("inner = %s", inner.Name.Full())
	}
	// a dotted name overrides the inherited namespace
	if s.Fields[1].Schema.Name.Full() != "other.Qualified" {
		t.Errorf("qualified = %s", s.Fields[1].Schema.Name.Full())
	}
	// the bare reference resolves inside the namespace
	again := s.Fields[2].Schema
	if again.Deref() != inner {
		t.Errorf("reference did not resolve to the definition")
	}
}

func TestParseRecursive(t *testing.T) {
	s, err := Parse(`{
		"type": "record", "name": "Node",
		"fields": [
			{"name": "value", "type": "long"},
			{"name": "next", "type": ["null", "Node"], "default": null}
		]
	}`)
	if err != nil {
		t.Fatal(err)
	}
	next := s.Fields[1].Schema.Branches[1]
	if next.Deref() != s {
		t.Errorf("recursive reference did not resolve")
	}
	want := `{"name":"Node","type":"record","fields":[` +
		`{"name":"value","type":"long"},` +
		`{"name":"next","type":["null","Node"]}]}`
	if got := CanonicalJSON(s); got != want {
		t.Errorf("canonical = %s", got)
	}
}

func TestParseEnumAndDefaults(t *testing.T) {
	s, err := Parse(`{
		"type": "enum", "name": "Color",
		"symbols": ["RED", "GREEN", "BLUE"],
		"default": "RED"
	}`)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(s.Symbols, []string{"RED", "GREEN", "BLUE"}) {
		t.Errorf("symbols = %v", s.Symbols)
	}
	if s.DefaultSymbol != "RED" {
		t.Errorf("default = %q", s.DefaultSymbol)
	}
}

func TestParseBytesDefault(t *testing.T) {
	s, err := Parse(`{
		"type": "record", "name": "R",
		"fields": [{"name": "raw", "type": "bytes", "default": "\u0000\u00ff"}]
	}`)
	if err != nil {
		t.Fatal(err)
	}
	d := s.Fields[0].Default
	if d == nil || !reflect.DeepEqual(d.Bytes, []byte{0x00, 0xff}) {
		t.Errorf("default = %+v", d)
	}
}

func TestParseErrors(t *testing.T) {
	bad := []string{
		`{"type": "record"}`,                        // no name
		`{"type": "record", "name": "R"}`,           // no fields
		`{"type": "array"}`,                         // no items
		`{"type": "enum", "name": "E"}`,             // no symbols
		`{"type": "fixed", "name": "F"}`,            // no size
		`"frobnicate"`,                              // unknown type
		`{"fields": []}`,                            // no type
		`{"type": "record", "name": "R", "fields": [
			{"name": "x", "type": "int", "default": "zero"}]}`, // bad default
	}
	for i, src := range bad {
		if _, err := Parse(src); err == nil {
			t.Errorf("case %d: expected parse failure", i)
		}
	}
	var pe *ParseError
	_, err := Parse(`{"type": "record", "name": "R", "fields": [{"name": "x", "type": "bogus"}]}`)
	if !errors.As(err, &pe) {
		t.Fatalf("error %T is not a ParseError", err)
	}
	if pe.Path == "" {
		t.Errorf("parse error has no path")
	}
}

func TestSchemaJSONRoundTrip(t *testing.T) {
	s, err := Parse(personJSON)
	if err != nil {
		t.Fatal(err)
	}
	// the full form preserves defaults and namespaces,
	// so reparsing it reproduces the schema
	s2, err := Parse(s.JSON())
	if err != nil {
		t.Fatalf("reparsing %s: %v", s.JSON(), err)
	}
	if s2.JSON() != s.JSON() {
		t.Errorf("round-trip changed the schema:\n %s\n %s", s.JSON(), s2.JSON())
	}
	if Fingerprint(s2) != Fingerprint(s) {
		t.Errorf("round-trip changed the fingerprint")
	}
	if s2.Fields[1].Default == nil {
		t.Errorf("round-trip dropped the age default")
	}
}

func TestParseYAML(t *testing.T) {
	s, err := ParseYAML([]byte(`
type: record
name: Event
namespace: com.example
fields:
  - name: id
    type:
      type: string
      logicalType: uuid
  - name: at
    type:
      type: long
      logicalType: timestamp-micros
  - name: payload
    type: bytes
`))
	if err != nil {
		t.Fatal(err)
	}
	if s.Name.Full() != "com.example.Event" {
		t.Errorf("name = %s", s.Name.Full())
	}
	if s.Fields[0].Schema.Logical != LogicalUUID {
		t.Errorf("id logical = %q", s.Fields[0].Schema.Logical)
	}
	jsonForm, err := Parse(s.JSON())
	if err != nil {
		t.Fatal(err)
	}
	if Fingerprint(jsonForm) != Fingerprint(s) {
		t.Errorf("YAML and JSON forms disagree")
	}
}
