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
	"fmt"
	"strings"
)

// Type enumerates the variants of the Avro schema sum.
type Type uint8

const (
	NullType Type = iota
	BoolType
	IntType
	LongType
	FloatType
	DoubleType
	BytesType
	StringType
	ArrayType
	MapType
	UnionType
	RecordType
	EnumType
	FixedType
	// RefType is a reference to a previously defined
	// named type; it appears in recursive schemas.
	RefType
)

var typeNames = [...]string{
	NullType:   "null",
	BoolType:   "boolean",
	IntType:    "int",
	LongType:   "long",
	FloatType:  "float",
	DoubleType: "double",
	BytesType:  "bytes",
	StringType: "string",
	ArrayType:  "array",
	MapType:    "map",
	UnionType:  "union",
	RecordType: "record",
	EnumType:   "enum",
	FixedType:  "fixed",
	RefType:    "ref",
}

func (t Type) String() string {
	if int(t) < len(typeNames) {
		return typeNames[t]
	}
	return fmt.Sprintf("Type(%d)", int(t))
}

// Logical type tags defined by the Avro specification.
// Tags are carried on the four annotatable primitives
// (int, long, bytes, string) and on fixed types; they do
// not change the wire format.
const (
	LogicalDate                 = "date"                   // int
	LogicalTimeMillis           = "time-millis"            // int
	LogicalTimeMicros           = "time-micros"            // long
	LogicalTimestampMillis      = "timestamp-millis"       // long
	LogicalTimestampMicros      = "timestamp-micros"       // long
	LogicalLocalTimestampMillis = "local-timestamp-millis" // long
	LogicalLocalTimestampMicros = "local-timestamp-micros" // long
	LogicalDecimal              = "decimal"                // bytes or fixed
	LogicalUUID                 = "uuid"                   // string
	LogicalDuration             = "duration"               // fixed(12)
)

// Name is a qualified Avro name: a base identifier
// plus an optional dotted namespace.
type Name struct {
	Base      string
	Namespace string
}

// ParseName splits a dotted string on its last dot
// into namespace and base.
func ParseName(s string) Name {
	if i := strings.LastIndexByte(s, '.'); i >= 0 {
		return Name{Base: s[i+1:], Namespace: s[:i]}
	}
	return Name{Base: s}
}

// Full returns the dotted join of namespace and base.
func (n Name) Full() string {
	if n.Namespace == "" {
		return n.Base
	}
	return n.Namespace + "." + n.Base
}

func (n Name) String() string { return n.Full() }

// validName reports whether s matches [A-Za-z_][A-Za-z0-9_]*.
func validName(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c == '_':
		case c >= '0' && c <= '9':
			if i == 0 {
				return false
			}
		default:
			return false
		}
	}
	return true
}

func validNamespace(s string) bool {
	if s == "" {
		return true
	}
	for _, part := range strings.Split(s, ".") {
		if !validName(part) {
			return false
		}
	}
	return true
}

// Field is a single field of a record schema.
type Field struct {
	Name    string
	Schema  *Schema
	Doc     string
	Default *Default
	Aliases []string
}

// Schema is a node in an Avro schema tree.
//
// Only the members relevant to the node's Type are
// populated; the rest stay at their zero values.
// Schemas are immutable once constructed.
type Schema struct {
	Type Type

	// Logical is the optional logical-type tag carried
	// by int, long, bytes, string and fixed schemas.
	Logical string

	// Elem is the element schema of an array
	// or the value schema of a map.
	Elem *Schema

	// Branches are the ordered members of a union.
	Branches []*Schema

	// Name, Doc and Aliases apply to record,
	// enum and fixed schemas. For RefType nodes
	// Name identifies the referenced definition.
	Name    Name
	Doc     string
	Aliases []string

	// Fields are the ordered fields of a record.
	Fields []Field

	// Symbols are the ordered symbols of an enum;
	// DefaultSymbol, if non-empty, is the enum's
	// evolution fallback.
	Symbols       []string
	DefaultSymbol string

	// Size is the exact byte size of a fixed.
	Size int

	// ref is the resolved target of a RefType node.
	ref *Schema
}

// Primitive returns the schema for one of the eight
// primitive types. It panics on a non-primitive Type.
func Primitive(t Type) *Schema {
	if t > StringType {
		panic("avro.Primitive: " + t.String() + " is not a primitive type")
	}
	return &Schema{Type: t}
}

// NewArraySchema returns an array-of-elem schema.
func NewArraySchema(elem *Schema) *Schema {
	return &Schema{Type: ArrayType, Elem: elem}
}

// NewMapSchema returns a map-of-elem schema.
// Map keys are implicitly strings.
func NewMapSchema(elem *Schema) *Schema {
	return &Schema{Type: MapType, Elem: elem}
}

// NewUnionSchema returns a union over the given branches.
func NewUnionSchema(branches ...*Schema) *Schema {
	return &Schema{Type: UnionType, Branches: branches}
}

// NewRecordSchema returns a record schema with the given
// dotted name and fields.
func NewRecordSchema(name string, fields []Field) *Schema {
	return &Schema{Type: RecordType, Name: ParseName(name), Fields: fields}
}

// NewEnumSchema returns an enum schema with the given
// dotted name and symbols.
func NewEnumSchema(name string, symbols []string) *Schema {
	return &Schema{Type: EnumType, Name: ParseName(name), Symbols: symbols}
}

// NewFixedSchema returns a fixed schema with the given
// dotted name and size.
func NewFixedSchema(name string, size int) *Schema {
	return &Schema{Type: FixedType, Name: ParseName(name), Size: size}
}

// Deref follows RefType indirections until it reaches
// a concrete schema node.
func (s *Schema) Deref() *Schema {
	for s.Type == RefType && s.ref != nil {
		s = s.ref
	}
	return s
}

// Named reports whether s defines a named type
// (record, enum or fixed).
func (s *Schema) Named() bool {
	return s.Type == RecordType || s.Type == EnumType || s.Type == FixedType
}

// annotatable reports whether s may carry a logical tag.
func (s *Schema) annotatable() bool {
	switch s.Type {
	case IntType, LongType, BytesType, StringType, FixedType:
		return true
	}
	return false
}

// WithLogical returns a copy of s carrying the given
// logical-type tag. Schemas that cannot carry a tag
// are returned unchanged.
func (s *Schema) WithLogical(tag string) *Schema {
	if !s.annotatable() {
		return s
	}
	dup := *s
	dup.Logical = tag
	return &dup
}

// ErrInvalidSchema is wrapped by all errors
// returned from Schema.Validate.
var ErrInvalidSchema = errors.New("invalid schema")

func invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidSchema, fmt.Sprintf(format, args...))
}

// typeKey computes the union-branch distinctness key:
// named types are keyed by fullname, everything else
// by its type tag.
func typeKey(s *Schema) string {
	s = s.Deref()
	if s.Named() {
		return s.Name.Full()
	}
	return s.Type.String()
}

// Validate checks the structural invariants of the schema
// tree and reports the first violation found:
// valid names, non-empty records and enums, unique field
// names and symbols, positive fixed sizes, union branch
// distinctness, no directly nested unions, and no
// redefinition of a named type (re-use of the same node
// is permitted).
func (s *Schema) Validate() error {
	return validate(s, map[string]*Schema{})
}

func validate(s *Schema, defined map[string]*Schema) error {
	switch s.Type {
	case NullType, BoolType, IntType, LongType, FloatType,
		DoubleType, BytesType, StringType:
		return nil
	case ArrayType, MapType:
		if s.Elem == nil {
			return invalidf("%s without element schema", s.Type)
		}
		return validate(s.Elem, defined)
	case UnionType:
		if len(s.Branches) == 0 {
			return invalidf("empty union")
		}
		seen := make(map[string]bool, len(s.Branches))
		for _, br := range s.Branches {
			if br.Deref().Type == UnionType {
				return invalidf("union directly contains a union")
			}
			k := typeKey(br)
			if seen[k] {
				return invalidf("duplicate union branch %s", k)
			}
			seen[k] = true
			if err := validate(br, defined); err != nil {
				return err
			}
		}
		return nil
	case RecordType:
		if err := checkDefinition(s, defined); err != nil {
			return err
		}
		if prev, ok := defined[s.Name.Full()]; ok && prev == s {
			return nil
		}
		defined[s.Name.Full()] = s
		if len(s.Fields) == 0 {
			return invalidf("record %s has no fields", s.Name)
		}
		names := make(map[string]bool, len(s.Fields))
		for i := range s.Fields {
			f := &s.Fields[i]
			if !validName(f.Name) {
				return invalidf("record %s: invalid field name %q", s.Name, f.Name)
			}
			if names[f.Name] {
				return invalidf("record %s: duplicate field %q", s.Name, f.Name)
			}
			names[f.Name] = true
			if f.Schema == nil {
				return invalidf("record %s: field %q has no schema", s.Name, f.Name)
			}
			if err := validate(f.Schema, defined); err != nil {
				return err
			}
		}
		return nil
	case EnumType:
		if err := checkDefinition(s, defined); err != nil {
			return err
		}
		if prev, ok := defined[s.Name.Full()]; ok && prev == s {
			return nil
		}
		defined[s.Name.Full()] = s
		if len(s.Symbols) == 0 {
			return invalidf("enum %s has no symbols", s.Name)
		}
		seen := make(map[string]bool, len(s.Symbols))
		for _, sym := range s.Symbols {
			if !validName(sym) {
				return invalidf("enum %s: invalid symbol %q", s.Name, sym)
			}
			if seen[sym] {
				return invalidf("enum %s: duplicate symbol %q", s.Name, sym)
			}
			seen[sym] = true
		}
		if s.DefaultSymbol != "" && !seen[s.DefaultSymbol] {
			return invalidf("enum %s: default %q is not a symbol", s.Name, s.DefaultSymbol)
		}
		return nil
	case FixedType:
		if err := checkDefinition(s, defined); err != nil {
			return err
		}
		if prev, ok := defined[s.Name.Full()]; ok && prev == s {
			return nil
		}
		defined[s.Name.Full()] = s
		if s.Size <= 0 {
			return invalidf("fixed %s has size %d", s.Name, s.Size)
		}
		return nil
	case RefType:
		// references may still be forward during Recursive
		// construction; the resolver and decoder reject any
		// that remain unresolved
		return nil
	default:
		return invalidf("unknown schema type %d", s.Type)
	}
}

func checkDefinition(s *Schema, defined map[string]*Schema) error {
	if !validName(s.Name.Base) {
		return invalidf("invalid name %q", s.Name.Base)
	}
	if !validNamespace(s.Name.Namespace) {
		return invalidf("invalid namespace %q", s.Name.Namespace)
	}
	if prev, ok := defined[s.Name.Full()]; ok && prev != s {
		return invalidf("redefinition of %s", s.Name)
	}
	return nil
}
