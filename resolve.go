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
	"fmt"
	"strings"
	"sync"

	"github.com/dchest/siphash"
)

// ResolveErrorKind discriminates the failure modes of Resolve.
type ResolveErrorKind uint8

const (
	// TypeMismatch: the writer type cannot be read as the reader type.
	TypeMismatch ResolveErrorKind = iota
	// MissingField: a reader field is absent from the writer and has no default.
	MissingField
	// FieldMismatch: a shared record field failed to resolve.
	FieldMismatch
	// MissingUnionBranch: no reader branch accepts a writer branch.
	MissingUnionBranch
	// MissingSymbol: a writer enum symbol is unknown to the reader,
	// which has no default symbol.
	MissingSymbol
	// FixedSizeMismatch: fixed types with equal names but unequal sizes.
	FixedSizeMismatch
	// NamedTypeUnresolved: a named reference could not be resolved.
	NamedTypeUnresolved
)

var resolveKindNames = [...]string{
	TypeMismatch:        "type mismatch",
	MissingField:        "missing field",
	FieldMismatch:       "field mismatch",
	MissingUnionBranch:  "missing union branch",
	MissingSymbol:       "missing symbol",
	FixedSizeMismatch:   "fixed size mismatch",
	NamedTypeUnresolved: "named type unresolved",
}

func (k ResolveErrorKind) String() string {
	if int(k) < len(resolveKindNames) {
		return resolveKindNames[k]
	}
	return fmt.Sprintf("ResolveErrorKind(%d)", int(k))
}

// ResolveError is returned by Resolve when a (reader, writer)
// schema pair is incompatible.
type ResolveError struct {
	Kind   ResolveErrorKind
	Reader Type   // TypeMismatch
	Writer Type   // TypeMismatch
	Name   string // enclosing record/enum/fixed name, or branch key
	Field  string // field name or enum symbol

	// sizes for FixedSizeMismatch
	ReaderSize, WriterSize int

	err error // cause, for FieldMismatch
}

func (e *ResolveError) Error() string {
	switch e.Kind {
	case TypeMismatch:
		return fmt.Sprintf("avro: cannot read %s as %s", e.Writer, e.Reader)
	case MissingField:
		return fmt.Sprintf("avro: record %s: reader field %q has no writer field and no default", e.Name, e.Field)
	case FieldMismatch:
		return fmt.Sprintf("avro: record %s: field %q: %v", e.Name, e.Field, e.err)
	case MissingUnionBranch:
		return fmt.Sprintf("avro: no reader union branch accepts %s", e.Name)
	case MissingSymbol:
		return fmt.Sprintf("avro: enum %s: writer symbol %q unknown to reader", e.Name, e.Field)
	case FixedSizeMismatch:
		return fmt.Sprintf("avro: fixed %s: reader size %d, writer size %d", e.Name, e.ReaderSize, e.WriterSize)
	case NamedTypeUnresolved:
		return fmt.Sprintf("avro: unresolved named type %s", e.Name)
	}
	return "avro: resolution error"
}

func (e *ResolveError) Unwrap() error { return e.err }

type planOp uint8

const (
	opNull planOp = iota
	opBool
	opInt
	opIntAsLong
	opIntAsFloat
	opIntAsDouble
	opLong
	opLongAsFloat
	opLongAsDouble
	opFloat
	opFloatAsDouble
	opDouble
	opBytes
	opString
	opFixed
	opArray
	opMap
	opRecord
	opEnum
	opUnion
	opAsUnion
	opRef
)

// Plan is a compiled read plan: the result of resolving a
// reader schema against a writer schema. A Plan decodes data
// written under the writer schema into generic Values shaped
// by the reader schema. Plans are immutable and safe for
// concurrent use.
type Plan struct {
	op   planOp
	name string // reader fullname for record/enum/fixed
	size int    // fixed size

	elem *Plan // array/map element, AsUnion sub-plan

	// record
	fields   []planField // writer order
	defaults []planDefault
	nreader  int

	// enum
	symbols []string
	symmap  []int // writer index -> reader index

	// union; reader == -1 means the decoded value is unwrapped
	branches []planBranch
	branch   int // AsUnion reader branch index

	ref *Plan // opRef target
}

type planField struct {
	name string
	pos  int // reader position, -1 to decode and discard
	plan *Plan
}

type planDefault struct {
	pos   int
	name  string
	value Value
}

type planBranch struct {
	reader int
	plan   *Plan
}

// Resolve compiles a (reader, writer) schema pair into a
// read plan, or reports why the pair is incompatible.
// Resolution is a pure compile step; it touches no data.
func Resolve(reader, writer *Schema) (*Plan, error) {
	rs := &resolver{env: map[[2]string]*Plan{}}
	return rs.resolve(reader, writer)
}

type resolver struct {
	// env maps (writer fullname, reader fullname) pairs to
	// plans under construction so recursive named types
	// resolve to a reference instead of diverging.
	env map[[2]string]*Plan
}

// leafOp is the promotion matrix for primitive leaves.
func leafOp(r, w Type) (planOp, bool) {
	switch r {
	case NullType:
		if w == NullType {
			return opNull, true
		}
	case BoolType:
		if w == BoolType {
			return opBool, true
		}
	case IntType:
		if w == IntType {
			return opInt, true
		}
	case LongType:
		switch w {
		case IntType:
			return opIntAsLong, true
		case LongType:
			return opLong, true
		}
	case FloatType:
		switch w {
		case IntType:
			return opIntAsFloat, true
		case LongType:
			return opLongAsFloat, true
		case FloatType:
			return opFloat, true
		}
	case DoubleType:
		switch w {
		case IntType:
			return opIntAsDouble, true
		case LongType:
			return opLongAsDouble, true
		case FloatType:
			return opFloatAsDouble, true
		case DoubleType:
			return opDouble, true
		}
	case BytesType:
		if w == BytesType || w == StringType {
			return opBytes, true
		}
	case StringType:
		if w == StringType || w == BytesType {
			return opString, true
		}
	}
	return 0, false
}

func (rs *resolver) resolve(r, w *Schema) (*Plan, error) {
	r, w = r.Deref(), w.Deref()
	if w.Type == UnionType {
		if r.Type == UnionType {
			return rs.unionToUnion(r, w)
		}
		return rs.unionToSingle(r, w)
	}
	if r.Type == UnionType {
		// a non-union writer read by a union reader:
		// route to the first accepting branch
		for i, br := range r.Branches {
			p, err := rs.resolve(br, w)
			if err == nil {
				return &Plan{op: opAsUnion, branch: i, elem: p}, nil
			}
		}
		return nil, &ResolveError{Kind: MissingUnionBranch, Name: typeKey(w)}
	}
	switch w.Type {
	case NullType, BoolType, IntType, LongType, FloatType,
		DoubleType, BytesType, StringType:
		if op, ok := leafOp(r.Type, w.Type); ok {
			return &Plan{op: op}, nil
		}
		return nil, &ResolveError{Kind: TypeMismatch, Reader: r.Type, Writer: w.Type}
	case ArrayType:
		if r.Type != ArrayType {
			return nil, &ResolveError{Kind: TypeMismatch, Reader: r.Type, Writer: w.Type}
		}
		elem, err := rs.resolve(r.Elem, w.Elem)
		if err != nil {
			return nil, err
		}
		return &Plan{op: opArray, elem: elem}, nil
	case MapType:
		if r.Type != MapType {
			return nil, &ResolveError{Kind: TypeMismatch, Reader: r.Type, Writer: w.Type}
		}
		elem, err := rs.resolve(r.Elem, w.Elem)
		if err != nil {
			return nil, err
		}
		return &Plan{op: opMap, elem: elem}, nil
	case RecordType:
		return rs.record(r, w)
	case EnumType:
		return rs.enum(r, w)
	case FixedType:
		return rs.fixed(r, w)
	case RefType:
		return nil, &ResolveError{Kind: NamedTypeUnresolved, Name: w.Name.Full()}
	}
	return nil, &ResolveError{Kind: TypeMismatch, Reader: r.Type, Writer: w.Type}
}

// nameCompatible implements the alias rule: reader and writer
// bases match, or the writer's fullname appears in the reader's
// alias list. Simple aliases are tried both bare and qualified
// with the reader's namespace.
func nameCompatible(r, w *Schema) bool {
	if r.Name.Base == w.Name.Base {
		return true
	}
	wfull := w.Name.Full()
	for _, a := range r.Aliases {
		if a == wfull {
			return true
		}
		if !strings.Contains(a, ".") {
			if a == w.Name.Base {
				return true
			}
			q := Name{Base: a, Namespace: r.Name.Namespace}
			if q.Full() == wfull {
				return true
			}
		}
	}
	return false
}

func (rs *resolver) enter(r, w *Schema, p *Plan) [2]string {
	key := [2]string{w.Name.Full(), r.Name.Full()}
	rs.env[key] = p
	return key
}

func (rs *resolver) lookup(r, w *Schema) (*Plan, bool) {
	p, ok := rs.env[[2]string{w.Name.Full(), r.Name.Full()}]
	return p, ok
}

func (rs *resolver) record(r, w *Schema) (*Plan, error) {
	if r.Type != RecordType {
		return nil, &ResolveError{Kind: TypeMismatch, Reader: r.Type, Writer: w.Type}
	}
	if !nameCompatible(r, w) {
		return nil, &ResolveError{Kind: TypeMismatch, Reader: r.Type, Writer: w.Type,
			Name: r.Name.Full()}
	}
	if p, ok := rs.lookup(r, w); ok {
		return &Plan{op: opRef, ref: p}, nil
	}
	p := &Plan{op: opRecord, name: r.Name.Full(), nreader: len(r.Fields)}
	rs.enter(r, w, p)

	pending := make(map[int]bool, len(r.Fields))
	for i := range r.Fields {
		pending[i] = true
	}
	for wi := range w.Fields {
		wf := &w.Fields[wi]
		ri := findReaderField(r, wf.Name)
		if ri < 0 {
			// writer-only field: decode against its own
			// schema and discard the value
			fp, err := rs.resolve(wf.Schema, wf.Schema)
			if err != nil {
				return nil, &ResolveError{Kind: FieldMismatch, Name: r.Name.Full(),
					Field: wf.Name, err: err}
			}
			p.fields = append(p.fields, planField{pos: -1, plan: fp})
			continue
		}
		fp, err := rs.resolve(r.Fields[ri].Schema, wf.Schema)
		if err != nil {
			return nil, &ResolveError{Kind: FieldMismatch, Name: r.Name.Full(),
				Field: wf.Name, err: err}
		}
		p.fields = append(p.fields, planField{name: r.Fields[ri].Name, pos: ri, plan: fp})
		delete(pending, ri)
	}
	for ri := range r.Fields {
		if !pending[ri] {
			continue
		}
		rf := &r.Fields[ri]
		if rf.Default == nil {
			return nil, &ResolveError{Kind: MissingField, Name: r.Name.Full(), Field: rf.Name}
		}
		v, err := rf.Default.lift(rf.Schema)
		if err != nil {
			return nil, &ResolveError{Kind: FieldMismatch, Name: r.Name.Full(),
				Field: rf.Name, err: err}
		}
		p.defaults = append(p.defaults, planDefault{pos: ri, name: rf.Name, value: v})
	}
	return p, nil
}

// findReaderField locates the reader field matching a writer
// field name: same name, or the writer name appears in the
// reader field's alias list.
func findReaderField(r *Schema, writerName string) int {
	for i := range r.Fields {
		if r.Fields[i].Name == writerName {
			return i
		}
	}
	for i := range r.Fields {
		for _, a := range r.Fields[i].Aliases {
			if a == writerName {
				return i
			}
		}
	}
	return -1
}

func (rs *resolver) enum(r, w *Schema) (*Plan, error) {
	if r.Type != EnumType {
		return nil, &ResolveError{Kind: TypeMismatch, Reader: r.Type, Writer: w.Type}
	}
	if !nameCompatible(r, w) {
		return nil, &ResolveError{Kind: TypeMismatch, Reader: r.Type, Writer: w.Type,
			Name: r.Name.Full()}
	}
	deflt := -1
	if r.DefaultSymbol != "" {
		for i, sym := range r.Symbols {
			if sym == r.DefaultSymbol {
				deflt = i
				break
			}
		}
	}
	symmap := make([]int, len(w.Symbols))
	for wi, sym := range w.Symbols {
		ri := -1
		for j, rsym := range r.Symbols {
			if rsym == sym {
				ri = j
				break
			}
		}
		if ri < 0 {
			if deflt < 0 {
				return nil, &ResolveError{Kind: MissingSymbol, Name: r.Name.Full(), Field: sym}
			}
			ri = deflt
		}
		symmap[wi] = ri
	}
	return &Plan{op: opEnum, name: r.Name.Full(), symbols: r.Symbols, symmap: symmap}, nil
}

func (rs *resolver) fixed(r, w *Schema) (*Plan, error) {
	if r.Type != FixedType {
		return nil, &ResolveError{Kind: TypeMismatch, Reader: r.Type, Writer: w.Type}
	}
	if !nameCompatible(r, w) {
		return nil, &ResolveError{Kind: TypeMismatch, Reader: r.Type, Writer: w.Type,
			Name: r.Name.Full()}
	}
	if r.Size != w.Size {
		return nil, &ResolveError{Kind: FixedSizeMismatch, Name: r.Name.Full(),
			ReaderSize: r.Size, WriterSize: w.Size}
	}
	return &Plan{op: opFixed, name: r.Name.Full(), size: r.Size}, nil
}

func (rs *resolver) unionToUnion(r, w *Schema) (*Plan, error) {
	branches := make([]planBranch, len(w.Branches))
	for wi, wb := range w.Branches {
		found := false
		for ri, rb := range r.Branches {
			p, err := rs.resolve(rb, wb)
			if err == nil {
				branches[wi] = planBranch{reader: ri, plan: p}
				found = true
				break
			}
		}
		if !found {
			return nil, &ResolveError{Kind: MissingUnionBranch, Name: typeKey(wb)}
		}
	}
	return &Plan{op: opUnion, branches: branches}, nil
}

// unionToSingle handles a union writer read by a non-union
// reader: every writer branch must resolve to the reader
// type and the decoded value is unwrapped.
func (rs *resolver) unionToSingle(r, w *Schema) (*Plan, error) {
	branches := make([]planBranch, len(w.Branches))
	for wi, wb := range w.Branches {
		p, err := rs.resolve(r, wb)
		if err != nil {
			return nil, err
		}
		branches[wi] = planBranch{reader: -1, plan: p}
	}
	return &Plan{op: opUnion, branches: branches}, nil
}

// Read-plan cache for DecodeWithSchemas, keyed by a keyed
// hash over the full JSON forms of the schema pair.
var planCache sync.Map // [2]uint64 -> *Plan

const (
	planHashK0 = 0x736e656c6c6572af
	planHashK1 = 0x6176726f2d73696d
)

func resolveCached(reader, writer *Schema) (*Plan, error) {
	// the key hashes the full schema forms: aliases, defaults
	// and enum default symbols all affect resolution but are
	// stripped from the canonical form
	buf := appendFull(nil, writer, map[string]bool{})
	buf = append(buf, 0)
	buf = appendFull(buf, reader, map[string]bool{})
	lo, hi := siphash.Hash128(planHashK0, planHashK1, buf)
	key := [2]uint64{lo, hi}
	if p, ok := planCache.Load(key); ok {
		return p.(*Plan), nil
	}
	p, err := Resolve(reader, writer)
	if err != nil {
		return nil, err
	}
	planCache.Store(key, p)
	return p, nil
}
