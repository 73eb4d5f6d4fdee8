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

func resolveKind(t *testing.T, reader, writer *Schema) ResolveErrorKind {
	t.Helper()
	_, err := Resolve(reader, writer)
	if err == nil {
		t.Fatalf("expected resolution failure")
	}
	var re *ResolveError
	if !errors.As(err, &re) {
		t.Fatalf("error %T is not a ResolveError", err)
	}
	return re.Kind
}

func TestPromotionMatrix(t *testing.T) {
	ok := []struct {
		reader, writer Type
	}{
		{NullType, NullType},
		{BoolType, BoolType},
		{IntType, IntType},
		{LongType, IntType},
		{LongType, LongType},
		{FloatType, IntType},
		{FloatType, LongType},
		{FloatType, FloatType},
		{DoubleType, IntType},
		{DoubleType, LongType},
		{DoubleType, FloatType},
		{DoubleType, DoubleType},
		{BytesType, BytesType},
		{BytesType, StringType},
		{StringType, StringType},
		{StringType, BytesType},
	}
	for _, tc := range ok {
		if _, err := Resolve(Primitive(tc.reader), Primitive(tc.writer)); err != nil {
			t.Errorf("%s <- %s: %v", tc.reader, tc.writer, err)
		}
	}
	bad := []struct {
		reader, writer Type
	}{
		{IntType, LongType},   // narrowing
		{FloatType, DoubleType},
		{LongType, FloatType},
		{IntType, StringType},
		{NullType, BoolType},
		{BoolType, IntType},
	}
	for _, tc := range bad {
		if kind := resolveKind(t, Primitive(tc.reader), Primitive(tc.writer)); kind != TypeMismatch {
			t.Errorf("%s <- %s: kind %v", tc.reader, tc.writer, kind)
		}
	}
}

func TestPromotionDecode(t *testing.T) {
	var b Buffer
	b.WriteInt(42)
	tcs := []struct {
		reader Type
		want   Value
	}{
		{LongType, LongValue(42)},
		{FloatType, FloatValue(42)},
		{DoubleType, DoubleValue(42)},
	}
	for _, tc := range tcs {
		v, err := DecodeWithSchemas(Primitive(tc.reader), Primitive(IntType), b.Bytes())
		if err != nil {
			t.Fatal(err)
		}
		if v != tc.want {
			t.Errorf("int as %s: got %#v", tc.reader, v)
		}
	}
	// float -> double reads the 4-byte wire form
	b.Reset()
	b.WriteFloat(1.5)
	v, err := DecodeWithSchemas(Primitive(DoubleType), Primitive(FloatType), b.Bytes())
	if err != nil {
		t.Fatal(err)
	}
	if v != DoubleValue(1.5) {
		t.Errorf("float as double: got %#v", v)
	}
	// string <-> bytes share a wire form
	b.Reset()
	b.WriteString("hi")
	v, err = DecodeWithSchemas(Primitive(BytesType), Primitive(StringType), b.Bytes())
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(v, BytesValue([]byte("hi"))) {
		t.Errorf("string as bytes: got %#v", v)
	}
}

func TestResolveOptionalFieldEvolution(t *testing.T) {
	writer := NewRecordSchema("Person", []Field{
		{Name: "name", Schema: Primitive(StringType)},
	})
	reader := NewRecordSchema("Person", []Field{
		{Name: "name", Schema: Primitive(StringType)},
		{Name: "age", Schema: Primitive(IntType), Default: &Default{Type: IntType, Long: 0}},
	})
	var b Buffer
	b.WriteString("Alice")
	v, err := DecodeWithSchemas(reader, writer, b.Bytes())
	if err != nil {
		t.Fatal(err)
	}
	want := &RecordValue{Name: "Person", Fields: []FieldValue{
		{Name: "name", Value: StringValue("Alice")},
		{Name: "age", Value: IntValue(0)},
	}}
	if !reflect.DeepEqual(v, want) {
		t.Errorf("got %#v", v)
	}
}

func TestResolveMissingFieldNoDefault(t *testing.T) {
	writer := NewRecordSchema("Person", []Field{
		{Name: "name", Schema: Primitive(StringType)},
	})
	reader := NewRecordSchema("Person", []Field{
		{Name: "name", Schema: Primitive(StringType)},
		{Name: "age", Schema: Primitive(IntType)},
	})
	if kind := resolveKind(t, reader, writer); kind != MissingField {
		t.Errorf("kind = %v", kind)
	}
}

func TestResolveDroppedWriterField(t *testing.T) {
	writer := NewRecordSchema("Person", []Field{
		{Name: "name", Schema: Primitive(StringType)},
		{Name: "ssn", Schema: Primitive(StringType)},
		{Name: "age", Schema: Primitive(IntType)},
	})
	reader := NewRecordSchema("Person", []Field{
		{Name: "name", Schema: Primitive(StringType)},
		{Name: "age", Schema: Primitive(IntType)},
	})
	var b Buffer
	b.WriteString("Ada")
	b.WriteString("000-00-0000")
	b.WriteInt(36)
	v, err := DecodeWithSchemas(reader, writer, b.Bytes())
	if err != nil {
		t.Fatal(err)
	}
	want := &RecordValue{Name: "Person", Fields: []FieldValue{
		{Name: "name", Value: StringValue("Ada")},
		{Name: "age", Value: IntValue(36)},
	}}
	if !reflect.DeepEqual(v, want) {
		t.Errorf("got %#v", v)
	}
}

func TestResolveFieldReorder(t *testing.T) {
	writer := NewRecordSchema("R", []Field{
		{Name: "a", Schema: Primitive(IntType)},
		{Name: "b", Schema: Primitive(StringType)},
	})
	reader := NewRecordSchema("R", []Field{
		{Name: "b", Schema: Primitive(StringType)},
		{Name: "a", Schema: Primitive(LongType)},
	})
	var b Buffer
	b.WriteInt(7)
	b.WriteString("x")
	v, err := DecodeWithSchemas(reader, writer, b.Bytes())
	if err != nil {
		t.Fatal(err)
	}
	// decode happens in writer order, but the produced
	// record is in reader order with promotion applied
	want := &RecordValue{Name: "R", Fields: []FieldValue{
		{Name: "b", Value: StringValue("x")},
		{Name: "a", Value: LongValue(7)},
	}}
	if !reflect.DeepEqual(v, want) {
		t.Errorf("got %#v", v)
	}
}

func TestResolveIntIntoUnion(t *testing.T) {
	reader := NewUnionSchema(Primitive(NullType), Primitive(LongType))
	writer := Primitive(IntType)
	var b Buffer
	b.WriteInt(42)
	v, err := DecodeWithSchemas(reader, writer, b.Bytes())
	if err != nil {
		t.Fatal(err)
	}
	want := &UnionValue{Branch: 1, Value: LongValue(42)}
	if !reflect.DeepEqual(v, want) {
		t.Errorf("got %#v", v)
	}
}

func TestResolveUnionToUnion(t *testing.T) {
	writer := NewUnionSchema(Primitive(StringType), Primitive(IntType))
	reader := NewUnionSchema(Primitive(NullType), Primitive(LongType), Primitive(StringType))
	var b Buffer
	b.WriteLong(1) // writer branch: int
	b.WriteInt(5)
	v, err := DecodeWithSchemas(reader, writer, b.Bytes())
	if err != nil {
		t.Fatal(err)
	}
	// writer int routes to reader long at reader index 1
	want := &UnionValue{Branch: 1, Value: LongValue(5)}
	if !reflect.DeepEqual(v, want) {
		t.Errorf("got %#v", v)
	}
}

func TestResolveUnionUnwrap(t *testing.T) {
	writer := NewUnionSchema(Primitive(IntType), Primitive(LongType))
	reader := Primitive(LongType)
	var b Buffer
	b.WriteLong(0) // writer branch: int
	b.WriteInt(9)
	v, err := DecodeWithSchemas(reader, writer, b.Bytes())
	if err != nil {
		t.Fatal(err)
	}
	if v != LongValue(9) {
		t.Errorf("got %#v", v)
	}
	// a branch the reader cannot accept fails resolution
	writer = NewUnionSchema(Primitive(IntType), Primitive(StringType))
	if kind := resolveKind(t, reader, writer); kind != TypeMismatch {
		t.Errorf("kind = %v", kind)
	}
}

func TestResolveMissingUnionBranch(t *testing.T) {
	writer := NewUnionSchema(Primitive(NullType), Primitive(BytesType))
	reader := NewUnionSchema(Primitive(NullType), Primitive(IntType))
	if kind := resolveKind(t, reader, writer); kind != MissingUnionBranch {
		t.Errorf("kind = %v", kind)
	}
}

func TestResolveEnumReorder(t *testing.T) {
	writer := NewEnumSchema("Color", []string{"GREEN", "BLUE", "RED"})
	reader := NewEnumSchema("Color", []string{"RED", "GREEN", "BLUE"})
	var b Buffer
	b.WriteLong(0) // writer GREEN
	v, err := DecodeWithSchemas(reader, writer, b.Bytes())
	if err != nil {
		t.Fatal(err)
	}
	want := EnumValue{Index: 1, Symbol: "GREEN"}
	if v != want {
		t.Errorf("got %#v", v)
	}
}

func TestResolveEnumDefaultSymbol(t *testing.T) {
	writer := NewEnumSchema("Color", []string{"RED", "MAGENTA"})
	reader := NewEnumSchema("Color", []string{"RED", "GREEN"})
	if kind := resolveKind(t, reader, writer); kind != MissingSymbol {
		t.Errorf("kind = %v", kind)
	}
	reader.DefaultSymbol = "GREEN"
	var b Buffer
	b.WriteLong(1) // writer MAGENTA
	v, err := DecodeWithSchemas(reader, writer, b.Bytes())
	if err != nil {
		t.Fatal(err)
	}
	want := EnumValue{Index: 1, Symbol: "GREEN"}
	if v != want {
		t.Errorf("got %#v", v)
	}
}

func TestResolveFixed(t *testing.T) {
	if _, err := Resolve(NewFixedSchema("MD5", 16), NewFixedSchema("MD5", 16)); err != nil {
		t.Fatal(err)
	}
	kind := resolveKind(t, NewFixedSchema("MD5", 16), NewFixedSchema("MD5", 8))
	if kind != FixedSizeMismatch {
		t.Errorf("kind = %v", kind)
	}
}

func TestResolveAliases(t *testing.T) {
	writer := NewRecordSchema("org.old.Employee", []Field{
		{Name: "fullname", Schema: Primitive(StringType)},
	})
	reader := NewRecordSchema("org.new.Person", []Field{
		{Name: "name", Schema: Primitive(StringType), Aliases: []string{"fullname"}},
	})
	reader.Aliases = []string{"org.old.Employee"}
	var b Buffer
	b.WriteString("Grace")
	v, err := DecodeWithSchemas(reader, writer, b.Bytes())
	if err != nil {
		t.Fatal(err)
	}
	want := &RecordValue{Name: "org.new.Person", Fields: []FieldValue{
		{Name: "name", Value: StringValue("Grace")},
	}}
	if !reflect.DeepEqual(v, want) {
		t.Errorf("got %#v", v)
	}

	// without the alias the names are incompatible
	reader.Aliases = nil
	if kind := resolveKind(t, reader, writer); kind != TypeMismatch {
		t.Errorf("kind = %v", kind)
	}
}

func TestResolveContainers(t *testing.T) {
	// array element and map value schemas resolve recursively,
	// including promotions
	v, err := DecodeWithSchemas(
		NewArraySchema(Primitive(LongType)),
		NewArraySchema(Primitive(IntType)),
		mustMarshal(t, ArrayOf(Int()), []int32{1, 2, 3}))
	if err != nil {
		t.Fatal(err)
	}
	want := ArrayValue{LongValue(1), LongValue(2), LongValue(3)}
	if !reflect.DeepEqual(v, want) {
		t.Errorf("got %#v", v)
	}
	if kind := resolveKind(t,
		NewArraySchema(Primitive(IntType)),
		NewArraySchema(Primitive(StringType))); kind != TypeMismatch {
		t.Errorf("kind = %v", kind)
	}

	mv, err := DecodeWithSchemas(
		NewMapSchema(Primitive(DoubleType)),
		NewMapSchema(Primitive(FloatType)),
		mustMarshal(t, MapOf(Float()), map[string]float32{"pi": 3.5}))
	if err != nil {
		t.Fatal(err)
	}
	wantm := MapValue{{Key: "pi", Value: DoubleValue(3.5)}}
	if !reflect.DeepEqual(mv, wantm) {
		t.Errorf("got %#v", mv)
	}
}

func TestResolveIdentityRecord(t *testing.T) {
	c := personCodec(t)
	email := "g@example.com"
	v := person{Name: "Grace", Age: 46, Email: &email, Phones: []string{"+1-555-0199"}}
	p, err := c.Marshal(v)
	if err != nil {
		t.Fatal(err)
	}
	got, err := DecodeWithSchemas(c.Schema(), c.Schema(), p)
	if err != nil {
		t.Fatal(err)
	}
	want := &RecordValue{Name: "com.example.Person", Fields: []FieldValue{
		{Name: "name", Value: StringValue("Grace")},
		{Name: "age", Value: IntValue(46)},
		{Name: "email", Value: &UnionValue{Branch: 1, Value: StringValue("g@example.com")}},
		{Name: "phone_numbers", Value: ArrayValue{StringValue("+1-555-0199")}},
	}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %#v", got)
	}
}

func mustMarshal[T any](t *testing.T, c Codec[T], v T) []byte {
	t.Helper()
	p, err := c.Marshal(v)
	if err != nil {
		t.Fatal(err)
	}
	return p
}
