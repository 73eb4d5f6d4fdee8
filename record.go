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

// RecordBuilder is a staged builder for record codecs.
// Fields are added with AddField and AddOptional (free
// functions, since Go methods cannot introduce type
// parameters) and encode in the exact order they are
// declared. Build validates the accumulated record and
// produces the codec.
//
//	type person struct {
//		Name string
//		Age  int32
//	}
//	b := NewRecordCodec[person]("Person")
//	AddField(b, "name", String(), func(p *person) *string { return &p.Name })
//	AddField(b, "age", Int(), func(p *person) *int32 { return &p.Age })
//	codec, err := b.Build()
type RecordBuilder[T any] struct {
	name   Name
	doc    string
	fields []builderField[T]
}

type builderField[T any] struct {
	name   string
	schema *Schema
	def    *Default
	enc    func(*Buffer, *T) error
	dec    func(*Source, *T) error
}

// NewRecordCodec starts a record codec for the Go type T
// under the given dotted Avro name.
func NewRecordCodec[T any](name string) *RecordBuilder[T] {
	return &RecordBuilder[T]{name: ParseName(name)}
}

// Doc attaches a doc string to the record schema.
func (b *RecordBuilder[T]) Doc(doc string) *RecordBuilder[T] {
	b.doc = doc
	return b
}

// AddField appends a field to the record under construction.
// The field function projects a *T onto the field's storage;
// it is used to read the field during encode and to assign
// it during decode.
func AddField[T, F any](b *RecordBuilder[T], name string, c Codec[F], field func(*T) *F) *RecordBuilder[T] {
	b.fields = append(b.fields, builderField[T]{
		name:   name,
		schema: c.schema,
		enc: func(buf *Buffer, v *T) error {
			return c.enc(buf, *field(v))
		},
		dec: func(s *Source, v *T) error {
			fv, err := c.dec(s)
			if err != nil {
				return err
			}
			*field(v) = fv
			return nil
		},
	})
	return b
}

// AddOptional appends an optional field: the field codec
// is wrapped with OptionOf and the field records a null
// default, so readers added after old writers decode it
// as absent.
func AddOptional[T, F any](b *RecordBuilder[T], name string, c Codec[F], field func(*T) **F) *RecordBuilder[T] {
	oc := OptionOf(c)
	b.fields = append(b.fields, builderField[T]{
		name:   name,
		schema: oc.schema,
		def:    NullDefault(),
		enc: func(buf *Buffer, v *T) error {
			return oc.enc(buf, *field(v))
		},
		dec: func(s *Source, v *T) error {
			fv, err := oc.dec(s)
			if err != nil {
				return err
			}
			*field(v) = fv
			return nil
		},
	})
	return b
}

// Build validates the accumulated record and returns its
// codec. Encode writes fields in declaration order; decode
// fills a zero T field by field.
func (b *RecordBuilder[T]) Build() (Codec[T], error) {
	sch := &Schema{
		Type: RecordType,
		Name: b.name,
		Doc:  b.doc,
	}
	for i := range b.fields {
		sch.Fields = append(sch.Fields, Field{
			Name:    b.fields[i].name,
			Schema:  b.fields[i].schema,
			Default: b.fields[i].def,
		})
	}
	if err := sch.Validate(); err != nil {
		return Codec[T]{}, err
	}
	fields := b.fields
	return Codec[T]{
		schema: sch,
		enc: func(buf *Buffer, v T) error {
			for i := range fields {
				if err := fields[i].enc(buf, &v); err != nil {
					return err
				}
			}
			return nil
		},
		dec: func(s *Source) (T, error) {
			var v T
			for i := range fields {
				if err := fields[i].dec(s, &v); err != nil {
					return v, err
				}
			}
			return v, nil
		},
	}, nil
}
