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

import "fmt"

// ErasedCodec is a type-erased codec usable as a union
// branch. Obtain one with Erase; the dynamic type is
// checked again at encode time.
type ErasedCodec interface {
	Schema() *Schema

	encodeAny(*Buffer, any) error
	decodeAny(*Source) (any, error)
}

type erased[T any] struct {
	c Codec[T]
}

func (e erased[T]) Schema() *Schema { return e.c.schema }

func (e erased[T]) encodeAny(b *Buffer, v any) error {
	t, ok := v.(T)
	if !ok {
		return fmt.Errorf("avro: union value %T does not match branch schema %s",
			v, typeKey(e.c.schema))
	}
	return e.c.enc(b, t)
}

func (e erased[T]) decodeAny(s *Source) (any, error) {
	return e.c.dec(s)
}

// Erase wraps a typed codec for use as a union branch.
func Erase[T any](c Codec[T]) ErasedCodec {
	return erased[T]{c}
}

// Union is the value type of a UnionOf codec: the 0-based
// branch index and the branch's dynamically-typed value.
type Union struct {
	Branch int
	Value  any
}

// UnionOf returns the codec for an Avro union over the
// given branches. Branches must be distinct by type key
// and must not themselves be unions; the wire form is the
// branch index as a long followed by the branch value.
func UnionOf(branches ...ErasedCodec) (Codec[Union], error) {
	schemas := make([]*Schema, len(branches))
	seen := make(map[string]bool, len(branches))
	for i, br := range branches {
		sch := br.Schema()
		if sch.Deref().Type == UnionType {
			return Codec[Union]{}, invalidf("union directly contains a union")
		}
		k := typeKey(sch)
		if seen[k] {
			return Codec[Union]{}, invalidf("duplicate union branch %s", k)
		}
		seen[k] = true
		schemas[i] = sch
	}
	return Codec[Union]{
		schema: NewUnionSchema(schemas...),
		enc: func(b *Buffer, v Union) error {
			if v.Branch < 0 || v.Branch >= len(branches) {
				return fmt.Errorf("avro: union branch %d out of range [0,%d)",
					v.Branch, len(branches))
			}
			b.WriteLong(int64(v.Branch))
			return branches[v.Branch].encodeAny(b, v.Value)
		},
		dec: func(s *Source) (Union, error) {
			idx, err := s.ReadLong()
			if err != nil {
				return Union{}, err
			}
			if idx < 0 || idx >= int64(len(branches)) {
				return Union{}, fmt.Errorf("avro: union branch %d out of range [0,%d)",
					idx, len(branches))
			}
			v, err := branches[idx].decodeAny(s)
			if err != nil {
				return Union{}, err
			}
			return Union{Branch: int(idx), Value: v}, nil
		},
	}, nil
}

// OptionOf returns the codec for the two-branch union
// [null, T], mapping nil to the null branch. The null
// branch is index 0.
func OptionOf[T any](elem Codec[T]) Codec[*T] {
	return Codec[*T]{
		schema: NewUnionSchema(Primitive(NullType), elem.schema),
		enc: func(b *Buffer, v *T) error {
			if v == nil {
				b.WriteLong(0)
				return nil
			}
			b.WriteLong(1)
			return elem.enc(b, *v)
		},
		dec: func(s *Source) (*T, error) {
			idx, err := s.ReadLong()
			if err != nil {
				return nil, err
			}
			switch idx {
			case 0:
				return nil, nil
			case 1:
				v, err := elem.dec(s)
				if err != nil {
					return nil, err
				}
				return &v, nil
			default:
				return nil, fmt.Errorf("avro: option branch %d out of range [0,2)", idx)
			}
		},
	}
}
