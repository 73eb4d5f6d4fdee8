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

// Recursive ties the knot for self-referential codecs.
// The callback receives a placeholder codec whose schema
// is a named reference; the encoder, decoder and schema
// cells behind the placeholder are backpatched with the
// callback's result before Recursive returns, so the
// placeholder may be captured inside the body any number
// of levels deep.
//
// The body must produce a named schema (normally a record)
// so the reference has a name to resolve to; the canonical
// form emits that name in place of re-inlining the
// definition.
//
//	type node struct {
//		Value int64
//		Next  *node
//	}
//	codec := Recursive(func(self Codec[node]) Codec[node] {
//		b := NewRecordCodec[node]("Node")
//		AddField(b, "value", Long(), func(n *node) *int64 { return &n.Value })
//		AddOptional(b, "next", self, func(n *node) **node { return &n.Next })
//		c, _ := b.Build()
//		return c
//	})
func Recursive[T any](f func(self Codec[T]) Codec[T]) Codec[T] {
	type cells struct {
		enc func(*Buffer, T) error
		dec func(*Source) (T, error)
	}
	c := new(cells)
	ref := &Schema{Type: RefType}
	self := Codec[T]{
		schema: ref,
		enc: func(b *Buffer, v T) error {
			if c.enc == nil {
				return fmt.Errorf("avro: recursive codec used before construction finished")
			}
			return c.enc(b, v)
		},
		dec: func(s *Source) (T, error) {
			if c.dec == nil {
				var zero T
				return zero, fmt.Errorf("avro: recursive codec used before construction finished")
			}
			return c.dec(s)
		},
	}
	built := f(self)
	c.enc = built.enc
	c.dec = built.dec
	ref.ref = built.schema
	ref.Name = built.schema.Name
	return built
}
