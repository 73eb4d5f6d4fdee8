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
	"slices"
)

// Codec bundles an Avro schema with an encoder and a
// decoder for the Go type T. Codecs are immutable and
// safe for concurrent use; they are composed with the
// ArrayOf, MapOf, OptionOf, UnionOf, record-builder and
// Recursive combinators.
type Codec[T any] struct {
	schema *Schema
	enc    func(*Buffer, T) error
	dec    func(*Source) (T, error)
}

// Schema returns the Avro schema bundled with the codec.
func (c Codec[T]) Schema() *Schema { return c.schema }

// Encode appends the binary encoding of v to b.
func (c Codec[T]) Encode(b *Buffer, v T) error { return c.enc(b, v) }

// Decode reads one value from s.
func (c Codec[T]) Decode(s *Source) (T, error) { return c.dec(s) }

// Marshal encodes v into a fresh byte slice.
func (c Codec[T]) Marshal(v T) ([]byte, error) {
	var b Buffer
	if err := c.enc(&b, v); err != nil {
		return nil, err
	}
	return b.Bytes(), nil
}

// Unmarshal decodes a single value from p and requires
// that p holds exactly one value.
func (c Codec[T]) Unmarshal(p []byte) (T, error) {
	src := NewSource(p)
	v, err := c.dec(src)
	if err != nil {
		return v, err
	}
	if src.Remaining() != 0 {
		return v, fmt.Errorf("avro: %d trailing bytes after value", src.Remaining())
	}
	return v, nil
}

// Null returns the codec for the Avro null type.
// The encoding of struct{}{} is zero bytes.
func Null() Codec[struct{}] {
	return Codec[struct{}]{
		schema: Primitive(NullType),
		enc:    func(b *Buffer, _ struct{}) error { return nil },
		dec:    func(s *Source) (struct{}, error) { return struct{}{}, s.ReadNull() },
	}
}

// Bool returns the codec for the Avro boolean type.
func Bool() Codec[bool] {
	return Codec[bool]{
		schema: Primitive(BoolType),
		enc:    func(b *Buffer, v bool) error { b.WriteBool(v); return nil },
		dec:    func(s *Source) (bool, error) { return s.ReadBool() },
	}
}

// Int returns the codec for the Avro int type.
func Int() Codec[int32] {
	return Codec[int32]{
		schema: Primitive(IntType),
		enc:    func(b *Buffer, v int32) error { b.WriteInt(v); return nil },
		dec:    func(s *Source) (int32, error) { return s.ReadInt() },
	}
}

// Long returns the codec for the Avro long type.
func Long() Codec[int64] {
	return Codec[int64]{
		schema: Primitive(LongType),
		enc:    func(b *Buffer, v int64) error { b.WriteLong(v); return nil },
		dec:    func(s *Source) (int64, error) { return s.ReadLong() },
	}
}

// Float returns the codec for the Avro float type.
func Float() Codec[float32] {
	return Codec[float32]{
		schema: Primitive(FloatType),
		enc:    func(b *Buffer, v float32) error { b.WriteFloat(v); return nil },
		dec:    func(s *Source) (float32, error) { return s.ReadFloat() },
	}
}

// Double returns the codec for the Avro double type.
func Double() Codec[float64] {
	return Codec[float64]{
		schema: Primitive(DoubleType),
		enc:    func(b *Buffer, v float64) error { b.WriteDouble(v); return nil },
		dec:    func(s *Source) (float64, error) { return s.ReadDouble() },
	}
}

// Bytes returns the codec for the Avro bytes type.
func Bytes() Codec[[]byte] {
	return Codec[[]byte]{
		schema: Primitive(BytesType),
		enc:    func(b *Buffer, v []byte) error { b.WriteBytes(v); return nil },
		dec: func(s *Source) ([]byte, error) {
			p, err := s.ReadBytes()
			if err != nil {
				return nil, err
			}
			return slices.Clone(p), nil
		},
	}
}

// String returns the codec for the Avro string type.
func String() Codec[string] {
	return Codec[string]{
		schema: Primitive(StringType),
		enc:    func(b *Buffer, v string) error { b.WriteString(v); return nil },
		dec:    func(s *Source) (string, error) { return s.ReadString() },
	}
}

// FixedCodec returns the codec for a named fixed type of
// the given size. Encoding a slice whose length differs
// from size is an error.
func FixedCodec(name string, size int) Codec[[]byte] {
	sch := NewFixedSchema(name, size)
	return Codec[[]byte]{
		schema: sch,
		enc: func(b *Buffer, v []byte) error {
			if len(v) != size {
				return fmt.Errorf("avro: fixed %s: value has %d bytes, want %d",
					sch.Name, len(v), size)
			}
			b.WriteFixed(v)
			return nil
		},
		dec: func(s *Source) ([]byte, error) {
			p, err := s.ReadFixed(size)
			if err != nil {
				return nil, err
			}
			return slices.Clone(p), nil
		},
	}
}

// decodeBlocks drives the shared array/map block loop:
// it reads repeated (count, items...) blocks until a
// zero count, handling the negative-count form where a
// byte-size hint follows the count.
func decodeBlocks(s *Source, item func() error) error {
	for {
		n, err := s.ReadLong()
		if err != nil {
			return err
		}
		if n == 0 {
			return nil
		}
		if n < 0 {
			n = -n
			// the block's byte size; only a hint
			if _, err := s.ReadLong(); err != nil {
				return err
			}
		}
		for ; n > 0; n-- {
			if err := item(); err != nil {
				return err
			}
		}
	}
}

// ArrayOf returns the codec for an Avro array with the
// given element codec. Non-empty sequences encode as a
// single counted block followed by the zero terminator.
func ArrayOf[T any](elem Codec[T]) Codec[[]T] {
	return Codec[[]T]{
		schema: NewArraySchema(elem.schema),
		enc: func(b *Buffer, vs []T) error {
			if len(vs) > 0 {
				b.WriteLong(int64(len(vs)))
				for i := range vs {
					if err := elem.enc(b, vs[i]); err != nil {
						return err
					}
				}
			}
			b.WriteLong(0)
			return nil
		},
		dec: func(s *Source) ([]T, error) {
			var out []T
			err := decodeBlocks(s, func() error {
				v, err := elem.dec(s)
				if err != nil {
					return err
				}
				out = append(out, v)
				return nil
			})
			return out, err
		},
	}
}

// MapOf returns the codec for an Avro map with the given
// value codec. Keys are encoded in sorted order so that
// encoding is deterministic.
func MapOf[T any](elem Codec[T]) Codec[map[string]T] {
	return Codec[map[string]T]{
		schema: NewMapSchema(elem.schema),
		enc: func(b *Buffer, m map[string]T) error {
			if len(m) > 0 {
				b.WriteLong(int64(len(m)))
				keys := make([]string, 0, len(m))
				for k := range m {
					keys = append(keys, k)
				}
				slices.Sort(keys)
				for _, k := range keys {
					b.WriteString(k)
					if err := elem.enc(b, m[k]); err != nil {
						return err
					}
				}
			}
			b.WriteLong(0)
			return nil
		},
		dec: func(s *Source) (map[string]T, error) {
			out := make(map[string]T)
			err := decodeBlocks(s, func() error {
				k, err := s.ReadString()
				if err != nil {
					return err
				}
				v, err := elem.dec(s)
				if err != nil {
					return err
				}
				out[k] = v
				return nil
			})
			return out, err
		},
	}
}
