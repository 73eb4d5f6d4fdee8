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
	"math"
	"strconv"
)

// JSON returns the full JSON form of the schema: docs,
// defaults, aliases and logical tags are preserved and
// object keys appear in a fixed order, so output is
// deterministic. Named types are emitted as a reference
// after their first occurrence.
//
// This is the form embedded in object container file
// headers; CanonicalJSON is the form used for
// fingerprinting.
func (s *Schema) JSON() string {
	return string(appendFull(nil, s, map[string]bool{}))
}

func (s *Schema) String() string { return s.JSON() }

// MarshalJSON implements json.Marshaler using the full form.
func (s *Schema) MarshalJSON() ([]byte, error) {
	return appendFull(nil, s, map[string]bool{}), nil
}

func appendFull(dst []byte, s *Schema, seen map[string]bool) []byte {
	s = s.Deref()
	switch s.Type {
	case NullType, BoolType, FloatType, DoubleType:
		return appendQuoted(dst, s.Type.String())
	case IntType, LongType, BytesType, StringType:
		if s.Logical == "" {
			return appendQuoted(dst, s.Type.String())
		}
		dst = append(dst, `{"type":`...)
		dst = appendQuoted(dst, s.Type.String())
		dst = append(dst, `,"logicalType":`...)
		dst = appendQuoted(dst, s.Logical)
		return append(dst, '}')
	case ArrayType:
		dst = append(dst, `{"type":"array","items":`...)
		dst = appendFull(dst, s.Elem, seen)
		return append(dst, '}')
	case MapType:
		dst = append(dst, `{"type":"map","values":`...)
		dst = appendFull(dst, s.Elem, seen)
		return append(dst, '}')
	case UnionType:
		dst = append(dst, '[')
		for i, br := range s.Branches {
			if i > 0 {
				dst = append(dst, ',')
			}
			dst = appendFull(dst, br, seen)
		}
		return append(dst, ']')
	case RecordType:
		full := s.Name.Full()
		if seen[full] {
			return appendQuoted(dst, full)
		}
		seen[full] = true
		dst = append(dst, `{"type":"record"`...)
		dst = appendNamePrefix(dst, s)
		dst = append(dst, `,"fields":[`...)
		for i := range s.Fields {
			if i > 0 {
				dst = append(dst, ',')
			}
			dst = appendFieldJSON(dst, &s.Fields[i], seen)
		}
		return append(dst, ']', '}')
	case EnumType:
		full := s.Name.Full()
		if seen[full] {
			return appendQuoted(dst, full)
		}
		seen[full] = true
		dst = append(dst, `{"type":"enum"`...)
		dst = appendNamePrefix(dst, s)
		dst = append(dst, `,"symbols":[`...)
		for i, sym := range s.Symbols {
			if i > 0 {
				dst = append(dst, ',')
			}
			dst = appendQuoted(dst, sym)
		}
		dst = append(dst, ']')
		if s.DefaultSymbol != "" {
			dst = append(dst, `,"default":`...)
			dst = appendQuoted(dst, s.DefaultSymbol)
		}
		return append(dst, '}')
	case FixedType:
		full := s.Name.Full()
		if seen[full] {
			return appendQuoted(dst, full)
		}
		seen[full] = true
		dst = append(dst, `{"type":"fixed"`...)
		dst = appendNamePrefix(dst, s)
		dst = append(dst, `,"size":`...)
		dst = strconv.AppendInt(dst, int64(s.Size), 10)
		if s.Logical != "" {
			dst = append(dst, `,"logicalType":`...)
			dst = appendQuoted(dst, s.Logical)
		}
		return append(dst, '}')
	default:
		return appendQuoted(dst, s.Name.Full())
	}
}

// appendNamePrefix emits the shared name/namespace/doc/aliases
// attributes of a named type, in that order.
func appendNamePrefix(dst []byte, s *Schema) []byte {
	dst = append(dst, `,"name":`...)
	dst = appendQuoted(dst, s.Name.Base)
	if s.Name.Namespace != "" {
		dst = append(dst, `,"namespace":`...)
		dst = appendQuoted(dst, s.Name.Namespace)
	}
	if s.Doc != "" {
		dst = append(dst, `,"doc":`...)
		dst = appendQuoted(dst, s.Doc)
	}
	if len(s.Aliases) > 0 {
		dst = append(dst, `,"aliases":[`...)
		for i, a := range s.Aliases {
			if i > 0 {
				dst = append(dst, ',')
			}
			dst = appendQuoted(dst, a)
		}
		dst = append(dst, ']')
	}
	return dst
}

func appendFieldJSON(dst []byte, f *Field, seen map[string]bool) []byte {
	dst = append(dst, `{"name":`...)
	dst = appendQuoted(dst, f.Name)
	dst = append(dst, `,"type":`...)
	dst = appendFull(dst, f.Schema, seen)
	if f.Doc != "" {
		dst = append(dst, `,"doc":`...)
		dst = appendQuoted(dst, f.Doc)
	}
	if f.Default != nil {
		dst = append(dst, `,"default":`...)
		dst = appendDefaultJSON(dst, f.Default)
	}
	if len(f.Aliases) > 0 {
		dst = append(dst, `,"aliases":[`...)
		for i, a := range f.Aliases {
			if i > 0 {
				dst = append(dst, ',')
			}
			dst = appendQuoted(dst, a)
		}
		dst = append(dst, ']')
	}
	return append(dst, '}')
}

func appendDefaultJSON(dst []byte, d *Default) []byte {
	switch d.Type {
	case NullType:
		return append(dst, "null"...)
	case BoolType:
		return strconv.AppendBool(dst, d.Bool)
	case IntType, LongType:
		return strconv.AppendInt(dst, d.Long, 10)
	case FloatType, DoubleType:
		if math.IsInf(d.Double, 0) || math.IsNaN(d.Double) {
			// not representable in JSON; the parser
			// never produces these
			return append(dst, "0"...)
		}
		return strconv.AppendFloat(dst, d.Double, 'g', -1, 64)
	case BytesType:
		return appendByteString(dst, d.Bytes)
	case StringType, EnumType:
		return appendQuoted(dst, d.Str)
	case ArrayType:
		dst = append(dst, '[')
		for i := range d.Items {
			if i > 0 {
				dst = append(dst, ',')
			}
			dst = appendDefaultJSON(dst, &d.Items[i])
		}
		return append(dst, ']')
	case MapType:
		dst = append(dst, '{')
		for i := range d.Pairs {
			if i > 0 {
				dst = append(dst, ',')
			}
			dst = appendQuoted(dst, d.Pairs[i].Key)
			dst = append(dst, ':')
			dst = appendDefaultJSON(dst, &d.Pairs[i].Value)
		}
		return append(dst, '}')
	case UnionType:
		// union defaults encode the first-branch value bare
		return appendDefaultJSON(dst, d.Value)
	}
	return append(dst, "null"...)
}

// appendByteString emits a bytes default in its JSON string
// form, one code point per byte.
func appendByteString(dst []byte, p []byte) []byte {
	dst = append(dst, '"')
	for _, b := range p {
		switch {
		case b == '"' || b == '\\':
			dst = append(dst, '\\', b)
		case b >= 0x20 && b < 0x7f:
			dst = append(dst, b)
		default:
			dst = append(dst, '\\', 'u', '0', '0',
				hexdigit(b>>4), hexdigit(b&0xf))
		}
	}
	return append(dst, '"')
}
