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
	"strconv"
)

// CanonicalJSON produces the Parsing Canonical Form of s:
// docs, defaults, aliases and logical tags are stripped,
// named types appear under their fullname, object keys are
// emitted in the fixed order (name, type, fields, symbols,
// items, values, size), and the second occurrence of a named
// type within the traversal is emitted as a name reference.
func CanonicalJSON(s *Schema) string {
	return string(appendCanonical(nil, s, map[string]bool{}))
}

func appendCanonical(dst []byte, s *Schema, seen map[string]bool) []byte {
	s = s.Deref()
	switch s.Type {
	case NullType, BoolType, IntType, LongType, FloatType,
		DoubleType, BytesType, StringType:
		return appendQuoted(dst, s.Type.String())
	case ArrayType:
		dst = append(dst, `{"type":"array","items":`...)
		dst = appendCanonical(dst, s.Elem, seen)
		return append(dst, '}')
	case MapType:
		dst = append(dst, `{"type":"map","values":`...)
		dst = appendCanonical(dst, s.Elem, seen)
		return append(dst, '}')
	case UnionType:
		dst = append(dst, '[')
		for i, br := range s.Branches {
			if i > 0 {
				dst = append(dst, ',')
			}
			dst = appendCanonical(dst, br, seen)
		}
		return append(dst, ']')
	case RecordType:
		full := s.Name.Full()
		if seen[full] {
			return appendQuoted(dst, full)
		}
		seen[full] = true
		dst = append(dst, `{"name":`...)
		dst = appendQuoted(dst, full)
		dst = append(dst, `,"type":"record","fields":[`...)
		for i := range s.Fields {
			if i > 0 {
				dst = append(dst, ',')
			}
			dst = append(dst, `{"name":`...)
			dst = appendQuoted(dst, s.Fields[i].Name)
			dst = append(dst, `,"type":`...)
			dst = appendCanonical(dst, s.Fields[i].Schema, seen)
			dst = append(dst, '}')
		}
		return append(dst, ']', '}')
	case EnumType:
		full := s.Name.Full()
		if seen[full] {
			return appendQuoted(dst, full)
		}
		seen[full] = true
		dst = append(dst, `{"name":`...)
		dst = appendQuoted(dst, full)
		dst = append(dst, `,"type":"enum","symbols":[`...)
		for i, sym := range s.Symbols {
			if i > 0 {
				dst = append(dst, ',')
			}
			dst = appendQuoted(dst, sym)
		}
		return append(dst, ']', '}')
	case FixedType:
		full := s.Name.Full()
		if seen[full] {
			return appendQuoted(dst, full)
		}
		seen[full] = true
		dst = append(dst, `{"name":`...)
		dst = appendQuoted(dst, full)
		dst = append(dst, `,"type":"fixed","size":`...)
		dst = strconv.AppendInt(dst, int64(s.Size), 10)
		return append(dst, '}')
	default:
		// unresolved RefType: emit the name so the output
		// is at least well-formed; Validate accepts these,
		// the resolver and decoder reject them
		return appendQuoted(dst, s.Name.Full())
	}
}

// appendQuoted appends s as a JSON string. Avro names,
// symbols and type tags never need escaping, but arbitrary
// strings (docs, defaults) pass through escapeJSON.
func appendQuoted(dst []byte, s string) []byte {
	for i := 0; i < len(s); i++ {
		if s[i] < 0x20 || s[i] == '"' || s[i] == '\\' || s[i] >= 0x80 {
			return escapeJSON(dst, s)
		}
	}
	dst = append(dst, '"')
	dst = append(dst, s...)
	return append(dst, '"')
}

func escapeJSON(dst []byte, s string) []byte {
	dst = append(dst, '"')
	for _, r := range s {
		switch r {
		case '"':
			dst = append(dst, '\\', '"')
		case '\\':
			dst = append(dst, '\\', '\\')
		case '\n':
			dst = append(dst, '\\', 'n')
		case '\r':
			dst = append(dst, '\\', 'r')
		case '\t':
			dst = append(dst, '\\', 't')
		default:
			if r < 0x20 {
				dst = append(dst, '\\', 'u', '0', '0',
					hexdigit(byte(r>>4)), hexdigit(byte(r&0xf)))
			} else {
				dst = append(dst, string(r)...)
			}
		}
	}
	return append(dst, '"')
}

func hexdigit(b byte) byte {
	if b < 10 {
		return '0' + b
	}
	return 'a' + b - 10
}
