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
	"bytes"
	"fmt"
	"slices"
	"strings"

	json "github.com/goccy/go-json"
)

// ParseError is returned when schema JSON cannot be
// interpreted. Path locates the offending node, e.g.
// "$.fields[2].type".
type ParseError struct {
	Path string
	Msg  string
}

func (e *ParseError) Error() string {
	if e.Path == "" {
		return "avro: schema parse error: " + e.Msg
	}
	return "avro: schema parse error at " + e.Path + ": " + e.Msg
}

func parseErrf(path, format string, args ...any) error {
	return &ParseError{Path: path, Msg: fmt.Sprintf(format, args...)}
}

// Parse parses a schema from its JSON text and validates it.
func Parse(s string) (*Schema, error) {
	return ParseBytes([]byte(s))
}

// ParseBytes parses a schema from JSON text and validates it.
func ParseBytes(p []byte) (*Schema, error) {
	dec := json.NewDecoder(bytes.NewReader(p))
	dec.UseNumber()
	var tree any
	if err := dec.Decode(&tree); err != nil {
		return nil, &ParseError{Msg: err.Error()}
	}
	return ParseValue(tree)
}

// ParseValue parses a schema from a pre-parsed JSON tree
// (the result of unmarshalling into any) and validates it.
func ParseValue(tree any) (*Schema, error) {
	sp := &schemaParser{names: map[string]*Schema{}}
	s, err := sp.parse(tree, "", "$")
	if err != nil {
		return nil, err
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

type schemaParser struct {
	// names collects named types defined so far in this
	// document so later occurrences resolve by reference.
	names map[string]*Schema
}

var primitivesByName = map[string]Type{
	"null":    NullType,
	"boolean": BoolType,
	"int":     IntType,
	"long":    LongType,
	"float":   FloatType,
	"double":  DoubleType,
	"bytes":   BytesType,
	"string":  StringType,
}

func (sp *schemaParser) parse(v any, ns, path string) (*Schema, error) {
	switch t := v.(type) {
	case string:
		return sp.parseName(t, ns, path)
	case []any:
		branches := make([]*Schema, len(t))
		for i, b := range t {
			br, err := sp.parse(b, ns, fmt.Sprintf("%s[%d]", path, i))
			if err != nil {
				return nil, err
			}
			branches[i] = br
		}
		return NewUnionSchema(branches...), nil
	case map[string]any:
		return sp.parseObject(t, ns, path)
	default:
		return nil, parseErrf(path, "expected string, array or object, found %T", v)
	}
}

// parseName resolves a bare string: a primitive type tag,
// or a reference to a named type defined earlier in the
// document. Unqualified references are tried against the
// enclosing namespace first.
func (sp *schemaParser) parseName(s, ns, path string) (*Schema, error) {
	if t, ok := primitivesByName[s]; ok {
		return Primitive(t), nil
	}
	full := s
	if !strings.Contains(s, ".") && ns != "" {
		q := Name{Base: s, Namespace: ns}.Full()
		if def, ok := sp.names[q]; ok {
			return &Schema{Type: RefType, Name: def.Name, ref: def}, nil
		}
	}
	if def, ok := sp.names[full]; ok {
		return &Schema{Type: RefType, Name: def.Name, ref: def}, nil
	}
	return nil, parseErrf(path, "unknown type %q", s)
}

func (sp *schemaParser) parseObject(obj map[string]any, ns, path string) (*Schema, error) {
	tv, ok := obj["type"]
	if !ok {
		return nil, parseErrf(path, "object has no \"type\"")
	}
	// the type may itself be a nested schema,
	// e.g. {"type": {"type": "array", ...}}
	ts, ok := tv.(string)
	if !ok {
		return sp.parse(tv, ns, path+".type")
	}
	switch ts {
	case "array":
		items, ok := obj["items"]
		if !ok {
			return nil, parseErrf(path, "array has no \"items\"")
		}
		elem, err := sp.parse(items, ns, path+".items")
		if err != nil {
			return nil, err
		}
		return NewArraySchema(elem), nil
	case "map":
		values, ok := obj["values"]
		if !ok {
			return nil, parseErrf(path, "map has no \"values\"")
		}
		elem, err := sp.parse(values, ns, path+".values")
		if err != nil {
			return nil, err
		}
		return NewMapSchema(elem), nil
	case "record", "error":
		return sp.parseRecord(obj, ns, path)
	case "enum":
		return sp.parseEnum(obj, ns, path)
	case "fixed":
		return sp.parseFixed(obj, ns, path)
	default:
		if t, ok := primitivesByName[ts]; ok {
			s := Primitive(t)
			if tag, ok := stringAttr(obj, "logicalType"); ok {
				s = s.WithLogical(tag)
			}
			return s, nil
		}
		return sp.parseName(ts, ns, path+".type")
	}
}

// parseTypeName extracts the name/namespace pair of a named
// type declaration and the namespace its nested types inherit.
func parseTypeName(obj map[string]any, ns, path string) (Name, string, error) {
	raw, ok := stringAttr(obj, "name")
	if !ok {
		return Name{}, "", parseErrf(path, "named type has no \"name\"")
	}
	if strings.Contains(raw, ".") {
		n := ParseName(raw)
		return n, n.Namespace, nil
	}
	if explicit, ok := stringAttr(obj, "namespace"); ok {
		ns = explicit
	}
	return Name{Base: raw, Namespace: ns}, ns, nil
}

func (sp *schemaParser) parseRecord(obj map[string]any, ns, path string) (*Schema, error) {
	name, ns, err := parseTypeName(obj, ns, path)
	if err != nil {
		return nil, err
	}
	s := &Schema{Type: RecordType, Name: name}
	s.Doc, _ = stringAttr(obj, "doc")
	s.Aliases = stringListAttr(obj, "aliases")
	// register before the fields are parsed so that
	// recursive references resolve
	sp.names[name.Full()] = s

	rawFields, ok := obj["fields"].([]any)
	if !ok {
		return nil, parseErrf(path, "record %s has no \"fields\"", name)
	}
	for i, rf := range rawFields {
		fpath := fmt.Sprintf("%s.fields[%d]", path, i)
		fobj, ok := rf.(map[string]any)
		if !ok {
			return nil, parseErrf(fpath, "expected object, found %T", rf)
		}
		fname, ok := stringAttr(fobj, "name")
		if !ok {
			return nil, parseErrf(fpath, "field has no \"name\"")
		}
		ftype, ok := fobj["type"]
		if !ok {
			return nil, parseErrf(fpath, "field %q has no \"type\"", fname)
		}
		fs, err := sp.parse(ftype, ns, fpath+".type")
		if err != nil {
			return nil, err
		}
		field := Field{Name: fname, Schema: fs}
		field.Doc, _ = stringAttr(fobj, "doc")
		field.Aliases = stringListAttr(fobj, "aliases")
		if dv, ok := fobj["default"]; ok {
			d, err := parseDefault(fs, dv, fpath+".default")
			if err != nil {
				return nil, err
			}
			field.Default = d
		}
		s.Fields = append(s.Fields, field)
	}
	return s, nil
}

func (sp *schemaParser) parseEnum(obj map[string]any, ns, path string) (*Schema, error) {
	name, _, err := parseTypeName(obj, ns, path)
	if err != nil {
		return nil, err
	}
	s := &Schema{Type: EnumType, Name: name}
	s.Doc, _ = stringAttr(obj, "doc")
	s.Aliases = stringListAttr(obj, "aliases")
	s.DefaultSymbol, _ = stringAttr(obj, "default")
	raw, ok := obj["symbols"].([]any)
	if !ok {
		return nil, parseErrf(path, "enum %s has no \"symbols\"", name)
	}
	for i, rs := range raw {
		sym, ok := rs.(string)
		if !ok {
			return nil, parseErrf(fmt.Sprintf("%s.symbols[%d]", path, i),
				"expected string, found %T", rs)
		}
		s.Symbols = append(s.Symbols, sym)
	}
	sp.names[name.Full()] = s
	return s, nil
}

func (sp *schemaParser) parseFixed(obj map[string]any, ns, path string) (*Schema, error) {
	name, _, err := parseTypeName(obj, ns, path)
	if err != nil {
		return nil, err
	}
	num, ok := obj["size"].(json.Number)
	if !ok {
		return nil, parseErrf(path, "fixed %s has no \"size\"", name)
	}
	size, err := num.Int64()
	if err != nil {
		return nil, parseErrf(path+".size", "%v", err)
	}
	s := &Schema{Type: FixedType, Name: name, Size: int(size)}
	s.Doc, _ = stringAttr(obj, "doc")
	s.Aliases = stringListAttr(obj, "aliases")
	if tag, ok := stringAttr(obj, "logicalType"); ok {
		s.Logical = tag
	}
	sp.names[name.Full()] = s
	return s, nil
}

func stringAttr(obj map[string]any, key string) (string, bool) {
	s, ok := obj[key].(string)
	return s, ok
}

func stringListAttr(obj map[string]any, key string) []string {
	raw, ok := obj[key].([]any)
	if !ok {
		return nil
	}
	var out []string
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// parseDefault interprets a JSON default literal against the
// field's schema. A default for a union field is matched
// against the first branch, per the Avro rules.
func parseDefault(s *Schema, v any, path string) (*Default, error) {
	s = s.Deref()
	if s.Type == UnionType {
		d, err := parseDefault(s.Branches[0], v, path)
		if err != nil {
			return nil, err
		}
		return &Default{Type: UnionType, Branch: 0, Value: d}, nil
	}
	switch s.Type {
	case NullType:
		if v != nil {
			return nil, parseErrf(path, "null field default must be null")
		}
		return &Default{Type: NullType}, nil
	case BoolType:
		b, ok := v.(bool)
		if !ok {
			return nil, parseErrf(path, "expected boolean default, found %T", v)
		}
		return &Default{Type: BoolType, Bool: b}, nil
	case IntType, LongType:
		num, ok := v.(json.Number)
		if !ok {
			return nil, parseErrf(path, "expected integer default, found %T", v)
		}
		i, err := num.Int64()
		if err != nil {
			return nil, parseErrf(path, "%v", err)
		}
		return &Default{Type: s.Type, Long: i}, nil
	case FloatType, DoubleType:
		num, ok := v.(json.Number)
		if !ok {
			return nil, parseErrf(path, "expected numeric default, found %T", v)
		}
		f, err := num.Float64()
		if err != nil {
			return nil, parseErrf(path, "%v", err)
		}
		return &Default{Type: s.Type, Double: f}, nil
	case BytesType, FixedType:
		str, ok := v.(string)
		if !ok {
			return nil, parseErrf(path, "expected string default, found %T", v)
		}
		p, err := byteString(str)
		if err != nil {
			return nil, parseErrf(path, "%v", err)
		}
		return &Default{Type: BytesType, Bytes: p}, nil
	case StringType:
		str, ok := v.(string)
		if !ok {
			return nil, parseErrf(path, "expected string default, found %T", v)
		}
		return &Default{Type: StringType, Str: str}, nil
	case EnumType:
		str, ok := v.(string)
		if !ok {
			return nil, parseErrf(path, "expected symbol default, found %T", v)
		}
		return &Default{Type: EnumType, Str: str}, nil
	case ArrayType:
		raw, ok := v.([]any)
		if !ok {
			return nil, parseErrf(path, "expected array default, found %T", v)
		}
		d := &Default{Type: ArrayType}
		for i, item := range raw {
			id, err := parseDefault(s.Elem, item, fmt.Sprintf("%s[%d]", path, i))
			if err != nil {
				return nil, err
			}
			d.Items = append(d.Items, *id)
		}
		return d, nil
	case MapType, RecordType:
		raw, ok := v.(map[string]any)
		if !ok {
			return nil, parseErrf(path, "expected object default, found %T", v)
		}
		d := &Default{Type: MapType}
		keys := make([]string, 0, len(raw))
		for key := range raw {
			keys = append(keys, key)
		}
		slices.Sort(keys)
		for _, key := range keys {
			item := raw[key]
			es := s.Elem
			if s.Type == RecordType {
				i := findField(s, key)
				if i < 0 {
					return nil, parseErrf(path, "record %s has no field %q", s.Name, key)
				}
				es = s.Fields[i].Schema
			}
			id, err := parseDefault(es, item, path+"."+key)
			if err != nil {
				return nil, err
			}
			d.Pairs = append(d.Pairs, DefaultPair{Key: key, Value: *id})
		}
		return d, nil
	default:
		return nil, parseErrf(path, "cannot default a %s field", s.Type)
	}
}

func findField(s *Schema, name string) int {
	for i := range s.Fields {
		if s.Fields[i].Name == name {
			return i
		}
	}
	return -1
}

// byteString converts the JSON string form of a bytes or
// fixed default, where each code point 0-255 denotes one
// byte.
func byteString(s string) ([]byte, error) {
	out := make([]byte, 0, len(s))
	for _, r := range s {
		if r > 0xff {
			return nil, fmt.Errorf("code point %q out of byte range", r)
		}
		out = append(out, byte(r))
	}
	return out, nil
}
