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

// Decode interprets the read plan against a binary stream
// of writer-encoded data and produces the corresponding
// generic Value shaped by the reader schema.
func (p *Plan) Decode(src *Source) (Value, error) {
	switch p.op {
	case opNull:
		return NullValue{}, src.ReadNull()
	case opBool:
		v, err := src.ReadBool()
		return BoolValue(v), err
	case opInt:
		v, err := src.ReadInt()
		return IntValue(v), err
	case opIntAsLong, opLong:
		v, err := src.ReadLong()
		return LongValue(v), err
	case opIntAsFloat, opLongAsFloat:
		v, err := src.ReadLong()
		return FloatValue(float32(v)), err
	case opIntAsDouble, opLongAsDouble:
		v, err := src.ReadLong()
		return DoubleValue(float64(v)), err
	case opFloat:
		v, err := src.ReadFloat()
		return FloatValue(v), err
	case opFloatAsDouble:
		v, err := src.ReadFloat()
		return DoubleValue(float64(v)), err
	case opDouble:
		v, err := src.ReadDouble()
		return DoubleValue(v), err
	case opBytes:
		v, err := src.ReadBytes()
		if err != nil {
			return nil, err
		}
		return BytesValue(slices.Clone(v)), nil
	case opString:
		v, err := src.ReadString()
		return StringValue(v), err
	case opFixed:
		v, err := src.ReadFixed(p.size)
		if err != nil {
			return nil, err
		}
		return FixedValue(slices.Clone(v)), nil
	case opArray:
		var out ArrayValue
		err := decodeBlocks(src, func() error {
			v, err := p.elem.Decode(src)
			if err != nil {
				return err
			}
			out = append(out, v)
			return nil
		})
		if err != nil {
			return nil, err
		}
		return out, nil
	case opMap:
		var out MapValue
		err := decodeBlocks(src, func() error {
			k, err := src.ReadString()
			if err != nil {
				return err
			}
			v, err := p.elem.Decode(src)
			if err != nil {
				return err
			}
			out = append(out, MapEntry{Key: k, Value: v})
			return nil
		})
		if err != nil {
			return nil, err
		}
		return out, nil
	case opRecord:
		fields := make([]FieldValue, p.nreader)
		for i := range p.fields {
			f := &p.fields[i]
			v, err := f.plan.Decode(src)
			if err != nil {
				return nil, err
			}
			if f.pos >= 0 {
				fields[f.pos] = FieldValue{Name: f.name, Value: v}
			}
		}
		for i := range p.defaults {
			d := &p.defaults[i]
			fields[d.pos] = FieldValue{Name: d.name, Value: d.value}
		}
		return &RecordValue{Name: p.name, Fields: fields}, nil
	case opEnum:
		idx, err := src.ReadLong()
		if err != nil {
			return nil, err
		}
		if idx < 0 || idx >= int64(len(p.symmap)) {
			return nil, fmt.Errorf("avro: enum %s: writer index %d out of range", p.name, idx)
		}
		ri := p.symmap[idx]
		return EnumValue{Index: ri, Symbol: p.symbols[ri]}, nil
	case opUnion:
		idx, err := src.ReadLong()
		if err != nil {
			return nil, err
		}
		if idx < 0 || idx >= int64(len(p.branches)) {
			return nil, fmt.Errorf("avro: union branch %d out of range [0,%d)", idx, len(p.branches))
		}
		br := &p.branches[idx]
		v, err := br.plan.Decode(src)
		if err != nil {
			return nil, err
		}
		if br.reader < 0 {
			// union writer, non-union reader: unwrap
			return v, nil
		}
		return &UnionValue{Branch: br.reader, Value: v}, nil
	case opAsUnion:
		v, err := p.elem.Decode(src)
		if err != nil {
			return nil, err
		}
		return &UnionValue{Branch: p.branch, Value: v}, nil
	case opRef:
		if p.ref == nil {
			return nil, fmt.Errorf("avro: internal error: unresolved plan reference")
		}
		return p.ref.Decode(src)
	}
	return nil, fmt.Errorf("avro: internal error: unknown plan op %d", p.op)
}

// DecodeWithSchemas resolves the (reader, writer) pair and
// decodes one writer-encoded value from data. Plans are
// memoized per schema pair, so repeated calls only pay for
// resolution once.
func DecodeWithSchemas(reader, writer *Schema, data []byte) (Value, error) {
	p, err := resolveCached(reader, writer)
	if err != nil {
		return nil, err
	}
	return p.Decode(NewSource(data))
}
