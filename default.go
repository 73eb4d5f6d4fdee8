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

// Default is a schema-level default literal attached to a
// record field. It is a closed sum; Type selects the variant
// and only the matching members are populated. Fixed-typed
// defaults are represented with BytesType.
type Default struct {
	Type   Type
	Bool   bool
	Long   int64   // int and long
	Double float64 // float and double
	Bytes  []byte
	Str    string // string and enum symbol
	Items  []Default
	Pairs  []DefaultPair
	Branch int      // union branch index
	Value  *Default // union payload
}

// DefaultPair is a single entry of a map default.
type DefaultPair struct {
	Key   string
	Value Default
}

// NullDefault returns the null default literal. It is the
// default recorded by optional record fields.
func NullDefault() *Default {
	return &Default{Type: UnionType, Branch: 0, Value: &Default{Type: NullType}}
}

// lift converts a default literal into the generic Value it
// denotes under the given reader schema.
func (d *Default) lift(s *Schema) (Value, error) {
	s = s.Deref()
	if s.Type == UnionType {
		if d.Type == UnionType {
			if d.Branch < 0 || d.Branch >= len(s.Branches) {
				return nil, fmt.Errorf("avro: default union branch %d out of range", d.Branch)
			}
			v, err := d.Value.lift(s.Branches[d.Branch])
			if err != nil {
				return nil, err
			}
			return &UnionValue{Branch: d.Branch, Value: v}, nil
		}
		// a bare literal for a union field matches the first branch
		v, err := d.lift(s.Branches[0])
		if err != nil {
			return nil, err
		}
		return &UnionValue{Branch: 0, Value: v}, nil
	}
	switch s.Type {
	case NullType:
		if d.Type != NullType {
			return nil, liftErr(d, s)
		}
		return NullValue{}, nil
	case BoolType:
		if d.Type != BoolType {
			return nil, liftErr(d, s)
		}
		return BoolValue(d.Bool), nil
	case IntType:
		if d.Type != IntType && d.Type != LongType {
			return nil, liftErr(d, s)
		}
		return IntValue(int32(d.Long)), nil
	case LongType:
		if d.Type != IntType && d.Type != LongType {
			return nil, liftErr(d, s)
		}
		return LongValue(d.Long), nil
	case FloatType, DoubleType:
		switch d.Type {
		case IntType, LongType, FloatType, DoubleType:
		default:
			return nil, liftErr(d, s)
		}
		if s.Type == FloatType {
			return FloatValue(float32(d.number())), nil
		}
		return DoubleValue(d.number()), nil
	case BytesType:
		if d.Type != BytesType && d.Type != StringType {
			return nil, liftErr(d, s)
		}
		if d.Bytes != nil {
			return BytesValue(d.Bytes), nil
		}
		return BytesValue([]byte(d.Str)), nil
	case StringType:
		if d.Type != StringType {
			return nil, liftErr(d, s)
		}
		return StringValue(d.Str), nil
	case FixedType:
		if d.Type != BytesType && d.Type != StringType {
			return nil, liftErr(d, s)
		}
		p := d.Bytes
		if p == nil {
			p = []byte(d.Str)
		}
		if len(p) != s.Size {
			return nil, fmt.Errorf("avro: fixed %s default has %d bytes, want %d",
				s.Name, len(p), s.Size)
		}
		return FixedValue(p), nil
	case EnumType:
		if d.Type != EnumType && d.Type != StringType {
			return nil, liftErr(d, s)
		}
		for i, sym := range s.Symbols {
			if sym == d.Str {
				return EnumValue{Index: i, Symbol: sym}, nil
			}
		}
		return nil, fmt.Errorf("avro: enum %s default %q is not a symbol", s.Name, d.Str)
	case ArrayType:
		if d.Type != ArrayType {
			return nil, liftErr(d, s)
		}
		out := make(ArrayValue, len(d.Items))
		for i := range d.Items {
			v, err := d.Items[i].lift(s.Elem)
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return out, nil
	case MapType:
		if d.Type != MapType {
			return nil, liftErr(d, s)
		}
		out := make(MapValue, len(d.Pairs))
		for i := range d.Pairs {
			v, err := d.Pairs[i].Value.lift(s.Elem)
			if err != nil {
				return nil, err
			}
			out[i] = MapEntry{Key: d.Pairs[i].Key, Value: v}
		}
		return out, nil
	case RecordType:
		if d.Type != MapType {
			return nil, liftErr(d, s)
		}
		out := &RecordValue{Name: s.Name.Full()}
		for i := range s.Fields {
			f := &s.Fields[i]
			var fv Value
			var err error
			if p := findPair(d.Pairs, f.Name); p != nil {
				fv, err = p.Value.lift(f.Schema)
			} else if f.Default != nil {
				fv, err = f.Default.lift(f.Schema)
			} else {
				err = fmt.Errorf("avro: record %s default is missing field %q", s.Name, f.Name)
			}
			if err != nil {
				return nil, err
			}
			out.Fields = append(out.Fields, FieldValue{Name: f.Name, Value: fv})
		}
		return out, nil
	default:
		return nil, liftErr(d, s)
	}
}

// number widens an int, long, float or double default
// for a float-typed reader field.
func (d *Default) number() float64 {
	switch d.Type {
	case IntType, LongType:
		return float64(d.Long)
	default:
		return d.Double
	}
}

func findPair(pairs []DefaultPair, key string) *DefaultPair {
	for i := range pairs {
		if pairs[i].Key == key {
			return &pairs[i]
		}
	}
	return nil
}

func liftErr(d *Default, s *Schema) error {
	return fmt.Errorf("avro: default of type %s does not match schema type %s", d.Type, s.Type)
}
