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
	"testing"
)

type person struct {
	Name   string
	Age    int32
	Email  *string
	Phones []string
}

func personCodec(t *testing.T) Codec[person] {
	t.Helper()
	b := NewRecordCodec[person]("com.example.Person")
	AddField(b, "name", String(), func(p *person) *string { return &p.Name })
	AddField(b, "age", Int(), func(p *person) *int32 { return &p.Age })
	AddOptional(b, "email", String(), func(p *person) **string { return &p.Email })
	AddField(b, "phone_numbers", ArrayOf(String()), func(p *person) *[]string { return &p.Phones })
	c, err := b.Build()
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func TestRecordRoundTrip(t *testing.T) {
	c := personCodec(t)
	email := "ada@example.com"
	people := []person{
		{Name: "Ada", Age: 36, Email: &email, Phones: []string{"+1-555-0100"}},
		{Name: "Bob", Age: 52},
	}
	for i := range people {
		roundtrip(t, c, people[i])
	}
}

func TestRecordFieldOrder(t *testing.T) {
	c := personCodec(t)
	v := person{Name: "Ada", Age: 36}
	p, err := c.Marshal(v)
	if err != nil {
		t.Fatal(err)
	}
	// fields encode in declaration order, and the record
	// encoding is exactly the field encodings concatenated
	var want Buffer
	want.WriteString("Ada")
	want.WriteInt(36)
	want.WriteLong(0) // email: null branch
	want.WriteLong(0) // phone_numbers: empty array
	if !bytes.Equal(p, want.Bytes()) {
		t.Errorf("got %x, want %x", p, want.Bytes())
	}
}

func TestRecordSchema(t *testing.T) {
	c := personCodec(t)
	s := c.Schema()
	if s.Name.Full() != "com.example.Person" {
		t.Errorf("name = %q", s.Name.Full())
	}
	if len(s.Fields) != 4 {
		t.Fatalf("got %d fields", len(s.Fields))
	}
	// AddOptional wraps the field schema in [null, T]
	// and records a null default
	email := s.Fields[2]
	if email.Schema.Type != UnionType || email.Schema.Branches[0].Type != NullType {
		t.Errorf("email schema = %s", email.Schema)
	}
	if email.Default == nil {
		t.Errorf("optional field has no default")
	}
}

func TestRecordBuildValidates(t *testing.T) {
	b := NewRecordCodec[person]("not a name")
	AddField(b, "name", String(), func(p *person) *string { return &p.Name })
	if _, err := b.Build(); err == nil {
		t.Errorf("expected invalid-name error")
	}
	b = NewRecordCodec[person]("P")
	if _, err := b.Build(); err == nil {
		t.Errorf("expected no-fields error")
	}
	b = NewRecordCodec[person]("P")
	AddField(b, "x", String(), func(p *person) *string { return &p.Name })
	AddField(b, "x", Int(), func(p *person) *int32 { return &p.Age })
	if _, err := b.Build(); err == nil {
		t.Errorf("expected duplicate-field error")
	}
}
