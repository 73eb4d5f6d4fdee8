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
	"reflect"
	"testing"
)

type node struct {
	Value int64
	Next  *node
}

func listCodec(t *testing.T) Codec[node] {
	t.Helper()
	var buildErr error
	c := Recursive(func(self Codec[node]) Codec[node] {
		b := NewRecordCodec[node]("Node")
		AddField(b, "value", Long(), func(n *node) *int64 { return &n.Value })
		AddOptional(b, "next", self, func(n *node) **node { return &n.Next })
		c, err := b.Build()
		buildErr = err
		return c
	})
	if buildErr != nil {
		t.Fatal(buildErr)
	}
	return c
}

func TestRecursiveRoundTrip(t *testing.T) {
	c := listCodec(t)
	list := node{Value: 1, Next: &node{Value: 2, Next: &node{Value: 3}}}
	p, err := c.Marshal(list)
	if err != nil {
		t.Fatal(err)
	}
	got, err := c.Unmarshal(p)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(got, list) {
		t.Errorf("round-trip returned %+v", got)
	}
}

func TestRecursiveCanonicalJSON(t *testing.T) {
	c := listCodec(t)
	// the self-reference must appear as a name, not as an
	// infinite re-inlining of the record
	want := `{"name":"Node","type":"record","fields":[` +
		`{"name":"value","type":"long"},` +
		`{"name":"next","type":["null","Node"]}]}`
	if got := CanonicalJSON(c.Schema()); got != want {
		t.Errorf("\n got  %s\n want %s", got, want)
	}
	// fingerprinting a recursive schema terminates
	_ = Fingerprint(c.Schema())
}

func TestRecursiveResolveDecode(t *testing.T) {
	c := listCodec(t)
	list := node{Value: 7, Next: &node{Value: 8}}
	p, err := c.Marshal(list)
	if err != nil {
		t.Fatal(err)
	}
	v, err := DecodeWithSchemas(c.Schema(), c.Schema(), p)
	if err != nil {
		t.Fatal(err)
	}
	rec, ok := v.(*RecordValue)
	if !ok {
		t.Fatalf("decoded %T", v)
	}
	if rec.Fields[0].Value != LongValue(7) {
		t.Errorf("value = %v", rec.Fields[0].Value)
	}
	next, ok := rec.Fields[1].Value.(*UnionValue)
	if !ok || next.Branch != 1 {
		t.Fatalf("next = %#v", rec.Fields[1].Value)
	}
	inner := next.Value.(*RecordValue)
	if inner.Fields[0].Value != LongValue(8) {
		t.Errorf("inner value = %v", inner.Fields[0].Value)
	}
	tail := inner.Fields[1].Value.(*UnionValue)
	if tail.Branch != 0 {
		t.Errorf("tail branch = %d", tail.Branch)
	}
}
