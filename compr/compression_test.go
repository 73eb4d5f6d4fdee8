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

package compr

import (
	"bytes"
	"math/rand"
	"slices"
	"strings"
	"testing"
)

func testdata() []byte {
	// compressible but not trivial input
	rng := rand.New(rand.NewSource(42))
	var buf bytes.Buffer
	for i := 0; i < 1000; i++ {
		buf.WriteString("record-")
		buf.WriteByte(byte('a' + rng.Intn(4)))
	}
	return buf.Bytes()
}

func TestRoundTrip(t *testing.T) {
	src := testdata()
	for _, name := range []string{"null", "deflate", "snappy", "zstandard"} {
		c, ok := Lookup(name)
		if !ok {
			t.Fatalf("%s: not registered", name)
		}
		if c.Name() != name {
			t.Errorf("%s: Name() = %q", name, c.Name())
		}
		compressed, err := c.Compress(src)
		if err != nil {
			t.Fatalf("%s: compress: %v", name, err)
		}
		if name != "null" && len(compressed) >= len(src) {
			t.Errorf("%s: did not compress %d -> %d", name, len(src), len(compressed))
		}
		got, err := c.Decompress(compressed)
		if err != nil {
			t.Fatalf("%s: decompress: %v", name, err)
		}
		if !bytes.Equal(got, src) {
			t.Errorf("%s: round-trip mismatch", name)
		}
		// a codec instance is reusable across blocks
		compressed, err = c.Compress(src[:100])
		if err != nil {
			t.Fatalf("%s: second compress: %v", name, err)
		}
		got, err = c.Decompress(compressed)
		if err != nil {
			t.Fatalf("%s: second decompress: %v", name, err)
		}
		if !bytes.Equal(got, src[:100]) {
			t.Errorf("%s: second round-trip mismatch", name)
		}
	}
}

func TestSnappyChecksum(t *testing.T) {
	c, _ := Lookup("snappy")
	compressed, err := c.Compress([]byte("hello world"))
	if err != nil {
		t.Fatal(err)
	}
	// flip a bit in the stored CRC
	compressed[len(compressed)-1] ^= 0x01
	if _, err := c.Decompress(compressed); err == nil {
		t.Errorf("expected checksum mismatch")
	} else if !strings.Contains(err.Error(), "checksum") {
		t.Errorf("unexpected error %v", err)
	}
	if _, err := c.Decompress([]byte{0x00}); err == nil {
		t.Errorf("expected short-block error")
	}
}

func TestRegistry(t *testing.T) {
	if _, ok := Lookup("bzip2"); ok {
		t.Fatalf("unexpected bzip2 codec")
	}
	names := Names()
	for _, want := range []string{"deflate", "null", "snappy", "zstandard"} {
		if !slices.Contains(names, want) {
			t.Errorf("Names() = %v is missing %q", names, want)
		}
	}
	// registration replaces
	Register("identity-test", func() Codec { return nullCodec{} })
	c, ok := Lookup("identity-test")
	if !ok || c.Name() != "null" {
		t.Fatalf("custom registration failed")
	}
	Register("identity-test", func() Codec { return snappyCodec{} })
	c, _ = Lookup("identity-test")
	if c.Name() != "snappy" {
		t.Errorf("re-registration did not replace")
	}
}
