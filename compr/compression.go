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

// Package compr provides a registry of block-compression
// codecs for Avro object container files, wrapping
// third-party compression libraries behind one interface.
package compr

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"io"
	"slices"
	"sync"

	"github.com/golang/snappy"
	"github.com/klauspost/compress/zlib"
	"github.com/klauspost/compress/zstd"
)

// Codec compresses and decompresses whole blocks.
// A Codec instance belongs to a single container reader
// or writer and is not safe for concurrent use; obtain a
// fresh instance per stream with Lookup.
type Codec interface {
	// Name is the lowercase name of the compression
	// algorithm as recorded in container metadata.
	Name() string
	// Compress compresses src into a new buffer.
	Compress(src []byte) ([]byte, error)
	// Decompress decompresses src into a new buffer.
	Decompress(src []byte) ([]byte, error)
}

// Factory produces a fresh Codec instance.
type Factory func() Codec

var (
	mu       sync.Mutex
	registry = map[string]Factory{}
)

// Register enters a codec factory under the given name,
// replacing any previous entry with that name.
func Register(name string, f Factory) {
	mu.Lock()
	defer mu.Unlock()
	registry[name] = f
}

// Lookup returns a fresh codec instance for the given
// name, or false if no such codec is registered.
func Lookup(name string) (Codec, bool) {
	mu.Lock()
	f, ok := registry[name]
	mu.Unlock()
	if !ok {
		return nil, false
	}
	return f(), true
}

// Names returns the sorted names of all registered codecs.
func Names() []string {
	mu.Lock()
	defer mu.Unlock()
	out := make([]string, 0, len(registry))
	for name := range registry {
		out = append(out, name)
	}
	slices.Sort(out)
	return out
}

func init() {
	Register("null", func() Codec { return nullCodec{} })
	Register("deflate", func() Codec { return &deflateCodec{} })
	Register("snappy", func() Codec { return snappyCodec{} })
	Register("zstandard", func() Codec { return &zstdCodec{} })
}

type nullCodec struct{}

func (nullCodec) Name() string                          { return "null" }
func (nullCodec) Compress(src []byte) ([]byte, error)   { return src, nil }
func (nullCodec) Decompress(src []byte) ([]byte, error) { return src, nil }

// deflateCodec wraps blocks in zlib framing.
type deflateCodec struct {
	buf bytes.Buffer
	zw  *zlib.Writer
}

func (d *deflateCodec) Name() string { return "deflate" }

func (d *deflateCodec) Compress(src []byte) ([]byte, error) {
	d.buf.Reset()
	if d.zw == nil {
		d.zw = zlib.NewWriter(&d.buf)
	} else {
		d.zw.Reset(&d.buf)
	}
	if _, err := d.zw.Write(src); err != nil {
		return nil, err
	}
	if err := d.zw.Close(); err != nil {
		return nil, err
	}
	return slices.Clone(d.buf.Bytes()), nil
}

func (d *deflateCodec) Decompress(src []byte) ([]byte, error) {
	zr, err := zlib.NewReader(bytes.NewReader(src))
	if err != nil {
		return nil, err
	}
	defer zr.Close()
	return io.ReadAll(zr)
}

// snappyCodec implements the Avro snappy framing: the
// block-compressed payload followed by a 4-byte big-endian
// CRC32 (IEEE) of the uncompressed data.
type snappyCodec struct{}

func (snappyCodec) Name() string { return "snappy" }

func (snappyCodec) Compress(src []byte) ([]byte, error) {
	out := snappy.Encode(nil, src)
	sum := crc32.ChecksumIEEE(src)
	return binary.BigEndian.AppendUint32(out, sum), nil
}

func (snappyCodec) Decompress(src []byte) ([]byte, error) {
	if len(src) < 4 {
		return nil, fmt.Errorf("snappy block too short (%d bytes)", len(src))
	}
	want := binary.BigEndian.Uint32(src[len(src)-4:])
	out, err := snappy.Decode(nil, src[:len(src)-4])
	if err != nil {
		return nil, err
	}
	if got := crc32.ChecksumIEEE(out); got != want {
		return nil, fmt.Errorf("snappy checksum mismatch: %08x != %08x", got, want)
	}
	return out, nil
}

type zstdCodec struct {
	enc *zstd.Encoder
	dec *zstd.Decoder
}

func (z *zstdCodec) Name() string { return "zstandard" }

func (z *zstdCodec) Compress(src []byte) ([]byte, error) {
	if z.enc == nil {
		enc, err := zstd.NewWriter(nil, zstd.WithEncoderConcurrency(1))
		if err != nil {
			return nil, err
		}
		z.enc = enc
	}
	return z.enc.EncodeAll(src, nil), nil
}

func (z *zstdCodec) Decompress(src []byte) ([]byte, error) {
	if z.dec == nil {
		dec, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
		if err != nil {
			return nil, err
		}
		z.dec = dec
	}
	return z.dec.DecodeAll(src, nil)
}
