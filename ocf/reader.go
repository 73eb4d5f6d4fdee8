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

package ocf

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"iter"
	"os"

	avro "github.com/tmcgilchrist/avro-simple"
	"github.com/tmcgilchrist/avro-simple/compr"
)

// Reader reads values of type T from an object container
// file one block at a time; peak memory is one block's
// compressed plus decompressed payload. Readers are not
// safe for concurrent use and must be closed.
type Reader[T any] struct {
	codec  avro.Codec[T]
	br     *bufio.Reader
	f      *os.File // owned file when opened via Open
	decomp compr.Codec
	sync   [syncLength]byte

	schema    *avro.Schema
	codecName string
	meta      map[string][]byte
}

// NewReader constructs a Reader over r and parses the
// container header immediately.
func NewReader[T any](r io.Reader, codec avro.Codec[T]) (*Reader[T], error) {
	out := &Reader[T]{
		codec: codec,
		br:    bufio.NewReader(r),
	}
	if err := out.readHeader(); err != nil {
		return nil, err
	}
	return out, nil
}

// NewReaderBytes constructs a Reader over an in-memory file.
func NewReaderBytes[T any](p []byte, codec avro.Codec[T]) (*Reader[T], error) {
	return NewReader(bytes.NewReader(p), codec)
}

// Open opens the file at path and constructs a Reader on
// it. The file is closed again if header parsing fails.
func Open[T any](path string, codec avro.Codec[T]) (*Reader[T], error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("ocf: %w", err)
	}
	r, err := NewReader(f, codec)
	if err != nil {
		f.Close()
		return nil, err
	}
	r.f = f
	return r, nil
}

func (r *Reader[T]) readHeader() error {
	var m [len(magic)]byte
	if _, err := io.ReadFull(r.br, m[:]); err != nil {
		return ErrBadMagic
	}
	if string(m[:]) != magic {
		return ErrBadMagic
	}
	meta, err := r.readMetadata()
	if err != nil {
		return err
	}
	r.meta = meta
	rawSchema, ok := meta[MetaSchema]
	if !ok {
		return ErrMissingSchema
	}
	schema, err := avro.ParseBytes(rawSchema)
	if err != nil {
		return err
	}
	r.schema = schema
	r.codecName = "null"
	if name, ok := meta[MetaCodec]; ok && len(name) > 0 {
		r.codecName = string(name)
	}
	decomp, ok := compr.Lookup(r.codecName)
	if !ok {
		return &UnsupportedCodec{Name: r.codecName}
	}
	r.decomp = decomp
	if _, err := io.ReadFull(r.br, r.sync[:]); err != nil {
		return fmt.Errorf("ocf: reading sync marker: %w", err)
	}
	return nil
}

// readMetadata decodes the header's string->bytes map,
// accepting the general multi-block map form.
func (r *Reader[T]) readMetadata() (map[string][]byte, error) {
	meta := make(map[string][]byte)
	for {
		n, err := readLong(r.br)
		if err != nil {
			return nil, fmt.Errorf("ocf: reading metadata: %w", err)
		}
		if n == 0 {
			return meta, nil
		}
		if n < 0 {
			n = -n
			// skip the block's byte-size hint
			if _, err := readLong(r.br); err != nil {
				return nil, fmt.Errorf("ocf: reading metadata: %w", err)
			}
		}
		for ; n > 0; n-- {
			key, err := readBytes(r.br)
			if err != nil {
				return nil, fmt.Errorf("ocf: reading metadata key: %w", err)
			}
			val, err := readBytes(r.br)
			if err != nil {
				return nil, fmt.Errorf("ocf: reading metadata value: %w", err)
			}
			meta[string(key)] = val
		}
	}
}

// WriterSchema returns the schema the file was written with,
// parsed from the avro.schema metadata entry.
func (r *Reader[T]) WriterSchema() *avro.Schema { return r.schema }

// CodecName returns the name of the file's block-compression
// codec.
func (r *Reader[T]) CodecName() string { return r.codecName }

// Metadata returns the complete header metadata map,
// including the avro.* entries.
func (r *Reader[T]) Metadata() map[string][]byte { return r.meta }

// ReadBlock returns the decoded values of the next block,
// or io.EOF at a clean end of the file. Truncated framing
// is reported as ErrMalformedBlock and a trailing sync
// marker that differs from the header marker as
// ErrSyncMismatch.
func (r *Reader[T]) ReadBlock() ([]T, error) {
	// a clean EOF before the block count is the
	// end of the file
	if _, err := r.br.Peek(1); err == io.EOF {
		return nil, io.EOF
	}
	count, err := readLong(r.br)
	if err != nil {
		return nil, badBlock(err)
	}
	if count < 0 {
		return nil, badBlock(fmt.Errorf("negative record count %d", count))
	}
	size, err := readLong(r.br)
	if err != nil {
		return nil, badBlock(err)
	}
	if size < 0 {
		return nil, badBlock(fmt.Errorf("negative block size %d", size))
	}
	payload := make([]byte, size)
	if _, err := io.ReadFull(r.br, payload); err != nil {
		return nil, badBlock(err)
	}
	var sync [syncLength]byte
	if _, err := io.ReadFull(r.br, sync[:]); err != nil {
		return nil, badBlock(err)
	}
	if !bytes.Equal(sync[:], r.sync[:]) {
		return nil, ErrSyncMismatch
	}
	decompressed, err := r.decomp.Decompress(payload)
	if err != nil {
		return nil, fmt.Errorf("ocf: decompressing block: %w", err)
	}
	src := avro.NewSource(decompressed)
	out := make([]T, 0, min(count, 1<<16))
	for i := int64(0); i < count; i++ {
		v, err := r.codec.Decode(src)
		if err != nil {
			return nil, badBlock(err)
		}
		out = append(out, v)
	}
	if src.Remaining() != 0 {
		return nil, badBlock(fmt.Errorf("%d trailing bytes", src.Remaining()))
	}
	return out, nil
}

func badBlock(err error) error {
	return fmt.Errorf("%w: %w", ErrMalformedBlock, err)
}

// Each applies f to every remaining record in order,
// reading one block at a time.
func (r *Reader[T]) Each(f func(T) error) error {
	for {
		vs, err := r.ReadBlock()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		for i := range vs {
			if err := f(vs[i]); err != nil {
				return err
			}
		}
	}
}

// EachBlock applies f to every remaining block in order.
func (r *Reader[T]) EachBlock(f func([]T) error) error {
	for {
		vs, err := r.ReadBlock()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		if err := f(vs); err != nil {
			return err
		}
	}
}

// Values returns a lazy sequence over the remaining records.
// Block boundaries are internal; stopping the iteration
// early leaves the rest of the file unread.
func (r *Reader[T]) Values() iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		for {
			vs, err := r.ReadBlock()
			if err == io.EOF {
				return
			}
			if err != nil {
				var zero T
				yield(zero, err)
				return
			}
			for i := range vs {
				if !yield(vs[i], nil) {
					return
				}
			}
		}
	}
}

// Fold accumulates f over every remaining record of r.
func Fold[T, A any](r *Reader[T], init A, f func(A, T) A) (A, error) {
	acc := init
	err := r.Each(func(v T) error {
		acc = f(acc, v)
		return nil
	})
	return acc, err
}

// Close releases the underlying file when the Reader owns one.
func (r *Reader[T]) Close() error {
	if r.f != nil {
		err := r.f.Close()
		r.f = nil
		return err
	}
	return nil
}

// readLong reads one zig-zag varint from a buffered reader.
func readLong(br *bufio.Reader) (int64, error) {
	var u uint64
	var shift uint
	for {
		c, err := br.ReadByte()
		if err != nil {
			return 0, err
		}
		u |= uint64(c&0x7f) << shift
		if c&0x80 == 0 {
			return int64(u>>1) ^ -int64(u&1), nil
		}
		shift += 7
		if shift >= 70 {
			return 0, fmt.Errorf("varint longer than 10 bytes")
		}
	}
}

// readBytes reads one length-prefixed byte string from a
// buffered reader.
func readBytes(br *bufio.Reader) ([]byte, error) {
	n, err := readLong(br)
	if err != nil {
		return nil, err
	}
	if n < 0 {
		return nil, fmt.Errorf("negative byte length %d", n)
	}
	p := make([]byte, n)
	if _, err := io.ReadFull(br, p); err != nil {
		return nil, err
	}
	return p, nil
}
