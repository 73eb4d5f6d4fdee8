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
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/google/uuid"

	avro "github.com/tmcgilchrist/avro-simple"
	"github.com/tmcgilchrist/avro-simple/compr"
)

// DefaultSyncInterval is the record count at which Write
// flushes a block automatically.
const DefaultSyncInterval = 4000

type options struct {
	compression string
	interval    int
	metadata    []metaPair
}

type metaPair struct {
	key string
	val []byte
}

// Option configures a Writer at construction.
type Option func(*options)

// WithCompression selects the block-compression codec by
// name. The default is "null".
func WithCompression(name string) Option {
	return func(o *options) { o.compression = name }
}

// WithSyncInterval sets the number of buffered records at
// which Write flushes a block.
func WithSyncInterval(n int) Option {
	return func(o *options) { o.interval = n }
}

// WithMetadata attaches a user metadata pair to the file
// header. Keys beginning with "avro." are reserved and
// rejected at construction.
func WithMetadata(key string, value []byte) Option {
	return func(o *options) {
		o.metadata = append(o.metadata, metaPair{key: key, val: value})
	}
}

// Writer writes values of type T to an object container
// file, buffering records into compressed blocks. Writers
// are not safe for concurrent use.
type Writer[T any] struct {
	codec    avro.Codec[T]
	w        io.Writer
	f        *os.File // owned file when opened via Create
	compress compr.Codec
	sync     [syncLength]byte
	interval int

	// current block under construction
	block avro.Buffer
	count int

	scratch avro.Buffer
}

// NewWriter constructs a Writer emitting to w and writes
// the container header immediately.
func NewWriter[T any](w io.Writer, codec avro.Codec[T], opts ...Option) (*Writer[T], error) {
	o := options{compression: "null", interval: DefaultSyncInterval}
	for _, fn := range opts {
		fn(&o)
	}
	if o.interval <= 0 {
		return nil, fmt.Errorf("ocf: sync interval %d out of range", o.interval)
	}
	comp, ok := compr.Lookup(o.compression)
	if !ok {
		return nil, &UnsupportedCodec{Name: o.compression}
	}
	for i := range o.metadata {
		if strings.HasPrefix(o.metadata[i].key, "avro.") {
			return nil, fmt.Errorf("ocf: metadata key %q is reserved", o.metadata[i].key)
		}
	}
	out := &Writer[T]{
		codec:    codec,
		w:        w,
		compress: comp,
		interval: o.interval,
	}
	u := uuid.New()
	copy(out.sync[:], u[:])
	if err := out.writeHeader(&o); err != nil {
		return nil, err
	}
	return out, nil
}

// Create opens (or truncates) the file at path and
// constructs a Writer on it. The file is closed again if
// writing the header fails.
func Create[T any](path string, codec avro.Codec[T], opts ...Option) (*Writer[T], error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("ocf: %w", err)
	}
	w, err := NewWriter(f, codec, opts...)
	if err != nil {
		f.Close()
		return nil, err
	}
	w.f = f
	return w, nil
}

// writeHeader emits the magic, the metadata map (one Avro
// map block: avro.schema, avro.codec, then user pairs) and
// the sync marker.
func (w *Writer[T]) writeHeader(o *options) error {
	var hdr avro.Buffer
	hdr.UnsafeAppend([]byte(magic))
	hdr.WriteLong(int64(2 + len(o.metadata)))
	hdr.WriteString(MetaSchema)
	hdr.WriteBytes([]byte(w.codec.Schema().JSON()))
	hdr.WriteString(MetaCodec)
	hdr.WriteBytes([]byte(o.compression))
	for i := range o.metadata {
		hdr.WriteString(o.metadata[i].key)
		hdr.WriteBytes(o.metadata[i].val)
	}
	hdr.WriteLong(0)
	hdr.WriteFixed(w.sync[:])
	_, err := hdr.WriteTo(w.w)
	if err != nil {
		return fmt.Errorf("ocf: writing header: %w", err)
	}
	return nil
}

// Write appends one value to the block under construction,
// flushing the block when it reaches the sync interval.
func (w *Writer[T]) Write(v T) error {
	var snap avro.Snapshot
	w.block.Save(&snap)
	if err := w.codec.Encode(&w.block, v); err != nil {
		w.block.Load(&snap)
		return err
	}
	w.count++
	if w.count >= w.interval {
		return w.flushBlock()
	}
	return nil
}

// WriteBlock flushes any buffered records and then emits
// exactly one block holding the supplied values.
func (w *Writer[T]) WriteBlock(vs []T) error {
	if err := w.flushBlock(); err != nil {
		return err
	}
	for i := range vs {
		var snap avro.Snapshot
		w.block.Save(&snap)
		if err := w.codec.Encode(&w.block, vs[i]); err != nil {
			w.block.Load(&snap)
			return err
		}
		w.count++
	}
	return w.flushBlock()
}

// Flush forces a block boundary. It is a no-op when no
// records are buffered.
func (w *Writer[T]) Flush() error {
	return w.flushBlock()
}

func (w *Writer[T]) flushBlock() error {
	if w.count == 0 {
		return nil
	}
	compressed, err := w.compress.Compress(w.block.Bytes())
	if err != nil {
		return fmt.Errorf("ocf: compressing block: %w", err)
	}
	w.scratch.Reset()
	w.scratch.WriteLong(int64(w.count))
	w.scratch.WriteLong(int64(len(compressed)))
	w.scratch.WriteFixed(compressed)
	w.scratch.WriteFixed(w.sync[:])
	if _, err := w.scratch.WriteTo(w.w); err != nil {
		return fmt.Errorf("ocf: writing block: %w", err)
	}
	w.block.Reset()
	w.count = 0
	return nil
}

// Close flushes buffered records and releases the
// underlying file when the Writer owns one.
func (w *Writer[T]) Close() error {
	err := w.flushBlock()
	if w.f != nil {
		if cerr := w.f.Close(); err == nil {
			err = cerr
		}
		w.f = nil
	}
	return err
}
