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
	"encoding/binary"
	"io"
	"math"
)

// zigzag maps a signed integer onto an unsigned
// integer so that numbers with small magnitude
// get small varint encodings.
func zigzag(v int64) uint64 {
	return uint64((v << 1) ^ (v >> 63))
}

func unzigzag(u uint64) int64 {
	return int64(u>>1) ^ -int64(u&1)
}

// AppendLong appends the Avro binary encoding of v
// (zig-zag, little-endian base-128 varint) to dst
// and returns the extended buffer. The encoding
// occupies between 1 and 10 bytes.
func AppendLong(dst []byte, v int64) []byte {
	u := zigzag(v)
	for u >= 0x80 {
		dst = append(dst, byte(u)|0x80)
		u >>= 7
	}
	return append(dst, byte(u))
}

// Buffer is a grow-only byte sink for Avro binary data.
//
// The contents of Buffer can be inspected directly with
// Buffer.Bytes() or written to an io.Writer with Buffer.WriteTo.
// The zero value is ready to use.
type Buffer struct {
	buf []byte
}

// Snapshot holds the state of a Buffer at a point
// in time which can be reloaded by calling Load.
type Snapshot struct {
	size int
}

// Save takes a snapshot of the current state of the buffer.
func (b *Buffer) Save(snap *Snapshot) {
	snap.size = len(b.buf)
}

// Load truncates the buffer back to the state at the
// time the snapshot was saved.
func (b *Buffer) Load(snap *Snapshot) {
	b.buf = b.buf[:snap.size]
}

// Set sets the buffer used by 'b' and resets its state.
// Subsequent calls to Write* functions on 'b' will append
// to the given buffer.
func (b *Buffer) Set(p []byte) {
	b.buf = p
}

// get the next 'n' bytes at the end of the buffer
func (b *Buffer) grow(n int) []byte {
	off := len(b.buf)
	if cap(b.buf)-off >= n {
		b.buf = b.buf[:off+n]
	} else {
		nb := make([]byte, off+n, n+(2*off))
		copy(nb, b.buf)
		b.buf = nb
	}
	return b.buf[off:]
}

// WriteNull writes an Avro null value: zero bytes.
func (b *Buffer) WriteNull() {}

// WriteBool writes a boolean as a single byte,
// 0x00 for false and 0x01 for true.
func (b *Buffer) WriteBool(v bool) {
	bt := byte(0)
	if v {
		bt = 1
	}
	b.buf = append(b.buf, bt)
}

// WriteInt writes a 32-bit integer.
// Avro int and long share one wire encoding,
// so WriteInt routes through WriteLong.
func (b *Buffer) WriteInt(v int32) {
	b.WriteLong(int64(v))
}

// WriteLong writes a 64-bit integer as a
// zig-zag base-128 varint (1 to 10 bytes).
func (b *Buffer) WriteLong(v int64) {
	b.buf = AppendLong(b.buf, v)
}

// WriteFloat writes an IEEE 754 single-precision
// float as 4 little-endian bytes.
func (b *Buffer) WriteFloat(f float32) {
	binary.LittleEndian.PutUint32(b.grow(4), math.Float32bits(f))
}

// WriteDouble writes an IEEE 754 double-precision
// float as 8 little-endian bytes.
func (b *Buffer) WriteDouble(f float64) {
	binary.LittleEndian.PutUint64(b.grow(8), math.Float64bits(f))
}

// WriteBytes writes a length prefix (as a long)
// followed by the raw contents of p.
func (b *Buffer) WriteBytes(p []byte) {
	b.WriteLong(int64(len(p)))
	copy(b.grow(len(p)), p)
}

// WriteString writes a length prefix (as a long)
// followed by the raw bytes of s.
func (b *Buffer) WriteString(s string) {
	b.WriteLong(int64(len(s)))
	copy(b.grow(len(s)), s)
}

// WriteFixed writes the raw contents of p with
// no length prefix. The caller is responsible
// for ensuring p has the size declared by the
// corresponding fixed schema.
func (b *Buffer) WriteFixed(p []byte) {
	copy(b.grow(len(p)), p)
}

// UnsafeAppend appends arbitrary data to the buffer.
func (b *Buffer) UnsafeAppend(p []byte) {
	copy(b.grow(len(p)), p)
}

// Bytes returns the current contents of the buffer.
func (b *Buffer) Bytes() []byte { return b.buf }

// Size returns the number of bytes in the buffer.
func (b *Buffer) Size() int { return len(b.buf) }

// Reset resets the buffer to its initial state.
func (b *Buffer) Reset() {
	b.buf = b.buf[:0]
}

// WriteTo implements io.WriterTo.
func (b *Buffer) WriteTo(w io.Writer) (int64, error) {
	i, err := w.Write(b.buf)
	return int64(i), err
}
