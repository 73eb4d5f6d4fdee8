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

// Package ocf reads and writes Avro Object Container Files:
// a self-describing file format carrying the writer schema
// in the header, with compressed record blocks delimited by
// a per-file sync marker.
package ocf

import (
	"errors"
	"fmt"
)

const (
	// magic begins every object container file.
	magic = "Obj\x01"
	// syncLength is the size of the per-file sync marker.
	syncLength = 16

	// MetaSchema is the metadata key holding the writer
	// schema as JSON.
	MetaSchema = "avro.schema"
	// MetaCodec is the metadata key holding the name of
	// the block-compression codec.
	MetaCodec = "avro.codec"
)

var (
	// ErrBadMagic: the input does not begin with the
	// container magic.
	ErrBadMagic = errors.New("ocf: bad magic")
	// ErrMissingSchema: the header metadata has no
	// avro.schema entry.
	ErrMissingSchema = errors.New("ocf: missing avro.schema metadata")
	// ErrSyncMismatch: a block's trailing sync marker does
	// not match the header marker.
	ErrSyncMismatch = errors.New("ocf: sync marker mismatch")
	// ErrMalformedBlock: a block was truncated or its
	// framing could not be decoded.
	ErrMalformedBlock = errors.New("ocf: malformed block")
)

// UnsupportedCodec is returned when a file requests a
// compression codec that is not in the registry.
type UnsupportedCodec struct {
	Name string
}

func (e *UnsupportedCodec) Error() string {
	return fmt.Sprintf("ocf: compression codec %q is not registered", e.Name)
}
