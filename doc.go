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

// Package avro implements Apache Avro binary serialization,
// schema resolution, and schema fingerprinting.
//
// The package is organized around Codec[T], which bundles an
// Avro schema together with an encoder and decoder for a
// concrete Go type. Codecs for composite types are built from
// primitive codecs with the ArrayOf, MapOf, OptionOf, UnionOf
// and record-builder combinators; the resulting codec writes
// and reads the Avro binary format bit-exactly.
//
// Schema evolution is handled separately from the typed codec
// path: Resolve compiles a (reader, writer) schema pair into a
// read plan, and the plan's Decode method interprets writer-encoded
// data into a generic Value according to the reader schema.
//
// Object container files are implemented by the ocf subpackage;
// block compression codecs are registered in the compr subpackage.
package avro
