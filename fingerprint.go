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

// CRC-64-AVRO: reflected polynomial, all-ones initial
// value, no post-inversion.
const crc64Poly = 0xC96C5795D7870F42

var crc64Table [256]uint64

func init() {
	for i := range crc64Table {
		fp := uint64(i)
		for j := 0; j < 8; j++ {
			fp = (fp >> 1) ^ (crc64Poly & -(fp & 1))
		}
		crc64Table[i] = fp
	}
}

// Fingerprint returns the CRC-64-AVRO fingerprint of the
// schema's Parsing Canonical Form.
func Fingerprint(s *Schema) uint64 {
	return fingerprintBytes([]byte(CanonicalJSON(s)))
}

func fingerprintBytes(p []byte) uint64 {
	fp := ^uint64(0)
	for _, b := range p {
		fp = (fp >> 8) ^ crc64Table[byte(fp)^b]
	}
	return fp
}
