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
	"sigs.k8s.io/yaml"
)

// ParseYAML parses a schema authored in YAML by converting
// it to JSON first. Schema definitions kept in configuration
// files are often written this way.
func ParseYAML(p []byte) (*Schema, error) {
	j, err := yaml.YAMLToJSON(p)
	if err != nil {
		return nil, &ParseError{Msg: err.Error()}
	}
	return ParseBytes(j)
}
