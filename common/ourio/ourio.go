//
// Copyright (c) 2014-2019 Cesanta Software Limited
// All rights reserved
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
//
package ourio

import (
	"bytes"
	"io/ioutil"
	"os"
	"path/filepath"

	"github.com/juju/errors"
	yaml "gopkg.in/yaml.v2"
)

// WriteFileIfDifferent writes data to file but avoids overwriting a file with
// the same contents. Missing parent directories are created.
// Returns true if the file was created or updated.
func WriteFileIfDifferent(filename string, data []byte, perm os.FileMode) (bool, error) {
	exData, err := ioutil.ReadFile(filename)
	if err == nil && bytes.Equal(exData, data) {
		return false, nil
	}
	if dir := filepath.Dir(filename); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return false, errors.Trace(err)
		}
	}
	if err := ioutil.WriteFile(filename, data, perm); err != nil {
		return false, errors.Trace(err)
	}
	return true, nil
}

// WriteYAMLFileIfDifferent writes s as YAML to file but avoids overwriting a
// file with the same contents. Returns true if the file was updated.
func WriteYAMLFileIfDifferent(filename string, s interface{}, perm os.FileMode) (bool, error) {
	data, err := yaml.Marshal(s)
	if err != nil {
		return false, errors.Trace(err)
	}
	return WriteFileIfDifferent(filename, data, perm)
}

// ReadYAMLFile unmarshals the YAML file into s, rejecting unknown fields.
func ReadYAMLFile(filename string, s interface{}) error {
	data, err := ioutil.ReadFile(filename)
	if err != nil {
		return errors.Trace(err)
	}
	if err := yaml.UnmarshalStrict(data, s); err != nil {
		return errors.Annotatef(err, "invalid %s", filename)
	}
	return nil
}
