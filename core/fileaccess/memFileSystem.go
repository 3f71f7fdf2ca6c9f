// Licensed to NASA JPL under one or more contributor
// license agreements. See the NOTICE file distributed with
// this work for additional information regarding copyright
// ownership. NASA JPL licenses this file to you under
// the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing,
// software distributed under the License is distributed on an
// "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY
// KIND, either express or implied.  See the License for the
// specific language governing permissions and limitations
// under the License.

package fileaccess

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/shearfit/obsio/v2/core/utils"
)

var errMemObjectNotFound = errors.New("object not found")

// MemAccess - in-memory file access for unit tests and synthetic pipelines.
// Seed Files directly or via WriteObject; keys are bucket-slash-path.
type MemAccess struct {
	Files map[string][]byte
}

func MakeMemAccess() *MemAccess {
	return &MemAccess{Files: map[string][]byte{}}
}

func memKey(bucket string, path string) string {
	return bucket + "/" + path
}

func (m *MemAccess) ListObjects(bucket string, prefix string) ([]string, error) {
	result := []string{}
	// Sorted so listings are deterministic, like walking a directory
	for _, key := range utils.GetSortedMapKeys(m.Files) {
		if strings.HasPrefix(key, memKey(bucket, prefix)) {
			result = append(result, key[len(bucket)+1:])
		}
	}
	return result, nil
}

func (m *MemAccess) ObjectExists(bucket string, path string) (bool, error) {
	_, ok := m.Files[memKey(bucket, path)]
	return ok, nil
}

func (m *MemAccess) ReadObject(bucket string, path string) ([]byte, error) {
	data, ok := m.Files[memKey(bucket, path)]
	if !ok {
		return nil, fmt.Errorf("%w: %v", errMemObjectNotFound, memKey(bucket, path))
	}
	return data, nil
}

func (m *MemAccess) WriteObject(bucket string, path string, data []byte) error {
	if m.Files == nil {
		m.Files = map[string][]byte{}
	}
	m.Files[memKey(bucket, path)] = data
	return nil
}

func (m *MemAccess) ReadJSON(bucket string, path string, itemsPtr interface{}, emptyIfNotFound bool) error {
	fileData, err := m.ReadObject(bucket, path)
	if err != nil {
		if emptyIfNotFound && m.IsNotFoundError(err) {
			return nil
		}
		return err
	}
	return json.Unmarshal(fileData, itemsPtr)
}

func (m *MemAccess) WriteJSON(bucket string, path string, itemsPtr interface{}) error {
	fileData, err := json.MarshalIndent(itemsPtr, "", utils.PrettyPrintIndentForJSON)
	if err != nil {
		return err
	}
	return m.WriteObject(bucket, path, fileData)
}

func (m *MemAccess) DeleteObject(bucket string, path string) error {
	key := memKey(bucket, path)
	if _, ok := m.Files[key]; !ok {
		return fmt.Errorf("%w: %v", errMemObjectNotFound, key)
	}
	delete(m.Files, key)
	return nil
}

func (m *MemAccess) CopyObject(srcBucket string, srcPath string, dstBucket string, dstPath string) error {
	data, err := m.ReadObject(srcBucket, srcPath)
	if err != nil {
		return err
	}
	return m.WriteObject(dstBucket, dstPath, data)
}

func (m *MemAccess) IsNotFoundError(err error) bool {
	return errors.Is(err, errMemObjectNotFound)
}
