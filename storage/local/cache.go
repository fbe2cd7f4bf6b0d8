// Copyright 2025 cinerec Project Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package local persists fitted models as versioned blob files so a
// process can restart without refitting.
package local

import (
	"encoding/gob"
	"io"
	"os"
	"path/filepath"

	"github.com/juju/errors"
)

// Marshaler is the model side of the persistence contract.
type Marshaler interface {
	Marshal(w io.Writer) error
}

// Unmarshaler restores a model from its blob payload.
type Unmarshaler interface {
	Unmarshal(r io.Reader) error
}

// Cache stores one blob file per model name under a directory. Each file
// carries a gob header (name, version) followed by the model payload.
type Cache struct {
	dir string
}

func NewCache(dir string) *Cache {
	return &Cache{dir: dir}
}

// Path returns the blob file path for a model name.
func (c *Cache) Path(name string) string {
	return filepath.Join(c.dir, name)
}

// Exists reports whether a blob exists for the model name.
func (c *Cache) Exists(name string) bool {
	_, err := os.Stat(c.Path(name))
	return err == nil
}

// Save writes a model blob, replacing any previous version.
func (c *Cache) Save(name string, version int64, m Marshaler) error {
	if err := os.MkdirAll(c.dir, os.ModePerm); err != nil {
		return errors.Trace(err)
	}
	f, err := os.Create(c.Path(name))
	if err != nil {
		return errors.Trace(err)
	}
	defer f.Close()
	encoder := gob.NewEncoder(f)
	if err = encoder.Encode(name); err != nil {
		return errors.Trace(err)
	}
	if err = encoder.Encode(version); err != nil {
		return errors.Trace(err)
	}
	return errors.Trace(m.Marshal(f))
}

// Load reads a model blob and returns its version. The stored name must
// match the requested one.
func (c *Cache) Load(name string, m Unmarshaler) (int64, error) {
	f, err := os.Open(c.Path(name))
	if err != nil {
		if os.IsNotExist(err) {
			return 0, errors.NotFoundf("model %s", name)
		}
		return 0, errors.Trace(err)
	}
	defer f.Close()
	decoder := gob.NewDecoder(f)
	var storedName string
	if err = decoder.Decode(&storedName); err != nil {
		return 0, errors.Trace(err)
	}
	if storedName != name {
		return 0, errors.Errorf("blob holds model %s, want %s", storedName, name)
	}
	var version int64
	if err = decoder.Decode(&version); err != nil {
		return 0, errors.Trace(err)
	}
	if err = m.Unmarshal(f); err != nil {
		return 0, errors.Trace(err)
	}
	return version, nil
}
