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

package dataset

import (
	"encoding/binary"
	"io"

	"github.com/juju/errors"
)

// NotID represents an ID that doesn't exist in an index.
const NotID = int32(-1)

// Index manages the map between sparse external IDs and dense positions.
// External IDs are user IDs or movie IDs from the source data. Dense positions
// index rows and columns of rating and similarity matrices.
type Index struct {
	numbers map[int64]int32
	ids     []int64
}

// NewIndex creates an empty Index.
func NewIndex() *Index {
	return &Index{numbers: make(map[int64]int32)}
}

// Len returns the number of indexed IDs.
func (idx *Index) Len() int32 {
	if idx == nil {
		return 0
	}
	return int32(len(idx.ids))
}

// Add adds a new ID to the index. Duplicate IDs are ignored.
func (idx *Index) Add(id int64) {
	if _, exist := idx.numbers[id]; !exist {
		idx.numbers[id] = int32(len(idx.ids))
		idx.ids = append(idx.ids, id)
	}
}

// ToNumber converts an external ID to a dense position, or NotID.
func (idx *Index) ToNumber(id int64) int32 {
	if number, exist := idx.numbers[id]; exist {
		return number
	}
	return NotID
}

// ToID converts a dense position back to the external ID.
func (idx *Index) ToID(number int32) int64 {
	return idx.ids[number]
}

// IDs returns all indexed IDs in dense order.
func (idx *Index) IDs() []int64 {
	return idx.ids
}

// Marshal writes the index to a binary stream.
func (idx *Index) Marshal(w io.Writer) error {
	if err := binary.Write(w, binary.LittleEndian, int32(len(idx.ids))); err != nil {
		return errors.Trace(err)
	}
	for _, id := range idx.ids {
		if err := binary.Write(w, binary.LittleEndian, id); err != nil {
			return errors.Trace(err)
		}
	}
	return nil
}

// Unmarshal reads the index from a binary stream.
func (idx *Index) Unmarshal(r io.Reader) error {
	var n int32
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return errors.Trace(err)
	}
	idx.ids = make([]int64, 0, n)
	idx.numbers = make(map[int64]int32, n)
	for i := int32(0); i < n; i++ {
		var id int64
		if err := binary.Read(r, binary.LittleEndian, &id); err != nil {
			return errors.Trace(err)
		}
		idx.Add(id)
	}
	return nil
}
