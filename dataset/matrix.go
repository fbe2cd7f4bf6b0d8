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
	"github.com/bits-and-blooms/bitset"
)

// Matrix is a dense user-by-movie rating matrix. Zero cells are unrated.
// A per-row bitset tracks rated cells so means and counts never include
// the zero sentinel.
type Matrix struct {
	Rows, Cols int
	Data       [][]float32
	mask       []*bitset.BitSet
}

// NewMatrix creates a zeroed rows-by-cols matrix.
func NewMatrix(rows, cols int) *Matrix {
	m := &Matrix{
		Rows: rows,
		Cols: cols,
		Data: make([][]float32, rows),
		mask: make([]*bitset.BitSet, rows),
	}
	for i := range m.Data {
		m.Data[i] = make([]float32, cols)
		m.mask[i] = bitset.New(uint(cols))
	}
	return m
}

// Set stores a rating and marks the cell as rated.
func (m *Matrix) Set(row, col int, value float32) {
	m.Data[row][col] = value
	m.mask[row].Set(uint(col))
}

// Get returns the rating at (row, col), zero when unrated.
func (m *Matrix) Get(row, col int) float32 {
	return m.Data[row][col]
}

// Rated reports whether the cell holds a real rating.
func (m *Matrix) Rated(row, col int) bool {
	return m.mask[row].Test(uint(col))
}

// RowCount returns the number of rated cells in a row.
func (m *Matrix) RowCount(row int) int {
	return int(m.mask[row].Count())
}

// ColCount returns the number of rated cells in a column.
func (m *Matrix) ColCount(col int) int {
	count := 0
	for i := 0; i < m.Rows; i++ {
		if m.mask[i].Test(uint(col)) {
			count++
		}
	}
	return count
}

// RowMeans returns the mean rating per row over rated cells only.
// Rows with no ratings get mean zero.
func (m *Matrix) RowMeans() []float32 {
	means := make([]float32, m.Rows)
	for i := 0; i < m.Rows; i++ {
		var sum float32
		count := 0
		for j, ok := m.mask[i].NextSet(0); ok; j, ok = m.mask[i].NextSet(j + 1) {
			sum += m.Data[i][j]
			count++
		}
		if count > 0 {
			means[i] = sum / float32(count)
		}
	}
	return means
}

// ColMeans returns the mean rating per column over rated cells only.
func (m *Matrix) ColMeans() []float32 {
	sums := make([]float32, m.Cols)
	counts := make([]int, m.Cols)
	for i := 0; i < m.Rows; i++ {
		for j, ok := m.mask[i].NextSet(0); ok; j, ok = m.mask[i].NextSet(j + 1) {
			sums[j] += m.Data[i][j]
			counts[j]++
		}
	}
	means := make([]float32, m.Cols)
	for j := range means {
		if counts[j] > 0 {
			means[j] = sums[j] / float32(counts[j])
		}
	}
	return means
}

// RatedCols returns the rated column positions of a row in ascending order.
func (m *Matrix) RatedCols(row int) []int {
	cols := make([]int, 0, m.mask[row].Count())
	for j, ok := m.mask[row].NextSet(0); ok; j, ok = m.mask[row].NextSet(j + 1) {
		cols = append(cols, int(j))
	}
	return cols
}
