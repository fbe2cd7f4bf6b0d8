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

// Package floats provides float32 vector kernels used by the similarity
// models and the feature builder.
package floats

import "github.com/chewxy/math32"

// Zero fills a with zeros.
func Zero(a []float32) {
	for i := range a {
		a[i] = 0
	}
}

// MatZero fills a matrix with zeros.
func MatZero(x [][]float32) {
	for i := range x {
		Zero(x[i])
	}
}

// Add adds s to dst element-wise.
func Add(dst, s []float32) {
	if len(dst) != len(s) {
		panic("floats: slice lengths do not match")
	}
	for i := range dst {
		dst[i] += s[i]
	}
}

// Sub subtracts s from dst element-wise.
func Sub(dst, s []float32) {
	if len(dst) != len(s) {
		panic("floats: slice lengths do not match")
	}
	for i := range dst {
		dst[i] -= s[i]
	}
}

// SubTo stores a-b into dst.
func SubTo(a, b, dst []float32) {
	if len(a) != len(b) || len(a) != len(dst) {
		panic("floats: slice lengths do not match")
	}
	for i := range a {
		dst[i] = a[i] - b[i]
	}
}

// AddConst adds c to every element of dst.
func AddConst(dst []float32, c float32) {
	for i := range dst {
		dst[i] += c
	}
}

// MulConst multiplies every element of dst by c.
func MulConst(dst []float32, c float32) {
	for i := range dst {
		dst[i] *= c
	}
}

// MulConstTo stores a*c into dst.
func MulConstTo(a []float32, c float32, dst []float32) {
	if len(a) != len(dst) {
		panic("floats: slice lengths do not match")
	}
	for i := range a {
		dst[i] = a[i] * c
	}
}

// MulConstAdd adds a*c to dst.
func MulConstAdd(a []float32, c float32, dst []float32) {
	if len(a) != len(dst) {
		panic("floats: slice lengths do not match")
	}
	for i := range a {
		dst[i] += a[i] * c
	}
}

// Dot returns the dot product of a and b.
func Dot(a, b []float32) (ret float32) {
	if len(a) != len(b) {
		panic("floats: slice lengths do not match")
	}
	for i := range a {
		ret += a[i] * b[i]
	}
	return
}

// Norm returns the Euclidean norm of a.
func Norm(a []float32) float32 {
	return math32.Sqrt(Dot(a, a))
}

// Sum returns the sum of the elements of a.
func Sum(a []float32) (ret float32) {
	for i := range a {
		ret += a[i]
	}
	return
}

// Mean returns the arithmetic mean of a, or zero for an empty slice.
func Mean(a []float32) float32 {
	if len(a) == 0 {
		return 0
	}
	return Sum(a) / float32(len(a))
}
