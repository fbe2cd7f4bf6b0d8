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
	"math/rand"
)

// Split shuffles ratings with the given seed and splits them into train and
// test sets. testRatio is clamped to [0, 1]. The input slice is unchanged.
func Split(ratings []Rating, testRatio float64, seed int64) (train, test []Rating) {
	if testRatio < 0 {
		testRatio = 0
	} else if testRatio > 1 {
		testRatio = 1
	}
	perm := rand.New(rand.NewSource(seed)).Perm(len(ratings))
	testSize := int(float64(len(ratings)) * testRatio)
	test = make([]Rating, 0, testSize)
	train = make([]Rating, 0, len(ratings)-testSize)
	for i, p := range perm {
		if i < testSize {
			test = append(test, ratings[p])
		} else {
			train = append(train, ratings[p])
		}
	}
	return
}
