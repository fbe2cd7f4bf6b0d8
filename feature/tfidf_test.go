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

package feature

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/cinerec-io/cinerec/base/floats"
)

func TestTFIDF(t *testing.T) {
	docs := [][]string{
		{"Animation", "Children", "Comedy"},
		{"Adventure", "Children"},
		{"Comedy"},
		{},
	}
	m, err := TFIDF(docs)
	assert.NoError(t, err)
	assert.Equal(t, 4, m.Vocab.Count())
	assert.Len(t, m.Rows, 4)
	// vocabulary in first-seen order
	assert.Equal(t, 0, m.Vocab.Lookup("Animation"))
	assert.Equal(t, 3, m.Vocab.Lookup("Adventure"))
	// rows are unit length (or zero for empty docs)
	for i := 0; i < 3; i++ {
		assert.InDelta(t, 1.0, floats.Norm(m.Rows[i]), 1e-5)
	}
	assert.Equal(t, float32(0), floats.Norm(m.Rows[3]))
	// rarer terms weigh more: Animation (df=1) outweighs Children (df=2)
	// within the same row
	assert.Greater(t, m.Rows[0][m.Vocab.Lookup("Animation")], m.Rows[0][m.Vocab.Lookup("Children")])
	// deterministic
	m2, err := TFIDF(docs)
	assert.NoError(t, err)
	assert.Equal(t, m.Rows, m2.Rows)
}

func TestTFIDFSmoothIDF(t *testing.T) {
	m, err := TFIDF([][]string{{"a"}, {"a"}})
	assert.NoError(t, err)
	// df == N keeps idf at ln(1)+1 = 1, rows stay unit length
	assert.InDelta(t, 1.0, m.Rows[0][0], 1e-6)
}

func TestTFIDFNilDocs(t *testing.T) {
	_, err := TFIDF(nil)
	assert.Error(t, err)
}

func TestBlend(t *testing.T) {
	tfidf := [][]float32{{3, 4}, {1, 0}}
	embeddings := [][]float32{{0, 2}, {2, 0}}
	blended := Blend(tfidf, embeddings, 0.5)
	assert.Len(t, blended, 2)
	assert.Len(t, blended[0], 4)
	assert.InDelta(t, 0.5*3.0/5.0, blended[0][0], 1e-6)
	assert.InDelta(t, 0.5*4.0/5.0, blended[0][1], 1e-6)
	assert.InDelta(t, 0, blended[0][2], 1e-6)
	assert.InDelta(t, 0.5, blended[0][3], 1e-6)
	// nil embeddings keep normalized tfidf only
	blended = Blend(tfidf, nil, 0.5)
	assert.Len(t, blended[0], 2)
	assert.InDelta(t, 1.0, floats.Norm(blended[0]), 1e-6)
}
