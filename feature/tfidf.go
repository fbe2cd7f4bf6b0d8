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

// Package feature turns catalog entries into the dense vectors the content
// model measures similarity on: TF-IDF over genre tags, optionally blended
// with semantic embeddings.
package feature

import (
	"github.com/chewxy/math32"
	"github.com/juju/errors"

	"github.com/cinerec-io/cinerec/base/floats"
	"github.com/cinerec-io/cinerec/dataset"
)

// TermMatrix holds L2-normalized TF-IDF rows plus the vocabulary they are
// indexed by. Rows follow the input document order; columns follow
// first-seen term order, so identical input yields identical output.
type TermMatrix struct {
	Vocab *dataset.FreqDict
	Rows  [][]float32
}

// TFIDF vectorizes token documents. Term weight is tf x idf with the smooth
// idf ln((1+N)/(1+df)) + 1; rows are L2-normalized. Documents without terms
// produce zero rows.
func TFIDF(docs [][]string) (*TermMatrix, error) {
	if docs == nil {
		return nil, errors.New("tfidf: nil documents")
	}
	vocab := dataset.NewFreqDict()
	// term counts per document, document frequency per term
	counts := make([]map[int]int, len(docs))
	df := make(map[int]int)
	for i, doc := range docs {
		counts[i] = make(map[int]int, len(doc))
		for _, term := range doc {
			id := vocab.Id(term)
			counts[i][id]++
		}
		for id := range counts[i] {
			df[id]++
		}
	}
	n := float32(len(docs))
	idf := make([]float32, vocab.Count())
	for id := range idf {
		idf[id] = math32.Log((1+n)/(1+float32(df[id]))) + 1
	}
	rows := make([][]float32, len(docs))
	for i := range docs {
		rows[i] = make([]float32, vocab.Count())
		for id, tf := range counts[i] {
			rows[i][id] = float32(tf) * idf[id]
		}
		normalize(rows[i])
	}
	return &TermMatrix{Vocab: vocab, Rows: rows}, nil
}

// normalize scales a row to unit L2 norm, leaving zero rows untouched.
func normalize(row []float32) {
	if norm := floats.Norm(row); norm > 0 {
		floats.MulConst(row, 1/norm)
	}
}

// Blend concatenates the TF-IDF block and the embedding block, each
// L2-normalized per row, with the TF-IDF side scaled by weight and the
// embedding side by 1-weight. A nil embedding matrix returns normalized
// TF-IDF rows unchanged in meaning (absence, not error).
func Blend(tfidf, embeddings [][]float32, weight float32) [][]float32 {
	blended := make([][]float32, len(tfidf))
	for i := range tfidf {
		left := make([]float32, len(tfidf[i]))
		copy(left, tfidf[i])
		normalize(left)
		if embeddings == nil {
			blended[i] = left
			continue
		}
		floats.MulConst(left, weight)
		right := make([]float32, len(embeddings[i]))
		copy(right, embeddings[i])
		normalize(right)
		floats.MulConst(right, 1-weight)
		blended[i] = append(left, right...)
	}
	return blended
}
