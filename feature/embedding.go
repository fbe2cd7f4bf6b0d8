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
	"context"
	"fmt"
	"strings"

	"github.com/juju/errors"
	"github.com/sashabaranov/go-openai"
	"modernc.org/mathutil"

	"github.com/cinerec-io/cinerec/dataset"
)

// batchSize bounds the number of inputs per embeddings request.
const batchSize = 256

// Embedder produces one semantic vector per input text. All vectors of one
// call share a dimension.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// OpenAIEmbedder calls an OpenAI-compatible embeddings endpoint.
type OpenAIEmbedder struct {
	client *openai.Client
	model  string
}

// NewOpenAIEmbedder creates an embedder against baseURL with the given
// auth token and embedding model name.
func NewOpenAIEmbedder(baseURL, authToken, model string) *OpenAIEmbedder {
	clientConfig := openai.DefaultConfig(authToken)
	clientConfig.BaseURL = baseURL
	return &OpenAIEmbedder{
		client: openai.NewClientWithConfig(clientConfig),
		model:  model,
	}
}

func (e *OpenAIEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	embeddings := make([][]float32, len(texts))
	for start := 0; start < len(texts); start += batchSize {
		end := mathutil.Min(start+batchSize, len(texts))
		batch := texts[start:end]
		resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
			Input: batch,
			Model: openai.EmbeddingModel(e.model),
		})
		if err != nil {
			return nil, errors.Trace(err)
		}
		if len(resp.Data) != len(batch) {
			return nil, errors.Errorf("expected %d embeddings, got %d", len(batch), len(resp.Data))
		}
		for _, d := range resp.Data {
			embeddings[start+d.Index] = d.Embedding
		}
	}
	return embeddings, nil
}

// MovieText renders the text an embedder sees for a movie.
func MovieText(movie dataset.Movie) string {
	if len(movie.Genres) == 0 {
		return movie.Title
	}
	return fmt.Sprintf("%s. Genres: %s", movie.Title, strings.Join(movie.Genres, ", "))
}

// BuildFeatures vectorizes a catalog: TF-IDF over genres, blended with
// embeddings from embedder when one is provided. A nil embedder yields
// pure TF-IDF features.
func BuildFeatures(ctx context.Context, movies []dataset.Movie, embedder Embedder, blendWeight float32) ([][]float32, error) {
	docs := make([][]string, len(movies))
	for i, movie := range movies {
		docs[i] = movie.Genres
	}
	termMatrix, err := TFIDF(docs)
	if err != nil {
		return nil, errors.Trace(err)
	}
	if embedder == nil {
		return termMatrix.Rows, nil
	}
	texts := make([]string, len(movies))
	for i, movie := range movies {
		texts[i] = MovieText(movie)
	}
	embeddings, err := embedder.Embed(ctx, texts)
	if err != nil {
		return nil, errors.Trace(err)
	}
	return Blend(termMatrix.Rows, embeddings, blendWeight), nil
}
