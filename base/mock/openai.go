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

// Package mock provides an in-process OpenAI-compatible embedding server
// for tests.
package mock

import (
	"fmt"
	"hash/fnv"
	"net"
	"net/http"

	"github.com/chewxy/math32"
	restful "github.com/emicklei/go-restful/v3"
	"github.com/sashabaranov/go-openai"
)

const embeddingDim = 8

type OpenAIServer struct {
	listener   net.Listener
	httpServer *http.Server
	authToken  string
	ready      chan struct{}

	mockEmbeddings []float32
}

func NewOpenAIServer() *OpenAIServer {
	s := &OpenAIServer{}
	ws := new(restful.WebService)
	ws.Path("/v1").
		Consumes(restful.MIME_JSON).
		Produces(restful.MIME_JSON)
	ws.Route(ws.POST("embeddings").
		Reads(openai.EmbeddingRequest{}).
		Writes(openai.EmbeddingResponse{}).
		To(s.embeddings))
	container := restful.NewContainer()
	container.Add(ws)
	s.httpServer = &http.Server{Handler: container}
	s.authToken = "ollama"
	s.ready = make(chan struct{})
	return s
}

func (s *OpenAIServer) Start() error {
	var err error
	s.listener, err = net.Listen("tcp", "")
	if err != nil {
		return err
	}
	close(s.ready)
	return s.httpServer.Serve(s.listener)
}

func (s *OpenAIServer) BaseURL() string {
	return fmt.Sprintf("http://%s/v1", s.listener.Addr().String())
}

func (s *OpenAIServer) AuthToken() string {
	return s.authToken
}

func (s *OpenAIServer) Ready() {
	<-s.ready
}

func (s *OpenAIServer) Close() error {
	return s.httpServer.Close()
}

// Embeddings overrides the deterministic embeddings with a fixed vector.
func (s *OpenAIServer) Embeddings(embeddings []float32) {
	s.mockEmbeddings = embeddings
}

func (s *OpenAIServer) embeddings(req *restful.Request, resp *restful.Response) {
	var r openai.EmbeddingRequest
	err := req.ReadEntity(&r)
	if err != nil {
		_ = resp.WriteError(http.StatusBadRequest, err)
		return
	}
	var inputs []string
	switch input := r.Input.(type) {
	case string:
		inputs = []string{input}
	case []any:
		for _, v := range input {
			if s, ok := v.(string); ok {
				inputs = append(inputs, s)
			}
		}
	}
	data := make([]openai.Embedding, len(inputs))
	for i, text := range inputs {
		embedding := s.mockEmbeddings
		if embedding == nil {
			embedding = hashEmbedding(text)
		}
		data[i] = openai.Embedding{Index: i, Embedding: embedding}
	}
	_ = resp.WriteEntity(openai.EmbeddingResponse{Data: data})
}

// hashEmbedding derives a deterministic unit vector from text so that
// identical texts map to identical embeddings.
func hashEmbedding(text string) []float32 {
	embedding := make([]float32, embeddingDim)
	var norm float32
	for i := range embedding {
		h := fnv.New32a()
		_, _ = h.Write([]byte(text))
		_, _ = h.Write([]byte{byte(i)})
		embedding[i] = float32(h.Sum32()%1000)/500 - 1
		norm += embedding[i] * embedding[i]
	}
	norm = math32.Sqrt(norm)
	if norm > 0 {
		for i := range embedding {
			embedding[i] /= norm
		}
	}
	return embedding
}
