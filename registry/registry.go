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

// Package registry holds fitted models keyed by method name and swaps
// them atomically so readers never see a half-trained model.
package registry

import (
	"sync"
	"time"

	"github.com/juju/errors"

	"github.com/cinerec-io/cinerec/model"
)

// Entry is a fitted model together with its training metadata.
type Entry struct {
	Recommender model.Recommender
	Version     int64
	UpdateTime  time.Time
}

// Registry is safe for concurrent use. Store replaces the whole entry
// under the write lock, so a Get either sees the previous model or the
// new one, never a mix.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

func New() *Registry {
	return &Registry{entries: make(map[string]Entry)}
}

// Store installs a fitted model under a method name.
func (r *Registry) Store(name string, rec model.Recommender, version int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[name] = Entry{
		Recommender: rec,
		Version:     version,
		UpdateTime:  time.Now(),
	}
}

// Get returns the current model for a method name.
func (r *Registry) Get(name string) (Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.entries[name]
	if !ok {
		return Entry{}, errors.NotFoundf("model %s", name)
	}
	return entry, nil
}

// Names returns the method names with an installed model.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	return names
}
