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

package registry

import (
	"io"
	"sync"
	"testing"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cinerec-io/cinerec/model"
)

type fakeRecommender struct {
	version int64
}

func (f *fakeRecommender) PredictRating(_, _ int64) (float32, error) {
	return float32(f.version), nil
}

func (f *fakeRecommender) Recommend(_ int64, _ int, _ mapset.Set[int64]) ([]model.Recommendation, error) {
	return nil, nil
}

func (f *fakeRecommender) Marshal(_ io.Writer) error { return nil }

func (f *fakeRecommender) Unmarshal(_ io.Reader) error { return nil }

func TestStoreGet(t *testing.T) {
	r := New()
	_, err := r.Get(model.MethodHybrid)
	assert.True(t, errors.Is(err, errors.NotFound))

	r.Store(model.MethodHybrid, &fakeRecommender{version: 1}, 1)
	entry, err := r.Get(model.MethodHybrid)
	require.NoError(t, err)
	assert.Equal(t, int64(1), entry.Version)
	assert.False(t, entry.UpdateTime.IsZero())

	r.Store(model.MethodHybrid, &fakeRecommender{version: 2}, 2)
	entry, err = r.Get(model.MethodHybrid)
	require.NoError(t, err)
	assert.Equal(t, int64(2), entry.Version)
}

func TestNames(t *testing.T) {
	r := New()
	r.Store(model.MethodItem, &fakeRecommender{}, 1)
	r.Store(model.MethodUser, &fakeRecommender{}, 1)
	assert.ElementsMatch(t, []string{model.MethodItem, model.MethodUser}, r.Names())
}

func TestConcurrentSwap(t *testing.T) {
	r := New()
	r.Store(model.MethodHybrid, &fakeRecommender{version: 0}, 0)
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(version int64) {
			defer wg.Done()
			r.Store(model.MethodHybrid, &fakeRecommender{version: version}, version)
		}(int64(i))
	}
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			entry, err := r.Get(model.MethodHybrid)
			assert.NoError(t, err)
			rating, err := entry.Recommender.PredictRating(0, 0)
			assert.NoError(t, err)
			assert.Equal(t, float32(entry.Version), rating)
		}()
	}
	wg.Wait()
}
