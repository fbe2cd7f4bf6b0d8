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

package itemknn

import (
	"bytes"
	"context"
	"testing"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cinerec-io/cinerec/dataset"
	"github.com/cinerec-io/cinerec/model"
)

func rating(user, movie int64, value float32) dataset.Rating {
	return dataset.Rating{UserID: user, MovieID: movie, Rating: value, Timestamp: time.Unix(0, 0)}
}

// testRatings: movies 1 and 2 are rated in lockstep, movie 3 moves against
// them. Every movie has at least three raters.
func testRatings() []dataset.Rating {
	return []dataset.Rating{
		rating(1, 1, 5), rating(1, 2, 5), rating(1, 3, 1),
		rating(2, 1, 4), rating(2, 2, 4), rating(2, 3, 2),
		rating(3, 1, 1), rating(3, 2, 1), rating(3, 3, 5),
		rating(4, 1, 2), rating(4, 2, 2), rating(4, 3, 4),
	}
}

func testCatalog() []dataset.Movie {
	return []dataset.Movie{
		{ID: 1, Title: "a", AvgRating: 3.0, RatingCount: 4},
		{ID: 2, Title: "b", AvgRating: 3.0, RatingCount: 4},
		{ID: 3, Title: "c", AvgRating: 3.0, RatingCount: 4},
	}
}

func fitTestModel(t *testing.T) *Model {
	m := New()
	m.MinRatings = 3
	require.NoError(t, m.Fit(context.Background(), testRatings(), testCatalog(), model.NewFitConfig()))
	return m
}

func TestNotFitted(t *testing.T) {
	m := New()
	_, err := m.PredictRating(1, 1)
	assert.ErrorIs(t, err, model.ErrNotFitted)
	_, err = m.Recommend(1, 10, nil)
	assert.ErrorIs(t, err, model.ErrNotFitted)
	_, err = m.GetSimilar(1, 10)
	assert.ErrorIs(t, err, model.ErrNotFitted)
	assert.ErrorIs(t, m.Marshal(bytes.NewBuffer(nil)), model.ErrNotFitted)
}

func TestFitValidation(t *testing.T) {
	m := New()
	assert.Error(t, m.Fit(context.Background(), nil, nil, nil))
	// everything colder than MinRatings
	assert.Error(t, m.Fit(context.Background(), []dataset.Rating{rating(1, 1, 5)}, testCatalog(), nil))
}

func TestColdItemsDropped(t *testing.T) {
	ratings := append(testRatings(), rating(1, 99, 5))
	m := New()
	m.MinRatings = 3
	require.NoError(t, m.Fit(context.Background(), ratings, testCatalog(), nil))
	assert.Equal(t, dataset.NotID, m.movieIndex.ToNumber(99))
	_, err := m.PredictRating(2, 99)
	assert.ErrorIs(t, err, model.ErrNoPrediction)
}

func TestSimilarityProperties(t *testing.T) {
	m := fitTestModel(t)
	n := len(m.similarity)
	for i := 0; i < n; i++ {
		assert.Zero(t, m.similarity[i][i])
		for j := 0; j < n; j++ {
			assert.Equal(t, m.similarity[i][j], m.similarity[j][i])
			assert.GreaterOrEqual(t, m.similarity[i][j], float32(-1.000001))
			assert.LessOrEqual(t, m.similarity[i][j], float32(1.000001))
		}
	}
	// lockstep movies agree, the contrarian movie disagrees
	i := m.movieIndex.ToNumber(1)
	j := m.movieIndex.ToNumber(2)
	k := m.movieIndex.ToNumber(3)
	assert.Greater(t, m.similarity[i][j], float32(0.9))
	assert.Less(t, m.similarity[i][k], float32(0))
}

func TestThinOverlapAttenuated(t *testing.T) {
	// movies 1 and 2 share exactly one rater; the other half of each
	// movie's rating mass must pull the similarity below 1
	ratings := []dataset.Rating{
		rating(1, 1, 5), rating(1, 2, 5),
		rating(2, 1, 1),
		rating(3, 2, 1),
	}
	catalog := []dataset.Movie{{ID: 1, Title: "a"}, {ID: 2, Title: "b"}}
	m := New()
	m.MinRatings = 2
	require.NoError(t, m.Fit(context.Background(), ratings, catalog, nil))
	i := m.movieIndex.ToNumber(1)
	j := m.movieIndex.ToNumber(2)
	assert.InDelta(t, 0.5, m.similarity[i][j], 1e-6)
}

func TestPredictRating(t *testing.T) {
	m := fitTestModel(t)
	// user 1 rated movies 1 and 2 high; prediction for an unrated warm
	// movie must stay in range
	ratings := append(testRatings(), rating(5, 1, 5), rating(5, 2, 5))
	m2 := New()
	m2.MinRatings = 3
	require.NoError(t, m2.Fit(context.Background(), ratings, testCatalog(), nil))
	pred, err := m2.PredictRating(5, 3)
	if err == nil {
		assert.GreaterOrEqual(t, pred, float32(0.5))
		assert.LessOrEqual(t, pred, float32(5.0))
	} else {
		// movie 3 is negatively similar to everything user 5 rated
		assert.ErrorIs(t, err, model.ErrNoPrediction)
	}
	// unknown user and unknown movie
	_, err = m.PredictRating(99, 1)
	assert.ErrorIs(t, err, model.ErrNoPrediction)
	_, err = m.PredictRating(1, 99)
	assert.ErrorIs(t, err, model.ErrNoPrediction)
}

func TestRecommend(t *testing.T) {
	ratings := append(testRatings(), rating(5, 1, 5))
	m := New()
	m.MinRatings = 3
	require.NoError(t, m.Fit(context.Background(), ratings, testCatalog(), nil))
	recs, err := m.Recommend(5, 10, nil)
	assert.NoError(t, err)
	// movie 1 already rated; movie 2 is the positively similar candidate
	assert.Len(t, recs, 1)
	assert.Equal(t, int64(2), recs[0].MovieID)
	assert.Equal(t, model.MethodItem, recs[0].Method)
	// exclusions
	recs, err = m.Recommend(5, 10, mapset.NewSet[int64](2, 3))
	assert.NoError(t, err)
	assert.Empty(t, recs)
	// unknown user falls back to popularity over fitted movies
	recs, err = m.Recommend(99, 2, nil)
	assert.NoError(t, err)
	assert.Len(t, recs, 2)
	assert.Equal(t, model.MethodPopular, recs[0].Method)
}

func TestGetSimilar(t *testing.T) {
	m := fitTestModel(t)
	recs, err := m.GetSimilar(1, 1)
	assert.NoError(t, err)
	assert.Len(t, recs, 1)
	assert.Equal(t, int64(2), recs[0].MovieID)
	// unknown movie: empty, no error
	recs, err = m.GetSimilar(99, 5)
	assert.NoError(t, err)
	assert.Empty(t, recs)
}

func TestMarshalRoundTrip(t *testing.T) {
	m := fitTestModel(t)
	buf := bytes.NewBuffer(nil)
	require.NoError(t, m.Marshal(buf))
	decoded := New()
	require.NoError(t, decoded.Unmarshal(buf))
	assert.Equal(t, m.K, decoded.K)
	want, err := m.Recommend(1, 10, nil)
	assert.NoError(t, err)
	got, err := decoded.Recommend(1, 10, nil)
	assert.NoError(t, err)
	assert.Equal(t, want, got)
	wantPred, err := m.PredictRating(1, 3)
	gotPred, err2 := decoded.PredictRating(1, 3)
	assert.Equal(t, err, err2)
	assert.Equal(t, wantPred, gotPred)
}
