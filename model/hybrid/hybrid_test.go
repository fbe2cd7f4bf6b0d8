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

package hybrid

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

func testCatalog() []dataset.Movie {
	return []dataset.Movie{
		{ID: 1, Title: "Toy Story", Genres: []string{"Animation", "Children"}, AvgRating: 3.8, RatingCount: 5},
		{ID: 2, Title: "Bug's Life", Genres: []string{"Animation", "Children"}, AvgRating: 3.6, RatingCount: 5},
		{ID: 3, Title: "Heat", Genres: []string{"Action", "Crime"}, AvgRating: 3.0, RatingCount: 5},
		{ID: 4, Title: "Ronin", Genres: []string{"Action", "Crime"}, AvgRating: 2.9, RatingCount: 5},
	}
}

func testRatings() []dataset.Rating {
	return []dataset.Rating{
		rating(1, 1, 5), rating(1, 2, 5), rating(1, 3, 1), rating(1, 4, 1),
		rating(2, 1, 4), rating(2, 2, 5), rating(2, 3, 2), rating(2, 4, 1),
		rating(3, 1, 1), rating(3, 2, 2), rating(3, 3, 5), rating(3, 4, 5),
		rating(4, 1, 2), rating(4, 2, 1), rating(4, 3, 4), rating(4, 4, 5),
		rating(5, 1, 5), rating(5, 2, 4), rating(5, 3, 2), rating(5, 4, 2),
	}
}

func fitTestModel(t *testing.T, extra ...dataset.Rating) *Model {
	m := New()
	m.Item.MinRatings = 3
	require.NoError(t, m.Fit(context.Background(), append(testRatings(), extra...), testCatalog(), nil, model.NewFitConfig()))
	return m
}

func TestNotFitted(t *testing.T) {
	m := New()
	_, err := m.Recommend(1, 10, nil)
	assert.ErrorIs(t, err, model.ErrNotFitted)
	_, err = m.GetSimilarMovies(1, 10)
	assert.ErrorIs(t, err, model.ErrNotFitted)
	_, err = m.PredictRating(1, 1)
	assert.ErrorIs(t, err, model.ErrNotFitted)
	_, err = m.ExplainRecommendation(1, 1)
	assert.ErrorIs(t, err, model.ErrNotFitted)
	assert.ErrorIs(t, m.Marshal(bytes.NewBuffer(nil)), model.ErrNotFitted)
}

func TestSetWeights(t *testing.T) {
	m := New()
	assert.Error(t, m.SetWeights(-1, 1, 1))
	assert.Error(t, m.SetWeights(0, 0, 0))
	// any non-negative scale normalizes the same way
	require.NoError(t, m.SetWeights(3, 3, 4))
	c1, i1, u1 := m.Weights()
	require.NoError(t, m.SetWeights(0.3, 0.3, 0.4))
	c2, i2, u2 := m.Weights()
	assert.InDelta(t, c1, c2, 1e-6)
	assert.InDelta(t, i1, i2, 1e-6)
	assert.InDelta(t, u1, u2, 1e-6)
	assert.InDelta(t, 1.0, c1+i1+u1, 1e-6)
}

func TestRecommend(t *testing.T) {
	// user 6 has one unrated movie left
	m := fitTestModel(t,
		rating(6, 1, 5), rating(6, 3, 1), rating(6, 4, 2))
	recs, err := m.Recommend(6, 2, nil)
	assert.NoError(t, err)
	require.NotEmpty(t, recs)
	assert.Equal(t, int64(2), recs[0].MovieID)
	for _, rec := range recs {
		assert.Equal(t, model.MethodHybrid, rec.Method)
	}
	// a user who rated everything gets nothing back
	recs, err = m.Recommend(1, 2, nil)
	assert.NoError(t, err)
	assert.Empty(t, recs)
	// excluding every movie yields empty
	recs, err = m.Recommend(6, 10, mapset.NewSet[int64](1, 2, 3, 4))
	assert.NoError(t, err)
	assert.Empty(t, recs)
}

func TestRecommendNewUser(t *testing.T) {
	m := fitTestModel(t)
	recs, err := m.Recommend(999, 3, nil)
	assert.NoError(t, err)
	// unknown user still gets blended popularity-backed results
	assert.Len(t, recs, 3)
	assert.Equal(t, model.MethodHybrid, recs[0].Method)
}

func TestGetSimilarMovies(t *testing.T) {
	m := fitTestModel(t)
	recs, err := m.GetSimilarMovies(1, 2)
	assert.NoError(t, err)
	assert.Len(t, recs, 2)
	// Bug's Life shares both genres and rating pattern with Toy Story
	assert.Equal(t, int64(2), recs[0].MovieID)
	for _, rec := range recs {
		assert.NotEqual(t, int64(1), rec.MovieID)
	}
}

func TestPredictRating(t *testing.T) {
	// user 6 agrees with the animation fans but has not rated Bug's Life
	m := fitTestModel(t,
		rating(6, 1, 5), rating(6, 3, 1), rating(6, 4, 2))
	pred, err := m.PredictRating(6, 2)
	assert.NoError(t, err)
	assert.GreaterOrEqual(t, pred, float32(0.5))
	assert.LessOrEqual(t, pred, float32(5.0))
	assert.Greater(t, pred, float32(3.0))
	// unknown user and movie: every sub-model abstains
	_, err = m.PredictRating(999, 999)
	assert.ErrorIs(t, err, model.ErrNoPrediction)
}

func TestExplainRecommendation(t *testing.T) {
	m := fitTestModel(t,
		rating(6, 1, 5), rating(6, 3, 1), rating(6, 4, 2))
	explanation, err := m.ExplainRecommendation(6, 2)
	assert.NoError(t, err)
	assert.Equal(t, int64(2), explanation.MovieID)
	assert.True(t, explanation.HasPrediction)
	methods := make(map[string]MethodExplanation)
	for _, method := range explanation.Methods {
		methods[method.Method] = method
	}
	// content cites Toy Story, the similar movie the user rated
	contentMethod, ok := methods[model.MethodContent]
	require.True(t, ok)
	require.NotEmpty(t, contentMethod.SimilarMovies)
	assert.Equal(t, int64(1), contentMethod.SimilarMovies[0].MovieID)
	assert.Equal(t, float32(5.0), contentMethod.SimilarMovies[0].Rating)
	assert.Greater(t, contentMethod.SimilarMovies[0].Similarity, float32(0.1))
	// item and user methods present with their weights
	itemMethod, ok := methods[model.MethodItem]
	require.True(t, ok)
	userMethod, ok := methods[model.MethodUser]
	require.True(t, ok)
	assert.Greater(t, userMethod.SimilarUserCount, 0)
	c, i, u := m.Weights()
	assert.Equal(t, c, contentMethod.Weight)
	assert.Equal(t, i, itemMethod.Weight)
	assert.Equal(t, u, userMethod.Weight)
}

func TestMarshalRoundTrip(t *testing.T) {
	m := fitTestModel(t,
		rating(6, 1, 5), rating(6, 3, 1), rating(6, 4, 2))
	buf := bytes.NewBuffer(nil)
	require.NoError(t, m.Marshal(buf))
	decoded := New()
	require.NoError(t, decoded.Unmarshal(buf))
	want, err := m.Recommend(6, 4, nil)
	assert.NoError(t, err)
	got, err := decoded.Recommend(6, 4, nil)
	assert.NoError(t, err)
	assert.Equal(t, want, got)
	wantPred, err := m.PredictRating(6, 2)
	assert.NoError(t, err)
	gotPred, err := decoded.PredictRating(6, 2)
	assert.NoError(t, err)
	assert.Equal(t, wantPred, gotPred)
}
