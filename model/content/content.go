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

// Package content implements the content-based model: movies are compared
// by cosine similarity of their feature vectors, user taste is projected
// onto the catalog through signed rating weights.
package content

import (
	"context"
	"io"
	"sort"
	"time"

	"github.com/chewxy/math32"
	mapset "github.com/deckarep/golang-set/v2"
	"github.com/juju/errors"
	"go.uber.org/zap"

	"github.com/cinerec-io/cinerec/base/encoding"
	"github.com/cinerec-io/cinerec/base/floats"
	"github.com/cinerec-io/cinerec/base/log"
	"github.com/cinerec-io/cinerec/base/parallel"
	"github.com/cinerec-io/cinerec/dataset"
	"github.com/cinerec-io/cinerec/model"
)

// ratingMidpoint maps rating r to the signed weight (r-midpoint)/midpoint
// in [-0.8, 1]: ratings above 2.5 pull similar movies in, ratings below
// push them away.
const ratingMidpoint = float32(2.5)

// Model is the content-based similarity model. Fit once, then read-only.
type Model struct {
	index      *dataset.Index
	movies     []dataset.Movie
	similarity [][]float32
	fitted     bool
}

func New() *Model {
	return &Model{}
}

// Fit indexes the catalog and computes the dense pairwise cosine
// similarity of the feature rows. features must align with catalog by
// position.
func (m *Model) Fit(ctx context.Context, catalog []dataset.Movie, features [][]float32, config *model.FitConfig) error {
	config = config.LoadDefaultIfNil()
	if catalog == nil {
		return errors.New("content: nil catalog")
	}
	if len(catalog) != len(features) {
		return errors.Errorf("content: %d movies but %d feature rows", len(catalog), len(features))
	}
	start := time.Now()
	m.index = dataset.NewIndex()
	m.movies = make([]dataset.Movie, len(catalog))
	copy(m.movies, catalog)
	for _, movie := range catalog {
		m.index.Add(movie.ID)
	}
	// unit rows make cosine a plain dot product
	unit := make([][]float32, len(features))
	for i, row := range features {
		unit[i] = make([]float32, len(row))
		copy(unit[i], row)
		if norm := floats.Norm(unit[i]); norm > 0 {
			floats.MulConst(unit[i], 1/norm)
		}
	}
	m.similarity = make([][]float32, len(catalog))
	for i := range m.similarity {
		m.similarity[i] = make([]float32, len(catalog))
	}
	if err := parallel.Parallel(ctx, len(catalog), config.Jobs, func(_, i int) error {
		for j := i + 1; j < len(catalog); j++ {
			s := floats.Dot(unit[i], unit[j])
			m.similarity[i][j] = s
			m.similarity[j][i] = s
		}
		return nil
	}); err != nil {
		return errors.Trace(err)
	}
	m.fitted = true
	log.Logger().Info("fitted content model",
		zap.Int("n_movies", len(catalog)),
		zap.Duration("elapsed", time.Since(start)))
	return nil
}

// GetSimilar returns the n movies most similar to movieID, excluding the
// movie itself and exclude. Ties keep catalog order. An unknown movie
// yields an empty result.
func (m *Model) GetSimilar(movieID int64, n int, exclude mapset.Set[int64]) ([]model.Recommendation, error) {
	if !m.fitted {
		return nil, model.ErrNotFitted
	}
	row := m.index.ToNumber(movieID)
	if row == dataset.NotID {
		log.Logger().Debug("unknown movie", zap.Int64("movie_id", movieID))
		return nil, nil
	}
	scores := m.similarity[row]
	candidates := make([]int, 0, len(m.movies))
	for i := range m.movies {
		if i == int(row) {
			continue
		}
		if exclude != nil && exclude.Contains(m.movies[i].ID) {
			continue
		}
		candidates = append(candidates, i)
	}
	sort.SliceStable(candidates, func(a, b int) bool {
		return scores[candidates[a]] > scores[candidates[b]]
	})
	if len(candidates) > n {
		candidates = candidates[:n]
	}
	recommendations := make([]model.Recommendation, len(candidates))
	for i, c := range candidates {
		recommendations[i] = model.Recommendation{
			MovieID: m.movies[c].ID,
			Title:   m.movies[c].Title,
			Score:   scores[c],
			Method:  model.MethodContent,
		}
	}
	return recommendations, nil
}

// RecommendForUser scores every unseen movie by the user's signed rating
// weights: score = sum(w * sim) / sum(|sim|) over the rated movies. Users
// without usable history fall back to popularity.
func (m *Model) RecommendForUser(userID int64, rated []model.RatedMovie, n int, exclude mapset.Set[int64]) ([]model.Recommendation, error) {
	if !m.fitted {
		return nil, model.ErrNotFitted
	}
	// copy element-wise: Union would assert the caller's concrete set type
	excluded := mapset.NewThreadUnsafeSet[int64]()
	if exclude != nil {
		exclude.Each(func(id int64) bool {
			excluded.Add(id)
			return false
		})
	}
	known := make([]model.RatedMovie, 0, len(rated))
	for _, r := range rated {
		excluded.Add(r.MovieID)
		if m.index.ToNumber(r.MovieID) != dataset.NotID {
			known = append(known, r)
		}
	}
	if len(known) == 0 {
		log.Logger().Debug("no usable history, falling back to popularity",
			zap.Int64("user_id", userID))
		return model.RankPopular(m.movies, n, excluded), nil
	}
	scores := make([]float32, len(m.movies))
	weightSums := make([]float32, len(m.movies))
	for _, r := range known {
		row := m.similarity[m.index.ToNumber(r.MovieID)]
		weight := (r.Rating - ratingMidpoint) / ratingMidpoint
		floats.MulConstAdd(row, weight, scores)
		for i, s := range row {
			weightSums[i] += math32.Abs(s)
		}
	}
	candidates := make([]int, 0, len(m.movies))
	for i := range m.movies {
		if excluded.Contains(m.movies[i].ID) {
			continue
		}
		if weightSums[i] > 0 {
			scores[i] /= weightSums[i]
		} else {
			scores[i] = 0
		}
		candidates = append(candidates, i)
	}
	sort.SliceStable(candidates, func(a, b int) bool {
		return scores[candidates[a]] > scores[candidates[b]]
	})
	if len(candidates) > n {
		candidates = candidates[:n]
	}
	recommendations := make([]model.Recommendation, len(candidates))
	for i, c := range candidates {
		recommendations[i] = model.Recommendation{
			MovieID: m.movies[c].ID,
			Title:   m.movies[c].Title,
			Score:   scores[c],
			Method:  model.MethodContent,
		}
	}
	return recommendations, nil
}

// Similarity returns the fitted similarity between two movies. The second
// return is false when either movie is unknown or the model is not fitted.
func (m *Model) Similarity(a, b int64) (float32, bool) {
	if !m.fitted {
		return 0, false
	}
	i := m.index.ToNumber(a)
	j := m.index.ToNumber(b)
	if i == dataset.NotID || j == dataset.NotID {
		return 0, false
	}
	return m.similarity[i][j], true
}

// PredictRating predicts the user's rating for movieID as the
// similarity-weighted mean of their ratings over positively similar
// movies.
func (m *Model) PredictRating(userID, movieID int64, rated []model.RatedMovie) (float32, error) {
	if !m.fitted {
		return 0, model.ErrNotFitted
	}
	row := m.index.ToNumber(movieID)
	if row == dataset.NotID {
		return 0, model.ErrNoPrediction
	}
	var numerator, denominator float32
	for _, r := range rated {
		other := m.index.ToNumber(r.MovieID)
		if other == dataset.NotID || other == row {
			continue
		}
		if s := m.similarity[row][other]; s > 0 {
			numerator += s * r.Rating
			denominator += s
		}
	}
	if denominator == 0 {
		return 0, model.ErrNoPrediction
	}
	return model.Clip(numerator / denominator), nil
}

// Marshal writes the fitted model to a binary stream.
func (m *Model) Marshal(w io.Writer) error {
	if !m.fitted {
		return model.ErrNotFitted
	}
	if err := m.index.Marshal(w); err != nil {
		return errors.Trace(err)
	}
	if err := encoding.WriteGob(w, m.movies); err != nil {
		return errors.Trace(err)
	}
	return errors.Trace(encoding.WriteMatrix(w, m.similarity))
}

// Unmarshal reads a fitted model from a binary stream.
func (m *Model) Unmarshal(r io.Reader) error {
	m.index = dataset.NewIndex()
	if err := m.index.Unmarshal(r); err != nil {
		return errors.Trace(err)
	}
	if err := encoding.ReadGob(r, &m.movies); err != nil {
		return errors.Trace(err)
	}
	var err error
	if m.similarity, err = encoding.ReadMatrix(r); err != nil {
		return errors.Trace(err)
	}
	m.fitted = true
	return nil
}
