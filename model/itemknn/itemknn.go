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

// Package itemknn implements item-item collaborative filtering with
// adjusted cosine similarity: item columns are centered by each item's
// mean rating before comparison, so users with different rating scales
// still agree on which items go together.
package itemknn

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
	"github.com/cinerec-io/cinerec/base/heap"
	"github.com/cinerec-io/cinerec/base/log"
	"github.com/cinerec-io/cinerec/base/parallel"
	"github.com/cinerec-io/cinerec/dataset"
	"github.com/cinerec-io/cinerec/model"
)

const (
	// DefaultK is the neighborhood size consulted per prediction.
	DefaultK = 20
	// DefaultMinRatings is the minimum rating count for an item to be
	// fitted at all; colder items are dropped.
	DefaultMinRatings = 5
)

// Model is the item-item KNN model. Fit once, then read-only.
type Model struct {
	K          int
	MinRatings int

	userIndex  *dataset.Index
	movieIndex *dataset.Index
	movies     []dataset.Movie
	titles     map[int64]string
	// ratings[u] holds the user's (dense movie, rating) pairs in dense order.
	ratings    [][]ratedItem
	similarity [][]float32
	fitted     bool
}

type ratedItem struct {
	Movie  int32
	Rating float32
}

func New() *Model {
	return &Model{
		K:          DefaultK,
		MinRatings: DefaultMinRatings,
	}
}

// Fit drops items with fewer than MinRatings ratings, centers the
// remaining item columns by their means and computes pairwise cosine
// similarity of the centered columns.
func (m *Model) Fit(ctx context.Context, ratings []dataset.Rating, catalog []dataset.Movie, config *model.FitConfig) error {
	config = config.LoadDefaultIfNil()
	if len(ratings) == 0 {
		return errors.New("itemknn: empty ratings")
	}
	start := time.Now()
	// count ratings per movie, keep only warm movies
	counts := make(map[int64]int)
	for _, r := range ratings {
		counts[r.MovieID]++
	}
	m.userIndex = dataset.NewIndex()
	m.movieIndex = dataset.NewIndex()
	for _, r := range ratings {
		if counts[r.MovieID] >= m.MinRatings {
			m.userIndex.Add(r.UserID)
			m.movieIndex.Add(r.MovieID)
		}
	}
	numUsers := int(m.userIndex.Len())
	numMovies := int(m.movieIndex.Len())
	if numMovies == 0 {
		return errors.Errorf("itemknn: no movie with at least %d ratings", m.MinRatings)
	}
	m.titles = make(map[int64]string, len(catalog))
	m.movies = nil
	for _, movie := range catalog {
		m.titles[movie.ID] = movie.Title
		if m.movieIndex.ToNumber(movie.ID) != dataset.NotID {
			m.movies = append(m.movies, movie)
		}
	}
	// dense rating matrix over kept movies
	matrix := dataset.NewMatrix(numUsers, numMovies)
	for _, r := range ratings {
		movie := m.movieIndex.ToNumber(r.MovieID)
		if movie == dataset.NotID {
			continue
		}
		matrix.Set(int(m.userIndex.ToNumber(r.UserID)), int(movie), r.Rating)
	}
	m.ratings = make([][]ratedItem, numUsers)
	for u := 0; u < numUsers; u++ {
		for _, j := range matrix.RatedCols(u) {
			m.ratings[u] = append(m.ratings[u], ratedItem{Movie: int32(j), Rating: matrix.Get(u, j)})
		}
	}
	itemMeans := matrix.ColMeans()
	// users who rated each item, for co-rating iteration
	raters := make([][]int32, numMovies)
	for u := 0; u < numUsers; u++ {
		for _, r := range m.ratings[u] {
			raters[r.Movie] = append(raters[r.Movie], int32(u))
		}
	}
	// norms over each item's full centered support: unrated cells are zero
	// after centering, so this is the full-vector norm
	norms := make([]float32, numMovies)
	for j := 0; j < numMovies; j++ {
		var sum float32
		for _, u := range raters[j] {
			d := matrix.Get(int(u), j) - itemMeans[j]
			sum += d * d
		}
		norms[j] = math32.Sqrt(sum)
	}
	m.similarity = make([][]float32, numMovies)
	for i := range m.similarity {
		m.similarity[i] = make([]float32, numMovies)
	}
	if err := parallel.Parallel(ctx, numMovies, config.Jobs, func(_, i int) error {
		for j := i + 1; j < numMovies; j++ {
			s := adjustedCosine(matrix, raters[i], i, j, itemMeans, norms)
			m.similarity[i][j] = s
			m.similarity[j][i] = s
		}
		return nil
	}); err != nil {
		return errors.Trace(err)
	}
	m.fitted = true
	log.Logger().Info("fitted item model",
		zap.Int("n_users", numUsers),
		zap.Int("n_movies", numMovies),
		zap.Int("min_ratings", m.MinRatings),
		zap.Duration("elapsed", time.Since(start)))
	return nil
}

// adjustedCosine compares items i and j after subtracting each item's
// mean rating. The dot product runs over co-rating users (other terms are
// zero) while the norms cover each item's whole rated support, so pairs
// with little shared rating mass are attenuated instead of hitting ±1.
func adjustedCosine(matrix *dataset.Matrix, ratersI []int32, i, j int, itemMeans, norms []float32) float32 {
	if norms[i] == 0 || norms[j] == 0 {
		return 0
	}
	var dot float32
	for _, u := range ratersI {
		if !matrix.Rated(int(u), j) {
			continue
		}
		dot += (matrix.Get(int(u), i) - itemMeans[i]) * (matrix.Get(int(u), j) - itemMeans[j])
	}
	return dot / (norms[i] * norms[j])
}

// PredictRating predicts from the K most similar already-rated items with
// positive similarity, weighted by similarity and clipped to the rating
// range.
func (m *Model) PredictRating(userID, movieID int64) (float32, error) {
	if !m.fitted {
		return 0, model.ErrNotFitted
	}
	user := m.userIndex.ToNumber(userID)
	movie := m.movieIndex.ToNumber(movieID)
	if user == dataset.NotID || movie == dataset.NotID {
		return 0, model.ErrNoPrediction
	}
	return m.predictDense(user, movie)
}

// Recommend scores every fitted movie the user has not rated and is not
// excluded, then returns the top n. Unknown users fall back to popularity
// over the fitted movies.
func (m *Model) Recommend(userID int64, n int, exclude mapset.Set[int64]) ([]model.Recommendation, error) {
	if !m.fitted {
		return nil, model.ErrNotFitted
	}
	user := m.userIndex.ToNumber(userID)
	if user == dataset.NotID {
		log.Logger().Debug("unknown user, falling back to popularity",
			zap.Int64("user_id", userID))
		return model.RankPopular(m.movies, n, exclude), nil
	}
	rated := mapset.NewThreadUnsafeSet[int32]()
	for _, r := range m.ratings[user] {
		rated.Add(r.Movie)
	}
	type scored struct {
		movie int32
		score float32
	}
	var candidates []scored
	for movie := int32(0); movie < m.movieIndex.Len(); movie++ {
		if rated.Contains(movie) {
			continue
		}
		if exclude != nil && exclude.Contains(m.movieIndex.ToID(movie)) {
			continue
		}
		score, err := m.predictDense(user, movie)
		if err != nil {
			continue
		}
		candidates = append(candidates, scored{movie, score})
	}
	sort.SliceStable(candidates, func(a, b int) bool {
		return candidates[a].score > candidates[b].score
	})
	if len(candidates) > n {
		candidates = candidates[:n]
	}
	recommendations := make([]model.Recommendation, len(candidates))
	for i, c := range candidates {
		id := m.movieIndex.ToID(c.movie)
		recommendations[i] = model.Recommendation{
			MovieID: id,
			Title:   m.titles[id],
			Score:   c.score,
			Method:  model.MethodItem,
		}
	}
	return recommendations, nil
}

func (m *Model) predictDense(user, movie int32) (float32, error) {
	filter := heap.NewTopKFilter[ratedItem, float32](m.K)
	for _, r := range m.ratings[user] {
		if r.Movie == movie {
			continue
		}
		if s := m.similarity[movie][r.Movie]; s > 0 {
			filter.Push(r, s)
		}
	}
	var numerator, denominator float32
	for _, elem := range filter.PopAll() {
		numerator += elem.Weight * elem.Value.Rating
		denominator += elem.Weight
	}
	if denominator == 0 {
		return 0, model.ErrNoPrediction
	}
	return model.Clip(numerator / denominator), nil
}

// GetSimilar returns the n movies whose rating patterns are most similar
// to movieID. Unknown movies yield an empty result.
func (m *Model) GetSimilar(movieID int64, n int) ([]model.Recommendation, error) {
	if !m.fitted {
		return nil, model.ErrNotFitted
	}
	movie := m.movieIndex.ToNumber(movieID)
	if movie == dataset.NotID {
		return nil, nil
	}
	scores := m.similarity[movie]
	candidates := make([]int32, 0, len(scores))
	for other := int32(0); other < m.movieIndex.Len(); other++ {
		if other != movie {
			candidates = append(candidates, other)
		}
	}
	sort.SliceStable(candidates, func(a, b int) bool {
		return scores[candidates[a]] > scores[candidates[b]]
	})
	if len(candidates) > n {
		candidates = candidates[:n]
	}
	recommendations := make([]model.Recommendation, len(candidates))
	for i, c := range candidates {
		id := m.movieIndex.ToID(c)
		recommendations[i] = model.Recommendation{
			MovieID: id,
			Title:   m.titles[id],
			Score:   scores[c],
			Method:  model.MethodItem,
		}
	}
	return recommendations, nil
}

// Marshal writes the fitted model to a binary stream.
func (m *Model) Marshal(w io.Writer) error {
	if !m.fitted {
		return model.ErrNotFitted
	}
	if err := encoding.WriteGob(w, m.K); err != nil {
		return errors.Trace(err)
	}
	if err := encoding.WriteGob(w, m.MinRatings); err != nil {
		return errors.Trace(err)
	}
	if err := m.userIndex.Marshal(w); err != nil {
		return errors.Trace(err)
	}
	if err := m.movieIndex.Marshal(w); err != nil {
		return errors.Trace(err)
	}
	if err := encoding.WriteGob(w, m.movies); err != nil {
		return errors.Trace(err)
	}
	if err := encoding.WriteGob(w, m.titles); err != nil {
		return errors.Trace(err)
	}
	if err := encoding.WriteGob(w, m.ratings); err != nil {
		return errors.Trace(err)
	}
	return errors.Trace(encoding.WriteMatrix(w, m.similarity))
}

// Unmarshal reads a fitted model from a binary stream.
func (m *Model) Unmarshal(r io.Reader) error {
	if err := encoding.ReadGob(r, &m.K); err != nil {
		return errors.Trace(err)
	}
	if err := encoding.ReadGob(r, &m.MinRatings); err != nil {
		return errors.Trace(err)
	}
	m.userIndex = dataset.NewIndex()
	if err := m.userIndex.Unmarshal(r); err != nil {
		return errors.Trace(err)
	}
	m.movieIndex = dataset.NewIndex()
	if err := m.movieIndex.Unmarshal(r); err != nil {
		return errors.Trace(err)
	}
	if err := encoding.ReadGob(r, &m.movies); err != nil {
		return errors.Trace(err)
	}
	if err := encoding.ReadGob(r, &m.titles); err != nil {
		return errors.Trace(err)
	}
	if err := encoding.ReadGob(r, &m.ratings); err != nil {
		return errors.Trace(err)
	}
	var err error
	if m.similarity, err = encoding.ReadMatrix(r); err != nil {
		return errors.Trace(err)
	}
	m.fitted = true
	return nil
}
