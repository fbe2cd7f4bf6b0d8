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

// Package userknn implements user-user collaborative filtering. Users are
// compared by cosine similarity of their mean-centered rating rows, which
// is Pearson correlation over co-rated movies; pairs sharing fewer than
// MinCommon movies are pruned to zero.
package userknn

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
	// DefaultMinCommon is the minimum number of co-rated movies for a
	// user pair to carry similarity at all.
	DefaultMinCommon = 3
)

// Model is the user-user KNN model. Fit once, then read-only.
type Model struct {
	K         int
	MinCommon int

	userIndex  *dataset.Index
	movieIndex *dataset.Index
	movies     []dataset.Movie
	titles     map[int64]string
	userMeans  []float32
	// ratings[u] holds the user's (dense movie, rating) pairs.
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
		K:         DefaultK,
		MinCommon: DefaultMinCommon,
	}
}

// Fit computes per-user mean ratings and the pairwise mean-centered cosine
// similarity, zeroing pairs with fewer than MinCommon co-rated movies.
func (m *Model) Fit(ctx context.Context, ratings []dataset.Rating, catalog []dataset.Movie, config *model.FitConfig) error {
	config = config.LoadDefaultIfNil()
	if len(ratings) == 0 {
		return errors.New("userknn: empty ratings")
	}
	start := time.Now()
	m.userIndex = dataset.NewIndex()
	m.movieIndex = dataset.NewIndex()
	for _, r := range ratings {
		m.userIndex.Add(r.UserID)
		m.movieIndex.Add(r.MovieID)
	}
	numUsers := int(m.userIndex.Len())
	numMovies := int(m.movieIndex.Len())
	m.titles = make(map[int64]string, len(catalog))
	m.movies = make([]dataset.Movie, len(catalog))
	copy(m.movies, catalog)
	for _, movie := range catalog {
		m.titles[movie.ID] = movie.Title
	}
	matrix := dataset.NewMatrix(numUsers, numMovies)
	for _, r := range ratings {
		matrix.Set(int(m.userIndex.ToNumber(r.UserID)), int(m.movieIndex.ToNumber(r.MovieID)), r.Rating)
	}
	m.userMeans = matrix.RowMeans()
	m.ratings = make([][]ratedItem, numUsers)
	for u := 0; u < numUsers; u++ {
		for _, j := range matrix.RatedCols(u) {
			m.ratings[u] = append(m.ratings[u], ratedItem{Movie: int32(j), Rating: matrix.Get(u, j)})
		}
	}
	// norms over each user's full centered row: unrated cells are zero
	// after centering, so this is the full-vector norm
	norms := make([]float32, numUsers)
	for u := 0; u < numUsers; u++ {
		var sum float32
		for _, r := range m.ratings[u] {
			d := r.Rating - m.userMeans[u]
			sum += d * d
		}
		norms[u] = math32.Sqrt(sum)
	}
	m.similarity = make([][]float32, numUsers)
	for i := range m.similarity {
		m.similarity[i] = make([]float32, numUsers)
	}
	if err := parallel.Parallel(ctx, numUsers, config.Jobs, func(_, u int) error {
		for v := u + 1; v < numUsers; v++ {
			s := m.centeredCosine(matrix, norms, u, v)
			m.similarity[u][v] = s
			m.similarity[v][u] = s
		}
		return nil
	}); err != nil {
		return errors.Trace(err)
	}
	m.fitted = true
	log.Logger().Info("fitted user model",
		zap.Int("n_users", numUsers),
		zap.Int("n_movies", numMovies),
		zap.Int("min_common", m.MinCommon),
		zap.Duration("elapsed", time.Since(start)))
	return nil
}

// centeredCosine compares users u and v after subtracting each user's
// mean. The dot product runs over co-rated movies (other terms are zero)
// while the norms cover each user's whole rated row, so thin overlaps are
// attenuated; pairs below MinCommon co-rated movies are zeroed outright.
func (m *Model) centeredCosine(matrix *dataset.Matrix, norms []float32, u, v int) float32 {
	if norms[u] == 0 || norms[v] == 0 {
		return 0
	}
	var dot float32
	common := 0
	for _, r := range m.ratings[u] {
		if !matrix.Rated(v, int(r.Movie)) {
			continue
		}
		common++
		dot += (r.Rating - m.userMeans[u]) * (matrix.Get(v, int(r.Movie)) - m.userMeans[v])
	}
	if common < m.MinCommon {
		return 0
	}
	return dot / (norms[u] * norms[v])
}

// PredictRating predicts the user's mean plus the similarity-weighted mean
// deviation of up to K positively similar neighbors who rated the movie.
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

func (m *Model) predictDense(user, movie int32) (float32, error) {
	filter := heap.NewTopKFilter[int32, float32](m.K)
	for neighbor := int32(0); neighbor < m.userIndex.Len(); neighbor++ {
		if neighbor == user {
			continue
		}
		s := m.similarity[user][neighbor]
		if s <= 0 {
			continue
		}
		if _, ok := m.ratingOf(neighbor, movie); ok {
			filter.Push(neighbor, s)
		}
	}
	var numerator, denominator float32
	for _, elem := range filter.PopAll() {
		r, _ := m.ratingOf(elem.Value, movie)
		numerator += elem.Weight * (r - m.userMeans[elem.Value])
		denominator += elem.Weight
	}
	if denominator == 0 {
		return 0, model.ErrNoPrediction
	}
	return model.Clip(m.userMeans[user] + numerator/denominator), nil
}

func (m *Model) ratingOf(user, movie int32) (float32, bool) {
	for _, r := range m.ratings[user] {
		if r.Movie == movie {
			return r.Rating, true
		}
	}
	return 0, false
}

// Recommend scores the movies rated by the user's positively similar
// neighbors, skipping the user's own. Unknown users fall back to
// popularity.
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
	// candidate movies: anything a positively similar neighbor rated
	candidateSet := mapset.NewThreadUnsafeSet[int32]()
	for neighbor := int32(0); neighbor < m.userIndex.Len(); neighbor++ {
		if neighbor == user || m.similarity[user][neighbor] <= 0 {
			continue
		}
		for _, r := range m.ratings[neighbor] {
			if !rated.Contains(r.Movie) {
				candidateSet.Add(r.Movie)
			}
		}
	}
	type scored struct {
		movie int32
		score float32
	}
	candidates := make([]scored, 0, candidateSet.Cardinality())
	for movie := int32(0); movie < m.movieIndex.Len(); movie++ {
		if !candidateSet.Contains(movie) {
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
			Method:  model.MethodUser,
		}
	}
	return recommendations, nil
}

// GetSimilarUsers returns the n users most similar to userID. Unknown
// users yield an empty result.
func (m *Model) GetSimilarUsers(userID int64, n int) ([]heap.Elem[int64, float32], error) {
	if !m.fitted {
		return nil, model.ErrNotFitted
	}
	user := m.userIndex.ToNumber(userID)
	if user == dataset.NotID {
		return nil, nil
	}
	filter := heap.NewTopKFilter[int64, float32](n)
	for neighbor := int32(0); neighbor < m.userIndex.Len(); neighbor++ {
		if neighbor == user {
			continue
		}
		if s := m.similarity[user][neighbor]; s > 0 {
			filter.Push(m.userIndex.ToID(neighbor), s)
		}
	}
	return filter.PopAll(), nil
}

// Marshal writes the fitted model to a binary stream.
func (m *Model) Marshal(w io.Writer) error {
	if !m.fitted {
		return model.ErrNotFitted
	}
	if err := encoding.WriteGob(w, m.K); err != nil {
		return errors.Trace(err)
	}
	if err := encoding.WriteGob(w, m.MinCommon); err != nil {
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
	if err := encoding.WriteGob(w, m.userMeans); err != nil {
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
	if err := encoding.ReadGob(r, &m.MinCommon); err != nil {
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
	if err := encoding.ReadGob(r, &m.userMeans); err != nil {
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
