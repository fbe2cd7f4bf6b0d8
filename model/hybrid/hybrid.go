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

// Package hybrid blends the content, item-item and user-user models into
// one recommender with per-candidate weight renormalization and
// structured explanations.
package hybrid

import (
	"context"
	"io"
	"sort"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/juju/errors"
	"go.uber.org/zap"

	"github.com/cinerec-io/cinerec/base/encoding"
	"github.com/cinerec-io/cinerec/base/log"
	"github.com/cinerec-io/cinerec/dataset"
	"github.com/cinerec-io/cinerec/feature"
	"github.com/cinerec-io/cinerec/model"
	"github.com/cinerec-io/cinerec/model/content"
	"github.com/cinerec-io/cinerec/model/itemknn"
	"github.com/cinerec-io/cinerec/model/userknn"
)

// Default sub-model weights, normalized on construction.
const (
	DefaultContentWeight = float32(0.3)
	DefaultItemWeight    = float32(0.35)
	DefaultUserWeight    = float32(0.35)
)

// explainThreshold is the minimum content similarity for a rated movie to
// appear in an explanation.
const explainThreshold = float32(0.1)

// Model combines the three sub-models. Fit once, then read-only.
type Model struct {
	Content *content.Model
	Item    *itemknn.Model
	User    *userknn.Model

	contentWeight float32
	itemWeight    float32
	userWeight    float32
	histories     map[int64][]model.RatedMovie
	fitted        bool
}

func New() *Model {
	m := &Model{
		Content: content.New(),
		Item:    itemknn.New(),
		User:    userknn.New(),
	}
	_ = m.SetWeights(DefaultContentWeight, DefaultItemWeight, DefaultUserWeight)
	return m
}

// SetWeights replaces the sub-model weights. Any non-negative scale is
// accepted and normalized to sum 1.
func (m *Model) SetWeights(contentWeight, itemWeight, userWeight float32) error {
	if contentWeight < 0 || itemWeight < 0 || userWeight < 0 {
		return errors.New("hybrid: negative weight")
	}
	total := contentWeight + itemWeight + userWeight
	if total == 0 {
		return errors.New("hybrid: all weights are zero")
	}
	m.contentWeight = contentWeight / total
	m.itemWeight = itemWeight / total
	m.userWeight = userWeight / total
	return nil
}

// Weights returns the normalized (content, item, user) weights.
func (m *Model) Weights() (float32, float32, float32) {
	return m.contentWeight, m.itemWeight, m.userWeight
}

// Fit fits all three sub-models on the snapshot and keeps the per-user
// rating histories the content model is driven with.
func (m *Model) Fit(ctx context.Context, ratings []dataset.Rating, catalog []dataset.Movie, features [][]float32, config *model.FitConfig) error {
	start := time.Now()
	if features == nil {
		termMatrix, err := feature.TFIDF(genreDocs(catalog))
		if err != nil {
			return errors.Trace(err)
		}
		features = termMatrix.Rows
	}
	if err := m.Content.Fit(ctx, catalog, features, config); err != nil {
		return errors.Trace(err)
	}
	if err := m.Item.Fit(ctx, ratings, catalog, config); err != nil {
		return errors.Trace(err)
	}
	if err := m.User.Fit(ctx, ratings, catalog, config); err != nil {
		return errors.Trace(err)
	}
	m.histories = make(map[int64][]model.RatedMovie)
	for _, r := range ratings {
		m.histories[r.UserID] = append(m.histories[r.UserID], model.RatedMovie{MovieID: r.MovieID, Rating: r.Rating})
	}
	m.fitted = true
	log.Logger().Info("fitted hybrid model",
		zap.Int("n_ratings", len(ratings)),
		zap.Int("n_movies", len(catalog)),
		zap.Duration("elapsed", time.Since(start)))
	return nil
}

func genreDocs(catalog []dataset.Movie) [][]string {
	docs := make([][]string, len(catalog))
	for i, movie := range catalog {
		docs[i] = movie.Genres
	}
	return docs
}

// candidate accumulates one movie's sub-model scores during a merge.
type candidate struct {
	movieID   int64
	title     string
	weighted  float32
	weightSum float32
}

// merge folds one sub-model's recommendations into the candidate union,
// keeping first-seen order.
func merge(union map[int64]*candidate, order *[]int64, recs []model.Recommendation, weight float32) {
	for _, rec := range recs {
		c, ok := union[rec.MovieID]
		if !ok {
			c = &candidate{movieID: rec.MovieID, title: rec.Title}
			union[rec.MovieID] = c
			*order = append(*order, rec.MovieID)
		}
		c.weighted += rec.Score * weight
		c.weightSum += weight
	}
}

// rank renormalizes each candidate by its contributing weights and
// returns the top n in stable order.
func rank(union map[int64]*candidate, order []int64, n int) []model.Recommendation {
	candidates := make([]*candidate, 0, len(order))
	for _, id := range order {
		c := union[id]
		if c.weightSum > 0 {
			c.weighted /= c.weightSum
		}
		candidates = append(candidates, c)
	}
	sort.SliceStable(candidates, func(a, b int) bool {
		return candidates[a].weighted > candidates[b].weighted
	})
	if len(candidates) > n {
		candidates = candidates[:n]
	}
	recommendations := make([]model.Recommendation, len(candidates))
	for i, c := range candidates {
		recommendations[i] = model.Recommendation{
			MovieID: c.movieID,
			Title:   c.title,
			Score:   c.weighted,
			Method:  model.MethodHybrid,
		}
	}
	return recommendations
}

// Recommend asks each sub-model for 2n candidates, unions them and blends
// scores with per-candidate renormalized weights.
func (m *Model) Recommend(userID int64, n int, exclude mapset.Set[int64]) ([]model.Recommendation, error) {
	if !m.fitted {
		return nil, model.ErrNotFitted
	}
	union := make(map[int64]*candidate)
	var order []int64
	contentRecs, err := m.Content.RecommendForUser(userID, m.histories[userID], 2*n, exclude)
	if err != nil {
		return nil, errors.Trace(err)
	}
	merge(union, &order, contentRecs, m.contentWeight)
	itemRecs, err := m.Item.Recommend(userID, 2*n, exclude)
	if err != nil {
		return nil, errors.Trace(err)
	}
	merge(union, &order, itemRecs, m.itemWeight)
	userRecs, err := m.User.Recommend(userID, 2*n, exclude)
	if err != nil {
		return nil, errors.Trace(err)
	}
	merge(union, &order, userRecs, m.userWeight)
	return rank(union, order, n), nil
}

// GetSimilarMovies unions content and rating-pattern neighborhoods of a
// movie, reweighted over the two contributing sub-models.
func (m *Model) GetSimilarMovies(movieID int64, n int) ([]model.Recommendation, error) {
	if !m.fitted {
		return nil, model.ErrNotFitted
	}
	union := make(map[int64]*candidate)
	var order []int64
	contentRecs, err := m.Content.GetSimilar(movieID, 2*n, nil)
	if err != nil {
		return nil, errors.Trace(err)
	}
	merge(union, &order, contentRecs, m.contentWeight)
	itemRecs, err := m.Item.GetSimilar(movieID, 2*n)
	if err != nil {
		return nil, errors.Trace(err)
	}
	merge(union, &order, itemRecs, m.itemWeight)
	return rank(union, order, n), nil
}

// PredictRating averages the sub-model predictions that exist, weighted
// and renormalized over the contributors; all three abstaining yields
// ErrNoPrediction.
func (m *Model) PredictRating(userID, movieID int64) (float32, error) {
	if !m.fitted {
		return 0, model.ErrNotFitted
	}
	var weighted, weightSum float32
	if pred, err := m.Content.PredictRating(userID, movieID, m.histories[userID]); err == nil {
		weighted += pred * m.contentWeight
		weightSum += m.contentWeight
	} else if !errors.Is(err, model.ErrNoPrediction) {
		return 0, errors.Trace(err)
	}
	if pred, err := m.Item.PredictRating(userID, movieID); err == nil {
		weighted += pred * m.itemWeight
		weightSum += m.itemWeight
	} else if !errors.Is(err, model.ErrNoPrediction) {
		return 0, errors.Trace(err)
	}
	if pred, err := m.User.PredictRating(userID, movieID); err == nil {
		weighted += pred * m.userWeight
		weightSum += m.userWeight
	} else if !errors.Is(err, model.ErrNoPrediction) {
		return 0, errors.Trace(err)
	}
	if weightSum == 0 {
		return 0, model.ErrNoPrediction
	}
	return model.Clip(weighted / weightSum), nil
}

// SimilarRated is one of the user's rated movies that resembles the
// explained movie.
type SimilarRated struct {
	MovieID    int64
	Similarity float32
	Rating     float32
}

// MethodExplanation is one sub-model's contribution to an explanation.
type MethodExplanation struct {
	Method           string
	Weight           float32
	Reason           string
	SimilarMovies    []SimilarRated
	SimilarUserCount int
}

// Explanation tells a user why a movie was recommended.
type Explanation struct {
	MovieID         int64
	Methods         []MethodExplanation
	PredictedRating float32
	HasPrediction   bool
}

// ExplainRecommendation reports each sub-model's contribution: similar
// movies the user rated (content), neighborhood membership (item) and
// similar-user counts (user), plus the blended prediction when defined.
func (m *Model) ExplainRecommendation(userID, movieID int64) (*Explanation, error) {
	if !m.fitted {
		return nil, model.ErrNotFitted
	}
	explanation := &Explanation{MovieID: movieID}
	history := m.histories[userID]
	// content: which rated movies pulled this one in
	if len(history) > 0 {
		similarRated := make([]SimilarRated, 0, len(history))
		for _, rated := range history {
			if sim, ok := m.Content.Similarity(movieID, rated.MovieID); ok && sim > explainThreshold {
				similarRated = append(similarRated, SimilarRated{
					MovieID:    rated.MovieID,
					Similarity: sim,
					Rating:     rated.Rating,
				})
			}
		}
		sort.SliceStable(similarRated, func(a, b int) bool {
			return similarRated[a].Similarity > similarRated[b].Similarity
		})
		if len(similarRated) > 5 {
			similarRated = similarRated[:5]
		}
		explanation.Methods = append(explanation.Methods, MethodExplanation{
			Method:        model.MethodContent,
			Weight:        m.contentWeight,
			Reason:        "similar to movies you liked",
			SimilarMovies: similarRated,
		})
	}
	// item: the movie sits in a rating-pattern neighborhood
	if neighbors, err := m.Item.GetSimilar(movieID, 1); err == nil && len(neighbors) > 0 {
		explanation.Methods = append(explanation.Methods, MethodExplanation{
			Method: model.MethodItem,
			Weight: m.itemWeight,
			Reason: "users who rated your movies also rated this",
		})
	}
	// user: similar users recommend it
	if neighbors, err := m.User.GetSimilarUsers(userID, 5); err == nil && len(neighbors) > 0 {
		explanation.Methods = append(explanation.Methods, MethodExplanation{
			Method:           model.MethodUser,
			Weight:           m.userWeight,
			Reason:           "recommended by users similar to you",
			SimilarUserCount: len(neighbors),
		})
	}
	if pred, err := m.PredictRating(userID, movieID); err == nil {
		explanation.PredictedRating = pred
		explanation.HasPrediction = true
	} else if !errors.Is(err, model.ErrNoPrediction) {
		return nil, errors.Trace(err)
	}
	return explanation, nil
}

// Marshal writes the fitted model and its sub-models to a binary stream.
func (m *Model) Marshal(w io.Writer) error {
	if !m.fitted {
		return model.ErrNotFitted
	}
	weights := []float32{m.contentWeight, m.itemWeight, m.userWeight}
	if err := encoding.WriteGob(w, weights); err != nil {
		return errors.Trace(err)
	}
	if err := encoding.WriteGob(w, m.histories); err != nil {
		return errors.Trace(err)
	}
	if err := m.Content.Marshal(w); err != nil {
		return errors.Trace(err)
	}
	if err := m.Item.Marshal(w); err != nil {
		return errors.Trace(err)
	}
	return errors.Trace(m.User.Marshal(w))
}

// Unmarshal reads a fitted model from a binary stream.
func (m *Model) Unmarshal(r io.Reader) error {
	var weights []float32
	if err := encoding.ReadGob(r, &weights); err != nil {
		return errors.Trace(err)
	}
	if len(weights) != 3 {
		return errors.Errorf("hybrid: expected 3 weights, got %d", len(weights))
	}
	m.contentWeight, m.itemWeight, m.userWeight = weights[0], weights[1], weights[2]
	if err := encoding.ReadGob(r, &m.histories); err != nil {
		return errors.Trace(err)
	}
	m.Content = content.New()
	if err := m.Content.Unmarshal(r); err != nil {
		return errors.Trace(err)
	}
	m.Item = itemknn.New()
	if err := m.Item.Unmarshal(r); err != nil {
		return errors.Trace(err)
	}
	m.User = userknn.New()
	if err := m.User.Unmarshal(r); err != nil {
		return errors.Trace(err)
	}
	m.fitted = true
	return nil
}
