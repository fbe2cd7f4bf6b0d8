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

// Package eval computes offline evaluation metrics: rating accuracy
// (RMSE, MAE) over predictable test pairs and ranking quality
// (precision, recall, F1, NDCG, hit rate) averaged over test users,
// plus catalog coverage.
package eval

import (
	"math/rand"
	"sort"

	"github.com/chewxy/math32"
	mapset "github.com/deckarep/golang-set/v2"
	"github.com/juju/errors"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/cinerec-io/cinerec/base/log"
	"github.com/cinerec-io/cinerec/base/parallel"
	"github.com/cinerec-io/cinerec/dataset"
	"github.com/cinerec-io/cinerec/model"
)

// DefaultThreshold is the rating at which a test movie counts as relevant.
const DefaultThreshold = float32(3.5)

// DefaultKValues are the ranking cutoffs evaluated by default.
var DefaultKValues = []int{5, 10, 20}

// RMSE is the root mean squared error over paired ratings.
func RMSE(truth, pred []float32) float32 {
	if len(truth) == 0 {
		return 0
	}
	var sum float32
	for i := range truth {
		diff := truth[i] - pred[i]
		sum += diff * diff
	}
	return math32.Sqrt(sum / float32(len(truth)))
}

// MAE is the mean absolute error over paired ratings.
func MAE(truth, pred []float32) float32 {
	if len(truth) == 0 {
		return 0
	}
	var sum float32
	for i := range truth {
		sum += math32.Abs(truth[i] - pred[i])
	}
	return sum / float32(len(truth))
}

// Precision is the fraction of the top k recommendations that are relevant.
func Precision(recommended []int64, relevant mapset.Set[int64], k int) float32 {
	if k <= 0 {
		return 0
	}
	return float32(hits(recommended, relevant, k)) / float32(k)
}

// Recall is the fraction of relevant movies found in the top k.
func Recall(recommended []int64, relevant mapset.Set[int64], k int) float32 {
	if relevant.Cardinality() == 0 {
		return 0
	}
	return float32(hits(recommended, relevant, k)) / float32(relevant.Cardinality())
}

// F1 is the harmonic mean of precision and recall, zero when both are zero.
func F1(precision, recall float32) float32 {
	if precision+recall == 0 {
		return 0
	}
	return 2 * precision * recall / (precision + recall)
}

// NDCG is the normalized discounted cumulative gain with graded gains
// 2^rating - 1 and a log2 position discount. Zero when the ideal ordering
// has no gain.
func NDCG(recommended []int64, relevance map[int64]float32, k int) float32 {
	if k > len(recommended) {
		k = len(recommended)
	}
	var dcg float32
	for i := 0; i < k; i++ {
		if rel, ok := relevance[recommended[i]]; ok {
			dcg += (math32.Pow(2, rel) - 1) / math32.Log2(float32(i)+2)
		}
	}
	ideal := make([]float32, 0, len(relevance))
	for _, rel := range relevance {
		ideal = append(ideal, rel)
	}
	sort.Slice(ideal, func(i, j int) bool { return ideal[i] > ideal[j] })
	if len(ideal) > k {
		ideal = ideal[:k]
	}
	var idcg float32
	for i, rel := range ideal {
		idcg += (math32.Pow(2, rel) - 1) / math32.Log2(float32(i)+2)
	}
	if idcg == 0 {
		return 0
	}
	return dcg / idcg
}

// HitRate is 1 when any of the top k recommendations is relevant.
func HitRate(recommended []int64, relevant mapset.Set[int64], k int) float32 {
	if hits(recommended, relevant, k) > 0 {
		return 1
	}
	return 0
}

// Coverage is the fraction of the catalog that was ever recommended.
func Coverage(recommended, catalog mapset.Set[int64]) float32 {
	if catalog.Cardinality() == 0 {
		return 0
	}
	return float32(recommended.Intersect(catalog).Cardinality()) / float32(catalog.Cardinality())
}

func hits(recommended []int64, relevant mapset.Set[int64], k int) int {
	if k > len(recommended) {
		k = len(recommended)
	}
	count := 0
	for _, id := range recommended[:k] {
		if relevant.Contains(id) {
			count++
		}
	}
	return count
}

// Metrics is the result of one evaluation run. Ranking metrics are keyed
// by cutoff k.
type Metrics struct {
	RMSE      float32
	MAE       float32
	Coverage  float32
	Precision map[int]float32
	Recall    map[int]float32
	F1        map[int]float32
	NDCG      map[int]float32
	HitRate   map[int]float32
	// NumUsers counts test users that produced recommendations;
	// NumPairs counts predictable rating pairs.
	NumUsers int
	NumPairs int
}

// Evaluate runs a fitted recommender over a test split. Train ratings are
// excluded from recommendations. Per-user prediction or recommendation
// failures are skipped, never fatal.
func Evaluate(rec model.Recommender, test, train []dataset.Rating, kValues []int, threshold float32) (*Metrics, error) {
	if len(test) == 0 {
		return nil, errors.New("eval: empty test set")
	}
	if len(kValues) == 0 {
		kValues = DefaultKValues
	}
	maxK := lo.Max(kValues)
	testByUser := lo.GroupBy(test, func(r dataset.Rating) int64 { return r.UserID })
	trainByUser := make(map[int64][]int64)
	catalog := mapset.NewThreadUnsafeSet[int64]()
	for _, r := range train {
		trainByUser[r.UserID] = append(trainByUser[r.UserID], r.MovieID)
		catalog.Add(r.MovieID)
	}
	// stable user order keeps runs reproducible
	users := lo.Keys(testByUser)
	sort.Slice(users, func(i, j int) bool { return users[i] < users[j] })

	var truth, pred []float32
	perK := make(map[int]*kAccumulator, len(kValues))
	for _, k := range kValues {
		perK[k] = &kAccumulator{}
	}
	recommendedSet := mapset.NewThreadUnsafeSet[int64]()
	evaluatedUsers := 0
	for _, user := range users {
		userTest := testByUser[user]
		relevant := mapset.NewThreadUnsafeSet[int64]()
		relevance := make(map[int64]float32, len(userTest))
		for _, r := range userTest {
			relevance[r.MovieID] = r.Rating
			if r.Rating >= threshold {
				relevant.Add(r.MovieID)
			}
		}
		// rating accuracy over predictable pairs
		for _, r := range userTest {
			if p, err := rec.PredictRating(user, r.MovieID); err == nil {
				truth = append(truth, r.Rating)
				pred = append(pred, p)
			}
		}
		// ranking metrics over unseen movies
		exclude := mapset.NewThreadUnsafeSet[int64](trainByUser[user]...)
		recommendations, err := rec.Recommend(user, maxK, exclude)
		if err != nil {
			log.Logger().Debug("skipping user in evaluation",
				zap.Int64("user_id", user), zap.Error(err))
			continue
		}
		recommended := lo.Map(recommendations, func(r model.Recommendation, _ int) int64 {
			return r.MovieID
		})
		recommendedSet.Append(recommended...)
		for _, k := range kValues {
			acc := perK[k]
			acc.precision += Precision(recommended, relevant, k)
			acc.recall += Recall(recommended, relevant, k)
			acc.ndcg += NDCG(recommended, relevance, k)
			acc.hitRate += HitRate(recommended, relevant, k)
		}
		evaluatedUsers++
	}
	metrics := &Metrics{
		RMSE:      RMSE(truth, pred),
		MAE:       MAE(truth, pred),
		Coverage:  Coverage(recommendedSet, catalog),
		Precision: make(map[int]float32, len(kValues)),
		Recall:    make(map[int]float32, len(kValues)),
		F1:        make(map[int]float32, len(kValues)),
		NDCG:      make(map[int]float32, len(kValues)),
		HitRate:   make(map[int]float32, len(kValues)),
		NumUsers:  evaluatedUsers,
		NumPairs:  len(truth),
	}
	for _, k := range kValues {
		acc := perK[k]
		if evaluatedUsers > 0 {
			metrics.Precision[k] = acc.precision / float32(evaluatedUsers)
			metrics.Recall[k] = acc.recall / float32(evaluatedUsers)
			metrics.NDCG[k] = acc.ndcg / float32(evaluatedUsers)
			metrics.HitRate[k] = acc.hitRate / float32(evaluatedUsers)
		}
		metrics.F1[k] = F1(metrics.Precision[k], metrics.Recall[k])
	}
	return metrics, nil
}

type kAccumulator struct {
	precision float32
	recall    float32
	ndcg      float32
	hitRate   float32
}

// FitFunc fits a fresh recommender on a train split.
type FitFunc func(train []dataset.Rating) (model.Recommender, error)

// CrossValidate shuffles the ratings into kFolds folds and lets each fold
// serve once as the test set against a freshly fitted model. Fit errors
// are fatal; per-user failures inside a fold follow Evaluate's rules.
func CrossValidate(fit FitFunc, ratings []dataset.Rating, kFolds int, seed int64, kValues []int, threshold float32) ([]*Metrics, error) {
	if kFolds < 2 {
		return nil, errors.Errorf("eval: need at least 2 folds, got %d", kFolds)
	}
	if len(ratings) < kFolds {
		return nil, errors.Errorf("eval: %d ratings cannot fill %d folds", len(ratings), kFolds)
	}
	perm := rand.New(rand.NewSource(seed)).Perm(len(ratings))
	foldOf := make([]int, len(ratings))
	for f, positions := range parallel.Split(len(ratings), kFolds) {
		for _, p := range positions {
			foldOf[perm[p]] = f
		}
	}
	results := make([]*Metrics, 0, kFolds)
	for f := 0; f < kFolds; f++ {
		train := make([]dataset.Rating, 0, len(ratings))
		test := make([]dataset.Rating, 0, len(ratings)/kFolds+1)
		for i, r := range ratings {
			if foldOf[i] == f {
				test = append(test, r)
			} else {
				train = append(train, r)
			}
		}
		rec, err := fit(train)
		if err != nil {
			return nil, errors.Trace(err)
		}
		metrics, err := Evaluate(rec, test, train, kValues, threshold)
		if err != nil {
			return nil, errors.Trace(err)
		}
		results = append(results, metrics)
	}
	return results, nil
}
