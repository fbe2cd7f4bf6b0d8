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

package model

import (
	"sort"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/cinerec-io/cinerec/dataset"
)

// RankPopular ranks movies by rating count, breaking ties by average
// rating, and returns the top n not in exclude. All models fall back to
// it for users without usable history.
func RankPopular(movies []dataset.Movie, n int, exclude mapset.Set[int64]) []Recommendation {
	candidates := make([]dataset.Movie, 0, len(movies))
	for _, movie := range movies {
		if exclude != nil && exclude.Contains(movie.ID) {
			continue
		}
		candidates = append(candidates, movie)
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].RatingCount != candidates[j].RatingCount {
			return candidates[i].RatingCount > candidates[j].RatingCount
		}
		return candidates[i].AvgRating > candidates[j].AvgRating
	})
	if len(candidates) > n {
		candidates = candidates[:n]
	}
	recommendations := make([]Recommendation, len(candidates))
	for i, movie := range candidates {
		recommendations[i] = Recommendation{
			MovieID: movie.ID,
			Title:   movie.Title,
			Score:   movie.AvgRating,
			Method:  MethodPopular,
		}
	}
	return recommendations
}
