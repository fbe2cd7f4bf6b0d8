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

// Package model defines the types shared by all recommendation models:
// recommendations, the error taxonomy, fit options and the popularity
// fallback ranking.
package model

import (
	"io"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/juju/errors"

	"github.com/cinerec-io/cinerec/dataset"
)

var (
	// ErrNotFitted is returned by any query on a model before Fit.
	ErrNotFitted = errors.New("model is not fitted")
	// ErrNoPrediction is returned when a model cannot produce a rating
	// prediction for a (user, movie) pair. Zero is never used as an
	// absence sentinel in outputs.
	ErrNoPrediction = errors.New("no prediction available")
)

// Method tags carried on recommendations.
const (
	MethodContent = "content_based"
	MethodItem    = "item_based"
	MethodUser    = "user_based"
	MethodHybrid  = "hybrid"
	MethodPopular = "popular"
)

// Recommendation is one scored movie.
type Recommendation struct {
	MovieID int64
	Title   string
	Score   float32
	Method  string
}

// RatedMovie is one entry of a user's rating history passed to stateless
// models.
type RatedMovie struct {
	MovieID int64
	Rating  float32
}

// Recommender is the contract the evaluator and the registry drive. All
// fitted models implement it.
type Recommender interface {
	PredictRating(userID, movieID int64) (float32, error)
	Recommend(userID int64, n int, exclude mapset.Set[int64]) ([]Recommendation, error)
	Marshal(w io.Writer) error
	Unmarshal(r io.Reader) error
}

// FitConfig carries fitting options.
type FitConfig struct {
	Jobs    int
	Verbose int
}

func NewFitConfig() *FitConfig {
	return &FitConfig{
		Jobs:    1,
		Verbose: 10,
	}
}

func (config *FitConfig) SetVerbose(verbose int) *FitConfig {
	config.Verbose = verbose
	return config
}

func (config *FitConfig) SetJobs(jobs int) *FitConfig {
	config.Jobs = jobs
	return config
}

// LoadDefaultIfNil returns defaults for a nil config.
func (config *FitConfig) LoadDefaultIfNil() *FitConfig {
	if config == nil {
		return NewFitConfig()
	}
	return config
}

// Clip bounds a predicted rating to the valid rating range.
func Clip(rating float32) float32 {
	if rating < dataset.MinRating {
		return dataset.MinRating
	}
	if rating > dataset.MaxRating {
		return dataset.MaxRating
	}
	return rating
}
