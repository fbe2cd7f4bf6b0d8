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

// Package config loads engine configuration from TOML with environment
// variable overrides.
package config

import (
	mapstructure "github.com/go-viper/mapstructure/v2"
	"github.com/juju/errors"
	"github.com/spf13/viper"

	"github.com/cinerec-io/cinerec/model"
	"github.com/cinerec-io/cinerec/model/eval"
	"github.com/cinerec-io/cinerec/model/hybrid"
	"github.com/cinerec-io/cinerec/model/itemknn"
	"github.com/cinerec-io/cinerec/model/userknn"
)

// Config is the configuration for the recommendation engine.
type Config struct {
	Database  DatabaseConfig  `mapstructure:"database"`
	Data      DataConfig      `mapstructure:"data"`
	Recommend RecommendConfig `mapstructure:"recommend"`
	Feature   FeatureConfig   `mapstructure:"feature"`
	Evaluate  EvaluateConfig  `mapstructure:"evaluate"`
	Local     LocalConfig     `mapstructure:"local"`
	Jobs      int             `mapstructure:"jobs" validate:"gt=0"`
}

// DatabaseConfig points at the snapshot source. An empty data store means
// movies and ratings come from the CSV files instead.
type DatabaseConfig struct {
	DataStore string `mapstructure:"data_store" validate:"omitempty,startswith=mongodb"`
}

// DataConfig locates the CSV snapshot and controls the held-out split.
type DataConfig struct {
	MoviesCSV  string  `mapstructure:"movies_csv"`
	RatingsCSV string  `mapstructure:"ratings_csv"`
	TestRatio  float64 `mapstructure:"test_ratio" validate:"gt=0,lt=1"`
	Seed       int64   `mapstructure:"seed"`
}

// RecommendConfig holds the model hyper-parameters.
type RecommendConfig struct {
	ContentWeight float32 `mapstructure:"content_weight" validate:"gte=0"`
	ItemWeight    float32 `mapstructure:"item_weight" validate:"gte=0"`
	UserWeight    float32 `mapstructure:"user_weight" validate:"gte=0"`
	NumNeighbors  int     `mapstructure:"num_neighbors" validate:"gt=0"`
	MinRatings    int     `mapstructure:"min_ratings" validate:"gt=0"`
	MinCommon     int     `mapstructure:"min_common" validate:"gt=0"`
}

// FeatureConfig controls the content feature build. An empty base URL
// disables embeddings so features are TF-IDF only.
type FeatureConfig struct {
	EmbeddingBaseURL   string  `mapstructure:"embedding_base_url"`
	EmbeddingAuthToken string  `mapstructure:"embedding_auth_token"`
	EmbeddingModel     string  `mapstructure:"embedding_model"`
	BlendWeight        float32 `mapstructure:"blend_weight" validate:"gte=0,lte=1"`
}

// EvaluateConfig controls offline evaluation.
type EvaluateConfig struct {
	KValues   []int   `mapstructure:"k_values" validate:"min=1,dive,gt=0"`
	Threshold float32 `mapstructure:"threshold" validate:"gt=0"`
}

// LocalConfig locates the fitted-model blob cache.
type LocalConfig struct {
	CacheDir string `mapstructure:"cache_dir" validate:"required"`
}

// GetDefaultConfig returns a default config, matching setDefault.
func GetDefaultConfig() *Config {
	return &Config{
		Data: DataConfig{
			MoviesCSV:  "data/movies.csv",
			RatingsCSV: "data/ratings.csv",
			TestRatio:  0.2,
			Seed:       42,
		},
		Recommend: RecommendConfig{
			ContentWeight: hybrid.DefaultContentWeight,
			ItemWeight:    hybrid.DefaultItemWeight,
			UserWeight:    hybrid.DefaultUserWeight,
			NumNeighbors:  itemknn.DefaultK,
			MinRatings:    itemknn.DefaultMinRatings,
			MinCommon:     userknn.DefaultMinCommon,
		},
		Feature: FeatureConfig{
			EmbeddingModel: "text-embedding-3-small",
			BlendWeight:    0.5,
		},
		Evaluate: EvaluateConfig{
			KValues:   eval.DefaultKValues,
			Threshold: eval.DefaultThreshold,
		},
		Local: LocalConfig{
			CacheDir: "cinerec_cache",
		},
		Jobs: 1,
	}
}

func setDefault() {
	defaultConfig := GetDefaultConfig()
	viper.SetDefault("data.movies_csv", defaultConfig.Data.MoviesCSV)
	viper.SetDefault("data.ratings_csv", defaultConfig.Data.RatingsCSV)
	viper.SetDefault("data.test_ratio", defaultConfig.Data.TestRatio)
	viper.SetDefault("data.seed", defaultConfig.Data.Seed)
	viper.SetDefault("recommend.content_weight", defaultConfig.Recommend.ContentWeight)
	viper.SetDefault("recommend.item_weight", defaultConfig.Recommend.ItemWeight)
	viper.SetDefault("recommend.user_weight", defaultConfig.Recommend.UserWeight)
	viper.SetDefault("recommend.num_neighbors", defaultConfig.Recommend.NumNeighbors)
	viper.SetDefault("recommend.min_ratings", defaultConfig.Recommend.MinRatings)
	viper.SetDefault("recommend.min_common", defaultConfig.Recommend.MinCommon)
	viper.SetDefault("feature.embedding_model", defaultConfig.Feature.EmbeddingModel)
	viper.SetDefault("feature.blend_weight", defaultConfig.Feature.BlendWeight)
	viper.SetDefault("evaluate.k_values", defaultConfig.Evaluate.KValues)
	viper.SetDefault("evaluate.threshold", defaultConfig.Evaluate.Threshold)
	viper.SetDefault("local.cache_dir", defaultConfig.Local.CacheDir)
	viper.SetDefault("jobs", defaultConfig.Jobs)
}

type configBinding struct {
	key string
	env string
}

func bindEnv() {
	bindings := []configBinding{
		{"database.data_store", "CINEREC_DATA_STORE"},
		{"data.movies_csv", "CINEREC_MOVIES_CSV"},
		{"data.ratings_csv", "CINEREC_RATINGS_CSV"},
		{"feature.embedding_base_url", "CINEREC_EMBEDDING_BASE_URL"},
		{"feature.embedding_auth_token", "CINEREC_EMBEDDING_AUTH_TOKEN"},
		{"local.cache_dir", "CINEREC_CACHE_DIR"},
		{"jobs", "CINEREC_JOBS"},
	}
	for _, binding := range bindings {
		err := viper.BindEnv(binding.key, binding.env)
		if err != nil {
			panic(err)
		}
	}
}

// LoadConfig loads and validates the configuration from a TOML file.
func LoadConfig(path string) (*Config, error) {
	setDefault()
	bindEnv()
	viper.SetConfigType("toml")
	viper.SetConfigFile(path)
	if err := viper.ReadInConfig(); err != nil {
		return nil, errors.Trace(err)
	}
	var conf Config
	if err := viper.Unmarshal(&conf, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))); err != nil {
		return nil, errors.Trace(err)
	}
	if err := conf.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	return &conf, nil
}

// HybridWeights returns the configured combiner weights.
func (config *Config) HybridWeights() (content, item, user float32) {
	return config.Recommend.ContentWeight, config.Recommend.ItemWeight, config.Recommend.UserWeight
}

// FitConfig builds the shared fit options from the config.
func (config *Config) FitConfig() *model.FitConfig {
	return model.NewFitConfig().SetJobs(config.Jobs)
}
