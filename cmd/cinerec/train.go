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

package main

import (
	"context"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/cinerec-io/cinerec/base/log"
	"github.com/cinerec-io/cinerec/dataset"
	"github.com/cinerec-io/cinerec/feature"
	"github.com/cinerec-io/cinerec/model"
	"github.com/cinerec-io/cinerec/model/hybrid"
	"github.com/cinerec-io/cinerec/registry"
	"github.com/cinerec-io/cinerec/storage/local"
)

var trainCommand = &cobra.Command{
	Use:   "train",
	Short: "Fit all models, evaluate them on a held-out split and save them to the local cache.",
	Run: func(cmd *cobra.Command, args []string) {
		conf := setup(cmd)
		ctx := context.Background()

		// load snapshot
		snapshot, err := loadSnapshot(ctx, conf)
		if err != nil {
			log.Logger().Fatal("failed to load snapshot", zap.Error(err))
		}
		movies := snapshot.Movies()
		log.Logger().Info("snapshot loaded",
			zap.Int("n_movies", snapshot.CountMovies()),
			zap.Int("n_users", snapshot.CountUsers()),
			zap.Int("n_ratings", snapshot.CountRatings()))
		trainRatings, testRatings := dataset.Split(snapshot.Ratings(), conf.Data.TestRatio, conf.Data.Seed)

		// build content features
		var embedder feature.Embedder
		if conf.Feature.EmbeddingBaseURL != "" {
			embedder = feature.NewOpenAIEmbedder(
				conf.Feature.EmbeddingBaseURL,
				conf.Feature.EmbeddingAuthToken,
				conf.Feature.EmbeddingModel)
		}
		features, err := feature.BuildFeatures(ctx, movies, embedder, conf.Feature.BlendWeight)
		if err != nil {
			log.Logger().Fatal("failed to build features", zap.Error(err))
		}

		// fit models
		m := hybrid.New()
		if err = m.SetWeights(conf.HybridWeights()); err != nil {
			log.Logger().Fatal("invalid weights", zap.Error(err))
		}
		m.Item.K = conf.Recommend.NumNeighbors
		m.Item.MinRatings = conf.Recommend.MinRatings
		m.User.K = conf.Recommend.NumNeighbors
		m.User.MinCommon = conf.Recommend.MinCommon
		fitStart := time.Now()
		if err = m.Fit(ctx, trainRatings, movies, features, conf.FitConfig()); err != nil {
			log.Logger().Fatal("failed to fit models", zap.Error(err))
		}
		log.Logger().Info("fit complete",
			zap.Duration("fit_time", time.Since(fitStart)),
			zap.Int("n_train", len(trainRatings)),
			zap.Int("n_test", len(testRatings)))

		// evaluate on the held-out split
		modelVersion := time.Now().Unix()
		reg := registry.New()
		reg.Store(model.MethodHybrid, m, modelVersion)
		reg.Store(model.MethodItem, m.Item, modelVersion)
		reg.Store(model.MethodUser, m.User, modelVersion)
		results := evaluateModels(reg, testRatings, trainRatings, conf)
		printMetrics(results, conf.Evaluate.KValues)

		// save blobs
		cache := local.NewCache(conf.Local.CacheDir)
		blobs := map[string]local.Marshaler{
			model.MethodHybrid:  m,
			model.MethodItem:    m.Item,
			model.MethodUser:    m.User,
			model.MethodContent: m.Content,
		}
		bar := progressbar.Default(int64(len(blobs)), "save models")
		for name, blob := range blobs {
			if err = cache.Save(name, modelVersion, blob); err != nil {
				log.Logger().Fatal("failed to save model",
					zap.String("model", name), zap.Error(err))
			}
			_ = bar.Add(1)
		}
		log.Logger().Info("models saved",
			zap.String("cache_dir", conf.Local.CacheDir),
			zap.Int64("version", modelVersion))
	},
}
