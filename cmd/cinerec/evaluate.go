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
	"fmt"
	"os"

	"github.com/olekukonko/tablewriter"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/cinerec-io/cinerec/base/log"
	"github.com/cinerec-io/cinerec/config"
	"github.com/cinerec-io/cinerec/dataset"
	"github.com/cinerec-io/cinerec/model"
	"github.com/cinerec-io/cinerec/model/eval"
	"github.com/cinerec-io/cinerec/model/hybrid"
	"github.com/cinerec-io/cinerec/registry"
	"github.com/cinerec-io/cinerec/storage/local"
)

// evaluatedModels is the fixed report order.
var evaluatedModels = []string{model.MethodHybrid, model.MethodItem, model.MethodUser}

var evaluateCommand = &cobra.Command{
	Use:   "evaluate",
	Short: "Evaluate saved models on the held-out split.",
	Run: func(cmd *cobra.Command, args []string) {
		conf := setup(cmd)
		ctx := context.Background()

		// The split is deterministic, so the same seed reproduces the
		// held-out set the models were trained against.
		snapshot, err := loadSnapshot(ctx, conf)
		if err != nil {
			log.Logger().Fatal("failed to load snapshot", zap.Error(err))
		}
		trainRatings, testRatings := dataset.Split(snapshot.Ratings(), conf.Data.TestRatio, conf.Data.Seed)

		cache := local.NewCache(conf.Local.CacheDir)
		m := hybrid.New()
		modelVersion, err := cache.Load(model.MethodHybrid, m)
		if err != nil {
			log.Logger().Fatal("failed to load model", zap.Error(err))
		}
		log.Logger().Info("model loaded",
			zap.String("cache_dir", conf.Local.CacheDir),
			zap.Int64("version", modelVersion))

		reg := registry.New()
		reg.Store(model.MethodHybrid, m, modelVersion)
		reg.Store(model.MethodItem, m.Item, modelVersion)
		reg.Store(model.MethodUser, m.User, modelVersion)
		results := evaluateModels(reg, testRatings, trainRatings, conf)
		printMetrics(results, conf.Evaluate.KValues)
	},
}

func evaluateModels(reg *registry.Registry, test, train []dataset.Rating, conf *config.Config) map[string]*eval.Metrics {
	results := make(map[string]*eval.Metrics, len(evaluatedModels))
	bar := progressbar.Default(int64(len(evaluatedModels)), "evaluate models")
	for _, name := range evaluatedModels {
		entry, err := reg.Get(name)
		if err != nil {
			log.Logger().Fatal("model missing from registry",
				zap.String("model", name), zap.Error(err))
		}
		metrics, err := eval.Evaluate(entry.Recommender, test, train,
			conf.Evaluate.KValues, conf.Evaluate.Threshold)
		if err != nil {
			log.Logger().Fatal("failed to evaluate model",
				zap.String("model", name), zap.Error(err))
		}
		results[name] = metrics
		_ = bar.Add(1)
	}
	return results
}

func printMetrics(results map[string]*eval.Metrics, kValues []int) {
	table := tablewriter.NewWriter(os.Stdout)
	table.Header(append([]string{"metric"}, evaluatedModels...))
	appendRow := func(name string, value func(m *eval.Metrics) float32) {
		row := []string{name}
		for _, modelName := range evaluatedModels {
			row = append(row, fmt.Sprintf("%.4f", value(results[modelName])))
		}
		_ = table.Append(row)
	}
	appendRow("RMSE", func(m *eval.Metrics) float32 { return m.RMSE })
	appendRow("MAE", func(m *eval.Metrics) float32 { return m.MAE })
	for _, k := range kValues {
		appendRow(fmt.Sprintf("Precision@%d", k), func(m *eval.Metrics) float32 { return m.Precision[k] })
		appendRow(fmt.Sprintf("Recall@%d", k), func(m *eval.Metrics) float32 { return m.Recall[k] })
		appendRow(fmt.Sprintf("F1@%d", k), func(m *eval.Metrics) float32 { return m.F1[k] })
		appendRow(fmt.Sprintf("NDCG@%d", k), func(m *eval.Metrics) float32 { return m.NDCG[k] })
		appendRow(fmt.Sprintf("HitRate@%d", k), func(m *eval.Metrics) float32 { return m.HitRate[k] })
	}
	appendRow("Coverage", func(m *eval.Metrics) float32 { return m.Coverage })
	_ = table.Render()
}
