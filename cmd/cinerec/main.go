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

	"github.com/juju/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/cinerec-io/cinerec/base/log"
	"github.com/cinerec-io/cinerec/cmd/version"
	"github.com/cinerec-io/cinerec/config"
	"github.com/cinerec-io/cinerec/dataset"
	"github.com/cinerec-io/cinerec/storage/data"
)

var rootCommand = &cobra.Command{
	Use:   "cinerec",
	Short: "Hybrid movie recommendation engine.",
	Run: func(cmd *cobra.Command, args []string) {
		if showVersion, _ := cmd.PersistentFlags().GetBool("version"); showVersion {
			fmt.Println(version.BuildInfo())
			return
		}
		_ = cmd.Help()
	},
}

var versionCommand = &cobra.Command{
	Use:   "version",
	Short: "Print the version of cinerec.",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(version.BuildInfo())
	},
}

func init() {
	log.AddFlags(rootCommand.PersistentFlags())
	rootCommand.PersistentFlags().Bool("debug", false, "use debug log mode")
	rootCommand.PersistentFlags().StringP("config", "c", "config.toml", "configuration file path")
	rootCommand.PersistentFlags().BoolP("version", "v", false, "cinerec version")
	rootCommand.AddCommand(trainCommand)
	rootCommand.AddCommand(evaluateCommand)
	rootCommand.AddCommand(versionCommand)
}

// setup initializes the logger and loads the configuration.
func setup(cmd *cobra.Command) *config.Config {
	debug, _ := cmd.Flags().GetBool("debug")
	log.SetLogger(cmd.Flags(), debug)
	configPath, _ := cmd.Flags().GetString("config")
	log.Logger().Info("load config", zap.String("config", configPath))
	conf, err := config.LoadConfig(configPath)
	if err != nil {
		log.Logger().Fatal("failed to load config", zap.Error(err))
	}
	return conf
}

// loadSnapshot loads the movie catalog and ratings from the configured
// database, falling back to the CSV files. Raw rows pass through
// dataset.NewDataset so duplicates collapse to the latest rating and the
// catalog carries rating stats before anything is fit.
func loadSnapshot(ctx context.Context, conf *config.Config) (*dataset.Dataset, error) {
	var movies []dataset.Movie
	var ratings []dataset.Rating
	var err error
	if conf.Database.DataStore != "" {
		var db data.Database
		db, err = data.Open(conf.Database.DataStore)
		if err != nil {
			return nil, errors.Trace(err)
		}
		defer db.Close()
		if movies, err = db.LoadMovies(ctx); err != nil {
			return nil, errors.Trace(err)
		}
		if ratings, err = db.LoadRatings(ctx); err != nil {
			return nil, errors.Trace(err)
		}
	} else {
		if movies, err = dataset.LoadMovies(conf.Data.MoviesCSV); err != nil {
			return nil, errors.Trace(err)
		}
		if ratings, err = dataset.LoadRatings(conf.Data.RatingsCSV); err != nil {
			return nil, errors.Trace(err)
		}
	}
	return dataset.NewDataset(movies, ratings), nil
}

func main() {
	if err := rootCommand.Execute(); err != nil {
		log.Logger().Fatal("failed to execute", zap.Error(err))
	}
}
