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

package config

import (
	"github.com/go-playground/validator/v10"
	"github.com/juju/errors"
)

// Validate checks the struct tags and the cross-field constraints that
// tags cannot express.
func (config *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(config); err != nil {
		return errors.Trace(err)
	}
	// At least one combiner weight must be positive for normalization.
	if config.Recommend.ContentWeight+config.Recommend.ItemWeight+config.Recommend.UserWeight <= 0 {
		return errors.New("at least one of content_weight, item_weight and user_weight must be positive")
	}
	if config.Database.DataStore == "" && (config.Data.MoviesCSV == "" || config.Data.RatingsCSV == "") {
		return errors.New("either database.data_store or both data.movies_csv and data.ratings_csv must be set")
	}
	return nil
}
