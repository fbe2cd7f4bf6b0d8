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
	"strings"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
)

func TestUnmarshal(t *testing.T) {
	viper.Reset()
	setDefault()
	viper.SetConfigType("toml")
	err := viper.ReadConfig(strings.NewReader(`
[database]
data_store = "mongodb://localhost:27017/cinerec"

[recommend]
content_weight = 0.2
item_weight = 0.4
user_weight = 0.4
num_neighbors = 10

[evaluate]
k_values = [5, 10]
`))
	assert.NoError(t, err)
	var config Config
	err = viper.Unmarshal(&config)
	assert.NoError(t, err)
	assert.NoError(t, config.Validate())

	// [database]
	assert.Equal(t, "mongodb://localhost:27017/cinerec", config.Database.DataStore)
	// [recommend]
	assert.Equal(t, float32(0.2), config.Recommend.ContentWeight)
	assert.Equal(t, float32(0.4), config.Recommend.ItemWeight)
	assert.Equal(t, float32(0.4), config.Recommend.UserWeight)
	assert.Equal(t, 10, config.Recommend.NumNeighbors)
	// defaults fill the rest
	assert.Equal(t, 5, config.Recommend.MinRatings)
	assert.Equal(t, 3, config.Recommend.MinCommon)
	assert.Equal(t, "data/movies.csv", config.Data.MoviesCSV)
	assert.Equal(t, []int{5, 10}, config.Evaluate.KValues)
	assert.Equal(t, float32(3.5), config.Evaluate.Threshold)
	assert.Equal(t, 1, config.Jobs)
}

func TestSetDefault(t *testing.T) {
	viper.Reset()
	setDefault()
	err := viper.ReadConfig(strings.NewReader(""))
	assert.NoError(t, err)
	var config Config
	err = viper.Unmarshal(&config)
	assert.NoError(t, err)
	assert.Equal(t, GetDefaultConfig(), &config)
	assert.NoError(t, config.Validate())
}

func TestBindEnv(t *testing.T) {
	viper.Reset()
	t.Setenv("CINEREC_DATA_STORE", "mongodb://db:27017/movies")
	t.Setenv("CINEREC_CACHE_DIR", "/tmp/blobs")
	t.Setenv("CINEREC_JOBS", "4")
	setDefault()
	bindEnv()
	err := viper.ReadConfig(strings.NewReader(""))
	assert.NoError(t, err)
	var config Config
	err = viper.Unmarshal(&config)
	assert.NoError(t, err)
	assert.Equal(t, "mongodb://db:27017/movies", config.Database.DataStore)
	assert.Equal(t, "/tmp/blobs", config.Local.CacheDir)
	assert.Equal(t, 4, config.Jobs)
}

func TestValidate(t *testing.T) {
	config := GetDefaultConfig()
	config.Recommend.ContentWeight = 0
	config.Recommend.ItemWeight = 0
	config.Recommend.UserWeight = 0
	assert.Error(t, config.Validate())

	config = GetDefaultConfig()
	config.Database.DataStore = "postgres://localhost:5432/cinerec"
	assert.Error(t, config.Validate())

	config = GetDefaultConfig()
	config.Data.TestRatio = 1.5
	assert.Error(t, config.Validate())

	config = GetDefaultConfig()
	config.Jobs = 0
	assert.Error(t, config.Validate())
}
