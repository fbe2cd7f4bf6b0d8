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

// Package data loads catalog and rating snapshots from a database.
package data

import (
	"context"
	"strings"

	"github.com/juju/errors"

	"github.com/cinerec-io/cinerec/dataset"
)

const (
	MongoPrefix    = "mongodb://"
	MongoSrvPrefix = "mongodb+srv://"
)

// Database is a read-only snapshot source for model fitting.
type Database interface {
	// LoadMovies returns the whole catalog.
	LoadMovies(ctx context.Context) ([]dataset.Movie, error)
	// LoadRatings returns all ratings.
	LoadRatings(ctx context.Context) ([]dataset.Rating, error)
	// Close closes the connection.
	Close() error
}

// Open connects to the database addressed by path.
func Open(path string) (Database, error) {
	if strings.HasPrefix(path, MongoPrefix) || strings.HasPrefix(path, MongoSrvPrefix) {
		db, err := NewMongoDB(path)
		if err != nil {
			return nil, errors.Trace(err)
		}
		return db, nil
	}
	if path == "" {
		return NoDatabase{}, nil
	}
	return nil, errors.Errorf("unsupported database: %s", path)
}
