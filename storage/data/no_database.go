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

package data

import (
	"context"

	"github.com/juju/errors"

	"github.com/cinerec-io/cinerec/dataset"
)

// ErrNoDatabase is returned by every operation of NoDatabase.
var ErrNoDatabase = errors.New("no database specified for datastore")

// NoDatabase is the placeholder returned when no snapshot source is
// configured.
type NoDatabase struct{}

func (NoDatabase) LoadMovies(context.Context) ([]dataset.Movie, error) {
	return nil, ErrNoDatabase
}

func (NoDatabase) LoadRatings(context.Context) ([]dataset.Rating, error) {
	return nil, ErrNoDatabase
}

func (NoDatabase) Close() error {
	return ErrNoDatabase
}
