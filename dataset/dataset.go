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

// Package dataset holds the catalog and rating snapshot the models are
// fitted on, plus the dense matrices and ID indices derived from it.
package dataset

import (
	"time"
)

// MinRating and MaxRating bound valid rating values. Zero is reserved as
// the unrated sentinel inside matrices and never appears as a real rating.
const (
	MinRating = float32(0.5)
	MaxRating = float32(5.0)
)

// Movie is a catalog entry. AvgRating and RatingCount are filled in by
// NewDataset from the rating snapshot.
type Movie struct {
	ID          int64
	Title       string
	Genres      []string
	Year        int
	AvgRating   float32
	RatingCount int
}

// Rating is one user's rating of one movie.
type Rating struct {
	UserID    int64
	MovieID   int64
	Rating    float32
	Timestamp time.Time
}

// Dataset is an immutable snapshot of the catalog and ratings with dense
// indices over users and movies. Ratings are deduplicated per (user, movie)
// pair with the latest timestamp winning.
type Dataset struct {
	movies     []Movie
	ratings    []Rating
	userIndex  *Index
	movieIndex *Index
}

// NewDataset builds a snapshot from raw movies and ratings. Ratings that
// reference movies missing from the catalog are kept (collaborative models
// fit on ratings alone), but per-movie statistics cover catalog movies only.
func NewDataset(movies []Movie, ratings []Rating) *Dataset {
	d := &Dataset{
		userIndex:  NewIndex(),
		movieIndex: NewIndex(),
	}
	// deduplicate ratings, latest timestamp wins
	latest := make(map[[2]int64]int, len(ratings))
	for i, r := range ratings {
		key := [2]int64{r.UserID, r.MovieID}
		if j, ok := latest[key]; !ok || r.Timestamp.After(ratings[j].Timestamp) {
			latest[key] = i
		}
	}
	d.ratings = make([]Rating, 0, len(latest))
	for i, r := range ratings {
		key := [2]int64{r.UserID, r.MovieID}
		if latest[key] == i {
			d.ratings = append(d.ratings, r)
			d.userIndex.Add(r.UserID)
			d.movieIndex.Add(r.MovieID)
		}
	}
	// per-movie statistics
	sums := make(map[int64]float32)
	counts := make(map[int64]int)
	for _, r := range d.ratings {
		sums[r.MovieID] += r.Rating
		counts[r.MovieID]++
	}
	d.movies = make([]Movie, len(movies))
	copy(d.movies, movies)
	for i := range d.movies {
		if n := counts[d.movies[i].ID]; n > 0 {
			d.movies[i].AvgRating = sums[d.movies[i].ID] / float32(n)
			d.movies[i].RatingCount = n
		}
	}
	return d
}

// Movies returns the catalog with statistics filled in.
func (d *Dataset) Movies() []Movie {
	return d.movies
}

// Ratings returns the deduplicated ratings.
func (d *Dataset) Ratings() []Rating {
	return d.ratings
}

// UserIndex returns the dense index over users seen in ratings.
func (d *Dataset) UserIndex() *Index {
	return d.userIndex
}

// MovieIndex returns the dense index over movies seen in ratings.
func (d *Dataset) MovieIndex() *Index {
	return d.movieIndex
}

func (d *Dataset) CountUsers() int {
	return int(d.userIndex.Len())
}

func (d *Dataset) CountMovies() int {
	return len(d.movies)
}

func (d *Dataset) CountRatings() int {
	return len(d.ratings)
}

// UserRatings groups the deduplicated ratings by user ID.
func (d *Dataset) UserRatings() map[int64][]Rating {
	byUser := make(map[int64][]Rating)
	for _, r := range d.ratings {
		byUser[r.UserID] = append(byUser[r.UserID], r)
	}
	return byUser
}

// Matrix builds the dense user-by-movie rating matrix for this snapshot.
func (d *Dataset) Matrix() *Matrix {
	m := NewMatrix(int(d.userIndex.Len()), int(d.movieIndex.Len()))
	for _, r := range d.ratings {
		m.Set(int(d.userIndex.ToNumber(r.UserID)), int(d.movieIndex.ToNumber(r.MovieID)), r.Rating)
	}
	return m
}
