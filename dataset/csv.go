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

package dataset

import (
	"encoding/csv"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/juju/errors"
	"go.uber.org/zap"

	"github.com/cinerec-io/cinerec/base/log"
)

const noGenres = "(no genres listed)"

var yearSuffix = regexp.MustCompile(`\s*\((\d{4})\)\s*$`)

// ParseGenres splits a pipe-separated genre string. The MovieLens
// placeholder for missing genres maps to an empty slice.
func ParseGenres(s string) []string {
	if s == "" || s == noGenres {
		return nil
	}
	return strings.Split(s, "|")
}

// ParseTitleYear strips a trailing "(1995)" release year from a title.
// Year is zero when the title carries none.
func ParseTitleYear(title string) (string, int) {
	if m := yearSuffix.FindStringSubmatch(title); m != nil {
		year, _ := strconv.Atoi(m[1])
		return strings.TrimSpace(title[:len(title)-len(m[0])]), year
	}
	return strings.TrimSpace(title), 0
}

// LoadMovies reads a MovieLens movies.csv (movieId,title,genres) file.
func LoadMovies(path string) ([]Movie, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Trace(err)
	}
	defer f.Close()
	movies, err := ReadMovies(f)
	if err != nil {
		return nil, errors.Trace(err)
	}
	log.Logger().Info("loaded movies", zap.String("path", path), zap.Int("count", len(movies)))
	return movies, nil
}

// ReadMovies reads movie rows (movieId,title,genres) with a header line.
func ReadMovies(r io.Reader) ([]Movie, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = 3
	var movies []Movie
	for line := 0; ; line++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		} else if err != nil {
			return nil, errors.Trace(err)
		}
		if line == 0 && record[0] == "movieId" {
			continue
		}
		id, err := strconv.ParseInt(record[0], 10, 64)
		if err != nil {
			return nil, errors.Trace(err)
		}
		title, year := ParseTitleYear(record[1])
		movies = append(movies, Movie{
			ID:     id,
			Title:  title,
			Year:   year,
			Genres: ParseGenres(record[2]),
		})
	}
	return movies, nil
}

// LoadRatings reads a MovieLens ratings.csv (userId,movieId,rating,timestamp) file.
func LoadRatings(path string) ([]Rating, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Trace(err)
	}
	defer f.Close()
	ratings, err := ReadRatings(f)
	if err != nil {
		return nil, errors.Trace(err)
	}
	log.Logger().Info("loaded ratings", zap.String("path", path), zap.Int("count", len(ratings)))
	return ratings, nil
}

// ReadRatings reads rating rows (userId,movieId,rating,timestamp) with a
// header line. Timestamps are Unix seconds.
func ReadRatings(r io.Reader) ([]Rating, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = 4
	var ratings []Rating
	for line := 0; ; line++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		} else if err != nil {
			return nil, errors.Trace(err)
		}
		if line == 0 && record[0] == "userId" {
			continue
		}
		userId, err := strconv.ParseInt(record[0], 10, 64)
		if err != nil {
			return nil, errors.Trace(err)
		}
		movieId, err := strconv.ParseInt(record[1], 10, 64)
		if err != nil {
			return nil, errors.Trace(err)
		}
		rating, err := strconv.ParseFloat(record[2], 32)
		if err != nil {
			return nil, errors.Trace(err)
		}
		timestamp, err := strconv.ParseInt(record[3], 10, 64)
		if err != nil {
			return nil, errors.Trace(err)
		}
		ratings = append(ratings, Rating{
			UserID:    userId,
			MovieID:   movieId,
			Rating:    float32(rating),
			Timestamp: time.Unix(timestamp, 0).UTC(),
		})
	}
	return ratings, nil
}
