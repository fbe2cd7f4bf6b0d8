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
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseGenres(t *testing.T) {
	assert.Equal(t, []string{"Comedy", "Romance"}, ParseGenres("Comedy|Romance"))
	assert.Equal(t, []string{"Drama"}, ParseGenres("Drama"))
	assert.Nil(t, ParseGenres("(no genres listed)"))
	assert.Nil(t, ParseGenres(""))
}

func TestParseTitleYear(t *testing.T) {
	title, year := ParseTitleYear("Toy Story (1995)")
	assert.Equal(t, "Toy Story", title)
	assert.Equal(t, 1995, year)
	title, year = ParseTitleYear("Hamlet")
	assert.Equal(t, "Hamlet", title)
	assert.Equal(t, 0, year)
	// parenthesized alternative titles are not years
	title, year = ParseTitleYear("Shall We Dance? (Shall We Dansu?) (1996)")
	assert.Equal(t, "Shall We Dance? (Shall We Dansu?)", title)
	assert.Equal(t, 1996, year)
}

func TestReadMovies(t *testing.T) {
	csv := `movieId,title,genres
1,Toy Story (1995),Adventure|Animation|Children|Comedy|Fantasy
2,Jumanji (1995),Adventure|Children|Fantasy
3,"American President, The (1995)",Comedy|Drama|Romance
`
	movies, err := ReadMovies(strings.NewReader(csv))
	assert.NoError(t, err)
	assert.Len(t, movies, 3)
	assert.Equal(t, int64(1), movies[0].ID)
	assert.Equal(t, "Toy Story", movies[0].Title)
	assert.Equal(t, 1995, movies[0].Year)
	assert.Equal(t, []string{"Adventure", "Animation", "Children", "Comedy", "Fantasy"}, movies[0].Genres)
	assert.Equal(t, "American President, The", movies[2].Title)
}

func TestReadRatings(t *testing.T) {
	csv := `userId,movieId,rating,timestamp
1,31,2.5,1260759144
1,1029,3.0,1260759179
`
	ratings, err := ReadRatings(strings.NewReader(csv))
	assert.NoError(t, err)
	assert.Len(t, ratings, 2)
	assert.Equal(t, int64(1), ratings[0].UserID)
	assert.Equal(t, int64(31), ratings[0].MovieID)
	assert.Equal(t, float32(2.5), ratings[0].Rating)
	assert.Equal(t, time.Unix(1260759144, 0).UTC(), ratings[0].Timestamp)
}

func TestReadMoviesMalformed(t *testing.T) {
	_, err := ReadMovies(strings.NewReader("movieId,title,genres\nnot-a-number,Foo,Drama\n"))
	assert.Error(t, err)
}
