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
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func ts(sec int64) time.Time {
	return time.Unix(sec, 0).UTC()
}

func TestNewDatasetDeduplicate(t *testing.T) {
	movies := []Movie{
		{ID: 1, Title: "Toy Story", Genres: []string{"Animation", "Children"}},
		{ID: 2, Title: "Jumanji", Genres: []string{"Adventure"}},
	}
	ratings := []Rating{
		{UserID: 10, MovieID: 1, Rating: 3.0, Timestamp: ts(100)},
		{UserID: 10, MovieID: 1, Rating: 4.5, Timestamp: ts(200)},
		{UserID: 11, MovieID: 1, Rating: 2.5, Timestamp: ts(150)},
		{UserID: 11, MovieID: 2, Rating: 5.0, Timestamp: ts(150)},
	}
	d := NewDataset(movies, ratings)
	// latest timestamp wins
	assert.Equal(t, 3, d.CountRatings())
	var kept *Rating
	for i, r := range d.Ratings() {
		if r.UserID == 10 && r.MovieID == 1 {
			kept = &d.Ratings()[i]
		}
	}
	assert.NotNil(t, kept)
	assert.Equal(t, float32(4.5), kept.Rating)
	// statistics
	assert.Equal(t, 2, d.Movies()[0].RatingCount)
	assert.InDelta(t, 3.5, d.Movies()[0].AvgRating, 1e-6)
	assert.Equal(t, 1, d.Movies()[1].RatingCount)
	assert.Equal(t, float32(5.0), d.Movies()[1].AvgRating)
	// indices
	assert.Equal(t, 2, d.CountUsers())
	assert.Equal(t, int32(0), d.UserIndex().ToNumber(10))
	assert.Equal(t, NotID, d.UserIndex().ToNumber(99))
}

func TestDatasetMatrix(t *testing.T) {
	d := NewDataset(nil, []Rating{
		{UserID: 1, MovieID: 100, Rating: 4, Timestamp: ts(1)},
		{UserID: 1, MovieID: 200, Rating: 2, Timestamp: ts(1)},
		{UserID: 2, MovieID: 100, Rating: 5, Timestamp: ts(1)},
	})
	m := d.Matrix()
	assert.Equal(t, 2, m.Rows)
	assert.Equal(t, 2, m.Cols)
	u1 := int(d.UserIndex().ToNumber(1))
	m100 := int(d.MovieIndex().ToNumber(100))
	m200 := int(d.MovieIndex().ToNumber(200))
	assert.Equal(t, float32(4), m.Get(u1, m100))
	assert.True(t, m.Rated(u1, m200))
	assert.False(t, m.Rated(int(d.UserIndex().ToNumber(2)), m200))
	assert.Equal(t, 2, m.ColCount(m100))
	assert.Equal(t, []float32{3, 5}, m.RowMeans())
	assert.Equal(t, []float32{4.5, 2}, m.ColMeans())
	assert.Equal(t, []int{m100, m200}, m.RatedCols(u1))
}

func TestIndexMarshal(t *testing.T) {
	idx := NewIndex()
	idx.Add(42)
	idx.Add(7)
	idx.Add(42)
	assert.Equal(t, int32(2), idx.Len())
	assert.Equal(t, int64(7), idx.ToID(1))

	buf := bytes.NewBuffer(nil)
	assert.NoError(t, idx.Marshal(buf))
	decoded := &Index{}
	assert.NoError(t, decoded.Unmarshal(buf))
	assert.Equal(t, idx.IDs(), decoded.IDs())
	assert.Equal(t, int32(0), decoded.ToNumber(42))
}

func TestFreqDict(t *testing.T) {
	d := NewFreqDict()
	assert.Equal(t, 0, d.Id("comedy"))
	assert.Equal(t, 1, d.Id("drama"))
	assert.Equal(t, 0, d.Id("comedy"))
	assert.Equal(t, 2, d.Count())
	assert.Equal(t, 2, d.Freq(0))
	assert.Equal(t, 1, d.Freq(1))
	assert.Equal(t, -1, d.Lookup("horror"))
	s, ok := d.String(1)
	assert.True(t, ok)
	assert.Equal(t, "drama", s)
}

func TestSplit(t *testing.T) {
	ratings := make([]Rating, 100)
	for i := range ratings {
		ratings[i] = Rating{UserID: int64(i), MovieID: int64(i), Rating: 3, Timestamp: ts(1)}
	}
	train, test := Split(ratings, 0.2, 42)
	assert.Len(t, test, 20)
	assert.Len(t, train, 80)
	// deterministic
	train2, test2 := Split(ratings, 0.2, 42)
	assert.Equal(t, train, train2)
	assert.Equal(t, test, test2)
}
