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
	"time"

	"github.com/juju/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/x/mongo/driver/connstring"

	"github.com/cinerec-io/cinerec/dataset"
)

// MongoDB reads the movies and ratings collections the ingestion
// pipeline maintains.
type MongoDB struct {
	client *mongo.Client
	dbName string
}

type movieDocument struct {
	MovieID int64    `bson:"movieId"`
	Title   string   `bson:"title"`
	Genres  []string `bson:"genres"`
	Year    int      `bson:"year"`
}

type ratingDocument struct {
	UserID    int64     `bson:"userId"`
	MovieID   int64     `bson:"movieId"`
	Rating    float64   `bson:"rating"`
	Timestamp time.Time `bson:"timestamp"`
}

// NewMongoDB connects to a MongoDB instance. The database name is taken
// from the connection URI path.
func NewMongoDB(uri string) (*MongoDB, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	opts := options.Client().ApplyURI(uri)
	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, errors.Trace(err)
	}
	if err = client.Ping(ctx, nil); err != nil {
		return nil, errors.Trace(err)
	}
	cs, err := connstring.ParseAndValidate(uri)
	if err != nil {
		return nil, errors.Trace(err)
	}
	dbName := cs.Database
	if dbName == "" {
		dbName = "cinerec"
	}
	return &MongoDB{client: client, dbName: dbName}, nil
}

func (db *MongoDB) LoadMovies(ctx context.Context) ([]dataset.Movie, error) {
	c := db.client.Database(db.dbName).Collection("movies")
	cursor, err := c.Find(ctx, bson.M{})
	if err != nil {
		return nil, errors.Trace(err)
	}
	defer cursor.Close(ctx)
	var movies []dataset.Movie
	for cursor.Next(ctx) {
		var doc movieDocument
		if err = cursor.Decode(&doc); err != nil {
			return nil, errors.Trace(err)
		}
		movies = append(movies, dataset.Movie{
			ID:     doc.MovieID,
			Title:  doc.Title,
			Genres: doc.Genres,
			Year:   doc.Year,
		})
	}
	return movies, errors.Trace(cursor.Err())
}

func (db *MongoDB) LoadRatings(ctx context.Context) ([]dataset.Rating, error) {
	c := db.client.Database(db.dbName).Collection("ratings")
	cursor, err := c.Find(ctx, bson.M{})
	if err != nil {
		return nil, errors.Trace(err)
	}
	defer cursor.Close(ctx)
	var ratings []dataset.Rating
	for cursor.Next(ctx) {
		var doc ratingDocument
		if err = cursor.Decode(&doc); err != nil {
			return nil, errors.Trace(err)
		}
		ratings = append(ratings, dataset.Rating{
			UserID:    doc.UserID,
			MovieID:   doc.MovieID,
			Rating:    float32(doc.Rating),
			Timestamp: doc.Timestamp,
		})
	}
	return ratings, errors.Trace(cursor.Err())
}

func (db *MongoDB) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return errors.Trace(db.client.Disconnect(ctx))
}
