package mongo

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/barekit/lectern/pkg/library"
	"github.com/barekit/lectern/pkg/library/consts"
)

type MongoLibrary struct {
	client     *mongo.Client
	collection *mongo.Collection
}

type ArtifactDoc struct {
	ID           string    `bson:"_id"`
	Kind         string    `bson:"kind"`
	Subject      string    `bson:"subject"`
	Source       string    `bson:"source,omitempty"`
	ThumbnailURL string    `bson:"thumbnail_url,omitempty"`
	Prompt       string    `bson:"prompt,omitempty"`
	Content      string    `bson:"content"`
	CreatedAt    time.Time `bson:"created_at"`
}

// New creates a new MongoLibrary adapter.
func New(client *mongo.Client, dbName, collectionName string) *MongoLibrary {
	return &MongoLibrary{
		client:     client,
		collection: client.Database(dbName).Collection(collectionName),
	}
}

func (m *MongoLibrary) Save(ctx context.Context, a library.Artifact) error {
	doc := ArtifactDoc{
		ID:           a.ID,
		Kind:         string(a.Kind),
		Subject:      a.Subject,
		Source:       a.Source,
		ThumbnailURL: a.ThumbnailURL,
		Prompt:       a.Prompt,
		Content:      a.Content,
		CreatedAt:    a.CreatedAt,
	}

	_, err := m.collection.InsertOne(ctx, doc)
	return err
}

func (m *MongoLibrary) List(ctx context.Context, q library.Query) ([]library.Artifact, error) {
	q = q.Normalize()

	filter := bson.M{}
	if q.Kind != "" {
		filter[consts.ColKind] = string(q.Kind)
	}
	opts := options.Find().
		SetSort(bson.D{{Key: consts.ColCreatedAt, Value: -1}, {Key: "_id", Value: -1}}).
		SetLimit(int64(q.Limit))

	cursor, err := m.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	artifacts := []library.Artifact{}
	for cursor.Next(ctx) {
		var doc ArtifactDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, err
		}
		artifacts = append(artifacts, library.Artifact{
			ID:           doc.ID,
			Kind:         library.Kind(doc.Kind),
			Subject:      doc.Subject,
			Source:       doc.Source,
			ThumbnailURL: doc.ThumbnailURL,
			Prompt:       doc.Prompt,
			Content:      doc.Content,
			CreatedAt:    doc.CreatedAt,
		})
	}

	if err := cursor.Err(); err != nil {
		return nil, err
	}
	return artifacts, nil
}

func (m *MongoLibrary) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}
