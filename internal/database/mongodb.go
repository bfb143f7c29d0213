package database

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type MongoDB struct {
	Client   *mongo.Client
	Database *mongo.Database
}

func NewMongoDB(uri, dbName string) (*MongoDB, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	clientOptions := options.Client().ApplyURI(uri)

	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, err
	}

	if err := client.Ping(ctx, nil); err != nil {
		return nil, err
	}

	return &MongoDB{
		Client:   client,
		Database: client.Database(dbName),
	}, nil
}

func (m *MongoDB) Disconnect() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return m.Client.Disconnect(ctx)
}

// EnsureIndexes creates the indexes the pipeline relies on. The unique
// index on messageId is what makes re-ingesting a provider message a no-op.
func (m *MongoDB) EnsureIndexes(ctx context.Context) error {
	_, err := m.Emails().Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "messageId", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "aiProcessing.processed", Value: 1}, {Key: "receivedAt", Value: -1}},
		},
		{
			Keys: bson.D{{Key: "aiProcessing.category", Value: 1}},
		},
	})
	if err != nil {
		return err
	}

	_, err = m.Waitlist().Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "status", Value: 1}, {Key: "position", Value: 1}},
		},
		{
			Keys: bson.D{{Key: "parentEmail", Value: 1}},
		},
	})
	return err
}

// Collection helpers
func (m *MongoDB) Users() *mongo.Collection {
	return m.Database.Collection("users")
}

func (m *MongoDB) Emails() *mongo.Collection {
	return m.Database.Collection("emails")
}

func (m *MongoDB) Waitlist() *mongo.Collection {
	return m.Database.Collection("waitlist")
}
