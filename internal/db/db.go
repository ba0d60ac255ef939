// Package db manages MongoDB connections and collections.
package db

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"
)

// Client wraps mongo.Client and exposes the service's collections.
type Client struct {
	client *mongo.Client
	db     *mongo.Database
}

// New connects to MongoDB and returns a Client.
func New(ctx context.Context, mongoURI, database string) (*Client, error) {
	opts := options.Client().
		ApplyURI(mongoURI).
		SetConnectTimeout(10 * time.Second)

	client, err := mongo.Connect(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	return &Client{
		client: client,
		db:     client.Database(database),
	}, nil
}

// UsersCollection returns the users collection.
func (c *Client) UsersCollection() *mongo.Collection {
	return c.db.Collection("users")
}

// PostsCollection returns the waste_posts collection.
func (c *Client) PostsCollection() *mongo.Collection {
	return c.db.Collection("waste_posts")
}

// ThreadsCollection returns the chats collection.
func (c *Client) ThreadsCollection() *mongo.Collection {
	return c.db.Collection("chats")
}

// MessagesCollection returns the messages collection.
func (c *Client) MessagesCollection() *mongo.Collection {
	return c.db.Collection("messages")
}

// Close disconnects from MongoDB.
func (c *Client) Close(ctx context.Context) error {
	return c.client.Disconnect(ctx)
}

// CreateIndexes creates the indexes the stores rely on. The unique index on
// (post_id, participant_key) is what makes thread get-or-create safe when two
// participants open the same chat at the same time.
func (c *Client) CreateIndexes(ctx context.Context) error {
	usersIndexModel := mongo.IndexModel{
		Keys:    map[string]int{"email": 1},
		Options: options.Index().SetUnique(true),
	}
	if _, err := c.UsersCollection().Indexes().CreateOne(ctx, usersIndexModel); err != nil {
		return fmt.Errorf("failed to create users index: %w", err)
	}

	postIndexes := []mongo.IndexModel{
		{Keys: map[string]int{"status": 1, "created_at": -1}},
		{Keys: map[string]int{"contributor_id": 1}},
		{Keys: map[string]int{"accepted_by": 1, "status": 1}},
	}
	if _, err := c.PostsCollection().Indexes().CreateMany(ctx, postIndexes); err != nil {
		return fmt.Errorf("failed to create waste_posts indexes: %w", err)
	}

	threadIndexes := []mongo.IndexModel{
		{
			Keys:    map[string]int{"post_id": 1, "participant_key": 1},
			Options: options.Index().SetUnique(true),
		},
		{Keys: map[string]int{"contributor_id": 1}},
		{Keys: map[string]int{"collector_id": 1}},
	}
	if _, err := c.ThreadsCollection().Indexes().CreateMany(ctx, threadIndexes); err != nil {
		return fmt.Errorf("failed to create chats indexes: %w", err)
	}

	messageIndexes := []mongo.IndexModel{
		{Keys: map[string]int{"chat_id": 1, "created_at": 1}},
		{Keys: map[string]int{"chat_id": 1, "read": 1}},
	}
	if _, err := c.MessagesCollection().Indexes().CreateMany(ctx, messageIndexes); err != nil {
		return fmt.Errorf("failed to create message indexes: %w", err)
	}

	return nil
}
