package data

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// MessagesStore provides message database operations. Messages are
// append-only: Insert and MarkRead are the only writers, and MarkRead
// only ever flips read from false to true.
type MessagesStore struct {
	coll *mongo.Collection
}

// NewMessagesStore returns a MessagesStore using the given collection.
func NewMessagesStore(coll *mongo.Collection) *MessagesStore {
	return &MessagesStore{coll: coll}
}

// Insert appends a message to a thread. The text must already be
// validated (non-empty after trim); this is re-checked here so no write
// path can sneak a blank message in.
func (s *MessagesStore) Insert(ctx context.Context, msg *Message) (*Message, error) {
	if strings.TrimSpace(msg.Text) == "" {
		return nil, ErrValidation
	}
	if msg.ChatID == "" || msg.SenderID == "" {
		return nil, ErrValidation
	}

	msg.CreatedAt = time.Now()
	msg.Read = false

	result, err := s.coll.InsertOne(ctx, msg)
	if err != nil {
		return nil, err
	}
	msg.ID = result.InsertedID.(bson.ObjectID)
	return msg, nil
}

// List returns the messages of a thread. With ordered=true the store
// sorts by created_at ascending server-side; if the server cannot serve
// that sort the call fails with ErrOrderUnsupported and the caller is
// expected to re-fetch unordered and sort client-side.
func (s *MessagesStore) List(ctx context.Context, chatID string, ordered bool) ([]*Message, error) {
	filter := bson.M{"chat_id": chatID}

	var opts *options.FindOptionsBuilder
	if ordered {
		opts = options.Find().SetSort(bson.M{"created_at": 1})
	} else {
		opts = options.Find()
	}

	cursor, err := s.coll.Find(ctx, filter, opts)
	if err != nil {
		if ordered && isOrderUnsupported(err) {
			return nil, ErrOrderUnsupported
		}
		return nil, err
	}
	defer cursor.Close(ctx)

	var messages []*Message
	if err := cursor.All(ctx, &messages); err != nil {
		if ordered && isOrderUnsupported(err) {
			return nil, ErrOrderUnsupported
		}
		return nil, err
	}
	return messages, nil
}

// MarkRead flips read=true on every unread message in the thread that
// the reader did not send, as one batch. Returns the number of messages
// flipped; zero is a no-op, not an error.
func (s *MessagesStore) MarkRead(ctx context.Context, chatID, readerID string) (int64, error) {
	result, err := s.coll.UpdateMany(ctx,
		bson.M{
			"chat_id":   chatID,
			"read":      false,
			"sender_id": bson.M{"$ne": readerID},
		},
		bson.M{"$set": bson.M{"read": true}},
	)
	if err != nil {
		return 0, err
	}
	return result.ModifiedCount, nil
}

// isOrderUnsupported reports whether a server error means the sorted
// query cannot be served (missing index, or an in-memory sort over the
// allowed limit). These are the conditions the subscription ladder
// degrades on.
func isOrderUnsupported(err error) bool {
	var cmdErr mongo.CommandError
	if errors.As(err, &cmdErr) {
		// 292: QueryExceededMemoryLimitNoDiskUseAllowed, 27: IndexNotFound
		if cmdErr.Code == 292 || cmdErr.Code == 27 {
			return true
		}
		return strings.Contains(strings.ToLower(cmdErr.Message), "index")
	}
	return false
}
