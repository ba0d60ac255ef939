package data

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// ThreadsStore provides chat-thread database operations.
type ThreadsStore struct {
	coll *mongo.Collection
}

// NewThreadsStore returns a ThreadsStore using the given collection.
func NewThreadsStore(coll *mongo.Collection) *ThreadsStore {
	return &ThreadsStore{coll: coll}
}

// ParticipantKey builds the canonical key for an unordered participant
// pair. Both participants produce the same key regardless of which side
// they open the chat from, which is what lets the unique index on
// (post_id, participant_key) collapse the duplicate-creation race.
func ParticipantKey(a, b string) string {
	if strings.Compare(a, b) > 0 {
		a, b = b, a
	}
	return a + "|" + b
}

// GetOrCreate looks up the thread for (postID, participant pair) and
// creates it with zero unread counters if absent. The lookup+create is a
// single upsert keyed on the unique index, so two participants opening
// the same chat concurrently still end up with exactly one thread; if
// the upsert itself loses a duplicate-key race it re-reads the winner.
func (s *ThreadsStore) GetOrCreate(ctx context.Context, postID, contributorID, collectorID string) (*ChatThread, error) {
	if postID == "" || contributorID == "" || collectorID == "" {
		return nil, fmt.Errorf("%w: post and both participants are required", ErrValidation)
	}
	if contributorID == collectorID {
		return nil, fmt.Errorf("%w: a thread needs two distinct participants", ErrValidation)
	}

	key := ParticipantKey(contributorID, collectorID)
	filter := bson.M{"post_id": postID, "participant_key": key}
	update := bson.M{"$setOnInsert": bson.M{
		"post_id":            postID,
		"contributor_id":     contributorID,
		"collector_id":       collectorID,
		"participant_key":    key,
		"created_at":         time.Now(),
		"unread_contributor": int64(0),
		"unread_collector":   int64(0),
	}}

	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var thread ChatThread
	err := s.coll.FindOneAndUpdate(ctx, filter, update, opts).Decode(&thread)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			// another caller won the create; return their thread
			if err := s.coll.FindOne(ctx, filter).Decode(&thread); err != nil {
				return nil, err
			}
			return &thread, nil
		}
		return nil, err
	}
	return &thread, nil
}

// Get returns a thread by id.
func (s *ThreadsStore) Get(ctx context.Context, threadID string) (*ChatThread, error) {
	oid, err := bson.ObjectIDFromHex(threadID)
	if err != nil {
		return nil, ErrNotFound
	}

	var thread ChatThread
	if err := s.coll.FindOne(ctx, bson.M{"_id": oid}).Decode(&thread); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &thread, nil
}

// RecordOutgoingMessage updates the thread preview and bumps the
// recipient's unread counter. The bump is a server-side $inc so two
// back-to-back sends never lose an increment; the sender's own counter
// is untouched.
func (s *ThreadsStore) RecordOutgoingMessage(ctx context.Context, threadID, senderID, text string) error {
	thread, err := s.Get(ctx, threadID)
	if err != nil {
		return err
	}
	if !thread.IsParticipant(senderID) {
		return fmt.Errorf("%w: sender is not a participant of this thread", ErrPermissionDenied)
	}

	counter := "unread_contributor"
	if senderID == thread.ContributorID {
		counter = "unread_collector"
	}

	_, err = s.coll.UpdateOne(ctx,
		bson.M{"_id": thread.ID},
		bson.M{
			"$set": bson.M{"last_message": text, "last_message_time": time.Now()},
			"$inc": bson.M{counter: int64(1)},
		},
	)
	return err
}

// ResetUnread zeroes the reader's role-specific counter. Idempotent.
func (s *ThreadsStore) ResetUnread(ctx context.Context, threadID, readerID string) error {
	thread, err := s.Get(ctx, threadID)
	if err != nil {
		return err
	}
	if !thread.IsParticipant(readerID) {
		return fmt.Errorf("%w: reader is not a participant of this thread", ErrPermissionDenied)
	}

	counter := "unread_collector"
	if readerID == thread.ContributorID {
		counter = "unread_contributor"
	}

	_, err = s.coll.UpdateOne(ctx,
		bson.M{"_id": thread.ID},
		bson.M{"$set": bson.M{counter: int64(0)}},
	)
	return err
}

// ListForUser returns every thread the user participates in, tagged with
// the user's role in each.
func (s *ThreadsStore) ListForUser(ctx context.Context, userID string) ([]*ThreadWithRole, error) {
	filter := bson.M{"$or": bson.A{
		bson.M{"contributor_id": userID},
		bson.M{"collector_id": userID},
	}}

	cursor, err := s.coll.Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var threads []*ThreadWithRole
	if err := cursor.All(ctx, &threads); err != nil {
		return nil, err
	}
	for _, t := range threads {
		t.Role = t.RoleOf(userID)
	}
	return threads, nil
}

// FindForPost returns the thread for postID that involves userID, or
// (nil, nil) when no such thread exists yet.
func (s *ThreadsStore) FindForPost(ctx context.Context, postID, userID string) (*ThreadWithRole, error) {
	filter := bson.M{
		"post_id": postID,
		"$or": bson.A{
			bson.M{"contributor_id": userID},
			bson.M{"collector_id": userID},
		},
	}

	var thread ThreadWithRole
	if err := s.coll.FindOne(ctx, filter).Decode(&thread); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, err
	}
	thread.Role = thread.RoleOf(userID)
	return &thread, nil
}
