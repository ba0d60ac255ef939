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

// PostsStore provides waste-post database operations. All status changes
// go through conditional writes: the filter encodes the precondition, so
// a concurrent competing transition simply matches nothing and is then
// classified into the proper error by re-reading the document.
type PostsStore struct {
	coll *mongo.Collection
}

// NewPostsStore returns a PostsStore using the given collection.
func NewPostsStore(coll *mongo.Collection) *PostsStore {
	return &PostsStore{coll: coll}
}

// Create validates and inserts a new post with status pending.
func (s *PostsStore) Create(ctx context.Context, post *WastePost) (*WastePost, error) {
	if strings.TrimSpace(post.WasteType) == "" {
		return nil, fmt.Errorf("%w: waste type is required", ErrValidation)
	}
	if post.Quantity <= 0 {
		return nil, fmt.Errorf("%w: quantity must be positive", ErrValidation)
	}
	if post.ContributorID == "" {
		return nil, fmt.Errorf("%w: contributor id is required", ErrValidation)
	}

	now := time.Now()
	post.Status = StatusPending
	post.AcceptedBy = ""
	post.CreatedAt = now
	post.UpdatedAt = now

	result, err := s.coll.InsertOne(ctx, post)
	if err != nil {
		return nil, err
	}
	post.ID = result.InsertedID.(bson.ObjectID)
	return post, nil
}

// Get returns a post by id.
func (s *PostsStore) Get(ctx context.Context, postID string) (*WastePost, error) {
	oid, err := bson.ObjectIDFromHex(postID)
	if err != nil {
		return nil, ErrNotFound
	}

	var post WastePost
	if err := s.coll.FindOne(ctx, bson.M{"_id": oid}).Decode(&post); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &post, nil
}

// PostFilter narrows List results. Zero values mean "no constraint".
type PostFilter struct {
	Status        string
	ContributorID string
	AcceptedBy    string
}

// List returns posts matching the filter, newest first.
func (s *PostsStore) List(ctx context.Context, filter PostFilter) ([]*WastePost, error) {
	query := bson.M{}
	if filter.Status != "" {
		query["status"] = filter.Status
	}
	if filter.ContributorID != "" {
		query["contributor_id"] = filter.ContributorID
	}
	if filter.AcceptedBy != "" {
		query["accepted_by"] = filter.AcceptedBy
	}

	cursor, err := s.coll.Find(ctx, query, options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var posts []*WastePost
	if err := cursor.All(ctx, &posts); err != nil {
		return nil, err
	}
	return posts, nil
}

// Accept transitions pending → accepted and records the acceptor.
// Accepting a post you already hold is a no-op.
func (s *PostsStore) Accept(ctx context.Context, postID, userID string) error {
	oid, err := bson.ObjectIDFromHex(postID)
	if err != nil {
		return ErrNotFound
	}

	result, err := s.coll.UpdateOne(ctx,
		bson.M{"_id": oid, "status": StatusPending},
		bson.M{"$set": bson.M{
			"status":      StatusAccepted,
			"accepted_by": userID,
			"updated_at":  time.Now(),
		}},
	)
	if err != nil {
		return err
	}
	if result.MatchedCount > 0 {
		return nil
	}

	post, err := s.Get(ctx, postID)
	if err != nil {
		return err
	}
	switch {
	case post.Status == StatusAccepted && post.AcceptedBy == userID:
		return nil
	case post.Status == StatusAccepted:
		return fmt.Errorf("%w: post already accepted by another user", ErrPermissionDenied)
	default:
		return fmt.Errorf("%w: cannot accept a %s post", ErrInvalidTransition, post.Status)
	}
}

// Release transitions accepted → pending. Only the current acceptor may
// release; releasing an already-pending post is a no-op.
func (s *PostsStore) Release(ctx context.Context, postID, userID string) error {
	oid, err := bson.ObjectIDFromHex(postID)
	if err != nil {
		return ErrNotFound
	}

	result, err := s.coll.UpdateOne(ctx,
		bson.M{"_id": oid, "status": StatusAccepted, "accepted_by": userID},
		bson.M{
			"$set":   bson.M{"status": StatusPending, "updated_at": time.Now()},
			"$unset": bson.M{"accepted_by": ""},
		},
	)
	if err != nil {
		return err
	}
	if result.MatchedCount > 0 {
		return nil
	}

	post, err := s.Get(ctx, postID)
	if err != nil {
		return err
	}
	switch {
	case post.Status == StatusPending:
		return nil
	case post.Status == StatusAccepted:
		return fmt.Errorf("%w: only the acceptor may release this post", ErrPermissionDenied)
	default:
		return fmt.Errorf("%w: cannot release a %s post", ErrInvalidTransition, post.Status)
	}
}

// MarkCollected transitions accepted → collected. The caller must be the
// current acceptor.
func (s *PostsStore) MarkCollected(ctx context.Context, postID, userID string) error {
	oid, err := bson.ObjectIDFromHex(postID)
	if err != nil {
		return ErrNotFound
	}

	result, err := s.coll.UpdateOne(ctx,
		bson.M{"_id": oid, "status": StatusAccepted, "accepted_by": userID},
		bson.M{"$set": bson.M{"status": StatusCollected, "updated_at": time.Now()}},
	)
	if err != nil {
		return err
	}
	if result.MatchedCount > 0 {
		return nil
	}

	post, err := s.Get(ctx, postID)
	if err != nil {
		return err
	}
	switch {
	case post.Status == StatusCollected && post.AcceptedBy == userID:
		return nil
	case post.AcceptedBy != "" && post.AcceptedBy != userID:
		return fmt.Errorf("%w: only the acceptor may collect this post", ErrPermissionDenied)
	default:
		return fmt.Errorf("%w: cannot collect a %s post", ErrInvalidTransition, post.Status)
	}
}

// RevertToAccepted undoes a collection, collected → accepted. The caller
// must be the current acceptor.
func (s *PostsStore) RevertToAccepted(ctx context.Context, postID, userID string) error {
	oid, err := bson.ObjectIDFromHex(postID)
	if err != nil {
		return ErrNotFound
	}

	result, err := s.coll.UpdateOne(ctx,
		bson.M{"_id": oid, "status": StatusCollected, "accepted_by": userID},
		bson.M{"$set": bson.M{"status": StatusAccepted, "updated_at": time.Now()}},
	)
	if err != nil {
		return err
	}
	if result.MatchedCount > 0 {
		return nil
	}

	post, err := s.Get(ctx, postID)
	if err != nil {
		return err
	}
	switch {
	case post.Status == StatusAccepted && post.AcceptedBy == userID:
		return nil
	case post.AcceptedBy != "" && post.AcceptedBy != userID:
		return fmt.Errorf("%w: only the acceptor may undo this collection", ErrPermissionDenied)
	default:
		return fmt.Errorf("%w: cannot revert a %s post", ErrInvalidTransition, post.Status)
	}
}

// Update applies a contributor edit. Only the contributor may edit, and
// only while the post is still pending.
func (s *PostsStore) Update(ctx context.Context, postID, contributorID string, patch bson.M) (*WastePost, error) {
	oid, err := bson.ObjectIDFromHex(postID)
	if err != nil {
		return nil, ErrNotFound
	}

	// status and acceptance are owned by the transition operations
	delete(patch, "status")
	delete(patch, "accepted_by")
	patch["updated_at"] = time.Now()

	result, err := s.coll.UpdateOne(ctx,
		bson.M{"_id": oid, "status": StatusPending, "contributor_id": contributorID},
		bson.M{"$set": patch},
	)
	if err != nil {
		return nil, err
	}
	if result.MatchedCount == 0 {
		post, err := s.Get(ctx, postID)
		if err != nil {
			return nil, err
		}
		if post.ContributorID != contributorID {
			return nil, fmt.Errorf("%w: only the contributor may edit this post", ErrPermissionDenied)
		}
		return nil, fmt.Errorf("%w: cannot edit a %s post", ErrInvalidTransition, post.Status)
	}
	return s.Get(ctx, postID)
}

// Delete removes a post. Allowed only while pending, and only by its
// contributor.
func (s *PostsStore) Delete(ctx context.Context, postID, contributorID string) error {
	oid, err := bson.ObjectIDFromHex(postID)
	if err != nil {
		return ErrNotFound
	}

	result, err := s.coll.DeleteOne(ctx,
		bson.M{"_id": oid, "status": StatusPending, "contributor_id": contributorID},
	)
	if err != nil {
		return err
	}
	if result.DeletedCount > 0 {
		return nil
	}

	post, err := s.Get(ctx, postID)
	if err != nil {
		return err
	}
	if post.ContributorID != contributorID {
		return fmt.Errorf("%w: only the contributor may delete this post", ErrPermissionDenied)
	}
	return fmt.Errorf("%w: cannot delete a %s post", ErrInvalidTransition, post.Status)
}

// CollectedQuantity sums the quantity of collected posts accepted by any
// of the given collectors. Used for NGO totals over a volunteer roster.
func (s *PostsStore) CollectedQuantity(ctx context.Context, collectorIDs []string) (float64, error) {
	if len(collectorIDs) == 0 {
		return 0, nil
	}

	pipeline := mongo.Pipeline{
		bson.D{{Key: "$match", Value: bson.D{
			{Key: "accepted_by", Value: bson.D{{Key: "$in", Value: collectorIDs}}},
			{Key: "status", Value: StatusCollected},
		}}},
		bson.D{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: nil},
			{Key: "total", Value: bson.D{{Key: "$sum", Value: "$quantity"}}},
		}}},
	}

	cursor, err := s.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return 0, err
	}
	defer cursor.Close(ctx)

	var results []bson.M
	if err := cursor.All(ctx, &results); err != nil {
		return 0, err
	}
	if len(results) == 0 {
		return 0, nil
	}

	switch v := results[0]["total"].(type) {
	case float64:
		return v, nil
	case int32:
		return float64(v), nil
	case int64:
		return float64(v), nil
	}
	return 0, nil
}
