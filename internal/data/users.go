// Package data provides DB models and stores.
package data

import (
	"context"
	"fmt"
	"time"

	"github.com/waste2worth/backend/internal/normalize"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// UsersStore performs user DB operations.
type UsersStore struct {
	coll *mongo.Collection
}

// NewUsersStore returns a UsersStore using the provided collection.
func NewUsersStore(coll *mongo.Collection) *UsersStore {
	return &UsersStore{coll: coll}
}

// Create inserts a new user document. The password must already be
// hashed by auth.HashPassword.
func (s *UsersStore) Create(ctx context.Context, user *User) (*User, error) {
	user.Email = normalize.Email(user.Email)
	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now

	result, err := s.coll.InsertOne(ctx, user)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, ErrDuplicateEmail
		}
		return nil, err
	}
	user.ID = result.InsertedID.(bson.ObjectID)
	return user, nil
}

// GetByEmail finds a user by (normalized) email.
func (s *UsersStore) GetByEmail(ctx context.Context, email string) (*User, error) {
	var user User
	err := s.coll.FindOne(ctx, bson.M{"email": normalize.Email(email)}).Decode(&user)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}

// GetByID finds a user by id. Backs the identity lookup used for chat
// headers; callers degrade to a placeholder when this fails.
func (s *UsersStore) GetByID(ctx context.Context, userID string) (*User, error) {
	oid, err := bson.ObjectIDFromHex(userID)
	if err != nil {
		return nil, ErrNotFound
	}

	var user User
	if err := s.coll.FindOne(ctx, bson.M{"_id": oid}).Decode(&user); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}

// AddVolunteers bulk-inserts volunteer accounts under an NGO (the bulk
// roster upload flow). Duplicate emails are skipped, not fatal; returns
// how many were actually inserted.
func (s *UsersStore) AddVolunteers(ctx context.Context, ngoID string, volunteers []*User) (int, error) {
	if ngoID == "" {
		return 0, fmt.Errorf("%w: ngo id is required", ErrValidation)
	}
	if len(volunteers) == 0 {
		return 0, nil
	}

	docs := make([]interface{}, 0, len(volunteers))
	now := time.Now()
	for _, v := range volunteers {
		v.Email = normalize.Email(v.Email)
		v.Role = RoleVolunteer
		v.NgoID = ngoID
		v.CreatedAt = now
		v.UpdatedAt = now
		docs = append(docs, v)
	}

	// unordered insert: one duplicate must not abort the rest of the batch
	opts := options.InsertMany().SetOrdered(false)
	result, err := s.coll.InsertMany(ctx, docs, opts)
	inserted := 0
	if result != nil {
		inserted = len(result.InsertedIDs)
	}
	if err != nil && !mongo.IsDuplicateKeyError(err) {
		return inserted, err
	}
	return inserted, nil
}

// ListVolunteers returns the volunteer roster of an NGO.
func (s *UsersStore) ListVolunteers(ctx context.Context, ngoID string) ([]*User, error) {
	cursor, err := s.coll.Find(ctx, bson.M{"ngo_id": ngoID, "role": RoleVolunteer})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var volunteers []*User
	if err := cursor.All(ctx, &volunteers); err != nil {
		return nil, err
	}
	return volunteers, nil
}
