package data

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/waste2worth/backend/internal/db"
)

// Integration tests; require a running MongoDB instance via MONGODB_URI.

func newTestUsersStore(t *testing.T) (*UsersStore, func()) {
	t.Helper()

	uri := os.Getenv("MONGODB_URI")
	if uri == "" {
		t.Skip("MONGODB_URI not set; skipping integration test")
	}

	ctx := context.Background()
	c, err := db.New(ctx, uri, "waste2worth_test")
	if err != nil {
		t.Fatalf("db.New failed: %v", err)
	}
	_ = c.UsersCollection().Drop(ctx)
	if err := c.CreateIndexes(ctx); err != nil {
		t.Fatalf("CreateIndexes failed: %v", err)
	}

	cleanup := func() {
		_ = c.UsersCollection().Drop(context.Background())
		_ = c.Close(context.Background())
	}
	return NewUsersStore(c.UsersCollection()), cleanup
}

func TestUsersCreateAndLookup(t *testing.T) {
	users, cleanup := newTestUsersStore(t)
	defer cleanup()

	ctx := context.Background()
	created, err := users.Create(ctx, &User{
		Name:     "Alice",
		Email:    "ALICE@Example.com",
		Password: "hashed",
		Role:     RoleContributor,
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	// stored email is normalized; lookup with mixed case still matches
	byEmail, err := users.GetByEmail(ctx, "alice@EXAMPLE.com")
	if err != nil {
		t.Fatalf("GetByEmail failed: %v", err)
	}
	if byEmail.ID != created.ID {
		t.Fatal("GetByEmail returned a different user")
	}

	byID, err := users.GetByID(ctx, created.ID.Hex())
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if byID.Name != "Alice" {
		t.Fatalf("unexpected name: %q", byID.Name)
	}

	// duplicate registration is rejected
	if _, err := users.Create(ctx, &User{Email: "alice@example.com", Role: RoleContributor}); !errors.Is(err, ErrDuplicateEmail) {
		t.Fatalf("expected ErrDuplicateEmail, got %v", err)
	}
}

func TestUsersVolunteerRoster(t *testing.T) {
	users, cleanup := newTestUsersStore(t)
	defer cleanup()

	ctx := context.Background()
	inserted, err := users.AddVolunteers(ctx, "ngo-1", []*User{
		{Name: "V1", Email: "v1@example.com"},
		{Name: "V2", Email: "v2@example.com"},
	})
	if err != nil {
		t.Fatalf("AddVolunteers failed: %v", err)
	}
	if inserted != 2 {
		t.Fatalf("expected 2 inserted, got %d", inserted)
	}

	// re-upload with one duplicate and one new entry
	inserted, err = users.AddVolunteers(ctx, "ngo-1", []*User{
		{Name: "V2", Email: "v2@example.com"},
		{Name: "V3", Email: "v3@example.com"},
	})
	if err != nil {
		t.Fatalf("AddVolunteers (partial duplicate) failed: %v", err)
	}
	if inserted != 1 {
		t.Fatalf("expected 1 inserted on re-upload, got %d", inserted)
	}

	roster, err := users.ListVolunteers(ctx, "ngo-1")
	if err != nil {
		t.Fatalf("ListVolunteers failed: %v", err)
	}
	if len(roster) != 3 {
		t.Fatalf("expected 3 volunteers, got %d", len(roster))
	}
}
