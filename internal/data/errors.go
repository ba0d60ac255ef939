package data

import "errors"

// Sentinel errors returned by the stores. Handlers map these onto HTTP
// status codes; anything else coming out of a store is treated as a
// transient store failure and is retryable.
var (
	// ErrNotFound means the referenced post, thread or user does not exist.
	ErrNotFound = errors.New("not found")

	// ErrPermissionDenied means the actor is not authorized for the
	// requested operation, e.g. releasing a post accepted by someone else.
	ErrPermissionDenied = errors.New("permission denied")

	// ErrInvalidTransition means the requested status change does not
	// follow the post state machine, e.g. collecting a pending post.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrValidation means the input was rejected before any store write.
	ErrValidation = errors.New("invalid input")

	// ErrDuplicateEmail means a user with that email already exists.
	ErrDuplicateEmail = errors.New("user already exists")

	// ErrOrderUnsupported means the backing store could not serve the
	// ordered message query; the caller must fall back to an unordered
	// fetch and sort client-side.
	ErrOrderUnsupported = errors.New("ordered query unsupported")
)
