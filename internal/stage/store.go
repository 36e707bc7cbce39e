package stage

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when an object does not exist.
var ErrNotFound = errors.New("object not found")

// Object describes a staged object.
type Object struct {
	Key          string
	Size         int64
	ETag         string
	LastModified time.Time
}

// Store is the staging area the warehouse ingests from.
type Store interface {
	// Put writes data under key, replacing any previous object.
	Put(ctx context.Context, key string, data []byte) (Object, error)
	// Get returns the content of an object, or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)
	// List returns the objects under prefix sorted by key.
	List(ctx context.Context, prefix string) ([]Object, error)
}
