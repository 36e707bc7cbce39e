package inmemorystore

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/vk/newsdag/internal/nodestore"
	"github.com/vk/newsdag/internal/task"
)

// Store is an in-memory implementation of nodestore.Store.
//
// It keeps four independent sync.Maps keyed by task name:
//   - states: task.Status
//   - results: any
//   - errors: error
//   - attempts: *atomic.Int64
type Store struct {
	states   sync.Map
	results  sync.Map
	errors   sync.Map
	attempts sync.Map
}

// New creates a new, empty in-memory task state store.
func New() nodestore.Store {
	return &Store{}
}

// SetStatus updates the execution status of a task.
func (s *Store) SetStatus(ctx context.Context, name string, status task.Status) error {
	s.states.Store(name, status)
	return nil
}

// GetStatus retrieves the execution status of a task.
// If a status has not been set, it returns StatusPending.
func (s *Store) GetStatus(ctx context.Context, name string) (task.Status, error) {
	status, ok := s.states.Load(name)
	if !ok {
		return task.StatusPending, nil
	}
	return status.(task.Status), nil
}

// SetResult records the successful result of a task.
func (s *Store) SetResult(ctx context.Context, name string, result any) error {
	s.results.Store(name, result)
	return nil
}

// GetResult retrieves the recorded result of a task.
func (s *Store) GetResult(ctx context.Context, name string) (any, error) {
	result, ok := s.results.Load(name)
	if !ok {
		return nil, nil
	}
	return result, nil
}

// SetError records the failure of a task.
func (s *Store) SetError(ctx context.Context, name string, taskErr error) error {
	s.errors.Store(name, taskErr)
	return nil
}

// GetError retrieves the recorded error of a task.
func (s *Store) GetError(ctx context.Context, name string) (error, error) {
	err, ok := s.errors.Load(name)
	if !ok {
		return nil, nil
	}
	return err.(error), nil
}

// IncAttempts increments the attempt counter of a task.
func (s *Store) IncAttempts(ctx context.Context, name string) (int, error) {
	counter, _ := s.attempts.LoadOrStore(name, &atomic.Int64{})
	return int(counter.(*atomic.Int64).Add(1)), nil
}

// GetAttempts returns the attempt counter of a task.
func (s *Store) GetAttempts(ctx context.Context, name string) (int, error) {
	counter, ok := s.attempts.Load(name)
	if !ok {
		return 0, nil
	}
	return int(counter.(*atomic.Int64).Load()), nil
}
