package runstore

import (
	"context"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultCacheSize is the number of run records kept by NewCachedStore when
// size is not positive.
const DefaultCacheSize = 256

// CacheStats is a snapshot of cache counters.
type CacheStats struct {
	Hits   uint64
	Misses uint64
}

// CachedStore is a read-through LRU cache in front of another Store. Only
// Get is cached; List always goes to the origin so new runs show up.
type CachedStore struct {
	origin Store
	cache  *lru.Cache[string, Record]

	hits   atomic.Uint64
	misses atomic.Uint64
}

// NewCachedStore wraps origin with a cache of size entries.
func NewCachedStore(origin Store, size int) (*CachedStore, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	cache, err := lru.New[string, Record](size)
	if err != nil {
		return nil, err
	}
	return &CachedStore{origin: origin, cache: cache}, nil
}

// Save implements Store. The cache is updated only after the origin accepted
// the record.
func (s *CachedStore) Save(ctx context.Context, rec Record) error {
	if err := s.origin.Save(ctx, rec); err != nil {
		return err
	}
	s.cache.Add(rec.RunID, cloneRecord(rec))
	return nil
}

// Get implements Store.
func (s *CachedStore) Get(ctx context.Context, runID string) (Record, error) {
	if rec, ok := s.cache.Get(runID); ok {
		s.hits.Add(1)
		return cloneRecord(rec), nil
	}
	s.misses.Add(1)

	rec, err := s.origin.Get(ctx, runID)
	if err != nil {
		return Record{}, err
	}
	s.cache.Add(runID, cloneRecord(rec))
	return rec, nil
}

// List implements Store.
func (s *CachedStore) List(ctx context.Context, limit int) ([]Record, error) {
	return s.origin.List(ctx, limit)
}

// Stats returns the cache counters.
func (s *CachedStore) Stats() CacheStats {
	return CacheStats{Hits: s.hits.Load(), Misses: s.misses.Load()}
}
