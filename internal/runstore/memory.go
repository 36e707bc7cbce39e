package runstore

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// MemoryStore keeps run records in process memory.
type MemoryStore struct {
	mu   sync.RWMutex
	byID map[string]Record
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byID: make(map[string]Record)}
}

// Save implements Store.
func (s *MemoryStore) Save(ctx context.Context, rec Record) error {
	id := strings.TrimSpace(rec.RunID)
	if id == "" {
		return errRunIDRequired
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byID[id] = cloneRecord(rec)
	return nil
}

// Get implements Store.
func (s *MemoryStore) Get(ctx context.Context, runID string) (Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.byID[strings.TrimSpace(runID)]
	if !ok {
		return Record{}, ErrNotFound
	}
	return cloneRecord(rec), nil
}

// List implements Store.
func (s *MemoryStore) List(ctx context.Context, limit int) ([]Record, error) {
	s.mu.RLock()
	out := make([]Record, 0, len(s.byID))
	for _, rec := range s.byID {
		out = append(out, cloneRecord(rec))
	}
	s.mu.RUnlock()

	sortNewestFirst(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func sortNewestFirst(recs []Record) {
	sort.Slice(recs, func(i, j int) bool {
		if !recs[i].LogicalDate.Equal(recs[j].LogicalDate) {
			return recs[i].LogicalDate.After(recs[j].LogicalDate)
		}
		return recs[i].RunID > recs[j].RunID
	})
}

func cloneRecord(rec Record) Record {
	rec.Tasks = append([]TaskRecord(nil), rec.Tasks...)
	for i := range rec.Tasks {
		rec.Tasks[i].Result = append([]byte(nil), rec.Tasks[i].Result...)
	}
	return rec
}
