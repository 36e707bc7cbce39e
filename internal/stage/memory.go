package stage

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// MemoryStore is a Store kept in process memory. Its ETags are the hex MD5 of
// the content, as S3 reports for single-part uploads.
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[string]memoryObject
	now     func() time.Time
}

type memoryObject struct {
	meta Object
	data []byte
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		objects: make(map[string]memoryObject),
		now:     time.Now,
	}
}

// Put implements Store.
func (s *MemoryStore) Put(ctx context.Context, key string, data []byte) (Object, error) {
	key = normalizeKey(key)
	if key == "" {
		return Object{}, fmt.Errorf("object key is required")
	}
	sum := md5.Sum(data)
	obj := Object{
		Key:          key,
		Size:         int64(len(data)),
		ETag:         hex.EncodeToString(sum[:]),
		LastModified: s.now().UTC(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = memoryObject{meta: obj, data: append([]byte(nil), data...)}
	return obj, nil
}

// Get implements Store.
func (s *MemoryStore) Get(ctx context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	obj, ok := s.objects[normalizeKey(key)]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), obj.data...), nil
}

// List implements Store.
func (s *MemoryStore) List(ctx context.Context, prefix string) ([]Object, error) {
	prefix = normalizeKey(prefix)

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Object
	for key, obj := range s.objects {
		if strings.HasPrefix(key, prefix) {
			out = append(out, obj.meta)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func normalizeKey(key string) string {
	return strings.TrimLeft(strings.TrimSpace(key), "/")
}
