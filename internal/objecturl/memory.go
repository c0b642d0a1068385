package objecturl

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps blobs in process memory.
type MemoryStore struct {
	mu    sync.RWMutex
	blobs map[string]*Blob
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		blobs: make(map[string]*Blob),
	}
}

func (s *MemoryStore) Put(_ context.Context, id string, blob *Blob) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.blobs[id] = blob
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (*Blob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	blob, ok := s.blobs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return blob, nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.blobs, id)
	return nil
}

func (s *MemoryStore) Sweep(_ context.Context, maxAge time.Duration) (int, error) {
	cutoff := time.Now().UTC().Add(-maxAge)

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, blob := range s.blobs {
		if blob.CreatedAt.Before(cutoff) {
			delete(s.blobs, id)
			removed++
		}
	}
	return removed, nil
}

// Len returns the number of live blobs
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.blobs)
}
