// Package inmem is a process local blob store, used in development and tests.
package inmem

import (
	"context"
	"sync"

	"github.com/mdii/portal/core"
)

type Store struct {
	blobs map[string][]byte
	mutex sync.RWMutex
}

func Open() *Store {
	return &Store{blobs: make(map[string][]byte)}
}

func (s *Store) Get(_ context.Context, key string) ([]byte, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	data, ok := s.blobs[key]
	if !ok {
		return nil, core.ErrBlobNotFound
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

func (s *Store) Put(_ context.Context, key string, data []byte, _ string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	buf := make([]byte, len(data))
	copy(buf, data)
	s.blobs[key] = buf
	return nil
}
