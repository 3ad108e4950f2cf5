// Package memstore implements an in-process store.Store backed by a mutex
// guarded map, suitable for tests and single-process deployments.
package memstore

import (
	"context"
	"fmt"
	"sync"

	"github.com/bankaixyz/mmr/store"
)

// Store is an in-memory store.Store. The zero value is not ready to use;
// construct one with New.
type Store struct {
	mu   sync.RWMutex
	data map[store.Key]store.Value
}

// New returns an empty Store.
func New() *Store {
	return &Store{data: make(map[store.Key]store.Value)}
}

// Get implements store.Store.
func (s *Store) Get(_ context.Context, key store.Key) (store.Value, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data[key]
	return v, ok, nil
}

// Set implements store.Store.
func (s *Store) Set(_ context.Context, key store.Key, value store.Value) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = value
	return nil
}

// SetMany implements store.Store. The in-process mutex makes the write
// trivially atomic with respect to concurrent Get/GetMany calls.
func (s *Store) SetMany(_ context.Context, entries map[store.Key]store.Value) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, value := range entries {
		s.data[key] = value
	}
	return nil
}

// GetMany implements store.Store.
func (s *Store) GetMany(_ context.Context, keys []store.Key) (map[store.Key]store.Value, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[store.Key]store.Value, len(keys))
	for _, key := range keys {
		if v, ok := s.data[key]; ok {
			out[key] = v
		}
	}
	return out, nil
}

// String renders the number of entries currently held, for debugging.
func (s *Store) String() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fmt.Sprintf("memstore.Store{entries: %d}", len(s.data))
}
