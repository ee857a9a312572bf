package cache

import (
	"context"
	"errors"
	"sort"
	"sync"

	"kdstore/internal/storage"
)

var errInjected = errors.New("injected failure")

// memStore is an in-memory storage.Store that counts calls and can fail on
// demand.
type memStore struct {
	mu      sync.Mutex
	blobs   map[string][]byte
	gets    map[string]int
	puts    map[string]int
	failGet bool
	failPut bool
}

var _ storage.Store = (*memStore)(nil)

func newMemStore() *memStore {
	return &memStore{
		blobs: make(map[string][]byte),
		gets:  make(map[string]int),
		puts:  make(map[string]int),
	}
}

func (s *memStore) Get(_ context.Context, name string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gets[name]++
	if s.failGet {
		return nil, errInjected
	}
	blob, ok := s.blobs[name]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return append([]byte(nil), blob...), nil
}

func (s *memStore) Put(_ context.Context, name string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.puts[name]++
	if s.failPut {
		return errInjected
	}
	s.blobs[name] = append([]byte(nil), data...)
	return nil
}

func (s *memStore) Delete(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.blobs, name)
	return nil
}

func (s *memStore) List(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.blobs))
	for name := range s.blobs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (s *memStore) setFailPut(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failPut = v
}

func (s *memStore) setFailGet(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failGet = v
}

func (s *memStore) getCount(name string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gets[name]
}

func (s *memStore) putCount(name string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.puts[name]
}

func (s *memStore) blob(name string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.blobs[name]
	return b, ok
}
