// Package memkv implements an in-memory kv.Backend used by unit tests
// across the module — the Go-native equivalent of x/vm/statedb/mock_test.go's
// MockKeeper: a plain map standing in for the real backend so higher-level
// packages (state, evmcore, engine) can be tested without RocksDB or a host
// runtime.
package memkv

import (
	"context"
	"sync"

	"github.com/aurora-is-near/engine-go/kv"
)

// Store is a process-local, non-persistent kv.Backend.
type Store struct {
	mu   sync.Mutex
	data map[string][]byte

	input  []byte
	output []byte
}

// New returns an empty Store.
func New() *Store {
	return &Store{data: make(map[string][]byte)}
}

func (s *Store) ReadInput(context.Context) ([]byte, error) { return s.input, nil }

func (s *Store) ReturnOutput(_ context.Context, output []byte) error {
	s.output = append([]byte(nil), output...)
	return nil
}

// SetInput seeds the input buffer ReadInput returns, for tests that
// exercise a precompile's input-reading path.
func (s *Store) SetInput(input []byte) { s.input = input }

// Output returns whatever ReturnOutput last recorded.
func (s *Store) Output() []byte { return s.output }

func (s *Store) ReadStorage(_ context.Context, key []byte) (kv.Value, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.data[string(key)]
	if !ok {
		return nil, false, nil
	}
	return kv.OwnedValue(v), true, nil
}

func (s *Store) StorageHasKey(_ context.Context, key []byte) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.data[string(key)]
	return ok, nil
}

func (s *Store) WriteStorage(_ context.Context, key, value []byte) (kv.Value, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	prior, had := s.data[string(key)]
	s.data[string(key)] = append([]byte(nil), value...)
	if !had {
		return nil, false, nil
	}
	return kv.OwnedValue(prior), true, nil
}

func (s *Store) RemoveStorage(_ context.Context, key []byte) (kv.Value, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	prior, had := s.data[string(key)]
	delete(s.data, string(key))
	if !had {
		return nil, false, nil
	}
	return kv.OwnedValue(prior), true, nil
}

var _ kv.Backend = (*Store)(nil)
