// Package memory is an in-process kv.Store used by tests and the memory
// backend.
package memory

import (
	"context"
	"sync"
)

// Store keeps values in a map guarded by a mutex.
type Store struct {
	mu     sync.RWMutex
	items  map[string]string
	writes int

	failSet   error
	failGet   error
	failClear error
	onSet     func(key, value string)
}

// Option configures the store.
type Option func(*Store)

// WithSeed preloads the given entries.
func WithSeed(entries map[string]string) Option {
	return func(s *Store) {
		for k, v := range entries {
			s.items[k] = v
		}
	}
}

// WithSetHook calls fn after every successful Set, outside the lock.
func WithSetHook(fn func(key, value string)) Option {
	return func(s *Store) {
		s.onSet = fn
	}
}

func New(opts ...Option) *Store {
	s := &Store{items: make(map[string]string)}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.failGet != nil {
		return "", false, s.failGet
	}
	v, ok := s.items[key]
	return v, ok, nil
}

func (s *Store) Set(ctx context.Context, key, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	if s.failSet != nil {
		err := s.failSet
		s.mu.Unlock()
		return err
	}
	s.items[key] = value
	s.writes++
	hook := s.onSet
	s.mu.Unlock()

	if hook != nil {
		hook(key, value)
	}
	return nil
}

func (s *Store) Clear(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failClear != nil {
		return s.failClear
	}
	s.items = make(map[string]string)
	return nil
}

// Ping always succeeds.
func (s *Store) Ping(context.Context) error {
	return nil
}

// FailSet makes every following Set return err. A nil err restores writes.
func (s *Store) FailSet(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failSet = err
}

// FailGet makes every following Get return err.
func (s *Store) FailGet(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failGet = err
}

// FailClear makes every following Clear return err.
func (s *Store) FailClear(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failClear = err
}

// Writes returns the number of successful Set calls.
func (s *Store) Writes() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.writes
}

// Len returns the number of stored keys.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}
