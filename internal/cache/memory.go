package cache

import (
	"context"
	"sync"

	"github.com/cespare/xxhash/v2"
)

const defaultShards = 32

type shard struct {
	mu sync.RWMutex
	m  map[string]string
}

// Memory is a lock-striped in-process Store. Entries live until removed.
type Memory struct {
	shards []shard
}

var _ Store = (*Memory)(nil)

// NewMemory returns an empty store with n shards (a default when n <= 0).
func NewMemory(n int) *Memory {
	if n <= 0 {
		n = defaultShards
	}
	s := &Memory{shards: make([]shard, n)}
	for i := range s.shards {
		s.shards[i].m = make(map[string]string)
	}
	return s
}

func (s *Memory) shardFor(key string) *shard {
	return &s.shards[xxhash.Sum64String(key)%uint64(len(s.shards))]
}

// Put sets key to value.
func (s *Memory) Put(_ context.Context, key, value string) error {
	sh := s.shardFor(key)
	sh.mu.Lock()
	sh.m[key] = value
	sh.mu.Unlock()
	return nil
}

// Get returns the value of key.
func (s *Memory) Get(_ context.Context, key string) (string, bool, error) {
	sh := s.shardFor(key)
	sh.mu.RLock()
	v, ok := sh.m[key]
	sh.mu.RUnlock()
	return v, ok, nil
}

// Remove deletes key.
func (s *Memory) Remove(_ context.Context, key string) error {
	sh := s.shardFor(key)
	sh.mu.Lock()
	delete(sh.m, key)
	sh.mu.Unlock()
	return nil
}

// Len returns the number of entries across all shards.
func (s *Memory) Len() int {
	n := 0
	for i := range s.shards {
		sh := &s.shards[i]
		sh.mu.RLock()
		n += len(sh.m)
		sh.mu.RUnlock()
	}
	return n
}
