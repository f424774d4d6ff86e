/*
Copyright 2014 The Camlistore Authors

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

     http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package shardstore

import (
	"sort"
	"sync"

	"github.com/lethevfs/lethe/pkg/errs"
)

// MemStore is an in-memory Store, the "in-memory fake" §9 calls for
// alongside the on-disk implementation: fast, deterministic tests of the
// higher layers (fileio) without touching a real filesystem.
// It mirrors pkg/blobserver/memory's shape (a guarded map plus a sorted
// key slice) generalized from blob.Ref keys to opaque shard ids.
type MemStore struct {
	mu     sync.RWMutex
	m      map[string][]byte
	sorted []string
}

// NewMemStore returns an empty in-memory Store.
func NewMemStore() *MemStore {
	return &MemStore{m: make(map[string][]byte)}
}

func (s *MemStore) Put(id string, bytes []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, had := s.m[id]; had {
		return errs.ErrCollision
	}
	cp := make([]byte, len(bytes))
	copy(cp, bytes)
	s.m[id] = cp
	s.sorted = append(s.sorted, id)
	sort.Strings(s.sorted)
	return nil
}

func (s *MemStore) Get(id string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.m[id]
	if !ok {
		return nil, errs.ErrNotFound
	}
	cp := make([]byte, len(b))
	copy(cp, b)
	return cp, nil
}

func (s *MemStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.m, id)
	for i, k := range s.sorted {
		if k == id {
			s.sorted = append(s.sorted[:i], s.sorted[i+1:]...)
			break
		}
	}
	return nil
}

func (s *MemStore) IterIDs(fn func(id string) error) error {
	s.mu.RLock()
	ids := make([]string, len(s.sorted))
	copy(ids, s.sorted)
	s.mu.RUnlock()
	for _, id := range ids {
		if err := fn(id); err != nil {
			return err
		}
	}
	return nil
}

// NumShards returns the number of shards currently stored, for tests that
// assert on shard-count invariants after writes, overwrites, or GC.
func (s *MemStore) NumShards() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.m)
}
