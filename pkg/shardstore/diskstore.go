/*
Copyright 2011 Google Inc.

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
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/lethevfs/lethe/pkg/errs"
)

// DiskStore implements Store directly on a host directory. Shard blobs
// are named blk_<id>.bin and live flat in that directory, the way the
// vault's salt and meta_N blobs do: a directory listing of a Lethe vault
// should look like an undifferentiated pile of opaque files (§3).
type DiskStore struct {
	root string

	// dirMu serializes directory-entry mutations (create/rename/remove
	// of shard files), mirroring the role localdisk.DiskStorage's
	// dirLockMu plays there: it guards the directory's namespace, not
	// the bytes of any one shard. Concurrent reads of disjoint shards
	// need no serialization (§5).
	dirMu sync.Mutex
}

// NewDiskStore returns a Store rooted at dir, which must already exist.
func NewDiskStore(dir string) (*DiskStore, error) {
	fi, err := os.Stat(dir)
	if err != nil {
		return nil, errs.NewIOError("stat shard root", err)
	}
	if !fi.IsDir() {
		return nil, fmt.Errorf("shardstore: %q is not a directory", dir)
	}
	return &DiskStore{root: dir}, nil
}

func (s *DiskStore) path(id string) string {
	return filepath.Join(s.root, "blk_"+id+".bin")
}

// Put writes bytes to blk_<id>.bin via temp-file + fsync + rename + parent
// fsync, the atomic-write idiom pkg/blobserver/localdisk's ReceiveBlob
// uses for .dat files.
func (s *DiskStore) Put(id string, bytes []byte) error {
	s.dirMu.Lock()
	defer s.dirMu.Unlock()

	dst := s.path(id)
	if _, err := os.Stat(dst); err == nil {
		return errs.ErrCollision
	}

	tmp, err := os.CreateTemp(s.root, "."+id+".tmp-*")
	if err != nil {
		return errs.NewIOError("create temp shard", err)
	}
	tmpName := tmp.Name()
	success := false
	defer func() {
		if !success {
			tmp.Close()
			os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(bytes); err != nil {
		return errs.NewIOError("write temp shard", err)
	}
	if err := tmp.Sync(); err != nil {
		return errs.NewIOError("fsync temp shard", err)
	}
	if err := tmp.Close(); err != nil {
		return errs.NewIOError("close temp shard", err)
	}
	if err := os.Rename(tmpName, dst); err != nil {
		return errs.NewIOError("rename shard into place", err)
	}
	success = true
	return syncDir(s.root)
}

// Get returns the bytes stored under id.
func (s *DiskStore) Get(id string) ([]byte, error) {
	b, err := os.ReadFile(s.path(id))
	if os.IsNotExist(err) {
		return nil, errs.ErrNotFound
	}
	if err != nil {
		return nil, errs.NewIOError("read shard", err)
	}
	return b, nil
}

// Delete idempotently removes id.
func (s *DiskStore) Delete(id string) error {
	s.dirMu.Lock()
	defer s.dirMu.Unlock()

	err := os.Remove(s.path(id))
	if err != nil && !os.IsNotExist(err) {
		return errs.NewIOError("delete shard", err)
	}
	return nil
}

// IterIDs enumerates blk_<hex>.bin filenames under root, ignoring salt,
// meta_N, and any other non-shard file the vault directory holds.
func (s *DiskStore) IterIDs(fn func(id string) error) error {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return errs.NewIOError("readdir shard root", err)
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !strings.HasPrefix(name, "blk_") || !strings.HasSuffix(name, ".bin") {
			continue
		}
		id := strings.TrimSuffix(strings.TrimPrefix(name, "blk_"), ".bin")
		if !looksLikeID(id) {
			continue
		}
		if err := fn(id); err != nil {
			return err
		}
	}
	return nil
}

func syncDir(dir string) error {
	f, err := os.Open(dir)
	if err != nil {
		return errs.NewIOError("open dir for fsync", err)
	}
	defer f.Close()
	if err := f.Sync(); err != nil && !dirSyncUnsupported(err) {
		return errs.NewIOError("fsync dir", err)
	}
	return nil
}
