/*
Copyright 2013 The Camlistore Authors.

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

package vault

import (
	"context"
	"time"

	"github.com/lethevfs/lethe/pkg/errs"
	"github.com/lethevfs/lethe/pkg/metadata"
	"github.com/lethevfs/lethe/pkg/metastore"
)

// Stat returns a snapshot of the entry at path.
func (v *Vault) Stat(path string) (*metadata.Entry, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if err := v.requireOpen(); err != nil {
		return nil, err
	}
	return v.tree.Lookup(path)
}

// Readdir returns snapshots of the children of the directory at path, in
// insertion order.
func (v *Vault) Readdir(path string) ([]*metadata.Entry, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if err := v.requireOpen(); err != nil {
		return nil, err
	}
	return v.tree.List(path)
}

// Read returns up to length bytes of the file at path starting at offset.
func (v *Vault) Read(path string, offset int64, length int) ([]byte, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if err := v.requireOpen(); err != nil {
		return nil, err
	}
	return v.io.ReadAt(v.tree, path, offset, length)
}

// Write splices data into the file at path starting at offset, growing it
// if the write extends past the current end. ctx is checked between
// shards for a large write; a cancelled ctx aborts with errs.ErrCancelled,
// leaving the vault's metadata untouched (§5 "Cancellation").
func (v *Vault) Write(ctx context.Context, path string, offset int64, data []byte, now time.Time) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if err := v.requireOpen(); err != nil {
		return err
	}
	return v.io.WriteAt(ctx, v.tree, path, offset, data, now)
}

// Truncate resizes the file at path to newSize.
func (v *Vault) Truncate(path string, newSize int64, now time.Time) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if err := v.requireOpen(); err != nil {
		return err
	}
	return v.io.Truncate(v.tree, path, newSize, now)
}

// Create adds a new empty file at path (§4.G "create").
func (v *Vault) Create(path string, mode uint32, now time.Time) (*metadata.Entry, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if err := v.requireOpen(); err != nil {
		return nil, err
	}
	return v.tree.Insert(path, metadata.File, mode, now)
}

// Mkdir adds a new empty directory at path.
func (v *Vault) Mkdir(path string, mode uint32, now time.Time) (*metadata.Entry, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if err := v.requireOpen(); err != nil {
		return nil, err
	}
	return v.tree.Insert(path, metadata.Dir, mode, now)
}

// Unlink removes the file at path. It fails with errs.ErrNotAFile if path
// names a directory; use Rmdir for those.
func (v *Vault) Unlink(path string, now time.Time) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if err := v.requireOpen(); err != nil {
		return err
	}
	entry, err := v.tree.Lookup(path)
	if err != nil {
		return err
	}
	if entry.Kind != metadata.File {
		return errs.ErrNotAFile
	}
	return v.tree.Remove(path, now)
}

// Rmdir removes the empty directory at path. It fails with
// errs.ErrNotADir if path names a file, and with errs.ErrExists if the
// directory still has children (§3 invariant: can't remove a non-empty
// directory).
func (v *Vault) Rmdir(path string, now time.Time) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if err := v.requireOpen(); err != nil {
		return err
	}
	entry, err := v.tree.Lookup(path)
	if err != nil {
		return err
	}
	if entry.Kind != metadata.Dir {
		return errs.ErrNotADir
	}
	return v.tree.Remove(path, now)
}

// Rename moves the entry at oldPath to newPath. Renaming a file onto an
// existing directory fails with errs.ErrNotAFile rather than the
// generic errs.ErrExists a plain name collision would report, matching
// the boundary behavior in §8 ("rename file onto existing directory").
func (v *Vault) Rename(oldPath, newPath string, now time.Time) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if err := v.requireOpen(); err != nil {
		return err
	}
	if dst, err := v.tree.Lookup(newPath); err == nil && dst.Kind == metadata.Dir {
		return errs.ErrNotAFile
	}
	return v.tree.Rename(oldPath, newPath, now)
}

// Flush seals and persists the current in-memory tree, advancing the
// vault's metadata epoch (§4.E). It does not touch shard blobs, which are
// already durable by the time Write/Truncate return.
func (v *Vault) Flush() (uint64, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if err := v.requireOpen(); err != nil {
		return 0, err
	}
	epoch, err := metastore.Flush(v.dir, v.key, v.tree, v.params)
	if err != nil {
		return 0, err
	}
	v.epoch = epoch
	return epoch, nil
}

// GC reclaims shard blobs no longer referenced by any file in the tree
// (§4.G "clean"). It holds the write lock for its duration, as deleting a
// shard concurrently with a write that might still reference it would be
// unsafe. ctx is checked between shard deletions; if it's done partway
// through, GC returns errs.ErrCancelled along with the count of shards
// already reclaimed, leaving the vault consistent — the remaining stale
// shards stay on disk for a later GC to pick up (§5 "Cancellation").
func (v *Vault) GC(ctx context.Context) (deleted int, err error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if err := v.requireOpen(); err != nil {
		return 0, err
	}

	live := make(map[string]struct{})
	for _, id := range v.tree.LiveShardIDs() {
		live[id] = struct{}{}
	}

	var stale []string
	if err := v.shards.IterIDs(func(id string) error {
		if _, ok := live[id]; !ok {
			stale = append(stale, id)
		}
		return nil
	}); err != nil {
		return 0, err
	}

	for _, id := range stale {
		select {
		case <-ctx.Done():
			return deleted, errs.ErrCancelled
		default:
		}
		if err := v.shards.Delete(id); err != nil {
			return deleted, err
		}
		deleted++
	}
	return deleted, nil
}
