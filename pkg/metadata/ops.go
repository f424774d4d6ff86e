/*
Copyright 2012 Google Inc.

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

package metadata

import (
	"fmt"
	"time"

	"github.com/lethevfs/lethe/pkg/errs"
)

// Tree is the in-memory directory/file tree. It has no locking of its
// own: §5 assigns the single readers-writer lock to the vault session
// that owns a Tree, not to the tree itself, so that a caller can batch
// several tree mutations under one lock acquisition (e.g. rename, which
// must be atomic at the in-memory level).
type Tree struct {
	root *Entry
}

// NewTree returns an empty tree: a root directory with no children.
func NewTree(now time.Time) *Tree {
	return &Tree{root: newDirEntry("", 0755, now)}
}

// walk resolves parts against t's root, returning the entry and, if
// parts is non-empty, its parent. err is errs.ErrNotFound if any
// component is missing, or errs.ErrNotADir if a non-final component
// names a file.
func (t *Tree) walk(parts []string) (entry, parent *Entry, err error) {
	cur := t.root
	var prev *Entry
	for i, p := range parts {
		if cur.Kind != Dir {
			return nil, nil, errs.ErrNotADir
		}
		next, ok := cur.Children[p]
		if !ok {
			return nil, nil, errs.ErrNotFound
		}
		prev = cur
		cur = next
		_ = i
	}
	return cur, prev, nil
}

// Lookup returns a snapshot of the entry named by path.
func (t *Tree) Lookup(path string) (*Entry, error) {
	parts, err := splitPath(path)
	if err != nil {
		return nil, err
	}
	if len(parts) == 0 {
		return t.root.Snapshot(), nil
	}
	e, _, err := t.walk(parts)
	if err != nil {
		return nil, err
	}
	return e.Snapshot(), nil
}

// List returns snapshots of the children of the directory at path, in
// the order they were inserted (§3: "ordered mapping name → child
// entry").
func (t *Tree) List(path string) ([]*Entry, error) {
	parts, err := splitPath(path)
	if err != nil {
		return nil, err
	}
	var dir *Entry
	if len(parts) == 0 {
		dir = t.root
	} else {
		dir, _, err = t.walk(parts)
		if err != nil {
			return nil, err
		}
	}
	if dir.Kind != Dir {
		return nil, errs.ErrNotADir
	}
	out := make([]*Entry, 0, len(dir.order))
	for _, name := range dir.order {
		out = append(out, dir.Children[name].Snapshot())
	}
	return out, nil
}

// Insert creates a new entry of the given kind at path. The parent
// directory must already exist; the name must not already be taken
// (§3 invariant 3: names within a directory are unique).
func (t *Tree) Insert(path string, kind Kind, mode uint32, now time.Time) (*Entry, error) {
	parentParts, name, err := splitParent(path)
	if err != nil {
		return nil, err
	}
	parent, _, err := t.walk(parentParts)
	if err != nil {
		return nil, err
	}
	if parent.Kind != Dir {
		return nil, errs.ErrNotADir
	}
	if _, exists := parent.Children[name]; exists {
		return nil, errs.ErrExists
	}
	var e *Entry
	if kind == Dir {
		e = newDirEntry(name, mode, now)
	} else {
		e = newFileEntry(name, mode, now)
	}
	e.parent = parent
	parent.Children[name] = e
	parent.order = append(parent.order, name)
	parent.Mtime = now
	return e.Snapshot(), nil
}

// Remove deletes the entry at path. Removing a non-empty directory fails
// with errs.ErrExists (standing in for POSIX ENOTEMPTY, which is not in
// this engine's taxonomy per §7); the error carries no further detail.
func (t *Tree) Remove(path string, now time.Time) error {
	parentParts, name, err := splitParent(path)
	if err != nil {
		return err
	}
	parent, _, err := t.walk(parentParts)
	if err != nil {
		return err
	}
	e, ok := parent.Children[name]
	if !ok {
		return errs.ErrNotFound
	}
	if e.Kind == Dir && len(e.order) > 0 {
		return errs.ErrExists
	}
	delete(parent.Children, name)
	parent.order = removeString(parent.order, name)
	parent.Mtime = now
	return nil
}

// Rename moves the entry at oldPath to newPath, which may be in a
// different directory. It is atomic at the in-memory level: both
// directories' child maps are updated together under the tree's single
// owner lock. It fails with errs.ErrExists if newPath already names an
// entry; overwrite-rename is a separate, higher-level operation (unlink
// the destination first).
func (t *Tree) Rename(oldPath, newPath string, now time.Time) error {
	oldParentParts, oldName, err := splitParent(oldPath)
	if err != nil {
		return err
	}
	newParentParts, newName, err := splitParent(newPath)
	if err != nil {
		return err
	}
	oldParent, _, err := t.walk(oldParentParts)
	if err != nil {
		return err
	}
	e, ok := oldParent.Children[oldName]
	if !ok {
		return errs.ErrNotFound
	}
	newParent, _, err := t.walk(newParentParts)
	if err != nil {
		return err
	}
	if newParent.Kind != Dir {
		return errs.ErrNotADir
	}
	if _, exists := newParent.Children[newName]; exists {
		return errs.ErrExists
	}

	delete(oldParent.Children, oldName)
	oldParent.order = removeString(oldParent.order, oldName)
	oldParent.Mtime = now

	e.Name = newName
	e.parent = newParent
	e.Ctime = now // spec.md §9 open question: rename updates ctime.
	newParent.Children[newName] = e
	newParent.order = append(newParent.order, newName)
	newParent.Mtime = now
	return nil
}

// UpdateFileShards replaces the shard list and size of the file at path.
// Callers (the file I/O engine) are responsible for maintaining §3
// invariant 2 (shard lengths sum to size, only the last may be short).
func (t *Tree) UpdateFileShards(path string, shards []ShardDescriptor, size int64, now time.Time) error {
	parts, err := splitPath(path)
	if err != nil {
		return err
	}
	e, _, err := t.walk(parts)
	if err != nil {
		return err
	}
	if e.Kind != File {
		return errs.ErrNotAFile
	}
	e.Shards = shards
	e.Size = size
	e.Mtime = now
	e.Ctime = now
	return nil
}

// LiveShardIDs returns the id of every shard referenced by any file
// currently in the tree, in no particular order. The vault façade's GC
// (§4.G) walks this set to find shard blobs no longer referenced by any
// file and reclaim them.
func (t *Tree) LiveShardIDs() []string {
	var ids []string
	var walk func(e *Entry)
	walk = func(e *Entry) {
		if e.Kind == File {
			for _, sd := range e.Shards {
				ids = append(ids, sd.ID)
			}
			return
		}
		for _, name := range e.order {
			walk(e.Children[name])
		}
	}
	walk(t.root)
	return ids
}

// Validate walks t and checks the structural invariants §3 requires of
// every file entry: its shard lengths sum exactly to its recorded size
// (only the last shard may be shorter than a full block), and no shard
// id is referenced by more than one file. It is meant to run once, right
// after a tree is loaded from disk (§7's canonical InvariantViolation
// example: "shard list sum ≠ size on load"); a tree built up through
// Insert/UpdateFileShards in memory can't develop either problem, so
// callers don't need to run it after every mutation.
func (t *Tree) Validate() error {
	// fullShardLen is the plaintext length of every shard but a file's
	// last; it equals fileio.BlockSize, which this package cannot import.
	const fullShardLen = 64 * 1024
	seen := make(map[string]string) // shard id -> path of the file that already claims it
	var walk func(e *Entry, path string) error
	walk = func(e *Entry, path string) error {
		if e.Kind != Dir {
			var sum int64
			for i, sd := range e.Shards {
				sum += int64(sd.PlainLen)
				if i < len(e.Shards)-1 && sd.PlainLen != fullShardLen {
					return &errs.InvariantViolationError{
						Detail: fmt.Sprintf("file %s: non-final shard has length %d, want %d", path, sd.PlainLen, fullShardLen),
					}
				}
				if other, dup := seen[sd.ID]; dup {
					return &errs.InvariantViolationError{
						Detail: fmt.Sprintf("shard %s referenced by both %s and %s", sd.ID, other, path),
					}
				}
				seen[sd.ID] = path
			}
			if sum != e.Size {
				return &errs.InvariantViolationError{
					Detail: fmt.Sprintf("file %s: shard lengths sum to %d, want %d", path, sum, e.Size),
				}
			}
			return nil
		}
		for _, name := range e.order {
			childPath := path + name
			if e.Children[name].Kind == Dir {
				childPath += "/"
			}
			if err := walk(e.Children[name], childPath); err != nil {
				return err
			}
		}
		return nil
	}
	return walk(t.root, "/")
}

func removeString(ss []string, s string) []string {
	for i, v := range ss {
		if v == s {
			return append(ss[:i], ss[i+1:]...)
		}
	}
	return ss
}
