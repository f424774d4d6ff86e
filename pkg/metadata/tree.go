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

// Package metadata is the in-memory rooted tree of directories and files
// that the §4.D metadata model describes. It is the strict-tree analogue
// of Perkeep's mutDir/mutFile pair in pkg/fs/mut.go, stripped of the
// blobstore-backed permanode population those types do: here the whole
// tree always lives in memory once a vault is Open (§9 "Cyclic graph
// risk: none").
package metadata

import (
	"time"
)

// Kind distinguishes a directory entry from a regular file entry.
type Kind int

const (
	Dir Kind = iota
	File
)

func (k Kind) String() string {
	if k == Dir {
		return "directory"
	}
	return "file"
}

// ShardDescriptor names one shard covering a contiguous, non-overlapping
// range of a file's plaintext (§3 invariant 2).
type ShardDescriptor struct {
	ID        string `cbor:"id"`
	PlainLen  uint32 `cbor:"plain_len"`
}

// Entry is one node of the tree: either a directory (with Children) or a
// regular file (with Size and Shards). The zero value is not a valid
// Entry; use newDirEntry or newFileEntry.
type Entry struct {
	Name  string `cbor:"name"`
	Kind  Kind   `cbor:"kind"`
	Mode  uint32 `cbor:"mode"`
	Mtime time.Time `cbor:"mtime"`
	Ctime time.Time `cbor:"ctime"`

	// Children is non-nil only for directories. Perkeep's mutDir keeps
	// the analogous map keyed by name; §3 additionally requires
	// insertion order to be preserved for readdir, so each directory
	// Entry also keeps a parallel order slice (the order field below)
	// rather than relying on Go's unspecified map iteration order.
	Children map[string]*Entry `cbor:"children,omitempty"`
	order    []string          // insertion order of Children's keys; not serialized

	// Size and Shards are meaningful only for files.
	Size   int64             `cbor:"size"`
	Shards []ShardDescriptor `cbor:"shards,omitempty"`

	parent *Entry // nil for root; not serialized
}

func newDirEntry(name string, mode uint32, now time.Time) *Entry {
	return &Entry{
		Name:     name,
		Kind:     Dir,
		Mode:     mode,
		Mtime:    now,
		Ctime:    now,
		Children: make(map[string]*Entry),
	}
}

func newFileEntry(name string, mode uint32, now time.Time) *Entry {
	return &Entry{
		Name:  name,
		Kind:  File,
		Mode:  mode,
		Mtime: now,
		Ctime: now,
	}
}

// Snapshot returns a deep copy of e with no parent/child back-references,
// safe to hand to a caller outside the tree's lock (§5: "external
// references to entries are not exposed; callers receive only copies of
// attributes").
func (e *Entry) Snapshot() *Entry {
	if e == nil {
		return nil
	}
	cp := &Entry{
		Name:  e.Name,
		Kind:  e.Kind,
		Mode:  e.Mode,
		Mtime: e.Mtime,
		Ctime: e.Ctime,
		Size:  e.Size,
	}
	if e.Shards != nil {
		cp.Shards = append([]ShardDescriptor(nil), e.Shards...)
	}
	if e.Kind == Dir {
		cp.Children = nil // snapshot doesn't walk children; use List for that
	}
	return cp
}
