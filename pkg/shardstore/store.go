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

// Package shardstore is a directory-backed content store keyed by opaque
// shard id, the §4.B capability surface of the storage engine. It plays
// the role Perkeep's pkg/blobserver/localdisk plays for content-addressed
// blobs, generalized from a sharded-by-hash-prefix directory forest (which
// exists there to keep any one directory small at blobserver scale) to a
// single flat directory, since a Lethe vault must not expose any
// structure beyond "many same-looking files" (§1, §3).
package shardstore

// Store is the narrow capability two implementations satisfy: the
// on-disk directory store used in production, and an in-memory fake used
// by tests of higher layers (fileio) that don't want to touch a real
// filesystem. Expressing it as an interface here, rather
// than a concrete type, follows §9's "dynamic dispatch" design note.
type Store interface {
	// Put writes bytes under id. It fails with errs.ErrCollision if id
	// is already present.
	Put(id string, bytes []byte) error

	// Get returns the bytes stored under id, or errs.ErrNotFound.
	Get(id string) ([]byte, error)

	// Delete removes id. It is idempotent: deleting an absent id is not
	// an error.
	Delete(id string) error

	// IterIDs calls fn once for every shard id currently present. It
	// stops and returns fn's error if fn returns a non-nil error.
	IterIDs(fn func(id string) error) error
}
