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

// Package fileio is the §4.F file I/O engine: it translates range
// read/write/truncate calls against a path into shard-aligned get/put
// calls against a shardstore.Store, keeping a metadata.Tree's shard list
// in sync. It plays the role pkg/fs/mut.go's mutFileHandle ReadAt/WriteAt
// play for Perkeep's FUSE layer, generalized from a single local tempfile
// backing a whole open file to a list of independently encrypted,
// independently addressed 64 KiB shards.
package fileio

import (
	"context"

	"github.com/lethevfs/lethe/pkg/compressor"
	"github.com/lethevfs/lethe/pkg/errs"
	"github.com/lethevfs/lethe/pkg/lethecrypto"
	"github.com/lethevfs/lethe/pkg/metadata"
	"github.com/lethevfs/lethe/pkg/shardstore"
)

// BlockSize is B from §4.F: the fixed logical block size every shard
// (other than possibly the last one in a file) covers exactly.
const BlockSize = 64 * 1024

// Engine reads and writes file content through shards sealed under a
// single vault key. It holds no lock of its own; the vault façade (§5)
// serializes calls per file.
type Engine struct {
	store shardstore.Store
	key   *lethecrypto.Key
}

// New returns an Engine that stores shards in store, sealed under key.
func New(store shardstore.Store, key *lethecrypto.Key) *Engine {
	return &Engine{store: store, key: key}
}

func blockCount(size int64) int {
	if size <= 0 {
		return 0
	}
	return int((size + BlockSize - 1) / BlockSize)
}

// putBlock compresses and seals plain, storing it under a fresh shard id
// and returning a descriptor for it. A new shard always gets a fresh id
// (§4.F "Ordering & tie-breaks"): ids are never reused even for
// identical content, so that two files never end up sharing a
// cross-referenceable shard.
func (e *Engine) putBlock(plain []byte) (metadata.ShardDescriptor, error) {
	compressed := compressor.Compress(plain)
	sealed, err := lethecrypto.Seal(e.key.Bytes(), compressed, nil)
	if err != nil {
		return metadata.ShardDescriptor{}, err
	}
	id := shardstore.NewID()
	if err := e.store.Put(id, sealed); err != nil {
		return metadata.ShardDescriptor{}, err
	}
	return metadata.ShardDescriptor{ID: id, PlainLen: uint32(len(plain))}, nil
}

// getBlock fetches and authenticates the shard desc describes, returning
// its plaintext. Any failure along the way — missing blob, tag mismatch,
// malformed compressed frame, or a length that disagrees with the
// metadata tree's record — surfaces as a CorruptShardError naming the
// shard, never partial data (§4.F "Read").
func (e *Engine) getBlock(desc metadata.ShardDescriptor) ([]byte, error) {
	sealed, err := e.store.Get(desc.ID)
	if err != nil {
		return nil, &errs.CorruptShardError{ShardID: desc.ID}
	}
	compressed, err := lethecrypto.Open(e.key.Bytes(), sealed, nil)
	if err != nil {
		return nil, &errs.CorruptShardError{ShardID: desc.ID}
	}
	plain, err := compressor.Decompress(compressed)
	if err != nil {
		return nil, &errs.CorruptShardError{ShardID: desc.ID}
	}
	if uint32(len(plain)) != desc.PlainLen {
		return nil, &errs.CorruptShardError{ShardID: desc.ID}
	}
	return plain, nil
}

func zeroes(n int) []byte {
	return make([]byte, n)
}

// checkCancelled reports errs.ErrCancelled once ctx is done, letting a long
// write bail out between shards (§5 "Cancellation") instead of mid-shard.
func checkCancelled(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return errs.ErrCancelled
	default:
		return nil
	}
}
