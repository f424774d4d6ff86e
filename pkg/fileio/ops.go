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

package fileio

import (
	"context"
	"time"

	"github.com/lethevfs/lethe/pkg/errs"
	"github.com/lethevfs/lethe/pkg/metadata"
)

// ReadAt resolves the file at path in tree and returns up to length bytes
// starting at offset, clamped to [0, size-offset] (§4.F "Read"). A
// decryption failure in any shard overlapping the requested range aborts
// the whole read; it never returns a partial result for the failed span.
func (e *Engine) ReadAt(tree *metadata.Tree, path string, offset int64, length int) ([]byte, error) {
	entry, err := tree.Lookup(path)
	if err != nil {
		return nil, err
	}
	if entry.Kind != metadata.File {
		return nil, errs.ErrNotAFile
	}
	if offset < 0 {
		offset = 0
	}
	if offset >= entry.Size || length <= 0 {
		return []byte{}, nil
	}
	if remain := entry.Size - offset; int64(length) > remain {
		length = int(remain)
	}
	end := offset + int64(length)

	b0 := int(offset / BlockSize)
	b1 := int((end - 1) / BlockSize)

	out := make([]byte, 0, length)
	for i := b0; i <= b1; i++ {
		plain, err := e.getBlock(entry.Shards[i])
		if err != nil {
			return nil, err
		}
		blockStart := int64(i) * BlockSize
		lo := offset - blockStart
		if lo < 0 {
			lo = 0
		}
		hi := end - blockStart
		if hi > int64(len(plain)) {
			hi = int64(len(plain))
		}
		out = append(out, plain[lo:hi]...)
	}
	return out, nil
}

// WriteAt splices data into the file at path starting at offset,
// re-encrypting every block the write touches under a fresh shard id and
// leaving untouched blocks' descriptors as they were (§4.F "Write"). It
// updates the tree's shard list and size but does not flush metadata to
// disk; that is the caller's responsibility (§4.E).
//
// ctx is checked between blocks; if it's done before the write finishes,
// WriteAt returns errs.ErrCancelled and leaves the tree untouched. Blocks
// already put to the shard store for this call become orphans, reclaimed
// by a later GC (§5 "Cancellation").
func (e *Engine) WriteAt(ctx context.Context, tree *metadata.Tree, path string, offset int64, data []byte, now time.Time) error {
	if len(data) == 0 {
		// A zero-length write never changes a file's size, matching
		// ordinary pwrite(2) semantics.
		return nil
	}
	entry, err := tree.Lookup(path)
	if err != nil {
		return err
	}
	if entry.Kind != metadata.File {
		return errs.ErrNotAFile
	}

	oldSize := entry.Size
	oldShards := entry.Shards
	nOldBlocks := blockCount(oldSize)

	end := offset + int64(len(data))
	newSize := oldSize
	if end > newSize {
		newSize = end
	}
	newBlockCount := blockCount(newSize)

	b0 := int(offset / BlockSize)
	b1 := int((end - 1) / BlockSize)

	newShards := make([]metadata.ShardDescriptor, newBlockCount)
	for i := 0; i < newBlockCount; i++ {
		if err := checkCancelled(ctx); err != nil {
			return err
		}
		switch {
		case i < b0:
			if i < nOldBlocks {
				if i == nOldBlocks-1 && i != newBlockCount-1 && oldShards[i].PlainLen < BlockSize {
					// The old last block was short because it used to be
					// the file's final block; it no longer is, so it must
					// be zero-padded out to a full block before later
					// blocks can be appended after it.
					plain, err := e.getBlock(oldShards[i])
					if err != nil {
						return err
					}
					padded := make([]byte, BlockSize)
					copy(padded, plain)
					desc, err := e.putBlock(padded)
					if err != nil {
						return err
					}
					newShards[i] = desc
					continue
				}
				newShards[i] = oldShards[i]
				continue
			}
			// A gap block strictly before the write range and past the
			// old EOF: materialize it as zero-filled (§4.F step 4,
			// sparse-write semantics — physically written, not a hole).
			desc, err := e.putBlock(zeroes(BlockSize))
			if err != nil {
				return err
			}
			newShards[i] = desc

		case i >= b0 && i <= b1:
			targetLen := BlockSize
			if i == newBlockCount-1 {
				targetLen = int(newSize - int64(i)*BlockSize)
			}
			var base []byte
			if i < nOldBlocks {
				base, err = e.getBlock(oldShards[i])
				if err != nil {
					return err
				}
			} else {
				base = nil // past old EOF: treated as empty, not zero-filled, per §4.F step 3a.
			}
			plain := make([]byte, targetLen)
			copy(plain, base)

			blockStart := int64(i) * BlockSize
			loWrite := offset
			if blockStart > loWrite {
				loWrite = blockStart
			}
			hiWrite := end
			if blockStart+int64(targetLen) < hiWrite {
				hiWrite = blockStart + int64(targetLen)
			}
			if hiWrite > loWrite {
				srcStart := loWrite - offset
				dstStart := loWrite - blockStart
				copy(plain[dstStart:], data[srcStart:srcStart+(hiWrite-loWrite)])
			}

			desc, err := e.putBlock(plain)
			if err != nil {
				return err
			}
			newShards[i] = desc

		default: // i > b1, only reachable when i < nOldBlocks (write doesn't extend the file)
			newShards[i] = oldShards[i]
		}
	}

	return tree.UpdateFileShards(path, newShards, newSize, now)
}

// Truncate resizes the file at path to newSize. Shrinking drops trailing
// shards wholly past the new EOF and rewrites the boundary shard if
// newSize falls mid-block; growing appends zero-filled blocks, the same
// as a write past EOF (§4.F "Truncate").
func (e *Engine) Truncate(tree *metadata.Tree, path string, newSize int64, now time.Time) error {
	entry, err := tree.Lookup(path)
	if err != nil {
		return err
	}
	if entry.Kind != metadata.File {
		return errs.ErrNotAFile
	}
	if newSize < 0 {
		newSize = 0
	}

	if newSize >= entry.Size {
		if newSize == entry.Size {
			return nil
		}
		return e.growTo(tree, path, entry, newSize, now)
	}
	return e.shrinkTo(tree, path, entry, newSize, now)
}

func (e *Engine) shrinkTo(tree *metadata.Tree, path string, entry *metadata.Entry, newSize int64, now time.Time) error {
	newBlockCount := blockCount(newSize)
	if newBlockCount == 0 {
		return tree.UpdateFileShards(path, nil, 0, now)
	}

	newShards := append([]metadata.ShardDescriptor(nil), entry.Shards[:newBlockCount]...)
	lastIdx := newBlockCount - 1
	lastBlockStart := int64(lastIdx) * BlockSize
	wantLen := newSize - lastBlockStart

	if int64(newShards[lastIdx].PlainLen) != wantLen {
		plain, err := e.getBlock(entry.Shards[lastIdx])
		if err != nil {
			return err
		}
		if int64(len(plain)) < wantLen {
			return &errs.InvariantViolationError{Detail: "shard shorter than recorded plaintext length"}
		}
		desc, err := e.putBlock(plain[:wantLen])
		if err != nil {
			return err
		}
		newShards[lastIdx] = desc
	}
	return tree.UpdateFileShards(path, newShards, newSize, now)
}

func (e *Engine) growTo(tree *metadata.Tree, path string, entry *metadata.Entry, newSize int64, now time.Time) error {
	oldSize := entry.Size
	nOldBlocks := blockCount(oldSize)
	newBlockCount := blockCount(newSize)

	newShards := make([]metadata.ShardDescriptor, newBlockCount)
	copy(newShards, entry.Shards)

	// The previous last block may have been short; it must be padded to
	// a full BlockSize before new zero-filled blocks can follow it.
	if nOldBlocks > 0 {
		lastIdx := nOldBlocks - 1
		lastBlockStart := int64(lastIdx) * BlockSize
		curLen := int64(entry.Shards[lastIdx].PlainLen)
		fullLen := BlockSize
		if lastIdx == newBlockCount-1 {
			fullLen = int(newSize - lastBlockStart)
		}
		if int64(fullLen) != curLen {
			plain, err := e.getBlock(entry.Shards[lastIdx])
			if err != nil {
				return err
			}
			padded := make([]byte, fullLen)
			copy(padded, plain)
			desc, err := e.putBlock(padded)
			if err != nil {
				return err
			}
			newShards[lastIdx] = desc
		}
	}

	for i := nOldBlocks; i < newBlockCount; i++ {
		length := BlockSize
		if i == newBlockCount-1 {
			length = int(newSize - int64(i)*BlockSize)
		}
		desc, err := e.putBlock(zeroes(length))
		if err != nil {
			return err
		}
		newShards[i] = desc
	}

	return tree.UpdateFileShards(path, newShards, newSize, now)
}
