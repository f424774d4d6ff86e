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

// Package metastore implements §4.E metadata persistence: replicated,
// epoch-versioned, encrypted-at-rest serialization of a metadata.Tree to
// a host directory. It plays the role pkg/blobserver/encrypt's meta index
// plays for Perkeep — a small append-friendly record of how to get from
// ciphertext back to the plaintext structure — generalized from a single
// growable index blob to a fixed set of R whole-tree replicas, because a
// Lethe vault has exactly one metadata tree rather than an unbounded
// stream of blob descriptions.
package metastore

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fxamacker/cbor/v2"

	"github.com/lethevfs/lethe/pkg/compressor"
	"github.com/lethevfs/lethe/pkg/errs"
	"github.com/lethevfs/lethe/pkg/lethecrypto"
	"github.com/lethevfs/lethe/pkg/metadata"
)

// payload is the CBOR-encoded shape compressed and sealed into each
// metadata replica. §4.A requires Argon2id's cost parameters be "recorded
// in the metadata" rather than alongside the salt blob, so the tree's own
// CBOR bytes travel nested inside this small outer record instead of
// being sealed directly; everything downstream of tree.Marshal still
// matches §4.E's "plaintext is zstd(cbor(tree))" shape, just with "tree"
// read as this record.
type payload struct {
	Params lethecrypto.KDFParams `cbor:"kdf_params"`
	Tree   []byte                `cbor:"tree"`
}

// ReplicaCount is R from §4.E: the number of independent copies of the
// metadata tree kept in a vault directory.
const ReplicaCount = 3

// aadPrefix is the fixed byte string every metadata replica's AEAD
// associated data begins with, binding a sealed blob to "this is a Lethe
// metadata replica" so its ciphertext can never be replayed as a shard or
// vice versa, even though both are the same nonce‖ct‖tag shape.
const aadPrefix = "lethe-meta-v1"

// epochFieldSize is the width, in bytes, of a big-endian epoch counter,
// both in the AAD and in the cleartext prefix that lets Load discover
// the advertised epoch of a replica without decrypting it.
const epochFieldSize = 8

func replicaName(i int) string {
	return fmt.Sprintf("meta_%d", i)
}

// epochBytes encodes epoch as 8 bytes big-endian.
func epochBytes(epoch uint64) []byte {
	b := make([]byte, epochFieldSize)
	binary.BigEndian.PutUint64(b, epoch)
	return b
}

func aad(epoch uint64) []byte {
	out := make([]byte, 0, len(aadPrefix)+epochFieldSize)
	out = append(out, aadPrefix...)
	out = append(out, epochBytes(epoch)...)
	return out
}

// replicaFile is what Flush and Load learn about one meta_N file without
// necessarily decrypting it.
type replicaFile struct {
	present bool
	epoch   uint64
	sealed  []byte // everything after the cleartext epoch prefix
}

// readReplicas reads every meta_N file present in dir and extracts each
// one's advertised epoch from its cleartext prefix, per §4.E's "Load
// protocol" step 1 ("extract advertised epoch prefixes without
// decrypting").
func readReplicas(dir string) ([ReplicaCount]replicaFile, error) {
	var out [ReplicaCount]replicaFile
	for i := 0; i < ReplicaCount; i++ {
		data, err := os.ReadFile(filepath.Join(dir, replicaName(i)))
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return out, errs.NewIOError("read metadata replica", err)
		}
		if len(data) < epochFieldSize {
			// Too short to even carry an epoch prefix; treat as absent
			// rather than fatal, since a neighboring replica may still
			// carry the committed epoch.
			continue
		}
		out[i] = replicaFile{
			present: true,
			epoch:   binary.BigEndian.Uint64(data[:epochFieldSize]),
			sealed:  data[epochFieldSize:],
		}
	}
	return out, nil
}

// Flush computes the next epoch, serializes and seals tree, and writes
// all R replicas to dir. Per §4.E's flush protocol: replicas are written
// in order 0, 1, 2, each via temp-file + fsync + rename + directory
// fsync (mirroring shardstore.DiskStore.Put's atomic-write idiom, itself
// grounded on pkg/blobserver/localdisk's ReceiveBlob); if any write
// fails, Flush aborts and returns the error, leaving whatever replicas
// already carried the previous epoch still readable as the committed
// state.
func Flush(dir string, key *lethecrypto.Key, tree *metadata.Tree, params lethecrypto.KDFParams) (uint64, error) {
	existing, err := readReplicas(dir)
	if err != nil {
		return 0, err
	}
	var maxEpoch uint64
	for _, r := range existing {
		if r.present && r.epoch > maxEpoch {
			maxEpoch = r.epoch
		}
	}
	newEpoch := maxEpoch + 1

	treeBytes, err := tree.Marshal()
	if err != nil {
		return 0, fmt.Errorf("metastore: marshal tree: %w", err)
	}
	payloadBytes, err := cbor.Marshal(payload{Params: params, Tree: treeBytes})
	if err != nil {
		return 0, fmt.Errorf("metastore: marshal payload: %w", err)
	}
	compressed := compressor.Compress(payloadBytes)
	plaintext := make([]byte, 0, len(compressed)+epochFieldSize)
	plaintext = append(plaintext, compressed...)
	plaintext = append(plaintext, epochBytes(newEpoch)...)

	sealed, err := lethecrypto.Seal(key.Bytes(), plaintext, aad(newEpoch))
	if err != nil {
		return 0, fmt.Errorf("metastore: seal: %w", err)
	}

	content := make([]byte, 0, epochFieldSize+len(sealed))
	content = append(content, epochBytes(newEpoch)...)
	content = append(content, sealed...)

	for i := 0; i < ReplicaCount; i++ {
		if err := atomicWriteFile(dir, replicaName(i), content); err != nil {
			return 0, err
		}
	}
	return newEpoch, nil
}

// Load reconstructs the metadata tree from the replicas in dir, following
// §4.E's load protocol: the highest advertised epoch wins if at least one
// of its replicas authenticates; if the highest epoch is present but
// authenticates on none of its replicas while a strictly lower epoch is
// also present, Load refuses to fall back and reports
// errs.ErrCorruptMetadata (anti-rollback); if no epoch anywhere
// authenticates, Load reports errs.ErrWrongKeyOrCorrupt, indistinguishable
// from an ordinary wrong-passphrase failure by design (§7).
func Load(dir string, key *lethecrypto.Key) (*metadata.Tree, lethecrypto.KDFParams, uint64, error) {
	replicas, err := readReplicas(dir)
	if err != nil {
		return nil, lethecrypto.KDFParams{}, 0, err
	}

	var maxEpoch uint64
	anyPresent := false
	distinctEpochs := map[uint64]bool{}
	for _, r := range replicas {
		if !r.present {
			continue
		}
		anyPresent = true
		distinctEpochs[r.epoch] = true
		if r.epoch > maxEpoch {
			maxEpoch = r.epoch
		}
	}
	if !anyPresent {
		return nil, lethecrypto.KDFParams{}, 0, errs.ErrNotFound
	}

	for _, r := range replicas {
		if !r.present || r.epoch != maxEpoch {
			continue
		}
		tree, params, err := openReplica(r, key)
		if err != nil {
			continue
		}
		// All replicas of one epoch carry byte-identical sealed payloads
		// (Flush writes the same content to each), so a structural defect
		// found here would reproduce in every other replica of this
		// epoch too; report it now rather than masking it by trying the
		// next replica (§7: InvariantViolation is "fatal, surfaced not
		// repaired").
		if verr := tree.Validate(); verr != nil {
			return nil, lethecrypto.KDFParams{}, 0, verr
		}
		return tree, params, maxEpoch, nil
	}

	if len(distinctEpochs) > 1 {
		for _, r := range replicas {
			if !r.present || r.epoch == maxEpoch {
				continue
			}
			if _, _, err := openReplica(r, key); err == nil {
				return nil, lethecrypto.KDFParams{}, 0, errs.ErrCorruptMetadata
			}
		}
	}
	return nil, lethecrypto.KDFParams{}, 0, errs.ErrWrongKeyOrCorrupt
}

func openReplica(r replicaFile, key *lethecrypto.Key) (*metadata.Tree, lethecrypto.KDFParams, error) {
	plaintext, err := lethecrypto.Open(key.Bytes(), r.sealed, aad(r.epoch))
	if err != nil {
		return nil, lethecrypto.KDFParams{}, err
	}
	if len(plaintext) < epochFieldSize {
		return nil, lethecrypto.KDFParams{}, errs.ErrCorruptMetadata
	}
	compressed, trailer := plaintext[:len(plaintext)-epochFieldSize], plaintext[len(plaintext)-epochFieldSize:]
	if binary.BigEndian.Uint64(trailer) != r.epoch {
		// AAD authenticated under r.epoch but the sealed epoch trailer
		// disagrees: the replica was tampered with in a way the AEAD
		// tag alone didn't catch (e.g. spliced from a different epoch's
		// ciphertext that happens to authenticate, which cannot really
		// happen under Poly1305 but is cheap to double-check).
		return nil, lethecrypto.KDFParams{}, errs.ErrCorruptMetadata
	}
	payloadBytes, err := compressor.Decompress(compressed)
	if err != nil {
		return nil, lethecrypto.KDFParams{}, err
	}
	var p payload
	if err := cbor.Unmarshal(payloadBytes, &p); err != nil {
		return nil, lethecrypto.KDFParams{}, errs.ErrCorruptMetadata
	}
	tree, err := metadata.Unmarshal(p.Tree)
	if err != nil {
		return nil, lethecrypto.KDFParams{}, err
	}
	return tree, p.Params, nil
}

// atomicWriteFile replaces name under dir with content via the same
// temp-file + fsync + rename + directory-fsync sequence
// shardstore.DiskStore.Put uses, so that a crash mid-flush never leaves a
// half-written replica visible under its final name (§9 "Crash
// consistency").
func atomicWriteFile(dir, name string, content []byte) error {
	dst := filepath.Join(dir, name)
	tmp, err := os.CreateTemp(dir, "."+name+".tmp-*")
	if err != nil {
		return errs.NewIOError("create temp metadata replica", err)
	}
	tmpName := tmp.Name()
	success := false
	defer func() {
		if !success {
			tmp.Close()
			os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(content); err != nil {
		return errs.NewIOError("write temp metadata replica", err)
	}
	if err := tmp.Sync(); err != nil {
		return errs.NewIOError("fsync temp metadata replica", err)
	}
	if err := tmp.Close(); err != nil {
		return errs.NewIOError("close temp metadata replica", err)
	}
	if err := os.Rename(tmpName, dst); err != nil {
		return errs.NewIOError("rename metadata replica into place", err)
	}
	success = true
	return syncDir(dir)
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
