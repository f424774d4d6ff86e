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

// Package vault is the §4.G public façade over the storage engine: it
// wires the crypto envelope, shard store, compression stage, metadata
// model, and metadata persistence packages into the single session
// handle a mount layer drives. It plays the role a Perkeep blobserver
// Storage implementation plays for "the thing callers actually hold a
// reference to", generalized to own an explicit Sealed/Open lifecycle
// and a zeroizable key rather than being ready to serve the moment it's
// constructed (§9 "model the vault as an explicit session handle owning
// the lock, the in-memory tree, and the zeroizable key; avoid ambient
// singletons").
package vault

import (
	"crypto/rand"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/lethevfs/lethe/pkg/errs"
	"github.com/lethevfs/lethe/pkg/fileio"
	"github.com/lethevfs/lethe/pkg/lethecrypto"
	"github.com/lethevfs/lethe/pkg/metadata"
	"github.com/lethevfs/lethe/pkg/metastore"
	"github.com/lethevfs/lethe/pkg/shardstore"
)

type state int

const (
	sealedState state = iota
	openState
)

// saltFileName is the dedicated blob §3 reserves for the KDF salt: 32
// random bytes with no structure, indistinguishable from any shard.
const saltFileName = "salt"

// bootstrapParams are the Argon2id cost parameters every unlock attempt
// first tries. §4.A requires the *chosen* parameters be recorded inside
// the encrypted metadata so a future release with different defaults
// can still open an older vault, but that record can only be read after
// the metadata is already decrypted — so the very first derivation has
// to use a parameter set fixed by the engine itself, not one read from
// the vault. This release has only ever written DefaultKDFParams, so
// that's what bootstrapping uses; a later release that changes the
// defaults would need to retry this bootstrap list with its own
// older-version presets before giving up.
func bootstrapParams() []lethecrypto.KDFParams {
	return []lethecrypto.KDFParams{lethecrypto.DefaultKDFParams()}
}

// Vault is an open-or-sealed session over a single vault directory. The
// zero value is not usable; construct one with Init or Unlock.
type Vault struct {
	dir string

	mu     sync.RWMutex // guards everything below, including state itself
	state  state
	key    *lethecrypto.Key
	tree   *metadata.Tree
	params lethecrypto.KDFParams
	epoch  uint64

	shards shardstore.Store
	io     *fileio.Engine
}

// Init creates a new vault at dir: a fresh random salt, an empty
// metadata tree under params, and its first metadata epoch. dir must
// already exist and be empty of any prior vault files. The returned
// Vault is Open.
func Init(dir string, passphrase string, params lethecrypto.KDFParams) (*Vault, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if _, err := os.Stat(filepath.Join(dir, saltFileName)); err == nil {
		return nil, errs.ErrExists
	}

	salt := make([]byte, lethecrypto.SaltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, errs.NewIOError("generate salt", err)
	}
	if err := atomicWriteFile(dir, saltFileName, salt); err != nil {
		return nil, err
	}

	keyBytes := lethecrypto.DeriveKey(passphrase, salt, params)
	key := lethecrypto.NewKey(keyBytes)

	shards, err := shardstore.NewDiskStore(dir)
	if err != nil {
		key.Zero()
		return nil, err
	}

	tree := metadata.NewTree(time.Now())
	epoch, err := metastore.Flush(dir, key, tree, params)
	if err != nil {
		key.Zero()
		return nil, err
	}

	return &Vault{
		dir:    dir,
		state:  openState,
		key:    key,
		tree:   tree,
		params: params,
		epoch:  epoch,
		shards: shards,
		io:     fileio.New(shards, key),
	}, nil
}

// Unlock opens an existing vault at dir with passphrase, loading and
// authenticating its metadata (§4.E "Load protocol"). It returns
// errs.ErrWrongKeyOrCorrupt if no replica authenticates under any
// bootstrap parameter set, and errs.ErrCorruptMetadata if the highest
// epoch fails to authenticate while an older epoch still does
// (rollback detected, refused rather than silently downgraded).
func Unlock(dir string, passphrase string) (*Vault, error) {
	salt, err := os.ReadFile(filepath.Join(dir, saltFileName))
	if os.IsNotExist(err) {
		return nil, errs.ErrNotFound
	}
	if err != nil {
		return nil, errs.NewIOError("read salt", err)
	}

	shards, err := shardstore.NewDiskStore(dir)
	if err != nil {
		return nil, err
	}

	var lastErr error
	for _, candidate := range bootstrapParams() {
		keyBytes := lethecrypto.DeriveKey(passphrase, salt, candidate)
		key := lethecrypto.NewKey(keyBytes)

		tree, storedParams, epoch, err := metastore.Load(dir, key)
		if err != nil {
			key.Zero()
			lastErr = err
			continue
		}

		return &Vault{
			dir:    dir,
			state:  openState,
			key:    key,
			tree:   tree,
			params: storedParams,
			epoch:  epoch,
			shards: shards,
			io:     fileio.New(shards, key),
		}, nil
	}
	return nil, lastErr
}

// Lock zeroizes the master key, drops the in-memory tree, and returns
// the vault to the Sealed state (§4.E state machine). It is safe to call
// on an already-Sealed vault.
func (v *Vault) Lock() {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.state == sealedState {
		return
	}
	v.key.Zero()
	v.key = nil
	v.tree = nil
	v.io = nil
	v.state = sealedState
}

// requireOpen must be called with v.mu held (for read or write).
func (v *Vault) requireOpen() error {
	if v.state != openState {
		return errs.ErrLocked
	}
	return nil
}

func atomicWriteFile(dir, name string, content []byte) error {
	dst := filepath.Join(dir, name)
	tmp, err := os.CreateTemp(dir, "."+name+".tmp-*")
	if err != nil {
		return errs.NewIOError("create temp file", err)
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
		return errs.NewIOError("write temp file", err)
	}
	if err := tmp.Sync(); err != nil {
		return errs.NewIOError("fsync temp file", err)
	}
	if err := tmp.Close(); err != nil {
		return errs.NewIOError("close temp file", err)
	}
	if err := os.Rename(tmpName, dst); err != nil {
		return errs.NewIOError("rename file into place", err)
	}
	success = true

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
