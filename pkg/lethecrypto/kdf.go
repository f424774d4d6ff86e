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

package lethecrypto

import (
	"fmt"

	"golang.org/x/crypto/argon2"

	"github.com/lethevfs/lethe/pkg/errs"
)

// KDFParams are the Argon2id cost parameters used to derive a vault's
// master key from its passphrase. They are chosen once at vault creation
// and recorded inside the encrypted metadata (§3), so that a later release
// with different defaults can still unlock an older vault.
type KDFParams struct {
	MemoryKiB   uint32
	Iterations  uint32
	Parallelism uint8
	KeyLen      uint32
}

// Minimum bounds Validate enforces. vault.Init validates the params a new
// vault is created with and rejects any below these rather than creating a
// weaker vault; params loaded back out of a metadata replica are not
// re-validated.
const (
	MinMemoryKiB   = 64 * 1024
	MinIterations  = 3
	MinParallelism = 1
)

// DefaultKDFParams returns the parameters used for newly created vaults.
func DefaultKDFParams() KDFParams {
	return KDFParams{
		MemoryKiB:   MinMemoryKiB,
		Iterations:  MinIterations,
		Parallelism: MinParallelism,
		KeyLen:      32,
	}
}

// Validate reports a KdfError if p falls below the configured minimum
// bounds, or specifies a key length unsuited to the envelope's cipher.
func (p KDFParams) Validate() error {
	switch {
	case p.MemoryKiB < MinMemoryKiB:
		return &errs.KdfError{Reason: fmt.Sprintf("memory %d KiB below minimum %d KiB", p.MemoryKiB, MinMemoryKiB)}
	case p.Iterations < MinIterations:
		return &errs.KdfError{Reason: fmt.Sprintf("iterations %d below minimum %d", p.Iterations, MinIterations)}
	case p.Parallelism < MinParallelism:
		return &errs.KdfError{Reason: fmt.Sprintf("parallelism %d below minimum %d", p.Parallelism, MinParallelism)}
	case p.KeyLen != 32:
		return &errs.KdfError{Reason: fmt.Sprintf("key length %d unsupported, need 32", p.KeyLen)}
	}
	return nil
}

// DeriveKey runs Argon2id over passphrase and salt with the given
// parameters, returning the master key. Callers must Validate params
// first; DeriveKey itself does not re-check bounds so that it can also be
// used by tests exercising out-of-bounds params deliberately.
func DeriveKey(passphrase string, salt []byte, p KDFParams) []byte {
	return argon2.IDKey([]byte(passphrase), salt, p.Iterations, p.MemoryKiB, p.Parallelism, p.KeyLen)
}

// SaltSize is the size in bytes of the dedicated salt blob (§6): 32 random
// bytes, indistinguishable from any other file in the vault.
const SaltSize = 32
