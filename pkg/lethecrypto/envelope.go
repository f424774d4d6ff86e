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

// Package lethecrypto is the authenticated-encryption envelope shared by
// shards and metadata replicas. It deliberately prefixes nothing but the
// nonce onto its output: no magic, no version byte, no length field,
// because every blob in a Lethe vault must be indistinguishable from
// random bytes of the same length.
//
// It plays the role pkg/blobserver/encrypt's seal/open pair plays for
// Perkeep's "encrypt" storage target, generalized from AES-CTR with a
// manually appended SHA-1 to XChaCha20-Poly1305's built-in authentication
// tag.
package lethecrypto

import (
	"crypto/rand"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"

	"github.com/lethevfs/lethe/pkg/errs"
)

// NonceSize is the size in bytes of the random nonce prefixed to every
// sealed blob. XChaCha20-Poly1305's extended nonce makes it safe to draw
// fresh randomness per seal without a counter.
const NonceSize = chacha20poly1305.NonceSizeX

// TagSize is the size in bytes of the Poly1305 authentication tag
// appended to every sealed blob's ciphertext.
const TagSize = chacha20poly1305.Overhead

// minSealedSize is the smallest a sealed blob can legally be: an empty
// plaintext still costs a nonce and a tag.
const minSealedSize = NonceSize + TagSize

// Seal encrypts plaintext under key, returning nonce‖ciphertext‖tag. aad,
// if non-nil, is authenticated but not encrypted; metadata replicas bind
// their epoch into aad (§4.E), shards pass nil (§4.A).
func Seal(key, plaintext, aad []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("lethecrypto: bad key: %w", err)
	}
	nonce := make([]byte, NonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("lethecrypto: reading random nonce: %w", err)
	}
	out := make([]byte, 0, len(nonce)+len(plaintext)+TagSize)
	out = append(out, nonce...)
	out = aead.Seal(out, nonce, plaintext, aad)
	return out, nil
}

// Open authenticates and decrypts blob under key, returning its
// plaintext. It fails with errs.ErrFormat if blob is too short to contain
// a nonce and tag, and errs.ErrAuth on tag mismatch.
func Open(key, blob, aad []byte) ([]byte, error) {
	if len(blob) < minSealedSize {
		return nil, errs.ErrFormat
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("lethecrypto: bad key: %w", err)
	}
	nonce, ct := blob[:NonceSize], blob[NonceSize:]
	plain, err := aead.Open(nil, nonce, ct, aad)
	if err != nil {
		return nil, errs.ErrAuth
	}
	return plain, nil
}
