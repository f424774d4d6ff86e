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

// Key owns the derived master key in memory for the lifetime of an Open
// vault session. It is never serialized; §5 requires it live only in
// process memory and be wiped on lock() or teardown.
type Key struct {
	b []byte
}

// NewKey takes ownership of b, locking its pages best-effort. The caller
// must not retain b after this call.
func NewKey(b []byte) *Key {
	lockMemory(b)
	return &Key{b: b}
}

// Bytes returns the raw key material. The returned slice aliases the
// Key's internal buffer and must not be retained past a Zero call.
func (k *Key) Bytes() []byte { return k.b }

// Zero overwrites the key material and unlocks its pages. Safe to call
// more than once.
func (k *Key) Zero() {
	if k == nil || k.b == nil {
		return
	}
	for i := range k.b {
		k.b[i] = 0
	}
	unlockMemory(k.b)
	k.b = nil
}
