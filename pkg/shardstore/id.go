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

package shardstore

import (
	"strings"

	"github.com/google/uuid"
)

// NewID returns a fresh 128-bit shard id, hex-encoded with no
// separators: a version-4 UUID, so 122 of its bits are random and the
// other 6 are fixed version/variant bits. Ids are never derived from content (§4.F "ids are never
// reused even if content is identical"), so two files with identical
// plaintext never share a shard id and so can't be linked to each other
// by an observer who only sees ciphertext.
func NewID() string {
	u := uuid.New() // v4: all 122 non-version/variant bits are CSPRNG output
	return strings.ReplaceAll(u.String(), "-", "")
}

// idHexLen and looksLikeID are used by the filesystem-backed store to
// recognize shard filenames among the other opaque-looking blobs (salt,
// meta_N) that share the vault directory.
const idHexLen = 32

func looksLikeID(s string) bool {
	if len(s) != idHexLen {
		return false
	}
	for _, r := range s {
		if !((r >= '0' && r <= '9') || (r >= 'a' && r <= 'f')) {
			return false
		}
	}
	return true
}
