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

package vault

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/lethevfs/lethe/pkg/errs"
	"github.com/lethevfs/lethe/pkg/lethecrypto"
)

var t0 = time.Unix(1700000000, 0)

func TestInitThenUnlock(t *testing.T) {
	dir := t.TempDir()
	v, err := Init(dir, "correct horse", lethecrypto.DefaultKDFParams())
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	if _, err := v.Create("/hello", 0644, t0); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := v.Write(context.Background(), "/hello", 0, []byte("hi"), t0); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if _, err := v.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	v.Lock()

	v2, err := Unlock(dir, "correct horse")
	if err != nil {
		t.Fatalf("Unlock: %v", err)
	}
	got, err := v2.Read("/hello", 0, 2)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if !bytes.Equal(got, []byte("hi")) {
		t.Errorf("Read after unlock = %q, want %q", got, "hi")
	}
}

func TestInitTwiceFails(t *testing.T) {
	dir := t.TempDir()
	if _, err := Init(dir, "pw", lethecrypto.DefaultKDFParams()); err != nil {
		t.Fatal(err)
	}
	if _, err := Init(dir, "pw", lethecrypto.DefaultKDFParams()); !errors.Is(err, errs.ErrExists) {
		t.Errorf("second Init = %v, want errs.ErrExists", err)
	}
}

func TestUnlockWrongPassphraseFails(t *testing.T) {
	dir := t.TempDir()
	if _, err := Init(dir, "right", lethecrypto.DefaultKDFParams()); err != nil {
		t.Fatal(err)
	}
	if _, err := Unlock(dir, "wrong"); !errors.Is(err, errs.ErrWrongKeyOrCorrupt) {
		t.Errorf("Unlock with wrong passphrase = %v, want errs.ErrWrongKeyOrCorrupt", err)
	}
}

func TestUnlockOnMissingVaultFails(t *testing.T) {
	dir := t.TempDir()
	if _, err := Unlock(dir, "whatever"); !errors.Is(err, errs.ErrNotFound) {
		t.Errorf("Unlock on empty dir = %v, want errs.ErrNotFound", err)
	}
}

func TestOperationsFailWhenSealed(t *testing.T) {
	dir := t.TempDir()
	v, err := Init(dir, "pw", lethecrypto.DefaultKDFParams())
	if err != nil {
		t.Fatal(err)
	}
	v.Lock()

	if _, err := v.Stat("/"); !errors.Is(err, errs.ErrLocked) {
		t.Errorf("Stat on sealed vault = %v, want errs.ErrLocked", err)
	}
	if _, err := v.Create("/x", 0644, t0); !errors.Is(err, errs.ErrLocked) {
		t.Errorf("Create on sealed vault = %v, want errs.ErrLocked", err)
	}
	if err := v.Write(context.Background(), "/x", 0, []byte("a"), t0); !errors.Is(err, errs.ErrLocked) {
		t.Errorf("Write on sealed vault = %v, want errs.ErrLocked", err)
	}
}

func TestLockIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	v, err := Init(dir, "pw", lethecrypto.DefaultKDFParams())
	if err != nil {
		t.Fatal(err)
	}
	v.Lock()
	v.Lock() // must not panic
}

// TestScenarioBasicFileLifecycle covers the basic file lifecycle: create,
// write, read back, stat, delete.
func TestScenarioBasicFileLifecycle(t *testing.T) {
	dir := t.TempDir()
	v, err := Init(dir, "pw", lethecrypto.DefaultKDFParams())
	if err != nil {
		t.Fatal(err)
	}

	if _, err := v.Mkdir("/docs", 0755, t0); err != nil {
		t.Fatalf("Mkdir: %v", err)
	}
	if _, err := v.Create("/docs/note.txt", 0644, t0); err != nil {
		t.Fatalf("Create: %v", err)
	}
	payload := []byte("the quick brown fox")
	if err := v.Write(context.Background(), "/docs/note.txt", 0, payload, t0); err != nil {
		t.Fatalf("Write: %v", err)
	}

	entry, err := v.Stat("/docs/note.txt")
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if entry.Size != int64(len(payload)) {
		t.Errorf("Stat size = %d, want %d", entry.Size, len(payload))
	}

	got, err := v.Read("/docs/note.txt", 0, len(payload))
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Errorf("Read = %q, want %q", got, payload)
	}

	children, err := v.Readdir("/docs")
	if err != nil {
		t.Fatalf("Readdir: %v", err)
	}
	if len(children) != 1 || children[0].Name != "note.txt" {
		t.Errorf("Readdir(/docs) = %v, want [note.txt]", children)
	}

	if err := v.Unlink("/docs/note.txt", t0); err != nil {
		t.Fatalf("Unlink: %v", err)
	}
	if _, err := v.Stat("/docs/note.txt"); !errors.Is(err, errs.ErrNotFound) {
		t.Errorf("Stat after Unlink = %v, want errs.ErrNotFound", err)
	}
}

// TestScenarioRenameOntoDirectoryFails exercises the §8 boundary
// behavior: renaming a file onto an existing directory must fail with
// errs.ErrNotAFile, not the generic "already exists".
func TestScenarioRenameOntoDirectoryFails(t *testing.T) {
	dir := t.TempDir()
	v, err := Init(dir, "pw", lethecrypto.DefaultKDFParams())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := v.Create("/a", 0644, t0); err != nil {
		t.Fatal(err)
	}
	if _, err := v.Mkdir("/b", 0755, t0); err != nil {
		t.Fatal(err)
	}
	if err := v.Rename("/a", "/b", t0); !errors.Is(err, errs.ErrNotAFile) {
		t.Errorf("Rename file onto directory = %v, want errs.ErrNotAFile", err)
	}
}

func TestRmdirNonEmptyFails(t *testing.T) {
	dir := t.TempDir()
	v, err := Init(dir, "pw", lethecrypto.DefaultKDFParams())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := v.Mkdir("/d", 0755, t0); err != nil {
		t.Fatal(err)
	}
	if _, err := v.Create("/d/f", 0644, t0); err != nil {
		t.Fatal(err)
	}
	if err := v.Rmdir("/d", t0); !errors.Is(err, errs.ErrExists) {
		t.Errorf("Rmdir non-empty dir = %v, want errs.ErrExists", err)
	}
}

func TestUnlinkOnDirectoryFails(t *testing.T) {
	dir := t.TempDir()
	v, err := Init(dir, "pw", lethecrypto.DefaultKDFParams())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := v.Mkdir("/d", 0755, t0); err != nil {
		t.Fatal(err)
	}
	if err := v.Unlink("/d", t0); !errors.Is(err, errs.ErrNotAFile) {
		t.Errorf("Unlink on directory = %v, want errs.ErrNotAFile", err)
	}
}

// TestScenarioGCReclaimsOverwrittenShards covers GC (§4.G "clean"):
// overwriting a file's contents orphans its old shard, which GC must
// find and delete, while a live file's shard survives.
func TestScenarioGCReclaimsOverwrittenShards(t *testing.T) {
	dir := t.TempDir()
	v, err := Init(dir, "pw", lethecrypto.DefaultKDFParams())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := v.Create("/f", 0644, t0); err != nil {
		t.Fatal(err)
	}
	if err := v.Write(context.Background(), "/f", 0, []byte("version one"), t0); err != nil {
		t.Fatal(err)
	}
	// Overwriting the whole block re-encrypts under a fresh shard id,
	// orphaning the original.
	if err := v.Write(context.Background(), "/f", 0, []byte("version two, longer payload"), t0); err != nil {
		t.Fatal(err)
	}

	deleted, err := v.GC(context.Background())
	if err != nil {
		t.Fatalf("GC: %v", err)
	}
	if deleted != 1 {
		t.Errorf("GC deleted = %d, want 1 orphaned shard", deleted)
	}

	got, err := v.Read("/f", 0, len("version two, longer payload"))
	if err != nil {
		t.Fatalf("Read after GC: %v", err)
	}
	if string(got) != "version two, longer payload" {
		t.Errorf("Read after GC = %q, want %q", got, "version two, longer payload")
	}

	// A second GC pass with nothing new orphaned deletes nothing.
	deleted2, err := v.GC(context.Background())
	if err != nil {
		t.Fatalf("second GC: %v", err)
	}
	if deleted2 != 0 {
		t.Errorf("second GC deleted = %d, want 0", deleted2)
	}
}

func TestGCRespectsCancelledContext(t *testing.T) {
	dir := t.TempDir()
	v, err := Init(dir, "pw", lethecrypto.DefaultKDFParams())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := v.Create("/f", 0644, t0); err != nil {
		t.Fatal(err)
	}
	if err := v.Write(context.Background(), "/f", 0, []byte("one"), t0); err != nil {
		t.Fatal(err)
	}
	if err := v.Write(context.Background(), "/f", 0, []byte("two"), t0); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := v.GC(ctx); !errors.Is(err, errs.ErrCancelled) {
		t.Errorf("GC with cancelled context = %v, want errs.ErrCancelled", err)
	}
}

func TestCreateDuplicateNameFails(t *testing.T) {
	dir := t.TempDir()
	v, err := Init(dir, "pw", lethecrypto.DefaultKDFParams())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := v.Create("/dup", 0644, t0); err != nil {
		t.Fatal(err)
	}
	if _, err := v.Create("/dup", 0644, t0); !errors.Is(err, errs.ErrExists) {
		t.Errorf("duplicate Create = %v, want errs.ErrExists", err)
	}
}

func TestTruncateAndReadBoundary(t *testing.T) {
	dir := t.TempDir()
	v, err := Init(dir, "pw", lethecrypto.DefaultKDFParams())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := v.Create("/big", 0644, t0); err != nil {
		t.Fatal(err)
	}
	data := bytes.Repeat([]byte{0xAB}, 65537) // exactly one block plus one byte
	if err := v.Write(context.Background(), "/big", 0, data, t0); err != nil {
		t.Fatal(err)
	}
	entry, err := v.Stat("/big")
	if err != nil {
		t.Fatal(err)
	}
	if entry.Size != 65537 {
		t.Fatalf("Size = %d, want 65537", entry.Size)
	}

	if err := v.Truncate("/big", 65536, t0); err != nil {
		t.Fatalf("Truncate: %v", err)
	}
	got, err := v.Read("/big", 0, 65536)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if !bytes.Equal(got, data[:65536]) {
		t.Errorf("Read after shrink mismatches original prefix")
	}
}
