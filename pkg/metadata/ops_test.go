/*
Copyright 2012 Google Inc.

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

package metadata

import (
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/lethevfs/lethe/pkg/errs"
)

var t0 = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func TestInsertAndLookup(t *testing.T) {
	tr := NewTree(t0)
	if _, err := tr.Insert("/a", File, 0644, t0); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	e, err := tr.Lookup("/a")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if e.Kind != File || e.Name != "a" {
		t.Errorf("Lookup = %+v", e)
	}
}

func TestInsertDuplicateNameFails(t *testing.T) {
	tr := NewTree(t0)
	if _, err := tr.Insert("/a", File, 0644, t0); err != nil {
		t.Fatal(err)
	}
	if _, err := tr.Insert("/a", File, 0644, t0); !errors.Is(err, errs.ErrExists) {
		t.Errorf("second Insert = %v, want errs.ErrExists", err)
	}
}

func TestInsertMissingParentFails(t *testing.T) {
	tr := NewTree(t0)
	if _, err := tr.Insert("/no/such/dir/f", File, 0644, t0); !errors.Is(err, errs.ErrNotFound) {
		t.Errorf("Insert under missing parent = %v, want errs.ErrNotFound", err)
	}
}

func TestListOrderIsInsertionOrder(t *testing.T) {
	tr := NewTree(t0)
	names := []string{"zebra", "apple", "mango"}
	for _, n := range names {
		if _, err := tr.Insert("/"+n, File, 0644, t0); err != nil {
			t.Fatal(err)
		}
	}
	entries, err := tr.List("/")
	if err != nil {
		t.Fatal(err)
	}
	var got []string
	for _, e := range entries {
		got = append(got, e.Name)
	}
	if !cmp.Equal(got, names) {
		t.Errorf("List order = %v, want insertion order %v", got, names)
	}
}

func TestRenameAcrossDirectories(t *testing.T) {
	tr := NewTree(t0)
	if _, err := tr.Insert("/d", Dir, 0755, t0); err != nil {
		t.Fatal(err)
	}
	if _, err := tr.Insert("/d/f", File, 0644, t0); err != nil {
		t.Fatal(err)
	}
	if err := tr.Rename("/d/f", "/g", t0.Add(time.Hour)); err != nil {
		t.Fatalf("Rename: %v", err)
	}
	if entries, err := tr.List("/d"); err != nil || len(entries) != 0 {
		t.Errorf("List(/d) after rename = %v, %v, want empty", entries, err)
	}
	entries, err := tr.List("/")
	if err != nil {
		t.Fatal(err)
	}
	found := false
	for _, e := range entries {
		if e.Name == "g" {
			found = true
			if !e.Ctime.Equal(t0.Add(time.Hour)) {
				t.Errorf("ctime not updated on cross-directory rename: got %v", e.Ctime)
			}
		}
	}
	if !found {
		t.Error("renamed entry g not found at new location")
	}
}

func TestRenameOntoExistingFails(t *testing.T) {
	tr := NewTree(t0)
	tr.Insert("/a", File, 0644, t0)
	tr.Insert("/b", File, 0644, t0)
	if err := tr.Rename("/a", "/b", t0); !errors.Is(err, errs.ErrExists) {
		t.Errorf("Rename onto existing = %v, want errs.ErrExists", err)
	}
}

func TestRemoveNonEmptyDirFails(t *testing.T) {
	tr := NewTree(t0)
	tr.Insert("/d", Dir, 0755, t0)
	tr.Insert("/d/f", File, 0644, t0)
	if err := tr.Remove("/d", t0); !errors.Is(err, errs.ErrExists) {
		t.Errorf("Remove non-empty dir = %v, want errs.ErrExists", err)
	}
	if err := tr.Remove("/d/f", t0); err != nil {
		t.Fatal(err)
	}
	if err := tr.Remove("/d", t0); err != nil {
		t.Errorf("Remove now-empty dir: %v", err)
	}
}

func TestUpdateFileShards(t *testing.T) {
	tr := NewTree(t0)
	tr.Insert("/big", File, 0644, t0)
	shards := []ShardDescriptor{{ID: "abc", PlainLen: 65536}, {ID: "def", PlainLen: 100}}
	if err := tr.UpdateFileShards("/big", shards, 65636, t0); err != nil {
		t.Fatal(err)
	}
	e, err := tr.Lookup("/big")
	if err != nil {
		t.Fatal(err)
	}
	if e.Size != 65636 || len(e.Shards) != 2 {
		t.Errorf("Lookup after UpdateFileShards = %+v", e)
	}
}

func TestValidateAcceptsWellFormedTree(t *testing.T) {
	tr := NewTree(t0)
	tr.Insert("/d", Dir, 0755, t0)
	tr.Insert("/d/f", File, 0644, t0)
	tr.UpdateFileShards("/d/f", []ShardDescriptor{{ID: "a", PlainLen: 65536}, {ID: "b", PlainLen: 100}}, 65636, t0)
	if err := tr.Validate(); err != nil {
		t.Errorf("Validate on well-formed tree = %v, want nil", err)
	}
}

func TestValidateCatchesShardSumMismatch(t *testing.T) {
	tr := NewTree(t0)
	tr.Insert("/f", File, 0644, t0)
	tr.UpdateFileShards("/f", []ShardDescriptor{{ID: "a", PlainLen: 10}}, 999, t0)

	var ive *errs.InvariantViolationError
	if err := tr.Validate(); !errors.As(err, &ive) {
		t.Errorf("Validate on size mismatch = %v, want *errs.InvariantViolationError", err)
	}
}

func TestValidateCatchesDuplicateShardID(t *testing.T) {
	tr := NewTree(t0)
	tr.Insert("/a", File, 0644, t0)
	tr.Insert("/b", File, 0644, t0)
	tr.UpdateFileShards("/a", []ShardDescriptor{{ID: "shared", PlainLen: 10}}, 10, t0)
	tr.UpdateFileShards("/b", []ShardDescriptor{{ID: "shared", PlainLen: 10}}, 10, t0)

	var ive *errs.InvariantViolationError
	if err := tr.Validate(); !errors.As(err, &ive) {
		t.Errorf("Validate on duplicate shard id = %v, want *errs.InvariantViolationError", err)
	}
}

func TestMarshalUnmarshalRoundTrip(t *testing.T) {
	tr := NewTree(t0)
	tr.Insert("/d", Dir, 0755, t0)
	tr.Insert("/d/f", File, 0644, t0)
	tr.UpdateFileShards("/d/f", []ShardDescriptor{{ID: "x", PlainLen: 5}}, 5, t0)
	tr.Insert("/e", File, 0644, t0)

	data, err := tr.Marshal()
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	tr2, err := Unmarshal(data)
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}

	got, err := tr2.List("/d")
	if err != nil {
		t.Fatal(err)
	}
	want, err := tr.List("/d")
	if err != nil {
		t.Fatal(err)
	}
	if !cmp.Equal(got, want, cmp.AllowUnexported(Entry{})) {
		t.Errorf("round-tripped /d children = %+v, want %+v", got, want)
	}

	rootGot, err := tr2.List("/")
	if err != nil {
		t.Fatal(err)
	}
	if len(rootGot) != 2 {
		t.Fatalf("root after round trip has %d entries, want 2", len(rootGot))
	}
}
