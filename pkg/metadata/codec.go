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
	"time"

	"github.com/fxamacker/cbor/v2"
)

// wireEntry is the CBOR-serializable shape of Entry. Children is a slice,
// not a map, specifically so that CBOR's array encoding preserves the
// insertion order §3 requires ("ordered mapping name → child entry");
// Go map iteration order is unspecified, so marshaling the live Children
// map directly would silently scramble readdir order across a
// flush/reload cycle.
type wireEntry struct {
	Name     string      `cbor:"name"`
	Kind     Kind        `cbor:"kind"`
	Mode     uint32      `cbor:"mode"`
	Mtime    time.Time   `cbor:"mtime"`
	Ctime    time.Time   `cbor:"ctime"`
	Children []wireEntry `cbor:"children,omitempty"`
	Size     int64       `cbor:"size"`
	Shards   []ShardDescriptor `cbor:"shards,omitempty"`
}

func toWire(e *Entry) wireEntry {
	w := wireEntry{
		Name:  e.Name,
		Kind:  e.Kind,
		Mode:  e.Mode,
		Mtime: e.Mtime,
		Ctime: e.Ctime,
		Size:  e.Size,
	}
	if e.Shards != nil {
		w.Shards = append([]ShardDescriptor(nil), e.Shards...)
	}
	if e.Kind == Dir {
		w.Children = make([]wireEntry, 0, len(e.order))
		for _, name := range e.order {
			w.Children = append(w.Children, toWire(e.Children[name]))
		}
	}
	return w
}

func fromWire(w wireEntry, parent *Entry) *Entry {
	e := &Entry{
		Name:   w.Name,
		Kind:   w.Kind,
		Mode:   w.Mode,
		Mtime:  w.Mtime,
		Ctime:  w.Ctime,
		Size:   w.Size,
		Shards: w.Shards,
		parent: parent,
	}
	if w.Kind == Dir {
		e.Children = make(map[string]*Entry, len(w.Children))
		e.order = make([]string, 0, len(w.Children))
		for _, cw := range w.Children {
			child := fromWire(cw, e)
			e.Children[child.Name] = child
			e.order = append(e.order, child.Name)
		}
	}
	return e
}

// Marshal serializes t to CBOR (§4.E: "serialized with a self-describing
// binary encoding (CBOR)").
func (t *Tree) Marshal() ([]byte, error) {
	return cbor.Marshal(toWire(t.root))
}

// Unmarshal decodes data, as produced by Marshal, into a new Tree.
func Unmarshal(data []byte) (*Tree, error) {
	var w wireEntry
	if err := cbor.Unmarshal(data, &w); err != nil {
		return nil, err
	}
	return &Tree{root: fromWire(w, nil)}, nil
}
