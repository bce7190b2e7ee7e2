// Copyright 2026 The Kvfs Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package cache

import (
	"github.com/kvfs-project/kvfs/kvfs/codec"
)

// OpenFlags mirrors the recognized open() options (spec §6.3).
type OpenFlags struct {
	Read      bool
	Write     bool
	Create    bool
	Exclusive bool
	Truncate  bool
	Append    bool
	Sync      bool
}

// OpenFile is one entry of the open-file table (spec §3.1, §4.4.2): the
// inode it addresses, a metadata snapshot mutated in place by writes and
// merged into the store on close, the open flags, and the current offset.
type OpenFile struct {
	InodeKey codec.InodeKey
	Meta     codec.InodeValue
	Flags    OpenFlags
	Offset   int64
}

// OpenFileTable maps integer descriptors to OpenFile entries. Descriptor
// allocation is a monotonic counter; NO_SPACE is reported once the number
// of concurrently open files reaches the configured cap — closed
// descriptors free a slot but the counter itself never rewinds, so a
// closed fd is never handed out again (spec §4.4.2).
type OpenFileTable struct {
	max   int
	next  int
	files map[int]*OpenFile
}

func NewOpenFileTable(max int) *OpenFileTable {
	if max <= 0 {
		max = 512
	}
	return &OpenFileTable{max: max, files: make(map[int]*OpenFile)}
}

// Open inserts a new entry and returns its descriptor, or ok=false if the
// table is at capacity.
func (t *OpenFileTable) Open(key codec.InodeKey, meta codec.InodeValue, flags OpenFlags) (fd int, ok bool) {
	if len(t.files) >= t.max {
		return 0, false
	}
	fd = t.next
	t.next++
	t.files[fd] = &OpenFile{InodeKey: key, Meta: meta, Flags: flags}
	return fd, true
}

// Get returns the entry for fd, if open.
func (t *OpenFileTable) Get(fd int) (*OpenFile, bool) {
	f, ok := t.files[fd]
	return f, ok
}

// Close removes fd from the table.
func (t *OpenFileTable) Close(fd int) {
	delete(t.files, fd)
}

// Len reports the number of currently open descriptors.
func (t *OpenFileTable) Len() int {
	return len(t.files)
}

// ForEachOpenOn calls fn for every currently-open descriptor addressing key
// — used by rename/unlink to keep a live handle's InodeKey in sync.
func (t *OpenFileTable) ForEachOpenOn(key codec.InodeKey, fn func(fd int, f *OpenFile)) {
	for fd, f := range t.files {
		if f.InodeKey == key {
			fn(fd, f)
		}
	}
}
