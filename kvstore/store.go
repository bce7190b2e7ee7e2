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

// Package kvstore defines the sorted key-value contract the kvfs engine
// needs from its backing store (spec §6.1) and a reference in-process
// implementation of it.
package kvstore

import "errors"

// ErrNotFound is returned by Get when key is absent.
var ErrNotFound = errors.New("kvstore: key not found")

// Store is the minimal contract the engine requires of its backing KV
// engine: point get/put/delete, range delete, prefix-ordered iteration,
// durable sync, advisory compaction, and an atomic write batch. Any engine
// satisfying this interface — an in-process tree, an embedded LSM store, a
// networked KV service — can back the filesystem.
type Store interface {
	// Get returns the value for key, or ErrNotFound if absent.
	Get(key []byte) ([]byte, error)

	// Put writes key=value, replacing any existing value.
	Put(key, value []byte) error

	// Delete removes key. It is not an error if key is absent.
	Delete(key []byte) error

	// DeleteRange removes every key in the half-open range [start, end).
	DeleteRange(start, end []byte) error

	// Merge implements replace-if-present-or-insert. BTreeStore implements
	// it as delete-then-put.
	Merge(key, value []byte) error

	// IterFromPrefix calls fn with every key/value pair whose key has the
	// given prefix, in ascending key order, stopping early if fn returns
	// false. The value slices must not be retained past the call.
	IterFromPrefix(prefix []byte, fn func(key, value []byte) bool) error

	// Sync ensures durability of every write that happened-before this
	// call returns.
	Sync() error

	// Compact is an advisory hint; implementations may no-op.
	Compact() error

	// Destroy erases all state. Test-only.
	Destroy() error

	// NewBatch returns a handle accumulating puts/deletes for atomic flush.
	NewBatch() Batch
}

// Batch accumulates mutations for an atomic flush.
type Batch interface {
	Put(key, value []byte)
	Delete(key []byte)
	// Flush applies every accumulated mutation atomically.
	Flush() error
}
