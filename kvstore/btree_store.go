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

package kvstore

import (
	"bytes"
	"sync"

	"github.com/google/btree"
)

const btreeDegree = 32

type entry struct {
	key   []byte
	value []byte
}

func entryLess(a, b entry) bool {
	return bytes.Compare(a.key, b.key) < 0
}

// BTreeStore is an in-process reference implementation of Store backed by
// an ordered google/btree.BTreeG. It gives the prefix-ordered iteration and
// range delete the engine needs without a hand-rolled balanced tree.
type BTreeStore struct {
	mu   sync.RWMutex
	tree *btree.BTreeG[entry]
}

// NewBTreeStore returns an empty store.
func NewBTreeStore() *BTreeStore {
	return &BTreeStore{tree: btree.NewG(btreeDegree, entryLess)}
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

func (s *BTreeStore) Get(key []byte) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.tree.Get(entry{key: key})
	if !ok {
		return nil, ErrNotFound
	}
	return cloneBytes(e.value), nil
}

func (s *BTreeStore) Put(key, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tree.ReplaceOrInsert(entry{key: cloneBytes(key), value: cloneBytes(value)})
	return nil
}

func (s *BTreeStore) Delete(key []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tree.Delete(entry{key: key})
	return nil
}

func (s *BTreeStore) DeleteRange(start, end []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var victims [][]byte
	s.tree.AscendRange(entry{key: start}, entry{key: end}, func(e entry) bool {
		victims = append(victims, e.key)
		return true
	})
	for _, k := range victims {
		s.tree.Delete(entry{key: k})
	}
	return nil
}

// Merge implements replace-if-present-or-insert as delete-then-put, per
// spec §9 design note 3 for engines without a native atomic replace.
func (s *BTreeStore) Merge(key, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tree.Delete(entry{key: key})
	s.tree.ReplaceOrInsert(entry{key: cloneBytes(key), value: cloneBytes(value)})
	return nil
}

func (s *BTreeStore) IterFromPrefix(prefix []byte, fn func(key, value []byte) bool) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	s.tree.AscendGreaterOrEqual(entry{key: prefix}, func(e entry) bool {
		if !bytes.HasPrefix(e.key, prefix) {
			return false
		}
		return fn(e.key, e.value)
	})
	return nil
}

func (s *BTreeStore) Sync() error {
	return nil
}

func (s *BTreeStore) Compact() error {
	return nil
}

func (s *BTreeStore) Destroy() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tree = btree.NewG(btreeDegree, entryLess)
	return nil
}

func (s *BTreeStore) NewBatch() Batch {
	return &btreeBatch{store: s}
}

type batchOp struct {
	key    []byte
	value  []byte
	delete bool
}

type btreeBatch struct {
	store *BTreeStore
	ops   []batchOp
}

func (b *btreeBatch) Put(key, value []byte) {
	b.ops = append(b.ops, batchOp{key: cloneBytes(key), value: cloneBytes(value)})
}

func (b *btreeBatch) Delete(key []byte) {
	b.ops = append(b.ops, batchOp{key: cloneBytes(key), delete: true})
}

// Flush applies every accumulated mutation while holding the store's write
// lock for the whole batch, so readers observe either all of it or none.
func (b *btreeBatch) Flush() error {
	b.store.mu.Lock()
	defer b.store.mu.Unlock()

	for _, op := range b.ops {
		if op.delete {
			b.store.tree.Delete(entry{key: op.key})
		} else {
			b.store.tree.ReplaceOrInsert(entry{key: op.key, value: op.value})
		}
	}
	return nil
}
