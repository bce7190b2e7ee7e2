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
	"github.com/kvfs-project/kvfs/kvstore"
	"golang.org/x/sync/errgroup"
)

// Mode is a cached inode handle's access mode (spec §4.4.1).
type Mode int

const (
	ModeRead Mode = iota
	ModeWrite
	ModeDelete
)

// dominant implements the mode lattice: READ ⊑ WRITE, READ ⊑ DELETE; when
// both WRITE and DELETE are requested, DELETE wins (the caller is
// unlinking a file concurrently being written).
func dominant(a, b Mode) Mode {
	if a == ModeDelete || b == ModeDelete {
		return ModeDelete
	}
	if a == ModeWrite || b == ModeWrite {
		return ModeWrite
	}
	return ModeRead
}

// Handle is one cached inode-metadata entry.
type Handle struct {
	Key   codec.InodeKey
	Value codec.InodeValue
	Mode  Mode
}

// InodeCache is the bounded inode-metadata cache (spec §4.4.1): a map from
// InodeKey to a handle holding a snapshot of the decoded value and an
// access mode, with write-back on LRU eviction.
type InodeCache struct {
	store    kvstore.Store
	codec    *codec.Codec
	capacity int
	list     *lruList[codec.InodeKey, Handle]
}

func NewInodeCache(store kvstore.Store, c *codec.Codec, capacity int) *InodeCache {
	if capacity <= 0 {
		capacity = 4096
	}
	return &InodeCache{store: store, codec: c, capacity: capacity, list: newLRUList[codec.InodeKey, Handle]()}
}

// Get returns the handle for key, loading it from the store on a cache
// miss. A store-level NotFound is reported as (zero, false, nil): the
// cache never fabricates an entry. Found entries promote to MRU and have
// their mode upgraded per the mode lattice.
func (c *InodeCache) Get(key codec.InodeKey, mode Mode) (Handle, bool, error) {
	if h, ok := c.list.get(key); ok {
		h.Mode = dominant(h.Mode, mode)
		c.list.put(key, h)
		return h, true, nil
	}

	raw, err := c.store.Get(codec.EncodeInodeKey(key))
	if err == kvstore.ErrNotFound {
		return Handle{}, false, nil
	}
	if err != nil {
		return Handle{}, false, err
	}
	value, err := c.codec.DecodeInodeValue(raw)
	if err != nil {
		return Handle{}, false, err
	}

	h := Handle{Key: key, Value: value, Mode: mode}
	c.insert(key, h)
	return h, true, nil
}

// Insert places value as MRU in WRITE state (spec §4.4.1), evicting the LRU
// entry through write-back if the cache is now over capacity. Used when
// the engine mints a brand-new inode record.
func (c *InodeCache) Insert(key codec.InodeKey, value codec.InodeValue) Handle {
	h := Handle{Key: key, Value: value, Mode: ModeWrite}
	c.insert(key, h)
	return h
}

func (c *InodeCache) insert(key codec.InodeKey, h Handle) {
	c.list.put(key, h)
	for c.list.len() > c.capacity {
		victim, ok := c.list.lru()
		if !ok || victim == key {
			break
		}
		// A victim whose write-back fails stays cached (over capacity) rather
		// than losing its pending WRITE/DELETE.
		if err := c.WriteBack(victim); err != nil {
			break
		}
		c.list.remove(victim)
	}
}

// Update overwrites the cached value for key, upgrading its mode to at
// least WRITE, and promotes it to MRU. The key must already be cached
// (callers hold it via a prior Get/Insert).
func (c *InodeCache) Update(key codec.InodeKey, value codec.InodeValue) {
	h, _ := c.list.peek(key)
	h.Key = key
	h.Value = value
	h.Mode = dominant(h.Mode, ModeWrite)
	c.list.put(key, h)
}

// MarkDelete upgrades key's cached mode to DELETE, which always wins over
// any pending WRITE (spec §4.4.1 mode lattice).
func (c *InodeCache) MarkDelete(key codec.InodeKey) {
	h, ok := c.list.peek(key)
	if !ok {
		h = Handle{Key: key}
	}
	h.Mode = ModeDelete
	c.list.put(key, h)
}

// WriteBack flushes key's pending mutation to the store: a WRITE handle is
// put and downgraded to READ; a DELETE handle is deleted from the store
// (the reference implementation's tombstone choice, simpler than
// round-tripping the stale value through one last put) and evicted.
// READ handles are left untouched.
func (c *InodeCache) WriteBack(key codec.InodeKey) error {
	h, ok := c.list.peek(key)
	if !ok {
		return nil
	}
	switch h.Mode {
	case ModeWrite:
		if err := c.store.Put(codec.EncodeInodeKey(key), c.codec.EncodeInodeValue(h.Value)); err != nil {
			return err
		}
		h.Mode = ModeRead
		c.list.put(key, h)
	case ModeDelete:
		if err := c.store.Delete(codec.EncodeInodeKey(key)); err != nil {
			return err
		}
		c.list.remove(key)
	}
	return nil
}

// Evict drops key without writing back — used after a DELETE has already
// been committed directly (e.g. through BatchCommit).
func (c *InodeCache) Evict(key codec.InodeKey) {
	c.list.remove(key)
}

// BatchCommit atomically commits delete(oldKey) + put(newKey, newValue)
// through the store's write batch, then evicts both keys from the cache.
// Used by rename (spec §4.6.7).
func (c *InodeCache) BatchCommit(oldKey codec.InodeKey, newKey codec.InodeKey, newValue codec.InodeValue) error {
	b := c.store.NewBatch()
	b.Delete(codec.EncodeInodeKey(oldKey))
	b.Put(codec.EncodeInodeKey(newKey), c.codec.EncodeInodeValue(newValue))
	if err := b.Flush(); err != nil {
		return err
	}
	c.list.remove(oldKey)
	c.list.remove(newKey)
	return nil
}

// Flush writes back every dirty (WRITE or DELETE) entry, used on unmount.
func (c *InodeCache) Flush() error {
	var dirty []codec.InodeKey
	for n := c.list.head; n != nil; n = n.next {
		if n.value.Mode == ModeWrite || n.value.Mode == ModeDelete {
			dirty = append(dirty, n.key)
		}
	}
	for _, key := range dirty {
		if err := c.WriteBack(key); err != nil {
			return err
		}
	}
	return nil
}

// FlushConcurrent behaves like Flush but issues the underlying store writes
// for every dirty entry across workers goroutines via errgroup, then applies
// the resulting mode transitions back onto the (single-threaded) LRU list.
// Used by Unmount, where the dirty set can be large and each Put/Delete is an
// independent store round trip.
func (c *InodeCache) FlushConcurrent(workers int) error {
	if workers < 1 {
		workers = 1
	}

	type dirtyEntry struct {
		key   codec.InodeKey
		value codec.InodeValue
		mode  Mode
	}
	var dirty []dirtyEntry
	for n := c.list.head; n != nil; n = n.next {
		if n.value.Mode == ModeWrite || n.value.Mode == ModeDelete {
			dirty = append(dirty, dirtyEntry{key: n.key, value: n.value.Value, mode: n.value.Mode})
		}
	}
	if len(dirty) == 0 {
		return nil
	}

	g := errgroup.Group{}
	g.SetLimit(workers)
	for _, d := range dirty {
		d := d
		g.Go(func() error {
			switch d.mode {
			case ModeWrite:
				return c.store.Put(codec.EncodeInodeKey(d.key), c.codec.EncodeInodeValue(d.value))
			case ModeDelete:
				return c.store.Delete(codec.EncodeInodeKey(d.key))
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for _, d := range dirty {
		if d.mode == ModeDelete {
			c.list.remove(d.key)
			continue
		}
		h, ok := c.list.peek(d.key)
		if !ok {
			continue
		}
		h.Mode = ModeRead
		c.list.put(d.key, h)
	}
	return nil
}

// Len reports the number of cached entries (test/metrics use).
func (c *InodeCache) Len() int {
	return c.list.len()
}
