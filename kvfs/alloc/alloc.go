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

// Package alloc implements the inode-number and block-number allocator
// (spec §4.3): a monotonic counter backed by a persistent, paged free-list
// that is preferred over extending the counter.
package alloc

import (
	"github.com/kvfs-project/kvfs/kvfs/codec"
	"github.com/kvfs-project/kvfs/kvstore"
)

// Allocator mints and reclaims inode numbers and block numbers against a
// superblock the caller owns and persists (spec §3.3: the superblock is
// exclusively owned by the engine; the allocator only mutates the struct
// handed to it).
type Allocator struct {
	store kvstore.Store
	codec *codec.Codec
}

func New(store kvstore.Store, c *codec.Codec) *Allocator {
	return &Allocator{store: store, codec: c}
}

// NewInode dequeues a freed inode number if the free-list is non-empty,
// else bumps sb.NextFreeInode and increments sb.TotalInodeCount.
func (a *Allocator) NewInode(sb *codec.Superblock) (uint64, error) {
	if sb.FreedInodesCount > 0 {
		return a.popFreeList(sb, codec.InodeFreeListPrefix, &sb.FreedInodesCount)
	}
	n := sb.NextFreeInode
	sb.NextFreeInode++
	sb.TotalInodeCount++
	return n, nil
}

// FreeInode enqueues inode onto the inode free-list and decrements the
// live inode count.
func (a *Allocator) FreeInode(sb *codec.Superblock, inode uint64) error {
	if err := a.pushFreeList(sb, codec.InodeFreeListPrefix, &sb.FreedInodesCount, codec.BlockKey{Inode: inode}); err != nil {
		return err
	}
	if sb.TotalInodeCount > 0 {
		sb.TotalInodeCount--
	}
	return nil
}

// AcquireBlock implements spec §4.3 "Block numbers — acquire": prefer the
// highest-indexed freed block, else extend NextFreeBlockNumber.
func (a *Allocator) AcquireBlock(sb *codec.Superblock, owner uint64) (codec.BlockKey, error) {
	if sb.FreedBlocksCount == 0 {
		key := codec.BlockKey{Inode: owner, BlockNumber: sb.NextFreeBlockNumber}
		sb.NextFreeBlockNumber++
		sb.TotalBlockCount++
		return key, nil
	}
	k, err := a.popFreeBlockList(sb)
	if err != nil {
		return codec.BlockKey{}, err
	}
	// The reclaimed key keeps its original owner encoding; the caller
	// re-owns it under the new file by re-encoding with owner below, since
	// the free-list only remembers the block's numeric identity.
	k.Inode = owner
	return k, nil
}

// ReleaseBlock implements spec §4.3 "Block numbers — release": append to
// the current partial page, rolling to a new page at FreeListPageSize.
func (a *Allocator) ReleaseBlock(sb *codec.Superblock, key codec.BlockKey) error {
	return a.pushFreeList(sb, codec.BlockFreeListPrefix, &sb.FreedBlocksCount, key)
}

func (a *Allocator) pageKey(prefix [2]byte, pageIndex uint64) []byte {
	return codec.EncodeFreeListKey(prefix, pageIndex)
}

// pushFreeList appends key to the last (possibly new) page in the given
// namespace and increments *count.
func (a *Allocator) pushFreeList(sb *codec.Superblock, prefix [2]byte, count *uint64, key codec.BlockKey) error {
	pageIndex := *count / codec.FreeListPageSize
	slot := *count % codec.FreeListPageSize

	page, err := a.loadPage(prefix, pageIndex)
	if err != nil {
		return err
	}
	if int(slot) == len(page.Entries) {
		page.Entries = append(page.Entries, key)
	} else {
		page.Entries[slot] = key
	}
	page.Count = uint32(len(page.Entries))

	if err := a.store.Put(a.pageKey(prefix, pageIndex), codec.EncodeFreeListValue(page)); err != nil {
		return err
	}
	*count++
	return nil
}

// popFreeList dequeues the last entry of the highest-indexed page in the
// given namespace (LIFO within a page), deleting the page if it empties.
func (a *Allocator) popFreeList(sb *codec.Superblock, prefix [2]byte, count *uint64) (uint64, error) {
	k, err := a.popFreeListKey(prefix, count)
	if err != nil {
		return 0, err
	}
	return k.Inode, nil
}

func (a *Allocator) popFreeBlockList(sb *codec.Superblock) (codec.BlockKey, error) {
	return a.popFreeListKey(codec.BlockFreeListPrefix, &sb.FreedBlocksCount)
}

func (a *Allocator) popFreeListKey(prefix [2]byte, count *uint64) (codec.BlockKey, error) {
	pageIndex := (*count - 1) / codec.FreeListPageSize

	page, err := a.loadPage(prefix, pageIndex)
	if err != nil {
		return codec.BlockKey{}, err
	}
	if len(page.Entries) == 0 {
		return codec.BlockKey{}, errEmptyPage(prefix, pageIndex)
	}
	last := page.Entries[len(page.Entries)-1]
	page.Entries = page.Entries[:len(page.Entries)-1]
	page.Count = uint32(len(page.Entries))

	if len(page.Entries) == 0 {
		if err := a.store.Delete(a.pageKey(prefix, pageIndex)); err != nil {
			return codec.BlockKey{}, err
		}
	} else if err := a.store.Put(a.pageKey(prefix, pageIndex), codec.EncodeFreeListValue(page)); err != nil {
		return codec.BlockKey{}, err
	}
	*count--
	return last, nil
}

func (a *Allocator) loadPage(prefix [2]byte, pageIndex uint64) (codec.FreeListValue, error) {
	raw, err := a.store.Get(a.pageKey(prefix, pageIndex))
	if err == kvstore.ErrNotFound {
		return codec.FreeListValue{}, nil
	}
	if err != nil {
		return codec.FreeListValue{}, err
	}
	return codec.DecodeFreeListValue(raw)
}
