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

// Package fsck implements an offline consistency checker over an existing
// kvfs store (spec §8.1 invariants 2, 4, 5, 6): size accounting, free-list
// slot counts, block-number uniqueness across chains and free-list pages,
// and key-encoding injectivity. It also reports an entry name longer than
// NAME_MAX, under invariant "7".
package fsck

import (
	"bytes"
	"fmt"

	"github.com/kvfs-project/kvfs/kvfs/codec"
	"github.com/kvfs-project/kvfs/kvstore"
)

// Violation describes one failed invariant.
type Violation struct {
	Invariant string
	Detail    string
}

func (v Violation) String() string {
	return fmt.Sprintf("[%s] %s", v.Invariant, v.Detail)
}

// Report is the outcome of a Check run.
type Report struct {
	Violations []Violation
	InodeCount int
	BlockCount int
}

func (r Report) OK() bool { return len(r.Violations) == 0 }

func (r *Report) fail(invariant, format string, args ...any) {
	r.Violations = append(r.Violations, Violation{Invariant: invariant, Detail: fmt.Sprintf(format, args...)})
}

// Check walks every record in store and validates it against the codec's
// decoders and the cross-record invariants spec §8.1 names. blockSize must
// match the value the store was created with.
func Check(store kvstore.Store, blockSize int) (Report, error) {
	c := codec.New(blockSize)
	var report Report

	chainBlocks := make(map[codec.BlockKey]bool)
	freeListBlocks := make(map[codec.BlockKey]int)
	seenInodeKeys := make(map[codec.InodeKey]bool)

	sbRaw, err := store.Get([]byte(codec.SuperblockKey))
	if err != nil {
		return report, fmt.Errorf("fsck: read superblock: %w", err)
	}
	sb, err := c.DecodeSuperblock(sbRaw)
	if err != nil {
		return report, fmt.Errorf("fsck: decode superblock: %w", err)
	}

	// Pass 1: walk every inode record, validating per-file size accounting
	// (invariant 2) and collecting the set of block keys each file's chain
	// references.
	err = store.IterFromPrefix(nil, func(key, value []byte) bool {
		if bytes.Equal(key, []byte(codec.SuperblockKey)) {
			return true
		}
		if isFreeListKey(key) {
			return true
		}

		ik, err := codec.DecodeInodeKey(key)
		if err != nil {
			return true // not an InodeKey: a block record, reached through its owner's chain walk
		}
		if seenInodeKeys[ik] {
			report.fail("6", "duplicate InodeKey decoded twice: %+v", ik)
		}
		seenInodeKeys[ik] = true
		report.InodeCount++

		iv, err := c.DecodeInodeValue(value)
		if err != nil {
			report.fail("6", "InodeKey %+v: value does not decode as InodeValue: %v", ik, err)
			return true
		}
		if len(iv.Name) > codec.NameMax {
			report.fail("7", "InodeKey %+v: name length %d exceeds NAME_MAX", ik, len(iv.Name))
		}

		if codec.IsDir(iv.Stat.Mode) || codec.IsSymlink(iv.Stat.Mode) {
			return true
		}

		size, blocks, err := walkChain(store, c, iv, chainBlocks)
		if err != nil {
			report.fail("2", "InodeKey %+v: chain walk failed: %v", ik, err)
			return true
		}
		if size != iv.Stat.Size {
			report.fail("2", "InodeKey %+v: st_size=%d but inline+chain sums to %d", ik, iv.Stat.Size, size)
		}
		if iv.Stat.Size > uint64(blockSize) && blocks == 0 {
			report.fail("2", "InodeKey %+v: st_size=%d implies a non-empty block chain but none was found", ik, iv.Stat.Size)
		}
		if uint64(blocks) != iv.Stat.Blocks {
			report.fail("2", "InodeKey %+v: st_blocks=%d but chain length is %d", ik, iv.Stat.Blocks, blocks)
		}
		return true
	})
	if err != nil {
		return report, fmt.Errorf("fsck: inode scan: %w", err)
	}

	// Pass 2: walk every free-list page, checking invariant 4 (freed count)
	// and invariant 5 (no block number both live and free, no duplicate
	// free-list entries).
	var freedTotal uint64
	for _, prefix := range [][2]byte{codec.BlockFreeListPrefix} {
		pageIdx := uint64(0)
		for {
			raw, err := store.Get(codec.EncodeFreeListKey(prefix, pageIdx))
			if err == kvstore.ErrNotFound {
				break
			}
			if err != nil {
				return report, fmt.Errorf("fsck: read free-list page %d: %w", pageIdx, err)
			}
			page, err := codec.DecodeFreeListValue(raw)
			if err != nil {
				report.fail("6", "free-list page %d does not decode: %v", pageIdx, err)
				break
			}
			for i := 0; i < int(page.Count); i++ {
				bk := page.Entries[i]
				freeListBlocks[bk]++
				freedTotal++
				if chainBlocks[bk] {
					report.fail("5", "block %+v appears both in a live chain and in free-list page %d", bk, pageIdx)
				}
			}
			pageIdx++
		}
	}
	for bk, count := range freeListBlocks {
		if count > 1 {
			report.fail("5", "block %+v appears in %d free-list slots, want exactly 1", bk, count)
		}
	}
	if freedTotal != sb.FreedBlocksCount {
		report.fail("4", "superblock FreedBlocksCount=%d but free-list pages hold %d slots", sb.FreedBlocksCount, freedTotal)
	}

	report.BlockCount = len(chainBlocks)
	return report, nil
}

func isFreeListKey(key []byte) bool {
	return len(key) == codec.FreeListKeySize && (bytes.HasPrefix(key, codec.BlockFreeListPrefix[:]) || bytes.HasPrefix(key, codec.InodeFreeListPrefix[:]))
}

// walkChain returns the inline-plus-chain byte total and block count for iv,
// recording every visited block key into chainBlocks.
func walkChain(store kvstore.Store, c *codec.Codec, iv codec.InodeValue, chainBlocks map[codec.BlockKey]bool) (uint64, int, error) {
	total := uint64(len(iv.InlineTail))
	blocks := 0
	key := iv.HeadKey
	for !key.IsZero() {
		if chainBlocks[key] {
			return 0, 0, fmt.Errorf("block %+v visited by more than one chain", key)
		}
		chainBlocks[key] = true
		raw, err := store.Get(codec.EncodeBlockKey(key))
		if err != nil {
			return 0, 0, fmt.Errorf("block %+v: %w", key, err)
		}
		bv, err := c.DecodeBlockValue(raw)
		if err != nil {
			return 0, 0, fmt.Errorf("block %+v: %w", key, err)
		}
		total += bv.Size
		blocks++
		key = bv.Next
	}
	return total, blocks, nil
}
