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

// Package codec implements the fixed-layout, little-endian byte encoding of
// every record kvfs stores: the superblock, inode keys/values, block
// keys/values, and free-list pages (spec §4.1). Every record size is fixed
// so the store round-trips values without length prefixes; a parse whose
// byte length does not match the expected size is a corruption error.
package codec

import (
	"encoding/binary"

	"github.com/cespare/xxhash/v2"
)

// NameMax is the maximum length, in bytes, of a single path component.
const NameMax = 255

// blockTag marks a BlockKey's encoding so a decoder can tell it apart from
// an InodeKey with the same leading 8-byte inode number by its tag as well
// as by its length — spec §3.2 invariant 6, §6.2.
var blockTag = [2]byte{0xff, 0xff}

// BlockFreeListPrefix and InodeFreeListPrefix tag the two free-list
// namespaces (spec §4.3: blocks and inodes share the same paged free-list
// shape). Both are literal two-byte ASCII sequences that can never collide
// with a numeric inode/block key, since those start with 8 raw
// inode-number bytes followed immediately by either a 4-byte hash or the
// blockTag — never by an ASCII prefix followed by a key of FreeListKey's
// own fixed length.
var (
	BlockFreeListPrefix = [2]byte{'f', 'b'}
	InodeFreeListPrefix = [2]byte{'f', 'i'}
)

// HashName returns the fixed 32-bit non-cryptographic hash H(name) spec §3.2
// invariant 1 requires for composite directory-entry keys: the low 32 bits
// of the 64-bit xxHash digest of name.
func HashName(name string) uint32 {
	return uint32(xxhash.Sum64String(name))
}

// InodeKey identifies a directory entry: (parent_inode, H(name)).
type InodeKey struct {
	Inode uint64
	Hash  uint32
}

// InodeKeySize is the fixed encoded length of an InodeKey: 8+4 bytes.
const InodeKeySize = 12

// RootInodeKey is the sentinel key for inode 0, the root (spec §3.2
// invariant 2 and §9): its own parent link points back at itself.
func RootInodeKey() InodeKey {
	return InodeKey{Inode: 0, Hash: HashName("/")}
}

// EncodeInodeKey serializes an InodeKey to its fixed 12-byte wire form.
func EncodeInodeKey(k InodeKey) []byte {
	buf := make([]byte, InodeKeySize)
	binary.LittleEndian.PutUint64(buf[0:8], k.Inode)
	binary.LittleEndian.PutUint32(buf[8:12], k.Hash)
	return buf
}

// DecodeInodeKey parses a 12-byte InodeKey, failing if the length is wrong
// (which also rejects an 18-byte BlockKey encoding).
func DecodeInodeKey(b []byte) (InodeKey, error) {
	if len(b) != InodeKeySize {
		return InodeKey{}, errCorrupt("InodeKey", InodeKeySize, len(b))
	}
	return InodeKey{
		Inode: binary.LittleEndian.Uint64(b[0:8]),
		Hash:  binary.LittleEndian.Uint32(b[8:12]),
	}, nil
}

// BlockKey identifies one data block: (owner_inode, block_number).
type BlockKey struct {
	Inode       uint64
	BlockNumber uint64
}

// BlockKeySize is the fixed encoded length of a BlockKey: 8+2+8 bytes. The
// length alone (18 vs. InodeKey's 12) already makes the two disjoint; the
// two-byte tag is kept as an explicit marker per spec §6.2 so a decoder can
// validate rather than merely infer from length.
const BlockKeySize = 18

// ZeroBlockKey is the chain terminator: a Next equal to the all-zero key
// (inode 0, block 0) ends a chain. A block number of 0 under a nonzero
// owner inode is an ordinary block and does not end a chain.
var ZeroBlockKey = BlockKey{}

func (k BlockKey) IsZero() bool {
	return k == ZeroBlockKey
}

// EncodeBlockKey serializes a BlockKey to its fixed 18-byte wire form.
func EncodeBlockKey(k BlockKey) []byte {
	buf := make([]byte, BlockKeySize)
	binary.LittleEndian.PutUint64(buf[0:8], k.Inode)
	copy(buf[8:10], blockTag[:])
	binary.LittleEndian.PutUint64(buf[10:18], k.BlockNumber)
	return buf
}

// DecodeBlockKey parses an 18-byte BlockKey, validating the tag bytes.
func DecodeBlockKey(b []byte) (BlockKey, error) {
	if len(b) != BlockKeySize {
		return BlockKey{}, errCorrupt("BlockKey", BlockKeySize, len(b))
	}
	if b[8] != blockTag[0] || b[9] != blockTag[1] {
		return BlockKey{}, errCorrupt("BlockKey tag", 0, 0)
	}
	return BlockKey{
		Inode:       binary.LittleEndian.Uint64(b[0:8]),
		BlockNumber: binary.LittleEndian.Uint64(b[10:18]),
	}, nil
}

// FreeListKeySize is the fixed encoded length of a FreeListKey: 2 + 8.
const FreeListKeySize = 10

// EncodeFreeListKey serializes the key for free-list page pageIndex in the
// given namespace (BlockFreeListPrefix or InodeFreeListPrefix).
func EncodeFreeListKey(prefix [2]byte, pageIndex uint64) []byte {
	buf := make([]byte, FreeListKeySize)
	copy(buf[0:2], prefix[:])
	binary.LittleEndian.PutUint64(buf[2:10], pageIndex)
	return buf
}

// DecodeFreeListKey parses a free-list page key, returning its namespace
// prefix and page index.
func DecodeFreeListKey(b []byte) (prefix [2]byte, pageIndex uint64, err error) {
	if len(b) != FreeListKeySize {
		return prefix, 0, errCorrupt("FreeListKey", FreeListKeySize, len(b))
	}
	prefix[0], prefix[1] = b[0], b[1]
	if prefix != BlockFreeListPrefix && prefix != InodeFreeListPrefix {
		return prefix, 0, errCorrupt("FreeListKey prefix", 0, 0)
	}
	return prefix, binary.LittleEndian.Uint64(b[2:10]), nil
}

// SuperblockKey is the single fixed key holding the superblock record.
const SuperblockKey = "superblock"

// DirPrefix returns the 8-byte key prefix matching every InodeKey whose
// parent is inode — used to iterate a directory's entries (spec §4.6.3).
// A directory's own inode number never doubles as a block owner (a given
// inode is either a directory or a regular file, never both), so this
// prefix never collides with that inode's BlockKeys.
func DirPrefix(inode uint64) []byte {
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, inode)
	return buf
}
