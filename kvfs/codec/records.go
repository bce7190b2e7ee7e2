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

package codec

import "encoding/binary"

// DefaultBlockSize is the reference BLOCK_SIZE from spec §4.1.
const DefaultBlockSize = 4096

// FreeListPageSize is the maximum number of entries held by one free-list
// page before the allocator starts a new page (spec §3.1, §4.3).
const FreeListPageSize = 512

// Codec encodes and decodes every fixed-layout record against one
// block-size configuration. BLOCK_SIZE is a build-time constant per spec
// §6.4; Codec makes it a runtime parameter so tests can exercise small
// block sizes without recompiling.
type Codec struct {
	BlockSize int
}

// New returns a Codec for the given block size.
func New(blockSize int) *Codec {
	if blockSize <= 0 {
		blockSize = DefaultBlockSize
	}
	return &Codec{BlockSize: blockSize}
}

// Superblock holds allocator counters and mount metadata (spec §3.1). Its
// wire form is 9 uint64 counters, 4 int64 (unix-nano) timestamps, and a
// 16-byte MountID — 120 bytes, fixed regardless of counter values.
type Superblock struct {
	Magic                uint64
	Version              uint64
	NextFreeInode        uint64
	TotalInodeCount      uint64
	NextFreeBlockNumber  uint64
	TotalBlockCount      uint64
	FreedBlocksCount     uint64
	FreedInodesCount     uint64
	MountCount           uint64
	CreationTimeUnixNano int64
	LastMountUnixNano    int64
	LastUnmountUnixNano  int64
	LastCheckpointNano   int64
	MountID              [16]byte // fresh UUID stamped at every successful mount
}

// SuperblockMagic identifies a valid superblock record.
const SuperblockMagic = 0x6b766673_00000001 // "kvfs" + format version 1

// SuperblockSize is the fixed encoded length of a Superblock: 9*8 + 4*8 + 16.
const SuperblockSize = 9*8 + 4*8 + 16

func (c *Codec) EncodeSuperblock(sb Superblock) []byte {
	buf := make([]byte, SuperblockSize)
	le := binary.LittleEndian
	le.PutUint64(buf[0:8], sb.Magic)
	le.PutUint64(buf[8:16], sb.Version)
	le.PutUint64(buf[16:24], sb.NextFreeInode)
	le.PutUint64(buf[24:32], sb.TotalInodeCount)
	le.PutUint64(buf[32:40], sb.NextFreeBlockNumber)
	le.PutUint64(buf[40:48], sb.TotalBlockCount)
	le.PutUint64(buf[48:56], sb.FreedBlocksCount)
	le.PutUint64(buf[56:64], sb.FreedInodesCount)
	le.PutUint64(buf[64:72], sb.MountCount)
	le.PutUint64(buf[72:80], uint64(sb.CreationTimeUnixNano))
	le.PutUint64(buf[80:88], uint64(sb.LastMountUnixNano))
	le.PutUint64(buf[88:96], uint64(sb.LastUnmountUnixNano))
	le.PutUint64(buf[96:104], uint64(sb.LastCheckpointNano))
	copy(buf[104:120], sb.MountID[:])
	return buf
}

func (c *Codec) DecodeSuperblock(b []byte) (Superblock, error) {
	if len(b) != SuperblockSize {
		return Superblock{}, errCorrupt("Superblock", SuperblockSize, len(b))
	}
	le := binary.LittleEndian
	sb := Superblock{
		Magic:                le.Uint64(b[0:8]),
		Version:              le.Uint64(b[8:16]),
		NextFreeInode:        le.Uint64(b[16:24]),
		TotalInodeCount:      le.Uint64(b[24:32]),
		NextFreeBlockNumber:  le.Uint64(b[32:40]),
		TotalBlockCount:      le.Uint64(b[40:48]),
		FreedBlocksCount:     le.Uint64(b[48:56]),
		FreedInodesCount:     le.Uint64(b[56:64]),
		MountCount:           le.Uint64(b[64:72]),
		CreationTimeUnixNano: int64(le.Uint64(b[72:80])),
		LastMountUnixNano:    int64(le.Uint64(b[80:88])),
		LastUnmountUnixNano:  int64(le.Uint64(b[88:96])),
		LastCheckpointNano:   int64(le.Uint64(b[96:104])),
	}
	copy(sb.MountID[:], b[104:120])
	return sb, nil
}

// Stat mirrors the POSIX-shaped attributes kvfs tracks per inode (spec
// §3.1). Owner/group bits are stored but never enforced (spec §1 Non-goals).
type Stat struct {
	Mode   uint32
	Uid    uint32
	Gid    uint32
	Size   uint64
	Nlink  uint32
	Atime  int64
	Mtime  int64
	Ctime  int64
	Blocks uint64 // chain length, excluding the inline tail (spec §3.2 invariant 4)
}

const statSize = 4 + 4 + 4 + 8 + 4 + 8 + 8 + 8 + 8 // 56

func putStat(buf []byte, s Stat) {
	le := binary.LittleEndian
	le.PutUint32(buf[0:4], s.Mode)
	le.PutUint32(buf[4:8], s.Uid)
	le.PutUint32(buf[8:12], s.Gid)
	le.PutUint64(buf[12:20], s.Size)
	le.PutUint32(buf[20:24], s.Nlink)
	le.PutUint64(buf[24:32], uint64(s.Atime))
	le.PutUint64(buf[32:40], uint64(s.Mtime))
	le.PutUint64(buf[40:48], uint64(s.Ctime))
	le.PutUint64(buf[48:56], s.Blocks)
}

func getStat(buf []byte) Stat {
	le := binary.LittleEndian
	return Stat{
		Mode:   le.Uint32(buf[0:4]),
		Uid:    le.Uint32(buf[4:8]),
		Gid:    le.Uint32(buf[8:12]),
		Size:   le.Uint64(buf[12:20]),
		Nlink:  le.Uint32(buf[20:24]),
		Atime:  int64(le.Uint64(buf[24:32])),
		Mtime:  int64(le.Uint64(buf[32:40])),
		Ctime:  int64(le.Uint64(buf[40:48])),
		Blocks: le.Uint64(buf[48:56]),
	}
}

// InodeValue is the metadata record addressed by an InodeKey (spec §3.1):
// the directory entry, the stat block, the parent back-reference, the head
// of the block chain, the inline tail, and the real inode (for hardlinks).
type InodeValue struct {
	Name       string // directory-entry name, <= NameMax bytes
	EntryInode uint64 // directory-entry's inode number
	Stat       Stat
	ParentKey  InodeKey
	HeadKey    BlockKey // chain head; ZeroBlockKey if the file has no chain
	InlineTail []byte   // first BlockSize bytes of file content, <= BlockSize
	RealKey    InodeKey // for hardlinks: the inode actually holding the data
}

// InodeValueSize returns the fixed encoded length for this codec's block size.
func (c *Codec) InodeValueSize() int {
	return 2 + NameMax + 8 + statSize + InodeKeySize + BlockKeySize + 4 + c.BlockSize + InodeKeySize
}

func (c *Codec) EncodeInodeValue(v InodeValue) []byte {
	if len(v.Name) > NameMax {
		v.Name = v.Name[:NameMax]
	}
	if len(v.InlineTail) > c.BlockSize {
		v.InlineTail = v.InlineTail[:c.BlockSize]
	}

	buf := make([]byte, c.InodeValueSize())
	le := binary.LittleEndian
	off := 0

	le.PutUint16(buf[off:off+2], uint16(len(v.Name)))
	off += 2
	copy(buf[off:off+NameMax], v.Name)
	off += NameMax

	le.PutUint64(buf[off:off+8], v.EntryInode)
	off += 8

	putStat(buf[off:off+statSize], v.Stat)
	off += statSize

	copy(buf[off:off+InodeKeySize], EncodeInodeKey(v.ParentKey))
	off += InodeKeySize

	copy(buf[off:off+BlockKeySize], EncodeBlockKey(v.HeadKey))
	off += BlockKeySize

	le.PutUint32(buf[off:off+4], uint32(len(v.InlineTail)))
	off += 4
	copy(buf[off:off+c.BlockSize], v.InlineTail)
	off += c.BlockSize

	copy(buf[off:off+InodeKeySize], EncodeInodeKey(v.RealKey))
	off += InodeKeySize

	return buf
}

func (c *Codec) DecodeInodeValue(b []byte) (InodeValue, error) {
	want := c.InodeValueSize()
	if len(b) != want {
		return InodeValue{}, errCorrupt("InodeValue", want, len(b))
	}
	le := binary.LittleEndian
	off := 0

	nameLen := int(le.Uint16(b[off : off+2]))
	off += 2
	if nameLen > NameMax {
		return InodeValue{}, errCorrupt("InodeValue.Name", NameMax, nameLen)
	}
	name := string(b[off : off+nameLen])
	off += NameMax

	entryInode := le.Uint64(b[off : off+8])
	off += 8

	stat := getStat(b[off : off+statSize])
	off += statSize

	parentKey, err := DecodeInodeKey(b[off : off+InodeKeySize])
	if err != nil {
		return InodeValue{}, err
	}
	off += InodeKeySize

	headKey, err := DecodeBlockKey(b[off : off+BlockKeySize])
	if err != nil {
		return InodeValue{}, err
	}
	off += BlockKeySize

	inlineLen := int(le.Uint32(b[off : off+4]))
	off += 4
	if inlineLen > c.BlockSize {
		return InodeValue{}, errCorrupt("InodeValue.InlineTail", c.BlockSize, inlineLen)
	}
	inline := make([]byte, inlineLen)
	copy(inline, b[off:off+inlineLen])
	off += c.BlockSize

	realKey, err := DecodeInodeKey(b[off : off+InodeKeySize])
	if err != nil {
		return InodeValue{}, err
	}
	off += InodeKeySize

	return InodeValue{
		Name:       name,
		EntryInode: entryInode,
		Stat:       stat,
		ParentKey:  parentKey,
		HeadKey:    headKey,
		InlineTail: inline,
		RealKey:    realKey,
	}, nil
}

// BlockValue is the payload record addressed by a BlockKey (spec §3.1):
// the next link in the chain, the valid payload length, and a fixed-size
// payload buffer.
type BlockValue struct {
	Next BlockKey
	Size uint64
	Data []byte // <= BlockSize valid bytes; buffer itself is BlockSize
}

func (c *Codec) BlockValueSize() int {
	return BlockKeySize + 8 + c.BlockSize
}

func (c *Codec) EncodeBlockValue(v BlockValue) []byte {
	if len(v.Data) > c.BlockSize {
		v.Data = v.Data[:c.BlockSize]
	}
	buf := make([]byte, c.BlockValueSize())
	off := 0
	copy(buf[off:off+BlockKeySize], EncodeBlockKey(v.Next))
	off += BlockKeySize
	binary.LittleEndian.PutUint64(buf[off:off+8], v.Size)
	off += 8
	copy(buf[off:off+c.BlockSize], v.Data)
	return buf
}

func (c *Codec) DecodeBlockValue(b []byte) (BlockValue, error) {
	want := c.BlockValueSize()
	if len(b) != want {
		return BlockValue{}, errCorrupt("BlockValue", want, len(b))
	}
	off := 0
	next, err := DecodeBlockKey(b[off : off+BlockKeySize])
	if err != nil {
		return BlockValue{}, err
	}
	off += BlockKeySize
	size := binary.LittleEndian.Uint64(b[off : off+8])
	off += 8
	data := make([]byte, c.BlockSize)
	copy(data, b[off:off+c.BlockSize])
	return BlockValue{Next: next, Size: size, Data: data}, nil
}

// FreeListValue is one page of the persistent block free-list (spec §3.1,
// §4.3): a count and a fixed array of up to FreeListPageSize block keys.
type FreeListValue struct {
	Count   uint32
	Entries []BlockKey // len <= FreeListPageSize; full array is always stored
}

const freeListValueSize = 4 + FreeListPageSize*BlockKeySize

func EncodeFreeListValue(v FreeListValue) []byte {
	buf := make([]byte, freeListValueSize)
	binary.LittleEndian.PutUint32(buf[0:4], v.Count)
	off := 4
	for i := 0; i < FreeListPageSize; i++ {
		var k BlockKey
		if i < len(v.Entries) {
			k = v.Entries[i]
		}
		copy(buf[off:off+BlockKeySize], EncodeBlockKey(k))
		off += BlockKeySize
	}
	return buf
}

func DecodeFreeListValue(b []byte) (FreeListValue, error) {
	if len(b) != freeListValueSize {
		return FreeListValue{}, errCorrupt("FreeListValue", freeListValueSize, len(b))
	}
	count := binary.LittleEndian.Uint32(b[0:4])
	entries := make([]BlockKey, count)
	off := 4
	for i := 0; i < int(count); i++ {
		k, err := DecodeBlockKey(b[off : off+BlockKeySize])
		if err != nil {
			return FreeListValue{}, err
		}
		entries[i] = k
		off += BlockKeySize
	}
	return FreeListValue{Count: count, Entries: entries}, nil
}
