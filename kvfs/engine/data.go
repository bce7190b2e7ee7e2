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

package engine

import (
	"github.com/kvfs-project/kvfs/kvfs/codec"
	"github.com/kvfs-project/kvfs/kvstore"
)

// readData returns up to size bytes of v's content starting at offset (spec
// §4.6.2): the portion below BlockSize comes from the inline tail, the
// remainder from walking the block chain from HeadKey. The chain is a
// singly linked list addressed only by traversal, never by arithmetic on
// block numbers, since numbers are reused by the free-list in no particular
// order.
func (fs *Filesystem) readData(v codec.InodeValue, offset int64, size int) ([]byte, error) {
	total := int64(v.Stat.Size)
	if offset >= total || size <= 0 {
		return nil, nil
	}
	end := offset + int64(size)
	if end > total {
		end = total
	}
	blockSize := int64(fs.codec.BlockSize)
	out := make([]byte, 0, end-offset)

	if offset < blockSize {
		inlineEnd := end
		if inlineEnd > blockSize {
			inlineEnd = blockSize
		}
		if inlineEnd > int64(len(v.InlineTail)) {
			inlineEnd = int64(len(v.InlineTail))
		}
		if inlineEnd > offset {
			out = append(out, v.InlineTail[offset:inlineEnd]...)
		}
		offset = inlineEnd
		if offset < end && offset < blockSize {
			offset = blockSize
		}
	}

	if offset < end {
		pos := blockSize
		key := v.HeadKey
		for !key.IsZero() && offset < end {
			raw, err := fs.store.Get(codec.EncodeBlockKey(key))
			if err != nil {
				if err == kvstore.ErrNotFound {
					break
				}
				return nil, err
			}
			bv, err := fs.codec.DecodeBlockValue(raw)
			if err != nil {
				return nil, err
			}

			blockEnd := pos + int64(bv.Size)
			if offset < blockEnd {
				lo := offset - pos
				hi := blockEnd - pos
				if want := end - pos; want < hi {
					hi = want
				}
				out = append(out, bv.Data[lo:hi]...)
				offset = pos + hi
			}
			pos += blockSize
			key = bv.Next
		}
	}
	return out, nil
}

// chainBlockCount walks the block chain from head and counts its links,
// mirroring fsck's walkChain (spec §3.2 invariant 4: st_blocks excludes the
// inline tail and counts only the chain).
func (fs *Filesystem) chainBlockCount(head codec.BlockKey) (int, error) {
	count := 0
	key := head
	for !key.IsZero() {
		raw, err := fs.store.Get(codec.EncodeBlockKey(key))
		if err != nil {
			if err == kvstore.ErrNotFound {
				break
			}
			return 0, err
		}
		bv, err := fs.codec.DecodeBlockValue(raw)
		if err != nil {
			return 0, err
		}
		count++
		key = bv.Next
	}
	return count, nil
}

// overlap returns the intersection of [aLo, aHi) and [bLo, bHi), possibly
// empty (hi <= lo).
func overlap(aLo, aHi, bLo, bHi int64) (lo, hi int64) {
	lo, hi = aLo, aHi
	if bLo > lo {
		lo = bLo
	}
	if bHi < hi {
		hi = bHi
	}
	return lo, hi
}

// writeData writes data at offset into v's content (spec §4.6.2 cases A/B):
// bytes below BlockSize land in the inline tail, bytes at or beyond it land
// in the block chain, allocating and chaining new blocks as needed and
// zero-filling any gap created by a write starting past the current EOF.
// v.Stat.Size grows to cover the write but is never shrunk here.
func (fs *Filesystem) writeData(v *codec.InodeValue, sb *codec.Superblock, offset int64, data []byte) error {
	if len(data) == 0 {
		return nil
	}
	blockSize := int64(fs.codec.BlockSize)
	end := offset + int64(len(data))

	// The inline tail always covers [0, min(end, BlockSize)) once the file's
	// size reaches there, even if this particular write starts further in —
	// otherwise a write starting past BlockSize on an empty file would leave
	// a hole in the inline region with no zero bytes backing it.
	inlineTarget := end
	if inlineTarget > blockSize {
		inlineTarget = blockSize
	}
	if int64(len(v.InlineTail)) < inlineTarget {
		grown := make([]byte, inlineTarget)
		copy(grown, v.InlineTail)
		v.InlineTail = grown
	}

	written := int64(0)
	if offset < blockSize {
		hi := end
		if hi > blockSize {
			hi = blockSize
		}
		if hi > offset {
			copy(v.InlineTail[offset:hi], data[:hi-offset])
			written = hi - offset
		}
	}

	if end > blockSize {
		chainOff := offset - blockSize
		if chainOff < 0 {
			chainOff = 0
		}
		if err := fs.writeChain(v, sb, chainOff, data[written:]); err != nil {
			return err
		}
		count, err := fs.chainBlockCount(v.HeadKey)
		if err != nil {
			return err
		}
		v.Stat.Blocks = uint64(count)
	}

	if end > int64(v.Stat.Size) {
		v.Stat.Size = uint64(end)
	}
	return nil
}

// writeChain writes data at chainOff (an offset relative to the start of the
// block chain, i.e. absolute offset minus BlockSize), allocating new blocks
// and patching the previous block's Next link (or v.HeadKey, for the first
// block) as the chain is extended.
func (fs *Filesystem) writeChain(v *codec.InodeValue, sb *codec.Superblock, chainOff int64, data []byte) error {
	blockSize := int64(fs.codec.BlockSize)
	chainEnd := chainOff + int64(len(data))

	pos := int64(0)
	curKey := v.HeadKey
	var prevKey codec.BlockKey
	havePrev := false

	for pos < chainEnd {
		var bv codec.BlockValue
		isNew := curKey.IsZero()
		if !isNew {
			raw, err := fs.store.Get(codec.EncodeBlockKey(curKey))
			switch err {
			case nil:
				bv, err = fs.codec.DecodeBlockValue(raw)
				if err != nil {
					return err
				}
			case kvstore.ErrNotFound:
				isNew = true
			default:
				return err
			}
		}

		if isNew {
			newKey, err := fs.alloc.AcquireBlock(sb, v.EntryInode)
			if err != nil {
				return err
			}
			curKey = newKey
			bv = codec.BlockValue{Data: make([]byte, blockSize)}
			if havePrev {
				if err := fs.patchNext(prevKey, curKey); err != nil {
					return err
				}
			} else {
				v.HeadKey = curKey
			}
		}
		if int64(len(bv.Data)) < blockSize {
			grown := make([]byte, blockSize)
			copy(grown, bv.Data)
			bv.Data = grown
		}

		lo, hi := overlap(chainOff, chainEnd, pos, pos+blockSize)
		if hi > lo {
			srcStart := lo - chainOff
			copy(bv.Data[lo-pos:hi-pos], data[srcStart:srcStart+(hi-lo)])
		}
		validLen := hi - pos
		if int64(bv.Size) > validLen {
			validLen = int64(bv.Size)
		}
		if validLen > blockSize {
			validLen = blockSize
		}
		if validLen < 0 {
			validLen = 0
		}
		bv.Size = uint64(validLen)

		if err := fs.store.Put(codec.EncodeBlockKey(curKey), fs.codec.EncodeBlockValue(bv)); err != nil {
			return err
		}

		prevKey, havePrev = curKey, true
		pos += blockSize
		curKey = bv.Next
	}
	return nil
}

func (fs *Filesystem) patchNext(key, next codec.BlockKey) error {
	raw, err := fs.store.Get(codec.EncodeBlockKey(key))
	if err != nil {
		return err
	}
	bv, err := fs.codec.DecodeBlockValue(raw)
	if err != nil {
		return err
	}
	bv.Next = next
	return fs.store.Put(codec.EncodeBlockKey(key), fs.codec.EncodeBlockValue(bv))
}

// truncateData resizes v's content to newSize (spec §4.6.6): growing
// zero-fills through writeData so later reads never observe a hole; shrinking
// releases every chain block wholly beyond newSize back to the free-list and
// trims the inline tail or the new last block as needed.
func (fs *Filesystem) truncateData(v *codec.InodeValue, sb *codec.Superblock, newSize int64) error {
	oldSize := int64(v.Stat.Size)
	if newSize == oldSize {
		return nil
	}
	blockSize := int64(fs.codec.BlockSize)

	if newSize > oldSize {
		zeros := make([]byte, newSize-oldSize)
		if err := fs.writeData(v, sb, oldSize, zeros); err != nil {
			return err
		}
		v.Stat.Size = uint64(newSize)
		return nil
	}

	if newSize <= int64(len(v.InlineTail)) {
		v.InlineTail = v.InlineTail[:newSize]
	}
	if newSize <= blockSize {
		if err := fs.releaseChainFrom(sb, v.HeadKey); err != nil {
			return err
		}
		v.HeadKey = codec.ZeroBlockKey
		v.Stat.Blocks = 0
		v.Stat.Size = uint64(newSize)
		return nil
	}

	chainKeep := newSize - blockSize
	pos := int64(0)
	key := v.HeadKey
	var prevKey codec.BlockKey
	havePrev := false

	for !key.IsZero() {
		raw, err := fs.store.Get(codec.EncodeBlockKey(key))
		if err != nil {
			if err == kvstore.ErrNotFound {
				break
			}
			return err
		}
		bv, err := fs.codec.DecodeBlockValue(raw)
		if err != nil {
			return err
		}
		blockEnd := pos + blockSize

		if pos >= chainKeep {
			if err := fs.store.Delete(codec.EncodeBlockKey(key)); err != nil {
				return err
			}
			if err := fs.alloc.ReleaseBlock(sb, key); err != nil {
				return err
			}
			if havePrev {
				if err := fs.patchNext(prevKey, codec.ZeroBlockKey); err != nil {
					return err
				}
			} else {
				v.HeadKey = codec.ZeroBlockKey
			}
			key = bv.Next
			continue
		}

		if chainKeep < blockEnd {
			newValid := chainKeep - pos
			if newValid < int64(bv.Size) {
				bv.Size = uint64(newValid)
				if err := fs.store.Put(codec.EncodeBlockKey(key), fs.codec.EncodeBlockValue(bv)); err != nil {
					return err
				}
			}
		}

		prevKey, havePrev = key, true
		pos = blockEnd
		key = bv.Next
	}

	count, err := fs.chainBlockCount(v.HeadKey)
	if err != nil {
		return err
	}
	v.Stat.Blocks = uint64(count)
	v.Stat.Size = uint64(newSize)
	return nil
}

func (fs *Filesystem) releaseChainFrom(sb *codec.Superblock, head codec.BlockKey) error {
	key := head
	for !key.IsZero() {
		raw, err := fs.store.Get(codec.EncodeBlockKey(key))
		if err != nil {
			if err == kvstore.ErrNotFound {
				return nil
			}
			return err
		}
		bv, err := fs.codec.DecodeBlockValue(raw)
		if err != nil {
			return err
		}
		if err := fs.store.Delete(codec.EncodeBlockKey(key)); err != nil {
			return err
		}
		if err := fs.alloc.ReleaseBlock(sb, key); err != nil {
			return err
		}
		key = bv.Next
	}
	return nil
}
