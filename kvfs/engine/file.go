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
	"github.com/kvfs-project/kvfs/kvfs/cache"
	"github.com/kvfs-project/kvfs/kvfs/codec"
	"github.com/kvfs-project/kvfs/kvfs/kvfserr"
)

// Open resolves path and returns a descriptor into the open-file table (spec
// §4.6.1, §6.3). O_CREAT mints a new regular-file inode when the leaf is
// absent; O_EXCL paired with O_CREAT rejects an existing leaf.
func (fs *Filesystem) Open(cwd, path string, flags cache.OpenFlags, mode uint32) (int, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	res, err := fs.resolve.Resolve(cwd, path)
	if err != nil {
		return 0, err
	}

	if !res.Exists {
		if !flags.Create {
			return 0, kvfserr.New(kvfserr.NotFound, "open", path, nil)
		}
		if fs.readOnly {
			return 0, kvfserr.New(kvfserr.ReadOnlyFS, "open", path, nil)
		}
		value, err := fs.createLeaf(res, path, codec.TypeRegular|mode&0o7777, 1)
		if err != nil {
			return 0, err
		}
		res.LeafKey, res.Leaf, res.Exists = res.LeafKey, value, true
		if flags.Sync {
			if err := fs.inodes.WriteBack(res.LeafKey); err != nil {
				return 0, kvfserr.New(kvfserr.IO, "open", path, err)
			}
			if err := fs.store.Sync(); err != nil {
				return 0, kvfserr.New(kvfserr.IO, "open", path, err)
			}
		}
	} else if flags.Create && flags.Exclusive {
		return 0, kvfserr.New(kvfserr.AlreadyExists, "open", path, nil)
	}

	if codec.IsDir(res.Leaf.Stat.Mode) && (flags.Write || flags.Truncate) {
		return 0, kvfserr.New(kvfserr.IsADirectory, "open", path, nil)
	}

	real, err := fs.resolveReal(res.LeafKey, res.Leaf)
	if err != nil {
		return 0, err
	}

	if flags.Truncate && flags.Write {
		if fs.readOnly {
			return 0, kvfserr.New(kvfserr.ReadOnlyFS, "open", path, nil)
		}
		real.Value.Stat.Size = 0
		real.Value.InlineTail = nil
		if err := fs.releaseChainFrom(&fs.sb, real.Value.HeadKey); err != nil {
			return 0, kvfserr.New(kvfserr.IO, "open", path, err)
		}
		real.Value.HeadKey = codec.ZeroBlockKey
		real.Value.Stat.Blocks = 0
		real.Value.Stat.Mtime = fs.now()
		fs.inodes.Update(real.Key, real.Value)
	}

	fd, ok := fs.open.Open(res.LeafKey, real.Value, flags)
	if !ok {
		return 0, kvfserr.New(kvfserr.NoSpace, "open", path, nil)
	}
	return fd, nil
}

// resolveReal follows a hardlinked InodeValue's RealKey to the record that
// actually owns the data (spec §3.1 RealKey / supplemented hardlink
// feature); for an ordinary inode, RealKey is its own key and this is a
// no-op lookup.
func (fs *Filesystem) resolveReal(key codec.InodeKey, value codec.InodeValue) (cache.Handle, error) {
	if value.RealKey == key || value.RealKey == (codec.InodeKey{}) {
		return cache.Handle{Key: key, Value: value}, nil
	}
	h, ok, err := fs.inodes.Get(value.RealKey, cache.ModeRead)
	if err != nil {
		return cache.Handle{}, kvfserr.New(kvfserr.IO, "open", "", err)
	}
	if !ok {
		return cache.Handle{}, kvfserr.New(kvfserr.IO, "open", "", nil)
	}
	return h, nil
}

// Read reads up to len(buf) bytes from fd at its current offset, advancing
// the offset by the number of bytes returned.
func (fs *Filesystem) Read(fd int, buf []byte) (int, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	of, ok := fs.open.Get(fd)
	if !ok {
		return 0, kvfserr.New(kvfserr.BadDescriptor, "read", "", nil)
	}
	if !of.Flags.Read {
		return 0, kvfserr.New(kvfserr.Permission, "read", "", nil)
	}

	h, ok, err := fs.inodes.Get(of.InodeKey, cache.ModeRead)
	if err != nil {
		return 0, kvfserr.New(kvfserr.IO, "read", "", err)
	}
	if !ok {
		return 0, kvfserr.New(kvfserr.NotFound, "read", "", nil)
	}
	real, err := fs.resolveReal(of.InodeKey, h.Value)
	if err != nil {
		return 0, err
	}

	out, err := fs.readData(real.Value, of.Offset, len(buf))
	if err != nil {
		return 0, kvfserr.New(kvfserr.IO, "read", "", err)
	}
	n := copy(buf, out)
	of.Offset += int64(n)
	return n, nil
}

// Write writes buf to fd at its current offset (or at EOF if the descriptor
// was opened with O_APPEND), advancing the offset by the number of bytes
// written.
func (fs *Filesystem) Write(fd int, buf []byte) (int, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if fs.readOnly {
		return 0, kvfserr.New(kvfserr.ReadOnlyFS, "write", "", nil)
	}

	of, ok := fs.open.Get(fd)
	if !ok {
		return 0, kvfserr.New(kvfserr.BadDescriptor, "write", "", nil)
	}
	if !of.Flags.Write {
		return 0, kvfserr.New(kvfserr.Permission, "write", "", nil)
	}

	h, ok, err := fs.inodes.Get(of.InodeKey, cache.ModeWrite)
	if err != nil {
		return 0, kvfserr.New(kvfserr.IO, "write", "", err)
	}
	if !ok {
		return 0, kvfserr.New(kvfserr.NotFound, "write", "", nil)
	}
	real, err := fs.resolveReal(of.InodeKey, h.Value)
	if err != nil {
		return 0, err
	}

	offset := of.Offset
	if of.Flags.Append {
		offset = int64(real.Value.Stat.Size)
	}

	v := real.Value
	if err := fs.writeData(&v, &fs.sb, offset, buf); err != nil {
		return 0, kvfserr.New(kvfserr.IO, "write", "", err)
	}
	v.Stat.Mtime = fs.now()
	fs.inodes.Update(real.Key, v)

	if of.Flags.Sync {
		if err := fs.inodes.WriteBack(real.Key); err != nil {
			return 0, kvfserr.New(kvfserr.IO, "write", "", err)
		}
		if err := fs.store.Sync(); err != nil {
			return 0, kvfserr.New(kvfserr.IO, "write", "", err)
		}
	}

	of.Offset = offset + int64(len(buf))
	of.Meta = v
	return len(buf), nil
}

// Lseek repositions fd's offset per whence (0=set, 1=cur, 2=end).
func (fs *Filesystem) Lseek(fd int, offset int64, whence int) (int64, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	of, ok := fs.open.Get(fd)
	if !ok {
		return 0, kvfserr.New(kvfserr.BadDescriptor, "lseek", "", nil)
	}

	var base int64
	switch whence {
	case 0:
		base = 0
	case 1:
		base = of.Offset
	case 2:
		h, ok, err := fs.inodes.Get(of.InodeKey, cache.ModeRead)
		if err != nil {
			return 0, kvfserr.New(kvfserr.IO, "lseek", "", err)
		}
		if !ok {
			return 0, kvfserr.New(kvfserr.NotFound, "lseek", "", nil)
		}
		real, err := fs.resolveReal(of.InodeKey, h.Value)
		if err != nil {
			return 0, err
		}
		base = int64(real.Value.Stat.Size)
	default:
		return 0, kvfserr.New(kvfserr.InvalidArgument, "lseek", "", nil)
	}

	newOffset := base + offset
	if newOffset < 0 {
		return 0, kvfserr.New(kvfserr.InvalidArgument, "lseek", "", nil)
	}
	of.Offset = newOffset
	return newOffset, nil
}

// Truncate resizes fd's inode to size (spec §4.6.6, ftruncate(2) semantics).
func (fs *Filesystem) Truncate(fd int, size int64) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if fs.readOnly {
		return kvfserr.New(kvfserr.ReadOnlyFS, "truncate", "", nil)
	}
	if size < 0 {
		return kvfserr.New(kvfserr.InvalidArgument, "truncate", "", nil)
	}

	of, ok := fs.open.Get(fd)
	if !ok {
		return kvfserr.New(kvfserr.BadDescriptor, "truncate", "", nil)
	}
	h, ok, err := fs.inodes.Get(of.InodeKey, cache.ModeWrite)
	if err != nil {
		return kvfserr.New(kvfserr.IO, "truncate", "", err)
	}
	if !ok {
		return kvfserr.New(kvfserr.NotFound, "truncate", "", nil)
	}
	real, err := fs.resolveReal(of.InodeKey, h.Value)
	if err != nil {
		return err
	}

	v := real.Value
	if err := fs.truncateData(&v, &fs.sb, size); err != nil {
		return kvfserr.New(kvfserr.IO, "truncate", "", err)
	}
	v.Stat.Mtime = fs.now()
	fs.inodes.Update(real.Key, v)
	of.Meta = v
	return nil
}

// Fsync flushes fd's inode (and, transitively, every other dirty cache
// entry) to the store and syncs it durably.
func (fs *Filesystem) Fsync(fd int) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if _, ok := fs.open.Get(fd); !ok {
		return kvfserr.New(kvfserr.BadDescriptor, "fsync", "", nil)
	}
	if err := fs.inodes.Flush(); err != nil {
		return kvfserr.New(kvfserr.IO, "fsync", "", err)
	}
	if err := fs.store.Sync(); err != nil {
		return kvfserr.New(kvfserr.IO, "fsync", "", err)
	}
	return nil
}

// Close merges fd's open-file metadata snapshot into the store and, if fd
// was opened with O_SYNC, syncs durably, before releasing the descriptor
// (spec §4.6.5, §5: close(fd) implies fsync(fd) followed by handle release).
func (fs *Filesystem) Close(fd int) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	of, ok := fs.open.Get(fd)
	if !ok {
		return kvfserr.New(kvfserr.BadDescriptor, "close", "", nil)
	}

	h, ok, err := fs.inodes.Get(of.InodeKey, cache.ModeRead)
	if err != nil {
		return kvfserr.New(kvfserr.IO, "close", "", err)
	}
	if ok {
		real, err := fs.resolveReal(of.InodeKey, h.Value)
		if err != nil {
			return err
		}
		if err := fs.inodes.WriteBack(real.Key); err != nil {
			return kvfserr.New(kvfserr.IO, "close", "", err)
		}
		if of.Flags.Sync {
			if err := fs.store.Sync(); err != nil {
				return kvfserr.New(kvfserr.IO, "close", "", err)
			}
		}
	}

	fs.open.Close(fd)
	return nil
}
