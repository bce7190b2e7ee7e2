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
	"github.com/kvfs-project/kvfs/kvfs/resolver"
)

// createLeaf mints a new inode for a just-resolved, not-yet-existing leaf
// (O_CREAT, mkdir, symlink) and inserts it into the inode cache as MRU/WRITE
// so the caller's subsequent write-back happens through the normal path.
func (fs *Filesystem) createLeaf(res resolver.Result, name string, mode uint32, nlink uint32) (codec.InodeValue, error) {
	inode, err := fs.alloc.NewInode(&fs.sb)
	if err != nil {
		return codec.InodeValue{}, kvfserr.New(kvfserr.IO, "create", name, err)
	}
	now := fs.now()
	v := codec.InodeValue{
		Name:       lastComponent(name),
		EntryInode: inode,
		Stat: codec.Stat{
			Mode:  mode,
			Nlink: nlink,
			Atime: now,
			Mtime: now,
			Ctime: now,
		},
		ParentKey: res.ParentKey,
	}
	v.RealKey = res.LeafKey
	fs.inodes.Insert(res.LeafKey, v)
	return v, nil
}

// lastComponent returns the final slash-delimited, non-empty segment of
// path, used to stamp InodeValue.Name on a freshly created leaf.
func lastComponent(path string) string {
	last := ""
	start := 0
	for i := 0; i <= len(path); i++ {
		if i == len(path) || path[i] == '/' {
			if i > start {
				last = path[start:i]
			}
			start = i + 1
		}
	}
	return last
}

// Mkdir creates an empty directory at path (spec §4.6.4).
func (fs *Filesystem) Mkdir(cwd, path string, mode uint32) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if fs.readOnly {
		return kvfserr.New(kvfserr.ReadOnlyFS, "mkdir", path, nil)
	}
	res, err := fs.resolve.Resolve(cwd, path)
	if err != nil {
		return err
	}
	if res.Exists {
		return kvfserr.New(kvfserr.AlreadyExists, "mkdir", path, nil)
	}

	if _, err := fs.createLeaf(res, path, codec.TypeDir|mode&0o7777, 2); err != nil {
		return err
	}
	fs.bumpParentLinkOnNewChild(res.ParentKey, true)
	return nil
}

// bumpParentLinkOnNewChild adjusts the parent directory's Nlink when a
// subdirectory is added (".." back-reference) or removed.
func (fs *Filesystem) bumpParentLinkOnNewChild(parentKey codec.InodeKey, added bool) {
	h, ok, err := fs.inodes.Get(parentKey, cache.ModeWrite)
	if err != nil || !ok {
		return
	}
	if added {
		h.Value.Stat.Nlink++
	} else if h.Value.Stat.Nlink > 0 {
		h.Value.Stat.Nlink--
	}
	h.Value.Stat.Mtime = fs.now()
	fs.inodes.Update(parentKey, h.Value)
}

// Rmdir removes an empty directory at path (spec §4.6.5).
func (fs *Filesystem) Rmdir(cwd, path string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if fs.readOnly {
		return kvfserr.New(kvfserr.ReadOnlyFS, "rmdir", path, nil)
	}
	res, err := fs.resolve.Resolve(cwd, path)
	if err != nil {
		return err
	}
	if !res.Exists {
		return kvfserr.New(kvfserr.NotFound, "rmdir", path, nil)
	}
	if !codec.IsDir(res.Leaf.Stat.Mode) {
		return kvfserr.New(kvfserr.NotADirectory, "rmdir", path, nil)
	}

	empty, err := fs.directoryEmpty(res.Leaf.EntryInode)
	if err != nil {
		return kvfserr.New(kvfserr.IO, "rmdir", path, err)
	}
	if !empty {
		return kvfserr.New(kvfserr.NotEmpty, "rmdir", path, nil)
	}

	fs.inodes.MarkDelete(res.LeafKey)
	if err := fs.inodes.WriteBack(res.LeafKey); err != nil {
		return kvfserr.New(kvfserr.IO, "rmdir", path, err)
	}
	if err := fs.alloc.FreeInode(&fs.sb, res.Leaf.EntryInode); err != nil {
		return kvfserr.New(kvfserr.IO, "rmdir", path, err)
	}
	fs.dentries.Invalidate(res.LeafKey)
	fs.bumpParentLinkOnNewChild(res.ParentKey, false)
	return nil
}

func (fs *Filesystem) directoryEmpty(inode uint64) (bool, error) {
	empty := true
	err := fs.store.IterFromPrefix(codec.DirPrefix(inode), func(key, value []byte) bool {
		empty = false
		return false
	})
	return empty, err
}

// Unlink removes a non-directory entry at path (spec §4.6.5). When the
// target's link count drops to zero its data is released; while it remains
// open, the release is deferred to the last Close (spec §4.4.2 semantics:
// an open descriptor keeps its own metadata snapshot alive).
func (fs *Filesystem) Unlink(cwd, path string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if fs.readOnly {
		return kvfserr.New(kvfserr.ReadOnlyFS, "unlink", path, nil)
	}
	res, err := fs.resolve.ResolveNoFollow(cwd, path)
	if err != nil {
		return err
	}
	if !res.Exists {
		return kvfserr.New(kvfserr.NotFound, "unlink", path, nil)
	}
	if codec.IsDir(res.Leaf.Stat.Mode) {
		return kvfserr.New(kvfserr.IsADirectory, "unlink", path, nil)
	}

	real, err := fs.resolveReal(res.LeafKey, res.Leaf)
	if err != nil {
		return err
	}

	fs.inodes.MarkDelete(res.LeafKey)
	if err := fs.inodes.WriteBack(res.LeafKey); err != nil {
		return kvfserr.New(kvfserr.IO, "unlink", path, err)
	}
	fs.dentries.Invalidate(res.LeafKey)

	if real.Value.Stat.Nlink > 0 {
		real.Value.Stat.Nlink--
	}
	if real.Value.Stat.Nlink == 0 {
		stillOpen := false
		fs.open.ForEachOpenOn(real.Key, func(int, *cache.OpenFile) { stillOpen = true })
		if !stillOpen {
			if err := fs.releaseChainFrom(&fs.sb, real.Value.HeadKey); err != nil {
				return kvfserr.New(kvfserr.IO, "unlink", path, err)
			}
			fs.inodes.MarkDelete(real.Key)
			if err := fs.inodes.WriteBack(real.Key); err != nil {
				return kvfserr.New(kvfserr.IO, "unlink", path, err)
			}
			if err := fs.alloc.FreeInode(&fs.sb, real.Value.EntryInode); err != nil {
				return kvfserr.New(kvfserr.IO, "unlink", path, err)
			}
			return nil
		}
	}
	fs.inodes.Update(real.Key, real.Value)
	return nil
}

// Rename atomically moves oldPath to newPath (spec §4.6.7): a single batch
// deleting the old directory entry and inserting the new one. Renaming onto
// an existing non-directory target replaces it (its own entry is deleted
// first); directories as a replacement target must be empty.
func (fs *Filesystem) Rename(cwd, oldPath, newPath string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if fs.readOnly {
		return kvfserr.New(kvfserr.ReadOnlyFS, "rename", oldPath, nil)
	}
	src, err := fs.resolve.ResolveNoFollow(cwd, oldPath)
	if err != nil {
		return err
	}
	if !src.Exists {
		return kvfserr.New(kvfserr.NotFound, "rename", oldPath, nil)
	}
	dst, err := fs.resolve.ResolveNoFollow(cwd, newPath)
	if err != nil {
		return err
	}

	if dst.Exists {
		if codec.IsDir(dst.Leaf.Stat.Mode) != codec.IsDir(src.Leaf.Stat.Mode) {
			if codec.IsDir(dst.Leaf.Stat.Mode) {
				return kvfserr.New(kvfserr.IsADirectory, "rename", newPath, nil)
			}
			return kvfserr.New(kvfserr.NotADirectory, "rename", newPath, nil)
		}
		if codec.IsDir(dst.Leaf.Stat.Mode) {
			empty, err := fs.directoryEmpty(dst.Leaf.EntryInode)
			if err != nil {
				return kvfserr.New(kvfserr.IO, "rename", newPath, err)
			}
			if !empty {
				return kvfserr.New(kvfserr.NotEmpty, "rename", newPath, nil)
			}
		}
		fs.dentries.Invalidate(dst.LeafKey)
		fs.inodes.Evict(dst.LeafKey)
	}

	newValue := src.Leaf
	newValue.Name = lastComponent(newPath)
	newValue.ParentKey = dst.ParentKey

	if err := fs.inodes.BatchCommit(src.LeafKey, dst.LeafKey, newValue); err != nil {
		return kvfserr.New(kvfserr.IO, "rename", newPath, err)
	}
	fs.dentries.Invalidate(src.LeafKey)

	fs.open.ForEachOpenOn(src.LeafKey, func(_ int, of *cache.OpenFile) {
		of.InodeKey = dst.LeafKey
	})
	return nil
}

// DirEntry is one name returned by Readdir.
type DirEntry struct {
	Name string
	Mode uint32
}

// Opendir resolves path and returns a directory handle's fd (reusing the
// open-file table per spec §4.6.3; Readdir/Closedir key off the same fd
// space as file descriptors).
func (fs *Filesystem) Opendir(cwd, path string) (int, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	res, err := fs.resolve.Resolve(cwd, path)
	if err != nil {
		return 0, err
	}
	if !res.Exists {
		return 0, kvfserr.New(kvfserr.NotFound, "opendir", path, nil)
	}
	if !codec.IsDir(res.Leaf.Stat.Mode) {
		return 0, kvfserr.New(kvfserr.NotADirectory, "opendir", path, nil)
	}
	fd, ok := fs.open.Open(res.LeafKey, res.Leaf, cache.OpenFlags{Read: true})
	if !ok {
		return 0, kvfserr.New(kvfserr.NoSpace, "opendir", path, nil)
	}
	return fd, nil
}

// Readdir lists every entry of the directory opened at fd.
func (fs *Filesystem) Readdir(fd int) ([]DirEntry, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	of, ok := fs.open.Get(fd)
	if !ok {
		return nil, kvfserr.New(kvfserr.BadDescriptor, "readdir", "", nil)
	}

	// The inode cache is write-back, so a just-created or just-renamed entry
	// may still be sitting dirty in memory rather than visible to a raw store
	// scan; flush before iterating so the listing is never stale.
	if err := fs.inodes.Flush(); err != nil {
		return nil, kvfserr.New(kvfserr.IO, "readdir", "", err)
	}

	entries := []DirEntry{
		{Name: ".", Mode: codec.TypeDir | 0o755},
		{Name: "..", Mode: codec.TypeDir | 0o755},
	}
	var iterErr error
	selfKey := string(codec.EncodeInodeKey(of.InodeKey))
	err := fs.store.IterFromPrefix(codec.DirPrefix(of.Meta.EntryInode), func(key, value []byte) bool {
		// The root's own record (0, H("/")) falls under DirPrefix(0); it is
		// the directory itself, not one of its children.
		if string(key) == selfKey {
			return true
		}
		v, err := fs.codec.DecodeInodeValue(value)
		if err != nil {
			iterErr = err
			return false
		}
		entries = append(entries, DirEntry{Name: v.Name, Mode: v.Stat.Mode})
		return true
	})
	if err != nil {
		return nil, kvfserr.New(kvfserr.IO, "readdir", "", err)
	}
	if iterErr != nil {
		return nil, kvfserr.New(kvfserr.IO, "readdir", "", iterErr)
	}
	return entries, nil
}

// Closedir releases a directory handle opened by Opendir.
func (fs *Filesystem) Closedir(fd int) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if _, ok := fs.open.Get(fd); !ok {
		return kvfserr.New(kvfserr.BadDescriptor, "closedir", "", nil)
	}
	fs.open.Close(fd)
	return nil
}

// Symlink creates a symbolic link at linkPath whose content is target (spec
// supplemented feature §12). The target is stored in InlineTail verbatim,
// uninterpreted until resolution time.
func (fs *Filesystem) Symlink(cwd, target, linkPath string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if fs.readOnly {
		return kvfserr.New(kvfserr.ReadOnlyFS, "symlink", linkPath, nil)
	}
	if len(target) > fs.codec.BlockSize {
		return kvfserr.New(kvfserr.NameTooLong, "symlink", linkPath, nil)
	}
	res, err := fs.resolve.ResolveNoFollow(cwd, linkPath)
	if err != nil {
		return err
	}
	if res.Exists {
		return kvfserr.New(kvfserr.AlreadyExists, "symlink", linkPath, nil)
	}

	res.Leaf.Name = lastComponent(linkPath)
	inode, err := fs.alloc.NewInode(&fs.sb)
	if err != nil {
		return kvfserr.New(kvfserr.IO, "symlink", linkPath, err)
	}
	now := fs.now()
	v := codec.InodeValue{
		Name:       res.Leaf.Name,
		EntryInode: inode,
		Stat: codec.Stat{
			Mode:  codec.TypeSymlink | 0o777,
			Nlink: 1,
			Size:  uint64(len(target)),
			Atime: now,
			Mtime: now,
			Ctime: now,
		},
		ParentKey:  res.ParentKey,
		InlineTail: []byte(target),
	}
	v.RealKey = res.LeafKey
	fs.inodes.Insert(res.LeafKey, v)
	return nil
}

// Readlink returns a symlink's stored target without following it.
func (fs *Filesystem) Readlink(cwd, path string) (string, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	res, err := fs.resolve.ResolveNoFollow(cwd, path)
	if err != nil {
		return "", err
	}
	if !res.Exists {
		return "", kvfserr.New(kvfserr.NotFound, "readlink", path, nil)
	}
	if !codec.IsSymlink(res.Leaf.Stat.Mode) {
		return "", kvfserr.New(kvfserr.InvalidArgument, "readlink", path, nil)
	}
	return string(res.Leaf.InlineTail[:res.Leaf.Stat.Size]), nil
}

// Link creates newPath as an additional hard link to oldPath's inode (spec
// supplemented feature §12): the new directory entry's RealKey points at
// oldPath's real inode record, and its Nlink is incremented. Hardlinked
// inode numbers are tracked but never reclaimed until every linking entry
// (and the real record itself) is removed.
func (fs *Filesystem) Link(cwd, oldPath, newPath string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if fs.readOnly {
		return kvfserr.New(kvfserr.ReadOnlyFS, "link", newPath, nil)
	}
	src, err := fs.resolve.Resolve(cwd, oldPath)
	if err != nil {
		return err
	}
	if !src.Exists {
		return kvfserr.New(kvfserr.NotFound, "link", oldPath, nil)
	}
	if codec.IsDir(src.Leaf.Stat.Mode) {
		return kvfserr.New(kvfserr.IsADirectory, "link", oldPath, nil)
	}

	dst, err := fs.resolve.ResolveNoFollow(cwd, newPath)
	if err != nil {
		return err
	}
	if dst.Exists {
		return kvfserr.New(kvfserr.AlreadyExists, "link", newPath, nil)
	}

	real, err := fs.resolveReal(src.LeafKey, src.Leaf)
	if err != nil {
		return err
	}
	real.Value.Stat.Nlink++
	real.Value.Stat.Ctime = fs.now()
	fs.inodes.Update(real.Key, real.Value)

	entry := codec.InodeValue{
		Name:       lastComponent(newPath),
		EntryInode: real.Value.EntryInode,
		Stat:       real.Value.Stat,
		ParentKey:  dst.ParentKey,
		RealKey:    real.Key,
	}
	fs.inodes.Insert(dst.LeafKey, entry)
	return nil
}
