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

// Package resolver implements symlink-aware path resolution (spec §4.5):
// lexical normalization, per-component NAME_MAX enforcement, and bounded
// symlink expansion, walking the inode cache one directory entry at a time.
package resolver

import (
	"strings"

	"github.com/kvfs-project/kvfs/kvfs/cache"
	"github.com/kvfs-project/kvfs/kvfs/codec"
	"github.com/kvfs-project/kvfs/kvfs/kvfserr"
)

// DefaultMaxSymlinks bounds the number of symlink substitutions a single
// resolve may perform before reporting TooManyLinks, matching the reference
// implementation's LINK_MAX-derived depth.
const DefaultMaxSymlinks = 32

// Resolver walks paths against the inode cache.
type Resolver struct {
	inodes      *cache.InodeCache
	nameMax     int
	maxSymlinks int
}

func New(inodes *cache.InodeCache) *Resolver {
	return &Resolver{inodes: inodes, nameMax: codec.NameMax, maxSymlinks: DefaultMaxSymlinks}
}

// Result is the outcome of a resolve (spec §4.5): the composite key of the
// leaf entry (which may legitimately not exist, for O_CREAT callers), its
// decoded value when it does, and ParentKey — the self-key of the directory
// that holds (or would hold) the leaf, i.e. exactly the value a newly
// created child should store in its own InodeValue.ParentKey field.
type Result struct {
	ParentKey codec.InodeKey
	LeafKey   codec.InodeKey
	Leaf      codec.InodeValue
	Exists    bool
}

// Resolve resolves path (absolute, or relative to cwd) following symlinks at
// every component including the final one.
func (r *Resolver) Resolve(cwd, path string) (Result, error) {
	return r.resolve(cwd, path, true)
}

// ResolveNoFollow resolves path like Resolve but does not follow a symlink
// found at the final component — used by readlink(2)/lstat-style callers
// that need the link itself rather than its target.
func (r *Resolver) ResolveNoFollow(cwd, path string) (Result, error) {
	return r.resolve(cwd, path, false)
}

func (r *Resolver) resolve(cwd, path string, followLeaf bool) (Result, error) {
	if path == "" {
		return Result{}, kvfserr.New(kvfserr.InvalidArgument, "resolve", path, nil)
	}
	full := path
	if !strings.HasPrefix(path, "/") {
		full = cwd + "/" + path
	}

	queue := normalize(full)
	if len(queue) == 0 {
		rootKey := codec.RootInodeKey()
		h, ok, err := r.inodes.Get(rootKey, cache.ModeRead)
		if err != nil {
			return Result{}, kvfserr.New(kvfserr.IO, "resolve", path, err)
		}
		return Result{ParentKey: rootKey, LeafKey: rootKey, Leaf: h.Value, Exists: ok}, nil
	}

	currentInode := uint64(0)
	currentSelfKey := codec.RootInodeKey()
	symlinksFollowed := 0

	var (
		leafKey codec.InodeKey
		leafVal codec.InodeValue
		exists  bool
	)

	for len(queue) > 0 {
		name := queue[0]
		rest := queue[1:]
		if len(name) > r.nameMax {
			return Result{}, kvfserr.New(kvfserr.NameTooLong, "resolve", name, nil)
		}

		key := codec.InodeKey{Inode: currentInode, Hash: codec.HashName(name)}
		h, ok, err := r.inodes.Get(key, cache.ModeRead)
		if err != nil {
			return Result{}, kvfserr.New(kvfserr.IO, "resolve", path, err)
		}

		isLast := len(rest) == 0

		if !ok {
			if !isLast {
				return Result{}, kvfserr.New(kvfserr.NotFound, "resolve", name, nil)
			}
			leafKey, leafVal, exists = key, codec.InodeValue{}, false
			break
		}

		if codec.IsSymlink(h.Value.Stat.Mode) && (!isLast || followLeaf) {
			symlinksFollowed++
			if symlinksFollowed > r.maxSymlinks {
				return Result{}, kvfserr.New(kvfserr.TooManyLinks, "resolve", name, nil)
			}
			target := string(h.Value.InlineTail[:h.Value.Stat.Size])
			targetComps := normalize(target)
			if strings.HasPrefix(target, "/") {
				currentInode = 0
				currentSelfKey = codec.RootInodeKey()
			}
			queue = append(append([]string{}, targetComps...), rest...)
			continue
		}

		if !isLast && !codec.IsDir(h.Value.Stat.Mode) {
			return Result{}, kvfserr.New(kvfserr.NotADirectory, "resolve", name, nil)
		}

		if isLast {
			leafKey, leafVal, exists = key, h.Value, true
			break
		}

		currentSelfKey = key
		currentInode = h.Value.EntryInode
		queue = rest
	}

	return Result{ParentKey: currentSelfKey, LeafKey: leafKey, Leaf: leafVal, Exists: exists}, nil
}

// normalize lexically splits and cleans path: empty segments and "." are
// dropped, ".." pops the last retained segment (or is dropped at the root).
func normalize(path string) []string {
	parts := strings.Split(path, "/")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		switch p {
		case "", ".":
			continue
		case "..":
			if len(out) > 0 {
				out = out[:len(out)-1]
			}
		default:
			out = append(out, p)
		}
	}
	return out
}
