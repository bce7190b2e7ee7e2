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

// Package engine implements the filesystem operations (spec §4.6): open,
// read, write, mkdir, rmdir, unlink, rename, directory listing, symlinks,
// hardlinks, and attribute changes, all driven through the lower cache,
// allocator, codec, and resolver layers under a single process-wide mutex
// (spec §5: single-writer semantics, no per-inode locking).
package engine

import (
	"sync"

	"github.com/google/uuid"
	"github.com/kvfs-project/kvfs/internal/clock"
	"github.com/kvfs-project/kvfs/kvfs/alloc"
	"github.com/kvfs-project/kvfs/kvfs/cache"
	"github.com/kvfs-project/kvfs/kvfs/codec"
	"github.com/kvfs-project/kvfs/kvfs/kvfserr"
	"github.com/kvfs-project/kvfs/kvfs/resolver"
	"github.com/kvfs-project/kvfs/kvstore"
	"github.com/kvfs-project/kvfs/metrics"
	"golang.org/x/sync/singleflight"
)

// unmountFlushWorkers bounds how many goroutines Unmount's cache flush uses
// to issue concurrent store writes.
const unmountFlushWorkers = 4

// Options configures a Filesystem at mount time.
type Options struct {
	BlockSize       int
	MaxOpenFiles    int
	InodeCacheSize  int
	DentryCacheSize int
	MaxSymlinkDepth int
	ReadOnly        bool
	Clock           clock.Clock
	Metrics         *metrics.Metrics
}

func (o Options) withDefaults() Options {
	if o.BlockSize <= 0 {
		o.BlockSize = codec.DefaultBlockSize
	}
	if o.MaxOpenFiles <= 0 {
		o.MaxOpenFiles = 512
	}
	if o.InodeCacheSize <= 0 {
		o.InodeCacheSize = 4096
	}
	if o.DentryCacheSize <= 0 {
		o.DentryCacheSize = 1024
	}
	if o.MaxSymlinkDepth <= 0 {
		o.MaxSymlinkDepth = resolver.DefaultMaxSymlinks
	}
	if o.Clock == nil {
		o.Clock = clock.RealClock{}
	}
	return o
}

// Filesystem is the mounted, in-process filesystem engine. Every exported
// operation acquires mu for its full duration, including every error return
// path, matching spec §5's single-writer model.
type Filesystem struct {
	mu sync.Mutex

	store    kvstore.Store
	codec    *codec.Codec
	alloc    *alloc.Allocator
	inodes   *cache.InodeCache
	dentries *cache.DentryCache
	resolve  *resolver.Resolver
	open     *cache.OpenFileTable
	clock    clock.Clock
	metrics  *metrics.Metrics
	readOnly bool

	sb codec.Superblock

	// statGroup collapses concurrent Getattr calls for the same
	// path into a single resolve, since a burst of identical stat calls
	// would otherwise each wait in turn on mu for redundant work.
	statGroup singleflight.Group
}

// Mount loads (or initializes, if absent) the superblock from store and
// returns a ready Filesystem. The root inode is created on first mount.
func Mount(store kvstore.Store, opts Options) (*Filesystem, error) {
	opts = opts.withDefaults()
	c := codec.New(opts.BlockSize)
	a := alloc.New(store, c)
	inodes := cache.NewInodeCache(store, c, opts.InodeCacheSize)

	fs := &Filesystem{
		store:    store,
		codec:    c,
		alloc:    a,
		inodes:   inodes,
		dentries: cache.NewDentryCache(opts.DentryCacheSize),
		resolve:  resolver.New(inodes),
		open:     cache.NewOpenFileTable(opts.MaxOpenFiles),
		clock:    opts.Clock,
		metrics:  opts.Metrics,
		readOnly: opts.ReadOnly,
	}

	raw, err := store.Get([]byte(codec.SuperblockKey))
	switch err {
	case nil:
		sb, decErr := c.DecodeSuperblock(raw)
		if decErr != nil {
			return nil, kvfserr.New(kvfserr.IO, "mount", "", decErr)
		}
		fs.sb = sb
	case kvstore.ErrNotFound:
		if err := fs.format(); err != nil {
			return nil, err
		}
	default:
		return nil, kvfserr.New(kvfserr.IO, "mount", "", err)
	}

	fs.sb.MountCount++
	fs.sb.LastMountUnixNano = fs.clock.Now().UnixNano()
	fs.sb.MountID = uuid.New()
	if err := fs.putSuperblock(); err != nil {
		return nil, err
	}
	return fs, nil
}

// MountID returns the UUID stamped at this mount, which kvfsctl mount logs
// to disambiguate remounts of the same store (spec §11 domain stack).
func (fs *Filesystem) MountID() uuid.UUID {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.sb.MountID
}

// format initializes a brand-new store: a zeroed superblock and a root
// directory inode whose parent link points back at itself (spec §3.2
// invariant 2).
func (fs *Filesystem) format() error {
	now := fs.clock.Now().UnixNano()
	fs.sb = codec.Superblock{
		Magic:                codec.SuperblockMagic,
		Version:              1,
		NextFreeInode:        1, // inode 0 is reserved for root
		TotalInodeCount:      1,
		CreationTimeUnixNano: now,
	}

	rootKey := codec.RootInodeKey()
	root := codec.InodeValue{
		Name:       "/",
		EntryInode: 0,
		Stat: codec.Stat{
			Mode:  codec.TypeDir | 0o755,
			Nlink: 2,
			Atime: now,
			Mtime: now,
			Ctime: now,
		},
		ParentKey: rootKey,
		RealKey:   rootKey,
	}
	if err := fs.store.Put(codec.EncodeInodeKey(rootKey), fs.codec.EncodeInodeValue(root)); err != nil {
		return kvfserr.New(kvfserr.IO, "mount", "/", err)
	}
	return nil
}

// Unmount flushes every dirty cache entry, persists the superblock, and
// syncs the store.
func (fs *Filesystem) Unmount() error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if err := fs.inodes.FlushConcurrent(unmountFlushWorkers); err != nil {
		return kvfserr.New(kvfserr.IO, "unmount", "", err)
	}
	fs.sb.LastUnmountUnixNano = fs.clock.Now().UnixNano()
	fs.sb.LastCheckpointNano = fs.sb.LastUnmountUnixNano
	if err := fs.putSuperblock(); err != nil {
		return err
	}
	if err := fs.store.Sync(); err != nil {
		return kvfserr.New(kvfserr.IO, "unmount", "", err)
	}
	return nil
}

func (fs *Filesystem) putSuperblock() error {
	if err := fs.store.Put([]byte(codec.SuperblockKey), fs.codec.EncodeSuperblock(fs.sb)); err != nil {
		return kvfserr.New(kvfserr.IO, "superblock", "", err)
	}
	return nil
}

func (fs *Filesystem) now() int64 {
	return fs.clock.Now().UnixNano()
}

// Statfs reports allocator-derived occupancy counters (spec §4.7,
// supplemented feature: statfs(2)).
type StatfsResult struct {
	TotalInodes uint64
	FreeInodes  uint64
	TotalBlocks uint64
	FreeBlocks  uint64
	BlockSize   uint32
	NameMax     uint32
}

func (fs *Filesystem) Statfs() StatfsResult {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	return StatfsResult{
		TotalInodes: fs.sb.TotalInodeCount,
		FreeInodes:  fs.sb.FreedInodesCount,
		TotalBlocks: fs.sb.TotalBlockCount,
		FreeBlocks:  fs.sb.FreedBlocksCount,
		BlockSize:   uint32(fs.codec.BlockSize),
		NameMax:     codec.NameMax,
	}
}
