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

package resolver

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kvfs-project/kvfs/kvfs/cache"
	"github.com/kvfs-project/kvfs/kvfs/codec"
	"github.com/kvfs-project/kvfs/kvfs/kvfserr"
	"github.com/kvfs-project/kvfs/kvstore"
)

// fixture builds an inode cache seeded with a small tree:
//
//	/ (dir, inode 0)
//	  a/ (dir, inode 1)
//	    b (regular, inode 2)
//	  link -> a/b (symlink)
//	  loop -> loop (symlink, cycle)
type fixture struct {
	store  kvstore.Store
	codec  *codec.Codec
	cache  *cache.InodeCache
	r      *Resolver
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st := kvstore.NewBTreeStore()
	c := codec.New(64)
	ic := cache.NewInodeCache(st, c, 64)

	put := func(parent uint64, name string, v codec.InodeValue) {
		key := codec.InodeKey{Inode: parent, Hash: codec.HashName(name)}
		require.NoError(t, st.Put(codec.EncodeInodeKey(key), c.EncodeInodeValue(v)))
	}

	rootKey := codec.RootInodeKey()
	require.NoError(t, st.Put(codec.EncodeInodeKey(rootKey), c.EncodeInodeValue(codec.InodeValue{
		Name:       "/",
		EntryInode: 0,
		Stat:       codec.Stat{Mode: codec.TypeDir},
		ParentKey:  rootKey,
	})))

	put(0, "a", codec.InodeValue{
		Name:       "a",
		EntryInode: 1,
		Stat:       codec.Stat{Mode: codec.TypeDir},
		ParentKey:  rootKey,
	})
	put(1, "b", codec.InodeValue{
		Name:       "b",
		EntryInode: 2,
		Stat:       codec.Stat{Mode: codec.TypeRegular, Size: 3},
		ParentKey:  codec.InodeKey{Inode: 0, Hash: codec.HashName("a")},
	})
	linkTarget := "a/b"
	put(0, "link", codec.InodeValue{
		Name:       "link",
		EntryInode: 3,
		Stat:       codec.Stat{Mode: codec.TypeSymlink, Size: uint64(len(linkTarget))},
		InlineTail: []byte(linkTarget),
		ParentKey:  rootKey,
	})
	put(0, "loop", codec.InodeValue{
		Name:       "loop",
		EntryInode: 4,
		Stat:       codec.Stat{Mode: codec.TypeSymlink, Size: 4},
		InlineTail: []byte("loop"),
		ParentKey:  rootKey,
	})

	return &fixture{store: st, codec: c, cache: ic, r: New(ic)}
}

func TestResolveRoot(t *testing.T) {
	f := newFixture(t)
	res, err := f.r.Resolve("/", "/")
	require.NoError(t, err)
	assert.True(t, res.Exists)
	assert.Equal(t, codec.RootInodeKey(), res.LeafKey)
}

func TestResolveNestedFile(t *testing.T) {
	f := newFixture(t)
	res, err := f.r.Resolve("/", "/a/b")
	require.NoError(t, err)
	assert.True(t, res.Exists)
	assert.Equal(t, "b", res.Leaf.Name)
	assert.Equal(t, uint64(2), res.Leaf.EntryInode)
	assert.Equal(t, codec.InodeKey{Inode: 0, Hash: codec.HashName("a")}, res.ParentKey)
}

func TestResolveMissingLeafIsNotAnError(t *testing.T) {
	f := newFixture(t)
	res, err := f.r.Resolve("/", "/a/nope")
	require.NoError(t, err)
	assert.False(t, res.Exists)
	assert.Equal(t, codec.InodeKey{Inode: 1, Hash: codec.HashName("nope")}, res.LeafKey)
}

func TestResolveMissingInteriorComponentIsNotFound(t *testing.T) {
	f := newFixture(t)
	_, err := f.r.Resolve("/", "/nope/b")
	require.Error(t, err)
	assert.True(t, kvfserr.Is(err, kvfserr.NotFound))
}

func TestResolveFollowsSymlink(t *testing.T) {
	f := newFixture(t)
	res, err := f.r.Resolve("/", "/link")
	require.NoError(t, err)
	assert.True(t, res.Exists)
	assert.Equal(t, "b", res.Leaf.Name)
}

func TestResolveNoFollowStopsAtSymlink(t *testing.T) {
	f := newFixture(t)
	res, err := f.r.Resolve("/", "/a/../link")
	require.NoError(t, err)
	assert.True(t, res.Exists)
	assert.Equal(t, "b", res.Leaf.Name)

	raw, err := f.r.ResolveNoFollow("/", "/link")
	require.NoError(t, err)
	assert.True(t, raw.Exists)
	assert.Equal(t, "link", raw.Leaf.Name)
	assert.True(t, codec.IsSymlink(raw.Leaf.Stat.Mode))
}

func TestResolveSymlinkLoopReportsTooManyLinks(t *testing.T) {
	f := newFixture(t)
	_, err := f.r.Resolve("/", "/loop")
	require.Error(t, err)
	assert.True(t, kvfserr.Is(err, kvfserr.TooManyLinks))
}

func TestResolveDotDotWalksUpward(t *testing.T) {
	f := newFixture(t)
	res, err := f.r.Resolve("/", "/a/../a/b")
	require.NoError(t, err)
	assert.True(t, res.Exists)
	assert.Equal(t, "b", res.Leaf.Name)
}

func TestResolveRelativeToCwd(t *testing.T) {
	f := newFixture(t)
	res, err := f.r.Resolve("/a", "b")
	require.NoError(t, err)
	assert.True(t, res.Exists)
	assert.Equal(t, "b", res.Leaf.Name)
}

func TestResolveNameTooLong(t *testing.T) {
	f := newFixture(t)
	long := make([]byte, codec.NameMax+1)
	for i := range long {
		long[i] = 'x'
	}
	_, err := f.r.Resolve("/", "/"+string(long))
	require.Error(t, err)
	assert.True(t, kvfserr.Is(err, kvfserr.NameTooLong))
}

func TestResolveThroughNonDirectoryIsNotADirectory(t *testing.T) {
	f := newFixture(t)
	_, err := f.r.Resolve("/", "/a/b/c")
	require.Error(t, err)
	assert.True(t, kvfserr.Is(err, kvfserr.NotADirectory))
}
