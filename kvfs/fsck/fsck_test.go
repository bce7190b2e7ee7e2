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

package fsck

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kvfs-project/kvfs/kvfs/cache"
	"github.com/kvfs-project/kvfs/kvfs/engine"
	"github.com/kvfs-project/kvfs/kvstore"
)

const blockSize = 16

func TestCheckOnFreshlyFormattedStoreIsClean(t *testing.T) {
	store := kvstore.NewBTreeStore()
	fs, err := engine.Mount(store, engine.Options{BlockSize: blockSize})
	require.NoError(t, err)
	require.NoError(t, fs.Unmount())

	report, err := Check(store, blockSize)
	require.NoError(t, err)
	assert.True(t, report.OK(), report.Violations)
	assert.Equal(t, 1, report.InodeCount)
}

func TestCheckOnPopulatedStoreWithMultiBlockFileIsClean(t *testing.T) {
	store := kvstore.NewBTreeStore()
	fs, err := engine.Mount(store, engine.Options{BlockSize: blockSize})
	require.NoError(t, err)

	fd, err := fs.Open("/", "/big", cache.OpenFlags{Write: true, Create: true}, 0o644)
	require.NoError(t, err)
	_, err = fs.Write(fd, make([]byte, blockSize*5+3))
	require.NoError(t, err)
	require.NoError(t, fs.Close(fd))
	require.NoError(t, fs.Unmount())

	report, err := Check(store, blockSize)
	require.NoError(t, err)
	assert.True(t, report.OK(), report.Violations)
	assert.Equal(t, 5, report.BlockCount)
}

func TestCheckDetectsSizeMismatch(t *testing.T) {
	store := kvstore.NewBTreeStore()
	fs, err := engine.Mount(store, engine.Options{BlockSize: blockSize})
	require.NoError(t, err)

	fd, err := fs.Open("/", "/f", cache.OpenFlags{Write: true, Create: true}, 0o644)
	require.NoError(t, err)
	_, err = fs.Write(fd, []byte("hello"))
	require.NoError(t, err)
	require.NoError(t, fs.Close(fd))
	require.NoError(t, fs.Unmount())

	corruptInodeSize(t, store, "/f")

	report, err := Check(store, blockSize)
	require.NoError(t, err)
	assert.False(t, report.OK())
	assert.Equal(t, "2", report.Violations[0].Invariant)
}

func TestCheckDetectsFreedBlocksCountMismatch(t *testing.T) {
	store := kvstore.NewBTreeStore()
	fs, err := engine.Mount(store, engine.Options{BlockSize: blockSize})
	require.NoError(t, err)

	fd, err := fs.Open("/", "/f", cache.OpenFlags{Write: true, Create: true}, 0o644)
	require.NoError(t, err)
	_, err = fs.Write(fd, make([]byte, blockSize*2))
	require.NoError(t, err)
	require.NoError(t, fs.Truncate(fd, 0))
	require.NoError(t, fs.Close(fd))
	require.NoError(t, fs.Unmount())

	corruptSuperblockFreedBlocksCount(t, store)

	report, err := Check(store, blockSize)
	require.NoError(t, err)
	assert.False(t, report.OK())
	found := false
	for _, v := range report.Violations {
		if v.Invariant == "4" {
			found = true
		}
	}
	assert.True(t, found)
}
