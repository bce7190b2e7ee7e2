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

	"github.com/stretchr/testify/require"

	"github.com/kvfs-project/kvfs/kvfs/codec"
	"github.com/kvfs-project/kvfs/kvstore"
)

// corruptInodeSize locates the inode whose name matches the final path
// component and overwrites its Stat.Size to disagree with its actual
// inline+chain byte total, to exercise invariant 2's detection path.
func corruptInodeSize(t *testing.T, store kvstore.Store, name string) {
	t.Helper()
	c := codec.New(blockSize)
	err := store.IterFromPrefix(codec.DirPrefix(0), func(key, value []byte) bool {
		v, decErr := c.DecodeInodeValue(value)
		require.NoError(t, decErr)
		if "/"+v.Name != name {
			return true
		}
		v.Stat.Size += 1000
		require.NoError(t, store.Put(key, c.EncodeInodeValue(v)))
		return false
	})
	require.NoError(t, err)
}

func corruptSuperblockFreedBlocksCount(t *testing.T, store kvstore.Store) {
	t.Helper()
	c := codec.New(blockSize)
	raw, err := store.Get([]byte(codec.SuperblockKey))
	require.NoError(t, err)
	sb, err := c.DecodeSuperblock(raw)
	require.NoError(t, err)
	sb.FreedBlocksCount += 7
	require.NoError(t, store.Put([]byte(codec.SuperblockKey), c.EncodeSuperblock(sb)))
}
