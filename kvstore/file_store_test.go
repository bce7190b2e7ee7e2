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

package kvstore

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStoreRoundTripsThroughSync(t *testing.T) {
	dir := t.TempDir()

	fs1, err := OpenFileStore(dir)
	require.NoError(t, err)
	require.NoError(t, fs1.Put([]byte("k1"), []byte("v1")))
	require.NoError(t, fs1.Put([]byte("k2"), []byte("v2")))
	require.NoError(t, fs1.Sync())

	fs2, err := OpenFileStore(dir)
	require.NoError(t, err)
	v, err := fs2.Get([]byte("k1"))
	require.NoError(t, err)
	assert.Equal(t, []byte("v1"), v)
	v, err = fs2.Get([]byte("k2"))
	require.NoError(t, err)
	assert.Equal(t, []byte("v2"), v)
}

func TestFileStoreOpenOnEmptyDirStartsEmpty(t *testing.T) {
	dir := t.TempDir()
	fs, err := OpenFileStore(dir)
	require.NoError(t, err)
	_, err = fs.Get([]byte("missing"))
	assert.Equal(t, ErrNotFound, err)
}

func TestFileStoreSyncOverwritesPreviousSnapshot(t *testing.T) {
	dir := t.TempDir()
	fs1, err := OpenFileStore(dir)
	require.NoError(t, err)
	require.NoError(t, fs1.Put([]byte("a"), []byte("1")))
	require.NoError(t, fs1.Sync())

	require.NoError(t, fs1.Put([]byte("a"), []byte("2")))
	require.NoError(t, fs1.Delete([]byte("a")))
	require.NoError(t, fs1.Put([]byte("b"), []byte("3")))
	require.NoError(t, fs1.Sync())

	fs2, err := OpenFileStore(dir)
	require.NoError(t, err)
	_, err = fs2.Get([]byte("a"))
	assert.Equal(t, ErrNotFound, err)
	v, err := fs2.Get([]byte("b"))
	require.NoError(t, err)
	assert.Equal(t, []byte("3"), v)
}

func TestFileStoreCreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "store")
	_, err := OpenFileStore(dir)
	require.NoError(t, err)
}
