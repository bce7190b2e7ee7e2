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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kvfs-project/kvfs/internal/clock"
	"github.com/kvfs-project/kvfs/kvfs/cache"
	"github.com/kvfs-project/kvfs/kvfs/kvfserr"
	"github.com/kvfs-project/kvfs/kvstore"
)

const testBlockSize = 16

func mustMount(t *testing.T) *Filesystem {
	t.Helper()
	fs, err := Mount(kvstore.NewBTreeStore(), Options{
		BlockSize: testBlockSize,
		Clock:     clock.NewSimulatedClock(time.Unix(0, 0)),
	})
	require.NoError(t, err)
	return fs
}

func TestMountFormatsRootDirectory(t *testing.T) {
	fs := mustMount(t)
	attr, err := fs.Getattr("/", "/")
	require.NoError(t, err)
	assert.Equal(t, uint64(0), attr.Inode)
}

func TestMountStampsFreshMountID(t *testing.T) {
	store := kvstore.NewBTreeStore()
	fs1, err := Mount(store, Options{BlockSize: testBlockSize})
	require.NoError(t, err)
	id1 := fs1.MountID()
	require.NoError(t, fs1.Unmount())

	fs2, err := Mount(store, Options{BlockSize: testBlockSize})
	require.NoError(t, err)
	id2 := fs2.MountID()

	assert.NotEqual(t, id1, id2)
}

func TestOpenCreateWriteReadRoundtrip(t *testing.T) {
	fs := mustMount(t)

	fd, err := fs.Open("/", "/hello.txt", cache.OpenFlags{Read: true, Write: true, Create: true}, 0o644)
	require.NoError(t, err)

	n, err := fs.Write(fd, []byte("hello, kvfs"))
	require.NoError(t, err)
	assert.Equal(t, 11, n)

	_, err = fs.Lseek(fd, 0, 0)
	require.NoError(t, err)

	buf := make([]byte, 32)
	n, err = fs.Read(fd, buf)
	require.NoError(t, err)
	assert.Equal(t, "hello, kvfs", string(buf[:n]))

	require.NoError(t, fs.Close(fd))
}

func TestOpenWithoutCreateOnMissingFileIsNotFound(t *testing.T) {
	fs := mustMount(t)
	_, err := fs.Open("/", "/nope.txt", cache.OpenFlags{Read: true}, 0)
	require.Error(t, err)
	assert.True(t, kvfserr.Is(err, kvfserr.NotFound))
}

func TestOpenExclCreateOnExistingFileFails(t *testing.T) {
	fs := mustMount(t)
	fd, err := fs.Open("/", "/a", cache.OpenFlags{Write: true, Create: true}, 0o644)
	require.NoError(t, err)
	require.NoError(t, fs.Close(fd))

	_, err = fs.Open("/", "/a", cache.OpenFlags{Write: true, Create: true, Exclusive: true}, 0o644)
	require.Error(t, err)
	assert.True(t, kvfserr.Is(err, kvfserr.AlreadyExists))
}

func TestWriteSpillsIntoBlockChainBeyondInlineTail(t *testing.T) {
	fs := mustMount(t)
	fd, err := fs.Open("/", "/big", cache.OpenFlags{Write: true, Create: true}, 0o644)
	require.NoError(t, err)

	payload := make([]byte, testBlockSize*3+5)
	for i := range payload {
		payload[i] = byte(i)
	}
	n, err := fs.Write(fd, payload)
	require.NoError(t, err)
	assert.Equal(t, len(payload), n)
	require.NoError(t, fs.Close(fd))

	fd, err = fs.Open("/", "/big", cache.OpenFlags{Read: true}, 0)
	require.NoError(t, err)
	out := make([]byte, len(payload))
	n, err = fs.Read(fd, out)
	require.NoError(t, err)
	assert.Equal(t, payload, out[:n])
	require.NoError(t, fs.Close(fd))
}

func TestTruncateGrowZeroFills(t *testing.T) {
	fs := mustMount(t)
	fd, err := fs.Open("/", "/f", cache.OpenFlags{Write: true, Read: true, Create: true}, 0o644)
	require.NoError(t, err)
	_, err = fs.Write(fd, []byte("ab"))
	require.NoError(t, err)

	require.NoError(t, fs.Truncate(fd, int64(testBlockSize*2)))

	_, err = fs.Lseek(fd, 0, 0)
	require.NoError(t, err)
	buf := make([]byte, testBlockSize*2)
	n, err := fs.Read(fd, buf)
	require.NoError(t, err)
	assert.Equal(t, testBlockSize*2, n)
	assert.Equal(t, byte('a'), buf[0])
	assert.Equal(t, byte('b'), buf[1])
	for _, b := range buf[2:] {
		assert.Equal(t, byte(0), b)
	}
	require.NoError(t, fs.Close(fd))
}

func TestTruncateShrinkReleasesBlocksForReuse(t *testing.T) {
	fs := mustMount(t)
	fd, err := fs.Open("/", "/f", cache.OpenFlags{Write: true, Create: true}, 0o644)
	require.NoError(t, err)
	_, err = fs.Write(fd, make([]byte, testBlockSize*4))
	require.NoError(t, err)
	require.NoError(t, fs.Truncate(fd, 0))
	require.NoError(t, fs.Close(fd))

	before := fs.Statfs()

	fd, err = fs.Open("/", "/g", cache.OpenFlags{Write: true, Create: true}, 0o644)
	require.NoError(t, err)
	_, err = fs.Write(fd, make([]byte, testBlockSize*2))
	require.NoError(t, err)
	require.NoError(t, fs.Close(fd))

	after := fs.Statfs()
	assert.Less(t, after.FreeBlocks, before.FreeBlocks+1)
}

func TestMkdirRmdir(t *testing.T) {
	fs := mustMount(t)
	require.NoError(t, fs.Mkdir("/", "/sub", 0o755))

	attr, err := fs.Getattr("/", "/sub")
	require.NoError(t, err)
	assert.NotEqual(t, uint64(0), attr.Mode&uint32(0o040000))

	require.NoError(t, fs.Rmdir("/", "/sub"))
	_, err = fs.Getattr("/", "/sub")
	require.Error(t, err)
	assert.True(t, kvfserr.Is(err, kvfserr.NotFound))
}

func TestMkdirOnExistingNameFails(t *testing.T) {
	fs := mustMount(t)
	require.NoError(t, fs.Mkdir("/", "/sub", 0o755))
	err := fs.Mkdir("/", "/sub", 0o755)
	require.Error(t, err)
	assert.True(t, kvfserr.Is(err, kvfserr.AlreadyExists))
}

func TestRmdirOnNonEmptyDirectoryFails(t *testing.T) {
	fs := mustMount(t)
	require.NoError(t, fs.Mkdir("/", "/sub", 0o755))
	fd, err := fs.Open("/", "/sub/f", cache.OpenFlags{Write: true, Create: true}, 0o644)
	require.NoError(t, err)
	require.NoError(t, fs.Close(fd))

	err = fs.Rmdir("/", "/sub")
	require.Error(t, err)
	assert.True(t, kvfserr.Is(err, kvfserr.NotEmpty))
}

func TestUnlinkRemovesEntryAndFreesInodeOnce(t *testing.T) {
	fs := mustMount(t)
	fd, err := fs.Open("/", "/f", cache.OpenFlags{Write: true, Create: true}, 0o644)
	require.NoError(t, err)
	require.NoError(t, fs.Close(fd))

	require.NoError(t, fs.Unlink("/", "/f"))
	_, err = fs.Getattr("/", "/f")
	require.Error(t, err)
	assert.True(t, kvfserr.Is(err, kvfserr.NotFound))
	assert.Equal(t, uint64(1), fs.Statfs().FreeInodes)
}

func TestUnlinkWhileOpenDefersRelease(t *testing.T) {
	fs := mustMount(t)
	fd, err := fs.Open("/", "/f", cache.OpenFlags{Read: true, Write: true, Create: true}, 0o644)
	require.NoError(t, err)
	_, err = fs.Write(fd, []byte("data"))
	require.NoError(t, err)

	require.NoError(t, fs.Unlink("/", "/f"))

	_, err = fs.Lseek(fd, 0, 0)
	require.NoError(t, err)
	buf := make([]byte, 4)
	n, err := fs.Read(fd, buf)
	require.NoError(t, err)
	assert.Equal(t, "data", string(buf[:n]))
	require.NoError(t, fs.Close(fd))
}

func TestRenameMovesEntryAtomically(t *testing.T) {
	fs := mustMount(t)
	fd, err := fs.Open("/", "/old", cache.OpenFlags{Write: true, Create: true}, 0o644)
	require.NoError(t, err)
	require.NoError(t, fs.Close(fd))

	require.NoError(t, fs.Rename("/", "/old", "/new"))

	_, err = fs.Getattr("/", "/old")
	require.Error(t, err)
	assert.True(t, kvfserr.Is(err, kvfserr.NotFound))

	_, err = fs.Getattr("/", "/new")
	require.NoError(t, err)
}

func TestRenameOntoExistingFileReplacesIt(t *testing.T) {
	fs := mustMount(t)
	for _, name := range []string{"/a", "/b"} {
		fd, err := fs.Open("/", name, cache.OpenFlags{Write: true, Create: true}, 0o644)
		require.NoError(t, err)
		require.NoError(t, fs.Close(fd))
	}
	require.NoError(t, fs.Rename("/", "/a", "/b"))
	_, err := fs.Getattr("/", "/a")
	require.Error(t, err)
	_, err = fs.Getattr("/", "/b")
	require.NoError(t, err)
}

func TestReaddirListsDotAndDotDotAndEntries(t *testing.T) {
	fs := mustMount(t)
	for _, name := range []string{"/a", "/b", "/c"} {
		fd, err := fs.Open("/", name, cache.OpenFlags{Write: true, Create: true}, 0o644)
		require.NoError(t, err)
		require.NoError(t, fs.Close(fd))
	}

	dfd, err := fs.Opendir("/", "/")
	require.NoError(t, err)
	entries, err := fs.Readdir(dfd)
	require.NoError(t, err)
	require.NoError(t, fs.Closedir(dfd))

	names := make(map[string]bool)
	for _, e := range entries {
		names[e.Name] = true
	}
	assert.True(t, names["."])
	assert.True(t, names[".."])
	assert.True(t, names["a"])
	assert.True(t, names["b"])
	assert.True(t, names["c"])
	assert.Len(t, entries, 5)
}

func TestSymlinkAndReadlink(t *testing.T) {
	fs := mustMount(t)
	fd, err := fs.Open("/", "/target", cache.OpenFlags{Write: true, Create: true}, 0o644)
	require.NoError(t, err)
	_, err = fs.Write(fd, []byte("x"))
	require.NoError(t, err)
	require.NoError(t, fs.Close(fd))

	require.NoError(t, fs.Symlink("/", "target", "/link"))

	dest, err := fs.Readlink("/", "/link")
	require.NoError(t, err)
	assert.Equal(t, "target", dest)

	attr, err := fs.Getattr("/", "/link")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), attr.Size)
}

func TestHardlinkSharesDataAndTracksNlink(t *testing.T) {
	fs := mustMount(t)
	fd, err := fs.Open("/", "/orig", cache.OpenFlags{Write: true, Create: true}, 0o644)
	require.NoError(t, err)
	_, err = fs.Write(fd, []byte("shared"))
	require.NoError(t, err)
	require.NoError(t, fs.Close(fd))

	require.NoError(t, fs.Link("/", "/orig", "/alias"))

	attr, err := fs.Getattr("/", "/orig")
	require.NoError(t, err)
	assert.Equal(t, uint32(2), attr.Nlink)

	fd, err = fs.Open("/", "/alias", cache.OpenFlags{Read: true}, 0)
	require.NoError(t, err)
	buf := make([]byte, 6)
	n, err := fs.Read(fd, buf)
	require.NoError(t, err)
	assert.Equal(t, "shared", string(buf[:n]))
	require.NoError(t, fs.Close(fd))

	require.NoError(t, fs.Unlink("/", "/orig"))
	attr, err = fs.Getattr("/", "/alias")
	require.NoError(t, err)
	assert.Equal(t, uint32(1), attr.Nlink)
}

func TestChmodChownUtimens(t *testing.T) {
	fs := mustMount(t)
	fd, err := fs.Open("/", "/f", cache.OpenFlags{Write: true, Create: true}, 0o644)
	require.NoError(t, err)
	require.NoError(t, fs.Close(fd))

	require.NoError(t, fs.Chmod("/", "/f", 0o600))
	attr, err := fs.Getattr("/", "/f")
	require.NoError(t, err)
	assert.Equal(t, uint32(0o600), attr.Mode&0o7777)

	require.NoError(t, fs.Chown("/", "/f", 42, 7))
	attr, err = fs.Getattr("/", "/f")
	require.NoError(t, err)
	assert.Equal(t, uint32(42), attr.Uid)
	assert.Equal(t, uint32(7), attr.Gid)

	require.NoError(t, fs.Utimens("/", "/f", 100, 200))
	attr, err = fs.Getattr("/", "/f")
	require.NoError(t, err)
	assert.Equal(t, int64(100), attr.Atime)
	assert.Equal(t, int64(200), attr.Mtime)
}

func TestUnmountPersistsSuperblockAndDataAcrossRemount(t *testing.T) {
	store := kvstore.NewBTreeStore()
	fs, err := Mount(store, Options{BlockSize: testBlockSize})
	require.NoError(t, err)

	fd, err := fs.Open("/", "/persisted", cache.OpenFlags{Write: true, Create: true}, 0o644)
	require.NoError(t, err)
	_, err = fs.Write(fd, []byte("durable"))
	require.NoError(t, err)
	require.NoError(t, fs.Close(fd))
	require.NoError(t, fs.Unmount())

	fs2, err := Mount(store, Options{BlockSize: testBlockSize})
	require.NoError(t, err)
	fd2, err := fs2.Open("/", "/persisted", cache.OpenFlags{Read: true}, 0)
	require.NoError(t, err)
	buf := make([]byte, 16)
	n, err := fs2.Read(fd2, buf)
	require.NoError(t, err)
	assert.Equal(t, "durable", string(buf[:n]))
}

func TestReadOnlyMountRejectsMutation(t *testing.T) {
	store := kvstore.NewBTreeStore()
	fs, err := Mount(store, Options{BlockSize: testBlockSize})
	require.NoError(t, err)
	require.NoError(t, fs.Unmount())

	ro, err := Mount(store, Options{BlockSize: testBlockSize, ReadOnly: true})
	require.NoError(t, err)
	err = ro.Mkdir("/", "/nope", 0o755)
	require.Error(t, err)
	assert.True(t, kvfserr.Is(err, kvfserr.ReadOnlyFS))
}

func TestStatBlocksCrossesInlineTailBoundary(t *testing.T) {
	fs := mustMount(t)
	fd, err := fs.Open("/", "/f", cache.OpenFlags{Write: true, Read: true, Create: true}, 0o644)
	require.NoError(t, err)

	_, err = fs.Write(fd, make([]byte, testBlockSize-1))
	require.NoError(t, err)
	require.NoError(t, fs.Close(fd))

	fd, err = fs.Open("/", "/f", cache.OpenFlags{Write: true, Read: true}, 0)
	require.NoError(t, err)
	_, err = fs.Lseek(fd, 0, 2)
	require.NoError(t, err)
	_, err = fs.Write(fd, []byte{1})
	require.NoError(t, err)

	attr, err := fs.Getattr("/", "/f")
	require.NoError(t, err)
	assert.Equal(t, uint64(testBlockSize), attr.Size)
	assert.Equal(t, uint64(0), attr.Blocks, "content still fits entirely in the inline tail")

	_, err = fs.Write(fd, []byte{2})
	require.NoError(t, err)

	attr, err = fs.Getattr("/", "/f")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), attr.Blocks, "spilling one byte past the inline tail allocates one chain block")
	require.NoError(t, fs.Close(fd))
}

func TestCloseWritesBackDirtyInodeWithoutUnmount(t *testing.T) {
	store := kvstore.NewBTreeStore()
	fs, err := Mount(store, Options{BlockSize: testBlockSize})
	require.NoError(t, err)

	fd, err := fs.Open("/", "/f", cache.OpenFlags{Write: true, Create: true}, 0o644)
	require.NoError(t, err)
	_, err = fs.Write(fd, []byte("durable"))
	require.NoError(t, err)
	require.NoError(t, fs.Close(fd))

	fs2, err := Mount(store, Options{BlockSize: testBlockSize})
	require.NoError(t, err)
	fd2, err := fs2.Open("/", "/f", cache.OpenFlags{Read: true}, 0)
	require.NoError(t, err)
	buf := make([]byte, 16)
	n, err := fs2.Read(fd2, buf)
	require.NoError(t, err)
	assert.Equal(t, "durable", string(buf[:n]))
}

func TestSyncFlagSyncsOnCreateAndAfterWrite(t *testing.T) {
	store := kvstore.NewBTreeStore()
	fs, err := Mount(store, Options{BlockSize: testBlockSize})
	require.NoError(t, err)

	fd, err := fs.Open("/", "/f", cache.OpenFlags{Write: true, Read: true, Create: true, Sync: true}, 0o644)
	require.NoError(t, err)

	fs2, err := Mount(store, Options{BlockSize: testBlockSize})
	require.NoError(t, err)
	_, err = fs2.Getattr("/", "/f")
	require.NoError(t, err, "O_SYNC on create must make the new inode visible to another mount without an explicit fsync")

	_, err = fs.Write(fd, []byte("durable"))
	require.NoError(t, err)

	fd2, err := fs2.Open("/", "/f", cache.OpenFlags{Read: true}, 0)
	require.NoError(t, err)
	buf := make([]byte, 16)
	n, err := fs2.Read(fd2, buf)
	require.NoError(t, err)
	assert.Equal(t, "durable", string(buf[:n]), "O_SYNC write must be durable without an explicit fsync")
}
