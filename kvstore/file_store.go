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
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// snapshotFileName is the single flat file a FileStore persists its entire
// keyspace to. The reference store has no WAL or incremental durability
// story (spec §6.1 requires only an atomic write-batch and a durable sync,
// not a particular on-disk format) — Sync rewrites the whole snapshot, which
// is adequate for the store sizes this engine targets.
const snapshotFileName = "kvfs.snapshot"

// FileStore wraps BTreeStore with whole-snapshot persistence to a directory,
// giving `kvfsctl mount <kv-dir>` a store that survives a process restart.
type FileStore struct {
	*BTreeStore
	dir string
}

// OpenFileStore loads dir/kvfs.snapshot into memory (an empty store if the
// file does not yet exist) and returns a FileStore backed by it.
func OpenFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("kvstore: create %s: %w", dir, err)
	}
	fs := &FileStore{BTreeStore: NewBTreeStore(), dir: dir}

	path := filepath.Join(dir, snapshotFileName)
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return fs, nil
	}
	if err != nil {
		return nil, fmt.Errorf("kvstore: open %s: %w", path, err)
	}
	defer f.Close()

	if err := fs.load(f); err != nil {
		return nil, fmt.Errorf("kvstore: load %s: %w", path, err)
	}
	return fs, nil
}

func (fs *FileStore) load(r io.Reader) error {
	br := bufio.NewReader(r)
	var lenBuf [4]byte
	for {
		if _, err := io.ReadFull(br, lenBuf[:]); err == io.EOF {
			return nil
		} else if err != nil {
			return err
		}
		key := make([]byte, binary.LittleEndian.Uint32(lenBuf[:]))
		if _, err := io.ReadFull(br, key); err != nil {
			return err
		}
		if _, err := io.ReadFull(br, lenBuf[:]); err != nil {
			return err
		}
		value := make([]byte, binary.LittleEndian.Uint32(lenBuf[:]))
		if _, err := io.ReadFull(br, value); err != nil {
			return err
		}
		if err := fs.BTreeStore.Put(key, value); err != nil {
			return err
		}
	}
}

// Sync persists the entire current keyspace to dir/kvfs.snapshot, replacing
// it atomically via a rename from a temp file in the same directory.
func (fs *FileStore) Sync() error {
	path := filepath.Join(fs.dir, snapshotFileName)
	tmp, err := os.CreateTemp(fs.dir, "kvfs.snapshot-*.tmp")
	if err != nil {
		return fmt.Errorf("kvstore: create temp snapshot: %w", err)
	}
	tmpPath := tmp.Name()

	w := bufio.NewWriter(tmp)
	var lenBuf [4]byte
	var writeErr error
	_ = fs.BTreeStore.IterFromPrefix(nil, func(key, value []byte) bool {
		binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(key)))
		if _, writeErr = w.Write(lenBuf[:]); writeErr != nil {
			return false
		}
		if _, writeErr = w.Write(key); writeErr != nil {
			return false
		}
		binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(value)))
		if _, writeErr = w.Write(lenBuf[:]); writeErr != nil {
			return false
		}
		if _, writeErr = w.Write(value); writeErr != nil {
			return false
		}
		return true
	})
	if writeErr != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("kvstore: write snapshot: %w", writeErr)
	}

	if err := w.Flush(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("kvstore: flush snapshot: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("kvstore: fsync snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("kvstore: close snapshot: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("kvstore: rename snapshot into place: %w", err)
	}
	return nil
}
