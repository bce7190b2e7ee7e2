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

package cache

import "github.com/kvfs-project/kvfs/kvfs/codec"

// DentryCache is a bounded LRU accelerator for path resolution (spec
// §4.4.3): a pure cache of InodeKey -> metadata snapshot. Every lookup
// falls back to the store (through the InodeCache) on a miss, so this
// cache is never the source of truth and never fabricates an entry.
type DentryCache struct {
	capacity int
	list     *lruList[codec.InodeKey, codec.InodeValue]
}

func NewDentryCache(capacity int) *DentryCache {
	if capacity <= 0 {
		capacity = 1024
	}
	return &DentryCache{capacity: capacity, list: newLRUList[codec.InodeKey, codec.InodeValue]()}
}

func (d *DentryCache) Get(key codec.InodeKey) (codec.InodeValue, bool) {
	return d.list.get(key)
}

func (d *DentryCache) Put(key codec.InodeKey, value codec.InodeValue) {
	d.list.put(key, value)
	for d.list.len() > d.capacity {
		victim, ok := d.list.lru()
		if !ok {
			break
		}
		d.list.remove(victim)
	}
}

func (d *DentryCache) Invalidate(key codec.InodeKey) {
	d.list.remove(key)
}
