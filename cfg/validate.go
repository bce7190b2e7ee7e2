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

package cfg

import "fmt"

// Validate rejects a Config that the engine cannot safely mount with.
func Validate(c *Config) error {
	if c.StoreDir == "" {
		return fmt.Errorf("store-dir must be set")
	}
	if c.BlockSizeBytes < 0 {
		return fmt.Errorf("block-size-bytes cannot be negative")
	}
	if c.MaxOpenFiles < 0 {
		return fmt.Errorf("max-open-files cannot be negative")
	}
	if c.InodeCacheSize < 0 {
		return fmt.Errorf("inode-cache-size cannot be negative")
	}
	if c.DentryCacheSize < 0 {
		return fmt.Errorf("dentry-cache-size cannot be negative")
	}
	if c.MaxSymlinkDepth <= 0 {
		return fmt.Errorf("max-symlink-depth must be positive")
	}
	switch c.Logging.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("logging.format must be \"text\" or \"json\", got %q", c.Logging.Format)
	}
	return nil
}
