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

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func validConfig() Config {
	c := DefaultConfig()
	c.StoreDir = "/tmp/kvfs-store"
	return c
}

func TestValidateAcceptsDefaults(t *testing.T) {
	c := validConfig()
	assert.NoError(t, Validate(&c))
}

func TestValidateRejectsMissingStoreDir(t *testing.T) {
	c := validConfig()
	c.StoreDir = ""
	assert.Error(t, Validate(&c))
}

func TestValidateRejectsNegativeBlockSize(t *testing.T) {
	c := validConfig()
	c.BlockSizeBytes = -1
	assert.Error(t, Validate(&c))
}

func TestValidateRejectsNonPositiveSymlinkDepth(t *testing.T) {
	c := validConfig()
	c.MaxSymlinkDepth = 0
	assert.Error(t, Validate(&c))
}

func TestValidateRejectsUnknownLogFormat(t *testing.T) {
	c := validConfig()
	c.Logging.Format = "xml"
	assert.Error(t, Validate(&c))
}
