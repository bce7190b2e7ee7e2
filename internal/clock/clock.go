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

// Package clock gives the engine an injectable notion of time, so tests can
// pin down the atime/mtime/ctime values a filesystem operation stamps onto
// an inode without racing the wall clock.
package clock

import "time"

// Clock abstracts time.Now so tests can substitute a deterministic source.
type Clock interface {
	Now() time.Time
}
