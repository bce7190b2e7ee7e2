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

package codec

import "fmt"

// CorruptionError is returned by a Decode* function when a record's byte
// length does not match its fixed layout. It is non-recoverable for the
// operation that triggered it (spec §7) but does not affect other records.
type CorruptionError struct {
	Record   string
	Expected int
	Got      int
}

func (e *CorruptionError) Error() string {
	if e.Expected == 0 {
		return fmt.Sprintf("codec: %s failed validation", e.Record)
	}
	return fmt.Sprintf("codec: %s expected %d bytes, got %d", e.Record, e.Expected, e.Got)
}

func errCorrupt(record string, expected, got int) error {
	return &CorruptionError{Record: record, Expected: expected, Got: got}
}
