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

import "golang.org/x/sys/unix"

// File-type bits stored in Stat.Mode, reusing the POSIX S_IFxxx constants
// so a future FUSE binding can pass Mode straight through.
const (
	TypeMask    = unix.S_IFMT
	TypeRegular = unix.S_IFREG
	TypeDir     = unix.S_IFDIR
	TypeSymlink = unix.S_IFLNK
)

func IsDir(mode uint32) bool     { return mode&TypeMask == TypeDir }
func IsSymlink(mode uint32) bool { return mode&TypeMask == TypeSymlink }
func IsRegular(mode uint32) bool { return mode&TypeMask == TypeRegular }
