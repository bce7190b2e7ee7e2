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

// Package kvfserr defines the failure taxonomy every kvfs operation reports
// through, each Kind mapping to a single POSIX errno.
package kvfserr

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// Kind is one failure category a kvfs operation can report.
type Kind int

const (
	_ Kind = iota
	InvalidArgument
	NameTooLong
	NotFound
	AlreadyExists
	BadDescriptor
	NotADirectory
	IsADirectory
	TooManyLinks
	NoSpace
	IO
	NotEmpty
	CrossDevice
	Permission
	ReadOnlyFS
)

func (k Kind) String() string {
	switch k {
	case InvalidArgument:
		return "INVALID_ARGUMENT"
	case NameTooLong:
		return "NAME_TOO_LONG"
	case NotFound:
		return "NOT_FOUND"
	case AlreadyExists:
		return "ALREADY_EXISTS"
	case BadDescriptor:
		return "BAD_DESCRIPTOR"
	case NotADirectory:
		return "NOT_A_DIRECTORY"
	case IsADirectory:
		return "IS_A_DIRECTORY"
	case TooManyLinks:
		return "TOO_MANY_LINKS"
	case NoSpace:
		return "NO_SPACE"
	case IO:
		return "IO"
	case NotEmpty:
		return "NOT_EMPTY"
	case CrossDevice:
		return "CROSS_DEVICE"
	case Permission:
		return "PERMISSION"
	case ReadOnlyFS:
		return "READ_ONLY_FS"
	default:
		return "UNKNOWN"
	}
}

// Errno returns the POSIX errno a FUSE binding would surface for k.
func (k Kind) Errno() unix.Errno {
	switch k {
	case InvalidArgument:
		return unix.EINVAL
	case NameTooLong:
		return unix.ENAMETOOLONG
	case NotFound:
		return unix.ENOENT
	case AlreadyExists:
		return unix.EEXIST
	case BadDescriptor:
		return unix.EBADF
	case NotADirectory:
		return unix.ENOTDIR
	case IsADirectory:
		return unix.EISDIR
	case TooManyLinks:
		return unix.EMLINK
	case NoSpace:
		return unix.ENOSPC
	case IO:
		return unix.EIO
	case NotEmpty:
		return unix.ENOTEMPTY
	case CrossDevice:
		return unix.EXDEV
	case Permission:
		return unix.EACCES
	case ReadOnlyFS:
		return unix.EROFS
	default:
		return unix.EIO
	}
}

// Error is the concrete error type every kvfs public operation returns.
type Error struct {
	Kind Kind
	Op   string
	Path string
	Err  error
}

func (e *Error) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s %s: %s", e.Op, e.Path, e.message())
	}
	return fmt.Sprintf("%s: %s", e.Op, e.message())
}

func (e *Error) message() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Kind.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New builds an Error of the given kind for op/path, optionally wrapping cause.
func New(kind Kind, op, path string, cause error) *Error {
	return &Error{Kind: kind, Op: op, Path: path, Err: cause}
}

// Is reports whether err is a kvfserr.Error of kind k.
func Is(err error, k Kind) bool {
	var e *Error
	if !asError(err, &e) {
		return false
	}
	return e.Kind == k
}

func asError(err error, target **Error) bool {
	for err != nil {
		if e, ok := err.(*Error); ok {
			*target = e
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
