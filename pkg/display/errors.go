// Periphctl
// Copyright (c) 2026 The Periphctl Contributors.
// SPDX-License-Identifier: GPL-3.0-or-later
//
// This file is part of Periphctl.
//
// Periphctl is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Periphctl is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with Periphctl.  If not, see <http://www.gnu.org/licenses/>.

package display

import "errors"

// Sentinel errors returned by every control-plane operation. Callers match
// them with errors.Is; wrapped context never changes the kind.
var (
	// ErrDeferred means the request is valid but a conflicting transition is
	// in flight. The caller should retry later, typically on the next frame.
	ErrDeferred = errors.New("request deferred")
	// ErrNotSupported means the request is invalid in the current state.
	ErrNotSupported = errors.New("operation not supported in current state")
	// ErrParameters means the caller supplied malformed input.
	ErrParameters = errors.New("invalid parameters")
	// ErrHardware is an I/O failure reported by a hardware accessor.
	ErrHardware = errors.New("hardware error")
	// ErrFileDescriptor means a hardware node could not be opened.
	ErrFileDescriptor = errors.New("file descriptor error")
	// ErrUndefined is an unexpected object type or a transaction-level failure.
	ErrUndefined = errors.New("undefined error")
)

// ErrorKind is the DisplayError-style outcome code of an operation.
type ErrorKind int

const (
	KindNone ErrorKind = iota
	KindDeferred
	KindNotSupported
	KindParameters
	KindHardware
	KindFileDescriptor
	KindUndefined
)

func (k ErrorKind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindDeferred:
		return "deferred"
	case KindNotSupported:
		return "not_supported"
	case KindParameters:
		return "parameters"
	case KindHardware:
		return "hardware"
	case KindFileDescriptor:
		return "file_descriptor"
	case KindUndefined:
		return "undefined"
	default:
		return "unknown"
	}
}

// Retryable reports whether the caller may reissue the same request without
// first changing any state.
func (k ErrorKind) Retryable() bool {
	return k == KindDeferred
}

// Kind classifies err. Errors that carry none of the sentinels are treated
// as KindUndefined.
func Kind(err error) ErrorKind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrDeferred):
		return KindDeferred
	case errors.Is(err, ErrNotSupported):
		return KindNotSupported
	case errors.Is(err, ErrParameters):
		return KindParameters
	case errors.Is(err, ErrFileDescriptor):
		return KindFileDescriptor
	case errors.Is(err, ErrHardware):
		return KindHardware
	default:
		return KindUndefined
	}
}
