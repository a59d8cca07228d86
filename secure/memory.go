/*
 * This Source Code Form is subject to the terms of the Mozilla Public License, v. 2.0.
 * If a copy of the MPL was not distributed with this file, You can obtain one at
 * https://mozilla.org/MPL/2.0/.
 */

// Package secure holds the low-level memory primitives shared by every other
// package: zeroing, constant-time comparison, swap locking and stable-address
// page allocation.
package secure

import (
	"crypto/subtle"
	"errors"
	"runtime"
	"unsafe"
)

// ErrLockUnsupported is returned by LockMemory on platforms without a
// swap-lock facility.
var ErrLockUnsupported = errors.New("memory locking is not supported on this platform")

// Primitive is the set of fixed-size element types the zeroizer and the
// secure buffers operate on.
type Primitive interface {
	~int8 | ~uint8 | ~int16 | ~uint16 | ~int32 | ~uint32 |
		~int64 | ~uint64 | ~float32 | ~float64 | ~bool
}

// Zero overwrites b with zero bytes. A nil or empty slice is a no-op.
//
// The function is never inlined and keeps b alive past the clear, so the
// stores cannot be discarded as dead even when b is not read again.
//
//go:noinline
func Zero(b []byte) {
	if len(b) == 0 {
		return
	}
	clear(b)
	runtime.KeepAlive(b)
}

// ZeroElements zeroes every byte backing s.
func ZeroElements[T Primitive](s []T) {
	Zero(AsBytes(s))
}

// AsBytes returns the bytes backing s without copying.
func AsBytes[T Primitive](s []T) []byte {
	if len(s) == 0 {
		return nil
	}
	var zero T
	return unsafe.Slice((*byte)(unsafe.Pointer(unsafe.SliceData(s))), len(s)*int(unsafe.Sizeof(zero)))
}

// SecureCompare performs constant-time comparison of two byte slices
func SecureCompare(a, b []byte) bool {
	return subtle.ConstantTimeCompare(a, b) == 1
}
