//go:build !unix && !windows

/*
 * This Source Code Form is subject to the terms of the Mozilla Public License, v. 2.0.
 * If a copy of the MPL was not distributed with this file, You can obtain one at
 * https://mozilla.org/MPL/2.0/.
 */

package secure

import "fmt"

// LockMemory is unavailable on this platform.
func LockMemory(b []byte) error {
	if len(b) == 0 {
		return nil
	}
	return ErrLockUnsupported
}

// UnlockMemory is a no-op on this platform.
func UnlockMemory(b []byte) error {
	return nil
}

// AllocPages falls back to the Go heap. The collector does not move heap
// objects, so the address stays stable while the slice is referenced.
func AllocPages(size int) ([]byte, error) {
	if size < 0 {
		return nil, fmt.Errorf("negative allocation size %d", size)
	}
	if size == 0 {
		return nil, nil
	}
	return make([]byte, size), nil
}

// FreePages drops the heap slice; the caller must have zeroed it.
func FreePages(b []byte) error {
	return nil
}
