//go:build unix

/*
 * This Source Code Form is subject to the terms of the Mozilla Public License, v. 2.0.
 * If a copy of the MPL was not distributed with this file, You can obtain one at
 * https://mozilla.org/MPL/2.0/.
 */

package secure

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// LockMemory uses mlock for Unix/macOS
func LockMemory(b []byte) error {
	if len(b) == 0 {
		return nil
	}
	return unix.Mlock(b)
}

// UnlockMemory uses munlock for Unix/macOS
func UnlockMemory(b []byte) error {
	if len(b) == 0 {
		return nil
	}
	return unix.Munlock(b)
}

// AllocPages maps size bytes of anonymous memory outside the Go heap. The
// garbage collector never scans or relocates the region, so its address is
// stable until FreePages. The memory is zero-initialised by the kernel.
// A size of zero returns a nil slice.
func AllocPages(size int) ([]byte, error) {
	if size < 0 {
		return nil, fmt.Errorf("negative allocation size %d", size)
	}
	if size == 0 {
		return nil, nil
	}
	data, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANON)
	if err != nil {
		return nil, fmt.Errorf("mmap %d bytes: %w", size, err)
	}
	// Best effort; some kernels reject MADV_DONTDUMP.
	_ = excludeFromDump(data)
	return data, nil
}

// FreePages unmaps a region returned by AllocPages.
func FreePages(b []byte) error {
	if len(b) == 0 {
		return nil
	}
	return unix.Munmap(b)
}
