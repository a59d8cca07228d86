//go:build windows

/*
 * This Source Code Form is subject to the terms of the Mozilla Public License, v. 2.0.
 * If a copy of the MPL was not distributed with this file, You can obtain one at
 * https://mozilla.org/MPL/2.0/.
 */

package core

import (
	"bytes"
	"fmt"
	"unsafe"

	"golang.org/x/sys/windows"

	"github.com/gitrgoliveira/go-securemem/secure"
)

func dpapiAvailable() error {
	return nil
}

// newBlob points a DataBlob at b. An empty slice gets a valid pointer to
// a zero-length region so DPAPI never sees a nil buffer.
func newBlob(b []byte) *windows.DataBlob {
	if len(b) == 0 {
		var empty byte
		return &windows.DataBlob{Data: &empty}
	}
	return &windows.DataBlob{Size: uint32(len(b)), Data: &b[0]} // #nosec G115 -- bounded by MaxSecretSizeLimit
}

func (d *DPAPIProtector) flags() uint32 {
	flags := uint32(windows.CRYPTPROTECT_UI_FORBIDDEN)
	if d.scope == DPAPILocalMachine {
		flags |= windows.CRYPTPROTECT_LOCAL_MACHINE
	}
	return flags
}

func freeBlob(b *windows.DataBlob) {
	if b.Data != nil {
		_, _ = windows.LocalFree(windows.Handle(unsafe.Pointer(b.Data)))
	}
}

func (d *DPAPIProtector) Protect(plaintext, entropy []byte) ([]byte, error) {
	var out windows.DataBlob
	if err := windows.CryptProtectData(newBlob(plaintext), nil, newBlob(entropy), 0, nil, d.flags(), &out); err != nil {
		return nil, WrapError("CryptProtectData", err)
	}
	defer freeBlob(&out)

	return bytes.Clone(unsafe.Slice(out.Data, out.Size)), nil
}

func (d *DPAPIProtector) Unprotect(dst, ciphertext, entropy []byte) error {
	var out windows.DataBlob
	if err := windows.CryptUnprotectData(newBlob(ciphertext), nil, newBlob(entropy), 0, nil, d.flags(), &out); err != nil {
		return WrapError("CryptUnprotectData", err)
	}
	defer freeBlob(&out)

	var plaintext []byte
	if out.Size > 0 {
		plaintext = unsafe.Slice(out.Data, out.Size)
	}
	defer secure.Zero(plaintext)

	if len(plaintext) != len(dst) {
		return fmt.Errorf("%w: blob holds %d bytes, expected %d", ErrLengthMismatch, len(plaintext), len(dst))
	}
	copy(dst, plaintext)
	return nil
}
