//go:build !windows

/*
 * This Source Code Form is subject to the terms of the Mozilla Public License, v. 2.0.
 * If a copy of the MPL was not distributed with this file, You can obtain one at
 * https://mozilla.org/MPL/2.0/.
 */

package core

import (
	"fmt"
	"runtime"
)

func dpapiAvailable() error {
	return fmt.Errorf("%w: dpapi is not available on %s", ErrBackendUnavailable, runtime.GOOS)
}

func (d *DPAPIProtector) Protect(plaintext, entropy []byte) ([]byte, error) {
	return nil, dpapiAvailable()
}

func (d *DPAPIProtector) Unprotect(dst, ciphertext, entropy []byte) error {
	return dpapiAvailable()
}
