/*
 * This Source Code Form is subject to the terms of the Mozilla Public License, v. 2.0.
 * If a copy of the MPL was not distributed with this file, You can obtain one at
 * https://mozilla.org/MPL/2.0/.
 */

// backend_dpapi.go: Windows Data Protection API backend
package core

// DPAPIScope selects the identity DPAPI binds blobs to.
type DPAPIScope uint8

const (
	// DPAPICurrentUser binds blobs to the current user (default)
	DPAPICurrentUser DPAPIScope = iota
	// DPAPILocalMachine lets any user on this machine unprotect blobs
	DPAPILocalMachine
)

// String returns the scope name
func (s DPAPIScope) String() string {
	switch s {
	case DPAPICurrentUser:
		return "CurrentUser"
	case DPAPILocalMachine:
		return "LocalMachine"
	default:
		return "Unknown"
	}
}

// DPAPIProtector calls CryptProtectData/CryptUnprotectData. It is only
// available on Windows; elsewhere NewDPAPIProtector fails with
// ErrBackendUnavailable.
type DPAPIProtector struct {
	scope DPAPIScope
}

// NewDPAPIProtector creates a DPAPI backend with the given scope.
func NewDPAPIProtector(scope DPAPIScope) (*DPAPIProtector, error) {
	if err := dpapiAvailable(); err != nil {
		return nil, err
	}
	return &DPAPIProtector{scope: scope}, nil
}

// Name returns "dpapi".
func (d *DPAPIProtector) Name() string {
	return "dpapi"
}

// Scope returns the protection scope.
func (d *DPAPIProtector) Scope() DPAPIScope {
	return d.scope
}
