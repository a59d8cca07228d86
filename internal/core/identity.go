/*
 * This Source Code Form is subject to the terms of the Mozilla Public License, v. 2.0.
 * If a copy of the MPL was not distributed with this file, You can obtain one at
 * https://mozilla.org/MPL/2.0/.
 */

// identity.go: User and machine identity for the local backend
package core

import (
	"fmt"
	"os"
	"os/user"
	"strings"
)

const identityDomain = "go-securemem/local/v1"

// MachineIdentity returns a stable string identifying the current user on
// the current machine. It is key material for the local backend, not a
// secret in itself: anyone running as the same user on the same machine
// can reproduce it.
func MachineIdentity() ([]byte, error) {
	u, err := user.Current()
	if err != nil {
		return nil, WrapError("look up current user", err)
	}

	machine, err := machineID()
	if err != nil || machine == "" {
		// No platform id; fall back to the host name alone
		host, herr := os.Hostname()
		if herr != nil {
			return nil, fmt.Errorf("%w: no machine id (%v) and no hostname (%v)", ErrBackendUnavailable, err, herr)
		}
		machine = "host:" + host
	}

	parts := []string{identityDomain, strings.TrimSpace(machine), u.Uid, u.Username}
	return []byte(strings.Join(parts, "\x00")), nil
}
