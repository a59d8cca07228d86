/*
 * This Source Code Form is subject to the terms of the Mozilla Public License, v. 2.0.
 * If a copy of the MPL was not distributed with this file, You can obtain one at
 * https://mozilla.org/MPL/2.0/.
 */

// securestring.go: Immutable secure string backed by a memguard enclave
package core

import (
	"fmt"
	"sync"

	"github.com/awnumar/memguard"

	"github.com/gitrgoliveira/go-securemem/internal/crypto"
)

// SecureString is an immutable, length-bearing secret. Its contents are
// sealed in a memguard Enclave (encrypted in memory under a session key) and
// only exist in plaintext inside a locked buffer while a conversion runs.
//
// A SecureString is built once and never mutated; there are no methods that
// change its contents.
type SecureString struct {
	mu        sync.Mutex
	enclave   *memguard.Enclave
	length    int
	destroyed bool
}

// Len returns the length in bytes.
func (s *SecureString) Len() int {
	if s == nil {
		return 0
	}
	return s.length
}

// ReadOnly always reports true.
func (s *SecureString) ReadOnly() bool {
	return true
}

// Destroyed reports whether Destroy has run.
func (s *SecureString) Destroyed() bool {
	if s == nil {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.destroyed
}

// Destroy drops the enclave and resets the length to zero. Subsequent
// calls are no-ops.
func (s *SecureString) Destroy() {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.enclave = nil
	s.length = 0
	s.destroyed = true
}

// open decrypts the enclave into a frozen locked buffer. The caller must
// Destroy the result. An empty string opens to nil.
func (s *SecureString) open() (*memguard.LockedBuffer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.destroyed {
		return nil, fmt.Errorf("%w: secure string has been destroyed", ErrInvalidArgument)
	}
	if s.enclave == nil {
		return nil, nil
	}

	lb, err := s.enclave.Open()
	if err != nil {
		return nil, crypto.NewProtectionError("open", "memguard", s.length, err)
	}
	return lb, nil
}
