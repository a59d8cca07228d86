/*
 * This Source Code Form is subject to the terms of the Mozilla Public License, v. 2.0.
 * If a copy of the MPL was not distributed with this file, You can obtain one at
 * https://mozilla.org/MPL/2.0/.
 */

// helpers_test.go: Shared fixtures for core tests
package core

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"

	"github.com/gitrgoliveira/go-securemem/internal/crypto"
)

// setupMockKeyring replaces the keyring provider with an in-memory mock
// and returns a cleanup function that restores the original provider.
func setupMockKeyring() func() {
	origSet := keyringProvider.Set
	origGet := keyringProvider.Get
	origDelete := keyringProvider.Delete

	keyring.MockInit()

	keyringProvider.Set = keyring.Set
	keyringProvider.Get = keyring.Get
	keyringProvider.Delete = keyring.Delete

	return func() {
		keyringProvider.Set = origSet
		keyringProvider.Get = origGet
		keyringProvider.Delete = origDelete
	}
}

// newTestLocalProtector derives a local key with the cheapest accepted
// Argon2id cost and a fixed identity.
func newTestLocalProtector(t *testing.T) *LocalProtector {
	t.Helper()
	p, err := NewLocalProtector(
		WithIdentity([]byte("test-user\x00test-machine")),
		WithArgon2Params(1, MinArgon2Memory, 1),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })
	return p
}

func newTestAtRest(t *testing.T, backend Protector, opts ...Option) *AtRestProtector {
	t.Helper()
	opts = append([]Option{WithProtector(backend), WithLockSwap(false)}, opts...)
	p, err := NewAtRestProtector(opts...)
	require.NoError(t, err)
	return p
}

// secureBytes copies b into a SecureBuffer; the copy of b passed in is wiped.
func secureBytes(t *testing.T, b []byte) *crypto.SecureBuffer[byte] {
	t.Helper()
	src := append([]byte(nil), b...)
	buf, err := crypto.NewSecureBufferFromBytes(src, crypto.WithLockSwap(false))
	require.NoError(t, err)
	return buf
}

// patternBytes returns n bytes that are never all zero.
func patternBytes(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(i%251) + 1
	}
	return b
}

// observeRelease records a copy of the memory of every buffer released
// while the test runs.
func observeRelease(t *testing.T) *[][]byte {
	t.Helper()
	var seen [][]byte
	restore := crypto.SetReleaseObserver(func(raw []byte) {
		seen = append(seen, append([]byte(nil), raw...))
	})
	t.Cleanup(restore)
	return &seen
}

func allZero(b []byte) bool {
	for _, v := range b {
		if v != 0 {
			return false
		}
	}
	return true
}

// failingProtector fails every call. It must not retain plaintext: the
// memory is unmapped once the caller releases it.
type failingProtector struct {
	sawPlaintext bool
	calls        int
}

var errBackendDown = errors.New("protection service is down")

func (f *failingProtector) Name() string { return "failing" }

func (f *failingProtector) Protect(plaintext, _ []byte) ([]byte, error) {
	f.calls++
	f.sawPlaintext = len(plaintext) > 0 && !allZero(plaintext)
	return nil, errBackendDown
}

func (f *failingProtector) Unprotect(_, _, _ []byte) error {
	f.calls++
	return errBackendDown
}
