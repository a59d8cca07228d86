/*
 * This Source Code Form is subject to the terms of the Mozilla Public License, v. 2.0.
 * If a copy of the MPL was not distributed with this file, You can obtain one at
 * https://mozilla.org/MPL/2.0/.
 */

// backend_keychain.go: AES-256-GCM under a master key held in the OS keychain
package core

import (
	"encoding/base64"
	"errors"
	"fmt"
	"sync"

	"github.com/zalando/go-keyring"

	"github.com/gitrgoliveira/go-securemem/internal/crypto"
	"github.com/gitrgoliveira/go-securemem/secure"
)

const (
	// DefaultKeychainService namespaces go-securemem entries in the OS keychain.
	DefaultKeychainService = "go-securemem"

	keychainMasterKeyUser = "at-rest-master-key"
)

// keyringProvider abstracts the go-keyring functions for testing.
var keyringProvider = struct {
	Set    func(service, user, password string) error
	Get    func(service, user string) (string, error)
	Delete func(service, user string) error
}{
	Set:    keyring.Set,
	Get:    keyring.Get,
	Delete: keyring.Delete,
}

// KeychainProtector encrypts with AES-256-GCM under a random master key
// stored in the OS keychain (macOS Keychain, Secret Service on Linux,
// Windows Credential Manager). The keychain is per user, so blobs can only
// be opened by the user that created them.
//
// The master key is generated on first Protect and fetched on every call;
// it is held in a SecureBuffer only for the duration of the call.
type KeychainProtector struct {
	service string
	mu      sync.Mutex
}

// NewKeychainProtector creates a KeychainProtector using service as the
// keychain service name; an empty service means DefaultKeychainService.
func NewKeychainProtector(service string) *KeychainProtector {
	if service == "" {
		service = DefaultKeychainService
	}
	return &KeychainProtector{service: service}
}

// Name returns "keychain".
func (k *KeychainProtector) Name() string {
	return "keychain"
}

func (k *KeychainProtector) Protect(plaintext, entropy []byte) ([]byte, error) {
	key, err := k.masterKey(true)
	if err != nil {
		return nil, err
	}
	defer key.Release()
	return sealGCM(key.Bytes(), plaintext, entropy)
}

func (k *KeychainProtector) Unprotect(dst, ciphertext, entropy []byte) error {
	key, err := k.masterKey(false)
	if err != nil {
		return err
	}
	defer key.Release()
	return openGCM(dst, key.Bytes(), ciphertext, entropy)
}

// Reset deletes the master key. Every secret protected by this backend
// becomes unrecoverable.
func (k *KeychainProtector) Reset() error {
	k.mu.Lock()
	defer k.mu.Unlock()

	err := keyringProvider.Delete(k.service, keychainMasterKeyUser)
	if err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("keychain delete master key: %w", err)
	}
	return nil
}

// masterKey loads the master key into a SecureBuffer, generating and
// storing a new one when create is set and none exists.
func (k *KeychainProtector) masterKey(create bool) (*crypto.SecureBuffer[byte], error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	encoded, err := keyringProvider.Get(k.service, keychainMasterKeyUser)
	switch {
	case err == nil:
		return decodeMasterKey(encoded)
	case !errors.Is(err, keyring.ErrNotFound):
		return nil, fmt.Errorf("%w: keychain get master key: %v", ErrBackendUnavailable, err)
	case !create:
		return nil, fmt.Errorf("%w: no master key in keychain service %q", ErrBackendUnavailable, k.service)
	}

	key, err := GenerateKey(DefaultKeySize)
	if err != nil {
		return nil, err
	}
	// go-keyring only accepts strings; this heap copy is unavoidable.
	if err := keyringProvider.Set(k.service, keychainMasterKeyUser, base64.StdEncoding.EncodeToString(key.Bytes())); err != nil {
		key.Release()
		return nil, fmt.Errorf("%w: keychain set master key: %v", ErrBackendUnavailable, err)
	}
	return key, nil
}

func decodeMasterKey(encoded string) (*crypto.SecureBuffer[byte], error) {
	raw := []byte(encoded)
	defer secure.Zero(raw)

	key, err := crypto.Allocate[byte](base64.StdEncoding.DecodedLen(len(raw)))
	if err != nil {
		return nil, err
	}
	n, err := base64.StdEncoding.Decode(key.Bytes(), raw)
	if err != nil || n != DefaultKeySize {
		key.Release()
		return nil, fmt.Errorf("%w: keychain master key is corrupt", ErrBackendUnavailable)
	}
	if n == key.Len() {
		return key, nil
	}

	// DecodedLen over-allocates for padded input; move into an exact buffer.
	exact, err := crypto.Allocate[byte](n)
	if err != nil {
		key.Release()
		return nil, err
	}
	copy(exact.Bytes(), key.Bytes()[:n])
	key.Release()
	return exact, nil
}
