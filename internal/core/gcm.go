/*
 * This Source Code Form is subject to the terms of the Mozilla Public License, v. 2.0.
 * If a copy of the MPL was not distributed with this file, You can obtain one at
 * https://mozilla.org/MPL/2.0/.
 */

// gcm.go: AES-256-GCM sealing shared by the keychain and local backends
package core

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"
)

// ErrMalformedBlob is returned when a protected blob has a bad header.
var ErrMalformedBlob = errors.New("malformed protected blob")

func newGCM(key []byte) (cipher.AEAD, error) {
	if len(key) != 32 {
		return nil, fmt.Errorf("invalid key length: must be 32 bytes for AES-256, got %d", len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, WrapError("create cipher", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, WrapError("create GCM", err)
	}
	return gcm, nil
}

// sealGCM encrypts plaintext with entropy as additional authenticated data.
func sealGCM(key, plaintext, entropy []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, NonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, WrapError("generate nonce", err)
	}

	blob := make([]byte, 0, HeaderSize+len(plaintext)+gcm.Overhead())
	blob = append(blob, MagicBytes...)
	blob = append(blob, Version)
	blob = append(blob, nonce...)
	return gcm.Seal(blob, nonce, plaintext, entropy), nil // #nosec G407 -- nonce is random per blob
}

// openGCM decrypts blob directly into dst, whose length must equal the
// plaintext length. On failure dst is left zeroed.
func openGCM(dst, key, blob, entropy []byte) error {
	gcm, err := newGCM(key)
	if err != nil {
		return err
	}

	if len(blob) < HeaderSize+gcm.Overhead() {
		return fmt.Errorf("%w: %d bytes is shorter than header and tag", ErrMalformedBlob, len(blob))
	}
	if string(blob[:len(MagicBytes)]) != MagicBytes {
		return fmt.Errorf("%w: bad magic bytes", ErrMalformedBlob)
	}
	if blob[len(MagicBytes)] != Version {
		return fmt.Errorf("%w: unsupported version %d", ErrMalformedBlob, blob[len(MagicBytes)])
	}
	if got := len(blob) - HeaderSize - gcm.Overhead(); got != len(dst) {
		return fmt.Errorf("%w: blob holds %d bytes, expected %d", ErrLengthMismatch, got, len(dst))
	}

	nonce := blob[len(MagicBytes)+1 : HeaderSize]
	// dst[:0] has exactly enough capacity, so Open writes in place.
	if _, err := gcm.Open(dst[:0], nonce, blob[HeaderSize:], entropy); err != nil {
		clear(dst)
		return WrapError("open GCM", err)
	}
	return nil
}
