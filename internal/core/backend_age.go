/*
 * This Source Code Form is subject to the terms of the Mozilla Public License, v. 2.0.
 * If a copy of the MPL was not distributed with this file, You can obtain one at
 * https://mozilla.org/MPL/2.0/.
 */

// backend_age.go: age X25519 encryption bound to an identity
package core

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"filippo.io/age"
	"github.com/zalando/go-keyring"

	"github.com/gitrgoliveira/go-securemem/internal/crypto"
	"github.com/gitrgoliveira/go-securemem/secure"
)

const keychainAgeIdentityUser = "age-identity"

// ErrEntropyMismatch is returned when a blob was sealed with different
// auxiliary entropy.
var ErrEntropyMismatch = errors.New("auxiliary entropy mismatch")

// AgeProtector encrypts to an age X25519 recipient. Blobs open only with
// the matching identity. age has no associated data, so the auxiliary
// entropy is sealed in front of the plaintext and checked on Unprotect.
//
// AgeProtector gives a weaker memory guarantee than the local, keychain
// and dpapi backends. age's stream reader and writer stage each plaintext
// chunk (up to 64 KiB) in unexported buffers on the Go heap, and those
// buffers are never wiped. It is never chosen as a platform default.
type AgeProtector struct {
	identity  *age.X25519Identity
	recipient *age.X25519Recipient
}

// NewAgeProtector wraps an existing identity.
func NewAgeProtector(identity *age.X25519Identity) (*AgeProtector, error) {
	if identity == nil {
		return nil, fmt.Errorf("%w: nil age identity", ErrInvalidArgument)
	}
	return &AgeProtector{
		identity:  identity,
		recipient: identity.Recipient(),
	}, nil
}

// GenerateAgeProtector creates a protector with a fresh identity. The
// identity lives only as long as the process, so blobs are process scoped.
func GenerateAgeProtector() (*AgeProtector, error) {
	identity, err := age.GenerateX25519Identity()
	if err != nil {
		return nil, WrapError("generate age identity", err)
	}
	return NewAgeProtector(identity)
}

// ParseAgeProtector parses an AGE-SECRET-KEY-1... identity from key and
// releases key.
func ParseAgeProtector(key *crypto.SecureBuffer[byte]) (*AgeProtector, error) {
	if key == nil {
		return nil, fmt.Errorf("%w: nil age identity buffer", ErrInvalidArgument)
	}
	defer key.Release()

	// age parses identities from strings only.
	identity, err := age.ParseX25519Identity(strings.TrimSpace(string(key.Bytes())))
	if err != nil {
		return nil, fmt.Errorf("%w: parse age identity: %v", ErrInvalidArgument, err)
	}
	return NewAgeProtector(identity)
}

// NewKeychainAgeProtector loads the age identity stored in the OS keychain
// under service, generating and storing one on first use. This binds the
// blobs to the current user.
func NewKeychainAgeProtector(service string) (*AgeProtector, error) {
	if service == "" {
		service = DefaultKeychainService
	}

	encoded, err := keyringProvider.Get(service, keychainAgeIdentityUser)
	switch {
	case err == nil:
		raw := []byte(encoded)
		key, err := crypto.NewSecureBufferFromBytes(raw)
		if err != nil {
			return nil, err
		}
		return ParseAgeProtector(key)
	case !errors.Is(err, keyring.ErrNotFound):
		return nil, fmt.Errorf("%w: keychain get age identity: %v", ErrBackendUnavailable, err)
	}

	p, err := GenerateAgeProtector()
	if err != nil {
		return nil, err
	}
	if err := keyringProvider.Set(service, keychainAgeIdentityUser, p.identity.String()); err != nil {
		return nil, fmt.Errorf("%w: keychain set age identity: %v", ErrBackendUnavailable, err)
	}
	return p, nil
}

// Name returns "age".
func (a *AgeProtector) Name() string {
	return "age"
}

// StagesPlaintext reports true: age copies plaintext chunks into heap
// buffers this package cannot zero.
func (a *AgeProtector) StagesPlaintext() bool {
	return true
}

// Recipient returns the public recipient string (age1...).
func (a *AgeProtector) Recipient() string {
	return a.recipient.String()
}

func (a *AgeProtector) Protect(plaintext, entropy []byte) ([]byte, error) {
	var out bytes.Buffer
	w, err := age.Encrypt(&out, a.recipient)
	if err != nil {
		return nil, WrapError("age encrypt", err)
	}
	if _, err := w.Write(entropy); err != nil {
		return nil, WrapError("age write entropy", err)
	}
	if _, err := w.Write(plaintext); err != nil {
		return nil, WrapError("age write plaintext", err)
	}
	if err := w.Close(); err != nil {
		return nil, WrapError("age finalize", err)
	}
	return out.Bytes(), nil
}

func (a *AgeProtector) Unprotect(dst, ciphertext, entropy []byte) error {
	r, err := age.Decrypt(bytes.NewReader(ciphertext), a.identity)
	if err != nil {
		return WrapError("age decrypt", err)
	}

	prefix := make([]byte, len(entropy))
	if _, err := io.ReadFull(r, prefix); err != nil {
		return WrapError("age read entropy", err)
	}
	if !secure.SecureCompare(prefix, entropy) {
		return ErrEntropyMismatch
	}

	if _, err := io.ReadFull(r, dst); err != nil {
		secure.Zero(dst)
		if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: blob is shorter than %d bytes", ErrLengthMismatch, len(dst))
		}
		return WrapError("age read plaintext", err)
	}

	var trailing [1]byte
	if n, err := io.ReadFull(r, trailing[:]); n != 0 || err != io.EOF {
		secure.Zero(dst)
		secure.Zero(trailing[:])
		if err != nil && n == 0 {
			return WrapError("age read trailer", err)
		}
		return fmt.Errorf("%w: blob is longer than %d bytes", ErrLengthMismatch, len(dst))
	}
	return nil
}
