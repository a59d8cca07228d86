/*
 * This Source Code Form is subject to the terms of the Mozilla Public License, v. 2.0.
 * If a copy of the MPL was not distributed with this file, You can obtain one at
 * https://mozilla.org/MPL/2.0/.
 */

// protector.go: At-rest protection of secure buffers
package core

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/gitrgoliveira/go-securemem/internal/crypto"
	"github.com/gitrgoliveira/go-securemem/secure"
)

// Protector is a platform protection service: it turns plaintext into an
// opaque blob bound to some identity (user, machine, key holder) and back.
type Protector interface {
	// Name identifies the backend, e.g. "dpapi", "keychain", "age", "local".
	Name() string

	// Protect returns ciphertext for plaintext mixed with entropy.
	// It must not retain or modify plaintext.
	Protect(plaintext, entropy []byte) ([]byte, error)

	// Unprotect recovers the plaintext of ciphertext into dst. dst has
	// exactly the original plaintext length; a blob whose plaintext has a
	// different length is an error.
	Unprotect(dst, ciphertext, entropy []byte) error
}

// ErrLengthMismatch is returned by backends when the recovered plaintext
// does not have the recorded length.
var ErrLengthMismatch = errors.New("plaintext length does not match recorded length")

// EncryptedSecret is the at-rest form of a secret. It never holds plaintext.
type EncryptedSecret struct {
	mu         sync.Mutex
	ciphertext []byte
	entropy    [EntropySize]byte
	length     int
	backend    string
	disposed   bool
}

// Len returns the length of the original plaintext in bytes.
func (s *EncryptedSecret) Len() int {
	return s.length
}

// Backend returns the name of the backend that produced the ciphertext.
func (s *EncryptedSecret) Backend() string {
	return s.backend
}

// Disposed reports whether Dispose has run.
func (s *EncryptedSecret) Disposed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.disposed
}

// Dispose zeroes the ciphertext. Subsequent calls are no-ops.
func (s *EncryptedSecret) Dispose() {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.disposed {
		return
	}
	secure.Zero(s.ciphertext)
	s.ciphertext = nil
	s.disposed = true
}

// AtRestProtector moves secrets between SecureBuffers and EncryptedSecrets
// through a Protector backend.
type AtRestProtector struct {
	backend Protector
	cfg     *Config
}

// NewAtRestProtector creates an AtRestProtector. Without WithProtector the
// backend comes from DefaultProtector.
func NewAtRestProtector(opts ...Option) (*AtRestProtector, error) {
	cfg, err := newConfig()
	if err != nil {
		return nil, err
	}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	if cfg.Protector == nil {
		p, err := DefaultProtector(cfg.Logger)
		if err != nil {
			return nil, err
		}
		cfg.Protector = p
	}

	return &AtRestProtector{
		backend: cfg.Protector,
		cfg:     cfg,
	}, nil
}

// Backend returns the protection backend in use.
func (p *AtRestProtector) Backend() Protector {
	return p.backend
}

// Encrypt protects the contents of buf and takes ownership of it: buf is
// released (zeroed) before Encrypt returns, on success and on every error.
// Backend failures are reported as ErrProtectionFailure and never retried.
func (p *AtRestProtector) Encrypt(buf *crypto.SecureBuffer[byte]) (*EncryptedSecret, error) {
	if buf == nil {
		return nil, fmt.Errorf("%w: nil secure buffer", crypto.ErrInvalidArgument)
	}
	defer buf.Release()

	if buf.Released() {
		return nil, crypto.ErrBufferReleased
	}
	if buf.Size() > p.cfg.MaxSecretSize {
		return nil, fmt.Errorf("%w: secret of %d bytes exceeds limit of %d bytes",
			crypto.ErrInvalidArgument, buf.Size(), p.cfg.MaxSecretSize)
	}

	entropy := auxiliaryEntropy
	ciphertext, err := p.backend.Protect(buf.Bytes(), entropy[:])
	if err != nil {
		return nil, crypto.NewProtectionError("protect", p.backend.Name(), buf.Size(), err)
	}

	return &EncryptedSecret{
		ciphertext: ciphertext,
		entropy:    entropy,
		length:     buf.Size(),
		backend:    p.backend.Name(),
	}, nil
}

// Decrypt recovers secret into a freshly allocated SecureBuffer, or fails
// with nothing allocated. The caller owns and must Release the result.
func (p *AtRestProtector) Decrypt(secret *EncryptedSecret) (*crypto.SecureBuffer[byte], error) {
	if secret == nil {
		return nil, fmt.Errorf("%w: nil encrypted secret", crypto.ErrInvalidArgument)
	}
	secret.mu.Lock()
	defer secret.mu.Unlock()

	if secret.disposed {
		return nil, fmt.Errorf("%w: encrypted secret has been disposed", crypto.ErrInvalidArgument)
	}
	if secret.backend != p.backend.Name() {
		return nil, crypto.NewProtectionError("unprotect", p.backend.Name(), secret.length,
			fmt.Errorf("secret was protected by backend %q", secret.backend))
	}

	buf, err := crypto.Allocate[byte](secret.length, p.cfg.bufferOptions()...)
	if err != nil {
		return nil, err
	}

	if err := p.backend.Unprotect(buf.Bytes(), secret.ciphertext, secret.entropy[:]); err != nil {
		buf.Release()
		return nil, crypto.NewProtectionError("unprotect", p.backend.Name(), secret.length, err)
	}

	return buf, nil
}

// Dispose zeroes the ciphertext of secret; see EncryptedSecret.Dispose.
func (p *AtRestProtector) Dispose(secret *EncryptedSecret) {
	secret.Dispose()
}

// Close releases key material held by the backend, if any.
func (p *AtRestProtector) Close() error {
	if c, ok := p.backend.(interface{ Close() error }); ok {
		return c.Close()
	}
	return nil
}
