/*
 * This Source Code Form is subject to the terms of the Mozilla Public License, v. 2.0.
 * If a copy of the MPL was not distributed with this file, You can obtain one at
 * https://mozilla.org/MPL/2.0/.
 */

// backend_local.go: AES-256-GCM keyed by a user/machine-derived key
package core

import (
	"fmt"
	"sync"

	"github.com/gitrgoliveira/go-securemem/internal/crypto"
	"github.com/gitrgoliveira/go-securemem/secure"
)

// KDF selects the key derivation function of the local backend.
type KDF uint8

const (
	// KDFArgon2id is Argon2id (default)
	KDFArgon2id KDF = 1
	// KDFPBKDF2 is PBKDF2-HMAC-SHA256
	KDFPBKDF2 KDF = 2
	// KDFScrypt is scrypt
	KDFScrypt KDF = 3
)

// String returns the KDF name
func (k KDF) String() string {
	switch k {
	case KDFArgon2id:
		return "argon2id"
	case KDFPBKDF2:
		return "pbkdf2-sha256"
	case KDFScrypt:
		return "scrypt"
	default:
		return "Unknown"
	}
}

type localConfig struct {
	identity         []byte
	kdf              KDF
	argon2Time       uint32
	argon2Memory     uint32
	argon2Threads    uint8
	pbkdf2Iterations int
	scryptN          int
	scryptR          int
	scryptP          int
}

// LocalOption configures NewLocalProtector.
type LocalOption func(*localConfig)

// WithIdentity replaces MachineIdentity as the key material. The slice is
// zeroed once the key has been derived.
func WithIdentity(identity []byte) LocalOption {
	return func(cfg *localConfig) {
		cfg.identity = identity
	}
}

// WithArgon2Params selects Argon2id with the given cost parameters.
func WithArgon2Params(time, memory uint32, threads uint8) LocalOption {
	return func(cfg *localConfig) {
		cfg.kdf = KDFArgon2id
		cfg.argon2Time = time
		cfg.argon2Memory = memory
		cfg.argon2Threads = threads
	}
}

// WithPBKDF2 selects PBKDF2-HMAC-SHA256 with the given iteration count.
func WithPBKDF2(iterations int) LocalOption {
	return func(cfg *localConfig) {
		cfg.kdf = KDFPBKDF2
		cfg.pbkdf2Iterations = iterations
	}
}

// WithScrypt selects scrypt with the given cost parameters.
func WithScrypt(n, r, p int) LocalOption {
	return func(cfg *localConfig) {
		cfg.kdf = KDFScrypt
		cfg.scryptN = n
		cfg.scryptR = r
		cfg.scryptP = p
	}
}

// LocalProtector encrypts with AES-256-GCM under a key derived from the
// user/machine identity, salted with the auxiliary entropy. Blobs can be
// opened by the same user on the same machine only.
type LocalProtector struct {
	mu  sync.Mutex
	key *crypto.SecureBuffer[byte]
	kdf KDF
}

// NewLocalProtector derives the backend key once; Close releases it.
func NewLocalProtector(opts ...LocalOption) (*LocalProtector, error) {
	cfg := &localConfig{
		kdf:              KDFArgon2id,
		argon2Time:       DefaultArgon2Time,
		argon2Memory:     DefaultArgon2Memory,
		argon2Threads:    DefaultArgon2Threads,
		pbkdf2Iterations: DefaultPBKDF2Iterations,
		scryptN:          DefaultScryptN,
		scryptR:          DefaultScryptR,
		scryptP:          DefaultScryptP,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	identity := cfg.identity
	if identity == nil {
		var err error
		identity, err = MachineIdentity()
		if err != nil {
			return nil, err
		}
	}
	defer secure.Zero(identity)

	salt := auxiliaryEntropy

	var (
		key *crypto.SecureBuffer[byte]
		err error
	)
	switch cfg.kdf {
	case KDFArgon2id:
		key, err = DeriveKeyArgon2(identity, salt[:], cfg.argon2Time, cfg.argon2Memory, cfg.argon2Threads, DefaultKeySize)
	case KDFPBKDF2:
		key, err = DeriveKeyPBKDF2(identity, salt[:], cfg.pbkdf2Iterations, DefaultKeySize)
	case KDFScrypt:
		key, err = DeriveKeyScrypt(identity, salt[:], cfg.scryptN, cfg.scryptR, cfg.scryptP, DefaultKeySize)
	default:
		err = fmt.Errorf("%w: unknown KDF %d", ErrInvalidArgument, cfg.kdf)
	}
	if err != nil {
		return nil, WrapError("derive local key", err)
	}

	return &LocalProtector{key: key, kdf: cfg.kdf}, nil
}

// Name returns "local".
func (l *LocalProtector) Name() string {
	return "local"
}

// KDF returns the key derivation function in use.
func (l *LocalProtector) KDF() KDF {
	return l.kdf
}

func (l *LocalProtector) Protect(plaintext, entropy []byte) ([]byte, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.key == nil {
		return nil, fmt.Errorf("%w: local protector closed", ErrBackendUnavailable)
	}
	return sealGCM(l.key.Bytes(), plaintext, entropy)
}

func (l *LocalProtector) Unprotect(dst, ciphertext, entropy []byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.key == nil {
		return fmt.Errorf("%w: local protector closed", ErrBackendUnavailable)
	}
	return openGCM(dst, l.key.Bytes(), ciphertext, entropy)
}

// Close releases the derived key. Later calls fail with ErrBackendUnavailable.
func (l *LocalProtector) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.key.Release()
	l.key = nil
	return nil
}
