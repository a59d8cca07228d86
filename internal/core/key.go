/*
 * This Source Code Form is subject to the terms of the Mozilla Public License, v. 2.0.
 * If a copy of the MPL was not distributed with this file, You can obtain one at
 * https://mozilla.org/MPL/2.0/.
 */

// key.go: Key derivation and generation for the local cipher backends
package core

import (
	"crypto/rand"
	"crypto/sha256"
	"fmt"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/pbkdf2"
	"golang.org/x/crypto/scrypt"

	"github.com/gitrgoliveira/go-securemem/internal/crypto"
)

const (
	// DefaultPBKDF2Iterations is the default iteration count for PBKDF2
	DefaultPBKDF2Iterations = 600000 // OWASP recommendation (2023)

	// MinPBKDF2Iterations is the minimum safe iteration count
	MinPBKDF2Iterations = 210000 // OWASP minimum

	// MinSaltSize is the smallest accepted salt
	MinSaltSize = 16

	// DefaultKeySize is the default derived key size (32 bytes for AES-256)
	DefaultKeySize = 32

	// Argon2id parameters (OWASP 2023 recommendations for interactive logins)
	// See: https://cheatsheetseries.owasp.org/cheatsheets/Password_Storage_Cheat_Sheet.html

	// DefaultArgon2Time is the number of iterations (time cost)
	DefaultArgon2Time = 3

	// DefaultArgon2Memory is the memory cost in KiB (64 MB)
	DefaultArgon2Memory = 64 * 1024

	// DefaultArgon2Threads is the parallelism factor
	DefaultArgon2Threads = 4

	// MinArgon2Memory is the minimum memory cost (19 MB per OWASP minimum)
	MinArgon2Memory = 19 * 1024

	// DefaultScryptN is the scrypt CPU/memory cost (2^15)
	DefaultScryptN = 1 << 15
	// MinScryptN is the smallest accepted scrypt cost (2^14)
	MinScryptN = 1 << 14
	// DefaultScryptR is the scrypt block size
	DefaultScryptR = 8
	// DefaultScryptP is the scrypt parallelism factor
	DefaultScryptP = 1
)

// DeriveKeyPBKDF2 derives a key using PBKDF2-HMAC-SHA256 and returns it in
// a SecureBuffer. The caller must Release the buffer.
//
// Parameters:
//   - secret: The input keying material (will not be modified)
//   - salt: The salt bytes (must be at least 16 bytes)
//   - iterations: Number of iterations (must be >= MinPBKDF2Iterations)
//   - keyLen: Length of the derived key in bytes (typically 32 for AES-256)
func DeriveKeyPBKDF2(secret, salt []byte, iterations, keyLen int) (*crypto.SecureBuffer[byte], error) {
	if len(secret) == 0 {
		return nil, fmt.Errorf("%w: key material cannot be empty", crypto.ErrInvalidArgument)
	}

	if len(salt) < MinSaltSize {
		return nil, fmt.Errorf("%w: salt must be at least %d bytes, got %d", crypto.ErrInvalidArgument, MinSaltSize, len(salt))
	}

	if iterations < MinPBKDF2Iterations {
		return nil, fmt.Errorf("%w: iterations must be at least %d, got %d", crypto.ErrInvalidArgument, MinPBKDF2Iterations, iterations)
	}

	if keyLen <= 0 || keyLen > 128 {
		return nil, fmt.Errorf("%w: keyLen must be between 1 and 128 bytes, got %d", crypto.ErrInvalidArgument, keyLen)
	}

	// FromSlice moves the heap copy into secure memory and wipes it
	return crypto.NewSecureBufferFromBytes(pbkdf2.Key(secret, salt, iterations, keyLen, sha256.New))
}

// DeriveKeyArgon2 derives a key using Argon2id and returns it in a
// SecureBuffer. The caller must Release the buffer.
//
// OWASP 2023 Recommendations:
//   - Interactive logins: memory=64MB, time=3, threads=4
//   - Minimum acceptable: memory=19MB, time=2, threads=1
func DeriveKeyArgon2(secret, salt []byte, time, memory uint32, threads uint8, keyLen uint32) (*crypto.SecureBuffer[byte], error) {
	if len(secret) == 0 {
		return nil, fmt.Errorf("%w: key material cannot be empty", crypto.ErrInvalidArgument)
	}

	if len(salt) < MinSaltSize {
		return nil, fmt.Errorf("%w: salt must be at least %d bytes, got %d", crypto.ErrInvalidArgument, MinSaltSize, len(salt))
	}

	if time < 1 {
		return nil, fmt.Errorf("%w: time cost must be at least 1, got %d", crypto.ErrInvalidArgument, time)
	}

	if memory < MinArgon2Memory {
		return nil, fmt.Errorf("%w: memory cost must be at least %d KiB, got %d", crypto.ErrInvalidArgument, MinArgon2Memory, memory)
	}

	if threads < 1 {
		return nil, fmt.Errorf("%w: threads must be at least 1, got %d", crypto.ErrInvalidArgument, threads)
	}

	if keyLen == 0 || keyLen > 128 {
		return nil, fmt.Errorf("%w: keyLen must be between 1 and 128 bytes, got %d", crypto.ErrInvalidArgument, keyLen)
	}

	return crypto.NewSecureBufferFromBytes(argon2.IDKey(secret, salt, time, memory, threads, keyLen))
}

// DeriveKeyScrypt derives a key using scrypt and returns it in a
// SecureBuffer. n must be a power of two of at least MinScryptN.
func DeriveKeyScrypt(secret, salt []byte, n, r, p, keyLen int) (*crypto.SecureBuffer[byte], error) {
	if len(secret) == 0 {
		return nil, fmt.Errorf("%w: key material cannot be empty", crypto.ErrInvalidArgument)
	}

	if len(salt) < MinSaltSize {
		return nil, fmt.Errorf("%w: salt must be at least %d bytes, got %d", crypto.ErrInvalidArgument, MinSaltSize, len(salt))
	}

	if n < MinScryptN || n&(n-1) != 0 {
		return nil, fmt.Errorf("%w: scrypt N must be a power of two >= %d, got %d", crypto.ErrInvalidArgument, MinScryptN, n)
	}

	if keyLen <= 0 || keyLen > 128 {
		return nil, fmt.Errorf("%w: keyLen must be between 1 and 128 bytes, got %d", crypto.ErrInvalidArgument, keyLen)
	}

	key, err := scrypt.Key(secret, salt, n, r, p, keyLen)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", crypto.ErrInvalidArgument, err)
	}
	return crypto.NewSecureBufferFromBytes(key)
}

// GenerateKey fills a new SecureBuffer with size random bytes.
func GenerateKey(size int) (*crypto.SecureBuffer[byte], error) {
	if size < 16 {
		return nil, fmt.Errorf("%w: key size must be at least 16 bytes, got %d", crypto.ErrInvalidArgument, size)
	}

	key, err := crypto.Allocate[byte](size)
	if err != nil {
		return nil, err
	}
	if _, err := rand.Read(key.Bytes()); err != nil {
		key.Release()
		return nil, fmt.Errorf("failed to generate key: %w", err)
	}
	return key, nil
}
