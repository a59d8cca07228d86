/*
 * This Source Code Form is subject to the terms of the Mozilla Public License, v. 2.0.
 * If a copy of the MPL was not distributed with this file, You can obtain one at
 * https://mozilla.org/MPL/2.0/.
 */

// Package securemem keeps secrets out of reach for as long as they live in a
// process: in memory, at rest, and on the way to APIs that only accept
// strings.
//
// Secrets move through a small number of containers, and every hand-off
// zeroes the container it came from:
//
//	plaintext -> SecureBuffer -> EncryptedSecret -> SecureBuffer -> SecureString
//
// # Features
//
//   - SecureBuffer: fixed-size buffers of primitive elements allocated outside
//     the Go heap, locked against swap (mlock/VirtualLock) and zeroed on Release
//   - At-rest protection bound to the current user: DPAPI on Windows, the OS
//     keychain, age X25519 identities, or an AES-256-GCM key derived from the
//     user and machine identity
//   - SecureString: an immutable secret sealed in a memguard enclave
//   - Structured errors that never carry secret material
//
// # Basic Usage
//
// Protect a password read from a terminal:
//
//	import "github.com/gitrgoliveira/go-securemem"
//
//	buf, err := securemem.NewSecureBufferFromBytes(password) // password is zeroed
//	if err != nil {
//	    return err
//	}
//
//	secret, err := securemem.Encrypt(buf) // buf is released
//	if err != nil {
//	    return err
//	}
//	defer secret.Dispose()
//
//	// Later
//	plain, err := securemem.Decrypt(secret)
//	if err != nil {
//	    return err
//	}
//	defer plain.Release()
//	use(plain.Bytes())
//
// # Typed Buffers
//
// Any fixed-size primitive can be held in a SecureBuffer:
//
//	words, err := securemem.Allocate[uint32](8)
//	defer words.Release()
//	_ = words.Write(0, 0xdeadbeef)
//
// Element types are checked before any memory is reserved: int, uint,
// uintptr, complex numbers, strings, pointers, structs and interfaces are
// rejected with ErrUnsupportedElementType.
//
// # Secure Strings
//
//	ss := securemem.FromPlainText(chars) // chars is zeroed
//	secret, err := securemem.ToEncryptedSecret(ss)
//
// ToPlainText converts back to an ordinary string for APIs that accept
// nothing else. That string cannot be wiped; treat it as a last resort.
//
// # Backend Selection
//
// The package-level functions use a default protector built on first use.
// Set SECUREMEM_BACKEND to "dpapi", "keychain", "age" or "local" to choose
// the backend, or build one explicitly:
//
//	p, err := securemem.NewAtRestProtector(
//	    securemem.WithProtector(securemem.NewKeychainProtector("my-app")),
//	)
//
// # Security Considerations
//
//   - Release every SecureBuffer and Dispose every EncryptedSecret; prefer defer
//   - A buffer that could not be locked against swap still works; check
//     LockErr if swap protection is a hard requirement
//   - The auxiliary entropy mixed into every blob is a compiled-in constant,
//     not a secret
//   - Call CatchInterrupt early in main so enclave keys are wiped on Ctrl-C
package securemem

import (
	"sync"

	"github.com/awnumar/memguard"

	"github.com/gitrgoliveira/go-securemem/internal/core"
	"github.com/gitrgoliveira/go-securemem/internal/crypto"
	"github.com/gitrgoliveira/go-securemem/secure"
)

// SecureBuffer is a fixed-size buffer of primitive elements in locked,
// off-heap memory (re-exported from internal/crypto).
type SecureBuffer[T any] = crypto.SecureBuffer[T]

// BufferOption configures Allocate (re-exported from internal/crypto).
type BufferOption = crypto.BufferOption

// Primitive is the set of element types FromSlice accepts.
type Primitive = secure.Primitive

// Re-exported types from internal/core.
type (
	AtRestProtector = core.AtRestProtector
	EncryptedSecret = core.EncryptedSecret
	SecureString    = core.SecureString
	Bridge          = core.Bridge
	Protector       = core.Protector
	Option          = core.Option

	KeychainProtector = core.KeychainProtector
	AgeProtector      = core.AgeProtector
	LocalProtector    = core.LocalProtector
	DPAPIProtector    = core.DPAPIProtector

	LocalOption = core.LocalOption
	KDF         = core.KDF
	DPAPIScope  = core.DPAPIScope

	ProtectionError = crypto.ProtectionError
	ResourceError   = crypto.ResourceError
)

// Buffer options (re-exported from internal/crypto).
var (
	WithLockSwap     = crypto.WithLockSwap
	WithMaxBytes     = crypto.WithMaxBytes
	WithBufferLogger = crypto.WithBufferLogger
)

// Protector options (re-exported from internal/core).
var (
	WithProtector     = core.WithProtector
	WithLogger        = core.WithLogger
	WithMaxSecretSize = core.WithMaxSecretSize
	WithSwapLocking   = core.WithLockSwap
)

// Local backend options (re-exported from internal/core).
var (
	WithIdentity     = core.WithIdentity
	WithArgon2Params = core.WithArgon2Params
	WithPBKDF2       = core.WithPBKDF2
	WithScrypt       = core.WithScrypt
)

// Key derivation and backend constants (re-exported from internal/core).
const (
	DefaultPBKDF2Iterations = core.DefaultPBKDF2Iterations
	DefaultArgon2Time       = core.DefaultArgon2Time
	DefaultArgon2Memory     = core.DefaultArgon2Memory
	DefaultArgon2Threads    = core.DefaultArgon2Threads
	DefaultKeychainService  = core.DefaultKeychainService

	KDFArgon2id       = core.KDFArgon2id
	KDFPBKDF2         = core.KDFPBKDF2
	KDFScrypt         = core.KDFScrypt
	DPAPICurrentUser  = core.DPAPICurrentUser
	DPAPILocalMachine = core.DPAPILocalMachine

	EnvBackend       = core.EnvBackend
	EnvMaxSecretSize = core.EnvMaxSecretSize
)

// Constructors (re-exported from internal/core).
var (
	NewAtRestProtector      = core.NewAtRestProtector
	NewBridge               = core.NewBridge
	NewProtector            = core.NewProtector
	RegisterProtector       = core.RegisterProtector
	Backends                = core.Backends
	NewKeychainProtector    = core.NewKeychainProtector
	NewKeychainAgeProtector = core.NewKeychainAgeProtector
	GenerateAgeProtector    = core.GenerateAgeProtector
	ParseAgeProtector       = core.ParseAgeProtector
	NewLocalProtector       = core.NewLocalProtector
	NewDPAPIProtector       = core.NewDPAPIProtector
)

// Error taxonomy (re-exported from internal/crypto).
var (
	ErrInvalidArgument        = crypto.ErrInvalidArgument
	ErrUnsupportedElementType = crypto.ErrUnsupportedElementType
	ErrProtectionFailure      = crypto.ErrProtectionFailure
	ErrResourceFailure        = crypto.ErrResourceFailure
	ErrIndexOutOfRange        = crypto.ErrIndexOutOfRange
	ErrBufferReleased         = crypto.ErrBufferReleased
	ErrSwapLockFailed         = crypto.ErrSwapLockFailed
	ErrBackendUnavailable     = crypto.ErrBackendUnavailable
)

// SanitizeError maps err to a generic message safe to show outside the process.
var SanitizeError = crypto.SanitizeError

// Zero overwrites b with zeros. Use it on every plaintext slice you own.
var Zero = secure.Zero

// SecureCompare compares a and b in constant time.
var SecureCompare = secure.SecureCompare

// Allocate creates a SecureBuffer of count elements of T.
func Allocate[T any](count int, opts ...BufferOption) (*SecureBuffer[T], error) {
	return crypto.Allocate[T](count, opts...)
}

// FromSlice copies src into a new SecureBuffer and zeroes src.
func FromSlice[T Primitive](src []T, opts ...BufferOption) (*SecureBuffer[T], error) {
	return crypto.FromSlice(src, opts...)
}

// NewSecureBufferFromBytes copies b into a new SecureBuffer and zeroes b.
func NewSecureBufferFromBytes(b []byte, opts ...BufferOption) (*SecureBuffer[byte], error) {
	return crypto.NewSecureBufferFromBytes(b, opts...)
}

var defaultBridge = sync.OnceValues(func() (*core.Bridge, error) {
	p, err := core.NewAtRestProtector()
	if err != nil {
		return nil, err
	}
	return core.NewBridge(p)
})

// DefaultProtector returns the AtRestProtector used by the package-level
// functions, building it on first use.
func DefaultProtector() (*AtRestProtector, error) {
	b, err := defaultBridge()
	if err != nil {
		return nil, err
	}
	return b.Protector(), nil
}

// Encrypt protects buf with the default protector. buf is released before
// Encrypt returns, on success and on error.
func Encrypt(buf *SecureBuffer[byte]) (*EncryptedSecret, error) {
	p, err := DefaultProtector()
	if err != nil {
		buf.Release()
		return nil, err
	}
	return p.Encrypt(buf)
}

// Decrypt recovers secret with the default protector. The caller must
// Release the result.
func Decrypt(secret *EncryptedSecret) (*SecureBuffer[byte], error) {
	p, err := DefaultProtector()
	if err != nil {
		return nil, err
	}
	return p.Decrypt(secret)
}

// FromPlainText seals chars into a SecureString and zeroes chars.
func FromPlainText(chars []byte) *SecureString {
	return core.FromPlainText(chars)
}

// FromString seals s into a SecureString. s itself cannot be wiped.
func FromString(s string) *SecureString {
	return core.FromString(s)
}

// FromSecureBuffer seals buf into a SecureString and releases buf.
func FromSecureBuffer(buf *SecureBuffer[byte]) (*SecureString, error) {
	return core.FromSecureBuffer(buf)
}

// FromEncryptedSecret decrypts secret with the default protector into a
// SecureString.
func FromEncryptedSecret(secret *EncryptedSecret) (*SecureString, error) {
	b, err := defaultBridge()
	if err != nil {
		return nil, err
	}
	return b.FromEncryptedSecret(secret)
}

// ToEncryptedSecret encrypts ss with the default protector. A nil or empty
// ss yields (nil, nil).
func ToEncryptedSecret(ss *SecureString) (*EncryptedSecret, error) {
	b, err := defaultBridge()
	if err != nil {
		return nil, err
	}
	return b.ToEncryptedSecret(ss)
}

// ToPlainText returns ss as an ordinary string.
//
// The result cannot be zeroed and stays in memory until the garbage
// collector reclaims it. Call this only when an API accepts nothing else.
func ToPlainText(ss *SecureString) (string, error) {
	return core.ToPlainText(ss)
}

// Purge wipes the memguard session key and every sealed SecureString. All
// existing SecureStrings become unreadable.
func Purge() {
	memguard.Purge()
}

// CatchInterrupt wipes memguard state and exits when the process receives
// an interrupt signal.
func CatchInterrupt() {
	memguard.CatchInterrupt()
}
