/*
 * This Source Code Form is subject to the terms of the Mozilla Public License, v. 2.0.
 * If a copy of the MPL was not distributed with this file, You can obtain one at
 * https://mozilla.org/MPL/2.0/.
 */

// bridge.go: Conversions between plaintext, SecureBuffer, EncryptedSecret and SecureString
package core

import (
	"fmt"

	"github.com/awnumar/memguard"

	"github.com/gitrgoliveira/go-securemem/internal/crypto"
	"github.com/gitrgoliveira/go-securemem/secure"
)

// zeroPlainText wipes caller-supplied plaintext; replaced in tests.
var zeroPlainText = secure.Zero

// FromPlainText seals chars into a SecureString and zeroes chars before
// returning. Empty input yields an empty SecureString and leaves chars alone.
func FromPlainText(chars []byte) *SecureString {
	if len(chars) == 0 {
		return &SecureString{}
	}
	defer zeroPlainText(chars)

	n := len(chars)
	return &SecureString{
		enclave: memguard.NewEnclave(chars),
		length:  n,
	}
}

// FromString seals s into a SecureString. The string itself is immutable and
// stays in memory until collected; prefer FromPlainText.
func FromString(s string) *SecureString {
	return FromPlainText([]byte(s))
}

// FromSecureBuffer seals the bytes of buf into a SecureString, one byte per
// character. It takes ownership of buf and releases it on every path.
func FromSecureBuffer(buf *crypto.SecureBuffer[byte]) (*SecureString, error) {
	if buf == nil {
		return nil, fmt.Errorf("%w: nil secure buffer", ErrInvalidArgument)
	}
	defer buf.Release()

	if buf.Released() {
		return nil, ErrBufferReleased
	}
	if buf.Size() == 0 {
		return &SecureString{}, nil
	}

	// NewEnclave wipes its source; Release zeroes it again before unmapping.
	return &SecureString{
		enclave: memguard.NewEnclave(buf.Bytes()),
		length:  buf.Size(),
	}, nil
}

// ToPlainText returns the contents of ss as an ordinary string.
//
// This is the least safe operation in the package: the returned string is
// immutable heap memory that cannot be zeroed and lives until the garbage
// collector reclaims it. Use it only for APIs that accept nothing else.
func ToPlainText(ss *SecureString) (string, error) {
	if ss == nil {
		return "", nil
	}
	lb, err := ss.open()
	if err != nil || lb == nil {
		return "", err
	}
	defer lb.Destroy()
	return string(lb.Bytes()), nil
}

// Bridge converts between SecureStrings and EncryptedSecrets through an
// AtRestProtector.
type Bridge struct {
	protector *AtRestProtector
}

// NewBridge creates a Bridge over protector.
func NewBridge(protector *AtRestProtector) (*Bridge, error) {
	if protector == nil {
		return nil, fmt.Errorf("%w: nil protector", ErrInvalidArgument)
	}
	return &Bridge{protector: protector}, nil
}

// Protector returns the underlying AtRestProtector.
func (b *Bridge) Protector() *AtRestProtector {
	return b.protector
}

// FromEncryptedSecret decrypts secret and seals the result into a SecureString.
func (b *Bridge) FromEncryptedSecret(secret *EncryptedSecret) (*SecureString, error) {
	buf, err := b.protector.Decrypt(secret)
	if err != nil {
		return nil, err
	}
	return FromSecureBuffer(buf)
}

// ToEncryptedSecret encrypts the contents of ss. A nil or empty ss yields
// (nil, nil) rather than an error; a destroyed ss is an ErrInvalidArgument.
func (b *Bridge) ToEncryptedSecret(ss *SecureString) (*EncryptedSecret, error) {
	if ss == nil {
		return nil, nil
	}

	lb, err := ss.open()
	if err != nil {
		return nil, err
	}
	if lb == nil {
		return nil, nil
	}

	buf, err := crypto.Allocate[byte](lb.Size(), b.protector.cfg.bufferOptions()...)
	if err != nil {
		lb.Destroy()
		return nil, err
	}
	err = buf.CopyFrom(lb.Bytes())
	lb.Destroy()
	if err != nil {
		buf.Release()
		return nil, err
	}

	return b.protector.Encrypt(buf)
}
