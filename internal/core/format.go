/*
 * This Source Code Form is subject to the terms of the Mozilla Public License, v. 2.0.
 * If a copy of the MPL was not distributed with this file, You can obtain one at
 * https://mozilla.org/MPL/2.0/.
 */

// format.go: Protected blob layout for the AES-GCM backends
package core

const (
	// MagicBytes is the blob signature "SMP" (SecureMem Protected).
	MagicBytes = "SMP"
	// Version is the current blob format version (1).
	Version = 1
	// NonceSize is the size of the nonce for AES-GCM.
	NonceSize = 12
	// HeaderSize is the total size of the blob header.
	// Blob format: [3 bytes magic][1 byte version][12 bytes nonce][ciphertext+tag]
	HeaderSize = len(MagicBytes) + 1 + NonceSize
	// EntropySize is the length of the auxiliary entropy value.
	EntropySize = 16
)

// auxiliaryEntropy is mixed into every protect/unprotect call. It is a
// compiled-in constant and not a secret.
var auxiliaryEntropy = [EntropySize]byte{194, 164, 235, 6, 138, 248, 171, 239, 24, 216, 11, 22, 137, 199, 215, 133}

// AuxiliaryEntropy returns a copy of the fixed auxiliary entropy value.
func AuxiliaryEntropy() [EntropySize]byte {
	return auxiliaryEntropy
}
