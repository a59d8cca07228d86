/*
 * This Source Code Form is subject to the terms of the Mozilla Public License, v. 2.0.
 * If a copy of the MPL was not distributed with this file, You can obtain one at
 * https://mozilla.org/MPL/2.0/.
 */

package core

import "github.com/gitrgoliveira/go-securemem/internal/crypto"

// Re-export error taxonomy from internal/crypto
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

// WrapError adds context to an error
var WrapError = crypto.WrapError
