/*
 * This Source Code Form is subject to the terms of the Mozilla Public License, v. 2.0.
 * If a copy of the MPL was not distributed with this file, You can obtain one at
 * https://mozilla.org/MPL/2.0/.
 */

package crypto

import (
	"errors"
	"fmt"
)

// SanitizeError removes sensitive details for external consumption
func SanitizeError(err error) error {
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, ErrInvalidArgument):
		return fmt.Errorf("invalid argument")
	case errors.Is(err, ErrUnsupportedElementType):
		return fmt.Errorf("unsupported element type")
	case errors.Is(err, ErrProtectionFailure):
		return fmt.Errorf("secret could not be protected or unprotected")
	case errors.Is(err, ErrResourceFailure):
		return fmt.Errorf("secure memory unavailable")
	default:
		// Generic error for unknown cases
		return fmt.Errorf("secure memory operation failed")
	}
}

// Error taxonomy for secure memory operations
var (
	ErrInvalidArgument        = errors.New("invalid argument")
	ErrUnsupportedElementType = errors.New("unsupported element type")
	ErrProtectionFailure      = errors.New("protection failure")
	ErrResourceFailure        = errors.New("resource failure")

	ErrIndexOutOfRange    = errors.New("index out of range")
	ErrBufferReleased     = errors.New("secure buffer already released")
	ErrSwapLockFailed     = errors.New("swap lock failed")
	ErrBackendUnavailable = errors.New("protection backend unavailable")
)

// ProtectionError reports a failed call into a protection backend.
type ProtectionError struct {
	Op      string // "protect" or "unprotect"
	Backend string // backend name, e.g. "dpapi", "keychain"
	Length  int    // plaintext length in bytes, -1 if unknown
	Err     error  // Underlying error
}

func (e *ProtectionError) Error() string {
	if e.Length >= 0 {
		return fmt.Sprintf("%s via %s (%d bytes): %v", e.Op, e.Backend, e.Length, e.Err)
	}
	return fmt.Sprintf("%s via %s: %v", e.Op, e.Backend, e.Err)
}

func (e *ProtectionError) Unwrap() error {
	return e.Err
}

// Is reports every ProtectionError as an ErrProtectionFailure.
func (e *ProtectionError) Is(target error) bool {
	return target == ErrProtectionFailure
}

// NewProtectionError creates a new ProtectionError
func NewProtectionError(op, backend string, length int, err error) *ProtectionError {
	return &ProtectionError{
		Op:      op,
		Backend: backend,
		Length:  length,
		Err:     err,
	}
}

// ResourceError reports a failed page allocation or swap lock.
type ResourceError struct {
	Op   string // "alloc", "lock", "unlock", "free"
	Size int    // bytes involved
	Err  error
}

func (e *ResourceError) Error() string {
	return fmt.Sprintf("%s %d bytes: %v", e.Op, e.Size, e.Err)
}

func (e *ResourceError) Unwrap() error {
	return e.Err
}

// Is reports every ResourceError as an ErrResourceFailure.
func (e *ResourceError) Is(target error) bool {
	return target == ErrResourceFailure
}

// WrapError adds context to an error
func WrapError(context string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", context, err)
}
