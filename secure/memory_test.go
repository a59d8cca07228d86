/*
 * This Source Code Form is subject to the terms of the Mozilla Public License, v. 2.0.
 * If a copy of the MPL was not distributed with this file, You can obtain one at
 * https://mozilla.org/MPL/2.0/.
 */

// memory_test.go: Memory primitive tests for go-securemem
package secure_test

import (
	"bytes"
	"crypto/rand"
	"testing"

	"github.com/gitrgoliveira/go-securemem/secure"
)

func TestLockUnlockMemory(t *testing.T) {
	// Create test buffer
	buf := make([]byte, 4096)
	if _, err := rand.Read(buf); err != nil {
		t.Fatalf("failed to generate test data: %v", err)
	}

	err := secure.LockMemory(buf)
	if err != nil {
		// On some systems, mlock may fail due to insufficient permissions
		// or resource limits. Log but don't fail the test.
		t.Logf("LockMemory failed (may be expected on some systems): %v", err)
	}

	// Unlock memory
	err = secure.UnlockMemory(buf)
	if err != nil {
		t.Logf("UnlockMemory failed: %v", err)
	}
}

func TestLockMemory_EmptyBuffer(t *testing.T) {
	// Test with empty buffer - should not fail
	buf := make([]byte, 0)

	err := secure.LockMemory(buf)
	if err != nil {
		t.Errorf("LockMemory failed for empty buffer: %v", err)
	}

	err = secure.UnlockMemory(buf)
	if err != nil {
		t.Errorf("UnlockMemory failed for empty buffer: %v", err)
	}
}

func TestMemoryZero(t *testing.T) {
	// Create test buffer with non-zero data
	buf := make([]byte, 1024)
	if _, err := rand.Read(buf); err != nil {
		t.Fatalf("failed to generate test data: %v", err)
	}

	// Verify buffer is not all zeros
	allZeros := true
	for _, b := range buf {
		if b != 0 {
			allZeros = false
			break
		}
	}
	if allZeros {
		t.Fatal("test buffer is already all zeros")
	}

	// Zero the buffer
	secure.Zero(buf)

	// Verify buffer is zeroed
	for i, b := range buf {
		if b != 0 {
			t.Errorf("byte at index %d is not zero after Zero(): got %d", i, b)
		}
	}
}

func TestMemoryZero_EmptyBuffer(t *testing.T) {
	// Test with empty buffer - should not panic
	buf := make([]byte, 0)
	secure.Zero(buf)
}

func TestSecureCompare(t *testing.T) {
	tests := []struct {
		name     string
		a        []byte
		b        []byte
		expected bool
	}{
		{"equal slices", []byte("hello"), []byte("hello"), true},
		{"different slices", []byte("hello"), []byte("world"), false},
		{"different lengths", []byte("hello"), []byte("hi"), false},
		{"empty slices", []byte{}, []byte{}, true},
		{"one empty", []byte("hello"), []byte{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := secure.SecureCompare(tt.a, tt.b)
			if result != tt.expected {
				t.Errorf("SecureCompare(%q, %q) = %v, expected %v", tt.a, tt.b, result, tt.expected)
			}
		})
	}
}

func TestMemoryLocking_CrossPlatform(t *testing.T) {
	// Test that memory locking works correctly on all platforms
	buf := make([]byte, 8192)
	if _, err := rand.Read(buf); err != nil {
		t.Fatalf("failed to generate test data: %v", err)
	}

	// Save original data
	original := make([]byte, len(buf))
	copy(original, buf)

	// Lock memory
	err := secure.LockMemory(buf)
	if err != nil {
		// Log error but continue - mlock may not be available
		t.Logf("LockMemory returned error (may be expected): %v", err)
	}

	// Verify data is unchanged
	if !bytes.Equal(buf, original) {
		t.Error("buffer data changed after LockMemory")
	}

	// Unlock memory
	err = secure.UnlockMemory(buf)
	if err != nil {
		t.Logf("UnlockMemory returned error: %v", err)
	}

	// Verify data is still unchanged
	if !bytes.Equal(buf, original) {
		t.Error("buffer data changed after UnlockMemory")
	}
}

func TestMemoryZero_NilBuffer(t *testing.T) {
	// Zero(nil) must be a no-op, not a panic
	secure.Zero(nil)
}

func TestZeroElements(t *testing.T) {
	ints := []int64{1, -2, 1 << 40}
	secure.ZeroElements(ints)
	for i, v := range ints {
		if v != 0 {
			t.Errorf("int64 at index %d is not zero: got %d", i, v)
		}
	}

	floats := []float32{1.5, 3.25}
	secure.ZeroElements(floats)
	for i, v := range floats {
		if v != 0 {
			t.Errorf("float32 at index %d is not zero: got %v", i, v)
		}
	}

	flags := []bool{true, true}
	secure.ZeroElements(flags)
	for i, v := range flags {
		if v {
			t.Errorf("bool at index %d is still set", i)
		}
	}

	runes := []rune("päss")
	secure.ZeroElements(runes)
	for i, v := range runes {
		if v != 0 {
			t.Errorf("rune at index %d is not zero: got %q", i, v)
		}
	}

	// Empty and nil slices are no-ops
	secure.ZeroElements([]uint16{})
	secure.ZeroElements[uint32](nil)
}

func TestAsBytes(t *testing.T) {
	words := []uint32{0x01020304, 0x05060708}
	raw := secure.AsBytes(words)
	if len(raw) != 8 {
		t.Fatalf("expected 8 bytes, got %d", len(raw))
	}

	// Writes through the byte view must land in the original slice
	secure.Zero(raw)
	if words[0] != 0 || words[1] != 0 {
		t.Errorf("zeroing the byte view did not clear the elements: %v", words)
	}

	if secure.AsBytes([]int16{}) != nil {
		t.Error("expected nil view for empty slice")
	}
}

func TestAllocPages(t *testing.T) {
	tests := []struct {
		name string
		size int
	}{
		{"single byte", 1},
		{"one page", 4096},
		{"multiple pages", 3*4096 + 17},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf, err := secure.AllocPages(tt.size)
			if err != nil {
				t.Fatalf("AllocPages(%d) failed: %v", tt.size, err)
			}
			defer func() {
				if err := secure.FreePages(buf); err != nil {
					t.Errorf("FreePages failed: %v", err)
				}
			}()

			if len(buf) != tt.size {
				t.Fatalf("expected %d bytes, got %d", tt.size, len(buf))
			}
			for i, b := range buf {
				if b != 0 {
					t.Fatalf("fresh allocation not zeroed at index %d: got %d", i, b)
				}
			}

			// Both ends of the region must be writable
			buf[0] = 0xAA
			if buf[0] != 0xAA {
				t.Error("first byte of allocated region is not writable")
			}
			buf[len(buf)-1] = 0x55
			if buf[len(buf)-1] != 0x55 {
				t.Error("last byte of allocated region is not writable")
			}
		})
	}
}

func TestAllocPages_ZeroAndNegative(t *testing.T) {
	buf, err := secure.AllocPages(0)
	if err != nil {
		t.Fatalf("AllocPages(0) failed: %v", err)
	}
	if buf != nil {
		t.Errorf("expected nil slice for zero size, got %d bytes", len(buf))
	}
	if err := secure.FreePages(buf); err != nil {
		t.Errorf("FreePages(nil) failed: %v", err)
	}

	if _, err := secure.AllocPages(-1); err == nil {
		t.Error("expected error for negative size")
	}
}
