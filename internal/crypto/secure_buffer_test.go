/*
 * This Source Code Form is subject to the terms of the Mozilla Public License, v. 2.0.
 * If a copy of the MPL was not distributed with this file, You can obtain one at
 * https://mozilla.org/MPL/2.0/.
 */

// secure_buffer_test.go: SecureBuffer tests for go-securemem
package crypto_test

import (
	"bytes"
	"crypto/rand"
	"errors"
	"testing"

	"github.com/gitrgoliveira/go-securemem/internal/crypto"
)

// observeRelease records a copy of the memory every released buffer held
// at the moment it was wiped.
func observeRelease(t *testing.T) *[][]byte {
	t.Helper()
	var seen [][]byte
	restore := crypto.SetReleaseObserver(func(raw []byte) {
		seen = append(seen, bytes.Clone(raw))
	})
	t.Cleanup(restore)
	return &seen
}

func assertAllZero(t *testing.T, raw []byte) {
	t.Helper()
	for i, b := range raw {
		if b != 0 {
			t.Fatalf("byte at index %d is not zero after release: got %d", i, b)
		}
	}
}

func TestSecureBufferRelease(t *testing.T) {
	seen := observeRelease(t)

	// Generate test key
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		t.Fatalf("failed to generate key: %v", err)
	}
	original := bytes.Clone(key)

	buf, err := crypto.NewSecureBufferFromBytes(key)
	if err != nil {
		t.Fatalf("NewSecureBufferFromBytes failed: %v", err)
	}

	// Verify data matches
	if !bytes.Equal(buf.Bytes(), original) {
		t.Fatal("SecureBuffer data does not match original key")
	}

	// The source must have been wiped by the transfer
	assertAllZero(t, key)

	buf.Release()

	if len(*seen) != 1 {
		t.Fatalf("expected one observed release, got %d", len(*seen))
	}
	if len((*seen)[0]) != 32 {
		t.Fatalf("expected 32 observed bytes, got %d", len((*seen)[0]))
	}
	assertAllZero(t, (*seen)[0])

	if buf.Bytes() != nil {
		t.Error("Bytes() must return nil after Release")
	}
	if !buf.Released() {
		t.Error("Released() must report true after Release")
	}
}

func TestSecureBufferCreate(t *testing.T) {
	key := []byte("test key material for buffer")
	want := bytes.Clone(key)

	buf, err := crypto.NewSecureBufferFromBytes(key)
	if err != nil {
		t.Fatalf("NewSecureBufferFromBytes failed: %v", err)
	}
	defer buf.Release()

	if buf.Len() != len(want) {
		t.Errorf("expected buffer length %d, got %d", len(want), buf.Len())
	}
	if buf.Size() != len(want) {
		t.Errorf("expected buffer size %d, got %d", len(want), buf.Size())
	}
	if !bytes.Equal(buf.Bytes(), want) {
		t.Error("SecureBuffer data does not match input")
	}
}

func TestSecureBufferMultipleRelease(t *testing.T) {
	seen := observeRelease(t)

	buf, err := crypto.Allocate[byte](32)
	if err != nil {
		t.Fatalf("Allocate failed: %v", err)
	}
	if _, err := rand.Read(buf.Bytes()); err != nil {
		t.Fatalf("failed to fill buffer: %v", err)
	}

	// Call Release multiple times - should be safe
	buf.Release()
	buf.Release()
	buf.Release()

	if len(*seen) != 1 {
		t.Errorf("buffer wiped %d times, expected exactly once", len(*seen))
	}

	var nilBuf *crypto.SecureBuffer[byte]
	nilBuf.Release()
}

func TestSecureBufferReadWrite(t *testing.T) {
	buf, err := crypto.Allocate[uint16](4)
	if err != nil {
		t.Fatalf("Allocate failed: %v", err)
	}
	defer buf.Release()

	if buf.Size() != 8 {
		t.Errorf("expected 8 bytes for 4 uint16, got %d", buf.Size())
	}

	for i := 0; i < buf.Len(); i++ {
		if err := buf.Write(i, uint16(1000+i)); err != nil {
			t.Fatalf("Write(%d) failed: %v", i, err)
		}
	}
	for i := 0; i < buf.Len(); i++ {
		v, err := buf.Read(i)
		if err != nil {
			t.Fatalf("Read(%d) failed: %v", i, err)
		}
		if v != uint16(1000+i) {
			t.Errorf("Read(%d) = %d, expected %d", i, v, 1000+i)
		}
	}

	elems := buf.Elements()
	if len(elems) != 4 || elems[3] != 1003 {
		t.Errorf("Elements() = %v, expected in-place view of written values", elems)
	}
}

func TestSecureBufferIndexOutOfRange(t *testing.T) {
	buf, err := crypto.Allocate[int32](3)
	if err != nil {
		t.Fatalf("Allocate failed: %v", err)
	}
	defer buf.Release()

	for _, idx := range []int{-1, 3, 100} {
		if _, err := buf.Read(idx); !errors.Is(err, crypto.ErrIndexOutOfRange) {
			t.Errorf("Read(%d): expected ErrIndexOutOfRange, got %v", idx, err)
		}
		if err := buf.Write(idx, 7); !errors.Is(err, crypto.ErrIndexOutOfRange) {
			t.Errorf("Write(%d): expected ErrIndexOutOfRange, got %v", idx, err)
		}
	}
}

func TestSecureBufferUseAfterRelease(t *testing.T) {
	buf, err := crypto.Allocate[byte](8)
	if err != nil {
		t.Fatalf("Allocate failed: %v", err)
	}
	buf.Release()

	if _, err := buf.Read(0); !errors.Is(err, crypto.ErrBufferReleased) {
		t.Errorf("Read after Release: expected ErrBufferReleased, got %v", err)
	}
	if err := buf.Write(0, 1); !errors.Is(err, crypto.ErrBufferReleased) {
		t.Errorf("Write after Release: expected ErrBufferReleased, got %v", err)
	}
	if buf.Elements() != nil {
		t.Error("Elements() must return nil after Release")
	}
	if buf.Locked() {
		t.Error("buffer must not report locked after Release")
	}
}

type point struct{ X, Y int32 }

func TestAllocateUnsupportedElementType(t *testing.T) {
	seen := observeRelease(t)

	tests := []struct {
		name     string
		allocate func() error
	}{
		{"struct", func() error { _, err := crypto.Allocate[point](4); return err }},
		{"string", func() error { _, err := crypto.Allocate[string](4); return err }},
		{"pointer", func() error { _, err := crypto.Allocate[*byte](4); return err }},
		{"platform int", func() error { _, err := crypto.Allocate[int](4); return err }},
		{"complex", func() error { _, err := crypto.Allocate[complex128](4); return err }},
		{"interface", func() error { _, err := crypto.Allocate[any](4); return err }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.allocate()
			if !errors.Is(err, crypto.ErrUnsupportedElementType) {
				t.Errorf("expected ErrUnsupportedElementType, got %v", err)
			}
		})
	}

	if len(*seen) != 0 {
		t.Errorf("rejected element types must not allocate, saw %d releases", len(*seen))
	}
}

func TestAllocateSupportedElementTypes(t *testing.T) {
	type secretByte byte

	tests := []struct {
		name     string
		size     func() (int, error)
		expected int
	}{
		{"int8", crypto.ElementSize[int8], 1},
		{"byte", crypto.ElementSize[byte], 1},
		{"named byte", crypto.ElementSize[secretByte], 1},
		{"bool", crypto.ElementSize[bool], 1},
		{"int16", crypto.ElementSize[int16], 2},
		{"uint16", crypto.ElementSize[uint16], 2},
		{"rune", crypto.ElementSize[rune], 4},
		{"uint32", crypto.ElementSize[uint32], 4},
		{"float32", crypto.ElementSize[float32], 4},
		{"int64", crypto.ElementSize[int64], 8},
		{"uint64", crypto.ElementSize[uint64], 8},
		{"float64", crypto.ElementSize[float64], 8},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			size, err := tt.size()
			if err != nil {
				t.Fatalf("ElementSize failed: %v", err)
			}
			if size != tt.expected {
				t.Errorf("ElementSize = %d, expected %d", size, tt.expected)
			}
		})
	}
}

func TestAllocateInvalidCount(t *testing.T) {
	if _, err := crypto.Allocate[byte](-1); !errors.Is(err, crypto.ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument for negative count, got %v", err)
	}

	if _, err := crypto.Allocate[uint64](64, crypto.WithMaxBytes(256)); !errors.Is(err, crypto.ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument above the size limit, got %v", err)
	}
}

func TestAllocateEmpty(t *testing.T) {
	buf, err := crypto.Allocate[byte](0)
	if err != nil {
		t.Fatalf("Allocate(0) failed: %v", err)
	}
	if buf.Len() != 0 || buf.Size() != 0 {
		t.Errorf("expected empty buffer, got len=%d size=%d", buf.Len(), buf.Size())
	}
	if buf.LockErr() != nil {
		t.Errorf("empty buffer should not report a lock failure: %v", buf.LockErr())
	}
	buf.Release()
	buf.Release()
}

func TestAllocateSwapLock(t *testing.T) {
	locked, err := crypto.Allocate[byte](64)
	if err != nil {
		t.Fatalf("Allocate failed: %v", err)
	}
	defer locked.Release()

	// mlock may be refused (RLIMIT_MEMLOCK); that must surface via LockErr
	if locked.Locked() == (locked.LockErr() != nil) {
		t.Errorf("Locked()=%v inconsistent with LockErr()=%v", locked.Locked(), locked.LockErr())
	}
	if err := locked.LockErr(); err != nil {
		if !errors.Is(err, crypto.ErrSwapLockFailed) || !errors.Is(err, crypto.ErrResourceFailure) {
			t.Errorf("lock failure should match ErrSwapLockFailed and ErrResourceFailure: %v", err)
		}
		t.Logf("swap lock unavailable (may be expected): %v", err)
	}

	unlocked, err := crypto.Allocate[byte](64, crypto.WithLockSwap(false))
	if err != nil {
		t.Fatalf("Allocate failed: %v", err)
	}
	defer unlocked.Release()

	if unlocked.Locked() {
		t.Error("buffer allocated with WithLockSwap(false) must not be locked")
	}
	if unlocked.LockErr() != nil {
		t.Errorf("unexpected lock error: %v", unlocked.LockErr())
	}
}

func TestFromSliceZeroesSource(t *testing.T) {
	src := []rune("correct horse")
	want := string(src)

	buf, err := crypto.FromSlice(src)
	if err != nil {
		t.Fatalf("FromSlice failed: %v", err)
	}
	defer buf.Release()

	if got := string(buf.Elements()); got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
	for i, r := range src {
		if r != 0 {
			t.Fatalf("source rune %d not zeroed: %q", i, r)
		}
	}
}

func TestFromSliceZeroesSourceOnFailure(t *testing.T) {
	src := []byte("too large for the configured limit")

	if _, err := crypto.FromSlice(src, crypto.WithMaxBytes(4)); err == nil {
		t.Fatal("expected FromSlice to fail above the size limit")
	}
	assertAllZero(t, src)
}

func TestSecureBufferFillAndCopyFrom(t *testing.T) {
	buf, err := crypto.Allocate[int16](4, crypto.WithLockSwap(false))
	if err != nil {
		t.Fatalf("Allocate failed: %v", err)
	}
	defer buf.Release()

	if err := buf.Fill(-7); err != nil {
		t.Fatalf("Fill failed: %v", err)
	}
	for i, v := range buf.Elements() {
		if v != -7 {
			t.Fatalf("element %d = %d after Fill, want -7", i, v)
		}
	}

	if err := buf.CopyFrom([]int16{1, 2, 3, 4}); err != nil {
		t.Fatalf("CopyFrom failed: %v", err)
	}
	if v, _ := buf.Read(3); v != 4 {
		t.Errorf("Read(3) = %d, want 4", v)
	}

	if err := buf.CopyFrom([]int16{1, 2}); !errors.Is(err, crypto.ErrInvalidArgument) {
		t.Errorf("short CopyFrom: expected ErrInvalidArgument, got %v", err)
	}

	buf.Release()
	if err := buf.Fill(0); !errors.Is(err, crypto.ErrBufferReleased) {
		t.Errorf("Fill after release: expected ErrBufferReleased, got %v", err)
	}
	if err := buf.CopyFrom(nil); !errors.Is(err, crypto.ErrBufferReleased) {
		t.Errorf("CopyFrom after release: expected ErrBufferReleased, got %v", err)
	}
}
