/*
 * This Source Code Form is subject to the terms of the Mozilla Public License, v. 2.0.
 * If a copy of the MPL was not distributed with this file, You can obtain one at
 * https://mozilla.org/MPL/2.0/.
 */

package crypto

import (
	"fmt"
	"log/slog"
	"math"
	"reflect"
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/dustin/go-humanize"

	"github.com/gitrgoliveira/go-securemem/secure"
)

// SecureBuffer holds a fixed number of primitive elements in memory that is
// allocated outside the Go heap, optionally locked against swap, and zeroed
// exactly once on Release.
//
// The backing address never changes between Allocate and Release. A
// SecureBuffer has a single owner; passing it to a consuming operation
// (encryption, conversion to a SecureString) transfers ownership and the
// callee releases it.
type SecureBuffer[T any] struct {
	mu       sync.Mutex
	mem      []byte
	count    int
	size     int
	locked   bool
	lockErr  error
	released bool
	logger   *slog.Logger
}

type bufferConfig struct {
	lockSwap bool
	maxBytes int
	logger   *slog.Logger
}

// BufferOption configures Allocate.
type BufferOption func(*bufferConfig)

// WithLockSwap controls whether the buffer is locked against swap (default: true).
func WithLockSwap(lock bool) BufferOption {
	return func(cfg *bufferConfig) {
		cfg.lockSwap = lock
	}
}

// WithMaxBytes rejects allocations larger than n bytes. Zero means no limit.
func WithMaxBytes(n int) BufferOption {
	return func(cfg *bufferConfig) {
		cfg.maxBytes = n
	}
}

// WithBufferLogger sets the logger used to report degraded protection.
func WithBufferLogger(logger *slog.Logger) BufferOption {
	return func(cfg *bufferConfig) {
		cfg.logger = logger
	}
}

// lockMemory pins buffer pages against swap. Tests replace it to force
// lock failures.
var lockMemory = secure.LockMemory

var releaseObserver atomic.Pointer[func([]byte)]

// SetReleaseObserver installs fn to be called with the backing memory of
// every released buffer, after it has been zeroed and before it is freed.
// It exists so tests can inspect wiped memory. The returned func restores
// the previous observer.
func SetReleaseObserver(fn func(raw []byte)) (restore func()) {
	var next *func([]byte)
	if fn != nil {
		next = &fn
	}
	prev := releaseObserver.Swap(next)
	return func() {
		releaseObserver.Store(prev)
	}
}

// ElementSize returns the size in bytes of T, or ErrUnsupportedElementType
// when T is not a fixed-size primitive.
func ElementSize[T any]() (int, error) {
	t := reflect.TypeFor[T]()
	switch t.Kind() {
	case reflect.Int8, reflect.Uint8, reflect.Bool,
		reflect.Int16, reflect.Uint16,
		reflect.Int32, reflect.Uint32, reflect.Float32,
		reflect.Int64, reflect.Uint64, reflect.Float64:
		return int(t.Size()), nil
	default:
		return 0, fmt.Errorf("%w: %s (valid kinds: int8, uint8, int16, uint16, int32, uint32, int64, uint64, float32, float64, bool)",
			ErrUnsupportedElementType, t)
	}
}

// Allocate creates a SecureBuffer of count elements.
//
// The element type is validated before any memory is reserved. Failure to
// lock the buffer against swap is not fatal: the buffer is returned, a
// warning is logged and LockErr reports the cause.
func Allocate[T any](count int, opts ...BufferOption) (*SecureBuffer[T], error) {
	elemSize, err := ElementSize[T]()
	if err != nil {
		return nil, err
	}
	if count < 0 {
		return nil, fmt.Errorf("%w: negative element count %d", ErrInvalidArgument, count)
	}
	if count > math.MaxInt/elemSize {
		return nil, fmt.Errorf("%w: %d elements of %d bytes overflows", ErrInvalidArgument, count, elemSize)
	}

	cfg := &bufferConfig{
		lockSwap: true,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(cfg)
	}

	size := count * elemSize
	if cfg.maxBytes > 0 && size > cfg.maxBytes {
		return nil, fmt.Errorf("%w: secret of %s exceeds limit of %s", ErrInvalidArgument,
			humanize.IBytes(uint64(size)), humanize.IBytes(uint64(cfg.maxBytes)))
	}

	mem, err := secure.AllocPages(size)
	if err != nil {
		return nil, &ResourceError{Op: "alloc", Size: size, Err: err}
	}

	s := &SecureBuffer[T]{
		mem:    mem,
		count:  count,
		size:   size,
		logger: cfg.logger,
	}

	if cfg.lockSwap && size > 0 {
		if err := lockMemory(mem); err != nil {
			s.lockErr = &ResourceError{Op: "lock", Size: size, Err: fmt.Errorf("%w: %w", ErrSwapLockFailed, err)}
			s.logger.Warn("secure buffer is not locked against swap",
				"size", humanize.IBytes(uint64(size)), "error", err)
		} else {
			s.locked = true
		}
	}

	return s, nil
}

// NewSecureBufferFromBytes copies b into a new SecureBuffer and zeroes b,
// whether or not the allocation succeeds.
func NewSecureBufferFromBytes(b []byte, opts ...BufferOption) (*SecureBuffer[byte], error) {
	return FromSlice(b, opts...)
}

// FromSlice copies src into a new SecureBuffer and zeroes src, whether or
// not the allocation succeeds.
func FromSlice[T secure.Primitive](src []T, opts ...BufferOption) (*SecureBuffer[T], error) {
	defer secure.ZeroElements(src)

	s, err := Allocate[T](len(src), opts...)
	if err != nil {
		return nil, err
	}
	copy(s.elements(), src)
	return s, nil
}

// elements returns the typed view of the backing memory. Caller holds mu
// or owns the buffer exclusively.
func (s *SecureBuffer[T]) elements() []T {
	if s.released || s.count == 0 {
		return nil
	}
	return unsafe.Slice((*T)(unsafe.Pointer(unsafe.SliceData(s.mem))), s.count)
}

// Read returns the element at index i.
func (s *SecureBuffer[T]) Read(i int) (T, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var zero T
	if s.released {
		return zero, ErrBufferReleased
	}
	if i < 0 || i >= s.count {
		return zero, fmt.Errorf("%w: index %d, length %d", ErrIndexOutOfRange, i, s.count)
	}
	return s.elements()[i], nil
}

// Write stores v at index i.
func (s *SecureBuffer[T]) Write(i int, v T) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.released {
		return ErrBufferReleased
	}
	if i < 0 || i >= s.count {
		return fmt.Errorf("%w: index %d, length %d", ErrIndexOutOfRange, i, s.count)
	}
	s.elements()[i] = v
	return nil
}

// Fill sets every element to v.
func (s *SecureBuffer[T]) Fill(v T) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.released {
		return ErrBufferReleased
	}
	elems := s.elements()
	for i := range elems {
		elems[i] = v
	}
	return nil
}

// CopyFrom copies src into the buffer. src must have exactly Len elements;
// it is not zeroed.
func (s *SecureBuffer[T]) CopyFrom(src []T) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.released {
		return ErrBufferReleased
	}
	if len(src) != s.count {
		return fmt.Errorf("%w: %d elements into a buffer of %d", ErrInvalidArgument, len(src), s.count)
	}
	copy(s.elements(), src)
	return nil
}

// Elements returns the elements in place. The slice aliases the protected
// memory: do not retain it past Release. Returns nil once released.
func (s *SecureBuffer[T]) Elements() []T {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.elements()
}

// Bytes returns the raw backing bytes in place. Returns nil once released.
func (s *SecureBuffer[T]) Bytes() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.released {
		return nil
	}
	return s.mem
}

// Len returns the number of elements.
func (s *SecureBuffer[T]) Len() int {
	return s.count
}

// Size returns the length of the buffer in bytes.
func (s *SecureBuffer[T]) Size() int {
	return s.size
}

// Locked reports whether the buffer is currently locked against swap.
func (s *SecureBuffer[T]) Locked() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.locked
}

// LockErr returns the reason the swap lock could not be taken, or nil.
// A non-nil result matches ErrSwapLockFailed and ErrResourceFailure.
func (s *SecureBuffer[T]) LockErr() error {
	return s.lockErr
}

// Released reports whether Release has run.
func (s *SecureBuffer[T]) Released() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.released
}

// Release zeroes the buffer, drops the swap lock and frees the memory.
// Subsequent calls are no-ops.
func (s *SecureBuffer[T]) Release() {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.released {
		return
	}
	s.released = true

	// Zero while still locked so the plaintext never reaches swap.
	secure.Zero(s.mem)

	if obs := releaseObserver.Load(); obs != nil {
		(*obs)(s.mem)
	}

	if s.locked {
		if err := secure.UnlockMemory(s.mem); err != nil {
			s.logger.Warn("secure buffer unlock failed", "size", len(s.mem), "error", err)
		}
		s.locked = false
	}

	if err := secure.FreePages(s.mem); err != nil {
		s.logger.Warn("secure buffer free failed", "size", len(s.mem), "error", err)
	}
	s.mem = nil
}
