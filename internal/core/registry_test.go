/*
 * This Source Code Form is subject to the terms of the Mozilla Public License, v. 2.0.
 * If a copy of the MPL was not distributed with this file, You can obtain one at
 * https://mozilla.org/MPL/2.0/.
 */

// registry_test.go: Tests for backend selection
package core

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBackends(t *testing.T) {
	names := Backends()
	for _, want := range []string{"age", "dpapi", "keychain", "local"} {
		assert.Contains(t, names, want)
	}
	assert.IsIncreasing(t, names)
}

func TestNewProtector_Unknown(t *testing.T) {
	_, err := NewProtector("rot13")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidArgument))
	assert.Contains(t, err.Error(), "local")
}

func TestNewProtector_Keychain(t *testing.T) {
	cleanup := setupMockKeyring()
	defer cleanup()

	p, err := NewProtector(" Keychain ")
	require.NoError(t, err)
	assert.Equal(t, "keychain", p.Name())

	p, err = NewProtector("age")
	require.NoError(t, err)
	assert.Equal(t, "age", p.Name())
}

func TestNewProtector_DPAPI(t *testing.T) {
	p, err := NewProtector("dpapi")
	if runtime.GOOS != "windows" {
		assert.True(t, errors.Is(err, ErrBackendUnavailable))
		return
	}
	require.NoError(t, err)
	assert.Equal(t, "dpapi", p.Name())
}

func TestDefaultProtector_Env(t *testing.T) {
	cleanup := setupMockKeyring()
	defer cleanup()

	t.Setenv(EnvBackend, "keychain")
	p, err := DefaultProtector(nil)
	require.NoError(t, err)
	assert.Equal(t, "keychain", p.Name())

	t.Setenv(EnvBackend, "nope")
	_, err = DefaultProtector(nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), EnvBackend)
}

func TestRegisterProtector(t *testing.T) {
	t.Cleanup(func() {
		registryMu.Lock()
		delete(factories, "failing")
		registryMu.Unlock()
	})

	require.NoError(t, RegisterProtector("Failing", func() (Protector, error) {
		return &failingProtector{}, nil
	}))
	assert.Error(t, RegisterProtector("failing", func() (Protector, error) { return nil, nil }))
	assert.True(t, errors.Is(RegisterProtector("", nil), ErrInvalidArgument))

	t.Setenv(EnvBackend, "failing")
	p, err := NewAtRestProtector()
	require.NoError(t, err)
	assert.Equal(t, "failing", p.Backend().Name())
}

func TestDefaultProtector_WarnsOnPlaintextStaging(t *testing.T) {
	cleanup := setupMockKeyring()
	defer cleanup()

	tests := []struct {
		backend  string
		wantWarn bool
	}{
		{"age", true},
		{"keychain", false},
	}

	for _, tt := range tests {
		t.Run(tt.backend, func(t *testing.T) {
			var logs bytes.Buffer
			logger := slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelWarn}))

			t.Setenv(EnvBackend, tt.backend)
			p, err := DefaultProtector(logger)
			require.NoError(t, err)
			assert.Equal(t, tt.backend, p.Name())

			if tt.wantWarn {
				assert.Contains(t, logs.String(), "unwiped heap memory")
				assert.Contains(t, logs.String(), "backend="+tt.backend)
			} else {
				assert.Empty(t, logs.String())
			}
		})
	}
}

func TestDefaultBackend_DoesNotStagePlaintext(t *testing.T) {
	for _, name := range []string{defaultBackend, fallbackBackend} {
		assert.NotEqual(t, "age", name)
	}
}

func TestRegistry_ConcurrentAccess(t *testing.T) {
	var names []string
	t.Cleanup(func() {
		registryMu.Lock()
		for _, name := range names {
			delete(factories, name)
		}
		registryMu.Unlock()
	})
	for i := 0; i < 8; i++ {
		names = append(names, fmt.Sprintf("concurrent-%d", i))
	}

	var wg sync.WaitGroup
	for _, name := range names {
		wg.Add(2)
		go func(name string) {
			defer wg.Done()
			assert.NoError(t, RegisterProtector(name, func() (Protector, error) {
				return &failingProtector{}, nil
			}))
		}(name)
		go func() {
			defer wg.Done()
			_ = Backends()
			_, _ = NewProtector("concurrent-0")
		}()
	}
	wg.Wait()

	for _, name := range names {
		assert.Contains(t, Backends(), name)
	}
}
