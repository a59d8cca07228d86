/*
 * This Source Code Form is subject to the terms of the Mozilla Public License, v. 2.0.
 * If a copy of the MPL was not distributed with this file, You can obtain one at
 * https://mozilla.org/MPL/2.0/.
 */

// registry.go: Backend selection by name
package core

import (
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"
	"sync"
)

// ProtectorFactory builds a backend.
type ProtectorFactory func() (Protector, error)

// plaintextStager is implemented by backends whose underlying library
// copies plaintext into ordinary heap memory it does not wipe.
type plaintextStager interface {
	StagesPlaintext() bool
}

var (
	registryMu sync.RWMutex
	factories  = map[string]ProtectorFactory{
		"dpapi": func() (Protector, error) {
			p, err := NewDPAPIProtector(DPAPICurrentUser)
			if err != nil {
				return nil, err
			}
			return p, nil
		},
		"keychain": func() (Protector, error) {
			return NewKeychainProtector(""), nil
		},
		"age": func() (Protector, error) {
			p, err := NewKeychainAgeProtector("")
			if err != nil {
				return nil, err
			}
			return p, nil
		},
		"local": func() (Protector, error) {
			p, err := NewLocalProtector()
			if err != nil {
				return nil, err
			}
			return p, nil
		},
	}
)

// RegisterProtector makes a backend available to NewProtector and
// SECUREMEM_BACKEND. It returns an error if name is already registered.
func RegisterProtector(name string, factory ProtectorFactory) error {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" || factory == nil {
		return fmt.Errorf("%w: backend name and factory are required", ErrInvalidArgument)
	}

	registryMu.Lock()
	defer registryMu.Unlock()
	if _, exists := factories[name]; exists {
		return fmt.Errorf("backend %q is already registered", name)
	}
	factories[name] = factory
	return nil
}

// Backends returns the registered backend names, sorted.
func Backends() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NewProtector builds the backend registered under name.
func NewProtector(name string) (Protector, error) {
	registryMu.RLock()
	factory, ok := factories[strings.ToLower(strings.TrimSpace(name))]
	registryMu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: unknown backend %q (available: %s)",
			ErrInvalidArgument, name, strings.Join(Backends(), ", "))
	}
	return factory()
}

// DefaultProtector returns the backend named by SECUREMEM_BACKEND, or the
// platform default: dpapi on Windows, local elsewhere. The platform default
// never stages plaintext in unwiped heap memory; selecting such a backend
// through the environment logs a warning.
func DefaultProtector(logger *slog.Logger) (Protector, error) {
	if logger == nil {
		logger = slog.Default()
	}

	if name, ok := os.LookupEnv(EnvBackend); ok && strings.TrimSpace(name) != "" {
		p, err := NewProtector(name)
		if err != nil {
			return nil, WrapError(EnvBackend, err)
		}
		if s, ok := p.(plaintextStager); ok && s.StagesPlaintext() {
			logger.Warn("protection backend copies plaintext into unwiped heap memory",
				"backend", p.Name(), "source", EnvBackend)
		} else {
			logger.Debug("protection backend selected from environment", "backend", p.Name())
		}
		return p, nil
	}

	p, err := NewProtector(defaultBackend)
	if err == nil {
		return p, nil
	}
	if defaultBackend == fallbackBackend {
		return nil, err
	}

	logger.Warn("default protection backend unavailable, falling back",
		"backend", defaultBackend, "fallback", fallbackBackend, "error", err)
	return NewProtector(fallbackBackend)
}
