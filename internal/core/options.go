/*
 * This Source Code Form is subject to the terms of the Mozilla Public License, v. 2.0.
 * If a copy of the MPL was not distributed with this file, You can obtain one at
 * https://mozilla.org/MPL/2.0/.
 */

// options.go: Configuration options for go-securemem
package core

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/dustin/go-humanize"

	"github.com/gitrgoliveira/go-securemem/internal/crypto"
)

const (
	// DefaultMaxSecretSize bounds the plaintext accepted by an AtRestProtector
	DefaultMaxSecretSize = 1 * 1024 * 1024 // 1MB
	// MaxSecretSizeLimit is the largest limit that may be configured
	MaxSecretSizeLimit = 64 * 1024 * 1024
	// MinSecretSizeLimit is the smallest limit that may be configured
	MinSecretSizeLimit = 1

	// EnvMaxSecretSize overrides DefaultMaxSecretSize, e.g. "64KiB"
	EnvMaxSecretSize = "SECUREMEM_MAX_SECRET_SIZE"
	// EnvBackend selects the default protection backend by name
	EnvBackend = "SECUREMEM_BACKEND"
)

type Config struct {
	Protector     Protector
	Logger        *slog.Logger
	MaxSecretSize int
	LockSwap      bool
}

// Option defines functional options for an AtRestProtector (backend, logger, limits, swap locking)
type Option func(*Config)

// WithProtector selects the protection backend. Without it the platform
// default (or the backend named by SECUREMEM_BACKEND) is used.
func WithProtector(p Protector) Option {
	return func(cfg *Config) {
		cfg.Protector = p
	}
}

// WithLogger sets the logger used for degraded-protection warnings.
func WithLogger(logger *slog.Logger) Option {
	return func(cfg *Config) {
		cfg.Logger = logger
	}
}

// WithLockSwap controls swap locking of the buffers returned by Decrypt (default: true).
func WithLockSwap(lock bool) Option {
	return func(cfg *Config) {
		cfg.LockSwap = lock
	}
}

// WithMaxSecretSize sets the largest plaintext, in bytes, the protector
// will encrypt or decrypt.
func WithMaxSecretSize(size int) (Option, error) {
	if size < MinSecretSizeLimit || size > MaxSecretSizeLimit {
		return nil, fmt.Errorf("%w: max secret size must be between %d byte and %s, got %d",
			crypto.ErrInvalidArgument, MinSecretSizeLimit, humanize.IBytes(MaxSecretSizeLimit), size)
	}

	return func(cfg *Config) {
		cfg.MaxSecretSize = size
	}, nil
}

// newConfig returns the defaults with environment overrides applied.
func newConfig() (*Config, error) {
	cfg := &Config{
		MaxSecretSize: DefaultMaxSecretSize,
		LockSwap:      true,
	}

	if envLimit, exists := os.LookupEnv(EnvMaxSecretSize); exists {
		limit, err := humanize.ParseBytes(envLimit)
		if err != nil {
			return nil, fmt.Errorf("%w: %s=%q: %v", crypto.ErrInvalidArgument, EnvMaxSecretSize, envLimit, err)
		}
		if limit < MinSecretSizeLimit || limit > MaxSecretSizeLimit {
			return nil, fmt.Errorf("%w: %s must be between %d byte and %s, got %s",
				crypto.ErrInvalidArgument, EnvMaxSecretSize, MinSecretSizeLimit,
				humanize.IBytes(MaxSecretSizeLimit), humanize.IBytes(limit))
		}
		cfg.MaxSecretSize = int(limit) // #nosec G115 -- bounded by MaxSecretSizeLimit above
	}

	return cfg, nil
}

func (cfg *Config) bufferOptions() []crypto.BufferOption {
	return []crypto.BufferOption{
		crypto.WithLockSwap(cfg.LockSwap),
		crypto.WithMaxBytes(cfg.MaxSecretSize),
		crypto.WithBufferLogger(cfg.Logger),
	}
}
