// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package bucketoffset

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// DefaultSeed is the seed of the canonical run.
	DefaultSeed = 2

	// MaxLength is the largest input that fits one workgroup.
	MaxLength = 256
)

// Config holds the parameters of a harness run.
type Config struct {
	// Seed keys the ChaCha8 input generator.
	Seed uint64 `yaml:"seed"`

	// Length is the number of input elements, 1..MaxLength.
	Length int `yaml:"length"`

	// Backend selects an accelerator by registry name. Empty selects the
	// first available backend in priority order.
	Backend string `yaml:"backend"`

	// Timeout bounds the submission wait and the readback map wait.
	Timeout time.Duration `yaml:"timeout"`

	// SPIRV compiles the kernel to SPIR-V with naga before upload.
	SPIRV bool `yaml:"spirv"`

	// ListAll prints a cpu/gpu line for every index, not only mismatches.
	ListAll bool `yaml:"list_all"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level"`
}

// DefaultConfig returns the canonical configuration: seed 2, 256 elements.
func DefaultConfig() Config {
	return Config{
		Seed:     DefaultSeed,
		Length:   MaxLength,
		Timeout:  DefaultTimeout,
		LogLevel: "warn",
	}
}

// LoadConfig reads a YAML config file. Fields absent from the file keep
// their DefaultConfig values.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	return ParseConfig(data)
}

// ParseConfig decodes YAML on top of DefaultConfig and validates the
// result. Unknown keys are rejected.
func ParseConfig(data []byte) (Config, error) {
	cfg := DefaultConfig()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks every field.
func (c Config) Validate() error {
	if c.Length < 1 || c.Length > MaxLength {
		return fmt.Errorf("config: length %d out of range [1, %d]", c.Length, MaxLength)
	}
	if c.Timeout < 0 {
		return fmt.Errorf("config: negative timeout %v", c.Timeout)
	}
	if _, err := ParseLogLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// KernelOptions returns the options passed to the accelerator.
func (c Config) KernelOptions() KernelOptions {
	return KernelOptions{Timeout: c.Timeout, SPIRV: c.SPIRV}
}

// ParseLogLevel maps a level name to a slog.Level. The empty string is
// treated as warn.
func ParseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "", "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("config: unknown log level %q", s)
	}
}
