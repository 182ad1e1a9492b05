//go:build rust

package rust

import "errors"

// Package errors for rust backend.
var (
	// ErrNotInitialized is returned when operations are called before Init.
	ErrNotInitialized = errors.New("rust: backend not initialized")

	// ErrNoGPU is returned when no GPU adapter is available.
	ErrNoGPU = errors.New("rust: no GPU adapter available")

	// ErrInputTooLarge is returned when the input exceeds one workgroup.
	ErrInputTooLarge = errors.New("rust: input larger than one workgroup")
)
