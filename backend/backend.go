package backend

import (
	"errors"

	"github.com/gogpu/bucketoffset"
)

// Backend name constants.
const (
	// BackendSoftware is the name of the goroutine workgroup emulator.
	BackendSoftware = "software"
	// BackendNative is the name of the pure Go GPU backend (gogpu/wgpu).
	BackendNative = "native"
	// BackendRust is the name of the wgpu-native GPU backend.
	BackendRust = "rust"
)

var (
	// ErrBackendNotAvailable is returned when a backend is not registered
	// or its factory declines to build one (e.g. missing build tag).
	ErrBackendNotAvailable = errors.New("backend: not available")

	// ErrNotInitialized is returned when an accelerator is used before Init.
	ErrNotInitialized = errors.New("backend: not initialized")
)

// Factory builds an uninitialized accelerator. A factory may return nil
// when the backend is compiled out.
type Factory func() bucketoffset.Accelerator
