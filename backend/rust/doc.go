// Package rust runs the bucket-offset kernel on wgpu-native, the Rust
// WebGPU implementation, through the openfluke/webgpu bindings.
//
// The backend is compiled only with the "rust" build tag and needs the
// wgpu-native shared library at run time:
//
//	// Build with: go build -tags rust
//	import _ "github.com/gogpu/bucketoffset/backend/rust"
//
// Without the tag the package registers a factory returning nil, and
// backend.Default falls through to native and then software.
//
// It runs the same WGSL kernel as the native backend. Readback polls the
// device with Poll(false) until the map callback fires, the timeout
// expires, or the context is cancelled.
package rust
