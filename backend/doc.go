// Package backend provides the registry of bucket-offset accelerators.
//
// Backends register a factory from an init() function and are selected by
// name at runtime. The software backend is always registered on import:
//
//	import _ "github.com/gogpu/bucketoffset/backend"
//
// GPU backends are opt-in through blank imports:
//
//	import _ "github.com/gogpu/bucketoffset/backend/native" // pure Go wgpu HAL (Vulkan)
//	import _ "github.com/gogpu/bucketoffset/backend/rust"   // wgpu-native, needs -tags rust
//
// # Backend Selection
//
// Use Default() for the first registered backend in priority order, or
// Get() to request one by name:
//
//	accel := backend.Default()
//	accel := backend.Get("native")
//
// There is no fallback after selection: if the chosen backend cannot
// acquire a device the run fails with a device-acquisition error.
//
// # Available Backends
//
//   - "rust": wgpu-native through the openfluke/webgpu binding
//   - "native": gogpu/wgpu HAL, Vulkan backend
//   - "software": workgroup emulation on goroutines (always available)
package backend
