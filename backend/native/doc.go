// Package native registers the pure Go GPU backend.
//
// The backend runs the bucket-offset kernel through gogpu/wgpu's HAL on
// Vulkan, with no CGO. Import it for its side effect:
//
//	import _ "github.com/gogpu/bucketoffset/backend/native"
//
// and select it with backend.Open(backend.BackendNative). To run on a
// device owned by a gogpu window, use NewShared with the window's
// gpucontext.DeviceProvider.
//
// The package registers nothing when built with the nogpu tag.
package native
