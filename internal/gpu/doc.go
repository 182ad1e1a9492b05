//go:build !nogpu

// Package gpu runs the bucket-offset kernel on a GPU through the pure Go
// gogpu/wgpu HAL (Vulkan, zero CGO).
//
// # Architecture
//
// A run is split across four parts that share one explicitly passed
// *Context:
//
//   - Context: instance, device and queue, plus a sticky device fault
//   - Binder: shader module, bind group layout and compute pipeline, and
//     the input, output and readback buffers of each dispatch
//   - Dispatcher: one compute pass of a single 256-wide workgroup followed
//     by a copy into the readback buffer, submitted once and polled until
//     the queue reports it complete
//   - ReadUint32s: maps the readback buffer with a timeout and a
//     cancellation path
//
// HALAccelerator ties them together behind bucketoffset.Accelerator.
//
// # Kernel
//
// The WGSL kernel in shaders/bucket_offsets.wgsl avoids atomics. With
// KernelOptions.SPIRV set it is compiled to SPIR-V with gogpu/naga before
// the shader module is created.
//
// # Build Tags
//
// The package is excluded with the nogpu build tag.
package gpu
