// Package bucketoffset is a correctness harness for a GPU bucket-offset
// kernel.
//
// # Overview
//
// For every element of an array of uint32 values the kernel computes the
// offset the value would start at in a stable counting sort keyed by its
// low 6 bits (64 buckets). The harness generates a reproducible input with
// ChaCha8, runs the kernel on an accelerator, recomputes the result on the
// host and reports every index where the two disagree.
//
// # Quick Start
//
//	import (
//	    "github.com/gogpu/bucketoffset"
//	    "github.com/gogpu/bucketoffset/backend"
//	    _ "github.com/gogpu/bucketoffset/backend/native" // pure Go Vulkan HAL
//	)
//
//	accel, err := backend.Open("")
//	if err != nil {
//	    // no accelerator at all
//	}
//	defer accel.Close()
//
//	report := bucketoffset.Run(ctx, bucketoffset.DefaultConfig(), accel)
//	if !report.Passed() {
//	    report.WriteText(os.Stdout)
//	}
//
// # Outcomes
//
// A run ends in exactly one of three outcomes:
//   - OutcomePass: every index agrees
//   - OutcomeMismatch: the kernel ran but produced wrong offsets; Err wraps
//     ErrVerificationFailed
//   - OutcomeFatal: the device could not be acquired, faulted, failed to
//     allocate, or the readback could not be mapped; Err is a *FatalError
//
// Fatal errors are returned, never raised as panics, so a host embedding
// the harness picks its own escalation policy. The bucketcheck command
// maps them to exit codes.
//
// # Architecture
//
//   - internal/source: deterministic ChaCha8 input generator
//   - internal/reference: host histogram, exclusive scan and lookup
//   - internal/gpu: device context, resource binder, dispatcher, readback
//   - internal/verify: per-index comparison
//   - backend: accelerator registry (native, rust, software)
package bucketoffset

// Version information
const (
	// Version is the current version of the harness.
	Version = "0.3.0"
)
