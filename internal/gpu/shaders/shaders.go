// Package shaders holds the WGSL sources shared by the GPU backends.
package shaders

import _ "embed"

// BucketOffsets is the WGSL source of the bucket-offset kernel.
//
//go:embed bucket_offsets.wgsl
var BucketOffsets string

const (
	// BucketOffsetsEntryPoint is the compute entry point of BucketOffsets.
	BucketOffsetsEntryPoint = "bucket_offsets"

	// BucketOffsetsWorkgroupSize matches @workgroup_size in BucketOffsets.
	BucketOffsetsWorkgroupSize = 256
)
