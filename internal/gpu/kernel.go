// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

//go:build !nogpu

package gpu

import (
	"encoding/binary"
	"fmt"

	"github.com/gogpu/bucketoffset/internal/cache"
	"github.com/gogpu/bucketoffset/internal/gpu/shaders"
	"github.com/gogpu/naga"
	"github.com/gogpu/wgpu/hal"
)

var bucketOffsetsWGSL = shaders.BucketOffsets

// spirvCache holds compiled SPIR-V keyed by WGSL source.
var spirvCache = cache.New[string, []uint32](8)

const (
	// KernelEntryPoint is the compute entry point of the kernel.
	KernelEntryPoint = shaders.BucketOffsetsEntryPoint

	// KernelWGSize is the workgroup size, and the largest input one
	// dispatch can handle.
	KernelWGSize = shaders.BucketOffsetsWorkgroupSize

	// Binding slots of the kernel's bind group 0.
	bindingInput  = 0
	bindingOutput = 1

	spirvMagic = 0x07230203
)

// KernelSource returns the WGSL source of the kernel.
func KernelSource() string { return bucketOffsetsWGSL }

// compileSPIRV compiles WGSL to SPIR-V words with naga.
func compileSPIRV(wgsl string) ([]uint32, error) {
	raw, err := naga.Compile(wgsl)
	if err != nil {
		return nil, fmt.Errorf("naga compile: %w", err)
	}
	if len(raw) < 4 || len(raw)%4 != 0 {
		return nil, fmt.Errorf("naga compile: SPIR-V length %d is not a whole number of words", len(raw))
	}
	words := make([]uint32, len(raw)/4)
	for i := range words {
		words[i] = binary.LittleEndian.Uint32(raw[i*4:])
	}
	if words[0] != spirvMagic {
		return nil, fmt.Errorf("naga compile: bad SPIR-V magic %#08x", words[0])
	}
	return words, nil
}

// kernelShaderSource returns the shader source handed to the HAL. With
// spirv set the WGSL is compiled on the host first.
func kernelShaderSource(spirv bool) (hal.ShaderSource, error) {
	if !spirv {
		return hal.ShaderSource{WGSL: bucketOffsetsWGSL}, nil
	}
	words, err := spirvCache.GetOrCreate(bucketOffsetsWGSL, func() ([]uint32, error) {
		return compileSPIRV(bucketOffsetsWGSL)
	})
	if err != nil {
		return hal.ShaderSource{}, err
	}
	return hal.ShaderSource{SPIRV: words}, nil
}
