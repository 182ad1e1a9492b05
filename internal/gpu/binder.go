// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

//go:build !nogpu

package gpu

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"github.com/gogpu/bucketoffset"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// ErrBinderNotInitialized is returned by Bind before Init.
var ErrBinderNotInitialized = errors.New("gpu: binder not initialized, call Init first")

// Binder owns the kernel pipeline and creates per-run resources bound to it.
type Binder struct {
	mu  sync.RWMutex
	ctx *Context

	spirv bool

	module         hal.ShaderModule
	bgLayout       hal.BindGroupLayout
	pipelineLayout hal.PipelineLayout
	pipeline       hal.ComputePipeline

	initialized bool
}

// Resources are the buffers and bind group of one dispatch.
type Resources struct {
	device hal.Device

	// Length is the number of u32 elements in Input and Output.
	Length int

	Input     hal.Buffer
	Output    hal.Buffer
	Readback  *Buffer
	BindGroup hal.BindGroup
}

// NewBinder returns a binder for ctx. With spirv set the kernel is compiled
// to SPIR-V by naga before it reaches the device.
func NewBinder(ctx *Context, spirv bool) *Binder {
	return &Binder{ctx: ctx, spirv: spirv}
}

// Init creates the shader module, bind group layout, pipeline layout and
// compute pipeline. Repeated calls are no-ops.
func (b *Binder) Init() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.initialized {
		return nil
	}
	if err := b.ctx.Err(); err != nil {
		return err
	}
	device := b.ctx.Device()

	src, err := kernelShaderSource(b.spirv)
	if err != nil {
		return bucketoffset.NewFatal(bucketoffset.CategoryResourceAllocation, "compile kernel", err)
	}

	module, err := device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  "bucket_offsets",
		Source: src,
	})
	if err != nil {
		return b.initFailed("create shader module", err)
	}
	b.module = module

	bgLayout, err := device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label: "bucket_offsets_bgl",
		Entries: []gputypes.BindGroupLayoutEntry{
			{
				Binding:    bindingInput,
				Visibility: gputypes.ShaderStageCompute,
				Buffer:     &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeReadOnlyStorage},
			},
			{
				Binding:    bindingOutput,
				Visibility: gputypes.ShaderStageCompute,
				Buffer:     &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeStorage},
			},
		},
	})
	if err != nil {
		return b.initFailed("create bind group layout", err)
	}
	b.bgLayout = bgLayout

	pipelineLayout, err := device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            "bucket_offsets_pl",
		BindGroupLayouts: []hal.BindGroupLayout{bgLayout},
	})
	if err != nil {
		return b.initFailed("create pipeline layout", err)
	}
	b.pipelineLayout = pipelineLayout

	pipeline, err := device.CreateComputePipeline(&hal.ComputePipelineDescriptor{
		Label:  "bucket_offsets",
		Layout: pipelineLayout,
		Compute: hal.ComputeState{
			Module:     module,
			EntryPoint: KernelEntryPoint,
		},
	})
	if err != nil {
		return b.initFailed("create compute pipeline", err)
	}
	b.pipeline = pipeline

	slogger().Debug("bucket gpu: pipeline created",
		"entry_point", KernelEntryPoint,
		"spirv", b.spirv)

	b.initialized = true
	return nil
}

func (b *Binder) initFailed(op string, err error) error {
	b.destroyPipeline()
	return bucketoffset.NewFatal(bucketoffset.CategoryResourceAllocation, op, err)
}

// destroyPipeline releases whatever part of the pipeline exists.
func (b *Binder) destroyPipeline() {
	device := b.ctx.Device()
	if device == nil {
		return
	}
	if b.pipeline != nil {
		device.DestroyComputePipeline(b.pipeline)
		b.pipeline = nil
	}
	if b.pipelineLayout != nil {
		device.DestroyPipelineLayout(b.pipelineLayout)
		b.pipelineLayout = nil
	}
	if b.bgLayout != nil {
		device.DestroyBindGroupLayout(b.bgLayout)
		b.bgLayout = nil
	}
	if b.module != nil {
		device.DestroyShaderModule(b.module)
		b.module = nil
	}
}

// Pipeline returns the compute pipeline, or nil before Init.
func (b *Binder) Pipeline() hal.ComputePipeline {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.pipeline
}

// Bind uploads input and creates the buffers of one dispatch: a read-only
// storage input, a read-write storage output, and a MapRead staging buffer
// the output is copied into. The caller releases them with Release.
func (b *Binder) Bind(input []uint32) (*Resources, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if !b.initialized {
		return nil, bucketoffset.NewFatal(bucketoffset.CategoryResourceAllocation, "bind", ErrBinderNotInitialized)
	}
	if err := b.ctx.Err(); err != nil {
		return nil, err
	}
	if len(input) == 0 || len(input) > KernelWGSize {
		return nil, bucketoffset.NewFatal(bucketoffset.CategoryResourceAllocation, "bind",
			fmt.Errorf("%w: %d elements, kernel handles 1..%d", ErrInvalidBufferSize, len(input), KernelWGSize))
	}

	device := b.ctx.Device()
	queue := b.ctx.Queue()
	size := uint64(len(input)) * 4
	res := &Resources{device: device, Length: len(input)}

	type bufSpec struct {
		target *hal.Buffer
		label  string
		usage  gputypes.BufferUsage
	}
	specs := []bufSpec{
		{&res.Input, "bucket_input", gputypes.BufferUsageStorage | gputypes.BufferUsageCopySrc | gputypes.BufferUsageCopyDst},
		{&res.Output, "bucket_output", gputypes.BufferUsageStorage | gputypes.BufferUsageCopySrc},
	}
	for _, s := range specs {
		buf, err := device.CreateBuffer(&hal.BufferDescriptor{Label: s.label, Size: size, Usage: s.usage})
		if err != nil {
			res.Release()
			return nil, bucketoffset.NewFatal(bucketoffset.CategoryResourceAllocation, "create "+s.label, err)
		}
		*s.target = buf
	}

	readback, err := CreateReadbackBuffer(device, mappedReader{device: device}, size, "bucket_readback")
	if err != nil {
		res.Release()
		return nil, bucketoffset.NewFatal(bucketoffset.CategoryResourceAllocation, "create bucket_readback", err)
	}
	res.Readback = readback

	data := make([]byte, size)
	for i, v := range input {
		binary.LittleEndian.PutUint32(data[i*4:], v)
	}
	if err := queue.WriteBuffer(res.Input, 0, data); err != nil {
		res.Release()
		return nil, bucketoffset.NewFatal(bucketoffset.CategoryResourceAllocation, "upload bucket_input", err)
	}

	bg, err := device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:  "bucket_offsets_bg",
		Layout: b.bgLayout,
		Entries: []gputypes.BindGroupEntry{
			{Binding: bindingInput, Resource: gputypes.BufferBinding{Buffer: res.Input.NativeHandle()}},
			{Binding: bindingOutput, Resource: gputypes.BufferBinding{Buffer: res.Output.NativeHandle()}},
		},
	})
	if err != nil {
		res.Release()
		return nil, bucketoffset.NewFatal(bucketoffset.CategoryResourceAllocation, "create bind group", err)
	}
	res.BindGroup = bg

	slogger().Debug("bucket gpu: resources bound",
		"elements", len(input),
		"bytes", size)
	return res, nil
}

// Release destroys the resources. It is safe on partially built or
// already released resources.
func (r *Resources) Release() {
	if r == nil || r.device == nil {
		return
	}
	if r.BindGroup != nil {
		r.device.DestroyBindGroup(r.BindGroup)
		r.BindGroup = nil
	}
	if r.Readback != nil {
		r.Readback.Destroy()
		r.Readback = nil
	}
	if r.Output != nil {
		r.device.DestroyBuffer(r.Output)
		r.Output = nil
	}
	if r.Input != nil {
		r.device.DestroyBuffer(r.Input)
		r.Input = nil
	}
}

// Close releases the pipeline. Init must be called again before Bind.
func (b *Binder) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.destroyPipeline()
	b.initialized = false
}
