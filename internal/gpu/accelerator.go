// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

//go:build !nogpu

package gpu

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/gogpu/bucketoffset"
)

// ErrNotInitialized is returned by BucketOffsets before Init.
var ErrNotInitialized = errors.New("gpu: accelerator not initialized, call Init first")

// HALAccelerator runs the bucket-offset kernel through the pure Go wgpu HAL.
// It implements bucketoffset.Accelerator, bucketoffset.AdapterDescriber and
// bucketoffset.DeviceProviderAware.
//
// Init opens a standalone device unless SetDeviceProvider supplied one.
type HALAccelerator struct {
	mu sync.Mutex

	open func() (*Context, error)

	ctx    *Context
	binder *Binder
	spirv  bool
}

var (
	_ bucketoffset.Accelerator         = (*HALAccelerator)(nil)
	_ bucketoffset.AdapterDescriber    = (*HALAccelerator)(nil)
	_ bucketoffset.DeviceProviderAware = (*HALAccelerator)(nil)
)

// NewHALAccelerator returns an accelerator that opens a Vulkan device.
func NewHALAccelerator() *HALAccelerator {
	return &HALAccelerator{open: NewContext}
}

// NewHALAcceleratorWith returns an accelerator that opens its device
// through api.
func NewHALAcceleratorWith(api InstanceCreator) *HALAccelerator {
	return &HALAccelerator{open: func() (*Context, error) { return NewContextWith(api) }}
}

// Name returns the accelerator identifier.
func (a *HALAccelerator) Name() string { return "native" }

// AdapterName returns the adapter name once a device is open.
func (a *HALAccelerator) AdapterName() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.ctx == nil {
		return ""
	}
	return a.ctx.AdapterName()
}

// SetLogger sets the logger of the gpu package.
func (a *HALAccelerator) SetLogger(l *slog.Logger) {
	setLogger(l)
}

// Init acquires the device and queue.
func (a *HALAccelerator) Init(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.ctx != nil {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return bucketoffset.NewFatal(bucketoffset.CategoryDeviceAcquisition, "init", err)
	}
	c, err := a.open()
	if err != nil {
		return bucketoffset.NewFatal(bucketoffset.CategoryDeviceAcquisition, "init", err)
	}
	a.ctx = c
	return nil
}

// SetDeviceProvider switches the accelerator to a device owned by provider.
// Any device the accelerator opened itself is destroyed first.
func (a *HALAccelerator) SetDeviceProvider(provider any) error {
	c, err := ContextFromProvider(provider)
	if err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	a.closeLocked()
	a.ctx = c
	slogger().Debug("bucket gpu: switched to shared device")
	return nil
}

// BucketOffsets binds input, dispatches the kernel and reads the result
// back. Resources of the run are released before it returns.
func (a *HALAccelerator) BucketOffsets(ctx context.Context, input []uint32, opts bucketoffset.KernelOptions) ([]uint32, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.ctx == nil {
		return nil, bucketoffset.NewFatal(bucketoffset.CategoryDeviceFault, "bucket offsets", ErrNotInitialized)
	}
	if err := a.ctx.Err(); err != nil {
		return nil, err
	}

	if a.binder != nil && a.spirv != opts.SPIRV {
		a.binder.Close()
		a.binder = nil
	}
	if a.binder == nil {
		a.binder = NewBinder(a.ctx, opts.SPIRV)
		a.spirv = opts.SPIRV
	}
	if err := a.binder.Init(); err != nil {
		return nil, err
	}

	res, err := a.binder.Bind(input)
	if err != nil {
		return nil, err
	}
	defer res.Release()

	timeout := opts.EffectiveTimeout()
	if err := NewDispatcher(a.ctx, a.binder).Dispatch(ctx, res, timeout); err != nil {
		return nil, err
	}
	out, err := ReadUint32s(ctx, res.Readback, res.Length, timeout)
	if err != nil {
		a.ctx.HoldUntil(res.Readback.Idle())
		return nil, err
	}
	return out, nil
}

// Close releases the pipeline and, unless shared, the device.
func (a *HALAccelerator) Close() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.closeLocked()
}

func (a *HALAccelerator) closeLocked() {
	if a.binder != nil {
		a.binder.Close()
		a.binder = nil
	}
	if a.ctx != nil {
		a.ctx.Close()
		a.ctx = nil
	}
}
