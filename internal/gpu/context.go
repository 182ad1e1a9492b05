// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

//go:build !nogpu

package gpu

import (
	"errors"
	"sync"

	"github.com/gogpu/bucketoffset"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	_ "github.com/gogpu/wgpu/hal/vulkan"
)

// Device sharing errors.
var (
	// ErrNilHALDevice is returned when a nil device or queue is supplied.
	ErrNilHALDevice = errors.New("gpu: HAL device or queue is nil")

	// ErrProviderNotHAL is returned when a provider exposes no HAL types.
	ErrProviderNotHAL = errors.New("gpu: provider does not expose HAL types")

	// ErrProviderDevice is returned when HalDevice is not a hal.Device.
	ErrProviderDevice = errors.New("gpu: provider HalDevice is not hal.Device")

	// ErrProviderQueue is returned when HalQueue is not a hal.Queue.
	ErrProviderQueue = errors.New("gpu: provider HalQueue is not hal.Queue")
)

// InstanceCreator creates HAL instances. Both registered HAL backends and
// the noop API satisfy it.
type InstanceCreator interface {
	CreateInstance(desc *hal.InstanceDescriptor) (hal.Instance, error)
}

// Context owns the device and queue of one harness run and is passed
// explicitly to the Binder, Dispatcher and Readback built on it.
//
// The first device fault reported through Fault is sticky: every later
// call to Err returns it, so no further work is submitted to a device that
// has already failed. What to do about the fault is left to the caller.
type Context struct {
	mu sync.Mutex

	instance hal.Instance
	device   hal.Device
	queue    hal.Queue
	adapter  string

	// external is true when device and queue belong to someone else and
	// must not be destroyed on Close.
	external bool

	// holds are closed once device work that outlived its run has
	// returned. Close destroys the device only after all of them.
	holds []<-chan struct{}

	fault error
}

// NewContext acquires a device from the Vulkan HAL backend.
func NewContext() (*Context, error) {
	backend, ok := hal.GetBackend(gputypes.BackendVulkan)
	if !ok {
		return nil, bucketoffset.NewFatal(bucketoffset.CategoryDeviceAcquisition, "get vulkan backend",
			bucketoffset.ErrBackendUnavailable)
	}
	return NewContextWith(backend)
}

// NewContextWith acquires a device through api. The first discrete or
// integrated adapter wins; otherwise the first adapter enumerated is used.
func NewContextWith(api InstanceCreator) (*Context, error) {
	instance, err := api.CreateInstance(&hal.InstanceDescriptor{Flags: 0})
	if err != nil {
		return nil, bucketoffset.NewFatal(bucketoffset.CategoryDeviceAcquisition, "create instance", err)
	}

	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		instance.Destroy()
		return nil, bucketoffset.NewFatal(bucketoffset.CategoryDeviceAcquisition, "enumerate adapters",
			bucketoffset.ErrNoAdapter)
	}

	selected := &adapters[0]
	for i := range adapters {
		if adapters[i].Info.DeviceType == gputypes.DeviceTypeDiscreteGPU ||
			adapters[i].Info.DeviceType == gputypes.DeviceTypeIntegratedGPU {
			selected = &adapters[i]
			break
		}
	}

	openDev, err := selected.Adapter.Open(gputypes.Features(0), gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		return nil, bucketoffset.NewFatal(bucketoffset.CategoryDeviceAcquisition, "open device", err)
	}

	slogger().Info("bucket gpu: device acquired",
		"adapter", selected.Info.Name,
		"device_type", selected.Info.DeviceType,
		"adapters", len(adapters))

	return &Context{
		instance: instance,
		device:   openDev.Device,
		queue:    openDev.Queue,
		adapter:  selected.Info.Name,
	}, nil
}

// NewSharedContext wraps a device and queue owned by someone else.
// Close does not destroy them.
func NewSharedContext(device hal.Device, queue hal.Queue, adapter string) (*Context, error) {
	if device == nil || queue == nil {
		return nil, bucketoffset.NewFatal(bucketoffset.CategoryDeviceAcquisition, "share device", ErrNilHALDevice)
	}
	if adapter == "" {
		adapter = "shared device"
	}
	return &Context{device: device, queue: queue, adapter: adapter, external: true}, nil
}

// ContextFromProvider wraps the HAL device of a provider exposing
// HalDevice() any and HalQueue() any.
func ContextFromProvider(provider any) (*Context, error) {
	type halProvider interface {
		HalDevice() any
		HalQueue() any
	}
	hp, ok := provider.(halProvider)
	if !ok {
		return nil, bucketoffset.NewFatal(bucketoffset.CategoryDeviceAcquisition, "share device", ErrProviderNotHAL)
	}
	device, ok := hp.HalDevice().(hal.Device)
	if !ok || device == nil {
		return nil, bucketoffset.NewFatal(bucketoffset.CategoryDeviceAcquisition, "share device", ErrProviderDevice)
	}
	queue, ok := hp.HalQueue().(hal.Queue)
	if !ok || queue == nil {
		return nil, bucketoffset.NewFatal(bucketoffset.CategoryDeviceAcquisition, "share device", ErrProviderQueue)
	}
	return NewSharedContext(device, queue, "")
}

// Device returns the HAL device.
func (c *Context) Device() hal.Device { return c.device }

// Queue returns the HAL queue.
func (c *Context) Queue() hal.Queue { return c.queue }

// AdapterName returns the name of the adapter the device was opened on.
func (c *Context) AdapterName() string { return c.adapter }

// Shared reports whether the device is owned by an external provider.
func (c *Context) Shared() bool { return c.external }

// Err returns the recorded device fault, or nil.
func (c *Context) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fault
}

// Fault records err as a device fault of op and returns the fatal error.
// Only the first fault is kept; later calls return it unchanged.
func (c *Context) Fault(op string, err error) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.fault != nil {
		return c.fault
	}
	c.fault = bucketoffset.NewFatal(bucketoffset.CategoryDeviceFault, op, err)
	slogger().Error("bucket gpu: device fault",
		"op", op,
		"adapter", c.adapter,
		"shared", c.external,
		"error", err)
	return c.fault
}

// HoldUntil keeps Close from destroying the device until idle is closed.
// It is used for device reads abandoned by a timed out or cancelled wait.
func (c *Context) HoldUntil(idle <-chan struct{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.holds = append(c.holds, idle)
}

// Close destroys the device and instance unless they are shared. If device
// reads are still in flight, destruction happens once they return.
func (c *Context) Close() {
	c.mu.Lock()
	device, instance := c.device, c.instance
	var pending []<-chan struct{}
	for _, h := range c.holds {
		select {
		case <-h:
		default:
			pending = append(pending, h)
		}
	}
	c.holds = nil
	c.device = nil
	c.queue = nil
	c.instance = nil
	if c.fault == nil {
		c.fault = bucketoffset.NewFatal(bucketoffset.CategoryDeviceFault, "use closed context", bucketoffset.ErrDeviceLost)
	}
	external := c.external
	c.mu.Unlock()

	if external {
		return
	}
	destroy := func() {
		if device != nil {
			device.Destroy()
		}
		if instance != nil {
			instance.Destroy()
		}
	}
	if len(pending) == 0 {
		destroy()
		return
	}
	slogger().Warn("bucket gpu: device destruction deferred",
		"adapter", c.adapter,
		"reads_in_flight", len(pending))
	go func() {
		for _, h := range pending {
			<-h
		}
		destroy()
	}()
}
