package bucketoffset

import (
	"context"
	"errors"
	"time"
)

// KernelOptions tunes a single kernel run.
type KernelOptions struct {
	// Timeout bounds each wait on the device: the submitted work and
	// the readback map. Zero means DefaultTimeout.
	Timeout time.Duration

	// SPIRV makes GPU backends compile the WGSL kernel to SPIR-V on the
	// host before creating the shader module.
	SPIRV bool
}

// DefaultTimeout is used when KernelOptions.Timeout is zero.
const DefaultTimeout = 5 * time.Second

// EffectiveTimeout returns Timeout, or DefaultTimeout when unset.
func (o KernelOptions) EffectiveTimeout() time.Duration {
	if o.Timeout <= 0 {
		return DefaultTimeout
	}
	return o.Timeout
}

// Accelerator runs the bucket-offset kernel on some execution device.
//
// Implementations live in the backend packages and are selected through
// the backend registry:
//
//	import _ "github.com/gogpu/bucketoffset/backend/native" // Vulkan via wgpu HAL
type Accelerator interface {
	// Name returns the backend name (e.g. "native", "software").
	Name() string

	// Init acquires the device and queue. It is idempotent. Failures are
	// *FatalError values with CategoryDeviceAcquisition.
	Init(ctx context.Context) error

	// Close releases every device resource.
	Close()

	// BucketOffsets uploads input, runs the kernel in a single workgroup
	// and returns the values read back from the device. Failures are
	// *FatalError values.
	BucketOffsets(ctx context.Context, input []uint32, opts KernelOptions) ([]uint32, error)
}

// AdapterDescriber is implemented by accelerators that can name the
// physical adapter they run on.
type AdapterDescriber interface {
	AdapterName() string
}

// DeviceProviderAware is an optional interface for accelerators that can
// run on a device owned by someone else (e.g. a gogpu window). The shared
// device is not destroyed by Close.
type DeviceProviderAware interface {
	SetDeviceProvider(provider any) error
}

// ErrDeviceSharingUnsupported is returned by ShareDevice when the
// accelerator cannot adopt an external device.
var ErrDeviceSharingUnsupported = errors.New("bucketoffset: accelerator does not support device sharing")

// ShareDevice passes a device provider to a.
//
// The provider should implement HalDevice() any and HalQueue() any methods
// that return wgpu/hal types, as gpucontext HAL providers do.
func ShareDevice(a Accelerator, provider any) error {
	if a == nil {
		return errors.New("bucketoffset: accelerator must not be nil")
	}
	dpa, ok := a.(DeviceProviderAware)
	if !ok {
		return ErrDeviceSharingUnsupported
	}
	return dpa.SetDeviceProvider(provider)
}

// adapterName returns a's adapter description, or "" if it has none.
func adapterName(a Accelerator) string {
	if d, ok := a.(AdapterDescriber); ok {
		return d.AdapterName()
	}
	return ""
}
