//go:build !nogpu

package native

import (
	"errors"

	"github.com/gogpu/bucketoffset"
	"github.com/gogpu/bucketoffset/backend"
	"github.com/gogpu/bucketoffset/internal/gpu"
	"github.com/gogpu/gpucontext"
)

// ErrNilProvider is returned by NewShared when provider is nil.
var ErrNilProvider = errors.New("native: device provider is nil")

func init() {
	backend.Register(backend.BackendNative, func() bucketoffset.Accelerator {
		return gpu.NewHALAccelerator()
	})
}

// New returns an accelerator that opens its own Vulkan device on Init.
func New() bucketoffset.Accelerator {
	return gpu.NewHALAccelerator()
}

// NewShared returns an accelerator running on the device of provider.
// The provider must also expose HalDevice() any and HalQueue() any
// returning wgpu HAL types. Closing the accelerator leaves the device alive.
func NewShared(provider gpucontext.DeviceProvider) (bucketoffset.Accelerator, error) {
	if provider == nil {
		return nil, ErrNilProvider
	}
	a := gpu.NewHALAccelerator()
	if err := bucketoffset.ShareDevice(a, provider); err != nil {
		return nil, bucketoffset.NewFatal(bucketoffset.CategoryDeviceAcquisition, "share device", err)
	}
	return a, nil
}
