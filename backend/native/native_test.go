//go:build !nogpu

package native

import (
	"context"
	"errors"
	"testing"

	"github.com/gogpu/bucketoffset"
	"github.com/gogpu/bucketoffset/backend"
	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal/noop"
)

// halProvider satisfies gpucontext.DeviceProvider through the embedded
// interface and adds the HAL accessors. Only HalDevice and HalQueue are
// called.
type halProvider struct {
	gpucontext.DeviceProvider
	device any
	queue  any
}

func (p halProvider) HalDevice() any { return p.device }
func (p halProvider) HalQueue() any  { return p.queue }

func TestRegistered(t *testing.T) {
	if !backend.IsRegistered(backend.BackendNative) {
		t.Fatal("native backend should be registered")
	}
	a := backend.Get(backend.BackendNative)
	if a == nil {
		t.Fatal("backend.Get(BackendNative) returned nil")
	}
	if a.Name() != backend.BackendNative {
		t.Errorf("Name() = %q, want %q", a.Name(), backend.BackendNative)
	}
}

func TestNewSharedNilProvider(t *testing.T) {
	if _, err := NewShared(nil); !errors.Is(err, ErrNilProvider) {
		t.Errorf("err = %v, want ErrNilProvider", err)
	}
}

func TestNewSharedRejectsNonHALProvider(t *testing.T) {
	_, err := NewShared(halProvider{})
	if err == nil {
		t.Fatal("expected error for provider without HAL device")
	}
	if cat := bucketoffset.CategoryOf(err); cat != bucketoffset.CategoryDeviceAcquisition {
		t.Errorf("category = %v, want device-acquisition", cat)
	}
}

func TestNewSharedNoopDevice(t *testing.T) {
	instance, err := noop.API{}.CreateInstance(nil)
	if err != nil {
		t.Fatalf("CreateInstance: %v", err)
	}
	defer instance.Destroy()
	adapters := instance.EnumerateAdapters(nil)
	openDev, err := adapters[0].Adapter.Open(0, gputypes.DefaultLimits())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer openDev.Device.Destroy()

	a, err := NewShared(halProvider{device: openDev.Device, queue: openDev.Queue})
	if err != nil {
		t.Fatalf("NewShared: %v", err)
	}
	defer a.Close()

	if err := a.Init(context.Background()); err != nil {
		t.Fatalf("Init: %v", err)
	}
	got, err := a.BucketOffsets(context.Background(), []uint32{3, 67, 1}, bucketoffset.KernelOptions{})
	if err != nil {
		t.Fatalf("BucketOffsets: %v", err)
	}
	if len(got) != 3 {
		t.Errorf("len = %d, want 3", len(got))
	}
}
