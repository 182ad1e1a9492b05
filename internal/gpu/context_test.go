//go:build !nogpu

package gpu

import (
	"errors"
	"testing"
	"time"

	"github.com/gogpu/bucketoffset"
	"github.com/gogpu/wgpu/hal"
	"github.com/gogpu/wgpu/hal/noop"
)

type fakeProvider struct {
	device hal.Device
	queue  hal.Queue
}

func (p fakeProvider) HalDevice() any { return p.device }
func (p fakeProvider) HalQueue() any  { return p.queue }

func TestNewContextWithNoop(t *testing.T) {
	c, err := NewContextWith(noop.API{})
	if err != nil {
		t.Fatalf("NewContextWith: %v", err)
	}
	defer c.Close()

	if c.Device() == nil || c.Queue() == nil {
		t.Fatal("device and queue must be set")
	}
	if c.Shared() {
		t.Error("owned context reported as shared")
	}
	if err := c.Err(); err != nil {
		t.Errorf("fresh context has fault: %v", err)
	}
}

func TestContextFaultIsSticky(t *testing.T) {
	c, err := NewContextWith(noop.API{})
	if err != nil {
		t.Fatalf("NewContextWith: %v", err)
	}
	defer c.Close()

	first := errors.New("validation error")
	second := errors.New("out of memory")

	got := c.Fault("submit", first)
	if !errors.Is(got, first) {
		t.Errorf("Fault returned %v", got)
	}
	if cat := bucketoffset.CategoryOf(got); cat != bucketoffset.CategoryDeviceFault {
		t.Errorf("category = %v, want device-fault", cat)
	}

	again := c.Fault("wait", second)
	if !errors.Is(again, first) || errors.Is(again, second) {
		t.Errorf("second fault replaced the first: %v", again)
	}
	if !errors.Is(c.Err(), first) {
		t.Errorf("Err() = %v, want first fault", c.Err())
	}
}

func TestContextCloseMarksLost(t *testing.T) {
	c, err := NewContextWith(noop.API{})
	if err != nil {
		t.Fatalf("NewContextWith: %v", err)
	}
	c.Close()

	if !errors.Is(c.Err(), bucketoffset.ErrDeviceLost) {
		t.Errorf("Err() after Close = %v, want ErrDeviceLost", c.Err())
	}
	if c.Device() != nil {
		t.Error("device retained after Close")
	}
}

func TestSharedContext(t *testing.T) {
	device, queue, cleanup := createNoopDevice(t)
	defer cleanup()

	if _, err := NewSharedContext(nil, queue, ""); !errors.Is(err, ErrNilHALDevice) {
		t.Errorf("nil device: got %v", err)
	}

	c, err := ContextFromProvider(fakeProvider{device: device, queue: queue})
	if err != nil {
		t.Fatalf("ContextFromProvider: %v", err)
	}
	if !c.Shared() {
		t.Error("provider context should be shared")
	}
	if c.AdapterName() != "shared device" {
		t.Errorf("AdapterName = %q", c.AdapterName())
	}
	c.Close()

	// The shared device stays usable after the context closes.
	buf, err := CreateReadbackBuffer(device, mappedReader{device: device}, 4, "after_close")
	if err != nil {
		t.Fatalf("device destroyed by shared context: %v", err)
	}
	buf.Destroy()
}

func TestContextFromProviderRejects(t *testing.T) {
	device, _, cleanup := createNoopDevice(t)
	defer cleanup()

	tests := []struct {
		name     string
		provider any
		want     error
	}{
		{"no HAL methods", struct{}{}, ErrProviderNotHAL},
		{"nil device", fakeProvider{}, ErrProviderDevice},
		{"nil queue", fakeProvider{device: device}, ErrProviderQueue},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ContextFromProvider(tt.provider)
			if !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
			if cat := bucketoffset.CategoryOf(err); cat != bucketoffset.CategoryDeviceAcquisition {
				t.Errorf("category = %v, want device-acquisition", cat)
			}
		})
	}
}

func TestContextCloseWaitsForHeldReads(t *testing.T) {
	c, err := NewContextWith(noop.API{})
	if err != nil {
		t.Fatalf("NewContextWith: %v", err)
	}
	device := &countingDevice{Device: c.device}
	c.device = device

	idle := make(chan struct{})
	c.HoldUntil(idle)
	c.Close()

	if n := device.deviceDestroyed.Load(); n != 0 {
		t.Fatalf("device destroyed %d times while a read was held", n)
	}
	if c.Device() != nil {
		t.Error("closed context still hands out the device")
	}

	close(idle)
	deadline := time.Now().Add(2 * time.Second)
	for device.deviceDestroyed.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if n := device.deviceDestroyed.Load(); n != 1 {
		t.Errorf("device destroyed %d times after the read returned, want 1", n)
	}
}

func TestContextCloseWithFinishedHold(t *testing.T) {
	c, err := NewContextWith(noop.API{})
	if err != nil {
		t.Fatalf("NewContextWith: %v", err)
	}
	device := &countingDevice{Device: c.device}
	c.device = device

	idle := make(chan struct{})
	close(idle)
	c.HoldUntil(idle)
	c.Close()

	if n := device.deviceDestroyed.Load(); n != 1 {
		t.Errorf("device destroyed %d times, want 1", n)
	}
}
