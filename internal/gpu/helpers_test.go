//go:build !nogpu

package gpu

import (
	"encoding/binary"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
	"github.com/gogpu/wgpu/hal/noop"
)

// createNoopDevice opens a device on the noop HAL backend.
func createNoopDevice(t *testing.T) (hal.Device, hal.Queue, func()) {
	t.Helper()
	api := noop.API{}
	instance, err := api.CreateInstance(nil)
	if err != nil {
		t.Fatalf("CreateInstance failed: %v", err)
	}
	adapters := instance.EnumerateAdapters(nil)
	openDev, err := adapters[0].Adapter.Open(0, gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		t.Fatalf("Open failed: %v", err)
	}
	cleanup := func() {
		openDev.Device.Destroy()
		instance.Destroy()
	}
	return openDev.Device, openDev.Queue, cleanup
}

// valuesReader serves fixed u32 values to every read.
type valuesReader struct{ values []uint32 }

func (r valuesReader) ReadBuffer(_ hal.Buffer, offset uint64, data []byte) error {
	for i := 0; i+4 <= len(data); i += 4 {
		idx := int(offset)/4 + i/4
		if idx < len(r.values) {
			binary.LittleEndian.PutUint32(data[i:], r.values[idx])
		}
	}
	return nil
}

var errInjected = errors.New("injected read failure")

type failingReader struct{}

func (failingReader) ReadBuffer(hal.Buffer, uint64, []byte) error { return errInjected }

// blockingReader blocks until release is closed.
type blockingReader struct{ release chan struct{} }

func newBlockingReader(t *testing.T) blockingReader {
	r := blockingReader{release: make(chan struct{})}
	t.Cleanup(func() { close(r.release) })
	return r
}

func (r blockingReader) ReadBuffer(hal.Buffer, uint64, []byte) error {
	<-r.release
	return nil
}

// gateReader blocks every read until release is called and reports each
// read that has started on entered.
type gateReader struct {
	entered chan struct{}
	gate    chan struct{}
	once    sync.Once
}

func newGateReader(t *testing.T) *gateReader {
	r := &gateReader{entered: make(chan struct{}, 1), gate: make(chan struct{})}
	t.Cleanup(r.release)
	return r
}

func (r *gateReader) release() { r.once.Do(func() { close(r.gate) }) }

func (r *gateReader) ReadBuffer(hal.Buffer, uint64, []byte) error {
	select {
	case r.entered <- struct{}{}:
	default:
	}
	<-r.gate
	return nil
}

// countingDevice records destruction calls on top of a real device.
type countingDevice struct {
	hal.Device
	buffersDestroyed atomic.Int32
	deviceDestroyed  atomic.Int32
}

func (d *countingDevice) DestroyBuffer(b hal.Buffer) {
	d.buffersDestroyed.Add(1)
	d.Device.DestroyBuffer(b)
}

func (d *countingDevice) Destroy() {
	d.deviceDestroyed.Add(1)
	d.Device.Destroy()
}

func newReadbackBuffer(t *testing.T, reader bufferReader, size uint64) *Buffer {
	t.Helper()
	device, _, cleanup := createNoopDevice(t)
	buf, err := CreateReadbackBuffer(device, reader, size, "test_readback")
	if err != nil {
		cleanup()
		t.Fatalf("CreateReadbackBuffer: %v", err)
	}
	t.Cleanup(func() {
		buf.Destroy()
		cleanup()
	})
	return buf
}

func contains(s, substr string) bool { return strings.Contains(s, substr) }
