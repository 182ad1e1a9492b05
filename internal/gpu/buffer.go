// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

//go:build !nogpu

package gpu

import (
	"errors"
	"fmt"
	"sync"
	"unsafe"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// Buffer errors.
var (
	// ErrBufferDestroyed is returned when operating on a destroyed buffer.
	ErrBufferDestroyed = errors.New("gpu: buffer has been destroyed")

	// ErrInvalidBufferSize is returned when buffer size is invalid.
	ErrInvalidBufferSize = errors.New("gpu: invalid buffer size")

	// ErrBufferAlreadyMapped is returned when attempting to map an already mapped buffer.
	ErrBufferAlreadyMapped = errors.New("gpu: buffer is already mapped or mapping is pending")

	// ErrBufferNotMapped is returned when attempting to access unmapped buffer data.
	ErrBufferNotMapped = errors.New("gpu: buffer is not mapped")

	// ErrBufferMapPending is returned when accessing a buffer with pending map operation.
	ErrBufferMapPending = errors.New("gpu: buffer mapping is pending")

	// ErrInvalidMapRange is returned when the map range is out of bounds.
	ErrInvalidMapRange = errors.New("gpu: map range out of bounds")

	// ErrMapUsageMismatch is returned when the buffer lacks MapRead usage.
	ErrMapUsageMismatch = errors.New("gpu: buffer does not have MapRead usage")

	// ErrCallbackNil is returned when MapAsync is called with nil callback.
	ErrCallbackNil = errors.New("gpu: map callback is nil")
)

// BufferMapState represents the mapping state of a buffer.
type BufferMapState int

const (
	// BufferMapStateUnmapped means the buffer is not mapped.
	BufferMapStateUnmapped BufferMapState = iota
	// BufferMapStatePending means a map operation is pending.
	BufferMapStatePending
	// BufferMapStateMapped means the buffer is mapped.
	BufferMapStateMapped
)

// String returns the string representation of BufferMapState.
func (s BufferMapState) String() string {
	switch s {
	case BufferMapStateUnmapped:
		return "Unmapped"
	case BufferMapStatePending:
		return "Pending"
	case BufferMapStateMapped:
		return "Mapped"
	default:
		return fmt.Sprintf("Unknown(%d)", int(s))
	}
}

// BufferMapAsyncStatus is the result of an async map operation.
type BufferMapAsyncStatus int

const (
	// BufferMapAsyncStatusSuccess indicates mapping completed successfully.
	BufferMapAsyncStatusSuccess BufferMapAsyncStatus = iota
	// BufferMapAsyncStatusError indicates the device could not produce the data.
	BufferMapAsyncStatusError
	// BufferMapAsyncStatusDestroyedBeforeCallback indicates buffer was destroyed.
	BufferMapAsyncStatusDestroyedBeforeCallback
	// BufferMapAsyncStatusUnmappedBeforeCallback indicates buffer was unmapped.
	BufferMapAsyncStatusUnmappedBeforeCallback
)

// String returns the string representation of BufferMapAsyncStatus.
func (s BufferMapAsyncStatus) String() string {
	switch s {
	case BufferMapAsyncStatusSuccess:
		return "Success"
	case BufferMapAsyncStatusError:
		return "Error"
	case BufferMapAsyncStatusDestroyedBeforeCallback:
		return "DestroyedBeforeCallback"
	case BufferMapAsyncStatusUnmappedBeforeCallback:
		return "UnmappedBeforeCallback"
	default:
		return fmt.Sprintf("Unknown(%d)", int(s))
	}
}

// bufferReader copies device memory into host memory.
type bufferReader interface {
	ReadBuffer(buffer hal.Buffer, offset uint64, data []byte) error
}

// mappedReader copies through a host mapping of the buffer. The buffer
// must be MapRead and idle on the GPU.
type mappedReader struct{ device hal.Device }

func (r mappedReader) ReadBuffer(buffer hal.Buffer, offset uint64, data []byte) error {
	if len(data) == 0 {
		return nil
	}
	m, err := r.device.MapBuffer(buffer, offset, uint64(len(data)))
	if err != nil {
		return fmt.Errorf("gpu: map buffer: %w", err)
	}
	copy(data, unsafe.Slice((*byte)(m.Ptr), len(data)))
	if err := r.device.UnmapBuffer(buffer); err != nil {
		return fmt.Errorf("gpu: unmap buffer: %w", err)
	}
	return nil
}

// Buffer is a host-readable readback buffer.
//
// Mapping follows the WebGPU shape: MapAsync moves the buffer to Pending,
// PollMapAsync performs the device read and delivers the status to the
// callback exactly once, GetMappedRange exposes the bytes until Unmap.
// Unmap while Pending cancels the request; a read that was already in
// flight when Unmap ran is discarded and its callback is not invoked.
// Destroy during such a read releases the device buffer only after the
// read returns.
type Buffer struct {
	mu sync.Mutex

	halBuffer hal.Buffer
	device    hal.Device
	reader    bufferReader

	label string
	size  uint64
	usage gputypes.BufferUsage

	mapState    BufferMapState
	mapOffset   uint64
	mapSize     uint64
	mappedData  []byte
	mapCallback func(BufferMapAsyncStatus)
	mapErr      error

	// mapSeq increases on every MapAsync and Unmap so a poll can tell
	// whether the request it started is still current.
	mapSeq uint64

	// reading is non-nil while a device read runs outside the lock and is
	// closed when that read returns.
	reading chan struct{}
	// orphan is a destroyed device buffer still in use by that read.
	orphan hal.Buffer

	destroyed bool
}

var closedChan = func() chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}()

// BufferDescriptor describes a buffer to create.
type BufferDescriptor struct {
	Label string
	Size  uint64
	Usage gputypes.BufferUsage
}

// CreateBuffer creates a device buffer. The size is rounded up to the
// 4-byte copy alignment.
func CreateBuffer(device hal.Device, reader bufferReader, desc *BufferDescriptor) (*Buffer, error) {
	if device == nil {
		return nil, ErrNilHALDevice
	}
	if desc == nil {
		return nil, fmt.Errorf("gpu: buffer descriptor is nil")
	}
	if desc.Size == 0 {
		return nil, fmt.Errorf("%w: size is 0", ErrInvalidBufferSize)
	}
	if desc.Usage == 0 {
		return nil, fmt.Errorf("gpu: buffer usage is empty")
	}

	const copyBufferAlignment uint64 = 4
	alignedSize := (desc.Size + copyBufferAlignment - 1) &^ (copyBufferAlignment - 1)

	halBuffer, err := device.CreateBuffer(&hal.BufferDescriptor{
		Label: desc.Label,
		Size:  alignedSize,
		Usage: desc.Usage,
	})
	if err != nil {
		return nil, fmt.Errorf("gpu: create buffer %q: %w", desc.Label, err)
	}

	return &Buffer{
		halBuffer: halBuffer,
		device:    device,
		reader:    reader,
		label:     desc.Label,
		size:      alignedSize,
		usage:     desc.Usage,
	}, nil
}

// CreateReadbackBuffer creates a MapRead|CopyDst staging buffer read
// through reader, usually a mappedReader on device.
func CreateReadbackBuffer(device hal.Device, reader bufferReader, size uint64, label string) (*Buffer, error) {
	return CreateBuffer(device, reader, &BufferDescriptor{
		Label: label,
		Size:  size,
		Usage: gputypes.BufferUsageMapRead | gputypes.BufferUsageCopyDst,
	})
}

// Label returns the buffer's debug label.
func (b *Buffer) Label() string { return b.label }

// Size returns the buffer size in bytes.
func (b *Buffer) Size() uint64 { return b.size }

// Usage returns the buffer usage flags.
func (b *Buffer) Usage() gputypes.BufferUsage { return b.usage }

// MapState returns the current mapping state.
func (b *Buffer) MapState() BufferMapState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.mapState
}

// Raw returns the underlying buffer handle, or nil after Destroy.
func (b *Buffer) Raw() hal.Buffer {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.destroyed {
		return nil
	}
	return b.halBuffer
}

// MapAsync requests a read mapping of [offset, offset+size). The request
// completes in PollMapAsync.
func (b *Buffer) MapAsync(offset, size uint64, callback func(BufferMapAsyncStatus)) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.destroyed {
		return ErrBufferDestroyed
	}
	if b.mapState != BufferMapStateUnmapped {
		return ErrBufferAlreadyMapped
	}
	if callback == nil {
		return ErrCallbackNil
	}
	if !b.usage.Contains(gputypes.BufferUsageMapRead) {
		return ErrMapUsageMismatch
	}
	if offset > b.size || offset+size > b.size {
		return fmt.Errorf("%w: offset %d + size %d > buffer size %d", ErrInvalidMapRange, offset, size, b.size)
	}

	b.mapState = BufferMapStatePending
	b.mapOffset = offset
	b.mapSize = size
	b.mapCallback = callback
	b.mapErr = nil
	b.mapSeq++
	return nil
}

// PollMapAsync drives a pending map to completion. It returns true once
// the request has finished, successfully or not, or when nothing is
// pending. The device read happens outside the lock, so PollMapAsync may
// block while Unmap and Destroy stay callable from other goroutines.
func (b *Buffer) PollMapAsync() bool {
	b.mu.Lock()
	if b.mapState != BufferMapStatePending {
		b.mu.Unlock()
		return true
	}
	if b.reading != nil {
		b.mu.Unlock()
		return false
	}
	reading := make(chan struct{})
	b.reading = reading
	seq := b.mapSeq
	reader := b.reader
	halBuf := b.halBuffer
	offset, size := b.mapOffset, b.mapSize
	b.mu.Unlock()

	data := make([]byte, size)
	var err error
	if reader == nil {
		err = fmt.Errorf("gpu: buffer %q has no reader", b.label)
	} else {
		err = reader.ReadBuffer(halBuf, offset, data)
	}

	defer func() {
		b.mu.Lock()
		if b.orphan != nil {
			b.device.DestroyBuffer(b.orphan)
			b.orphan = nil
		}
		b.reading = nil
		b.mu.Unlock()
		close(reading)
	}()

	b.mu.Lock()
	if b.mapSeq != seq || b.mapState != BufferMapStatePending {
		// Unmapped or destroyed while the read was in flight.
		b.mu.Unlock()
		return true
	}
	callback := b.mapCallback
	b.mapCallback = nil
	status := BufferMapAsyncStatusSuccess
	if err != nil {
		b.mapState = BufferMapStateUnmapped
		b.mapErr = err
		status = BufferMapAsyncStatusError
	} else {
		b.mapState = BufferMapStateMapped
		b.mappedData = data
	}
	b.mu.Unlock()

	if callback != nil {
		callback(status)
	}
	return true
}

// MapErr returns the device error of the last failed map, if any.
func (b *Buffer) MapErr() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.mapErr
}

// GetMappedRange returns mapped bytes. Offsets are relative to the buffer.
// The slice is invalid after Unmap.
func (b *Buffer) GetMappedRange(offset, size uint64) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.destroyed {
		return nil, ErrBufferDestroyed
	}
	if b.mapState == BufferMapStatePending {
		return nil, ErrBufferMapPending
	}
	if b.mapState != BufferMapStateMapped {
		return nil, ErrBufferNotMapped
	}
	if offset < b.mapOffset || offset+size > b.mapOffset+b.mapSize {
		return nil, fmt.Errorf("%w: [%d, %d) outside mapped [%d, %d)",
			ErrInvalidMapRange, offset, offset+size, b.mapOffset, b.mapOffset+b.mapSize)
	}
	rel := offset - b.mapOffset
	return b.mappedData[rel : rel+size], nil
}

// Unmap returns the buffer to Unmapped. A pending request is cancelled and
// its callback receives BufferMapAsyncStatusUnmappedBeforeCallback.
// Unmapping an unmapped buffer is a no-op.
func (b *Buffer) Unmap() error {
	b.mu.Lock()
	if b.destroyed {
		b.mu.Unlock()
		return ErrBufferDestroyed
	}
	callback := b.mapCallback
	wasPending := b.mapState == BufferMapStatePending
	b.mapState = BufferMapStateUnmapped
	b.mappedData = nil
	b.mapCallback = nil
	b.mapSeq++
	b.mu.Unlock()

	if wasPending && callback != nil {
		callback(BufferMapAsyncStatusUnmappedBeforeCallback)
	}
	return nil
}

// Idle returns a channel that is closed once no device read is in flight.
func (b *Buffer) Idle() <-chan struct{} {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.reading == nil {
		return closedChan
	}
	return b.reading
}

// Destroy releases the device buffer. It is idempotent and never blocks:
// while a read is in flight the release is left to that read.
func (b *Buffer) Destroy() {
	b.mu.Lock()
	if b.destroyed {
		b.mu.Unlock()
		return
	}
	b.destroyed = true
	device, halBuf := b.device, b.halBuffer
	callback := b.mapCallback
	wasPending := b.mapState == BufferMapStatePending
	b.halBuffer = nil
	b.mappedData = nil
	b.mapCallback = nil
	b.mapState = BufferMapStateUnmapped
	b.mapSeq++
	if b.reading != nil {
		b.orphan = halBuf
		halBuf = nil
	}
	b.mu.Unlock()

	if wasPending && callback != nil {
		callback(BufferMapAsyncStatusDestroyedBeforeCallback)
	}
	if device != nil && halBuf != nil {
		device.DestroyBuffer(halBuf)
	}
}
