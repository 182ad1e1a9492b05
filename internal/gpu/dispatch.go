// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

//go:build !nogpu

package gpu

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gogpu/bucketoffset"
	"github.com/gogpu/wgpu/hal"
)

// ErrSubmitTimeout is returned when submitted work does not finish in time.
var ErrSubmitTimeout = errors.New("gpu: submission did not complete in time")

// completionPollInterval is how often the queue is asked for the last
// completed submission while waiting.
const completionPollInterval = 100 * time.Microsecond

// Dispatcher records and submits the kernel for one set of Resources.
type Dispatcher struct {
	ctx    *Context
	binder *Binder
}

// NewDispatcher returns a dispatcher using the pipeline of binder.
func NewDispatcher(ctx *Context, binder *Binder) *Dispatcher {
	return &Dispatcher{ctx: ctx, binder: binder}
}

type submitResources struct {
	device hal.Device
	cmdBuf hal.CommandBuffer
}

func (r *submitResources) cleanup() {
	if r.cmdBuf != nil {
		r.device.FreeCommandBuffer(r.cmdBuf)
	}
}

// Dispatch runs one workgroup of the kernel over res, copies the output
// into the readback buffer and waits up to timeout for the queue to drain.
// Encoding, submission and wait failures are device faults.
func (d *Dispatcher) Dispatch(ctx context.Context, res *Resources, timeout time.Duration) error {
	if err := d.ctx.Err(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return bucketoffset.NewFatal(bucketoffset.CategoryDeviceFault, "dispatch", err)
	}
	pipeline := d.binder.Pipeline()
	if pipeline == nil {
		return bucketoffset.NewFatal(bucketoffset.CategoryResourceAllocation, "dispatch", ErrBinderNotInitialized)
	}

	device := d.ctx.Device()
	sr := &submitResources{device: device}
	defer sr.cleanup()

	if err := d.encode(sr, pipeline, res); err != nil {
		return d.ctx.Fault("encode", err)
	}

	index, err := d.ctx.Queue().Submit([]hal.CommandBuffer{sr.cmdBuf})
	if err != nil {
		return d.ctx.Fault("submit", err)
	}
	if err := d.waitCompleted(ctx, index, timeout); err != nil {
		return err
	}

	slogger().Debug("bucket gpu: dispatch complete",
		"elements", res.Length,
		"workgroups", 1)
	return nil
}

// waitCompleted polls the queue until submission index has completed.
// Running out of time is a device fault; a cancelled ctx is not sticky.
func (d *Dispatcher) waitCompleted(ctx context.Context, index uint64, timeout time.Duration) error {
	queue := d.ctx.Queue()
	if queue.PollCompleted() >= index {
		return nil
	}

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	tick := time.NewTicker(completionPollInterval)
	defer tick.Stop()

	for {
		select {
		case <-tick.C:
			if queue.PollCompleted() >= index {
				return nil
			}
		case <-deadline.C:
			return d.ctx.Fault("wait", fmt.Errorf("%w after %v", ErrSubmitTimeout, timeout))
		case <-ctx.Done():
			return bucketoffset.NewFatal(bucketoffset.CategoryDeviceFault, "wait", ctx.Err())
		}
	}
}

func (d *Dispatcher) encode(sr *submitResources, pipeline hal.ComputePipeline, res *Resources) error {
	encoder, err := sr.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{
		Label: "bucket_offsets",
	})
	if err != nil {
		return fmt.Errorf("create command encoder: %w", err)
	}
	if err := encoder.BeginEncoding("bucket_offsets"); err != nil {
		return fmt.Errorf("begin encoding: %w", err)
	}

	pass := encoder.BeginComputePass(&hal.ComputePassDescriptor{Label: "bucket_offsets"})
	pass.SetPipeline(pipeline)
	pass.SetBindGroup(0, res.BindGroup, nil)
	pass.Dispatch(1, 1, 1)
	pass.End()

	size := uint64(res.Length) * 4
	encoder.CopyBufferToBuffer(res.Output, res.Readback.Raw(), []hal.BufferCopy{
		{SrcOffset: 0, DstOffset: 0, Size: size},
	})

	cmdBuf, err := encoder.EndEncoding()
	if err != nil {
		return fmt.Errorf("end encoding: %w", err)
	}
	sr.cmdBuf = cmdBuf
	return nil
}
