// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

//go:build !nogpu

package gpu

import (
	"context"
	"encoding/binary"
	"fmt"
	"time"

	"github.com/gogpu/bucketoffset"
)

// ReadUint32s maps buf, waits for the map to complete and decodes n
// little-endian u32 values.
//
// The wait ends at the first of: the map callback, timeout, or ctx being
// done. On timeout or cancellation the pending map is cancelled with Unmap
// so a late completion cannot touch the buffer. Every failure is a fatal
// error of category CategoryReadbackMap.
func ReadUint32s(ctx context.Context, buf *Buffer, n int, timeout time.Duration) ([]uint32, error) {
	size := uint64(n) * 4

	// Buffered so a callback that fires after we stopped waiting never blocks.
	done := make(chan BufferMapAsyncStatus, 1)
	err := buf.MapAsync(0, size, func(status BufferMapAsyncStatus) {
		select {
		case done <- status:
		default:
		}
	})
	if err != nil {
		return nil, bucketoffset.NewFatal(bucketoffset.CategoryReadbackMap, "map async", err)
	}

	go buf.PollMapAsync()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	var status BufferMapAsyncStatus
	select {
	case status = <-done:
	case <-timer.C:
		_ = buf.Unmap()
		return nil, bucketoffset.NewFatal(bucketoffset.CategoryReadbackMap, "map wait",
			fmt.Errorf("%w after %v", bucketoffset.ErrReadbackTimeout, timeout))
	case <-ctx.Done():
		_ = buf.Unmap()
		return nil, bucketoffset.NewFatal(bucketoffset.CategoryReadbackMap, "map wait", ctx.Err())
	}

	if status != BufferMapAsyncStatusSuccess {
		cause := buf.MapErr()
		if cause == nil {
			cause = fmt.Errorf("status %s", status)
		}
		slogger().Warn("bucket gpu: readback map failed",
			"buffer", buf.Label(),
			"status", status.String(),
			"error", cause)
		return nil, bucketoffset.NewFatal(bucketoffset.CategoryReadbackMap, "map",
			fmt.Errorf("%w: %w", bucketoffset.ErrMapFailed, cause))
	}

	data, err := buf.GetMappedRange(0, size)
	if err != nil {
		_ = buf.Unmap()
		return nil, bucketoffset.NewFatal(bucketoffset.CategoryReadbackMap, "get mapped range", err)
	}
	out := make([]uint32, n)
	for i := range out {
		out[i] = binary.LittleEndian.Uint32(data[i*4:])
	}
	if err := buf.Unmap(); err != nil {
		return nil, bucketoffset.NewFatal(bucketoffset.CategoryReadbackMap, "unmap", err)
	}
	return out, nil
}
