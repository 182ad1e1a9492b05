// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package bucketoffset

import (
	"errors"
	"fmt"
)

// ErrVerificationFailed reports that the accelerator ran to completion but
// disagreed with the reference at one or more indices. It is not fatal.
var ErrVerificationFailed = errors.New("bucketoffset: verification failed")

// Sentinel causes wrapped by FatalError.
var (
	// ErrNoAdapter is returned when no GPU adapter can be enumerated.
	ErrNoAdapter = errors.New("bucketoffset: no compatible accelerator found")

	// ErrBackendUnavailable is returned when the requested backend is not
	// compiled in or cannot start.
	ErrBackendUnavailable = errors.New("bucketoffset: backend not available")

	// ErrReadbackTimeout is returned when the readback map does not
	// complete within the configured timeout.
	ErrReadbackTimeout = errors.New("bucketoffset: readback map timed out")

	// ErrMapFailed is returned when the readback map completes with a
	// non-success status.
	ErrMapFailed = errors.New("bucketoffset: readback map failed")

	// ErrDeviceLost is returned for operations on a lost or faulted device.
	ErrDeviceLost = errors.New("bucketoffset: device lost")
)

// Category classifies a fatal error.
type Category int

const (
	// CategoryDeviceAcquisition means no device or queue could be obtained.
	// It happens before any buffer exists.
	CategoryDeviceAcquisition Category = iota + 1

	// CategoryDeviceFault covers validation errors, device loss,
	// out-of-memory and failed submissions after acquisition.
	CategoryDeviceFault

	// CategoryResourceAllocation covers buffer, shader, layout, pipeline
	// and bind group construction.
	CategoryResourceAllocation

	// CategoryReadbackMap means the host-visible buffer could not be mapped.
	// No bytes from the buffer are interpreted on this path.
	CategoryReadbackMap
)

// String returns the human-readable name of the category.
func (c Category) String() string {
	switch c {
	case CategoryDeviceAcquisition:
		return "device-acquisition"
	case CategoryDeviceFault:
		return "device-fault"
	case CategoryResourceAllocation:
		return "resource-allocation"
	case CategoryReadbackMap:
		return "readback-map"
	default:
		return fmt.Sprintf("Unknown(%d)", int(c))
	}
}

// FatalError is an unrecoverable failure of a run.
type FatalError struct {
	Category Category
	Op       string // operation that failed, e.g. "create output buffer"
	Err      error
}

// NewFatal wraps err as a FatalError. If err already carries a FatalError
// it is returned unchanged so the first classification wins.
func NewFatal(cat Category, op string, err error) error {
	var fe *FatalError
	if errors.As(err, &fe) {
		return err
	}
	return &FatalError{Category: cat, Op: op, Err: err}
}

func (e *FatalError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("bucketoffset: %s: %s", e.Category, e.Op)
	}
	return fmt.Sprintf("bucketoffset: %s: %s: %v", e.Category, e.Op, e.Err)
}

func (e *FatalError) Unwrap() error {
	return e.Err
}

// IsFatal reports whether err wraps a FatalError.
func IsFatal(err error) bool {
	var fe *FatalError
	return errors.As(err, &fe)
}

// CategoryOf returns the category of the FatalError in err's chain, or 0.
func CategoryOf(err error) Category {
	var fe *FatalError
	if errors.As(err, &fe) {
		return fe.Category
	}
	return 0
}
