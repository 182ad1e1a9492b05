// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package bucketoffset

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/gogpu/bucketoffset/internal/reference"
	"github.com/gogpu/bucketoffset/internal/source"
	"github.com/gogpu/bucketoffset/internal/verify"
)

// ErrNilAccelerator is returned by Run when no accelerator is given.
var ErrNilAccelerator = errors.New("bucketoffset: accelerator must not be nil")

// Run executes one harness run on accel:
//  1. generate cfg.Length words from cfg.Seed
//  2. compute the reference offsets on the host
//  3. run the kernel on accel and read the offsets back
//  4. compare index by index
//
// The returned error is non-nil only for invalid arguments. Device and
// verification failures are reported through Report.Outcome and
// Report.Err so the caller decides how to escalate them.
func Run(ctx context.Context, cfg Config, accel Accelerator) (*Report, error) {
	if accel == nil {
		return nil, ErrNilAccelerator
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	log := Logger()
	propagateLogger(accel, log)

	r := &Report{
		RunID:   uuid.Must(uuid.NewV7()).String(),
		Seed:    cfg.Seed,
		Length:  cfg.Length,
		Backend: accel.Name(),
		ListAll: cfg.ListAll,
	}
	log = log.With("run", r.RunID, "backend", r.Backend)
	start := time.Now()

	r.Input = source.Generate(cfg.Seed, cfg.Length)
	ref := reference.Compute(r.Input)
	r.Histogram = ref.Histogram
	r.Offsets = ref.Offsets
	r.Expected = ref.Values
	r.ChiSquare, r.PValue = bucketUniformity(ref.Histogram)

	if err := accel.Init(ctx); err != nil {
		return r.fatal(log, NewFatal(CategoryDeviceAcquisition, "init "+accel.Name(), err), start), nil
	}
	r.Adapter = adapterName(accel)

	observed, err := accel.BucketOffsets(ctx, r.Input, cfg.KernelOptions())
	if err != nil {
		return r.fatal(log, NewFatal(CategoryDeviceFault, "bucket offsets", err), start), nil
	}
	r.Observed = observed

	r.Mismatches = verify.Compare(r.Expected, r.Observed)
	r.Duration = time.Since(start)
	if len(r.Mismatches) > 0 {
		r.Outcome = OutcomeMismatch
		r.Err = fmt.Errorf("%w: %d of %d indices differ", ErrVerificationFailed, len(r.Mismatches), r.Length)
		log.Warn("bucketoffset: verification failed",
			"mismatches", len(r.Mismatches),
			"length", r.Length,
			"first_index", r.Mismatches[0].Index)
		return r, nil
	}

	r.Outcome = OutcomePass
	log.Info("bucketoffset: run passed",
		"adapter", r.Adapter,
		"seed", r.Seed,
		"length", r.Length,
		"duration", r.Duration)
	return r, nil
}
