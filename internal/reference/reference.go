// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package reference is the host-side ground truth for the bucket-offset
// kernel.
//
// For every input element the kernel must produce the offset its value
// would start at in a stable counting sort keyed by the low KeyBits bits.
// This package computes the same result in three plain passes:
// ComputeHistogram, ExclusiveScan and Apply.
package reference

const (
	// KeyBits is the width of the sort key.
	KeyBits = 6

	// Buckets is the number of distinct keys.
	Buckets = 1 << KeyBits

	keyMask = Buckets - 1
)

// Histogram holds the occurrence count of each bucket.
type Histogram [Buckets]uint32

// Offsets holds the exclusive prefix sum of a Histogram.
type Offsets [Buckets]uint32

// Result bundles every intermediate of a reference computation.
type Result struct {
	Histogram Histogram
	Offsets   Offsets
	Values    []uint32
}

// BucketKey returns the bucket of x.
func BucketKey(x uint32) uint32 {
	return x & keyMask
}

// ComputeHistogram counts the elements of input per bucket.
func ComputeHistogram(input []uint32) Histogram {
	var h Histogram
	for _, x := range input {
		h[BucketKey(x)]++
	}
	return h
}

// ExclusiveScan returns the running total of h starting at zero, so that
// element k is the sum of h[0:k].
func ExclusiveScan(h Histogram) Offsets {
	var off Offsets
	var acc uint32
	for k, n := range h {
		off[k] = acc
		acc += n
	}
	return off
}

// Apply looks up the bucket offset of every input element.
// Neither argument is modified.
func Apply(input []uint32, off Offsets) []uint32 {
	out := make([]uint32, len(input))
	for i, x := range input {
		out[i] = off[BucketKey(x)]
	}
	return out
}

// Compute runs all three passes over input.
func Compute(input []uint32) Result {
	h := ComputeHistogram(input)
	off := ExclusiveScan(h)
	return Result{
		Histogram: h,
		Offsets:   off,
		Values:    Apply(input, off),
	}
}

// Total returns the number of elements counted in h.
func (h Histogram) Total() uint64 {
	var sum uint64
	for _, n := range h {
		sum += uint64(n)
	}
	return sum
}
