package backend

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/gogpu/bucketoffset"
	"github.com/gogpu/bucketoffset/internal/parallel"
)

const (
	// softwareWGSize matches @workgroup_size in the WGSL kernel.
	softwareWGSize = 256

	softwareBuckets = bucketoffset.Buckets
)

// SoftwareAccelerator runs the bucket-offset kernel on the CPU by emulating
// one workgroup: every phase of the GPU kernel runs its 256 invocations on
// a goroutine pool, and the end of each phase acts as the barrier.
type SoftwareAccelerator struct {
	mu      sync.Mutex
	pool    *parallel.Pool
	workers int
	log     *slog.Logger
}

var _ bucketoffset.Accelerator = (*SoftwareAccelerator)(nil)

func init() {
	Register(BackendSoftware, func() bucketoffset.Accelerator {
		return NewSoftwareAccelerator(0)
	})
}

// NewSoftwareAccelerator creates a software accelerator using the given
// number of worker goroutines (0 means GOMAXPROCS).
func NewSoftwareAccelerator(workers int) *SoftwareAccelerator {
	return &SoftwareAccelerator{workers: workers, log: bucketoffset.Logger()}
}

// Name returns the backend identifier.
func (s *SoftwareAccelerator) Name() string { return BackendSoftware }

// AdapterName describes the emulated device.
func (s *SoftwareAccelerator) AdapterName() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pool == nil {
		return "cpu workgroup emulator"
	}
	return fmt.Sprintf("cpu workgroup emulator (%d workers)", s.pool.Workers())
}

// SetLogger sets the logger used for dispatch diagnostics.
func (s *SoftwareAccelerator) SetLogger(l *slog.Logger) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.log = l
}

// Init starts the worker pool.
func (s *SoftwareAccelerator) Init(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pool == nil {
		s.pool = parallel.NewPool(s.workers)
	}
	return nil
}

// Close stops the worker pool.
func (s *SoftwareAccelerator) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pool != nil {
		s.pool.Close()
		s.pool = nil
	}
}

// BucketOffsets runs the emulated kernel over input.
func (s *SoftwareAccelerator) BucketOffsets(ctx context.Context, input []uint32, _ bucketoffset.KernelOptions) ([]uint32, error) {
	s.mu.Lock()
	pool, log := s.pool, s.log
	s.mu.Unlock()

	if pool == nil {
		return nil, bucketoffset.NewFatal(bucketoffset.CategoryDeviceFault, "software dispatch", ErrNotInitialized)
	}
	if len(input) > softwareWGSize {
		return nil, bucketoffset.NewFatal(bucketoffset.CategoryResourceAllocation, "software dispatch",
			fmt.Errorf("input of %d elements exceeds one workgroup (%d)", len(input), softwareWGSize))
	}

	k := newSoftwareKernel(input)
	for _, ph := range k.phases() {
		if err := ctx.Err(); err != nil {
			return nil, bucketoffset.NewFatal(bucketoffset.CategoryDeviceFault, "software dispatch", err)
		}
		if !pool.Phase(softwareWGSize, ph) {
			return nil, bucketoffset.NewFatal(bucketoffset.CategoryDeviceFault, "software dispatch", bucketoffset.ErrDeviceLost)
		}
	}

	log.Debug("software: kernel finished",
		"elements", len(input),
		"workers", pool.Workers())
	return k.output, nil
}

// softwareKernel mirrors the workgroup memory of the WGSL kernel.
type softwareKernel struct {
	n      int
	input  []uint32
	output []uint32

	keys   [softwareWGSize]uint32
	counts [softwareBuckets]uint32

	// scan and next are the ping-pong buffers of the Hillis-Steele scan.
	scan [softwareBuckets]uint32
	next [softwareBuckets]uint32
}

func newSoftwareKernel(input []uint32) *softwareKernel {
	return &softwareKernel{
		n:      len(input),
		input:  input,
		output: make([]uint32, len(input)),
	}
}

// phases returns the kernel split at its barriers.
func (k *softwareKernel) phases() []func(lid int) {
	ph := []func(int){k.loadKeys, k.countBucket}
	for stride := 1; stride < softwareBuckets; stride <<= 1 {
		ph = append(ph, k.scanStep(stride), k.swapScan)
	}
	return append(ph, k.writeOffsets)
}

func (k *softwareKernel) loadKeys(lid int) {
	if lid < k.n {
		k.keys[lid] = k.input[lid] & (softwareBuckets - 1)
	}
}

// countBucket lets invocation b count the keys equal to b.
func (k *softwareKernel) countBucket(lid int) {
	if lid >= softwareBuckets {
		return
	}
	var c uint32
	for j := range k.n {
		if k.keys[j] == uint32(lid) {
			c++
		}
	}
	k.counts[lid] = c
	k.scan[lid] = c
}

func (k *softwareKernel) scanStep(stride int) func(int) {
	return func(lid int) {
		if lid >= softwareBuckets {
			return
		}
		v := k.scan[lid]
		if lid >= stride {
			v += k.scan[lid-stride]
		}
		k.next[lid] = v
	}
}

func (k *softwareKernel) swapScan(lid int) {
	if lid < softwareBuckets {
		k.scan[lid] = k.next[lid]
	}
}

// writeOffsets turns the inclusive scan into exclusive offsets.
func (k *softwareKernel) writeOffsets(lid int) {
	if lid < k.n {
		key := k.keys[lid]
		k.output[lid] = k.scan[key] - k.counts[key]
	}
}
