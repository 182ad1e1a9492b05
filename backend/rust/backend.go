//go:build rust

package rust

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gogpu/bucketoffset"
	"github.com/gogpu/bucketoffset/backend"
	"github.com/gogpu/bucketoffset/internal/gpu/shaders"
	"github.com/openfluke/webgpu/wgpu"
)

// pollInterval is the sleep between non-blocking device polls while a
// readback map is pending.
const pollInterval = time.Millisecond

func init() {
	backend.Register(backend.BackendRust, func() bucketoffset.Accelerator {
		return NewRustAccelerator()
	})
}

// RustAccelerator implements bucketoffset.Accelerator on wgpu-native.
type RustAccelerator struct {
	mu sync.Mutex

	instance *wgpu.Instance
	adapter  *wgpu.Adapter
	device   *wgpu.Device
	queue    *wgpu.Queue

	adapterName string

	bgLayout *wgpu.BindGroupLayout
	pipeline *wgpu.ComputePipeline

	log *slog.Logger
}

var (
	_ bucketoffset.Accelerator      = (*RustAccelerator)(nil)
	_ bucketoffset.AdapterDescriber = (*RustAccelerator)(nil)
)

// NewRustAccelerator returns an uninitialized accelerator.
func NewRustAccelerator() *RustAccelerator {
	return &RustAccelerator{log: bucketoffset.Logger()}
}

// Name returns the backend identifier.
func (r *RustAccelerator) Name() string { return backend.BackendRust }

// AdapterName returns the adapter name reported by wgpu-native.
func (r *RustAccelerator) AdapterName() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.adapterName
}

// SetLogger sets the logger used by this backend.
func (r *RustAccelerator) SetLogger(l *slog.Logger) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.log = l
}

// Init creates the instance, picks a high-performance adapter (any adapter
// if none is offered), opens the device and builds the pipeline.
func (r *RustAccelerator) Init(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.pipeline != nil {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return bucketoffset.NewFatal(bucketoffset.CategoryDeviceAcquisition, "init", err)
	}

	r.instance = wgpu.CreateInstance(nil)
	if r.instance == nil {
		return bucketoffset.NewFatal(bucketoffset.CategoryDeviceAcquisition, "create instance",
			fmt.Errorf("%w: wgpu-native returned no instance", bucketoffset.ErrBackendUnavailable))
	}

	adapter, err := r.instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		PowerPreference: wgpu.PowerPreferenceHighPerformance,
	})
	if err != nil || adapter == nil {
		adapter, err = r.instance.RequestAdapter(nil)
	}
	if err != nil || adapter == nil {
		r.releaseLocked()
		return bucketoffset.NewFatal(bucketoffset.CategoryDeviceAcquisition, "request adapter",
			fmt.Errorf("%w: %w", bucketoffset.ErrNoAdapter, ErrNoGPU))
	}
	r.adapter = adapter
	info := adapter.GetInfo()
	r.adapterName = info.Name

	device, err := adapter.RequestDevice(nil)
	if err != nil {
		r.releaseLocked()
		return bucketoffset.NewFatal(bucketoffset.CategoryDeviceAcquisition, "request device", err)
	}
	r.device = device
	r.queue = device.GetQueue()

	if err := r.createPipeline(); err != nil {
		r.releaseLocked()
		return bucketoffset.NewFatal(bucketoffset.CategoryResourceAllocation, "create pipeline", err)
	}

	r.log.Info("rust: device acquired",
		"adapter", info.Name,
		"vendor", info.VendorName)
	return nil
}

func (r *RustAccelerator) createPipeline() error {
	module, err := r.device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label:          "bucket_offsets",
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: shaders.BucketOffsets},
	})
	if err != nil {
		return fmt.Errorf("shader module: %w", err)
	}
	defer module.Release()

	r.bgLayout, err = r.device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
		Label: "bucket_offsets_bgl",
		Entries: []wgpu.BindGroupLayoutEntry{
			{Binding: 0, Visibility: wgpu.ShaderStageCompute, Buffer: wgpu.BufferBindingLayout{Type: wgpu.BufferBindingTypeReadOnlyStorage}},
			{Binding: 1, Visibility: wgpu.ShaderStageCompute, Buffer: wgpu.BufferBindingLayout{Type: wgpu.BufferBindingTypeStorage}},
		},
	})
	if err != nil {
		return fmt.Errorf("bind group layout: %w", err)
	}

	pipelineLayout, err := r.device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            "bucket_offsets_pl",
		BindGroupLayouts: []*wgpu.BindGroupLayout{r.bgLayout},
	})
	if err != nil {
		return fmt.Errorf("pipeline layout: %w", err)
	}
	defer pipelineLayout.Release()

	r.pipeline, err = r.device.CreateComputePipeline(&wgpu.ComputePipelineDescriptor{
		Label:  "bucket_offsets",
		Layout: pipelineLayout,
		Compute: wgpu.ProgrammableStageDescriptor{
			Module:     module,
			EntryPoint: shaders.BucketOffsetsEntryPoint,
		},
	})
	if err != nil {
		return fmt.Errorf("compute pipeline: %w", err)
	}
	return nil
}

// BucketOffsets uploads input, dispatches one workgroup, copies the output
// into a staging buffer and maps it. SPIR-V compilation does not apply to
// this backend and opts.SPIRV is ignored.
func (r *RustAccelerator) BucketOffsets(ctx context.Context, input []uint32, opts bucketoffset.KernelOptions) ([]uint32, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.pipeline == nil {
		return nil, bucketoffset.NewFatal(bucketoffset.CategoryDeviceFault, "bucket offsets", ErrNotInitialized)
	}
	if len(input) == 0 || len(input) > shaders.BucketOffsetsWorkgroupSize {
		return nil, bucketoffset.NewFatal(bucketoffset.CategoryResourceAllocation, "bucket offsets",
			fmt.Errorf("%w: %d elements", ErrInputTooLarge, len(input)))
	}

	size := uint64(len(input)) * 4
	alloc := func(op string, err error) error {
		return bucketoffset.NewFatal(bucketoffset.CategoryResourceAllocation, op, err)
	}

	inputBuf, err := r.device.CreateBufferInit(&wgpu.BufferInitDescriptor{
		Label:    "bucket_input",
		Contents: wgpu.ToBytes(input),
		Usage:    wgpu.BufferUsageStorage | wgpu.BufferUsageCopySrc | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, alloc("create bucket_input", err)
	}
	defer inputBuf.Destroy()

	outputBuf, err := r.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: "bucket_output",
		Size:  size,
		Usage: wgpu.BufferUsageStorage | wgpu.BufferUsageCopySrc,
	})
	if err != nil {
		return nil, alloc("create bucket_output", err)
	}
	defer outputBuf.Destroy()

	staging, err := r.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: "bucket_readback",
		Size:  size,
		Usage: wgpu.BufferUsageMapRead | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, alloc("create bucket_readback", err)
	}
	defer staging.Destroy()

	bindGroup, err := r.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:  "bucket_offsets_bg",
		Layout: r.bgLayout,
		Entries: []wgpu.BindGroupEntry{
			{Binding: 0, Buffer: inputBuf, Size: inputBuf.GetSize()},
			{Binding: 1, Buffer: outputBuf, Size: outputBuf.GetSize()},
		},
	})
	if err != nil {
		return nil, alloc("create bind group", err)
	}
	defer bindGroup.Release()

	enc, err := r.device.CreateCommandEncoder(nil)
	if err != nil {
		return nil, bucketoffset.NewFatal(bucketoffset.CategoryDeviceFault, "create command encoder", err)
	}
	pass := enc.BeginComputePass(nil)
	pass.SetPipeline(r.pipeline)
	pass.SetBindGroup(0, bindGroup, nil)
	pass.DispatchWorkgroups(1, 1, 1)
	pass.End()
	enc.CopyBufferToBuffer(outputBuf, 0, staging, 0, size)

	cmd, err := enc.Finish(nil)
	if err != nil {
		return nil, bucketoffset.NewFatal(bucketoffset.CategoryDeviceFault, "finish encoding", err)
	}
	r.queue.Submit(cmd)

	r.log.Debug("rust: dispatch submitted", "elements", len(input))
	return r.readback(ctx, staging, len(input), opts.EffectiveTimeout())
}

// readback maps staging and decodes n values. It gives up when timeout
// elapses or ctx is done; the buffer is unmapped before returning.
func (r *RustAccelerator) readback(ctx context.Context, staging *wgpu.Buffer, n int, timeout time.Duration) ([]uint32, error) {
	size := uint64(n) * 4
	done := make(chan wgpu.BufferMapAsyncStatus, 1)

	err := staging.MapAsync(wgpu.MapModeRead, 0, size, func(status wgpu.BufferMapAsyncStatus) {
		select {
		case done <- status:
		default:
		}
	})
	if err != nil {
		return nil, bucketoffset.NewFatal(bucketoffset.CategoryReadbackMap, "map async", err)
	}

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	var status wgpu.BufferMapAsyncStatus
wait:
	for {
		r.device.Poll(false, nil)
		select {
		case status = <-done:
			break wait
		case <-deadline.C:
			staging.Unmap()
			return nil, bucketoffset.NewFatal(bucketoffset.CategoryReadbackMap, "map wait",
				fmt.Errorf("%w after %v", bucketoffset.ErrReadbackTimeout, timeout))
		case <-ctx.Done():
			staging.Unmap()
			return nil, bucketoffset.NewFatal(bucketoffset.CategoryReadbackMap, "map wait", ctx.Err())
		default:
			time.Sleep(pollInterval)
		}
	}

	if status != wgpu.BufferMapAsyncStatusSuccess {
		return nil, bucketoffset.NewFatal(bucketoffset.CategoryReadbackMap, "map",
			fmt.Errorf("%w: status %v", bucketoffset.ErrMapFailed, status))
	}

	data := staging.GetMappedRange(0, uint(size))
	if data == nil {
		staging.Unmap()
		return nil, bucketoffset.NewFatal(bucketoffset.CategoryReadbackMap, "get mapped range", bucketoffset.ErrMapFailed)
	}
	out := make([]uint32, n)
	copy(out, wgpu.FromBytes[uint32](data))
	staging.Unmap()
	return out, nil
}

// Close releases the pipeline and the device.
func (r *RustAccelerator) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.releaseLocked()
}

func (r *RustAccelerator) releaseLocked() {
	if r.pipeline != nil {
		r.pipeline.Release()
		r.pipeline = nil
	}
	if r.bgLayout != nil {
		r.bgLayout.Release()
		r.bgLayout = nil
	}
	r.queue = nil
	if r.device != nil {
		r.device.Release()
		r.device = nil
	}
	if r.adapter != nil {
		r.adapter.Release()
		r.adapter = nil
	}
	if r.instance != nil {
		r.instance.Release()
		r.instance = nil
	}
}
