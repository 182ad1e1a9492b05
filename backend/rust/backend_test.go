//go:build rust

package rust

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/gogpu/bucketoffset"
	"github.com/gogpu/bucketoffset/backend"
	"github.com/gogpu/bucketoffset/internal/reference"
	"github.com/gogpu/bucketoffset/internal/source"
)

func TestBackendRegistration(t *testing.T) {
	if !backend.IsRegistered(backend.BackendRust) {
		t.Error("rust backend should be registered")
	}
	a := backend.Get(backend.BackendRust)
	if a == nil {
		t.Fatal("backend.Get(BackendRust) should not return nil")
	}
	if a.Name() != backend.BackendRust {
		t.Errorf("Name() = %q, want %q", a.Name(), backend.BackendRust)
	}
}

func TestBucketOffsetsNotInitialized(t *testing.T) {
	r := NewRustAccelerator()
	_, err := r.BucketOffsets(context.Background(), []uint32{1}, bucketoffset.KernelOptions{})
	if !errors.Is(err, ErrNotInitialized) {
		t.Errorf("err = %v, want ErrNotInitialized", err)
	}
}

func TestBucketOffsetsMatchesReference(t *testing.T) {
	r := NewRustAccelerator()
	if err := r.Init(context.Background()); err != nil {
		t.Skipf("wgpu-native unavailable: %v", err)
	}
	defer r.Close()

	input := source.Generate(bucketoffset.DefaultSeed, 256)
	want := reference.Compute(input).Values

	got, err := r.BucketOffsets(context.Background(), input, bucketoffset.KernelOptions{Timeout: 5 * time.Second})
	if err != nil {
		t.Fatalf("BucketOffsets: %v", err)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("index %d: expected %d, observed %d", i, want[i], got[i])
		}
	}
}
