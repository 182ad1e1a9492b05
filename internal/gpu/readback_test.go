//go:build !nogpu

package gpu

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/gogpu/bucketoffset"
)

func TestReadUint32s(t *testing.T) {
	want := []uint32{24, 42, 192, 42}
	buf := newReadbackBuffer(t, valuesReader{values: want}, 16)

	got, err := ReadUint32s(context.Background(), buf, len(want), time.Second)
	if err != nil {
		t.Fatalf("ReadUint32s: %v", err)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("got[%d] = %d, want %d", i, got[i], want[i])
		}
	}
	if buf.MapState() != BufferMapStateUnmapped {
		t.Errorf("buffer left %v", buf.MapState())
	}
}

func TestReadUint32sMapFailure(t *testing.T) {
	buf := newReadbackBuffer(t, failingReader{}, 16)

	got, err := ReadUint32s(context.Background(), buf, 4, time.Second)
	if got != nil {
		t.Errorf("expected no values on map failure, got %v", got)
	}
	if !errors.Is(err, bucketoffset.ErrMapFailed) {
		t.Errorf("err = %v, want ErrMapFailed", err)
	}
	if !errors.Is(err, errInjected) {
		t.Errorf("err = %v, want the device cause", err)
	}
	if cat := bucketoffset.CategoryOf(err); cat != bucketoffset.CategoryReadbackMap {
		t.Errorf("category = %v, want readback-map", cat)
	}
}

func TestReadUint32sTimeout(t *testing.T) {
	buf := newReadbackBuffer(t, newBlockingReader(t), 16)

	start := time.Now()
	_, err := ReadUint32s(context.Background(), buf, 4, 20*time.Millisecond)
	if !errors.Is(err, bucketoffset.ErrReadbackTimeout) {
		t.Fatalf("err = %v, want ErrReadbackTimeout", err)
	}
	if cat := bucketoffset.CategoryOf(err); cat != bucketoffset.CategoryReadbackMap {
		t.Errorf("category = %v, want readback-map", cat)
	}
	if time.Since(start) > 2*time.Second {
		t.Errorf("timeout took %v", time.Since(start))
	}
	if buf.MapState() != BufferMapStateUnmapped {
		t.Errorf("pending map not cancelled: %v", buf.MapState())
	}
}

func TestReadUint32sCancel(t *testing.T) {
	buf := newReadbackBuffer(t, newBlockingReader(t), 16)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err := ReadUint32s(ctx, buf, 4, time.Minute)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if !bucketoffset.IsFatal(err) {
		t.Error("cancellation should be a fatal outcome")
	}
}
