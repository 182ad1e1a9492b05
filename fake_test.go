package bucketoffset

import (
	"context"
	"log/slog"
	"sync"

	"github.com/gogpu/bucketoffset/internal/reference"
)

// fakeAccelerator computes offsets on the host and lets tests inject
// failures and corruption.
type fakeAccelerator struct {
	mu sync.Mutex

	initErr   error
	runErr    error
	corrupt   func([]uint32) []uint32
	initCalls int
	closed    bool
	logger    *slog.Logger
}

func (f *fakeAccelerator) Name() string        { return "fake" }
func (f *fakeAccelerator) AdapterName() string { return "fake adapter" }

func (f *fakeAccelerator) SetLogger(l *slog.Logger) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logger = l
}

func (f *fakeAccelerator) Init(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.initCalls++
	return f.initErr
}

func (f *fakeAccelerator) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
}

func (f *fakeAccelerator) BucketOffsets(_ context.Context, input []uint32, _ KernelOptions) ([]uint32, error) {
	if f.runErr != nil {
		return nil, f.runErr
	}
	out := reference.Compute(input).Values
	if f.corrupt != nil {
		out = f.corrupt(out)
	}
	return out, nil
}
