package bucketoffset

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

type sharingAccelerator struct {
	fakeAccelerator
	provider any
}

func (s *sharingAccelerator) SetDeviceProvider(p any) error {
	if p == nil {
		return errors.New("nil provider")
	}
	s.provider = p
	return nil
}

func TestShareDevice(t *testing.T) {
	assert.Error(t, ShareDevice(nil, struct{}{}))
	assert.ErrorIs(t, ShareDevice(&fakeAccelerator{}, struct{}{}), ErrDeviceSharingUnsupported)

	s := &sharingAccelerator{}
	provider := struct{ name string }{"window"}
	assert.NoError(t, ShareDevice(s, provider))
	assert.Equal(t, provider, s.provider)
	assert.Error(t, ShareDevice(s, nil))
}

func TestAdapterName(t *testing.T) {
	assert.Equal(t, "fake adapter", adapterName(&fakeAccelerator{}))

	var plain plainAccelerator
	assert.Empty(t, adapterName(plain))
}

// plainAccelerator implements only Accelerator.
type plainAccelerator struct{}

func (plainAccelerator) Name() string               { return "plain" }
func (plainAccelerator) Init(context.Context) error { return nil }
func (plainAccelerator) Close()                     {}
func (plainAccelerator) BucketOffsets(context.Context, []uint32, KernelOptions) ([]uint32, error) {
	return nil, nil
}
