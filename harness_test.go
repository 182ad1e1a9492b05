package bucketoffset

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunPass(t *testing.T) {
	f := &fakeAccelerator{}
	r, err := Run(context.Background(), DefaultConfig(), f)
	require.NoError(t, err)

	assert.Equal(t, OutcomePass, r.Outcome)
	assert.True(t, r.Passed())
	assert.NoError(t, r.Err)
	assert.Empty(t, r.Mismatches)
	assert.Equal(t, "fake", r.Backend)
	assert.Equal(t, "fake adapter", r.Adapter)
	assert.Len(t, r.Input, MaxLength)
	assert.Equal(t, r.Expected, r.Observed)
	assert.Equal(t, []uint32{24, 42, 192, 42, 108, 14, 9, 192}, r.Expected[:8])
	assert.Equal(t, 1, f.initCalls)

	id, err := uuid.Parse(r.RunID)
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(7), id.Version())
}

func TestRunMismatch(t *testing.T) {
	f := &fakeAccelerator{corrupt: func(v []uint32) []uint32 {
		v[3]++
		v[200] = 0
		return v
	}}
	r, err := Run(context.Background(), DefaultConfig(), f)
	require.NoError(t, err)

	assert.Equal(t, OutcomeMismatch, r.Outcome)
	assert.False(t, r.Passed())
	assert.ErrorIs(t, r.Err, ErrVerificationFailed)
	assert.False(t, IsFatal(r.Err))
	require.Len(t, r.Mismatches, 2)
	assert.Equal(t, 3, r.Mismatches[0].Index)
	assert.Equal(t, r.Expected[3]+1, r.Mismatches[0].Observed)
	assert.Equal(t, 200, r.Mismatches[1].Index)
}

func TestRunShortReadbackIsMismatch(t *testing.T) {
	f := &fakeAccelerator{corrupt: func(v []uint32) []uint32 { return v[:250] }}
	r, err := Run(context.Background(), DefaultConfig(), f)
	require.NoError(t, err)

	assert.Equal(t, OutcomeMismatch, r.Outcome)
	require.Len(t, r.Mismatches, 6)
	assert.True(t, r.Mismatches[0].Missing)
	assert.Equal(t, 250, r.Mismatches[0].Index)
}

func TestRunInitFailureIsFatal(t *testing.T) {
	f := &fakeAccelerator{initErr: ErrNoAdapter}
	r, err := Run(context.Background(), DefaultConfig(), f)
	require.NoError(t, err)

	assert.Equal(t, OutcomeFatal, r.Outcome)
	assert.ErrorIs(t, r.Err, ErrNoAdapter)
	assert.Equal(t, CategoryDeviceAcquisition, CategoryOf(r.Err))
	assert.Nil(t, r.Observed)
	assert.Empty(t, r.Mismatches)
}

func TestRunReadbackFailureKeepsCategory(t *testing.T) {
	cause := NewFatal(CategoryReadbackMap, "map", fmt.Errorf("%w: status Error", ErrMapFailed))
	f := &fakeAccelerator{runErr: cause}
	r, err := Run(context.Background(), DefaultConfig(), f)
	require.NoError(t, err)

	assert.Equal(t, OutcomeFatal, r.Outcome)
	assert.Equal(t, CategoryReadbackMap, CategoryOf(r.Err))
	assert.ErrorIs(t, r.Err, ErrMapFailed)
	assert.Nil(t, r.Observed)

	var buf bytes.Buffer
	require.NoError(t, r.WriteText(&buf))
	assert.NotContains(t, buf.String(), "index ")
	assert.Contains(t, buf.String(), "result: FATAL")
}

func TestRunPlainErrorBecomesDeviceFault(t *testing.T) {
	f := &fakeAccelerator{runErr: errors.New("queue submit rejected")}
	r, err := Run(context.Background(), DefaultConfig(), f)
	require.NoError(t, err)
	assert.Equal(t, CategoryDeviceFault, CategoryOf(r.Err))
}

func TestRunArguments(t *testing.T) {
	_, err := Run(context.Background(), DefaultConfig(), nil)
	assert.ErrorIs(t, err, ErrNilAccelerator)

	cfg := DefaultConfig()
	cfg.Length = 0
	_, err = Run(context.Background(), cfg, &fakeAccelerator{})
	assert.Error(t, err)
}

func TestRunShortInput(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Length = 8
	r, err := Run(context.Background(), cfg, &fakeAccelerator{})
	require.NoError(t, err)
	assert.Equal(t, OutcomePass, r.Outcome)
	assert.Equal(t, []uint32{2, 3, 6, 3, 5, 1, 0, 6}, r.Expected)
	assert.Positive(t, r.Duration)
	assert.Less(t, r.Duration, time.Minute)
}

func TestRunPropagatesLogger(t *testing.T) {
	orig := Logger()
	t.Cleanup(func() { SetLogger(orig) })

	var buf bytes.Buffer
	SetLogger(newTextLogger(&buf))

	f := &fakeAccelerator{}
	_, err := Run(context.Background(), DefaultConfig(), f)
	require.NoError(t, err)
	assert.Same(t, Logger(), f.logger)
	assert.Contains(t, buf.String(), "run passed")
}
