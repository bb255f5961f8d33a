package gpu

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFence_WaitReturnsOnceValueReached(t *testing.T) {
	assert := assert.New(t)
	f := NewFence(0)

	done := make(chan error, 1)
	go func() { done <- f.Wait(context.Background(), 2) }()

	assert.NoError(f.Signal(1))
	select {
	case <-done:
		t.Fatal("wait returned before the fence reached 2")
	case <-time.After(20 * time.Millisecond):
	}

	assert.NoError(f.Signal(2))
	select {
	case err := <-done:
		assert.NoError(err)
	case <-time.After(time.Second):
		t.Fatal("wait did not return after signal")
	}
}

func TestFence_SignalIsMonotonic(t *testing.T) {
	f := NewFence(5)
	assert.NoError(t, f.Signal(3))
	assert.Equal(t, uint64(5), f.CompletedValue())
}

func TestFence_WaitTimesOutAsHung(t *testing.T) {
	f := NewFence(0)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	err := f.Wait(ctx, 1)
	assert.ErrorIs(t, err, ErrDeviceHung)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestFence_ReleaseWakesWaiters(t *testing.T) {
	f := NewFence(0)
	done := make(chan error, 1)
	go func() { done <- f.Wait(context.Background(), 1) }()

	time.Sleep(5 * time.Millisecond)
	f.Release()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, errFenceReleased)
	case <-time.After(time.Second):
		t.Fatal("release did not wake the waiter")
	}
}

func TestAllocator_ResetWhilePending(t *testing.T) {
	assert := assert.New(t)
	a := NewCommandAllocator(CommandListDirect)

	a.MarkSubmitted()
	assert.ErrorIs(a.Reset(), ErrAllocatorInUse)
	a.MarkCompleted()
	assert.NoError(a.Reset())
}
