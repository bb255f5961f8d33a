package gpu

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
)

// errFenceReleased is returned to waiters of a released fence.
var errFenceReleased = errors.New("fence released")

// fence is the backend-independent Fence implementation. Backends call Signal from whatever
// goroutine observes GPU completion.
type fence struct {
	mu       sync.Mutex
	value    uint64
	changed  chan struct{}
	released bool
}

var _ Fence = &fence{}

// NewFence creates a fence starting at initial.
//
// Parameters:
//   - initial: the starting completed value
//
// Returns:
//   - Fence: the new fence
func NewFence(initial uint64) Fence {
	return &fence{value: initial, changed: make(chan struct{})}
}

func (f *fence) CompletedValue() uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.value
}

func (f *fence) Signal(value uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.released {
		return errFenceReleased
	}
	if value <= f.value {
		return nil
	}
	f.value = value
	close(f.changed)
	f.changed = make(chan struct{})
	return nil
}

func (f *fence) Wait(ctx context.Context, value uint64) error {
	for {
		f.mu.Lock()
		if f.value >= value {
			f.mu.Unlock()
			return nil
		}
		if f.released {
			f.mu.Unlock()
			return errFenceReleased
		}
		changed, current := f.changed, f.value
		f.mu.Unlock()

		select {
		case <-changed:
		case <-ctx.Done():
			return fmt.Errorf("%w: fence at %d never reached %d: %w", ErrDeviceHung, current, value, ctx.Err())
		}
	}
}

func (f *fence) Release() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.released {
		return
	}
	f.released = true
	close(f.changed)
}

// Allocator is the backend-independent CommandAllocator. Queues mark it busy while lists recorded
// from it execute.
type Allocator struct {
	typ     CommandListType
	pending atomic.Int64
}

var _ CommandAllocator = &Allocator{}

// NewCommandAllocator creates an allocator for lists of type t.
//
// Parameters:
//   - t: the list type
//
// Returns:
//   - *Allocator: the new allocator
func NewCommandAllocator(t CommandListType) *Allocator {
	return &Allocator{typ: t}
}

func (a *Allocator) Type() CommandListType { return a.typ }

func (a *Allocator) Reset() error {
	if n := a.pending.Load(); n > 0 {
		return fmt.Errorf("%w: %d submission(s) pending", ErrAllocatorInUse, n)
	}
	return nil
}

// MarkSubmitted records that a list recorded from this allocator was handed to a queue.
func (a *Allocator) MarkSubmitted() { a.pending.Add(1) }

// MarkCompleted records that a previously submitted list finished executing.
func (a *Allocator) MarkCompleted() { a.pending.Add(-1) }

// Pending returns the number of submissions that have not completed.
//
// Returns:
//   - int64: the outstanding submission count
func (a *Allocator) Pending() int64 { return a.pending.Load() }
