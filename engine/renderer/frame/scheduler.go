package frame

import (
	"context"
	"sync"
	"time"
)

// FramesInFlight is the number of frames the CPU may record ahead of the GPU. Frame n renders with
// the frame resource in slot n mod FramesInFlight.
const FramesInFlight = 2

// DefaultFenceTimeout bounds every wait on a frame fence. A wait that expires reports a hung device.
const DefaultFenceTimeout = 5 * time.Second

// Scheduler owns the frame counter and the fence value each slot was last submitted with.
// It replaces free-standing frame globals and is passed to whatever records frames.
type Scheduler struct {
	mu      sync.Mutex
	frame   uint64
	pending [FramesInFlight]uint64
	timeout time.Duration
}

// NewScheduler creates a Scheduler at frame 0 with no submitted work.
//
// Parameters:
//   - options: functional options for the scheduler
//
// Returns:
//   - *Scheduler: the scheduler
func NewScheduler(options ...SchedulerBuilderOption) *Scheduler {
	s := &Scheduler{timeout: DefaultFenceTimeout}
	for _, opt := range options {
		opt(s)
	}
	return s
}

// FrameNumber returns how many frames have been advanced past.
//
// Returns:
//   - uint64: the frame counter
func (s *Scheduler) FrameNumber() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frame
}

// Slot returns the frame resource slot of the current frame.
//
// Returns:
//   - int: frame counter mod FramesInFlight
func (s *Scheduler) Slot() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int(s.frame % FramesInFlight)
}

// Pending returns the fence value the slot's last submission signals. The slot is free for reuse
// once its fence reaches this value.
//
// Parameters:
//   - slot: the frame resource slot
//
// Returns:
//   - uint64: the pending fence value, 0 if the slot was never submitted
func (s *Scheduler) Pending(slot int) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending[slot]
}

// NextFenceValue bumps and returns the value a new submission of slot signals.
//
// Parameters:
//   - slot: the frame resource slot
//
// Returns:
//   - uint64: the new pending fence value
func (s *Scheduler) NextFenceValue(slot int) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending[slot]++
	return s.pending[slot]
}

// Advance moves to the next frame.
func (s *Scheduler) Advance() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frame++
}

// Timeout returns the fence wait bound.
//
// Returns:
//   - time.Duration: the timeout
func (s *Scheduler) Timeout() time.Duration {
	return s.timeout
}

// WaitContext derives the context a fence wait runs under.
//
// Parameters:
//   - parent: the caller's context
//
// Returns:
//   - context.Context: parent bounded by the fence timeout
//   - context.CancelFunc: releases the context's resources
func (s *Scheduler) WaitContext(parent context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(parent)
	}
	return context.WithTimeout(parent, s.timeout)
}
