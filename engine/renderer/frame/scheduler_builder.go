package frame

import "time"

// SchedulerBuilderOption is a functional option for configuring a Scheduler.
type SchedulerBuilderOption func(*Scheduler)

// WithFenceTimeout is an option builder that bounds fence waits. A non-positive timeout leaves
// waits bounded only by the caller's context. Defaults to DefaultFenceTimeout.
//
// Parameters:
//   - timeout: the wait bound
//
// Returns:
//   - SchedulerBuilderOption: a function that applies the timeout option to a scheduler
func WithFenceTimeout(timeout time.Duration) SchedulerBuilderOption {
	return func(s *Scheduler) {
		s.timeout = timeout
	}
}
