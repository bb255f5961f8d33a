package wgpudevice

import (
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/oxy-bindless/engine/gpu"
)

// completion is submitted work the queue goroutine waits for before it releases the
// submission's objects, frees its allocators and signals its fence.
type completion struct {
	encoder *encoder
	allocs  []*gpu.Allocator
	fence   gpu.Fence
	value   uint64
}

// Queue is a wgpudevice command queue. Lists are encoded and submitted on the calling goroutine;
// a queue goroutine polls the device and completes submissions in order.
type Queue struct {
	dev *Device
	typ gpu.CommandListType

	mu     sync.Mutex
	work   chan completion
	done   chan struct{}
	closed bool
}

var _ gpu.CommandQueue = &Queue{}

func newQueue(d *Device, t gpu.CommandListType) *Queue {
	q := &Queue{dev: d, typ: t, work: make(chan completion, 64), done: make(chan struct{})}
	go q.run()
	return q
}

func (q *Queue) Type() gpu.CommandListType { return q.typ }

func (q *Queue) ExecuteCommandLists(lists ...gpu.CommandList) error {
	for _, l := range lists {
		if l.Type() != q.typ {
			return fmt.Errorf("%w: %s list submitted to %s queue", gpu.ErrInvalidCommand, l.Type(), q.typ)
		}
		if !l.Closed() {
			return gpu.ErrListOpen
		}
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return fmt.Errorf("%s queue released", q.typ)
	}

	enc, err := newEncoder(q.dev)
	if err != nil {
		return err
	}
	for _, l := range lists {
		if err := enc.encode(l); err != nil {
			enc.release()
			return err
		}
	}
	cmd, err := enc.finish()
	if err != nil {
		enc.release()
		return err
	}
	q.dev.flushUploads()
	q.dev.queue.Submit(cmd)
	cmd.Release()

	c := completion{encoder: enc}
	for _, l := range lists {
		if a, ok := l.Allocator().(*gpu.Allocator); ok {
			a.MarkSubmitted()
			c.allocs = append(c.allocs, a)
		}
	}
	q.work <- c
	return nil
}

func (q *Queue) Signal(fence gpu.Fence, value uint64) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return fmt.Errorf("%s queue released", q.typ)
	}
	q.work <- completion{fence: fence, value: value}
	return nil
}

// Release completes the submitted work and stops the queue goroutine.
func (q *Queue) Release() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.work)
	q.mu.Unlock()
	<-q.done
}

func (q *Queue) run() {
	defer close(q.done)
	for c := range q.work {
		// blocks until everything submitted to the device queue so far has finished
		q.dev.device.Poll(true, nil)

		if c.encoder != nil {
			c.encoder.release()
		}
		for _, a := range c.allocs {
			a.MarkCompleted()
		}
		if c.fence != nil {
			_ = c.fence.Signal(c.value)
		}
	}
}
