package softgpu

import (
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/oxy-bindless/engine/gpu"
)

type itemKind int

const (
	itemExecute itemKind = iota
	itemSignal
	itemPresent
)

type queueItem struct {
	kind    itemKind
	lists   []gpu.CommandList
	fence   gpu.Fence
	value   uint64
	present *texture
}

// Queue is a softgpu command queue. Submitted work runs in order on a dedicated goroutine, which plays
// the role of the GPU timeline for this queue.
type Queue struct {
	dev *Device
	typ gpu.CommandListType

	mu     sync.Mutex
	cond   *sync.Cond
	items  []queueItem
	held   bool
	busy   bool
	closed bool
	done   chan struct{}
}

var _ gpu.CommandQueue = &Queue{}

func newQueue(d *Device, t gpu.CommandListType) *Queue {
	q := &Queue{dev: d, typ: t, done: make(chan struct{})}
	q.cond = sync.NewCond(&q.mu)
	go q.run()
	return q
}

func (q *Queue) Type() gpu.CommandListType { return q.typ }

// Hold stops the queue from starting new work. Already running work completes. Work submitted while
// held, including fence signals, stays pending until Resume.
func (q *Queue) Hold() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.held = true
}

// Resume lets a held queue continue with its pending work.
func (q *Queue) Resume() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.held = false
	q.cond.Broadcast()
}

// Pending returns the number of submitted items that have not started.
//
// Returns:
//   - int: the pending item count
func (q *Queue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Drain blocks until every submitted item has finished. It must not be called on a held queue.
func (q *Queue) Drain() {
	q.mu.Lock()
	defer q.mu.Unlock()
	for !q.closed && (len(q.items) > 0 || q.busy) {
		q.cond.Wait()
	}
}

func (q *Queue) ExecuteCommandLists(lists ...gpu.CommandList) error {
	if err := q.dev.Err(); err != nil {
		return err
	}
	for _, l := range lists {
		if l.Type() != q.typ {
			return fmt.Errorf("%w: %s list submitted to %s queue", gpu.ErrInvalidCommand, l.Type(), q.typ)
		}
		if !l.Closed() {
			return gpu.ErrListOpen
		}
	}
	for _, l := range lists {
		if a, ok := l.Allocator().(*gpu.Allocator); ok {
			a.MarkSubmitted()
		}
	}
	return q.enqueue(queueItem{kind: itemExecute, lists: append([]gpu.CommandList(nil), lists...)})
}

func (q *Queue) Signal(fence gpu.Fence, value uint64) error {
	if err := q.dev.Err(); err != nil {
		return err
	}
	return q.enqueue(queueItem{kind: itemSignal, fence: fence, value: value})
}

func (q *Queue) Release() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	q.cond.Broadcast()
	q.mu.Unlock()
	<-q.done
}

func (q *Queue) enqueue(it queueItem) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return fmt.Errorf("%s queue released", q.typ)
	}
	q.items = append(q.items, it)
	q.cond.Broadcast()
	return nil
}

func (q *Queue) run() {
	defer close(q.done)
	for {
		q.mu.Lock()
		for !q.closed && (q.held || len(q.items) == 0) {
			q.cond.Wait()
		}
		if q.closed {
			q.mu.Unlock()
			return
		}
		it := q.items[0]
		q.items = q.items[1:]
		q.busy = true
		q.mu.Unlock()

		q.process(it)

		q.mu.Lock()
		q.busy = false
		q.cond.Broadcast()
		q.mu.Unlock()
	}
}

func (q *Queue) process(it queueItem) {
	switch it.kind {
	case itemExecute:
		for _, l := range it.lists {
			if q.dev.Err() == nil {
				if err := q.execute(l); err != nil {
					q.dev.remove(err)
				}
			}
			if a, ok := l.Allocator().(*gpu.Allocator); ok {
				a.MarkCompleted()
			}
		}
	case itemSignal:
		if q.dev.Err() != nil {
			return
		}
		if err := it.fence.Signal(it.value); err != nil {
			return
		}
		q.dev.trace.add(Event{Queue: q.typ, Kind: EventSignal, Fence: it.fence, Value: it.value})
	case itemPresent:
		if q.dev.Err() != nil {
			return
		}
		if s := it.present.currentState(); s != gpu.StatePresent {
			q.dev.remove(fmt.Errorf("%w: presented %q in state %s", gpu.ErrInvalidState, it.present.Label(), s))
			return
		}
		q.dev.trace.add(Event{Queue: q.typ, Kind: EventPresent, Label: it.present.Label()})
	}
}
