package softgpu

import (
	"sync"

	"github.com/Carmen-Shannon/oxy-bindless/engine/gpu"
)

// EventKind identifies what a trace event records.
type EventKind int

const (
	// EventCommand is one executed command list command.
	EventCommand EventKind = iota

	// EventSignal is a fence signal performed by a queue.
	EventSignal

	// EventPresent is a back buffer presentation.
	EventPresent
)

// DrawRecord is the fully resolved binding state of one executed draw.
type DrawRecord struct {
	Pipeline        string
	RootSignature   string
	Tables          map[uint32]gpu.GPUHandle
	Constants       map[uint32]uint32
	ConstantBuffers map[uint32]string
	VertexBuffer    string
	IndexBuffer     string
	Args            gpu.DrawArgs
	RenderTargets   []string
	DepthStencil    string
}

// Event is one entry of the execution trace.
type Event struct {
	Queue       gpu.CommandListType
	Kind        EventKind
	Op          gpu.CommandOp
	Label       string
	Transitions []gpu.Transition
	Draw        *DrawRecord
	Fence       gpu.Fence
	Value       uint64
}

// Trace records what the device executed, in timeline order across all queues.
// A nil *Trace ignores every call.
type Trace struct {
	mu     sync.Mutex
	events []Event
}

func (t *Trace) add(e Event) {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.events = append(t.events, e)
}

// Events returns a copy of every recorded event.
//
// Returns:
//   - []Event: the events in execution order
func (t *Trace) Events() []Event {
	if t == nil {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]Event(nil), t.events...)
}

// Draws returns every recorded draw in execution order.
//
// Returns:
//   - []DrawRecord: the resolved draws
func (t *Trace) Draws() []DrawRecord {
	var out []DrawRecord
	for _, e := range t.Events() {
		if e.Draw != nil {
			out = append(out, *e.Draw)
		}
	}
	return out
}

// Reset discards every recorded event.
func (t *Trace) Reset() {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.events = nil
}
