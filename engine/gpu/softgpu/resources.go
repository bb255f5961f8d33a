package softgpu

import (
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/oxy-bindless/engine/gpu"
)

// stateful is implemented by every resource whose usage state is tracked by the queues.
type stateful interface {
	gpu.Resource
	transition(before, after gpu.ResourceState) error
	currentState() gpu.ResourceState
}

type buffer struct {
	mu       sync.Mutex
	desc     gpu.BufferDesc
	data     []byte
	state    gpu.ResourceState
	released bool
}

var _ gpu.Buffer = &buffer{}

func (b *buffer) Label() string { return b.desc.Label }

func (b *buffer) Desc() gpu.BufferDesc { return b.desc }

func (b *buffer) Map() ([]byte, error) {
	if b.desc.Heap != gpu.HeapUpload {
		return nil, fmt.Errorf("buffer %q is not in the upload heap", b.desc.Label)
	}
	return b.data, nil
}

func (b *buffer) Release() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.released = true
}

func (b *buffer) transition(before, after gpu.ResourceState) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return checkTransition(b.desc.Label, b.released, &b.state, before, after)
}

func (b *buffer) currentState() gpu.ResourceState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Bytes returns the buffer contents. Intended for tests inspecting uploaded data.
//
// Returns:
//   - []byte: the backing memory of the buffer
func (b *buffer) Bytes() []byte { return b.data }

type texture struct {
	mu       sync.Mutex
	desc     gpu.TextureDesc
	data     []byte
	state    gpu.ResourceState
	released bool
}

var _ gpu.Texture = &texture{}

func (t *texture) Label() string { return t.desc.Label }

func (t *texture) Desc() gpu.TextureDesc { return t.desc }

func (t *texture) Release() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.released = true
	t.data = nil
}

func (t *texture) transition(before, after gpu.ResourceState) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return checkTransition(t.desc.Label, t.released, &t.state, before, after)
}

func (t *texture) currentState() gpu.ResourceState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// pixels returns the texel storage, allocating it on first use.
func (t *texture) pixels() []byte {
	if t.data == nil {
		t.data = make([]byte, int(t.desc.Width)*int(t.desc.Height)*int(t.desc.Format.BytesPerPixel()))
	}
	return t.data
}

func checkTransition(label string, released bool, state *gpu.ResourceState, before, after gpu.ResourceState) error {
	if released {
		return fmt.Errorf("%w: transition of released resource %q", gpu.ErrInvalidState, label)
	}
	if *state != before {
		return fmt.Errorf("%w: %q is %s, barrier expects %s", gpu.ErrInvalidState, label, *state, before)
	}
	*state = after
	return nil
}

// TextureBytes returns the texel data of a softgpu texture, or nil if nothing was ever copied into it.
//
// Parameters:
//   - tex: a texture created by a softgpu Device
//
// Returns:
//   - []byte: the tightly packed texel data
func TextureBytes(tex gpu.Texture) []byte {
	t, ok := tex.(*texture)
	if !ok {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.data
}

// BufferBytes returns the contents of a softgpu buffer.
//
// Parameters:
//   - buf: a buffer created by a softgpu Device
//
// Returns:
//   - []byte: the buffer memory, or nil for foreign buffers
func BufferBytes(buf gpu.Buffer) []byte {
	b, ok := buf.(*buffer)
	if !ok {
		return nil
	}
	return b.Bytes()
}

// StateOf returns the tracked state of a softgpu resource.
//
// Parameters:
//   - res: a buffer or texture created by a softgpu Device
//
// Returns:
//   - gpu.ResourceState: the current state
//   - bool: false if res is not a softgpu resource
func StateOf(res gpu.Resource) (gpu.ResourceState, bool) {
	s, ok := res.(stateful)
	if !ok {
		return 0, false
	}
	return s.currentState(), true
}

type rootSignature struct {
	desc gpu.RootSignatureDesc
}

func (r *rootSignature) Desc() gpu.RootSignatureDesc { return r.desc }

func (r *rootSignature) Release() {}

type pipelineState struct {
	desc gpu.PipelineStateDesc
}

func (p *pipelineState) Desc() gpu.PipelineStateDesc { return p.desc }

func (p *pipelineState) Release() {}
