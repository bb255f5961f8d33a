package wgpudevice

import (
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/oxy-bindless/engine/gpu"
	"github.com/cogentcore/webgpu/wgpu"
)

// bufferUsage covers every way the renderer reads a buffer. WebGPU tracks hazards itself,
// so resource states only matter to the CPU reference device.
const bufferUsage = wgpu.BufferUsageCopySrc | wgpu.BufferUsageCopyDst | wgpu.BufferUsageVertex |
	wgpu.BufferUsageIndex | wgpu.BufferUsageUniform | wgpu.BufferUsageStorage

// buffer wraps a WebGPU buffer. Upload-heap buffers keep a CPU copy that is written to the GPU
// buffer on every submission, which makes Map writes visible to work submitted after them.
type buffer struct {
	dev  *Device
	desc gpu.BufferDesc
	raw  *wgpu.Buffer
	host []byte

	mu       sync.Mutex
	released bool
}

var _ gpu.Buffer = &buffer{}

func (b *buffer) Label() string { return b.desc.Label }

func (b *buffer) Desc() gpu.BufferDesc { return b.desc }

func (b *buffer) Map() ([]byte, error) {
	if b.desc.Heap != gpu.HeapUpload {
		return nil, fmt.Errorf("buffer %q is not in the upload heap", b.desc.Label)
	}
	return b.host, nil
}

func (b *buffer) Release() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.released {
		return
	}
	b.released = true
	if b.desc.Heap == gpu.HeapUpload {
		b.dev.forgetUpload(b)
	}
	b.raw.Release()
}

// texture wraps a WebGPU texture and its default view. Swap chain back buffers have no texture
// of their own; their view is the surface texture acquired for the current frame.
type texture struct {
	desc gpu.TextureDesc
	raw  *wgpu.Texture
	view *wgpu.TextureView

	swapChain *swapChain

	mu       sync.Mutex
	released bool
}

var _ gpu.Texture = &texture{}

func (t *texture) Label() string { return t.desc.Label }

func (t *texture) Desc() gpu.TextureDesc { return t.desc }

func (t *texture) Release() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.released || t.swapChain != nil {
		t.released = true
		return
	}
	t.released = true
	t.view.Release()
	t.raw.Release()
}

// textureView returns the view render passes and bind groups use.
func (t *texture) textureView() (*wgpu.TextureView, error) {
	if t.swapChain != nil {
		return t.swapChain.acquire()
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.released {
		return nil, fmt.Errorf("%w: texture %q was released", gpu.ErrInvalidHandle, t.desc.Label)
	}
	return t.view, nil
}

type rootSignature struct {
	desc gpu.RootSignatureDesc
}

var _ gpu.RootSignature = &rootSignature{}

func (r *rootSignature) Desc() gpu.RootSignatureDesc { return r.desc }

func (r *rootSignature) Release() {}

// pipelineState wraps a render pipeline together with the bind group layouts built from the
// bindings its shaders declare.
type pipelineState struct {
	desc     gpu.PipelineStateDesc
	raw      *wgpu.RenderPipeline
	layout   *wgpu.PipelineLayout
	groups   []*wgpu.BindGroupLayout
	bindings [][]wgpu.BindGroupLayoutEntry
	modules  []*wgpu.ShaderModule
}

var _ gpu.PipelineState = &pipelineState{}

func (p *pipelineState) Desc() gpu.PipelineStateDesc { return p.desc }

func (p *pipelineState) Release() {
	p.raw.Release()
	p.layout.Release()
	for _, g := range p.groups {
		g.Release()
	}
	for _, m := range p.modules {
		m.Release()
	}
}
