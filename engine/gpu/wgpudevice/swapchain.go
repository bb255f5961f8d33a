package wgpudevice

import (
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/oxy-bindless/engine/gpu"
	"github.com/cogentcore/webgpu/wgpu"
)

// swapChain presents through the device surface. WebGPU surfaces rotate their own images, so
// the back buffers are placeholders that all resolve to the surface texture acquired for the
// frame being recorded.
type swapChain struct {
	dev *Device

	mu      sync.Mutex
	desc    gpu.SwapChainDesc
	buffers []*texture
	current uint32

	frame     *wgpu.Texture
	frameView *wgpu.TextureView
}

var _ gpu.SwapChain = &swapChain{}

func (s *swapChain) configure(desc gpu.SwapChainDesc) error {
	if desc.BufferCount < 2 {
		return fmt.Errorf("swap chain needs at least 2 buffers, got %d", desc.BufferCount)
	}
	if desc.Width == 0 || desc.Height == 0 {
		return fmt.Errorf("swap chain has zero extent %dx%d", desc.Width, desc.Height)
	}
	if desc.Format == gpu.FormatUnknown {
		desc.Format = gpu.FormatBGRA8Unorm
	}
	format, err := textureFormat(desc.Format)
	if err != nil {
		return err
	}

	presentMode := wgpu.PresentModeImmediate
	if s.dev.vsync {
		presentMode = wgpu.PresentModeFifo
	}
	capabilities := s.dev.surface.GetCapabilities(s.dev.adapter)
	s.dev.surface.Configure(s.dev.adapter, s.dev.device, &wgpu.SurfaceConfiguration{
		Usage:       wgpu.TextureUsageRenderAttachment,
		Format:      format,
		Width:       desc.Width,
		Height:      desc.Height,
		PresentMode: presentMode,
		AlphaMode:   capabilities.AlphaModes[0],
	})

	s.desc = desc
	s.buffers = make([]*texture, desc.BufferCount)
	for i := range s.buffers {
		s.buffers[i] = &texture{
			desc: gpu.TextureDesc{
				Label:        fmt.Sprintf("back_buffer_%d", i),
				Width:        desc.Width,
				Height:       desc.Height,
				Format:       desc.Format,
				Usage:        gpu.TextureUsageRenderTarget,
				InitialState: gpu.StatePresent,
			},
			swapChain: s,
		}
	}
	s.current = 0
	return nil
}

// acquire returns the view of the surface texture for the frame being recorded, acquiring it
// on first use after a present.
func (s *swapChain) acquire() (*wgpu.TextureView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.frameView != nil {
		return s.frameView, nil
	}
	tex, err := s.dev.surface.GetCurrentTexture()
	if err != nil {
		return nil, fmt.Errorf("acquire surface texture: %w", err)
	}
	view, err := tex.CreateView(nil)
	if err != nil {
		tex.Release()
		return nil, fmt.Errorf("create surface view: %w", err)
	}
	s.frame, s.frameView = tex, view
	return view, nil
}

func (s *swapChain) releaseFrame() {
	if s.frameView != nil {
		s.frameView.Release()
		s.frameView = nil
	}
	if s.frame != nil {
		s.frame.Release()
		s.frame = nil
	}
}

func (s *swapChain) Desc() gpu.SwapChainDesc {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.desc
}

func (s *swapChain) CurrentBackBufferIndex() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

func (s *swapChain) BackBuffer(i uint32) (gpu.Texture, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if int(i) >= len(s.buffers) {
		return nil, fmt.Errorf("back buffer %d out of range (%d buffers)", i, len(s.buffers))
	}
	return s.buffers[i], nil
}

// Present shows the acquired surface texture. The sync interval is fixed by the present mode
// chosen when the device was opened.
func (s *swapChain) Present(syncInterval uint32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.frame == nil {
		return fmt.Errorf("present without a rendered frame")
	}
	s.dev.surface.Present()
	s.releaseFrame()
	s.current = (s.current + 1) % uint32(len(s.buffers))
	return nil
}

func (s *swapChain) ResizeBuffers(count, width, height uint32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.releaseFrame()
	desc := s.desc
	desc.BufferCount = count
	desc.Width = width
	desc.Height = height
	return s.configure(desc)
}

func (s *swapChain) Release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.releaseFrame()
	s.buffers = nil
}
