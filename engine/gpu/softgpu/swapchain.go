package softgpu

import (
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/oxy-bindless/engine/gpu"
)

type swapChain struct {
	dev   *Device
	queue *Queue

	mu       sync.Mutex
	desc     gpu.SwapChainDesc
	buffers  []*texture
	current  uint32
	presents uint64
}

var _ gpu.SwapChain = &swapChain{}

func (s *swapChain) createBuffers(desc gpu.SwapChainDesc) error {
	if desc.BufferCount < 2 {
		return fmt.Errorf("swap chain needs at least 2 buffers, got %d", desc.BufferCount)
	}
	if desc.Width == 0 || desc.Height == 0 {
		return fmt.Errorf("swap chain has zero extent %dx%d", desc.Width, desc.Height)
	}
	if desc.Format == gpu.FormatUnknown {
		desc.Format = gpu.FormatBGRA8Unorm
	}
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
			state: gpu.StatePresent,
		}
	}
	s.current = 0
	return nil
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

func (s *swapChain) Present(syncInterval uint32) error {
	if err := s.dev.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	tex := s.buffers[s.current]
	s.current = (s.current + 1) % uint32(len(s.buffers))
	s.presents++
	s.mu.Unlock()
	return s.queue.enqueue(queueItem{kind: itemPresent, present: tex})
}

func (s *swapChain) ResizeBuffers(count, width, height uint32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, b := range s.buffers {
		b.Release()
	}
	desc := s.desc
	desc.BufferCount = count
	desc.Width = width
	desc.Height = height
	return s.createBuffers(desc)
}

func (s *swapChain) Release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, b := range s.buffers {
		b.Release()
	}
	s.buffers = nil
}

// Presents returns how many times the swap chain of a softgpu device was presented.
//
// Parameters:
//   - sc: a swap chain created by a softgpu Device
//
// Returns:
//   - uint64: the present count, or 0 for foreign swap chains
func Presents(sc gpu.SwapChain) uint64 {
	s, ok := sc.(*swapChain)
	if !ok {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.presents
}
