package renderer

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-bindless/engine/gpu"
	"github.com/Carmen-Shannon/oxy-bindless/engine/gpu/softgpu"
	"github.com/Carmen-Shannon/oxy-bindless/engine/gpu/wgpudevice"
	"github.com/Carmen-Shannon/oxy-bindless/engine/renderer/shader"
	"github.com/Carmen-Shannon/oxy-bindless/engine/window"
)

// RendererBackendType identifies the GPU device implementation used by the Renderer.
type RendererBackendType int

const (
	// BackendTypeWGPU renders through WebGPU into the window surface.
	BackendTypeWGPU RendererBackendType = iota

	// BackendTypeSoft renders on the CPU reference device. It needs no window and presents nowhere.
	BackendTypeSoft
)

func (t RendererBackendType) String() string {
	switch t {
	case BackendTypeWGPU:
		return "wgpu"
	case BackendTypeSoft:
		return "soft"
	default:
		return fmt.Sprintf("RendererBackendType(%d)", int(t))
	}
}

// PresentMode controls how rendered frames are presented to the display surface.
type PresentMode int

const (
	// PresentModeVSync waits for the next vertical blank before presenting, capping frame rate
	// to the monitor's refresh rate. Eliminates tearing.
	PresentModeVSync PresentMode = iota

	// PresentModeUncapped presents frames immediately without waiting for vertical blank.
	// May cause screen tearing but provides the lowest latency.
	PresentModeUncapped
)

// SyncInterval returns the swap chain sync interval of the mode.
//
// Returns:
//   - uint32: 1 for vsync, 0 for uncapped
func (m PresentMode) SyncInterval() uint32 {
	if m == PresentModeUncapped {
		return 0
	}
	return 1
}

// createDevice opens the device of the selected backend unless one was injected.
func (r *renderer) createDevice(win window.Window) (gpu.Device, error) {
	switch r.backendType {
	case BackendTypeSoft:
		return softgpu.NewDevice(), nil
	case BackendTypeWGPU:
		if win == nil {
			return nil, fmt.Errorf("%s backend needs a window surface", r.backendType)
		}
		dev, err := wgpudevice.NewDevice(win.SurfaceDescriptor(),
			wgpudevice.WithForceFallbackAdapter(r.forceFallbackAdapter),
			wgpudevice.WithVSync(r.presentMode == PresentModeVSync),
		)
		if err != nil {
			return nil, err
		}
		return dev, nil
	default:
		return nil, fmt.Errorf("unknown backend %s", r.backendType)
	}
}

// defaultCompiler returns the naga compiler over the embedded pass shaders. WebGPU has no
// binding arrays, so its shaders read the first descriptor of each unbounded table.
func (r *renderer) defaultCompiler() shader.Compiler {
	return shader.NewCompiler(shader.WithFlattenBindingArrays(r.backendType == BackendTypeWGPU))
}
