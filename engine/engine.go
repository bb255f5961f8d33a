package engine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/Carmen-Shannon/oxy-bindless/engine/profiler"
	"github.com/Carmen-Shannon/oxy-bindless/engine/renderer"
	"github.com/Carmen-Shannon/oxy-bindless/engine/window"
)

// ErrNoRenderer is returned by Run when the engine was built without a renderer.
var ErrNoRenderer = errors.New("engine has no renderer")

// engine implements the Engine interface.
type engine struct {
	mu sync.Mutex

	window   window.Window
	renderer renderer.Renderer

	profiler         *profiler.Profiler
	profilingEnabled bool

	updateCallback   func(deltaTime float32)
	renderFrameLimit time.Duration // minimum frame duration; 0 = uncapped

	pendingResize *[2]int
	quit          chan struct{}
	quitOnce      sync.Once
}

// Engine drives the frame loop: poll the window, forward the pressed keys, run the update
// callback, render and present a frame, then tick the profiler.
type Engine interface {
	// Window returns the window the engine polls.
	//
	// Returns:
	//   - window.Window: the window instance, nil when running headless
	Window() window.Window

	// Renderer returns the renderer frames are drawn with.
	//
	// Returns:
	//   - renderer.Renderer: the renderer
	Renderer() renderer.Renderer

	// EnableProfiler enables frame pacing output to the log.
	EnableProfiler()

	// DisableProfiler disables frame pacing output.
	DisableProfiler()

	// SetUpdateCallback registers the function called once per frame before rendering.
	//
	// Parameters:
	//   - callback: receives the time since the previous frame in seconds
	SetUpdateCallback(callback func(deltaTime float32))

	// SetRenderFrameLimit sets an optional frame rate cap in frames per second.
	//
	// Parameters:
	//   - fps: maximum frames per second (0 = uncapped)
	SetRenderFrameLimit(fps float64)

	// Run renders frames until the window closes, Quit is called or ctx is done. It must be
	// called from the goroutine that created the window and the renderer.
	//
	// Parameters:
	//   - ctx: stops the loop when done and bounds each frame's slot wait
	//
	// Returns:
	//   - error: ErrNoRenderer, or the first frame or resize error
	Run(ctx context.Context) error

	// Quit stops the loop after the current frame. Safe to call multiple times and from any
	// goroutine.
	Quit()
}

var _ Engine = &engine{}

// NewEngine creates a new Engine with the provided options. A window's resizes are queued and
// applied to the renderer by the loop.
//
// Parameters:
//   - options: functional options for engine configuration
//
// Returns:
//   - Engine: the newly created engine
func NewEngine(options ...EngineBuilderOption) Engine {
	e := &engine{
		quit:     make(chan struct{}),
		profiler: profiler.NewProfiler(),
	}
	for _, opt := range options {
		opt(e)
	}

	if e.window != nil {
		e.window.SetResizeCallback(func(width, height int) {
			e.mu.Lock()
			defer e.mu.Unlock()
			e.pendingResize = &[2]int{width, height}
		})
	}
	return e
}

func (e *engine) Window() window.Window {
	return e.window
}

func (e *engine) Renderer() renderer.Renderer {
	return e.renderer
}

func (e *engine) EnableProfiler() {
	e.profilingEnabled = true
}

func (e *engine) DisableProfiler() {
	e.profilingEnabled = false
}

func (e *engine) SetUpdateCallback(callback func(deltaTime float32)) {
	e.updateCallback = callback
}

func (e *engine) SetRenderFrameLimit(fps float64) {
	if fps <= 0 {
		e.renderFrameLimit = 0
		return
	}
	e.renderFrameLimit = time.Duration(float64(time.Second) / fps)
}

func (e *engine) Quit() {
	e.quitOnce.Do(func() {
		close(e.quit)
	})
}

func (e *engine) Run(ctx context.Context) error {
	if e.renderer == nil {
		return ErrNoRenderer
	}

	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-e.quit:
			return nil
		default:
		}

		if e.window != nil && !e.window.PollEvents() {
			return nil
		}
		if err := e.applyResize(); err != nil {
			return err
		}
		if e.window != nil {
			if keys := e.window.Keys(); len(keys) > 0 {
				e.renderer.OnKeys(keys)
			}
		}

		now := time.Now()
		dt := float32(now.Sub(last).Seconds())
		last = now
		if e.updateCallback != nil {
			e.updateCallback(dt)
		}

		if err := e.renderer.RenderFrame(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("frame %d: %w", e.renderer.FrameNumber(), err)
		}

		if e.profilingEnabled && e.profiler != nil {
			e.profiler.Tick()
		}

		if e.renderFrameLimit > 0 {
			if remaining := e.renderFrameLimit - time.Since(now); remaining > 0 {
				time.Sleep(remaining)
			}
		}
	}
}

// applyResize forwards the latest queued window size to the renderer. Sizes queued between two
// frames collapse into the last one.
func (e *engine) applyResize() error {
	e.mu.Lock()
	size := e.pendingResize
	e.pendingResize = nil
	e.mu.Unlock()

	if size == nil {
		return nil
	}
	if err := e.renderer.Resize(size[0], size[1]); err != nil {
		log.Printf("[Engine] resize to %dx%d failed: %v", size[0], size[1], err)
		return err
	}
	return nil
}
