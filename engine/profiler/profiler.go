package profiler

import (
	"log"
	"runtime"
	"time"
)

// Stats summarizes the frames counted over one reporting interval.
type Stats struct {
	FPS          float64
	AvgFrameTime time.Duration
	MaxFrameTime time.Duration
	HeapMB       float64
	AllocRateMB  float64
	NumGC        uint32
}

// Profiler tracks frame pacing and memory statistics and logs them once per interval.
type Profiler struct {
	now            func() time.Time
	updateInterval time.Duration
	logging        bool

	frameCount   int
	lastTime     time.Time
	lastFrame    time.Time
	maxFrameTime time.Duration

	memStats       runtime.MemStats
	lastTotalAlloc uint64
	last           Stats
}

// NewProfiler creates a Profiler reporting every second.
//
// Parameters:
//   - options: variadic list of ProfilerBuilderOption functions to configure the profiler
//
// Returns:
//   - *Profiler: the newly created profiler instance
func NewProfiler(options ...ProfilerBuilderOption) *Profiler {
	p := &Profiler{
		now:            time.Now,
		updateInterval: time.Second,
		logging:        true,
	}
	for _, opt := range options {
		opt(p)
	}
	p.lastTime = p.now()
	p.lastFrame = p.lastTime
	return p
}

// Tick should be called once per presented frame. When the update interval has elapsed it
// computes the interval's Stats and logs them.
//
// Returns:
//   - bool: true if a report was produced this tick
func (p *Profiler) Tick() bool {
	p.frameCount++
	now := p.now()
	if ft := now.Sub(p.lastFrame); ft > p.maxFrameTime {
		p.maxFrameTime = ft
	}
	p.lastFrame = now

	elapsed := now.Sub(p.lastTime)
	if elapsed < p.updateInterval {
		return false
	}

	runtime.ReadMemStats(&p.memStats)
	allocDelta := p.memStats.TotalAlloc - p.lastTotalAlloc
	p.last = Stats{
		FPS:          float64(p.frameCount) / elapsed.Seconds(),
		AvgFrameTime: elapsed / time.Duration(p.frameCount),
		MaxFrameTime: p.maxFrameTime,
		HeapMB:       float64(p.memStats.Alloc) / 1024 / 1024,
		AllocRateMB:  float64(allocDelta) / 1024 / 1024 / elapsed.Seconds(),
		NumGC:        p.memStats.NumGC,
	}
	if p.logging {
		log.Printf("[Profiler] FPS: %.2f | Frame: %v avg, %v max | Heap: %.2f MB | Alloc Rate: %.2f MB/s | GC: %d",
			p.last.FPS, p.last.AvgFrameTime.Round(time.Microsecond), p.last.MaxFrameTime.Round(time.Microsecond),
			p.last.HeapMB, p.last.AllocRateMB, p.last.NumGC)
	}

	p.frameCount = 0
	p.maxFrameTime = 0
	p.lastTime = now
	p.lastTotalAlloc = p.memStats.TotalAlloc
	return true
}

// Last returns the most recent report.
//
// Returns:
//   - Stats: the stats of the last completed interval, zero before the first
func (p *Profiler) Last() Stats {
	return p.last
}
