package profiler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time { return c.t }

func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func TestProfiler_Tick(t *testing.T) {
	assert := assert.New(t)
	clock := &fakeClock{t: time.Unix(0, 0)}
	p := NewProfiler(WithClock(clock.now), WithLogging(false))

	frames := []time.Duration{
		10 * time.Millisecond,
		30 * time.Millisecond,
		10 * time.Millisecond,
		950 * time.Millisecond,
	}
	var reported []bool
	for _, ft := range frames {
		clock.advance(ft)
		reported = append(reported, p.Tick())
	}

	assert.Equal([]bool{false, false, false, true}, reported)
	stats := p.Last()
	assert.InDelta(4/1.0, stats.FPS, 0.001)
	assert.Equal(250*time.Millisecond, stats.AvgFrameTime)
	assert.Equal(950*time.Millisecond, stats.MaxFrameTime)
}

func TestProfiler_ResetsPerInterval(t *testing.T) {
	assert := assert.New(t)
	clock := &fakeClock{t: time.Unix(0, 0)}
	p := NewProfiler(WithClock(clock.now), WithLogging(false), WithUpdateInterval(100*time.Millisecond))

	clock.advance(100 * time.Millisecond)
	assert.True(p.Tick())

	for range 5 {
		clock.advance(20 * time.Millisecond)
		p.Tick()
	}
	stats := p.Last()
	assert.InDelta(50, stats.FPS, 0.001)
	assert.Equal(20*time.Millisecond, stats.MaxFrameTime)
}
