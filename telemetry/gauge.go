// Package telemetry holds lock-free gauges and counters read by overlays and HTTP handlers
// while the simulation goroutine writes them.
package telemetry

import (
	"math"
	"sync/atomic"
)

// Gauge is a float64 that can be written and read from any goroutine.
// The zero value reads 0.
type Gauge struct {
	bits atomic.Uint64
}

func (g *Gauge) Set(val float64) {
	g.bits.Store(math.Float64bits(val))
}

func (g *Gauge) Get() float64 {
	return math.Float64frombits(g.bits.Load())
}

// Add adds delta and returns the new value.
func (g *Gauge) Add(delta float64) float64 {
	for {
		old := g.bits.Load()
		newVal := math.Float64frombits(old) + delta
		if g.bits.CompareAndSwap(old, math.Float64bits(newVal)) {
			return newVal
		}
	}
}

// Counter is a monotonic int64, reset only by Swap.
type Counter struct {
	n atomic.Int64
}

func (c *Counter) Inc() int64 {
	return c.n.Add(1)
}

func (c *Counter) Add(delta int64) int64 {
	return c.n.Add(delta)
}

func (c *Counter) Get() int64 {
	return c.n.Load()
}

// Swap returns the current count and replaces it with n; rate meters use it once per window.
func (c *Counter) Swap(n int64) int64 {
	return c.n.Swap(n)
}
