package telemetry

import (
	"sort"
	"sync"
)

// Metric names published by the physics adapter, the network drivers and the overlay.
const (
	PhysicsStepMillis = "physics.step_ms"
	PhysicsObjects    = "physics.objects"
	PhysicsCollisions = "physics.collisions"

	NetBytesIn   = "net.bytes_in"
	NetBytesOut  = "net.bytes_out"
	NetPackets   = "net.packets"
	NetLatencyMs = "net.latency_ms"

	RenderFPS    = "render.fps"
	RenderDrawMs = "render.draw_ms"
)

// metricMap creates metrics on first use. Registration takes the lock; the returned pointer
// is then used without it.
type metricMap[T any] struct {
	mu    sync.RWMutex
	items map[string]*T
}

func newMetricMap[T any]() *metricMap[T] {
	return &metricMap[T]{items: make(map[string]*T)}
}

func (m *metricMap[T]) get(key string) *T {
	m.mu.RLock()
	if ptr, ok := m.items[key]; ok {
		m.mu.RUnlock()
		return ptr
	}
	m.mu.RUnlock()

	m.mu.Lock()
	defer m.mu.Unlock()

	// another goroutine may have created it meanwhile
	if ptr, ok := m.items[key]; ok {
		return ptr
	}

	ptr := new(T)
	m.items[key] = ptr
	return ptr
}

func (m *metricMap[T]) each(fn func(key string, ptr *T)) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for k, ptr := range m.items {
		fn(k, ptr)
	}
}

// Registry names gauges and counters. Safe for concurrent use.
type Registry struct {
	gauges   *metricMap[Gauge]
	counters *metricMap[Counter]
}

func NewRegistry() *Registry {
	return &Registry{
		gauges:   newMetricMap[Gauge](),
		counters: newMetricMap[Counter](),
	}
}

// Gauge returns the gauge called name, creating it on first call.
func (r *Registry) Gauge(name string) *Gauge {
	return r.gauges.get(name)
}

// Counter returns the counter called name, creating it on first call.
func (r *Registry) Counter(name string) *Counter {
	return r.counters.get(name)
}

// Range calls fn for every metric in name order. Counters are reported as float64.
func (r *Registry) Range(fn func(name string, value float64)) {
	values := r.Snapshot()

	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		fn(name, values[name])
	}
}

// Snapshot copies every metric value.
func (r *Registry) Snapshot() map[string]float64 {
	values := make(map[string]float64)
	r.gauges.each(func(name string, g *Gauge) {
		values[name] = g.Get()
	})
	r.counters.each(func(name string, c *Counter) {
		values[name] = float64(c.Get())
	})
	return values
}
