package telemetry

import (
	"sync"
	"testing"
)

func TestGauge(t *testing.T) {
	var g Gauge
	if g.Get() != 0 {
		t.Fatalf("zero Gauge = %v, want 0", g.Get())
	}

	g.Set(1.5)
	if got := g.Add(2.25); got != 3.75 {
		t.Errorf("Add() = %v, want 3.75", got)
	}
	if g.Get() != 3.75 {
		t.Errorf("Get() = %v, want 3.75", g.Get())
	}
}

func TestGaugeConcurrentAdd(t *testing.T) {
	var g Gauge
	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 1000 {
				g.Add(1)
			}
		}()
	}
	wg.Wait()

	if g.Get() != 8000 {
		t.Errorf("Get() = %v, want 8000", g.Get())
	}
}

func TestCounter(t *testing.T) {
	var c Counter
	c.Inc()
	c.Add(4)
	if c.Get() != 5 {
		t.Fatalf("Get() = %d, want 5", c.Get())
	}
	if old := c.Swap(0); old != 5 {
		t.Errorf("Swap() = %d, want 5", old)
	}
	if c.Get() != 0 {
		t.Errorf("Get() after Swap = %d, want 0", c.Get())
	}
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()

	if r.Gauge(PhysicsStepMillis) != r.Gauge(PhysicsStepMillis) {
		t.Fatal("Gauge returned different pointers for the same name")
	}

	r.Gauge(PhysicsStepMillis).Set(2.5)
	r.Counter(PhysicsCollisions).Add(3)
	r.Gauge(RenderFPS).Set(60)

	var names []string
	var values []float64
	r.Range(func(name string, value float64) {
		names = append(names, name)
		values = append(values, value)
	})

	wantNames := []string{PhysicsCollisions, PhysicsStepMillis, RenderFPS}
	wantValues := []float64{3, 2.5, 60}
	if len(names) != len(wantNames) {
		t.Fatalf("Range names = %v, want %v", names, wantNames)
	}
	for i := range wantNames {
		if names[i] != wantNames[i] || values[i] != wantValues[i] {
			t.Errorf("entry %d = %s:%v, want %s:%v", i, names[i], values[i], wantNames[i], wantValues[i])
		}
	}
}
