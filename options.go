package physync

import (
	"github.com/charmbracelet/log"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/snower/physync/engine"
	"github.com/snower/physync/telemetry"
)

type Option func(*World)

// WithGravity overrides DefaultGravity. Init uses whatever is configured here.
func WithGravity(gravity mgl64.Vec3) Option {
	return func(w *World) {
		w.gravity = gravity
	}
}

// WithEngineFactory replaces the dynamics engine built by Init.
func WithEngineFactory(factory engine.Factory) Option {
	return func(w *World) {
		w.factory = factory
	}
}

func WithLogger(logger *log.Logger) Option {
	return func(w *World) {
		w.logger = logger
	}
}

// WithCollisionDedup reports each colliding pair once per step instead of once per
// penetrating contact point.
func WithCollisionDedup(enabled bool) Option {
	return func(w *World) {
		w.dedup = enabled
	}
}

// WithRegistry publishes the physics metrics into registry instead of a private one.
func WithRegistry(registry *telemetry.Registry) Option {
	return func(w *World) {
		w.registry = registry
	}
}
