package ecs

import (
	"github.com/armon/go-metrics"
	"github.com/rs/zerolog"
)

// Option configures a World at construction time.
type Option func(w *World)

// WithLogger sets the logger used for lifecycle and scheduling events.
func WithLogger(logger zerolog.Logger) Option {
	return func(w *World) {
		w.logger = logger
	}
}

// WithMetrics reports tick and per-system timings to m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(w *World) {
		w.metrics = m
	}
}

// WithRegistry makes the world use an existing component registry, so its
// TypeIds line up with an ArchetypeManager built on the same registry.
func WithRegistry(registry *ComponentRegistry) Option {
	return func(w *World) {
		w.registry = registry
	}
}

// WithInitialCapacity preallocates room for n entities.
func WithInitialCapacity(n int) Option {
	return func(w *World) {
		if n > 0 {
			w.capacity = n
		}
	}
}

// WithIndexRecycling reuses the indices of swept entities. Reused indices
// carry the bumped generation, so handles to the old entity stay invalid.
// Without this option indices are never reused.
func WithIndexRecycling() Option {
	return func(w *World) {
		w.recycle = true
	}
}
