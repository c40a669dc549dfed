package ecs

import (
	"context"
	"reflect"
	"slices"
	"time"

	"github.com/rotisserie/eris"
)

// SchedulerStats provides statistics about system execution.
type SchedulerStats struct {
	SystemCount     int
	TotalExecutions int64
	Ticks           uint64
	Systems         []SystemStats
}

// SystemStats provides execution statistics for a single system.
type SystemStats struct {
	Name           string
	ExecutionCount int64
	MinDuration    time.Duration
	MaxDuration    time.Duration
	AvgDuration    time.Duration
	LastDuration   time.Duration
	TotalDuration  time.Duration
}

type systemEntry struct {
	system         System
	name           string
	metricKey      []string
	executionCount int64
	minDuration    time.Duration
	maxDuration    time.Duration
	totalDuration  time.Duration
	lastDuration   time.Duration
}

func (e *systemEntry) record(d time.Duration) {
	e.executionCount++
	e.lastDuration = d
	e.totalDuration += d
	if d < e.minDuration {
		e.minDuration = d
	}
	if d > e.maxDuration {
		e.maxDuration = d
	}
}

func systemName(s System) string {
	if named, ok := s.(NamedSystem); ok {
		return named.Name()
	}
	t := reflect.TypeOf(s)
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// sameSystem compares by identity. Values that can't be compared, including
// structs whose interface fields hold slices, maps or funcs, are never the
// same instance as anything else.
func sameSystem(a, b System) bool {
	if reflect.TypeOf(a) != reflect.TypeOf(b) {
		return false
	}
	if !reflect.ValueOf(a).Comparable() || !reflect.ValueOf(b).Comparable() {
		return false
	}
	return a == b
}

func (w *World) findSystem(s System) int {
	return slices.IndexFunc(w.systems, func(entry *systemEntry) bool {
		return sameSystem(entry.system, s)
	})
}

// RegisterSystem appends s to the update order. Registering the same
// instance twice fails with ErrDuplicateSystem.
func (w *World) RegisterSystem(s System) error {
	if s == nil {
		panic("ecs: cannot register a nil system")
	}
	name := systemName(s)
	if w.findSystem(s) >= 0 {
		w.logger.Warn().Str("system", name).Msg("duplicate system registration")
		return eris.Wrapf(ErrDuplicateSystem, "system %s", name)
	}

	w.systems = append(w.systems, &systemEntry{
		system:      s,
		name:        name,
		metricKey:   []string{"ecs", "system", name},
		minDuration: time.Duration(1<<63 - 1),
	})

	w.logger.Debug().Str("system", name).Int("position", len(w.systems)-1).Msg("system registered")
	return nil
}

// UnregisterSystem removes s. It does nothing when s is not registered. A
// tick already in progress still runs the systems it started with.
func (w *World) UnregisterSystem(s System) {
	if s == nil {
		return
	}
	idx := w.findSystem(s)
	if idx < 0 {
		return
	}
	name := w.systems[idx].name
	w.systems = slices.Concat(w.systems[:idx], w.systems[idx+1:])

	w.logger.Debug().Str("system", name).Msg("system unregistered")
}

// SystemCount returns the number of registered systems.
func (w *World) SystemCount() int {
	return len(w.systems)
}

// Tick runs every registered system once in registration order, then sweeps
// the entities destroyed during the tick.
func (w *World) Tick(dt float64) {
	tickStart := time.Now()

	for _, entry := range w.systems {
		start := time.Now()
		entry.system.Update(w, dt)
		entry.record(time.Since(start))

		if w.metrics != nil {
			w.metrics.MeasureSince(entry.metricKey, start)
		}
	}

	w.Flush()
	w.tickCount++

	if w.metrics != nil {
		w.metrics.IncrCounter([]string{"ecs", "ticks"}, 1)
		w.metrics.MeasureSince([]string{"ecs", "tick"}, tickStart)
		w.metrics.SetGauge([]string{"ecs", "entities"}, float32(w.EntityCount()))
		w.metrics.SetGauge([]string{"ecs", "queries"}, float32(len(w.queries)))
	}
}

// TickCount returns the number of completed ticks.
func (w *World) TickCount() uint64 {
	return w.tickCount
}

// Run ticks the world at the given interval until the context is cancelled.
// Delta time is the wall time between ticks, in seconds.
func (w *World) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	w.logger.Info().Dur("interval", interval).Int("systems", len(w.systems)).Msg("world loop started")
	lastTime := time.Now()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info().Uint64("ticks", w.tickCount).Msg("world loop stopped")
			return
		case now := <-ticker.C:
			dt := now.Sub(lastTime).Seconds()
			lastTime = now
			w.Tick(dt)
		}
	}
}

// GetStats returns statistics about system execution.
func (w *World) GetStats() *SchedulerStats {
	stats := &SchedulerStats{
		SystemCount: len(w.systems),
		Ticks:       w.tickCount,
		Systems:     make([]SystemStats, len(w.systems)),
	}

	var totalExecs int64
	for i, entry := range w.systems {
		avgDuration := time.Duration(0)
		if entry.executionCount > 0 {
			avgDuration = entry.totalDuration / time.Duration(entry.executionCount)
		}

		stats.Systems[i] = SystemStats{
			Name:           entry.name,
			ExecutionCount: entry.executionCount,
			MinDuration:    entry.minDuration,
			MaxDuration:    entry.maxDuration,
			AvgDuration:    avgDuration,
			LastDuration:   entry.lastDuration,
			TotalDuration:  entry.totalDuration,
		}
		totalExecs += entry.executionCount
	}

	stats.TotalExecutions = totalExecs
	return stats
}
