package ecs_test

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/armon/go-metrics"
	"github.com/plus3/worldcore/ecs"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type MovementSystem struct {
	entities     *ecs.Query
	ExecuteCount int
}

func (s *MovementSystem) Update(w *ecs.World, dt float64) {
	s.ExecuteCount++
	if s.entities == nil {
		s.entities = w.CreateQuery(ecs.TypeOf[Position](w), ecs.TypeOf[Velocity](w))
	}
	ecs.Each2(s.entities, func(e ecs.Entity, pos *Position, vel *Velocity) {
		pos.X += vel.DX * float32(dt)
		pos.Y += vel.DY * float32(dt)
	})
}

type HealthSystem struct {
	ExecuteCount int
	TotalHealth  float64
}

func (s *HealthSystem) Update(w *ecs.World, dt float64) {
	s.ExecuteCount++
	s.TotalHealth = 0
	for e := range ecs.GetEntitiesWith[Health](w) {
		hp, _ := ecs.TryGetComponent[Health](w, e)
		s.TotalHealth += float64(hp.Current)
	}
}

type recordingSystem struct {
	name string
	log  *[]string
}

func (s *recordingSystem) Update(w *ecs.World, dt float64) {
	*s.log = append(*s.log, s.name)
}

// valueSystem is not comparable, so two registrations are never the same
// instance.
type valueSystem struct {
	calls *int
	_     []int
}

func (s valueSystem) Update(w *ecs.World, dt float64) {
	*s.calls++
}

// payloadSystem has a comparable type, but its payload may hold values
// that are not.
type payloadSystem struct {
	payload any
}

func (s payloadSystem) Update(w *ecs.World, dt float64) {}

func TestScheduler(t *testing.T) {
	t.Run("system execution order", func(t *testing.T) {
		world := ecs.NewWorld()
		var log []string
		require.NoError(t, world.RegisterSystem(&recordingSystem{name: "a", log: &log}))
		require.NoError(t, world.RegisterSystem(&recordingSystem{name: "b", log: &log}))
		require.NoError(t, world.RegisterSystem(&recordingSystem{name: "c", log: &log}))

		world.Tick(1)
		world.Tick(1)

		assert.Equal(t, []string{"a", "b", "c", "a", "b", "c"}, log)
		assert.Equal(t, uint64(2), world.TickCount())
	})

	t.Run("later systems see earlier mutations", func(t *testing.T) {
		world := ecs.NewWorld()
		e := world.CreateEntity()
		require.NoError(t, ecs.AddComponent(world, e, Health{Current: 10, Max: 100}))

		var observed int
		writer := ecs.SystemFunc("writer", func(w *ecs.World, dt float64) {
			hp, err := ecs.GetComponent[Health](w, e)
			require.NoError(t, err)
			hp.Current = 42
		})
		reader := ecs.SystemFunc("reader", func(w *ecs.World, dt float64) {
			hp, _ := ecs.TryGetComponent[Health](w, e)
			observed = hp.Current
		})
		require.NoError(t, world.RegisterSystem(writer))
		require.NoError(t, world.RegisterSystem(reader))

		world.Tick(1)
		assert.Equal(t, 42, observed)
	})

	t.Run("destruction is visible but deferred within a tick", func(t *testing.T) {
		world := ecs.NewWorld()
		e := world.CreateEntity()
		require.NoError(t, ecs.AddComponent(world, e, Position{}))

		var validAfterDestroy bool
		var getErr error
		var physicallyPresent int
		require.NoError(t, world.RegisterSystem(ecs.SystemFunc("destroyer", func(w *ecs.World, dt float64) {
			w.DestroyEntity(e)
		})))
		require.NoError(t, world.RegisterSystem(ecs.SystemFunc("observer", func(w *ecs.World, dt float64) {
			validAfterDestroy = w.IsValid(e)
			_, getErr = ecs.GetComponent[Position](w, e)
			physicallyPresent = w.CollectStats().TableBreakdown[0].Count
		})))

		world.Tick(1)

		assert.False(t, validAfterDestroy)
		assert.ErrorIs(t, getErr, ecs.ErrInvalidEntity)
		assert.Equal(t, 1, physicallyPresent)
		assert.Equal(t, 0, world.CollectStats().TableBreakdown[0].Count)
	})

	t.Run("custom state persistence", func(t *testing.T) {
		world := ecs.NewWorld()
		for _, hp := range []int{50, 75} {
			e := world.CreateEntity()
			require.NoError(t, ecs.AddComponent(world, e, Health{Current: hp, Max: 100}))
		}

		health := &HealthSystem{}
		require.NoError(t, world.RegisterSystem(health))
		world.Tick(1)
		assert.Equal(t, 125.0, health.TotalHealth)

		e := world.CreateEntity()
		require.NoError(t, ecs.AddComponent(world, e, Health{Current: 25, Max: 100}))
		world.Tick(1)
		assert.Equal(t, 150.0, health.TotalHealth)
		assert.Equal(t, 2, health.ExecuteCount)
	})

	t.Run("delta time calculation", func(t *testing.T) {
		world := ecs.NewWorld()
		e := world.CreateEntity()
		require.NoError(t, ecs.AddComponent(world, e, Position{}))
		require.NoError(t, ecs.AddComponent(world, e, Velocity{DX: 10, DY: 20}))

		require.NoError(t, world.RegisterSystem(&MovementSystem{}))
		world.Tick(0.5)

		pos, _ := ecs.TryGetComponent[Position](world, e)
		assert.Equal(t, Position{X: 5, Y: 10}, pos)
	})

	t.Run("duplicate registration", func(t *testing.T) {
		world := ecs.NewWorld()
		movement := &MovementSystem{}
		require.NoError(t, world.RegisterSystem(movement))

		err := world.RegisterSystem(movement)
		assert.ErrorIs(t, err, ecs.ErrDuplicateSystem)
		assert.Equal(t, 1, world.SystemCount())

		world.Tick(1)
		assert.Equal(t, 1, movement.ExecuteCount)
	})

	t.Run("non comparable systems register independently", func(t *testing.T) {
		world := ecs.NewWorld()
		calls := 0
		sys := valueSystem{calls: &calls}
		require.NoError(t, world.RegisterSystem(sys))
		require.NoError(t, world.RegisterSystem(sys))

		world.Tick(1)
		assert.Equal(t, 2, calls)
	})

	t.Run("systems holding uncomparable payloads", func(t *testing.T) {
		world := ecs.NewWorld()
		assert.NotPanics(t, func() {
			require.NoError(t, world.RegisterSystem(payloadSystem{payload: []int{1}}))
			require.NoError(t, world.RegisterSystem(payloadSystem{payload: []int{2}}))
			world.UnregisterSystem(payloadSystem{payload: []int{3}})
		})
		assert.Equal(t, 2, world.SystemCount())

		// comparable payloads still match by value
		require.NoError(t, world.RegisterSystem(payloadSystem{payload: 7}))
		assert.ErrorIs(t, world.RegisterSystem(payloadSystem{payload: 7}), ecs.ErrDuplicateSystem)
		world.UnregisterSystem(payloadSystem{payload: 7})
		assert.Equal(t, 2, world.SystemCount())
	})

	t.Run("unregister", func(t *testing.T) {
		world := ecs.NewWorld()
		var log []string
		a := &recordingSystem{name: "a", log: &log}
		b := &recordingSystem{name: "b", log: &log}
		require.NoError(t, world.RegisterSystem(a))
		require.NoError(t, world.RegisterSystem(b))

		world.UnregisterSystem(a)
		world.UnregisterSystem(a)
		world.UnregisterSystem(&recordingSystem{name: "stranger", log: &log})
		world.Tick(1)

		assert.Equal(t, []string{"b"}, log)
		assert.Equal(t, 1, world.SystemCount())

		require.NoError(t, world.RegisterSystem(a))
		world.Tick(1)
		assert.Equal(t, []string{"b", "b", "a"}, log)
	})

	t.Run("unregister during tick", func(t *testing.T) {
		world := ecs.NewWorld()
		var log []string
		b := &recordingSystem{name: "b", log: &log}
		require.NoError(t, world.RegisterSystem(ecs.SystemFunc("a", func(w *ecs.World, dt float64) {
			log = append(log, "a")
			w.UnregisterSystem(b)
		})))
		require.NoError(t, world.RegisterSystem(b))

		world.Tick(1)
		world.Tick(1)
		assert.Equal(t, []string{"a", "b", "a"}, log)
	})

	t.Run("context cancellation in run", func(t *testing.T) {
		world := ecs.NewWorld()
		movement := &MovementSystem{}
		require.NoError(t, world.RegisterSystem(movement))

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan bool)
		go func() {
			world.Run(ctx, 1*time.Millisecond)
			done <- true
		}()

		time.Sleep(10 * time.Millisecond)
		cancel()

		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("world did not stop after context cancellation")
		}

		if movement.ExecuteCount == 0 {
			t.Error("expected system to execute at least once")
		}
	})
}

func TestSchedulerStats(t *testing.T) {
	world := ecs.NewWorld()
	require.NoError(t, world.RegisterSystem(&HealthSystem{}))
	require.NoError(t, world.RegisterSystem(ecs.SystemFunc("sleepy", func(w *ecs.World, dt float64) {
		time.Sleep(time.Millisecond)
	})))

	for i := 0; i < 3; i++ {
		world.Tick(1)
	}

	stats := world.GetStats()
	assert.Equal(t, 2, stats.SystemCount)
	assert.Equal(t, int64(6), stats.TotalExecutions)
	assert.Equal(t, uint64(3), stats.Ticks)

	require.Len(t, stats.Systems, 2)
	assert.Equal(t, "HealthSystem", stats.Systems[0].Name)
	assert.Equal(t, "sleepy", stats.Systems[1].Name)

	sleepy := stats.Systems[1]
	assert.Equal(t, int64(3), sleepy.ExecutionCount)
	assert.GreaterOrEqual(t, sleepy.MinDuration, time.Millisecond)
	assert.GreaterOrEqual(t, sleepy.MaxDuration, sleepy.MinDuration)
	assert.Equal(t, sleepy.TotalDuration/3, sleepy.AvgDuration)
}

func TestSchedulerMetrics(t *testing.T) {
	sink := metrics.NewInmemSink(time.Minute, time.Minute)
	cfg := metrics.DefaultConfig("worldtest")
	cfg.EnableHostname = false
	cfg.EnableRuntimeMetrics = false
	m, err := metrics.New(cfg, sink)
	require.NoError(t, err)

	world := ecs.NewWorld(ecs.WithMetrics(m))
	require.NoError(t, world.RegisterSystem(&HealthSystem{}))
	world.CreateEntity()

	for i := 0; i < 4; i++ {
		world.Tick(1)
	}

	var ticks int
	var sawSystem, sawEntities bool
	for _, interval := range sink.Data() {
		for name, counter := range interval.Counters {
			if strings.HasSuffix(name, "ecs.ticks") {
				ticks += counter.Count
			}
		}
		for name := range interval.Samples {
			if strings.HasSuffix(name, "ecs.system.HealthSystem") {
				sawSystem = true
			}
		}
		for name, gauge := range interval.Gauges {
			if strings.HasSuffix(name, "ecs.entities") {
				sawEntities = true
				assert.Equal(t, float32(1), gauge.Value)
			}
		}
	}

	assert.Equal(t, 4, ticks)
	assert.True(t, sawSystem)
	assert.True(t, sawEntities)
}

func TestSchedulerLogsDuplicate(t *testing.T) {
	var buf bytes.Buffer
	world := ecs.NewWorld(ecs.WithLogger(zerolog.New(&buf)))

	sys := &HealthSystem{}
	require.NoError(t, world.RegisterSystem(sys))
	require.Error(t, world.RegisterSystem(sys))

	assert.Contains(t, buf.String(), "duplicate system registration")
	assert.Contains(t, buf.String(), `"system":"HealthSystem"`)
}
