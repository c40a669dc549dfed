package main

import (
	"fmt"
	"math/rand"

	"github.com/plus3/worldcore/ecs"
	"github.com/rs/zerolog"
)

const (
	modeWorld     = "world"
	modeArchetype = "archetype"
)

type Position struct {
	X, Y float32
}

type Velocity struct {
	DX, DY float32
}

// Lifetime counts down in seconds; the entity is removed when it reaches 0.
type Lifetime struct {
	Remaining float64
}

// Simulation is one stress workload. Step advances it by one frame.
type Simulation interface {
	Step(dt float64)
	Population() int
	Summary() []string
}

func newSimulation(cfg RunConfig, opts []ecs.Option, logger zerolog.Logger) Simulation {
	rng := rand.New(rand.NewSource(cfg.Seed))
	if cfg.Mode == modeArchetype {
		return newArchetypeSimulation(cfg, rng)
	}
	if cfg.RecycleIndices {
		opts = append(opts, ecs.WithIndexRecycling())
	}
	opts = append(opts, ecs.WithLogger(logger), ecs.WithInitialCapacity(cfg.Entities))
	return newWorldSimulation(cfg, rng, opts...)
}

// worldSimulation drives an ecs.World with three systems: movement, aging
// and a spawner that keeps the population at its target.
type worldSimulation struct {
	world    *ecs.World
	movement *MovementSystem
	aging    *AgingSystem
	spawner  *SpawnerSystem
}

func newWorldSimulation(cfg RunConfig, rng *rand.Rand, opts ...ecs.Option) *worldSimulation {
	world := ecs.NewWorld(opts...)
	sim := &worldSimulation{
		world:    world,
		movement: &MovementSystem{},
		aging:    &AgingSystem{},
		spawner:  &SpawnerSystem{Target: cfg.Entities, MaxLifetime: cfg.MaxLifetime, rng: rng},
	}

	for _, s := range []ecs.System{sim.spawner, sim.movement, sim.aging} {
		if err := world.RegisterSystem(s); err != nil {
			panic(err)
		}
	}
	sim.spawner.fill(world)
	return sim
}

func (s *worldSimulation) Step(dt float64) {
	s.world.Tick(dt)
}

func (s *worldSimulation) Population() int {
	return s.world.EntityCount()
}

func (s *worldSimulation) Summary() []string {
	lines := []string{
		fmt.Sprintf("Ticks: %d", s.world.TickCount()),
		fmt.Sprintf("Spawned: %d, Expired: %d", s.spawner.Spawned, s.aging.Expired),
		fmt.Sprintf("Movement query recomputes: %d", s.movement.Recomputes()),
		fmt.Sprintf("Aging query recomputes: %d", s.aging.Recomputes()),
	}
	for _, st := range s.world.GetStats().Systems {
		lines = append(lines, fmt.Sprintf("System %s: runs=%d avg=%s min=%s max=%s",
			st.Name, st.ExecutionCount, st.AvgDuration, st.MinDuration, st.MaxDuration))
	}
	for _, table := range s.world.CollectStats().TableBreakdown {
		lines = append(lines, fmt.Sprintf("Table %s: %d", table.Name, table.Count))
	}
	return lines
}

type MovementSystem struct {
	moving *ecs.Query
}

func (s *MovementSystem) Update(w *ecs.World, dt float64) {
	if s.moving == nil {
		s.moving = w.CreateQuery(ecs.TypeOf[Position](w), ecs.TypeOf[Velocity](w))
	}
	ecs.Each2(s.moving, func(e ecs.Entity, pos *Position, vel *Velocity) {
		pos.X += vel.DX * float32(dt)
		pos.Y += vel.DY * float32(dt)
	})
}

func (s *MovementSystem) Recomputes() uint64 {
	if s.moving == nil {
		return 0
	}
	return s.moving.Recomputes()
}

type AgingSystem struct {
	aging   *ecs.Query
	Expired int
}

func (s *AgingSystem) Update(w *ecs.World, dt float64) {
	if s.aging == nil {
		s.aging = w.CreateQuery(ecs.TypeOf[Lifetime](w))
	}
	ecs.Each(s.aging, func(e ecs.Entity, life *Lifetime) {
		life.Remaining -= dt
		if life.Remaining <= 0 {
			w.DestroyEntity(e)
			s.Expired++
		}
	})
}

func (s *AgingSystem) Recomputes() uint64 {
	if s.aging == nil {
		return 0
	}
	return s.aging.Recomputes()
}

// SpawnerSystem tops the population back up to Target. Entities it creates
// always age, and half of them move.
type SpawnerSystem struct {
	Target      int
	MaxLifetime float64
	Spawned     int
	rng         *rand.Rand
}

func (s *SpawnerSystem) Update(w *ecs.World, dt float64) {
	s.fill(w)
}

func (s *SpawnerSystem) fill(w *ecs.World) {
	for n := s.Target - w.EntityCount(); n > 0; n-- {
		e := w.CreateEntity()
		err := ecs.AddComponent(w, e, Position{X: s.rng.Float32() * 100, Y: s.rng.Float32() * 100})
		if err == nil {
			err = ecs.AddComponent(w, e, Lifetime{Remaining: s.rng.Float64() * s.MaxLifetime})
		}
		if err == nil && s.rng.Intn(2) == 0 {
			err = ecs.AddComponent(w, e, Velocity{DX: s.rng.Float32() - 0.5, DY: s.rng.Float32() - 0.5})
		}
		if err != nil {
			panic(err)
		}
		s.Spawned++
	}
}

// archetypeSimulation runs the same workload on an ArchetypeManager, walking
// packed columns instead of per-entity lookups.
type archetypeSimulation struct {
	manager    *ecs.ArchetypeManager
	cfg        RunConfig
	rng        *rand.Rand
	posId      ecs.TypeId
	velId      ecs.TypeId
	lifeId     ecs.TypeId
	nextIndex  uint32
	population int
	frames     int
	spawned    int
	expired    int
	expiredBuf []ecs.Entity
}

func newArchetypeSimulation(cfg RunConfig, rng *rand.Rand) *archetypeSimulation {
	registry := ecs.NewComponentRegistry()
	sim := &archetypeSimulation{
		manager: ecs.NewArchetypeManager(registry),
		cfg:     cfg,
		rng:     rng,
		posId:   ecs.RegisterComponent[Position](registry),
		velId:   ecs.RegisterComponent[Velocity](registry),
		lifeId:  ecs.RegisterComponent[Lifetime](registry),
	}
	sim.fill()
	return sim
}

func (s *archetypeSimulation) fill() {
	for ; s.population < s.cfg.Entities; s.population++ {
		s.nextIndex++
		e := ecs.NewEntity(s.nextIndex, 0)
		pos := Position{X: s.rng.Float32() * 100, Y: s.rng.Float32() * 100}
		life := Lifetime{Remaining: s.rng.Float64() * s.cfg.MaxLifetime}

		var err error
		if s.rng.Intn(2) == 0 {
			_, err = s.manager.Insert(e, pos, life, Velocity{DX: s.rng.Float32() - 0.5, DY: s.rng.Float32() - 0.5})
		} else {
			_, err = s.manager.Insert(e, pos, life)
		}
		if err != nil {
			panic(err)
		}
		s.spawned++
	}
}

func (s *archetypeSimulation) Step(dt float64) {
	s.fill()

	for _, a := range s.manager.Matching(s.posId, s.velId) {
		positions := ecs.ArchetypeColumn[Position](a)
		velocities := ecs.ArchetypeColumn[Velocity](a)
		for i := range positions {
			positions[i].X += velocities[i].DX * float32(dt)
			positions[i].Y += velocities[i].DY * float32(dt)
		}
	}

	for _, a := range s.manager.Matching(s.lifeId) {
		s.expiredBuf = s.expiredBuf[:0]
		lifetimes := ecs.ArchetypeColumn[Lifetime](a)
		for i, e := range a.Entities() {
			lifetimes[i].Remaining -= dt
			if lifetimes[i].Remaining <= 0 {
				s.expiredBuf = append(s.expiredBuf, e)
			}
		}
		for _, e := range s.expiredBuf {
			a.Remove(e)
		}
		s.expired += len(s.expiredBuf)
		s.population -= len(s.expiredBuf)
	}
	s.frames++
}

func (s *archetypeSimulation) Population() int {
	return s.population
}

func (s *archetypeSimulation) Summary() []string {
	lines := []string{
		fmt.Sprintf("Frames: %d", s.frames),
		fmt.Sprintf("Spawned: %d, Expired: %d", s.spawned, s.expired),
	}
	for a := range s.manager.All() {
		lines = append(lines, fmt.Sprintf("Archetype %016x: types=%v entities=%d", uint64(a.Key()), a.Types(), a.Len()))
	}
	return lines
}
