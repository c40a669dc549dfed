package ecs

// System is a unit of per-tick logic. The world calls Update once per Tick,
// in registration order, with the tick's delta time in seconds.
//
// A system may read and write any component and create or destroy entities.
// Its changes are visible to systems that run after it in the same tick,
// except destruction, which is applied after the last system returns.
type System interface {
	Update(w *World, dt float64)
}

// NamedSystem lets a system choose the name reported in stats and metrics.
// Systems without it are named after their Go type.
type NamedSystem interface {
	System
	Name() string
}

type funcSystem struct {
	name string
	fn   func(w *World, dt float64)
}

// SystemFunc wraps fn as a System. Every call returns a distinct instance,
// so the same function can be registered more than once under different
// wrappers.
func SystemFunc(name string, fn func(w *World, dt float64)) System {
	return &funcSystem{name: name, fn: fn}
}

func (s *funcSystem) Update(w *World, dt float64) {
	s.fn(w, dt)
}

func (s *funcSystem) Name() string {
	return s.name
}
