package ecs

import (
	"iter"

	"github.com/armon/go-metrics"
	"github.com/kamstrup/intmap"
	"github.com/rs/zerolog"
)

const defaultEntityCapacity = 256

// World owns every entity, component table, cached query and system. All
// mutation goes through it. A World is not safe for concurrent use.
type World struct {
	logger   zerolog.Logger
	metrics  *metrics.Metrics
	registry *ComponentRegistry
	capacity int
	recycle  bool

	entities     *entityAllocator
	tables       []componentTable
	names        *intmap.Map[uint32, string]
	destroyQueue *destroyQueue

	queries   []*Query
	systems   []*systemEntry
	tickCount uint64
}

// NewWorld creates an empty world.
func NewWorld(opts ...Option) *World {
	w := &World{
		logger:   zerolog.Nop(),
		capacity: defaultEntityCapacity,
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.registry == nil {
		w.registry = NewComponentRegistry()
	}

	w.entities = newEntityAllocator(w.capacity, w.recycle)
	w.names = intmap.New[uint32, string](16)
	w.destroyQueue = newDestroyQueue(64)
	return w
}

// Registry returns the component registry backing this world.
func (w *World) Registry() *ComponentRegistry {
	return w.registry
}

// CreateEntity allocates a new entity.
func (w *World) CreateEntity() Entity {
	e := w.entities.create()
	w.invalidateQueries()
	return e
}

// CreateNamedEntity allocates a new entity with a debug name. Names can only
// be set at creation.
func (w *World) CreateNamedEntity(name string) Entity {
	e := w.CreateEntity()
	w.names.Put(e.Index, name)
	return e
}

// EntityName returns the debug name given to e at creation.
func (w *World) EntityName(e Entity) (string, bool) {
	if !w.IsValid(e) {
		return "", false
	}
	return w.names.Get(e.Index)
}

// IsValid reports whether e is allocated, its generation is current and it
// has not been queued for destruction.
func (w *World) IsValid(e Entity) bool {
	return w.entities.valid(e)
}

// DestroyEntity queues e for removal at the end of the current tick. The
// entity is invalid from this call on, although its component data stays
// in place until the sweep. Destroying an invalid entity does nothing.
func (w *World) DestroyEntity(e Entity) {
	if !w.entities.valid(e) {
		return
	}
	w.entities.markPending(e)
	w.destroyQueue.push(e)
	w.invalidateQueries()

	w.logger.Debug().Stringer("entity", e).Msg("entity queued for destruction")
}

// Flush runs the destruction sweep immediately. Tick calls it after the last
// system; callers that mutate a world outside Tick can use it directly.
func (w *World) Flush() {
	swept := w.destroyQueue.flush(w.sweepEntity)
	if swept == 0 {
		return
	}
	w.invalidateQueries()

	w.logger.Debug().Int("swept", swept).Uint64("tick", w.tickCount).Msg("destroyed entities swept")
}

func (w *World) sweepEntity(e Entity) {
	for _, table := range w.tables {
		if table != nil {
			table.remove(e)
		}
	}
	w.names.Del(e.Index)
	w.entities.free(e)
}

// GetAllEntities iterates every valid entity in index order.
func (w *World) GetAllEntities() iter.Seq[Entity] {
	return w.entities.each
}

// EntityCount returns the number of valid entities.
func (w *World) EntityCount() int {
	return w.entities.live - w.destroyQueue.len()
}

// PendingDestroyCount returns how many entities are waiting for the sweep.
func (w *World) PendingDestroyCount() int {
	return w.destroyQueue.len()
}

// HasComponentOfType reports whether the valid entity e holds a component
// of the given type.
func (w *World) HasComponentOfType(e Entity, id TypeId) bool {
	if !w.entities.valid(e) {
		return false
	}
	table := w.lookupTable(id)
	return table != nil && table.has(e)
}

// ComponentTypes lists the component types e currently holds, in TypeId
// order.
func (w *World) ComponentTypes(e Entity) []TypeId {
	if !w.entities.valid(e) {
		return nil
	}
	var types []TypeId
	for _, table := range w.tables {
		if table != nil && table.has(e) {
			types = append(types, table.typeId())
		}
	}
	return types
}

// lookupTable returns the table for id without creating it.
func (w *World) lookupTable(id TypeId) componentTable {
	if int(id) >= len(w.tables) {
		return nil
	}
	return w.tables[id]
}

// tableById returns the table for id, creating it on first use. Tables live
// as long as the world.
func (w *World) tableById(id TypeId) componentTable {
	if int(id) >= len(w.tables) {
		grown := make([]componentTable, int(id)+1)
		copy(grown, w.tables)
		w.tables = grown
	}
	if w.tables[id] == nil {
		w.tables[id] = w.registry.newTable(id)
	}
	return w.tables[id]
}

func (w *World) invalidateQueries() {
	for _, q := range w.queries {
		q.dirty = true
	}
}
