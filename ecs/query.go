package ecs

import (
	"slices"
)

// Query is a cached list of the entities holding every component in a type
// set. Any structural change in the world marks every query dirty, whatever
// types it touched; the list is rebuilt on the next read.
type Query struct {
	world      *World
	types      []TypeId
	entities   []Entity
	dirty      bool
	closed     bool
	recomputes uint64
}

// CreateQuery registers a cached query over types. Duplicate ids are
// ignored. The query stays registered until Close is called.
func (w *World) CreateQuery(types ...TypeId) *Query {
	set := slices.Clone(types)
	slices.Sort(set)
	set = slices.Compact(set)

	q := &Query{
		world: w,
		types: set,
		dirty: true,
	}
	w.queries = append(w.queries, q)
	return q
}

// QueryCount returns the number of open queries.
func (w *World) QueryCount() int {
	return len(w.queries)
}

// Types returns the query's required component types in TypeId order.
func (q *Query) Types() []TypeId {
	return q.types
}

// Entities returns the matching entities in index order. Between structural
// changes the same slice is returned, so callers can compare backing arrays
// to detect that nothing changed. The slice must not be modified.
func (q *Query) Entities() []Entity {
	if q.closed {
		return nil
	}
	if q.dirty {
		q.refresh()
	}
	return q.entities
}

// Count returns len(Entities()).
func (q *Query) Count() int {
	return len(q.Entities())
}

// Invalidate forces a rebuild on the next read. Use it after changing data
// through a path the world cannot observe.
func (q *Query) Invalidate() {
	q.dirty = true
}

// Recomputes returns how many times the entity list has been rebuilt.
func (q *Query) Recomputes() uint64 {
	return q.recomputes
}

// Close unregisters the query. A closed query returns no entities and no
// longer costs anything on structural changes.
func (q *Query) Close() {
	if q.closed {
		return
	}
	q.closed = true
	q.entities = nil
	q.world.queries = slices.DeleteFunc(q.world.queries, func(other *Query) bool {
		return other == q
	})
}

func (q *Query) refresh() {
	// a new slice every time keeps previously returned lists intact
	result := make([]Entity, 0, len(q.entities))
	q.entities = result
	q.dirty = false
	q.recomputes++

	for _, id := range q.types {
		if q.world.lookupTable(id) == nil {
			return
		}
	}

	for e := range q.world.GetAllEntities() {
		if q.matches(e) {
			result = append(result, e)
		}
	}
	q.entities = result
}

func (q *Query) matches(e Entity) bool {
	for _, id := range q.types {
		if !q.world.HasComponentOfType(e, id) {
			return false
		}
	}
	return true
}
