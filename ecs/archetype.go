package ecs

import (
	"iter"
	"reflect"
	"slices"

	"github.com/kamstrup/intmap"
	"github.com/rotisserie/eris"
)

// ArchetypeKey is a structural hash over a sorted set of TypeIds.
type ArchetypeKey uint64

// archetypeKey hashes a sorted type set with FNV-1a.
func archetypeKey(types []TypeId) ArchetypeKey {
	var h uint64 = 14695981039346656037 // FNV-1a 64-bit offset basis
	const prime uint64 = 1099511628211  // FNV-1a 64-bit prime

	for _, id := range types {
		v := uint32(id)
		for i := 0; i < 4; i++ {
			h ^= uint64(byte(v >> (8 * i)))
			h *= prime
		}
	}
	return ArchetypeKey(h)
}

func normalizeTypes(types []TypeId) []TypeId {
	set := slices.Clone(types)
	slices.Sort(set)
	return slices.Compact(set)
}

// Archetype holds entities that share exactly the same component types. It
// keeps one packed table per type. Every table receives the same inserts and
// removals, so slot i refers to the same entity in all of them.
type Archetype struct {
	key      ArchetypeKey
	types    []TypeId
	tables   []componentTable
	registry *ComponentRegistry
}

func newArchetype(key ArchetypeKey, types []TypeId, registry *ComponentRegistry) *Archetype {
	if len(types) == 0 {
		panic("cannot create archetype without components")
	}
	a := &Archetype{
		key:      key,
		types:    types,
		tables:   make([]componentTable, len(types)),
		registry: registry,
	}
	for i, id := range types {
		a.tables[i] = registry.newTable(id)
	}
	return a
}

// Key returns the archetype's structural key.
func (a *Archetype) Key() ArchetypeKey {
	return a.key
}

// Types returns the sorted component types of this archetype.
func (a *Archetype) Types() []TypeId {
	return a.types
}

// Len returns the number of entities stored.
func (a *Archetype) Len() int {
	return a.tables[0].len()
}

// Entities returns the stored entities in slot order. The slice is owned by
// the archetype and changes on the next insert or remove.
func (a *Archetype) Entities() []Entity {
	return a.tables[0].entityList()
}

func (a *Archetype) column(id TypeId) int {
	idx, ok := slices.BinarySearch(a.types, id)
	if !ok {
		return -1
	}
	return idx
}

// Contains reports whether id is part of the type set.
func (a *Archetype) Contains(id TypeId) bool {
	return a.column(id) >= 0
}

// ContainsAll reports whether the type set is a superset of ids.
func (a *Archetype) ContainsAll(ids ...TypeId) bool {
	for _, id := range ids {
		if a.column(id) < 0 {
			return false
		}
	}
	return true
}

// Has reports whether e is stored here.
func (a *Archetype) Has(e Entity) bool {
	return a.tables[0].has(e)
}

// Insert stores e with one value per archetype type, in any order. Values
// may be given directly or as pointers.
func (a *Archetype) Insert(e Entity, components ...any) error {
	if len(components) != len(a.types) {
		return eris.Wrapf(ErrArchetypeMismatch, "got %d components for %d types", len(components), len(a.types))
	}
	if a.Has(e) {
		return eris.Wrapf(ErrDuplicateComponent, "%s already stored in archetype %x", e, a.key)
	}

	ordered := make([]any, len(a.types))
	for _, comp := range components {
		if v := reflect.ValueOf(comp); v.Kind() == reflect.Ptr && v.IsNil() {
			return eris.Wrapf(ErrArchetypeMismatch, "nil %T component", comp)
		}
		id, ok := a.registry.typeIdOfValue(comp)
		if !ok {
			return eris.Wrapf(ErrArchetypeMismatch, "component type %T not registered", comp)
		}
		col := a.column(id)
		if col < 0 || ordered[col] != nil {
			return eris.Wrapf(ErrArchetypeMismatch, "component type %T not expected", comp)
		}
		ordered[col] = comp
	}

	for col, comp := range ordered {
		if err := a.tables[col].insertAny(e, comp); err != nil {
			return err
		}
	}
	return nil
}

// Remove deletes e from every table. It returns false when e is not stored.
func (a *Archetype) Remove(e Entity) bool {
	if !a.Has(e) {
		return false
	}
	for _, table := range a.tables {
		table.remove(e)
	}
	return true
}

// Get returns a pointer to e's component of type id, boxed in an any.
func (a *Archetype) Get(e Entity, id TypeId) (any, bool) {
	col := a.column(id)
	if col < 0 {
		return nil, false
	}
	return a.tables[col].getAny(e)
}

func archetypeTable[T any](a *Archetype) *ComponentTable[T] {
	id, ok := a.registry.Lookup(reflect.TypeFor[T]())
	if !ok {
		return nil
	}
	col := a.column(id)
	if col < 0 {
		return nil
	}
	return a.tables[col].(*ComponentTable[T])
}

// ArchetypeGet returns a pointer to e's T inside a.
func ArchetypeGet[T any](a *Archetype, e Entity) (*T, bool) {
	table := archetypeTable[T](a)
	if table == nil {
		return nil, false
	}
	return table.Get(e)
}

// ArchetypeColumn returns the packed T values of a in slot order, aligned
// with Entities. It returns nil when T is not part of the archetype.
func ArchetypeColumn[T any](a *Archetype) []T {
	table := archetypeTable[T](a)
	if table == nil {
		return nil
	}
	return table.Values()
}

// ArchetypeManager maps type sets to archetypes.
type ArchetypeManager struct {
	registry   *ComponentRegistry
	index      *intmap.Map[ArchetypeKey, *Archetype]
	archetypes []*Archetype
}

// NewArchetypeManager creates a manager that resolves types through registry.
func NewArchetypeManager(registry *ComponentRegistry) *ArchetypeManager {
	return &ArchetypeManager{
		registry: registry,
		index:    intmap.New[ArchetypeKey, *Archetype](32),
	}
}

// lookup probes from the set's hash until it finds the archetype with the
// same types or an empty key. The empty key is returned for insertion.
func (m *ArchetypeManager) lookup(set []TypeId) (*Archetype, ArchetypeKey) {
	key := archetypeKey(set)
	for {
		a, ok := m.index.Get(key)
		if !ok {
			return nil, key
		}
		if slices.Equal(a.types, set) {
			return a, key
		}
		key++
	}
}

// GetOrCreate returns the archetype for the given type set, creating it if
// needed. Order and duplicates in types don't matter.
func (m *ArchetypeManager) GetOrCreate(types ...TypeId) *Archetype {
	set := normalizeTypes(types)
	a, key := m.lookup(set)
	if a != nil {
		return a
	}
	a = newArchetype(key, set, m.registry)
	m.index.Put(key, a)
	m.archetypes = append(m.archetypes, a)
	return a
}

// Get returns the archetype for the given type set if it exists.
func (m *ArchetypeManager) Get(types ...TypeId) (*Archetype, bool) {
	a, _ := m.lookup(normalizeTypes(types))
	return a, a != nil
}

// Insert stores e in the archetype matching the component values, creating
// that archetype if needed.
func (m *ArchetypeManager) Insert(e Entity, components ...any) (*Archetype, error) {
	types := make([]TypeId, 0, len(components))
	for _, comp := range components {
		id, ok := m.registry.typeIdOfValue(comp)
		if !ok {
			return nil, eris.Wrapf(ErrArchetypeMismatch, "component type %T not registered", comp)
		}
		types = append(types, id)
	}
	if len(types) == 0 {
		return nil, eris.Wrap(ErrArchetypeMismatch, "no components")
	}

	a := m.GetOrCreate(types...)
	if err := a.Insert(e, components...); err != nil {
		return nil, err
	}
	return a, nil
}

// Matching returns the archetypes whose type set includes every id, in
// creation order.
func (m *ArchetypeManager) Matching(types ...TypeId) []*Archetype {
	var result []*Archetype
	for _, a := range m.archetypes {
		if a.ContainsAll(types...) {
			result = append(result, a)
		}
	}
	return result
}

// Len returns the number of archetypes.
func (m *ArchetypeManager) Len() int {
	return len(m.archetypes)
}

// All iterates archetypes in creation order.
func (m *ArchetypeManager) All() iter.Seq[*Archetype] {
	return func(yield func(*Archetype) bool) {
		for _, a := range m.archetypes {
			if !yield(a) {
				return
			}
		}
	}
}
