package ecs

import (
	"iter"
	"reflect"

	"github.com/kamstrup/intmap"
	"github.com/rotisserie/eris"
)

// componentTable is the type-erased view of a ComponentTable used for bulk
// operations that don't know the component type.
type componentTable interface {
	typeId() TypeId
	has(e Entity) bool
	remove(e Entity) bool
	len() int
	insertAny(e Entity, v any) error
	getAny(e Entity) (any, bool)
	entityList() []Entity
}

// ComponentTable stores every instance of one component type in a dense
// array. Removal swaps the last element into the freed slot, so the array
// never has holes and iteration never skips entries.
//
// Pointers returned by Get point into the dense array. They stay valid until
// the next Insert or Remove on the same table.
type ComponentTable[T any] struct {
	id     TypeId
	dense  []T
	owners []Entity
	slots  *intmap.Map[uint32, int]
}

// NewComponentTable creates an empty table for T tagged with id.
func NewComponentTable[T any](id TypeId) *ComponentTable[T] {
	return &ComponentTable[T]{
		id:    id,
		slots: intmap.New[uint32, int](64),
	}
}

// TypeId returns the component type id this table was created for.
func (t *ComponentTable[T]) TypeId() TypeId {
	return t.id
}

// Len returns the number of stored components.
func (t *ComponentTable[T]) Len() int {
	return len(t.dense)
}

func (t *ComponentTable[T]) slotOf(e Entity) (int, bool) {
	slot, ok := t.slots.Get(e.Index)
	if !ok || t.owners[slot] != e {
		return 0, false
	}
	return slot, true
}

// Has reports whether e has a component in this table. The generation must
// match, so stale handles report false.
func (t *ComponentTable[T]) Has(e Entity) bool {
	_, ok := t.slotOf(e)
	return ok
}

// Insert appends value for e.
func (t *ComponentTable[T]) Insert(e Entity, value T) error {
	if slot, ok := t.slots.Get(e.Index); ok {
		if t.owners[slot] == e {
			return eris.Wrapf(ErrDuplicateComponent, "%s already has %s", e, reflect.TypeFor[T]())
		}
		// a stale generation still occupies the index
		t.removeSlot(slot)
	}

	t.slots.Put(e.Index, len(t.dense))
	t.dense = append(t.dense, value)
	t.owners = append(t.owners, e)
	return nil
}

// Get returns a pointer to e's component.
func (t *ComponentTable[T]) Get(e Entity) (*T, bool) {
	slot, ok := t.slotOf(e)
	if !ok {
		return nil, false
	}
	return &t.dense[slot], true
}

// Remove deletes e's component, moving the last element into its slot.
// It returns false when e has no component here.
func (t *ComponentTable[T]) Remove(e Entity) bool {
	slot, ok := t.slotOf(e)
	if !ok {
		return false
	}
	t.removeSlot(slot)
	return true
}

func (t *ComponentTable[T]) removeSlot(slot int) {
	last := len(t.dense) - 1
	removed := t.owners[slot]

	if slot != last {
		moved := t.owners[last]
		t.dense[slot] = t.dense[last]
		t.owners[slot] = moved
		t.slots.Put(moved.Index, slot)
	}

	var zero T
	t.dense[last] = zero
	t.dense = t.dense[:last]
	t.owners = t.owners[:last]
	t.slots.Del(removed.Index)
}

// Entities returns the owning entities in dense order. The slice is owned by
// the table and changes on the next mutation.
func (t *ComponentTable[T]) Entities() []Entity {
	return t.owners
}

// Values returns the dense component array. Same ownership rules as Entities.
func (t *ComponentTable[T]) Values() []T {
	return t.dense
}

// All iterates (entity, component pointer) pairs in dense order.
func (t *ComponentTable[T]) All() iter.Seq2[Entity, *T] {
	return func(yield func(Entity, *T) bool) {
		for i := range t.dense {
			if !yield(t.owners[i], &t.dense[i]) {
				return
			}
		}
	}
}

func (t *ComponentTable[T]) typeId() TypeId       { return t.id }
func (t *ComponentTable[T]) has(e Entity) bool    { return t.Has(e) }
func (t *ComponentTable[T]) remove(e Entity) bool { return t.Remove(e) }
func (t *ComponentTable[T]) len() int             { return len(t.dense) }
func (t *ComponentTable[T]) entityList() []Entity { return t.owners }

func (t *ComponentTable[T]) insertAny(e Entity, v any) error {
	switch val := v.(type) {
	case T:
		return t.Insert(e, val)
	case *T:
		if val != nil {
			return t.Insert(e, *val)
		}
	}
	return eris.Wrapf(ErrArchetypeMismatch, "value of type %T is not %s", v, reflect.TypeFor[T]())
}

func (t *ComponentTable[T]) getAny(e Entity) (any, bool) {
	ptr, ok := t.Get(e)
	if !ok {
		return nil, false
	}
	return ptr, true
}
