package ecs

import (
	"iter"
	"reflect"

	"github.com/rotisserie/eris"
)

func tableFor[T any](w *World) *ComponentTable[T] {
	id := RegisterComponent[T](w.registry)
	return w.tableById(id).(*ComponentTable[T])
}

// TypeOf returns the TypeId of T in w, registering T and creating its table
// if this is the first use.
func TypeOf[T any](w *World) TypeId {
	return tableFor[T](w).TypeId()
}

// AddComponent attaches value to e. It fails with ErrInvalidEntity when e is
// not valid and with ErrDuplicateComponent when e already has a T.
func AddComponent[T any](w *World, e Entity, value T) error {
	if !w.entities.valid(e) {
		return eris.Wrapf(ErrInvalidEntity, "cannot add %s to %s", reflect.TypeFor[T](), e)
	}
	if err := tableFor[T](w).Insert(e, value); err != nil {
		return err
	}
	w.invalidateQueries()
	return nil
}

// SetComponent overwrites e's T in place, or adds it when missing.
func SetComponent[T any](w *World, e Entity, value T) error {
	if !w.entities.valid(e) {
		return eris.Wrapf(ErrInvalidEntity, "cannot set %s on %s", reflect.TypeFor[T](), e)
	}
	if ptr, ok := tableFor[T](w).Get(e); ok {
		*ptr = value
		return nil
	}
	return AddComponent(w, e, value)
}

// RemoveComponent detaches e's T. It does nothing when e is invalid or has
// no T.
func RemoveComponent[T any](w *World, e Entity) {
	if !w.entities.valid(e) {
		return
	}
	if tableFor[T](w).Remove(e) {
		w.invalidateQueries()
	}
}

// GetComponent returns a pointer to e's T. The pointer is only good until
// the next add or remove of T anywhere in the world; do not keep it across
// ticks.
func GetComponent[T any](w *World, e Entity) (*T, error) {
	if !w.entities.valid(e) {
		return nil, eris.Wrapf(ErrInvalidEntity, "cannot get %s from %s", reflect.TypeFor[T](), e)
	}
	ptr, ok := tableFor[T](w).Get(e)
	if !ok {
		return nil, eris.Wrapf(ErrMissingComponent, "%s has no %s", e, reflect.TypeFor[T]())
	}
	return ptr, nil
}

// TryGetComponent returns a copy of e's T and whether it was present.
func TryGetComponent[T any](w *World, e Entity) (T, bool) {
	var zero T
	if !w.entities.valid(e) {
		return zero, false
	}
	ptr, ok := tableFor[T](w).Get(e)
	if !ok {
		return zero, false
	}
	return *ptr, true
}

// HasComponent reports whether the valid entity e has a T.
func HasComponent[T any](w *World, e Entity) bool {
	return w.entities.valid(e) && tableFor[T](w).Has(e)
}

// GetEntitiesWith iterates the valid entities holding a T in table order.
// That order carries no meaning once removals have happened. Adding or
// removing T while iterating is not supported.
func GetEntitiesWith[T any](w *World) iter.Seq[Entity] {
	table := tableFor[T](w)
	return func(yield func(Entity) bool) {
		for i := 0; i < len(table.owners); i++ {
			e := table.owners[i]
			if !w.entities.valid(e) {
				continue
			}
			if !yield(e) {
				return
			}
		}
	}
}
