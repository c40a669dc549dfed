package ecs

import (
	"reflect"
)

// TypeId identifies a component type within a ComponentRegistry. Ids are
// dense and assigned in registration order starting at 0.
type TypeId uint32

type componentInfo struct {
	typ     reflect.Type
	factory func(TypeId) componentTable
}

// ComponentRegistry maps Go component types to TypeIds and knows how to
// build a table for each. Each World owns one, and an ArchetypeManager can
// share it so both sides agree on ids.
type ComponentRegistry struct {
	ids   map[reflect.Type]TypeId
	infos []componentInfo
}

// NewComponentRegistry creates an empty component registry.
func NewComponentRegistry() *ComponentRegistry {
	return &ComponentRegistry{
		ids: make(map[reflect.Type]TypeId),
	}
}

// RegisterComponent registers T with the registry and returns its TypeId.
// Registering an already known type returns the existing id.
func RegisterComponent[T any](r *ComponentRegistry) TypeId {
	t := reflect.TypeFor[T]()
	if id, ok := r.ids[t]; ok {
		return id
	}

	switch t.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Chan, reflect.Func:
		panic("components cannot be pointers, maps, channels, or functions: " + t.String())
	}

	id := TypeId(len(r.infos))
	r.ids[t] = id
	r.infos = append(r.infos, componentInfo{
		typ: t,
		factory: func(id TypeId) componentTable {
			return NewComponentTable[T](id)
		},
	})
	return id
}

// Lookup returns the id registered for t.
func (r *ComponentRegistry) Lookup(t reflect.Type) (TypeId, bool) {
	id, ok := r.ids[t]
	return id, ok
}

// Type returns the Go type behind id, or nil for an unknown id.
func (r *ComponentRegistry) Type(id TypeId) reflect.Type {
	if int(id) >= len(r.infos) {
		return nil
	}
	return r.infos[id].typ
}

// Name returns a readable name for id.
func (r *ComponentRegistry) Name(id TypeId) string {
	if t := r.Type(id); t != nil {
		return t.String()
	}
	return "<unregistered>"
}

// Len returns the number of registered component types.
func (r *ComponentRegistry) Len() int {
	return len(r.infos)
}

func (r *ComponentRegistry) newTable(id TypeId) componentTable {
	if int(id) >= len(r.infos) {
		panic("component type id not registered")
	}
	return r.infos[id].factory(id)
}

// typeIdOfValue resolves the id of a boxed component value. Pointer values
// resolve to their element type, matching how Spawn-style APIs accept both.
func (r *ComponentRegistry) typeIdOfValue(v any) (TypeId, bool) {
	t := reflect.TypeOf(v)
	if t == nil {
		return 0, false
	}
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	id, ok := r.ids[t]
	return id, ok
}
