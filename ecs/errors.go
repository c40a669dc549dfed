package ecs

import "errors"

var (
	// ErrInvalidEntity is returned when a component operation targets an
	// entity that was never created, has been destroyed, or is pending
	// destruction.
	ErrInvalidEntity = errors.New("invalid entity")
	// ErrMissingComponent is returned by GetComponent when the entity does
	// not hold the requested component type.
	ErrMissingComponent = errors.New("missing component")
	// ErrDuplicateComponent is returned when adding a component type the
	// entity already has.
	ErrDuplicateComponent = errors.New("duplicate component")
	// ErrDuplicateSystem is returned when the same system instance is
	// registered twice.
	ErrDuplicateSystem = errors.New("system already registered")
	// ErrArchetypeMismatch is returned when the values passed to an
	// archetype do not match its exact type set.
	ErrArchetypeMismatch = errors.New("components do not match archetype")
)
