package ecs

import (
	"fmt"
	"math"
)

// Entity is a generational handle to a world slot. The index selects the slot
// and the generation must match the slot's live generation for the handle to
// be valid.
type Entity struct {
	Index      uint32
	Generation uint32
}

// Null is the zero entity. Index 0 is never allocated.
var Null = Entity{}

// NewEntity creates an Entity from an index and generation
func NewEntity(index uint32, generation uint32) Entity {
	return Entity{Index: index, Generation: generation}
}

// IsNull reports whether e refers to the reserved index 0.
func (e Entity) IsNull() bool {
	return e.Index == 0
}

func (e Entity) String() string {
	return fmt.Sprintf("Entity(%d:%d)", e.Index, e.Generation)
}

// entitySlot is the allocator's per-index record.
type entitySlot struct {
	generation uint32
	allocated  bool
	pending    bool
}

// entityAllocator hands out indices and tracks their generations. Index 0 is
// reserved for Null so slots[0] is never used.
type entityAllocator struct {
	slots    []entitySlot
	freeList []uint32
	recycle  bool
	live     int
}

func newEntityAllocator(capacity int, recycle bool) *entityAllocator {
	slots := make([]entitySlot, 1, capacity+1)
	return &entityAllocator{
		slots:   slots,
		recycle: recycle,
	}
}

func (a *entityAllocator) create() Entity {
	var idx uint32
	if a.recycle && len(a.freeList) > 0 {
		idx = a.freeList[0]
		a.freeList = a.freeList[1:]
	} else {
		if uint64(len(a.slots)) > math.MaxUint32 {
			panic("ecs: entity index space exhausted")
		}
		idx = uint32(len(a.slots))
		a.slots = append(a.slots, entitySlot{})
	}

	slot := &a.slots[idx]
	slot.allocated = true
	slot.pending = false
	a.live++
	return Entity{Index: idx, Generation: slot.generation}
}

// allocated reports whether e names a currently allocated slot, ignoring the
// pending mark.
func (a *entityAllocator) allocated(e Entity) bool {
	if e.Index == 0 || int(e.Index) >= len(a.slots) {
		return false
	}
	slot := a.slots[e.Index]
	return slot.allocated && slot.generation == e.Generation
}

func (a *entityAllocator) valid(e Entity) bool {
	return a.allocated(e) && !a.slots[e.Index].pending
}

func (a *entityAllocator) markPending(e Entity) {
	a.slots[e.Index].pending = true
}

// free releases the slot and bumps its generation so every outstanding handle
// for it goes stale.
func (a *entityAllocator) free(e Entity) {
	slot := &a.slots[e.Index]
	slot.allocated = false
	slot.pending = false
	slot.generation++
	a.live--
	if a.recycle {
		a.freeList = append(a.freeList, e.Index)
	}
}

// each yields every valid entity in index order.
func (a *entityAllocator) each(yield func(Entity) bool) {
	for idx := 1; idx < len(a.slots); idx++ {
		slot := a.slots[idx]
		if !slot.allocated || slot.pending {
			continue
		}
		if !yield(Entity{Index: uint32(idx), Generation: slot.generation}) {
			return
		}
	}
}
