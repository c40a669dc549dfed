package ecs

import "slices"

// WorldStats is a snapshot of a world's size, for debugging and reports.
type WorldStats struct {
	EntityCount         int
	PendingDestroyCount int
	QueryCount          int
	SystemCount         int
	Ticks               uint64
	TableBreakdown      []TableStats
}

// TableStats describes one component table.
type TableStats struct {
	TypeId TypeId
	Name   string
	Count  int
}

// CollectStats gathers a WorldStats snapshot. Tables are listed largest
// first.
func (w *World) CollectStats() WorldStats {
	stats := WorldStats{
		EntityCount:         w.EntityCount(),
		PendingDestroyCount: w.destroyQueue.len(),
		QueryCount:          len(w.queries),
		SystemCount:         len(w.systems),
		Ticks:               w.tickCount,
	}

	for _, table := range w.tables {
		if table == nil {
			continue
		}
		stats.TableBreakdown = append(stats.TableBreakdown, TableStats{
			TypeId: table.typeId(),
			Name:   w.registry.Name(table.typeId()),
			Count:  table.len(),
		})
	}
	slices.SortStableFunc(stats.TableBreakdown, func(a, b TableStats) int {
		return b.Count - a.Count
	})
	return stats
}
