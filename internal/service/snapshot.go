package service

import "github.com/usedplus/core/internal/domain"

// Snapshot is the serializable form of an Engine, used by
// internal/persistence to save/load the whole core (spec.md §2 C9).
type Snapshot struct {
	Restorations         map[domain.VehicleId]restorationSnapshot `json:"restorations"`
	Inventory            map[domain.FarmId]int                    `json:"inventory"`
	RollSeq              int64                                     `json:"roll_seq"`
	OpenedOBDCount       int                                       `json:"opened_obd_count"`
	EligibleSinceLastHit int                                       `json:"eligible_since_last_hit"`
	Opportunities        map[domain.FarmId]domain.Millis           `json:"opportunities"`
}

type restorationSnapshot struct {
	Restoration
	PausedSince domain.Millis `json:"paused_since"`
	Paused      bool          `json:"paused"`
}

// Export captures restorations, the OBD kit inventory, and discovery-gating
// counters for persistence.
func (e *Engine) Export() Snapshot {
	snap := Snapshot{
		Restorations:  make(map[domain.VehicleId]restorationSnapshot, len(e.restorations)),
		Inventory:     make(map[domain.FarmId]int, len(e.inventory.OBDKits)),
		RollSeq:       e.rollSeq,
		OpenedOBDCount: e.openedOBDCount,
		EligibleSinceLastHit: e.eligibleSinceLastHit,
		Opportunities: make(map[domain.FarmId]domain.Millis, len(e.opportunities)),
	}
	for id, r := range e.restorations {
		snap.Restorations[id] = restorationSnapshot{Restoration: *r, PausedSince: r.pausedSince, Paused: r.paused}
	}
	for farmID, n := range e.inventory.OBDKits {
		snap.Inventory[farmID] = n
	}
	for farmID, until := range e.opportunities {
		snap.Opportunities[farmID] = until
	}
	return snap
}

// Restore replaces the engine's restorations, inventory, and discovery
// counters with a previously exported Snapshot, preserving the master seed
// already set at New.
func (e *Engine) Restore(snap Snapshot) {
	e.restorations = make(map[domain.VehicleId]*Restoration, len(snap.Restorations))
	for id, rs := range snap.Restorations {
		r := rs.Restoration
		r.pausedSince = rs.PausedSince
		r.paused = rs.Paused
		e.restorations[id] = &r
	}
	if e.inventory == nil {
		e.inventory = NewInventory()
	}
	e.inventory.OBDKits = make(map[domain.FarmId]int, len(snap.Inventory))
	for farmID, n := range snap.Inventory {
		e.inventory.OBDKits[farmID] = n
	}
	e.rollSeq = snap.RollSeq
	e.openedOBDCount = snap.OpenedOBDCount
	e.eligibleSinceLastHit = snap.EligibleSinceLastHit
	e.opportunities = make(map[domain.FarmId]domain.Millis, len(snap.Opportunities))
	for farmID, until := range snap.Opportunities {
		e.opportunities[farmID] = until
	}
}
