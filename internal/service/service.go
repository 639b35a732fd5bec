// Package service implements C6: the OBD one-shot field repair's
// consumable-slot bookkeeping, the service-truck long-form restoration
// state machine, and service-truck discovery gating (spec.md §4.6).
//
// Grounded on reliability.Engine's per-entity record + explicit-tick shape
// and on bidengine/worker.go's state-machine phases (there: Idle states for
// a bid worker; here: Idle -> Inspecting -> Working -> Completed/Aborted
// per restoration target).
package service

import (
	"fmt"

	"github.com/usedplus/core/internal/domain"
	"github.com/usedplus/core/internal/reliability"
	"github.com/usedplus/core/internal/rng"
)

// RestorationState is the service-truck restoration phase.
type RestorationState int

const (
	Idle RestorationState = iota
	Inspecting
	Working
	Completed
	Aborted
)

func (s RestorationState) String() string {
	switch s {
	case Inspecting:
		return "Inspecting"
	case Working:
		return "Working"
	case Completed:
		return "Completed"
	case Aborted:
		return "Aborted"
	default:
		return "Idle"
	}
}

// Consumables tracks the service truck's on-board levels for a restoration
// job (spec.md §4.6: "diesel, oil, hydraulic, spare-parts pallet").
// TickRestoration pauses the job while any level is at or below zero; it
// does not decrement the levels itself.
type Consumables struct {
	Diesel, Oil, Hydraulic, SpareParts float64
}

func (c Consumables) anyEmpty() bool {
	return c.Diesel <= 0 || c.Oil <= 0 || c.Hydraulic <= 0 || c.SpareParts <= 0
}

// Restoration is one in-progress long-form service-truck job.
type Restoration struct {
	VehicleID      domain.VehicleId
	FarmID         domain.FarmId
	TargetComponent reliability.Component
	State          RestorationState
	ProgressPct    float64
	Consumables    Consumables
	pausedSince    domain.Millis
	paused         bool
	StartedAt      domain.Millis
}

// ErrNoOBDKits is returned when the farm has no OBD kit inventory slot left
// for a field repair (tracked here against the inventory slots, separately
// from reliability's per-component one-shot history).
type ErrNoOBDKits struct{}

func (ErrNoOBDKits) Error() string { return "service: no OBD kit inventory slots remaining" }

// ErrNoRestorationInProgress is returned for operations against a vehicle
// with no active restoration.
type ErrNoRestorationInProgress struct{ VehicleID domain.VehicleId }

func (e ErrNoRestorationInProgress) Error() string {
	return fmt.Sprintf("service: no restoration in progress for vehicle %d", e.VehicleID)
}

// Inventory is the per-farm consumable OBD-kit count, a host-tracked
// resource the core only decrements/checks (spec.md §4.6).
type Inventory struct {
	OBDKits map[domain.FarmId]int
}

// NewInventory constructs an empty inventory.
func NewInventory() *Inventory {
	return &Inventory{OBDKits: make(map[domain.FarmId]int)}
}

// GrantOBDKits adds n kits to a farm's inventory (host purchase flow).
func (inv *Inventory) GrantOBDKits(farmID domain.FarmId, n int) {
	inv.OBDKits[farmID] += n
}

// ConsumeOBDKit decrements a farm's OBD kit count by one, failing if none remain.
func (inv *Inventory) ConsumeOBDKit(farmID domain.FarmId) error {
	if inv.OBDKits[farmID] <= 0 {
		return ErrNoOBDKits{}
	}
	inv.OBDKits[farmID]--
	return nil
}

// Engine is the aggregate service/restoration subsystem.
type Engine struct {
	seed         int64
	restorations map[domain.VehicleId]*Restoration
	inventory    *Inventory
	rollSeq      int64

	openedOBDCount       int
	eligibleSinceLastHit int
	opportunities        map[domain.FarmId]domain.Millis // farmID -> expiry
}

// New constructs a service engine seeded from the core's master seed.
func New(seed int64, inv *Inventory) *Engine {
	return &Engine{
		seed:          seed,
		restorations:  make(map[domain.VehicleId]*Restoration),
		inventory:     inv,
		opportunities: make(map[domain.FarmId]domain.Millis),
	}
}

func (e *Engine) nextNonce() int64 {
	e.rollSeq++
	return e.rollSeq
}

// Inventory exposes the engine's OBD kit bookkeeping so callers outside this
// package (the purchase flow that grants kits, tests) can reach it without a
// second inventory instance drifting out of sync with the one FieldRepair
// consumes against.
func (e *Engine) Inventory() *Inventory { return e.inventory }

// FieldRepair consumes one OBD kit and delegates the actual repair effect to
// the reliability engine, keeping the inventory-slot concern (this package)
// separate from the per-component one-shot concern (reliability.Engine).
func (e *Engine) FieldRepair(rel *reliability.Engine, farmID domain.FarmId, vehicleID domain.VehicleId, c reliability.Component) error {
	if err := e.inventory.ConsumeOBDKit(farmID); err != nil {
		return err
	}
	if err := rel.FieldRepair(vehicleID, c); err != nil {
		// refund the kit: the repair itself was rejected (e.g. already used).
		e.inventory.OBDKits[farmID]++
		return err
	}
	e.openedOBDCount++
	return nil
}

// InspectMinigame rolls the pick-the-failed-component minigame with a fixed
// 0.85 success probability (spec.md §4.6 "Engineer/Mechanic skill baseline").
func (e *Engine) InspectMinigame(vehicleID domain.VehicleId) bool {
	roll := rng.Roll(e.seed, "inspect.pick", int64(vehicleID)*97+e.nextNonce())
	return roll < 0.85
}

// StartRestoration begins a long-form restoration on vehicleID, failing if
// one is already in progress.
func (e *Engine) StartRestoration(farmID domain.FarmId, vehicleID domain.VehicleId, target reliability.Component, now domain.Millis, consumables Consumables) (*Restoration, error) {
	if r, ok := e.restorations[vehicleID]; ok && r.State != Completed && r.State != Aborted {
		return nil, fmt.Errorf("service: restoration already in progress for vehicle %d", vehicleID)
	}
	r := &Restoration{
		VehicleID:       vehicleID,
		FarmID:          farmID,
		TargetComponent: target,
		State:           Inspecting,
		Consumables:     consumables,
		StartedAt:       now,
	}
	if !e.InspectMinigame(vehicleID) {
		r.State = Aborted
		e.restorations[vehicleID] = r
		return r, nil
	}
	r.State = Working
	e.restorations[vehicleID] = r
	return r, nil
}

// StopRestoration cancels an in-progress restoration, releasing the target.
func (e *Engine) StopRestoration(vehicleID domain.VehicleId) error {
	r, ok := e.restorations[vehicleID]
	if !ok {
		return ErrNoRestorationInProgress{vehicleID}
	}
	r.State = Aborted
	return nil
}

// RestorationTickResult reports what one hour-tick did to a restoration.
type RestorationTickResult struct {
	Completed    bool
	DamagePenalty float64
	PausedHours  float64
}

// TickRestoration advances one vehicle's restoration by a whole game-hour,
// per spec.md §4.6: +1% R and +0.25% ceiling per hour; pauses if any
// consumable is empty; after 2 paused hours the target takes a damage
// penalty; on completion the target's ceiling is fully restored to 1.0 —
// the only ceiling-restoration path in the system.
func (e *Engine) TickRestoration(rel *reliability.Engine, vehicleID domain.VehicleId, now domain.Millis) (RestorationTickResult, error) {
	r, ok := e.restorations[vehicleID]
	if !ok {
		return RestorationTickResult{}, ErrNoRestorationInProgress{vehicleID}
	}
	if r.State != Working {
		return RestorationTickResult{}, nil
	}

	if r.Consumables.anyEmpty() {
		if !r.paused {
			r.paused = true
			r.pausedSince = now
		}
		pausedHours := float64(now-r.pausedSince) / float64(domain.Hour)
		var result RestorationTickResult
		if pausedHours >= 2 {
			result.DamagePenalty = 0.05
			if err := rel.AddDamagePenalty(vehicleID, 0.05); err != nil {
				return RestorationTickResult{}, err
			}
			r.pausedSince = now
		}
		result.PausedHours = pausedHours
		return result, nil
	}
	r.paused = false

	r.ProgressPct += 1.0
	record, err := rel.RecordFor(vehicleID)
	if err != nil {
		return RestorationTickResult{}, err
	}
	record.Ceiling += 0.0025
	if record.Ceiling > 1.0 {
		record.Ceiling = 1.0
	}
	bumpComponent(record, r.TargetComponent, 0.01)

	if r.ProgressPct >= 100 {
		record.Ceiling = 1.0
		r.State = Completed
		return RestorationTickResult{Completed: true}, nil
	}
	return RestorationTickResult{}, nil
}

func bumpComponent(r *reliability.Record, c reliability.Component, delta float64) {
	var v *float64
	switch c {
	case reliability.Hydraulic:
		v = &r.HydraulicR
	case reliability.Electrical:
		v = &r.ElectricalR
	default:
		v = &r.EngineR
	}
	*v += delta
	if *v > r.Ceiling {
		*v = r.Ceiling
	}
}

// DiscoveryGate reports whether a farm is eligible for the service-truck
// purchase offer (spec.md §4.6): openedOBDcount>=3 AND creditScore>=700 AND
// at least one owned vehicle with ceiling<0.90.
func (e *Engine) DiscoveryGate(creditScore int, hasDegradedOwnedVehicle bool) bool {
	return e.openedOBDCount >= 3 && creditScore >= 700 && hasDegradedOwnedVehicle
}

// RollOfferOnNationalSale rolls the 0.20 chance on every completed
// National-tier transaction; after 10 eligible misses in a row, the next
// qualifying transaction is a guaranteed hit. Returns whether an
// opportunity (30-game-day window) opened for farmID.
func (e *Engine) RollOfferOnNationalSale(farmID domain.FarmId, eligible bool, now domain.Millis) bool {
	if !eligible {
		return false
	}
	nonce := e.nextNonce()
	roll := rng.Roll(e.seed, "serviceTruck.offer", nonce)
	hit := roll < 0.20
	if e.eligibleSinceLastHit >= 10 {
		hit = true
	}
	if hit {
		e.eligibleSinceLastHit = 0
		e.opportunities[farmID] = now.Add(30 * domain.Day)
		return true
	}
	e.eligibleSinceLastHit++
	return false
}

// OpportunityActive reports whether farmID currently has a live
// service-truck purchase opportunity, per the expiry granted by
// RollOfferOnNationalSale.
func (e *Engine) OpportunityActive(farmID domain.FarmId, now domain.Millis) bool {
	expiry, ok := e.opportunities[farmID]
	return ok && now.Before(expiry)
}
