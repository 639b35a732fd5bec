// Package reliability implements the reliability engine (spec.md §4.3): per
// vehicle hidden DNA, three-component reliability bounded by a monotonically
// degrading ceiling, malfunction rolls and state machines, seizure
// escalation, and the two repair paths that feed back into it.
//
// Grounded on the teacher's internal/bidengine/worker.go: one small state
// machine per tracked entity (there: per-auction Worker; here: per-vehicle
// Record), advanced by an explicit tick call rather than free-running
// goroutines, matching spec.md §5's single-threaded core requirement.
package reliability

import (
	"fmt"
	"math"
	"sort"

	"github.com/usedplus/core/internal/domain"
	"github.com/usedplus/core/internal/rng"
)

// Component is one of the three tracked reliability axes.
type Component int

const (
	EngineComponent Component = iota
	Hydraulic
	Electrical
)

func (c Component) String() string {
	switch c {
	case EngineComponent:
		return "Engine"
	case Hydraulic:
		return "Hydraulic"
	case Electrical:
		return "Electrical"
	default:
		return "Unknown"
	}
}

// DNATier buckets the hidden DNA scalar per spec.md §3.
type DNATier int

const (
	Lemon DNATier = iota
	Average
	Workhorse
	Legendary
)

func (t DNATier) String() string {
	switch t {
	case Legendary:
		return "Legendary"
	case Workhorse:
		return "Workhorse"
	case Average:
		return "Average"
	default:
		return "Lemon"
	}
}

// TierForDNA classifies a DNA scalar into its tier.
func TierForDNA(dna float64) DNATier {
	switch {
	case dna >= 0.90:
		return Legendary
	case dna >= 0.70:
		return Workhorse
	case dna >= 0.30:
		return Average
	default:
		return Lemon
	}
}

// TireTier is the installed tire quality.
type TireTier int

const (
	Retread TireTier = iota
	Normal
	Quality
)

// MalfunctionKind enumerates every malfunction the state machine can enter.
type MalfunctionKind int

const (
	Stall MalfunctionKind = iota
	Misfire
	Overheat
	Runaway
	HydraulicSurge
	ImplementStuckDown
	ImplementStuckUp
	ImplementPull
	ImplementDrag
	ElectricalCutout
	FlatTire
	SlowLeak
	Blowout
	FuelLeak
)

func (k MalfunctionKind) String() string {
	names := [...]string{
		"Stall", "Misfire", "Overheat", "Runaway", "HydraulicSurge",
		"ImplementStuckDown", "ImplementStuckUp", "ImplementPull", "ImplementDrag",
		"ElectricalCutout", "FlatTire", "SlowLeak", "Blowout", "FuelLeak",
	}
	if int(k) < 0 || int(k) >= len(names) {
		return "Unknown"
	}
	return names[k]
}

// cooldownDuration returns the default post-malfunction cooldown window.
func (k MalfunctionKind) cooldownDuration() domain.Millis {
	if k == ElectricalCutout {
		return 5 * domain.Second
	}
	return 30 * domain.Second
}

// Effects reports the driving modifiers imposed while a malfunction is Active.
type Effects struct {
	SpeedMult float64
	BrakeMult float64
}

// EffectsFor returns the effects active while kind is in progress.
func EffectsFor(kind MalfunctionKind) Effects {
	if kind == Runaway {
		return Effects{SpeedMult: 1.5, BrakeMult: 0.4}
	}
	return Effects{SpeedMult: 1.0, BrakeMult: 1.0}
}

// MalfunctionState is the per-vehicle state machine phase.
type MalfunctionState int

const (
	Idle MalfunctionState = iota
	Active
	Cooldown
)

// ActiveMalfunction describes the currently-active or most recently
// completed malfunction occurrence.
type ActiveMalfunction struct {
	Kind     MalfunctionKind
	State    MalfunctionState
	EndsAt   domain.Millis
	Severity float64
}

// Config carries the tunable knobs spec.md §9 requires be loaded once as a
// single record.
type Config struct {
	ProgressiveFailureExponent   float64
	ProgressiveFailureMultiplier float64
	EnableSeizureEscalation      bool
	SeizureBaseThreshold         float64
	SeizureDNAReduction          float64
	SeizureMinChance             float64
	SeizureMaxChance             float64
	SeizureLemonPenalty          float64
	SeizureRepairCostMult        float64
	SeizureRepairMinReliability  float64
	MalfunctionFrequency         float64
}

// DefaultConfig returns the documented defaults from spec.md §9.
func DefaultConfig() Config {
	return Config{
		ProgressiveFailureExponent:   2.0,
		ProgressiveFailureMultiplier: 0.025,
		EnableSeizureEscalation:      true,
		SeizureBaseThreshold:         0.40,
		SeizureDNAReduction:          0.30,
		SeizureMinChance:             0.05,
		SeizureMaxChance:             0.50,
		SeizureLemonPenalty:          0.20,
		SeizureRepairCostMult:        0.05,
		SeizureRepairMinReliability:  0.30,
		MalfunctionFrequency:         1.0,
	}
}

// Record is a vehicle's full reliability state (spec.md §3
// VehicleReliabilityRecord).
type Record struct {
	DNA                float64
	EngineR            float64
	HydraulicR         float64
	ElectricalR        float64
	Ceiling            float64
	RepairCount        uint32
	BreakdownCount     uint32
	OilLevel           float64
	HydraulicLevel     float64
	TireTier           TireTier
	Seizures           map[Component]bool
	Malfunction        *ActiveMalfunction
	CooldownUntil      domain.Millis
	FieldRepairHistory map[Component]bool

	rollSeq int64
}

func newRecord(dna float64) *Record {
	return &Record{
		DNA:                dna,
		EngineR:            1.0,
		HydraulicR:         1.0,
		ElectricalR:        1.0,
		Ceiling:            1.0,
		OilLevel:           1.0,
		HydraulicLevel:     1.0,
		TireTier:           Normal,
		Seizures:           make(map[Component]bool),
		FieldRepairHistory: make(map[Component]bool),
	}
}

// DNATier classifies this record's immutable DNA.
func (r *Record) DNATier() DNATier { return TierForDNA(r.DNA) }

func (r *Record) componentR(c Component) float64 {
	switch c {
	case Hydraulic:
		return r.HydraulicR
	case Electrical:
		return r.ElectricalR
	default:
		return r.EngineR
	}
}

func (r *Record) setComponentR(c Component, v float64) {
	switch c {
	case Hydraulic:
		r.HydraulicR = v
	case Electrical:
		r.ElectricalR = v
	default:
		r.EngineR = v
	}
}

// ResaleModifier is spec.md §4.3's saleMultiplier, in [0.7, 1.0].
func (r *Record) ResaleModifier() float64 {
	avg := (r.EngineR + r.HydraulicR + r.ElectricalR) / 3.0
	return 0.7 + avg*0.3
}

// ErrUnknownVehicle is returned for operations against an untracked vehicle.
type ErrUnknownVehicle struct{ VehicleID domain.VehicleId }

func (e ErrUnknownVehicle) Error() string {
	return fmt.Sprintf("reliability: unknown vehicle %d", e.VehicleID)
}

// ErrAlreadyFieldRepaired is returned when a component's one-shot field
// repair allowance has already been consumed.
type ErrAlreadyFieldRepaired struct {
	VehicleID domain.VehicleId
	Component Component
}

func (e ErrAlreadyFieldRepaired) Error() string {
	return fmt.Sprintf("reliability: %s already field-repaired on vehicle %d", e.Component, e.VehicleID)
}

// Engine is the aggregate reliability subsystem, one Record per observed vehicle.
type Engine struct {
	seed    int64
	cfg     Config
	records map[domain.VehicleId]*Record
}

// New constructs a reliability engine seeded from the core's master seed.
func New(seed int64, cfg Config) *Engine {
	return &Engine{seed: seed, cfg: cfg, records: make(map[domain.VehicleId]*Record)}
}

func (e *Engine) nextNonce(r *Record, vehicleID domain.VehicleId) int64 {
	r.rollSeq++
	return int64(vehicleID)*1_000_003 + r.rollSeq
}

// Observe returns the record for vehicleID, assigning immutable DNA via
// roll(seed, "dna", vehicleId) on first observation.
func (e *Engine) Observe(vehicleID domain.VehicleId) *Record {
	r, ok := e.records[vehicleID]
	if ok {
		return r
	}
	dna := rng.Roll(e.seed, "dna", int64(vehicleID))
	r = newRecord(dna)
	e.records[vehicleID] = r
	return r
}

// ObserveWithDNA registers vehicleID with a caller-supplied DNA instead of
// rolling a fresh one — used when a marketplace listing (which already
// seeded its own hidden DNA at generation time) converts into an owned
// vehicle, so the purchased vehicle keeps the DNA the buyer inspected.
func (e *Engine) ObserveWithDNA(vehicleID domain.VehicleId, dna float64) *Record {
	if r, ok := e.records[vehicleID]; ok {
		return r
	}
	r := newRecord(dna)
	e.records[vehicleID] = r
	return r
}

func (e *Engine) get(vehicleID domain.VehicleId) (*Record, error) {
	r, ok := e.records[vehicleID]
	if !ok {
		return nil, ErrUnknownVehicle{vehicleID}
	}
	return r, nil
}

// RecordFor exposes a vehicle's mutable reliability record, for callers in
// other core subsystems (e.g. service.Engine's restoration tick) that need
// to apply effects the public repair/breakdown methods don't cover.
func (e *Engine) RecordFor(vehicleID domain.VehicleId) (*Record, error) {
	return e.get(vehicleID)
}

// TrackedVehicles returns every vehicle id the engine has observed, sorted,
// for callers that need to advance every known vehicle on a tick (e.g.
// core.Core.FrameTick) without holding a separate index of their own.
func (e *Engine) TrackedVehicles() []domain.VehicleId {
	out := make([]domain.VehicleId, 0, len(e.records))
	for id := range e.records {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// AddDamagePenalty is called by service.Engine when a paused restoration
// overruns its grace window. The reliability engine itself does not store
// damage (that is host state per spec.md §6), so this only checks that the
// vehicle is tracked and records nothing; core.HourTick applies the penalty
// through HostGameApi.AddVehicleDamage.
func (e *Engine) AddDamagePenalty(vehicleID domain.VehicleId, delta float64) error {
	_, err := e.get(vehicleID)
	return err
}

// ceilingLossFor returns the ceiling decrement for a given raw loss and DNA,
// honoring the Open-Question resolution that DNA ≥ 0.90 loses strictly zero
// ceiling on both repair and breakdown paths (see DESIGN.md).
func ceilingLossFor(raw, dna float64) float64 {
	if dna >= 0.90 {
		return 0
	}
	return raw
}

// WorkshopRepair clears all seizures plus fuel leak/flat tire malfunctions,
// applies ceiling degradation, and bumps each affected component's
// reliability by +0.15 (capped by ceiling), per spec.md §4.3.
func (e *Engine) WorkshopRepair(vehicleID domain.VehicleId, affected []Component) error {
	r, err := e.get(vehicleID)
	if err != nil {
		return err
	}
	loss := ceilingLossFor((1-r.DNA)*0.01, r.DNA)
	r.Ceiling -= loss
	if r.Ceiling < 0.30 {
		r.Ceiling = 0.30
	}
	r.RepairCount++

	for c := range r.Seizures {
		delete(r.Seizures, c)
	}
	if r.Malfunction != nil && (r.Malfunction.Kind == FuelLeak || r.Malfunction.Kind == FlatTire) {
		r.Malfunction = nil
	}

	for _, c := range affected {
		v := r.componentR(c) + 0.15
		if v > r.Ceiling {
			v = r.Ceiling
		}
		r.setComponentR(c, v)
	}
	return nil
}

// BreakdownDegrade applies the ceiling loss from a breakdown event: legendary
// DNA takes 30% of the normal hit (and 0 outright at DNA ≥ 0.90).
func (e *Engine) BreakdownDegrade(vehicleID domain.VehicleId, roll float64) error {
	r, err := e.get(vehicleID)
	if err != nil {
		return err
	}
	raw := (1 - r.DNA) * roll
	if r.DNATier() == Legendary {
		raw *= 0.30
	}
	loss := ceilingLossFor(raw, r.DNA)
	r.Ceiling -= loss
	if r.Ceiling < 0.30 {
		r.Ceiling = 0.30
	}
	r.BreakdownCount++
	return nil
}

// FieldRepair performs the OBD one-shot repair on one component: clears any
// seizure, raises that component's R to max(R, min(0.30, ceiling)), and
// consumes the per-vehicle/per-component allowance.
func (e *Engine) FieldRepair(vehicleID domain.VehicleId, c Component) error {
	r, err := e.get(vehicleID)
	if err != nil {
		return err
	}
	if r.FieldRepairHistory[c] {
		return ErrAlreadyFieldRepaired{vehicleID, c}
	}
	delete(r.Seizures, c)
	target := 0.30
	if r.Ceiling < target {
		target = r.Ceiling
	}
	if r.componentR(c) < target {
		r.setComponentR(c, target)
	}
	r.FieldRepairHistory[c] = true
	return nil
}

// seizureThreshold is spec.md §4.3's R floor below which seizure escalation
// may trigger: 0.40 − dna·0.30 (0.40 at dna 0, falling to 0.10 at dna 1).
func (e *Engine) seizureThreshold(r *Record) float64 {
	return e.cfg.SeizureBaseThreshold - r.DNA*e.cfg.SeizureDNAReduction
}

// TickInput carries the per-tick, host-observed inputs for one vehicle's
// frame-tick malfunction evaluation.
type TickInput struct {
	Now       domain.Millis
	DtSeconds float64
	Damage    float64
	Hours     float64
	Load      float64
}

// TickResult reports what happened during one FrameTick call.
type TickResult struct {
	Triggered *MalfunctionKind
	Seized    *Component
	Ended     bool
}

// FrameTick advances one vehicle's malfunction state machine by dt seconds,
// rolling for stall/progressive-failure probability and seizure escalation
// exactly as spec.md §4.3 defines.
func (e *Engine) FrameTick(vehicleID domain.VehicleId, in TickInput) (TickResult, error) {
	r, err := e.get(vehicleID)
	if err != nil {
		return TickResult{}, err
	}
	var result TickResult

	if r.Malfunction != nil {
		switch r.Malfunction.State {
		case Active:
			if !in.Now.Before(r.Malfunction.EndsAt) {
				r.Malfunction.State = Cooldown
				r.Malfunction.EndsAt = in.Now.Add(r.Malfunction.Kind.cooldownDuration())
				result.Ended = true
			}
			return result, nil
		case Cooldown:
			if !in.Now.Before(r.Malfunction.EndsAt) {
				r.Malfunction = nil
			}
			return result, nil
		}
	}

	b := 0.00001 + (1-r.EngineR)*(1-r.EngineR)*0.0002
	dmg := 1 + in.Damage*4
	hrs := 1 + math.Min(in.Hours/20000, 0.5)
	load := 1 + in.Load*in.Damage*2
	pStall := math.Min(0.02, b*dmg*hrs*load) * in.DtSeconds * e.cfg.MalfunctionFrequency

	avgR := (r.EngineR + r.HydraulicR + r.ElectricalR) / 3.0
	pProgressive := e.cfg.ProgressiveFailureMultiplier * math.Pow(1-avgR, e.cfg.ProgressiveFailureExponent) * in.DtSeconds * e.cfg.MalfunctionFrequency

	pCombined := 1 - (1-pStall)*(1-pProgressive)

	nonce := e.nextNonce(r, vehicleID)
	roll := rng.Roll(e.seed, "malfunction.trigger", nonce)
	if roll < pCombined {
		kind := e.pickMalfunctionKind(r, in, nonce)
		r.Malfunction = &ActiveMalfunction{Kind: kind, State: Active, EndsAt: in.Now.Add(30 * domain.Second)}
		result.Triggered = &kind

		if e.cfg.EnableSeizureEscalation {
			if c, ok := e.tryEscalateSeizure(r, vehicleID, nonce); ok {
				result.Seized = &c
			}
		}
	}
	return result, nil
}

// pickMalfunctionKind selects which kind fires, honoring Runaway's gate
// (oil<0.10 AND hydraulic<0.10).
func (e *Engine) pickMalfunctionKind(r *Record, in TickInput, nonce int64) MalfunctionKind {
	if r.OilLevel < 0.10 && r.HydraulicLevel < 0.10 {
		return Runaway
	}
	kinds := []MalfunctionKind{
		Stall, Misfire, Overheat, HydraulicSurge, ImplementStuckDown, ImplementStuckUp,
		ImplementPull, ImplementDrag, ElectricalCutout, FlatTire, SlowLeak, Blowout, FuelLeak,
	}
	idx := rng.RollInt(e.seed, "malfunction.kind", nonce+1, 0, len(kinds)-1)
	return kinds[idx]
}

// tryEscalateSeizure rolls the second die for seizure escalation per
// spec.md §4.3, seizing a component already implicated by the affected
// reliability axis below threshold.
func (e *Engine) tryEscalateSeizure(r *Record, vehicleID domain.VehicleId, nonce int64) (Component, bool) {
	threshold := e.seizureThreshold(r)
	components := []Component{EngineComponent, Hydraulic, Electrical}
	for _, c := range components {
		if r.componentR(c) > threshold {
			continue
		}
		chance := lerp(e.cfg.SeizureMinChance, e.cfg.SeizureMaxChance, 1-(r.componentR(c)/math.Max(threshold, 1e-9)))
		if r.DNATier() == Lemon {
			chance += e.cfg.SeizureLemonPenalty
		}
		roll := rng.Roll(e.seed, "seizure.escalate", nonce+int64(c)+2)
		if roll < chance {
			r.Seizures[c] = true
			return c, true
		}
	}
	return 0, false
}

func lerp(a, b, t float64) float64 {
	if t < 0 {
		t = 0
	}
	if t > 1 {
		t = 1
	}
	return a + (b-a)*t
}

