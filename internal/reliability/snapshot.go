package reliability

import "github.com/usedplus/core/internal/domain"

// Snapshot is the serializable form of an Engine's tracked records, used by
// internal/persistence to save/load the whole core (spec.md §2 C9).
type Snapshot struct {
	Records map[domain.VehicleId]RecordSnapshot `json:"records"`
}

// RecordSnapshot mirrors Record but with exported-only, JSON-friendly set
// fields in place of the live maps keyed by the unexported rollSeq cursor.
type RecordSnapshot struct {
	DNA                float64                `json:"dna"`
	EngineR            float64                `json:"engine_r"`
	HydraulicR         float64                `json:"hydraulic_r"`
	ElectricalR        float64                `json:"electrical_r"`
	Ceiling            float64                `json:"ceiling"`
	RepairCount        uint32                 `json:"repair_count"`
	BreakdownCount     uint32                 `json:"breakdown_count"`
	OilLevel           float64                `json:"oil_level"`
	HydraulicLevel     float64                `json:"hydraulic_level"`
	TireTier           TireTier               `json:"tire_tier"`
	Seizures           []Component            `json:"seizures"`
	Malfunction        *ActiveMalfunction     `json:"malfunction,omitempty"`
	CooldownUntil      domain.Millis          `json:"cooldown_until"`
	FieldRepairHistory []Component            `json:"field_repair_history"`
	RollSeq            int64                  `json:"roll_seq"`
}

// Export captures every tracked vehicle's reliability record for persistence.
func (e *Engine) Export() Snapshot {
	snap := Snapshot{Records: make(map[domain.VehicleId]RecordSnapshot, len(e.records))}
	for id, r := range e.records {
		rs := RecordSnapshot{
			DNA: r.DNA, EngineR: r.EngineR, HydraulicR: r.HydraulicR, ElectricalR: r.ElectricalR,
			Ceiling: r.Ceiling, RepairCount: r.RepairCount, BreakdownCount: r.BreakdownCount,
			OilLevel: r.OilLevel, HydraulicLevel: r.HydraulicLevel, TireTier: r.TireTier,
			Malfunction: r.Malfunction, CooldownUntil: r.CooldownUntil, RollSeq: r.rollSeq,
		}
		for c := range r.Seizures {
			rs.Seizures = append(rs.Seizures, c)
		}
		for c := range r.FieldRepairHistory {
			rs.FieldRepairHistory = append(rs.FieldRepairHistory, c)
		}
		snap.Records[id] = rs
	}
	return snap
}

// Restore replaces the engine's tracked records with a previously exported
// Snapshot, preserving the master seed and config already set at New.
func (e *Engine) Restore(snap Snapshot) {
	e.records = make(map[domain.VehicleId]*Record, len(snap.Records))
	for id, rs := range snap.Records {
		r := &Record{
			DNA: rs.DNA, EngineR: rs.EngineR, HydraulicR: rs.HydraulicR, ElectricalR: rs.ElectricalR,
			Ceiling: rs.Ceiling, RepairCount: rs.RepairCount, BreakdownCount: rs.BreakdownCount,
			OilLevel: rs.OilLevel, HydraulicLevel: rs.HydraulicLevel, TireTier: rs.TireTier,
			Seizures: make(map[Component]bool), FieldRepairHistory: make(map[Component]bool),
			Malfunction: rs.Malfunction, CooldownUntil: rs.CooldownUntil, rollSeq: rs.RollSeq,
		}
		for _, c := range rs.Seizures {
			r.Seizures[c] = true
		}
		for _, c := range rs.FieldRepairHistory {
			r.FieldRepairHistory[c] = true
		}
		e.records[id] = r
	}
}
