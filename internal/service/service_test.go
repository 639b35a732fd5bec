package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/usedplus/core/internal/domain"
	"github.com/usedplus/core/internal/reliability"
)

func TestFieldRepair_ConsumesKitAndDelegates(t *testing.T) {
	inv := NewInventory()
	inv.GrantOBDKits(1, 1)
	svc := New(42, inv)
	rel := reliability.New(42, reliability.DefaultConfig())
	rel.Observe(10)

	err := svc.FieldRepair(rel, 1, 10, reliability.EngineComponent)
	require.NoError(t, err)
	assert.Equal(t, 0, inv.OBDKits[1])

	err = svc.FieldRepair(rel, 1, 10, reliability.EngineComponent)
	assert.Error(t, err) // no kits remaining
}

func TestFieldRepair_RefundsKitOnAlreadyRepaired(t *testing.T) {
	inv := NewInventory()
	inv.GrantOBDKits(1, 2)
	svc := New(42, inv)
	rel := reliability.New(42, reliability.DefaultConfig())
	rel.Observe(10)

	require.NoError(t, svc.FieldRepair(rel, 1, 10, reliability.EngineComponent))
	err := svc.FieldRepair(rel, 1, 10, reliability.EngineComponent)
	assert.Error(t, err)
	assert.Equal(t, 1, inv.OBDKits[1]) // refunded since reliability rejected it
}

func TestStartRestoration_InspectFailureAborts(t *testing.T) {
	// Find a seed/vehicle combination where the inspect roll fails.
	for seed := int64(1); seed < 50; seed++ {
		inv := NewInventory()
		svc := New(seed, inv)
		r, err := svc.StartRestoration(1, 10, reliability.EngineComponent, 0, Consumables{1, 1, 1, 1})
		require.NoError(t, err)
		if r.State == Aborted {
			return
		}
	}
	t.Skip("no seed in range produced an inspect failure; acceptable given 85% pass rate")
}

func TestTickRestoration_CompletesAfter100Hours(t *testing.T) {
	inv := NewInventory()
	svc := New(2, inv) // seed 2 passes inspect minigame in practice
	rel := reliability.New(2, reliability.DefaultConfig())
	rel.Observe(10)

	var r *Restoration
	var err error
	for i := 0; i < 20 && (r == nil || r.State != Working); i++ {
		r, err = svc.StartRestoration(1, domain.VehicleId(10+i), reliability.EngineComponent, 0, Consumables{100, 100, 100, 100})
		require.NoError(t, err)
		if r.State == Working {
			break
		}
	}
	require.Equal(t, Working, r.State)
	rel.Observe(r.VehicleID)

	var lastResult RestorationTickResult
	for h := 0; h < 100; h++ {
		lastResult, err = svc.TickRestoration(rel, r.VehicleID, domain.Millis(h)*domain.Hour)
		require.NoError(t, err)
	}
	assert.True(t, lastResult.Completed)
	assert.Equal(t, Completed, r.State)

	rec, err := rel.RecordFor(r.VehicleID)
	require.NoError(t, err)
	assert.Equal(t, 1.0, rec.Ceiling)
}

func TestTickRestoration_PausesWhenConsumableEmpty(t *testing.T) {
	inv := NewInventory()
	svc := New(2, inv)
	rel := reliability.New(2, reliability.DefaultConfig())

	var r *Restoration
	var err error
	for i := 0; i < 20 && (r == nil || r.State != Working); i++ {
		r, err = svc.StartRestoration(1, domain.VehicleId(50+i), reliability.EngineComponent, 0, Consumables{0, 1, 1, 1})
		require.NoError(t, err)
	}
	require.Equal(t, Working, r.State)
	rel.Observe(r.VehicleID)

	result, err := svc.TickRestoration(rel, r.VehicleID, 0)
	require.NoError(t, err)
	assert.Equal(t, 0.0, result.PausedHours)
	assert.Equal(t, 0.0, r.ProgressPct)
}

func TestDiscoveryGate_RequiresAllThreeConditions(t *testing.T) {
	inv := NewInventory()
	inv.GrantOBDKits(1, 10)
	svc := New(42, inv)
	rel := reliability.New(42, reliability.DefaultConfig())
	rel.Observe(1)

	assert.False(t, svc.DiscoveryGate(750, true)) // openedOBDCount still 0

	components := []reliability.Component{reliability.EngineComponent, reliability.Hydraulic, reliability.Electrical}
	for _, c := range components {
		require.NoError(t, svc.FieldRepair(rel, 1, 1, c))
	}
	assert.True(t, svc.DiscoveryGate(750, true))
	assert.False(t, svc.DiscoveryGate(699, true))
	assert.False(t, svc.DiscoveryGate(750, false))
}

func TestRollOfferOnNationalSale_GuaranteedAfterTenMisses(t *testing.T) {
	svc := New(7, NewInventory())
	hitFound := false
	for i := 0; i < 11; i++ {
		if svc.RollOfferOnNationalSale(1, true, 0) {
			hitFound = true
			break
		}
	}
	assert.True(t, hitFound)
}
