package handler

import (
	"net/http"

	"github.com/usedplus/core/internal/domain"
	"github.com/usedplus/core/internal/events"
	"github.com/usedplus/core/internal/money"
	"github.com/usedplus/core/internal/reliability"
	"github.com/usedplus/core/internal/service"
)

type repairVehicleRequest struct {
	VehicleID domain.VehicleId         `json:"vehicleId" validate:"required"`
	Affected  []reliability.Component  `json:"affected"`
	Cost      money.Amount             `json:"cost" validate:"gte=0"`
}

// RepairVehicle handles POST /api/v1/service/repair.
func (d *Deps) RepairVehicle(w http.ResponseWriter, r *http.Request) {
	farmID, ok := farmIDFromRequest(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthenticated"})
		return
	}
	body, err := decodeAndValidate[repairVehicleRequest](r, d.Validate)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	resp := d.Dispatcher.RepairVehicle(events.RepairVehicleParams{
		ConnID:    connIDFor(farmID),
		FarmID:    farmID,
		VehicleID: body.VehicleID,
		Affected:  body.Affected,
		Cost:      body.Cost,
	})
	writeResponse(w, resp)
}

type fieldRepairRequest struct {
	VehicleID domain.VehicleId      `json:"vehicleId" validate:"required"`
	Target    reliability.Component `json:"target"`
}

// FieldRepair handles POST /api/v1/service/field-repair.
func (d *Deps) FieldRepair(w http.ResponseWriter, r *http.Request) {
	farmID, ok := farmIDFromRequest(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthenticated"})
		return
	}
	body, err := decodeAndValidate[fieldRepairRequest](r, d.Validate)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	resp := d.Dispatcher.FieldRepair(events.FieldRepairParams{
		ConnID:    connIDFor(farmID),
		FarmID:    farmID,
		VehicleID: body.VehicleID,
		Target:    body.Target,
	})
	writeResponse(w, resp)
}

type refillFluidsRequest struct {
	VehicleID domain.VehicleId `json:"vehicleId" validate:"required"`
	Cost      money.Amount     `json:"cost" validate:"gte=0"`
}

// RefillFluids handles POST /api/v1/service/fluids.
func (d *Deps) RefillFluids(w http.ResponseWriter, r *http.Request) {
	farmID, ok := farmIDFromRequest(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthenticated"})
		return
	}
	body, err := decodeAndValidate[refillFluidsRequest](r, d.Validate)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	resp := d.Dispatcher.RefillFluids(events.RefillFluidsParams{
		ConnID:    connIDFor(farmID),
		FarmID:    farmID,
		VehicleID: body.VehicleID,
		Cost:      body.Cost,
	})
	writeResponse(w, resp)
}

type replaceTiresRequest struct {
	VehicleID domain.VehicleId `json:"vehicleId" validate:"required"`
	Cost      money.Amount     `json:"cost" validate:"gte=0"`
}

// ReplaceTires handles POST /api/v1/service/tires.
func (d *Deps) ReplaceTires(w http.ResponseWriter, r *http.Request) {
	farmID, ok := farmIDFromRequest(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthenticated"})
		return
	}
	body, err := decodeAndValidate[replaceTiresRequest](r, d.Validate)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	resp := d.Dispatcher.ReplaceTires(events.ReplaceTiresParams{
		ConnID:    connIDFor(farmID),
		FarmID:    farmID,
		VehicleID: body.VehicleID,
		Cost:      body.Cost,
	})
	writeResponse(w, resp)
}

type startRestorationRequest struct {
	VehicleID   domain.VehicleId      `json:"vehicleId" validate:"required"`
	Target      reliability.Component `json:"target"`
	Consumables service.Consumables   `json:"consumables"`
}

// StartRestoration handles POST /api/v1/service/restoration/start.
func (d *Deps) StartRestoration(w http.ResponseWriter, r *http.Request) {
	farmID, ok := farmIDFromRequest(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthenticated"})
		return
	}
	body, err := decodeAndValidate[startRestorationRequest](r, d.Validate)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	resp := d.Dispatcher.StartRestoration(events.StartRestorationParams{
		ConnID:      connIDFor(farmID),
		FarmID:      farmID,
		VehicleID:   body.VehicleID,
		Target:      body.Target,
		Consumables: body.Consumables,
	})
	writeResponse(w, resp)
}

type stopRestorationRequest struct {
	VehicleID domain.VehicleId `json:"vehicleId" validate:"required"`
}

// StopRestoration handles POST /api/v1/service/restoration/stop.
func (d *Deps) StopRestoration(w http.ResponseWriter, r *http.Request) {
	farmID, ok := farmIDFromRequest(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthenticated"})
		return
	}
	body, err := decodeAndValidate[stopRestorationRequest](r, d.Validate)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	resp := d.Dispatcher.StopRestoration(events.StopRestorationParams{
		ConnID:    connIDFor(farmID),
		FarmID:    farmID,
		VehicleID: body.VehicleID,
	})
	writeResponse(w, resp)
}

// SetRestorationCooldown handles POST /api/v1/service/restoration/cooldown.
// It carries no body: the acting farm is the only input.
func (d *Deps) SetRestorationCooldown(w http.ResponseWriter, r *http.Request) {
	farmID, ok := farmIDFromRequest(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthenticated"})
		return
	}
	resp := d.Dispatcher.SetRestorationCooldown(events.SetRestorationCooldownParams{
		ConnID: connIDFor(farmID),
		FarmID: farmID,
	})
	writeResponse(w, resp)
}

type serviceTruckDiscoveryRequest struct {
	HasDegradedOwnedVehicle bool `json:"hasDegradedOwnedVehicle"`
}

// ServiceTruckDiscovery handles POST /api/v1/service/truck/discovery.
func (d *Deps) ServiceTruckDiscovery(w http.ResponseWriter, r *http.Request) {
	farmID, ok := farmIDFromRequest(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthenticated"})
		return
	}
	body, err := decodeAndValidate[serviceTruckDiscoveryRequest](r, d.Validate)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	resp := d.Dispatcher.ServiceTruckDiscovery(events.ServiceTruckDiscoveryParams{
		ConnID:                  connIDFor(farmID),
		FarmID:                  farmID,
		HasDegradedOwnedVehicle: body.HasDegradedOwnedVehicle,
	})
	writeResponse(w, resp)
}

type serviceTruckPurchaseRequest struct {
	Price money.Amount `json:"price" validate:"gte=0"`
}

// ServiceTruckPurchase handles POST /api/v1/service/truck/purchase.
func (d *Deps) ServiceTruckPurchase(w http.ResponseWriter, r *http.Request) {
	farmID, ok := farmIDFromRequest(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthenticated"})
		return
	}
	body, err := decodeAndValidate[serviceTruckPurchaseRequest](r, d.Validate)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	resp := d.Dispatcher.ServiceTruckPurchase(events.ServiceTruckPurchaseParams{
		ConnID: connIDFor(farmID),
		FarmID: farmID,
		Price:  body.Price,
	})
	writeResponse(w, resp)
}
