// Package hostapi defines the thin boundary between the deterministic core
// and the host game (spec.md §6 HostGameApi): money, farms, vehicles, land,
// weather, and time all flow through this interface so the core itself
// never touches host state directly.
//
// Grounded on the teacher's internal/handler package's pattern of depending
// on narrow interfaces (e.g. bidengine.Engine) rather than concrete host
// types, and on vehicle-auction's domain.Vehicle fields (the value shape
// vehicleById would return here).
package hostapi

import (
	"github.com/usedplus/core/internal/domain"
	"github.com/usedplus/core/internal/money"
)

// Vehicle is the subset of host vehicle state the core reads.
type Vehicle struct {
	ID        domain.VehicleId
	StoreRef  string
	SalePrice money.Amount
	Damage    float64
	Wear      float64
	Hours     float64
	Load      float64
}

// Land is the subset of host land state the core reads.
type Land struct {
	ID          domain.LandId
	Acres       float64
	SoilQuality float64
}

// HostGameApi is implemented by the embedding game; the core never holds
// a concrete reference to the host, only this interface (spec.md §9's
// single explicit Core aggregate, wired with a stub in tests).
type HostGameApi interface {
	Now() domain.Millis
	CurrentWeather() domain.Weather

	FarmExists(farmID domain.FarmId) bool
	FarmMoney(farmID domain.FarmId) money.Amount
	AddMoney(farmID domain.FarmId, delta money.Amount, reason string) error
	ConnectionFarmID(connID string) (domain.FarmId, bool)

	VehicleByID(id domain.VehicleId) (Vehicle, bool)
	VehicleOwner(id domain.VehicleId) (domain.FarmId, bool)
	AddVehicleDamage(id domain.VehicleId, delta float64) error
	RemoveVehicle(id domain.VehicleId) error
	SpawnVehicle(storeRef string, farmID domain.FarmId, configs []int32) (domain.VehicleId, error)

	LandByID(id domain.LandId) (Land, bool)
	LandOwner(id domain.LandId) (domain.FarmId, bool)
	SetLandOwner(id domain.LandId, farmID *domain.FarmId) error
}
