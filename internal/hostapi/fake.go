package hostapi

import (
	"fmt"
	"sync"

	"github.com/usedplus/core/internal/domain"
	"github.com/usedplus/core/internal/money"
)

// FakeHost is an in-memory HostGameApi used by test harnesses to construct a
// Core without a real game host (spec.md §9: "test harnesses construct a
// Core with a stub HostGameApi and a seeded RNG").
type FakeHost struct {
	mu sync.Mutex

	now     domain.Millis
	weather domain.Weather

	farms       map[domain.FarmId]bool
	balances    map[domain.FarmId]money.Amount
	connections map[string]domain.FarmId

	vehicles      map[domain.VehicleId]Vehicle
	vehicleOwners map[domain.VehicleId]domain.FarmId
	nextVehicleID domain.VehicleId

	lands      map[domain.LandId]Land
	landOwners map[domain.LandId]domain.FarmId
}

// NewFakeHost constructs an empty fake host.
func NewFakeHost() *FakeHost {
	return &FakeHost{
		farms:         make(map[domain.FarmId]bool),
		balances:      make(map[domain.FarmId]money.Amount),
		connections:   make(map[string]domain.FarmId),
		vehicles:      make(map[domain.VehicleId]Vehicle),
		vehicleOwners: make(map[domain.VehicleId]domain.FarmId),
		lands:         make(map[domain.LandId]Land),
		landOwners:    make(map[domain.LandId]domain.FarmId),
		nextVehicleID: 1,
	}
}

// AddFarm registers a farm under the given id with a starting balance.
func (h *FakeHost) AddFarm(id domain.FarmId, balance money.Amount) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.farms[id] = true
	h.balances[id] = balance
}

// BindConnection associates a connection id with a farm, for ownership checks.
func (h *FakeHost) BindConnection(connID string, farmID domain.FarmId) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.connections[connID] = farmID
}

// SetNow sets the fake host clock.
func (h *FakeHost) SetNow(t domain.Millis) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.now = t
}

// SetWeather sets the fake host's current weather.
func (h *FakeHost) SetWeather(w domain.Weather) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.weather = w
}

// AddVehicle registers a vehicle owned by farmID.
func (h *FakeHost) AddVehicle(v Vehicle, farmID domain.FarmId) domain.VehicleId {
	h.mu.Lock()
	defer h.mu.Unlock()
	if v.ID == 0 {
		v.ID = h.nextVehicleID
		h.nextVehicleID++
	}
	h.vehicles[v.ID] = v
	h.vehicleOwners[v.ID] = farmID
	return v.ID
}

// AddLand registers an unowned parcel of land.
func (h *FakeHost) AddLand(l Land) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.lands[l.ID] = l
}

func (h *FakeHost) Now() domain.Millis {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.now
}

func (h *FakeHost) CurrentWeather() domain.Weather {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.weather
}

func (h *FakeHost) FarmExists(farmID domain.FarmId) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.farms[farmID]
}

func (h *FakeHost) FarmMoney(farmID domain.FarmId) money.Amount {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.balances[farmID]
}

func (h *FakeHost) AddMoney(farmID domain.FarmId, delta money.Amount, reason string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.farms[farmID] {
		return fmt.Errorf("hostapi: unknown farm %d", farmID)
	}
	h.balances[farmID] += delta
	return nil
}

func (h *FakeHost) ConnectionFarmID(connID string) (domain.FarmId, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	f, ok := h.connections[connID]
	return f, ok
}

func (h *FakeHost) VehicleByID(id domain.VehicleId) (Vehicle, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	v, ok := h.vehicles[id]
	return v, ok
}

func (h *FakeHost) VehicleOwner(id domain.VehicleId) (domain.FarmId, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	f, ok := h.vehicleOwners[id]
	return f, ok
}

func (h *FakeHost) AddVehicleDamage(id domain.VehicleId, delta float64) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	v, ok := h.vehicles[id]
	if !ok {
		return fmt.Errorf("hostapi: unknown vehicle %d", id)
	}
	v.Damage = clampUnit(v.Damage + delta)
	h.vehicles[id] = v
	return nil
}

func (h *FakeHost) RemoveVehicle(id domain.VehicleId) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.vehicles, id)
	delete(h.vehicleOwners, id)
	return nil
}

func (h *FakeHost) SpawnVehicle(storeRef string, farmID domain.FarmId, configs []int32) (domain.VehicleId, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	id := h.nextVehicleID
	h.nextVehicleID++
	h.vehicles[id] = Vehicle{ID: id, StoreRef: storeRef}
	h.vehicleOwners[id] = farmID
	return id, nil
}

func (h *FakeHost) LandByID(id domain.LandId) (Land, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	l, ok := h.lands[id]
	return l, ok
}

func (h *FakeHost) LandOwner(id domain.LandId) (domain.FarmId, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	f, ok := h.landOwners[id]
	return f, ok
}

func (h *FakeHost) SetLandOwner(id domain.LandId, farmID *domain.FarmId) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if farmID == nil {
		delete(h.landOwners, id)
		return nil
	}
	h.landOwners[id] = *farmID
	return nil
}

func clampUnit(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

var _ HostGameApi = (*FakeHost)(nil)
