package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/usedplus/core/internal/domain"
	"github.com/usedplus/core/internal/finance"
	"github.com/usedplus/core/internal/hostapi"
	"github.com/usedplus/core/internal/money"
	"github.com/usedplus/core/internal/service"
)

func newTestCore() (*Core, *hostapi.FakeHost) {
	host := hostapi.NewFakeHost()
	host.AddFarm(1, money.Amount(1_000_000_00))
	host.BindConnection("conn-1", 1)
	c := New(7, host, service.NewInventory(), nil)
	return c, host
}

func TestMonthTick_AppliesStandardPaymentAndDebitsFarm(t *testing.T) {
	c, host := newTestCore()
	vehicleID := domain.VehicleId(1)
	deal, err := c.Finance.CreateDeal(finance.NewDealParams{
		Kind:            finance.VehicleFinance,
		FarmID:          1,
		Now:             host.Now(),
		OriginalAmount:  money.Amount(50_000_00),
		InterestRatePct: 6.0,
		TermMonths:      60,
		MonthlyPayment:  money.Amount(966_64),
		VehicleID:       &vehicleID,
	})
	require.NoError(t, err)

	before := host.FarmMoney(1)
	res := c.MonthTick(host.Now())
	assert.Equal(t, 1, res.DealsProcessed)
	assert.Less(t, host.FarmMoney(1), before)
	assert.Equal(t, 1, deal.MonthsPaid)
}

func TestMonthTick_RepossessesAfterThreeMissedPayments(t *testing.T) {
	c, host := newTestCore()
	vehicleID := domain.VehicleId(1)
	host.AddVehicle(hostapi.Vehicle{ID: vehicleID, StoreRef: "tool.tractor"}, 1)

	deal, err := c.Finance.CreateDeal(finance.NewDealParams{
		Kind:            finance.VehicleFinance,
		FarmID:          1,
		Now:             host.Now(),
		OriginalAmount:  money.Amount(50_000_00),
		InterestRatePct: 6.0,
		TermMonths:      60,
		MonthlyPayment:  money.Amount(966_64),
		VehicleID:       &vehicleID,
		Collateral:      []finance.CollateralItem{{Ref: "tool.tractor", Value: money.Amount(50_000_00)}},
	})
	require.NoError(t, err)
	require.NoError(t, c.Finance.SetPaymentConfig(deal.ID, finance.Skip, 1.0, 0))

	var res MonthTickResult
	for i := 0; i < 3; i++ {
		res = c.MonthTick(host.Now())
	}
	assert.Equal(t, 1, res.Repossessions)
	_, stillOwned := host.VehicleByID(vehicleID)
	assert.False(t, stillOwned)
}

func TestFrameTick_AdvancesObservedVehicles(t *testing.T) {
	c, host := newTestCore()
	vehicleID := host.AddVehicle(hostapi.Vehicle{ID: 1, StoreRef: "tool.tractor"}, 1)
	c.Reliability.Observe(vehicleID)

	res := c.FrameTick(host.Now(), 3600)
	assert.GreaterOrEqual(t, res.Malfunctions, 0)
}

func TestDispatcherIsWiredToSameSubsystems(t *testing.T) {
	c, _ := newTestCore()
	assert.Same(t, c.Credit, c.Dispatcher.Credit)
	assert.Same(t, c.Reliability, c.Dispatcher.Reliability)
	assert.Same(t, c.Finance, c.Dispatcher.Finance)
	assert.Same(t, c.Market, c.Dispatcher.Market)
	assert.Same(t, c.Service, c.Dispatcher.Service)
}
