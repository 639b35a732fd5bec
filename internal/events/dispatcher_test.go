package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/usedplus/core/internal/credit"
	"github.com/usedplus/core/internal/domain"
	"github.com/usedplus/core/internal/finance"
	"github.com/usedplus/core/internal/hostapi"
	"github.com/usedplus/core/internal/marketplace"
	"github.com/usedplus/core/internal/money"
	"github.com/usedplus/core/internal/reliability"
	"github.com/usedplus/core/internal/service"
)

func newTestDispatcher() (*Dispatcher, *hostapi.FakeHost) {
	host := hostapi.NewFakeHost()
	host.AddFarm(1, money.Amount(1_000_000_00))
	host.BindConnection("conn-1", 1)

	bureau := credit.NewBureau(func(id int64) bool { return host.FarmExists(domain.FarmId(id)) })
	rel := reliability.New(42, reliability.DefaultConfig())
	ledger := finance.New()
	market := marketplace.New(42)
	svc := service.New(42, service.NewInventory())

	return New(host, bureau, rel, ledger, market, svc), host
}

func TestFinanceVehicle_RejectsWrongConnection(t *testing.T) {
	d, _ := newTestDispatcher()
	resp := d.FinanceVehicle(FinanceVehicleParams{
		ConnID:     "conn-1",
		FarmID:     domain.FarmId(2), // not bound to conn-1
		VehicleID:  domain.VehicleId(1),
		BasePrice:  money.Amount(50_000_00),
		TermMonths: 36,
	})
	assert.False(t, resp.Success)
	assert.Equal(t, "error.unauthorized", resp.MessageKey)
}

func TestFinanceVehicle_HappyPath(t *testing.T) {
	d, host := newTestDispatcher()
	before := host.FarmMoney(1)

	resp := d.FinanceVehicle(FinanceVehicleParams{
		ConnID:      "conn-1",
		FarmID:      1,
		VehicleID:   domain.VehicleId(1),
		BasePrice:   money.Amount(60_000_00),
		DownPayment: money.Amount(10_000_00),
		TermMonths:  60,
	})
	require.True(t, resp.Success)
	assert.Equal(t, "deal.created", resp.MessageKey)
	assert.Equal(t, before, host.FarmMoney(1)) // financing itself moves no cash without a cash-back
}

func TestFinanceVehicle_RejectsInvalidTerm(t *testing.T) {
	d, _ := newTestDispatcher()
	resp := d.FinanceVehicle(FinanceVehicleParams{
		ConnID:     "conn-1",
		FarmID:     1,
		VehicleID:  domain.VehicleId(1),
		BasePrice:  money.Amount(10_000_00),
		TermMonths: 500,
	})
	assert.False(t, resp.Success)
	assert.Equal(t, "error.term_out_of_range", resp.MessageKey)
}

func TestTakeLoan_RejectsInsufficientCredit(t *testing.T) {
	d, host := newTestDispatcher()
	// Drive the farm's score down below the CashLoan gate (RatingPoor / 600).
	for i := 0; i < 30; i++ {
		_ = d.Credit.RecordEvent(1, credit.PaymentMissed, int64(i), "test")
	}
	resp := d.TakeLoan(TakeLoanParams{ConnID: "conn-1", FarmID: 1, Amount: money.Amount(5_000_00), TermMonths: 12})
	assert.False(t, resp.Success)
	assert.Equal(t, "error.credit_ineligible", resp.MessageKey)
	_ = host
}

func TestTakeLoan_HappyPathCreditsFarm(t *testing.T) {
	d, host := newTestDispatcher()
	before := host.FarmMoney(1)
	resp := d.TakeLoan(TakeLoanParams{ConnID: "conn-1", FarmID: 1, Amount: money.Amount(5_000_00), TermMonths: 12})
	require.True(t, resp.Success)
	assert.Equal(t, before+money.Amount(5_000_00), host.FarmMoney(1))
}

func TestPurchaseLandCash_RejectsInsufficientFunds(t *testing.T) {
	d, host := newTestDispatcher()
	host.AddLand(hostapi.Land{ID: domain.LandId(1), Acres: 40, SoilQuality: 0.7})

	resp := d.PurchaseLandCash(PurchaseLandCashParams{
		ConnID: "conn-1", FarmID: 1, LandID: domain.LandId(1), Price: money.Amount(10_000_000_00),
	})
	assert.False(t, resp.Success)
	assert.Equal(t, "error.insufficient_funds", resp.MessageKey)
}

func TestPurchaseLandCash_HappyPath(t *testing.T) {
	d, host := newTestDispatcher()
	host.AddLand(hostapi.Land{ID: domain.LandId(1), Acres: 40, SoilQuality: 0.7})

	resp := d.PurchaseLandCash(PurchaseLandCashParams{
		ConnID: "conn-1", FarmID: 1, LandID: domain.LandId(1), Price: money.Amount(50_000_00),
	})
	require.True(t, resp.Success)
	owner, ok := host.LandOwner(domain.LandId(1))
	require.True(t, ok)
	assert.Equal(t, domain.FarmId(1), owner)
}

func TestRequestUsedItem_RejectsWhenSearchCapReached(t *testing.T) {
	d, host := newTestDispatcher()
	for i := 0; i < marketplace.MaxActiveSearches; i++ {
		resp := d.RequestUsedItem(RequestUsedItemParams{
			ConnID: "conn-1", FarmID: 1, Tier: marketplace.Local, Quality: marketplace.QualityAny,
			BasePrice: money.Amount(10_000_00),
		})
		require.True(t, resp.Success, "search %d", i)
	}
	resp := d.RequestUsedItem(RequestUsedItemParams{
		ConnID: "conn-1", FarmID: 1, Tier: marketplace.Local, Quality: marketplace.QualityAny,
		BasePrice: money.Amount(10_000_00),
	})
	assert.False(t, resp.Success)
	assert.Equal(t, "error.search_cap_reached", resp.MessageKey)
	_ = host
}

func TestFieldRepair_RejectsWithoutOBDKits(t *testing.T) {
	d, host := newTestDispatcher()
	v := host.AddVehicle(hostapi.Vehicle{ID: 1, StoreRef: "tool.generic"}, 1)

	resp := d.FieldRepair(FieldRepairParams{ConnID: "conn-1", FarmID: 1, VehicleID: v, Target: reliability.EngineComponent})
	assert.False(t, resp.Success)
	assert.Equal(t, "error.no_obd_kits", resp.MessageKey)
}

func TestFieldRepair_HappyPath(t *testing.T) {
	d, host := newTestDispatcher()
	v := host.AddVehicle(hostapi.Vehicle{ID: 1, StoreRef: "tool.generic"}, 1)
	d.Service.Inventory().GrantOBDKits(1, 1)

	resp := d.FieldRepair(FieldRepairParams{ConnID: "conn-1", FarmID: 1, VehicleID: v, Target: reliability.EngineComponent})
	assert.True(t, resp.Success)
}

func TestServiceTruckDiscovery_NotEligibleByDefault(t *testing.T) {
	d, _ := newTestDispatcher()
	resp := d.ServiceTruckDiscovery(ServiceTruckDiscoveryParams{ConnID: "conn-1", FarmID: 1, HasDegradedOwnedVehicle: true})
	require.True(t, resp.Success)
	assert.Equal(t, "service_truck.not_yet_eligible", resp.MessageKey)
}

func TestRepairVehicle_RejectsNonOwner(t *testing.T) {
	d, host := newTestDispatcher()
	host.AddFarm(2, money.Amount(1_000_00))
	v := host.AddVehicle(hostapi.Vehicle{ID: 1, StoreRef: "tool.generic"}, 2)

	resp := d.RepairVehicle(RepairVehicleParams{
		ConnID: "conn-1", FarmID: 1, VehicleID: v, Cost: money.Amount(500_00),
	})
	assert.False(t, resp.Success)
	assert.Equal(t, "error.not_vehicle_owner", resp.MessageKey)
}

// startAndCompleteSearch drives a buy-side search to completion and returns
// the first listing id it surfaced, mirroring spec.md §8.1's farmA scenario.
func startAndCompleteSearch(t *testing.T, d *Dispatcher, farmID domain.FarmId) string {
	t.Helper()
	s, _, err := d.Market.StartSearch(farmID, marketplace.National, marketplace.QualityExcellent, money.Amount(100_000_00), 0)
	require.NoError(t, err)
	d.Market.TickSearches(s.CompletesAt)
	require.NotEmpty(t, s.FoundListingIDs)
	return s.FoundListingIDs[0]
}

func TestInspectListing_HappyPath_ChargesFee(t *testing.T) {
	d, host := newTestDispatcher()
	listingID := startAndCompleteSearch(t, d, 1)
	before := host.FarmMoney(1)

	resp := d.InspectListing(InspectListingParams{ConnID: "conn-1", FarmID: 1, ListingID: listingID})

	require.True(t, resp.Success)
	assert.Equal(t, "listing.inspected", resp.MessageKey)
	assert.NotEmpty(t, resp.Arg1) // rating
	assert.Less(t, host.FarmMoney(1), before)
}

func TestInspectListing_RejectsNonOwner(t *testing.T) {
	d, host := newTestDispatcher()
	listingID := startAndCompleteSearch(t, d, 1)
	host.AddFarm(2, money.Amount(1_000_000_00))
	host.BindConnection("conn-2", 2)

	resp := d.InspectListing(InspectListingParams{ConnID: "conn-2", FarmID: 2, ListingID: listingID})
	assert.False(t, resp.Success)
	assert.Equal(t, "error.not_listing_owner", resp.MessageKey)
}

func TestNegotiateListing_OfferAboveThresholdAccepts(t *testing.T) {
	d, _ := newTestDispatcher()
	listingID := startAndCompleteSearch(t, d, 1)

	resp := d.NegotiateListing(NegotiateListingParams{
		ConnID: "conn-1", FarmID: 1, ListingID: listingID,
		Action: marketplace.NegotiateOffer, OfferPct: 100,
	})

	require.True(t, resp.Success)
	assert.Equal(t, "negotiate.Accepted", resp.MessageKey)
}

func TestPurchaseListing_RejectsBeforeNegotiationAccepted(t *testing.T) {
	d, _ := newTestDispatcher()
	listingID := startAndCompleteSearch(t, d, 1)

	resp := d.PurchaseListing(PurchaseListingParams{ConnID: "conn-1", FarmID: 1, ListingID: listingID})
	assert.False(t, resp.Success)
	assert.Equal(t, "error.listing_not_accepted", resp.MessageKey)
}

// TestBuyUsedHappyPath drives spec.md §8.1 end to end: search, inspect,
// negotiate at full ask (always clears even Immovable's 98% threshold),
// then purchase — debiting cash and spawning the vehicle.
func TestBuyUsedHappyPath(t *testing.T) {
	d, host := newTestDispatcher()
	listingID := startAndCompleteSearch(t, d, 1)
	listing, err := d.Market.Listing(listingID)
	require.NoError(t, err)
	before := host.FarmMoney(1)

	inspectCost := marketplace.InspectionCost(listing.AskPrice)
	inspectResp := d.InspectListing(InspectListingParams{ConnID: "conn-1", FarmID: 1, ListingID: listingID})
	require.True(t, inspectResp.Success)

	negotiateResp := d.NegotiateListing(NegotiateListingParams{
		ConnID: "conn-1", FarmID: 1, ListingID: listingID,
		Action: marketplace.NegotiateOffer, OfferPct: 100,
	})
	require.True(t, negotiateResp.Success)
	require.Equal(t, "negotiate.Accepted", negotiateResp.MessageKey)

	purchaseResp := d.PurchaseListing(PurchaseListingParams{ConnID: "conn-1", FarmID: 1, ListingID: listingID})
	require.True(t, purchaseResp.Success)
	assert.Equal(t, "marketplace.purchased", purchaseResp.MessageKey)
	assert.Equal(t, before-inspectCost-listing.AskPrice, host.FarmMoney(1))

	_, err = d.Market.Listing(listingID)
	assert.Error(t, err) // purchased listings are removed from the market
}
