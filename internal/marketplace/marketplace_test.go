package marketplace

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/usedplus/core/internal/domain"
	"github.com/usedplus/core/internal/money"
)

func TestStartSearch_CapEnforced(t *testing.T) {
	m := New(42)
	for i := 0; i < MaxActiveSearches; i++ {
		_, _, err := m.StartSearch(1, Local, QualityAny, 100_000_00, 0)
		require.NoError(t, err)
	}
	_, _, err := m.StartSearch(1, Local, QualityAny, 100_000_00, 0)
	var target ErrSearchCapReached
	assert.ErrorAs(t, err, &target)
}

func TestStartSearch_RetainerMatchesTierTable(t *testing.T) {
	m := New(42)
	_, retainer, err := m.StartSearch(1, Local, QualityAny, 100_000_00, 0)
	require.NoError(t, err)
	assert.Equal(t, money.Amount(500_00), retainer)

	_, retainer, err = m.StartSearch(1, Regional, QualityAny, 100_000_00, 0)
	require.NoError(t, err)
	assert.Equal(t, money.Amount(1000_00)+money.Amount(100_000_00).Mul(0.005), retainer)

	_, retainer, err = m.StartSearch(1, National, QualityAny, 100_000_00, 0)
	require.NoError(t, err)
	assert.Equal(t, money.Amount(2000_00)+money.Amount(100_000_00).Mul(0.008), retainer)
}

func TestTickSearches_GeneratesListingsOnCompletion(t *testing.T) {
	m := New(42)
	s, _, err := m.StartSearch(1, National, QualityExcellent, 100_000_00, 0)
	require.NoError(t, err)

	completed := m.TickSearches(s.CompletesAt)
	require.Contains(t, completed, s.ID)
	assert.Equal(t, SearchCompleted, s.Status)
	assert.NotEmpty(t, s.FoundListingIDs)

	for _, lid := range s.FoundListingIDs {
		l, err := m.Listing(lid)
		require.NoError(t, err)
		frac := float64(l.AskPrice) / float64(l.BasePrice)
		assert.GreaterOrEqual(t, frac, 0.79) // quality Excellent range 80-94% (small float slop)
		assert.LessOrEqual(t, frac, 0.95)
	}
}

func TestDeterminism_SameSeedSameListings(t *testing.T) {
	m1 := New(42)
	m2 := New(42)

	s1, _, _ := m1.StartSearch(1, Regional, QualityGood, 80_000_00, 0)
	s2, _, _ := m2.StartSearch(1, Regional, QualityGood, 80_000_00, 0)

	m1.TickSearches(s1.CompletesAt)
	m2.TickSearches(s2.CompletesAt)

	require.Equal(t, len(s1.FoundListingIDs), len(s2.FoundListingIDs))
	for i := range s1.FoundListingIDs {
		l1, _ := m1.Listing(s1.FoundListingIDs[i])
		l2, _ := m2.Listing(s2.FoundListingIDs[i])
		assert.Equal(t, l1.DNA, l2.DNA)
		assert.Equal(t, l1.AskPrice, l2.AskPrice)
		assert.Equal(t, l1.SellerPersonality, l2.SellerPersonality)
	}
}

func makeListing(m *Market, personality SellerPersonality) *Listing {
	l := &Listing{
		ID:                "listing-1",
		AskPrice:           100_000_00,
		SellerPersonality:  personality,
		CreatedAt:          0,
		negotiation:        negOpen,
	}
	m.listings[l.ID] = l
	return l
}

func TestNegotiate_LowballWalksAwayPermanently(t *testing.T) {
	m := New(42)
	l := makeListing(m, Reasonable) // threshold 85

	res, err := m.Negotiate(l.ID, 60, 0, domain.WeatherSun) // threshold-20 = 65, 60 < 65
	require.NoError(t, err)
	assert.Equal(t, OutcomeWalkedAway, res.Outcome)

	_, err = m.Negotiate(l.ID, 90, 0, domain.WeatherSun)
	var target ErrUnknownListing
	assert.ErrorAs(t, err, &target)
}

func TestNegotiate_AboveThresholdAccepts(t *testing.T) {
	m := New(42)
	l := makeListing(m, Reasonable)
	res, err := m.Negotiate(l.ID, 90, 0, domain.WeatherSun)
	require.NoError(t, err)
	assert.Equal(t, OutcomeAccepted, res.Outcome)
}

func TestNegotiate_MidRangeCounters(t *testing.T) {
	m := New(42)
	l := makeListing(m, Reasonable) // threshold 85
	res, err := m.Negotiate(l.ID, 80, 0, domain.WeatherSun)
	require.NoError(t, err)
	assert.Equal(t, OutcomeCountered, res.Outcome)
	assert.InDelta(t, 82.5, res.CounterPct, 0.01)
}

func TestStandFirm_DistributionMatchesSpecOverManyRolls(t *testing.T) {
	caved, held, walked := 0, 0, 0
	for i := 0; i < 10000; i++ {
		m := New(42)
		l := makeListing(m, Reasonable)
		l.negotiation = negCountered
		// Burn a deterministic number of prior rolls so each iteration's
		// StandFirm draws a distinct but reproducible nonce.
		for j := 0; j < i; j++ {
			m.nextNonce()
		}
		outcome, err := m.StandFirm(l.ID, 0)
		require.NoError(t, err)
		switch outcome {
		case StandFirmCaved:
			caved++
		case StandFirmHeld:
			held++
		case StandFirmWalked:
			walked++
		}
	}
	total := float64(caved + held + walked)
	assert.InDelta(t, 0.30, float64(caved)/total, 0.02)
	assert.InDelta(t, 0.50, float64(held)/total, 0.02)
	assert.InDelta(t, 0.20, float64(walked)/total, 0.02)
}

func TestStandFirm_WalkLocksListing(t *testing.T) {
	m := New(42)
	l := makeListing(m, Reasonable)
	l.negotiation = negCountered

	for {
		outcome, err := m.StandFirm(l.ID, 1000)
		require.NoError(t, err)
		if outcome == StandFirmWalked {
			assert.Equal(t, domain.Millis(1000+int64(domain.Hour)), l.LockedUntil)
			_, err := m.Negotiate(l.ID, 90, 1000, domain.WeatherSun)
			var target ErrListingLocked
			assert.ErrorAs(t, err, &target)
			return
		}
		l.negotiation = negCountered
	}
}

func TestInspect_CostFormula(t *testing.T) {
	assert.Equal(t, money.Amount(400_00), InspectionCost(20_000_00))
	assert.Equal(t, money.Amount(2000_00), InspectionCost(10_000_000_00))
}

func TestInspect_CachesUntilDrift(t *testing.T) {
	m := New(42)
	l := makeListing(m, Reasonable)
	l.Hours = 100
	l.Damage = 0.1
	l.Wear = 0.1

	r1, err := m.Inspect(l.ID)
	require.NoError(t, err)

	l.Hours = 105 // within drift tolerance
	r2, err := m.Inspect(l.ID)
	require.NoError(t, err)
	assert.Equal(t, r1, r2)

	l.Hours = 200 // beyond drift tolerance
	r3, err := m.Inspect(l.ID)
	require.NoError(t, err)
	assert.Equal(t, 200.0, r3.Hours)
}

func TestCreateSaleListing_PremiumRequiresConditionGates(t *testing.T) {
	m := New(42)
	_, err := m.CreateSaleListing(1, 10, National, false, Premium, 100_000_00, 0.5, 0.5, 0)
	var target ErrPremiumRequirementsNotMet
	assert.ErrorAs(t, err, &target)

	s, err := m.CreateSaleListing(1, 10, National, false, Premium, 100_000_00, 0.96, 0.85, 0)
	require.NoError(t, err)
	assert.Equal(t, Premium, s.PriceTier)
}

func TestTickSales_ExtendsOnceThenExpires(t *testing.T) {
	m := New(1) // seed chosen so at least one failure/extension path is exercised in CI-stable assertions below
	s, err := m.CreateSaleListing(1, 10, Local, false, Premium, 100_000_00, 0.99, 0.99, 0)
	require.NoError(t, err)

	for i := 0; i < 5 && s.Status == SaleActive; i++ {
		m.TickSales(s.CompletesAt)
	}
	assert.NotEqual(t, SaleActive, s.Status)
}
