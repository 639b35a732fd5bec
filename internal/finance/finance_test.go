package finance

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/usedplus/core/internal/credit"
	"github.com/usedplus/core/internal/domain"
	"github.com/usedplus/core/internal/money"
)

func newVehicleDeal(t *testing.T, l *Ledger) *Deal {
	t.Helper()
	d, err := l.CreateDeal(NewDealParams{
		Kind:            VehicleFinance,
		FarmID:          1,
		Now:             0,
		OriginalAmount:  100_000_00,
		InterestRatePct: 6.0,
		TermMonths:      60,
		MonthlyPayment:  1_933_00,
		ItemName:        "Used Tractor",
	})
	require.NoError(t, err)
	return d
}

func TestCreateDeal_RejectsInvalidTerm(t *testing.T) {
	l := New()
	_, err := l.CreateDeal(NewDealParams{Kind: VehicleFinance, FarmID: 1, TermMonths: 0})
	var target ErrInvalidTerm
	assert.ErrorAs(t, err, &target)

	_, err = l.CreateDeal(NewDealParams{Kind: VehicleFinance, FarmID: 1, TermMonths: 361})
	assert.ErrorAs(t, err, &target)
}

func TestAmortizeMonth_StandardReducesBalance(t *testing.T) {
	l := New()
	d := newVehicleDeal(t, l)
	balanceBefore := d.CurrentBalance

	res, err := l.AmortizeMonth(d.ID, 1)
	require.NoError(t, err)
	assert.Less(t, d.CurrentBalance, balanceBefore)
	assert.Greater(t, res.InterestAccrued, money.Amount(0))
	assert.Equal(t, []credit.EventKind{credit.PaymentOnTime}, res.CreditEvents)
	assert.Equal(t, 1, d.MonthsPaid)
}

func TestAmortizeMonth_SkipGrowsBalanceAndCountsMissed(t *testing.T) {
	l := New()
	d := newVehicleDeal(t, l)
	require.NoError(t, d2set(l, d.ID))
	balanceBefore := d.CurrentBalance

	res, err := l.AmortizeMonth(d.ID, 1)
	require.NoError(t, err)
	assert.Greater(t, d.CurrentBalance, balanceBefore)
	assert.Equal(t, 1, d.MissedPayments)
	assert.Equal(t, 1, d.ConsecutiveMissed)
	assert.Equal(t, []credit.EventKind{credit.PaymentMissed}, res.CreditEvents)
}

func d2set(l *Ledger, id string) error {
	return l.SetPaymentConfig(id, Skip, 1.0, 0)
}

func TestNegativeAmortizationBound(t *testing.T) {
	l := New()
	d := newVehicleDeal(t, l)
	require.NoError(t, l.SetPaymentConfig(d.ID, Skip, 1.0, 0))

	for i := 0; i < 600; i++ {
		_, err := l.AmortizeMonth(d.ID, domain.Millis(i))
		require.NoError(t, err)
	}
	cap := d.negativeAmortizationCap()
	assert.LessOrEqual(t, d.CurrentBalance, cap)
}

func TestAmortizeMonth_ThreeConsecutiveMissesRepossessesCollateral(t *testing.T) {
	l := New()
	d, err := l.CreateDeal(NewDealParams{
		Kind:            CashLoan,
		FarmID:          1,
		OriginalAmount:  10_000_00,
		InterestRatePct: 10,
		TermMonths:      24,
		MonthlyPayment:  500_00,
		Collateral:      []CollateralItem{{Ref: "tractor-1", Value: 20_000_00}},
	})
	require.NoError(t, err)
	require.NoError(t, l.SetPaymentConfig(d.ID, Skip, 1.0, 0))

	var last MonthResult
	for i := 0; i < 3; i++ {
		last, err = l.AmortizeMonth(d.ID, domain.Millis(i))
		require.NoError(t, err)
	}
	assert.True(t, last.Repossessed)
	assert.Equal(t, Defaulted, d.Status)
	// third consecutive miss must record both the missed payment and the seizure,
	// not let the seizure event overwrite it (spec.md §8 scenario 6).
	assert.Equal(t, []credit.EventKind{credit.PaymentMissed, credit.AssetSeized}, last.CreditEvents)
}

func TestAmortizeMonth_LandRepossessionSetsDefaulted(t *testing.T) {
	l := New()
	landID := domain.LandId(7)
	d, err := l.CreateDeal(NewDealParams{
		Kind:            LandLease,
		FarmID:          1,
		OriginalAmount:  50_000_00,
		InterestRatePct: 5,
		TermMonths:      36,
		MonthlyPayment:  1_500_00,
		ResidualValue:   20_000_00,
		SecurityDeposit: 5_000_00,
		LandID:          &landID,
	})
	require.NoError(t, err)
	require.NoError(t, l.SetPaymentConfig(d.ID, Skip, 1.0, 0))

	var last MonthResult
	for i := 0; i < 3; i++ {
		last, err = l.AmortizeMonth(d.ID, domain.Millis(i))
		require.NoError(t, err)
	}
	assert.True(t, last.BecameDefaulted)
	assert.Equal(t, Defaulted, d.Status)
	assert.Equal(t, []credit.EventKind{credit.PaymentMissed, credit.LandSeized}, last.CreditEvents)
}

func TestAmortizeMonth_InactiveDealIsNoop(t *testing.T) {
	l := New()
	d := newVehicleDeal(t, l)
	d.Status = Completed
	before := d.CurrentBalance

	res, err := l.AmortizeMonth(d.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, before, d.CurrentBalance)
	assert.NotEmpty(t, res.Note)
}

func TestPrepay_PenaltyAppliesEarlyInTerm(t *testing.T) {
	l := New()
	d := newVehicleDeal(t, l)
	penalty, err := l.Prepay(d.ID, 10_000_00)
	require.NoError(t, err)
	assert.Greater(t, penalty, money.Amount(0))
}

func TestPrepay_NoPenaltyInFinalHalf(t *testing.T) {
	l := New()
	d := newVehicleDeal(t, l)
	d.MonthsPaid = 31 // remaining 29/60 < 0.5
	penalty, err := l.Prepay(d.ID, 10_000_00)
	require.NoError(t, err)
	assert.Equal(t, money.Amount(0), penalty)
}

func TestTerminateLease_AppliesDamageAndFee(t *testing.T) {
	l := New()
	d, err := l.CreateDeal(NewDealParams{
		Kind:            VehicleLease,
		FarmID:          1,
		OriginalAmount:  80_000_00,
		InterestRatePct: 4,
		TermMonths:      36,
		MonthlyPayment:  2_000_00,
		ResidualValue:   30_000_00,
		SecurityDeposit: 5_000_00,
	})
	require.NoError(t, err)

	res, err := l.TerminateLease(d.ID, 100_000_00, 0.2)
	require.NoError(t, err)
	assert.Equal(t, money.Amount(100_000_00).Mul(0.2*0.5), res.DamagePenalty)
	assert.Equal(t, money.Amount(30_000_00).Mul(0.05), res.EarlyTerminationFee)
	assert.Equal(t, Terminated, d.Status)
}

func TestResolveLeaseEnd_Buyout(t *testing.T) {
	l := New()
	d, err := l.CreateDeal(NewDealParams{
		Kind:            VehicleLease,
		FarmID:          1,
		OriginalAmount:  80_000_00,
		InterestRatePct: 4,
		TermMonths:      36,
		MonthlyPayment:  2_000_00,
		ResidualValue:   30_000_00,
		SecurityDeposit: 5_000_00,
	})
	require.NoError(t, err)
	d.AccumulatedEquity = 5_000_00

	res, err := l.ResolveLeaseEnd(d.ID, LeaseBuyout, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, money.Amount(25_000_00), res.BuyoutPrice)
	assert.Equal(t, Completed, d.Status)
}

func TestResolveLeaseEnd_Renew(t *testing.T) {
	l := New()
	d, err := l.CreateDeal(NewDealParams{
		Kind:            VehicleLease,
		FarmID:          1,
		OriginalAmount:  80_000_00,
		InterestRatePct: 4,
		TermMonths:      36,
		MonthlyPayment:  2_000_00,
		ResidualValue:   30_000_00,
		SecurityDeposit: 5_000_00,
	})
	require.NoError(t, err)
	d.MonthsPaid = 36

	_, err = l.ResolveLeaseEnd(d.ID, LeaseRenew, 0, 1_000_00)
	require.NoError(t, err)
	assert.Equal(t, 0, d.MonthsPaid)
	assert.Equal(t, money.Amount(1_000_00), d.AccumulatedEquity)
}

func TestForFarm_StableSortedOrder(t *testing.T) {
	l := New()
	d1 := newVehicleDeal(t, l)
	d2 := newVehicleDeal(t, l)
	deals := l.ForFarm(1)
	require.Len(t, deals, 2)
	if d1.ID < d2.ID {
		assert.Equal(t, d1.ID, deals[0].ID)
	} else {
		assert.Equal(t, d2.ID, deals[0].ID)
	}
}

func TestGet_UnknownDeal(t *testing.T) {
	l := New()
	_, err := l.Get("nope")
	var target ErrUnknownDeal
	assert.ErrorAs(t, err, &target)
}
