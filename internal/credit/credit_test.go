package credit

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScore_BaselineAndBounds(t *testing.T) {
	b := NewBureau(nil)
	score, err := b.Score(1)
	require.NoError(t, err)
	assert.Equal(t, baselineScore, score)
	assert.Equal(t, RatingFair, RatingForScore(score))
}

func TestScore_ClampsToRange(t *testing.T) {
	b := NewBureau(nil)
	for i := 0; i < 20; i++ {
		require.NoError(t, b.RecordEvent(1, AssetSeized, int64(i), "repo"))
	}
	score, err := b.Score(1)
	require.NoError(t, err)
	assert.Equal(t, minScore, score)

	for i := 0; i < 20; i++ {
		require.NoError(t, b.RecordEvent(2, PaymentEarlyPayoff, int64(i), "payoff"))
	}
	score, err = b.Score(2)
	require.NoError(t, err)
	assert.Equal(t, maxScore, score)
}

func TestRecordEvent_DeltasMatchSpec(t *testing.T) {
	b := NewBureau(nil)
	require.NoError(t, b.RecordEvent(1, PaymentOnTime, 0, ""))
	s, _ := b.Score(1)
	assert.Equal(t, baselineScore+5, s)

	require.NoError(t, b.RecordEvent(1, PaymentMissed, 1, ""))
	s, _ = b.Score(1)
	assert.Equal(t, baselineScore+5-25, s)
}

func TestCanFinance_ShortTermVehicleAlwaysAllowed(t *testing.T) {
	b := NewBureau(nil)
	for i := 0; i < 10; i++ {
		require.NoError(t, b.RecordEvent(1, AssetSeized, int64(i), ""))
	}
	res, err := b.CanFinance(1, FinanceVehicle, 36)
	require.NoError(t, err)
	assert.True(t, res.Allowed)
}

func TestCanFinance_LongTermVehicleGatesOnRating(t *testing.T) {
	b := NewBureau(nil)
	for i := 0; i < 10; i++ {
		require.NoError(t, b.RecordEvent(1, AssetSeized, int64(i), ""))
	}
	res, err := b.CanFinance(1, FinanceVehicle, 144)
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Equal(t, 700, res.MinScoreRequired)
}

func TestKnownFarmGate(t *testing.T) {
	b := NewBureau(func(id int64) bool { return id == 1 })
	_, err := b.Score(1)
	assert.NoError(t, err)
	_, err = b.Score(99)
	assert.Error(t, err)
	var target ErrInvalidFarm
	assert.ErrorAs(t, err, &target)
}

func TestExternalDealLifecycle(t *testing.T) {
	b := NewBureau(nil)
	extID, err := b.RegisterExternal("CoopMod", "deal-1", 1)
	require.NoError(t, err)

	require.NoError(t, b.ReportExternalPayment(extID, 0))
	s, _ := b.Score(1)
	assert.Equal(t, baselineScore+5, s)

	require.NoError(t, b.ReportExternalDefault(extID, 1, true))
	s, _ = b.Score(1)
	assert.Equal(t, baselineScore+5-10, s)

	require.NoError(t, b.CloseExternal(extID, 2, true))
	s, _ = b.Score(1)
	assert.Equal(t, baselineScore+5-10+10, s)

	err = b.ReportExternalPayment(extID, 3)
	assert.Error(t, err)
}

func TestRegisterExternal_UnknownFarm(t *testing.T) {
	b := NewBureau(func(id int64) bool { return false })
	_, err := b.RegisterExternal("mod", "d1", 1)
	assert.Error(t, err)
}
