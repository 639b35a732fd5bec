package events

import (
	"bytes"
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/usedplus/core/internal/domain"
	"github.com/usedplus/core/internal/hostapi"
)

func TestCheckOwnership_RejectsMismatch(t *testing.T) {
	host := hostapi.NewFakeHost()
	host.AddFarm(1, 0)
	host.AddFarm(2, 0)
	host.BindConnection("conn-a", 1)

	err := checkOwnership(host, "conn-a", 2)
	require.NotNil(t, err)
	assert.Equal(t, Unauthorized, err.Kind)

	err = checkOwnership(host, "conn-a", 1)
	assert.Nil(t, err)
}

func TestCheckFloat_RejectsNaNAndInf(t *testing.T) {
	assert.NotNil(t, checkFloat("x", math.NaN()))
	assert.NotNil(t, checkFloat("x", math.Inf(1)))
	assert.NotNil(t, checkFloat("x", math.Inf(-1)))
	assert.Nil(t, checkFloat("x", 1.5))
}

func TestCheckPrice_BoundsAtCap(t *testing.T) {
	assert.Nil(t, checkPrice("p", MaxPrice))
	assert.NotNil(t, checkPrice("p", MaxPrice+1))
	assert.NotNil(t, checkPrice("p", -1))
}

func TestCheckInterestRate_Bounds(t *testing.T) {
	assert.Nil(t, checkInterestRate(0.50))
	assert.NotNil(t, checkInterestRate(0.51))
	assert.NotNil(t, checkInterestRate(-0.01))
}

func TestCheckTermMonths_Bounds(t *testing.T) {
	assert.Nil(t, checkTermMonths(1))
	assert.Nil(t, checkTermMonths(360))
	assert.NotNil(t, checkTermMonths(0))
	assert.NotNil(t, checkTermMonths(361))
}

func TestMaxCashBack_GrowsWithCreditScore(t *testing.T) {
	low := maxCashBack(100_000_00, 10_000_00, 600)
	high := maxCashBack(100_000_00, 10_000_00, 800)
	assert.Greater(t, high, low)
}

func TestDrainBounded_RejectsOversizedCount(t *testing.T) {
	elems := make([]int, 40)
	_, err := DrainBounded(120, elems, 50) // > 2*cap
	require.NotNil(t, err)
	assert.Equal(t, ResourceCap, err.Kind)
}

func TestDrainBounded_TruncatesToCap(t *testing.T) {
	elems := make([]int, 70)
	out, err := DrainBounded(70, elems, 50) // within [0,2*cap], over cap
	require.NotNil(t, err)
	assert.Equal(t, ResourceCap, err.Kind)
	assert.Len(t, out, 50)
}

func TestDrainBounded_AcceptsWithinCap(t *testing.T) {
	elems := make([]int, 10)
	out, err := DrainBounded(10, elems, 50)
	assert.Nil(t, err)
	assert.Len(t, out, 10)
}

func TestReadBoundedInt32Array_DrainsEvenWhenRejected(t *testing.T) {
	buf := &bytes.Buffer{}
	values := make([]int32, 80) // cap=50, so 80 is within [0,100] but > cap
	for i := range values {
		values[i] = int32(i)
	}
	require.NoError(t, EncodeInt32Array(buf, values))

	var trailer int32 = 999
	require.NoError(t, binary.Write(buf, binary.BigEndian, trailer))

	out, verr, err := ReadBoundedInt32Array(buf, 50)
	require.NoError(t, err)
	require.NotNil(t, verr)
	assert.Equal(t, ResourceCap, verr.Kind)
	assert.Len(t, out, 80)

	var remaining int32
	require.NoError(t, binary.Read(buf, binary.BigEndian, &remaining))
	assert.Equal(t, int32(999), remaining)
}

func TestReadBoundedInt32Array_OnlyDrainsUpToTwiceCap(t *testing.T) {
	buf := &bytes.Buffer{}
	values := make([]int32, 150) // cap=50, 150 > 2*cap=100
	require.NoError(t, EncodeInt32Array(buf, values))

	out, verr, err := ReadBoundedInt32Array(buf, 50)
	require.NoError(t, err)
	require.NotNil(t, verr)
	assert.Len(t, out, 100) // drained exactly 2*cap, not the full 150
}

func TestReadBoundedInt32Array_AcceptsWithinCap(t *testing.T) {
	buf := &bytes.Buffer{}
	values := []int32{1, 2, 3}
	require.NoError(t, EncodeInt32Array(buf, values))

	out, verr, err := ReadBoundedInt32Array(buf, 50)
	require.NoError(t, err)
	assert.Nil(t, verr)
	assert.Equal(t, values, out)
}

func TestReadHeader_RoundTrips(t *testing.T) {
	buf := &bytes.Buffer{}
	require.NoError(t, binary.Write(buf, binary.BigEndian, int32(42)))
	require.NoError(t, binary.Write(buf, binary.BigEndian, uint8(KindFinanceVehicle)))

	h, err := ReadHeader(buf)
	require.NoError(t, err)
	assert.Equal(t, int32(42), h.FarmID)
	assert.Equal(t, KindFinanceVehicle, h.Kind)
}

func TestValidKind_RejectsOutOfRangeTag(t *testing.T) {
	assert.True(t, ValidKind(KindFinanceVehicle))
	assert.False(t, ValidKind(RequestKind(255)))
}

func TestResponseHelpers(t *testing.T) {
	ok := Ok(domain.FarmId(1), "deal.created", "x")
	assert.True(t, ok.Success)
	assert.Equal(t, "x", ok.Arg1)

	failErr := newErr(InsufficientFunds, "error.insufficient_funds")
	fail := Fail(domain.FarmId(1), failErr)
	assert.False(t, fail.Success)
	assert.Equal(t, "error.insufficient_funds", fail.MessageKey)
}

func TestWireFuzz_RandomCountsLeaveStreamConsistent(t *testing.T) {
	for _, count := range []int32{0, 1, 50, 51, 99, 100, 101, 1000} {
		buf := &bytes.Buffer{}
		require.NoError(t, binary.Write(buf, binary.BigEndian, count))
		drained := int(count)
		if drained > 100 {
			drained = 100
		}
		if drained < 0 {
			drained = 0
		}
		for i := 0; i < drained; i++ {
			require.NoError(t, binary.Write(buf, binary.BigEndian, int32(i)))
		}
		var trailer int32 = 7
		require.NoError(t, binary.Write(buf, binary.BigEndian, trailer))

		_, _, err := ReadBoundedInt32Array(buf, 50)
		require.NoError(t, err)

		var remaining int32
		require.NoError(t, binary.Read(buf, binary.BigEndian, &remaining))
		assert.Equal(t, int32(7), remaining, "count=%d", count)
	}
}
