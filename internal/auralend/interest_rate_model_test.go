package auralend

import (
	"testing"

	"auralend/pkg/number"

	"github.com/bmizerany/assert"
	"github.com/stretchr/testify/require"
)

func TestUtilizationRate(t *testing.T) {
	empty, err := UtilizationRate(0, 0)
	require.Nil(t, err)
	assert.Equal(t, true, empty.IsZero())

	half, err := UtilizationRate(500, 500)
	require.Nil(t, err)
	assert.Equal(t, "0.5", half.String())

	full, err := UtilizationRate(1000, 0)
	require.Nil(t, err)
	assert.Equal(t, "1", full.String())

	_, err = UtilizationRate(^uint64(0), 1)
	assert.Equal(t, number.ErrOverflow, err)
}

func TestBorrowRateBelowKink(t *testing.T) {
	// base 2% + 0.5 * 10% = 7%
	utilization := number.FromBps(5000)
	rate, err := BorrowRate(utilization, 200, 1000, 30000, 8000)
	require.Nil(t, err)
	assert.Equal(t, "0.07", rate.String())
}

func TestBorrowRateAboveKink(t *testing.T) {
	// base 2% + 0.8 * 10% + 0.1 * 300% = 40%
	utilization := number.FromBps(9000)
	rate, err := BorrowRate(utilization, 200, 1000, 30000, 8000)
	require.Nil(t, err)
	assert.Equal(t, "0.4", rate.String())
}

func TestBorrowRateContinuousAtKink(t *testing.T) {
	optimal := number.FromBps(8000)

	below, err := BorrowRate(optimal, 200, 1000, 30000, 8000)
	require.Nil(t, err)

	justAbove, err := BorrowRate(number.FromBps(8001), 200, 1000, 30000, 8000)
	require.Nil(t, err)

	require.True(t, justAbove.GreaterThan(below))

	// the jump term contributes nothing at the kink itself
	gap, err := justAbove.Sub(below)
	require.Nil(t, err)
	require.True(t, gap.LessThan(number.FromBps(100)))
}

func TestBorrowRateMonotonic(t *testing.T) {
	previous := number.Zero()
	for bps := uint64(0); bps <= 10000; bps += 500 {
		rate, err := BorrowRate(number.FromBps(bps), 200, 1000, 30000, 8000)
		require.Nil(t, err)
		require.True(t, rate.GreaterThanOrEqual(previous), "rate must not decrease at %d bps", bps)
		previous = rate
	}
}

func TestSupplyRate(t *testing.T) {
	// 10% borrow rate, 50% utilization, 20% fee -> 4%
	borrowRate := number.FromBps(1000)
	utilization := number.FromBps(5000)

	rate, err := SupplyRate(borrowRate, utilization, 2000)
	require.Nil(t, err)
	assert.Equal(t, "0.04", rate.String())
}

func TestTimeFraction(t *testing.T) {
	fraction, err := TimeFraction(SequencesPerYear(1)/2, SequencesPerYear(1))
	require.Nil(t, err)
	assert.Equal(t, "0.5", fraction.String())

	_, err = TimeFraction(1, 0)
	assert.Equal(t, number.ErrDivisionByZero, err)
}
