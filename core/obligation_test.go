package core

import (
	"testing"

	"auralend/pkg/number"

	"github.com/bmizerany/assert"
	"github.com/stretchr/testify/require"
)

func usd(v uint64) number.Decimal {
	return number.Must(number.FromInt(v))
}

func TestObligationCollateralMergeAndRemove(t *testing.T) {
	ob := &Obligation{UserID: "alice"}

	require.Nil(t, ob.AddCollateral(&CollateralPosition{
		ReserveAssetID:          "btc",
		Amount:                  100,
		LoanToValueBps:          7500,
		LiquidationThresholdBps: 8000,
	}))
	require.Nil(t, ob.AddCollateral(&CollateralPosition{
		ReserveAssetID: "btc",
		Amount:         50,
	}))

	assert.Equal(t, 1, len(ob.Collaterals))
	position, ok := ob.FindCollateral("btc")
	require.Equal(t, true, ok)
	assert.Equal(t, uint64(150), position.Amount)

	assert.Equal(t, ErrInsufficientCollateral, ob.RemoveCollateral("btc", 200))
	require.Nil(t, ob.RemoveCollateral("btc", 150))

	_, ok = ob.FindCollateral("btc")
	assert.Equal(t, false, ok)
	assert.Equal(t, false, ob.HasCollateral())

	assert.Equal(t, ErrPositionNotFound, ob.RemoveCollateral("btc", 1))
}

func TestObligationPositionLimit(t *testing.T) {
	ob := &Obligation{UserID: "bob"}

	for i := 0; i < MaxObligationPositions; i++ {
		require.Nil(t, ob.AddCollateral(&CollateralPosition{
			ReserveAssetID: string(rune('a' + i)),
			Amount:         1,
		}))
	}

	err := ob.AddCollateral(&CollateralPosition{ReserveAssetID: "overflow", Amount: 1})
	assert.Equal(t, ErrDepositsMaxed, err)

	for i := 0; i < MaxObligationPositions; i++ {
		require.Nil(t, ob.AddDebt(&DebtPosition{
			ReserveAssetID: string(rune('a' + i)),
			Amount:         usd(1),
		}))
	}

	err = ob.AddDebt(&DebtPosition{ReserveAssetID: "overflow", Amount: usd(1)})
	assert.Equal(t, ErrBorrowsMaxed, err)
}

func TestObligationRepayDebtCaps(t *testing.T) {
	ob := &Obligation{UserID: "carol"}
	require.Nil(t, ob.AddDebt(&DebtPosition{ReserveAssetID: "usdt", Amount: usd(100)}))

	actual, err := ob.RepayDebt("usdt", usd(250))
	require.Nil(t, err)
	assert.Equal(t, "100", actual.String())
	assert.Equal(t, false, ob.HasDebts())
}

func TestObligationHealthFactor(t *testing.T) {
	ob := &Obligation{UserID: "dave"}

	// no debt means no liquidation exposure at all
	factor, err := ob.HealthFactor()
	require.Nil(t, err)
	assert.Equal(t, 0, factor.Cmp(number.MaxSafeValue()))

	require.Nil(t, ob.AddCollateral(&CollateralPosition{
		ReserveAssetID:          "btc",
		Amount:                  100,
		ValueUSD:                usd(10_000),
		LoanToValueBps:          7500,
		LiquidationThresholdBps: 8000,
	}))
	require.Nil(t, ob.AddDebt(&DebtPosition{
		ReserveAssetID: "usdt",
		Amount:         usd(9_000),
		ValueUSD:       usd(9_000),
	}))
	ob.BorrowedValue = usd(9_000)

	// 10000 * 0.80 / 9000
	factor, err = ob.HealthFactor()
	require.Nil(t, err)
	assert.Equal(t, "0.888888888888888888", factor.String())

	healthy, err := ob.IsHealthy()
	require.Nil(t, err)
	assert.Equal(t, false, healthy)

	ob.BorrowedValue = usd(4_000)
	healthy, err = ob.IsHealthy()
	require.Nil(t, err)
	assert.Equal(t, true, healthy)
}

func TestObligationBorrowLimits(t *testing.T) {
	ob := &Obligation{UserID: "erin"}
	require.Nil(t, ob.AddCollateral(&CollateralPosition{
		ReserveAssetID:          "btc",
		Amount:                  100,
		ValueUSD:                usd(10_000),
		LoanToValueBps:          7500,
		LiquidationThresholdBps: 8000,
	}))

	maxBorrow, err := ob.MaxBorrowValue()
	require.Nil(t, err)
	assert.Equal(t, "7500", maxBorrow.String())

	threshold, err := ob.LiquidationThresholdValue()
	require.Nil(t, err)
	assert.Equal(t, "8000", threshold.String())
}

func TestObligationMaxLiquidationAmount(t *testing.T) {
	ob := &Obligation{UserID: "frank"}
	require.Nil(t, ob.AddDebt(&DebtPosition{ReserveAssetID: "usdt", Amount: usd(1_000)}))

	capped, err := ob.MaxLiquidationAmount("usdt", 5000)
	require.Nil(t, err)
	assert.Equal(t, uint64(500), capped)

	// zero falls back to the default close factor
	capped, err = ob.MaxLiquidationAmount("usdt", 0)
	require.Nil(t, err)
	assert.Equal(t, uint64(500), capped)

	_, err = ob.MaxLiquidationAmount("missing", 5000)
	assert.Equal(t, ErrPositionNotFound, err)
}

func TestObligationStale(t *testing.T) {
	ob := &Obligation{UserID: "grace", LastRefreshSequence: 100}

	assert.Equal(t, false, ob.IsStale(100, 10))
	assert.Equal(t, false, ob.IsStale(110, 10))
	assert.Equal(t, true, ob.IsStale(111, 10))
}

func TestObligationLiquidationSnapshot(t *testing.T) {
	ob := &Obligation{UserID: "heidi"}
	require.Nil(t, ob.AddCollateral(&CollateralPosition{
		ReserveAssetID:          "btc",
		ValueUSD:                usd(10_000),
		LiquidationThresholdBps: 8000,
	}))
	ob.BorrowedValue = usd(9_000)

	snapshot := number.FromBps(9500)
	ob.LiquidationSnapshot = &snapshot

	factor, err := ob.HealthFactorForLiquidation()
	require.Nil(t, err)
	assert.Equal(t, "0.95", factor.String())

	ob.LiquidationSnapshot = nil
	factor, err = ob.HealthFactorForLiquidation()
	require.Nil(t, err)
	assert.Equal(t, "0.888888888888888888", factor.String())
}
