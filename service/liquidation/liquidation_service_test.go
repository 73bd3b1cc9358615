package liquidation

import (
	"context"
	"testing"
	"time"

	"auralend/core"
	"auralend/pkg/number"
	obligationsrv "auralend/service/obligation"
	"auralend/service/oracle"

	"github.com/bmizerany/assert"
	"github.com/fox-one/pkg/store/db"
	"github.com/stretchr/testify/require"
)

type fakeReserveStore struct {
	reserves map[string]*core.Reserve
}

func (s *fakeReserveStore) Save(ctx context.Context, tx *db.DB, reserve *core.Reserve) error {
	s.reserves[reserve.AssetID] = reserve
	return nil
}

func (s *fakeReserveStore) Find(ctx context.Context, assetID string) (*core.Reserve, error) {
	reserve, ok := s.reserves[assetID]
	if !ok {
		return nil, core.ErrReserveNotFound
	}
	return reserve, nil
}

func (s *fakeReserveStore) All(ctx context.Context) ([]*core.Reserve, error) {
	out := make([]*core.Reserve, 0, len(s.reserves))
	for _, reserve := range s.reserves {
		out = append(out, reserve)
	}
	return out, nil
}

func (s *fakeReserveStore) AllAsMap(ctx context.Context) (map[string]*core.Reserve, error) {
	return s.reserves, nil
}

func (s *fakeReserveStore) Update(ctx context.Context, tx *db.DB, reserve *core.Reserve) error {
	return nil
}

type fakeObligationStore struct {
	updates           int
	persistedSnapshot *number.Decimal
}

func (s *fakeObligationStore) Save(ctx context.Context, tx *db.DB, obligation *core.Obligation) error {
	return nil
}

func (s *fakeObligationStore) Find(ctx context.Context, userID string) (*core.Obligation, error) {
	return nil, core.ErrObligationNotFound
}

func (s *fakeObligationStore) All(ctx context.Context) ([]*core.Obligation, error) {
	return nil, nil
}

func (s *fakeObligationStore) Update(ctx context.Context, tx *db.DB, obligation *core.Obligation) error {
	s.updates++
	s.persistedSnapshot = obligation.LiquidationSnapshot
	return nil
}

type fakePriceService struct {
	quotes map[string]*core.PriceQuote
}

func (s *fakePriceService) PullTickers(ctx context.Context) ([]*core.PriceTicker, error) {
	return nil, nil
}

func (s *fakePriceService) Quote(ctx context.Context, feedID string) (*core.PriceQuote, error) {
	quote, ok := s.quotes[feedID]
	if !ok {
		return nil, core.ErrPriceInvalid
	}
	return quote, nil
}

type fixture struct {
	srv             core.ILiquidationService
	obligation      *core.Obligation
	obligationStore *fakeObligationStore
	btc             *core.Reserve
	usdt            *core.Reserve
}

func newFixture(t *testing.T, now time.Time) *fixture {
	btc := &core.Reserve{
		AssetID:                 "btc",
		Symbol:                  "BTC",
		OracleFeedID:            "btc-usd",
		Decimals:                8,
		LoanToValueBps:          7500,
		LiquidationThresholdBps: 8000,
		LiquidationPenaltyBps:   500,
		OptimalUtilizationBps:   8000,
		CloseFactorBps:          core.DefaultCloseFactorBps,
		Capabilities:            core.AllCapabilities(),
		AvailableLiquidity:      1_000_000_000,
		TotalLiquidity:          1_000_000_000,
		CollateralSupply:        1_000_000_000,
	}
	usdt := &core.Reserve{
		AssetID:                 "usdt",
		Symbol:                  "USDT",
		OracleFeedID:            "usdt-usd",
		Decimals:                8,
		LoanToValueBps:          8000,
		LiquidationThresholdBps: 8500,
		OptimalUtilizationBps:   8000,
		CloseFactorBps:          core.DefaultCloseFactorBps,
		Capabilities:            core.AllCapabilities(),
		TotalBorrows:            900_000_000_000,
		TotalLiquidity:          900_000_000_000,
	}

	reserveStore := &fakeReserveStore{reserves: map[string]*core.Reserve{
		"btc":  btc,
		"usdt": usdt,
	}}

	priceSrv := &fakePriceService{quotes: map[string]*core.PriceQuote{
		"btc-usd": {
			FeedID:      "btc-usd",
			Price:       100_000_000_000, // 1000 usd
			Confidence:  100_000_000,
			Exponent:    -8,
			PublishTime: now.Unix(),
		},
		"usdt-usd": {
			FeedID:      "usdt-usd",
			Price:       100_000_000, // 1 usd
			Confidence:  100_000,
			Exponent:    -8,
			PublishTime: now.Unix(),
		},
	}}

	oracleCfg := &core.OracleConfig{
		StalenessSeconds:    120,
		EmergencySeconds:    3 * 60 * 60,
		FutureGraceSeconds:  30,
		ConfidenceBps:       200,
		UsdConfidenceBps:    300,
		EmergencyConfidence: 1000,
	}
	marketCfg := &core.MarketConfig{
		Genesis:               1700000000,
		SecondsPerSequence:    1,
		SafetyBufferBps:       500,
		MinHealthFactorBps:    11000,
		MaxStalenessSequences: 240,
	}

	validator := oracle.NewValidator(oracleCfg, false)
	obligationStore := &fakeObligationStore{}
	obSrv := obligationsrv.New(obligationStore, reserveStore, priceSrv, validator, marketCfg)
	srv := New(obligationStore, reserveStore, obSrv, priceSrv, validator, marketCfg.SecondsPerSequence)

	obligation := &core.Obligation{UserID: "alice"}
	require.Nil(t, obligation.AddCollateral(&core.CollateralPosition{
		ReserveAssetID:          "btc",
		Amount:                  1_000_000_000, // 10 btc
		LoanToValueBps:          7500,
		LiquidationThresholdBps: 8000,
	}))
	require.Nil(t, obligation.AddDebt(&core.DebtPosition{
		ReserveAssetID: "usdt",
		Amount:         number.Must(number.FromInt(900_000_000_000)), // 9000 usd
	}))

	return &fixture{srv: srv, obligation: obligation, obligationStore: obligationStore, btc: btc, usdt: usdt}
}

func TestLiquidateSeizesDiscountedCollateral(t *testing.T) {
	ctx := context.Background()
	now := time.Unix(1700001000, 0)
	f := newFixture(t, now)

	// repay 4000 of 9000, within the 50% close factor
	result, err := f.srv.Liquidate(ctx, nil, f.obligation, f.usdt, f.btc, 400_000_000_000, 1000, now)
	require.Nil(t, err)

	assert.Equal(t, uint64(400_000_000_000), result.RepaidAmount)
	assert.Equal(t, "4000", result.RepaidValue.String())

	// 4000 * 1.05 penalty markup at 1000 usd per btc
	assert.Equal(t, uint64(420_000_000), result.SeizedAmount)
	assert.Equal(t, "4200", result.SeizedValue.String())
	assert.Equal(t, "0.888888888888888888", result.HealthFactor.String())

	position, ok := f.obligation.FindCollateral("btc")
	require.Equal(t, true, ok)
	assert.Equal(t, uint64(580_000_000), position.Amount)

	debt, ok := f.obligation.FindDebt("usdt")
	require.Equal(t, true, ok)
	assert.Equal(t, "500000000000", debt.Amount.String())

	assert.Equal(t, uint64(500_000_000_000), f.usdt.TotalBorrows)
	assert.Equal(t, uint64(580_000_000), f.btc.CollateralSupply)

	// the stored record must not carry the snapshot past the operation
	require.Equal(t, true, f.obligationStore.updates > 0)
	require.Equal(t, (*number.Decimal)(nil), f.obligationStore.persistedSnapshot)
	require.Equal(t, (*number.Decimal)(nil), f.obligation.LiquidationSnapshot)

	// locks are released on the way out
	require.Nil(t, f.btc.TryLock())
	require.Nil(t, f.usdt.TryLock())
}

func TestLiquidateRejectsInsufficientCollateral(t *testing.T) {
	ctx := context.Background()
	now := time.Unix(1700001000, 0)
	f := newFixture(t, now)

	// only 2 btc deposited, the 4200 usd seizure cannot be covered
	f.obligation.Collaterals[0].Amount = 200_000_000

	_, err := f.srv.Liquidate(ctx, nil, f.obligation, f.usdt, f.btc, 400_000_000_000, 1000, now)
	assert.Equal(t, core.ErrInsufficientCollateral, err)

	// nothing moved and the snapshot is cleared on the abort path
	debt, ok := f.obligation.FindDebt("usdt")
	require.Equal(t, true, ok)
	assert.Equal(t, "900000000000", debt.Amount.String())
	assert.Equal(t, uint64(900_000_000_000), f.usdt.TotalBorrows)
	require.Equal(t, (*number.Decimal)(nil), f.obligation.LiquidationSnapshot)
	require.Nil(t, f.btc.TryLock())
}

func TestLiquidateRejectsHealthyObligation(t *testing.T) {
	ctx := context.Background()
	now := time.Unix(1700001000, 0)
	f := newFixture(t, now)

	// shrink the debt, the obligation is comfortably collateralized
	f.obligation.Debts[0].Amount = number.Must(number.FromInt(100_000_000_000))

	_, err := f.srv.Liquidate(ctx, nil, f.obligation, f.usdt, f.btc, 40_000_000_000, 1000, now)
	assert.Equal(t, core.ErrObligationHealthy, err)

	// the failed attempt must not leave a lock behind
	require.Nil(t, f.btc.TryLock())
}

func TestLiquidateEnforcesCloseFactor(t *testing.T) {
	ctx := context.Background()
	now := time.Unix(1700001000, 0)
	f := newFixture(t, now)

	// 5000 of 9000 exceeds the 50% cap
	_, err := f.srv.Liquidate(ctx, nil, f.obligation, f.usdt, f.btc, 500_000_000_000, 1000, now)
	assert.Equal(t, core.ErrAmountTooLarge, err)
}

func TestLiquidateRejectsLockedReserve(t *testing.T) {
	ctx := context.Background()
	now := time.Unix(1700001000, 0)
	f := newFixture(t, now)

	require.Nil(t, f.btc.TryLock())

	_, err := f.srv.Liquidate(ctx, nil, f.obligation, f.usdt, f.btc, 400_000_000_000, 1000, now)
	assert.Equal(t, core.ErrOperationInProgress, err)

	// the repay reserve lock taken first must have been released
	require.Nil(t, f.usdt.TryLock())
}
