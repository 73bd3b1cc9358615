package obligation

import (
	"context"
	"testing"
	"time"

	"auralend/core"
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

type fakeObligationStore struct{}

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

func testOracleConfig() *core.OracleConfig {
	return &core.OracleConfig{
		StalenessSeconds:    120,
		EmergencySeconds:    3 * 60 * 60,
		FutureGraceSeconds:  30,
		ConfidenceBps:       200,
		UsdConfidenceBps:    300,
		EmergencyConfidence: 1000,
	}
}

func testMarketConfig() *core.MarketConfig {
	return &core.MarketConfig{
		Genesis:               1700000000,
		SecondsPerSequence:    1,
		SafetyBufferBps:       500,
		MinHealthFactorBps:    11000,
		MaxStalenessSequences: 240,
	}
}

func newFixture(thresholdBps uint64, now time.Time) (core.IObligationService, *fakeReserveStore, *core.Obligation) {
	collateralReserve := &core.Reserve{
		AssetID:                 "btc",
		Symbol:                  "BTC",
		OracleFeedID:            "btc-usd",
		Decimals:                8,
		LoanToValueBps:          7500,
		LiquidationThresholdBps: thresholdBps,
		OptimalUtilizationBps:   8000,
		CloseFactorBps:          core.DefaultCloseFactorBps,
		Capabilities:            core.AllCapabilities(),
	}
	borrowReserve := &core.Reserve{
		AssetID:                 "usdt",
		Symbol:                  "USDT",
		OracleFeedID:            "usdt-usd",
		Decimals:                8,
		LoanToValueBps:          8000,
		LiquidationThresholdBps: 8500,
		OptimalUtilizationBps:   8000,
		CloseFactorBps:          core.DefaultCloseFactorBps,
		Capabilities:            core.AllCapabilities(),
		AvailableLiquidity:      10_000_000_000_000,
		TotalLiquidity:          10_000_000_000_000,
	}

	reserveStore := &fakeReserveStore{reserves: map[string]*core.Reserve{
		"btc":  collateralReserve,
		"usdt": borrowReserve,
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

	validator := oracle.NewValidator(testOracleConfig(), false)
	srv := New(&fakeObligationStore{}, reserveStore, priceSrv, validator, testMarketConfig())

	obligation := &core.Obligation{UserID: "alice"}

	return srv, reserveStore, obligation
}

func TestBorrowWithinLimit(t *testing.T) {
	ctx := context.Background()
	now := time.Unix(1700001000, 0)

	srv, reserveStore, obligation := newFixture(8000, now)
	collateral, _ := reserveStore.Find(ctx, "btc")
	borrow, _ := reserveStore.Find(ctx, "usdt")

	// 10 btc at 1000 usd = 10000 usd of collateral
	require.Nil(t, srv.DepositCollateral(ctx, nil, obligation, collateral, 1_000_000_000, 1000, now))
	assert.Equal(t, "10000", obligation.DepositedValue.String())

	// 7000 usd stays below the buffered limit of 7125 and keeps the
	// health factor at 8000/7000 > 1.1
	require.Nil(t, srv.Borrow(ctx, nil, obligation, borrow, 700_000_000_000, 1000, now))
	assert.Equal(t, "7000", obligation.BorrowedValue.String())
	assert.Equal(t, uint64(700_000_000_000), borrow.TotalBorrows)

	// the mutated reserve is accrued to the sequence and left unlocked
	assert.Equal(t, uint64(1000), borrow.LastRefreshSequence)
	require.Nil(t, borrow.TryLock())
}

func TestBorrowRejectsLockedReserve(t *testing.T) {
	ctx := context.Background()
	now := time.Unix(1700001000, 0)

	srv, reserveStore, obligation := newFixture(8000, now)
	collateral, _ := reserveStore.Find(ctx, "btc")
	borrow, _ := reserveStore.Find(ctx, "usdt")

	require.Nil(t, srv.DepositCollateral(ctx, nil, obligation, collateral, 1_000_000_000, 1000, now))
	require.Nil(t, borrow.TryLock())

	err := srv.Borrow(ctx, nil, obligation, borrow, 500_000_000_000, 1000, now)
	assert.Equal(t, core.ErrOperationInProgress, err)
	assert.Equal(t, uint64(0), borrow.TotalBorrows)
}

func TestRepayRejectsLockedReserve(t *testing.T) {
	ctx := context.Background()
	now := time.Unix(1700001000, 0)

	srv, reserveStore, obligation := newFixture(8000, now)
	collateral, _ := reserveStore.Find(ctx, "btc")
	borrow, _ := reserveStore.Find(ctx, "usdt")

	require.Nil(t, srv.DepositCollateral(ctx, nil, obligation, collateral, 1_000_000_000, 1000, now))
	require.Nil(t, srv.Borrow(ctx, nil, obligation, borrow, 500_000_000_000, 1000, now))
	require.Nil(t, borrow.TryLock())

	_, err := srv.Repay(ctx, nil, obligation, borrow, 100_000_000_000, 1000)
	assert.Equal(t, core.ErrOperationInProgress, err)
	assert.Equal(t, uint64(500_000_000_000), borrow.TotalBorrows)
}

func TestBorrowRejectsBeyondBufferedLimit(t *testing.T) {
	ctx := context.Background()
	now := time.Unix(1700001000, 0)

	srv, reserveStore, obligation := newFixture(8000, now)
	collateral, _ := reserveStore.Find(ctx, "btc")
	borrow, _ := reserveStore.Find(ctx, "usdt")

	require.Nil(t, srv.DepositCollateral(ctx, nil, obligation, collateral, 1_000_000_000, 1000, now))

	// 7200 usd is under the raw limit of 7500 but over the 5% buffer
	err := srv.Borrow(ctx, nil, obligation, borrow, 720_000_000_000, 1000, now)
	assert.Equal(t, core.ErrLoanToValueExceeded, err)
}

func TestBorrowRejectsThinHealthMargin(t *testing.T) {
	ctx := context.Background()
	now := time.Unix(1700001000, 0)

	// threshold 7600: 7000 usd passes the buffered ltv check but lands
	// at health factor 7600/7000 < 1.1
	srv, reserveStore, obligation := newFixture(7600, now)
	collateral, _ := reserveStore.Find(ctx, "btc")
	borrow, _ := reserveStore.Find(ctx, "usdt")

	require.Nil(t, srv.DepositCollateral(ctx, nil, obligation, collateral, 1_000_000_000, 1000, now))

	err := srv.Borrow(ctx, nil, obligation, borrow, 700_000_000_000, 1000, now)
	assert.Equal(t, core.ErrObligationUnhealthy, err)
}

func TestBorrowRequiresCollateral(t *testing.T) {
	ctx := context.Background()
	now := time.Unix(1700001000, 0)

	srv, reserveStore, obligation := newFixture(8000, now)
	borrow, _ := reserveStore.Find(ctx, "usdt")

	err := srv.Borrow(ctx, nil, obligation, borrow, 700_000_000_000, 1000, now)
	assert.Equal(t, core.ErrInsufficientCollateral, err)
}

func TestRepayCapsAtOutstanding(t *testing.T) {
	ctx := context.Background()
	now := time.Unix(1700001000, 0)

	srv, reserveStore, obligation := newFixture(8000, now)
	collateral, _ := reserveStore.Find(ctx, "btc")
	borrow, _ := reserveStore.Find(ctx, "usdt")

	require.Nil(t, srv.DepositCollateral(ctx, nil, obligation, collateral, 1_000_000_000, 1000, now))
	require.Nil(t, srv.Borrow(ctx, nil, obligation, borrow, 500_000_000_000, 1000, now))

	applied, err := srv.Repay(ctx, nil, obligation, borrow, 900_000_000_000, 1000)
	require.Nil(t, err)
	assert.Equal(t, uint64(500_000_000_000), applied)
	assert.Equal(t, false, obligation.HasDebts())
	assert.Equal(t, uint64(0), borrow.TotalBorrows)
}

func TestWithdrawCollateralKeepsHealth(t *testing.T) {
	ctx := context.Background()
	now := time.Unix(1700001000, 0)

	srv, reserveStore, obligation := newFixture(8000, now)
	collateral, _ := reserveStore.Find(ctx, "btc")
	borrow, _ := reserveStore.Find(ctx, "usdt")

	require.Nil(t, srv.DepositCollateral(ctx, nil, obligation, collateral, 1_000_000_000, 1000, now))
	require.Nil(t, srv.Borrow(ctx, nil, obligation, borrow, 500_000_000_000, 1000, now))

	// pulling out nine of the ten btc would leave 1000 usd backing 5000
	err := srv.WithdrawCollateral(ctx, nil, obligation, collateral, 900_000_000, 1000, now)
	require.NotNil(t, err)
}

func TestWithdrawCollateralPartial(t *testing.T) {
	ctx := context.Background()
	now := time.Unix(1700001000, 0)

	srv, reserveStore, obligation := newFixture(8000, now)
	collateral, _ := reserveStore.Find(ctx, "btc")
	borrow, _ := reserveStore.Find(ctx, "usdt")

	require.Nil(t, srv.DepositCollateral(ctx, nil, obligation, collateral, 1_000_000_000, 1000, now))
	require.Nil(t, srv.Borrow(ctx, nil, obligation, borrow, 500_000_000_000, 1000, now))

	// a modest withdrawal keeps the position comfortably collateralized
	require.Nil(t, srv.WithdrawCollateral(ctx, nil, obligation, collateral, 100_000_000, 1000, now))
	position, ok := obligation.FindCollateral("btc")
	require.Equal(t, true, ok)
	assert.Equal(t, uint64(900_000_000), position.Amount)
}
