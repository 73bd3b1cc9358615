package obligation

import (
	"context"
	"time"

	"auralend/core"
	"auralend/internal/auralend"
	"auralend/pkg/number"
	reservesrv "auralend/service/reserve"

	"github.com/fox-one/pkg/logger"
	"github.com/fox-one/pkg/store/db"
)

type service struct {
	obligationStore  core.IObligationStore
	reserveStore     core.IReserveStore
	priceSrv         core.IPriceOracleService
	validator        core.IOracleValidator
	market           *core.MarketConfig
	sequencesPerYear uint64
}

// New new obligation service
func New(
	obligationStore core.IObligationStore,
	reserveStore core.IReserveStore,
	priceSrv core.IPriceOracleService,
	validator core.IOracleValidator,
	market *core.MarketConfig,
) core.IObligationService {
	return &service{
		obligationStore:  obligationStore,
		reserveStore:     reserveStore,
		priceSrv:         priceSrv,
		validator:        validator,
		market:           market,
		sequencesPerYear: auralend.SequencesPerYear(market.SecondsPerSequence),
	}
}

// Refresh re-prices every position with a validated quote, re-snapshots
// the reserves' risk weights, accrues interest on the debts and rebuilds
// the USD aggregates. Any stale liquidation snapshot is discarded.
func (s *service) Refresh(ctx context.Context, tx *db.DB, obligation *core.Obligation, sequence uint64, now time.Time) error {
	log := logger.FromContext(ctx).WithField("service", "obligation")

	reserves, err := s.reserveStore.AllAsMap(ctx)
	if err != nil {
		return err
	}

	deposited := number.Zero()
	for _, position := range obligation.Collaterals {
		reserve, ok := reserves[position.ReserveAssetID]
		if !ok {
			return core.ErrReserveNotFound
		}

		if err := reservesrv.Accrue(reserve, sequence, s.sequencesPerYear); err != nil {
			return err
		}

		quote, err := s.quote(ctx, reserve)
		if err != nil {
			log.WithError(err).Errorln("quote failed:", reserve.AssetID)
			return err
		}

		// positions hold collateral tokens, price the underlying
		liquidity, err := reserve.CollateralToLiquidity(position.Amount)
		if err != nil {
			return err
		}

		value, err := s.validator.USDValue(liquidity, quote, reserve.Decimals, now)
		if err != nil {
			return err
		}

		position.ValueUSD = value
		position.LoanToValueBps = reserve.LoanToValueBps
		position.LiquidationThresholdBps = reserve.LiquidationThresholdBps

		deposited, err = deposited.Add(value)
		if err != nil {
			return core.MathError(err)
		}
	}

	elapsed := uint64(0)
	if sequence > obligation.LastRefreshSequence {
		elapsed = sequence - obligation.LastRefreshSequence
	}

	borrowed := number.Zero()
	for _, position := range obligation.Debts {
		reserve, ok := reserves[position.ReserveAssetID]
		if !ok {
			return core.ErrReserveNotFound
		}

		if err := reservesrv.Accrue(reserve, sequence, s.sequencesPerYear); err != nil {
			return err
		}

		if elapsed > 0 && !position.Amount.IsZero() {
			timeFraction, err := auralend.TimeFraction(elapsed, s.sequencesPerYear)
			if err != nil {
				return core.MathError(err)
			}

			amount, err := auralend.CompoundInterest(position.Amount, reserve.BorrowRate, auralend.CompoundsPerYear, timeFraction)
			if err != nil {
				return core.MathError(err)
			}
			position.Amount = amount
		}

		quote, err := s.quote(ctx, reserve)
		if err != nil {
			log.WithError(err).Errorln("quote failed:", reserve.AssetID)
			return err
		}

		value, err := s.validator.USDValueDecimal(position.Amount, quote, reserve.Decimals, now)
		if err != nil {
			return err
		}

		position.ValueUSD = value
		borrowed, err = borrowed.Add(value)
		if err != nil {
			return core.MathError(err)
		}
	}

	obligation.DepositedValue = deposited
	obligation.BorrowedValue = borrowed
	obligation.LastRefreshSequence = sequence
	obligation.LiquidationSnapshot = nil

	return s.obligationStore.Update(ctx, tx, obligation)
}

func (s *service) DepositCollateral(ctx context.Context, tx *db.DB, obligation *core.Obligation, reserve *core.Reserve, amount, sequence uint64, now time.Time) error {
	if !reserve.Allows(core.CapabilityCollateral) {
		return core.ErrCollateralDisabled
	}
	if amount == 0 {
		return core.ErrInvalidAmount
	}

	if err := obligation.AddCollateral(&core.CollateralPosition{
		ReserveAssetID:          reserve.AssetID,
		Amount:                  amount,
		ValueUSD:                number.Zero(),
		LoanToValueBps:          reserve.LoanToValueBps,
		LiquidationThresholdBps: reserve.LiquidationThresholdBps,
	}); err != nil {
		return err
	}

	return s.Refresh(ctx, tx, obligation, sequence, now)
}

// WithdrawCollateral releases collateral tokens back to the borrower.
// The obligation must stay healthy after the withdrawal.
func (s *service) WithdrawCollateral(ctx context.Context, tx *db.DB, obligation *core.Obligation, reserve *core.Reserve, amount, sequence uint64, now time.Time) error {
	if err := s.Refresh(ctx, tx, obligation, sequence, now); err != nil {
		return err
	}

	if err := obligation.RemoveCollateral(reserve.AssetID, amount); err != nil {
		return err
	}

	if err := s.Refresh(ctx, tx, obligation, sequence, now); err != nil {
		return err
	}

	if obligation.HasDebts() {
		maxBorrow, err := obligation.MaxBorrowValue()
		if err != nil {
			return err
		}

		if obligation.BorrowedValue.GreaterThan(maxBorrow) {
			return core.ErrLoanToValueExceeded
		}

		healthy, err := obligation.IsHealthy()
		if err != nil {
			return err
		}
		if !healthy {
			return core.ErrObligationUnhealthy
		}
	}

	return s.obligationStore.Update(ctx, tx, obligation)
}

// Borrow admits a new borrow only on a fresh valuation, within the
// loan-to-value limit less a safety buffer, and only when the resulting
// health factor keeps a margin above the liquidation line.
func (s *service) Borrow(ctx context.Context, tx *db.DB, obligation *core.Obligation, reserve *core.Reserve, amount, sequence uint64, now time.Time) error {
	if !reserve.Allows(core.CapabilityBorrow) {
		return core.ErrOperationDisabled
	}
	if amount < core.MinBorrowAmount {
		return core.ErrAmountTooSmall
	}
	if !obligation.HasCollateral() {
		return core.ErrInsufficientCollateral
	}

	if err := s.Refresh(ctx, tx, obligation, sequence, now); err != nil {
		return err
	}

	quote, err := s.quote(ctx, reserve)
	if err != nil {
		return err
	}

	value, err := s.validator.USDValue(amount, quote, reserve.Decimals, now)
	if err != nil {
		return err
	}

	newBorrowed, err := obligation.BorrowedValue.Add(value)
	if err != nil {
		return core.MathError(err)
	}

	maxBorrow, err := obligation.MaxBorrowValue()
	if err != nil {
		return err
	}

	// keep a buffer below the limit so small price moves do not tip a
	// fresh borrow straight underwater
	buffered, err := maxBorrow.Mul(number.FromBps(10_000 - s.market.SafetyBufferBps))
	if err != nil {
		return core.MathError(err)
	}

	if newBorrowed.GreaterThan(buffered) {
		return core.ErrLoanToValueExceeded
	}

	borrowAmount, err := number.FromInt(amount)
	if err != nil {
		return core.MathError(err)
	}

	if err := obligation.AddDebt(&core.DebtPosition{
		ReserveAssetID: reserve.AssetID,
		Amount:         borrowAmount,
		ValueUSD:       value,
	}); err != nil {
		return err
	}
	obligation.BorrowedValue = newBorrowed

	threshold, err := obligation.LiquidationThresholdValue()
	if err != nil {
		return err
	}

	factor, err := threshold.Div(newBorrowed)
	if err != nil {
		return core.MathError(err)
	}

	if factor.LessThan(number.FromBps(s.market.MinHealthFactorBps)) {
		return core.ErrObligationUnhealthy
	}

	if err := s.mutateReserve(ctx, tx, reserve, sequence, func() error {
		return reserve.AddBorrow(amount)
	}); err != nil {
		return err
	}

	return s.obligationStore.Update(ctx, tx, obligation)
}

// Repay pays a debt position down, capping at the outstanding amount.
// Returns the amount actually applied in base units.
func (s *service) Repay(ctx context.Context, tx *db.DB, obligation *core.Obligation, reserve *core.Reserve, amount, sequence uint64) (uint64, error) {
	if !reserve.Allows(core.CapabilityRepay) {
		return 0, core.ErrOperationDisabled
	}
	if amount == 0 {
		return 0, core.ErrInvalidAmount
	}

	repay, err := number.FromInt(amount)
	if err != nil {
		return 0, core.MathError(err)
	}

	actual, err := obligation.RepayDebt(reserve.AssetID, repay)
	if err != nil {
		return 0, err
	}

	applied, err := actual.FloorInt()
	if err != nil {
		return 0, core.MathError(err)
	}

	if err := s.mutateReserve(ctx, tx, reserve, sequence, func() error {
		_, err := reserve.RepayBorrow(applied)
		return err
	}); err != nil {
		return 0, err
	}

	return applied, s.obligationStore.Update(ctx, tx, obligation)
}

// mutateReserve accrues the reserve up to the sequence and applies fn under
// its reentrancy lock, releasing the lock on every exit path before the
// record is persisted.
func (s *service) mutateReserve(ctx context.Context, tx *db.DB, reserve *core.Reserve, sequence uint64, fn func() error) error {
	if err := reserve.TryLock(); err != nil {
		return err
	}

	err := reservesrv.Accrue(reserve, sequence, s.sequencesPerYear)
	if err == nil {
		err = fn()
	}

	if unlockErr := reserve.Unlock(); unlockErr != nil && err == nil {
		err = unlockErr
	}
	if err != nil {
		return err
	}

	return s.reserveStore.Update(ctx, tx, reserve)
}

func (s *service) quote(ctx context.Context, reserve *core.Reserve) (*core.PriceQuote, error) {
	quote, err := s.priceSrv.Quote(ctx, reserve.OracleFeedID)
	if err != nil {
		return nil, err
	}
	if quote.FeedID != reserve.OracleFeedID {
		return nil, core.ErrFeedMismatch
	}

	return quote, nil
}
