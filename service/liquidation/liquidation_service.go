package liquidation

import (
	"context"
	"fmt"
	"time"

	"auralend/core"
	"auralend/internal/auralend"
	"auralend/pkg/id"
	"auralend/pkg/number"
	reservesrv "auralend/service/reserve"

	"github.com/fox-one/pkg/logger"
	"github.com/fox-one/pkg/store/db"
	foxuuid "github.com/fox-one/pkg/uuid"
)

type service struct {
	obligationStore  core.IObligationStore
	reserveStore     core.IReserveStore
	obligationSrv    core.IObligationService
	priceSrv         core.IPriceOracleService
	validator        core.IOracleValidator
	sequencesPerYear uint64
}

// New new liquidation service
func New(
	obligationStore core.IObligationStore,
	reserveStore core.IReserveStore,
	obligationSrv core.IObligationService,
	priceSrv core.IPriceOracleService,
	validator core.IOracleValidator,
	secondsPerSequence int64,
) core.ILiquidationService {
	return &service{
		obligationStore:  obligationStore,
		reserveStore:     reserveStore,
		obligationSrv:    obligationSrv,
		priceSrv:         priceSrv,
		validator:        validator,
		sequencesPerYear: auralend.SequencesPerYear(secondsPerSequence),
	}
}

// Liquidate repays part of an unhealthy borrower's debt and seizes
// discounted collateral in return. Both reserves are locked for the
// duration, and the health factor measured at entry is the basis for
// the whole operation.
func (s *service) Liquidate(ctx context.Context, tx *db.DB, obligation *core.Obligation, repayReserve, withdrawReserve *core.Reserve, repayAmount, sequence uint64, now time.Time) (*core.LiquidationResult, error) {
	log := logger.FromContext(ctx).WithField("service", "liquidation")

	if !repayReserve.Allows(core.CapabilityLiquidate) || !withdrawReserve.Allows(core.CapabilityLiquidate) {
		return nil, core.ErrOperationDisabled
	}
	if repayAmount == 0 {
		return nil, core.ErrInvalidAmount
	}

	if err := repayReserve.TryLock(); err != nil {
		return nil, err
	}
	defer func() { _ = repayReserve.Unlock() }()

	if repayReserve != withdrawReserve {
		if err := withdrawReserve.TryLock(); err != nil {
			return nil, err
		}
		defer func() { _ = withdrawReserve.Unlock() }()
	}

	if err := reservesrv.Accrue(repayReserve, sequence, s.sequencesPerYear); err != nil {
		return nil, err
	}
	if err := reservesrv.Accrue(withdrawReserve, sequence, s.sequencesPerYear); err != nil {
		return nil, err
	}

	if err := s.obligationSrv.Refresh(ctx, tx, obligation, sequence, now); err != nil {
		return nil, err
	}

	factor, err := obligation.HealthFactor()
	if err != nil {
		return nil, err
	}
	if factor.GreaterThanOrEqual(number.One()) {
		return nil, core.ErrObligationHealthy
	}

	// pin the basis so nothing inside the operation can move it
	obligation.LiquidationSnapshot = &factor
	defer func() { obligation.LiquidationSnapshot = nil }()

	maxRepay, err := obligation.MaxLiquidationAmount(repayReserve.AssetID, repayReserve.CloseFactorBps)
	if err != nil {
		return nil, err
	}
	if repayAmount > maxRepay {
		return nil, core.ErrAmountTooLarge
	}

	repayQuote, err := s.quote(ctx, repayReserve)
	if err != nil {
		return nil, err
	}
	withdrawQuote, err := s.quote(ctx, withdrawReserve)
	if err != nil {
		return nil, err
	}

	repayValue, err := s.validator.USDValue(repayAmount, repayQuote, repayReserve.Decimals, now)
	if err != nil {
		return nil, err
	}

	seizedAmount, seizedValue, err := s.seizure(repayValue, withdrawQuote, withdrawReserve, now)
	if err != nil {
		return nil, err
	}

	position, ok := obligation.FindCollateral(withdrawReserve.AssetID)
	if !ok {
		return nil, core.ErrObligationCollateralEmpty
	}
	if seizedAmount > position.Amount {
		return nil, core.ErrInsufficientCollateral
	}
	if seizedAmount == 0 {
		return nil, core.ErrAmountTooSmall
	}

	repay, err := number.FromInt(repayAmount)
	if err != nil {
		return nil, core.MathError(err)
	}

	if _, err := obligation.RepayDebt(repayReserve.AssetID, repay); err != nil {
		return nil, err
	}
	if err := obligation.RemoveCollateral(withdrawReserve.AssetID, seizedAmount); err != nil {
		return nil, err
	}

	if _, err := repayReserve.RepayBorrow(repayAmount); err != nil {
		return nil, err
	}

	// the seized collateral tokens leave the pool to the liquidator;
	// the underlying liquidity they represent leaves with them
	liquidity, err := withdrawReserve.CollateralToLiquidity(seizedAmount)
	if err != nil {
		return nil, err
	}
	if err := withdrawReserve.RemoveLiquidity(liquidity); err != nil {
		return nil, err
	}
	withdrawReserve.CollateralSupply -= seizedAmount

	borrowed, err := obligation.BorrowedValue.Sub(repayValue.Min(obligation.BorrowedValue))
	if err != nil {
		return nil, core.MathError(err)
	}
	deposited, err := obligation.DepositedValue.Sub(seizedValue.Min(obligation.DepositedValue))
	if err != nil {
		return nil, core.MathError(err)
	}
	obligation.BorrowedValue = borrowed
	obligation.DepositedValue = deposited

	// the snapshot must not outlive the operation in the stored record
	obligation.LiquidationSnapshot = nil

	if err := s.reserveStore.Update(ctx, tx, repayReserve); err != nil {
		return nil, err
	}
	if repayReserve != withdrawReserve {
		if err := s.reserveStore.Update(ctx, tx, withdrawReserve); err != nil {
			return nil, err
		}
	}
	if err := s.obligationStore.Update(ctx, tx, obligation); err != nil {
		return nil, err
	}

	log.Infof("liquidated %s: repaid %d %s, seized %d %s", obligation.UserID, repayAmount, repayReserve.Symbol, seizedAmount, withdrawReserve.Symbol)

	// deterministic per user and sequence so replays settle identically
	trace := foxuuid.Modify(id.TraceIDFrom(obligation.UserID), fmt.Sprintf("liquidation:%d", sequence))

	return &core.LiquidationResult{
		TraceID:         trace,
		RepaidAmount:    repayAmount,
		RepaidValue:     repayValue,
		SeizedAmount:    seizedAmount,
		SeizedValue:     seizedValue,
		HealthFactor:    factor,
		RepayAssetID:    repayReserve.AssetID,
		WithdrawAssetID: withdrawReserve.AssetID,
	}, nil
}

// seizure sizes the collateral taken: the repaid value marked up by the
// liquidation penalty, converted at the collateral's oracle price into
// collateral token units.
func (s *service) seizure(repayValue number.Decimal, quote *core.PriceQuote, reserve *core.Reserve, now time.Time) (uint64, number.Decimal, error) {
	bonus, err := number.One().Add(number.FromBps(reserve.LiquidationPenaltyBps))
	if err != nil {
		return 0, number.Zero(), core.MathError(err)
	}

	seizedValue, err := repayValue.Mul(bonus)
	if err != nil {
		return 0, number.Zero(), core.MathError(err)
	}

	price, err := s.validator.ToUSDDecimal(quote, now)
	if err != nil {
		return 0, number.Zero(), err
	}

	units, err := seizedValue.Div(price)
	if err != nil {
		return 0, number.Zero(), core.MathError(err)
	}

	scale, err := number.FromInt(pow10(reserve.Decimals))
	if err != nil {
		return 0, number.Zero(), core.MathError(err)
	}

	baseUnits, err := units.Mul(scale)
	if err != nil {
		return 0, number.Zero(), core.MathError(err)
	}

	amount, err := baseUnits.FloorInt()
	if err != nil {
		return 0, number.Zero(), core.MathError(err)
	}

	collateral, err := reserve.LiquidityToCollateral(amount)
	if err != nil {
		return 0, number.Zero(), err
	}

	return collateral, seizedValue, nil
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

func pow10(decimals uint8) uint64 {
	out := uint64(1)
	for i := uint8(0); i < decimals; i++ {
		out *= 10
	}
	return out
}
