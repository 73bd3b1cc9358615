package reserve

import (
	"context"

	"auralend/core"
	"auralend/internal/auralend"
	"auralend/pkg/number"

	"github.com/fox-one/pkg/logger"
	"github.com/fox-one/pkg/store/db"
)

type service struct {
	reserveStore     core.IReserveStore
	sequencesPerYear uint64
}

// New new reserve service
func New(reserveStore core.IReserveStore, secondsPerSequence int64) core.IReserveService {
	return &service{
		reserveStore:     reserveStore,
		sequencesPerYear: auralend.SequencesPerYear(secondsPerSequence),
	}
}

// Accrue advances the reserve's interest state up to the given sequence.
// Idempotent: refreshing at or behind the last refresh is a no-op.
func Accrue(reserve *core.Reserve, sequence, sequencesPerYear uint64) error {
	if sequence <= reserve.LastRefreshSequence {
		return nil
	}

	elapsed := sequence - reserve.LastRefreshSequence

	utilization, err := auralend.UtilizationRate(reserve.TotalBorrows, reserve.AvailableLiquidity)
	if err != nil {
		return core.MathError(err)
	}

	borrowRate, err := auralend.BorrowRate(utilization, reserve.BaseRateBps, reserve.MultiplierBps, reserve.JumpMultiplierBps, reserve.OptimalUtilizationBps)
	if err != nil {
		return core.MathError(err)
	}

	if reserve.MaxBorrowRateBps > 0 {
		borrowRate = borrowRate.Min(number.FromBps(reserve.MaxBorrowRateBps))
	}

	supplyRate, err := auralend.SupplyRate(borrowRate, utilization, reserve.ProtocolFeeBps)
	if err != nil {
		return core.MathError(err)
	}

	timeFraction, err := auralend.TimeFraction(elapsed, sequencesPerYear)
	if err != nil {
		return core.MathError(err)
	}

	if reserve.TotalBorrows > 0 {
		borrows, err := number.FromInt(reserve.TotalBorrows)
		if err != nil {
			return core.MathError(err)
		}

		compounded, err := auralend.CompoundInterest(borrows, borrowRate, auralend.CompoundsPerYear, timeFraction)
		if err != nil {
			return core.MathError(err)
		}

		newBorrows, err := compounded.FloorInt()
		if err != nil {
			return core.MathError(err)
		}

		interest := newBorrows - reserve.TotalBorrows

		// the protocol's cut of the interest never reaches suppliers
		fee, err := number.FromBps(reserve.ProtocolFeeBps).MulInt(interest)
		if err != nil {
			return core.MathError(err)
		}

		fees, err := addUint64(reserve.AccumulatedProtocolFees, fee)
		if err != nil {
			return err
		}

		reserve.TotalBorrows = newBorrows
		reserve.AccumulatedProtocolFees = fees
	}

	// the supply side compounds on its own basis at the supply rate
	if reserve.TotalLiquidity > 0 && !supplyRate.IsZero() {
		liquidity, err := number.FromInt(reserve.TotalLiquidity)
		if err != nil {
			return core.MathError(err)
		}

		compounded, err := auralend.CompoundInterest(liquidity, supplyRate, auralend.CompoundsPerYear, timeFraction)
		if err != nil {
			return core.MathError(err)
		}

		newLiquidity, err := compounded.FloorInt()
		if err != nil {
			return core.MathError(err)
		}
		reserve.TotalLiquidity = newLiquidity
	}

	reserve.BorrowRate = borrowRate
	reserve.SupplyRate = supplyRate
	reserve.UtilizationRate = utilization
	reserve.LastRefreshSequence = sequence

	return nil
}

func (s *service) Refresh(ctx context.Context, tx *db.DB, reserve *core.Reserve, sequence uint64) error {
	log := logger.FromContext(ctx).WithField("service", "reserve")

	if err := Accrue(reserve, sequence, s.sequencesPerYear); err != nil {
		log.WithError(err).Errorln("accrue failed:", reserve.AssetID)
		return err
	}

	return s.reserveStore.Update(ctx, tx, reserve)
}

func (s *service) Deposit(ctx context.Context, tx *db.DB, reserve *core.Reserve, amount, sequence uint64) (uint64, error) {
	if amount < core.MinDepositAmount {
		return 0, core.ErrAmountTooSmall
	}

	if !reserve.Allows(core.CapabilityDeposit) {
		return 0, core.ErrOperationDisabled
	}

	return s.withLock(ctx, tx, reserve, func() (uint64, error) {
		if err := Accrue(reserve, sequence, s.sequencesPerYear); err != nil {
			return 0, err
		}

		// mint at the pre-deposit exchange rate
		minted, err := reserve.LiquidityToCollateral(amount)
		if err != nil {
			return 0, err
		}
		if minted == 0 {
			return 0, core.ErrAmountTooSmall
		}

		if err := reserve.AddLiquidity(amount); err != nil {
			return 0, err
		}

		supply, err := addUint64(reserve.CollateralSupply, minted)
		if err != nil {
			return 0, err
		}
		reserve.CollateralSupply = supply

		return minted, nil
	})
}

func (s *service) Redeem(ctx context.Context, tx *db.DB, reserve *core.Reserve, collateralAmount, sequence uint64) (uint64, error) {
	if collateralAmount == 0 {
		return 0, core.ErrInvalidAmount
	}

	if !reserve.Allows(core.CapabilityWithdraw) {
		return 0, core.ErrOperationDisabled
	}

	return s.withLock(ctx, tx, reserve, func() (uint64, error) {
		if err := Accrue(reserve, sequence, s.sequencesPerYear); err != nil {
			return 0, err
		}

		if collateralAmount > reserve.CollateralSupply {
			return 0, core.ErrInsufficientCollateral
		}

		amount, err := reserve.CollateralToLiquidity(collateralAmount)
		if err != nil {
			return 0, err
		}

		if err := reserve.RemoveLiquidity(amount); err != nil {
			return 0, err
		}
		reserve.CollateralSupply -= collateralAmount

		return amount, nil
	})
}

func (s *service) ClaimFees(ctx context.Context, tx *db.DB, reserve *core.Reserve, amount uint64) error {
	_, err := s.withLock(ctx, tx, reserve, func() (uint64, error) {
		if err := reserve.ClaimProtocolFees(amount); err != nil {
			return 0, err
		}

		return amount, nil
	})

	return err
}

// withLock runs fn under the reserve's reentrancy lock and persists the
// reserve afterwards. The lock is released even when fn fails.
func (s *service) withLock(ctx context.Context, tx *db.DB, reserve *core.Reserve, fn func() (uint64, error)) (uint64, error) {
	if err := reserve.TryLock(); err != nil {
		return 0, err
	}

	out, err := fn()
	if unlockErr := reserve.Unlock(); unlockErr != nil && err == nil {
		err = unlockErr
	}

	if err != nil {
		return 0, err
	}

	return out, s.reserveStore.Update(ctx, tx, reserve)
}

func addUint64(a, b uint64) (uint64, error) {
	sum := a + b
	if sum < a {
		return 0, core.ErrMathOverflow
	}
	return sum, nil
}
