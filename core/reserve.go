package core

import (
	"context"
	"time"

	"auralend/pkg/number"

	"github.com/fox-one/pkg/store/db"
)

const (
	// MinDepositAmount minimum deposit in base units, dust guard
	MinDepositAmount uint64 = 1000
	// MinBorrowAmount minimum borrow in base units, dust guard
	MinBorrowAmount uint64 = 1000
	// DefaultCloseFactorBps default max fraction of a debt position
	// liquidatable in one call (50%)
	DefaultCloseFactorBps uint64 = 5000
	// MaxLoanToValueBps upper bound accepted for LTV config
	MaxLoanToValueBps uint64 = 9000
	// MinLiquidationThresholdBps lower bound accepted for threshold config
	MinLiquidationThresholdBps uint64 = 1000
	// MaxLiquidationPenaltyBps upper bound accepted for the penalty config
	MaxLiquidationPenaltyBps uint64 = 5000
)

// Reserve one liquidity pool per asset. Carries the static risk
// configuration, the mutable pool state and the reentrancy lock.
type Reserve struct {
	ID           uint64 `sql:"PRIMARY_KEY;AUTO_INCREMENT" json:"id"`
	AssetID      string `sql:"size:36;unique_index:asset_idx" json:"asset_id"`
	Symbol       string `sql:"size:20" json:"symbol"`
	OracleFeedID string `sql:"size:64" json:"oracle_feed_id"`
	Decimals     uint8  `sql:"default:8" json:"decimals"`

	// configuration, changed only through an authorized admin action
	LoanToValueBps          uint64              `sql:"default:0" json:"loan_to_value_bps"`
	LiquidationThresholdBps uint64              `sql:"default:0" json:"liquidation_threshold_bps"`
	LiquidationPenaltyBps   uint64              `sql:"default:0" json:"liquidation_penalty_bps"`
	BaseRateBps             uint64              `sql:"default:0" json:"base_rate_bps"`
	MultiplierBps           uint64              `sql:"default:0" json:"multiplier_bps"`
	JumpMultiplierBps       uint64              `sql:"default:0" json:"jump_multiplier_bps"`
	OptimalUtilizationBps   uint64              `sql:"default:8000" json:"optimal_utilization_bps"`
	ProtocolFeeBps          uint64              `sql:"default:0" json:"protocol_fee_bps"`
	MaxBorrowRateBps        uint64              `sql:"default:0" json:"max_borrow_rate_bps"`
	CloseFactorBps          uint64              `sql:"default:5000" json:"close_factor_bps"`
	Capabilities            ReserveCapabilities `sql:"size:128" json:"capabilities"`

	// state
	AvailableLiquidity      uint64         `sql:"default:0" json:"available_liquidity"`
	TotalBorrows            uint64         `sql:"default:0" json:"total_borrows"`
	TotalLiquidity          uint64         `sql:"default:0" json:"total_liquidity"`
	CollateralSupply        uint64         `sql:"default:0" json:"collateral_supply"`
	BorrowRate              number.Decimal `sql:"size:64;default:0" json:"borrow_rate"`
	SupplyRate              number.Decimal `sql:"size:64;default:0" json:"supply_rate"`
	UtilizationRate         number.Decimal `sql:"size:64;default:0" json:"utilization_rate"`
	AccumulatedProtocolFees uint64         `sql:"default:0" json:"accumulated_protocol_fees"`
	LastRefreshSequence     uint64         `sql:"default:0" json:"last_refresh_sequence"`
	Locked                  bool           `sql:"default:false" json:"locked"`

	Version   int64     `sql:"default:0" json:"version"`
	CreatedAt time.Time `sql:"default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time `sql:"default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// Validate rejects configurations that cannot produce a safe,
// non-decreasing rate curve or a sane liquidation band.
func (r *Reserve) Validate() error {
	if r.LoanToValueBps > MaxLoanToValueBps {
		return ErrInvalidReserveConfig
	}
	if r.LiquidationThresholdBps <= r.LoanToValueBps {
		return ErrInvalidReserveConfig
	}
	if r.LiquidationThresholdBps < MinLiquidationThresholdBps || r.LiquidationThresholdBps > 10_000 {
		return ErrInvalidReserveConfig
	}
	if r.LiquidationPenaltyBps > MaxLiquidationPenaltyBps {
		return ErrInvalidReserveConfig
	}
	if r.OptimalUtilizationBps == 0 || r.OptimalUtilizationBps > 10_000 {
		return ErrInvalidReserveConfig
	}
	if r.ProtocolFeeBps >= 10_000 {
		return ErrInvalidReserveConfig
	}
	if r.CloseFactorBps == 0 || r.CloseFactorBps > 10_000 {
		return ErrInvalidReserveConfig
	}
	if r.MaxBorrowRateBps > 0 && r.MaxBorrowRateBps < r.BaseRateBps {
		return ErrInvalidReserveConfig
	}

	return nil
}

// Allows reports whether the capability is currently enabled.
func (r *Reserve) Allows(capability ReserveCapability) bool {
	return r.Capabilities.Contains(capability)
}

// TryLock transitions Unlocked -> Locked. Fails with OperationInProgress
// when already locked; the caller must abort the whole operation rather
// than wait.
func (r *Reserve) TryLock() error {
	if r.Locked {
		return ErrOperationInProgress
	}

	r.Locked = true
	return nil
}

// Unlock transitions Locked -> Unlocked.
func (r *Reserve) Unlock() error {
	if !r.Locked {
		return ErrInvalidUnlock
	}

	r.Locked = false
	return nil
}

// ForceUnlock clears a stuck lock. Admin recovery only, bypasses the
// normal invariant.
func (r *Reserve) ForceUnlock() {
	r.Locked = false
}

// ExchangeRate is total_liquidity / collateral_supply, 1:1 before the
// first deposit mints any collateral tokens.
func (r *Reserve) ExchangeRate() (number.Decimal, error) {
	if r.CollateralSupply == 0 {
		return number.One(), nil
	}

	liquidity, err := number.FromInt(r.TotalLiquidity)
	if err != nil {
		return number.Zero(), err
	}

	supply, err := number.FromInt(r.CollateralSupply)
	if err != nil {
		return number.Zero(), err
	}

	return liquidity.Div(supply)
}

// LiquidityToCollateral converts a liquidity amount to the collateral
// tokens it mints at the current exchange rate.
func (r *Reserve) LiquidityToCollateral(amount uint64) (uint64, error) {
	if r.CollateralSupply == 0 {
		return amount, nil
	}

	rate, err := r.ExchangeRate()
	if err != nil {
		return 0, err
	}

	liquidity, err := number.FromInt(amount)
	if err != nil {
		return 0, err
	}

	out, err := liquidity.Div(rate)
	if err != nil {
		return 0, err
	}

	return out.FloorInt()
}

// CollateralToLiquidity converts collateral tokens back to the
// underlying liquidity amount.
func (r *Reserve) CollateralToLiquidity(amount uint64) (uint64, error) {
	rate, err := r.ExchangeRate()
	if err != nil {
		return 0, err
	}

	return rate.MulInt(amount)
}

// AddLiquidity credits a deposit or repayment into the pool.
func (r *Reserve) AddLiquidity(amount uint64) error {
	available, err := addUint64(r.AvailableLiquidity, amount)
	if err != nil {
		return err
	}

	total, err := addUint64(r.TotalLiquidity, amount)
	if err != nil {
		return err
	}

	r.AvailableLiquidity = available
	r.TotalLiquidity = total
	return nil
}

// RemoveLiquidity debits a withdrawal from the pool.
func (r *Reserve) RemoveLiquidity(amount uint64) error {
	if r.AvailableLiquidity < amount {
		return ErrInsufficientLiquidity
	}

	r.AvailableLiquidity -= amount

	total, err := subUint64(r.TotalLiquidity, amount)
	if err != nil {
		return err
	}
	r.TotalLiquidity = total

	return nil
}

// AddBorrow moves liquidity from available into outstanding borrows.
func (r *Reserve) AddBorrow(amount uint64) error {
	if r.AvailableLiquidity < amount {
		return ErrInsufficientLiquidity
	}

	borrows, err := addUint64(r.TotalBorrows, amount)
	if err != nil {
		return err
	}

	r.AvailableLiquidity -= amount
	r.TotalBorrows = borrows
	return nil
}

// RepayBorrow returns liquidity to the pool, capping the repayment at the
// outstanding principal. Returns the amount actually applied.
func (r *Reserve) RepayBorrow(amount uint64) (uint64, error) {
	actual := amount
	if actual > r.TotalBorrows {
		actual = r.TotalBorrows
	}

	available, err := addUint64(r.AvailableLiquidity, actual)
	if err != nil {
		return 0, err
	}

	r.AvailableLiquidity = available
	r.TotalBorrows -= actual
	return actual, nil
}

// ClaimProtocolFees pays accumulated fees out of available liquidity.
// Fees are never part of the supplier exchange-rate basis, so total
// liquidity is untouched.
func (r *Reserve) ClaimProtocolFees(amount uint64) error {
	if amount > r.AccumulatedProtocolFees {
		return ErrAmountTooLarge
	}
	if r.AvailableLiquidity < amount {
		return ErrInsufficientLiquidity
	}

	r.AccumulatedProtocolFees -= amount
	r.AvailableLiquidity -= amount

	return nil
}

func addUint64(a, b uint64) (uint64, error) {
	sum := a + b
	if sum < a {
		return 0, ErrMathOverflow
	}
	return sum, nil
}

func subUint64(a, b uint64) (uint64, error) {
	if b > a {
		return 0, ErrMathUnderflow
	}
	return a - b, nil
}

// IReserveStore reserve store interface
type IReserveStore interface {
	Save(ctx context.Context, tx *db.DB, reserve *Reserve) error
	Find(ctx context.Context, assetID string) (*Reserve, error)
	All(ctx context.Context) ([]*Reserve, error)
	AllAsMap(ctx context.Context) (map[string]*Reserve, error)
	Update(ctx context.Context, tx *db.DB, reserve *Reserve) error
}

// IReserveService reserve service interface
type IReserveService interface {
	Refresh(ctx context.Context, tx *db.DB, reserve *Reserve, sequence uint64) error
	Deposit(ctx context.Context, tx *db.DB, reserve *Reserve, amount, sequence uint64) (uint64, error)
	Redeem(ctx context.Context, tx *db.DB, reserve *Reserve, collateralAmount, sequence uint64) (uint64, error)
	ClaimFees(ctx context.Context, tx *db.DB, reserve *Reserve, amount uint64) error
}
