package core

import (
	"context"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"auralend/pkg/number"

	"github.com/fox-one/pkg/store/db"
)

// MaxObligationPositions bound on collateral and debt entries per borrower
const MaxObligationPositions = 8

// CollateralPosition one collateral deposit per reserve, in collateral
// token units, with the reserve's risk weights snapshotted at the last
// refresh.
type CollateralPosition struct {
	ReserveAssetID          string         `json:"reserve_asset_id"`
	Amount                  uint64         `json:"amount"`
	ValueUSD                number.Decimal `json:"value_usd"`
	LoanToValueBps          uint64         `json:"loan_to_value_bps"`
	LiquidationThresholdBps uint64         `json:"liquidation_threshold_bps"`
}

// DebtPosition one debt per reserve. The amount is a Decimal so sub-unit
// interest accrual precision is never truncated between refreshes.
type DebtPosition struct {
	ReserveAssetID string         `json:"reserve_asset_id"`
	Amount         number.Decimal `json:"amount"`
	ValueUSD       number.Decimal `json:"value_usd"`
}

// CollateralPositions json column
type CollateralPositions []*CollateralPosition

// DebtPositions json column
type DebtPositions []*DebtPosition

// Obligation a borrower's ledger: all collateral deposits and debts,
// cached USD aggregates, and the liquidation health-factor snapshot.
type Obligation struct {
	ID       uint64 `sql:"PRIMARY_KEY;AUTO_INCREMENT" json:"id"`
	UserID   string `sql:"size:36;unique_index:user_idx" json:"user_id"`
	MarketID string `sql:"size:36" json:"market_id"`

	Collaterals CollateralPositions `sql:"type:varchar(4096)" json:"collaterals"`
	Debts       DebtPositions       `sql:"type:varchar(4096)" json:"debts"`

	DepositedValue      number.Decimal  `sql:"size:64;default:0" json:"deposited_value"`
	BorrowedValue       number.Decimal  `sql:"size:64;default:0" json:"borrowed_value"`
	LastRefreshSequence uint64          `sql:"default:0" json:"last_refresh_sequence"`
	LiquidationSnapshot *number.Decimal `sql:"size:64" json:"liquidation_snapshot,omitempty"`

	Version   int64     `sql:"default:0" json:"version"`
	CreatedAt time.Time `sql:"default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time `sql:"default:CURRENT_TIMESTAMP" json:"updated_at"`

	// reserve id -> slot, rebuilt on load and after removals
	collateralIndex map[string]int
	debtIndex       map[string]int
}

func (o *Obligation) reindex() {
	o.collateralIndex = make(map[string]int, len(o.Collaterals))
	for i, c := range o.Collaterals {
		o.collateralIndex[c.ReserveAssetID] = i
	}

	o.debtIndex = make(map[string]int, len(o.Debts))
	for i, d := range o.Debts {
		o.debtIndex[d.ReserveAssetID] = i
	}
}

func (o *Obligation) ensureIndex() {
	if o.collateralIndex == nil || o.debtIndex == nil {
		o.reindex()
	}
}

// FindCollateral looks up the collateral position for a reserve.
func (o *Obligation) FindCollateral(reserveAssetID string) (*CollateralPosition, bool) {
	o.ensureIndex()
	i, ok := o.collateralIndex[reserveAssetID]
	if !ok {
		return nil, false
	}

	return o.Collaterals[i], true
}

// FindDebt looks up the debt position for a reserve.
func (o *Obligation) FindDebt(reserveAssetID string) (*DebtPosition, bool) {
	o.ensureIndex()
	i, ok := o.debtIndex[reserveAssetID]
	if !ok {
		return nil, false
	}

	return o.Debts[i], true
}

// AddCollateral merges into the existing position for the reserve or
// appends a new one, bounded by MaxObligationPositions.
func (o *Obligation) AddCollateral(position *CollateralPosition) error {
	o.ensureIndex()

	if existing, ok := o.FindCollateral(position.ReserveAssetID); ok {
		amount, err := addUint64(existing.Amount, position.Amount)
		if err != nil {
			return err
		}
		existing.Amount = amount
		existing.LoanToValueBps = position.LoanToValueBps
		existing.LiquidationThresholdBps = position.LiquidationThresholdBps
		return nil
	}

	if len(o.Collaterals) >= MaxObligationPositions {
		return ErrDepositsMaxed
	}

	o.Collaterals = append(o.Collaterals, position)
	o.collateralIndex[position.ReserveAssetID] = len(o.Collaterals) - 1
	return nil
}

// RemoveCollateral reduces the position, deleting it once it hits zero.
func (o *Obligation) RemoveCollateral(reserveAssetID string, amount uint64) error {
	position, ok := o.FindCollateral(reserveAssetID)
	if !ok {
		return ErrPositionNotFound
	}

	if position.Amount < amount {
		return ErrInsufficientCollateral
	}

	position.Amount -= amount
	if position.Amount == 0 {
		out := o.Collaterals[:0]
		for _, c := range o.Collaterals {
			if c.ReserveAssetID != reserveAssetID {
				out = append(out, c)
			}
		}
		o.Collaterals = out
		o.reindex()
	}

	return nil
}

// AddDebt merges into the existing debt position or appends a new one.
func (o *Obligation) AddDebt(position *DebtPosition) error {
	o.ensureIndex()

	if existing, ok := o.FindDebt(position.ReserveAssetID); ok {
		amount, err := existing.Amount.Add(position.Amount)
		if err != nil {
			return MathError(err)
		}
		existing.Amount = amount
		return nil
	}

	if len(o.Debts) >= MaxObligationPositions {
		return ErrBorrowsMaxed
	}

	o.Debts = append(o.Debts, position)
	o.debtIndex[position.ReserveAssetID] = len(o.Debts) - 1
	return nil
}

// RepayDebt reduces the debt position, capping at the outstanding amount,
// and deletes the position once it is fully repaid. Returns the amount
// actually applied.
func (o *Obligation) RepayDebt(reserveAssetID string, amount number.Decimal) (number.Decimal, error) {
	position, ok := o.FindDebt(reserveAssetID)
	if !ok {
		return number.Zero(), ErrPositionNotFound
	}

	actual := amount.Min(position.Amount)
	remaining, err := position.Amount.Sub(actual)
	if err != nil {
		return number.Zero(), MathError(err)
	}

	position.Amount = remaining
	if remaining.IsZero() {
		out := o.Debts[:0]
		for _, d := range o.Debts {
			if d.ReserveAssetID != reserveAssetID {
				out = append(out, d)
			}
		}
		o.Debts = out
		o.reindex()
	}

	return actual, nil
}

// HasCollateral reports whether any collateral is deposited.
func (o *Obligation) HasCollateral() bool {
	return len(o.Collaterals) > 0
}

// HasDebts reports whether any debt is outstanding.
func (o *Obligation) HasDebts() bool {
	return len(o.Debts) > 0
}

// MaxBorrowValue sums collateral value weighted by loan-to-value.
func (o *Obligation) MaxBorrowValue() (number.Decimal, error) {
	out := number.Zero()
	for _, c := range o.Collaterals {
		weighted, err := c.ValueUSD.Mul(number.FromBps(c.LoanToValueBps))
		if err != nil {
			return number.Zero(), MathError(err)
		}

		out, err = out.Add(weighted)
		if err != nil {
			return number.Zero(), MathError(err)
		}
	}

	return out, nil
}

// LiquidationThresholdValue sums collateral value weighted by the
// liquidation threshold.
func (o *Obligation) LiquidationThresholdValue() (number.Decimal, error) {
	out := number.Zero()
	for _, c := range o.Collaterals {
		weighted, err := c.ValueUSD.Mul(number.FromBps(c.LiquidationThresholdBps))
		if err != nil {
			return number.Zero(), MathError(err)
		}

		out, err = out.Add(weighted)
		if err != nil {
			return number.Zero(), MathError(err)
		}
	}

	return out, nil
}

// HealthFactor is threshold-weighted collateral value over borrowed
// value. Debt-free obligations report the maximal sentinel: they can
// never be liquidated.
func (o *Obligation) HealthFactor() (number.Decimal, error) {
	if o.BorrowedValue.IsZero() {
		return number.MaxSafeValue(), nil
	}

	threshold, err := o.LiquidationThresholdValue()
	if err != nil {
		return number.Zero(), err
	}

	out, err := threshold.Div(o.BorrowedValue)
	if err != nil {
		return number.Zero(), MathError(err)
	}

	return out, nil
}

// IsHealthy reports whether the health factor is at or above 1.
func (o *Obligation) IsHealthy() (bool, error) {
	factor, err := o.HealthFactor()
	if err != nil {
		return false, err
	}

	return factor.GreaterThanOrEqual(number.One()), nil
}

// MaxLiquidationAmount caps a single liquidation at the close-factor
// fraction of the debt position's outstanding principal.
func (o *Obligation) MaxLiquidationAmount(reserveAssetID string, closeFactorBps uint64) (uint64, error) {
	debt, ok := o.FindDebt(reserveAssetID)
	if !ok {
		return 0, ErrPositionNotFound
	}

	if closeFactorBps == 0 {
		closeFactorBps = DefaultCloseFactorBps
	}

	capped, err := debt.Amount.Mul(number.FromBps(closeFactorBps))
	if err != nil {
		return 0, MathError(err)
	}

	out, err := capped.FloorInt()
	if err != nil {
		return 0, MathError(err)
	}

	return out, nil
}

// IsStale reports whether the obligation refresh is too old to base a
// borrow or liquidation decision on.
func (o *Obligation) IsStale(sequence, maxStalenessSequences uint64) bool {
	return sequence > o.LastRefreshSequence+maxStalenessSequences
}

// HealthFactorForLiquidation prefers the snapshot captured at the start
// of a liquidation so a concurrent refresh cannot alter the basis.
func (o *Obligation) HealthFactorForLiquidation() (number.Decimal, error) {
	if o.LiquidationSnapshot != nil {
		return *o.LiquidationSnapshot, nil
	}

	return o.HealthFactor()
}

// Value implements driver.Valuer
func (c CollateralPositions) Value() (driver.Value, error) {
	data, err := json.Marshal(c)
	return string(data), err
}

// Scan implements sql.Scanner
func (c *CollateralPositions) Scan(value interface{}) error {
	return scanJSON(value, c)
}

// Value implements driver.Valuer
func (d DebtPositions) Value() (driver.Value, error) {
	data, err := json.Marshal(d)
	return string(data), err
}

// Scan implements sql.Scanner
func (d *DebtPositions) Scan(value interface{}) error {
	return scanJSON(value, d)
}

func scanJSON(value, dest interface{}) error {
	switch v := value.(type) {
	case string:
		if v == "" {
			return nil
		}
		return json.Unmarshal([]byte(v), dest)
	case []byte:
		if len(v) == 0 {
			return nil
		}
		return json.Unmarshal(v, dest)
	case nil:
		return nil
	default:
		return fmt.Errorf("core: cannot scan %T", value)
	}
}

// IObligationStore obligation store interface
type IObligationStore interface {
	Save(ctx context.Context, tx *db.DB, obligation *Obligation) error
	Find(ctx context.Context, userID string) (*Obligation, error)
	All(ctx context.Context) ([]*Obligation, error)
	Update(ctx context.Context, tx *db.DB, obligation *Obligation) error
}

// IObligationService obligation service interface
type IObligationService interface {
	Refresh(ctx context.Context, tx *db.DB, obligation *Obligation, sequence uint64, now time.Time) error
	DepositCollateral(ctx context.Context, tx *db.DB, obligation *Obligation, reserve *Reserve, amount, sequence uint64, now time.Time) error
	WithdrawCollateral(ctx context.Context, tx *db.DB, obligation *Obligation, reserve *Reserve, amount, sequence uint64, now time.Time) error
	Borrow(ctx context.Context, tx *db.DB, obligation *Obligation, reserve *Reserve, amount, sequence uint64, now time.Time) error
	Repay(ctx context.Context, tx *db.DB, obligation *Obligation, reserve *Reserve, amount, sequence uint64) (uint64, error)
}
