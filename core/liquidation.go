package core

import (
	"context"
	"time"

	"auralend/pkg/number"

	"github.com/fox-one/pkg/store/db"
)

// LiquidationResult what a completed liquidation settled
type LiquidationResult struct {
	TraceID         string         `json:"trace_id"`
	RepaidAmount    uint64         `json:"repaid_amount"`
	RepaidValue     number.Decimal `json:"repaid_value"`
	SeizedAmount    uint64         `json:"seized_amount"`
	SeizedValue     number.Decimal `json:"seized_value"`
	HealthFactor    number.Decimal `json:"health_factor"`
	RepayAssetID    string         `json:"repay_asset_id"`
	WithdrawAssetID string         `json:"withdraw_asset_id"`
}

// ILiquidationService liquidation service interface
type ILiquidationService interface {
	Liquidate(ctx context.Context, tx *db.DB, obligation *Obligation, repayReserve, withdrawReserve *Reserve, repayAmount, sequence uint64, now time.Time) (*LiquidationResult, error)
}
