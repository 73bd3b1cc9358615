package views

import (
	"auralend/core"

	"github.com/shopspring/decimal"
)

// Obligation obligation view
type Obligation struct {
	core.Obligation
	HealthFactor   decimal.Decimal `json:"health_factor"`
	MaxBorrowValue decimal.Decimal `json:"max_borrow_value"`
	Liquidatable   bool            `json:"liquidatable"`
}
