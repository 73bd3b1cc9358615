package views

import (
	"auralend/core"

	"github.com/shopspring/decimal"
)

// Reserve reserve view
type Reserve struct {
	core.Reserve
	ExchangeRate decimal.Decimal `json:"exchange_rate"`
	BorrowAPY    decimal.Decimal `json:"borrow_apy"`
	SupplyAPY    decimal.Decimal `json:"supply_apy"`
	Utilization  decimal.Decimal `json:"utilization"`
}
