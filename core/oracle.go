package core

import (
	"context"
	"time"

	"auralend/pkg/number"

	"github.com/fox-one/pkg/store/db"
	"github.com/jmoiron/sqlx/types"
	"github.com/shopspring/decimal"
)

// PriceQuote a single oracle observation for one feed, as published:
// integer mantissa plus base-10 exponent, with a confidence interval in
// the same scale.
type PriceQuote struct {
	FeedID      string `json:"feed_id"`
	Price       int64  `json:"price"`
	Confidence  uint64 `json:"confidence"`
	Exponent    int32  `json:"exponent"`
	PublishTime int64  `json:"publish_time"`
}

// Time publish time as time.Time
func (q *PriceQuote) Time() time.Time {
	return time.Unix(q.PublishTime, 0)
}

// PriceTicker wire format returned by the price endpoint
type PriceTicker struct {
	FeedID      string          `json:"feed_id"`
	AssetID     string          `json:"asset_id"`
	Symbol      string          `json:"symbol"`
	Price       decimal.Decimal `json:"price"`
	Confidence  decimal.Decimal `json:"confidence"`
	PublishTime int64           `json:"publish_time"`
}

// Price persisted oracle observation per feed
type Price struct {
	ID        uint64         `sql:"PRIMARY_KEY;AUTO_INCREMENT" json:"id"`
	FeedID    string         `sql:"size:64;unique_index:feed_idx" json:"feed_id"`
	AssetID   string         `sql:"size:36" json:"asset_id"`
	Content   types.JSONText `sql:"type:varchar(1024)" json:"content"`
	PassedAt  time.Time      `sql:"default:CURRENT_TIMESTAMP" json:"passed_at"`
	UpdatedAt time.Time      `sql:"default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// IPriceStore price store interface
type IPriceStore interface {
	Save(ctx context.Context, tx *db.DB, price *Price) error
	Find(ctx context.Context, feedID string) (*Price, error)
	All(ctx context.Context) ([]*Price, error)
}

// IPriceOracleService price oracle service interface
type IPriceOracleService interface {
	PullTickers(ctx context.Context) ([]*PriceTicker, error)
	Quote(ctx context.Context, feedID string) (*PriceQuote, error)
}

// IOracleValidator validates quotes and converts amounts to USD value
type IOracleValidator interface {
	Validate(quote *PriceQuote, now time.Time) error
	ValidateEmergency(quote *PriceQuote, now time.Time) error
	ValidateMovement(previous, next number.Decimal) error
	ToUSDDecimal(quote *PriceQuote, now time.Time) (number.Decimal, error)
	USDValue(amount uint64, quote *PriceQuote, decimals uint8, now time.Time) (number.Decimal, error)
	USDValueDecimal(amount number.Decimal, quote *PriceQuote, decimals uint8, now time.Time) (number.Decimal, error)
}
