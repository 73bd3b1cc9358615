package pricesync

import (
	"context"
	"encoding/json"
	"time"

	"auralend/core"
	"auralend/pkg/number"
	"auralend/worker"

	"github.com/fox-one/pkg/logger"
	"github.com/fox-one/pkg/property"
	"github.com/fox-one/pkg/store/db"
)

const checkpointKey = "pricesync_checkpoint"

// quoteExponent tickers arrive as decimals, quotes are stored as
// mantissa * 10^-8
const quoteExponent = -8

// Worker pulls price tickers from the oracle endpoint and persists them
// as quotes, refusing implausible jumps between observations.
type Worker struct {
	worker.TickWorker
	database      *db.DB
	priceStore    core.IPriceStore
	priceSrv      core.IPriceOracleService
	validator     core.IOracleValidator
	propertyStore property.Store
	emergency     bool
}

// New new price sync worker
func New(database *db.DB, priceStore core.IPriceStore, priceSrv core.IPriceOracleService, validator core.IOracleValidator, propertyStore property.Store, emergency bool) *Worker {
	return &Worker{
		TickWorker:    worker.TickWorker{Delay: 5 * time.Second},
		database:      database,
		priceStore:    priceStore,
		priceSrv:      priceSrv,
		validator:     validator,
		propertyStore: propertyStore,
		emergency:     emergency,
	}
}

// Run run worker
func (w *Worker) Run(ctx context.Context) error {
	return w.StartTick(ctx, func(ctx context.Context) error {
		return w.onWork(ctx)
	})
}

func (w *Worker) onWork(ctx context.Context) error {
	log := logger.FromContext(ctx).WithField("worker", "pricesync")

	tickers, err := w.priceSrv.PullTickers(ctx)
	if err != nil {
		log.WithError(err).Errorln("pull tickers failed")
		return err
	}

	now := time.Now()
	for _, ticker := range tickers {
		quote := &core.PriceQuote{
			FeedID:      ticker.FeedID,
			Price:       ticker.Price.Shift(-int32(quoteExponent)).IntPart(),
			Confidence:  uint64(ticker.Confidence.Shift(-int32(quoteExponent)).IntPart()),
			Exponent:    quoteExponent,
			PublishTime: ticker.PublishTime,
		}

		if err := w.validate(quote, now); err != nil {
			log.WithError(err).Errorln("reject quote:", ticker.Symbol)
			continue
		}

		next, err := w.validator.ToUSDDecimal(quote, now)
		if err != nil {
			log.WithError(err).Errorln("reject quote:", ticker.Symbol)
			continue
		}

		if previous, err := w.previousPrice(ctx, quote.FeedID, now); err == nil {
			if err := w.validator.ValidateMovement(previous, next); err != nil {
				log.Errorln("price moved too far, refused:", ticker.Symbol)
				continue
			}
		}

		content, err := json.Marshal(quote)
		if err != nil {
			return err
		}

		price := &core.Price{
			FeedID:   quote.FeedID,
			AssetID:  ticker.AssetID,
			Content:  content,
			PassedAt: now,
		}

		if err := w.database.Tx(func(tx *db.DB) error {
			return w.priceStore.Save(ctx, tx, price)
		}); err != nil {
			log.WithError(err).Errorln("save price failed:", ticker.Symbol)
			return err
		}
	}

	if err := w.propertyStore.Save(ctx, checkpointKey, now.Unix()); err != nil {
		log.WithError(err).Errorln("save checkpoint failed")
	}

	return nil
}

// emergency mode trades freshness for availability, accepting older
// quotes with a wider confidence budget
func (w *Worker) validate(quote *core.PriceQuote, now time.Time) error {
	if w.emergency {
		return w.validator.ValidateEmergency(quote, now)
	}
	return w.validator.Validate(quote, now)
}

func (w *Worker) previousPrice(ctx context.Context, feedID string, now time.Time) (number.Decimal, error) {
	record, err := w.priceStore.Find(ctx, feedID)
	if err != nil || record.ID == 0 {
		return number.Zero(), core.ErrPriceInvalid
	}

	var quote core.PriceQuote
	if err := json.Unmarshal(record.Content, &quote); err != nil {
		return number.Zero(), err
	}

	return w.validator.ToUSDDecimal(&quote, now)
}
