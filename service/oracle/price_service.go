package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"auralend/core"
	"auralend/pkg/resthttp"

	"github.com/bluele/gcache"
	"github.com/fox-one/pkg/logger"
)

// PriceService pulls ticker quotes from the oracle endpoint and serves
// validated quotes out of the price store, with a short-lived cache in
// front of it.
type PriceService struct {
	config     *core.OracleConfig
	priceStore core.IPriceStore
	cache      gcache.Cache
}

// New new oracle price service
func New(config *core.OracleConfig, priceStore core.IPriceStore) core.IPriceOracleService {
	return &PriceService{
		config:     config,
		priceStore: priceStore,
		cache:      gcache.New(256).LRU().Build(),
	}
}

// PullTickers pull all price tickers
func (s *PriceService) PullTickers(ctx context.Context) ([]*core.PriceTicker, error) {
	url := fmt.Sprintf("%s/api/tickers?ts=%d", s.config.Endpoint, time.Now().UTC().Unix())
	resp, err := resthttp.Request(ctx).Get(url)
	if err != nil {
		return nil, err
	}

	var tickers []*core.PriceTicker
	if err := resthttp.ParseResponse(resp, &tickers); err != nil {
		return nil, err
	}

	return tickers, nil
}

// Quote latest persisted quote for a feed
func (s *PriceService) Quote(ctx context.Context, feedID string) (*core.PriceQuote, error) {
	if cached, err := s.cache.Get(feedID); err == nil {
		return cached.(*core.PriceQuote), nil
	}

	price, err := s.priceStore.Find(ctx, feedID)
	if err != nil {
		logger.FromContext(ctx).WithError(err).Errorln("find price failed:", feedID)
		return nil, err
	}
	if price.ID == 0 {
		return nil, core.ErrPriceInvalid
	}

	var quote core.PriceQuote
	if err := json.Unmarshal(price.Content, &quote); err != nil {
		return nil, err
	}
	if quote.FeedID != feedID {
		return nil, core.ErrFeedMismatch
	}

	_ = s.cache.SetWithExpire(feedID, &quote, time.Duration(s.config.CacheSeconds)*time.Second)

	return &quote, nil
}
