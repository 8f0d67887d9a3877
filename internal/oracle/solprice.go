package oracle

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"pumpfun-engine/internal/observability"
)

// DefaultSolPriceURL is the KuCoin level-1 SOL-USDT book.
const DefaultSolPriceURL = "https://api.kucoin.com/api/v1/market/orderbook/level1?symbol=SOL-USDT"

// SolPriceFeed keeps the last good SOL/USD price.
type SolPriceFeed struct {
	client   *jsonClient
	url      string
	interval time.Duration
	logger   zerolog.Logger

	price     atomic.Uint64 // float64 bits
	updatedAt atomic.Int64  // Unix ms
}

// SolPriceFeedOptions configures a SolPriceFeed.
type SolPriceFeedOptions struct {
	URL        string        // Default: DefaultSolPriceURL
	Interval   time.Duration // Default: 1s
	HTTPClient *http.Client
	Logger     *zerolog.Logger
}

// NewSolPriceFeed creates a feed. Price is 0 until the first refresh.
func NewSolPriceFeed(opts SolPriceFeedOptions) *SolPriceFeed {
	url := opts.URL
	if url == "" {
		url = DefaultSolPriceURL
	}
	interval := opts.Interval
	if interval == 0 {
		interval = time.Second
	}
	logger := zerolog.Nop()
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	return &SolPriceFeed{
		client:   newJSONClient(opts.HTTPClient, 5, 2),
		url:      url,
		interval: interval,
		logger:   logger.With().Str("component", "sol-price").Logger(),
	}
}

type kucoinLevel1 struct {
	Code string `json:"code"`
	Data *struct {
		Price string `json:"price"`
	} `json:"data"`
}

// Refresh fetches the current price. The previous value survives a failure.
func (f *SolPriceFeed) Refresh(ctx context.Context) error {
	var resp kucoinLevel1
	if err := f.client.get(ctx, f.url, &resp); err != nil {
		return fmt.Errorf("sol price: %w", err)
	}
	if resp.Data == nil {
		return errors.New("sol price: empty response")
	}
	price, err := strconv.ParseFloat(resp.Data.Price, 64)
	if err != nil || price <= 0 {
		return fmt.Errorf("sol price: bad value %q", resp.Data.Price)
	}
	f.price.Store(math.Float64bits(price))
	f.updatedAt.Store(time.Now().UnixMilli())
	observability.SetSolPrice(price)
	return nil
}

// Run refreshes on the interval until ctx is done.
func (f *SolPriceFeed) Run(ctx context.Context) error {
	if err := f.Refresh(ctx); err != nil {
		f.logger.Warn().Err(err).Msg("initial sol price fetch failed")
	}
	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := f.Refresh(ctx); err != nil {
				f.logger.Debug().Err(err).Msg("sol price refresh failed")
			}
		}
	}
}

// Price returns the last good SOL/USD price, 0 if none yet.
func (f *SolPriceFeed) Price() float64 {
	return math.Float64frombits(f.price.Load())
}

// UpdatedAt returns the Unix ms time of the last good price.
func (f *SolPriceFeed) UpdatedAt() int64 {
	return f.updatedAt.Load()
}
