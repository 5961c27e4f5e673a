package marketdata

import (
	"context"

	"github.com/rxtech-lab/algoscript/internal/types"
	"github.com/rxtech-lab/algoscript/pkg/errors"
)

// Feed supplies candles for a symbol. A synthetic generator and a live
// exchange feed satisfy the same contract.
type Feed interface {
	// History returns up to n candles ending at the most recent one, oldest first.
	History(ctx context.Context, symbol string, n int) ([]types.Candle, error)
	// Next returns the candle that follows prev. A zero prev asks for a first candle.
	Next(ctx context.Context, symbol string, prev types.Candle) (types.Candle, error)
}

type Provider string

const (
	ProviderSynthetic Provider = "synthetic"
	ProviderBinance   Provider = "binance"
	ProviderPolygon   Provider = "polygon"
)

// FeedConfig selects and configures a feed implementation.
type FeedConfig struct {
	Provider       Provider
	Interval       Interval
	InitialPrice   float64
	Seed           int64
	PolygonAPIKey  string
	BinanceBaseURL string
}

// NewFeed builds the feed named by config.Provider.
func NewFeed(config FeedConfig) (Feed, error) {
	interval := config.Interval
	if interval == "" {
		interval = IntervalFourHours
	}

	switch config.Provider {
	case ProviderSynthetic, "":
		synthetic := DefaultSyntheticConfig()
		synthetic.Interval = interval.Duration()
		synthetic.Seed = config.Seed

		if config.InitialPrice > 0 {
			synthetic.InitialPrice = config.InitialPrice
		}

		return NewSyntheticFeed(synthetic), nil
	case ProviderBinance:
		return NewBinanceFeed(interval, config.BinanceBaseURL)
	case ProviderPolygon:
		return NewPolygonFeed(config.PolygonAPIKey, interval)
	}

	return nil, errors.Newf(errors.ErrCodeInvalidProvider, "unsupported market data provider: %s", config.Provider)
}
