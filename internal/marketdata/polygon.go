package marketdata

import (
	"context"
	"time"

	polygon "github.com/polygon-io/client-go/rest"
	"github.com/polygon-io/client-go/rest/iter"
	"github.com/polygon-io/client-go/rest/models"
	"github.com/rxtech-lab/algoscript/internal/types"
	"github.com/rxtech-lab/algoscript/pkg/errors"
)

// AggsLister is the subset of the polygon REST client used for aggregates.
type AggsLister interface {
	ListAggs(ctx context.Context, params *models.ListAggsParams, options ...models.RequestOption) *iter.Iter[models.Agg]
}

// aggIterator is satisfied by *iter.Iter[models.Agg].
type aggIterator interface {
	Next() bool
	Item() models.Agg
	Err() error
}

// PolygonFeed reads aggregate bars from polygon.io.
type PolygonFeed struct {
	client   AggsLister
	interval Interval
	now      func() time.Time
}

func NewPolygonFeed(apiKey string, interval Interval) (*PolygonFeed, error) {
	if apiKey == "" {
		return nil, errors.New(errors.ErrCodeMissingParameter, "polygon api key is required")
	}

	if interval.Multiplier() == 0 {
		return nil, errors.Newf(errors.ErrCodeInvalidInterval, "unsupported interval for polygon: %s", interval)
	}

	return &PolygonFeed{
		client:   polygon.New(apiKey),
		interval: interval,
		now:      time.Now,
	}, nil
}

// History implements Feed.
func (f *PolygonFeed) History(ctx context.Context, symbol string, n int) ([]types.Candle, error) {
	end := f.now()
	// weekends and holidays leave gaps, so look back further than n bars
	start := end.Add(-time.Duration(n*3) * f.interval.Duration())

	candles, err := collectAggs(symbol, f.client.ListAggs(ctx, f.params(symbol, start, end)))
	if err != nil {
		return nil, err
	}

	if len(candles) > n {
		candles = candles[len(candles)-n:]
	}

	return candles, nil
}

// Next implements Feed.
func (f *PolygonFeed) Next(ctx context.Context, symbol string, prev types.Candle) (types.Candle, error) {
	end := f.now()
	start := prev.Time.Add(time.Millisecond)

	if prev.Time.IsZero() {
		start = end.Add(-3 * f.interval.Duration())
	}

	candles, err := collectAggs(symbol, f.client.ListAggs(ctx, f.params(symbol, start, end)))
	if err != nil {
		return types.Candle{}, err
	}

	for _, candle := range candles {
		if candle.Time.After(prev.Time) {
			return candle, nil
		}
	}

	return types.Candle{}, errors.Newf(errors.ErrCodeNoNewCandle, "no new %s candle for %s after %s", f.interval, symbol, prev.Time.Format(time.RFC3339))
}

func (f *PolygonFeed) params(symbol string, start, end time.Time) *models.ListAggsParams {
	//nolint:exhaustruct // third-party struct with many optional fields
	return models.ListAggsParams{
		Ticker:     symbol,
		Multiplier: f.interval.Multiplier(),
		Timespan:   f.interval.Timespan(),
		From:       models.Millis(start),
		To:         models.Millis(end),
	}.WithLimit(50000)
}

func collectAggs(symbol string, it aggIterator) ([]types.Candle, error) {
	candles := []types.Candle{}

	for it.Next() {
		candles = append(candles, aggToCandle(symbol, it.Item()))
	}

	if it.Err() != nil {
		return nil, errors.Wrap(errors.ErrCodeMarketDataFetchFailed, "failed to fetch aggregates from polygon", it.Err())
	}

	return candles, nil
}

func aggToCandle(symbol string, agg models.Agg) types.Candle {
	return types.Candle{
		Symbol: symbol,
		Time:   time.Time(agg.Timestamp).UTC(),
		Open:   agg.Open,
		High:   agg.High,
		Low:    agg.Low,
		Close:  agg.Close,
		Volume: agg.Volume,
	}
}
