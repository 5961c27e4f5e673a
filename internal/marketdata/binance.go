package marketdata

import (
	"context"
	"strconv"
	"time"

	binance "github.com/adshao/go-binance/v2"
	"github.com/rxtech-lab/algoscript/internal/types"
	"github.com/rxtech-lab/algoscript/pkg/errors"
)

// BinanceMarketClient is the subset of the Binance client used for klines.
type BinanceMarketClient interface {
	NewKlinesService() KlinesService
}

// KlinesService wraps binance.KlinesService so tests can stub it.
type KlinesService interface {
	Symbol(symbol string) KlinesService
	Interval(interval string) KlinesService
	Limit(limit int) KlinesService
	StartTime(startTime int64) KlinesService
	Do(ctx context.Context) ([]*binance.Kline, error)
}

type realBinanceMarketClient struct {
	client *binance.Client
}

func (c *realBinanceMarketClient) NewKlinesService() KlinesService {
	return &realKlinesService{service: c.client.NewKlinesService()}
}

type realKlinesService struct {
	service *binance.KlinesService
}

func (s *realKlinesService) Symbol(symbol string) KlinesService {
	s.service.Symbol(symbol)

	return s
}

func (s *realKlinesService) Interval(interval string) KlinesService {
	s.service.Interval(interval)

	return s
}

func (s *realKlinesService) Limit(limit int) KlinesService {
	s.service.Limit(limit)

	return s
}

func (s *realKlinesService) StartTime(startTime int64) KlinesService {
	s.service.StartTime(startTime)

	return s
}

func (s *realKlinesService) Do(ctx context.Context) ([]*binance.Kline, error) {
	return s.service.Do(ctx)
}

// BinanceFeed reads public klines from Binance. No API key is needed.
type BinanceFeed struct {
	client   BinanceMarketClient
	interval Interval
	binance  string
}

// NewBinanceFeed creates a feed against the Binance spot API. An empty baseURL
// uses the production endpoint.
func NewBinanceFeed(interval Interval, baseURL string) (*BinanceFeed, error) {
	client := binance.NewClient("", "")
	if baseURL != "" {
		client.BaseURL = baseURL
	}

	return newBinanceFeedWithClient(&realBinanceMarketClient{client: client}, interval)
}

// newBinanceFeedWithClient creates a feed with a custom client (for testing).
func newBinanceFeedWithClient(client BinanceMarketClient, interval Interval) (*BinanceFeed, error) {
	binanceInterval, err := interval.BinanceInterval()
	if err != nil {
		return nil, err
	}

	return &BinanceFeed{
		client:   client,
		interval: interval,
		binance:  binanceInterval,
	}, nil
}

// History implements Feed.
func (f *BinanceFeed) History(ctx context.Context, symbol string, n int) ([]types.Candle, error) {
	klines, err := f.client.NewKlinesService().
		Symbol(symbol).
		Interval(f.binance).
		Limit(n).
		Do(ctx)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeMarketDataFetchFailed, "failed to fetch klines from Binance", err)
	}

	return klinesToCandles(symbol, klines)
}

// Next implements Feed. It asks for the first kline opening after prev.
func (f *BinanceFeed) Next(ctx context.Context, symbol string, prev types.Candle) (types.Candle, error) {
	service := f.client.NewKlinesService().
		Symbol(symbol).
		Interval(f.binance).
		Limit(1)

	if !prev.Time.IsZero() {
		service = service.StartTime(prev.Time.Add(f.interval.Duration()).UnixMilli())
	}

	klines, err := service.Do(ctx)
	if err != nil {
		return types.Candle{}, errors.Wrap(errors.ErrCodeMarketDataFetchFailed, "failed to fetch klines from Binance", err)
	}

	candles, err := klinesToCandles(symbol, klines)
	if err != nil {
		return types.Candle{}, err
	}

	if len(candles) == 0 || !candles[0].Time.After(prev.Time) {
		return types.Candle{}, errors.Newf(errors.ErrCodeNoNewCandle, "no new %s candle for %s after %s", f.interval, symbol, prev.Time.Format(time.RFC3339))
	}

	return candles[0], nil
}

// klinesToCandles converts Binance kline strings to candles.
func klinesToCandles(symbol string, klines []*binance.Kline) ([]types.Candle, error) {
	candles := make([]types.Candle, 0, len(klines))

	for _, k := range klines {
		values := make([]float64, 5)

		for i, raw := range []string{k.Open, k.High, k.Low, k.Close, k.Volume} {
			value, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				return nil, errors.Wrapf(errors.ErrCodeMarketDataFetchFailed, err, "invalid kline value %q", raw)
			}

			values[i] = value
		}

		candles = append(candles, types.Candle{
			Symbol: symbol,
			Time:   time.UnixMilli(k.OpenTime).UTC(),
			Open:   values[0],
			High:   values[1],
			Low:    values[2],
			Close:  values[3],
			Volume: values[4],
		})
	}

	return candles, nil
}
