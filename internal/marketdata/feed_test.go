package marketdata

import (
	"context"
	"errors"
	"testing"
	"time"

	binance "github.com/adshao/go-binance/v2"
	"github.com/polygon-io/client-go/rest/models"
	"github.com/rxtech-lab/algoscript/internal/types"
	apperrors "github.com/rxtech-lab/algoscript/pkg/errors"
	"github.com/stretchr/testify/suite"
)

type FeedTestSuite struct {
	suite.Suite
}

func TestFeedSuite(t *testing.T) {
	suite.Run(t, new(FeedTestSuite))
}

func fixedNow() time.Time {
	return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
}

func (suite *FeedTestSuite) TestSyntheticHistoryShape() {
	config := DefaultSyntheticConfig()
	config.Seed = 42
	config.Now = fixedNow

	feed := NewSyntheticFeed(config)
	candles, err := feed.History(context.Background(), "ETHUSD", 100)
	suite.Require().NoError(err)
	suite.Len(candles, 100)

	suite.Equal(fixedNow().Add(-100*4*time.Hour), candles[0].Time)
	suite.Equal(2000.0, candles[0].Open)

	for i, c := range candles {
		suite.Equal("ETHUSD", c.Symbol)
		suite.GreaterOrEqual(c.High, c.Open)
		suite.GreaterOrEqual(c.High, c.Close)
		suite.LessOrEqual(c.Low, c.Open)
		suite.LessOrEqual(c.Low, c.Close)
		suite.GreaterOrEqual(c.Volume, 1000.0)
		suite.LessOrEqual(c.Volume, 10000.0)

		if i > 0 {
			prev := candles[i-1]
			suite.Equal(prev.Close, c.Open)
			suite.Equal(prev.Time.Add(4*time.Hour), c.Time)
			suite.InDelta(0, c.Close/prev.Close-1, 0.02+1e-12)
		}
	}
}

func (suite *FeedTestSuite) TestSyntheticIsReproducible() {
	config := DefaultSyntheticConfig()
	config.Seed = 7
	config.Now = fixedNow

	a, _ := NewSyntheticFeed(config).History(context.Background(), "ETHUSD", 20)
	b, _ := NewSyntheticFeed(config).History(context.Background(), "ETHUSD", 20)
	suite.Equal(a, b)
}

func (suite *FeedTestSuite) TestSyntheticNext() {
	config := DefaultSyntheticConfig()
	config.Seed = 11
	config.Now = fixedNow
	feed := NewSyntheticFeed(config)

	prev := types.Candle{Symbol: "ETHUSD", Time: fixedNow(), Close: 1500}

	for i := 0; i < 50; i++ {
		next, err := feed.Next(context.Background(), "ETHUSD", prev)
		suite.Require().NoError(err)

		suite.Equal(prev.Close, next.Open)
		suite.Equal(prev.Time.Add(4*time.Hour), next.Time)
		// trend 0.5% plus perturbation 1.5%
		suite.InDelta(0, next.Close/prev.Close-1, 0.02+1e-12)
		suite.GreaterOrEqual(next.High, next.Close)
		suite.LessOrEqual(next.Low, next.Close)

		prev = next
	}

	first, err := feed.Next(context.Background(), "ETHUSD", types.Candle{})
	suite.NoError(err)
	suite.Equal(2000.0, first.Open)
}

func (suite *FeedTestSuite) TestNewFeed() {
	feed, err := NewFeed(FeedConfig{Provider: ProviderSynthetic, InitialPrice: 50, Seed: 1})
	suite.Require().NoError(err)

	synthetic, ok := feed.(*SyntheticFeed)
	suite.True(ok)
	suite.Equal(50.0, synthetic.config.InitialPrice)
	suite.Equal(4*time.Hour, synthetic.config.Interval)

	feed, err = NewFeed(FeedConfig{Provider: ProviderBinance, Interval: IntervalOneHour})
	suite.NoError(err)
	suite.IsType(&BinanceFeed{}, feed)

	_, err = NewFeed(FeedConfig{Provider: ProviderPolygon})
	suite.True(apperrors.HasCode(err, apperrors.ErrCodeMissingParameter))

	feed, err = NewFeed(FeedConfig{Provider: ProviderPolygon, PolygonAPIKey: "key"})
	suite.NoError(err)
	suite.IsType(&PolygonFeed{}, feed)

	_, err = NewFeed(FeedConfig{Provider: "kraken"})
	suite.True(apperrors.HasCode(err, apperrors.ErrCodeInvalidProvider))
}

func (suite *FeedTestSuite) TestParseInterval() {
	tests := []struct {
		input    string
		expected Interval
		duration time.Duration
		binance  string
	}{
		{input: "4H", expected: IntervalFourHours, duration: 4 * time.Hour, binance: "4h"},
		{input: "4h", expected: IntervalFourHours, duration: 4 * time.Hour, binance: "4h"},
		{input: "1H", expected: IntervalOneHour, duration: time.Hour, binance: "1h"},
		{input: "15M", expected: IntervalFifteenMinutes, duration: 15 * time.Minute, binance: "15m"},
		{input: "5M", expected: IntervalFiveMinutes, duration: 5 * time.Minute, binance: "5m"},
		{input: "DAILY", expected: IntervalOneDay, duration: 24 * time.Hour, binance: "1d"},
		{input: "1d", expected: IntervalOneDay, duration: 24 * time.Hour, binance: "1d"},
	}

	for _, tc := range tests {
		suite.Run(tc.input, func() {
			interval, err := ParseInterval(tc.input)
			suite.Require().NoError(err)
			suite.Equal(tc.expected, interval)
			suite.Equal(tc.duration, interval.Duration())

			binanceInterval, err := interval.BinanceInterval()
			suite.NoError(err)
			suite.Equal(tc.binance, binanceInterval)
		})
	}

	_, err := ParseInterval("WEEKLY")
	suite.True(apperrors.HasCode(err, apperrors.ErrCodeInvalidInterval))

	_, err = Interval("7h").BinanceInterval()
	suite.Error(err)
}

// mockBinanceMarketClient implements BinanceMarketClient for testing
type mockBinanceMarketClient struct {
	klinesService *mockKlinesService
}

func (m *mockBinanceMarketClient) NewKlinesService() KlinesService {
	return m.klinesService
}

// mockKlinesService implements KlinesService
type mockKlinesService struct {
	klines    []*binance.Kline
	err       error
	symbol    string
	interval  string
	limit     int
	startTime int64
}

func (m *mockKlinesService) Symbol(symbol string) KlinesService {
	m.symbol = symbol

	return m
}

func (m *mockKlinesService) Interval(interval string) KlinesService {
	m.interval = interval

	return m
}

func (m *mockKlinesService) Limit(limit int) KlinesService {
	m.limit = limit

	return m
}

func (m *mockKlinesService) StartTime(startTime int64) KlinesService {
	m.startTime = startTime

	return m
}

func (m *mockKlinesService) Do(_ context.Context) ([]*binance.Kline, error) {
	return m.klines, m.err
}

func kline(openTime time.Time, o, h, l, c, v string) *binance.Kline {
	return &binance.Kline{
		OpenTime: openTime.UnixMilli(),
		Open:     o,
		High:     h,
		Low:      l,
		Close:    c,
		Volume:   v,
	}
}

func (suite *FeedTestSuite) TestBinanceHistory() {
	service := &mockKlinesService{
		klines: []*binance.Kline{
			kline(fixedNow(), "100", "110", "95", "105", "12.5"),
			kline(fixedNow().Add(4*time.Hour), "105", "120", "101", "118", "7"),
		},
	}

	feed, err := newBinanceFeedWithClient(&mockBinanceMarketClient{klinesService: service}, IntervalFourHours)
	suite.Require().NoError(err)

	candles, err := feed.History(context.Background(), "ETHUSDT", 2)
	suite.Require().NoError(err)

	suite.Equal("ETHUSDT", service.symbol)
	suite.Equal("4h", service.interval)
	suite.Equal(2, service.limit)

	suite.Len(candles, 2)
	suite.Equal(types.Candle{
		Symbol: "ETHUSDT",
		Time:   fixedNow(),
		Open:   100,
		High:   110,
		Low:    95,
		Close:  105,
		Volume: 12.5,
	}, candles[0])
	suite.Equal(118.0, candles[1].Close)
}

func (suite *FeedTestSuite) TestBinanceHistoryErrors() {
	service := &mockKlinesService{err: errors.New("boom")}
	feed, _ := newBinanceFeedWithClient(&mockBinanceMarketClient{klinesService: service}, IntervalFourHours)

	_, err := feed.History(context.Background(), "ETHUSDT", 2)
	suite.True(apperrors.HasCode(err, apperrors.ErrCodeMarketDataFetchFailed))

	service.err = nil
	service.klines = []*binance.Kline{kline(fixedNow(), "x", "1", "1", "1", "1")}

	_, err = feed.History(context.Background(), "ETHUSDT", 1)
	suite.True(apperrors.HasCode(err, apperrors.ErrCodeMarketDataFetchFailed))
}

func (suite *FeedTestSuite) TestBinanceNext() {
	prev := types.Candle{Symbol: "ETHUSDT", Time: fixedNow(), Close: 100}
	service := &mockKlinesService{
		klines: []*binance.Kline{kline(fixedNow().Add(4*time.Hour), "100", "101", "99", "100.5", "3")},
	}

	feed, _ := newBinanceFeedWithClient(&mockBinanceMarketClient{klinesService: service}, IntervalFourHours)

	next, err := feed.Next(context.Background(), "ETHUSDT", prev)
	suite.Require().NoError(err)
	suite.Equal(100.5, next.Close)
	suite.Equal(fixedNow().Add(4*time.Hour).UnixMilli(), service.startTime)
	suite.Equal(1, service.limit)

	// the venue has not closed a newer bar yet
	service.klines = []*binance.Kline{kline(fixedNow(), "100", "101", "99", "100", "3")}
	_, err = feed.Next(context.Background(), "ETHUSDT", prev)
	suite.True(apperrors.HasCode(err, apperrors.ErrCodeNoNewCandle))

	service.klines = nil
	_, err = feed.Next(context.Background(), "ETHUSDT", prev)
	suite.True(apperrors.HasCode(err, apperrors.ErrCodeNoNewCandle))
}

func (suite *FeedTestSuite) TestNewBinanceFeedInvalidInterval() {
	_, err := newBinanceFeedWithClient(&mockBinanceMarketClient{}, Interval("weekly"))
	suite.True(apperrors.HasCode(err, apperrors.ErrCodeInvalidInterval))
}

// fakeAggIterator replays a fixed list of aggregates.
type fakeAggIterator struct {
	aggs []models.Agg
	pos  int
	err  error
}

func (f *fakeAggIterator) Next() bool {
	if f.err != nil || f.pos >= len(f.aggs) {
		return false
	}

	f.pos++

	return true
}

func (f *fakeAggIterator) Item() models.Agg {
	return f.aggs[f.pos-1]
}

func (f *fakeAggIterator) Err() error {
	return f.err
}

func (suite *FeedTestSuite) TestCollectAggs() {
	it := &fakeAggIterator{
		aggs: []models.Agg{
			{Open: 1, High: 2, Low: 0.5, Close: 1.5, Volume: 10, Timestamp: models.Millis(fixedNow())},
			{Open: 1.5, High: 3, Low: 1, Close: 2.5, Volume: 20, Timestamp: models.Millis(fixedNow().Add(time.Hour))},
		},
	}

	candles, err := collectAggs("AAPL", it)
	suite.Require().NoError(err)
	suite.Len(candles, 2)
	suite.Equal(types.Candle{
		Symbol: "AAPL",
		Time:   fixedNow(),
		Open:   1,
		High:   2,
		Low:    0.5,
		Close:  1.5,
		Volume: 10,
	}, candles[0])
	suite.Equal(fixedNow().Add(time.Hour), candles[1].Time)

	_, err = collectAggs("AAPL", &fakeAggIterator{err: errors.New("forbidden")})
	suite.True(apperrors.HasCode(err, apperrors.ErrCodeMarketDataFetchFailed))
}
