package marketdata

import (
	"context"
	"math"
	"slices"

	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/algoscript/internal/indicator"
	"github.com/rxtech-lab/algoscript/internal/logger"
	"github.com/rxtech-lab/algoscript/internal/types"
	"github.com/rxtech-lab/algoscript/pkg/errors"
	"go.uber.org/zap"
)

// DefaultHistory is the number of candles an Engine loads on creation.
const DefaultHistory = 100

// Engine owns the candle history of one symbol for one run. It is not safe
// for concurrent use; callers that share an Engine must serialize access.
type Engine struct {
	symbol   string
	feed     Feed
	candles  []types.Candle
	registry indicator.Registry
	cache    *IndicatorCache
	history  int
	logger   *logger.Logger
}

type EngineOption func(*Engine)

// WithHistory sets how many candles NewEngine loads.
func WithHistory(n int) EngineOption {
	return func(e *Engine) {
		if n > 0 {
			e.history = n
		}
	}
}

// WithRegistry replaces the default indicator registry.
func WithRegistry(registry indicator.Registry) EngineOption {
	return func(e *Engine) {
		e.registry = registry
	}
}

func WithEngineLogger(log *logger.Logger) EngineOption {
	return func(e *Engine) {
		if log != nil {
			e.logger = log
		}
	}
}

// NewEngine creates an engine for symbol and loads its history from feed.
func NewEngine(ctx context.Context, symbol string, feed Feed, opts ...EngineOption) (*Engine, error) {
	engine := newEngine(symbol, feed, opts...)

	candles, err := feed.History(ctx, symbol, engine.history)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrCodeMarketDataFetchFailed, err, "failed to load history for %s", symbol)
	}

	if len(candles) == 0 {
		return nil, errors.Newf(errors.ErrCodeNoMarketData, "no market data for %s", symbol)
	}

	engine.candles = candles
	engine.logger.Debug("Loaded market history",
		zap.String("symbol", symbol),
		zap.Int("candles", len(candles)),
		zap.Float64("price", engine.CurrentPrice()),
	)

	return engine, nil
}

// NewEngineFromCandles creates an engine over a fixed candle series. Without a
// feed GenerateNextCandle returns an error.
func NewEngineFromCandles(symbol string, candles []types.Candle, opts ...EngineOption) *Engine {
	engine := newEngine(symbol, nil, opts...)
	engine.candles = slices.Clone(candles)

	return engine
}

func newEngine(symbol string, feed Feed, opts ...EngineOption) *Engine {
	engine := &Engine{
		symbol:   symbol,
		feed:     feed,
		candles:  []types.Candle{},
		registry: indicator.NewDefaultRegistry(),
		cache:    NewIndicatorCache(),
		history:  DefaultHistory,
		logger:   logger.NewNopLogger(),
	}

	for _, opt := range opts {
		opt(engine)
	}

	return engine
}

func (e *Engine) Symbol() string {
	return e.symbol
}

// CurrentPrice returns the close of the latest candle, or 0 without candles.
func (e *Engine) CurrentPrice() float64 {
	latest, ok := e.LatestCandle()
	if !ok {
		return 0
	}

	return latest.Close
}

func (e *Engine) LatestCandle() (types.Candle, bool) {
	if len(e.candles) == 0 {
		return types.Candle{}, false
	}

	return e.candles[len(e.candles)-1], true
}

// Candles returns a copy of the last n candles, or all of them when n <= 0.
func (e *Engine) Candles(n int) []types.Candle {
	if n <= 0 || n >= len(e.candles) {
		return slices.Clone(e.candles)
	}

	return slices.Clone(e.candles[len(e.candles)-n:])
}

// GenerateNextCandle asks the feed for the candle after the latest one and appends it.
func (e *Engine) GenerateNextCandle(ctx context.Context) (types.Candle, error) {
	if e.feed == nil {
		return types.Candle{}, errors.Newf(errors.ErrCodeNoNewCandle, "no feed configured for %s", e.symbol)
	}

	prev, _ := e.LatestCandle()

	candle, err := e.feed.Next(ctx, e.symbol, prev)
	if err != nil {
		return types.Candle{}, err
	}

	e.AppendCandle(candle)
	e.logger.Debug("New candle",
		zap.String("symbol", e.symbol),
		zap.Time("time", candle.Time),
		zap.Float64("close", candle.Close),
	)

	return candle, nil
}

// AppendCandle adds an observed candle to the series.
func (e *Engine) AppendCandle(candle types.Candle) {
	e.candles = append(e.candles, candle)
	e.cache.Reset()
}

// SimulatePriceChange moves the latest close by percent and stretches its
// high/low to contain the new price. It returns the new price.
func (e *Engine) SimulatePriceChange(percent float64) float64 {
	if len(e.candles) == 0 {
		return 0
	}

	last := &e.candles[len(e.candles)-1]
	price := last.Close * (1 + percent/100)

	last.Close = price
	last.High = math.Max(last.High, price)
	last.Low = math.Min(last.Low, price)
	e.cache.Reset()

	return price
}

func (e *Engine) closes() []float64 {
	return types.Closes(e.candles)
}

func (e *Engine) single(name types.IndicatorType, period int) (float64, error) {
	if value, ok := e.cache.Get(name, period); ok {
		return value, nil
	}

	ind, err := e.registry.Get(name)
	if err != nil {
		return 0, err
	}

	value, err := ind.RawValue(e.closes(), period)
	if err != nil {
		return 0, errors.Wrapf(errors.ErrCodeIndicatorCalculation, err, "failed to calculate %s(%d)", name, period)
	}

	e.cache.Set(name, period, value)

	return value, nil
}

// EMA returns the exponential moving average of all closes.
func (e *Engine) EMA(period int) (float64, error) {
	return e.single(types.IndicatorTypeEMA, period)
}

// RSI returns the relative strength index over the last period+1 closes.
func (e *Engine) RSI(period int) (float64, error) {
	return e.single(types.IndicatorTypeRSI, period)
}

// MACD returns the MACD reading of the registered MACD calculator.
func (e *Engine) MACD() (types.MACDValue, error) {
	if e.cache.MACD.IsSome() {
		return e.cache.MACD.Unwrap(), nil
	}

	ind, err := e.registry.Get(types.IndicatorTypeMACD)
	if err != nil {
		return types.MACDValue{}, err
	}

	macd, ok := ind.(*indicator.MACD)
	if !ok {
		return types.MACDValue{}, errors.Newf(errors.ErrCodeIndicatorCalculation, "indicator %s is not a MACD calculator", ind.Name())
	}

	value := macd.Compute(e.closes())
	e.cache.MACD = optional.Some(value)

	return value, nil
}

// Volume returns the latest candle's volume.
func (e *Engine) Volume() float64 {
	latest, ok := e.LatestCandle()
	if !ok {
		return 0
	}

	return latest.Volume
}

// CheckPriceCross reports whether the previous close and the latest close lie
// on opposite sides of level in the given direction. Touching the level from
// below or above counts as the starting side.
func (e *Engine) CheckPriceCross(level float64, direction types.CrossDirection) bool {
	if len(e.candles) < 2 {
		return false
	}

	prev := e.candles[len(e.candles)-2].Close
	current := e.candles[len(e.candles)-1].Close

	switch direction {
	case types.CrossUpwards:
		return prev <= level && current > level
	case types.CrossDownwards:
		return prev >= level && current < level
	default:
		return false
	}
}

// Snapshot summarizes the engine with the default indicator periods.
func (e *Engine) Snapshot() (types.MarketSnapshot, error) {
	ema, err := e.EMA(indicator.DefaultEMAPeriod)
	if err != nil {
		return types.MarketSnapshot{}, err
	}

	rsi, err := e.RSI(indicator.DefaultRSIPeriod)
	if err != nil {
		return types.MarketSnapshot{}, err
	}

	macd, err := e.MACD()
	if err != nil {
		return types.MarketSnapshot{}, err
	}

	return types.MarketSnapshot{
		Symbol:       e.symbol,
		CurrentPrice: e.CurrentPrice(),
		EMA50:        ema,
		RSI:          rsi,
		MACD:         macd,
		Volume:       e.Volume(),
	}, nil
}
