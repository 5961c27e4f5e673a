package marketdata

import (
	"context"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/rxtech-lab/algoscript/internal/types"
)

// SyntheticConfig configures how synthetic candles are generated.
type SyntheticConfig struct {
	// InitialPrice is the close the history walk starts from
	InitialPrice float64
	// Interval is the duration between each bar
	Interval time.Duration
	// HistoryVolatility bounds the uniform close-to-close change of history bars
	HistoryVolatility float64
	// HistoryWick bounds how far high/low extend past the close of history bars
	HistoryWick float64
	// Volatility bounds the random component of a new bar's change
	Volatility float64
	// Trend bounds the drift component of a new bar's change
	Trend float64
	// Wick bounds how far high/low extend past the close of new bars
	Wick float64
	// VolumeMin and VolumeMax bound the uniform bar volume
	VolumeMin float64
	VolumeMax float64
	// Seed makes the series reproducible. Zero seeds from the clock.
	Seed int64
	// Now anchors the end of the generated history
	Now func() time.Time
}

// DefaultSyntheticConfig returns the default walk: 2000 start price, 4h bars.
func DefaultSyntheticConfig() SyntheticConfig {
	return SyntheticConfig{
		InitialPrice:      2000.0,
		Interval:          4 * time.Hour,
		HistoryVolatility: 0.02,
		HistoryWick:       0.01,
		Volatility:        0.015,
		Trend:             0.005,
		Wick:              0.008,
		VolumeMin:         1000,
		VolumeMax:         10000,
		Seed:              0,
		Now:               func() time.Time { return time.Now().UTC() },
	}
}

// SyntheticFeed generates a bounded random walk. It is safe for concurrent use.
type SyntheticFeed struct {
	config SyntheticConfig
	rng    *rand.Rand
	mu     sync.Mutex
}

// NewSyntheticFeed creates a SyntheticFeed with the given configuration.
func NewSyntheticFeed(config SyntheticConfig) *SyntheticFeed {
	seed := config.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	if config.Now == nil {
		config.Now = func() time.Time { return time.Now().UTC() }
	}

	return &SyntheticFeed{
		config: config,
		rng:    rand.New(rand.NewSource(seed)),
	}
}

// History implements Feed.
func (f *SyntheticFeed) History(_ context.Context, symbol string, n int) ([]types.Candle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.history(symbol, n), nil
}

func (f *SyntheticFeed) history(symbol string, n int) []types.Candle {
	candles := make([]types.Candle, 0, n)
	baseTime := f.config.Now().Add(-time.Duration(n) * f.config.Interval)
	price := f.config.InitialPrice

	for i := 0; i < n; i++ {
		change := f.uniform(-f.config.HistoryVolatility, f.config.HistoryVolatility)
		closePrice := price * (1 + change)

		candles = append(candles, f.bar(
			symbol,
			baseTime.Add(time.Duration(i)*f.config.Interval),
			price,
			closePrice,
			f.config.HistoryWick,
		))

		price = closePrice
	}

	return candles
}

// Next implements Feed.
func (f *SyntheticFeed) Next(_ context.Context, symbol string, prev types.Candle) (types.Candle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if prev.Close <= 0 {
		return f.history(symbol, 1)[0], nil
	}

	trend := f.uniform(-f.config.Trend, f.config.Trend)
	change := trend + f.uniform(-f.config.Volatility, f.config.Volatility)
	closePrice := prev.Close * (1 + change)

	return f.bar(symbol, prev.Time.Add(f.config.Interval), prev.Close, closePrice, f.config.Wick), nil
}

// bar builds an OHLCV candle whose high and low always envelope open and close.
func (f *SyntheticFeed) bar(symbol string, t time.Time, open, closePrice, wick float64) types.Candle {
	high := closePrice * (1 + f.uniform(0, wick))
	low := closePrice * (1 - f.uniform(0, wick))

	return types.Candle{
		Symbol: symbol,
		Time:   t,
		Open:   open,
		High:   math.Max(high, math.Max(open, closePrice)),
		Low:    math.Min(low, math.Min(open, closePrice)),
		Close:  closePrice,
		Volume: f.uniform(f.config.VolumeMin, f.config.VolumeMax),
	}
}

func (f *SyntheticFeed) uniform(lo, hi float64) float64 {
	return lo + f.rng.Float64()*(hi-lo)
}
