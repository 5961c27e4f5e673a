package marketdata

import (
	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/algoscript/internal/types"
)

type indicatorKey struct {
	indicator types.IndicatorType
	period    int
}

// IndicatorCache memoizes indicator readings for the current candle series.
type IndicatorCache struct {
	MACD   optional.Option[types.MACDValue]
	values map[indicatorKey]float64
}

func NewIndicatorCache() *IndicatorCache {
	return &IndicatorCache{
		MACD:   optional.None[types.MACDValue](),
		values: make(map[indicatorKey]float64),
	}
}

// Reset drops every reading. The engine calls it whenever the candle series changes.
func (c *IndicatorCache) Reset() {
	c.MACD = optional.None[types.MACDValue]()
	c.values = make(map[indicatorKey]float64)
}

// Set stores a single-valued indicator reading.
func (c *IndicatorCache) Set(indicator types.IndicatorType, period int, value float64) {
	c.values[indicatorKey{indicator: indicator, period: period}] = value
}

// Get returns a cached single-valued indicator reading.
func (c *IndicatorCache) Get(indicator types.IndicatorType, period int) (float64, bool) {
	value, ok := c.values[indicatorKey{indicator: indicator, period: period}]

	return value, ok
}
