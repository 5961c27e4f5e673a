package indicator

import (
	"github.com/rxtech-lab/algoscript/internal/types"
	"github.com/rxtech-lab/algoscript/pkg/errors"
)

const (
	DefaultMACDFast   = 12
	DefaultMACDSlow   = 26
	DefaultMACDSignal = 9

	// signalRatio derives the signal line directly from the MACD line.
	// It is not an EMA of the MACD series.
	signalRatio = 0.7
)

// MACD indicator implements Moving Average Convergence Divergence calculation.
type MACD struct {
	fastPeriod   int
	slowPeriod   int
	signalPeriod int
}

// NewMACD creates a new MACD indicator with default configuration.
func NewMACD() Indicator {
	return &MACD{
		fastPeriod:   DefaultMACDFast,
		slowPeriod:   DefaultMACDSlow,
		signalPeriod: DefaultMACDSignal,
	}
}

// Name returns the name of the indicator.
func (m *MACD) Name() types.IndicatorType {
	return types.IndicatorTypeMACD
}

// Config configures the MACD indicator. Expected parameters: fastPeriod, slowPeriod, signalPeriod (int).
func (m *MACD) Config(params ...any) error {
	if len(params) != 3 {
		return errors.New(errors.ErrCodeInvalidParameter, "Config expects 3 parameters: fastPeriod, slowPeriod, signalPeriod (int)")
	}

	periods := make([]int, 3)

	for i, p := range params {
		v, ok := p.(int)
		if !ok {
			return errors.Newf(errors.ErrCodeInvalidParameter, "invalid type for parameter %d, expected int", i)
		}

		if v <= 0 {
			return errors.Newf(errors.ErrCodeInvalidPeriod, "period must be a positive integer, got %d", v)
		}

		periods[i] = v
	}

	if periods[0] >= periods[1] {
		return errors.Newf(errors.ErrCodeInvalidPeriod, "fast period (%d) must be less than slow period (%d)", periods[0], periods[1])
	}

	m.fastPeriod, m.slowPeriod, m.signalPeriod = periods[0], periods[1], periods[2]

	return nil
}

// Key identifies the configured periods, e.g. for caching.
func (m *MACD) Key() [3]int {
	return [3]int{m.fastPeriod, m.slowPeriod, m.signalPeriod}
}

// RawValue returns the MACD line of closes.
func (m *MACD) RawValue(closes []float64, _ ...any) (float64, error) {
	return m.Compute(closes).MACD, nil
}

// Compute returns the MACD line, its signal and histogram.
// All three are zero when there are fewer than slowPeriod closes.
func (m *MACD) Compute(closes []float64) types.MACDValue {
	if len(closes) < m.slowPeriod {
		return types.MACDValue{}
	}

	macdLine := ExponentialMovingAverage(closes, m.fastPeriod) - ExponentialMovingAverage(closes, m.slowPeriod)
	signal := macdLine * signalRatio

	return types.MACDValue{
		MACD:      macdLine,
		Signal:    signal,
		Histogram: macdLine - signal,
	}
}
