package indicator

import (
	"github.com/rxtech-lab/algoscript/internal/types"
)

const DefaultEMAPeriod = 50

// EMA indicator implements Exponential Moving Average calculation.
type EMA struct {
	period int
}

// NewEMA creates a new EMA indicator with default configuration.
func NewEMA() Indicator {
	return &EMA{
		period: DefaultEMAPeriod,
	}
}

// Name returns the name of the indicator.
func (e *EMA) Name() types.IndicatorType {
	return types.IndicatorTypeEMA
}

// Config configures the EMA indicator. Expected parameters: period (int).
func (e *EMA) Config(params ...any) error {
	period, err := configPeriod(params)
	if err != nil {
		return err
	}

	e.period = period

	return nil
}

// RawValue returns the EMA of closes.
func (e *EMA) RawValue(closes []float64, params ...any) (float64, error) {
	period, err := periodParam(e.period, params)
	if err != nil {
		return 0, err
	}

	return ExponentialMovingAverage(closes, period), nil
}

// ExponentialMovingAverage smooths every close with alpha = 2/(period+1),
// seeded by the first close. With fewer than period closes it returns the
// latest close, and 0 when there are none.
func ExponentialMovingAverage(closes []float64, period int) float64 {
	if len(closes) == 0 {
		return 0
	}

	if len(closes) < period {
		return closes[len(closes)-1]
	}

	alpha := 2.0 / float64(period+1)

	ema := closes[0]
	for _, c := range closes[1:] {
		ema = (c * alpha) + (ema * (1 - alpha))
	}

	return ema
}
