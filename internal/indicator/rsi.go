package indicator

import (
	"math"

	"github.com/rxtech-lab/algoscript/internal/types"
)

const (
	DefaultRSIPeriod = 14
	neutralRSI       = 50.0
)

// RSI indicator implements Relative Strength Index calculation.
type RSI struct {
	period int
}

// NewRSI creates a new RSI indicator with default configuration.
func NewRSI() Indicator {
	return &RSI{
		period: DefaultRSIPeriod,
	}
}

// Name returns the name of the indicator.
func (r *RSI) Name() types.IndicatorType {
	return types.IndicatorTypeRSI
}

// Config configures the RSI indicator. Expected parameters: period (int).
func (r *RSI) Config(params ...any) error {
	period, err := configPeriod(params)
	if err != nil {
		return err
	}

	r.period = period

	return nil
}

// RawValue returns the RSI of closes.
func (r *RSI) RawValue(closes []float64, params ...any) (float64, error) {
	period, err := periodParam(r.period, params)
	if err != nil {
		return 0, err
	}

	return RelativeStrengthIndex(closes, period), nil
}

// RelativeStrengthIndex averages gains and losses over the last period+1
// closes, dividing both sums by period. It is 50 with insufficient history
// and 100 when there are no losses.
func RelativeStrengthIndex(closes []float64, period int) float64 {
	if len(closes) < period+1 {
		return neutralRSI
	}

	window := closes[len(closes)-(period+1):]

	var gains, losses float64

	for i := 1; i < len(window); i++ {
		change := window[i] - window[i-1]
		if change > 0 {
			gains += change
		} else {
			losses += math.Abs(change)
		}
	}

	avgGain := gains / float64(period)
	avgLoss := losses / float64(period)

	if avgLoss == 0 {
		return 100.0
	}

	rs := avgGain / avgLoss

	return 100.0 - (100.0 / (1 + rs))
}
