package marketdata

import (
	"fmt"
	"strings"
	"time"

	"github.com/polygon-io/client-go/rest/models"
	"github.com/rxtech-lab/algoscript/pkg/errors"
)

// Interval is the bar size of a candle series.
type Interval string

const (
	IntervalOneMinute      Interval = "1m"
	IntervalFiveMinutes    Interval = "5m"
	IntervalFifteenMinutes Interval = "15m"
	IntervalThirtyMinutes  Interval = "30m"
	IntervalOneHour        Interval = "1h"
	IntervalFourHours      Interval = "4h"
	IntervalOneDay         Interval = "1d"
)

// ParseInterval accepts a bar size ("4h") or an AlgoScript timeframe literal ("4H", "DAILY").
func ParseInterval(s string) (Interval, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "1M":
		// "1m" is one minute; AlgoScript has no one-month timeframe
		return IntervalOneMinute, nil
	case "5M":
		return IntervalFiveMinutes, nil
	case "15M":
		return IntervalFifteenMinutes, nil
	case "30M":
		return IntervalThirtyMinutes, nil
	case "1H":
		return IntervalOneHour, nil
	case "4H":
		return IntervalFourHours, nil
	case "1D", "DAILY":
		return IntervalOneDay, nil
	}

	return "", errors.Newf(errors.ErrCodeInvalidInterval, "unsupported interval: %s", s)
}

func (i Interval) Multiplier() int {
	switch i {
	case IntervalOneMinute, IntervalOneHour, IntervalOneDay:
		return 1
	case IntervalFiveMinutes:
		return 5
	case IntervalFifteenMinutes:
		return 15
	case IntervalThirtyMinutes:
		return 30
	case IntervalFourHours:
		return 4
	default:
		return 0
	}
}

// Timespan returns the polygon timespan unit of the interval.
func (i Interval) Timespan() models.Timespan {
	switch i {
	case IntervalOneMinute, IntervalFiveMinutes, IntervalFifteenMinutes, IntervalThirtyMinutes:
		return models.Minute
	case IntervalOneHour, IntervalFourHours:
		return models.Hour
	default:
		return models.Day
	}
}

// Duration returns the wall-clock length of one bar.
func (i Interval) Duration() time.Duration {
	switch i.Timespan() {
	case models.Minute:
		return time.Duration(i.Multiplier()) * time.Minute
	case models.Hour:
		return time.Duration(i.Multiplier()) * time.Hour
	default:
		return time.Duration(i.Multiplier()) * 24 * time.Hour
	}
}

// BinanceInterval converts the interval to a Binance kline interval string.
// Ref: https://binance-docs.github.io/apidocs/spot/en/#kline-candlestick-data
func (i Interval) BinanceInterval() (string, error) {
	multiplier := i.Multiplier()
	if multiplier == 0 {
		return "", errors.Newf(errors.ErrCodeInvalidInterval, "unsupported interval for Binance: %s", i)
	}

	switch i.Timespan() {
	case models.Minute:
		return fmt.Sprintf("%dm", multiplier), nil
	case models.Hour:
		return fmt.Sprintf("%dh", multiplier), nil
	case models.Day:
		return fmt.Sprintf("%dd", multiplier), nil
	default:
		return "", errors.Newf(errors.ErrCodeInvalidInterval, "unsupported timespan for Binance: %s", i.Timespan())
	}
}
