package indicator

import (
	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/algoscript/internal/types"
	"github.com/rxtech-lab/algoscript/pkg/errors"
)

// Indicator interface defines methods that any close-series indicator must implement
type Indicator interface {
	// Name returns the name of the indicator
	Name() types.IndicatorType
	// RawValue computes the indicator over closes (oldest first). An optional
	// period (int or optional.Option[int]) overrides the configured one.
	RawValue(closes []float64, params ...any) (float64, error)
	Config(params ...any) error
}

// periodParam resolves the period from RawValue params, falling back to def.
func periodParam(def int, params []any) (int, error) {
	if len(params) == 0 {
		return def, nil
	}

	period := def

	switch p := params[0].(type) {
	case int:
		period = p
	case optional.Option[int]:
		period = p.TakeOr(def)
	default:
		return 0, errors.New(errors.ErrCodeInvalidParameter, "invalid type for period parameter, expected int or optional.Option[int]")
	}

	if period <= 0 {
		return 0, errors.Newf(errors.ErrCodeInvalidPeriod, "period must be a positive integer, got %d", period)
	}

	return period, nil
}

func configPeriod(params []any) (int, error) {
	if len(params) != 1 {
		return 0, errors.New(errors.ErrCodeInvalidParameter, "Config expects 1 parameter: period (int)")
	}

	period, ok := params[0].(int)
	if !ok {
		return 0, errors.New(errors.ErrCodeInvalidParameter, "invalid type for period parameter, expected int")
	}

	if period <= 0 {
		return 0, errors.Newf(errors.ErrCodeInvalidPeriod, "period must be a positive integer, got %d", period)
	}

	return period, nil
}
