package executor

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/algoscript/internal/ast"
	"github.com/rxtech-lab/algoscript/internal/indicator"
	"github.com/rxtech-lab/algoscript/internal/types"
	"github.com/rxtech-lab/algoscript/pkg/errors"
)

// equalityTolerance is how close two operands must be for IS to hold.
const equalityTolerance = 0.001

// evaluateCondition resolves both operands and applies the operator. Any
// resolution error makes the condition false.
func (e *Executor) evaluateCondition(condition ast.Condition) bool {
	left, err := e.resolve(condition.Left)
	if err != nil {
		e.log(fmt.Sprintf("Error evaluating condition: %v", err))

		return false
	}

	right, err := e.resolve(condition.Right)
	if err != nil {
		e.log(fmt.Sprintf("Error evaluating condition: %v", err))

		return false
	}

	e.log(fmt.Sprintf("Evaluating: %s %s %s", condition.Left, condition.Operator, condition.Right))
	e.log(fmt.Sprintf("Values: %s %s %s", formatNumber(left), condition.Operator, formatNumber(right)))

	result := e.apply(left, condition.Operator, right)
	e.log(fmt.Sprintf("Condition result: %t", result))

	return result
}

// resolve turns an operand into a number.
func (e *Executor) resolve(ref ast.ValueRef) (float64, error) {
	switch v := ref.(type) {
	case ast.NumberRef:
		return v.Value, nil
	case ast.StateRef:
		return e.resolveState(v.Name)
	case ast.IndicatorCall:
		return e.resolveIndicator(v)
	case ast.RawRef:
		return e.resolveRaw(v.Text), nil
	case nil:
		return 0, errors.New(errors.ErrCodeInvalidParameter, "missing operand")
	}

	return 0, errors.Newf(errors.ErrCodeInvalidParameter, "unsupported operand %T", ref)
}

func (e *Executor) resolveState(name ast.StateName) (float64, error) {
	switch name {
	case ast.StatePrice:
		return e.engine.CurrentPrice(), nil
	case ast.StateEntryPrice:
		return e.state.EntryPrice.TakeOr(0), nil
	case ast.StateBalance:
		return e.state.Balance, nil
	}

	return 0, errors.Newf(errors.ErrCodeInvalidParameter, "unknown state value %s", name)
}

// resolveIndicator reads an indicator from the engine. A timeframe argument
// is accepted but the engine's own series is always used.
func (e *Executor) resolveIndicator(call ast.IndicatorCall) (float64, error) {
	switch call.Name {
	case types.IndicatorTypeEMA:
		return e.engine.EMA(periodOr(call.Period, indicator.DefaultEMAPeriod))
	case types.IndicatorTypeRSI:
		return e.engine.RSI(periodOr(call.Period, indicator.DefaultRSIPeriod))
	case types.IndicatorTypeMACD:
		macd, err := e.engine.MACD()

		return macd.MACD, err
	case types.IndicatorTypeMACDHistogram:
		macd, err := e.engine.MACD()

		return macd.Histogram, err
	case types.IndicatorTypeVolume:
		return e.engine.Volume(), nil
	}

	return 0, errors.Newf(errors.ErrCodeIndicatorNotFound, "unknown indicator %s", call.Name)
}

// periodOr treats a missing or non-positive period as the indicator default.
func periodOr(period optional.Option[int], fallback int) int {
	if p := period.TakeOr(0); p > 0 {
		return p
	}

	return fallback
}

// resolveRaw parses an unclassified operand. Names of state values still
// resolve; anything else that is not a number counts as 0.
func (e *Executor) resolveRaw(text string) float64 {
	switch name := ast.StateName(strings.ToUpper(text)); name {
	case ast.StatePrice, ast.StateEntryPrice, ast.StateBalance:
		value, _ := e.resolveState(name)

		return value
	}

	value, err := strconv.ParseFloat(text, 64)
	if err != nil {
		e.log(fmt.Sprintf("Could not resolve value '%s', using 0", text))

		return 0
	}

	return value
}

func (e *Executor) apply(left float64, operator string, right float64) bool {
	switch operator {
	case ast.OpCrossesUpwards:
		return e.engine.CheckPriceCross(right, types.CrossUpwards)
	case ast.OpCrossesDownwards:
		return e.engine.CheckPriceCross(right, types.CrossDownwards)
	case ast.OpIsPositive:
		return left > 0
	case ast.OpIsNegative:
		return left < 0
	case ast.OpLessThan, ast.OpIsLessThan:
		return left < right
	case ast.OpGreaterThan, ast.OpIsGreaterThan:
		return left > right
	case ast.OpIs:
		return math.Abs(left-right) < equalityTolerance
	}

	return false
}

// formatNumber renders a float the way the execution log always has: integral
// values keep a trailing ".0".
func formatNumber(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.ContainsAny(s, ".eEIN") {
		s += ".0"
	}

	return s
}
