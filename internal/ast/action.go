package ast

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/algoscript/internal/types"
)

// ActionKind names the statement an action was parsed from.
type ActionKind string

const (
	ActionBuy  ActionKind = "BUY"
	ActionSell ActionKind = "SELL"
	ActionSet  ActionKind = "SET"
	ActionLog  ActionKind = "LOG"
)

// Action is one statement of a handler body. The set of implementations is closed.
type Action interface {
	Kind() ActionKind
	// Params returns the action's parameters in source order.
	Params() []Param
	action()
}

// Param is a single named action parameter.
type Param struct {
	Key   string
	Value any
}

// AmountBase is what a percentage amount is taken of.
type AmountBase string

const (
	AmountOfNone     AmountBase = ""
	AmountOfBalance  AmountBase = "BALANCE"
	AmountOfPosition AmountBase = "POSITION"
)

// AmountSpec sizes a BUY or SELL. It is either a PercentageAmount or an AbsoluteAmount.
type AmountSpec interface {
	amountSpec()
}

// PercentageAmount is Percent (0-100) of the balance or the open position.
type PercentageAmount struct {
	Percent float64
	Of      AmountBase
}

// AbsoluteAmount is a literal quantity of the traded asset.
type AbsoluteAmount struct {
	Quantity float64
}

func (PercentageAmount) amountSpec() {}
func (AbsoluteAmount) amountSpec()   {}

// BuyAction opens or adds to a long position.
type BuyAction struct {
	// Amount is nil when the statement carries no size.
	Amount    AmountSpec
	OrderType types.OrderType
	// LimitBase is the reference a limit price is taken from, e.g. PRICE.
	LimitBase optional.Option[StateName]
}

// SellAction reduces or closes the open position.
type SellAction struct {
	// Amount is nil when the whole position should be sold.
	Amount    AmountSpec
	OrderType types.OrderType
}

// SetTarget is the protective level a SET statement writes.
type SetTarget string

const (
	TargetStopLoss   SetTarget = "STOP_LOSS"
	TargetTakeProfit SetTarget = "TAKE_PROFIT"
)

// Direction places a protective level relative to its base.
type Direction string

const (
	DirectionNone  Direction = ""
	DirectionAbove Direction = "ABOVE"
	DirectionBelow Direction = "BELOW"
)

// SetAction places a stop-loss or take-profit relative to a base price.
type SetAction struct {
	Target     SetTarget
	Percentage optional.Option[float64]
	Direction  Direction
	Base       string
}

// LogAction writes a message to the execution log.
type LogAction struct {
	Message string
}

func (BuyAction) action()  {}
func (SellAction) action() {}
func (SetAction) action()  {}
func (LogAction) action()  {}

func (BuyAction) Kind() ActionKind  { return ActionBuy }
func (SellAction) Kind() ActionKind { return ActionSell }
func (SetAction) Kind() ActionKind  { return ActionSet }
func (LogAction) Kind() ActionKind  { return ActionLog }

func amountParams(amount AmountSpec) []Param {
	switch a := amount.(type) {
	case PercentageAmount:
		params := []Param{{"amount_percentage", a.Percent}}
		if a.Of != AmountOfNone {
			params = append(params, Param{"amount_type", string(a.Of)})
		}

		return params
	case AbsoluteAmount:
		return []Param{{"amount", a.Quantity}}
	}

	return nil
}

func (b BuyAction) Params() []Param {
	params := amountParams(b.Amount)
	if b.OrderType != "" {
		params = append(params, Param{"order_type", string(b.OrderType)})
	}

	if b.LimitBase.IsSome() {
		params = append(params, Param{"limit_base", string(b.LimitBase.Unwrap())}, Param{"limit_adjustment", 0.0})
	}

	return params
}

func (s SellAction) Params() []Param {
	params := amountParams(s.Amount)
	if s.OrderType != "" {
		params = append(params, Param{"order_type", string(s.OrderType)})
	}

	return params
}

func (s SetAction) Params() []Param {
	params := []Param{{"target", string(s.Target)}}
	if s.Percentage.IsSome() {
		params = append(params, Param{"percentage", s.Percentage.Unwrap()})
	}

	if s.Direction != DirectionNone {
		params = append(params, Param{"direction", string(s.Direction)}, Param{"base", s.Base})
	}

	return params
}

func (l LogAction) Params() []Param {
	return []Param{{"message", l.Message}}
}

// Parameters returns the action's parameters as a map.
func Parameters(a Action) map[string]any {
	params := a.Params()
	out := make(map[string]any, len(params))

	for _, p := range params {
		out[p.Key] = p.Value
	}

	return out
}

// Describe renders an action as "KIND: {key: value, ...}" with keys in source order.
func Describe(a Action) string {
	var sb strings.Builder

	sb.WriteString(string(a.Kind()))
	sb.WriteString(": {")

	for i, p := range a.Params() {
		if i > 0 {
			sb.WriteString(", ")
		}

		fmt.Fprintf(&sb, "'%s': %s", p.Key, formatParam(p.Value))
	}

	sb.WriteString("}")

	return sb.String()
}

func formatParam(v any) string {
	switch val := v.(type) {
	case string:
		return "'" + val + "'"
	case float64:
		s := strconv.FormatFloat(val, 'f', -1, 64)
		if !strings.ContainsAny(s, ".eE") {
			s += ".0"
		}

		return s
	default:
		return fmt.Sprint(val)
	}
}

type actionJSON struct {
	Type       ActionKind     `json:"type"`
	Parameters map[string]any `json:"parameters"`
}

func marshalAction(a Action) ([]byte, error) {
	return json.Marshal(actionJSON{Type: a.Kind(), Parameters: Parameters(a)})
}

func (b BuyAction) MarshalJSON() ([]byte, error)  { return marshalAction(b) }
func (s SellAction) MarshalJSON() ([]byte, error) { return marshalAction(s) }
func (s SetAction) MarshalJSON() ([]byte, error)  { return marshalAction(s) }
func (l LogAction) MarshalJSON() ([]byte, error)  { return marshalAction(l) }
