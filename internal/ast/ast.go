// Package ast defines the typed syntax tree produced by the AlgoScript parser.
package ast

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/algoscript/internal/types"
)

// ValueRef is an operand of a condition. The set of implementations is closed.
type ValueRef interface {
	fmt.Stringer
	valueRef()
}

// NumberRef is a numeric literal. Percentages are stored already divided by 100.
type NumberRef struct {
	Value float64 `json:"value"`
}

// StateName names a value read from the market or the trading state.
type StateName string

const (
	StatePrice      StateName = "PRICE"
	StateEntryPrice StateName = "ENTRY_PRICE"
	StateBalance    StateName = "BALANCE"
)

// StateRef refers to a named market or trading state value.
type StateRef struct {
	Name StateName `json:"name"`
}

// IndicatorCall references a computed technical value. At most one of Period
// and Timeframe is set.
type IndicatorCall struct {
	Name      types.IndicatorType     `json:"name"`
	Period    optional.Option[int]    `json:"period"`
	Timeframe optional.Option[string] `json:"timeframe"`
}

// RawRef is an operand the parser could not classify. It is resolved at run time.
type RawRef struct {
	Text string `json:"text"`
}

func (NumberRef) valueRef()     {}
func (StateRef) valueRef()      {}
func (IndicatorCall) valueRef() {}
func (RawRef) valueRef()        {}

func (n NumberRef) String() string {
	return strconv.FormatFloat(n.Value, 'f', -1, 64)
}

func (s StateRef) String() string {
	return string(s.Name)
}

func (c IndicatorCall) String() string {
	if c.Period.IsSome() {
		return fmt.Sprintf("%s(%d)", c.Name, c.Period.Unwrap())
	}

	if c.Timeframe.IsSome() {
		return fmt.Sprintf("%s(%s)", c.Name, c.Timeframe.Unwrap())
	}

	return string(c.Name)
}

func (r RawRef) String() string {
	return r.Text
}

// Literals and names encode as bare JSON scalars; indicator calls encode as objects.

func (n NumberRef) MarshalJSON() ([]byte, error) {
	return json.Marshal(n.Value)
}

func (s StateRef) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(s.Name))
}

func (r RawRef) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.Text)
}

// Operators a condition may use.
const (
	OpCrossesUpwards   = "CROSSES_UPWARDS"
	OpCrossesDownwards = "CROSSES_DOWNWARDS"
	OpIsPositive       = "IS_POSITIVE"
	OpIsNegative       = "IS_NEGATIVE"
	OpLessThan         = "LESS_THAN"
	OpGreaterThan      = "GREATER_THAN"
	OpIsLessThan       = "IS_LESS_THAN"
	OpIsGreaterThan    = "IS_GREATER_THAN"
	OpIs               = "IS"
)

// LogicalOp chains a condition to the next one in the same handler.
type LogicalOp string

const (
	LogicalNone LogicalOp = ""
	LogicalAnd  LogicalOp = "AND"
	LogicalOr   LogicalOp = "OR"
)

// Condition compares two resolved operands.
type Condition struct {
	Left      ValueRef  `json:"left"`
	Operator  string    `json:"operator"`
	Right     ValueRef  `json:"right"`
	LogicalOp LogicalOp `json:"logical_op,omitempty"`
}

func (c Condition) String() string {
	return fmt.Sprintf("%s %s %s", c.Left, c.Operator, c.Right)
}

// EventHandler binds conditions and actions to one event.
type EventHandler struct {
	EventType  types.EventType `json:"event_type"`
	Conditions []Condition     `json:"conditions"`
	Actions    []Action        `json:"actions"`
}

// Strategy is the root of a parsed program. It is immutable after parsing.
type Strategy struct {
	Symbol        string         `json:"symbol"`
	Timeframe     string         `json:"timeframe"`
	EventHandlers []EventHandler `json:"event_handlers"`
}

// HandlersFor returns the handlers bound to event, in declaration order.
func (s *Strategy) HandlersFor(event types.EventType) []EventHandler {
	var out []EventHandler

	for _, h := range s.EventHandlers {
		if h.EventType == event {
			out = append(out, h)
		}
	}

	return out
}
