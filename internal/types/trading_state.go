package types

import (
	"maps"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/moznion/go-optional"
)

// TradingState is the mutable record of one strategy run.
// EntryPrice, StopLoss and TakeProfit are cleared together whenever a SELL flattens the position.
type TradingState struct {
	ID           string                   `json:"id"`
	Symbol       string                   `json:"symbol"`
	PositionSize float64                  `json:"position_size"`
	EntryPrice   optional.Option[float64] `json:"entry_price"`
	StopLoss     optional.Option[float64] `json:"stop_loss"`
	TakeProfit   optional.Option[float64] `json:"take_profit"`
	Balance      float64                  `json:"balance"`
	Variables    map[string]any           `json:"variables"`
	Orders       []Order                  `json:"orders"`
	Logs         []string                 `json:"logs"`
	CreatedAt    time.Time                `json:"created_at"`
}

// NewTradingState creates a flat state for the symbol holding the given balance.
func NewTradingState(symbol string, balance float64) *TradingState {
	return &TradingState{
		ID:         uuid.New().String(),
		Symbol:     symbol,
		EntryPrice: optional.None[float64](),
		StopLoss:   optional.None[float64](),
		TakeProfit: optional.None[float64](),
		Balance:    balance,
		Variables:  make(map[string]any),
		Orders:     []Order{},
		Logs:       []string{},
		CreatedAt:  time.Now().UTC(),
	}
}

// IsFlat reports whether there is no open position.
func (s *TradingState) IsFlat() bool {
	return s.PositionSize <= 0
}

// ClearProtection drops the entry price and both protective levels.
func (s *TradingState) ClearProtection() {
	s.EntryPrice = optional.None[float64]()
	s.StopLoss = optional.None[float64]()
	s.TakeProfit = optional.None[float64]()
}

// Clone returns a deep copy that shares no slices or maps with s.
func (s *TradingState) Clone() *TradingState {
	clone := *s
	clone.EntryPrice = cloneOption(s.EntryPrice)
	clone.StopLoss = cloneOption(s.StopLoss)
	clone.TakeProfit = cloneOption(s.TakeProfit)
	clone.Variables = maps.Clone(s.Variables)
	clone.Orders = slices.Clone(s.Orders)
	clone.Logs = slices.Clone(s.Logs)

	if clone.Variables == nil {
		clone.Variables = make(map[string]any)
	}

	if clone.Orders == nil {
		clone.Orders = []Order{}
	}

	if clone.Logs == nil {
		clone.Logs = []string{}
	}

	return &clone
}

func cloneOption(o optional.Option[float64]) optional.Option[float64] {
	if o.IsNone() {
		return optional.None[float64]()
	}

	return optional.Some(o.Unwrap())
}
