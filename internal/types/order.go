package types

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rxtech-lab/algoscript/pkg/errors"
)

type OrderSide string

type OrderType string

type OrderStatus string

const (
	OrderSideBuy  OrderSide = "BUY"
	OrderSideSell OrderSide = "SELL"
)

const (
	OrderTypeMarket OrderType = "MARKET_ORDER"
	OrderTypeLimit  OrderType = "LIMIT_ORDER"
)

const (
	OrderStatusPending         OrderStatus = "PENDING"
	OrderStatusPartiallyFilled OrderStatus = "PARTIALLY_FILLED"
	OrderStatusFilled          OrderStatus = "FILLED"
	OrderStatusRejected        OrderStatus = "REJECTED"
)

// Executed reports whether some quantity of the order changed hands.
func (s OrderStatus) Executed() bool {
	return s == OrderStatusFilled || s == OrderStatusPartiallyFilled
}

const (
	OrderReasonStrategy   string = "strategy"
	OrderReasonStopLoss   string = "stop_loss"
	OrderReasonTakeProfit string = "take_profit"
)

// Order is an append-only audit record of one fill. It is never mutated after creation.
type Order struct {
	ID        string      `yaml:"id" json:"id" validate:"required,uuid"`
	Side      OrderSide   `yaml:"type" json:"type" validate:"required,oneof=BUY SELL"`
	OrderType OrderType   `yaml:"order_type" json:"order_type" validate:"required,oneof=MARKET_ORDER LIMIT_ORDER"`
	Quantity  float64     `yaml:"quantity" json:"quantity" validate:"gt=0"`
	Price     float64     `yaml:"price" json:"price" validate:"gt=0"`
	Timestamp time.Time   `yaml:"timestamp" json:"timestamp" validate:"required"`
	Status    OrderStatus `yaml:"status" json:"status" validate:"required,oneof=FILLED PARTIALLY_FILLED REJECTED PENDING"`
	// Reason is why the order was created: strategy, stop_loss or take_profit.
	Reason string `yaml:"reason" json:"reason"`
	// ExchangeOrderID is the venue order id when the order was routed to a real exchange.
	ExchangeOrderID string `yaml:"exchange_order_id,omitempty" json:"exchange_order_id,omitempty"`
}

// Validate validates the Order struct.
func (o *Order) Validate() error {
	validate := validator.New()
	if err := validate.Struct(o); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidOrder, "invalid order", err)
	}

	return nil
}
