package exchange

import (
	"context"

	"github.com/rxtech-lab/algoscript/internal/types"
)

// OrderPlacer routes BUY/SELL actions to a real venue. When an executor has
// no placer, fills are simulated at the reference price.
type OrderPlacer interface {
	PlaceMarketOrder(ctx context.Context, symbol string, side types.OrderSide, quantity float64) (Fill, error)
	PlaceLimitOrder(ctx context.Context, symbol string, side types.OrderSide, quantity float64, price float64) (Fill, error)
}

// Fill is the venue's answer to an order.
type Fill struct {
	OrderID  string            `json:"order_id"`
	Status   types.OrderStatus `json:"status"`
	Price    float64           `json:"price"`
	Quantity float64           `json:"quantity"`
}
