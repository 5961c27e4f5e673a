package executor

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/algoscript/internal/ast"
	"github.com/rxtech-lab/algoscript/internal/exchange"
	"github.com/rxtech-lab/algoscript/internal/types"
	"github.com/rxtech-lab/algoscript/internal/utils"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type fill struct {
	price      float64
	quantity   float64
	status     types.OrderStatus
	exchangeID string
}

func (e *Executor) buy(ctx context.Context, action ast.BuyAction) {
	price := e.engine.CurrentPrice()

	var (
		quantity float64
		// budget is the cash a percentage buy commits, balance × pct
		budget = optional.None[float64]()
	)

	switch amount := action.Amount.(type) {
	case ast.PercentageAmount:
		if amount.Of != ast.AmountOfBalance {
			e.log("Invalid BUY parameters")

			return
		}

		budget = optional.Some(utils.CalculatePercentageOf(e.state.Balance, amount.Percent))
		quantity = utils.CalculateQuantityForAmount(budget.Unwrap(), price)
	case ast.AbsoluteAmount:
		quantity = amount.Quantity
	default:
		e.log("Invalid BUY parameters")

		return
	}

	if quantity <= 0 || price <= 0 {
		e.log(fmt.Sprintf("Invalid BUY quantity %.4f at $%.2f", quantity, price))

		return
	}

	cost := budget.TakeOr(utils.Notional(quantity, price))
	if cost > e.state.Balance {
		e.log(fmt.Sprintf("Insufficient balance. Required: $%.2f, Available: $%.2f", cost, e.state.Balance))

		return
	}

	orderType := orderTypeOrDefault(action.OrderType)
	if orderType == types.OrderTypeLimit {
		// no order book is modeled, the limit rests at the reference price
		e.log(fmt.Sprintf("BUY LIMIT ORDER: %.4f %s at $%.2f", quantity, e.strategy.Symbol, price))
	} else {
		e.log(fmt.Sprintf("BUY MARKET ORDER: %.4f %s at $%.2f", quantity, e.strategy.Symbol, price))
	}

	filled, ok := e.place(ctx, types.OrderSideBuy, orderType, quantity, price)
	if !ok {
		return
	}

	order := e.recordOrder(types.OrderSideBuy, orderType, filled, types.OrderReasonStrategy)
	if !order.Status.Executed() {
		e.log(fmt.Sprintf("Order %s is %s, position unchanged", order.ID, order.Status))

		return
	}

	e.logPartialFill(order, quantity)

	// a percentage buy filled as requested is debited its budget exactly
	if budget.IsNone() || filled.quantity != quantity || filled.price != price {
		cost = utils.Notional(filled.quantity, filled.price)
	}

	balance := decimal.NewFromFloat(e.state.Balance).Sub(decimal.NewFromFloat(cost))

	if balance.IsNegative() {
		e.log(fmt.Sprintf("Fill cost $%.2f exceeded balance $%.2f, balance clamped to $0.00", cost, e.state.Balance))
		e.logger.Warn("Fill exceeded balance",
			zap.Float64("cost", cost),
			zap.Float64("balance", e.state.Balance),
		)

		balance = decimal.Zero
	}

	e.state.PositionSize = decimal.NewFromFloat(e.state.PositionSize).Add(decimal.NewFromFloat(filled.quantity)).InexactFloat64()
	// a repeated BUY replaces the entry price, cost basis is not averaged
	e.state.EntryPrice = optional.Some(filled.price)
	e.state.Balance = balance.InexactFloat64()

	e.log(fmt.Sprintf("Order executed: %.4f @ $%.2f", filled.quantity, filled.price))
	e.log(fmt.Sprintf("New position: %.4f", e.state.PositionSize))
	e.log(fmt.Sprintf("Remaining balance: $%.2f", e.state.Balance))
}

func (e *Executor) sell(ctx context.Context, action ast.SellAction, reason string) {
	if e.state.IsFlat() {
		e.log("No position to sell")

		return
	}

	price := e.engine.CurrentPrice()
	quantity := e.state.PositionSize

	switch amount := action.Amount.(type) {
	case ast.PercentageAmount:
		if amount.Of == ast.AmountOfPosition {
			quantity = utils.CalculatePercentageOf(e.state.PositionSize, amount.Percent)
		}
	case ast.AbsoluteAmount:
		quantity = min(amount.Quantity, e.state.PositionSize)
	}

	if quantity <= 0 || price <= 0 {
		e.log(fmt.Sprintf("Invalid SELL quantity %.4f at $%.2f", quantity, price))

		return
	}

	orderType := orderTypeOrDefault(action.OrderType)
	e.log(fmt.Sprintf("SELL %s: %.4f %s at $%.2f", orderType, quantity, e.strategy.Symbol, price))

	filled, ok := e.place(ctx, types.OrderSideSell, orderType, quantity, price)
	if !ok {
		return
	}

	order := e.recordOrder(types.OrderSideSell, orderType, filled, reason)
	if !order.Status.Executed() {
		e.log(fmt.Sprintf("Order %s is %s, position unchanged", order.ID, order.Status))

		return
	}

	e.logPartialFill(order, quantity)

	// P&L is reported only, proceeds are what reach the balance
	if entry := e.state.EntryPrice.TakeOr(0); entry > 0 {
		pnl := decimal.NewFromFloat(filled.price).Sub(decimal.NewFromFloat(entry)).Mul(decimal.NewFromFloat(filled.quantity))
		pnlPercentage := (filled.price/entry - 1) * 100
		e.log(fmt.Sprintf("P&L: $%.2f (%+.2f%%)", pnl.InexactFloat64(), pnlPercentage))
	}

	position := decimal.NewFromFloat(e.state.PositionSize).Sub(decimal.NewFromFloat(filled.quantity))
	proceeds := decimal.NewFromFloat(filled.quantity).Mul(decimal.NewFromFloat(filled.price))

	e.state.PositionSize = position.InexactFloat64()
	e.state.Balance = decimal.NewFromFloat(e.state.Balance).Add(proceeds).InexactFloat64()

	if e.state.PositionSize <= 0 {
		e.state.PositionSize = 0
		e.state.ClearProtection()
	}

	e.log(fmt.Sprintf("Position sold: %.4f @ $%.2f", filled.quantity, filled.price))
	e.log(fmt.Sprintf("Remaining position: %.4f", e.state.PositionSize))
	e.log(fmt.Sprintf("New balance: $%.2f", e.state.Balance))
}

func (e *Executor) set(action ast.SetAction) {
	var defaultDirection ast.Direction

	switch action.Target {
	case ast.TargetStopLoss:
		defaultDirection = ast.DirectionBelow
	case ast.TargetTakeProfit:
		defaultDirection = ast.DirectionAbove
	default:
		e.log(fmt.Sprintf("Unsupported SET target: %s", action.Target))

		return
	}

	percentage := action.Percentage.TakeOr(0)

	direction := action.Direction
	if direction == ast.DirectionNone {
		direction = defaultDirection
	}

	base := action.Base
	if base == "" {
		base = string(ast.StateEntryPrice)
	}

	if base != string(ast.StateEntryPrice) {
		e.log(fmt.Sprintf("Unsupported %s base: %s", action.Target, base))

		return
	}

	entry := e.state.EntryPrice.TakeOr(0)
	if entry <= 0 {
		e.log(fmt.Sprintf("No open position, %s not set", action.Target))

		return
	}

	factor := 1 + percentage/100
	if direction == ast.DirectionBelow {
		factor = 1 - percentage/100
	}

	level := entry * factor
	if action.Target == ast.TargetStopLoss {
		e.state.StopLoss = optional.Some(level)
	} else {
		e.state.TakeProfit = optional.Some(level)
	}

	e.log(fmt.Sprintf("%s set at $%.2f (%s%% %s entry price)", action.Target, level, formatNumber(percentage), direction))
}

// CheckStopLossTakeProfit sells the whole position when the price has reached
// the stop-loss or the take-profit level. At most one fires; the stop-loss is
// checked first. It returns the names of the levels that fired.
func (e *Executor) CheckStopLossTakeProfit(ctx context.Context) []string {
	triggered := []string{}

	if e.state.IsFlat() {
		return triggered
	}

	price := e.engine.CurrentPrice()
	closeAll := ast.SellAction{
		Amount:    ast.PercentageAmount{Percent: 100, Of: ast.AmountOfPosition},
		OrderType: types.OrderTypeMarket,
	}

	switch {
	case e.state.StopLoss.IsSome() && price <= e.state.StopLoss.Unwrap():
		e.log(fmt.Sprintf("STOP LOSS TRIGGERED at $%.2f", price))
		e.sell(ctx, closeAll, types.OrderReasonStopLoss)

		triggered = append(triggered, string(ast.TargetStopLoss))
	case e.state.TakeProfit.IsSome() && price >= e.state.TakeProfit.Unwrap():
		e.log(fmt.Sprintf("TAKE PROFIT TRIGGERED at $%.2f", price))
		e.sell(ctx, closeAll, types.OrderReasonTakeProfit)

		triggered = append(triggered, string(ast.TargetTakeProfit))
	}

	return triggered
}

// place fills an order, through the order placer when one is configured.
// It returns false when the placer failed and nothing was filled.
func (e *Executor) place(ctx context.Context, side types.OrderSide, orderType types.OrderType, quantity, price float64) (fill, bool) {
	if e.placer == nil {
		return fill{price: price, quantity: quantity, status: types.OrderStatusFilled, exchangeID: ""}, true
	}

	var (
		result exchange.Fill
		err    error
	)

	if orderType == types.OrderTypeLimit {
		result, err = e.placer.PlaceLimitOrder(ctx, e.strategy.Symbol, side, quantity, price)
	} else {
		result, err = e.placer.PlaceMarketOrder(ctx, e.strategy.Symbol, side, quantity)
	}

	if err != nil {
		e.log(fmt.Sprintf("Order failed: %v", err))
		e.logger.Error("Failed to place order",
			zap.String("side", string(side)),
			zap.Float64("quantity", quantity),
			zap.Error(err),
		)

		return fill{}, false
	}

	placed := fill{price: result.Price, quantity: result.Quantity, status: result.Status, exchangeID: result.OrderID}
	if placed.price <= 0 {
		placed.price = price
	}

	if placed.quantity <= 0 {
		placed.quantity = quantity
	}

	if placed.status == "" {
		placed.status = types.OrderStatusFilled
	}

	return placed, true
}

func (e *Executor) recordOrder(side types.OrderSide, orderType types.OrderType, filled fill, reason string) types.Order {
	order := types.Order{
		ID:              uuid.New().String(),
		Side:            side,
		OrderType:       orderType,
		Quantity:        filled.quantity,
		Price:           filled.price,
		Timestamp:       e.clock().UTC(),
		Status:          filled.status,
		Reason:          reason,
		ExchangeOrderID: filled.exchangeID,
	}

	if err := order.Validate(); err != nil {
		e.logger.Warn("Recorded order failed validation", zap.Error(err))
	}

	e.state.Orders = append(e.state.Orders, order)

	return order
}

func (e *Executor) logPartialFill(order types.Order, requested float64) {
	if order.Status != types.OrderStatusPartiallyFilled {
		return
	}

	e.log(fmt.Sprintf("Order %s partially filled: %.4f of %.4f", order.ID, order.Quantity, requested))
	e.logger.Warn("Order partially filled",
		zap.String("order_id", order.ID),
		zap.Float64("filled", order.Quantity),
		zap.Float64("requested", requested),
	)
}

func orderTypeOrDefault(orderType types.OrderType) types.OrderType {
	if orderType == "" {
		return types.OrderTypeMarket
	}

	return orderType
}
