// Package executor runs a parsed strategy against one market data engine and
// one trading state.
package executor

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/rxtech-lab/algoscript/internal/ast"
	"github.com/rxtech-lab/algoscript/internal/exchange"
	"github.com/rxtech-lab/algoscript/internal/logger"
	"github.com/rxtech-lab/algoscript/internal/marketdata"
	"github.com/rxtech-lab/algoscript/internal/types"
	"go.uber.org/zap"
)

// DefaultInitialBalance is the cash a run starts with when none is given.
const DefaultInitialBalance = 10000.0

// priceChangeThreshold splits the simulated PRICE_CHANGE nudge: prices above it
// move down, the rest move up.
const (
	priceChangeThreshold = 2000.0
	priceChangePercent   = 0.5
)

// Executor drives one strategy through events. It owns its trading state and
// is not safe for concurrent use.
type Executor struct {
	strategy *ast.Strategy
	engine   *marketdata.Engine
	state    *types.TradingState
	placer   exchange.OrderPlacer
	logger   *logger.Logger
	clock    func() time.Time
	runID    string

	logs            []string
	executedActions []string
}

type Option func(*Executor)

// WithOrderPlacer routes BUY/SELL actions through placer instead of simulated fills.
func WithOrderPlacer(placer exchange.OrderPlacer) Option {
	return func(e *Executor) {
		e.placer = placer
	}
}

func WithLogger(log *logger.Logger) Option {
	return func(e *Executor) {
		if log != nil {
			e.logger = log
		}
	}
}

// WithClock overrides the clock used for log prefixes and order timestamps.
func WithClock(clock func() time.Time) Option {
	return func(e *Executor) {
		if clock != nil {
			e.clock = clock
		}
	}
}

// WithRunID tags mirrored log entries with id. It defaults to the trading state ID.
func WithRunID(id string) Option {
	return func(e *Executor) {
		e.runID = id
	}
}

// New creates an executor with a flat trading state holding initialBalance.
func New(strategy *ast.Strategy, engine *marketdata.Engine, initialBalance float64, opts ...Option) *Executor {
	state := types.NewTradingState(strategy.Symbol, initialBalance)
	executor := &Executor{
		strategy:        strategy,
		engine:          engine,
		state:           state,
		placer:          nil,
		logger:          logger.NewNopLogger(),
		clock:           func() time.Time { return time.Now().UTC() },
		runID:           state.ID,
		logs:            []string{},
		executedActions: []string{},
	}

	for _, opt := range opts {
		opt(executor)
	}

	executor.logger = executor.logger.With(
		zap.String("symbol", strategy.Symbol),
		zap.String("run_id", executor.runID),
	)

	return executor
}

// State returns a snapshot of the trading state.
func (e *Executor) State() *types.TradingState {
	return e.state.Clone()
}

func (e *Executor) Engine() *marketdata.Engine {
	return e.engine
}

func (e *Executor) RunID() string {
	return e.runID
}

// Execute runs every handler bound to event against the current market.
// A panic inside a handler is reported as an unsuccessful result.
func (e *Executor) Execute(ctx context.Context, event types.EventType) (result types.ExecutionResult) {
	e.logs = []string{}
	e.executedActions = []string{}

	defer func() {
		if r := recover(); r != nil {
			message := fmt.Sprintf("Execution error: %v", r)
			e.log(message)
			e.logger.Error("Strategy execution panicked",
				zap.String("event", string(event)),
				zap.Any("panic", r),
			)

			result = e.result(false, message)
		}
	}()

	e.log("=== AlgoScript Execution Started ===")
	e.log(fmt.Sprintf("Symbol: %s, Timeframe: %s", e.strategy.Symbol, e.strategy.Timeframe))
	e.log(fmt.Sprintf("Event: %s", event))
	e.log(fmt.Sprintf("Current Price: $%.2f", e.engine.CurrentPrice()))
	e.log(fmt.Sprintf("Balance: $%.2f", e.state.Balance))

	if !e.state.IsFlat() {
		e.log(fmt.Sprintf("Position: %.4f @ $%.2f", e.state.PositionSize, e.state.EntryPrice.TakeOr(0)))
	}

	handlers := e.strategy.HandlersFor(event)
	if len(handlers) == 0 {
		e.log(fmt.Sprintf("No handlers found for event: %s", event))

		return e.result(true, "")
	}

	for _, handler := range handlers {
		e.executeHandler(ctx, handler)
	}

	e.log("=== AlgoScript Execution Completed ===")

	return e.result(true, "")
}

// SimulateEvent advances the market for event, enforces stop-loss and
// take-profit, then executes the event's handlers. Trigger logs are placed
// ahead of the execution logs in the result.
func (e *Executor) SimulateEvent(ctx context.Context, event types.EventType) types.ExecutionResult {
	e.logs = []string{}
	e.executedActions = []string{}

	switch event {
	case types.EventNewCandle:
		if _, err := e.engine.GenerateNextCandle(ctx); err != nil {
			message := fmt.Sprintf("Market data error: %v", err)
			e.log(message)

			return e.result(false, message)
		}
	case types.EventPriceChange:
		change := priceChangePercent
		if e.engine.CurrentPrice() > priceChangeThreshold {
			change = -priceChangePercent
		}

		e.engine.SimulatePriceChange(change)
	case types.EventOrderFilled:
		// fills are applied synchronously, nothing to advance
	}

	e.CheckStopLossTakeProfit(ctx)
	triggerLogs := e.logs

	result := e.Execute(ctx, event)
	result.Logs = append(slices.Clone(triggerLogs), result.Logs...)

	return result
}

func (e *Executor) executeHandler(ctx context.Context, handler ast.EventHandler) {
	e.log(fmt.Sprintf("\n--- Processing %s handler ---", handler.EventType))

	// every listed condition must hold; AND/OR only chain the syntax
	for _, condition := range handler.Conditions {
		if !e.evaluateCondition(condition) {
			e.log("Conditions not met, skipping actions")

			return
		}
	}

	for _, action := range handler.Actions {
		e.executeAction(ctx, action)
	}
}

func (e *Executor) executeAction(ctx context.Context, action ast.Action) {
	e.log(fmt.Sprintf("\nExecuting action: %s", action.Kind()))

	switch a := action.(type) {
	case ast.BuyAction:
		e.buy(ctx, a)
	case ast.SellAction:
		e.sell(ctx, a, types.OrderReasonStrategy)
	case ast.SetAction:
		e.set(a)
	case ast.LogAction:
		e.log(fmt.Sprintf("STRATEGY LOG: %s", a.Message))
	}

	e.executedActions = append(e.executedActions, ast.Describe(action))
}

// log appends a timestamped entry to the call's log and the state's history
// and mirrors it to the structured logger.
func (e *Executor) log(message string) {
	entry := fmt.Sprintf("[%s] %s", e.clock().UTC().Format("15:04:05"), message)
	e.logs = append(e.logs, entry)
	e.state.Logs = append(e.state.Logs, entry)

	e.logger.Info(message)
}

func (e *Executor) result(success bool, message string) types.ExecutionResult {
	return types.ExecutionResult{
		Success:         success,
		Logs:            slices.Clone(e.logs),
		TradingState:    e.state.Clone(),
		Error:           message,
		ExecutedActions: slices.Clone(e.executedActions),
	}
}
