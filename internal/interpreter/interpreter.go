// Package interpreter ties the lexer, parser and executor together behind a
// validate/execute facade.
package interpreter

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rxtech-lab/algoscript/internal/ast"
	"github.com/rxtech-lab/algoscript/internal/exchange"
	"github.com/rxtech-lab/algoscript/internal/executor"
	"github.com/rxtech-lab/algoscript/internal/lexer"
	"github.com/rxtech-lab/algoscript/internal/logger"
	"github.com/rxtech-lab/algoscript/internal/marketdata"
	"github.com/rxtech-lab/algoscript/internal/parser"
	"github.com/rxtech-lab/algoscript/internal/types"
	"go.uber.org/zap"
)

// DefaultSymbol is traded when neither the request nor the program names one.
const DefaultSymbol = "ETHUSD"

// FeedFactory builds the feed a run loads its market from.
type FeedFactory func(symbol string) (marketdata.Feed, error)

// Request is one program submitted for execution.
type Request struct {
	Code string `json:"code"`
	// Symbol overrides the program's SYMBOL for market data when set.
	Symbol         string  `json:"symbol,omitempty"`
	InitialBalance float64 `json:"initial_balance"`
}

// ValidationResult reports whether a program lexes and parses.
type ValidationResult struct {
	Valid    bool          `json:"valid"`
	Errors   []string      `json:"errors"`
	Warnings []string      `json:"warnings"`
	AST      *ast.Strategy `json:"ast,omitempty"`
}

// Interpreter holds no run state. Every execute call builds its own engine
// and executor, so one Interpreter may serve concurrent requests.
type Interpreter struct {
	feeds   FeedFactory
	history int
	placer  exchange.OrderPlacer
	logger  *logger.Logger
	clock   func() time.Time
	observe EventObserver
}

// EventObserver is called with every result ExecuteWithEvents produces.
type EventObserver func(event string, result types.ExecutionResult)

type Option func(*Interpreter)

func WithFeedFactory(factory FeedFactory) Option {
	return func(i *Interpreter) {
		if factory != nil {
			i.feeds = factory
		}
	}
}

// WithHistory sets how many candles each run's engine loads.
func WithHistory(n int) Option {
	return func(i *Interpreter) {
		if n > 0 {
			i.history = n
		}
	}
}

// WithOrderPlacer routes every run's orders through placer.
func WithOrderPlacer(placer exchange.OrderPlacer) Option {
	return func(i *Interpreter) {
		i.placer = placer
	}
}

func WithLogger(log *logger.Logger) Option {
	return func(i *Interpreter) {
		if log != nil {
			i.logger = log
		}
	}
}

func WithClock(clock func() time.Time) Option {
	return func(i *Interpreter) {
		i.clock = clock
	}
}

// WithEventObserver reports progress through multi-event runs.
func WithEventObserver(observe EventObserver) Option {
	return func(i *Interpreter) {
		i.observe = observe
	}
}

// New creates an interpreter. Without WithFeedFactory runs use a synthetic feed.
func New(opts ...Option) *Interpreter {
	interpreter := &Interpreter{
		feeds:   SyntheticFeeds,
		history: marketdata.DefaultHistory,
		placer:  nil,
		logger:  logger.NewNopLogger(),
		clock:   nil,
		observe: nil,
	}

	for _, opt := range opts {
		opt(interpreter)
	}

	return interpreter
}

// SyntheticFeeds is a FeedFactory producing a fresh synthetic walk per run.
func SyntheticFeeds(_ string) (marketdata.Feed, error) {
	return marketdata.NewSyntheticFeed(marketdata.DefaultSyntheticConfig()), nil
}

// Validate lexes and parses code without executing it.
func (i *Interpreter) Validate(code string) (result ValidationResult) {
	defer func() {
		if r := recover(); r != nil {
			result = invalid(fmt.Sprintf("Unexpected validation error: %v", r))
		}
	}()

	tokens := lexer.Tokenize(code)
	if errs := lexer.ValidateTokens(tokens); len(errs) > 0 {
		return ValidationResult{Valid: false, Errors: errs, Warnings: []string{}, AST: nil}
	}

	strategy, err := parser.Parse(tokens)
	if err != nil {
		return invalid(err.Error())
	}

	warnings := []string{}

	if strategy.Symbol == "" {
		warnings = append(warnings, "No SYMBOL declaration found")
	}

	if strategy.Timeframe == "" {
		warnings = append(warnings, "No TIMEFRAME declaration found")
	}

	if len(strategy.EventHandlers) == 0 {
		warnings = append(warnings, "No event handlers defined")
	}

	return ValidationResult{Valid: true, Errors: []string{}, Warnings: warnings, AST: strategy}
}

func invalid(message string) ValidationResult {
	return ValidationResult{Valid: false, Errors: []string{message}, Warnings: []string{}, AST: nil}
}

// Execute validates the program and runs its NEW_CANDLE handlers once
// against freshly loaded market data. The market is not advanced.
func (i *Interpreter) Execute(ctx context.Context, request Request) types.ExecutionResult {
	run, failure, ok := i.prepare(ctx, request)
	if !ok {
		return failure
	}

	i.logger.Info("Executing strategy",
		zap.String("run_id", run.RunID()),
		zap.String("symbol", run.Engine().Symbol()),
	)

	return run.Execute(ctx, types.EventNewCandle)
}

// ExecuteWithEvents validates the program once and simulates each event in
// order on a single executor. It stops after the first unsuccessful result,
// which is the last element of the returned slice.
func (i *Interpreter) ExecuteWithEvents(ctx context.Context, request Request, events []string) []types.ExecutionResult {
	run, failure, ok := i.prepare(ctx, request)
	if !ok {
		return []types.ExecutionResult{failure}
	}

	i.logger.Info("Executing strategy",
		zap.String("run_id", run.RunID()),
		zap.String("symbol", run.Engine().Symbol()),
		zap.Strings("events", events),
	)

	results := make([]types.ExecutionResult, 0, len(events))

	for _, name := range events {
		event, err := types.ParseEventType(name)
		if err != nil {
			failed := types.Failed(fmt.Sprintf("Unknown event type: %s", name))
			failed.TradingState = run.State()
			results = append(results, failed)
			i.notify(name, failed)

			break
		}

		result := run.SimulateEvent(ctx, event)
		results = append(results, result)
		i.notify(name, result)

		if !result.Success {
			i.logger.Warn("Strategy run stopped",
				zap.String("run_id", run.RunID()),
				zap.String("event", name),
				zap.String("error", result.Error),
			)

			break
		}
	}

	return results
}

func (i *Interpreter) notify(event string, result types.ExecutionResult) {
	if i.observe != nil {
		i.observe(event, result)
	}
}

// prepare validates the request and builds its executor. When ok is false
// the returned result describes the failure.
func (i *Interpreter) prepare(ctx context.Context, request Request) (*executor.Executor, types.ExecutionResult, bool) {
	validation := i.Validate(request.Code)
	if !validation.Valid {
		return nil, types.Failed("Validation failed: " + strings.Join(validation.Errors, ", ")), false
	}

	balance := request.InitialBalance
	if balance == 0 {
		balance = executor.DefaultInitialBalance
	}

	if balance < 0 {
		return nil, types.Failed(fmt.Sprintf("Execution error: initial balance must not be negative, got %.2f", balance)), false
	}

	symbol := request.Symbol
	if symbol == "" {
		symbol = validation.AST.Symbol
	}

	if symbol == "" {
		symbol = DefaultSymbol
	}

	feed, err := i.feeds(symbol)
	if err != nil {
		return nil, types.Failed(fmt.Sprintf("Execution error: %v", err)), false
	}

	engine, err := marketdata.NewEngine(ctx, symbol, feed,
		marketdata.WithHistory(i.history),
		marketdata.WithEngineLogger(i.logger),
	)
	if err != nil {
		i.logger.Error("Failed to load market data", zap.String("symbol", symbol), zap.Error(err))

		return nil, types.Failed(fmt.Sprintf("Execution error: %v", err)), false
	}

	opts := []executor.Option{executor.WithLogger(i.logger), executor.WithClock(i.clock)}
	if i.placer != nil {
		opts = append(opts, executor.WithOrderPlacer(i.placer))
	}

	return executor.New(validation.AST, engine, balance, opts...), types.ExecutionResult{}, true
}

// ExampleCode returns a complete sample program.
func (i *Interpreter) ExampleCode() string {
	return exampleCode
}

const exampleCode = `SYMBOL "ETHUSD" TIMEFRAME "4H"

ON NEW_CANDLE:
    IF PRICE CROSSES EMA(50) UPWARDS AND MACD_HISTOGRAM(DAILY) IS POSITIVE
        BUY 50% OF BALANCE WITH MARKET_ORDER
        SET STOP_LOSS AT 5% BELOW ENTRY_PRICE
        LOG "BUY SIGNAL: Golden Cross confirmed by MACD."

ON ORDER_FILLED:
    SET TAKE_PROFIT AT 10% ABOVE ENTRY_PRICE
    LOG "ORDER FILLED. Take-Profit set."

ON PRICE_CHANGE:
    IF PRICE IS LESS_THAN ENTRY_PRICE
        SELL 100% OF POSITION WITH MARKET_ORDER
        LOG "STOP_LOSS triggered."

END`
