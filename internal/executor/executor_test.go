package executor

import (
	"context"
	"errors"
	"math/rand"
	"strings"
	"testing"
	"time"

	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/algoscript/internal/ast"
	"github.com/rxtech-lab/algoscript/internal/exchange"
	"github.com/rxtech-lab/algoscript/internal/lexer"
	"github.com/rxtech-lab/algoscript/internal/logger"
	"github.com/rxtech-lab/algoscript/internal/marketdata"
	"github.com/rxtech-lab/algoscript/internal/parser"
	"github.com/rxtech-lab/algoscript/internal/types"
	"github.com/rxtech-lab/algoscript/mocks"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type ExecutorTestSuite struct {
	suite.Suite
	ctx   context.Context
	clock func() time.Time
}

func TestExecutorSuite(t *testing.T) {
	suite.Run(t, new(ExecutorTestSuite))
}

func (suite *ExecutorTestSuite) SetupTest() {
	suite.ctx = context.Background()
	suite.clock = func() time.Time { return time.Date(2025, 3, 1, 12, 34, 56, 0, time.UTC) }
}

func flatCandles(n int, price float64) []types.Candle {
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	candles := make([]types.Candle, n)

	for i := range candles {
		candles[i] = types.Candle{
			Symbol: "ETHUSD",
			Time:   base.Add(time.Duration(i) * 4 * time.Hour),
			Open:   price,
			High:   price,
			Low:    price,
			Close:  price,
			Volume: 5000,
		}
	}

	return candles
}

func (suite *ExecutorTestSuite) parse(source string) *ast.Strategy {
	strategy, err := parser.Parse(lexer.Tokenize(source))
	suite.Require().NoError(err)

	return strategy
}

func (suite *ExecutorTestSuite) newExecutor(source string, engine *marketdata.Engine, opts ...Option) *Executor {
	opts = append([]Option{WithClock(suite.clock)}, opts...)

	return New(suite.parse(source), engine, DefaultInitialBalance, opts...)
}

// assertEntryInvariant checks that an entry price exists exactly when a position is open.
func (suite *ExecutorTestSuite) assertEntryInvariant(state *types.TradingState) {
	suite.Equal(state.PositionSize > 0, state.EntryPrice.IsSome(), "entry price must be set iff a position is open")
	suite.GreaterOrEqual(state.Balance, 0.0)
}

func containsLog(logs []string, fragment string) bool {
	for _, l := range logs {
		if strings.Contains(l, fragment) {
			return true
		}
	}

	return false
}

const buyHalfSource = `SYMBOL "ETHUSD" TIMEFRAME "4H"
ON NEW_CANDLE:
    BUY 50% OF BALANCE WITH MARKET_ORDER
END`

func (suite *ExecutorTestSuite) TestScenarioBuyHalfOfBalance() {
	executor := suite.newExecutor(buyHalfSource, marketdata.NewEngineFromCandles("ETHUSD", flatCandles(60, 2000)))

	result := executor.Execute(suite.ctx, types.EventNewCandle)
	suite.Require().True(result.Success)

	state := result.TradingState
	suite.Greater(state.PositionSize, 0.0)
	suite.InDelta(2.5, state.PositionSize, 1e-9)
	suite.InDelta(10000-state.PositionSize*state.EntryPrice.Unwrap(), state.Balance, 1e-6)

	suite.Require().Len(state.Orders, 1)
	suite.Equal(types.OrderSideBuy, state.Orders[0].Side)
	suite.Equal(types.OrderStatusFilled, state.Orders[0].Status)
	suite.Equal(types.OrderTypeMarket, state.Orders[0].OrderType)
	suite.Equal(types.OrderReasonStrategy, state.Orders[0].Reason)
	suite.NoError(state.Orders[0].Validate())

	suite.Equal([]string{"BUY: {'amount_percentage': 50.0, 'amount_type': 'BALANCE', 'order_type': 'MARKET_ORDER'}"}, result.ExecutedActions)
	suite.True(containsLog(result.Logs, "BUY MARKET ORDER: 2.5000 ETHUSD at $2000.00"))
	suite.True(containsLog(result.Logs, "Remaining balance: $5000.00"))
	suite.assertEntryInvariant(state)
}

func (suite *ExecutorTestSuite) TestScenarioStopLossForcesSell() {
	source := `SYMBOL "ETHUSD" TIMEFRAME "4H"
ON NEW_CANDLE:
    IF PRICE GREATER_THAN 1950
        BUY 50% OF BALANCE WITH MARKET_ORDER
ON ORDER_FILLED:
    SET STOP_LOSS AT 5% BELOW ENTRY_PRICE
END`

	ctrl := gomock.NewController(suite.T())
	feed := mocks.NewMockFeed(ctrl)

	history := flatCandles(60, 2000)
	collapse := history[len(history)-1]
	collapse.Time = collapse.Time.Add(4 * time.Hour)
	collapse.Close = 1800
	collapse.Low = 1800

	feed.EXPECT().History(gomock.Any(), "ETHUSD", marketdata.DefaultHistory).Return(history, nil)
	feed.EXPECT().Next(gomock.Any(), "ETHUSD", history[len(history)-1]).Return(collapse, nil)

	engine, err := marketdata.NewEngine(suite.ctx, "ETHUSD", feed)
	suite.Require().NoError(err)

	executor := suite.newExecutor(source, engine)

	result := executor.Execute(suite.ctx, types.EventNewCandle)
	suite.Require().True(result.Success)
	suite.InDelta(2.5, result.TradingState.PositionSize, 1e-9)

	result = executor.Execute(suite.ctx, types.EventOrderFilled)
	suite.Require().True(result.Success)
	suite.InDelta(1900, result.TradingState.StopLoss.Unwrap(), 1e-9)
	suite.True(containsLog(result.Logs, "STOP_LOSS set at $1900.00 (5.0% BELOW entry price)"))

	result = executor.SimulateEvent(suite.ctx, types.EventNewCandle)
	suite.Require().True(result.Success)

	state := result.TradingState
	suite.Equal(0.0, state.PositionSize)
	suite.True(state.StopLoss.IsNone())
	suite.True(state.TakeProfit.IsNone())
	suite.True(state.EntryPrice.IsNone())
	suite.InDelta(5000+2.5*1800, state.Balance, 1e-6)

	suite.Require().Len(state.Orders, 2)
	suite.Equal(types.OrderSideSell, state.Orders[1].Side)
	suite.Equal(types.OrderReasonStopLoss, state.Orders[1].Reason)

	suite.Contains(result.Logs[0], "STOP LOSS TRIGGERED at $1800.00")
	suite.True(containsLog(result.Logs, "P&L: $-500.00 (-10.00%)"))
	suite.True(containsLog(result.Logs, "Conditions not met, skipping actions"))
	// forced sells are not strategy actions
	suite.Empty(result.ExecutedActions)
	suite.assertEntryInvariant(state)
}

func (suite *ExecutorTestSuite) TestTakeProfitTriggers() {
	source := `SYMBOL "ETHUSD" TIMEFRAME "4H"
ON NEW_CANDLE:
    BUY 1 WITH MARKET_ORDER
    SET TAKE_PROFIT AT 10% ABOVE ENTRY_PRICE
END`

	engine := marketdata.NewEngineFromCandles("ETHUSD", flatCandles(10, 2000))
	executor := suite.newExecutor(source, engine)

	result := executor.Execute(suite.ctx, types.EventNewCandle)
	suite.InDelta(2200, result.TradingState.TakeProfit.Unwrap(), 1e-9)

	suite.Empty(executor.CheckStopLossTakeProfit(suite.ctx))

	engine.SimulatePriceChange(10)

	suite.Equal([]string{"TAKE_PROFIT"}, executor.CheckStopLossTakeProfit(suite.ctx))

	state := executor.State()
	suite.Equal(0.0, state.PositionSize)
	suite.True(state.TakeProfit.IsNone())
	suite.Equal(types.OrderReasonTakeProfit, state.Orders[1].Reason)
	suite.InDelta(10000+200, state.Balance, 1e-6)
}

func (suite *ExecutorTestSuite) TestBuyNeverOverdrawsBalance() {
	source := `SYMBOL "ETHUSD" TIMEFRAME "4H"
ON NEW_CANDLE:
    BUY 60% OF BALANCE WITH MARKET_ORDER
    BUY 3 WITH MARKET_ORDER
    BUY 100% OF BALANCE WITH LIMIT_ORDER
    BUY 1
END`

	executor := suite.newExecutor(source, marketdata.NewEngineFromCandles("ETHUSD", flatCandles(10, 1987.654321)))

	for i := 0; i < 3; i++ {
		result := executor.Execute(suite.ctx, types.EventNewCandle)
		suite.Require().True(result.Success)
		suite.Len(result.ExecutedActions, 4)

		state := result.TradingState
		suite.GreaterOrEqual(state.Balance, 0.0)
		suite.assertEntryInvariant(state)
	}

	state := executor.State()
	suite.True(containsLog(state.Logs, "Insufficient balance. Required: $5962.96"))
	suite.True(containsLog(state.Logs, "BUY LIMIT ORDER:"))

	for _, order := range state.Orders {
		suite.Equal(types.OrderStatusFilled, order.Status)
	}
}

func (suite *ExecutorTestSuite) TestInvalidBuyParameters() {
	source := `SYMBOL "ETHUSD" TIMEFRAME "4H"
ON NEW_CANDLE:
    BUY 50% WITH MARKET_ORDER
    BUY WITH MARKET_ORDER
END`

	executor := suite.newExecutor(source, marketdata.NewEngineFromCandles("ETHUSD", flatCandles(10, 2000)))

	result := executor.Execute(suite.ctx, types.EventNewCandle)
	suite.True(result.Success)
	suite.Equal(2, strings.Count(strings.Join(result.Logs, "\n"), "Invalid BUY parameters"))
	suite.Len(result.ExecutedActions, 2)
	suite.Empty(result.TradingState.Orders)
}

func (suite *ExecutorTestSuite) TestSellWhileFlat() {
	source := `SYMBOL "ETHUSD" TIMEFRAME "4H"
ON NEW_CANDLE:
    SELL 100% OF POSITION WITH MARKET_ORDER
END`

	executor := suite.newExecutor(source, marketdata.NewEngineFromCandles("ETHUSD", flatCandles(10, 2000)))

	result := executor.Execute(suite.ctx, types.EventNewCandle)
	suite.True(result.Success)
	suite.True(containsLog(result.Logs, "No position to sell"))
	suite.Equal([]string{"SELL: {'amount_percentage': 100.0, 'amount_type': 'POSITION', 'order_type': 'MARKET_ORDER'}"}, result.ExecutedActions)
	suite.Empty(result.TradingState.Orders)
	suite.Equal(10000.0, result.TradingState.Balance)
}

func (suite *ExecutorTestSuite) TestPartialAndFullSell() {
	source := `SYMBOL "ETHUSD" TIMEFRAME "4H"
ON NEW_CANDLE:
    BUY 2 WITH MARKET_ORDER
    SET STOP_LOSS AT 5% BELOW ENTRY_PRICE
ON PRICE_CHANGE:
    SELL 50% OF POSITION WITH MARKET_ORDER
ON ORDER_FILLED:
    SELL 10 WITH MARKET_ORDER
END`

	executor := suite.newExecutor(source, marketdata.NewEngineFromCandles("ETHUSD", flatCandles(10, 2000)))

	executor.Execute(suite.ctx, types.EventNewCandle)

	result := executor.Execute(suite.ctx, types.EventPriceChange)
	state := result.TradingState
	suite.InDelta(1, state.PositionSize, 1e-12)
	suite.Equal(2000.0, state.EntryPrice.Unwrap())
	suite.True(state.StopLoss.IsSome())
	suite.InDelta(8000, state.Balance, 1e-9)
	suite.assertEntryInvariant(state)

	// an absolute amount above the position sells what is there
	result = executor.Execute(suite.ctx, types.EventOrderFilled)
	state = result.TradingState
	suite.Equal(0.0, state.PositionSize)
	suite.True(state.EntryPrice.IsNone())
	suite.True(state.StopLoss.IsNone())
	suite.InDelta(10000, state.Balance, 1e-9)
	suite.InDelta(1, state.Orders[2].Quantity, 1e-12)
	suite.assertEntryInvariant(state)
}

func (suite *ExecutorTestSuite) TestSetWithoutPosition() {
	source := `SYMBOL "ETHUSD" TIMEFRAME "4H"
ON NEW_CANDLE:
    SET STOP_LOSS AT 5% BELOW ENTRY_PRICE
    SET TAKE_PROFIT AT 10% ABOVE ENTRY_PRICE
END`

	executor := suite.newExecutor(source, marketdata.NewEngineFromCandles("ETHUSD", flatCandles(10, 2000)))

	result := executor.Execute(suite.ctx, types.EventNewCandle)
	suite.True(result.Success)
	suite.True(containsLog(result.Logs, "No open position, STOP_LOSS not set"))
	suite.True(containsLog(result.Logs, "No open position, TAKE_PROFIT not set"))
	suite.True(result.TradingState.StopLoss.IsNone())
	suite.True(result.TradingState.TakeProfit.IsNone())
	suite.Len(result.ExecutedActions, 2)
}

func (suite *ExecutorTestSuite) TestSetDefaults() {
	engine := marketdata.NewEngineFromCandles("ETHUSD", flatCandles(10, 2000))
	executor := New(&ast.Strategy{Symbol: "ETHUSD", Timeframe: "4H"}, engine, DefaultInitialBalance, WithClock(suite.clock))
	executor.state.PositionSize = 1
	executor.state.EntryPrice = optional.Some(2000.0)

	executor.set(ast.SetAction{Target: ast.TargetStopLoss, Percentage: optional.Some(5.0)})
	suite.InDelta(1900, executor.state.StopLoss.Unwrap(), 1e-9)

	executor.set(ast.SetAction{Target: ast.TargetTakeProfit, Percentage: optional.Some(5.0)})
	suite.InDelta(2100, executor.state.TakeProfit.Unwrap(), 1e-9)

	executor.set(ast.SetAction{Target: ast.TargetStopLoss, Percentage: optional.Some(5.0), Direction: ast.DirectionAbove, Base: "ENTRY_PRICE"})
	suite.InDelta(2100, executor.state.StopLoss.Unwrap(), 1e-9)

	executor.set(ast.SetAction{Target: ast.TargetTakeProfit, Percentage: optional.Some(1.0), Direction: ast.DirectionAbove, Base: "PRICE"})
	suite.InDelta(2100, executor.state.TakeProfit.Unwrap(), 1e-9)
	suite.True(containsLog(executor.logs, "Unsupported TAKE_PROFIT base: PRICE"))

	executor.set(ast.SetAction{Target: ast.TargetStopLoss, Percentage: optional.None[float64]()})
	suite.InDelta(2000, executor.state.StopLoss.Unwrap(), 1e-9)
}

func (suite *ExecutorTestSuite) TestLogsMirroredToLogger() {
	core, logs := observer.New(zapcore.InfoLevel)
	source := `SYMBOL "ETHUSD" TIMEFRAME "4H"
ON NEW_CANDLE:
    LOG "mirrored"
END`

	executor := suite.newExecutor(source, marketdata.NewEngineFromCandles("ETHUSD", flatCandles(10, 2000)),
		WithLogger(&logger.Logger{Logger: zap.New(core)}),
		WithRunID("run-42"),
	)
	executor.Execute(suite.ctx, types.EventNewCandle)

	entries := logs.FilterMessage("STRATEGY LOG: mirrored").All()
	suite.Require().Len(entries, 1)
	suite.Equal(map[string]any{"symbol": "ETHUSD", "run_id": "run-42"}, entries[0].ContextMap())
}

func (suite *ExecutorTestSuite) TestLogAction() {
	source := `SYMBOL "ETHUSD" TIMEFRAME "4H"
ON NEW_CANDLE:
    LOG "hello world"
END`

	executor := suite.newExecutor(source, marketdata.NewEngineFromCandles("ETHUSD", flatCandles(10, 2000)))

	result := executor.Execute(suite.ctx, types.EventNewCandle)
	suite.Equal([]string{
		"[12:34:56] === AlgoScript Execution Started ===",
		"[12:34:56] Symbol: ETHUSD, Timeframe: 4H",
		"[12:34:56] Event: NEW_CANDLE",
		"[12:34:56] Current Price: $2000.00",
		"[12:34:56] Balance: $10000.00",
		"[12:34:56] \n--- Processing NEW_CANDLE handler ---",
		"[12:34:56] \nExecuting action: LOG",
		"[12:34:56] STRATEGY LOG: hello world",
		"[12:34:56] === AlgoScript Execution Completed ===",
	}, result.Logs)
	suite.Equal([]string{"LOG: {'message': 'hello world'}"}, result.ExecutedActions)
	suite.Equal(result.Logs, executor.State().Logs)
}

func (suite *ExecutorTestSuite) TestNoHandlersForEvent() {
	executor := suite.newExecutor(buyHalfSource, marketdata.NewEngineFromCandles("ETHUSD", flatCandles(10, 2000)))

	result := executor.Execute(suite.ctx, types.EventPriceChange)
	suite.True(result.Success)
	suite.Equal("[12:34:56] No handlers found for event: PRICE_CHANGE", result.Logs[len(result.Logs)-1])
	suite.False(containsLog(result.Logs, "Execution Completed"))
	suite.Empty(result.ExecutedActions)
}

func (suite *ExecutorTestSuite) TestConditionsAreConjunctive() {
	source := `SYMBOL "ETHUSD" TIMEFRAME "4H"
ON NEW_CANDLE:
    IF PRICE GREATER_THAN 100
    IF PRICE LESS_THAN 100
        LOG "both"
END`

	executor := suite.newExecutor(source, marketdata.NewEngineFromCandles("ETHUSD", flatCandles(10, 2000)))

	result := executor.Execute(suite.ctx, types.EventNewCandle)
	suite.True(containsLog(result.Logs, "Conditions not met, skipping actions"))
	suite.True(containsLog(result.Logs, "Evaluating: PRICE GREATER_THAN 100"))
	suite.True(containsLog(result.Logs, "Values: 2000.0 GREATER_THAN 100.0"))
	suite.True(containsLog(result.Logs, "Condition result: true"))
	suite.True(containsLog(result.Logs, "Condition result: false"))
	suite.Empty(result.ExecutedActions)
}

func (suite *ExecutorTestSuite) TestComparisonAfterOrDoesNotBlockHandler() {
	source := `SYMBOL "ETHUSD" TIMEFRAME "4H"
ON NEW_CANDLE:
    IF PRICE GREATER_THAN 100 OR PRICE LESS_THAN 100
        BUY 1
END`

	executor := suite.newExecutor(source, marketdata.NewEngineFromCandles("ETHUSD", flatCandles(10, 2000)))

	result := executor.Execute(suite.ctx, types.EventNewCandle)
	suite.True(result.Success)
	suite.False(containsLog(result.Logs, "Conditions not met, skipping actions"))
	suite.False(containsLog(result.Logs, "Evaluating: PRICE LESS_THAN 100"))
	suite.Len(result.ExecutedActions, 1)
	suite.Require().Len(result.TradingState.Orders, 1)
	suite.InDelta(1.0, result.TradingState.PositionSize, 1e-9)
}

func (suite *ExecutorTestSuite) TestZeroPeriodUsesIndicatorDefault() {
	candles := flatCandles(60, 0)
	for i := range candles {
		candles[i].Close = 2000 + float64((i%5)-2)*float64(i)
	}

	engine := marketdata.NewEngineFromCandles("ETHUSD", candles)
	executor := New(&ast.Strategy{Symbol: "ETHUSD"}, engine, DefaultInitialBalance)

	ema50, err := engine.EMA(50)
	suite.Require().NoError(err)
	rsi14, err := engine.RSI(14)
	suite.Require().NoError(err)

	for _, period := range []optional.Option[int]{optional.None[int](), optional.Some(0), optional.Some(-3)} {
		ema, err := executor.resolveIndicator(ast.IndicatorCall{Name: types.IndicatorTypeEMA, Period: period})
		suite.Require().NoError(err)
		suite.Equal(ema50, ema)

		rsi, err := executor.resolveIndicator(ast.IndicatorCall{Name: types.IndicatorTypeRSI, Period: period})
		suite.Require().NoError(err)
		suite.Equal(rsi14, rsi)
	}
}

func (suite *ExecutorTestSuite) TestApplyOperators() {
	candles := flatCandles(2, 0)
	candles[0].Close = 90
	candles[1].Close = 110

	executor := New(&ast.Strategy{Symbol: "ETHUSD"}, marketdata.NewEngineFromCandles("ETHUSD", candles), DefaultInitialBalance)

	tests := []struct {
		left     float64
		operator string
		right    float64
		expected bool
	}{
		{left: 0, operator: ast.OpCrossesUpwards, right: 100, expected: true},
		{left: 0, operator: ast.OpCrossesDownwards, right: 100, expected: false},
		{left: 1, operator: ast.OpIsPositive, right: 0, expected: true},
		{left: -1, operator: ast.OpIsPositive, right: 0, expected: false},
		{left: -1, operator: ast.OpIsNegative, right: 0, expected: true},
		{left: 1, operator: ast.OpLessThan, right: 2, expected: true},
		{left: 2, operator: ast.OpIsLessThan, right: 2, expected: false},
		{left: 3, operator: ast.OpGreaterThan, right: 2, expected: true},
		{left: 3, operator: ast.OpIsGreaterThan, right: 2, expected: true},
		{left: 1.0005, operator: ast.OpIs, right: 1, expected: true},
		{left: 1.01, operator: ast.OpIs, right: 1, expected: false},
		{left: 1, operator: "IS_WITHIN", right: 1, expected: false},
	}

	for _, tc := range tests {
		suite.Equal(tc.expected, executor.apply(tc.left, tc.operator, tc.right), "%v %s %v", tc.left, tc.operator, tc.right)
	}
}

func (suite *ExecutorTestSuite) TestResolve() {
	candles := flatCandles(60, 2000)
	engine := marketdata.NewEngineFromCandles("ETHUSD", candles)
	executor := New(&ast.Strategy{Symbol: "ETHUSD"}, engine, 1234)

	value, err := executor.resolve(ast.NumberRef{Value: 0.05})
	suite.NoError(err)
	suite.Equal(0.05, value)

	value, _ = executor.resolve(ast.StateRef{Name: ast.StatePrice})
	suite.Equal(2000.0, value)

	value, _ = executor.resolve(ast.StateRef{Name: ast.StateBalance})
	suite.Equal(1234.0, value)

	value, _ = executor.resolve(ast.StateRef{Name: ast.StateEntryPrice})
	suite.Equal(0.0, value)

	value, err = executor.resolve(ast.IndicatorCall{Name: types.IndicatorTypeEMA, Period: optional.None[int](), Timeframe: optional.None[string]()})
	suite.NoError(err)

	ema, _ := engine.EMA(50)
	suite.Equal(ema, value)

	value, err = executor.resolve(ast.IndicatorCall{Name: types.IndicatorTypeRSI, Period: optional.Some(7), Timeframe: optional.None[string]()})
	suite.NoError(err)

	rsi, _ := engine.RSI(7)
	suite.Equal(rsi, value)

	value, _ = executor.resolve(ast.IndicatorCall{Name: types.IndicatorTypeVolume})
	suite.Equal(5000.0, value)

	value, _ = executor.resolve(ast.IndicatorCall{Name: types.IndicatorTypeMACDHistogram, Timeframe: optional.Some("DAILY")})
	suite.InDelta(0, value, 1e-9)

	value, _ = executor.resolve(ast.RawRef{Text: "12.5"})
	suite.Equal(12.5, value)

	value, _ = executor.resolve(ast.RawRef{Text: "balance"})
	suite.Equal(1234.0, value)

	value, err = executor.resolve(ast.RawRef{Text: "MOON"})
	suite.NoError(err)
	suite.Equal(0.0, value)
	suite.True(containsLog(executor.logs, "Could not resolve value 'MOON', using 0"))

	_, err = executor.resolve(nil)
	suite.Error(err)
}

func (suite *ExecutorTestSuite) TestConditionErrorIsFalse() {
	strategy := &ast.Strategy{
		Symbol:    "ETHUSD",
		Timeframe: "4H",
		EventHandlers: []ast.EventHandler{{
			EventType:  types.EventNewCandle,
			Conditions: []ast.Condition{{Left: nil, Operator: ast.OpIsPositive, Right: ast.NumberRef{Value: 0}}},
			Actions:    []ast.Action{ast.LogAction{Message: "never"}},
		}},
	}

	executor := New(strategy, marketdata.NewEngineFromCandles("ETHUSD", flatCandles(5, 2000)), DefaultInitialBalance)

	result := executor.Execute(suite.ctx, types.EventNewCandle)
	suite.True(result.Success)
	suite.True(containsLog(result.Logs, "Error evaluating condition"))
	suite.Empty(result.ExecutedActions)
}

func (suite *ExecutorTestSuite) TestPanicIsRecovered() {
	executor := New(suite.parse(buyHalfSource), nil, DefaultInitialBalance)

	result := executor.Execute(suite.ctx, types.EventNewCandle)
	suite.False(result.Success)
	suite.True(strings.HasPrefix(result.Error, "Execution error: "))
	suite.NotNil(result.TradingState)
}

func (suite *ExecutorTestSuite) TestSimulatePriceChangeNudge() {
	source := `SYMBOL "ETHUSD" TIMEFRAME "4H"
ON PRICE_CHANGE:
    LOG "tick"
END`

	low := marketdata.NewEngineFromCandles("ETHUSD", flatCandles(5, 2000))
	result := suite.newExecutor(source, low).SimulateEvent(suite.ctx, types.EventPriceChange)
	suite.True(result.Success)
	suite.InDelta(2010, low.CurrentPrice(), 1e-9)

	high := marketdata.NewEngineFromCandles("ETHUSD", flatCandles(5, 2100))
	suite.newExecutor(source, high).SimulateEvent(suite.ctx, types.EventPriceChange)
	suite.InDelta(2089.5, high.CurrentPrice(), 1e-9)

	same := marketdata.NewEngineFromCandles("ETHUSD", flatCandles(5, 2100))
	suite.newExecutor(source, same).SimulateEvent(suite.ctx, types.EventOrderFilled)
	suite.Equal(2100.0, same.CurrentPrice())
}

func (suite *ExecutorTestSuite) TestSimulateNewCandleFeedError() {
	ctrl := gomock.NewController(suite.T())
	feed := mocks.NewMockFeed(ctrl)

	history := flatCandles(5, 2000)
	feed.EXPECT().History(gomock.Any(), "ETHUSD", gomock.Any()).Return(history, nil)
	feed.EXPECT().Next(gomock.Any(), "ETHUSD", gomock.Any()).Return(types.Candle{}, errors.New("exchange closed"))

	engine, err := marketdata.NewEngine(suite.ctx, "ETHUSD", feed)
	suite.Require().NoError(err)

	executor := suite.newExecutor(buyHalfSource, engine)

	first := executor.Execute(suite.ctx, types.EventNewCandle)
	suite.Require().True(first.Success)
	suite.Require().Len(first.ExecutedActions, 1)

	result := executor.SimulateEvent(suite.ctx, types.EventNewCandle)
	suite.False(result.Success)
	suite.Equal("Market data error: exchange closed", result.Error)
	suite.Empty(result.ExecutedActions)
	suite.Len(result.TradingState.Orders, 1)
}

func (suite *ExecutorTestSuite) TestOrderPlacerFill() {
	ctrl := gomock.NewController(suite.T())
	placer := mocks.NewMockOrderPlacer(ctrl)

	placer.EXPECT().
		PlaceMarketOrder(gomock.Any(), "ETHUSD", types.OrderSideBuy, 2.5).
		Return(exchange.Fill{OrderID: "123", Status: types.OrderStatusFilled, Price: 2010, Quantity: 2.5}, nil)

	executor := suite.newExecutor(buyHalfSource, marketdata.NewEngineFromCandles("ETHUSD", flatCandles(5, 2000)), WithOrderPlacer(placer))

	result := executor.Execute(suite.ctx, types.EventNewCandle)
	state := result.TradingState
	suite.Equal(2010.0, state.EntryPrice.Unwrap())
	suite.InDelta(10000-2.5*2010, state.Balance, 1e-9)
	suite.Equal("123", state.Orders[0].ExchangeOrderID)
}

func (suite *ExecutorTestSuite) TestOrderPlacerOverspendClampsBalance() {
	source := `SYMBOL "ETHUSD" TIMEFRAME "4H"
ON NEW_CANDLE:
    BUY 100% OF BALANCE WITH MARKET_ORDER
END`

	ctrl := gomock.NewController(suite.T())
	placer := mocks.NewMockOrderPlacer(ctrl)
	placer.EXPECT().
		PlaceMarketOrder(gomock.Any(), "ETHUSD", types.OrderSideBuy, 5.0).
		Return(exchange.Fill{OrderID: "1", Status: types.OrderStatusFilled, Price: 2100, Quantity: 5}, nil)

	executor := suite.newExecutor(source, marketdata.NewEngineFromCandles("ETHUSD", flatCandles(5, 2000)), WithOrderPlacer(placer))

	result := executor.Execute(suite.ctx, types.EventNewCandle)
	suite.Equal(0.0, result.TradingState.Balance)
	suite.True(containsLog(result.Logs, "balance clamped to $0.00"))
	suite.assertEntryInvariant(result.TradingState)
}

func (suite *ExecutorTestSuite) TestOrderPlacerErrorsAndPending() {
	source := `SYMBOL "ETHUSD" TIMEFRAME "4H"
ON NEW_CANDLE:
    BUY 1 WITH MARKET_ORDER
    BUY 1 WITH LIMIT_ORDER AT PRICE
END`

	ctrl := gomock.NewController(suite.T())
	placer := mocks.NewMockOrderPlacer(ctrl)
	placer.EXPECT().
		PlaceMarketOrder(gomock.Any(), "ETHUSD", types.OrderSideBuy, 1.0).
		Return(exchange.Fill{}, errors.New("insufficient funds"))
	placer.EXPECT().
		PlaceLimitOrder(gomock.Any(), "ETHUSD", types.OrderSideBuy, 1.0, 2000.0).
		Return(exchange.Fill{OrderID: "9", Status: types.OrderStatusPending, Price: 2000, Quantity: 1}, nil)

	executor := suite.newExecutor(source, marketdata.NewEngineFromCandles("ETHUSD", flatCandles(5, 2000)), WithOrderPlacer(placer))

	result := executor.Execute(suite.ctx, types.EventNewCandle)
	suite.True(result.Success)
	suite.True(containsLog(result.Logs, "Order failed: insufficient funds"))
	suite.True(containsLog(result.Logs, "is PENDING, position unchanged"))

	state := result.TradingState
	suite.Equal(0.0, state.PositionSize)
	suite.Equal(10000.0, state.Balance)
	suite.Require().Len(state.Orders, 1)
	suite.Equal(types.OrderStatusPending, state.Orders[0].Status)
	suite.assertEntryInvariant(state)
}

func (suite *ExecutorTestSuite) TestOrderPlacerPartialFillUpdatesPosition() {
	source := `SYMBOL "ETHUSD" TIMEFRAME "4H"
ON NEW_CANDLE:
    BUY 2 WITH MARKET_ORDER
END`

	ctrl := gomock.NewController(suite.T())
	placer := mocks.NewMockOrderPlacer(ctrl)
	placer.EXPECT().
		PlaceMarketOrder(gomock.Any(), "ETHUSD", types.OrderSideBuy, 2.0).
		Return(exchange.Fill{OrderID: "5", Status: types.OrderStatusPartiallyFilled, Price: 2000, Quantity: 0.5}, nil)

	executor := suite.newExecutor(source, marketdata.NewEngineFromCandles("ETHUSD", flatCandles(5, 2000)), WithOrderPlacer(placer))

	result := executor.Execute(suite.ctx, types.EventNewCandle)
	suite.True(containsLog(result.Logs, "partially filled: 0.5000 of 2.0000"))
	suite.False(containsLog(result.Logs, "position unchanged"))

	state := result.TradingState
	suite.Equal(0.5, state.PositionSize)
	suite.Equal(9000.0, state.Balance)
	suite.Equal(2000.0, state.EntryPrice.Unwrap())
	suite.Require().Len(state.Orders, 1)
	suite.Equal(types.OrderStatusPartiallyFilled, state.Orders[0].Status)
	suite.assertEntryInvariant(state)
}

func (suite *ExecutorTestSuite) TestBuyFullBalanceNeverExceedsBalance() {
	strategy := suite.parse(`SYMBOL "ETHUSD" TIMEFRAME "4H"
ON NEW_CANDLE:
    BUY 100% OF BALANCE WITH MARKET_ORDER
END`)

	type pair struct{ price, balance float64 }

	pairs := []pair{{price: 5.1338, balance: 45850.785}}
	r := rand.New(rand.NewSource(42))

	for range 2000 {
		pairs = append(pairs, pair{price: 0.01 + r.Float64()*100000, balance: 1 + r.Float64()*1000000})
	}

	for _, p := range pairs {
		engine := marketdata.NewEngineFromCandles("ETHUSD", flatCandles(2, p.price))
		executor := New(strategy, engine, p.balance, WithClock(suite.clock))

		result := executor.Execute(suite.ctx, types.EventNewCandle)
		state := result.TradingState

		suite.Require().False(containsLog(result.Logs, "Insufficient balance"), "price %v balance %v", p.price, p.balance)
		suite.Require().Len(state.Orders, 1, "price %v balance %v", p.price, p.balance)
		suite.Positive(state.PositionSize)
		suite.Equal(0.0, state.Balance, "price %v balance %v", p.price, p.balance)
	}
}

func (suite *ExecutorTestSuite) TestBuyOverFullBalanceIsRejected() {
	source := `SYMBOL "ETHUSD" TIMEFRAME "4H"
ON NEW_CANDLE:
    BUY 150% OF BALANCE
END`

	executor := suite.newExecutor(source, marketdata.NewEngineFromCandles("ETHUSD", flatCandles(5, 2000)))

	result := executor.Execute(suite.ctx, types.EventNewCandle)
	suite.True(containsLog(result.Logs, "Insufficient balance. Required: $15000.00, Available: $10000.00"))
	suite.Empty(result.TradingState.Orders)
}

func (suite *ExecutorTestSuite) TestResultIsSnapshot() {
	executor := suite.newExecutor(buyHalfSource, marketdata.NewEngineFromCandles("ETHUSD", flatCandles(5, 2000)))

	result := executor.Execute(suite.ctx, types.EventNewCandle)
	result.TradingState.Balance = -1
	result.TradingState.Orders[0].Quantity = 99

	state := executor.State()
	suite.Equal(5000.0, state.Balance)
	suite.Equal(2.5, state.Orders[0].Quantity)
}
