package server

import (
	"context"
	"strings"
	"sync"

	"github.com/rxtech-lab/algoscript/internal/interpreter"
	"github.com/rxtech-lab/algoscript/internal/logger"
	"github.com/rxtech-lab/algoscript/internal/marketdata"
	"github.com/rxtech-lab/algoscript/internal/types"
)

// marketSet owns the engines behind the market data endpoints. They are never
// handed to strategy runs, which build their own.
type marketSet struct {
	feeds   interpreter.FeedFactory
	history int
	logger  *logger.Logger

	mu      sync.Mutex
	engines map[string]*market
}

// market serializes access to one symbol's engine.
type market struct {
	mu     sync.Mutex
	engine *marketdata.Engine
}

func newMarketSet(feeds interpreter.FeedFactory, history int, log *logger.Logger) *marketSet {
	return &marketSet{
		feeds:   feeds,
		history: history,
		logger:  log,
		engines: make(map[string]*market),
	}
}

// get returns the market for symbol, loading it on first use. A failed load
// is not cached.
func (s *marketSet) get(ctx context.Context, symbol string) (*market, error) {
	symbol = strings.ToUpper(symbol)

	s.mu.Lock()
	defer s.mu.Unlock()

	if m, ok := s.engines[symbol]; ok {
		return m, nil
	}

	feed, err := s.feeds(symbol)
	if err != nil {
		return nil, err
	}

	engine, err := marketdata.NewEngine(ctx, symbol, feed,
		marketdata.WithHistory(s.history),
		marketdata.WithEngineLogger(s.logger),
	)
	if err != nil {
		return nil, err
	}

	m := &market{engine: engine}
	s.engines[symbol] = m

	return m, nil
}

func (m *market) snapshot() (types.MarketSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.engine.Snapshot()
}

func (m *market) nextCandle(ctx context.Context) (types.Candle, float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	candle, err := m.engine.GenerateNextCandle(ctx)
	if err != nil {
		return types.Candle{}, 0, err
	}

	return candle, m.engine.CurrentPrice(), nil
}
