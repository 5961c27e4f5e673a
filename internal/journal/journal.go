// Package journal persists strategy runs and their orders in DuckDB.
package journal

import (
	"context"
	"database/sql"
	"time"

	"github.com/Masterminds/squirrel"
	_ "github.com/marcboeker/go-duckdb"
	"github.com/rxtech-lab/algoscript/internal/logger"
	"github.com/rxtech-lab/algoscript/internal/types"
	"github.com/rxtech-lab/algoscript/internal/version"
	"github.com/rxtech-lab/algoscript/pkg/errors"
	"go.uber.org/zap"
)

// InMemory is the path that opens a journal without a backing file.
const InMemory = ":memory:"

const versionKey = "version"

// RunSummary is one recorded strategy run.
type RunSummary struct {
	RunID        string    `json:"run_id"`
	Symbol       string    `json:"symbol"`
	StartedAt    time.Time `json:"started_at"`
	Events       int       `json:"events"`
	Success      bool      `json:"success"`
	FinalBalance float64   `json:"final_balance"`
	PositionSize float64   `json:"position_size"`
}

// Journal writes run summaries and orders. It is safe for concurrent use.
type Journal struct {
	db     *sql.DB
	logger *logger.Logger
	sq     squirrel.StatementBuilderType
}

// Open opens or creates the journal at path. An empty path or InMemory keeps
// everything in memory.
func Open(path string, log *logger.Logger) (*Journal, error) {
	if path == "" {
		path = InMemory
	}

	if log == nil {
		log = logger.NewNopLogger()
	}

	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrCodeJournalOpenFailed, err, "failed to open journal %s", path)
	}

	journal := &Journal{
		db:     db,
		logger: log,
		sq:     squirrel.StatementBuilder.PlaceholderFormat(squirrel.Question),
	}

	if err := journal.initialize(); err != nil {
		db.Close()

		return nil, err
	}

	return journal, nil
}

func (j *Journal) initialize() error {
	_, err := j.db.Exec(`
		CREATE TABLE IF NOT EXISTS runs (
			run_id TEXT PRIMARY KEY,
			symbol TEXT,
			started_at TIMESTAMP,
			events INTEGER,
			success BOOLEAN,
			final_balance DOUBLE,
			position_size DOUBLE
		)
	`)
	if err != nil {
		return errors.Wrap(errors.ErrCodeJournalOpenFailed, "failed to create runs table", err)
	}

	_, err = j.db.Exec(`
		CREATE TABLE IF NOT EXISTS orders (
			order_id TEXT PRIMARY KEY,
			run_id TEXT,
			seq INTEGER,
			side TEXT,
			order_type TEXT,
			quantity DOUBLE,
			price DOUBLE,
			status TEXT,
			reason TEXT,
			exchange_order_id TEXT,
			timestamp TIMESTAMP
		)
	`)
	if err != nil {
		return errors.Wrap(errors.ErrCodeJournalOpenFailed, "failed to create orders table", err)
	}

	return j.checkVersion()
}

// checkVersion stamps a new journal with the running version and refuses
// journals written by an incompatible one.
func (j *Journal) checkVersion() error {
	_, err := j.db.Exec(`CREATE TABLE IF NOT EXISTS meta (name TEXT PRIMARY KEY, value TEXT)`)
	if err != nil {
		return errors.Wrap(errors.ErrCodeJournalOpenFailed, "failed to create meta table", err)
	}

	var recorded string

	err = j.sq.Select("value").From("meta").Where(squirrel.Eq{"name": versionKey}).
		RunWith(j.db).QueryRow().Scan(&recorded)

	switch {
	case errors.Is(err, sql.ErrNoRows):
		_, err = j.sq.Insert("meta").Columns("name", "value").
			Values(versionKey, version.GetVersion()).
			RunWith(j.db).Exec()
		if err != nil {
			return errors.Wrap(errors.ErrCodeJournalOpenFailed, "failed to stamp journal version", err)
		}

		return nil
	case err != nil:
		return errors.Wrap(errors.ErrCodeJournalOpenFailed, "failed to read journal version", err)
	}

	if err := version.CheckCompatibility(version.GetVersion(), recorded); err != nil {
		return errors.Wrap(errors.ErrCodeJournalOpenFailed, "incompatible journal", err)
	}

	return nil
}

// RecordRun stores the outcome of a multi-event run. Balance, position and
// orders come from the last result carrying a trading state, since orders
// accumulate across events.
func (j *Journal) RecordRun(ctx context.Context, runID, symbol string, results []types.ExecutionResult) error {
	if len(results) == 0 {
		return errors.Newf(errors.ErrCodeInvalidParameter, "run %s has no results to record", runID)
	}

	summary := summarize(runID, symbol, results)

	orders := []types.Order{}
	if last := finalState(results); last != nil {
		orders = last.Orders
	}

	tx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(errors.ErrCodeJournalWriteFailed, "failed to begin transaction", err)
	}

	_, err = j.sq.
		Insert("runs").
		Columns("run_id", "symbol", "started_at", "events", "success", "final_balance", "position_size").
		Values(summary.RunID, summary.Symbol, summary.StartedAt, summary.Events, summary.Success, summary.FinalBalance, summary.PositionSize).
		RunWith(tx).
		ExecContext(ctx)
	if err != nil {
		tx.Rollback()

		return errors.Wrapf(errors.ErrCodeJournalWriteFailed, err, "failed to insert run %s", runID)
	}

	for seq, order := range orders {
		_, err = j.sq.
			Insert("orders").
			Columns(
				"order_id", "run_id", "seq", "side", "order_type", "quantity", "price",
				"status", "reason", "exchange_order_id", "timestamp",
			).
			Values(
				order.ID, runID, seq, string(order.Side), string(order.OrderType), order.Quantity, order.Price,
				string(order.Status), order.Reason, order.ExchangeOrderID, order.Timestamp,
			).
			RunWith(tx).
			ExecContext(ctx)
		if err != nil {
			tx.Rollback()

			return errors.Wrapf(errors.ErrCodeJournalWriteFailed, err, "failed to insert order %s", order.ID)
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrap(errors.ErrCodeJournalWriteFailed, "failed to commit run", err)
	}

	j.logger.Debug("Recorded run",
		zap.String("run_id", runID),
		zap.String("symbol", symbol),
		zap.Int("events", summary.Events),
		zap.Int("orders", len(orders)),
	)

	return nil
}

func summarize(runID, symbol string, results []types.ExecutionResult) RunSummary {
	summary := RunSummary{
		RunID:     runID,
		Symbol:    symbol,
		StartedAt: time.Now().UTC(),
		Events:    len(results),
		Success:   true,
	}

	if first := results[0].TradingState; first != nil {
		summary.StartedAt = first.CreatedAt
	}

	for _, result := range results {
		summary.Success = summary.Success && result.Success
	}

	if last := finalState(results); last != nil {
		summary.FinalBalance = last.Balance
		summary.PositionSize = last.PositionSize
	}

	return summary
}

func finalState(results []types.ExecutionResult) *types.TradingState {
	for i := len(results) - 1; i >= 0; i-- {
		if results[i].TradingState != nil {
			return results[i].TradingState
		}
	}

	return nil
}

// Run returns the summary of a recorded run.
func (j *Journal) Run(ctx context.Context, runID string) (RunSummary, error) {
	var summary RunSummary

	err := j.sq.
		Select("run_id", "symbol", "started_at", "events", "success", "final_balance", "position_size").
		From("runs").
		Where(squirrel.Eq{"run_id": runID}).
		RunWith(j.db).
		QueryRowContext(ctx).
		Scan(
			&summary.RunID, &summary.Symbol, &summary.StartedAt, &summary.Events,
			&summary.Success, &summary.FinalBalance, &summary.PositionSize,
		)
	if errors.Is(err, sql.ErrNoRows) {
		return RunSummary{}, errors.Newf(errors.ErrCodeJournalQueryFailed, "run %s not found", runID)
	}

	if err != nil {
		return RunSummary{}, errors.Wrapf(errors.ErrCodeJournalQueryFailed, err, "failed to query run %s", runID)
	}

	return summary, nil
}

// Orders returns the orders of a run in the order they were placed.
func (j *Journal) Orders(ctx context.Context, runID string) ([]types.Order, error) {
	rows, err := j.sq.
		Select("order_id", "side", "order_type", "quantity", "price", "status", "reason", "exchange_order_id", "timestamp").
		From("orders").
		Where(squirrel.Eq{"run_id": runID}).
		OrderBy("seq").
		RunWith(j.db).
		QueryContext(ctx)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrCodeJournalQueryFailed, err, "failed to query orders of run %s", runID)
	}
	defer rows.Close()

	orders := []types.Order{}

	for rows.Next() {
		var (
			order                   types.Order
			side, orderType, status string
		)

		err := rows.Scan(
			&order.ID, &side, &orderType, &order.Quantity, &order.Price,
			&status, &order.Reason, &order.ExchangeOrderID, &order.Timestamp,
		)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeJournalQueryFailed, "failed to scan order", err)
		}

		order.Side = types.OrderSide(side)
		order.OrderType = types.OrderType(orderType)
		order.Status = types.OrderStatus(status)
		order.Timestamp = order.Timestamp.UTC()
		orders = append(orders, order)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeJournalQueryFailed, "failed to read orders", err)
	}

	return orders, nil
}

// Close closes the underlying database.
func (j *Journal) Close() error {
	return j.db.Close()
}
