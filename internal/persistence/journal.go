// Package persistence provides the SQLite audit journal for completed
// trades and order history.
package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/andriipushkar/scalpbot/internal/exchange"
	"github.com/andriipushkar/scalpbot/internal/types"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// Journal records trades and order events in SQLite.
type Journal struct {
	db *sql.DB
}

// NewJournal opens (creating if needed) the journal database at path.
func NewJournal(path string) (*Journal, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	j := &Journal{db: db}

	if err := j.Migrate(context.Background()); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return j, nil
}

// Migrate runs database migrations.
func (j *Journal) Migrate(ctx context.Context) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS trades (
			id TEXT PRIMARY KEY,
			symbol TEXT NOT NULL,
			side TEXT NOT NULL,
			quantity TEXT NOT NULL,
			entry_price TEXT NOT NULL,
			exit_price TEXT NOT NULL,
			entry_time DATETIME NOT NULL,
			exit_time DATETIME NOT NULL,
			gross_pl TEXT NOT NULL,
			exit_reason TEXT NOT NULL,
			strategy_name TEXT,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_trades_symbol ON trades(symbol)`,
		`CREATE INDEX IF NOT EXISTS idx_trades_exit_time ON trades(exit_time)`,

		`CREATE TABLE IF NOT EXISTS order_events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			symbol TEXT NOT NULL,
			order_id TEXT NOT NULL,
			client_order_id TEXT NOT NULL,
			status TEXT NOT NULL,
			order_type TEXT NOT NULL,
			side TEXT NOT NULL,
			avg_fill_price TEXT,
			filled_qty TEXT,
			event_time DATETIME NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_order_events_symbol ON order_events(symbol)`,
		`CREATE INDEX IF NOT EXISTS idx_order_events_client_id ON order_events(client_order_id)`,
	}

	for _, migration := range migrations {
		if _, err := j.db.ExecContext(ctx, migration); err != nil {
			return fmt.Errorf("execute migration: %w", err)
		}
	}

	return nil
}

// SaveTrade records a completed trade.
func (j *Journal) SaveTrade(ctx context.Context, trade types.Trade) error {
	query := `INSERT INTO trades
		(id, symbol, side, quantity, entry_price, exit_price, entry_time, exit_time, gross_pl, exit_reason, strategy_name)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := j.db.ExecContext(ctx, query,
		trade.ID,
		trade.Symbol,
		trade.Side.String(),
		trade.Quantity.String(),
		trade.EntryPrice.String(),
		trade.ExitPrice.String(),
		trade.EntryTime,
		trade.ExitTime,
		trade.GrossPL.String(),
		trade.ExitReason,
		trade.StrategyName,
	)
	if err != nil {
		return fmt.Errorf("insert trade: %w", err)
	}

	return nil
}

// SaveOrderEvent records one user-stream order event.
func (j *Journal) SaveOrderEvent(ctx context.Context, ev exchange.OrderEvent) error {
	query := `INSERT INTO order_events
		(symbol, order_id, client_order_id, status, order_type, side, avg_fill_price, filled_qty, event_time)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := j.db.ExecContext(ctx, query,
		ev.Symbol,
		ev.OrderID,
		ev.ClientOrderID,
		string(ev.Status),
		string(ev.Type),
		string(ev.Side),
		ev.AvgFillPrice.String(),
		ev.FilledQty.String(),
		ev.Time,
	)
	if err != nil {
		return fmt.Errorf("insert order event: %w", err)
	}

	return nil
}

// OrderEvents returns the recorded events for a client order id, oldest first.
func (j *Journal) OrderEvents(ctx context.Context, clientOrderID string) ([]exchange.OrderEvent, error) {
	query := `SELECT symbol, order_id, client_order_id, status, order_type, side, avg_fill_price, filled_qty, event_time
		FROM order_events WHERE client_order_id = ? ORDER BY id`

	rows, err := j.db.QueryContext(ctx, query, clientOrderID)
	if err != nil {
		return nil, fmt.Errorf("query order events: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var events []exchange.OrderEvent
	for rows.Next() {
		var ev exchange.OrderEvent
		var status, orderType, side, avgPrice, filledQty string

		if err := rows.Scan(&ev.Symbol, &ev.OrderID, &ev.ClientOrderID, &status, &orderType, &side, &avgPrice, &filledQty, &ev.Time); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		ev.Status = exchange.OrderStatus(status)
		ev.Type = exchange.OrderType(orderType)
		ev.Side = exchange.OrderSide(side)
		ev.AvgFillPrice, _ = decimal.NewFromString(avgPrice)
		ev.FilledQty, _ = decimal.NewFromString(filledQty)

		events = append(events, ev)
	}

	return events, rows.Err()
}

// Trades returns trades whose exit fell in the given range, newest first.
func (j *Journal) Trades(ctx context.Context, from, to time.Time) ([]types.Trade, error) {
	query := `SELECT id, symbol, side, quantity, entry_price, exit_price, entry_time, exit_time, gross_pl, exit_reason, strategy_name
		FROM trades WHERE exit_time BETWEEN ? AND ? ORDER BY exit_time DESC`

	rows, err := j.db.QueryContext(ctx, query, from, to)
	if err != nil {
		return nil, fmt.Errorf("query trades: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return scanTrades(rows)
}

// TradesBySymbol returns the most recent trades for a symbol.
func (j *Journal) TradesBySymbol(ctx context.Context, symbol string, limit int) ([]types.Trade, error) {
	query := `SELECT id, symbol, side, quantity, entry_price, exit_price, entry_time, exit_time, gross_pl, exit_reason, strategy_name
		FROM trades WHERE symbol = ? ORDER BY exit_time DESC LIMIT ?`

	rows, err := j.db.QueryContext(ctx, query, symbol, limit)
	if err != nil {
		return nil, fmt.Errorf("query trades by symbol: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return scanTrades(rows)
}

func scanTrades(rows *sql.Rows) ([]types.Trade, error) {
	var trades []types.Trade
	for rows.Next() {
		var t types.Trade
		var side, quantity, entryPrice, exitPrice, grossPL string
		var strategyName sql.NullString

		if err := rows.Scan(&t.ID, &t.Symbol, &side, &quantity, &entryPrice, &exitPrice, &t.EntryTime, &t.ExitTime, &grossPL, &t.ExitReason, &strategyName); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}

		if err := t.Side.UnmarshalText([]byte(side)); err != nil {
			return nil, fmt.Errorf("parse side: %w", err)
		}
		t.Quantity, _ = decimal.NewFromString(quantity)
		t.EntryPrice, _ = decimal.NewFromString(entryPrice)
		t.ExitPrice, _ = decimal.NewFromString(exitPrice)
		t.GrossPL, _ = decimal.NewFromString(grossPL)
		t.StrategyName = strategyName.String

		trades = append(trades, t)
	}

	return trades, rows.Err()
}

// Summary aggregates trade statistics over a time range.
type Summary struct {
	Trades  int
	Wins    int
	Losses  int
	GrossPL decimal.Decimal
}

// Summarize computes win/loss counts and total gross P&L for trades whose
// exit fell in the given range.
func (j *Journal) Summarize(ctx context.Context, from, to time.Time) (Summary, error) {
	trades, err := j.Trades(ctx, from, to)
	if err != nil {
		return Summary{}, err
	}

	var s Summary
	for _, t := range trades {
		s.Trades++
		switch {
		case t.GrossPL.IsPositive():
			s.Wins++
		case t.GrossPL.IsNegative():
			s.Losses++
		}
		s.GrossPL = s.GrossPL.Add(t.GrossPL)
	}
	return s, nil
}

// Close closes the database connection.
func (j *Journal) Close() error {
	return j.db.Close()
}
