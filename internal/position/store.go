// Package position tracks open positions, durably persisted and reconciled
// against exchange truth.
package position

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/andriipushkar/scalpbot/internal/exchange"
	"github.com/andriipushkar/scalpbot/internal/types"
)

// Store is a durable symbol -> position map. Every mutation rewrites the
// full map to disk via a temp file and rename, so a crash mid-write never
// leaves a corrupt state file. A write failure is logged and the in-memory
// state stays authoritative until the next reconciliation pass.
type Store struct {
	path   string
	logger *slog.Logger

	mu        sync.RWMutex
	positions map[string]types.Position
}

// NewStore loads the state file if present and returns the store. A missing
// or unreadable file starts the store empty.
func NewStore(path string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Store{
		path:      path,
		logger:    logger,
		positions: make(map[string]types.Position),
	}
	s.load()
	return s
}

func (s *Store) load() {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Error("failed to read position state, starting fresh", "path", s.path, "err", err)
		}
		return
	}

	var loaded map[string]types.Position
	if err := json.Unmarshal(data, &loaded); err != nil {
		s.logger.Error("corrupt position state, starting fresh", "path", s.path, "err", err)
		return
	}

	for symbol, pos := range loaded {
		if pos.Quantity.IsPositive() {
			s.positions[symbol] = pos
		}
	}
	s.logger.Info("loaded position state", "path", s.path, "positions", len(s.positions))
}

// persist writes the full map atomically. Caller holds s.mu.
func (s *Store) persist() {
	data, err := json.MarshalIndent(s.positions, "", "  ")
	if err != nil {
		s.logger.Error("failed to marshal position state", "err", err)
		return
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".positions-*.tmp")
	if err != nil {
		s.logger.Error("failed to create temp state file", "err", err)
		return
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		s.logger.Error("failed to write position state", "err", err)
		return
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		s.logger.Error("failed to close temp state file", "err", err)
		return
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		s.logger.Error("failed to replace position state file", "err", err)
	}
}

// Get returns the position for a symbol.
func (s *Store) Get(symbol string) (types.Position, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	pos, ok := s.positions[symbol]
	return pos, ok
}

// Count returns the number of open positions.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.positions)
}

// Symbols returns the tracked symbols.
func (s *Store) Symbols() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.positions))
	for symbol := range s.positions {
		out = append(out, symbol)
	}
	return out
}

// Set creates or replaces a position and persists.
func (s *Store) Set(pos types.Position) error {
	if pos.Side != types.SideLong && pos.Side != types.SideShort {
		return fmt.Errorf("%w: %v", types.ErrInvalidSide, pos.Side)
	}
	if !pos.Quantity.IsPositive() {
		return fmt.Errorf("set position %s: quantity must be positive", pos.Symbol)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.positions[pos.Symbol] = pos
	s.persist()
	s.logger.Info("position stored",
		"symbol", pos.Symbol,
		"side", pos.Side,
		"quantity", pos.Quantity,
		"entry", pos.EntryPrice,
		"sl", pos.StopLoss,
		"tp", pos.TakeProfit,
	)
	return nil
}

// Close removes a position and persists. Returns the removed position.
func (s *Store) Close(symbol string) (types.Position, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pos, ok := s.positions[symbol]
	if !ok {
		return types.Position{}, false
	}
	delete(s.positions, symbol)
	s.persist()
	s.logger.Info("position closed", "symbol", symbol, "side", pos.Side, "quantity", pos.Quantity)
	return pos, true
}

// UpdateBracketOrders replaces the stop-loss and/or take-profit order ids and
// prices for an open position. Zero-value arguments leave the field as is.
func (s *Store) UpdateBracketOrders(symbol string, upd BracketUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	pos, ok := s.positions[symbol]
	if !ok {
		return fmt.Errorf("%w: %s", types.ErrPositionNotFound, symbol)
	}

	if upd.StopOrderID != "" {
		pos.StopOrderID = upd.StopOrderID
	}
	if upd.TakeProfitOrderID != "" {
		pos.TakeProfitOrderID = upd.TakeProfitOrderID
	}
	if upd.StopLoss.IsPositive() {
		pos.StopLoss = upd.StopLoss
	}
	if upd.TakeProfit.IsPositive() {
		pos.TakeProfit = upd.TakeProfit
	}

	s.positions[symbol] = pos
	s.persist()
	return nil
}

// Clear drops all local positions. Used when the exchange view is
// unavailable and stale local state is worse than none.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.positions) == 0 {
		return
	}
	s.positions = make(map[string]types.Position)
	s.persist()
	s.logger.Warn("all local positions cleared")
}

// ReconcileResult summarizes the corrections applied by a reconciliation.
type ReconcileResult struct {
	Dropped   []string // tracked locally, absent on exchange
	Corrected []string // quantity corrected to exchange value
	Untracked []string // open on exchange, not tracked locally
}

// Reconcile corrects local state against the exchange's position list:
// locally-tracked symbols absent from the exchange are dropped as stale;
// exchange positions the bot did not open are logged and left alone; for
// symbols present in both, a quantity mismatch is corrected from the
// exchange and a side mismatch drops the record entirely.
func (s *Store) Reconcile(exchangePositions []exchange.Position) ReconcileResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	var res ReconcileResult
	bySymbol := make(map[string]exchange.Position, len(exchangePositions))
	for _, ep := range exchangePositions {
		bySymbol[ep.Symbol] = ep
	}

	changed := false
	for symbol, local := range s.positions {
		ep, onExchange := bySymbol[symbol]
		if !onExchange {
			s.logger.Warn("reconcile: local position absent on exchange, dropping", "symbol", symbol)
			delete(s.positions, symbol)
			res.Dropped = append(res.Dropped, symbol)
			changed = true
			continue
		}

		if ep.Side != local.Side {
			s.logger.Error("reconcile: side mismatch, dropping local record",
				"symbol", symbol,
				"local_side", local.Side,
				"exchange_side", ep.Side,
			)
			delete(s.positions, symbol)
			res.Dropped = append(res.Dropped, symbol)
			changed = true
			continue
		}

		if !ep.Quantity.Equal(local.Quantity) {
			s.logger.Warn("reconcile: quantity corrected from exchange",
				"symbol", symbol,
				"local", local.Quantity,
				"exchange", ep.Quantity,
			)
			local.Quantity = ep.Quantity
			s.positions[symbol] = local
			res.Corrected = append(res.Corrected, symbol)
			changed = true
		}
	}

	// Never adopt positions the bot did not open.
	for symbol := range bySymbol {
		if _, tracked := s.positions[symbol]; !tracked {
			s.logger.Warn("reconcile: untracked exchange position, leaving unmanaged", "symbol", symbol)
			res.Untracked = append(res.Untracked, symbol)
		}
	}

	if changed {
		s.persist()
	}
	return res
}

// BracketUpdate is a partial update of a position's protective orders.
type BracketUpdate struct {
	StopOrderID       string
	TakeProfitOrderID string
	StopLoss          decimal.Decimal
	TakeProfit        decimal.Decimal
}
