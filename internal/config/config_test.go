package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/andriipushkar/scalpbot/internal/types"
)

const validYAML = `
exchange:
  mode: paper

trading:
  quote_asset: USDT
  max_active_trades: 2
  risk_per_trade_pct: 0.02
  leverage: 10
  margin_type: ISOLATED
  entry_order_type: limit
  entry_offset_ticks: 2

symbols:
  - symbol: BTCUSDT
    strategy: liquiditywall
    params:
      wall_volume_multiplier: 8
  - symbol: ETHUSDT
    strategy: liquiditywall

book:
  snapshot_depth: 500
  buffer_capacity: 2000

reconcile:
  interval_sec: 30

persistence:
  positions_path: state/positions.json
  journal_path: state/journal.db

metrics:
  enabled: true
  port: 9090
`

func TestLoadFromBytes_Valid(t *testing.T) {
	cfg, err := LoadFromBytes([]byte(validYAML))
	if err != nil {
		t.Fatalf("LoadFromBytes: %v", err)
	}

	if cfg.Exchange.Mode != "paper" {
		t.Errorf("Exchange.Mode = %s, want paper", cfg.Exchange.Mode)
	}
	if cfg.Trading.MaxActiveTrades != 2 {
		t.Errorf("MaxActiveTrades = %d, want 2", cfg.Trading.MaxActiveTrades)
	}
	if cfg.Trading.Leverage != 10 {
		t.Errorf("Leverage = %d, want 10", cfg.Trading.Leverage)
	}
	if len(cfg.Symbols) != 2 {
		t.Fatalf("len(Symbols) = %d, want 2", len(cfg.Symbols))
	}
	if cfg.Symbols[0].Params["wall_volume_multiplier"] != 8 {
		t.Errorf("params not parsed: %v", cfg.Symbols[0].Params)
	}
	if cfg.Book.SnapshotDepth != 500 {
		t.Errorf("SnapshotDepth = %d, want 500", cfg.Book.SnapshotDepth)
	}

	if want := decimal.RequireFromString("0.02"); !cfg.RiskPerTrade().Equal(want) {
		t.Errorf("RiskPerTrade() = %s, want %s", cfg.RiskPerTrade(), want)
	}
	if got := cfg.ReconcileInterval(); got != 30*time.Second {
		t.Errorf("ReconcileInterval() = %v, want 30s", got)
	}
	if got := cfg.SymbolNames(); len(got) != 2 || got[0] != "BTCUSDT" || got[1] != "ETHUSDT" {
		t.Errorf("SymbolNames() = %v", got)
	}
}

func TestLoadFromBytes_Defaults(t *testing.T) {
	yaml := `
exchange:
  mode: paper
trading:
  risk_per_trade_pct: 0.01
symbols:
  - symbol: BTCUSDT
    strategy: liquiditywall
`
	cfg, err := LoadFromBytes([]byte(yaml))
	if err != nil {
		t.Fatalf("LoadFromBytes: %v", err)
	}

	if cfg.Trading.QuoteAsset != "USDT" {
		t.Errorf("QuoteAsset = %s, want USDT", cfg.Trading.QuoteAsset)
	}
	if cfg.Trading.MaxActiveTrades != 3 {
		t.Errorf("MaxActiveTrades = %d, want 3", cfg.Trading.MaxActiveTrades)
	}
	if cfg.Trading.Leverage != 5 {
		t.Errorf("Leverage = %d, want 5", cfg.Trading.Leverage)
	}
	if cfg.Trading.MarginType != "ISOLATED" {
		t.Errorf("MarginType = %s, want ISOLATED", cfg.Trading.MarginType)
	}
	if cfg.Trading.EntryOrderType != "market" {
		t.Errorf("EntryOrderType = %s, want market", cfg.Trading.EntryOrderType)
	}
	if cfg.Book.SnapshotDepth != 100 {
		t.Errorf("SnapshotDepth = %d, want 100", cfg.Book.SnapshotDepth)
	}
	if cfg.Reconcile.IntervalSec != 60 {
		t.Errorf("IntervalSec = %d, want 60", cfg.Reconcile.IntervalSec)
	}
	if cfg.Persistence.PositionsPath != "positions.json" {
		t.Errorf("PositionsPath = %s, want positions.json", cfg.Persistence.PositionsPath)
	}
}

func TestLoadFromBytes_Invalid(t *testing.T) {
	base := `
exchange:
  mode: paper
trading:
  risk_per_trade_pct: 0.01
symbols:
  - symbol: BTCUSDT
    strategy: liquiditywall
`

	tests := []struct {
		name    string
		yaml    string
		wantMsg string
	}{
		{
			name:    "unknown exchange mode",
			yaml:    strings.Replace(base, "mode: paper", "mode: kraken", 1),
			wantMsg: "exchange.mode",
		},
		{
			name:    "binance mode without credentials",
			yaml:    strings.Replace(base, "mode: paper", "mode: binance", 1),
			wantMsg: "api_key",
		},
		{
			name:    "risk too high",
			yaml:    strings.Replace(base, "risk_per_trade_pct: 0.01", "risk_per_trade_pct: 0.5", 1),
			wantMsg: "risk_per_trade_pct",
		},
		{
			name:    "risk missing",
			yaml:    strings.Replace(base, "risk_per_trade_pct: 0.01", "risk_per_trade_pct: 0", 1),
			wantMsg: "risk_per_trade_pct",
		},
		{
			name:    "unknown strategy",
			yaml:    strings.Replace(base, "strategy: liquiditywall", "strategy: momentum", 1),
			wantMsg: "not registered",
		},
		{
			name: "duplicate symbol",
			yaml: base + `  - symbol: BTCUSDT
    strategy: liquiditywall
`,
			wantMsg: "configured twice",
		},
		{
			name: "no symbols",
			yaml: `
exchange:
  mode: paper
trading:
  risk_per_trade_pct: 0.01
symbols: []
`,
			wantMsg: "at least one symbol",
		},
		{
			name: "telegram channel missing token",
			yaml: base + `
alerting:
  enabled: true
  channels:
    - type: telegram
`,
			wantMsg: "bot_token",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFromBytes([]byte(tt.yaml))
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !errors.Is(err, types.ErrInvalidConfig) {
				t.Errorf("error %v should wrap ErrInvalidConfig", err)
			}
			if !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("error %q does not mention %q", err, tt.wantMsg)
			}
		})
	}
}

func TestLoadFromBytes_LeverageOutOfRange(t *testing.T) {
	yaml := `
exchange:
  mode: paper
trading:
  risk_per_trade_pct: 0.01
  leverage: 200
symbols:
  - symbol: BTCUSDT
    strategy: liquiditywall
`
	_, err := LoadFromBytes([]byte(yaml))
	if err == nil || !strings.Contains(err.Error(), "leverage") {
		t.Fatalf("expected leverage error, got %v", err)
	}
}

func TestLoadFromBytes_MalformedYAML(t *testing.T) {
	_, err := LoadFromBytes([]byte("symbols: [unclosed"))
	if err == nil {
		t.Fatal("expected parse error")
	}
}

func TestLoadFromBytes_EnvExpansion(t *testing.T) {
	t.Setenv("SCALPBOT_TEST_KEY", "k-123")
	t.Setenv("SCALPBOT_TEST_SECRET", "s-456")

	yaml := `
exchange:
  mode: binance
  api_key: ${SCALPBOT_TEST_KEY}
  api_secret: ${SCALPBOT_TEST_SECRET}
trading:
  risk_per_trade_pct: 0.01
symbols:
  - symbol: BTCUSDT
    strategy: liquiditywall
`
	cfg, err := LoadFromBytes([]byte(yaml))
	if err != nil {
		t.Fatalf("LoadFromBytes: %v", err)
	}
	if cfg.Exchange.APIKey != "k-123" || cfg.Exchange.APISecret != "s-456" {
		t.Errorf("env expansion failed: %q %q", cfg.Exchange.APIKey, cfg.Exchange.APISecret)
	}
}

func TestLoad_File(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(validYAML), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Exchange.Mode != "paper" {
		t.Errorf("Exchange.Mode = %s, want paper", cfg.Exchange.Mode)
	}

	if _, err := Load(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}
