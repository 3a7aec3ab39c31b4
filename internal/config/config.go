// Package config handles configuration loading and validation.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/andriipushkar/scalpbot/internal/strategy"
	"github.com/andriipushkar/scalpbot/internal/types"
)

// Config represents the full application configuration.
type Config struct {
	Exchange    ExchangeConfig    `yaml:"exchange"`
	Trading     TradingConfig     `yaml:"trading"`
	Symbols     []SymbolConfig    `yaml:"symbols"`
	Book        BookConfig        `yaml:"book"`
	Reconcile   ReconcileConfig   `yaml:"reconcile"`
	Persistence PersistenceConfig `yaml:"persistence"`
	Alerting    AlertingConfig    `yaml:"alerting"`
	Metrics     MetricsConfig     `yaml:"metrics"`
}

// ExchangeConfig holds exchange connection settings.
type ExchangeConfig struct {
	Mode         string `yaml:"mode"` // binance | paper
	APIKey       string `yaml:"api_key"`
	APISecret    string `yaml:"api_secret"`
	Testnet      bool   `yaml:"testnet"`
	RecvWindowMs int64  `yaml:"recv_window_ms"`
}

// TradingConfig holds the account-wide trading settings.
type TradingConfig struct {
	QuoteAsset       string  `yaml:"quote_asset"`
	MaxActiveTrades  int     `yaml:"max_active_trades"`
	RiskPerTradePct  float64 `yaml:"risk_per_trade_pct"` // fraction of balance per entry
	Leverage         int     `yaml:"leverage"`
	MarginType       string  `yaml:"margin_type"`      // ISOLATED | CROSSED
	EntryOrderType   string  `yaml:"entry_order_type"` // limit | market
	EntryOffsetTicks int64   `yaml:"entry_offset_ticks"`
}

// SymbolConfig binds one traded symbol to a strategy.
type SymbolConfig struct {
	Symbol   string             `yaml:"symbol"`
	Strategy string             `yaml:"strategy"`
	Params   map[string]float64 `yaml:"params"`
}

// BookConfig holds order-book synchronization settings.
type BookConfig struct {
	SnapshotDepth  int `yaml:"snapshot_depth"`
	BufferCapacity int `yaml:"buffer_capacity"`
}

// ReconcileConfig holds reconciliation loop settings.
type ReconcileConfig struct {
	IntervalSec int `yaml:"interval_sec"`
}

// PersistenceConfig holds persistence paths. An empty journal path disables
// the trade journal.
type PersistenceConfig struct {
	PositionsPath string `yaml:"positions_path"`
	JournalPath   string `yaml:"journal_path"`
}

// AlertingConfig holds alerting settings.
type AlertingConfig struct {
	Enabled  bool            `yaml:"enabled"`
	Channels []ChannelConfig `yaml:"channels"`
}

// ChannelConfig holds a single alert channel configuration.
type ChannelConfig struct {
	Type     string `yaml:"type"` // console | telegram
	BotToken string `yaml:"bot_token"`
	ChatID   string `yaml:"chat_id"`
}

// MetricsConfig holds metrics settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Port    int    `yaml:"port"`
	Path    string `yaml:"path"`
}

// Load loads configuration from a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	return LoadFromBytes(data)
}

// LoadFromBytes loads configuration from YAML bytes. Environment variables
// in the form ${VAR} are expanded before parsing, so secrets stay out of
// the file.
func LoadFromBytes(data []byte) (*Config, error) {
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Trading.QuoteAsset == "" {
		c.Trading.QuoteAsset = "USDT"
	}
	if c.Trading.MaxActiveTrades == 0 {
		c.Trading.MaxActiveTrades = 3
	}
	if c.Trading.Leverage == 0 {
		c.Trading.Leverage = 5
	}
	if c.Trading.MarginType == "" {
		c.Trading.MarginType = "ISOLATED"
	}
	if c.Trading.EntryOrderType == "" {
		c.Trading.EntryOrderType = "market"
	}
	if c.Book.SnapshotDepth == 0 {
		c.Book.SnapshotDepth = 100
	}
	if c.Reconcile.IntervalSec == 0 {
		c.Reconcile.IntervalSec = 60
	}
	if c.Persistence.PositionsPath == "" {
		c.Persistence.PositionsPath = "positions.json"
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	var errs []string

	switch c.Exchange.Mode {
	case "binance":
		if c.Exchange.APIKey == "" || c.Exchange.APISecret == "" {
			errs = append(errs, "exchange.api_key and exchange.api_secret are required for binance mode")
		}
	case "paper":
	default:
		errs = append(errs, fmt.Sprintf("exchange.mode '%s' must be 'binance' or 'paper'", c.Exchange.Mode))
	}

	if c.Trading.RiskPerTradePct <= 0 || c.Trading.RiskPerTradePct > 0.1 {
		errs = append(errs, "trading.risk_per_trade_pct must be between 0 and 0.1 (10%)")
	}
	if c.Trading.Leverage < 1 || c.Trading.Leverage > 125 {
		errs = append(errs, "trading.leverage must be between 1 and 125")
	}
	if c.Trading.MaxActiveTrades < 1 {
		errs = append(errs, "trading.max_active_trades must be at least 1")
	}
	if mt := strings.ToUpper(c.Trading.MarginType); mt != "ISOLATED" && mt != "CROSSED" {
		errs = append(errs, "trading.margin_type must be 'ISOLATED' or 'CROSSED'")
	}
	if ot := strings.ToLower(c.Trading.EntryOrderType); ot != "limit" && ot != "market" {
		errs = append(errs, "trading.entry_order_type must be 'limit' or 'market'")
	}
	if c.Trading.EntryOffsetTicks < 0 {
		errs = append(errs, "trading.entry_offset_ticks must not be negative")
	}

	if len(c.Symbols) == 0 {
		errs = append(errs, "at least one symbol is required")
	}
	seen := make(map[string]bool, len(c.Symbols))
	known := make(map[string]bool)
	for _, name := range strategy.Names() {
		known[name] = true
	}
	for i, sc := range c.Symbols {
		if sc.Symbol == "" {
			errs = append(errs, fmt.Sprintf("symbols[%d].symbol is required", i))
			continue
		}
		if seen[sc.Symbol] {
			errs = append(errs, fmt.Sprintf("symbol '%s' is configured twice", sc.Symbol))
		}
		seen[sc.Symbol] = true
		if !known[sc.Strategy] {
			errs = append(errs, fmt.Sprintf("symbols[%d].strategy '%s' is not registered", i, sc.Strategy))
		}
	}

	if c.Book.BufferCapacity < 0 {
		errs = append(errs, "book.buffer_capacity must not be negative")
	}

	if c.Alerting.Enabled {
		for i, ch := range c.Alerting.Channels {
			switch ch.Type {
			case "console":
			case "telegram":
				if ch.BotToken == "" || ch.ChatID == "" {
					errs = append(errs, fmt.Sprintf("alerting.channels[%d] telegram requires bot_token and chat_id", i))
				}
			default:
				errs = append(errs, fmt.Sprintf("alerting.channels[%d].type '%s' must be 'console' or 'telegram'", i, ch.Type))
			}
		}
	}

	if c.Metrics.Enabled && (c.Metrics.Port < 1 || c.Metrics.Port > 65535) {
		errs = append(errs, "metrics.port must be a valid port")
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %s", types.ErrInvalidConfig, strings.Join(errs, "; "))
	}

	return nil
}

// RiskPerTrade returns the per-trade risk fraction as decimal.
func (c *Config) RiskPerTrade() decimal.Decimal {
	return decimal.NewFromFloat(c.Trading.RiskPerTradePct)
}

// ReconcileInterval returns the reconciliation interval duration.
func (c *Config) ReconcileInterval() time.Duration {
	return time.Duration(c.Reconcile.IntervalSec) * time.Second
}

// SymbolNames returns the configured symbols in file order.
func (c *Config) SymbolNames() []string {
	names := make([]string, len(c.Symbols))
	for i, sc := range c.Symbols {
		names[i] = sc.Symbol
	}
	return names
}
