// Package main is the entry point for the scalping bot.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/andriipushkar/scalpbot/internal/alerting"
	"github.com/andriipushkar/scalpbot/internal/config"
	"github.com/andriipushkar/scalpbot/internal/coordinator"
	"github.com/andriipushkar/scalpbot/internal/exchange"
	"github.com/andriipushkar/scalpbot/internal/exchange/binance"
	"github.com/andriipushkar/scalpbot/internal/exchange/paper"
	"github.com/andriipushkar/scalpbot/internal/metrics"
	"github.com/andriipushkar/scalpbot/internal/orderbook"
	"github.com/andriipushkar/scalpbot/internal/persistence"
	"github.com/andriipushkar/scalpbot/internal/position"
	"github.com/andriipushkar/scalpbot/internal/reconcile"
	"github.com/andriipushkar/scalpbot/internal/risk"
	"github.com/andriipushkar/scalpbot/internal/strategy"
)

// Version information (set by build flags).
var (
	Version   = "0.2.0"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "version", "-v", "--version":
		cmdVersion()
	case "help", "-h", "--help":
		printUsage()
	case "run":
		cmdRun(os.Args[2:])
	case "validate":
		cmdValidate(os.Args[2:])
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`Scalpbot - Order-Book Driven Futures Scalping

Usage:
  scalpbot <command> [options]

Commands:
  run        Start the trading bot (live or paper)
  validate   Validate configuration file
  version    Show version information
  help       Show this help message

Examples:
  scalpbot run --config config.yaml
  scalpbot validate --config config.yaml

Use "scalpbot <command> --help" for more information about a command.`)
}

func cmdVersion() {
	fmt.Printf("scalpbot version %s\n", Version)
	fmt.Printf("  Build time: %s\n", BuildTime)
	fmt.Printf("  Git commit: %s\n", GitCommit)
}

func cmdValidate(args []string) {
	fs := flag.NewFlagSet("validate", flag.ExitOnError)
	configPath := fs.String("config", "config.yaml", "Path to configuration file")
	fs.Parse(args)

	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("Configuration is valid!")
	fmt.Printf("  Mode: %s\n", cfg.Exchange.Mode)
	fmt.Printf("  Symbols: %s\n", strings.Join(cfg.SymbolNames(), ", "))
	fmt.Printf("  Leverage: %dx %s\n", cfg.Trading.Leverage, cfg.Trading.MarginType)
	fmt.Printf("  Risk per trade: %.2f%%\n", cfg.Trading.RiskPerTradePct*100)
	fmt.Printf("  Max active trades: %d\n", cfg.Trading.MaxActiveTrades)
}

func cmdRun(args []string) {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	configPath := fs.String("config", "config.yaml", "Path to configuration file")
	verbose := fs.Bool("verbose", false, "Debug logging")
	fs.Parse(args)

	_ = godotenv.Load()

	logLevel := slog.LevelInfo
	if *verbose {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(),
		syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics.SetBuildInfo(Version, GitCommit, BuildTime)

	slog.Info("scalpbot starting",
		"version", Version,
		"mode", cfg.Exchange.Mode,
		"symbols", cfg.SymbolNames(),
	)

	if err := run(ctx, cfg, logger); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("scalpbot exited with error", "err", err)
		os.Exit(1)
	}
	slog.Info("scalpbot stopped")
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	gw := buildGateway(cfg, logger)

	alerter := buildAlerter(cfg, logger)

	instruments, err := prepareInstruments(ctx, cfg, gw, logger)
	if err != nil {
		return fmt.Errorf("prepare instruments: %w", err)
	}

	store := position.NewStore(cfg.Persistence.PositionsPath, logger)

	var journal *persistence.Journal
	if cfg.Persistence.JournalPath != "" {
		journal, err = persistence.NewJournal(cfg.Persistence.JournalPath)
		if err != nil {
			return fmt.Errorf("open journal: %w", err)
		}
		defer func() { _ = journal.Close() }()
	}

	books := orderbook.NewSynchronizer(orderbook.Config{
		SnapshotDepth:  cfg.Book.SnapshotDepth,
		BufferCapacity: cfg.Book.BufferCapacity,
	}, gw, cfg.SymbolNames(), logger)

	sizer := risk.NewSizer(cfg.RiskPerTrade(), cfg.Trading.Leverage)

	coord := coordinator.New(
		coordinator.Config{
			QuoteAsset:         cfg.Trading.QuoteAsset,
			MaxActivePositions: cfg.Trading.MaxActiveTrades,
		},
		gw, books, store, sizer, instruments, alerter, journalOrNil(journal), logger,
	)

	reconciler := reconcile.New(gw, store, cfg.ReconcileInterval(), alerter, logger)

	g, ctx := errgroup.WithContext(ctx)

	if cfg.Metrics.Enabled {
		srv := metrics.NewServer(metrics.ServerConfig{
			Port:        cfg.Metrics.Port,
			MetricsPath: cfg.Metrics.Path,
			HealthPath:  "/health",
		}, logger)
		srv.RegisterHealthCheck("books", func() metrics.Check {
			if books.Synced() {
				return metrics.Healthy()
			}
			return metrics.Unhealthy("order books not synced")
		})
		g.Go(func() error { return srv.Start() })
		g.Go(func() error {
			<-ctx.Done()
			shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shCtx)
		})
	}

	g.Go(func() error { return books.Run(ctx) })
	g.Go(func() error { return coord.Run(ctx) })
	g.Go(func() error { return reconciler.Run(ctx) })

	if alerter != nil {
		_ = alerter.Alert(ctx, alerting.SeverityInfo, "Bot started",
			"version", Version,
			"mode", cfg.Exchange.Mode,
		)
	}

	return g.Wait()
}

// buildGateway constructs the configured exchange gateway.
func buildGateway(cfg *config.Config, logger *slog.Logger) exchange.Gateway {
	if cfg.Exchange.Mode == "paper" {
		return paper.NewGateway(paper.DefaultConfig(), logger)
	}
	return binance.NewClient(binance.Config{
		APIKey:     cfg.Exchange.APIKey,
		APISecret:  cfg.Exchange.APISecret,
		Testnet:    cfg.Exchange.Testnet,
		RecvWindow: cfg.Exchange.RecvWindowMs,
	}, logger)
}

// buildAlerter assembles the configured alert channels. Returns nil when
// alerting is disabled.
func buildAlerter(cfg *config.Config, logger *slog.Logger) alerting.Alerter {
	if !cfg.Alerting.Enabled {
		return nil
	}

	var channels []alerting.Alerter
	for _, ch := range cfg.Alerting.Channels {
		switch ch.Type {
		case "console":
			channels = append(channels, alerting.NewConsoleAlerter(logger))
		case "telegram":
			channels = append(channels, alerting.NewTelegramAlerter(alerting.TelegramConfig{
				BotToken: ch.BotToken,
				ChatID:   ch.ChatID,
			}))
		}
	}
	if len(channels) == 0 {
		channels = append(channels, alerting.NewConsoleAlerter(logger))
	}
	if len(channels) == 1 {
		return channels[0]
	}
	return alerting.NewMultiAlerter(logger, channels...)
}

// prepareInstruments resolves symbol rules, applies leverage and margin
// settings, and builds the strategy bindings.
func prepareInstruments(ctx context.Context, cfg *config.Config, gw exchange.Gateway, logger *slog.Logger) ([]*coordinator.Instrument, error) {
	entryType := exchange.TypeMarket
	if strings.ToLower(cfg.Trading.EntryOrderType) == "limit" {
		entryType = exchange.TypeLimit
	}

	instruments := make([]*coordinator.Instrument, 0, len(cfg.Symbols))
	for _, sc := range cfg.Symbols {
		rules, err := gw.GetSymbolRules(ctx, sc.Symbol)
		if err != nil {
			logger.Warn("skipping symbol, rules unavailable", "symbol", sc.Symbol, "err", err)
			continue
		}

		if err := gw.SetLeverage(ctx, sc.Symbol, cfg.Trading.Leverage); err != nil {
			logger.Warn("skipping symbol, leverage setup failed", "symbol", sc.Symbol, "err", err)
			continue
		}
		if err := gw.SetMarginType(ctx, sc.Symbol, cfg.Trading.MarginType); err != nil {
			logger.Warn("skipping symbol, margin setup failed", "symbol", sc.Symbol, "err", err)
			continue
		}

		strat, err := strategy.New(sc.Strategy, sc.Symbol, strategy.Params(sc.Params))
		if err != nil {
			return nil, fmt.Errorf("strategy for %s: %w", sc.Symbol, err)
		}

		logger.Info("instrument prepared",
			"symbol", sc.Symbol,
			"strategy", sc.Strategy,
			"price_tick", rules.PriceTick,
			"quantity_step", rules.QuantityStep,
		)

		instruments = append(instruments, &coordinator.Instrument{
			Symbol:           sc.Symbol,
			Strategy:         strat,
			Rules:            *rules,
			EntryOrderType:   entryType,
			EntryOffsetTicks: cfg.Trading.EntryOffsetTicks,
		})
	}
	if len(instruments) == 0 {
		return nil, fmt.Errorf("no tradable symbols after setup")
	}
	return instruments, nil
}

// journalOrNil avoids handing the coordinator a typed nil interface.
func journalOrNil(j *persistence.Journal) coordinator.Journal {
	if j == nil {
		return nil
	}
	return j
}
