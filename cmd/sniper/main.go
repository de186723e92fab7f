// Package main runs the pool sniper: it watches for new liquidity pools,
// screens them, and executes buys through the relay fan-out with an
// aggregator fallback.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"raysniper/internal/config"
	"raysniper/internal/configbus"
	"raysniper/internal/domain"
	"raysniper/internal/engine"
	"raysniper/internal/outcome"
	"raysniper/internal/registry"
	"raysniper/internal/safety"
	"raysniper/internal/snipelist"
	"raysniper/internal/sniper"
	"raysniper/internal/solana"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to YAML configuration")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	log, err := newLogger(cfg.General)
	if err != nil {
		return err
	}

	wallet, err := solana.KeypairFromBase58(cfg.Wallet.SecretKey)
	if err != nil {
		return fmt.Errorf("parse wallet secret: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rpc := solana.NewHTTPClient(cfg.RPC.Endpoint)

	// Refuse to start on an underfunded wallet.
	balance, err := rpc.GetBalance(ctx, wallet.PublicKey())
	if err != nil {
		return fmt.Errorf("fetch wallet balance: %w", err)
	}
	if balance < cfg.Wallet.MinSolRequired {
		return fmt.Errorf("wallet %s holds %d lamports, need at least %d",
			wallet.PublicKey(), balance, cfg.Wallet.MinSolRequired)
	}

	reg, err := registry.Open(cfg.Registry.Path)
	if err != nil {
		return err
	}
	defer reg.Close()

	if pools, err := reg.List(ctx); err == nil {
		log.Info().Int("pools", len(pools)).Msg("registry opened")
	}

	outcomes, err := buildOutcomeStore(ctx, cfg.Outcome, log)
	if err != nil {
		return err
	}
	defer outcomes.Close()

	list, err := snipelist.New(cfg.SnipeList.Path, log)
	if err != nil {
		return err
	}
	go func() {
		if err := list.Watch(ctx); err != nil {
			log.Warn().Err(err).Msg("snipe list watcher stopped")
		}
	}()

	runtime := config.NewRuntimeHolder(cfg)

	evaluator := safety.NewEvaluator(rpc, safety.Thresholds{
		MaxCreatorPct:      cfg.Safety.MaxCreatorPct,
		MaxTopHoldersPct:   cfg.Safety.MaxTopHoldersPct,
		MaxSingleHolderPct: cfg.Safety.MaxSingleHolderPct,
		TopHolderCount:     cfg.Safety.TopHolderCount,
	}, log)

	engineCfg := engine.DefaultEngineConfig()
	engineCfg.MaxRetries = cfg.Buy.MaxRetries
	relays := engine.NewBroadcaster(cfg.Relay.Endpoints, log)
	buyer := engine.New(rpc, relays, engineCfg, log)
	fallback := engine.NewJupiter("", rpc, engineCfg, log)

	supportFeeTo := ""
	if cfg.Buy.SupportFeeEnabled {
		supportFeeTo = cfg.Buy.SupportFeeAddress
	}

	resolver := sniper.NewResolver(rpc, sniper.DefaultResolverConfig(), log)
	pipeline := sniper.NewPipeline(resolver, reg, evaluator, buyer, fallback, outcomes, list, sniper.PipelineOptions{
		Runtime:          runtime,
		ComputeUnitLimit: cfg.Buy.ComputeUnitLimit,
		ComputeUnitPrice: cfg.Buy.ComputeUnitPrice,
		TipAccounts:      cfg.Relay.TipAccounts,
		SupportFeeTo:     supportFeeTo,
		SafetyEnabled:    cfg.Safety.Enabled,
		SnipeListEnabled: cfg.SnipeList.Enabled,
	}, log)

	if cfg.NATS.URL != "" {
		bus, err := configbus.Connect(cfg.NATS.URL, cfg.NATS.Token, runtime, rpc, list, pipeline, log)
		if err != nil {
			return err
		}
		defer bus.Close()
	}

	ws, err := solana.NewWSClient(ctx, cfg.RPC.WSEndpoint, solana.LogsFilter{
		Mentions: []string{sniper.RayFeeProgram},
	}, nil, log)
	if err != nil {
		return err
	}
	defer ws.Close()

	printBanner(log, cfg, wallet.PublicKey(), balance, list.Len())

	candidates := make(chan domain.CandidateEvent, 256)
	listener := sniper.NewListener(ws.Events(), rpc, sniper.NewSeenSet(), candidates, log)

	go func() {
		listener.Run(ctx)
		close(candidates)
	}()

	// Blocks until shutdown, then drains in-flight candidates.
	pipeline.Run(ctx, candidates)
	log.Info().Msg("sniper stopped")
	return nil
}

func newLogger(cfg config.GeneralConfig) (zerolog.Logger, error) {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		return zerolog.Logger{}, fmt.Errorf("parse log level %q: %w", cfg.LogLevel, err)
	}

	var log zerolog.Logger
	if cfg.LogFormat == "text" {
		log = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	} else {
		log = zerolog.New(os.Stderr)
	}
	return log.Level(level).With().Timestamp().Logger(), nil
}

func buildOutcomeStore(ctx context.Context, cfg config.OutcomeConfig, log zerolog.Logger) (outcome.Store, error) {
	fileStore, err := outcome.NewFileStore(cfg.Path)
	if err != nil {
		return nil, err
	}
	if cfg.ClickHouseDSN == "" {
		return fileStore, nil
	}

	chStore, err := outcome.NewClickHouseStore(ctx, cfg.ClickHouseDSN)
	if err != nil {
		// Analytics are optional; the local file is the source of truth.
		log.Warn().Err(err).Msg("clickhouse sink unavailable, using file only")
		return fileStore, nil
	}
	return outcome.NewTee(fileStore, chStore), nil
}

func printBanner(log zerolog.Logger, cfg *config.Config, wallet string, balance uint64, snipeListLen int) {
	log.Info().
		Str("wallet", wallet).
		Uint64("balance_lamports", balance).
		Str("rpc", cfg.RPC.Endpoint).
		Uint64("buy_lamports", cfg.Buy.AmountLamports).
		Int("slippage_bps", cfg.Buy.SlippageBps).
		Uint64("tip_lamports", cfg.Buy.TipLamports).
		Int("relay_endpoints", len(cfg.Relay.Endpoints)).
		Bool("safety_enabled", cfg.Safety.Enabled).
		Bool("snipe_list_enabled", cfg.SnipeList.Enabled).
		Int("snipe_list_entries", snipeListLen).
		Msg("sniper started")
}
