// TradingView to Hyperliquid signal bridge — receives TradingView webhook
// alerts and turns them into orders on the Hyperliquid perp DEX.
//
// Architecture:
//
//	main.go              — entry point: loads config, wires components, waits for SIGINT/SIGTERM or /restart
//	engine/engine.go     — state machine: flatten opposing position → enter → attach stop → attach TP ladder
//	venue/client.go      — Hyperliquid HTTP client: signed /exchange actions, /info reads, tick/size quantization
//	venue/signer.go      — keccak(action + nonce) signing with the agent wallet key
//	account/resolver.go  — resolves the signing key to the master trading account (agent wallets)
//	strategy/registry.go — named rule-sets with enable switches, clamps, and forward counters
//	journal/             — append-only audit trail (logs, webhooks, venue responses) in MongoDB
//	symlock/symlock.go   — per-symbol execution locks with an acquisition timeout
//	balance/cache.go     — TTL-cached account equity with single-flight refresh
//	uptime/prober.go     — connectivity probe counters for the dashboard
//	api/                 — HTTP endpoints under /api plus the WebSocket journal stream
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"hlbridge/internal/account"
	"hlbridge/internal/api"
	"hlbridge/internal/balance"
	"hlbridge/internal/config"
	"hlbridge/internal/engine"
	"hlbridge/internal/journal"
	"hlbridge/internal/strategy"
	"hlbridge/internal/symlock"
	"hlbridge/internal/uptime"
	"hlbridge/internal/venue"
	"hlbridge/pkg/types"
)

func main() {
	os.Exit(run())
}

func run() int {
	// A missing .env is fine; deployments set real environment variables.
	_ = godotenv.Load()

	cfgPath := "configs/config.yaml"
	if p := os.Getenv("HLBRIDGE_CONFIG"); p != "" {
		cfgPath = p
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		slog.Error("failed to load config", "error", err, "path", cfgPath)
		return 1
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		return 1
	}

	var handler slog.Handler
	opts := &slog.HandlerOptions{Level: parseLogLevel(cfg.Logging.Level)}
	if cfg.Logging.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	logger := slog.New(handler)

	env := types.Environment(cfg.Environment)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	openCtx, openCancel := context.WithTimeout(ctx, cfg.Mongo.Timeout)
	store, err := journal.OpenMongo(openCtx, cfg.Mongo.URL, cfg.Mongo.Database)
	openCancel()
	if err != nil {
		logger.Error("failed to open journal store", "error", err)
		return 1
	}
	defer func() {
		closeCtx, closeCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer closeCancel()
		if err := store.Close(closeCtx); err != nil {
			logger.Error("failed to close journal store", "error", err)
		}
	}()

	registry, err := strategy.NewRegistry(ctx, strategy.NewMongoPersister(store.Database()), logger)
	if err != nil {
		logger.Error("failed to load strategy registry", "error", err)
		return 1
	}

	client, err := venue.NewClient(env, cfg.Key(env), logger)
	if err != nil {
		logger.Error("failed to build venue client", "error", err)
		return 1
	}

	resolver := account.NewResolver(client, logger)
	master, err := resolver.Resolve(ctx, client.Address())
	if err != nil {
		logger.Error("failed to resolve trading account", "error", err, "environment", env)
		return 1
	}
	client.SetAccount(master)
	logger.Info("trading account resolved", "environment", env, "wallet_address", master)

	accountFn := client.Account
	hub := api.NewHub(logger)
	recorder := journal.NewRecorder(store, logger, hub)
	locks := symlock.New(symlock.DefaultTimeout)
	eng := engine.New(client, accountFn, locks, registry, recorder, logger)
	bal := balance.New(client, accountFn, cfg.Balance.TTL, logger)
	prober := uptime.New(cfg.Uptime.Target, cfg.Uptime.Interval, cfg.Uptime.Timeout, logger)
	go prober.Run(ctx)

	restart := make(chan struct{}, 1)
	handlers := api.NewHandlers(cfg, eng, client, resolver, bal, registry, recorder, prober, hub, restart, logger)
	server := api.NewServer(cfg, handlers, hub, logger)

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.Start()
	}()

	recorder.Log(ctx, "INFO", "signal bridge started", map[string]any{
		"environment": string(env),
		"port":        cfg.Server.Port,
	})

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	code := 0
	select {
	case sig := <-sigCh:
		logger.Info("received shutdown signal", "signal", sig.String())
	case <-restart:
		// The supervisor restarts the process on clean exit.
		logger.Info("restart requested, shutting down")
	case err := <-serverErr:
		if err != nil {
			logger.Error("api server failed", "error", err)
			code = 1
		}
	}

	cancel()
	if err := server.Stop(); err != nil {
		logger.Error("failed to stop api server", "error", err)
	}
	return code
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
