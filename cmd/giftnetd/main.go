package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"giftnet/config"
	"giftnet/identity"
	"giftnet/ledger"
	"giftnet/native/campaign"
	"giftnet/observability"
	"giftnet/observability/logging"
	"giftnet/rpc"
	"giftnet/storage"
)

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	flag.Parse()

	env := strings.TrimSpace(os.Getenv("GIFTNET_ENV"))
	logger := logging.Setup("giftnetd", env)

	cfg, err := config.Load(*configFile)
	if err != nil {
		logger.Error("Failed to load config", slog.Any("error", err))
		os.Exit(1)
	}

	owner, err := cfg.Owner()
	if err != nil {
		logger.Error("Invalid owner address", slog.Any("error", err))
		os.Exit(1)
	}
	vault, err := cfg.Vault()
	if err != nil {
		logger.Error("Invalid vault address", slog.Any("error", err))
		os.Exit(1)
	}

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		logger.Error("Failed to create data directory", slog.Any("error", err))
		os.Exit(1)
	}
	db, err := storage.NewLevelDB(filepath.Join(cfg.DataDir, "campaigns"))
	if err != nil {
		logger.Error("Failed to open campaign database", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	verifier, err := identity.NewStore(filepath.Join(cfg.DataDir, "identity.db"), nil)
	if err != nil {
		logger.Error("Failed to open identity store", slog.Any("error", err))
		os.Exit(1)
	}
	defer verifier.Close()

	engine := campaign.NewEngine(
		campaign.NewStoreState(db),
		ledger.New(db, vault),
		verifier,
		campaign.SingleOwner(owner),
		campaign.SystemBeacon{},
	)
	engine.SetEmitter(observability.LogEmitter{Logger: logger})

	server := rpc.NewServer(engine, logger)
	httpServer := &http.Server{
		Addr:              cfg.RPCAddress,
		Handler:           server.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting JSON-RPC server", slog.String("address", cfg.RPCAddress))
		errCh <- httpServer.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("Shutting down", slog.String("signal", sig.String()))
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(ctx); err != nil {
			logger.Error("Shutdown failed", slog.Any("error", err))
		}
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("RPC server stopped", slog.Any("error", err))
			os.Exit(1)
		}
	}
	logger.Info("giftnetd stopped")
}
