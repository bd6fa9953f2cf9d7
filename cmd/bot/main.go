package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/franckalain/caloriecounter/internal/bot"
	"github.com/franckalain/caloriecounter/internal/config"
	"github.com/franckalain/caloriecounter/internal/database"
	"github.com/franckalain/caloriecounter/internal/logging"
	"github.com/franckalain/caloriecounter/internal/logstore"
	"github.com/franckalain/caloriecounter/internal/logstore/sheets"
	"github.com/franckalain/caloriecounter/internal/ml"
	"github.com/franckalain/caloriecounter/internal/server"
	"github.com/franckalain/caloriecounter/internal/telegram"
	"golang.org/x/sync/errgroup"
)

func main() {
	configPath := flag.String("config", config.GetConfigPath(), "path to configuration file")
	flag.Parse()

	// Load configuration
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatal("Failed to load configuration:", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal("Invalid configuration:\n", err)
	}

	logger, cleanup, err := logging.New(cfg.Log.Level, cfg.Log.File)
	if err != nil {
		log.Fatal("Failed to open log file:", err)
	}
	defer cleanup()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("bot stopped with error", "error", err)
		cleanup()
		os.Exit(1)
	}
	logger.Info("bot stopped")
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	// Initialize ML service
	gen, err := ml.NewGenerator(cfg.ML.Type, ml.GoogleConfig{
		ProjectID:       cfg.ML.ProjectID,
		Location:        cfg.ML.Location,
		ModelName:       cfg.ML.Model,
		CredentialsFile: cfg.ML.CredentialsFile,
	})
	if err != nil {
		return fmt.Errorf("failed to create ML model: %w", err)
	}
	if err := gen.Load(ctx); err != nil {
		return fmt.Errorf("failed to load ML model: %w", err)
	}
	defer closeQuietly(logger, "ML model", gen)

	// Initialize log store
	table, err := openTable(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to open log store: %w", err)
	}
	defer closeQuietly(logger, "log store", table)

	store := logstore.New(table, logger)
	pingCtx, cancel := context.WithTimeout(ctx, cfg.RequestTimeout())
	err = store.Ping(pingCtx)
	cancel()
	if err != nil {
		return fmt.Errorf("log store pre-flight check failed: %w", err)
	}
	logger.Info("log store ready", "backend", cfg.Store.Backend)

	router := bot.NewRouter(
		ml.NewAnalyzer(gen, logger),
		ml.NewInterpreter(gen, logger),
		store,
		logger,
	)

	g, ctx := errgroup.WithContext(ctx)
	if cfg.Telegram.Token != "" {
		app, err := telegram.NewBotApp(cfg.Telegram.Token, router, cfg.RequestTimeout(), logger)
		if err != nil {
			return err
		}
		g.Go(func() error { return app.Run(ctx) })
	}
	if cfg.Server.Port != "" {
		srv := server.New(router, cfg.RequestTimeout(), logger)
		g.Go(func() error { return srv.Start(ctx, cfg.Server.Port) })
	}
	return g.Wait()
}

func openTable(ctx context.Context, cfg *config.Config) (logstore.Table, error) {
	switch cfg.Store.Backend {
	case "sheets":
		t, err := sheets.Open(ctx, sheets.Config{
			SpreadsheetID:   cfg.Store.SheetID,
			CredentialsFile: cfg.Store.CredentialsFile,
		})
		if err != nil {
			return nil, err
		}
		return t, nil
	case "sqlite":
		t, err := database.NewSQLiteTable(cfg.Store.SQLitePath)
		if err != nil {
			return nil, err
		}
		return t, nil
	default:
		return nil, errors.New("unsupported store backend: " + cfg.Store.Backend)
	}
}

func closeQuietly(logger *slog.Logger, name string, v any) {
	c, ok := v.(io.Closer)
	if !ok {
		return
	}
	if err := c.Close(); err != nil {
		logger.Warn("failed to close "+name, "error", err)
	}
}
