package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"golang.org/x/sync/errgroup"

	"qrshare/internal/auth"
	"qrshare/internal/config"
	"qrshare/internal/content"
	"qrshare/internal/db"
	"qrshare/internal/handlers"
	"qrshare/internal/service"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Create data dir for DB
	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0755); err != nil {
		return err
	}

	dbc, err := db.Open(ctx, cfg.DBOptions(cfg.DBPath))
	if err != nil {
		return err
	}
	defer dbc.Close()

	if err := db.Migrate(ctx, dbc); err != nil {
		return err
	}

	settings, err := db.ReadSettings(ctx, dbc)
	if err != nil {
		return err
	}
	logger.Info("database ready",
		"component", "db",
		"path", cfg.DBPath,
		"journal_mode", settings.JournalMode,
		"synchronous", settings.Synchronous,
		"busy_timeout_ms", settings.BusyTimeoutMillis,
		"wal_autocheckpoint", settings.WALAutoCheckpoint)

	users := auth.NewStore(dbc)
	codes := content.NewStore(dbc, content.WithMaxBytes(cfg.MaxContentBytes))
	svc := service.New(users, codes, logger)
	h := handlers.New(svc, dbc.PingContext, logger, cfg.MaxContentBytes)

	server := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           h.Routes(),
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("listening", "addr", cfg.Addr())
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
