package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"taskboard/internal/board"
	"taskboard/internal/config"
	"taskboard/internal/models"
	"taskboard/internal/server"
	"taskboard/internal/storage/journal"
	"taskboard/internal/taskapi"
)

func newServeCmd(root *rootOptions) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the task board HTTP service",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.load()
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Server.Addr = addr
			}
			return serve(cmd.Context(), cfg)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "HTTP listen address (overrides server.addr)")
	return cmd
}

func serve(ctx context.Context, cfg *config.Config) error {
	if ctx == nil {
		ctx = context.Background()
	}
	logger := newLogger(cfg.Log, os.Stdout)
	logger.Info("taskboard starting", slog.String("api", cfg.API.BaseURL), slog.String("journal", cfg.Journal.Driver))

	remotes := make(map[models.TaskKind]board.Remote)
	for _, kind := range []models.TaskKind{models.KindMaintenance, models.KindPlant} {
		client, err := taskapi.New(kind, taskapi.Options{
			BaseURL: cfg.API.BaseURL,
			Token:   cfg.API.Token,
			Timeout: cfg.API.Timeout,
			Logger:  logger.With(slog.String("component", "taskapi")),
		})
		if err != nil {
			return fmt.Errorf("task api client: %w", err)
		}
		remotes[kind] = client
	}

	var moves server.Journal
	if cfg.Journal.Driver != "none" {
		store, err := journal.Open(cfg.Journal.Driver, cfg.Journal.DSN, logger)
		if err != nil {
			logger.Error("unable to open journal", slog.String("error", err.Error()))
			return err
		}
		defer store.Close()
		moves = store

		if cfg.Journal.Retention > 0 {
			pruneCtx, stopPrune := context.WithCancel(ctx)
			defer stopPrune()
			go pruneLoop(pruneCtx, store, cfg.Journal.Retention, logger)
		}
	}

	srv := server.New(server.Options{
		Remotes:       remotes,
		Journal:       moves,
		Logger:        logger,
		DueSoonWindow: cfg.Board.DueSoonWindow,
		InboxSize:     cfg.Board.InboxSize,
		ConsoleDir:    cfg.Server.ConsoleDir,
	})
	defer srv.Close()

	httpServer := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           srv.Engine(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting server", slog.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	sigCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	select {
	case err, ok := <-errCh:
		if ok {
			logger.Error("server stopped unexpectedly", slog.String("error", err.Error()))
			return err
		}
	case <-sigCtx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shutdown server", slog.String("error", err.Error()))
	}

	logger.Info("server stopped")
	return nil
}

// pruneLoop drops journal entries older than retention once an hour.
func pruneLoop(ctx context.Context, store *journal.Store, retention time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		if _, err := store.Prune(ctx, time.Now().Add(-retention)); err != nil && ctx.Err() == nil {
			logger.Warn("journal prune failed", slog.String("error", err.Error()))
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
