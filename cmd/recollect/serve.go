package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/tidemark-ai/recollect/internal/ai"
	"github.com/tidemark-ai/recollect/internal/config"
	"github.com/tidemark-ai/recollect/internal/db"
	"github.com/tidemark-ai/recollect/internal/logging"
	"github.com/tidemark-ai/recollect/internal/memory"
	"github.com/tidemark-ai/recollect/internal/retention"
	"github.com/tidemark-ai/recollect/internal/server"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the memory service",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
	}
}

func runServe() error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	// Storage is optional: without it every component degrades to a no-op
	// and the service runs with reduced memory.
	var store *db.Store
	if cfg.Database.Path != "" {
		store, err = db.NewSQLite(cfg.Database.Path)
		if err != nil {
			return fmt.Errorf("failed to open store: %w", err)
		}
		defer store.Close()
	} else {
		logging.Warnf("no database configured; running without memory")
	}

	provider, err := ai.New(cfg.Provider.Name, cfg.Provider.APIKey, cfg.Provider.Model)
	if err != nil {
		if err != ai.ErrNoProvider {
			return err
		}
		logging.Warnf("no language-model provider configured; summarization disabled")
	}

	cache := memory.NewTTLCache(512, 30*time.Minute)
	tasks := memory.NewTaskQueue(128, 2*time.Minute)
	defer tasks.Close()

	summarizer := memory.NewSummarizer(store, provider, cfg.Summarizer)
	ingestor := memory.NewIngestor(store, cache, summarizer, tasks)
	builder := memory.NewBuilder(store, cache)

	scheduler := retention.New(store, cfg.Retention)
	if err := scheduler.Start(); err != nil {
		return fmt.Errorf("failed to start retention scheduler: %w", err)
	}
	defer scheduler.Stop()

	srv := server.New(cfg, store, ingestor, builder, scheduler)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Infof("received signal %v, shutting down", sig)
		cancel()
	}()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
	case <-ctx.Done():
		shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
		defer stop()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logging.Errorf("shutdown error: %v", err)
		}
	}
	return nil
}
