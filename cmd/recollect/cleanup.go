package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tidemark-ai/recollect/internal/config"
	"github.com/tidemark-ai/recollect/internal/db"
	"github.com/tidemark-ai/recollect/internal/db/migrations"
	"github.com/tidemark-ai/recollect/internal/logging"
	"github.com/tidemark-ai/recollect/internal/retention"
)

func cleanupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cleanup",
		Short: "Purge aged items and runs once, then exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if cfg.Database.Path == "" {
				fmt.Println("no database configured; nothing to purge")
				return nil
			}

			migrations.QuietMode = true
			logging.Disable()
			store, err := db.NewSQLite(cfg.Database.Path)
			if err != nil {
				return err
			}
			defer store.Close()
			logging.Enable()

			scheduler := retention.New(store, cfg.Retention)
			count, err := scheduler.RunCleanupNow(context.Background())
			if err != nil {
				return err
			}
			fmt.Printf("deleted %d rows\n", count)
			return nil
		},
	}
}
