package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// Version is set at build time via -ldflags
var Version = "dev"

var configPath string

func main() {
	// Load .env if present; real env always wins
	_ = godotenv.Load()

	root := &cobra.Command{
		Use:   "recollect",
		Short: "Conversation memory service: ingestion, context packs, rolling summaries",
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "recollect.yaml", "path to config file")

	root.AddCommand(serveCmd())
	root.AddCommand(cleanupCmd())
	root.AddCommand(versionCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(Version)
		},
	}
}
