package main

import (
	"context"
	"database/sql"

	"github.com/adaptive-reader/backend/internal/config"
	"github.com/adaptive-reader/backend/internal/database"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:           "readerctl",
	Short:         "Operator tools for the adaptive reader backend",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().String("config", "config.toml", "Path to the TOML config file")

	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(levelCmd)
	rootCmd.AddCommand(deltaCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(chunkCmd)
}

func loadConfig(cmd *cobra.Command) (config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	return config.Load(path)
}

func openDB(ctx context.Context, cmd *cobra.Command) (*sql.DB, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	return database.Connect(ctx, cfg.Database)
}
