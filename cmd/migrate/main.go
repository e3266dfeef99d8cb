// Command migrate creates the database schema.
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/fluxionhq/fluxion/internal/config"
	"github.com/fluxionhq/fluxion/internal/infrastructure/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	db, err := storage.Connect(storage.Config{
		URL:            cfg.Database.URL,
		MaxConnections: cfg.Database.MaxConnections,
	})
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := storage.Migrate(context.Background(), db); err != nil {
		slog.Error("migration failed", "error", err)
		os.Exit(1)
	}

	slog.Info("migration complete")
}
