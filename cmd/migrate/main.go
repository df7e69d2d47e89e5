// Migrate applies the embedded SQL migrations to DATABASE_URL.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/CCodeCommunity/CardGameBackend/internal/config"
	"github.com/CCodeCommunity/CardGameBackend/internal/db/migrate"
	"github.com/CCodeCommunity/CardGameBackend/internal/logging"
)

func main() {
	direction := flag.String("direction", "up", "Migration direction: up or down")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	log, err := logging.New(os.Stderr, logging.Options{Level: cfg.LogLevel, Format: "text"})
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger:", err)
		os.Exit(1)
	}
	ctx := context.Background()

	if cfg.DatabaseURL == "" {
		log.Error(ctx, "DATABASE_URL is not set")
		os.Exit(1)
	}
	dir, err := migrate.ParseDirection(*direction)
	if err != nil {
		log.Error(ctx, "invalid direction", "error", err)
		os.Exit(2)
	}
	if err := migrate.Run(cfg.DatabaseURL, dir); err != nil {
		log.Error(ctx, "migrate failed", "direction", dir, "error", err)
		os.Exit(1)
	}
	version, dirty, err := migrate.Version(cfg.DatabaseURL)
	if err != nil {
		log.Warn(ctx, "read schema version failed", "error", err)
		return
	}
	log.Info(ctx, "migrations applied", "direction", dir, "version", version, "dirty", dirty)
}
