package main

import (
	"context"
	"database/sql"
	"os"
	"time"

	_ "github.com/lib/pq"

	"wastetrack/internal/bordereau/store"
	"wastetrack/internal/platform/config"
	"wastetrack/internal/platform/logger"
)

func main() {
	cfg := config.FromEnv()
	log := logger.NewStructured()

	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		log.Error("open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	if err := store.RunMigrations(ctx, db); err != nil {
		log.Error("migrate", "error", err)
		os.Exit(1)
	}
	log.Info("migrations applied")
}
