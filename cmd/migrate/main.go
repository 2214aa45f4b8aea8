package main

import (
	"context"
	"os"

	database "github.com/Armour007/grc-backend/internal"
	"github.com/Armour007/grc-backend/internal/config"
	"github.com/Armour007/grc-backend/pkg/logger"
)

func main() {
	cfg, err := config.Load(os.Getenv("GRC_CONFIG"))
	if err != nil {
		logger.NewProduction().Fatal().Err(err).Msg("failed to load configuration")
	}
	log := logger.New(logger.Config{Level: cfg.Logger.Level, Format: cfg.Logger.Format}).WithComponent("migrate")

	database.Configure(cfg.Database.DSN(), cfg.Database.MaxOpenConns)
	db, err := database.Handle()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open database")
	}

	dir := os.Getenv("GRC_MIGRATIONS_DIR")
	if dir == "" {
		dir = "db/migrations"
	}
	n, err := newMigrator(db, log).Run(context.Background(), dir)
	if err != nil {
		log.Fatal().Err(err).Msg("migration failed")
	}
	log.Info().Int("applied", n).Msg("migrations up to date")
}
