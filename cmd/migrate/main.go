// migrate applies or rolls back the embedded DB migrations: go run ./cmd/migrate -direction up.
package main

import (
	"errors"
	"flag"
	"os"

	"go.uber.org/zap"

	"vehicle-marketplace/backend/internal/config"
	"vehicle-marketplace/backend/internal/db/migrate"
	"vehicle-marketplace/backend/internal/logging"
)

func main() {
	direction := flag.String("direction", "up", "Migration direction: up or down")
	steps := flag.Int("steps", 0, "Number of migrations to apply (0 = all)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		os.Stderr.WriteString("config: " + err.Error() + "\n")
		os.Exit(1)
	}
	logger, err := logging.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		os.Stderr.WriteString("logger: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	dir, err := migrate.ParseDirection(*direction)
	if err != nil {
		logger.Fatal("invalid direction", zap.Error(err))
	}
	if err := migrate.Run(cfg.DatabaseURL, dir, *steps); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			logger.Info("schema already at target version")
			return
		}
		logger.Fatal("migration failed", zap.Error(err))
	}
	v, dirty, err := migrate.Version(cfg.DatabaseURL)
	if err != nil {
		logger.Warn("read schema version", zap.Error(err))
		return
	}
	logger.Info("migrations applied", zap.String("direction", string(dir)), zap.Uint("version", v), zap.Bool("dirty", dirty))
}
