package main

import (
	"os"
	"strings"

	"github.com/fieldserve/comms-gateway/internal/config"
	"github.com/fieldserve/comms-gateway/pkg/logger"
	"github.com/fieldserve/comms-gateway/pkg/pg"
)

// Applies pending schema migrations against the write database.
// Usage: cli --env=.env --dir=./migrations
func main() {
	if err := config.Load(argValue("--env=", ".env")); err != nil {
		logger.Error("failed to load config", "error", err)
		return
	}

	pgConf := pg.Config{
		User:     config.Get().PostgresWriteUser,
		Host:     config.Get().PostgresWriteHost,
		Port:     config.Get().PostgresWritePort,
		Password: config.Get().PostgresWritePassword,
		Database: config.Get().PostgresWriteDatabase,
	}

	dir := argValue("--dir=", "./migrations")
	if err := pg.Migrate(pgConf, dir); err != nil {
		logger.Error("migration failed", "dir", dir, "error", err)
		os.Exit(1)
	}
	logger.Info("migrations applied", "dir", dir)
}

// argValue returns the value of flag from os.Args, or fallback when the flag
// is absent. Either way the path must exist.
func argValue(flag, fallback string) string {
	path := fallback
	for _, v := range os.Args {
		if strings.HasPrefix(v, flag) {
			path = strings.TrimPrefix(v, flag)
			break
		}
	}
	if _, err := os.Stat(path); err != nil {
		logger.Error("path not accessible", "path", path, "error", err)
		return ""
	}
	return path
}
