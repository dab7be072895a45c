// Command e2dadmin runs operator tasks against the E2D Connect database:
// creating administrators, JSON export and import, and the sanction sync.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/e2dconnect/e2d/internal/config"
	"github.com/e2dconnect/e2d/internal/database"
	"github.com/e2dconnect/e2d/internal/logging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		os.Stderr.WriteString("invalid configuration: " + err.Error() + "\n")
		os.Exit(1)
	}
	logger := logging.New(os.Stderr, cfg.LogLevel, cfg.LogFormat)

	db, err := database.Open(cfg.DBPath)
	if err != nil {
		logger.Error("failed to open database", "path", cfg.DBPath, "error", err)
		os.Exit(1)
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cli := commandLine{db: db, out: os.Stdout, in: os.Stdin, logger: logger}
	if err := cli.run(ctx, os.Args); err != nil {
		if !errors.Is(err, errHelp) {
			logger.Error("command failed", "error", err)
		}
		db.Close()
		os.Exit(1)
	}
}
