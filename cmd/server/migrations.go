package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-jobs/internal/platform/postgres"
)

// migrationCommands lists the goose commands exposed through -migrate.
var migrationCommands = map[string]bool{
	"up":        true,
	"up-by-one": true,
	"down":      true,
	"redo":      true,
	"status":    true,
	"version":   true,
}

// runMigrations validates command and runs it against db.
func runMigrations(ctx context.Context, db *sql.DB, command string, args []string, log *slog.Logger) error {
	if !migrationCommands[command] {
		return fmt.Errorf("unsupported migration command %q", command)
	}

	migrationLog := log.With(
		slog.String("correlation_id", uuid.NewString()),
		slog.String("component", "migrations"),
		slog.String("command", command))

	start := time.Now()
	migrationLog.Info("starting migration operation")

	err := postgres.RunMigrations(ctx, db, command, args...)

	migrationLog.Info("migration operation completed",
		slog.Int64("duration_ms", time.Since(start).Milliseconds()),
		slog.Bool("success", err == nil))
	return err
}
