package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/eargollo/autofilebot/internal/config"
	"github.com/eargollo/autofilebot/internal/db"
	"github.com/eargollo/autofilebot/internal/history"
)

// app holds what every command needs once startup has succeeded.
type app struct {
	cfg   *config.Config
	log   *slog.Logger
	store *history.Store // nil when history is disabled

	closers []io.Closer
}

// setup loads and validates the configuration, configures logging and opens
// the history database. Any error is a startup failure.
func setup(cmd *cobra.Command) (*app, error) {
	path, _ := cmd.Flags().GetString("config")

	cfg, err := config.Load(path)
	if err != nil {
		return nil, &exitError{code: exitStartup, err: err}
	}

	a := &app{cfg: cfg}
	log, closer, err := newLogger(cmd.ErrOrStderr(), cfg.LogLevel, cfg.LogFile)
	if err != nil {
		return nil, &exitError{code: exitStartup, err: err}
	}
	a.log = log
	if closer != nil {
		a.closers = append(a.closers, closer)
	}
	slog.SetDefault(log)

	log.Info("autofilebot starting",
		"version", version,
		"config", path,
		"intake", cfg.IntakeDir,
		"quarantine", cfg.QuarantineDir,
		"backup", cfg.BackupDir,
		"archive", cfg.ArchiveDir,
		"thresholds", cfg.Thresholds)

	if err := cfg.Validate(); err != nil {
		a.Close()
		return nil, &exitError{code: exitStartup, err: err}
	}

	if config.Enabled(cfg.DBPath) {
		database, err := db.Open(cfg.DBPath)
		if err != nil {
			a.Close()
			return nil, &exitError{code: exitStartup, err: fmt.Errorf("open database: %w", err)}
		}
		a.closers = append(a.closers, database)
		applied, err := db.RunMigrations(cmd.Context(), database)
		if err != nil {
			a.Close()
			return nil, &exitError{code: exitStartup, err: fmt.Errorf("run migrations: %w", err)}
		}
		log.Debug("history database ready", "path", cfg.DBPath, "migrations_applied", len(applied))
		a.store = history.New(database)
	}
	return a, nil
}

// Close releases the database and log file in reverse order of opening.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i].Close()
	}
	a.closers = nil
}

// newLogger builds the text handler on w, tee'd to logFile when one is set.
func newLogger(w io.Writer, level, logFile string) (*slog.Logger, io.Closer, error) {
	var closer io.Closer
	if logFile != "" {
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}
		w = io.MultiWriter(w, f)
		closer = f
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: parseLogLevel(level),
	})), closer, nil
}

// parseLogLevel converts a config string ("debug", "info", "warn", "error")
// to its slog.Level equivalent. Unknown values default to Info.
func parseLogLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
