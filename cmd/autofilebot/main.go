package main

import (
	"errors"
	"os"

	"github.com/spf13/cobra"
)

// Injected at build time via -ldflags; defaults to "dev".
var version = "dev"

// Process exit codes.
const (
	exitOK         = 0
	exitStartup    = 1
	exitPassFailed = 3
)

const defaultConfigPath = "config.yaml"

// exitError carries a process exit code out of a cobra command.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

// exitCode maps a command error to the process exit code.
func exitCode(err error) int {
	if err == nil {
		return exitOK
	}
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	return exitStartup
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "autofilebot",
		Short: "Staged file-migration agent",
		Long: `autofilebot moves files from an intake directory through quarantine and
backup into an archive directory whenever a stage holds enough files, and
quarantines byte-identical duplicates found in intake.

Available commands:
  serve   - Run passes on a schedule and on filesystem changes, with a status API
  run     - Run a single pass and exit (exit code 3 when the pass fails)
  version - Print the version`,
		SilenceUsage: true,
	}
	root.PersistentFlags().String("config", defaultConfigPath, "path to config file")

	root.AddCommand(newServeCmd())
	root.AddCommand(newRunCmd())
	root.AddCommand(newVersionCmd())
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(exitCode(err))
	}
}
