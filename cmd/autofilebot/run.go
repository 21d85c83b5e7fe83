package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/eargollo/autofilebot/internal/pipeline"
)

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run one pass and exit",
		Long: `Run a single pass over the configured directories and exit.

The exit code is 0 when the pass completes (RUNNING or SUCCESS) and 3 when it
ends with ERROR.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			opts := pipeline.Options{Logger: a.log}
			if a.store != nil {
				opts.Recorder = a.store
			}
			runner := pipeline.NewRunner(a.cfg.Pipeline(), opts)

			res := runner.RunPass(cmd.Context(), "cli")
			if !res.Completed() {
				return &exitError{
					code: exitPassFailed,
					err:  fmt.Errorf("pass %s failed in %s: %w", res.PassID, res.FailedIn, res.Err),
				}
			}
			return nil
		},
	}
}
