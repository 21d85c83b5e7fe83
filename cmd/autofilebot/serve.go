package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/eargollo/autofilebot/internal/api"
	"github.com/eargollo/autofilebot/internal/config"
	"github.com/eargollo/autofilebot/internal/pipeline"
	"github.com/eargollo/autofilebot/internal/scheduler"
	"github.com/eargollo/autofilebot/internal/watch"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run passes until interrupted",
		Long: `Run one pass at startup, then on the configured schedule and whenever a
file appears in the intake, quarantine or backup directory. Passes never
overlap. The status API listens on http_addr unless it is "-".`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, a)
		},
	}
}

// serve runs the queue worker and every enabled trigger until ctx is done.
// Triggers are built before anything starts so a bad schedule or an
// unwatchable directory fails startup cleanly.
func serve(ctx context.Context, a *app) error {
	cfg := a.cfg
	log := a.log

	opts := pipeline.Options{Logger: log}
	if a.store != nil {
		opts.Recorder = a.store
	}
	runner := pipeline.NewRunner(cfg.Pipeline(), opts)
	queue := pipeline.NewQueue(runner, log)

	deps := api.Deps{Pipeline: runner, Queue: queue, Version: version}
	if a.store != nil {
		deps.Store = a.store
	}

	var sched *scheduler.Scheduler
	if config.Enabled(cfg.Schedule) {
		sched = scheduler.New(log)
		if err := sched.SetJob(cfg.Schedule, func() { queue.Trigger("schedule") }); err != nil {
			return &exitError{code: exitStartup, err: err}
		}
		deps.Sched = sched
	}

	var watcher *watch.Watcher
	if cfg.WatchEnabled() {
		w, err := watch.New(cfg.Dirs()[:3], cfg.Debounce, func(source string) { queue.Trigger(source) }, log)
		if err != nil {
			return &exitError{code: exitStartup, err: err}
		}
		watcher = w
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return queue.Run(ctx) })

	if sched != nil {
		sched.Start()
		g.Go(func() error {
			<-ctx.Done()
			sched.Stop()
			return nil
		})
	}
	if watcher != nil {
		g.Go(func() error { return watcher.Run(ctx) })
	}
	if config.Enabled(cfg.HTTPAddr) {
		srv := api.New(cfg.HTTPAddr, deps, log)
		g.Go(func() error {
			if err := srv.Run(ctx); err != nil {
				return fmt.Errorf("http server: %w", err)
			}
			return nil
		})
	}

	queue.Trigger("startup")

	err := g.Wait()
	log.Info("autofilebot stopped", "passes", queue.State().Completed)
	return err
}
