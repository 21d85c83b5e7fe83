// Package pipeline runs passes of the staged file-migration pipeline:
// duplicate quarantine on the intake directory followed by three threshold
// gated moves (intake→quarantine→backup→archive), and serializes passes
// behind a single-worker queue.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/eargollo/autofilebot/internal/config"
	"github.com/eargollo/autofilebot/internal/failure"
	"github.com/eargollo/autofilebot/internal/stage"
)

// Recorder persists finished passes.
type Recorder interface {
	Record(ctx context.Context, res Result) error
}

// Options configures a Runner. Every field is optional.
type Options struct {
	FS       stage.FS // defaults to stage.OS
	Logger   *slog.Logger
	Recorder Recorder
}

// Runner executes passes against a fixed configuration. RunPass is not
// reentrant; use a Queue to serialize triggers.
type Runner struct {
	cfg      config.Pipeline
	engine   *stage.Engine
	log      *slog.Logger
	recorder Recorder
	now      func() time.Time

	mu   sync.RWMutex
	last *Result
}

// NewRunner creates a Runner bound to cfg.
func NewRunner(cfg config.Pipeline, opts Options) *Runner {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Runner{
		cfg:      cfg,
		engine:   stage.New(opts.FS, log),
		log:      log,
		recorder: opts.Recorder,
		now:      time.Now,
	}
}

// Config returns the configuration the runner was built with.
func (r *Runner) Config() config.Pipeline { return r.cfg }

// Stages returns the three stage transitions in pipeline order.
func (r *Runner) Stages() []stage.Stage {
	return []stage.Stage{
		{Name: "intake", Source: r.cfg.IntakeDir, Dest: r.cfg.QuarantineDir, Threshold: r.cfg.Thresholds[0]},
		{Name: "quarantine", Source: r.cfg.QuarantineDir, Dest: r.cfg.BackupDir, Threshold: r.cfg.Thresholds[1]},
		{Name: "backup", Source: r.cfg.BackupDir, Dest: r.cfg.ArchiveDir, Threshold: r.cfg.Thresholds[2]},
	}
}

// StageStatus is a read-only view of one stage between passes.
type StageStatus struct {
	Stage     stage.Stage
	FileCount int
	Ready     bool // the next pass would advance this stage
	Err       error
}

// Inspect counts the files waiting in each stage without moving anything.
func (r *Runner) Inspect() []StageStatus {
	stages := r.Stages()
	out := make([]StageStatus, 0, len(stages))
	for _, st := range stages {
		n, err := r.engine.CountFiles(st.Source)
		out = append(out, StageStatus{
			Stage:     st,
			FileCount: n,
			Ready:     err == nil && n >= st.Threshold,
			Err:       err,
		})
	}
	return out
}

// Last returns a copy of the most recent result, or nil before the first pass.
func (r *Runner) Last() *Result {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.last == nil {
		return nil
	}
	res := *r.last
	return &res
}

// RunPass executes one full pass and returns its result. Failures never
// escape as panics or errors: they are logged and reported through
// Result.Outcome. A pass always runs to completion or failure; ctx only
// carries values to the recorder and its cancellation is ignored.
func (r *Runner) RunPass(ctx context.Context, triggeredBy string) (res Result) {
	res = Result{
		PassID:      uuid.NewString(),
		TriggeredBy: triggeredBy,
		StartedAt:   r.now(),
	}
	log := r.log.With("pass_id", res.PassID, "triggered_by", triggeredBy)
	engine := r.engine.WithLogger(log)

	state := StateScanningDuplicates
	defer func() {
		if p := recover(); p != nil {
			res.fail(state, failure.Unexpected("pass", fmt.Errorf("panic: %v", p)))
		}
		res.FinishedAt = r.now()
		r.finish(ctx, log, res)
	}()

	log.Debug("pass started")

	if err := r.quarantineDuplicates(engine, log, &res); err != nil {
		res.fail(state, err)
		return res
	}

	steps := []State{StateEvaluatingIntake, StateEvaluatingQuarantine, StateEvaluatingBackup}
	for i, st := range r.Stages() {
		state = steps[i]
		ev, err := engine.Evaluate(st)
		if err != nil {
			res.fail(state, err)
			return res
		}
		res.Stages = append(res.Stages, ev)

		switch state {
		case StateEvaluatingIntake:
			res.Signal = SignalSuccess
			if ev.Advanced {
				res.Signal = SignalRunning
			}
		case StateEvaluatingQuarantine:
			if ev.Advanced {
				res.Signal = SignalRunning
			}
		case StateEvaluatingBackup:
			// Reaching the archive reports SUCCESS even when earlier stages
			// moved files in the same pass.
			if ev.Advanced {
				res.Signal = SignalSuccess
			}
		}
	}

	res.Outcome = OutcomeCompleted
	return res
}

// quarantineDuplicates moves every duplicate found in intake into quarantine.
// A move failure is logged and recorded; only a failed scan is returned.
func (r *Runner) quarantineDuplicates(engine *stage.Engine, log *slog.Logger, res *Result) error {
	report, err := engine.ScanDuplicates(r.cfg.IntakeDir)
	if err != nil {
		return err
	}
	res.HashFailures = report.Failures
	res.Duplicates = report.Duplicates

	for _, dup := range report.Duplicates {
		log.Warn("duplicate detected", "path", dup, "dir", r.cfg.IntakeDir)
		if err := engine.MoveFile(dup, r.cfg.QuarantineDir); err != nil {
			log.Error("duplicate not quarantined", "path", dup, "error", err)
			res.DuplicateFailures = append(res.DuplicateFailures, stage.MoveFailure{Name: dup, Err: err})
			continue
		}
		log.Info("duplicate quarantined", "path", dup, "to", r.cfg.QuarantineDir)
	}
	return nil
}

func (res *Result) fail(state State, err error) {
	res.Outcome = OutcomeFailed
	res.Signal = SignalError
	res.FailedIn = state
	res.Err = err
}

// finish logs the signal line, stores the result as Last and hands it to the
// recorder.
func (r *Runner) finish(ctx context.Context, log *slog.Logger, res Result) {
	if res.Completed() {
		log.Info(semaphoreLine(res.Signal),
			"signal", res.Signal,
			"moved", res.FilesMoved(),
			"move_failures", res.MoveFailures(),
			"duplicates", len(res.Duplicates),
			"duration", res.Duration())
	} else {
		log.Error("pass failed",
			"state", res.FailedIn,
			"kind", failure.KindOf(res.Err),
			"error", res.Err)
		log.Error(semaphoreLine(res.Signal), "signal", res.Signal)
	}

	r.mu.Lock()
	r.last = &res
	r.mu.Unlock()

	if r.recorder == nil {
		return
	}
	// Recording must survive a cancelled pass context.
	recCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := r.recorder.Record(recCtx, res); err != nil {
		log.Warn("record pass", "error", err)
	}
}
