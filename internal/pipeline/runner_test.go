package pipeline_test

import (
	"bytes"
	"context"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eargollo/autofilebot/internal/config"
	"github.com/eargollo/autofilebot/internal/failure"
	"github.com/eargollo/autofilebot/internal/pipeline"
	"github.com/eargollo/autofilebot/internal/stage"
)

type fixture struct {
	cfg  config.Pipeline
	logs *bytes.Buffer
}

// newFixture creates the four stage directories under a temp root.
func newFixture(t *testing.T, thresholds [3]int) *fixture {
	t.Helper()
	root := t.TempDir()
	cfg := config.Pipeline{
		IntakeDir:     filepath.Join(root, "files"),
		QuarantineDir: filepath.Join(root, "error"),
		BackupDir:     filepath.Join(root, "backup"),
		ArchiveDir:    filepath.Join(root, "hadoop"),
		Thresholds:    thresholds,
	}
	for _, d := range []string{cfg.IntakeDir, cfg.QuarantineDir, cfg.BackupDir, cfg.ArchiveDir} {
		require.NoError(t, os.Mkdir(d, 0o755))
	}
	return &fixture{cfg: cfg, logs: &bytes.Buffer{}}
}

func (f *fixture) runner(opts pipeline.Options) *pipeline.Runner {
	opts.Logger = slog.New(slog.NewTextHandler(f.logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
	return pipeline.NewRunner(f.cfg, opts)
}

func write(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func list(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	out := []string{}
	for _, e := range entries {
		out = append(out, e.Name())
	}
	sort.Strings(out)
	return out
}

type memRecorder struct {
	mu      sync.Mutex
	results []pipeline.Result
}

func (m *memRecorder) Record(_ context.Context, res pipeline.Result) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results = append(m.results, res)
	return nil
}

func TestRunPassEmptyDirectories(t *testing.T) {
	f := newFixture(t, [3]int{1, 1, 1})
	r := f.runner(pipeline.Options{})

	res := r.RunPass(context.Background(), "test")

	require.True(t, res.Completed())
	assert.Equal(t, pipeline.SignalSuccess, res.Signal)
	assert.NotEmpty(t, res.PassID)
	assert.Len(t, res.Stages, 3)
	assert.Zero(t, res.FilesMoved())
	for _, d := range []string{f.cfg.IntakeDir, f.cfg.QuarantineDir, f.cfg.BackupDir, f.cfg.ArchiveDir} {
		assert.Empty(t, list(t, d))
	}
	assert.Contains(t, f.logs.String(), "[SEMAPHORE SIGNAL] 2 = SUCCESS")
}

func TestRunPassThreeIdenticalFiles(t *testing.T) {
	f := newFixture(t, [3]int{1, 1, 1})
	for _, n := range []string{"a.txt", "b.txt", "c.txt"} {
		write(t, f.cfg.IntakeDir, n, "same bytes")
	}
	rec := &memRecorder{}
	r := f.runner(pipeline.Options{Recorder: rec})

	res := r.RunPass(context.Background(), "test")

	require.True(t, res.Completed())
	assert.Equal(t, []string{
		filepath.Join(f.cfg.IntakeDir, "b.txt"),
		filepath.Join(f.cfg.IntakeDir, "c.txt"),
	}, res.Duplicates)
	assert.Empty(t, res.DuplicateFailures)

	// Intake advanced with the single survivor, then every stage advanced.
	for i, ev := range res.Stages {
		assert.True(t, ev.Advanced, "stage %d", i)
	}
	assert.Equal(t, 1, res.Stages[0].FileCount)
	assert.Equal(t, 3, res.Stages[1].FileCount)
	assert.Equal(t, pipeline.SignalSuccess, res.Signal, "final stage advanced")
	assert.Equal(t, []string{"a.txt", "b.txt", "c.txt"}, list(t, f.cfg.ArchiveDir))
	assert.Equal(t, 2+1+3+3, res.FilesMoved())

	out := f.logs.String()
	assert.Contains(t, out, "duplicate detected")
	assert.Contains(t, out, "level=WARN")

	require.Len(t, rec.results, 1)
	assert.Equal(t, res.PassID, rec.results[0].PassID)
}

func TestRunPassIntermediateStageReportsRunning(t *testing.T) {
	f := newFixture(t, [3]int{1, 5, 5})
	write(t, f.cfg.IntakeDir, "a.txt", "a")
	r := f.runner(pipeline.Options{})

	res := r.RunPass(context.Background(), "test")

	require.True(t, res.Completed())
	assert.Equal(t, pipeline.SignalRunning, res.Signal)
	assert.Equal(t, []string{"a.txt"}, list(t, f.cfg.QuarantineDir))
	assert.Contains(t, f.logs.String(), "[SEMAPHORE SIGNAL] 1 = RUNNING")
}

func TestRunPassQuarantineAdvanceOverridesSuccess(t *testing.T) {
	f := newFixture(t, [3]int{5, 1, 5})
	write(t, f.cfg.QuarantineDir, "q.txt", "q")
	r := f.runner(pipeline.Options{})

	res := r.RunPass(context.Background(), "test")

	assert.Equal(t, pipeline.SignalRunning, res.Signal)
	assert.Equal(t, []string{"q.txt"}, list(t, f.cfg.BackupDir))
}

func TestRunPassFinalStageOnlyReportsSuccess(t *testing.T) {
	f := newFixture(t, [3]int{1, 1, 1})
	write(t, f.cfg.BackupDir, "old.bin", "old")
	r := f.runner(pipeline.Options{})

	res := r.RunPass(context.Background(), "test")

	assert.Equal(t, pipeline.SignalSuccess, res.Signal)
	assert.False(t, res.Stages[0].Advanced)
	assert.False(t, res.Stages[1].Advanced)
	assert.True(t, res.Stages[2].Advanced)
	assert.Equal(t, []string{"old.bin"}, list(t, f.cfg.ArchiveDir))
}

func TestRunPassDuplicateCollisionIsReportedNotFatal(t *testing.T) {
	f := newFixture(t, [3]int{5, 5, 5})
	write(t, f.cfg.IntakeDir, "a.txt", "dup")
	write(t, f.cfg.IntakeDir, "b.txt", "dup")
	write(t, f.cfg.QuarantineDir, "b.txt", "already here")
	r := f.runner(pipeline.Options{})

	res := r.RunPass(context.Background(), "test")

	require.True(t, res.Completed())
	require.Len(t, res.DuplicateFailures, 1)
	assert.ErrorIs(t, res.DuplicateFailures[0].Err, stage.ErrDestinationExists)
	assert.Equal(t, 1, res.MoveFailures())
	assert.Equal(t, []string{"a.txt", "b.txt"}, list(t, f.cfg.IntakeDir))
}

func TestRunPassMissingIntakeFails(t *testing.T) {
	f := newFixture(t, [3]int{1, 1, 1})
	write(t, f.cfg.BackupDir, "keep.bin", "x")
	require.NoError(t, os.Remove(f.cfg.IntakeDir))
	rec := &memRecorder{}
	r := f.runner(pipeline.Options{Recorder: rec})

	res := r.RunPass(context.Background(), "test")

	assert.False(t, res.Completed())
	assert.Equal(t, pipeline.SignalError, res.Signal)
	assert.Equal(t, pipeline.StateScanningDuplicates, res.FailedIn)
	assert.Equal(t, failure.KindIO, failure.KindOf(res.Err))
	assert.Empty(t, res.Stages)
	assert.Equal(t, []string{"keep.bin"}, list(t, f.cfg.BackupDir), "later stages are skipped")
	assert.Contains(t, f.logs.String(), "[SEMAPHORE SIGNAL] 0 = ERROR")
	require.Len(t, rec.results, 1)
	assert.Equal(t, pipeline.OutcomeFailed, rec.results[0].Outcome)
}

func TestRunPassLaterStageFailure(t *testing.T) {
	f := newFixture(t, [3]int{1, 1, 1})
	write(t, f.cfg.QuarantineDir, "q.txt", "q")
	require.NoError(t, os.Remove(f.cfg.BackupDir))
	r := f.runner(pipeline.Options{})

	res := r.RunPass(context.Background(), "test")

	assert.False(t, res.Completed())
	assert.Equal(t, pipeline.StateEvaluatingBackup, res.FailedIn)
	require.Len(t, res.Stages, 2)
	assert.Len(t, res.Stages[1].Batch.Failures, 1, "the move into the missing backup dir failed")
	assert.Equal(t, []string{"q.txt"}, list(t, f.cfg.QuarantineDir))
}

func TestRunPassUnreadableFileDoesNotStopScan(t *testing.T) {
	f := newFixture(t, [3]int{9, 9, 9})
	write(t, f.cfg.IntakeDir, "a.txt", "dup")
	write(t, f.cfg.IntakeDir, "b.txt", "dup")
	write(t, f.cfg.IntakeDir, "c.txt", "dup")
	r := f.runner(pipeline.Options{FS: lockedFS{locked: "b.txt"}})

	res := r.RunPass(context.Background(), "test")

	require.True(t, res.Completed())
	require.Len(t, res.HashFailures, 1)
	assert.Equal(t, []string{filepath.Join(f.cfg.IntakeDir, "c.txt")}, res.Duplicates)
	assert.Equal(t, []string{"c.txt"}, list(t, f.cfg.QuarantineDir))
}

func TestRunPassIgnoresCancelledContext(t *testing.T) {
	f := newFixture(t, [3]int{1, 1, 1})
	write(t, f.cfg.IntakeDir, "a.txt", "a")
	rec := &memRecorder{}
	r := f.runner(pipeline.Options{Recorder: rec})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := r.RunPass(ctx, "test")

	require.True(t, res.Completed())
	assert.Equal(t, pipeline.SignalSuccess, res.Signal)
	assert.Equal(t, []string{"a.txt"}, list(t, f.cfg.ArchiveDir))
	require.Len(t, rec.results, 1, "recorded despite the cancelled context")
}

func TestRunPassRecoversPanic(t *testing.T) {
	f := newFixture(t, [3]int{1, 1, 1})
	r := f.runner(pipeline.Options{FS: panicFS{}})

	res := r.RunPass(context.Background(), "test")

	assert.Equal(t, pipeline.SignalError, res.Signal)
	assert.Equal(t, failure.KindUnexpected, failure.KindOf(res.Err))
	require.NotNil(t, r.Last())
	assert.Equal(t, res.PassID, r.Last().PassID)
}

func TestLastTracksMostRecentPass(t *testing.T) {
	f := newFixture(t, [3]int{1, 1, 1})
	r := f.runner(pipeline.Options{})
	assert.Nil(t, r.Last())

	first := r.RunPass(context.Background(), "one")
	second := r.RunPass(context.Background(), "two")

	require.NotNil(t, r.Last())
	assert.NotEqual(t, first.PassID, second.PassID)
	assert.Equal(t, "two", r.Last().TriggeredBy)
}

func TestInspectCountsWithoutMoving(t *testing.T) {
	f := newFixture(t, [3]int{2, 1, 1})
	write(t, f.cfg.IntakeDir, "a.txt", "a")
	write(t, f.cfg.QuarantineDir, "q.txt", "q")
	require.NoError(t, os.Remove(f.cfg.BackupDir))
	r := f.runner(pipeline.Options{})

	st := r.Inspect()

	require.Len(t, st, 3)
	assert.Equal(t, 1, st[0].FileCount)
	assert.False(t, st[0].Ready)
	assert.True(t, st[1].Ready)
	assert.Error(t, st[2].Err)
	assert.Equal(t, []string{"a.txt"}, list(t, f.cfg.IntakeDir))
}

// lockedFS refuses to open one file by name.
type lockedFS struct {
	stage.OS
	locked string
}

func (l lockedFS) Open(path string) (io.ReadCloser, error) {
	if filepath.Base(path) == l.locked {
		return nil, fs.ErrPermission
	}
	return l.OS.Open(path)
}

type panicFS struct{ stage.OS }

func (panicFS) ReadDir(string) ([]fs.DirEntry, error) { panic("disk on fire") }
