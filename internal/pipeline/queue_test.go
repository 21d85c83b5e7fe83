package pipeline_test

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eargollo/autofilebot/internal/pipeline"
	"github.com/eargollo/autofilebot/internal/stage"
)

// gatedPasser blocks every pass until release receives a value.
type gatedPasser struct {
	started chan string
	release chan struct{}

	mu    sync.Mutex
	calls []string
}

func newGatedPasser() *gatedPasser {
	return &gatedPasser{started: make(chan string, 16), release: make(chan struct{})}
}

func (g *gatedPasser) RunPass(_ context.Context, triggeredBy string) pipeline.Result {
	g.mu.Lock()
	g.calls = append(g.calls, triggeredBy)
	g.mu.Unlock()
	g.started <- triggeredBy
	<-g.release
	return pipeline.Result{TriggeredBy: triggeredBy, Signal: pipeline.SignalSuccess}
}

func (g *gatedPasser) Calls() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.calls...)
}

func startQueue(t *testing.T, p pipeline.Passer) *pipeline.Queue {
	t.Helper()
	q := pipeline.NewQueue(p, slog.New(slog.DiscardHandler))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = q.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return q
}

func waitStarted(t *testing.T, g *gatedPasser) string {
	t.Helper()
	select {
	case s := <-g.started:
		return s
	case <-time.After(3 * time.Second):
		t.Fatal("pass did not start")
		return ""
	}
}

func TestQueueCollapsesBurstIntoOneFollowUp(t *testing.T) {
	g := newGatedPasser()
	q := startQueue(t, g)

	require.True(t, q.Trigger("timer"))
	assert.Equal(t, "timer", waitStarted(t, g))

	// Triggers during the pass: the first schedules a follow-up, the rest fold in.
	assert.True(t, q.Trigger("watch"))
	assert.False(t, q.Trigger("watch"))
	assert.False(t, q.Trigger("api"))

	st := q.State()
	assert.True(t, st.Running)
	assert.True(t, st.Pending)
	assert.Equal(t, int64(2), st.Coalesced)

	g.release <- struct{}{}
	assert.Equal(t, "watch", waitStarted(t, g))
	g.release <- struct{}{}

	require.Eventually(t, func() bool { return q.State().Completed == 2 }, 3*time.Second, 10*time.Millisecond)
	select {
	case s := <-g.started:
		t.Fatalf("unexpected extra pass triggered by %q", s)
	case <-time.After(100 * time.Millisecond):
	}
	assert.Equal(t, []string{"timer", "watch"}, g.Calls())
	assert.False(t, q.State().Running)
}

func TestQueuePassesNeverOverlap(t *testing.T) {
	var (
		mu      sync.Mutex
		active  int
		maxSeen int
		total   int
	)
	p := passerFunc(func() {
		mu.Lock()
		active++
		total++
		if active > maxSeen {
			maxSeen = active
		}
		mu.Unlock()
		time.Sleep(5 * time.Millisecond)
		mu.Lock()
		active--
		mu.Unlock()
	})
	q := startQueue(t, p)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				q.Trigger("burst")
				time.Sleep(time.Millisecond)
			}
		}()
	}
	wg.Wait()
	<-q.TriggerAndWait("final")

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, maxSeen)
	assert.Less(t, total, 160, "bursts must be collapsed")
}

func TestQueueTriggerAndWait(t *testing.T) {
	g := newGatedPasser()
	q := startQueue(t, g)

	done := q.TriggerAndWait("cli")
	waitStarted(t, g)
	select {
	case <-done:
		t.Fatal("done before the pass finished")
	default:
	}
	g.release <- struct{}{}

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("waiter not released")
	}
}

type passerFunc func()

func (f passerFunc) RunPass(context.Context, string) pipeline.Result {
	f()
	return pipeline.Result{}
}

// shutdownFS calls cancel on the first move, the way a SIGTERM landing
// mid-pass would.
type shutdownFS struct {
	stage.OS
	once   *sync.Once
	cancel context.CancelFunc
}

func (s shutdownFS) Move(src, dst string) error {
	s.once.Do(s.cancel)
	return s.OS.Move(src, dst)
}

func TestQueueShutdownLetsPassInFlightFinish(t *testing.T) {
	f := newFixture(t, [3]int{1, 1, 1})
	write(t, f.cfg.IntakeDir, "a.txt", "a")
	ctx, cancel := context.WithCancel(context.Background())
	rec := &memRecorder{}
	r := f.runner(pipeline.Options{
		FS:       shutdownFS{once: &sync.Once{}, cancel: cancel},
		Recorder: rec,
	})
	q := pipeline.NewQueue(r, slog.New(slog.DiscardHandler))

	done := make(chan error, 1)
	go func() { done <- q.Run(ctx) }()
	q.Trigger("timer")

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("queue did not stop")
	}

	last := r.Last()
	require.NotNil(t, last)
	assert.True(t, last.Completed(), "err: %v", last.Err)
	assert.Equal(t, pipeline.SignalSuccess, last.Signal)
	assert.Empty(t, list(t, f.cfg.IntakeDir))
	assert.Empty(t, list(t, f.cfg.QuarantineDir))
	assert.Empty(t, list(t, f.cfg.BackupDir))
	assert.Equal(t, []string{"a.txt"}, list(t, f.cfg.ArchiveDir))
	require.Len(t, rec.results, 1)
	assert.Equal(t, pipeline.OutcomeCompleted, rec.results[0].Outcome)
}
