package pipeline

import (
	"context"
	"log/slog"
	"sync"
)

// Passer runs one pass. *Runner implements it.
type Passer interface {
	RunPass(ctx context.Context, triggeredBy string) Result
}

// QueueState is a snapshot of the run queue.
type QueueState struct {
	Running   bool   `json:"running"`
	Pending   bool   `json:"pending"`
	Completed int64  `json:"completed"`
	Coalesced int64  `json:"coalesced"`
	Current   string `json:"current_trigger,omitempty"`
}

// Queue serializes passes on a single worker goroutine. A trigger while idle
// starts a pass; triggers while a pass is running or already pending collapse
// into exactly one follow-up pass.
type Queue struct {
	passer Passer
	log    *slog.Logger
	wake   chan struct{}

	mu        sync.Mutex
	running   bool
	current   string
	pending   bool
	pendingBy string
	completed int64
	coalesced int64
	done      []chan struct{} // closed when the next pass finishes
}

// NewQueue creates a Queue. Nothing runs until Run is called.
func NewQueue(p Passer, log *slog.Logger) *Queue {
	if log == nil {
		log = slog.Default()
	}
	return &Queue{
		passer: p,
		log:    log,
		wake:   make(chan struct{}, 1),
	}
}

// Trigger requests a pass on behalf of source. It never blocks. It returns
// false when a pass was already pending and the request was folded into it.
func (q *Queue) Trigger(source string) bool {
	q.mu.Lock()
	if q.pending {
		q.coalesced++
		q.mu.Unlock()
		q.log.Debug("trigger coalesced", "source", source)
		return false
	}
	q.pending = true
	q.pendingBy = source
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
	return true
}

// TriggerAndWait requests a pass and returns a channel closed once the pass
// that serves this request has finished. The channel stays open if Run
// returns before that pass starts.
func (q *Queue) TriggerAndWait(source string) <-chan struct{} {
	ch := make(chan struct{})
	q.mu.Lock()
	q.done = append(q.done, ch)
	q.mu.Unlock()
	q.Trigger(source)
	return ch
}

// State returns a snapshot of the queue.
func (q *Queue) State() QueueState {
	q.mu.Lock()
	defer q.mu.Unlock()
	return QueueState{
		Running:   q.running,
		Pending:   q.pending,
		Completed: q.completed,
		Coalesced: q.coalesced,
		Current:   q.current,
	}
}

// Run is the worker loop. It blocks until ctx is cancelled; a pass in flight
// finishes first and a pending one is dropped.
func (q *Queue) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-q.wake:
		}

		q.mu.Lock()
		if !q.pending {
			q.mu.Unlock()
			continue
		}
		source := q.pendingBy
		waiters := q.done
		q.done = nil
		q.pending = false
		q.pendingBy = ""
		q.running = true
		q.current = source
		q.mu.Unlock()

		// Shutdown must not cut a pass short.
		q.passer.RunPass(context.WithoutCancel(ctx), source)

		q.mu.Lock()
		q.running = false
		q.current = ""
		q.completed++
		q.mu.Unlock()
		for _, ch := range waiters {
			close(ch)
		}
	}
}
