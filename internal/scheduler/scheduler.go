// Package scheduler fires the periodic pass trigger on a cron expression.
package scheduler

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Scheduler owns a single cron job and reports when it fires next.
type Scheduler struct {
	log *slog.Logger

	mu       sync.RWMutex
	c        *cron.Cron
	entryID  cron.EntryID
	cronExpr string
	running  bool
}

// New creates a stopped Scheduler. Call Start to activate it.
func New(log *slog.Logger) *Scheduler {
	if log == nil {
		log = slog.Default()
	}
	return &Scheduler{
		log: log,
		c:   cron.New(cron.WithChain(cron.Recover(cron.DiscardLogger))),
	}
}

// SetJob replaces the scheduled job. Descriptors such as "@every 1m" are
// accepted alongside five-field expressions. When the scheduler is already
// running the new job takes effect immediately.
func (s *Scheduler) SetJob(expr string, fn func()) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, err := s.c.AddFunc(expr, fn)
	if err != nil {
		return fmt.Errorf("invalid schedule %q: %w", expr, err)
	}
	if s.entryID != 0 {
		s.c.Remove(s.entryID)
	}
	s.entryID = id
	s.cronExpr = expr
	s.log.Info("scheduler: job set", "schedule", expr)
	return nil
}

// Start begins the cron loop. It is a no-op when already started.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.running = true
	s.c.Start()
}

// Stop halts the cron loop and waits for a job in flight to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()
	<-s.c.Stop().Done()
}

// NextRunAt returns the next scheduled time, or nil when no job is set or
// the scheduler is stopped.
func (s *Scheduler) NextRunAt() *time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.entryID == 0 || !s.running {
		return nil
	}
	entry := s.c.Entry(s.entryID)
	if entry.ID == 0 || entry.Next.IsZero() {
		return nil
	}
	t := entry.Next
	return &t
}

// CronExpr returns the current schedule expression.
func (s *Scheduler) CronExpr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cronExpr
}
