package pipeline

import (
	"time"

	"github.com/eargollo/autofilebot/internal/stage"
)

// Outcome tags a Result as completed or failed.
type Outcome int

const (
	OutcomeCompleted Outcome = iota
	OutcomeFailed
)

func (o Outcome) String() string {
	if o == OutcomeFailed {
		return "failed"
	}
	return "completed"
}

func (o Outcome) MarshalText() ([]byte, error) { return []byte(o.String()), nil }

// Result describes one pass. When Outcome is OutcomeFailed, Err is set,
// Signal is SignalError and FailedIn names the step that failed; Stages
// holds only the evaluations that finished before the failure.
type Result struct {
	PassID      string
	TriggeredBy string
	StartedAt   time.Time
	FinishedAt  time.Time

	Outcome  Outcome
	Signal   Signal
	Err      error
	FailedIn State

	Duplicates        []string            // duplicate paths found in intake
	DuplicateFailures []stage.MoveFailure // duplicates that could not be quarantined
	HashFailures      []stage.HashFailure
	Stages            []stage.Evaluation
}

// Completed reports whether the pass ran to Done.
func (r Result) Completed() bool { return r.Outcome == OutcomeCompleted }

// FilesMoved counts every entry moved during the pass, duplicates included.
func (r Result) FilesMoved() int {
	n := len(r.Duplicates) - len(r.DuplicateFailures)
	for _, ev := range r.Stages {
		n += len(ev.Batch.Moved)
	}
	return n
}

// MoveFailures counts every rejected or failed move during the pass.
func (r Result) MoveFailures() int {
	n := len(r.DuplicateFailures)
	for _, ev := range r.Stages {
		n += len(ev.Batch.Failures)
	}
	return n
}

// BytesMoved sums the sizes reported by the stage batches.
func (r Result) BytesMoved() int64 {
	var n int64
	for _, ev := range r.Stages {
		n += ev.Batch.Bytes
	}
	return n
}

// Duration is the wall time of the pass.
func (r Result) Duration() time.Duration { return r.FinishedAt.Sub(r.StartedAt) }
