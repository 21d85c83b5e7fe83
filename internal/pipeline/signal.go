package pipeline

import "fmt"

// Signal is the aggregate status of one pass.
type Signal int

const (
	SignalError   Signal = 0
	SignalRunning Signal = 1
	SignalSuccess Signal = 2
)

func (s Signal) String() string {
	switch s {
	case SignalError:
		return "ERROR"
	case SignalRunning:
		return "RUNNING"
	case SignalSuccess:
		return "SUCCESS"
	default:
		return fmt.Sprintf("Signal(%d)", int(s))
	}
}

// MarshalText renders the signal name in JSON and logs.
func (s Signal) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// semaphoreLine is the final line every pass emits.
func semaphoreLine(s Signal) string {
	return fmt.Sprintf("[SEMAPHORE SIGNAL] %d = %s", int(s), s)
}

// State is a step of the per-pass state machine.
type State int

const (
	StateScanningDuplicates State = iota
	StateEvaluatingIntake
	StateEvaluatingQuarantine
	StateEvaluatingBackup
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateScanningDuplicates:
		return "scanning_duplicates"
	case StateEvaluatingIntake:
		return "evaluating_intake"
	case StateEvaluatingQuarantine:
		return "evaluating_quarantine"
	case StateEvaluatingBackup:
		return "evaluating_backup"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }
