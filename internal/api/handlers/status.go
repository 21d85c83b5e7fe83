package handlers

import (
	"net/http"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/eargollo/autofilebot/internal/config"
	"github.com/eargollo/autofilebot/internal/failure"
	"github.com/eargollo/autofilebot/internal/pipeline"
)

// StatusHandler handles GET /api/status.
type StatusHandler struct {
	Pipeline Pipeline
	Queue    Trigger
	Sched    Schedule // nil when no schedule is configured
	Version  string
}

type statusResponse struct {
	Version  string              `json:"version"`
	Config   config.Pipeline     `json:"config"`
	Queue    pipeline.QueueState `json:"queue"`
	Schedule *scheduleInfo       `json:"schedule"`
	LastPass *passSummary        `json:"last_pass"`
}

type scheduleInfo struct {
	Cron      string     `json:"cron"`
	NextRunAt *time.Time `json:"next_run_at"`
}

// passSummary is the JSON view of an in-memory pipeline.Result.
type passSummary struct {
	ID           string            `json:"id"`
	TriggeredBy  string            `json:"triggered_by"`
	StartedAt    time.Time         `json:"started_at"`
	FinishedAt   time.Time         `json:"finished_at"`
	DurationMs   int64             `json:"duration_ms"`
	Outcome      pipeline.Outcome  `json:"outcome"`
	Signal       pipeline.Signal   `json:"signal"`
	SignalCode   int               `json:"signal_code"`
	FailedIn     *pipeline.State   `json:"failed_in"`
	Error        *string           `json:"error"`
	ErrorKind    *string           `json:"error_kind"`
	Duplicates   int               `json:"duplicates"`
	FilesMoved   int               `json:"files_moved"`
	MoveFailures int               `json:"move_failures"`
	HashFailures int               `json:"hash_failures"`
	BytesMoved   int64             `json:"bytes_moved"`
	BytesHuman   string            `json:"bytes_moved_human"`
	Stages       []stageEvaluation `json:"stages"`
}

type stageEvaluation struct {
	Stage     string `json:"stage"`
	FileCount int    `json:"file_count"`
	Threshold int    `json:"threshold"`
	Advanced  bool   `json:"advanced"`
	Moved     int    `json:"moved"`
	Failed    int    `json:"failed"`
}

func summarize(res *pipeline.Result) *passSummary {
	if res == nil {
		return nil
	}
	s := &passSummary{
		ID:           res.PassID,
		TriggeredBy:  res.TriggeredBy,
		StartedAt:    res.StartedAt.UTC(),
		FinishedAt:   res.FinishedAt.UTC(),
		DurationMs:   res.Duration().Milliseconds(),
		Outcome:      res.Outcome,
		Signal:       res.Signal,
		SignalCode:   int(res.Signal),
		Duplicates:   len(res.Duplicates),
		FilesMoved:   res.FilesMoved(),
		MoveFailures: res.MoveFailures(),
		HashFailures: len(res.HashFailures),
		BytesMoved:   res.BytesMoved(),
		BytesHuman:   humanize.Bytes(uint64(res.BytesMoved())),
		Stages:       []stageEvaluation{},
	}
	if !res.Completed() {
		st := res.FailedIn
		s.FailedIn = &st
		if res.Err != nil {
			msg := res.Err.Error()
			kind := failure.KindOf(res.Err).String()
			s.Error, s.ErrorKind = &msg, &kind
		}
	}
	for _, ev := range res.Stages {
		s.Stages = append(s.Stages, stageEvaluation{
			Stage:     ev.Stage.Name,
			FileCount: ev.FileCount,
			Threshold: ev.Stage.Threshold,
			Advanced:  ev.Advanced,
			Moved:     len(ev.Batch.Moved),
			Failed:    len(ev.Batch.Failures),
		})
	}
	return s
}

// ServeHTTP returns the agent status as JSON.
func (h *StatusHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	resp := statusResponse{
		Version:  h.Version,
		Config:   h.Pipeline.Config(),
		Queue:    h.Queue.State(),
		LastPass: summarize(h.Pipeline.Last()),
	}
	if h.Sched != nil {
		resp.Schedule = &scheduleInfo{
			Cron:      h.Sched.CronExpr(),
			NextRunAt: h.Sched.NextRunAt(),
		}
	}
	writeJSON(w, http.StatusOK, resp)
}
