package handlers

import (
	"context"
	"time"

	"github.com/eargollo/autofilebot/internal/config"
	"github.com/eargollo/autofilebot/internal/history"
	"github.com/eargollo/autofilebot/internal/pipeline"
)

// Pipeline is the read side of *pipeline.Runner.
type Pipeline interface {
	Config() config.Pipeline
	Last() *pipeline.Result
	Inspect() []pipeline.StageStatus
}

// Trigger is the write side of *pipeline.Queue.
type Trigger interface {
	Trigger(source string) bool
	State() pipeline.QueueState
}

// Schedule is implemented by *scheduler.Scheduler.
type Schedule interface {
	CronExpr() string
	NextRunAt() *time.Time
}

// PassStore is implemented by *history.Store.
type PassStore interface {
	List(ctx context.Context, limit, offset int) ([]history.Pass, int, error)
	Get(ctx context.Context, id string) (history.Pass, error)
}
