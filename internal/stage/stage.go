// Package stage implements the building blocks of a pipeline pass: content
// hashing, duplicate detection within one directory, best-effort directory
// moves and the file-count gate that decides whether a stage advances.
package stage

import (
	"log/slog"
)

// Engine runs stage operations against an FS and reports through a logger.
// It holds no state between calls.
type Engine struct {
	fs  FS
	log *slog.Logger
}

// New returns an Engine. A nil fsys means OS; a nil log discards events.
func New(fsys FS, log *slog.Logger) *Engine {
	if fsys == nil {
		fsys = OS{}
	}
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Engine{fs: fsys, log: log}
}

// WithLogger returns a copy of e that reports through log.
func (e *Engine) WithLogger(log *slog.Logger) *Engine {
	return &Engine{fs: e.fs, log: log}
}
