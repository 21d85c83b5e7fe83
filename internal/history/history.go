// Package history keeps an audit trail of finished pipeline passes in
// SQLite. The pipeline only writes to it; nothing read back from it ever
// influences a pass.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/eargollo/autofilebot/internal/failure"
	"github.com/eargollo/autofilebot/internal/pipeline"
)

// ErrNotFound is returned by Get for an unknown pass ID.
var ErrNotFound = errors.New("pass not found")

// Pass is one row of the passes table.
type Pass struct {
	ID           string          `json:"id"`
	TriggeredBy  string          `json:"triggered_by"`
	StartedAt    time.Time       `json:"started_at"`
	FinishedAt   time.Time       `json:"finished_at"`
	DurationMs   int64           `json:"duration_ms"`
	Outcome      string          `json:"outcome"`
	Signal       pipeline.Signal `json:"signal"`
	FailedIn     *string         `json:"failed_in"`
	Error        *string         `json:"error"`
	ErrorKind    *string         `json:"error_kind"`
	Duplicates   int64           `json:"duplicates"`
	FilesMoved   int64           `json:"files_moved"`
	MoveFailures int64           `json:"move_failures"`
	HashFailures int64           `json:"hash_failures"`
	BytesMoved   int64           `json:"bytes_moved"`
	Stages       []StageRow      `json:"stages,omitempty"`
}

// StageRow is one row of the pass_stages table.
type StageRow struct {
	Stage     string `json:"stage"`
	SourceDir string `json:"source_dir"`
	DestDir   string `json:"dest_dir"`
	FileCount int    `json:"file_count"`
	Threshold int    `json:"threshold"`
	Advanced  bool   `json:"advanced"`
	Moved     int    `json:"moved"`
	Failed    int    `json:"failed"`
}

// Store reads and writes pass history.
type Store struct {
	db *sql.DB
}

// New creates a Store on an already-migrated database.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Record writes res and its stage evaluations in one transaction.
func (s *Store) Record(ctx context.Context, res pipeline.Result) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var failedIn, errMsg, errKind sql.NullString
	if !res.Completed() {
		failedIn = sql.NullString{String: res.FailedIn.String(), Valid: true}
		if res.Err != nil {
			errMsg = sql.NullString{String: res.Err.Error(), Valid: true}
			errKind = sql.NullString{String: failure.KindOf(res.Err).String(), Valid: true}
		}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO passes
			(id, triggered_by, started_at, finished_at, duration_ms,
			 outcome, signal, failed_in, error, error_kind,
			 duplicates, files_moved, move_failures, hash_failures, bytes_moved)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		res.PassID, res.TriggeredBy,
		res.StartedAt.UnixMilli(), res.FinishedAt.UnixMilli(), res.Duration().Milliseconds(),
		res.Outcome.String(), int(res.Signal), failedIn, errMsg, errKind,
		len(res.Duplicates), res.FilesMoved(), res.MoveFailures(), len(res.HashFailures), res.BytesMoved())
	if err != nil {
		return fmt.Errorf("insert pass %s: %w", res.PassID, err)
	}

	for i, ev := range res.Stages {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO pass_stages
				(pass_id, position, stage, source_dir, dest_dir,
				 file_count, threshold, advanced, moved, failed)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			res.PassID, i, ev.Stage.Name, ev.Stage.Source, ev.Stage.Dest,
			ev.FileCount, ev.Stage.Threshold, ev.Advanced,
			len(ev.Batch.Moved), len(ev.Batch.Failures))
		if err != nil {
			return fmt.Errorf("insert pass stage %s/%s: %w", res.PassID, ev.Stage.Name, err)
		}
	}

	return tx.Commit()
}

const passColumns = `
	id, triggered_by, started_at, finished_at, duration_ms,
	outcome, signal, failed_in, error, error_kind,
	duplicates, files_moved, move_failures, hash_failures, bytes_moved`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPass(row rowScanner) (Pass, error) {
	var (
		p                     Pass
		startedAt, finishedAt int64
		signal                int
		failedIn, msg, kind   sql.NullString
	)
	err := row.Scan(&p.ID, &p.TriggeredBy, &startedAt, &finishedAt, &p.DurationMs,
		&p.Outcome, &signal, &failedIn, &msg, &kind,
		&p.Duplicates, &p.FilesMoved, &p.MoveFailures, &p.HashFailures, &p.BytesMoved)
	if err != nil {
		return p, err
	}
	p.StartedAt = time.UnixMilli(startedAt).UTC()
	p.FinishedAt = time.UnixMilli(finishedAt).UTC()
	p.Signal = pipeline.Signal(signal)
	if failedIn.Valid {
		p.FailedIn = &failedIn.String
	}
	if msg.Valid {
		p.Error = &msg.String
	}
	if kind.Valid {
		p.ErrorKind = &kind.String
	}
	return p, nil
}

// List returns passes newest first, without stage rows, plus the total count.
func (s *Store) List(ctx context.Context, limit, offset int) ([]Pass, int, error) {
	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM passes`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count passes: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT`+passColumns+` FROM passes ORDER BY started_at DESC, id LIMIT ? OFFSET ?`,
		limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("query passes: %w", err)
	}
	defer rows.Close()

	passes := []Pass{}
	for rows.Next() {
		p, err := scanPass(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan pass row: %w", err)
		}
		passes = append(passes, p)
	}
	return passes, total, rows.Err()
}

// Get returns one pass with its stage rows, or ErrNotFound.
func (s *Store) Get(ctx context.Context, id string) (Pass, error) {
	p, err := scanPass(s.db.QueryRowContext(ctx,
		`SELECT`+passColumns+` FROM passes WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return p, ErrNotFound
	}
	if err != nil {
		return p, fmt.Errorf("lookup pass %s: %w", id, err)
	}

	stages, err := s.stages(ctx, id)
	if err != nil {
		return p, err
	}
	p.Stages = stages
	return p, nil
}

// Latest returns the most recent pass, or ErrNotFound when none exist.
func (s *Store) Latest(ctx context.Context) (Pass, error) {
	var id string
	err := s.db.QueryRowContext(ctx,
		`SELECT id FROM passes ORDER BY started_at DESC LIMIT 1`).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return Pass{}, ErrNotFound
	}
	if err != nil {
		return Pass{}, fmt.Errorf("latest pass: %w", err)
	}
	return s.Get(ctx, id)
}

func (s *Store) stages(ctx context.Context, id string) ([]StageRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT stage, source_dir, dest_dir, file_count, threshold, advanced, moved, failed
		FROM pass_stages WHERE pass_id = ? ORDER BY position`, id)
	if err != nil {
		return nil, fmt.Errorf("query pass stages: %w", err)
	}
	defer rows.Close()

	var out []StageRow
	for rows.Next() {
		var st StageRow
		if err := rows.Scan(&st.Stage, &st.SourceDir, &st.DestDir, &st.FileCount,
			&st.Threshold, &st.Advanced, &st.Moved, &st.Failed); err != nil {
			return nil, fmt.Errorf("scan pass stage: %w", err)
		}
		out = append(out, st)
	}
	return out, rows.Err()
}
