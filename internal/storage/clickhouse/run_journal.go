package clickhouse

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"token-metadata-lab/internal/domain"
	"token-metadata-lab/internal/storage"
)

// RunJournal implements storage.RunJournal using ClickHouse.
// MergeTree does not enforce keys, so uniqueness is checked before insert;
// concurrent writers to the same run are not supported.
type RunJournal struct {
	conn *Conn
}

// NewRunJournal creates a new RunJournal. Close closes conn.
func NewRunJournal(conn *Conn) *RunJournal {
	return &RunJournal{conn: conn}
}

// Compile-time interface check.
var _ storage.RunJournal = (*RunJournal)(nil)

const insertRunQuery = `
	INSERT INTO runs (
		run_id, mint, payer, authority, recipient, rpc_endpoint,
		status, start_slot, started_at, finished_at, error, updated_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`

// CreateRun adds a new run. Returns ErrDuplicateKey if run_id exists.
func (j *RunJournal) CreateRun(ctx context.Context, r *domain.Run) error {
	if err := storage.ValidateRun(r); err != nil {
		return err
	}

	exists, err := j.runExists(ctx, r.RunID)
	if err != nil {
		return fmt.Errorf("check exists: %w", err)
	}
	if exists {
		return storage.ErrDuplicateKey
	}

	if err := j.insertRun(ctx, r, r.StartedAt); err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// FinishRun appends a newer version of the run row carrying the final status.
func (j *RunJournal) FinishRun(ctx context.Context, runID string, status domain.RunStatus, finishedAt int64, errMsg *string) error {
	current, err := j.GetRun(ctx, runID)
	if err != nil {
		return err
	}
	if err := storage.ValidateFinish(current.Status, status); err != nil {
		return err
	}

	current.Status = status
	current.FinishedAt = &finishedAt
	current.Error = errMsg

	version := finishedAt
	if version <= current.StartedAt {
		version = current.StartedAt + 1
	}
	if err := j.insertRun(ctx, current, version); err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	return nil
}

func (j *RunJournal) insertRun(ctx context.Context, r *domain.Run, version int64) error {
	return j.conn.Exec(ctx, insertRunQuery,
		r.RunID, r.Mint, r.Payer, r.Authority, r.Recipient, r.RPCEndpoint,
		string(r.Status), r.StartSlot, r.StartedAt, r.FinishedAt, r.Error, version,
	)
}

// InsertStep appends a step record.
func (j *RunJournal) InsertStep(ctx context.Context, s *domain.StepRecord) error {
	if err := storage.ValidateStep(s); err != nil {
		return err
	}

	exists, err := j.runExists(ctx, s.RunID)
	if err != nil {
		return fmt.Errorf("check run exists: %w", err)
	}
	if !exists {
		return storage.ErrNotFound
	}

	var count uint64
	err = j.conn.QueryRow(ctx,
		`SELECT count(*) FROM run_steps WHERE run_id = ? AND step_index = ?`,
		s.RunID, int32(s.StepIndex),
	).Scan(&count)
	if err != nil {
		return fmt.Errorf("check step exists: %w", err)
	}
	if count > 0 {
		return storage.ErrDuplicateKey
	}

	batch, err := j.conn.PrepareBatch(ctx, `
		INSERT INTO run_steps (
			run_id, step_index, name, status, signatures, explorer_urls,
			slot, fee, detail, started_at, finished_at, error
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}
	err = batch.Append(
		s.RunID, int32(s.StepIndex), s.Name, string(s.Status),
		nonNil(s.Signatures), nonNil(s.ExplorerURLs),
		s.Slot, s.Fee, s.Detail, s.StartedAt, s.FinishedAt, s.Error,
	)
	if err != nil {
		return fmt.Errorf("append to batch: %w", err)
	}
	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// GetRun retrieves the latest version of a run. Returns ErrNotFound if not exists.
func (j *RunJournal) GetRun(ctx context.Context, runID string) (*domain.Run, error) {
	query := `
		SELECT run_id, mint, payer, authority, recipient, rpc_endpoint,
			status, start_slot, started_at, finished_at, error
		FROM runs FINAL
		WHERE run_id = ?
		LIMIT 1
	`

	var r domain.Run
	var status string
	err := j.conn.QueryRow(ctx, query, runID).Scan(
		&r.RunID, &r.Mint, &r.Payer, &r.Authority, &r.Recipient, &r.RPCEndpoint,
		&status, &r.StartSlot, &r.StartedAt, &r.FinishedAt, &r.Error,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get run: %w", err)
	}
	r.Status = domain.RunStatus(status)
	return &r, nil
}

// GetSteps retrieves all steps of a run, ordered by step_index ASC.
func (j *RunJournal) GetSteps(ctx context.Context, runID string) ([]*domain.StepRecord, error) {
	query := `
		SELECT run_id, step_index, name, status, signatures, explorer_urls,
			slot, fee, detail, started_at, finished_at, error
		FROM run_steps
		WHERE run_id = ?
		ORDER BY step_index ASC
	`

	rows, err := j.conn.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("query steps: %w", err)
	}
	defer rows.Close()

	steps := []*domain.StepRecord{}
	for rows.Next() {
		var s domain.StepRecord
		var index int32
		var status string
		err := rows.Scan(
			&s.RunID, &index, &s.Name, &status, &s.Signatures, &s.ExplorerURLs,
			&s.Slot, &s.Fee, &s.Detail, &s.StartedAt, &s.FinishedAt, &s.Error,
		)
		if err != nil {
			return nil, fmt.Errorf("scan step row: %w", err)
		}
		s.StepIndex = int(index)
		s.Status = domain.StepStatus(status)
		steps = append(steps, &s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate step rows: %w", err)
	}
	return steps, nil
}

// Close closes the underlying connection.
func (j *RunJournal) Close() error {
	return j.conn.Close()
}

func (j *RunJournal) runExists(ctx context.Context, runID string) (bool, error) {
	var count uint64
	err := j.conn.QueryRow(ctx, `SELECT count(*) FROM runs WHERE run_id = ?`, runID).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
