package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"token-metadata-lab/internal/domain"
	"token-metadata-lab/internal/storage"
)

// RunJournal implements storage.RunJournal using PostgreSQL.
type RunJournal struct {
	pool *Pool
}

// NewRunJournal creates a new RunJournal. Close closes pool.
func NewRunJournal(pool *Pool) *RunJournal {
	return &RunJournal{pool: pool}
}

// Compile-time interface check.
var _ storage.RunJournal = (*RunJournal)(nil)

// CreateRun adds a new run. Returns ErrDuplicateKey if run_id exists.
func (j *RunJournal) CreateRun(ctx context.Context, r *domain.Run) error {
	if err := storage.ValidateRun(r); err != nil {
		return err
	}

	query := `
		INSERT INTO runs (
			run_id, mint, payer, authority, recipient, rpc_endpoint,
			status, start_slot, started_at, finished_at, error
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err := j.pool.Exec(ctx, query,
		r.RunID, r.Mint, r.Payer, r.Authority, r.Recipient, r.RPCEndpoint,
		string(r.Status), int64(r.StartSlot), r.StartedAt, r.FinishedAt, r.Error,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// FinishRun sets the final status of a RUNNING run.
func (j *RunJournal) FinishRun(ctx context.Context, runID string, status domain.RunStatus, finishedAt int64, errMsg *string) error {
	if !status.IsFinal() {
		return storage.ErrInvalidInput
	}

	query := `
		UPDATE runs
		SET status = $2, finished_at = $3, error = $4
		WHERE run_id = $1 AND status = 'RUNNING'
	`

	tag, err := j.pool.Exec(ctx, query, runID, string(status), finishedAt, errMsg)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	// Nothing updated: the run is missing or already finished.
	if _, err := j.GetRun(ctx, runID); err != nil {
		return err
	}
	return storage.ErrInvalidInput
}

// InsertStep appends a step record.
func (j *RunJournal) InsertStep(ctx context.Context, s *domain.StepRecord) error {
	if err := storage.ValidateStep(s); err != nil {
		return err
	}

	query := `
		INSERT INTO run_steps (
			run_id, step_index, name, status, signatures, explorer_urls,
			slot, fee, detail, started_at, finished_at, error
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	_, err := j.pool.Exec(ctx, query,
		s.RunID, s.StepIndex, s.Name, string(s.Status),
		nonNil(s.Signatures), nonNil(s.ExplorerURLs),
		int64(s.Slot), int64(s.Fee), s.Detail, s.StartedAt, s.FinishedAt, s.Error,
	)
	if err != nil {
		switch {
		case isDuplicateKeyError(err):
			return storage.ErrDuplicateKey
		case isForeignKeyError(err):
			return storage.ErrNotFound
		}
		return fmt.Errorf("insert step: %w", err)
	}
	return nil
}

// GetRun retrieves a run by its ID. Returns ErrNotFound if not exists.
func (j *RunJournal) GetRun(ctx context.Context, runID string) (*domain.Run, error) {
	query := `
		SELECT run_id, mint, payer, authority, recipient, rpc_endpoint,
			status, start_slot, started_at, finished_at, error
		FROM runs
		WHERE run_id = $1
	`

	r, err := scanRun(j.pool.QueryRow(ctx, query, runID))
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get run: %w", err)
	}
	return r, nil
}

// GetSteps retrieves all steps of a run, ordered by step_index ASC.
func (j *RunJournal) GetSteps(ctx context.Context, runID string) ([]*domain.StepRecord, error) {
	query := `
		SELECT run_id, step_index, name, status, signatures, explorer_urls,
			slot, fee, detail, started_at, finished_at, error
		FROM run_steps
		WHERE run_id = $1
		ORDER BY step_index ASC
	`

	rows, err := j.pool.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("query steps: %w", err)
	}
	defer rows.Close()

	steps := []*domain.StepRecord{}
	for rows.Next() {
		var s domain.StepRecord
		var status string
		var slot, fee int64
		err := rows.Scan(
			&s.RunID, &s.StepIndex, &s.Name, &status, &s.Signatures, &s.ExplorerURLs,
			&slot, &fee, &s.Detail, &s.StartedAt, &s.FinishedAt, &s.Error,
		)
		if err != nil {
			return nil, fmt.Errorf("scan step row: %w", err)
		}
		s.Status = domain.StepStatus(status)
		s.Slot = uint64(slot)
		s.Fee = uint64(fee)
		steps = append(steps, &s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate step rows: %w", err)
	}
	return steps, nil
}

// Close closes the underlying pool.
func (j *RunJournal) Close() error {
	j.pool.Close()
	return nil
}

func scanRun(row pgx.Row) (*domain.Run, error) {
	var r domain.Run
	var status string
	var startSlot int64

	err := row.Scan(
		&r.RunID, &r.Mint, &r.Payer, &r.Authority, &r.Recipient, &r.RPCEndpoint,
		&status, &startSlot, &r.StartedAt, &r.FinishedAt, &r.Error,
	)
	if err != nil {
		return nil, err
	}

	r.Status = domain.RunStatus(status)
	r.StartSlot = uint64(startSlot)
	return &r, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
