package storage

import (
	"context"

	"token-metadata-lab/internal/domain"
)

// RunJournal records demo runs and the steps they execute.
// Steps are append-only; a run row changes exactly once, when it finishes.
type RunJournal interface {
	// CreateRun adds a new run in RUNNING status. Returns ErrDuplicateKey if run_id exists.
	CreateRun(ctx context.Context, run *domain.Run) error

	// FinishRun sets the final status, finish time and error of a run.
	// Returns ErrNotFound if the run does not exist and ErrInvalidInput if
	// status is not final or the run already finished.
	FinishRun(ctx context.Context, runID string, status domain.RunStatus, finishedAt int64, errMsg *string) error

	// InsertStep appends a step record. Returns ErrNotFound if the run does not
	// exist and ErrDuplicateKey if (run_id, step_index) exists.
	InsertStep(ctx context.Context, step *domain.StepRecord) error

	// GetRun retrieves a run by its ID. Returns ErrNotFound if not exists.
	GetRun(ctx context.Context, runID string) (*domain.Run, error)

	// GetSteps retrieves all steps of a run, ordered by step_index ASC.
	GetSteps(ctx context.Context, runID string) ([]*domain.StepRecord, error)

	// Close releases the backend's resources.
	Close() error
}

// ValidateRun checks the fields every backend requires on insert.
func ValidateRun(run *domain.Run) error {
	if run == nil || run.RunID == "" || run.Status != domain.RunStatusRunning {
		return ErrInvalidInput
	}
	return nil
}

// ValidateFinish checks a FinishRun request against the stored run.
func ValidateFinish(current domain.RunStatus, status domain.RunStatus) error {
	if !status.IsFinal() || current.IsFinal() {
		return ErrInvalidInput
	}
	return nil
}

// ValidateStep checks the fields every backend requires on insert.
func ValidateStep(step *domain.StepRecord) error {
	if step == nil || step.RunID == "" || step.StepIndex <= 0 || step.Name == "" {
		return ErrInvalidInput
	}
	if step.Status != domain.StepStatusSucceeded && step.Status != domain.StepStatusFailed {
		return ErrInvalidInput
	}
	return nil
}
