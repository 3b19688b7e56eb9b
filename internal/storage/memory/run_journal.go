// Package memory provides the in-process run journal used by default and in tests.
package memory

import (
	"context"
	"sort"
	"sync"

	"token-metadata-lab/internal/domain"
	"token-metadata-lab/internal/storage"
)

// RunJournal is an in-memory implementation of storage.RunJournal.
type RunJournal struct {
	mu    sync.RWMutex
	runs  map[string]*domain.Run                // keyed by run_id
	steps map[string]map[int]*domain.StepRecord // run_id -> step_index
}

// NewRunJournal creates a new in-memory run journal.
func NewRunJournal() *RunJournal {
	return &RunJournal{
		runs:  make(map[string]*domain.Run),
		steps: make(map[string]map[int]*domain.StepRecord),
	}
}

var _ storage.RunJournal = (*RunJournal)(nil)

// CreateRun adds a new run. Returns ErrDuplicateKey if run_id exists.
func (j *RunJournal) CreateRun(_ context.Context, run *domain.Run) error {
	if err := storage.ValidateRun(run); err != nil {
		return err
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	if _, exists := j.runs[run.RunID]; exists {
		return storage.ErrDuplicateKey
	}
	j.runs[run.RunID] = copyRun(run)
	j.steps[run.RunID] = make(map[int]*domain.StepRecord)
	return nil
}

// FinishRun sets the final status of a run.
func (j *RunJournal) FinishRun(_ context.Context, runID string, status domain.RunStatus, finishedAt int64, errMsg *string) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	run, exists := j.runs[runID]
	if !exists {
		return storage.ErrNotFound
	}
	if err := storage.ValidateFinish(run.Status, status); err != nil {
		return err
	}

	run.Status = status
	run.FinishedAt = &finishedAt
	if errMsg != nil {
		msg := *errMsg
		run.Error = &msg
	}
	return nil
}

// InsertStep appends a step record.
func (j *RunJournal) InsertStep(_ context.Context, step *domain.StepRecord) error {
	if err := storage.ValidateStep(step); err != nil {
		return err
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	steps, exists := j.steps[step.RunID]
	if !exists {
		return storage.ErrNotFound
	}
	if _, dup := steps[step.StepIndex]; dup {
		return storage.ErrDuplicateKey
	}
	steps[step.StepIndex] = step.Clone()
	return nil
}

// GetRun retrieves a run by its ID. Returns ErrNotFound if not exists.
func (j *RunJournal) GetRun(_ context.Context, runID string) (*domain.Run, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()

	run, exists := j.runs[runID]
	if !exists {
		return nil, storage.ErrNotFound
	}
	return copyRun(run), nil
}

// GetSteps retrieves all steps of a run, ordered by step_index ASC.
// Unknown runs yield an empty result.
func (j *RunJournal) GetSteps(_ context.Context, runID string) ([]*domain.StepRecord, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()

	result := make([]*domain.StepRecord, 0, len(j.steps[runID]))
	for _, s := range j.steps[runID] {
		result = append(result, s.Clone())
	}
	sort.Slice(result, func(a, b int) bool {
		return result[a].StepIndex < result[b].StepIndex
	})
	return result, nil
}

// Close is a no-op.
func (j *RunJournal) Close() error {
	return nil
}

func copyRun(r *domain.Run) *domain.Run {
	c := *r
	if r.FinishedAt != nil {
		v := *r.FinishedAt
		c.FinishedAt = &v
	}
	if r.Error != nil {
		v := *r.Error
		c.Error = &v
	}
	return &c
}
