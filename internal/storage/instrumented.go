package storage

import (
	"context"
	"time"

	"token-metadata-lab/internal/domain"
	"token-metadata-lab/internal/observability"
)

// Instrumented wraps a RunJournal and records write latency and errors
// under the given backend label.
type Instrumented struct {
	RunJournal
	backend string
}

// Instrument returns j with write metrics attached.
func Instrument(j RunJournal, backend string) *Instrumented {
	return &Instrumented{RunJournal: j, backend: backend}
}

var _ RunJournal = (*Instrumented)(nil)

// Backend returns the backend label.
func (i *Instrumented) Backend() string {
	return i.backend
}

// CreateRun records metrics around the wrapped CreateRun.
func (i *Instrumented) CreateRun(ctx context.Context, run *domain.Run) error {
	start := time.Now()
	err := i.RunJournal.CreateRun(ctx, run)
	observability.RecordJournalWrite(i.backend, "create_run", time.Since(start).Seconds(), err)
	return err
}

// FinishRun records metrics around the wrapped FinishRun.
func (i *Instrumented) FinishRun(ctx context.Context, runID string, status domain.RunStatus, finishedAt int64, errMsg *string) error {
	start := time.Now()
	err := i.RunJournal.FinishRun(ctx, runID, status, finishedAt, errMsg)
	observability.RecordJournalWrite(i.backend, "finish_run", time.Since(start).Seconds(), err)
	return err
}

// InsertStep records metrics around the wrapped InsertStep.
func (i *Instrumented) InsertStep(ctx context.Context, step *domain.StepRecord) error {
	start := time.Now()
	err := i.RunJournal.InsertStep(ctx, step)
	observability.RecordJournalWrite(i.backend, "insert_step", time.Since(start).Seconds(), err)
	return err
}
