package reporting

import (
	"context"
	"fmt"
	"time"

	"token-metadata-lab/internal/domain"
	"token-metadata-lab/internal/storage"
)

// Generator builds reports from the run journal.
type Generator struct {
	journal storage.RunJournal
	now     func() time.Time
}

// NewGenerator creates a Generator reading from journal.
func NewGenerator(journal storage.RunJournal) *Generator {
	return &Generator{journal: journal, now: time.Now}
}

// WithClock overrides the clock used for GeneratedAt.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

// Generate loads runID and its steps and summarizes them.
func (g *Generator) Generate(ctx context.Context, runID string) (*Report, error) {
	run, err := g.journal.GetRun(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("get run %s: %w", runID, err)
	}
	steps, err := g.journal.GetSteps(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("get steps of %s: %w", runID, err)
	}
	return Build(run, steps, g.now().UTC()), nil
}

// Build summarizes run and steps without touching the journal.
func Build(run *domain.Run, steps []*domain.StepRecord, generatedAt time.Time) *Report {
	r := &Report{
		GeneratedAt: generatedAt,
		RunID:       run.RunID,
		Status:      string(run.Status),
		Mint:        run.Mint,
		Payer:       run.Payer,
		Authority:   run.Authority,
		Recipient:   run.Recipient,
		RPCEndpoint: run.RPCEndpoint,
		StartSlot:   run.StartSlot,
		StartedAt:   run.StartedAt,
	}
	if run.FinishedAt != nil {
		r.FinishedAt = *run.FinishedAt
		r.Totals.DurationMs = *run.FinishedAt - run.StartedAt
	}
	if run.Error != nil {
		r.Error = *run.Error
	}

	for _, s := range steps {
		row := StepRow{
			Index:        s.StepIndex,
			Name:         s.Name,
			Status:       string(s.Status),
			Signatures:   s.Signatures,
			ExplorerURLs: s.ExplorerURLs,
			Slot:         s.Slot,
			Fee:          s.Fee,
			Detail:       s.Detail,
			DurationMs:   s.FinishedAt - s.StartedAt,
		}
		if s.Error != nil {
			row.Error = *s.Error
		}
		r.Steps = append(r.Steps, row)

		r.Totals.Steps++
		if s.Status == domain.StepStatusFailed {
			r.Totals.FailedSteps++
		}
		r.Totals.Transactions += len(s.Signatures)
		r.Totals.FeeLamports += s.Fee
	}

	return r
}
