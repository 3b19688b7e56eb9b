// Package reporting renders run output: console step lines while a run is
// in progress and Markdown/CSV summaries of journaled runs.
package reporting

import "time"

// Report is the summary of one journaled run.
type Report struct {
	GeneratedAt time.Time

	RunID       string
	Status      string
	Mint        string
	Payer       string
	Authority   string
	Recipient   string
	RPCEndpoint string
	StartSlot   uint64
	StartedAt   int64 // Unix ms
	FinishedAt  int64 // Unix ms, 0 while running
	Error       string

	Steps  []StepRow
	Totals Totals
}

// StepRow is one step of the run.
type StepRow struct {
	Index        int
	Name         string
	Status       string
	Signatures   []string
	ExplorerURLs []string
	Slot         uint64
	Fee          uint64
	Detail       string
	DurationMs   int64
	Error        string
}

// Totals aggregates over all steps.
type Totals struct {
	Steps        int
	FailedSteps  int
	Transactions int
	FeeLamports  uint64
	DurationMs   int64 // run wall time, 0 while running
}
