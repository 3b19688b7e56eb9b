package domain

// RunStatus is the lifecycle state of a demo run.
type RunStatus string

const (
	RunStatusRunning   RunStatus = "RUNNING"
	RunStatusSucceeded RunStatus = "SUCCEEDED"
	RunStatusFailed    RunStatus = "FAILED"
)

// IsValid checks if status is a known run status.
func (s RunStatus) IsValid() bool {
	switch s {
	case RunStatusRunning, RunStatusSucceeded, RunStatusFailed:
		return true
	default:
		return false
	}
}

// IsFinal reports whether a run in status s has finished.
func (s RunStatus) IsFinal() bool {
	return s == RunStatusSucceeded || s == RunStatusFailed
}

// Run represents one execution of the token lifecycle.
// Corresponds to runs table in PostgreSQL and ClickHouse.
type Run struct {
	RunID       string    // PRIMARY KEY, UUID
	Mint        string    // mint address (base58)
	Payer       string    // fee payer address
	Authority   string    // mint + metadata update authority
	Recipient   string    // transfer recipient
	RPCEndpoint string    // ledger the run was executed against
	Status      RunStatus // RUNNING | SUCCEEDED | FAILED
	StartSlot   uint64    // ledger slot when the run started (0 if unknown)
	StartedAt   int64     // Unix timestamp in milliseconds
	FinishedAt  *int64    // set when the run finishes (ms)
	Error       *string   // failure message (nullable)
}
