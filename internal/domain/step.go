package domain

// StepStatus is the outcome of one lifecycle step.
type StepStatus string

const (
	StepStatusSucceeded StepStatus = "SUCCEEDED"
	StepStatusFailed    StepStatus = "FAILED"
)

// Step names, in execution order.
const (
	StepAirdrop                 = "airdrop"
	StepCreateTokenAndMint      = "create_token_and_mint"
	StepRemoveMetadataField     = "remove_metadata_field"
	StepRemoveTokenAuthority    = "remove_token_authority"
	StepIncrementPoints         = "increment_points"
	StepTransferTokens          = "transfer_tokens"
	StepRevokeMetadataAuthority = "revoke_metadata_authority"
)

// StepRecord is the journal entry for one executed step.
// Corresponds to run_steps table. Keyed by (run_id, step_index).
type StepRecord struct {
	RunID        string     // FK to runs
	StepIndex    int        // 1-based position in the run
	Name         string     // step name
	Status       StepStatus // SUCCEEDED | FAILED
	Signatures   []string   // submitted transaction signatures (base58)
	ExplorerURLs []string   // one per signature
	Slot         uint64     // slot of the last landed transaction (0 if unknown)
	Fee          uint64     // total lamports paid in fees (0 if unknown)
	Detail       string     // step-specific summary, e.g. "Points 500 -> 510"
	StartedAt    int64      // Unix timestamp in milliseconds
	FinishedAt   int64      // Unix timestamp in milliseconds
	Error        *string    // failure message (nullable)
}

// Clone returns a deep copy of r.
func (r *StepRecord) Clone() *StepRecord {
	c := *r
	c.Signatures = append([]string(nil), r.Signatures...)
	c.ExplorerURLs = append([]string(nil), r.ExplorerURLs...)
	if r.Error != nil {
		e := *r.Error
		c.Error = &e
	}
	return &c
}
