// Package orchestrator runs the token lifecycle end to end:
// airdrop → create + mint → remove metadata field → revoke mint authority →
// increment points → transfer, with an optional metadata authority revocation.
// Every step is journaled; the first failing step aborts the run.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/google/uuid"

	"token-metadata-lab/internal/domain"
	"token-metadata-lab/internal/explorer"
	"token-metadata-lab/internal/observability"
	"token-metadata-lab/internal/rpc"
	"token-metadata-lab/internal/storage"
	"token-metadata-lab/internal/tokenops"
)

// Ops is the ledger surface the lifecycle needs. *tokenops.Client implements it.
type Ops interface {
	Airdrop(ctx context.Context, target solana.PublicKey, lamports uint64) (solana.Signature, error)
	CreateTokenAndMint(ctx context.Context, s *tokenops.Session) (solana.Signature, solana.Signature, error)
	RemoveMetadataField(ctx context.Context, s *tokenops.Session, key string) (solana.Signature, error)
	RemoveTokenAuthority(ctx context.Context, s *tokenops.Session) (solana.Signature, error)
	IncrementPoints(ctx context.Context, s *tokenops.Session, delta int64) (*tokenops.PointsUpdate, error)
	TransferTokens(ctx context.Context, s *tokenops.Session, recipient solana.PublicKey, amount uint64) (solana.Signature, error)
	RevokeMetadataAuthority(ctx context.Context, s *tokenops.Session) (solana.Signature, error)
	TokenBalance(ctx context.Context, s *tokenops.Session, owner solana.PublicKey) (uint64, error)
}

var _ Ops = (*tokenops.Client)(nil)

// Ledger supplies slots and fees for the journal. *rpc.HTTPClient implements it.
type Ledger interface {
	GetSlot(ctx context.Context) (uint64, error)
	GetTransaction(ctx context.Context, sig solana.Signature) (*rpc.Transaction, error)
}

// Reporter receives every journaled step as it completes.
type Reporter interface {
	ReportStep(step *domain.StepRecord)
}

// Defaults used when Options leave a value zero.
const (
	DefaultRemovedField   = "Background"
	DefaultTransferAmount = 1
	DefaultPointsDelta    = 1
)

// Orchestrator coordinates one lifecycle run.
type Orchestrator struct {
	ops      Ops
	journal  storage.RunJournal
	ledger   Ledger
	reporter Reporter
	explorer *explorer.Explorer
	logger   *log.Logger
	now      func() time.Time

	airdropLamports         uint64
	removedField            string
	pointsDelta             int64
	transferAmount          uint64
	revokeMetadataAuthority bool
	rpcEndpoint             string
	verbose                 bool
}

// Options for creating Orchestrator.
type Options struct {
	// Required
	Ops     Ops
	Journal storage.RunJournal

	// Optional collaborators
	Ledger   Ledger             // fills start slot, step slots and fees
	Reporter Reporter           // console output
	Explorer *explorer.Explorer // defaults to explorer.New("")
	Logger   *log.Logger        // defaults to log.Default()
	Clock    func() time.Time   // defaults to time.Now

	// Step parameters
	AirdropLamports         uint64 // 0 skips the airdrop
	RemovedField            string // defaults to DefaultRemovedField
	PointsDelta             *int64 // nil selects DefaultPointsDelta; zero is honoured
	TransferAmount          uint64 // defaults to DefaultTransferAmount
	RevokeMetadataAuthority bool   // run the trailing revocation step

	RPCEndpoint string // recorded on the run
	Verbose     bool
}

// New creates a new Orchestrator.
func New(opts Options) *Orchestrator {
	o := &Orchestrator{
		ops:                     opts.Ops,
		journal:                 opts.Journal,
		ledger:                  opts.Ledger,
		reporter:                opts.Reporter,
		explorer:                opts.Explorer,
		logger:                  opts.Logger,
		now:                     opts.Clock,
		airdropLamports:         opts.AirdropLamports,
		removedField:            opts.RemovedField,
		pointsDelta:             DefaultPointsDelta,
		transferAmount:          opts.TransferAmount,
		revokeMetadataAuthority: opts.RevokeMetadataAuthority,
		rpcEndpoint:             opts.RPCEndpoint,
		verbose:                 opts.Verbose,
	}
	if o.explorer == nil {
		o.explorer = explorer.New("")
	}
	if o.logger == nil {
		o.logger = log.Default()
	}
	if o.now == nil {
		o.now = time.Now
	}
	if o.removedField == "" {
		o.removedField = DefaultRemovedField
	}
	if opts.PointsDelta != nil {
		o.pointsDelta = *opts.PointsDelta
	}
	if o.transferAmount == 0 {
		o.transferAmount = DefaultTransferAmount
	}
	return o
}

// RunResult contains results from orchestrator execution.
type RunResult struct {
	RunID            string
	Status           domain.RunStatus
	Steps            []*domain.StepRecord
	Points           *tokenops.PointsUpdate
	PayerBalance     uint64
	RecipientBalance uint64
}

// stepFunc performs one step and returns the signatures it landed and a
// short detail line for the journal.
type stepFunc func(ctx context.Context) ([]solana.Signature, string, error)

type step struct {
	name string
	run  stepFunc
}

// Run executes the lifecycle for session, transferring to recipient.
// On failure the partial result is returned together with the error.
func (o *Orchestrator) Run(ctx context.Context, s *tokenops.Session, recipient solana.PublicKey) (*RunResult, error) {
	run := &domain.Run{
		RunID:       uuid.NewString(),
		Mint:        s.MintAddress().String(),
		Payer:       s.Payer.PublicKey().String(),
		Authority:   s.Authority.PublicKey().String(),
		Recipient:   recipient.String(),
		RPCEndpoint: o.rpcEndpoint,
		Status:      domain.RunStatusRunning,
		StartedAt:   o.now().UnixMilli(),
	}
	if o.ledger != nil {
		slot, err := o.ledger.GetSlot(ctx)
		if err != nil {
			o.logger.Printf("get start slot: %v", err)
		}
		run.StartSlot = slot
	}
	if err := o.journal.CreateRun(ctx, run); err != nil {
		return nil, fmt.Errorf("create run: %w", err)
	}

	result := &RunResult{RunID: run.RunID, Status: domain.RunStatusRunning}
	o.log("Run %s: mint %s", run.RunID, run.Mint)

	for i, st := range o.steps(s, recipient, result) {
		index := i + 1
		o.log("Step %d: %s...", index, st.name)

		record, err := o.execute(ctx, run.RunID, index, st)
		result.Steps = append(result.Steps, record)
		if err != nil {
			err = fmt.Errorf("step %d (%s) failed: %w", index, st.name, err)
			o.finish(run.RunID, result, domain.RunStatusFailed, err)
			return result, err
		}
		o.log("  %s", record.Detail)
	}

	if err := o.balances(ctx, s, recipient, result); err != nil {
		o.logger.Printf("read balances: %v", err)
	}

	o.finish(run.RunID, result, domain.RunStatusSucceeded, nil)
	o.log("Run %s completed: %d steps", run.RunID, len(result.Steps))
	return result, nil
}

// steps lists the lifecycle in execution order.
func (o *Orchestrator) steps(s *tokenops.Session, recipient solana.PublicKey, result *RunResult) []step {
	var steps []step

	if o.airdropLamports > 0 {
		steps = append(steps, step{domain.StepAirdrop, func(ctx context.Context) ([]solana.Signature, string, error) {
			sig, err := o.ops.Airdrop(ctx, s.Payer.PublicKey(), o.airdropLamports)
			return sigs(sig), fmt.Sprintf("%d lamports to %s", o.airdropLamports, s.Payer.PublicKey()), err
		}})
	}

	steps = append(steps,
		step{domain.StepCreateTokenAndMint, func(ctx context.Context) ([]solana.Signature, string, error) {
			createSig, mintSig, err := o.ops.CreateTokenAndMint(ctx, s)
			return sigs(createSig, mintSig), fmt.Sprintf("mint %s, supply %d", s.MintAddress(), s.InitialSupply), err
		}},
		step{domain.StepRemoveMetadataField, func(ctx context.Context) ([]solana.Signature, string, error) {
			sig, err := o.ops.RemoveMetadataField(ctx, s, o.removedField)
			return sigs(sig), fmt.Sprintf("removed %q", o.removedField), err
		}},
		step{domain.StepRemoveTokenAuthority, func(ctx context.Context) ([]solana.Signature, string, error) {
			sig, err := o.ops.RemoveTokenAuthority(ctx, s)
			return sigs(sig), "mint authority revoked", err
		}},
		step{domain.StepIncrementPoints, func(ctx context.Context) ([]solana.Signature, string, error) {
			update, err := o.ops.IncrementPoints(ctx, s, o.pointsDelta)
			if err != nil {
				return nil, "", err
			}
			result.Points = update
			detail := fmt.Sprintf("%s %d -> %d", tokenops.PointsKey, update.Previous, update.Current)
			if update.TopUp > 0 {
				detail += fmt.Sprintf(" (rent top-up %d lamports)", update.TopUp)
			}
			return sigs(update.Signature), detail, nil
		}},
		step{domain.StepTransferTokens, func(ctx context.Context) ([]solana.Signature, string, error) {
			sig, err := o.ops.TransferTokens(ctx, s, recipient, o.transferAmount)
			return sigs(sig), fmt.Sprintf("%d to %s", o.transferAmount, recipient), err
		}},
	)

	if o.revokeMetadataAuthority {
		steps = append(steps, step{domain.StepRevokeMetadataAuthority, func(ctx context.Context) ([]solana.Signature, string, error) {
			sig, err := o.ops.RevokeMetadataAuthority(ctx, s)
			return sigs(sig), "metadata is immutable", err
		}})
	}

	return steps
}

// execute runs one step and journals its outcome. Journal failures are
// logged; the ledger effects of the step are already committed.
func (o *Orchestrator) execute(ctx context.Context, runID string, index int, st step) (*domain.StepRecord, error) {
	start := o.now()
	signatures, detail, err := st.run(ctx)
	finished := o.now()
	observability.RecordStep(st.name, finished.Sub(start).Seconds(), err)

	record := &domain.StepRecord{
		RunID:      runID,
		StepIndex:  index,
		Name:       st.name,
		Status:     domain.StepStatusSucceeded,
		Detail:     detail,
		StartedAt:  start.UnixMilli(),
		FinishedAt: finished.UnixMilli(),
	}
	for _, sig := range signatures {
		record.Signatures = append(record.Signatures, sig.String())
		record.ExplorerURLs = append(record.ExplorerURLs, o.explorer.Tx(sig))
	}
	if err != nil {
		msg := err.Error()
		record.Status = domain.StepStatusFailed
		record.Error = &msg
	}
	o.inspect(ctx, record, signatures)

	if jerr := o.journal.InsertStep(context.WithoutCancel(ctx), record); jerr != nil {
		o.logger.Printf("journal step %d (%s): %v", index, st.name, jerr)
	}
	if o.reporter != nil {
		o.reporter.ReportStep(record)
	}
	return record, err
}

// inspect fills slot and fee from the ledger. Missing transactions are skipped.
func (o *Orchestrator) inspect(ctx context.Context, record *domain.StepRecord, signatures []solana.Signature) {
	if o.ledger == nil {
		return
	}
	for _, sig := range signatures {
		tx, err := o.ledger.GetTransaction(ctx, sig)
		if err != nil {
			o.log("  get transaction %s: %v", sig, err)
			continue
		}
		if tx == nil {
			continue
		}
		record.Fee += tx.Fee
		if tx.Slot > record.Slot {
			record.Slot = tx.Slot
		}
	}
}

func (o *Orchestrator) balances(ctx context.Context, s *tokenops.Session, recipient solana.PublicKey, result *RunResult) error {
	payer, err := o.ops.TokenBalance(ctx, s, s.Payer.PublicKey())
	if err != nil {
		return fmt.Errorf("payer: %w", err)
	}
	rcpt, err := o.ops.TokenBalance(ctx, s, recipient)
	if err != nil {
		return fmt.Errorf("recipient: %w", err)
	}
	result.PayerBalance = payer
	result.RecipientBalance = rcpt
	return nil
}

// finish records the final status. The journal write uses a context that
// survives cancellation so interrupted runs are still closed out.
func (o *Orchestrator) finish(runID string, result *RunResult, status domain.RunStatus, runErr error) {
	result.Status = status
	observability.RecordRun(string(status))

	var msg *string
	if runErr != nil {
		m := runErr.Error()
		msg = &m
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err := o.journal.FinishRun(ctx, runID, status, o.now().UnixMilli(), msg)
	switch {
	case err == nil:
	case errors.Is(err, storage.ErrInvalidInput):
		o.logger.Printf("journal finish run %s as %s: run already finished: %v", runID, status, err)
	default:
		o.logger.Printf("journal finish run %s: %v", runID, err)
	}
}

// sigs drops zero signatures.
func sigs(in ...solana.Signature) []solana.Signature {
	var out []solana.Signature
	for _, s := range in {
		if s != (solana.Signature{}) {
			out = append(out, s)
		}
	}
	return out
}

// log prints if verbose mode is enabled.
func (o *Orchestrator) log(format string, args ...interface{}) {
	if o.verbose {
		o.logger.Printf("[orchestrator] "+format, args...)
	}
}
