package orchestrator

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"token-metadata-lab/internal/domain"
	"token-metadata-lab/internal/explorer"
	"token-metadata-lab/internal/rpc"
	"token-metadata-lab/internal/storage"
	"token-metadata-lab/internal/storage/memory"
	"token-metadata-lab/internal/tokenops"
)

// fakeOps records calls and returns a distinct signature per call.
type fakeOps struct {
	mu     sync.Mutex
	calls  []string
	next   byte
	failOn string
	err    error

	removedKey string
	delta      int64
	amount     uint64
	lamports   uint64
}

func (f *fakeOps) record(name string) (solana.Signature, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, name)
	if name == f.failOn {
		return solana.Signature{}, f.err
	}
	f.next++
	var sig solana.Signature
	sig[0] = f.next
	return sig, nil
}

func (f *fakeOps) Airdrop(_ context.Context, _ solana.PublicKey, lamports uint64) (solana.Signature, error) {
	f.lamports = lamports
	return f.record(domain.StepAirdrop)
}

func (f *fakeOps) CreateTokenAndMint(_ context.Context, _ *tokenops.Session) (solana.Signature, solana.Signature, error) {
	a, err := f.record(domain.StepCreateTokenAndMint)
	if err != nil {
		return a, solana.Signature{}, err
	}
	b, _ := f.record("mint_supply")
	return a, b, nil
}

func (f *fakeOps) RemoveMetadataField(_ context.Context, _ *tokenops.Session, key string) (solana.Signature, error) {
	f.removedKey = key
	return f.record(domain.StepRemoveMetadataField)
}

func (f *fakeOps) RemoveTokenAuthority(_ context.Context, _ *tokenops.Session) (solana.Signature, error) {
	return f.record(domain.StepRemoveTokenAuthority)
}

func (f *fakeOps) IncrementPoints(_ context.Context, _ *tokenops.Session, delta int64) (*tokenops.PointsUpdate, error) {
	f.delta = delta
	sig, err := f.record(domain.StepIncrementPoints)
	if err != nil {
		return nil, err
	}
	return &tokenops.PointsUpdate{Signature: sig, Previous: 500, Current: 500 + delta}, nil
}

func (f *fakeOps) TransferTokens(_ context.Context, _ *tokenops.Session, _ solana.PublicKey, amount uint64) (solana.Signature, error) {
	f.amount = amount
	return f.record(domain.StepTransferTokens)
}

func (f *fakeOps) RevokeMetadataAuthority(_ context.Context, _ *tokenops.Session) (solana.Signature, error) {
	return f.record(domain.StepRevokeMetadataAuthority)
}

func (f *fakeOps) TokenBalance(_ context.Context, s *tokenops.Session, owner solana.PublicKey) (uint64, error) {
	if owner.Equals(s.Payer.PublicKey()) {
		return 999, nil
	}
	return 1, nil
}

// fakeLedger reports slot 100 + first signature byte and a 5000 lamport fee.
type fakeLedger struct{}

func (fakeLedger) GetSlot(context.Context) (uint64, error) { return 100, nil }

func (fakeLedger) GetTransaction(_ context.Context, sig solana.Signature) (*rpc.Transaction, error) {
	return &rpc.Transaction{Signature: sig, Slot: 100 + uint64(sig[0]), Fee: 5000}, nil
}

type recordingReporter struct {
	steps []string
}

func (r *recordingReporter) ReportStep(step *domain.StepRecord) {
	r.steps = append(r.steps, step.Name+":"+string(step.Status))
}

func newSession(t *testing.T) *tokenops.Session {
	t.Helper()
	s, err := tokenops.NewSession(nil, nil)
	require.NoError(t, err)
	return s
}

func quietLogger() *log.Logger {
	return log.New(&bytes.Buffer{}, "", 0)
}

func int64Ptr(v int64) *int64 { return &v }

func TestOrchestrator_Run_AllSteps(t *testing.T) {
	ctx := context.Background()
	ops := &fakeOps{}
	journal := memory.NewRunJournal()
	reporter := &recordingReporter{}
	recipient := solana.NewWallet().PublicKey()

	orch := New(Options{
		Ops:             ops,
		Journal:         journal,
		Ledger:          fakeLedger{},
		Reporter:        reporter,
		Logger:          quietLogger(),
		AirdropLamports: 2 * solana.LAMPORTS_PER_SOL,
		PointsDelta:     int64Ptr(10),
		RPCEndpoint:     "http://127.0.0.1:8899",
	})

	s := newSession(t)
	result, err := orch.Run(ctx, s, recipient)
	require.NoError(t, err)

	assert.Equal(t, []string{
		domain.StepAirdrop,
		domain.StepCreateTokenAndMint,
		"mint_supply",
		domain.StepRemoveMetadataField,
		domain.StepRemoveTokenAuthority,
		domain.StepIncrementPoints,
		domain.StepTransferTokens,
	}, ops.calls)
	assert.Equal(t, "Background", ops.removedKey)
	assert.Equal(t, int64(10), ops.delta)
	assert.Equal(t, uint64(1), ops.amount)
	assert.Equal(t, uint64(2*solana.LAMPORTS_PER_SOL), ops.lamports)

	assert.Equal(t, domain.RunStatusSucceeded, result.Status)
	require.Len(t, result.Steps, 6)
	assert.Equal(t, int64(510), result.Points.Current)
	assert.Equal(t, uint64(999), result.PayerBalance)
	assert.Equal(t, uint64(1), result.RecipientBalance)

	run, err := journal.GetRun(ctx, result.RunID)
	require.NoError(t, err)
	assert.Equal(t, domain.RunStatusSucceeded, run.Status)
	assert.Equal(t, s.MintAddress().String(), run.Mint)
	assert.Equal(t, recipient.String(), run.Recipient)
	assert.Equal(t, uint64(100), run.StartSlot)
	assert.NotNil(t, run.FinishedAt)
	assert.Nil(t, run.Error)

	steps, err := journal.GetSteps(ctx, result.RunID)
	require.NoError(t, err)
	require.Len(t, steps, 6)
	for i, st := range steps {
		assert.Equal(t, i+1, st.StepIndex)
		assert.Equal(t, domain.StepStatusSucceeded, st.Status)
		assert.Len(t, st.ExplorerURLs, len(st.Signatures))
	}

	create := steps[1]
	assert.Equal(t, domain.StepCreateTokenAndMint, create.Name)
	require.Len(t, create.Signatures, 2)
	assert.Equal(t, explorer.New("").URL(create.Signatures[0], false), create.ExplorerURLs[0])
	assert.True(t, strings.HasSuffix(create.ExplorerURLs[1], "?cluster=localnet-solana"))
	assert.Equal(t, uint64(10000), create.Fee)
	assert.Equal(t, uint64(103), create.Slot)

	assert.Equal(t, "Points 500 -> 510", steps[4].Detail)

	assert.Len(t, reporter.steps, 6)
	assert.Equal(t, domain.StepTransferTokens+":SUCCEEDED", reporter.steps[5])
}

func TestOrchestrator_Run_StepFailureAborts(t *testing.T) {
	ctx := context.Background()
	ops := &fakeOps{failOn: domain.StepRemoveTokenAuthority, err: errors.New("ledger rejected")}
	journal := memory.NewRunJournal()

	orch := New(Options{Ops: ops, Journal: journal, Logger: quietLogger(), AirdropLamports: 1})

	result, err := orch.Run(ctx, newSession(t), solana.NewWallet().PublicKey())
	require.Error(t, err)
	assert.Equal(t, "step 4 (remove_token_authority) failed: ledger rejected", err.Error())

	assert.NotContains(t, ops.calls, domain.StepIncrementPoints)
	assert.NotContains(t, ops.calls, domain.StepTransferTokens)

	require.NotNil(t, result)
	assert.Equal(t, domain.RunStatusFailed, result.Status)
	require.Len(t, result.Steps, 4)

	run, err := journal.GetRun(ctx, result.RunID)
	require.NoError(t, err)
	assert.Equal(t, domain.RunStatusFailed, run.Status)
	require.NotNil(t, run.Error)
	assert.Contains(t, *run.Error, "step 4 (remove_token_authority) failed")

	steps, err := journal.GetSteps(ctx, result.RunID)
	require.NoError(t, err)
	require.Len(t, steps, 4)
	failed := steps[3]
	assert.Equal(t, domain.StepStatusFailed, failed.Status)
	assert.Empty(t, failed.Signatures)
	require.NotNil(t, failed.Error)
	assert.Equal(t, "ledger rejected", *failed.Error)
}

func TestOrchestrator_Run_WrapsSentinels(t *testing.T) {
	ops := &fakeOps{failOn: domain.StepIncrementPoints, err: tokenops.ErrNoMetadata}
	orch := New(Options{Ops: ops, Journal: memory.NewRunJournal(), Logger: quietLogger()})

	_, err := orch.Run(context.Background(), newSession(t), solana.NewWallet().PublicKey())
	assert.ErrorIs(t, err, tokenops.ErrNoMetadata)
}

func TestOrchestrator_Run_SkipsAirdropAndRevokes(t *testing.T) {
	ops := &fakeOps{}
	orch := New(Options{
		Ops:                     ops,
		Journal:                 memory.NewRunJournal(),
		Logger:                  quietLogger(),
		RevokeMetadataAuthority: true,
	})

	result, err := orch.Run(context.Background(), newSession(t), solana.NewWallet().PublicKey())
	require.NoError(t, err)

	assert.NotContains(t, ops.calls, domain.StepAirdrop)
	assert.Equal(t, domain.StepRevokeMetadataAuthority, ops.calls[len(ops.calls)-1])
	assert.Equal(t, int64(DefaultPointsDelta), ops.delta)

	require.Len(t, result.Steps, 6)
	assert.Equal(t, domain.StepCreateTokenAndMint, result.Steps[0].Name)
	assert.Equal(t, 1, result.Steps[0].StepIndex)
	assert.Equal(t, domain.StepRevokeMetadataAuthority, result.Steps[5].Name)
}

func TestOrchestrator_Run_JournalCreateFails(t *testing.T) {
	ops := &fakeOps{}
	orch := New(Options{Ops: ops, Journal: rejectingJournal{memory.NewRunJournal()}, Logger: quietLogger()})

	_, err := orch.Run(context.Background(), newSession(t), solana.NewWallet().PublicKey())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "create run")
	assert.Empty(t, ops.calls)
}

func TestOrchestrator_Run_ZeroPointsDelta(t *testing.T) {
	ops := &fakeOps{}
	orch := New(Options{Ops: ops, Journal: memory.NewRunJournal(), Logger: quietLogger(), PointsDelta: int64Ptr(0)})

	result, err := orch.Run(context.Background(), newSession(t), solana.NewWallet().PublicKey())
	require.NoError(t, err)
	assert.Zero(t, ops.delta)
	assert.Equal(t, int64(500), result.Points.Current)
}

func TestOrchestrator_Run_LogsAlreadyFinishedRun(t *testing.T) {
	var logs bytes.Buffer
	orch := New(Options{
		Ops:     &fakeOps{},
		Journal: finishedJournal{memory.NewRunJournal()},
		Logger:  log.New(&logs, "", 0),
	})

	_, err := orch.Run(context.Background(), newSession(t), solana.NewWallet().PublicKey())
	require.NoError(t, err)
	assert.Contains(t, logs.String(), "run already finished")
}

// finishedJournal behaves as if every run had been closed out already.
type finishedJournal struct {
	*memory.RunJournal
}

func (finishedJournal) FinishRun(context.Context, string, domain.RunStatus, int64, *string) error {
	return fmt.Errorf("%w: run is already SUCCEEDED", storage.ErrInvalidInput)
}

type rejectingJournal struct {
	*memory.RunJournal
}

func (rejectingJournal) CreateRun(context.Context, *domain.Run) error {
	return errors.New("journal unavailable")
}

func TestOrchestrator_Run_UsesClock(t *testing.T) {
	base := time.UnixMilli(1700000000000)
	tick := 0
	clock := func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}

	journal := memory.NewRunJournal()
	orch := New(Options{Ops: &fakeOps{}, Journal: journal, Logger: quietLogger(), Clock: clock})

	result, err := orch.Run(context.Background(), newSession(t), solana.NewWallet().PublicKey())
	require.NoError(t, err)

	steps, err := journal.GetSteps(context.Background(), result.RunID)
	require.NoError(t, err)
	for _, st := range steps {
		assert.Equal(t, int64(1000), st.FinishedAt-st.StartedAt, st.Name)
	}
}

func TestSigs(t *testing.T) {
	var a solana.Signature
	a[0] = 1
	assert.Equal(t, []solana.Signature{a}, sigs(solana.Signature{}, a))
	assert.Nil(t, sigs(solana.Signature{}))
}
