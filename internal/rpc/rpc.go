package rpc

import (
	"context"

	"github.com/gagliardetto/solana-go"
)

// Client defines the Solana RPC HTTP surface used to build, submit and
// confirm transactions.
type Client interface {
	// GetLatestBlockhash returns a recent blockhash for transaction assembly.
	GetLatestBlockhash(ctx context.Context) (solana.Hash, error)

	// RequestAirdrop asks the faucet to credit lamports to the account.
	RequestAirdrop(ctx context.Context, account solana.PublicKey, lamports uint64) (solana.Signature, error)

	// GetMinimumBalanceForRentExemption returns lamports required for an account of size bytes.
	GetMinimumBalanceForRentExemption(ctx context.Context, size uint64) (uint64, error)

	// SendTransaction submits a signed transaction.
	SendTransaction(ctx context.Context, tx *solana.Transaction) (solana.Signature, error)

	// GetSignatureStatuses returns one entry per signature; nil when unknown.
	GetSignatureStatuses(ctx context.Context, sigs ...solana.Signature) ([]*SignatureStatus, error)

	// GetAccountInfo retrieves an account. Returns nil if the account does not exist.
	GetAccountInfo(ctx context.Context, account solana.PublicKey) (*AccountInfo, error)

	// GetTokenAccountBalance returns the raw token amount held by a token account.
	GetTokenAccountBalance(ctx context.Context, account solana.PublicKey) (uint64, error)
}

// Commitment is a ledger confirmation level.
type Commitment string

// Commitment levels in increasing order of finality.
const (
	CommitmentProcessed Commitment = "processed"
	CommitmentConfirmed Commitment = "confirmed"
	CommitmentFinalized Commitment = "finalized"
)

// Valid reports whether c is a known commitment level.
func (c Commitment) Valid() bool {
	switch c {
	case CommitmentProcessed, CommitmentConfirmed, CommitmentFinalized:
		return true
	default:
		return false
	}
}

func (c Commitment) rank() int {
	switch c {
	case CommitmentProcessed:
		return 1
	case CommitmentConfirmed:
		return 2
	case CommitmentFinalized:
		return 3
	default:
		return 0
	}
}

// Satisfies reports whether status c has reached at least target.
func (c Commitment) Satisfies(target Commitment) bool {
	return c.rank() > 0 && c.rank() >= target.rank()
}

// SignatureStatus represents one entry of getSignatureStatuses.
type SignatureStatus struct {
	Slot               uint64
	Confirmations      *uint64
	Err                interface{}
	ConfirmationStatus Commitment
}

// AccountInfo represents Solana account information with decoded data.
type AccountInfo struct {
	Lamports   uint64
	Owner      solana.PublicKey
	Data       []byte
	Executable bool
	RentEpoch  uint64
}
