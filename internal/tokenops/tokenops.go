// Package tokenops performs the Token-2022 lifecycle operations of the demo:
// funding, mint creation with metadata, metadata edits, authority revocation
// and transfers. Every operation builds, signs, submits and confirms one
// transaction.
package tokenops

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"

	"token-metadata-lab/internal/observability"
	"token-metadata-lab/internal/rpc"
	"token-metadata-lab/internal/token2022"
)

var (
	// ErrNoMetadata is returned when a mint has no metadata pointer or the
	// pointed-to account carries no metadata.
	ErrNoMetadata = errors.New("no metadata found")

	// ErrOwnerOffCurve is returned for associated token accounts of PDA owners.
	ErrOwnerOffCurve = token2022.ErrOwnerOffCurve

	// ErrInsufficientBalance is returned when a transfer exceeds the source balance.
	ErrInsufficientBalance = errors.New("insufficient token balance")

	// ErrPointsOverflow is returned when an increment leaves the int64 range.
	ErrPointsOverflow = errors.New("points overflow int64")
)

// Client runs token operations against a ledger.
type Client struct {
	rpc       rpc.Client
	confirmer rpc.Confirmer
	logger    *log.Logger

	mintLocksMu sync.Mutex
	mintLocks   map[solana.PublicKey]*sync.Mutex
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the logger for submitted transactions.
func WithLogger(logger *log.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// New creates a Client. A nil confirmer polls the RPC client at confirmed commitment.
func New(client rpc.Client, confirmer rpc.Confirmer, opts ...Option) *Client {
	if confirmer == nil {
		confirmer = rpc.NewPollingConfirmer(client, rpc.CommitmentConfirmed, 0, 60*time.Second)
	}
	c := &Client{
		rpc:       client,
		confirmer: confirmer,
		logger:    log.New(io.Discard, "", 0),
		mintLocks: make(map[solana.PublicKey]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// lockMint serializes read-modify-write sequences on one mint.
func (c *Client) lockMint(mint solana.PublicKey) func() {
	c.mintLocksMu.Lock()
	mu, ok := c.mintLocks[mint]
	if !ok {
		mu = &sync.Mutex{}
		c.mintLocks[mint] = mu
	}
	c.mintLocksMu.Unlock()

	mu.Lock()
	return mu.Unlock
}

// sendAndConfirm assembles a transaction paid by payer, signs it with payer
// and signers, submits it and waits for confirmation.
func (c *Client) sendAndConfirm(ctx context.Context, label string, ixs []solana.Instruction, payer solana.PrivateKey, signers ...solana.PrivateKey) (solana.Signature, error) {
	blockhash, err := c.rpc.GetLatestBlockhash(ctx)
	if err != nil {
		return solana.Signature{}, fmt.Errorf("%s: get blockhash: %w", label, err)
	}

	tx, err := solana.NewTransaction(ixs, blockhash, solana.TransactionPayer(payer.PublicKey()))
	if err != nil {
		return solana.Signature{}, fmt.Errorf("%s: build transaction: %w", label, err)
	}

	keys := append([]solana.PrivateKey{payer}, signers...)
	if _, err := tx.Sign(func(pub solana.PublicKey) *solana.PrivateKey {
		for i := range keys {
			if keys[i].PublicKey().Equals(pub) {
				return &keys[i]
			}
		}
		return nil
	}); err != nil {
		return solana.Signature{}, fmt.Errorf("%s: sign transaction: %w", label, err)
	}

	sig, err := c.rpc.SendTransaction(ctx, tx)
	if err != nil {
		observability.RecordTransactionFailed("send")
		return solana.Signature{}, fmt.Errorf("%s: send transaction: %w", label, err)
	}
	observability.RecordTransactionSubmitted()
	c.logger.Printf("%s: submitted %s", label, sig)

	start := time.Now()
	if err := c.confirmer.Confirm(ctx, sig); err != nil {
		observability.RecordTransactionFailed(failureReason(err))
		return sig, fmt.Errorf("%s: confirm %s: %w", label, sig, err)
	}
	observability.RecordTransactionConfirmed(time.Since(start).Seconds())
	c.logger.Printf("%s: confirmed %s", label, sig)

	return sig, nil
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, rpc.ErrTransactionFailed):
		return "ledger"
	case errors.Is(err, rpc.ErrConfirmTimeout):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return "confirm"
	}
}

// rentExempt returns the rent-exempt minimum for size bytes.
func (c *Client) rentExempt(ctx context.Context, size uint64) (uint64, error) {
	lamports, err := c.rpc.GetMinimumBalanceForRentExemption(ctx, size)
	if err != nil {
		return 0, fmt.Errorf("get rent exemption for %d bytes: %w", size, err)
	}
	return lamports, nil
}
