package rpc

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
)

// Confirmation errors.
var (
	// ErrTransactionFailed is returned when the ledger reports an error for a landed transaction.
	ErrTransactionFailed = errors.New("transaction failed")

	// ErrConfirmTimeout is returned when a signature does not reach the commitment in time.
	ErrConfirmTimeout = errors.New("confirmation timeout")
)

// Confirmer waits for a submitted signature to reach a commitment level.
type Confirmer interface {
	Confirm(ctx context.Context, sig solana.Signature) error
}

// TransactionError wraps the ledger-reported error of a failed transaction.
type TransactionError struct {
	Signature solana.Signature
	Err       interface{}
}

func (e *TransactionError) Error() string {
	return fmt.Sprintf("transaction %s failed: %v", e.Signature, e.Err)
}

// Unwrap makes errors.Is(err, ErrTransactionFailed) match.
func (e *TransactionError) Unwrap() error {
	return ErrTransactionFailed
}

// PollingConfirmer confirms signatures by polling getSignatureStatuses.
type PollingConfirmer struct {
	client     Client
	commitment Commitment
	interval   time.Duration
	timeout    time.Duration
}

// NewPollingConfirmer creates a confirmer that polls every interval until timeout.
func NewPollingConfirmer(client Client, commitment Commitment, interval, timeout time.Duration) *PollingConfirmer {
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	return &PollingConfirmer{
		client:     client,
		commitment: commitment,
		interval:   interval,
		timeout:    timeout,
	}
}

// Confirm blocks until sig reaches the configured commitment.
func (p *PollingConfirmer) Confirm(ctx context.Context, sig solana.Signature) error {
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		// Lookup errors are transient here; keep polling until the deadline.
		if done, err := checkStatus(ctx, p.client, sig, p.commitment); done {
			return err
		}

		select {
		case <-ctx.Done():
			return timeoutError(ctx, sig)
		case <-ticker.C:
		}
	}
}

// checkStatus reports whether sig is final for our purposes, and the ledger error if any.
func checkStatus(ctx context.Context, client Client, sig solana.Signature, commitment Commitment) (bool, error) {
	statuses, err := client.GetSignatureStatuses(ctx, sig)
	if err != nil {
		return false, err
	}
	if len(statuses) == 0 || statuses[0] == nil {
		return false, nil
	}

	status := statuses[0]
	if status.Err != nil {
		return true, &TransactionError{Signature: sig, Err: status.Err}
	}
	if status.ConfirmationStatus.Satisfies(commitment) {
		return true, nil
	}
	// Older nodes omit confirmationStatus; nil confirmations means rooted.
	if status.ConfirmationStatus == "" && status.Confirmations == nil {
		return true, nil
	}
	return false, nil
}

func timeoutError(ctx context.Context, sig solana.Signature) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s", ErrConfirmTimeout, sig)
	}
	return ctx.Err()
}

// WSConfirmer confirms signatures via signatureSubscribe, polling as a backstop.
type WSConfirmer struct {
	ws     WSClient
	poller *PollingConfirmer
}

// NewWSConfirmer creates a subscription-based confirmer. The poller checks
// status once after subscribing and then on its own interval, covering
// confirmations that land before the subscription is active.
func NewWSConfirmer(ws WSClient, poller *PollingConfirmer) *WSConfirmer {
	return &WSConfirmer{ws: ws, poller: poller}
}

// Confirm blocks until sig reaches the configured commitment.
func (w *WSConfirmer) Confirm(ctx context.Context, sig solana.Signature) error {
	if w.poller.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.poller.timeout)
		defer cancel()
	}

	notifCh, err := w.ws.SubscribeSignature(ctx, sig, w.poller.commitment)
	if err != nil {
		// Fall back to polling only.
		return w.poller.Confirm(ctx, sig)
	}
	// No-op once the notification has been delivered.
	defer w.ws.Unsubscribe(sig)

	ticker := time.NewTicker(w.poller.interval * 4)
	defer ticker.Stop()

	if done, err := checkStatus(ctx, w.poller.client, sig, w.poller.commitment); done {
		return err
	}

	for {
		select {
		case notif, ok := <-notifCh:
			if !ok {
				return w.poller.Confirm(ctx, sig)
			}
			if notif.Err != nil {
				return &TransactionError{Signature: sig, Err: notif.Err}
			}
			return nil
		case <-ticker.C:
			if done, err := checkStatus(ctx, w.poller.client, sig, w.poller.commitment); done {
				return err
			}
		case <-ctx.Done():
			return timeoutError(ctx, sig)
		}
	}
}
