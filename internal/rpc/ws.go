package rpc

import (
	"context"

	"github.com/gagliardetto/solana-go"
)

// WSClient defines the Solana WebSocket subscription surface.
type WSClient interface {
	// SubscribeSignature subscribes to the confirmation of one signature.
	// The returned channel receives at most one notification and is then closed.
	SubscribeSignature(ctx context.Context, sig solana.Signature, commitment Commitment) (<-chan SignatureNotification, error)

	// Unsubscribe ends the subscription for sig, if one is still live.
	Unsubscribe(sig solana.Signature) error

	// Close closes the WebSocket connection.
	Close() error
}

// SignatureNotification represents a signatureSubscribe message.
type SignatureNotification struct {
	Signature solana.Signature
	Slot      uint64
	Err       interface{}
}
