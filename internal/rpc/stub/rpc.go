package stub

import (
	"context"
	"crypto/sha256"
	"errors"
	"sync"

	"github.com/gagliardetto/solana-go"

	"token-metadata-lab/internal/rpc"
)

// ErrNotFound is returned when a token account is not found.
var ErrNotFound = errors.New("not found")

// RPCClient implements rpc.Client for testing. Every submitted transaction
// is recorded and reported as confirmed, with TxErr as its ledger error.
type RPCClient struct {
	mu sync.Mutex

	Blockhash     solana.Hash
	RentPerByte   uint64
	Accounts      map[solana.PublicKey]*rpc.AccountInfo
	TokenBalances map[solana.PublicKey]uint64
	Airdrops      map[solana.PublicKey]uint64
	Sent          []*solana.Transaction
	Statuses      map[solana.Signature]*rpc.SignatureStatus

	// SendErr, when set, is returned by SendTransaction.
	SendErr error
	// TxErr, when set, is reported as the ledger error of every submitted transaction.
	TxErr interface{}
	// OnSend runs after a transaction is recorded.
	OnSend func(tx *solana.Transaction)
}

// NewRPCClient creates a new stub RPC client.
func NewRPCClient() *RPCClient {
	return &RPCClient{
		Blockhash:     solana.Hash(sha256.Sum256([]byte("stub-blockhash"))),
		RentPerByte:   3480,
		Accounts:      make(map[solana.PublicKey]*rpc.AccountInfo),
		TokenBalances: make(map[solana.PublicKey]uint64),
		Airdrops:      make(map[solana.PublicKey]uint64),
		Statuses:      make(map[solana.Signature]*rpc.SignatureStatus),
	}
}

var _ rpc.Client = (*RPCClient)(nil)

// GetLatestBlockhash returns the fixed stub blockhash.
func (c *RPCClient) GetLatestBlockhash(_ context.Context) (solana.Hash, error) {
	return c.Blockhash, nil
}

// RequestAirdrop records the airdrop and returns a deterministic signature.
func (c *RPCClient) RequestAirdrop(_ context.Context, account solana.PublicKey, lamports uint64) (solana.Signature, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.Airdrops[account] += lamports
	var sig solana.Signature
	digest := sha256.Sum256(append([]byte("airdrop"), account.Bytes()...))
	copy(sig[:], digest[:])
	c.Statuses[sig] = &rpc.SignatureStatus{ConfirmationStatus: rpc.CommitmentFinalized}
	return sig, nil
}

// GetMinimumBalanceForRentExemption returns a linear rent estimate.
func (c *RPCClient) GetMinimumBalanceForRentExemption(_ context.Context, size uint64) (uint64, error) {
	// (128 + size) * lamports_per_byte_year * exemption_threshold
	return (128 + size) * c.RentPerByte * 2, nil
}

// SendTransaction records tx and marks its first signature as confirmed.
func (c *RPCClient) SendTransaction(_ context.Context, tx *solana.Transaction) (solana.Signature, error) {
	c.mu.Lock()
	if c.SendErr != nil {
		err := c.SendErr
		c.mu.Unlock()
		return solana.Signature{}, err
	}
	if len(tx.Signatures) == 0 {
		c.mu.Unlock()
		return solana.Signature{}, errors.New("transaction is not signed")
	}

	sig := tx.Signatures[0]
	c.Sent = append(c.Sent, tx)
	c.Statuses[sig] = &rpc.SignatureStatus{
		Slot:               uint64(len(c.Sent)),
		Err:                c.TxErr,
		ConfirmationStatus: rpc.CommitmentConfirmed,
	}
	onSend := c.OnSend
	c.mu.Unlock()

	if onSend != nil {
		onSend(tx)
	}
	return sig, nil
}

// GetSignatureStatuses returns recorded statuses; nil for unknown signatures.
func (c *RPCClient) GetSignatureStatuses(_ context.Context, sigs ...solana.Signature) ([]*rpc.SignatureStatus, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]*rpc.SignatureStatus, len(sigs))
	for i, sig := range sigs {
		if st, ok := c.Statuses[sig]; ok {
			stCopy := *st
			out[i] = &stCopy
		}
	}
	return out, nil
}

// GetAccountInfo returns a stored account or nil.
func (c *RPCClient) GetAccountInfo(_ context.Context, account solana.PublicKey) (*rpc.AccountInfo, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	info, ok := c.Accounts[account]
	if !ok {
		return nil, nil
	}
	infoCopy := *info
	infoCopy.Data = append([]byte(nil), info.Data...)
	return &infoCopy, nil
}

// GetTokenAccountBalance returns a stored token balance.
func (c *RPCClient) GetTokenAccountBalance(_ context.Context, account solana.PublicKey) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	amount, ok := c.TokenBalances[account]
	if !ok {
		return 0, ErrNotFound
	}
	return amount, nil
}

// SetAccount stores account data owned by owner.
func (c *RPCClient) SetAccount(account, owner solana.PublicKey, lamports uint64, data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.Accounts[account] = &rpc.AccountInfo{
		Lamports: lamports,
		Owner:    owner,
		Data:     append([]byte(nil), data...),
	}
}

// SentTransactions returns a snapshot of submitted transactions.
func (c *RPCClient) SentTransactions() []*solana.Transaction {
	c.mu.Lock()
	defer c.mu.Unlock()

	return append([]*solana.Transaction(nil), c.Sent...)
}
