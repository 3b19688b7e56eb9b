package tokenops

import (
	"context"
	"fmt"
	"math"
	"strconv"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"

	"token-metadata-lab/internal/token2022"
	"token-metadata-lab/internal/tokenmeta"
)

// Airdrop requests lamports from the faucet for target and waits for the
// credit to confirm.
func (c *Client) Airdrop(ctx context.Context, target solana.PublicKey, lamports uint64) (solana.Signature, error) {
	sig, err := c.rpc.RequestAirdrop(ctx, target, lamports)
	if err != nil {
		return solana.Signature{}, fmt.Errorf("request airdrop: %w", err)
	}
	c.logger.Printf("airdrop: requested %d lamports for %s (%s)", lamports, target, sig)

	if err := c.confirmer.Confirm(ctx, sig); err != nil {
		return sig, fmt.Errorf("confirm airdrop %s: %w", sig, err)
	}
	return sig, nil
}

// CreateTokenAndMint creates the mint with its metadata pointer and metadata
// in one transaction, then mints the session's initial supply to the payer's
// associated token account in a second. It returns both signatures.
func (c *Client) CreateTokenAndMint(ctx context.Context, s *Session) (solana.Signature, solana.Signature, error) {
	if s.InitialSupply == 0 {
		return solana.Signature{}, solana.Signature{}, fmt.Errorf("initial supply must be positive")
	}

	payer := s.Payer.PublicKey()
	authority := s.Authority.PublicKey()
	mint := s.MintAddress()

	mintSpace, err := token2022.MintSize(token2022.ExtensionMetadataPointer)
	if err != nil {
		return solana.Signature{}, solana.Signature{}, err
	}
	record := s.Metadata.Record(authority, mint)
	// Initialize grows the account to hold the metadata; fund it for that size up front.
	lamports, err := c.rentExempt(ctx, mintSpace+token2022.TLVSize(record.PackedLen()))
	if err != nil {
		return solana.Signature{}, solana.Signature{}, err
	}

	ixs := []solana.Instruction{
		system.NewCreateAccountInstruction(lamports, mintSpace, token2022.ProgramID, payer, mint).Build(),
		token2022.NewInitializeMetadataPointerInstruction(mint, authority, mint),
		token2022.NewInitializeMint2Instruction(mint, authority, nil, s.Decimals),
		tokenmeta.NewInitializeInstruction(token2022.ProgramID, mint, authority, mint, authority,
			record.Name, record.Symbol, record.URI),
	}
	for _, kv := range record.AdditionalMetadata {
		ixs = append(ixs, tokenmeta.NewUpdateFieldInstruction(token2022.ProgramID, mint, authority,
			tokenmeta.KeyField(kv.Key), kv.Value))
	}

	createSig, err := c.sendAndConfirm(ctx, "create mint", ixs, s.Payer, s.Mint, s.Authority)
	if err != nil {
		return createSig, solana.Signature{}, err
	}

	payerATA, err := token2022.FindAssociatedTokenAddress(payer, mint, false)
	if err != nil {
		return createSig, solana.Signature{}, err
	}
	mintSig, err := c.sendAndConfirm(ctx, "mint supply", []solana.Instruction{
		token2022.NewCreateIdempotentInstruction(payer, payerATA, payer, mint),
		token2022.NewMintToCheckedInstruction(mint, payerATA, authority, s.InitialSupply, s.Decimals),
	}, s.Payer, s.Authority)
	if err != nil {
		return createSig, mintSig, err
	}

	return createSig, mintSig, nil
}

// RemoveMetadataField deletes an additional metadata key. Removing an absent
// key succeeds.
func (c *Client) RemoveMetadataField(ctx context.Context, s *Session, key string) (solana.Signature, error) {
	ix := tokenmeta.NewRemoveKeyInstruction(token2022.ProgramID, s.MintAddress(), s.Authority.PublicKey(), key, true)
	return c.sendAndConfirm(ctx, "remove metadata field", []solana.Instruction{ix}, s.Payer, s.Authority)
}

// RemoveTokenAuthority revokes the mint authority, fixing the supply.
func (c *Client) RemoveTokenAuthority(ctx context.Context, s *Session) (solana.Signature, error) {
	return c.SetAuthority(ctx, s, token2022.AuthorityMintTokens, nil)
}

// SetAuthority changes (or with nil revokes) one authority of the session mint.
// The session authority must hold it.
func (c *Client) SetAuthority(ctx context.Context, s *Session, authorityType token2022.AuthorityType, newAuthority *solana.PublicKey) (solana.Signature, error) {
	ix := token2022.NewSetAuthorityInstruction(s.MintAddress(), s.Authority.PublicKey(), authorityType, newAuthority)
	return c.sendAndConfirm(ctx, "set authority "+authorityType.String(), []solana.Instruction{ix}, s.Payer, s.Authority)
}

// RevokeMetadataAuthority makes the metadata immutable.
func (c *Client) RevokeMetadataAuthority(ctx context.Context, s *Session) (solana.Signature, error) {
	ix := tokenmeta.NewUpdateAuthorityInstruction(token2022.ProgramID, s.MintAddress(), s.Authority.PublicKey(), nil)
	return c.sendAndConfirm(ctx, "revoke metadata authority", []solana.Instruction{ix}, s.Payer, s.Authority)
}

// PointsUpdate describes a completed IncrementPoints.
type PointsUpdate struct {
	Signature solana.Signature
	Previous  int64
	Current   int64
	TopUp     uint64 // lamports added to keep the metadata account rent exempt
}

// IncrementPoints reads the mint's metadata, adds delta to its Points value
// and writes the result back.
func (c *Client) IncrementPoints(ctx context.Context, s *Session, delta int64) (*PointsUpdate, error) {
	mint := s.MintAddress()
	unlock := c.lockMint(mint)
	defer unlock()

	md, err := c.FetchMetadata(ctx, mint)
	if err != nil {
		return nil, err
	}

	raw, _ := md.Record.Get(PointsKey)
	previous := parseLeadingInt(raw)
	if (delta > 0 && previous > math.MaxInt64-delta) || (delta < 0 && previous < math.MinInt64-delta) {
		return nil, fmt.Errorf("%w: %d %+d", ErrPointsOverflow, previous, delta)
	}
	current := previous + delta
	value := strconv.FormatInt(current, 10)

	updated := md.Record.Clone()
	updated.Set(tokenmeta.KeyField(PointsKey), value)

	var ixs []solana.Instruction
	newSize, err := md.sizeWith(updated)
	if err != nil {
		return nil, err
	}
	required, err := c.rentExempt(ctx, newSize)
	if err != nil {
		return nil, err
	}
	var topUp uint64
	if required > md.Account.Lamports {
		topUp = required - md.Account.Lamports
		ixs = append(ixs, system.NewTransferInstruction(topUp, s.Payer.PublicKey(), md.Address).Build())
	}
	ixs = append(ixs, tokenmeta.NewUpdateFieldInstruction(token2022.ProgramID, md.Address, s.Authority.PublicKey(),
		tokenmeta.KeyField(PointsKey), value))

	sig, err := c.sendAndConfirm(ctx, "increment points", ixs, s.Payer, s.Authority)
	if err != nil {
		return nil, err
	}

	return &PointsUpdate{Signature: sig, Previous: previous, Current: current, TopUp: topUp}, nil
}

// TransferTokens creates recipient's associated token account if needed and
// moves amount from the payer's account to it.
func (c *Client) TransferTokens(ctx context.Context, s *Session, recipient solana.PublicKey, amount uint64) (solana.Signature, error) {
	payer := s.Payer.PublicKey()
	mint := s.MintAddress()

	source, err := token2022.FindAssociatedTokenAddress(payer, mint, false)
	if err != nil {
		return solana.Signature{}, err
	}
	destination, err := token2022.FindAssociatedTokenAddress(recipient, mint, s.AllowOwnerOffCurve)
	if err != nil {
		return solana.Signature{}, err
	}

	if err := c.checkBalance(ctx, source, mint, amount); err != nil {
		return solana.Signature{}, err
	}

	return c.sendAndConfirm(ctx, "transfer", []solana.Instruction{
		token2022.NewCreateIdempotentInstruction(payer, destination, recipient, mint),
		token2022.NewTransferCheckedInstruction(source, mint, destination, payer, amount, s.Decimals),
	}, s.Payer)
}

func (c *Client) checkBalance(ctx context.Context, account, mint solana.PublicKey, amount uint64) error {
	info, err := c.rpc.GetAccountInfo(ctx, account)
	if err != nil {
		return fmt.Errorf("get source account: %w", err)
	}
	if info == nil {
		return fmt.Errorf("%w: source account %s does not exist", ErrInsufficientBalance, account)
	}
	acct, err := token2022.DecodeAccount(info.Data)
	if err != nil {
		return fmt.Errorf("decode source account: %w", err)
	}
	if !acct.Mint.Equals(mint) {
		return fmt.Errorf("source account %s belongs to mint %s", account, acct.Mint)
	}
	if acct.Amount < amount {
		return fmt.Errorf("%w: have %d, need %d", ErrInsufficientBalance, acct.Amount, amount)
	}
	return nil
}

// TokenBalance returns owner's balance of the session mint; zero when the
// associated token account does not exist.
func (c *Client) TokenBalance(ctx context.Context, s *Session, owner solana.PublicKey) (uint64, error) {
	ata, err := token2022.FindAssociatedTokenAddress(owner, s.MintAddress(), s.AllowOwnerOffCurve)
	if err != nil {
		return 0, err
	}

	info, err := c.rpc.GetAccountInfo(ctx, ata)
	if err != nil {
		return 0, fmt.Errorf("get token account: %w", err)
	}
	if info == nil {
		return 0, nil
	}

	amount, err := c.rpc.GetTokenAccountBalance(ctx, ata)
	if err != nil {
		return 0, fmt.Errorf("get token balance: %w", err)
	}
	return amount, nil
}
