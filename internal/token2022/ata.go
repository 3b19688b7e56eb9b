package token2022

import (
	"errors"
	"fmt"

	"filippo.io/edwards25519"
	"github.com/gagliardetto/solana-go"
)

// ErrOwnerOffCurve is returned when an associated token account is requested
// for an owner that is not an ed25519 point (a PDA) without opting in.
var ErrOwnerOffCurve = errors.New("owner is off the ed25519 curve")

// IsOnCurve reports whether key decodes to an ed25519 point.
func IsOnCurve(key solana.PublicKey) bool {
	_, err := new(edwards25519.Point).SetBytes(key[:])
	return err == nil
}

// FindAssociatedTokenAddress derives the Token-2022 associated token account
// of owner for mint.
func FindAssociatedTokenAddress(owner, mint solana.PublicKey, allowOwnerOffCurve bool) (solana.PublicKey, error) {
	if !allowOwnerOffCurve && !IsOnCurve(owner) {
		return solana.PublicKey{}, fmt.Errorf("%w: %s", ErrOwnerOffCurve, owner)
	}

	addr, _, err := solana.FindProgramAddress([][]byte{
		owner[:],
		ProgramID[:],
		mint[:],
	}, AssociatedTokenProgramID)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("derive associated token address: %w", err)
	}
	return addr, nil
}

// NewCreateIdempotentInstruction creates associatedAccount for (owner, mint)
// unless it already exists.
func NewCreateIdempotentInstruction(payer, associatedAccount, owner, mint solana.PublicKey) solana.Instruction {
	return solana.NewInstruction(AssociatedTokenProgramID, solana.AccountMetaSlice{
		solana.NewAccountMeta(payer, true, true),
		solana.NewAccountMeta(associatedAccount, true, false),
		solana.NewAccountMeta(owner, false, false),
		solana.NewAccountMeta(mint, false, false),
		solana.NewAccountMeta(solana.SystemProgramID, false, false),
		solana.NewAccountMeta(ProgramID, false, false),
	}, []byte{associatedCreateIdempotent})
}
