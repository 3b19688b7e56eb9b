package token2022

import (
	"bytes"
	"encoding/binary"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
)

// encodeData runs fn against an encoder backed by an in-memory buffer.
func encodeData(fn func(enc *bin.Encoder) error) []byte {
	var buf bytes.Buffer
	if err := fn(bin.NewBinEncoder(&buf)); err != nil {
		// bytes.Buffer never fails a write.
		panic(err)
	}
	return buf.Bytes()
}

// writeCOptionKey writes the 1-byte-tag optional pubkey used by instruction data.
func writeCOptionKey(enc *bin.Encoder, key *solana.PublicKey) error {
	if key == nil {
		return enc.WriteUint8(0)
	}
	if err := enc.WriteUint8(1); err != nil {
		return err
	}
	return enc.WriteBytes(key[:], false)
}

// NewInitializeMint2Instruction initializes mint without requiring the rent sysvar.
// A nil freezeAuthority leaves the mint without one.
func NewInitializeMint2Instruction(mint, mintAuthority solana.PublicKey, freezeAuthority *solana.PublicKey, decimals uint8) solana.Instruction {
	data := encodeData(func(enc *bin.Encoder) error {
		if err := enc.WriteUint8(instructionInitializeMint2); err != nil {
			return err
		}
		if err := enc.WriteUint8(decimals); err != nil {
			return err
		}
		if err := enc.WriteBytes(mintAuthority[:], false); err != nil {
			return err
		}
		return writeCOptionKey(enc, freezeAuthority)
	})

	return solana.NewInstruction(ProgramID, solana.AccountMetaSlice{
		solana.NewAccountMeta(mint, true, false),
	}, data)
}

// NewInitializeMetadataPointerInstruction records where the mint's metadata
// lives. It must run before InitializeMint2. A zero key means "none" for
// either argument.
func NewInitializeMetadataPointerInstruction(mint, authority, metadataAddress solana.PublicKey) solana.Instruction {
	data := encodeData(func(enc *bin.Encoder) error {
		if err := enc.WriteUint8(instructionMetadataPointerExt); err != nil {
			return err
		}
		if err := enc.WriteUint8(metadataPointerInitialize); err != nil {
			return err
		}
		if err := enc.WriteBytes(authority[:], false); err != nil {
			return err
		}
		return enc.WriteBytes(metadataAddress[:], false)
	})

	return solana.NewInstruction(ProgramID, solana.AccountMetaSlice{
		solana.NewAccountMeta(mint, true, false),
	}, data)
}

// NewSetAuthorityInstruction changes or removes (newAuthority == nil) one
// authority of a mint or token account.
func NewSetAuthorityInstruction(account, currentAuthority solana.PublicKey, authorityType AuthorityType, newAuthority *solana.PublicKey) solana.Instruction {
	data := encodeData(func(enc *bin.Encoder) error {
		if err := enc.WriteUint8(instructionSetAuthority); err != nil {
			return err
		}
		if err := enc.WriteUint8(uint8(authorityType)); err != nil {
			return err
		}
		return writeCOptionKey(enc, newAuthority)
	})

	return solana.NewInstruction(ProgramID, solana.AccountMetaSlice{
		solana.NewAccountMeta(account, true, false),
		solana.NewAccountMeta(currentAuthority, false, true),
	}, data)
}

// NewMintToCheckedInstruction mints amount base units into destination.
func NewMintToCheckedInstruction(mint, destination, authority solana.PublicKey, amount uint64, decimals uint8) solana.Instruction {
	data := encodeData(func(enc *bin.Encoder) error {
		if err := enc.WriteUint8(instructionMintToChecked); err != nil {
			return err
		}
		if err := enc.WriteUint64(amount, binary.LittleEndian); err != nil {
			return err
		}
		return enc.WriteUint8(decimals)
	})

	return solana.NewInstruction(ProgramID, solana.AccountMetaSlice{
		solana.NewAccountMeta(mint, true, false),
		solana.NewAccountMeta(destination, true, false),
		solana.NewAccountMeta(authority, false, true),
	}, data)
}

// NewTransferCheckedInstruction moves amount base units between token accounts of mint.
func NewTransferCheckedInstruction(source, mint, destination, owner solana.PublicKey, amount uint64, decimals uint8) solana.Instruction {
	data := encodeData(func(enc *bin.Encoder) error {
		if err := enc.WriteUint8(instructionTransferChecked); err != nil {
			return err
		}
		if err := enc.WriteUint64(amount, binary.LittleEndian); err != nil {
			return err
		}
		return enc.WriteUint8(decimals)
	})

	return solana.NewInstruction(ProgramID, solana.AccountMetaSlice{
		solana.NewAccountMeta(source, true, false),
		solana.NewAccountMeta(mint, false, false),
		solana.NewAccountMeta(destination, true, false),
		solana.NewAccountMeta(owner, false, true),
	}, data)
}
