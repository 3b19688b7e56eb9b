package tokenmeta

import (
	"bytes"
	"crypto/sha256"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
)

// Discriminator prefixes instruction data; it is the first 8 bytes of
// sha256 over the namespaced instruction name.
type Discriminator [8]byte

func discriminator(name string) Discriminator {
	sum := sha256.Sum256([]byte("spl_token_metadata_interface:" + name))
	var d Discriminator
	copy(d[:], sum[:8])
	return d
}

var (
	InitializeDiscriminator      = discriminator("initialize_account")
	UpdateFieldDiscriminator     = discriminator("updating_field")
	RemoveKeyDiscriminator       = discriminator("remove_key_ix")
	UpdateAuthorityDiscriminator = discriminator("update_the_authority")
)

type fieldKind uint8

const (
	fieldName fieldKind = iota
	fieldSymbol
	fieldURI
	fieldKey
)

// Field names a metadata field: one of the base fields or an additional key.
type Field struct {
	kind fieldKind
	key  string
}

// KeyField names an additional metadata key.
func KeyField(key string) Field {
	return Field{kind: fieldKey, key: key}
}

func (f Field) String() string {
	switch f.kind {
	case fieldName:
		return "name"
	case fieldSymbol:
		return "symbol"
	case fieldURI:
		return "uri"
	default:
		return f.key
	}
}

func (f Field) marshal(enc *bin.Encoder) error {
	if err := enc.WriteUint8(uint8(f.kind)); err != nil {
		return err
	}
	if f.kind == fieldKey {
		return writeString(enc, f.key)
	}
	return nil
}

func encodeData(d Discriminator, fn func(enc *bin.Encoder) error) []byte {
	var buf bytes.Buffer
	buf.Write(d[:])
	if err := fn(bin.NewBorshEncoder(&buf)); err != nil {
		// bytes.Buffer never fails a write.
		panic(err)
	}
	return buf.Bytes()
}

// NewInitializeInstruction writes the base metadata fields into metadata.
// For Token-2022 the metadata account is the mint itself.
func NewInitializeInstruction(programID, metadata, updateAuthority, mint, mintAuthority solana.PublicKey, name, symbol, uri string) solana.Instruction {
	data := encodeData(InitializeDiscriminator, func(enc *bin.Encoder) error {
		for _, s := range []string{name, symbol, uri} {
			if err := writeString(enc, s); err != nil {
				return err
			}
		}
		return nil
	})

	return solana.NewInstruction(programID, solana.AccountMetaSlice{
		solana.NewAccountMeta(metadata, true, false),
		solana.NewAccountMeta(updateAuthority, false, false),
		solana.NewAccountMeta(mint, false, false),
		solana.NewAccountMeta(mintAuthority, false, true),
	}, data)
}

// NewUpdateFieldInstruction sets field to value, adding additional keys as needed.
func NewUpdateFieldInstruction(programID, metadata, updateAuthority solana.PublicKey, field Field, value string) solana.Instruction {
	data := encodeData(UpdateFieldDiscriminator, func(enc *bin.Encoder) error {
		if err := field.marshal(enc); err != nil {
			return err
		}
		return writeString(enc, value)
	})

	return solana.NewInstruction(programID, solana.AccountMetaSlice{
		solana.NewAccountMeta(metadata, true, false),
		solana.NewAccountMeta(updateAuthority, false, true),
	}, data)
}

// NewRemoveKeyInstruction removes an additional key. With idempotent set a
// missing key is not an error.
func NewRemoveKeyInstruction(programID, metadata, updateAuthority solana.PublicKey, key string, idempotent bool) solana.Instruction {
	data := encodeData(RemoveKeyDiscriminator, func(enc *bin.Encoder) error {
		if err := enc.WriteBool(idempotent); err != nil {
			return err
		}
		return writeString(enc, key)
	})

	return solana.NewInstruction(programID, solana.AccountMetaSlice{
		solana.NewAccountMeta(metadata, true, false),
		solana.NewAccountMeta(updateAuthority, false, true),
	}, data)
}

// NewUpdateAuthorityInstruction hands the update authority to newAuthority;
// nil makes the metadata immutable.
func NewUpdateAuthorityInstruction(programID, metadata, currentAuthority solana.PublicKey, newAuthority *solana.PublicKey) solana.Instruction {
	var next solana.PublicKey
	if newAuthority != nil {
		next = *newAuthority
	}
	data := encodeData(UpdateAuthorityDiscriminator, func(enc *bin.Encoder) error {
		return enc.WriteBytes(next[:], false)
	})

	return solana.NewInstruction(programID, solana.AccountMetaSlice{
		solana.NewAccountMeta(metadata, true, false),
		solana.NewAccountMeta(currentAuthority, false, true),
	}, data)
}
