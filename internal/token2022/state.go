package token2022

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/token"
)

// Layout sizes.
const (
	MintBaseSize    = 82
	AccountBaseSize = 165

	// accountTypeOffset is where extended mints and accounts store their
	// account type; TLV entries follow it.
	accountTypeOffset = AccountBaseSize
	tlvStart          = AccountBaseSize + 1
	tlvHeaderSize     = 4

	accountTypeMint    uint8 = 1
	accountTypeAccount uint8 = 2
)

// ErrInvalidAccountData is returned for data that does not decode as the expected state.
var ErrInvalidAccountData = errors.New("invalid account data")

// fixedExtensionLen holds value sizes of extensions with a fixed layout.
var fixedExtensionLen = map[ExtensionType]int{
	ExtensionMintCloseAuthority: 32,
	ExtensionPermanentDelegate:  32,
	ExtensionMetadataPointer:    64,
}

// Extension is one TLV entry.
type Extension struct {
	Type  ExtensionType
	Value []byte
}

// Mint is a Token-2022 mint: the base SPL layout plus extensions.
type Mint struct {
	token.Mint
	Extensions []Extension
}

// Extension returns the value of the first extension of type t.
func (m *Mint) Extension(t ExtensionType) ([]byte, bool) {
	for _, ext := range m.Extensions {
		if ext.Type == t {
			return ext.Value, true
		}
	}
	return nil, false
}

// SetExtension replaces the value of extension t or appends it.
func (m *Mint) SetExtension(t ExtensionType, value []byte) {
	for i := range m.Extensions {
		if m.Extensions[i].Type == t {
			m.Extensions[i].Value = value
			return
		}
	}
	m.Extensions = append(m.Extensions, Extension{Type: t, Value: value})
}

// MetadataPointer returns the decoded MetadataPointer extension, or nil when absent.
func (m *Mint) MetadataPointer() (*MetadataPointer, error) {
	value, ok := m.Extension(ExtensionMetadataPointer)
	if !ok {
		return nil, nil
	}
	return DecodeMetadataPointer(value)
}

// MetadataPointer names the account holding a mint's metadata.
// A zero key means the field is unset.
type MetadataPointer struct {
	Authority       solana.PublicKey
	MetadataAddress solana.PublicKey
}

// HasAddress reports whether the pointer names a metadata account.
func (p *MetadataPointer) HasAddress() bool {
	return !p.MetadataAddress.IsZero()
}

// Encode returns the 64-byte extension value.
func (p *MetadataPointer) Encode() []byte {
	out := make([]byte, 0, 64)
	out = append(out, p.Authority[:]...)
	return append(out, p.MetadataAddress[:]...)
}

// DecodeMetadataPointer decodes a MetadataPointer extension value.
func DecodeMetadataPointer(value []byte) (*MetadataPointer, error) {
	if len(value) != 64 {
		return nil, fmt.Errorf("%w: metadata pointer length %d", ErrInvalidAccountData, len(value))
	}
	return &MetadataPointer{
		Authority:       solana.PublicKeyFromBytes(value[:32]),
		MetadataAddress: solana.PublicKeyFromBytes(value[32:]),
	}, nil
}

// DecodeMint decodes base mint state and any TLV extensions.
func DecodeMint(data []byte) (*Mint, error) {
	if len(data) < MintBaseSize {
		return nil, fmt.Errorf("%w: mint length %d", ErrInvalidAccountData, len(data))
	}

	m := &Mint{}
	if err := m.Mint.UnmarshalWithDecoder(bin.NewBinDecoder(data[:MintBaseSize])); err != nil {
		return nil, fmt.Errorf("decode mint: %w", err)
	}
	if len(data) == MintBaseSize {
		return m, nil
	}

	if len(data) <= accountTypeOffset {
		return nil, fmt.Errorf("%w: extended mint length %d", ErrInvalidAccountData, len(data))
	}
	if data[accountTypeOffset] != accountTypeMint {
		return nil, fmt.Errorf("%w: account type %d is not a mint", ErrInvalidAccountData, data[accountTypeOffset])
	}

	exts, err := decodeTLV(data[tlvStart:])
	if err != nil {
		return nil, err
	}
	m.Extensions = exts
	return m, nil
}

func decodeTLV(data []byte) ([]Extension, error) {
	var exts []Extension
	for off := 0; off+tlvHeaderSize <= len(data); {
		typ := ExtensionType(binary.LittleEndian.Uint16(data[off:]))
		length := int(binary.LittleEndian.Uint16(data[off+2:]))
		if typ == ExtensionUninitialized {
			break
		}
		off += tlvHeaderSize
		if off+length > len(data) {
			return nil, fmt.Errorf("%w: extension %d overruns data", ErrInvalidAccountData, typ)
		}
		value := make([]byte, length)
		copy(value, data[off:off+length])
		exts = append(exts, Extension{Type: typ, Value: value})
		off += length
	}
	return exts, nil
}

// Encode serializes the mint in on-chain layout.
func (m *Mint) Encode() ([]byte, error) {
	var buf bytes.Buffer
	if err := m.Mint.MarshalWithEncoder(bin.NewBinEncoder(&buf)); err != nil {
		return nil, fmt.Errorf("encode mint: %w", err)
	}
	if len(m.Extensions) == 0 {
		return buf.Bytes(), nil
	}

	out := make([]byte, tlvStart, tlvStart+extensionsLen(m.Extensions))
	copy(out, buf.Bytes())
	out[accountTypeOffset] = accountTypeMint
	for _, ext := range m.Extensions {
		if len(ext.Value) > 0xffff {
			return nil, fmt.Errorf("%w: extension %d too large", ErrInvalidAccountData, ext.Type)
		}
		out = binary.LittleEndian.AppendUint16(out, uint16(ext.Type))
		out = binary.LittleEndian.AppendUint16(out, uint16(len(ext.Value)))
		out = append(out, ext.Value...)
	}
	return out, nil
}

func extensionsLen(exts []Extension) int {
	n := 0
	for _, ext := range exts {
		n += tlvHeaderSize + len(ext.Value)
	}
	return n
}

// MintSize returns the account size of a mint carrying the given
// fixed-length extensions.
func MintSize(exts ...ExtensionType) (uint64, error) {
	if len(exts) == 0 {
		return MintBaseSize, nil
	}
	size := tlvStart
	for _, ext := range exts {
		n, ok := fixedExtensionLen[ext]
		if !ok {
			return 0, fmt.Errorf("extension %d has no fixed size", ext)
		}
		size += tlvHeaderSize + n
	}
	return uint64(size), nil
}

// TLVSize returns the space a variable-length extension value of n bytes occupies.
func TLVSize(n int) uint64 {
	return uint64(tlvHeaderSize + n)
}

// DecodeAccount decodes the base layout of a Token-2022 token account.
func DecodeAccount(data []byte) (*token.Account, error) {
	if len(data) < AccountBaseSize {
		return nil, fmt.Errorf("%w: token account length %d", ErrInvalidAccountData, len(data))
	}
	if len(data) > AccountBaseSize && data[accountTypeOffset] != accountTypeAccount {
		return nil, fmt.Errorf("%w: account type %d is not a token account", ErrInvalidAccountData, data[accountTypeOffset])
	}

	acct := &token.Account{}
	if err := acct.UnmarshalWithDecoder(bin.NewBinDecoder(data[:AccountBaseSize])); err != nil {
		return nil, fmt.Errorf("decode token account: %w", err)
	}
	return acct, nil
}
