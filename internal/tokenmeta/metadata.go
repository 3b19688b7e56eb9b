// Package tokenmeta implements the token metadata interface: the
// TokenMetadata record stored in a mint's TLV data and the instructions
// that create and edit it.
package tokenmeta

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
)

// ErrInvalidMetadata is returned when metadata bytes do not decode.
var ErrInvalidMetadata = errors.New("invalid token metadata")

// KeyValue is one additional metadata entry.
type KeyValue struct {
	Key   string
	Value string
}

// TokenMetadata is the variable-length metadata record.
// A zero UpdateAuthority means the metadata is immutable.
type TokenMetadata struct {
	UpdateAuthority    solana.PublicKey
	Mint               solana.PublicKey
	Name               string
	Symbol             string
	URI                string
	AdditionalMetadata []KeyValue
}

// Get returns the value of an additional metadata key.
func (m *TokenMetadata) Get(key string) (string, bool) {
	for _, kv := range m.AdditionalMetadata {
		if kv.Key == key {
			return kv.Value, true
		}
	}
	return "", false
}

// Set updates field to value, appending new additional keys at the end.
func (m *TokenMetadata) Set(field Field, value string) {
	switch field.kind {
	case fieldName:
		m.Name = value
	case fieldSymbol:
		m.Symbol = value
	case fieldURI:
		m.URI = value
	default:
		for i := range m.AdditionalMetadata {
			if m.AdditionalMetadata[i].Key == field.key {
				m.AdditionalMetadata[i].Value = value
				return
			}
		}
		m.AdditionalMetadata = append(m.AdditionalMetadata, KeyValue{Key: field.key, Value: value})
	}
}

// Clone returns a deep copy.
func (m *TokenMetadata) Clone() *TokenMetadata {
	out := *m
	out.AdditionalMetadata = append([]KeyValue(nil), m.AdditionalMetadata...)
	return &out
}

// PackedLen is the serialized size, excluding the TLV header.
func (m *TokenMetadata) PackedLen() int {
	n := 32 + 32 + stringLen(m.Name) + stringLen(m.Symbol) + stringLen(m.URI) + 4
	for _, kv := range m.AdditionalMetadata {
		n += stringLen(kv.Key) + stringLen(kv.Value)
	}
	return n
}

func stringLen(s string) int {
	return 4 + len(s)
}

// MarshalWithEncoder writes the borsh layout.
func (m *TokenMetadata) MarshalWithEncoder(enc *bin.Encoder) error {
	if err := enc.WriteBytes(m.UpdateAuthority[:], false); err != nil {
		return err
	}
	if err := enc.WriteBytes(m.Mint[:], false); err != nil {
		return err
	}
	for _, s := range []string{m.Name, m.Symbol, m.URI} {
		if err := writeString(enc, s); err != nil {
			return err
		}
	}
	if err := enc.WriteUint32(uint32(len(m.AdditionalMetadata)), binary.LittleEndian); err != nil {
		return err
	}
	for _, kv := range m.AdditionalMetadata {
		if err := writeString(enc, kv.Key); err != nil {
			return err
		}
		if err := writeString(enc, kv.Value); err != nil {
			return err
		}
	}
	return nil
}

// UnmarshalWithDecoder reads the borsh layout.
func (m *TokenMetadata) UnmarshalWithDecoder(dec *bin.Decoder) error {
	authority, err := dec.ReadNBytes(32)
	if err != nil {
		return fmt.Errorf("update authority: %w", err)
	}
	m.UpdateAuthority = solana.PublicKeyFromBytes(authority)

	mint, err := dec.ReadNBytes(32)
	if err != nil {
		return fmt.Errorf("mint: %w", err)
	}
	m.Mint = solana.PublicKeyFromBytes(mint)

	if m.Name, err = readString(dec); err != nil {
		return fmt.Errorf("name: %w", err)
	}
	if m.Symbol, err = readString(dec); err != nil {
		return fmt.Errorf("symbol: %w", err)
	}
	if m.URI, err = readString(dec); err != nil {
		return fmt.Errorf("uri: %w", err)
	}

	count, err := dec.ReadUint32(binary.LittleEndian)
	if err != nil {
		return fmt.Errorf("additional metadata length: %w", err)
	}
	// Each entry needs at least two length prefixes.
	if int(count) > dec.Remaining()/8 {
		return fmt.Errorf("additional metadata length %d exceeds data", count)
	}
	m.AdditionalMetadata = make([]KeyValue, 0, count)
	for i := uint32(0); i < count; i++ {
		var kv KeyValue
		if kv.Key, err = readString(dec); err != nil {
			return fmt.Errorf("additional metadata %d key: %w", i, err)
		}
		if kv.Value, err = readString(dec); err != nil {
			return fmt.Errorf("additional metadata %d value: %w", i, err)
		}
		m.AdditionalMetadata = append(m.AdditionalMetadata, kv)
	}
	return nil
}

// Encode serializes the record.
func (m *TokenMetadata) Encode() ([]byte, error) {
	var buf bytes.Buffer
	if err := m.MarshalWithEncoder(bin.NewBorshEncoder(&buf)); err != nil {
		return nil, fmt.Errorf("encode token metadata: %w", err)
	}
	return buf.Bytes(), nil
}

// Decode parses a TokenMetadata extension value.
func Decode(data []byte) (*TokenMetadata, error) {
	m := &TokenMetadata{}
	if err := m.UnmarshalWithDecoder(bin.NewBorshDecoder(data)); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMetadata, err)
	}
	return m, nil
}

func writeString(enc *bin.Encoder, s string) error {
	if err := enc.WriteUint32(uint32(len(s)), binary.LittleEndian); err != nil {
		return err
	}
	return enc.WriteBytes([]byte(s), false)
}

func readString(dec *bin.Decoder) (string, error) {
	n, err := dec.ReadUint32(binary.LittleEndian)
	if err != nil {
		return "", err
	}
	if int(n) > dec.Remaining() {
		return "", fmt.Errorf("string length %d exceeds remaining %d bytes", n, dec.Remaining())
	}
	b, err := dec.ReadNBytes(int(n))
	if err != nil {
		return "", err
	}
	return string(b), nil
}
