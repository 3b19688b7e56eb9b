package tokenops

import (
	"fmt"

	"github.com/gagliardetto/solana-go"

	"token-metadata-lab/internal/keys"
	"token-metadata-lab/internal/tokenmeta"
)

// PointsKey is the additional metadata key IncrementPoints edits.
const PointsKey = "Points"

// Metadata is the initial metadata written at mint creation.
type Metadata struct {
	Name       string
	Symbol     string
	URI        string
	Additional []tokenmeta.KeyValue
}

// DefaultMetadata returns the BARKER metadata record.
func DefaultMetadata() Metadata {
	return Metadata{
		Name:   "BARKER",
		Symbol: "BARKER",
		URI:    "https://raw.githubusercontent.com/bark-community/barker-token/main/src/assets/barkers-club.png",
		Additional: []tokenmeta.KeyValue{
			{Key: "Background", Value: "black"},
			{Key: PointsKey, Value: "500"},
		},
	}
}

// Record builds the on-chain record this metadata produces for mint.
func (m Metadata) Record(updateAuthority, mint solana.PublicKey) *tokenmeta.TokenMetadata {
	return &tokenmeta.TokenMetadata{
		UpdateAuthority:    updateAuthority,
		Mint:               mint,
		Name:               m.Name,
		Symbol:             m.Symbol,
		URI:                m.URI,
		AdditionalMetadata: append([]tokenmeta.KeyValue(nil), m.Additional...),
	}
}

// Session carries the keys and parameters shared by the lifecycle steps.
// The authority holds both the mint authority and the metadata update
// authority until they are revoked.
type Session struct {
	Payer         solana.PrivateKey
	Authority     solana.PrivateKey
	Mint          solana.PrivateKey
	Decimals      uint8
	InitialSupply uint64
	Metadata      Metadata

	// AllowOwnerOffCurve permits transfers to program-derived recipients.
	AllowOwnerOffCurve bool
}

// NewSession creates a session with a fresh mint keypair. Nil payer or
// authority keys are generated.
func NewSession(payer, authority solana.PrivateKey) (*Session, error) {
	var err error
	if payer == nil {
		if payer, err = keys.Generate(); err != nil {
			return nil, fmt.Errorf("payer: %w", err)
		}
	}
	if authority == nil {
		if authority, err = keys.Generate(); err != nil {
			return nil, fmt.Errorf("authority: %w", err)
		}
	}
	mint, err := keys.Generate()
	if err != nil {
		return nil, fmt.Errorf("mint: %w", err)
	}

	return &Session{
		Payer:         payer,
		Authority:     authority,
		Mint:          mint,
		Decimals:      0,
		InitialSupply: 1000,
		Metadata:      DefaultMetadata(),
	}, nil
}

// MintAddress returns the mint account address.
func (s *Session) MintAddress() solana.PublicKey {
	return s.Mint.PublicKey()
}
