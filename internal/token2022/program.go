// Package token2022 builds Token-2022 and associated token account
// instructions and decodes Token-2022 mint and token account state.
package token2022

import (
	"github.com/gagliardetto/solana-go"
)

var (
	// ProgramID is the Token-2022 (token extensions) program.
	ProgramID = solana.MustPublicKeyFromBase58("TokenzQdBNbLqP5VEhdkAS6EPFLC1PHnBqCXEpPxuEb")

	// AssociatedTokenProgramID is the associated token account program.
	AssociatedTokenProgramID = solana.MustPublicKeyFromBase58("ATokenGPvbdGVxr1b2hvZbsiqW5xWH25efTNsLJA8knL")
)

// Instruction discriminants used by this package.
const (
	instructionSetAuthority       uint8 = 6
	instructionTransferChecked    uint8 = 12
	instructionMintToChecked      uint8 = 14
	instructionInitializeMint2    uint8 = 20
	instructionMetadataPointerExt uint8 = 39
	metadataPointerInitialize     uint8 = 0
	associatedCreateIdempotent    uint8 = 1
)

// AuthorityType selects which authority SetAuthority changes.
type AuthorityType uint8

const (
	AuthorityMintTokens AuthorityType = iota
	AuthorityFreezeAccount
	AuthorityAccountOwner
	AuthorityCloseAccount
	AuthorityTransferFeeConfig
	AuthorityWithheldWithdraw
	AuthorityCloseMint
	AuthorityInterestRate
	AuthorityPermanentDelegate
	AuthorityConfidentialTransferMint
	AuthorityTransferHookProgramID
	AuthorityConfidentialTransferFeeConfig
	AuthorityMetadataPointer
	AuthorityGroupPointer
	AuthorityGroupMemberPointer
)

var authorityNames = map[AuthorityType]string{
	AuthorityMintTokens:                    "MintTokens",
	AuthorityFreezeAccount:                 "FreezeAccount",
	AuthorityAccountOwner:                  "AccountOwner",
	AuthorityCloseAccount:                  "CloseAccount",
	AuthorityTransferFeeConfig:             "TransferFeeConfig",
	AuthorityWithheldWithdraw:              "WithheldWithdraw",
	AuthorityCloseMint:                     "CloseMint",
	AuthorityInterestRate:                  "InterestRate",
	AuthorityPermanentDelegate:             "PermanentDelegate",
	AuthorityConfidentialTransferMint:      "ConfidentialTransferMint",
	AuthorityTransferHookProgramID:         "TransferHookProgramId",
	AuthorityConfidentialTransferFeeConfig: "ConfidentialTransferFeeConfig",
	AuthorityMetadataPointer:               "MetadataPointer",
	AuthorityGroupPointer:                  "GroupPointer",
	AuthorityGroupMemberPointer:            "GroupMemberPointer",
}

func (a AuthorityType) String() string {
	if name, ok := authorityNames[a]; ok {
		return name
	}
	return "Unknown"
}

// ExtensionType identifies a TLV entry in extended mint or account data.
type ExtensionType uint16

const (
	ExtensionUninitialized      ExtensionType = 0
	ExtensionMintCloseAuthority ExtensionType = 3
	ExtensionPermanentDelegate  ExtensionType = 12
	ExtensionMetadataPointer    ExtensionType = 18
	ExtensionTokenMetadata      ExtensionType = 19
)
