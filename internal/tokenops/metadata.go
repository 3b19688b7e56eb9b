package tokenops

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/gagliardetto/solana-go"

	"token-metadata-lab/internal/rpc"
	"token-metadata-lab/internal/token2022"
	"token-metadata-lab/internal/tokenmeta"
)

// MetadataAccount is a decoded metadata record and the account holding it.
type MetadataAccount struct {
	Address solana.PublicKey
	Account *rpc.AccountInfo
	State   *token2022.Mint // decoded account, extensions included
	Record  *tokenmeta.TokenMetadata
}

// FetchMetadata follows mint's MetadataPointer and decodes the metadata it
// names. Missing pointers, accounts and records all yield ErrNoMetadata.
func (c *Client) FetchMetadata(ctx context.Context, mint solana.PublicKey) (*MetadataAccount, error) {
	mintInfo, err := c.rpc.GetAccountInfo(ctx, mint)
	if err != nil {
		return nil, fmt.Errorf("get mint %s: %w", mint, err)
	}
	if mintInfo == nil {
		return nil, fmt.Errorf("%w: mint %s does not exist", ErrNoMetadata, mint)
	}
	mintState, err := decodeToken2022Mint(mintInfo)
	if err != nil {
		return nil, err
	}

	pointer, err := mintState.MetadataPointer()
	if err != nil {
		return nil, fmt.Errorf("decode metadata pointer: %w", err)
	}
	if pointer == nil || !pointer.HasAddress() {
		return nil, fmt.Errorf("%w: mint %s has no metadata pointer", ErrNoMetadata, mint)
	}

	address := pointer.MetadataAddress
	info, state := mintInfo, mintState
	if !address.Equals(mint) {
		if info, err = c.rpc.GetAccountInfo(ctx, address); err != nil {
			return nil, fmt.Errorf("get metadata account %s: %w", address, err)
		}
		if info == nil {
			return nil, fmt.Errorf("%w: metadata account %s does not exist", ErrNoMetadata, address)
		}
		if state, err = decodeToken2022Mint(info); err != nil {
			return nil, err
		}
	}

	value, ok := state.Extension(token2022.ExtensionTokenMetadata)
	if !ok {
		return nil, fmt.Errorf("%w: account %s has no token metadata", ErrNoMetadata, address)
	}
	record, err := tokenmeta.Decode(value)
	if err != nil {
		return nil, err
	}

	return &MetadataAccount{Address: address, Account: info, State: state, Record: record}, nil
}

func decodeToken2022Mint(info *rpc.AccountInfo) (*token2022.Mint, error) {
	if !info.Owner.Equals(token2022.ProgramID) {
		return nil, fmt.Errorf("account owned by %s, not the Token-2022 program", info.Owner)
	}
	m, err := token2022.DecodeMint(info.Data)
	if err != nil {
		return nil, fmt.Errorf("decode mint: %w", err)
	}
	return m, nil
}

// sizeWith returns the account size after the metadata extension is
// replaced by record. Bytes beyond the extensions are carried over.
func (md *MetadataAccount) sizeWith(record *tokenmeta.TokenMetadata) (uint64, error) {
	current, err := md.State.Encode()
	if err != nil {
		return 0, err
	}
	value, err := record.Encode()
	if err != nil {
		return 0, fmt.Errorf("encode metadata: %w", err)
	}

	next := &token2022.Mint{Mint: md.State.Mint, Extensions: append([]token2022.Extension(nil), md.State.Extensions...)}
	next.SetExtension(token2022.ExtensionTokenMetadata, value)
	updated, err := next.Encode()
	if err != nil {
		return 0, err
	}
	return uint64(len(md.Account.Data) + len(updated) - len(current)), nil
}

// parseLeadingInt reads an optionally signed integer prefix of s after
// leading whitespace, following JavaScript's parseInt without a radix: a
// "0x" or "0X" prefix selects hexadecimal, anything else is decimal. Input
// without digits, or out of int64 range, parses as 0.
func parseLeadingInt(s string) int64 {
	s = strings.TrimLeft(s, " \t\n\r\v\f")

	sign := ""
	if s != "" && (s[0] == '+' || s[0] == '-') {
		sign, s = s[:1], s[1:]
	}

	base, isDigit := 10, isDecimal
	if len(s) > 1 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		base, isDigit = 16, isHex
		s = s[2:]
	}

	end := 0
	for end < len(s) && isDigit(s[end]) {
		end++
	}
	if end == 0 {
		return 0
	}

	n, err := strconv.ParseInt(sign+s[:end], base, 64)
	if err != nil {
		return 0
	}
	return n
}

func isDecimal(c byte) bool { return c >= '0' && c <= '9' }

func isHex(c byte) bool {
	return isDecimal(c) || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}
