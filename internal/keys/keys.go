// Package keys loads and stores ed25519 signing keys in the formats used by
// Solana tooling.
package keys

import (
	"bytes"
	"crypto/ed25519"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gagliardetto/solana-go"
	"github.com/mr-tron/base58"
)

// ErrInvalidKey is returned for key material that is not a 64-byte ed25519 keypair.
var ErrInvalidKey = errors.New("invalid keypair")

// Generate returns a fresh random keypair.
func Generate() (solana.PrivateKey, error) {
	key, err := solana.NewRandomPrivateKey()
	if err != nil {
		return nil, fmt.Errorf("generate keypair: %w", err)
	}
	return key, nil
}

// Load reads a keypair from source, which is either a path to a CLI keypair
// file (JSON array of 64 bytes) or a base58-encoded keypair.
func Load(source string) (solana.PrivateKey, error) {
	source = strings.TrimSpace(source)
	if source == "" {
		return nil, fmt.Errorf("%w: empty source", ErrInvalidKey)
	}

	if _, err := os.Stat(source); err == nil {
		data, err := os.ReadFile(source)
		if err != nil {
			return nil, fmt.Errorf("read keypair file: %w", err)
		}
		return Parse(data)
	}

	raw, err := base58.Decode(source)
	if err != nil {
		return nil, fmt.Errorf("%w: not a file and not base58: %v", ErrInvalidKey, err)
	}
	return fromBytes(raw)
}

// Parse decodes a JSON byte array keypair.
func Parse(data []byte) (solana.PrivateKey, error) {
	var raw []byte
	// []byte unmarshals from a base64 string, so decode into ints.
	var ints []int
	if err := json.Unmarshal(bytes.TrimSpace(data), &ints); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	for _, v := range ints {
		if v < 0 || v > 255 {
			return nil, fmt.Errorf("%w: byte value %d out of range", ErrInvalidKey, v)
		}
		raw = append(raw, byte(v))
	}
	return fromBytes(raw)
}

func fromBytes(raw []byte) (solana.PrivateKey, error) {
	if len(raw) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("%w: length %d", ErrInvalidKey, len(raw))
	}
	derived := ed25519.NewKeyFromSeed(raw[:ed25519.SeedSize])
	if !bytes.Equal(derived[ed25519.SeedSize:], raw[ed25519.SeedSize:]) {
		return nil, fmt.Errorf("%w: public half does not match seed", ErrInvalidKey)
	}
	return solana.PrivateKey(raw), nil
}

// Marshal encodes key as a CLI keypair file.
func Marshal(key solana.PrivateKey) ([]byte, error) {
	ints := make([]int, len(key))
	for i, b := range key {
		ints[i] = int(b)
	}
	return json.Marshal(ints)
}

// Save writes key to path with owner-only permissions, creating parent directories.
func Save(path string, key solana.PrivateKey) error {
	data, err := Marshal(key)
	if err != nil {
		return fmt.Errorf("encode keypair: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create key directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write keypair file: %w", err)
	}
	return nil
}
