package explorer

import (
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
)

func TestURL(t *testing.T) {
	tests := []struct {
		name      string
		id        string
		isAddress bool
		want      string
	}{
		{"transaction", "abc", false, "https://solana.fm/tx/abc?cluster=localnet-solana"},
		{"address", "xyz", true, "https://solana.fm/address/xyz?cluster=localnet-solana"},
		{"empty id", "", false, ""},
		{"empty address", "", true, ""},
	}

	e := New("")
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, e.URL(tt.id, tt.isAddress))
		})
	}
}

func TestExplorer_Cluster(t *testing.T) {
	e := New("devnet-solana")
	assert.Equal(t, "https://solana.fm/tx/abc?cluster=devnet-solana", e.URL("abc", false))

	assert.Equal(t, DefaultCluster, New("").Cluster)
}

func TestExplorer_Stringers(t *testing.T) {
	e := New("")
	addr := solana.SystemProgramID

	assert.Equal(t, "https://solana.fm/address/11111111111111111111111111111111?cluster=localnet-solana", e.Address(addr))

	var sig solana.Signature
	assert.Equal(t, "https://solana.fm/tx/"+sig.String()+"?cluster=localnet-solana", e.Tx(sig))
}
