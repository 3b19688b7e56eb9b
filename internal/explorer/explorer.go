// Package explorer builds block explorer links for transactions and accounts.
package explorer

import "fmt"

const (
	DefaultBaseURL = "https://solana.fm"
	DefaultCluster = "localnet-solana"
)

// Explorer formats links against one explorer deployment and cluster.
type Explorer struct {
	BaseURL string
	Cluster string
}

// New returns an Explorer for cluster on the default base URL.
// An empty cluster selects DefaultCluster.
func New(cluster string) *Explorer {
	if cluster == "" {
		cluster = DefaultCluster
	}
	return &Explorer{BaseURL: DefaultBaseURL, Cluster: cluster}
}

// URL links to a transaction, or to an account when isAddress is set.
// An empty id yields an empty string.
func (e *Explorer) URL(id string, isAddress bool) string {
	if id == "" {
		return ""
	}
	kind := "tx"
	if isAddress {
		kind = "address"
	}
	return fmt.Sprintf("%s/%s/%s?cluster=%s", e.BaseURL, kind, id, e.Cluster)
}

// Tx links to a transaction signature.
func (e *Explorer) Tx(sig fmt.Stringer) string {
	return e.URL(sig.String(), false)
}

// Address links to an account.
func (e *Explorer) Address(addr fmt.Stringer) string {
	return e.URL(addr.String(), true)
}
