// Package config holds runtime configuration for the demo, read from the
// environment with built-in defaults.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"token-metadata-lab/internal/rpc"
)

const (
	defaultRPCEndpoint    = "http://127.0.0.1:8899"
	defaultCommitment     = rpc.CommitmentConfirmed
	defaultJournal        = JournalMemory
	defaultCluster        = "localnet-solana"
	defaultPointsDelta    = 10
	defaultInitialSupply  = 1000
	defaultAirdropSOL     = 2
	defaultConfirmTimeout = 60 * time.Second
)

// Journal backends.
const (
	JournalMemory     = "memory"
	JournalPostgres   = "postgres"
	JournalClickHouse = "clickhouse"
)

// Config captures runtime configuration.
type Config struct {
	RPCEndpoint      string
	WSEndpoint       string
	Commitment       rpc.Commitment
	PayerKeypair     string
	AuthorityKeypair string
	Journal          string
	PostgresDSN      string
	ClickHouseDSN    string
	MetricsAddr      string
	ExplorerCluster  string
	PointsDelta      int64
	InitialSupply    uint64
	AirdropSOL       uint64
	ConfirmTimeout   time.Duration
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		RPCEndpoint:     defaultRPCEndpoint,
		WSEndpoint:      DeriveWSEndpoint(defaultRPCEndpoint),
		Commitment:      defaultCommitment,
		Journal:         defaultJournal,
		ExplorerCluster: defaultCluster,
		PointsDelta:     defaultPointsDelta,
		InitialSupply:   defaultInitialSupply,
		AirdropSOL:      defaultAirdropSOL,
		ConfirmTimeout:  defaultConfirmTimeout,
	}
}

// Load reads configuration from environment variables on top of Default.
func Load() (Config, error) {
	cfg := Default()

	cfg.RPCEndpoint = getEnv("RPC_ENDPOINT", cfg.RPCEndpoint)
	cfg.WSEndpoint = getEnv("WS_ENDPOINT", DeriveWSEndpoint(cfg.RPCEndpoint))
	cfg.Commitment = rpc.Commitment(strings.ToLower(getEnv("COMMITMENT", string(cfg.Commitment))))
	cfg.PayerKeypair = os.Getenv("PAYER_KEYPAIR")
	cfg.AuthorityKeypair = os.Getenv("AUTHORITY_KEYPAIR")
	cfg.Journal = strings.ToLower(getEnv("JOURNAL", cfg.Journal))
	cfg.PostgresDSN = os.Getenv("POSTGRES_DSN")
	cfg.ClickHouseDSN = os.Getenv("CLICKHOUSE_DSN")
	cfg.MetricsAddr = os.Getenv("METRICS_ADDR")
	cfg.ExplorerCluster = getEnv("EXPLORER_CLUSTER", cfg.ExplorerCluster)

	if v := os.Getenv("POINTS_DELTA"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return Config{}, fmt.Errorf("invalid POINTS_DELTA: %w", err)
		}
		cfg.PointsDelta = n
	}
	if v := os.Getenv("INITIAL_SUPPLY"); v != "" {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return Config{}, fmt.Errorf("invalid INITIAL_SUPPLY: %w", err)
		}
		cfg.InitialSupply = n
	}
	if v := os.Getenv("AIRDROP_SOL"); v != "" {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return Config{}, fmt.Errorf("invalid AIRDROP_SOL: %w", err)
		}
		cfg.AirdropSOL = n
	}
	if v := os.Getenv("CONFIRM_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid CONFIRM_TIMEOUT: %w", err)
		}
		cfg.ConfirmTimeout = d
	}

	return cfg, nil
}

// Validate checks that the configuration is usable.
func (c Config) Validate() error {
	if err := validateURL(c.RPCEndpoint, "http", "https"); err != nil {
		return fmt.Errorf("rpc endpoint: %w", err)
	}
	if c.WSEndpoint != "" {
		if err := validateURL(c.WSEndpoint, "ws", "wss"); err != nil {
			return fmt.Errorf("ws endpoint: %w", err)
		}
	}
	if !c.Commitment.Valid() {
		return fmt.Errorf("unknown commitment %q", c.Commitment)
	}

	switch c.Journal {
	case JournalMemory:
	case JournalPostgres:
		if c.PostgresDSN == "" {
			return fmt.Errorf("journal %q requires a postgres DSN", c.Journal)
		}
	case JournalClickHouse:
		if c.ClickHouseDSN == "" {
			return fmt.Errorf("journal %q requires a clickhouse DSN", c.Journal)
		}
	default:
		return fmt.Errorf("unknown journal backend %q", c.Journal)
	}

	if c.InitialSupply == 0 {
		return fmt.Errorf("initial supply must be positive")
	}
	if c.ConfirmTimeout <= 0 {
		return fmt.Errorf("confirm timeout must be positive")
	}
	return nil
}

// DeriveWSEndpoint maps an RPC URL to the validator's default pubsub URL:
// the scheme becomes ws(s) and an explicit port is incremented by one.
func DeriveWSEndpoint(rpcEndpoint string) string {
	u, err := url.Parse(rpcEndpoint)
	if err != nil || u.Host == "" {
		return ""
	}

	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}

	if port := u.Port(); port != "" {
		if n, err := strconv.Atoi(port); err == nil {
			u.Host = u.Hostname() + ":" + strconv.Itoa(n+1)
		}
	}
	return u.String()
}

// LoadEnvFile sets variables from a KEY=VALUE file without overriding ones
// already present. A missing file is not an error.
func LoadEnvFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read env file: %w", err)
	}

	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}

		key := strings.TrimSpace(parts[0])
		value := strings.Trim(strings.TrimSpace(parts[1]), `"'`)

		if _, ok := os.LookupEnv(key); !ok {
			os.Setenv(key, value)
		}
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func validateURL(raw string, schemes ...string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Host == "" {
		return fmt.Errorf("missing host in %q", raw)
	}
	for _, s := range schemes {
		if u.Scheme == s {
			return nil
		}
	}
	return fmt.Errorf("scheme %q not one of %v", u.Scheme, schemes)
}
