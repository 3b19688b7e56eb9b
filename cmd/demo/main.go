// Package main runs the Token-2022 metadata lifecycle against a Solana
// ledger: fund the payer, create a mint with on-chain metadata, prune a
// metadata field, revoke the mint authority, bump the Points field and
// transfer one token to a recipient.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gagliardetto/solana-go"

	"token-metadata-lab/internal/config"
	"token-metadata-lab/internal/explorer"
	"token-metadata-lab/internal/journal"
	"token-metadata-lab/internal/keys"
	"token-metadata-lab/internal/observability"
	"token-metadata-lab/internal/orchestrator"
	"token-metadata-lab/internal/reporting"
	"token-metadata-lab/internal/rpc"
	"token-metadata-lab/internal/storage"
	"token-metadata-lab/internal/tokenops"
)

type options struct {
	cfg                     config.Config
	revokeMetadataAuthority bool
	reportPath              string
	csvPath                 string
	saveKeysDir             string
	recipient               string
	allowOffCurveRecipient  bool
	noWS                    bool
	verbose                 bool
}

func main() {
	logger := log.New(os.Stderr, "[demo] ", log.LstdFlags|log.Lshortfile)

	if err := config.LoadEnvFile(".env"); err != nil {
		logger.Printf("Warning: %v", err)
	}

	opts, err := parseFlags()
	if err != nil {
		logger.Fatalf("Invalid configuration: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case sig := <-sigCh:
			logger.Printf("Received signal %v, cancelling run...", sig)
			cancel()
		case <-done:
			return
		}

		select {
		case sig := <-sigCh:
			logger.Printf("Received second signal %v, forcing exit", sig)
			os.Exit(1)
		case <-time.After(30 * time.Second):
			logger.Println("Shutdown timed out after 30s, forcing exit")
			os.Exit(1)
		case <-done:
		}
	}()

	err = run(ctx, opts, logger)
	close(done)
	if err != nil {
		logger.Printf("An error occurred: %v", err)
		os.Exit(1)
	}
}

func parseFlags() (*options, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	opts := &options{}
	flag.StringVar(&cfg.RPCEndpoint, "rpc-endpoint", cfg.RPCEndpoint, "Solana RPC HTTP endpoint")
	flag.StringVar(&cfg.WSEndpoint, "ws-endpoint", cfg.WSEndpoint, "Solana WebSocket endpoint (derived from -rpc-endpoint when unset)")
	commitment := flag.String("commitment", string(cfg.Commitment), "Confirmation level: processed, confirmed or finalized")
	flag.StringVar(&cfg.PayerKeypair, "payer-keypair", cfg.PayerKeypair, "Payer keypair file or base58 secret (generated when empty)")
	flag.StringVar(&cfg.AuthorityKeypair, "authority-keypair", cfg.AuthorityKeypair, "Mint and metadata authority keypair (generated when empty)")
	flag.StringVar(&cfg.Journal, "journal", cfg.Journal, "Run journal backend: memory, postgres or clickhouse")
	flag.StringVar(&cfg.PostgresDSN, "postgres-dsn", cfg.PostgresDSN, "PostgreSQL connection string")
	flag.StringVar(&cfg.ClickHouseDSN, "clickhouse-dsn", cfg.ClickHouseDSN, "ClickHouse connection string")
	flag.StringVar(&cfg.MetricsAddr, "metrics-addr", cfg.MetricsAddr, "Serve Prometheus metrics on this address during the run")
	flag.StringVar(&cfg.ExplorerCluster, "explorer-cluster", cfg.ExplorerCluster, "Cluster parameter of explorer links")
	flag.Int64Var(&cfg.PointsDelta, "points-delta", cfg.PointsDelta, "Amount added to the Points metadata field")
	flag.Uint64Var(&cfg.InitialSupply, "initial-supply", cfg.InitialSupply, "Tokens minted to the payer")
	flag.Uint64Var(&cfg.AirdropSOL, "airdrop-sol", cfg.AirdropSOL, "SOL requested for the payer (0 skips the airdrop)")
	flag.DurationVar(&cfg.ConfirmTimeout, "confirm-timeout", cfg.ConfirmTimeout, "Maximum wait for each confirmation")
	flag.BoolVar(&opts.revokeMetadataAuthority, "revoke-metadata-authority", false, "Make the metadata immutable after the transfer")
	flag.StringVar(&opts.reportPath, "report", "", "Write a Markdown run summary to this path")
	flag.StringVar(&opts.csvPath, "csv", "", "Write the run's steps as CSV to this path")
	flag.StringVar(&opts.recipient, "recipient", "", "Transfer recipient address (a fresh keypair when empty)")
	flag.BoolVar(&opts.allowOffCurveRecipient, "allow-off-curve-recipient", false, "Accept a program-derived recipient address")
	flag.StringVar(&opts.saveKeysDir, "save-keys", "", "Save the run's keypairs as JSON files in this directory")
	flag.BoolVar(&opts.noWS, "no-ws", false, "Confirm by polling only")
	flag.BoolVar(&opts.verbose, "verbose", false, "Verbose orchestrator logging")
	flag.Parse()

	cfg.Commitment = rpc.Commitment(*commitment)

	// A new RPC endpoint without an explicit WS endpoint gets its derived pair.
	set := map[string]bool{}
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })
	if set["rpc-endpoint"] && !set["ws-endpoint"] && os.Getenv("WS_ENDPOINT") == "" {
		cfg.WSEndpoint = config.DeriveWSEndpoint(cfg.RPCEndpoint)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	opts.cfg = cfg
	return opts, nil
}

func run(ctx context.Context, opts *options, logger *log.Logger) error {
	cfg := opts.cfg

	if cfg.MetricsAddr != "" {
		srv := startHTTPServer(cfg.MetricsAddr, logger)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	j, err := journal.Open(ctx, cfg.Journal, cfg.PostgresDSN, cfg.ClickHouseDSN)
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	defer j.Close()

	session, recipient, err := loadSession(cfg, opts.recipient)
	if err != nil {
		return err
	}
	session.AllowOwnerOffCurve = opts.allowOffCurveRecipient
	if opts.saveKeysDir != "" {
		if err := saveKeys(opts.saveKeysDir, session, recipient); err != nil {
			return err
		}
	}

	client := rpc.NewHTTPClient(cfg.RPCEndpoint, rpc.WithCommitment(cfg.Commitment))
	confirmer, closeWS := newConfirmer(ctx, cfg, client, opts.noWS, logger)
	defer closeWS()

	ops := tokenops.New(client, confirmer, tokenops.WithLogger(logger))
	console := reporting.NewConsole(os.Stdout)
	links := explorer.New(cfg.ExplorerCluster)

	orch := orchestrator.New(orchestrator.Options{
		Ops:                     ops,
		Journal:                 j,
		Ledger:                  client,
		Reporter:                console,
		Explorer:                links,
		Logger:                  logger,
		AirdropLamports:         cfg.AirdropSOL * solana.LAMPORTS_PER_SOL,
		PointsDelta:             &cfg.PointsDelta,
		RevokeMetadataAuthority: opts.revokeMetadataAuthority,
		RPCEndpoint:             cfg.RPCEndpoint,
		Verbose:                 opts.verbose,
	})

	logger.Printf("Mint %s, payer %s, journal %s", session.MintAddress(), session.Payer.PublicKey(), j.Backend())
	result, runErr := orch.Run(ctx, session, recipient)
	if runErr == nil {
		console.Mint(links.Address(session.MintAddress()))
		console.Balances(result.PayerBalance, result.RecipientBalance)
	}

	if result != nil {
		if err := writeReports(j, result.RunID, opts); err != nil {
			logger.Printf("Write reports: %v", err)
		}
	}
	return runErr
}

// loadSession builds the session from configured or generated keys and
// resolves the transfer recipient, generating one when none is given.
func loadSession(cfg config.Config, recipientAddr string) (*tokenops.Session, solana.PublicKey, error) {
	var payer, authority solana.PrivateKey
	var err error
	if cfg.PayerKeypair != "" {
		if payer, err = keys.Load(cfg.PayerKeypair); err != nil {
			return nil, solana.PublicKey{}, fmt.Errorf("load payer keypair: %w", err)
		}
	}
	if cfg.AuthorityKeypair != "" {
		if authority, err = keys.Load(cfg.AuthorityKeypair); err != nil {
			return nil, solana.PublicKey{}, fmt.Errorf("load authority keypair: %w", err)
		}
	}

	session, err := tokenops.NewSession(payer, authority)
	if err != nil {
		return nil, solana.PublicKey{}, err
	}
	session.InitialSupply = cfg.InitialSupply

	if recipientAddr != "" {
		recipient, err := solana.PublicKeyFromBase58(recipientAddr)
		if err != nil {
			return nil, solana.PublicKey{}, fmt.Errorf("parse recipient: %w", err)
		}
		return session, recipient, nil
	}
	recipient, err := keys.Generate()
	if err != nil {
		return nil, solana.PublicKey{}, fmt.Errorf("recipient: %w", err)
	}
	return session, recipient.PublicKey(), nil
}

func saveKeys(dir string, s *tokenops.Session, recipient solana.PublicKey) error {
	for name, key := range map[string]solana.PrivateKey{
		"payer.json":     s.Payer,
		"authority.json": s.Authority,
		"mint.json":      s.Mint,
	} {
		if err := keys.Save(filepath.Join(dir, name), key); err != nil {
			return fmt.Errorf("save %s: %w", name, err)
		}
	}
	return os.WriteFile(filepath.Join(dir, "recipient.txt"), []byte(recipient.String()+"\n"), 0o600)
}

// newConfirmer prefers signature subscriptions and falls back to polling
// when the WebSocket endpoint is unavailable.
func newConfirmer(ctx context.Context, cfg config.Config, client rpc.Client, noWS bool, logger *log.Logger) (rpc.Confirmer, func()) {
	poller := rpc.NewPollingConfirmer(client, cfg.Commitment, 0, cfg.ConfirmTimeout)
	if noWS || cfg.WSEndpoint == "" {
		return poller, func() {}
	}

	wsCfg := rpc.DefaultWSConfig()
	ws, err := rpc.NewWSClient(ctx, cfg.WSEndpoint, &wsCfg)
	if err != nil {
		logger.Printf("WebSocket %s unavailable, confirming by polling: %v", cfg.WSEndpoint, err)
		return poller, func() {}
	}
	return rpc.NewWSConfirmer(ws, poller), func() { _ = ws.Close() }
}

func writeReports(j storage.RunJournal, runID string, opts *options) error {
	if opts.reportPath == "" && opts.csvPath == "" {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	report, err := reporting.NewGenerator(j).Generate(ctx, runID)
	if err != nil {
		return err
	}

	var errs []error
	if opts.reportPath != "" {
		errs = append(errs, os.WriteFile(opts.reportPath, []byte(reporting.RenderMarkdown(report)), 0o644))
	}
	if opts.csvPath != "" {
		out, err := reporting.RenderCSV(report)
		if err == nil {
			err = os.WriteFile(opts.csvPath, []byte(out), 0o644)
		}
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// startHTTPServer serves /health and /metrics until shut down.
func startHTTPServer(addr string, logger *log.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", observability.Handler())

	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		logger.Printf("Starting metrics server on %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Printf("Metrics server error: %v", err)
		}
	}()
	return srv
}
