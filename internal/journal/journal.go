// Package journal opens the configured run journal backend.
package journal

import (
	"context"
	"fmt"

	"token-metadata-lab/internal/config"
	"token-metadata-lab/internal/storage"
	"token-metadata-lab/internal/storage/clickhouse"
	"token-metadata-lab/internal/storage/memory"
	"token-metadata-lab/internal/storage/migrations"
	"token-metadata-lab/internal/storage/postgres"
)

// Open connects to backend, applies its migrations and returns the journal
// with write metrics attached. The caller closes it.
func Open(ctx context.Context, backend, postgresDSN, clickhouseDSN string) (*storage.Instrumented, error) {
	switch backend {
	case config.JournalMemory, "":
		return storage.Instrument(memory.NewRunJournal(), config.JournalMemory), nil

	case config.JournalPostgres:
		pool, err := postgres.NewPool(ctx, postgresDSN)
		if err != nil {
			return nil, err
		}
		if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			pool.Close()
			return nil, fmt.Errorf("postgres migrations: %w", err)
		}
		return storage.Instrument(postgres.NewRunJournal(pool), backend), nil

	case config.JournalClickHouse:
		conn, err := migrations.RunClickhouseMigrations(ctx, clickhouseDSN)
		if err != nil {
			return nil, fmt.Errorf("clickhouse migrations: %w", err)
		}
		return storage.Instrument(clickhouse.NewRunJournal(conn), backend), nil

	default:
		return nil, fmt.Errorf("unknown journal backend %q", backend)
	}
}
