// Package migrations applies the run journal schema to Postgres and ClickHouse.
package migrations

import "embed"

// PostgresFS embeds the PostgreSQL journal schema.
//
//go:embed postgres/*.sql
var PostgresFS embed.FS

// ClickhouseFS embeds the ClickHouse journal schema.
//
//go:embed clickhouse/*.sql
var ClickhouseFS embed.FS
