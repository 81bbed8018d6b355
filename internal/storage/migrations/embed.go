// Package migrations carries the embedded schemas for both backing
// stores and applies them at startup.
package migrations

import "embed"

// PostgresFS holds the whale_alerts and token_launches schemas.
//
//go:embed postgres/*.sql
var PostgresFS embed.FS

// ClickhouseFS holds the whale_transactions archive schema.
//
//go:embed clickhouse/*.sql
var ClickhouseFS embed.FS
