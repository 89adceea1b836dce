package migrations

import "embed"

// FS contains embedded SQLite migrations for matchmaking storage.
//
//go:embed *.sql
var FS embed.FS
