package migrations

import "embed"

// FS contains embedded SQLite migrations for the notification journal.
//
//go:embed *.sql
var FS embed.FS
