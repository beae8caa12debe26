// Package migrations embeds SQL migration files into the binary.
//
// The runtime applies them with database.DB.Migrate when the sqlite store
// backend is selected, so the SQL files need not be present on disk.
package migrations

import "embed"

// FS holds every *.sql migration at its root.
//
//go:embed *.sql
var FS embed.FS
