// Package database provides SQLite connectivity for the component runtime.
//
// It backs the sqlite store backend, which keeps the desired component and
// binding configuration in a store_items table instead of a JSON file.
//
// This package manages:
//   - Database connection with WAL mode and busy timeout
//   - Schema migrations read from an fs.FS (see package migrations)
//   - Connection lifecycle and health checks
//
// Security Considerations:
//   - All queries use parameterised statements
//   - Database file permissions are set to 0600 (owner read/write only)
//
// Usage:
//
//	db, err := database.Open(ctx, database.Config{Path: cfg.Database.Path, WALMode: true})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if _, err := db.Migrate(ctx, migrations.FS); err != nil {
//	    return err
//	}
//
// Writes that span several statements go through InTx, which commits only
// when the callback succeeds.
//
// Migration Strategy:
//
// Migrations are additive-only. Each file is named
// YYYYMMDD_HHMMSS_description.up.sql with an optional matching .down.sql.
package database
