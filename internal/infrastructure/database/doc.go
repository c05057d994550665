// Package database provides the SQLite store used by the relay bridge.
//
// The store is small: it holds the simulated device's relay and screen state
// so a restart resumes where it stopped. Schema changes are shipped as
// embedded migration files (see the top-level migrations package) and
// applied at startup with Migrate.
//
// Migration files are named YYYYMMDD_HHMMSS_description.up.sql with a
// matching .down.sql. Each file is applied in its own transaction and
// recorded in schema_migrations.
//
// Usage:
//
//	db, err := database.Open(database.Config{Path: cfg.Database.Path, WALMode: true})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    return err
//	}
package database
