// Package database provides the SQLite store backing the command audit log.
//
// This package manages:
//   - Opening the database file with WAL mode and a busy timeout
//   - Additive schema migrations embedded in the binary
//   - Connection lifecycle and health checks
//
// Device state is deliberately not stored here; cached pin and sensor
// values live only in memory for the life of the process.
//
// Usage:
//
//	db, err := database.Open(database.Config{Path: cfg.Database.Path, WALMode: true})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    log.Fatal(err)
//	}
package database
