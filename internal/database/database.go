package database

import (
	"log"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// Connect opens a SQLite database using the provided DSN.
//
// The pool is capped at a single connection so that every transaction is
// the only writer for its lifetime; the busy timeout bounds how long a
// caller waits for that slot before failing with a retryable error.
func Connect(dsn string) *sqlx.DB {
	db, err := sqlx.Connect("sqlite", dsn)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	db.SetMaxOpenConns(1)
	for _, pragma := range []string{
		`PRAGMA foreign_keys = ON;`,
		`PRAGMA busy_timeout = 3000;`,
	} {
		if _, err := db.Exec(pragma); err != nil {
			log.Fatalf("failed to apply %s: %v", pragma, err)
		}
	}
	return db
}
