// Package migrations embeds the goose SQL migrations and applies them
// at startup.
package migrations

import (
	"database/sql"
	"embed"

	"github.com/pressly/goose/v3"
)

//go:embed *.sql
var fs embed.FS

// QuietMode suppresses goose's per-migration output for clean CLI runs.
var QuietMode = false

// Run applies all pending migrations to the database.
func Run(db *sql.DB) error {
	goose.SetBaseFS(fs)
	if QuietMode {
		goose.SetLogger(goose.NopLogger())
	}
	if err := goose.SetDialect("sqlite3"); err != nil {
		return err
	}
	return goose.Up(db, ".")
}
