package migrations

import (
	_ "embed"
	"strings"

	migrate "github.com/rubenv/sql-migrate"
)

const upDownSeparator = "-- +migrate Up"

//go:embed tokensync0001.sql
var mig001 string
var mig001splitted = strings.Split(mig001, upDownSeparator)

// Source holds the SQLite schema migrations.
var Source = &migrate.MemoryMigrationSource{
	Migrations: []*migrate.Migration{
		{
			Id:   "tokensync0001",
			Up:   []string{mig001splitted[1]},
			Down: []string{mig001splitted[0]},
		},
	},
}
