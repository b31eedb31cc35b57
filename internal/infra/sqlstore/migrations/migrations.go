// Package migrations holds the schema history applied by `migrate` and at startup.
package migrations

import "github.com/uptrace/bun/migrate"

// Migrations is the registry every migration file adds itself to.
var Migrations = migrate.NewMigrations()
