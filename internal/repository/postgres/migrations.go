package postgres

import "embed"

// Migrations holds the schema files applied by database.RunMigrations.
//
//go:embed migrations/*.up.sql
var Migrations embed.FS

// MigrationsDir is the directory inside Migrations that holds the files.
const MigrationsDir = "migrations"
