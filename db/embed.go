// Package db embeds the SQL schema applied at startup.
package db

import _ "embed"

// Schema holds the DDL for all checkout tables. The statements are written to
// run idempotently, so RunMigrations executes the file on every start.
//
//go:embed migrations/001_schema.sql
var Schema string
