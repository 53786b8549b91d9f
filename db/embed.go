// Package db carries the SQL migrations compiled into the API binary.
package db

import "embed"

//go:embed migrations/*.sql
var MigrationsFS embed.FS
