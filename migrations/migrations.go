// Package migrations embeds the schema migrations applied by cmd/migrator.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
