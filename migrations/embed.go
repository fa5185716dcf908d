// Package migrations embeds the SQL schema migrations of the lesson store.
package migrations

import "embed"

// FS contains the up and down migrations in golang-migrate file naming
//
//go:embed *.sql
var FS embed.FS
