// Package migrations embeds the SQL schema migration files so the server
// binary carries its own schema.
package migrations

import "embed"

//go:embed *.sql
var Files embed.FS
