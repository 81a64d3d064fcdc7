// Package migrations embeds the SQL schema so the binary can migrate without
// the source tree.
package migrations

import "embed"

// FS holds every *.sql file in this directory.
//
//go:embed *.sql
var FS embed.FS
