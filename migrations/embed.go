// Package migrations embeds the SQL schema, one directory per database driver.
package migrations

import "embed"

// FS holds postgres/*.sql and sqlite3/*.sql in golang-migrate naming.
//
//go:embed postgres/*.sql sqlite3/*.sql
var FS embed.FS
