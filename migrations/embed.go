package migrations

import (
	"embed"
	"fmt"
	"io/fs"
)

// Files exposes embedded SQL migrations, one directory per SQL dialect,
// applied in lexicographic order.
//
//go:embed sqlite/*.sql postgres/*.sql mysql/*.sql
var Files embed.FS

// For returns the migrations of one dialect.
func For(dialect string) (fs.FS, error) {
	sub, err := fs.Sub(Files, dialect)
	if err != nil {
		return nil, fmt.Errorf("migrations for %s: %w", dialect, err)
	}
	return sub, nil
}
