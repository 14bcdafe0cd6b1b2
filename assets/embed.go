// Package assets embeds the SQL migrations shipped with the server.
//
// Layout:
//   - sql/sqlite/*.sql   applied by the SQLite store
//   - sql/postgres/*.sql applied by the PostgreSQL store
//
// Files are applied in lexical order and recorded in a _migrations table.
package assets

import (
	"embed"
	"io/fs"
	"path"
	"sort"
	"strings"
)

//go:embed sql
var FS embed.FS

// Migration is one named SQL script.
type Migration struct {
	Name string
	SQL  string
}

// Migrations returns the scripts for dialect ("sqlite" or "postgres"), sorted by name.
func Migrations(dialect string) ([]Migration, error) {
	dir := path.Join("sql", dialect)
	entries, err := fs.ReadDir(FS, dir)
	if err != nil {
		return nil, err
	}

	var out []Migration
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(strings.ToLower(e.Name()), ".sql") {
			continue
		}
		b, err := fs.ReadFile(FS, path.Join(dir, e.Name()))
		if err != nil {
			return nil, err
		}
		out = append(out, Migration{Name: e.Name(), SQL: string(b)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}
