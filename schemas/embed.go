// Package schemas provides embedded SQL migration files.
package schemas

import (
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strings"
)

// Migrations contains all SQL migration files.
//
//go:embed migrations/*.sql
var Migrations embed.FS

// Statements returns the statements of every migration, in file name order.
// Files hold plain DDL that both sqlite and MySQL accept, separated by ";".
func Statements() ([]string, error) {
	names, err := fs.Glob(Migrations, "migrations/*.sql")
	if err != nil {
		return nil, fmt.Errorf("fs.Glob() > %w", err)
	}
	sort.Strings(names)

	var stmts []string
	for _, name := range names {
		content, err := fs.ReadFile(Migrations, name)
		if err != nil {
			return nil, fmt.Errorf("fs.ReadFile(%s) > %w", name, err)
		}
		for _, stmt := range strings.Split(string(content), ";") {
			if stmt = strings.TrimSpace(stmt); stmt != "" {
				stmts = append(stmts, stmt)
			}
		}
	}
	return stmts, nil
}
