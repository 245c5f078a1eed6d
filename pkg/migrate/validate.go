package migrate

import (
	"fmt"
	"io/fs"
	"path"
	"regexp"
	"sort"
	"strings"
)

var (
	sqlFileRe     = regexp.MustCompile(`^(\d{14})_[a-z0-9_]+\.sql$`)
	createTableRe = regexp.MustCompile(`(?is)CREATE TABLE IF NOT EXISTS\s+([a-z0-9_]+)\s*\((.*?)\n\);`)
)

// globalTables are the only tables allowed to live outside a tenant.
var globalTables = map[string]bool{
	"tenants": true,
}

// ValidateDir checks the migrations under dir; an empty dir checks the embedded set.
func ValidateDir(dir string) error {
	fsys, root, err := Source{Dir: dir}.fsys()
	if err != nil {
		return err
	}
	return ValidateFS(fsys, root)
}

// ValidateFS enforces naming, unique versions, goose Up/Down markers in order,
// and a non-null tenant_id on every table outside globalTables.
func ValidateFS(fsys fs.FS, root string) error {
	entries, err := fs.ReadDir(fsys, root)
	if err != nil {
		return fmt.Errorf("read migrations %q: %w", root, err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	seen := map[string]string{}
	for _, name := range names {
		m := sqlFileRe.FindStringSubmatch(name)
		if m == nil {
			return fmt.Errorf("invalid migration filename %q (expected YYYYMMDDHHMMSS_name.sql)", name)
		}
		if prev, ok := seen[m[1]]; ok {
			return fmt.Errorf("duplicate migration version %s in %q and %q", m[1], prev, name)
		}
		seen[m[1]] = name

		b, err := fs.ReadFile(fsys, path.Join(root, name))
		if err != nil {
			return fmt.Errorf("read %q: %w", name, err)
		}
		if err := validateContent(name, string(b)); err != nil {
			return err
		}
	}
	return nil
}

func validateContent(name, txt string) error {
	up := strings.Index(txt, "-- +goose Up")
	down := strings.Index(txt, "-- +goose Down")
	switch {
	case up < 0:
		return fmt.Errorf("migration %q missing \"-- +goose Up\"", name)
	case down < 0:
		return fmt.Errorf("migration %q missing \"-- +goose Down\"", name)
	case down < up:
		return fmt.Errorf("migration %q has Down before Up", name)
	}

	for _, m := range createTableRe.FindAllStringSubmatch(txt[up:down], -1) {
		table, body := strings.ToLower(m[1]), strings.ToLower(m[2])
		if globalTables[table] {
			continue
		}
		if !strings.Contains(body, "tenant_id uuid not null") {
			return fmt.Errorf("migration %q: table %s has no tenant_id uuid NOT NULL column", name, table)
		}
	}
	return nil
}
