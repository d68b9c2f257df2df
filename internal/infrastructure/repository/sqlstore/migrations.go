package sqlstore

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"sort"
	"strings"

	"measurements-service/internal/infra"
)

//go:embed migrations/*/*.sql
var embeddedMigrations embed.FS

// Execer is the subset of *sql.DB / *sqlx.DB needed to apply migrations.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// MigrationsFS returns the migration set for the dialect. A non-empty dir
// replaces the embedded files with the .sql files found in that directory.
func MigrationsFS(dir string, dialect Dialect) (fs.FS, error) {
	if dir = strings.TrimSpace(dir); dir != "" {
		return os.DirFS(dir), nil
	}
	sub, err := fs.Sub(embeddedMigrations, path.Join("migrations", string(dialect)))
	if err != nil {
		return nil, fmt.Errorf("migrations for %s: %w", dialect, err)
	}
	return sub, nil
}

// ApplyMigrations executes the .sql files at the root of fsys in lexical
// order. Files may hold several statements separated by semicolons.
func ApplyMigrations(ctx context.Context, db Execer, fsys fs.FS, logger *infra.Logger) error {
	if fsys == nil {
		return errors.New("migrations source is not specified")
	}

	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("read migrations: %w", err)
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}
		files = append(files, entry.Name())
	}
	sort.Strings(files)

	if len(files) == 0 {
		logger.Println(ctx, "no migrations found")
		return nil
	}

	for _, name := range files {
		contents, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("read migration %q: %w", name, err)
		}

		statements := splitStatements(string(contents))
		if len(statements) == 0 {
			logger.Printf(ctx, "skipping empty migration %s", name)
			continue
		}

		logger.Printf(ctx, "applying migration %s", name)
		for _, statement := range statements {
			if _, err := db.ExecContext(ctx, statement); err != nil {
				return fmt.Errorf("apply migration %q: %w", name, err)
			}
		}
	}

	logger.Println(ctx, "migrations applied successfully")
	return nil
}

func splitStatements(contents string) []string {
	var statements []string
	for _, part := range strings.Split(contents, ";") {
		if part = strings.TrimSpace(part); part != "" {
			statements = append(statements, part)
		}
	}
	return statements
}
