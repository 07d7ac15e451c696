package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ApplyMigrations runs every *.sql file in dir, in lexical order, that is not yet
// recorded in schema_migrations. Each file runs in its own transaction.
func (r *Repository) ApplyMigrations(ctx context.Context, dir string) ([]string, error) {
	if _, err := r.db.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			filename   TEXT PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`); err != nil {
		return nil, err
	}

	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if !d.IsDir() && strings.HasSuffix(d.Name(), ".sql") {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(files)

	var applied []string
	for _, file := range files {
		name := filepath.Base(file)

		var exists bool
		if err := r.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE filename = $1)`, name).Scan(&exists); err != nil {
			return applied, err
		}
		if exists {
			continue
		}

		raw, err := os.ReadFile(file)
		if err != nil {
			return applied, err
		}
		sqlText := strings.TrimSpace(string(raw))
		if sqlText == "" {
			return applied, errors.New("empty migration: " + name)
		}

		if err := r.applyMigration(ctx, name, sqlText); err != nil {
			return applied, err
		}
		applied = append(applied, name)
	}
	return applied, nil
}

func (r *Repository) applyMigration(ctx context.Context, name, sqlText string) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, sqlText); err != nil {
		return fmt.Errorf("migration %s failed: %w", name, err)
	}
	if _, err := tx.Exec(ctx, `INSERT INTO schema_migrations (filename) VALUES ($1)`, name); err != nil {
		return err
	}
	return tx.Commit(ctx)
}
