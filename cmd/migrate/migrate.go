package main

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"

	database "github.com/Armour007/grc-backend/internal"
	"github.com/Armour007/grc-backend/pkg/logger"
)

// migrator applies the Up half of goose-style SQL files in name order and
// records each applied file in schema_migrations.
type migrator struct {
	db  database.Conn
	log *logger.Logger
	now func() time.Time
}

func newMigrator(db database.Conn, log *logger.Logger) *migrator {
	return &migrator{db: db, log: log, now: time.Now}
}

// Run returns the number of files applied.
func (m *migrator) Run(ctx context.Context, dir string) (int, error) {
	if _, err := m.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
    version TEXT PRIMARY KEY,
    applied_at timestamptz NOT NULL DEFAULT now()
)`); err != nil {
		return 0, errors.Wrap(err, "ensure schema_migrations")
	}

	files, err := collectSQLFiles(dir)
	if err != nil {
		return 0, err
	}
	if len(files) == 0 {
		m.log.Info().Str("dir", dir).Msg("no migration files found")
		return 0, nil
	}

	var versions []string
	if err := m.db.SelectContext(ctx, &versions, "SELECT version FROM schema_migrations"); err != nil {
		return 0, errors.Wrap(err, "query schema_migrations")
	}
	applied := make(map[string]bool, len(versions))
	for _, v := range versions {
		applied[v] = true
	}

	count := 0
	for _, f := range files {
		name := filepath.Base(f)
		if applied[name] {
			continue
		}
		b, err := os.ReadFile(f)
		if err != nil {
			return count, errors.Wrapf(err, "read %s", name)
		}
		for _, stmt := range splitStatements(extractGooseUp(string(b))) {
			if _, err := m.db.ExecContext(ctx, stmt); err != nil {
				if benign(err) {
					m.log.Warn().Err(err).Str("stmt", short(stmt)).Msg("ignoring idempotent error")
					continue
				}
				return count, errors.Wrapf(err, "migration %s", name)
			}
		}
		if _, err := m.db.ExecContext(ctx,
			"INSERT INTO schema_migrations(version, applied_at) VALUES ($1, $2) ON CONFLICT (version) DO NOTHING",
			name, m.now()); err != nil {
			return count, errors.Wrapf(err, "mark %s applied", name)
		}
		m.log.Info().Str("file", name).Msg("applied migration")
		count++
	}
	return count, nil
}

func collectSQLFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.HasSuffix(strings.ToLower(d.Name()), ".sql") {
			files = append(files, path)
		}
		return nil
	})
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "scan %s", dir)
	}
	sort.Strings(files)
	return files, nil
}

// extractGooseUp returns the text between "-- +goose Up" and "-- +goose Down".
// A file without markers is treated as all Up.
func extractGooseUp(content string) string {
	lower := strings.ToLower(content)
	up := strings.Index(lower, "-- +goose up")
	if up == -1 {
		return content
	}
	rest := content[up:]
	if nl := strings.Index(rest, "\n"); nl != -1 {
		rest = rest[nl+1:]
	} else {
		rest = ""
	}
	if down := strings.Index(strings.ToLower(rest), "-- +goose down"); down != -1 {
		rest = rest[:down]
	}
	return rest
}

// splitStatements splits on ';'. The schema has no function bodies, so no quoting rules apply.
func splitStatements(sql string) []string {
	var out []string
	for _, raw := range strings.Split(sql, ";") {
		if stmt := strings.TrimSpace(raw); stmt != "" {
			out = append(out, stmt)
		}
	}
	return out
}

func benign(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "already exists")
}

func short(s string) string {
	if len(s) > 120 {
		return s[:120] + "..."
	}
	return s
}
