package db

import (
	"context"
	"embed"
	"io/fs"
	"path"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// Concurrent deploys must not interleave DDL. The key is arbitrary but fixed.
const migrationLockKey = 4403261

const createMigrationsTable = `
CREATE TABLE IF NOT EXISTS schema_migrations (
	id         SERIAL PRIMARY KEY,
	filename   TEXT NOT NULL UNIQUE,
	applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// Migrate applies any .sql files under migrations/ that are not yet recorded
// in schema_migrations, in filename order. Runs serialize on a session
// advisory lock so overlapping invocations cannot interleave DDL.
func Migrate(ctx context.Context, pool Pool) error {
	log := zap.L().With(zap.String("component", "db.migrate"))

	if _, err := pool.Exec(ctx, "SELECT pg_advisory_lock($1)", migrationLockKey); err != nil {
		return eris.Wrap(err, "db: acquire migration advisory lock")
	}
	defer func() {
		if _, err := pool.Exec(ctx, "SELECT pg_advisory_unlock($1)", migrationLockKey); err != nil {
			log.Warn("db: failed to release migration advisory lock", zap.Error(err))
		}
	}()

	if _, err := pool.Exec(ctx, createMigrationsTable); err != nil {
		return eris.Wrap(err, "db: ensure migration table")
	}

	pending, err := pendingMigrations(ctx, pool)
	if err != nil {
		return err
	}
	if len(pending) == 0 {
		log.Debug("schema up to date")
		return nil
	}

	for _, name := range pending {
		if err := applyMigration(ctx, pool, name); err != nil {
			return err
		}
		log.Info("migration applied", zap.String("file", name))
	}

	return nil
}

// pendingMigrations lists embedded migration files not yet recorded, in
// filename order. Zero-padded numeric prefixes make that the apply order.
func pendingMigrations(ctx context.Context, pool Pool) ([]string, error) {
	rows, err := pool.Query(ctx, "SELECT filename FROM schema_migrations")
	if err != nil {
		return nil, eris.Wrap(err, "db: query applied migrations")
	}
	defer rows.Close()

	done := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, eris.Wrap(err, "db: scan migration row")
		}
		done[name] = true
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "db: read applied migrations")
	}

	// fs.Glob walks ReadDir, which yields entries sorted by filename.
	files, err := fs.Glob(migrationFS, "migrations/*.sql")
	if err != nil {
		return nil, eris.Wrap(err, "db: list migration files")
	}

	var pending []string
	for _, f := range files {
		if name := path.Base(f); !done[name] {
			pending = append(pending, name)
		}
	}
	return pending, nil
}

func applyMigration(ctx context.Context, pool Pool, name string) error {
	sql, err := migrationFS.ReadFile("migrations/" + name)
	if err != nil {
		return eris.Wrapf(err, "db: read migration %s", name)
	}

	if _, err := pool.Exec(ctx, string(sql)); err != nil {
		return eris.Wrapf(err, "db: apply migration %s", name)
	}

	_, err = pool.Exec(ctx,
		"INSERT INTO schema_migrations (filename, applied_at) VALUES ($1, now())", name)
	if err != nil {
		return eris.Wrapf(err, "db: record migration %s", name)
	}
	return nil
}
