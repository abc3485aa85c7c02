package queue

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion guards the baseline schema. Incompatible reshapes bump
// it; additive changes ship as migrations instead.
const schemaVersion = 1

// ErrSchemaMismatch reports a queue database written by an incompatible
// unspool version.
var ErrSchemaMismatch = errors.New("schema version mismatch")

// initSchema creates the baseline schema on a fresh database, verifies
// the version on an existing one, and then applies pending migrations
// either way.
func (s *Store) initSchema(ctx context.Context) error {
	var haveVersionTable int
	if err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&haveVersionTable); err != nil {
		return fmt.Errorf("check schema_version table: %w", err)
	}

	if haveVersionTable == 0 {
		if err := s.createSchema(ctx); err != nil {
			return err
		}
	} else {
		var version int
		if err := s.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version); err != nil {
			return fmt.Errorf("read schema version: %w", err)
		}
		if version != schemaVersion {
			return fmt.Errorf("%w: database has version %d, expected %d (run 'unspool queue clear' or delete the database)",
				ErrSchemaMismatch, version, schemaVersion)
		}
	}
	return s.applyMigrations(ctx)
}

func (s *Store) createSchema(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
		return fmt.Errorf("record schema version: %w", err)
	}
	return tx.Commit()
}
