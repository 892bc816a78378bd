package store

import (
	"context"
	"database/sql"
	"fmt"
)

var schema = []string{
	`create table if not exists descriptor_cache (
  smiles_hash      text        not null,
  provider         text        not null,
  descriptors_json jsonb       not null,
  created_at       timestamptz not null default now(),
  primary key (smiles_hash, provider)
)`,
	`create table if not exists prediction_log (
  id              bigserial   primary key,
  created_at      timestamptz not null default now(),
  smiles_hash     text        not null,
  compound        text        not null,
  provider        text        not null,
  prediction_json jsonb,
  missing_json    jsonb,
  err_code        text,
  err_text        text,
  duration_ms     bigint      not null default 0
)`,
	`create index if not exists prediction_log_hash_idx on prediction_log (smiles_hash, created_at desc)`,
}

// Migrate creates the tables if they do not exist.
func Migrate(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}
