package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"rendercv-service/internal/tokens"
)

const (
	schemaTimeout = 5 * time.Second
	queryTimeout  = 5 * time.Second
)

var schemaDDL = []string{
	`CREATE TABLE IF NOT EXISTS tokens (
		token TEXT PRIMARY KEY,
		rate_limit INTEGER NOT NULL DEFAULT 60,
		scope JSONB NOT NULL DEFAULT '{}'::jsonb,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		comment TEXT
	);`,
	`CREATE INDEX IF NOT EXISTS idx_tokens_created_at ON tokens (created_at);`,
}

// EnsureSchema creates the tokens table when it is missing.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	ctx, cancel := context.WithTimeout(ctx, schemaTimeout)
	defer cancel()
	for _, ddl := range schemaDDL {
		if _, err := db.ExecContext(ctx, ddl); err != nil {
			return fmt.Errorf("ensure tokens schema: %w", err)
		}
	}
	return nil
}

// VerifySchema checks that the tokens table is reachable and has the
// columns LoadTokens reads. A table created by an older release may
// predate the scope column.
func VerifySchema(ctx context.Context, db *sql.DB) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	rows, err := db.QueryContext(ctx, `SELECT token, rate_limit, scope FROM tokens LIMIT 0;`)
	if err != nil {
		return fmt.Errorf("verify tokens schema: %w", err)
	}
	return rows.Close()
}

// TokenRepository implements tokens.Repository on Postgres. The schema
// is created and verified on the first successful load only.
type TokenRepository struct {
	DB  *DB
	DSN string

	schemaReady atomic.Bool
}

// NewTokenRepository reads tokens through db from the database at dsn.
func NewTokenRepository(db *DB, dsn string) *TokenRepository {
	return &TokenRepository{DB: db, DSN: dsn}
}

// LoadTokens returns every token with its rate limit and scope.
func (r *TokenRepository) LoadTokens(ctx context.Context) (map[string]tokens.Entry, error) {
	db, err := r.DB.Get(r.DSN)
	if err != nil {
		return nil, fmt.Errorf("open token db: %w", err)
	}
	if !r.schemaReady.Load() {
		if err := EnsureSchema(ctx, db); err != nil {
			return nil, err
		}
		if err := VerifySchema(ctx, db); err != nil {
			return nil, err
		}
		r.schemaReady.Store(true)
	}

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	rows, err := db.QueryContext(ctx, `SELECT token, rate_limit, scope FROM tokens;`)
	if err != nil {
		return nil, fmt.Errorf("query tokens: %w", err)
	}
	defer rows.Close()

	out := make(map[string]tokens.Entry)
	for rows.Next() {
		var (
			token    string
			limit    int
			rawScope []byte
		)
		if err := rows.Scan(&token, &limit, &rawScope); err != nil {
			return nil, fmt.Errorf("scan token: %w", err)
		}
		var scope tokens.Scope
		if len(rawScope) > 0 {
			if err := json.Unmarshal(rawScope, &scope); err != nil {
				return nil, fmt.Errorf("decode scope of token: %w", err)
			}
		}
		out[token] = tokens.Entry{RateLimit: limit, Scope: scope}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tokens: %w", err)
	}
	return out, nil
}
