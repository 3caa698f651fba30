// Package storage is the Postgres persistence layer for sessions, call
// records, candidates and candidate activity. Every write is an upsert keyed
// by a natural id so replayed webhooks are harmless.
package storage

import (
	"context"
	"database/sql"
	"embed"
	"io/fs"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"screening-agent/internal/audit"
	"screening-agent/internal/calls"
	"screening-agent/internal/candidates"
	"screening-agent/internal/interview"
	"screening-agent/pkg/utils"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Migrations is the embedded goose migration set.
func Migrations() fs.FS {
	sub, err := fs.Sub(migrationsFS, "migrations")
	if err != nil {
		panic(err)
	}
	return sub
}

type Postgres struct {
	db    *sql.DB
	clock func() time.Time
}

var (
	_ interview.Persister   = (*Postgres)(nil)
	_ candidates.Repository = (*Postgres)(nil)
	_ calls.Repository      = (*Postgres)(nil)
	_ audit.Repository      = (*Postgres)(nil)
)

// Open connects through the pgx database/sql driver.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	return utils.OpenPostgres(ctx, "pgx", dsn, utils.PostgresPoolConfig{})
}

func New(db *sql.DB) *Postgres {
	return &Postgres{db: db, clock: time.Now}
}

func (p *Postgres) DB() *sql.DB { return p.db }

// Migrate applies pending migrations and returns the versions applied.
func (p *Postgres) Migrate(ctx context.Context) ([]int64, error) {
	return utils.RunMigrations(ctx, p.db, Migrations())
}

func (p *Postgres) now() time.Time { return p.clock().UTC() }
