package db

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Books keep their ratings as a jsonb document so a rating write stays a
// single-row statement, mirroring the embedded-array shape of the API.
const schema = `
CREATE TABLE IF NOT EXISTS users (
	id            TEXT PRIMARY KEY,
	email         TEXT NOT NULL UNIQUE,
	password_hash TEXT NOT NULL,
	created_at    TIMESTAMPTZ NOT NULL,
	updated_at    TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS books (
	id             TEXT PRIMARY KEY,
	user_id        TEXT NOT NULL,
	title          TEXT NOT NULL,
	author         TEXT NOT NULL,
	genre          TEXT NOT NULL,
	year           INTEGER NOT NULL,
	image_url      TEXT NOT NULL,
	ratings        JSONB NOT NULL DEFAULT '[]',
	average_rating INTEGER NOT NULL DEFAULT 0,
	created_at     TIMESTAMPTZ NOT NULL,
	updated_at     TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS books_average_rating_idx ON books (average_rating DESC);
`

// EnsureSchema creates the tables on startup if they do not exist yet.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, schema)

	return err
}
