package postgres

import (
	"context"
	"database/sql"
	"fmt"
)

// Table schemas applied by Migrate. Email uses CITEXT so lookups are
// case-insensitive at the database level. Votes carry a uniqueness
// constraint per (poll, voter) which backs the one-vote rule.
const (
	CitextExtension = `CREATE EXTENSION IF NOT EXISTS citext`

	UsersTableSchema = `CREATE TABLE IF NOT EXISTS users (
    id UUID PRIMARY KEY,
    email CITEXT UNIQUE NOT NULL,
    name TEXT NOT NULL,
    role TEXT NOT NULL DEFAULT 'voter',
    password_hash BYTEA NOT NULL,
    created_at TIMESTAMPTZ NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL
)`

	PollsTableSchema = `CREATE TABLE IF NOT EXISTS polls (
    id UUID PRIMARY KEY,
    owner_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
    question TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    closed BOOLEAN NOT NULL DEFAULT FALSE,
    closes_at TIMESTAMPTZ,
    created_at TIMESTAMPTZ NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL
)`

	PollOptionsTableSchema = `CREATE TABLE IF NOT EXISTS poll_options (
    id UUID PRIMARY KEY,
    poll_id UUID NOT NULL REFERENCES polls(id) ON DELETE CASCADE,
    label TEXT NOT NULL,
    votes INTEGER NOT NULL DEFAULT 0,
    position INTEGER NOT NULL DEFAULT 0
)`

	VotesTableSchema = `CREATE TABLE IF NOT EXISTS votes (
    id UUID PRIMARY KEY,
    poll_id UUID NOT NULL REFERENCES polls(id) ON DELETE CASCADE,
    option_id UUID NOT NULL REFERENCES poll_options(id) ON DELETE CASCADE,
    voter_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
    cast_at TIMESTAMPTZ NOT NULL,
    CONSTRAINT votes_one_per_voter UNIQUE (poll_id, voter_id)
)`

	PollsCreatedIndex = `CREATE INDEX IF NOT EXISTS idx_polls_created_at ON polls (created_at DESC)`
	PollOptionsIndex  = `CREATE INDEX IF NOT EXISTS idx_poll_options_poll ON poll_options (poll_id, position)`
	VotesPollIndex    = `CREATE INDEX IF NOT EXISTS idx_votes_poll ON votes (poll_id)`
)

// Migrate brings the database up to the schema the repositories expect.
func Migrate(ctx context.Context, db *sql.DB) error {
	return ApplyMigrations(ctx, db,
		CitextExtension,
		UsersTableSchema,
		PollsTableSchema,
		PollOptionsTableSchema,
		VotesTableSchema,
		PollsCreatedIndex,
		PollOptionsIndex,
		VotesPollIndex,
	)
}

// ApplyMigrations executes the provided SQL statements in order within the
// given context.
func ApplyMigrations(ctx context.Context, db *sql.DB, statements ...string) error {
	if db == nil {
		return fmt.Errorf("postgres: db is nil")
	}
	for _, stmt := range statements {
		if stmt == "" {
			continue
		}
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("postgres: migrate: %w", err)
		}
	}
	return nil
}
