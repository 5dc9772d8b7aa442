package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/EgejuruProsper/alx-polly-sub001/polls"
)

// PollRepository persists polls, their options, and votes.
type PollRepository struct {
	db *sql.DB
}

// NewPollRepository wraps an existing *sql.DB connection.
func NewPollRepository(db *sql.DB) *PollRepository {
	return &PollRepository{db: db}
}

const pollColumns = `id, owner_id, question, description, closed, closes_at, created_at, updated_at`

// insertOption upserts so UpdatePoll can reuse it: existing rows keep their
// vote tally, only label and position follow the update.
const insertOption = `INSERT INTO poll_options (id, poll_id, label, votes, position) VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (id) DO UPDATE SET label = EXCLUDED.label, position = EXCLUDED.position`

func (r *PollRepository) CreatePoll(ctx context.Context, poll polls.Poll) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("postgres: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	const query = `INSERT INTO polls (` + pollColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	if _, err := tx.ExecContext(ctx, query,
		poll.ID, poll.OwnerID, poll.Question, poll.Description, poll.Closed, poll.ClosesAt, poll.CreatedAt, poll.UpdatedAt); err != nil {
		return translatePollError(err)
	}
	if err := upsertOptions(ctx, tx, poll.ID, poll.Options); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("postgres: commit: %w", err)
	}
	return nil
}

func (r *PollRepository) GetPoll(ctx context.Context, id uuid.UUID) (polls.Poll, error) {
	const query = `SELECT ` + pollColumns + ` FROM polls WHERE id = $1`
	poll, err := scanPoll(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		return polls.Poll{}, err
	}

	byPoll, err := r.loadOptions(ctx, []uuid.UUID{id})
	if err != nil {
		return polls.Poll{}, err
	}
	poll.Options = byPoll[id]
	return poll, nil
}

func (r *PollRepository) ListPolls(ctx context.Context, filter polls.Filter) ([]polls.Poll, error) {
	var (
		conds []string
		args  []any
	)
	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		conds = append(conds, fmt.Sprintf("question ILIKE $%d", len(args)))
	}
	if filter.Owner != uuid.Nil {
		args = append(args, filter.Owner)
		conds = append(conds, fmt.Sprintf("owner_id = $%d", len(args)))
	}
	if !filter.IncludeClosed {
		conds = append(conds, "closed = FALSE AND (closes_at IS NULL OR closes_at > NOW())")
	}

	query := `SELECT ` + pollColumns + ` FROM polls`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	switch filter.Sort {
	case polls.SortOldest:
		query += " ORDER BY created_at ASC, id"
	case polls.SortPopular:
		query += " ORDER BY (SELECT COALESCE(SUM(votes), 0) FROM poll_options o WHERE o.poll_id = polls.id) DESC, created_at DESC"
	default:
		query += " ORDER BY created_at DESC, id"
	}
	args = append(args, filter.Limit)
	query += fmt.Sprintf(" LIMIT $%d", len(args))
	args = append(args, filter.Offset)
	query += fmt.Sprintf(" OFFSET $%d", len(args))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, translatePollError(err)
	}
	defer rows.Close()

	out := make([]polls.Poll, 0, filter.Limit)
	var ids []uuid.UUID
	for rows.Next() {
		poll, err := scanPoll(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, poll)
		ids = append(ids, poll.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, translatePollError(err)
	}
	if len(out) == 0 {
		return out, nil
	}

	byPoll, err := r.loadOptions(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range out {
		out[i].Options = byPoll[out[i].ID]
	}
	return out, nil
}

func (r *PollRepository) UpdatePoll(ctx context.Context, poll polls.Poll) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("postgres: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	const query = `UPDATE polls SET question = $2, description = $3, closed = $4, closes_at = $5, updated_at = $6 WHERE id = $1`
	res, err := tx.ExecContext(ctx, query,
		poll.ID, poll.Question, poll.Description, poll.Closed, poll.ClosesAt, poll.UpdatedAt)
	if err != nil {
		return translatePollError(err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return polls.ErrNotFound
	}

	if err := upsertOptions(ctx, tx, poll.ID, poll.Options); err != nil {
		return err
	}
	// Prune options dropped by the update. Their votes cascade away.
	kept := make([]string, len(poll.Options))
	for i, opt := range poll.Options {
		kept[i] = opt.ID.String()
	}
	const prune = `DELETE FROM poll_options WHERE poll_id = $1 AND NOT (id = ANY($2::uuid[]))`
	if _, err := tx.ExecContext(ctx, prune, poll.ID, pq.Array(kept)); err != nil {
		return translatePollError(err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("postgres: commit: %w", err)
	}
	return nil
}

func (r *PollRepository) DeletePoll(ctx context.Context, id uuid.UUID) error {
	const query = `DELETE FROM polls WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return translatePollError(err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return polls.ErrNotFound
	}
	return nil
}

// CastVote records the ballot and bumps the option tally in one transaction.
// The votes_one_per_voter constraint turns a second ballot from the same
// voter into ErrAlreadyVoted.
func (r *PollRepository) CastVote(ctx context.Context, vote polls.Vote) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("postgres: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	const insert = `INSERT INTO votes (id, poll_id, option_id, voter_id, cast_at) VALUES ($1, $2, $3, $4, $5)`
	if _, err := tx.ExecContext(ctx, insert,
		vote.ID, vote.PollID, vote.OptionID, vote.VoterID, vote.CastAt); err != nil {
		return translatePollError(err)
	}

	const tally = `UPDATE poll_options SET votes = votes + 1 WHERE id = $1 AND poll_id = $2`
	res, err := tx.ExecContext(ctx, tally, vote.OptionID, vote.PollID)
	if err != nil {
		return translatePollError(err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return polls.ErrOptionNotFound
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("postgres: commit: %w", err)
	}
	return nil
}

func (r *PollRepository) CountVotes(ctx context.Context, pollID uuid.UUID) (int, error) {
	const query = `SELECT COUNT(*) FROM votes WHERE poll_id = $1`
	var count int
	if err := r.db.QueryRowContext(ctx, query, pollID).Scan(&count); err != nil {
		return 0, translatePollError(err)
	}
	return count, nil
}

func (r *PollRepository) Overview(ctx context.Context) (polls.Overview, error) {
	const counts = `SELECT
    (SELECT COUNT(*) FROM polls),
    (SELECT COUNT(*) FROM polls WHERE closed = FALSE AND (closes_at IS NULL OR closes_at > NOW())),
    (SELECT COUNT(*) FROM votes)`

	var ov polls.Overview
	if err := r.db.QueryRowContext(ctx, counts).Scan(&ov.TotalPolls, &ov.OpenPolls, &ov.TotalVotes); err != nil {
		return polls.Overview{}, translatePollError(err)
	}

	const top = `SELECT p.id, p.question, COALESCE(SUM(o.votes), 0) AS tally
FROM polls p
LEFT JOIN poll_options o ON o.poll_id = p.id
GROUP BY p.id, p.question
ORDER BY tally DESC, MAX(p.created_at) DESC
LIMIT 1`
	err := r.db.QueryRowContext(ctx, top).Scan(&ov.TopPollID, &ov.TopQuestion, &ov.TopVotes)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return polls.Overview{}, translatePollError(err)
	}
	return ov, nil
}

func upsertOptions(ctx context.Context, tx *sql.Tx, pollID uuid.UUID, options []polls.Option) error {
	for i, opt := range options {
		if _, err := tx.ExecContext(ctx, insertOption, opt.ID, pollID, opt.Label, opt.Votes, i); err != nil {
			return translatePollError(err)
		}
	}
	return nil
}

func (r *PollRepository) loadOptions(ctx context.Context, pollIDs []uuid.UUID) (map[uuid.UUID][]polls.Option, error) {
	ids := make([]string, len(pollIDs))
	for i, id := range pollIDs {
		ids[i] = id.String()
	}

	const query = `SELECT id, poll_id, label, votes FROM poll_options WHERE poll_id = ANY($1::uuid[]) ORDER BY poll_id, position`
	rows, err := r.db.QueryContext(ctx, query, pq.Array(ids))
	if err != nil {
		return nil, translatePollError(err)
	}
	defer rows.Close()

	byPoll := make(map[uuid.UUID][]polls.Option, len(pollIDs))
	for rows.Next() {
		var (
			opt    polls.Option
			pollID uuid.UUID
		)
		if err := rows.Scan(&opt.ID, &pollID, &opt.Label, &opt.Votes); err != nil {
			return nil, translatePollError(err)
		}
		byPoll[pollID] = append(byPoll[pollID], opt)
	}
	if err := rows.Err(); err != nil {
		return nil, translatePollError(err)
	}
	return byPoll, nil
}

func scanPoll(row scanner) (polls.Poll, error) {
	var (
		poll     polls.Poll
		closesAt sql.NullTime
	)
	err := row.Scan(&poll.ID, &poll.OwnerID, &poll.Question, &poll.Description, &poll.Closed, &closesAt, &poll.CreatedAt, &poll.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return polls.Poll{}, polls.ErrNotFound
		}
		return polls.Poll{}, translatePollError(err)
	}
	if closesAt.Valid {
		t := closesAt.Time
		poll.ClosesAt = &t
	}
	return poll, nil
}

func translatePollError(err error) error {
	if err == nil {
		return nil
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "23505":
			if pqErr.Constraint == "votes_one_per_voter" {
				return polls.ErrAlreadyVoted
			}
		case "23503":
			if strings.Contains(pqErr.Constraint, "option") {
				return polls.ErrOptionNotFound
			}
			return polls.ErrNotFound
		case "22P02":
			return polls.ErrNotFound
		}
	}
	return err
}
