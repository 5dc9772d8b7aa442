package postgres

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/EgejuruProsper/alx-polly-sub001/polls"
)

func seedUser(t *testing.T, repo *UserRepository, email string) uuid.UUID {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()

	user := newDBUser(email)
	if err := repo.CreateUser(ctx, user); err != nil {
		t.Fatalf("CreateUser() error = %v", err)
	}
	return user.ID
}

func newDBPoll(owner uuid.UUID, question string) polls.Poll {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return polls.Poll{
		ID:       uuid.New(),
		OwnerID:  owner,
		Question: question,
		Options: []polls.Option{
			{ID: uuid.New(), Label: "Yes"},
			{ID: uuid.New(), Label: "No"},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func listFilter(mutate func(*polls.Filter)) polls.Filter {
	f := polls.Filter{Sort: polls.SortNewest, Limit: 20}
	if mutate != nil {
		mutate(&f)
	}
	return f
}

func setupPollRepo(t *testing.T) (*PollRepository, *UserRepository) {
	t.Helper()
	db := openTestDB(t)
	ensureSchema(t, db)
	return NewPollRepository(db), NewUserRepository(db)
}

func TestPollRepositoryCRUD(t *testing.T) {
	repo, users := setupPollRepo(t)
	owner := seedUser(t, users, "owner@example.com")

	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()

	poll := newDBPoll(owner, "Ship on Fridays?")
	poll.Description = "Be honest."
	closesAt := time.Now().UTC().Add(48 * time.Hour).Truncate(time.Microsecond)
	poll.ClosesAt = &closesAt

	if err := repo.CreatePoll(ctx, poll); err != nil {
		t.Fatalf("CreatePoll() error = %v", err)
	}

	got, err := repo.GetPoll(ctx, poll.ID)
	if err != nil {
		t.Fatalf("GetPoll() error = %v", err)
	}
	if got.Question != poll.Question || got.Description != poll.Description {
		t.Fatalf("GetPoll() = %+v", got)
	}
	if got.ClosesAt == nil || !got.ClosesAt.Equal(closesAt) {
		t.Fatalf("ClosesAt = %v, want %v", got.ClosesAt, closesAt)
	}
	if len(got.Options) != 2 || got.Options[0].Label != "Yes" || got.Options[1].Label != "No" {
		t.Fatalf("Options = %+v", got.Options)
	}

	got.Question = "Ship on Mondays?"
	got.Closed = true
	got.UpdatedAt = time.Now().UTC().Truncate(time.Microsecond)
	if err := repo.UpdatePoll(ctx, got); err != nil {
		t.Fatalf("UpdatePoll() error = %v", err)
	}
	updated, err := repo.GetPoll(ctx, poll.ID)
	if err != nil {
		t.Fatalf("GetPoll() after update error = %v", err)
	}
	if updated.Question != "Ship on Mondays?" || !updated.Closed {
		t.Fatalf("GetPoll() after update = %+v", updated)
	}
	if len(updated.Options) != 2 {
		t.Fatalf("update must keep options, got %+v", updated.Options)
	}

	if err := repo.DeletePoll(ctx, poll.ID); err != nil {
		t.Fatalf("DeletePoll() error = %v", err)
	}
	if _, err := repo.GetPoll(ctx, poll.ID); !errors.Is(err, polls.ErrNotFound) {
		t.Fatalf("GetPoll() after delete = %v, want ErrNotFound", err)
	}
	if err := repo.DeletePoll(ctx, poll.ID); !errors.Is(err, polls.ErrNotFound) {
		t.Fatalf("second DeletePoll() = %v, want ErrNotFound", err)
	}
}

func TestPollRepositoryUpdatePreservesTallies(t *testing.T) {
	repo, users := setupPollRepo(t)
	owner := seedUser(t, users, "tally@example.com")
	voter := seedUser(t, users, "tally-voter@example.com")

	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()

	poll := newDBPoll(owner, "Keep the tally?")
	if err := repo.CreatePoll(ctx, poll); err != nil {
		t.Fatalf("CreatePoll() error = %v", err)
	}
	vote := polls.Vote{ID: uuid.New(), PollID: poll.ID, OptionID: poll.Options[0].ID, VoterID: voter, CastAt: time.Now().UTC()}
	if err := repo.CastVote(ctx, vote); err != nil {
		t.Fatalf("CastVote() error = %v", err)
	}

	// Updating with the same option ids must not reset votes.
	poll.Question = "Still keeping the tally?"
	if err := repo.UpdatePoll(ctx, poll); err != nil {
		t.Fatalf("UpdatePoll() error = %v", err)
	}
	got, err := repo.GetPoll(ctx, poll.ID)
	if err != nil {
		t.Fatalf("GetPoll() error = %v", err)
	}
	if got.Options[0].Votes != 1 {
		t.Fatalf("Votes = %d, want 1", got.Options[0].Votes)
	}

	// Replacing the option set drops the old rows and their votes.
	poll.Options = []polls.Option{
		{ID: uuid.New(), Label: "Fresh A"},
		{ID: uuid.New(), Label: "Fresh B"},
	}
	if err := repo.UpdatePoll(ctx, poll); err != nil {
		t.Fatalf("UpdatePoll() with new options error = %v", err)
	}
	replaced, err := repo.GetPoll(ctx, poll.ID)
	if err != nil {
		t.Fatalf("GetPoll() error = %v", err)
	}
	if replaced.TotalVotes() != 0 {
		t.Fatalf("TotalVotes = %d, want 0 after replacement", replaced.TotalVotes())
	}
	count, err := repo.CountVotes(ctx, poll.ID)
	if err != nil {
		t.Fatalf("CountVotes() error = %v", err)
	}
	if count != 0 {
		t.Fatalf("CountVotes() = %d, want 0", count)
	}
}

func TestPollRepositoryCastVote(t *testing.T) {
	repo, users := setupPollRepo(t)
	owner := seedUser(t, users, "vote-owner@example.com")
	voter := seedUser(t, users, "voter@example.com")

	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()

	poll := newDBPoll(owner, "Coffee or tea?")
	if err := repo.CreatePoll(ctx, poll); err != nil {
		t.Fatalf("CreatePoll() error = %v", err)
	}

	vote := polls.Vote{ID: uuid.New(), PollID: poll.ID, OptionID: poll.Options[0].ID, VoterID: voter, CastAt: time.Now().UTC()}
	if err := repo.CastVote(ctx, vote); err != nil {
		t.Fatalf("CastVote() error = %v", err)
	}

	got, err := repo.GetPoll(ctx, poll.ID)
	if err != nil {
		t.Fatalf("GetPoll() error = %v", err)
	}
	if got.Options[0].Votes != 1 || got.Options[1].Votes != 0 {
		t.Fatalf("tallies = %+v", got.Options)
	}

	dup := polls.Vote{ID: uuid.New(), PollID: poll.ID, OptionID: poll.Options[1].ID, VoterID: voter, CastAt: time.Now().UTC()}
	if err := repo.CastVote(ctx, dup); !errors.Is(err, polls.ErrAlreadyVoted) {
		t.Fatalf("CastVote() duplicate = %v, want ErrAlreadyVoted", err)
	}

	other := seedUser(t, users, "voter2@example.com")
	bad := polls.Vote{ID: uuid.New(), PollID: poll.ID, OptionID: uuid.New(), VoterID: other, CastAt: time.Now().UTC()}
	if err := repo.CastVote(ctx, bad); !errors.Is(err, polls.ErrOptionNotFound) {
		t.Fatalf("CastVote() unknown option = %v, want ErrOptionNotFound", err)
	}

	count, err := repo.CountVotes(ctx, poll.ID)
	if err != nil {
		t.Fatalf("CountVotes() error = %v", err)
	}
	if count != 1 {
		t.Fatalf("CountVotes() = %d, want 1", count)
	}
}

func TestPollRepositoryListFilters(t *testing.T) {
	repo, users := setupPollRepo(t)
	alice := seedUser(t, users, "alice@example.com")
	bob := seedUser(t, users, "bob@example.com")

	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()

	base := time.Now().UTC().Truncate(time.Microsecond)

	lunch := newDBPoll(alice, "Where should team lunch be?")
	lunch.CreatedAt = base.Add(-2 * time.Hour)
	standup := newDBPoll(alice, "Move standup earlier?")
	standup.CreatedAt = base.Add(-1 * time.Hour)
	retro := newDBPoll(bob, "Keep the retro format?")
	retro.CreatedAt = base
	retro.Closed = true

	for _, poll := range []polls.Poll{lunch, standup, retro} {
		if err := repo.CreatePoll(ctx, poll); err != nil {
			t.Fatalf("CreatePoll() error = %v", err)
		}
	}

	voter := seedUser(t, users, "filter-voter@example.com")
	vote := polls.Vote{ID: uuid.New(), PollID: lunch.ID, OptionID: lunch.Options[0].ID, VoterID: voter, CastAt: time.Now().UTC()}
	if err := repo.CastVote(ctx, vote); err != nil {
		t.Fatalf("CastVote() error = %v", err)
	}

	// Default listing skips closed polls and orders newest first.
	open, err := repo.ListPolls(ctx, listFilter(nil))
	if err != nil {
		t.Fatalf("ListPolls() error = %v", err)
	}
	if len(open) != 2 || open[0].ID != standup.ID || open[1].ID != lunch.ID {
		t.Fatalf("open listing = %v", pollIDs(open))
	}
	if len(open[1].Options) != 2 {
		t.Fatalf("listing must attach options, got %+v", open[1].Options)
	}

	all, err := repo.ListPolls(ctx, listFilter(func(f *polls.Filter) { f.IncludeClosed = true }))
	if err != nil {
		t.Fatalf("ListPolls() include closed error = %v", err)
	}
	if len(all) != 3 || all[0].ID != retro.ID {
		t.Fatalf("full listing = %v", pollIDs(all))
	}

	searched, err := repo.ListPolls(ctx, listFilter(func(f *polls.Filter) { f.Search = "lunch" }))
	if err != nil {
		t.Fatalf("ListPolls() search error = %v", err)
	}
	if len(searched) != 1 || searched[0].ID != lunch.ID {
		t.Fatalf("search listing = %v", pollIDs(searched))
	}

	owned, err := repo.ListPolls(ctx, listFilter(func(f *polls.Filter) {
		f.Owner = bob
		f.IncludeClosed = true
	}))
	if err != nil {
		t.Fatalf("ListPolls() owner error = %v", err)
	}
	if len(owned) != 1 || owned[0].ID != retro.ID {
		t.Fatalf("owner listing = %v", pollIDs(owned))
	}

	popular, err := repo.ListPolls(ctx, listFilter(func(f *polls.Filter) { f.Sort = polls.SortPopular }))
	if err != nil {
		t.Fatalf("ListPolls() popular error = %v", err)
	}
	if len(popular) != 2 || popular[0].ID != lunch.ID {
		t.Fatalf("popular listing = %v", pollIDs(popular))
	}

	paged, err := repo.ListPolls(ctx, listFilter(func(f *polls.Filter) {
		f.Limit = 1
		f.Offset = 1
	}))
	if err != nil {
		t.Fatalf("ListPolls() paged error = %v", err)
	}
	if len(paged) != 1 || paged[0].ID != lunch.ID {
		t.Fatalf("paged listing = %v", pollIDs(paged))
	}
}

func TestPollRepositoryOverview(t *testing.T) {
	repo, users := setupPollRepo(t)
	owner := seedUser(t, users, "ov-owner@example.com")

	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()

	empty, err := repo.Overview(ctx)
	if err != nil {
		t.Fatalf("Overview() on empty db error = %v", err)
	}
	if empty.TotalPolls != 0 || empty.TotalVotes != 0 {
		t.Fatalf("Overview() = %+v, want zeroes", empty)
	}

	first := newDBPoll(owner, "First?")
	second := newDBPoll(owner, "Second?")
	second.Closed = true
	for _, poll := range []polls.Poll{first, second} {
		if err := repo.CreatePoll(ctx, poll); err != nil {
			t.Fatalf("CreatePoll() error = %v", err)
		}
	}

	voter := seedUser(t, users, "ov-voter@example.com")
	vote := polls.Vote{ID: uuid.New(), PollID: first.ID, OptionID: first.Options[0].ID, VoterID: voter, CastAt: time.Now().UTC()}
	if err := repo.CastVote(ctx, vote); err != nil {
		t.Fatalf("CastVote() error = %v", err)
	}

	ov, err := repo.Overview(ctx)
	if err != nil {
		t.Fatalf("Overview() error = %v", err)
	}
	if ov.TotalPolls != 2 || ov.OpenPolls != 1 || ov.TotalVotes != 1 {
		t.Fatalf("Overview() = %+v", ov)
	}
	if ov.TopPollID != first.ID || ov.TopVotes != 1 {
		t.Fatalf("top poll = %v votes %d, want %v votes 1", ov.TopPollID, ov.TopVotes, first.ID)
	}
}

func pollIDs(list []polls.Poll) []string {
	out := make([]string, len(list))
	for i, poll := range list {
		out[i] = fmt.Sprintf("%s (%s)", poll.Question, poll.ID)
	}
	return out
}
