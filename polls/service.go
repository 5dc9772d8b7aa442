package polls

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/EgejuruProsper/alx-polly-sub001/cache"
	"github.com/EgejuruProsper/alx-polly-sub001/metrics"
)

const (
	MinOptions = 2
	MaxOptions = 10

	overviewTTL = time.Minute
)

// Actor identifies the caller for authorization checks.
type Actor struct {
	ID    uuid.UUID
	Admin bool
}

// Broadcaster fans poll lifecycle events out to connected clients. Delivery
// is best effort; implementations must not block.
type Broadcaster interface {
	PollCreated(poll Poll)
	PollUpdated(poll Poll)
	PollDeleted(id uuid.UUID)
	VoteCast(poll Poll, vote Vote)
}

// NopBroadcaster discards every event.
type NopBroadcaster struct{}

func (NopBroadcaster) PollCreated(Poll)      {}
func (NopBroadcaster) PollUpdated(Poll)      {}
func (NopBroadcaster) PollDeleted(uuid.UUID) {}
func (NopBroadcaster) VoteCast(Poll, Vote)   {}

// Service orchestrates the repository, the domain cache, and realtime
// broadcasts. Reads go through the cache; every mutation commits to the
// repository first, then invalidates, then broadcasts, in that order.
type Service struct {
	repo      Repository
	cache     *Cache
	broadcast Broadcaster
	now       func() time.Time
}

// ServiceConfig wires dependencies for Service.
type ServiceConfig struct {
	Repository  Repository
	Cache       *Cache
	Broadcaster Broadcaster
	Now         func() time.Time
}

func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Repository == nil || cfg.Cache == nil {
		return nil, ErrInvalidInput
	}
	svc := &Service{
		repo:      cfg.Repository,
		cache:     cfg.Cache,
		broadcast: cfg.Broadcaster,
		now:       cfg.Now,
	}
	if svc.broadcast == nil {
		svc.broadcast = NopBroadcaster{}
	}
	if svc.now == nil {
		svc.now = time.Now
	}
	return svc, nil
}

// CreateInput carries the fields needed to open a new poll.
type CreateInput struct {
	Question    string
	Description string
	Options     []string
	ClosesAt    *time.Time
}

// Create validates the input, persists the poll, warms its cache entry, and
// invalidates every cached listing.
func (s *Service) Create(ctx context.Context, ownerID uuid.UUID, input CreateInput) (Poll, error) {
	if ownerID == uuid.Nil {
		return Poll{}, fmt.Errorf("%w: owner is required", ErrInvalidInput)
	}
	now := s.now()
	question := strings.TrimSpace(input.Question)
	if question == "" {
		return Poll{}, fmt.Errorf("%w: question is required", ErrInvalidInput)
	}
	if input.ClosesAt != nil && !input.ClosesAt.After(now) {
		return Poll{}, fmt.Errorf("%w: close time must be in the future", ErrInvalidInput)
	}
	options, err := buildOptions(input.Options)
	if err != nil {
		return Poll{}, err
	}

	poll := Poll{
		ID:          uuid.New(),
		OwnerID:     ownerID,
		Question:    question,
		Description: strings.TrimSpace(input.Description),
		Options:     options,
		ClosesAt:    input.ClosesAt,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.CreatePoll(ctx, poll); err != nil {
		return Poll{}, err
	}

	s.cache.SetPoll(ctx, poll)
	s.cache.InvalidatePollLists(ctx)
	s.broadcast.PollCreated(poll)
	metrics.PollsCreated.Inc()
	return poll, nil
}

// Get returns a single poll, serving from the cache when possible.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (Poll, error) {
	if poll, ok := s.cache.GetPoll(ctx, id); ok {
		return poll, nil
	}
	poll, err := s.repo.GetPoll(ctx, id)
	if err != nil {
		return Poll{}, err
	}
	s.cache.SetPoll(ctx, poll)
	return poll, nil
}

// List returns polls matching the filter, serving from the cache when the
// same filter was asked recently.
func (s *Service) List(ctx context.Context, filter Filter) ([]Poll, error) {
	filter = filter.withDefaults()
	if list, ok := s.cache.GetPolls(ctx, filter); ok {
		return list, nil
	}
	list, err := s.repo.ListPolls(ctx, filter)
	if err != nil {
		return nil, err
	}
	s.cache.SetPolls(ctx, filter, list)
	return list, nil
}

// UpdateInput carries the fields an owner may change. Nil fields are left
// untouched; a non-nil Options slice replaces the option set and resets
// tallies.
type UpdateInput struct {
	Question    *string
	Description *string
	Closed      *bool
	ClosesAt    *time.Time
	Options     []string
}

// Update applies the patch after checking the caller owns the poll or is an
// admin.
func (s *Service) Update(ctx context.Context, actor Actor, id uuid.UUID, input UpdateInput) (Poll, error) {
	poll, err := s.repo.GetPoll(ctx, id)
	if err != nil {
		return Poll{}, err
	}
	if err := authorize(actor, poll); err != nil {
		return Poll{}, err
	}

	now := s.now()
	if input.Question != nil {
		question := strings.TrimSpace(*input.Question)
		if question == "" {
			return Poll{}, fmt.Errorf("%w: question is required", ErrInvalidInput)
		}
		poll.Question = question
	}
	if input.Description != nil {
		poll.Description = strings.TrimSpace(*input.Description)
	}
	if input.Closed != nil {
		poll.Closed = *input.Closed
	}
	if input.ClosesAt != nil {
		if !input.ClosesAt.After(now) {
			return Poll{}, fmt.Errorf("%w: close time must be in the future", ErrInvalidInput)
		}
		closes := *input.ClosesAt
		poll.ClosesAt = &closes
	}
	if input.Options != nil {
		options, err := buildOptions(input.Options)
		if err != nil {
			return Poll{}, err
		}
		poll.Options = options
	}
	poll.UpdatedAt = now

	if err := s.repo.UpdatePoll(ctx, poll); err != nil {
		return Poll{}, err
	}

	s.cache.InvalidatePoll(ctx, id)
	s.broadcast.PollUpdated(poll)
	return poll, nil
}

// Delete removes the poll after an ownership check.
func (s *Service) Delete(ctx context.Context, actor Actor, id uuid.UUID) error {
	poll, err := s.repo.GetPoll(ctx, id)
	if err != nil {
		return err
	}
	if err := authorize(actor, poll); err != nil {
		return err
	}
	if err := s.repo.DeletePoll(ctx, id); err != nil {
		return err
	}

	s.cache.InvalidatePoll(ctx, id)
	s.broadcast.PollDeleted(id)
	return nil
}

// Vote casts a ballot. The option tally moves inside the repository
// transaction; afterwards the poll's cache entries are invalidated and the
// refreshed poll is broadcast.
func (s *Service) Vote(ctx context.Context, voterID, pollID, optionID uuid.UUID) (Poll, error) {
	if voterID == uuid.Nil {
		return Poll{}, fmt.Errorf("%w: voter is required", ErrInvalidInput)
	}
	poll, err := s.repo.GetPoll(ctx, pollID)
	if err != nil {
		return Poll{}, err
	}
	now := s.now()
	if !poll.AcceptingVotes(now) {
		return Poll{}, ErrPollClosed
	}
	if !poll.HasOption(optionID) {
		return Poll{}, ErrOptionNotFound
	}

	vote := Vote{
		ID:       uuid.New(),
		PollID:   pollID,
		OptionID: optionID,
		VoterID:  voterID,
		CastAt:   now,
	}
	if err := s.repo.CastVote(ctx, vote); err != nil {
		return Poll{}, err
	}

	s.cache.InvalidatePoll(ctx, pollID)
	updated, err := s.repo.GetPoll(ctx, pollID)
	if err != nil {
		// The vote landed; fall back to the pre-vote snapshot.
		updated = poll
	}
	s.broadcast.VoteCast(updated, vote)
	metrics.VotesCast.Inc()
	return updated, nil
}

// Overview returns the aggregate analytics snapshot, cached briefly under
// stats:overview.
func (s *Service) Overview(ctx context.Context) (Overview, error) {
	var overview Overview
	if s.cache.GetWithKey(ctx, "stats", "overview", &overview) {
		return overview, nil
	}
	overview, err := s.repo.Overview(ctx)
	if err != nil {
		return Overview{}, err
	}
	s.cache.SetWithKey(ctx, "stats", "overview", overview, overviewTTL)
	return overview, nil
}

// CacheHealth reports whether the cache backend answers.
func (s *Service) CacheHealth(ctx context.Context) error {
	return s.cache.Ping(ctx)
}

// CacheStats reports the cache backend's counters.
func (s *Service) CacheStats(ctx context.Context) (cache.Stats, error) {
	return s.cache.Stats(ctx)
}

func authorize(actor Actor, poll Poll) error {
	if actor.Admin || actor.ID == poll.OwnerID {
		return nil
	}
	return ErrForbidden
}

func buildOptions(labels []string) ([]Option, error) {
	if len(labels) < MinOptions || len(labels) > MaxOptions {
		return nil, fmt.Errorf("%w: polls need between %d and %d options", ErrInvalidInput, MinOptions, MaxOptions)
	}
	seen := make(map[string]struct{}, len(labels))
	options := make([]Option, 0, len(labels))
	for _, label := range labels {
		label = strings.TrimSpace(label)
		if label == "" {
			return nil, fmt.Errorf("%w: option labels cannot be empty", ErrInvalidInput)
		}
		if _, dup := seen[label]; dup {
			return nil, fmt.Errorf("%w: duplicate option %q", ErrInvalidInput, label)
		}
		seen[label] = struct{}{}
		options = append(options, Option{ID: uuid.New(), Label: label})
	}
	return options, nil
}
