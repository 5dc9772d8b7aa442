package polls

import (
	"context"
	"errors"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound       = errors.New("polls: poll not found")
	ErrOptionNotFound = errors.New("polls: option not found")
	ErrAlreadyVoted   = errors.New("polls: voter already cast a ballot")
	ErrPollClosed     = errors.New("polls: poll is closed")
	ErrForbidden      = errors.New("polls: caller may not modify this poll")
	ErrInvalidInput   = errors.New("polls: invalid input")
)

// Poll is a question with a fixed set of answer options.
type Poll struct {
	ID          uuid.UUID  `json:"id"`
	OwnerID     uuid.UUID  `json:"ownerId"`
	Question    string     `json:"question"`
	Description string     `json:"description,omitempty"`
	Options     []Option   `json:"options"`
	Closed      bool       `json:"closed"`
	ClosesAt    *time.Time `json:"closesAt,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// Option is one selectable answer with its running tally.
type Option struct {
	ID    uuid.UUID `json:"id"`
	Label string    `json:"label"`
	Votes int       `json:"votes"`
}

// Vote records one ballot. A voter gets exactly one per poll.
type Vote struct {
	ID       uuid.UUID `json:"id"`
	PollID   uuid.UUID `json:"pollId"`
	OptionID uuid.UUID `json:"optionId"`
	VoterID  uuid.UUID `json:"voterId"`
	CastAt   time.Time `json:"castAt"`
}

// Overview is the aggregate snapshot served by the analytics endpoint.
type Overview struct {
	TotalPolls  int       `json:"totalPolls"`
	OpenPolls   int       `json:"openPolls"`
	TotalVotes  int       `json:"totalVotes"`
	TopPollID   uuid.UUID `json:"topPollId,omitempty"`
	TopQuestion string    `json:"topQuestion,omitempty"`
	TopVotes    int       `json:"topVotes"`
}

// TotalVotes sums the option tallies.
func (p Poll) TotalVotes() int {
	total := 0
	for _, opt := range p.Options {
		total += opt.Votes
	}
	return total
}

// AcceptingVotes reports whether a ballot cast at the given instant counts.
func (p Poll) AcceptingVotes(at time.Time) bool {
	if p.Closed {
		return false
	}
	if p.ClosesAt != nil && at.After(*p.ClosesAt) {
		return false
	}
	return true
}

// HasOption reports whether id names one of the poll's options.
func (p Poll) HasOption(id uuid.UUID) bool {
	for _, opt := range p.Options {
		if opt.ID == id {
			return true
		}
	}
	return false
}

// Sort orders accepted by Filter.
const (
	SortNewest  = "newest"
	SortOldest  = "oldest"
	SortPopular = "popular"
)

// Filter narrows and orders a poll listing.
type Filter struct {
	Search        string
	Owner         uuid.UUID
	Sort          string
	Limit         int
	Offset        int
	IncludeClosed bool
}

func (f Filter) withDefaults() Filter {
	switch f.Sort {
	case SortNewest, SortOldest, SortPopular:
	default:
		f.Sort = SortNewest
	}
	if f.Limit <= 0 {
		f.Limit = 20
	}
	if f.Limit > 100 {
		f.Limit = 100
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return f
}

// CacheKey renders the filter as a canonical cache key under the "polls:"
// namespace. Fields are emitted in sorted name order, so two filters that
// compare equal always produce the same key regardless of how they were
// assembled.
func (f Filter) CacheKey() string {
	f = f.withDefaults()

	fields := map[string]string{
		"sort":  f.Sort,
		"limit": strconv.Itoa(f.Limit),
	}
	if f.Search != "" {
		fields["search"] = f.Search
	}
	if f.Owner != uuid.Nil {
		fields["owner"] = f.Owner.String()
	}
	if f.Offset > 0 {
		fields["offset"] = strconv.Itoa(f.Offset)
	}
	if f.IncludeClosed {
		fields["closed"] = "true"
	}

	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, name+"="+url.QueryEscape(fields[name]))
	}
	return "polls:" + strings.Join(parts, "&")
}

// Repository abstracts poll persistence so callers can map to any table
// schema.
type Repository interface {
	CreatePoll(ctx context.Context, poll Poll) error
	GetPoll(ctx context.Context, id uuid.UUID) (Poll, error)
	ListPolls(ctx context.Context, filter Filter) ([]Poll, error)
	UpdatePoll(ctx context.Context, poll Poll) error
	DeletePoll(ctx context.Context, id uuid.UUID) error
	CastVote(ctx context.Context, vote Vote) error
	CountVotes(ctx context.Context, pollID uuid.UUID) (int, error)
	Overview(ctx context.Context) (Overview, error)
}

