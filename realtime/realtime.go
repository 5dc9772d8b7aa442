// Package realtime fans poll lifecycle events out to websocket clients and
// webhook endpoints. The Hub and the WebhookNotifier both implement
// polls.Broadcaster; Fanout combines them so the service publishes once.
package realtime

import (
	"time"

	"github.com/google/uuid"

	"github.com/EgejuruProsper/alx-polly-sub001/polls"
)

// Event types carried in the envelope's "type" field.
const (
	EventPollCreated = "poll.created"
	EventPollUpdated = "poll.updated"
	EventPollDeleted = "poll.deleted"
	EventVoteCast    = "vote.cast"
)

// Event is the envelope delivered to websocket clients and webhooks.
type Event struct {
	Type   string      `json:"type"`
	At     time.Time   `json:"at"`
	PollID uuid.UUID   `json:"pollId"`
	Poll   *polls.Poll `json:"poll,omitempty"`
	Vote   *polls.Vote `json:"vote,omitempty"`
}

// Fanout relays every event to each broadcaster in order.
type Fanout []polls.Broadcaster

func (f Fanout) PollCreated(poll polls.Poll) {
	for _, b := range f {
		b.PollCreated(poll)
	}
}

func (f Fanout) PollUpdated(poll polls.Poll) {
	for _, b := range f {
		b.PollUpdated(poll)
	}
}

func (f Fanout) PollDeleted(id uuid.UUID) {
	for _, b := range f {
		b.PollDeleted(id)
	}
}

func (f Fanout) VoteCast(poll polls.Poll, vote polls.Vote) {
	for _, b := range f {
		b.VoteCast(poll, vote)
	}
}
