package realtime

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"

	"github.com/EgejuruProsper/alx-polly-sub001/httpx"
	"github.com/EgejuruProsper/alx-polly-sub001/polls"
)

// WebhookOptions configures a WebhookNotifier.
type WebhookOptions struct {
	// Endpoints receive a POST with the event envelope for every broadcast.
	Endpoints []string
	// Timeout bounds one delivery attempt.
	Timeout time.Duration
	// Retries is how many times a failed POST is retried.
	Retries int
	// MaxInFlight caps concurrent deliveries; beyond it events are dropped.
	MaxInFlight int64
	Logger      zerolog.Logger
	Now         func() time.Time
}

func (o WebhookOptions) withDefaults() WebhookOptions {
	if o.Timeout <= 0 {
		o.Timeout = 10 * time.Second
	}
	if o.Retries < 0 {
		o.Retries = 0
	}
	if o.MaxInFlight <= 0 {
		o.MaxInFlight = 16
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// WebhookNotifier POSTs event envelopes to configured endpoints. Delivery is
// asynchronous and best effort; failures are logged and never propagated.
type WebhookNotifier struct {
	endpoints []string
	client    *httpx.Client
	sem       *semaphore.Weighted
	budget    time.Duration
	log       zerolog.Logger
	now       func() time.Time
}

func NewWebhookNotifier(opts WebhookOptions) *WebhookNotifier {
	opts = opts.withDefaults()
	retryWait := time.Second
	return &WebhookNotifier{
		endpoints: append([]string(nil), opts.Endpoints...),
		client: httpx.NewClient(
			httpx.WithClientTimeout(opts.Timeout),
			httpx.WithRetries(opts.Retries, retryWait),
		),
		sem:    semaphore.NewWeighted(opts.MaxInFlight),
		budget: opts.Timeout*time.Duration(opts.Retries+1) + retryWait*time.Duration(opts.Retries),
		log:    opts.Logger,
		now:    opts.Now,
	}
}

func (w *WebhookNotifier) deliver(evt Event) {
	if len(w.endpoints) == 0 {
		return
	}
	evt.At = w.now()
	for _, endpoint := range w.endpoints {
		if !w.sem.TryAcquire(1) {
			w.log.Warn().Str("endpoint", endpoint).Str("event", evt.Type).Msg("webhook deliveries saturated, event dropped")
			continue
		}
		go func(endpoint string) {
			defer w.sem.Release(1)
			ctx, cancel := context.WithTimeout(context.Background(), w.budget)
			defer cancel()
			if _, err := w.client.Post(ctx, endpoint, evt, nil); err != nil {
				w.log.Warn().Err(err).Str("endpoint", endpoint).Str("event", evt.Type).Msg("webhook delivery failed")
				return
			}
			w.log.Debug().Str("endpoint", endpoint).Str("event", evt.Type).Msg("webhook delivered")
		}(endpoint)
	}
}

// PollCreated implements polls.Broadcaster.
func (w *WebhookNotifier) PollCreated(poll polls.Poll) {
	w.deliver(Event{Type: EventPollCreated, PollID: poll.ID, Poll: &poll})
}

// PollUpdated implements polls.Broadcaster.
func (w *WebhookNotifier) PollUpdated(poll polls.Poll) {
	w.deliver(Event{Type: EventPollUpdated, PollID: poll.ID, Poll: &poll})
}

// PollDeleted implements polls.Broadcaster.
func (w *WebhookNotifier) PollDeleted(id uuid.UUID) {
	w.deliver(Event{Type: EventPollDeleted, PollID: id})
}

// VoteCast implements polls.Broadcaster.
func (w *WebhookNotifier) VoteCast(poll polls.Poll, vote polls.Vote) {
	w.deliver(Event{Type: EventVoteCast, PollID: poll.ID, Poll: &poll, Vote: &vote})
}
