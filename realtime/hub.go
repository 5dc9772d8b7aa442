package realtime

import (
	"context"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/EgejuruProsper/alx-polly-sub001/metrics"
	"github.com/EgejuruProsper/alx-polly-sub001/polls"
)

// HubOptions configures a Hub. The zero value is usable.
type HubOptions struct {
	// SendBuffer is the per-client outbound queue. A client whose queue is
	// full misses events rather than stalling the hub.
	SendBuffer int
	// EventBuffer is the hub's intake queue shared by all publishers.
	EventBuffer int
	// CheckOrigin overrides the upgrader's origin check. Nil keeps gorilla's
	// same-origin default.
	CheckOrigin func(*http.Request) bool
	Logger      zerolog.Logger
	Now         func() time.Time
}

func (o HubOptions) withDefaults() HubOptions {
	if o.SendBuffer <= 0 {
		o.SendBuffer = 64
	}
	if o.EventBuffer <= 0 {
		o.EventBuffer = 256
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// Hub tracks connected websocket clients and fans events out to them.
// Run owns the client set; Handler and the publish methods are safe to call
// from any goroutine while Run is active.
type Hub struct {
	upgrader   websocket.Upgrader
	sendBuffer int

	clients    map[*client]struct{}
	register   chan *client
	unregister chan *client
	events     chan Event
	done       chan struct{}
	connected  atomic.Int64

	log zerolog.Logger
	now func() time.Time
}

func NewHub(opts HubOptions) *Hub {
	opts = opts.withDefaults()
	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:   1024,
			WriteBufferSize:  1024,
			HandshakeTimeout: 10 * time.Second,
			CheckOrigin:      opts.CheckOrigin,
		},
		sendBuffer: opts.SendBuffer,
		clients:    make(map[*client]struct{}),
		register:   make(chan *client),
		unregister: make(chan *client),
		events:     make(chan Event, opts.EventBuffer),
		done:       make(chan struct{}),
		log:        opts.Logger,
		now:        opts.Now,
	}
}

// Run serves the hub until ctx is cancelled, then disconnects every client.
func (h *Hub) Run(ctx context.Context) error {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return ctx.Err()
		case c := <-h.register:
			h.clients[c] = struct{}{}
			h.connected.Store(int64(len(h.clients)))
			metrics.WebsocketClients.Set(float64(len(h.clients)))
			h.log.Debug().Int("clients", len(h.clients)).Msg("websocket client connected")
		case c := <-h.unregister:
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
				h.connected.Store(int64(len(h.clients)))
				metrics.WebsocketClients.Set(float64(len(h.clients)))
				h.log.Debug().Int("clients", len(h.clients)).Msg("websocket client disconnected")
			}
		case evt := <-h.events:
			h.fanout(evt)
		}
	}
}

// Handler upgrades requests to websocket connections and attaches them to the
// hub. Run must be active for connections to be accepted.
func (h *Hub) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := h.upgrader.Upgrade(w, r, nil)
		if err != nil {
			h.log.Warn().Err(err).Msg("websocket upgrade failed")
			return
		}
		c := newClient(h, conn, h.sendBuffer)
		select {
		case h.register <- c:
			c.start()
		case <-h.done:
			_ = conn.Close()
		}
	})
}

// ClientCount reports the number of connected clients.
func (h *Hub) ClientCount() int {
	return int(h.connected.Load())
}

func (h *Hub) fanout(evt Event) {
	for c := range h.clients {
		select {
		case c.send <- evt:
		default:
			metrics.WebsocketDropped.Inc()
			h.log.Warn().Str("event", evt.Type).Msg("websocket client lagging, event dropped")
		}
	}
}

func (h *Hub) closeAll() {
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
	}
	h.connected.Store(0)
	metrics.WebsocketClients.Set(0)
	h.log.Info().Msg("websocket hub stopped")
}

func (h *Hub) publish(evt Event) {
	evt.At = h.now()
	select {
	case h.events <- evt:
	default:
		metrics.WebsocketDropped.Inc()
		h.log.Warn().Str("event", evt.Type).Msg("event queue full, event dropped")
	}
}

// PollCreated implements polls.Broadcaster.
func (h *Hub) PollCreated(poll polls.Poll) {
	h.publish(Event{Type: EventPollCreated, PollID: poll.ID, Poll: &poll})
}

// PollUpdated implements polls.Broadcaster.
func (h *Hub) PollUpdated(poll polls.Poll) {
	h.publish(Event{Type: EventPollUpdated, PollID: poll.ID, Poll: &poll})
}

// PollDeleted implements polls.Broadcaster.
func (h *Hub) PollDeleted(id uuid.UUID) {
	h.publish(Event{Type: EventPollDeleted, PollID: id})
}

// VoteCast implements polls.Broadcaster.
func (h *Hub) VoteCast(poll polls.Poll, vote polls.Vote) {
	h.publish(Event{Type: EventVoteCast, PollID: poll.ID, Poll: &poll, Vote: &vote})
}
