// Package api mounts the HTTP surface of the polling service: account and
// session routes, the poll CRUD and voting routes, the analytics overview,
// and the admin surface. Handlers stay thin; they bind and validate the
// request, call the matching service method, and map domain errors onto
// status codes.
package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/EgejuruProsper/alx-polly-sub001/auth"
	"github.com/EgejuruProsper/alx-polly-sub001/httpx"
	"github.com/EgejuruProsper/alx-polly-sub001/polls"
)

var ErrMissingDependency = errors.New("api: missing dependency")

// Config wires the services the HTTP surface fronts.
type Config struct {
	Polls *polls.Service
	Users *auth.Service
	// Auth verifies bearer tokens on protected routes.
	Auth *auth.Middleware
	// WS serves the realtime socket on GET /ws. Optional; nil leaves the
	// route unmounted.
	WS     http.Handler
	Logger zerolog.Logger
}

// Handlers holds the bound route handlers.
type Handlers struct {
	polls *polls.Service
	users *auth.Service
	authn httpx.MiddlewareFunc
	ws    http.Handler
	log   zerolog.Logger
}

// NewHandlers validates the config and returns the route handlers.
func NewHandlers(cfg Config) (*Handlers, error) {
	if cfg.Polls == nil {
		return nil, fmt.Errorf("%w: polls service", ErrMissingDependency)
	}
	if cfg.Users == nil {
		return nil, fmt.Errorf("%w: user service", ErrMissingDependency)
	}
	if cfg.Auth == nil {
		return nil, fmt.Errorf("%w: auth middleware", ErrMissingDependency)
	}
	return &Handlers{
		polls: cfg.Polls,
		users: cfg.Users,
		authn: httpx.AuthMiddleware(cfg.Auth),
		ws:    cfg.WS,
		log:   cfg.Logger,
	}, nil
}

// Register mounts every route. Reads are public; mutations require a bearer
// token; the admin surface additionally requires the admin role.
func (h *Handlers) Register(e *httpx.Echo) {
	e.GET("/healthz", h.health)
	e.GET("/metrics", httpx.WrapHandler(promhttp.Handler()))
	if h.ws != nil {
		e.GET("/ws", httpx.WrapHandler(h.ws))
	}

	api := httpx.NewRouter(e, "/api")

	api.POST("/auth/register", h.register)
	api.POST("/auth/login", h.login)
	api.POST("/auth/logout", h.logout, h.authn)
	api.GET("/auth/me", h.me, h.authn)

	api.GET("/polls", h.listPolls)
	api.GET("/polls/:id", h.getPoll)
	api.POST("/polls", h.createPoll, h.authn)
	api.PUT("/polls/:id", h.updatePoll, h.authn)
	api.DELETE("/polls/:id", h.deletePoll, h.authn)
	api.POST("/polls/:id/vote", h.vote, h.authn)

	api.GET("/analytics/overview", h.overview)
	api.GET("/cache/stats", h.cacheStats, h.authn, httpx.RequireRole(auth.RoleAdmin))

	admin := api.Group("/admin", h.authn, httpx.RequireRole(auth.RoleAdmin))
	admin.GET("/users", h.listUsers)
	admin.PUT("/users/:id/role", h.updateRole)
}

func domainStatus(err error) int {
	switch {
	case errors.Is(err, polls.ErrNotFound), errors.Is(err, auth.ErrNotFound):
		return httpx.StatusNotFound
	case errors.Is(err, polls.ErrForbidden):
		return httpx.StatusForbidden
	case errors.Is(err, polls.ErrAlreadyVoted),
		errors.Is(err, polls.ErrPollClosed),
		errors.Is(err, auth.ErrEmailTaken):
		return httpx.StatusConflict
	case errors.Is(err, polls.ErrOptionNotFound):
		return httpx.StatusUnprocessableEntity
	case errors.Is(err, polls.ErrInvalidInput), errors.Is(err, auth.ErrInvalidInput):
		return httpx.StatusBadRequest
	case errors.Is(err, auth.ErrInvalidCredentials),
		errors.Is(err, auth.ErrTokenInvalid),
		errors.Is(err, auth.ErrTokenRevoked):
		return httpx.StatusUnauthorized
	default:
		return httpx.StatusInternalError
	}
}

// domainError translates a service error into an HTTP error. Unknown errors
// are logged and masked with a generic message.
func (h *Handlers) domainError(c httpx.Context, err error) error {
	status := domainStatus(err)
	if status == httpx.StatusInternalError {
		h.log.Error().Err(err).Str("path", c.Path()).Msg("request failed")
		return httpx.HTTPError(status, "internal error")
	}
	return httpx.HTTPError(status, err.Error())
}

// currentIdentity reads the verified identity the auth middleware attached.
func currentIdentity(c httpx.Context) (auth.Identity, error) {
	identity, ok := auth.IdentityFromContext(c.Request().Context())
	if !ok {
		return auth.Identity{}, httpx.HTTPError(httpx.StatusUnauthorized, "authentication required")
	}
	return identity, nil
}

func pathID(c httpx.Context, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		return uuid.Nil, httpx.HTTPError(httpx.StatusBadRequest, "invalid "+name)
	}
	return id, nil
}
