package api

import (
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/EgejuruProsper/alx-polly-sub001/auth"
	"github.com/EgejuruProsper/alx-polly-sub001/httpx"
	"github.com/EgejuruProsper/alx-polly-sub001/polls"
)

type createPollRequest struct {
	Question    string     `json:"question" validate:"required,max=500"`
	Description string     `json:"description" validate:"max=2000"`
	Options     []string   `json:"options" validate:"required,min=2,max=10,dive,required,max=200"`
	ClosesAt    *time.Time `json:"closesAt"`
}

// updatePollRequest is a patch: nil fields keep their current value.
type updatePollRequest struct {
	Question    *string    `json:"question" validate:"omitempty,max=500"`
	Description *string    `json:"description" validate:"omitempty,max=2000"`
	Closed      *bool      `json:"closed"`
	ClosesAt    *time.Time `json:"closesAt"`
	Options     []string   `json:"options" validate:"omitempty,min=2,max=10,dive,required,max=200"`
}

type voteRequest struct {
	OptionID uuid.UUID `json:"optionId" validate:"required"`
}

type pollListResponse struct {
	Polls []polls.Poll `json:"polls"`
	Count int          `json:"count"`
}

func (h *Handlers) listPolls(c httpx.Context) error {
	filter, err := parseFilter(c)
	if err != nil {
		return err
	}
	list, err := h.polls.List(c.Request().Context(), filter)
	if err != nil {
		return h.domainError(c, err)
	}
	return c.JSON(httpx.StatusOK, pollListResponse{Polls: list, Count: len(list)})
}

func (h *Handlers) getPoll(c httpx.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	poll, err := h.polls.Get(c.Request().Context(), id)
	if err != nil {
		return h.domainError(c, err)
	}
	return c.JSON(httpx.StatusOK, poll)
}

func (h *Handlers) createPoll(c httpx.Context) error {
	identity, err := currentIdentity(c)
	if err != nil {
		return err
	}
	var req createPollRequest
	if err := c.Bind(&req); err != nil {
		return httpx.HTTPError(httpx.StatusBadRequest, "invalid body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	poll, err := h.polls.Create(c.Request().Context(), identity.UserID, polls.CreateInput{
		Question:    req.Question,
		Description: req.Description,
		Options:     req.Options,
		ClosesAt:    req.ClosesAt,
	})
	if err != nil {
		return h.domainError(c, err)
	}
	return c.JSON(httpx.StatusCreated, poll)
}

func (h *Handlers) updatePoll(c httpx.Context) error {
	identity, err := currentIdentity(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	var req updatePollRequest
	if err := c.Bind(&req); err != nil {
		return httpx.HTTPError(httpx.StatusBadRequest, "invalid body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	poll, err := h.polls.Update(c.Request().Context(), actorOf(identity), id, polls.UpdateInput{
		Question:    req.Question,
		Description: req.Description,
		Closed:      req.Closed,
		ClosesAt:    req.ClosesAt,
		Options:     req.Options,
	})
	if err != nil {
		return h.domainError(c, err)
	}
	return c.JSON(httpx.StatusOK, poll)
}

func (h *Handlers) deletePoll(c httpx.Context) error {
	identity, err := currentIdentity(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	if err := h.polls.Delete(c.Request().Context(), actorOf(identity), id); err != nil {
		return h.domainError(c, err)
	}
	return c.NoContent(httpx.StatusNoContent)
}

func (h *Handlers) vote(c httpx.Context) error {
	identity, err := currentIdentity(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	var req voteRequest
	if err := c.Bind(&req); err != nil {
		return httpx.HTTPError(httpx.StatusBadRequest, "invalid body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	poll, err := h.polls.Vote(c.Request().Context(), identity.UserID, id, req.OptionID)
	if err != nil {
		return h.domainError(c, err)
	}
	return c.JSON(httpx.StatusOK, poll)
}

func actorOf(identity auth.Identity) polls.Actor {
	return polls.Actor{ID: identity.UserID, Admin: identity.Admin()}
}

func parseFilter(c httpx.Context) (polls.Filter, error) {
	filter := polls.Filter{
		Search: strings.TrimSpace(c.QueryParam("search")),
		Sort:   c.QueryParam("sort"),
	}
	if raw := c.QueryParam("owner"); raw != "" {
		owner, err := uuid.Parse(raw)
		if err != nil {
			return polls.Filter{}, httpx.HTTPError(httpx.StatusBadRequest, "invalid owner")
		}
		filter.Owner = owner
	}
	var err error
	if filter.Limit, err = intQuery(c, "limit", 0); err != nil {
		return polls.Filter{}, err
	}
	if filter.Offset, err = intQuery(c, "offset", 0); err != nil {
		return polls.Filter{}, err
	}
	if raw := c.QueryParam("includeClosed"); raw != "" {
		include, parseErr := strconv.ParseBool(raw)
		if parseErr != nil {
			return polls.Filter{}, httpx.HTTPError(httpx.StatusBadRequest, "invalid includeClosed")
		}
		filter.IncludeClosed = include
	}
	return filter, nil
}

func intQuery(c httpx.Context, name string, fallback int) (int, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, httpx.HTTPError(httpx.StatusBadRequest, "invalid "+name)
	}
	return n, nil
}
