package api

import (
	"github.com/EgejuruProsper/alx-polly-sub001/auth"
	"github.com/EgejuruProsper/alx-polly-sub001/httpx"
)

type updateRoleRequest struct {
	Role string `json:"role" validate:"required,oneof=admin voter"`
}

type userListResponse struct {
	Users []auth.User `json:"users"`
	Count int         `json:"count"`
}

func (h *Handlers) listUsers(c httpx.Context) error {
	limit, err := intQuery(c, "limit", 0)
	if err != nil {
		return err
	}
	offset, err := intQuery(c, "offset", 0)
	if err != nil {
		return err
	}
	users, err := h.users.ListUsers(c.Request().Context(), limit, offset)
	if err != nil {
		return h.domainError(c, err)
	}
	return c.JSON(httpx.StatusOK, userListResponse{Users: users, Count: len(users)})
}

func (h *Handlers) updateRole(c httpx.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	var req updateRoleRequest
	if err := c.Bind(&req); err != nil {
		return httpx.HTTPError(httpx.StatusBadRequest, "invalid body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	user, err := h.users.UpdateRole(c.Request().Context(), id, auth.Role(req.Role))
	if err != nil {
		return h.domainError(c, err)
	}
	return c.JSON(httpx.StatusOK, user)
}

func (h *Handlers) cacheStats(c httpx.Context) error {
	stats, err := h.polls.CacheStats(c.Request().Context())
	if err != nil {
		return h.domainError(c, err)
	}
	return c.JSON(httpx.StatusOK, stats)
}
