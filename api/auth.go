package api

import (
	"github.com/EgejuruProsper/alx-polly-sub001/auth"
	"github.com/EgejuruProsper/alx-polly-sub001/httpx"
)

type registerRequest struct {
	Email    string `json:"email" validate:"required,email,max=254"`
	Name     string `json:"name" validate:"required,max=100"`
	Password string `json:"password" validate:"required,min=8,max=128"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// sessionResponse pairs the account with its freshly issued token.
type sessionResponse struct {
	User  auth.User  `json:"user"`
	Token auth.Token `json:"token"`
}

func (h *Handlers) register(c httpx.Context) error {
	var req registerRequest
	if err := c.Bind(&req); err != nil {
		return httpx.HTTPError(httpx.StatusBadRequest, "invalid body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	user, token, err := h.users.Register(c.Request().Context(), auth.RegisterInput{
		Email:    req.Email,
		Name:     req.Name,
		Password: req.Password,
	})
	if err != nil {
		return h.domainError(c, err)
	}
	return c.JSON(httpx.StatusCreated, sessionResponse{User: user, Token: token})
}

func (h *Handlers) login(c httpx.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return httpx.HTTPError(httpx.StatusBadRequest, "invalid body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	user, token, err := h.users.Login(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		return h.domainError(c, err)
	}
	return c.JSON(httpx.StatusOK, sessionResponse{User: user, Token: token})
}

// logout revokes the session behind the presented token.
func (h *Handlers) logout(c httpx.Context) error {
	identity, err := currentIdentity(c)
	if err != nil {
		return err
	}
	if err := h.users.Logout(c.Request().Context(), identity.TokenID); err != nil {
		return h.domainError(c, err)
	}
	return c.NoContent(httpx.StatusNoContent)
}

func (h *Handlers) me(c httpx.Context) error {
	identity, err := currentIdentity(c)
	if err != nil {
		return err
	}
	user, err := h.users.GetUser(c.Request().Context(), identity.UserID)
	if err != nil {
		return h.domainError(c, err)
	}
	return c.JSON(httpx.StatusOK, user)
}
