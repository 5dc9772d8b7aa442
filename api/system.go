package api

import (
	"github.com/EgejuruProsper/alx-polly-sub001/httpx"
)

type healthResponse struct {
	Status string `json:"status"`
	Cache  string `json:"cache"`
}

// health reports liveness. A cache outage only degrades the report: the
// service keeps answering from its backing store, so the probe stays 200.
func (h *Handlers) health(c httpx.Context) error {
	resp := healthResponse{Status: "ok", Cache: "ok"}
	if err := h.polls.CacheHealth(c.Request().Context()); err != nil {
		resp.Status = "degraded"
		resp.Cache = err.Error()
	}
	return c.JSON(httpx.StatusOK, resp)
}

func (h *Handlers) overview(c httpx.Context) error {
	overview, err := h.polls.Overview(c.Request().Context())
	if err != nil {
		return h.domainError(c, err)
	}
	return c.JSON(httpx.StatusOK, overview)
}
