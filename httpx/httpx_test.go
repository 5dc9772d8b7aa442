package httpx

import (
	"context"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"

	"github.com/EgejuruProsper/alx-polly-sub001/auth"
)

func TestServerAndClientRoundTrip(t *testing.T) {
	server := NewServer()
	server.RegisterRoutes(func(e *Echo) {
		e.GET("/ping", func(c Context) error {
			return c.JSON(StatusOK, map[string]string{"message": "pong"})
		})
	})

	ts := NewTestServer(server.Handler())
	defer ts.Close()

	client := NewClient(WithBaseURL(ts.BaseURL()))

	var body struct {
		Message string `json:"message"`
	}
	resp, err := client.Get(context.Background(), "/ping", &body)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode() != StatusOK {
		t.Fatalf("unexpected status: %d", resp.StatusCode())
	}
	if body.Message != "pong" {
		t.Fatalf("unexpected body: %#v", body)
	}
}

func TestErrorHandlerWrapsEchoHTTPError(t *testing.T) {
	server := NewServer()
	server.RegisterRoutes(func(e *Echo) {
		e.GET("/fail", func(c Context) error {
			return HTTPError(StatusBadRequest, "bad request")
		})
	})

	ts := NewTestServer(server.Handler())
	defer ts.Close()

	client := NewClient(WithBaseURL(ts.BaseURL()))

	resp, err := client.Get(context.Background(), "/fail", nil)
	if err == nil {
		t.Fatalf("expected error")
	}
	if resp == nil {
		t.Fatalf("expected response for error path")
	}
	if resp.StatusCode() != StatusBadRequest {
		t.Fatalf("unexpected status: %d", resp.StatusCode())
	}
	if !strings.Contains(resp.String(), `"error"`) {
		t.Fatalf("expected JSON error body, got %q", resp.String())
	}
}

type stubParser struct {
	identities map[string]auth.Identity
}

func (p *stubParser) Parse(_ context.Context, raw string) (auth.Identity, error) {
	identity, ok := p.identities[raw]
	if !ok {
		return auth.Identity{}, auth.ErrTokenInvalid
	}
	return identity, nil
}

func TestAuthMiddlewareBridge(t *testing.T) {
	voter := auth.Identity{UserID: uuid.New(), Email: "voter@example.com", Role: auth.RoleVoter}
	parser := &stubParser{identities: map[string]auth.Identity{"good": voter}}
	mw, err := auth.NewMiddleware(parser)
	if err != nil {
		t.Fatalf("NewMiddleware() error = %v", err)
	}

	server := NewServer(WithMiddlewares(AuthMiddleware(mw)))
	server.RegisterRoutes(func(e *Echo) {
		e.GET("/secure", func(c Context) error {
			identity, ok := auth.IdentityFromContext(c.Request().Context())
			if !ok {
				return HTTPError(StatusUnauthorized, "missing identity")
			}
			return c.JSON(StatusOK, map[string]string{"email": identity.Email})
		})
	})

	ts := NewTestServer(server.Handler())
	defer ts.Close()

	client := NewClient(WithBaseURL(ts.BaseURL()))

	var out map[string]string
	resp, err := client.Get(context.Background(), "/secure", &out, WithBearer("good"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode() != StatusOK {
		t.Fatalf("unexpected status: %d", resp.StatusCode())
	}
	if out["email"] != voter.Email {
		t.Fatalf("unexpected identity: %#v", out)
	}

	resp, err = client.Get(context.Background(), "/secure", nil)
	if err == nil {
		t.Fatalf("expected error for missing token")
	}
	if resp.StatusCode() != StatusUnauthorized {
		t.Fatalf("unexpected status: %d", resp.StatusCode())
	}
}

func TestRequireRoleBridge(t *testing.T) {
	parser := &stubParser{identities: map[string]auth.Identity{
		"admin": {UserID: uuid.New(), Email: "admin@example.com", Role: auth.RoleAdmin},
		"voter": {UserID: uuid.New(), Email: "voter@example.com", Role: auth.RoleVoter},
	}}
	mw, err := auth.NewMiddleware(parser)
	if err != nil {
		t.Fatalf("NewMiddleware() error = %v", err)
	}

	server := NewServer(WithMiddlewares(AuthMiddleware(mw)))
	server.RegisterRoutes(func(e *Echo) {
		e.GET("/admin", func(c Context) error {
			return c.NoContent(StatusOK)
		}, RequireRole(auth.RoleAdmin))
	})

	ts := NewTestServer(server.Handler())
	defer ts.Close()

	client := NewClient(WithBaseURL(ts.BaseURL()))

	resp, err := client.Get(context.Background(), "/admin", nil, WithBearer("admin"))
	if err != nil {
		t.Fatalf("admin request failed: %v", err)
	}
	if resp.StatusCode() != StatusOK {
		t.Fatalf("unexpected admin status: %d", resp.StatusCode())
	}

	resp, _ = client.Get(context.Background(), "/admin", nil, WithBearer("voter"))
	if resp.StatusCode() != StatusForbidden {
		t.Fatalf("unexpected voter status: %d", resp.StatusCode())
	}

	resp, _ = client.Get(context.Background(), "/admin", nil)
	if resp.StatusCode() != StatusUnauthorized {
		t.Fatalf("unexpected anonymous status: %d", resp.StatusCode())
	}
}

func TestValidatorMiddleware(t *testing.T) {
	validator := func(c Context) error {
		if c.Request().Header.Get("X-Allow") != "yes" {
			return HTTPError(StatusBadRequest, "blocked")
		}
		return nil
	}
	server := NewServer(WithValidators(validator))
	server.RegisterRoutes(func(e *Echo) {
		e.GET("/secure", func(c Context) error { return c.NoContent(StatusOK) })
	})

	ts := NewTestServer(server.Handler())
	defer ts.Close()

	client := NewClient(WithBaseURL(ts.BaseURL()))

	// blocked
	if _, err := client.Get(context.Background(), "/secure", nil); err == nil {
		t.Fatalf("expected validation error")
	}

	// allowed
	resp, err := client.Get(context.Background(), "/secure", nil, WithRequestHeaders(map[string]string{"X-Allow": "yes"}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode() != StatusOK {
		t.Fatalf("unexpected status: %d", resp.StatusCode())
	}
}

func TestCORSInjection(t *testing.T) {
	corsCfg := DefaultCORSConfig
	corsCfg.AllowOrigins = []string{"http://example.com"}
	server := NewServer(WithCORS(&corsCfg))
	server.RegisterRoutes(func(e *Echo) {
		e.GET("/ping", func(c Context) error { return c.NoContent(StatusOK) })
	})

	ts := NewTestServer(server.Handler())
	defer ts.Close()

	client := NewClient(WithBaseURL(ts.BaseURL()))
	resp, err := client.Get(context.Background(), "/ping", nil, WithRequestHeaders(map[string]string{
		"Origin":                        "http://example.com",
		"Access-Control-Request-Method": "GET",
	}))
	if err != nil {
		t.Fatalf("options request failed: %v", err)
	}
	if resp.Header().Get("Access-Control-Allow-Origin") != "http://example.com" {
		t.Fatalf("expected CORS allow origin header, got %q", resp.Header().Get("Access-Control-Allow-Origin"))
	}
}

func TestRateLimitMiddleware(t *testing.T) {
	server := NewServer(AppendMiddlewares(RateLimitMiddleware(1, 1)))
	server.RegisterRoutes(func(e *Echo) {
		e.GET("/limited", func(c Context) error { return c.NoContent(StatusOK) })
	})

	ts := NewTestServer(server.Handler())
	defer ts.Close()

	client := NewClient(WithBaseURL(ts.BaseURL()))

	resp, err := client.Get(context.Background(), "/limited", nil)
	if err != nil {
		t.Fatalf("first request failed: %v", err)
	}
	if resp.StatusCode() != StatusOK {
		t.Fatalf("unexpected first status: %d", resp.StatusCode())
	}

	resp, _ = client.Get(context.Background(), "/limited", nil)
	if resp.StatusCode() != StatusTooManyRequests {
		t.Fatalf("unexpected throttled status: %d", resp.StatusCode())
	}
}

func TestRouterHelpers(t *testing.T) {
	server := NewServer()
	server.RegisterRoutes(func(e *Echo) {
		r := NewRouter(e, "/api")
		r.GET("/ping", func(c Context) error { return c.JSON(StatusOK, map[string]string{"message": "pong"}) })
		r.Group("/nested").GET("/deep", func(c Context) error { return c.NoContent(StatusNoContent) })
	})

	ts := NewTestServer(server.Handler())
	defer ts.Close()

	client := NewClient(WithBaseURL(ts.BaseURL()))
	var body map[string]string
	resp, err := client.Get(context.Background(), "/api/ping", &body)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode() != StatusOK {
		t.Fatalf("unexpected status: %d", resp.StatusCode())
	}
	if body["message"] != "pong" {
		t.Fatalf("unexpected body: %#v", body)
	}

	resp, err = client.Get(context.Background(), "/api/nested/deep", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode() != StatusNoContent {
		t.Fatalf("unexpected nested status: %d", resp.StatusCode())
	}
}

func TestRegisterRoutesBulkAndPostBody(t *testing.T) {
	server := NewServer()
	server.RegisterRoutes(func(e *Echo) {
		RegisterRoutes(e,
			Route{Method: "GET", Path: "/r1", Handler: func(c Context) error {
				return c.JSON(StatusOK, map[string]string{"route": "r1"})
			}},
			Route{Method: "POST", Path: "/echo", Handler: func(c Context) error {
				var payload map[string]any
				if err := c.Bind(&payload); err != nil {
					return HTTPError(StatusBadRequest, "invalid body")
				}
				return c.JSON(StatusCreated, payload)
			}},
		)
	})

	ts := NewTestServer(server.Handler())
	defer ts.Close()

	client := NewClient(WithBaseURL(ts.BaseURL()))

	// GET route
	var r1 map[string]string
	resp, err := client.Get(context.Background(), "/r1", &r1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode() != StatusOK || r1["route"] != "r1" {
		t.Fatalf("unexpected response: status=%d body=%v", resp.StatusCode(), r1)
	}

	// POST with JSON body
	payload := map[string]string{"hello": "world"}
	var echoed map[string]string
	resp, err = client.Post(context.Background(), "/echo", payload, &echoed)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode() != StatusCreated || echoed["hello"] != "world" {
		t.Fatalf("unexpected POST response: status=%d body=%v", resp.StatusCode(), echoed)
	}
}

func TestClientRequestOptions(t *testing.T) {
	server := NewServer()
	server.RegisterRoutes(func(e *Echo) {
		e.GET("/opts", func(c Context) error {
			authz := c.Request().Header.Get("Authorization")
			custom := c.Request().Header.Get("X-Custom")
			qp := c.QueryParam("q")
			return c.JSON(StatusOK, map[string]string{"auth": authz, "custom": custom, "q": qp})
		})
	})

	ts := NewTestServer(server.Handler())
	defer ts.Close()

	client := NewClient(WithBaseURL(ts.BaseURL()))

	var out map[string]string
	resp, err := client.Get(context.Background(), "/opts", &out,
		WithBearer("token123"),
		WithRequestHeaders(map[string]string{"X-Custom": "yes"}),
		WithQuery(map[string]string{"q": "search"}),
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode() != StatusOK {
		t.Fatalf("unexpected status: %d", resp.StatusCode())
	}
	if out["auth"] != "Bearer token123" || out["custom"] != "yes" || out["q"] != "search" {
		t.Fatalf("unexpected headers/query: %v", out)
	}
}

func TestClientRestyConfigHook(t *testing.T) {
	server := NewServer()
	server.RegisterRoutes(func(e *Echo) {
		e.GET("/config", func(c Context) error {
			return c.JSON(StatusOK, map[string]string{"cfg": c.Request().Header.Get("X-Config")})
		})
	})

	ts := NewTestServer(server.Handler())
	defer ts.Close()

	client := NewClient(
		WithBaseURL(ts.BaseURL()),
		WithRestyConfig(func(rc RestClient) {
			rc.SetHeader("X-Config", "hooked")
		}),
	)

	var out map[string]string
	resp, err := client.Get(context.Background(), "/config", &out)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode() != StatusOK || out["cfg"] != "hooked" {
		t.Fatalf("unexpected resty config result: status=%d body=%v", resp.StatusCode(), out)
	}
}

func TestClientRetries(t *testing.T) {
	var calls atomic.Int32
	server := NewServer()
	server.RegisterRoutes(func(e *Echo) {
		e.GET("/flaky", func(c Context) error {
			if calls.Add(1) < 3 {
				return HTTPError(StatusServiceUnavailable, "warming up")
			}
			return c.NoContent(StatusOK)
		})
	})

	ts := NewTestServer(server.Handler())
	defer ts.Close()

	client := NewClient(WithBaseURL(ts.BaseURL()), WithRetries(3, 0))

	resp, err := client.Get(context.Background(), "/flaky", nil)
	if err != nil {
		t.Fatalf("unexpected error after retries: %v", err)
	}
	if resp.StatusCode() != StatusOK {
		t.Fatalf("unexpected status: %d", resp.StatusCode())
	}
	if got := calls.Load(); got != 3 {
		t.Fatalf("expected 3 attempts, got %d", got)
	}
}
