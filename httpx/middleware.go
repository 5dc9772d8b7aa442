package httpx

import (
	"errors"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"

	"github.com/EgejuruProsper/alx-polly-sub001/auth"
	"github.com/EgejuruProsper/alx-polly-sub001/metrics"
)

// AuthMiddleware bridges auth.Middleware into the echo middleware chain.
// Handlers read the caller with auth.IdentityFromContext on the request
// context.
func AuthMiddleware(mw *auth.Middleware) MiddlewareFunc {
	if mw == nil {
		return func(next HandlerFunc) HandlerFunc {
			return func(c Context) error {
				return HTTPError(StatusUnauthorized, "auth middleware missing")
			}
		}
	}
	return echo.WrapMiddleware(mw.Handler)
}

// RequireRole rejects authenticated requests whose identity lacks the role.
// Mount after AuthMiddleware.
func RequireRole(role auth.Role) MiddlewareFunc {
	return echo.WrapMiddleware(auth.RequireRole(role))
}

// RateLimitMiddleware throttles requests per client IP. A non-positive rps
// disables throttling.
func RateLimitMiddleware(rps float64, burst int) MiddlewareFunc {
	if rps <= 0 {
		return func(next HandlerFunc) HandlerFunc { return next }
	}
	if burst < 1 {
		burst = 1
	}
	store := middleware.NewRateLimiterMemoryStoreWithConfig(middleware.RateLimiterMemoryStoreConfig{
		Rate:      rate.Limit(rps),
		Burst:     burst,
		ExpiresIn: 3 * time.Minute,
	})
	return middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
		Store: store,
		DenyHandler: func(c Context, identifier string, err error) error {
			return HTTPError(StatusTooManyRequests, "rate limit exceeded")
		},
	})
}

// MetricsMiddleware records request count and latency per method and route
// template.
func MetricsMiddleware() MiddlewareFunc {
	return func(next HandlerFunc) HandlerFunc {
		return func(c Context) error {
			start := time.Now()
			err := next(c)

			status := c.Response().Status
			if err != nil {
				var he *echo.HTTPError
				if errors.As(err, &he) {
					status = he.Code
				} else {
					status = StatusInternalError
				}
			}
			route := c.Path()
			if route == "" {
				route = c.Request().URL.Path
			}
			metrics.RecordHTTPRequest(c.Request().Method, route, status, time.Since(start))
			return err
		}
	}
}
