package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
)

var (
	ErrMissingToken   = errors.New("auth: missing bearer token")
	ErrMalformedToken = errors.New("auth: malformed bearer token")
)

// TokenParser verifies a raw bearer token. Both *TokenProvider and *Service
// satisfy it.
type TokenParser interface {
	Parse(ctx context.Context, raw string) (Identity, error)
}

// TokenExtractor pulls a raw token out of an incoming request.
type TokenExtractor func(*http.Request) (string, error)

// MiddlewareSkipper reports whether a request bypasses authentication.
type MiddlewareSkipper func(*http.Request) bool

// MiddlewareErrorHandler writes the response for a failed authentication.
type MiddlewareErrorHandler func(http.ResponseWriter, *http.Request, error)

type MiddlewareOption func(*middlewareConfig)

type middlewareConfig struct {
	parser       TokenParser
	extractor    TokenExtractor
	skipper      MiddlewareSkipper
	errorHandler MiddlewareErrorHandler
}

func newMiddlewareConfig(parser TokenParser, opts ...MiddlewareOption) (middlewareConfig, error) {
	if parser == nil {
		return middlewareConfig{}, errors.New("auth: middleware requires a token parser")
	}
	cfg := middlewareConfig{
		parser:       parser,
		extractor:    BearerTokenExtractor(),
		skipper:      func(*http.Request) bool { return false },
		errorHandler: defaultErrorHandler,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return cfg, nil
}

// WithTokenExtractor replaces the default Authorization header extractor.
func WithTokenExtractor(extractor TokenExtractor) MiddlewareOption {
	return func(cfg *middlewareConfig) {
		if extractor != nil {
			cfg.extractor = extractor
		}
	}
}

// WithSkipper exempts matching requests from authentication.
func WithSkipper(skipper MiddlewareSkipper) MiddlewareOption {
	return func(cfg *middlewareConfig) {
		if skipper != nil {
			cfg.skipper = skipper
		}
	}
}

// WithErrorHandler replaces the default plain-text error response.
func WithErrorHandler(handler MiddlewareErrorHandler) MiddlewareOption {
	return func(cfg *middlewareConfig) {
		if handler != nil {
			cfg.errorHandler = handler
		}
	}
}

// BearerTokenExtractor reads the token from an "Authorization: Bearer" header.
func BearerTokenExtractor() TokenExtractor {
	return func(r *http.Request) (string, error) {
		header := r.Header.Get("Authorization")
		if header == "" {
			return "", ErrMissingToken
		}
		scheme, token, found := strings.Cut(header, " ")
		if !found || !strings.EqualFold(scheme, "Bearer") {
			return "", ErrMalformedToken
		}
		token = strings.TrimSpace(token)
		if token == "" {
			return "", ErrMalformedToken
		}
		return token, nil
	}
}

// CookieTokenExtractor reads the token from a named cookie.
func CookieTokenExtractor(name string) TokenExtractor {
	name = strings.TrimSpace(name)
	return func(r *http.Request) (string, error) {
		if name == "" {
			return "", ErrMalformedToken
		}
		cookie, err := r.Cookie(name)
		if err != nil {
			if errors.Is(err, http.ErrNoCookie) {
				return "", ErrMissingToken
			}
			return "", err
		}
		value := strings.TrimSpace(cookie.Value)
		if value == "" {
			return "", ErrMalformedToken
		}
		return value, nil
	}
}

// ChainExtractors tries each extractor in order and returns the first token
// found.
func ChainExtractors(extractors ...TokenExtractor) TokenExtractor {
	copied := append([]TokenExtractor(nil), extractors...)
	return func(r *http.Request) (string, error) {
		var lastErr error = ErrMissingToken
		for _, extractor := range copied {
			if extractor == nil {
				continue
			}
			token, err := extractor(r)
			if err == nil {
				return token, nil
			}
			lastErr = err
		}
		return "", lastErr
	}
}

func defaultErrorHandler(w http.ResponseWriter, _ *http.Request, err error) {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		http.Error(w, err.Error(), http.StatusGatewayTimeout)
		return
	}
	w.Header().Set("WWW-Authenticate", `Bearer realm="api"`)
	http.Error(w, err.Error(), http.StatusUnauthorized)
}
