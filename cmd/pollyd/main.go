// pollyd is the polling service daemon. It wires the Postgres repositories,
// the cache backend, the auth stack, the realtime hub, and the HTTP API,
// then serves until SIGINT or SIGTERM.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/EgejuruProsper/alx-polly-sub001/api"
	"github.com/EgejuruProsper/alx-polly-sub001/auth"
	"github.com/EgejuruProsper/alx-polly-sub001/cache"
	"github.com/EgejuruProsper/alx-polly-sub001/cache/memory"
	cacheredis "github.com/EgejuruProsper/alx-polly-sub001/cache/redis"
	"github.com/EgejuruProsper/alx-polly-sub001/config"
	"github.com/EgejuruProsper/alx-polly-sub001/db/sql/postgres"
	"github.com/EgejuruProsper/alx-polly-sub001/httpx"
	"github.com/EgejuruProsper/alx-polly-sub001/metrics"
	"github.com/EgejuruProsper/alx-polly-sub001/polls"
	"github.com/EgejuruProsper/alx-polly-sub001/realtime"
)

func main() {
	configPath := flag.String("config", "", "path to an optional YAML config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintln(os.Stderr, "pollyd:", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	log := newLogger(cfg.Logging)
	log.Info().
		Str("address", cfg.Server.Address).
		Str("cache", cfg.Cache.Backend).
		Msg("pollyd starting")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := postgres.Open(ctx,
		postgres.WithDSN(cfg.Postgres.DSN),
		postgres.WithMaxOpenConns(cfg.Postgres.MaxOpenConns),
		postgres.WithMaxIdleConns(cfg.Postgres.MaxIdleConns),
		postgres.WithConnMaxLifetime(cfg.Postgres.ConnMaxLifetime),
	)
	if err != nil {
		return fmt.Errorf("open postgres: %w", err)
	}
	defer db.Close()

	if err := postgres.Migrate(ctx, db); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}

	// One store serves the poll cache, the profile cache, and the token
	// sessions; the key namespaces keep them apart.
	store := newStore(cfg.Cache, log)
	defer store.Close()

	facade := polls.NewCache(store, polls.CacheOptions{
		PollTTL: cfg.Cache.PollTTL,
		ListTTL: cfg.Cache.ListTTL,
		UserTTL: cfg.Cache.UserTTL,
		Logger:  log,
	})

	tokens, err := auth.NewTokenProvider(auth.TokenProviderConfig{
		Secret:   []byte(cfg.Auth.TokenSecret),
		Issuer:   cfg.Auth.TokenIssuer,
		TTL:      cfg.Auth.TokenTTL,
		Sessions: store,
		Logger:   log,
	})
	if err != nil {
		return err
	}

	users, err := auth.NewService(auth.ServiceConfig{
		Repository: postgres.NewUserRepository(db),
		Tokens:     tokens,
		Hasher:     auth.NewHasher(auth.WithBcryptCost(cfg.Auth.BcryptCost)),
		Profiles:   facade,
		Logger:     log,
	})
	if err != nil {
		return err
	}

	authn, err := auth.NewMiddleware(users)
	if err != nil {
		return err
	}

	hub := realtime.NewHub(realtime.HubOptions{Logger: log})

	broadcast := realtime.Fanout{hub}
	if len(cfg.Webhooks.Endpoints) > 0 {
		broadcast = append(broadcast, realtime.NewWebhookNotifier(realtime.WebhookOptions{
			Endpoints: cfg.Webhooks.Endpoints,
			Timeout:   cfg.Webhooks.Timeout,
			Retries:   cfg.Webhooks.Retries,
			Logger:    log,
		}))
	}

	pollSvc, err := polls.NewService(polls.ServiceConfig{
		Repository:  postgres.NewPollRepository(db),
		Cache:       facade,
		Broadcaster: broadcast,
	})
	if err != nil {
		return err
	}

	handlers, err := api.NewHandlers(api.Config{
		Polls:  pollSvc,
		Users:  users,
		Auth:   authn,
		WS:     hub.Handler(),
		Logger: log,
	})
	if err != nil {
		return err
	}

	middlewares := []httpx.MiddlewareFunc{
		httpx.RecoverMiddleware(),
		httpx.MetricsMiddleware(),
	}
	if cfg.RateLimit.RPS > 0 {
		middlewares = append(middlewares, httpx.RateLimitMiddleware(cfg.RateLimit.RPS, cfg.RateLimit.Burst))
	}

	opts := []httpx.ServerOption{
		httpx.WithAddress(cfg.Server.Address),
		httpx.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout),
		httpx.WithServerLogger(log),
		httpx.WithMiddlewares(middlewares...),
	}
	if len(cfg.CORS.Origins) > 0 {
		cors := httpx.DefaultCORSConfig
		cors.AllowOrigins = cfg.CORS.Origins
		opts = append(opts, httpx.WithCORS(&cors))
	}

	server := httpx.NewServer(opts...)
	server.RegisterRoutes(handlers.Register)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return hub.Run(ctx)
	})
	g.Go(func() error {
		return server.Start(ctx, httpx.WithShutdownTimeout(cfg.Server.ShutdownTimeout))
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	log.Info().Msg("pollyd stopped")
	return nil
}

// newStore picks the cache backend. Redis optionally sits behind a circuit
// breaker so an outage degrades to cache misses instead of per-request dial
// timeouts.
func newStore(cfg config.CacheConfig, log zerolog.Logger) cache.Store {
	if cfg.Backend == config.BackendRedis {
		store := cacheredis.NewStore(cacheredis.Options{
			Addr:        cfg.Redis.Addr,
			Password:    cfg.Redis.Password,
			DB:          cfg.Redis.DB,
			PoolSize:    cfg.Redis.PoolSize,
			DialTimeout: cfg.Redis.DialTimeout,
			DefaultTTL:  cfg.DefaultTTL,
		})
		if cfg.Redis.Breaker {
			return cache.NewBreakerStore(store, cache.BreakerOptions{Name: "redis", Logger: log})
		}
		return store
	}
	return memory.NewStore(memory.Options{
		MaxSize:         cfg.MaxSize,
		DefaultTTL:      cfg.DefaultTTL,
		CleanupInterval: cfg.CleanupInterval,
		OnEvict:         func(string) { metrics.CacheEvictions.Inc() },
		Logger:          log,
	})
}

func newLogger(cfg config.LoggingConfig) zerolog.Logger {
	var out io.Writer = os.Stdout
	if cfg.Pretty {
		out = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	}
	return zerolog.New(out).Level(cfg.ParsedLevel()).With().Timestamp().Logger()
}
