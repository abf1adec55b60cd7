package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/storypath/checkin/internal/backend"
	"github.com/storypath/checkin/internal/checkin"
	"github.com/storypath/checkin/internal/config"
	"github.com/storypath/checkin/internal/database"
	"github.com/storypath/checkin/internal/handler/health"
	"github.com/storypath/checkin/internal/migrations"
	"github.com/storypath/checkin/internal/position"
	"github.com/storypath/checkin/internal/profile"
	"github.com/storypath/checkin/internal/server"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, stdout io.Writer) error {
	cfg, err := config.Load(".env")
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := slog.New(slog.NewJSONHandler(stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))

	// --- SQLite ---
	db, err := database.Open(ctx, cfg.DBPath)
	if err != nil {
		return fmt.Errorf("connecting to sqlite: %w", err)
	}
	defer db.Close()

	if err := migrations.Run(db); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	logger.Info("connected to sqlite", "path", cfg.DBPath)

	checks := map[string]health.Checker{
		"sqlite": dbChecker{db},
	}

	// --- Position store ---
	var positions position.Store
	if cfg.RedisURL != "" {
		rdb, err := openRedis(ctx, cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("connecting to redis: %w", err)
		}
		defer rdb.Close()
		positions = position.NewRedisStore(rdb, cfg.PositionTTL)
		checks["redis"] = redisChecker{rdb}
		logger.Info("connected to redis")
	} else {
		positions = position.NewMemoryStore(cfg.PositionTTL)
		logger.Info("using in-memory position store")
	}

	// --- StoryPath backend ---
	be := backend.New(cfg.BackendURL, cfg.BackendToken, nil, logger)
	checks["backend"] = health.CheckerFunc(be.Ping)

	owner := ""
	if claims, err := backend.ParseToken(cfg.BackendToken); err != nil {
		logger.Warn("backend token has no username claim, visits will carry an empty owner", "error", err)
	} else {
		owner = claims.Username
	}

	broker := server.NewBroker()
	sessions := server.NewSessions(be, positions, broker, owner, checkin.Options{
		Interval:         cfg.TickInterval,
		Radius:           cfg.CheckinRadius,
		CallTimeout:      cfg.CallTimeout,
		LenientPositions: cfg.LenientPositions,
	}, cfg.SessionIdleTimeout, logger)

	// --- HTTP Server ---
	srv := server.New(cfg.HTTPAddr, logger, server.Deps{
		Backend:   be,
		Profiles:  profile.NewStore(db),
		Positions: positions,
		Sessions:  sessions,
		Broker:    broker,
	}, func(r chi.Router) {
		r.Mount("/healthz", health.NewHandler(logger, checks).Routes())
	})

	// --- Run ---
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("starting http server", "addr", cfg.HTTPAddr, "backend", cfg.BackendURL)
		return srv.Run(gctx)
	})

	g.Go(func() error {
		return sessions.Run(gctx, time.Minute)
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down http server")
		return srv.Shutdown(context.Background())
	})

	return g.Wait()
}

func openRedis(ctx context.Context, rawURL string) (*redis.Client, error) {
	opt, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}
	rdb := redis.NewClient(opt)
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("pinging redis: %w", err)
	}
	return rdb, nil
}

// dbChecker adapts *sql.DB to health.Checker.
type dbChecker struct{ db *sql.DB }

func (d dbChecker) Check(ctx context.Context) error { return d.db.PingContext(ctx) }

// redisChecker adapts *redis.Client to health.Checker.
type redisChecker struct{ client *redis.Client }

func (r redisChecker) Check(ctx context.Context) error { return r.client.Ping(ctx).Err() }
