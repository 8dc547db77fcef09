package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"disputeflow/auth"
	"disputeflow/catalog"
	"disputeflow/config"
	"disputeflow/db"
	"disputeflow/dispute"
	"disputeflow/events"
	"disputeflow/outbox"
	"disputeflow/transaction"
)

// Runtime owns every long-lived resource of the process.
type Runtime struct {
	cfg        config.Config
	logger     *slog.Logger
	pool       *pgxpool.Pool
	redis      *redis.Client
	kafka      *events.KafkaPublisher
	catalog    *catalog.Repository
	cache      *catalog.Cache
	dispatcher *outbox.Dispatcher
	server     *Server
}

func NewRuntime(ctx context.Context, cfg config.Config, logger *slog.Logger) (*Runtime, error) {
	if err := cfg.RequireDatabase(); err != nil {
		return nil, err
	}
	policy, err := cfg.Policy()
	if err != nil {
		return nil, err
	}

	pool, err := db.NewPool(ctx, cfg.DatabaseURL, db.PoolOptions{MaxConns: cfg.MaxDBConns})
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	rt := &Runtime{cfg: cfg, logger: logger, pool: pool}

	rt.catalog = catalog.NewRepository(pool)
	var store catalog.Store = rt.catalog
	if cfg.RedisURL != "" {
		rt.redis, err = connectRedis(ctx, cfg.RedisURL)
		if err != nil {
			rt.Close()
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		rt.cache = catalog.NewCache(rt.catalog, rt.redis, cfg.CatalogCacheTTL, logger)
		store = rt.cache
	}

	var publisher events.Publisher = events.NewLoggingPublisher(logger)
	if len(cfg.KafkaBrokers) > 0 {
		rt.kafka, err = events.NewKafkaPublisher(cfg.KafkaBrokers, events.KafkaOptions{
			ClientID:     cfg.KafkaClientID,
			WriteTimeout: cfg.KafkaWriteTimeout,
		})
		if err != nil {
			rt.Close()
			return nil, fmt.Errorf("kafka publisher: %w", err)
		}
		publisher = rt.kafka
	} else {
		logger.Warn("no kafka brokers configured; outbox events are only logged",
			"module", "runtime",
			"operation", "bootstrap",
			"outcome", "degraded",
		)
	}

	obRepo := outbox.NewRepository(pool)
	rt.dispatcher = outbox.NewDispatcher(pool, obRepo, publisher, logger, outbox.DispatcherConfig{
		PollInterval: cfg.OutboxPollInterval,
		RetryDelay:   cfg.OutboxRetryDelay,
		BatchSize:    cfg.OutboxBatchSize,
		MaxAttempts:  cfg.OutboxMaxAttempts,
	})

	catalogSvc := catalog.NewService(store)
	txRepo := transaction.NewRepository(pool)
	txSvc := transaction.NewService(txRepo, txRepo, store)

	disputes := dispute.NewService(pool, dispute.NewRepository(pool), catalogSvc, txSvc, obRepo).
		WithNotifier(rt.dispatcher).
		WithPolicy(policy).
		WithTopics(dispute.Topics{Created: cfg.TopicCreated, Updated: cfg.TopicUpdated}).
		WithLogger(logger)

	authSvc := auth.NewService(auth.NewRepository(pool), cfg.JWTSecret).
		WithTokenTTL(cfg.TokenTTL).
		WithAdminSignup(cfg.AllowAdminSignup)

	rt.server = &Server{
		disputes:     disputes,
		auth:         authSvc,
		catalog:      catalogSvc,
		transactions: txSvc,
		limiter:      newIPLimiter(cfg.RateLimitRPS, cfg.RateBurst),
		logger:       logger,
	}
	return rt, nil
}

// connectRedis accepts either a redis:// URL or a bare host:port.
func connectRedis(ctx context.Context, redisURL string) (*redis.Client, error) {
	var client *redis.Client
	if strings.Contains(redisURL, "://") {
		opt, err := redis.ParseURL(redisURL)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		client = redis.NewClient(opt)
	} else {
		client = redis.NewClient(&redis.Options{Addr: redisURL})
	}
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}

// Migrate applies pending schema migrations.
func (r *Runtime) Migrate(ctx context.Context) error {
	applied, err := db.Migrate(ctx, r.pool)
	if err != nil {
		return err
	}
	r.logger.Info("migrations applied",
		"module", "runtime",
		"operation", "migrate",
		"outcome", "success",
		"applied", applied,
	)
	return nil
}

// SeedCatalog upserts the reference codes in path and drops any cached copies.
func (r *Runtime) SeedCatalog(ctx context.Context, path string) (map[catalog.Kind]int, error) {
	seed, err := catalog.LoadSeed(path)
	if err != nil {
		return nil, err
	}
	touched, err := catalog.Apply(ctx, r.catalog, seed)
	if err != nil {
		return nil, err
	}
	if r.cache != nil {
		for kind, entries := range seed.Entries() {
			codes := make([]string, 0, len(entries))
			for _, e := range entries {
				codes = append(codes, e.Code)
			}
			if err := r.cache.Invalidate(ctx, kind, codes...); err != nil {
				return touched, fmt.Errorf("invalidate %s cache: %w", kind, err)
			}
		}
	}
	return touched, nil
}

// Dispatch drains the outbox. With once set it performs a single pass.
func (r *Runtime) Dispatch(ctx context.Context, once bool) error {
	if once {
		res, err := r.dispatcher.DispatchOnce(ctx)
		if err != nil {
			return err
		}
		r.logger.Info("outbox pass finished",
			"module", "outbox",
			"operation", "dispatch_once",
			"outcome", "success",
			"claimed", res.Claimed,
			"published", res.Published,
			"failed", res.Failed,
			"dead", res.Dead,
		)
		return nil
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := r.dispatcher.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// Serve runs the HTTP API, the gRPC health endpoint and the outbox
// dispatcher until a signal arrives or one of them fails.
func (r *Runtime) Serve(ctx context.Context) error {
	if err := r.cfg.RequireJWTSecret(); err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", r.cfg.HTTPPort),
		Handler:           r.server.routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	grpcServer := grpc.NewServer()
	healthSrv := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthSrv)
	healthSrv.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)

	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", r.cfg.GRPCPort))
	if err != nil {
		return fmt.Errorf("listen grpc: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		r.logger.Info("http server started", "module", "runtime", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		r.logger.Info("grpc health server started", "module", "runtime", "addr", lis.Addr().String())
		if err := grpcServer.Serve(lis); err != nil {
			return fmt.Errorf("grpc server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		if err := r.dispatcher.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("outbox dispatcher: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		r.logger.Info("shutting down", "module", "runtime", "operation", "shutdown")
		healthSrv.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		err := httpServer.Shutdown(shutdownCtx)
		grpcServer.GracefulStop()
		return err
	})
	return g.Wait()
}

func (r *Runtime) Close() {
	if r.kafka != nil {
		if err := r.kafka.Close(); err != nil {
			r.logger.Warn("close kafka writer", "module", "runtime", "error", err)
		}
	}
	if r.redis != nil {
		_ = r.redis.Close()
	}
	if r.pool != nil {
		r.pool.Close()
	}
}
