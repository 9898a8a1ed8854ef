package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	goredis "github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"golang.org/x/sync/errgroup"

	"github.com/xraph/carbon"
	"github.com/xraph/carbon/api"
	audithook "github.com/xraph/carbon/audit_hook"
	"github.com/xraph/carbon/observability"
	"github.com/xraph/carbon/relay"
	"github.com/xraph/carbon/store"
	"github.com/xraph/carbon/store/memory"
	"github.com/xraph/carbon/store/redis"
	"github.com/xraph/carbon/types"
)

// Runtime owns the engine and the HTTP server of one carbond process.
type Runtime struct {
	cfg        Config
	logger     *slog.Logger
	engine     *carbon.Engine
	httpServer *http.Server
}

// NewRuntime connects the configured backend and assembles the engine,
// its plugins and the HTTP surface.
func NewRuntime(ctx context.Context, cfg Config, logger *slog.Logger) (*Runtime, error) {
	governor, err := types.ParseAccountID(cfg.Governor)
	if err != nil {
		return nil, fmt.Errorf("governor: %w", err)
	}

	s, err := openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	opts := []carbon.Option{
		carbon.WithLogger(logger),
		carbon.WithGovernor(governor),
		carbon.WithExactYearWalk(cfg.ExactYearWalk),
		observability.TracerOption(otel.GetTracerProvider()),
		carbon.WithPlugin(observability.NewMetricsExtension(observability.NewPrometheusFactory(reg))),
	}

	if cfg.AuditLog {
		opts = append(opts, carbon.WithPlugin(audithook.New(logRecorder(logger), audithook.WithLogger(logger))))
	}

	if len(cfg.KafkaBrokers) > 0 {
		w, err := relay.NewKafkaWriter(cfg.KafkaBrokers...)
		if err != nil {
			_ = s.Close()
			return nil, err
		}
		relayOpts := []relay.Option{relay.WithLogger(logger)}
		if cfg.KafkaTopic != "" {
			relayOpts = append(relayOpts, relay.WithTopic(cfg.KafkaTopic))
		}
		opts = append(opts, carbon.WithPlugin(relay.New(w, relayOpts...)))
	}

	engine := carbon.New(s, opts...)

	auth := api.NewAuthenticator([]byte(cfg.JWTSecret), cfg.JWTIssuer)
	srv := api.New(engine, auth,
		api.WithLogger(logger),
		api.WithBasePath(cfg.BasePath),
		api.WithTimeout(cfg.RequestTimeout),
	)

	router := chi.NewRouter()
	router.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	router.Mount("/", srv.Handler())

	return &Runtime{
		cfg:    cfg,
		logger: logger,
		engine: engine,
		httpServer: &http.Server{
			Addr:              cfg.HTTPAddr,
			Handler:           router,
			ReadHeaderTimeout: 5 * time.Second,
		},
	}, nil
}

// Run starts the engine and serves HTTP until ctx is cancelled or the
// listener fails. The engine is stopped before Run returns.
func (r *Runtime) Run(ctx context.Context) error {
	if err := r.engine.Start(ctx); err != nil {
		_ = r.engine.Stop()
		return fmt.Errorf("start engine: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		r.logger.Info("http server started", "addr", r.httpServer.Addr, "base_path", r.cfg.BasePath)
		if err := r.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		r.logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), r.cfg.ShutdownTimeout)
		defer cancel()
		return r.httpServer.Shutdown(shutdownCtx)
	})

	err := g.Wait()
	if stopErr := r.engine.Stop(); stopErr != nil {
		err = errors.Join(err, fmt.Errorf("stop engine: %w", stopErr))
	}
	return err
}

func openStore(ctx context.Context, cfg Config) (store.Store, error) {
	if cfg.Backend != backendRedis {
		return memory.New(), nil
	}

	redisOpts, err := goredis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := goredis.NewClient(redisOpts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	return redis.New(client, redis.WithPrefix(cfg.RedisPrefix)), nil
}

// logRecorder writes audit events to the process log.
func logRecorder(logger *slog.Logger) audithook.RecorderFunc {
	return func(ctx context.Context, ev *audithook.AuditEvent) error {
		logger.InfoContext(ctx, "audit",
			"audit_id", ev.ID.String(),
			"action", ev.Action,
			"resource", ev.Resource,
			"resource_id", ev.ResourceID,
			"category", ev.Category,
			"actor", ev.Actor,
			"outcome", ev.Outcome,
			"severity", ev.Severity,
			"metadata", ev.Metadata,
		)
		return nil
	}
}
