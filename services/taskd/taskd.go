// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package taskd provides the task management service.
//
// This package contains the main service type that coordinates all
// components: HTTP routing, the Badger store, token auth, the
// notification workflow, and observability infrastructure.
package taskd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	badgerdb "github.com/dgraph-io/badger/v4"

	"github.com/AleutianAI/AleutianTasks/pkg/logging"
	"github.com/AleutianAI/AleutianTasks/services/taskd/auth"
	"github.com/AleutianAI/AleutianTasks/services/taskd/handlers"
	"github.com/AleutianAI/AleutianTasks/services/taskd/notify"
	"github.com/AleutianAI/AleutianTasks/services/taskd/observability"
	"github.com/AleutianAI/AleutianTasks/services/taskd/routes"
	storage "github.com/AleutianAI/AleutianTasks/services/taskd/storage/badger"
)

const serviceName = "taskd"

// Service defines the contract for the task service.
//
// Run blocks until shutdown; Router exposes the configured engine for
// integration testing.
type Service interface {
	Run() error
	Router() *gin.Engine
}

// Config holds the service configuration. Zero values use defaults
// applied by New, except JWTSecret which is required.
type Config struct {
	// ListenAddr is the HTTP listen address. Default ":8080".
	ListenAddr string

	// DataDir is the Badger data directory. Ignored when InMemory.
	DataDir string

	// InMemory runs the store without disk persistence. Used by tests.
	InMemory bool

	// JWTSecret signs bearer tokens. Required.
	JWTSecret string

	// TokenTTL is the bearer token lifetime. Default 7 days.
	TokenTTL time.Duration

	// OTLPEndpoint is the OpenTelemetry collector endpoint. Empty
	// disables tracing.
	OTLPEndpoint string

	// AuthRPS / AuthBurst rate-limit register and login per client IP.
	AuthRPS   float64
	AuthBurst int

	// GinMode sets the Gin framework mode ("debug", "release", "test").
	GinMode string

	// Logger is the service logger. Default logging.Default().
	Logger *logging.Logger

	// ShutdownTimeout bounds graceful drain on shutdown. Default 10s.
	ShutdownTimeout time.Duration
}

func applyConfigDefaults(cfg Config) Config {
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = ":8080"
	}
	if cfg.DataDir == "" {
		cfg.DataDir = "./data/taskd"
	}
	if cfg.TokenTTL == 0 {
		cfg.TokenTTL = auth.DefaultTokenTTL
	}
	if cfg.AuthRPS == 0 {
		cfg.AuthRPS = 5
	}
	if cfg.AuthBurst == 0 {
		cfg.AuthBurst = 10
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	return cfg
}

// service implements Service for production use. All fields are
// read-only after New returns.
type service struct {
	config        Config
	logger        *logging.Logger
	router        *gin.Engine
	db            *badgerdb.DB
	stores        *storage.Stores
	hub           *handlers.Hub
	tracerCleanup func(context.Context)
}

// New initializes the service: tracing (when configured), the Badger
// store, the token keeper, the notification workflow, and the HTTP
// router.
func New(cfg Config) (Service, error) {
	cfg = applyConfigDefaults(cfg)
	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT secret is required (set TASKD_JWT_SECRET)")
	}
	if cfg.GinMode != "" {
		gin.SetMode(cfg.GinMode)
	}

	s := &service{config: cfg, logger: cfg.Logger}

	if cfg.OTLPEndpoint != "" {
		cleanup, err := s.initTracer()
		if err != nil {
			return nil, fmt.Errorf("failed to initialize tracer: %w", err)
		}
		s.tracerCleanup = cleanup
	}

	storeCfg := storage.DefaultConfig(cfg.DataDir)
	if cfg.InMemory {
		storeCfg = storage.InMemoryConfig()
	}
	db, err := storage.Open(storeCfg)
	if err != nil {
		s.cleanup()
		return nil, fmt.Errorf("failed to open the store: %w", err)
	}
	s.db = db
	s.stores = storage.NewStores(db)

	keeper := auth.NewTokenKeeper(cfg.JWTSecret, cfg.TokenTTL)
	s.hub = handlers.NewHub()
	notifier := notify.New(s.stores.Notifications, s.logger, s.hub)

	s.initRouter(keeper, notifier)
	return s, nil
}

// Run starts the HTTP server and blocks until SIGINT/SIGTERM or a
// server error, then drains in-flight requests.
func (s *service) Run() error {
	defer s.cleanup()

	ctx, stop := signal.NotifyContext(context.Background(),
		syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := &http.Server{
		Addr:    s.config.ListenAddr,
		Handler: s.router,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.logger.Info("starting taskd server", "addr", s.config.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		s.logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func (s *service) Router() *gin.Engine {
	return s.router
}

// initTracer sets up the OTLP trace exporter. Uses an insecure gRPC
// connection, appropriate for internal collector networks.
func (s *service) initTracer() (func(context.Context), error) {
	ctx := context.Background()

	conn, err := grpc.NewClient(s.config.OTLPEndpoint,
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("failed to create gRPC connection: %w", err)
	}

	traceExporter, err := otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))
	if err != nil {
		return nil, fmt.Errorf("failed to create trace exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceNameKey.String(serviceName)))
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	bsp := sdktrace.NewBatchSpanProcessor(traceExporter)
	traceProvider := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithResource(res),
		sdktrace.WithSpanProcessor(bsp))

	otel.SetTracerProvider(traceProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{}, propagation.Baggage{}))

	cleanup := func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := traceExporter.Shutdown(ctx); err != nil {
			s.logger.Error("failed to shutdown OTLP exporter", "error", err.Error())
		}
	}
	return cleanup, nil
}

func (s *service) initRouter(keeper *auth.TokenKeeper, notifier notify.Notifier) {
	s.router = gin.New()
	s.router.Use(gin.Recovery())
	if s.tracerCleanup != nil {
		s.router.Use(otelgin.Middleware(serviceName))
	}
	s.router.Use(observability.RequestMetrics())

	routes.SetupRoutes(s.router, s.stores, keeper, notifier, s.hub, s.logger,
		s.config.AuthRPS, s.config.AuthBurst)
}

// cleanup releases resources on Run exit or failed initialization.
func (s *service) cleanup() {
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			s.logger.Warn("store close error", "error", err.Error())
		}
		s.db = nil
	}
	if s.tracerCleanup != nil {
		s.tracerCleanup(context.Background())
	}
}
