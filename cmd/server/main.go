// Command user-server runs the identity service: HTTP API, business unit
// event consumers and background workers.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/and161185/userservice/internal/cache"
	"github.com/and161185/userservice/internal/config"
	"github.com/and161185/userservice/internal/events"
	"github.com/and161185/userservice/internal/lastseen"
	"github.com/and161185/userservice/internal/limiter"
	"github.com/and161185/userservice/internal/metrics"
	"github.com/and161185/userservice/internal/migrate"
	"github.com/and161185/userservice/internal/repository/postgres"
	httpserver "github.com/and161185/userservice/internal/server/http"
	"github.com/and161185/userservice/internal/service"
	"github.com/and161185/userservice/internal/token"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

func main() {
	cfg, err := config.Load(os.Args[1:])
	logger := newLogger(cfg.Dev)
	defer func() { _ = logger.Sync() }()
	if err != nil {
		logger.Fatal("config", zap.Error(err))
	}
	logger.Info("starting",
		zap.String("version", version),
		zap.String("buildDate", buildDate),
		zap.String("addr", cfg.Addr),
	)

	codec, err := token.NewCodec([]byte(cfg.JWTKey), cfg.AccessTTL, cfg.RefreshTTL)
	if err != nil {
		logger.Fatal("token codec", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := migrate.Up(ctx, cfg.DSN); err != nil {
		logger.Fatal("migrate up", zap.Error(err))
	}

	db, err := postgres.New(ctx, cfg.DSN)
	if err != nil {
		logger.Fatal("postgres", zap.Error(err))
	}
	defer db.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	// Repositories
	userRepo := postgres.NewUserRepo(db)
	sessionRepo := postgres.NewSessionRepo(db)

	var names cache.Store = cache.NewMemory(0)
	if cfg.CacheBackend == config.CachePostgres {
		names = postgres.NewUnitNameRepo(db)
	}

	var lim limiter.Limiter = limiter.Nop{}
	if cfg.LoginMaxFailures > 0 {
		lim = limiter.NewPG(db.Pool, limiter.Policy{
			Window:      cfg.LoginWindow,
			MaxFailures: cfg.LoginMaxFailures,
			BlockFor:    cfg.LoginBlockFor,
		})
	}

	// Broker
	publisher := events.NewPublisher(events.KafkaWriter(cfg.KafkaBrokers, cfg.NameRequests, logger), logger)
	defer func() {
		if err := publisher.Close(); err != nil {
			logger.Warn("close publisher", zap.Error(err))
		}
	}()
	syncer := events.NewSyncer(names, userRepo, logger)
	unitConsumer := events.NewConsumer(cfg.UnitEvents,
		events.KafkaReader(cfg.KafkaBrokers, cfg.ConsumerGroup, cfg.UnitEvents),
		syncer.HandleUnitMessage, logger, m).WithBackoff(cfg.ConsumeBackoff)
	responseConsumer := events.NewConsumer(cfg.NameResponses,
		events.KafkaReader(cfg.KafkaBrokers, cfg.ConsumerGroup, cfg.NameResponses),
		syncer.HandleResponseMessage, logger, m).WithBackoff(cfg.ConsumeBackoff)

	// Services
	toucher := lastseen.NewToucher(userRepo, logger, m, cfg.LastSeenQueue)
	authSvc := service.NewAuthService(userRepo, sessionRepo, codec, lim)
	userSvc := service.NewUserService(userRepo, names, publisher)
	janitor := service.NewSessionJanitor(sessionRepo, cfg.PurgeInterval, logger, m)

	api := httpserver.New(authSvc, userSvc, httpserver.NewGate(codec, toucher), logger,
		httpserver.WithMetrics(m, metrics.Handler(reg)),
		httpserver.WithThrottle(httpserver.NewThrottle(cfg.AuthRPS, cfg.AuthBurst)),
	)
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           api.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("listening", zap.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	g.Go(func() error { return unitConsumer.Run(gctx) })
	g.Go(func() error { return responseConsumer.Run(gctx) })
	g.Go(func() error { return toucher.Run(gctx) })
	g.Go(func() error { return janitor.Run(gctx) })

	if err := g.Wait(); err != nil {
		logger.Error("server error", zap.Error(err))
		os.Exit(1)
	}
	logger.Info("shutdown complete")
}

func newLogger(dev bool) *zap.Logger {
	var (
		l   *zap.Logger
		err error
	)
	if dev {
		l, err = zap.NewDevelopment()
	} else {
		l, err = zap.NewProduction()
	}
	if err != nil {
		return zap.NewNop()
	}
	return l
}
