package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"agendafit.app/internal/auth"
	"agendafit.app/internal/config"
	"agendafit.app/internal/events"
	"agendafit.app/internal/httpapi"
	"agendafit.app/internal/migrate"
	"agendafit.app/internal/obs"
	"agendafit.app/internal/service"
	"agendafit.app/internal/store/memory"
	"agendafit.app/internal/store/pg"
	"agendafit.app/internal/stream"
)

var (
	version = "0.1.0"
	commit  = "dev"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		zap.NewExample().Fatal("load config", zap.Error(err))
	}

	logger, err := obs.NewLogger(cfg)
	if err != nil {
		zap.NewExample().Fatal("init logger", zap.Error(err))
	}
	defer func() { _ = logger.Sync() }()
	restore := obs.SetLogger(logger)
	defer restore()

	// Инициализация observability (регистрация метрик)
	obs.Init()
	obs.InitBuildInfo(version, commit)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var (
		store service.Store
		ready httpapi.ReadyProbe
	)
	if cfg.Database.DSN != "" {
		pgStore, err := pg.Open(cfg.Database.DSN, cfg.Database.MaxOpenConns, cfg.Database.MaxIdleConns)
		if err != nil {
			logger.Fatal("open db", zap.Error(err))
		}
		defer pgStore.Close()

		if cfg.MigrateOnStart {
			mgr, err := migrate.NewManager(pgStore.DB())
			if err != nil {
				logger.Fatal("init migrations", zap.Error(err))
			}
			applied, err := mgr.Up(ctx)
			if err != nil {
				logger.Fatal("apply migrations", zap.Error(err))
			}
			logger.Info("migrations applied", zap.Strings("files", applied))
		}
		store = pgStore
		ready = httpapi.ReadyProbe{DB: pgStore.DB()}
		if cfg.SeedFile != "" {
			logger.Warn("SEED_FILE ignored with DB_DSN set", zap.String("file", cfg.SeedFile))
		}
	} else {
		logger.Warn("DB_DSN not set, using in-memory store")
		mem := memory.New()
		if cfg.SeedFile != "" {
			sum, err := mem.SeedFile(ctx, cfg.SeedFile)
			if err != nil {
				logger.Fatal("seed in-memory store", zap.String("file", cfg.SeedFile), zap.Error(err))
			}
			logger.Info("in-memory store seeded",
				zap.String("file", cfg.SeedFile),
				zap.Int("bookings", sum.Bookings),
				zap.Int("accounts", sum.Accounts))
		}
		store = mem
	}

	live := stream.New()
	publishers := events.Fanout{live}
	if len(cfg.Kafka.Brokers) > 0 {
		kp, err := events.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.CheckinTopic, logger)
		if err != nil {
			logger.Fatal("init kafka publisher", zap.Error(err))
		}
		defer func() {
			if err := kp.Close(); err != nil {
				logger.Warn("close kafka publisher", zap.Error(err))
			}
		}()
		publishers = append(publishers, kp)
	}

	tokens, err := auth.NewTokens(cfg.Auth.Secret)
	if err != nil {
		logger.Fatal("init tokens", zap.Error(err))
	}

	checkins := service.NewCheckinService(store,
		service.WithPublisher(publishers),
		service.WithLogger(logger.Named("checkin")),
		service.WithCreditsPerCheckin(cfg.Checkin.CreditsPerCheckin),
	)

	apiOpts := []httpapi.Option{
		httpapi.WithStream(live),
		httpapi.WithRateLimit(cfg.RateLimit.Burst, cfg.RateLimit.PerSecond),
		httpapi.WithAllowedOrigins(cfg.CORS.AllowedOrigins),
	}
	if cfg.Auth.IssuerEnabled {
		logger.Warn("development token issuer enabled")
		apiOpts = append(apiOpts, httpapi.WithTokenIssuer(cfg.Auth.TokenTTL))
	}
	api := httpapi.New(ready, version, checkins, tokens, apiOpts...)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		// SSE clients hold the connection open.
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}

	health := httpapi.NewGRPCHealth(ready)
	grpcSrv := httpapi.NewGRPCServer(health)
	go health.Run(ctx, 10*time.Second)

	go func() {
		logger.Info("http listening", zap.String("addr", srv.Addr), zap.String("version", version))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("http listen", zap.Error(err))
		}
	}()

	go func() {
		lis, err := net.Listen("tcp", cfg.GRPCAddr)
		if err != nil {
			logger.Fatal("grpc listen", zap.Error(err))
		}
		logger.Info("grpc listening", zap.String("addr", cfg.GRPCAddr))
		if err := grpcSrv.Serve(lis); err != nil {
			logger.Error("grpc serve", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	grpcSrv.GracefulStop()
	logger.Info("stopped")
}
