// main wires the protocol lifecycle service: stores, cache, sequence
// generator, transition engine and the HTTP surface. Business logic lives in
// the internal services packages.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"civicdesk/internal/catalog"
	citizencache "civicdesk/internal/citizen/cache"
	citizenstore "civicdesk/internal/citizen/store"
	"civicdesk/internal/citizenlink/resolver"
	linkstore "civicdesk/internal/citizenlink/store"
	familystore "civicdesk/internal/family/store"
	jwttoken "civicdesk/internal/jwt_token"
	"civicdesk/internal/module/dispatcher"
	modulestore "civicdesk/internal/module/store"
	"civicdesk/internal/notify"
	"civicdesk/internal/platform/config"
	"civicdesk/internal/platform/httpserver"
	"civicdesk/internal/platform/kafka"
	"civicdesk/internal/platform/logger"
	platformmetrics "civicdesk/internal/platform/metrics"
	"civicdesk/internal/platform/postgres"
	"civicdesk/internal/platform/redis"
	"civicdesk/internal/protocol/engine"
	"civicdesk/internal/protocol/handler"
	protometrics "civicdesk/internal/protocol/metrics"
	"civicdesk/internal/protocol/policy"
	"civicdesk/internal/protocol/sequence"
	"civicdesk/internal/protocol/service"
	historystore "civicdesk/internal/protocol/store/history"
	protocolstore "civicdesk/internal/protocol/store/protocol"
	httptransport "civicdesk/internal/transport/http"
)

func main() {
	cfg := config.FromEnv()
	log := logger.New()
	slog.SetDefault(log)

	if err := run(cfg, log); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Server, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	httpMetrics := platformmetrics.New()
	lifecycleMetrics := protometrics.New()
	healthChecks := map[string]httptransport.HealthCheck{}

	// Storage profile: Postgres when configured, in-memory otherwise. The
	// in-memory profile serves local development and demos only; protocol
	// numbers are not durable across restarts without Postgres.
	var (
		services  catalog.Store
		citizens  citizenstore.Directory
		family    familystore.Store
		protocols protocolstore.Store
		links     linkstore.Store
		history   historystore.Store
		entities  modulestore.EntityStore
		seq       sequence.Generator
	)

	resetPolicy := sequence.ResetPolicy(cfg.SequenceResetPolicy)
	if !resetPolicy.IsValid() {
		log.Warn("unknown sequence reset policy, using yearly", "policy", cfg.SequenceResetPolicy)
		resetPolicy = sequence.ResetYearly
	}

	engineOpts := []engine.Option{
		engine.WithLogger(log),
		engine.WithMetrics(lifecycleMetrics),
	}
	serviceOpts := []service.Option{
		service.WithLogger(log),
		service.WithMetrics(lifecycleMetrics),
	}

	if cfg.DatabaseURL != "" {
		db, err := postgres.Open(cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer db.Close()
		if err := postgres.EnsureSchema(ctx, db); err != nil {
			return err
		}
		healthChecks["postgres"] = db.PingContext

		services = catalog.NewPostgres(db)
		citizens = citizenstore.NewPostgres(db)
		family = familystore.NewPostgres(db)
		protocols = protocolstore.NewPostgres(db)
		links = linkstore.NewPostgres(db)
		history = historystore.NewPostgres(db)
		entities = modulestore.NewPostgres(db)
		seq = sequence.NewPostgres(db,
			sequence.WithResetPolicy(resetPolicy),
			sequence.WithMetrics(lifecycleMetrics),
		)
		engineOpts = append(engineOpts, engine.WithDB(db))
		serviceOpts = append(serviceOpts, service.WithDB(db))
	} else {
		log.Warn("DATABASE_URL not set, using in-memory stores")
		mem := catalog.NewInMemory()
		memCitizens := citizenstore.NewInMemory()
		services = mem
		citizens = memCitizens
		family = familystore.NewInMemory()
		protocols = protocolstore.NewInMemory(mem, memCitizens)
		links = linkstore.NewInMemory()
		history = historystore.NewInMemory()
		entities = modulestore.NewInMemory()
		seq = sequence.NewInMemory(sequence.WithInMemoryResetPolicy(resetPolicy))
	}

	redisClient, err := redis.New(cfg.RedisAddr)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer redisClient.Close()
		healthChecks["redis"] = redisClient.Health
		citizens = citizencache.New(citizens, redisClient.Client,
			citizencache.WithTTL(config.CitizenCacheTTL),
			citizencache.WithLogger(log),
		)
	}

	if len(cfg.KafkaBrokers) > 0 {
		producer, err := kafka.NewProducer(cfg.KafkaBrokers)
		if err != nil {
			return err
		}
		defer producer.Close()
		notifier := notify.NewKafka(producer)
		engineOpts = append(engineOpts, engine.WithNotifier(notifier))
		serviceOpts = append(serviceOpts, service.WithNotifier(notifier))
	}

	matrix := policy.Default()
	eng := engine.New(protocols, history, matrix,
		dispatcher.New(entities,
			dispatcher.WithLogger(log),
			dispatcher.WithMetrics(lifecycleMetrics)),
		engineOpts...)
	svc := service.New(
		services,
		citizens,
		protocols,
		links,
		history,
		seq,
		resolver.New(citizens, family, resolver.WithLogger(log)),
		matrix,
		serviceOpts...,
	)

	tokens := jwttoken.NewJWTService(cfg.JWTSigningKey, "civicdesk", "civicdesk-portal")
	router := httptransport.New(httptransport.Deps{
		Protocols:    handler.New(svc, eng, log),
		Tokens:       tokens,
		Logger:       log,
		Metrics:      httpMetrics,
		HealthChecks: healthChecks,
	})

	srv := httpserver.New(cfg.Addr, router)
	errCh := make(chan error, 1)
	go func() {
		log.Info("starting civicdesk", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
