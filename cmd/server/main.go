package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/lib/pq"
	"golang.org/x/sync/errgroup"

	"custodia/internal/access"
	"custodia/internal/audit"
	"custodia/internal/identity"
	"custodia/internal/jwttoken"
	"custodia/internal/ledger"
	"custodia/internal/platform/config"
	"custodia/internal/platform/httpserver"
	"custodia/internal/platform/kafka"
	"custodia/internal/platform/logger"
	"custodia/internal/platform/metrics"
	platformredis "custodia/internal/platform/redis"
	httptransport "custodia/internal/transport/http"
	"custodia/internal/validator"
	validatormetrics "custodia/internal/validator/metrics"
	"custodia/pkg/domain"
	"custodia/pkg/platform/tx"
)

// main wires the stores, services, sequencer, and HTTP surface, then runs
// until interrupted. Business logic lives in the internal packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New()

	if err := run(context.Background(), cfg, log); err != nil {
		log.Error("server exited", "error", err.Error())
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()
	clock := ledger.NewCommandClock()

	var (
		identityStore  identity.Store
		accessStore    access.Store
		auditStore     audit.Store
		auditRegistry  audit.RegistryStore
		validatorStore validator.Store
		commandLog     ledger.Log
		runner         tx.Runner
	)
	if cfg.PostgresDSN != "" {
		db, err := sql.Open("postgres", cfg.PostgresDSN)
		if err != nil {
			return fmt.Errorf("open postgres: %w", err)
		}
		defer db.Close()
		if err := db.PingContext(ctx); err != nil {
			return fmt.Errorf("ping postgres: %w", err)
		}

		pool, err := pgxpool.New(ctx, cfg.PostgresDSN)
		if err != nil {
			return fmt.Errorf("open pgx pool: %w", err)
		}
		defer pool.Close()

		identityStore = identity.NewPostgresStore(db)
		accessStore = access.NewPostgresStore(db)
		auditStore = audit.NewPostgresStore(db)
		auditRegistry = audit.NewPostgresRegistry(db)
		validatorStore = validator.NewPostgresStore(db)
		commandLog = ledger.NewPostgresLog(pool)
		runner = &tx.SQLRunner{DB: db}
	} else {
		log.Warn("no postgres DSN configured, state is in-memory only")
		identityStore = identity.NewInMemoryStore()
		accessStore = access.NewInMemoryStore()
		auditStore = audit.NewInMemoryStore()
		auditRegistry = audit.NewInMemoryRegistry()
		validatorStore = validator.NewInMemoryStore()
		commandLog = ledger.NewInMemoryLog()
		runner = tx.NopRunner{}
	}

	registrars := make([]domain.Principal, 0, len(cfg.Registrars))
	for _, raw := range cfg.Registrars {
		p, err := domain.ParsePrincipal(raw)
		if err != nil {
			return fmt.Errorf("invalid registrar %q: %w", raw, err)
		}
		registrars = append(registrars, p)
	}

	identitySvc := identity.New(identityStore, registrars,
		identity.WithLogger(log),
		identity.WithMetrics(m),
		identity.WithClock(clock.Now),
	)

	auditOpts := []audit.Option{
		audit.WithLogger(log),
		audit.WithMetrics(m),
		audit.WithClock(clock.Now),
	}
	var producer *kafka.Producer
	if len(cfg.Kafka.Brokers) > 0 {
		var err error
		producer, err = kafka.NewProducer(ctx, cfg.Kafka)
		if err != nil {
			return fmt.Errorf("connect kafka: %w", err)
		}
		defer producer.Close()
		auditOpts = append(auditOpts, audit.WithPublisher(audit.NewStreamPublisher(producer)))
	}
	auditSvc := audit.New(auditStore, auditRegistry, identitySvc, auditOpts...)
	// The audit service needs identity for existence checks and identity
	// needs the sink; break the cycle after construction.
	identitySvc.SetAuditSink(auditSvc)

	accessSvc := access.New(accessStore, identitySvc,
		access.WithLogger(log),
		access.WithAuditSink(auditSvc),
		access.WithMetrics(m),
		access.WithClock(clock.Now),
	)
	validatorSvc := validator.New(validatorStore, identitySvc,
		validator.Config{
			MinStake:  cfg.MinValidatorStake,
			Staleness: cfg.ValidatorStaleness,
		},
		validator.WithLogger(log),
		validator.WithAuditSink(auditSvc),
		validator.WithMetrics(validatormetrics.New()),
		validator.WithClock(clock.Now),
	)

	if err := auditSvc.RegisterCoreActionTypes(ctx); err != nil {
		return fmt.Errorf("seed action types: %w", err)
	}

	seqOpts := []ledger.SequencerOption{
		ledger.WithLogger(log),
		ledger.WithMetrics(m),
	}
	var identityReader httptransport.IdentityReader = identitySvc
	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	if redisClient != nil {
		defer redisClient.Close()
		cache := identity.NewProfileCache(redisClient.Client, cfg.Redis.ProfileTTL)
		identityReader = identity.NewCachedProfiles(identitySvc, cache, log)
		seqOpts = append(seqOpts, ledger.WithInvalidator(cache))
	}

	dispatcher := ledger.NewDispatcher(identitySvc, accessSvc, auditSvc, validatorSvc)
	sequencer := ledger.NewSequencer(commandLog, runner, dispatcher, clock, seqOpts...)

	jwtSvc := jwttoken.NewService(cfg.JWTSigningKey, "custodia")

	router := httptransport.NewRouter(
		httptransport.RouterConfig{
			Logger:       log,
			JWTValidator: jwtSvc,
		},
		httptransport.NewDelegatedHandler(sequencer, identitySvc, log),
		httptransport.NewIdentityHandler(sequencer, identityReader, log),
		httptransport.NewAccessHandler(sequencer, accessSvc, log),
		httptransport.NewAuditHandler(sequencer, auditSvc, log),
		httptransport.NewValidatorHandler(sequencer, validatorSvc, log),
	)
	srv := httpserver.New(cfg.Addr, router)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := sequencer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		log.Info("listening", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
