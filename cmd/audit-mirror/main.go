package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/lib/pq"

	"custodia/internal/audit"
	"custodia/internal/platform/config"
	"custodia/internal/platform/kafka"
	"custodia/internal/platform/logger"
)

// audit-mirror consumes the audit entry stream and materializes it into a
// replica store, giving collaborating systems a queryable copy without
// touching the core's committed state.
func main() {
	cfg := config.FromEnv()
	log := logger.New()

	if err := run(context.Background(), cfg, log); err != nil {
		log.Error("mirror exited", "error", err.Error())
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if len(cfg.Kafka.Brokers) == 0 {
		return errors.New("CUSTODIA_KAFKA_BROKERS is required")
	}
	group := os.Getenv("CUSTODIA_MIRROR_GROUP")
	if group == "" {
		group = "custodia-audit-mirror"
	}

	var store audit.Store
	if cfg.PostgresDSN != "" {
		db, err := sql.Open("postgres", cfg.PostgresDSN)
		if err != nil {
			return fmt.Errorf("open postgres: %w", err)
		}
		defer db.Close()
		if err := db.PingContext(ctx); err != nil {
			return fmt.Errorf("ping postgres: %w", err)
		}
		store = audit.NewPostgresStore(db)
	} else {
		log.Warn("no postgres DSN configured, mirror is in-memory only")
		store = audit.NewInMemoryStore()
	}

	consumer, err := kafka.NewConsumer(cfg.Kafka, group, audit.NewMaterializer(store, log), log)
	if err != nil {
		return fmt.Errorf("connect kafka: %w", err)
	}

	log.Info("mirroring audit entries",
		"topic", cfg.Kafka.AuditTopic,
		"group", group,
	)
	if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
