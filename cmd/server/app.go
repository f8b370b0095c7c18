package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/sheikh-saqib/peer-transfer-ledger/internal/config"
	"github.com/sheikh-saqib/peer-transfer-ledger/internal/events/kafka"
	interfaces "github.com/sheikh-saqib/peer-transfer-ledger/internal/interfaces"
	"github.com/sheikh-saqib/peer-transfer-ledger/internal/ledger"
	"github.com/sheikh-saqib/peer-transfer-ledger/internal/metrics"
	"github.com/sheikh-saqib/peer-transfer-ledger/internal/session"
	"github.com/sheikh-saqib/peer-transfer-ledger/internal/storage/memory"
	"github.com/sheikh-saqib/peer-transfer-ledger/internal/storage/postgres"
	"github.com/sheikh-saqib/peer-transfer-ledger/internal/storage/remote"
	"github.com/sheikh-saqib/peer-transfer-ledger/internal/tracking"
)

// app holds everything one process wires together.
type app struct {
	ledger  *ledger.Ledger
	tracker *tracking.Coordinator
	metrics *metrics.Recorder
	closers []func() error
}

func (a *app) Close() error {
	a.metrics.Close()
	a.tracker.Close()

	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	return errors.Join(errs...)
}

// newApp builds the engine and its collaborators from cfg. sessionEmail,
// when set, replaces the Redis session with a fixed identity.
func newApp(ctx context.Context, cfg config.Config, logger zerolog.Logger, sessionEmail string) (*app, error) {
	a := &app{metrics: metrics.NewRecorder()}

	store, err := openStore(ctx, cfg, logger, a)
	if err != nil {
		a.closeQuietly()
		return nil, err
	}

	a.tracker = tracking.NewCoordinator(
		tracking.WithSafetyTimeout(cfg.SafetyTimeout),
		tracking.WithLogger(logger.With().Str("component", "tracking").Logger()),
		tracking.WithTimeoutHook(a.metrics.ForcedRelease),
	)
	a.metrics.Track(a.tracker)

	opts := []ledger.Option{
		ledger.WithTracker(a.tracker),
		ledger.WithObserver(a.metrics),
		ledger.WithLogger(logger.With().Str("component", "ledger").Logger()),
		ledger.WithSerializedWrites(cfg.SerializedWrites),
	}

	if cache := openSession(cfg, sessionEmail, a); cache != nil {
		opts = append(opts, ledger.WithSession(cache))
	}

	if len(cfg.KafkaBrokers) > 0 {
		publisher := kafka.NewPublisher(cfg.KafkaBrokers, kafka.WithTopic(cfg.KafkaTopic))
		a.closers = append(a.closers, publisher.Close)
		opts = append(opts, ledger.WithPublisher(publisher))
	}

	a.ledger = ledger.NewLedger(store, opts...)
	return a, nil
}

func (a *app) closeQuietly() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		_ = a.closers[i]()
	}
}

func openStore(ctx context.Context, cfg config.Config, logger zerolog.Logger, a *app) (interfaces.LedgerStore, error) {
	switch cfg.Backend {
	case config.BackendRemote:
		return remote.NewStore(remote.Config{
			BaseURL:          cfg.RemoteURL,
			AccountsPath:     cfg.AccountsPath,
			TransactionsPath: cfg.TransactionsPath,
			Timeout:          cfg.RequestTimeout,
			RateLimit:        cfg.RateLimit,
			Burst:            cfg.RateBurst,
			BreakerFailures:  cfg.BreakerFailures,
			BreakerCooldown:  cfg.BreakerCooldown,
			Logger:           logger.With().Str("component", "remote").Logger(),
		})

	case config.BackendPostgres:
		db, err := postgres.Open(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, db.Close)

		store := postgres.NewPostgresLedgerStore(db)
		if err := store.Migrate(ctx); err != nil {
			return nil, fmt.Errorf("migrate: %w", err)
		}
		return store, nil

	case config.BackendMemory:
		if cfg.SeedFile == "" {
			return memory.NewMemoryLedgerStore(), nil
		}
		return memory.LoadSeedFile(cfg.SeedFile)
	}
	return nil, fmt.Errorf("unknown store %q", cfg.Backend)
}

func openSession(cfg config.Config, sessionEmail string, a *app) interfaces.SessionCache {
	if sessionEmail != "" {
		return session.NewStatic(sessionEmail)
	}
	if cfg.RedisAddr == "" {
		return nil
	}

	client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	a.closers = append(a.closers, client.Close)
	return session.NewRedisCache(client, cfg.SessionKey)
}
