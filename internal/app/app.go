// Package app assembles the stores and the synchronizer shared by the
// server and syncctl binaries.
package app

import (
	"context"
	"log/slog"

	electionstore "github.com/technerv/election-monitor/internal/election/store"
	"github.com/technerv/election-monitor/internal/fanout"
	fanoutkafka "github.com/technerv/election-monitor/internal/fanout/kafka"
	fanoutmetrics "github.com/technerv/election-monitor/internal/fanout/metrics"
	"github.com/technerv/election-monitor/internal/platform/config"
	"github.com/technerv/election-monitor/internal/platform/postgres"
	redisclient "github.com/technerv/election-monitor/internal/platform/redis"
	"github.com/technerv/election-monitor/internal/reconcile/fetch"
	"github.com/technerv/election-monitor/internal/reconcile/lease"
	syncmetrics "github.com/technerv/election-monitor/internal/reconcile/metrics"
	reconcileservice "github.com/technerv/election-monitor/internal/reconcile/service"
	"github.com/technerv/election-monitor/internal/reconcile/source"
	reportservice "github.com/technerv/election-monitor/internal/report/service"
	reportstore "github.com/technerv/election-monitor/internal/report/store"
)

// ElectionStore backs both the synchronizer and report validation.
type ElectionStore interface {
	reconcileservice.Store
	reportservice.ElectionLookup
}

// Stores are the persistence backends picked from config.
type Stores struct {
	Reports   reportservice.Store
	Elections ElectionStore
	close     func()
}

func (s *Stores) Close() {
	if s.close != nil {
		s.close()
	}
}

// OpenStores connects to Postgres and applies migrations. Without a database
// URL it returns in-memory stores.
func OpenStores(ctx context.Context, cfg config.DatabaseConfig, logger *slog.Logger) (*Stores, error) {
	if cfg.URL == "" {
		logger.Warn("no database configured, using in-memory stores")
		return &Stores{
			Reports:   reportstore.NewInMemoryStore(),
			Elections: electionstore.NewInMemoryStore(),
		}, nil
	}

	db, err := postgres.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := postgres.Migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	pool, err := postgres.OpenPool(ctx, cfg)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Stores{
		Reports:   reportstore.NewPostgres(db),
		Elections: electionstore.NewPostgres(pool),
		close: func() {
			pool.Close()
			_ = db.Close()
		},
	}, nil
}

// OpenLocker returns a Redis lease when Redis is configured, otherwise a
// process-local one. The returned func closes the connection.
func OpenLocker(ctx context.Context, cfg config.RedisConfig, logger *slog.Logger) (lease.Locker, func(), error) {
	rc, err := redisclient.New(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	if rc == nil {
		logger.Info("no redis configured, sync leases are process-local")
		return lease.NewInMemory(), func() {}, nil
	}
	return lease.NewRedis(rc.Client), func() { _ = rc.Close() }, nil
}

// NewHub builds the fan-out hub from config, mirroring to Kafka when brokers
// are configured. The returned func closes the mirror.
func NewHub(ctx context.Context, cfg *config.Config, logger *slog.Logger, m *fanoutmetrics.Metrics) (*fanout.Hub, func(context.Context), error) {
	opts := []fanout.Option{
		fanout.WithQueueSize(cfg.Fanout.QueueSize),
		fanout.WithOverflowPolicy(fanout.OverflowPolicy(cfg.Fanout.OverflowPolicy)),
		fanout.WithSnapshot(cfg.Fanout.SnapshotWindow, cfg.Fanout.SnapshotLimit),
		fanout.WithLogger(logger),
		fanout.WithMetrics(m),
	}
	closeSink := func(context.Context) {}
	if len(cfg.Kafka.Brokers) > 0 {
		sink, err := fanoutkafka.NewSink(cfg.Kafka, logger, m)
		if err != nil {
			return nil, nil, err
		}
		if err := sink.EnsureTopic(ctx, cfg.Kafka.Partitions); err != nil {
			logger.Warn("kafka mirror topic not ensured", "topic", cfg.Kafka.Topic, "error", err)
		}
		opts = append(opts, fanout.WithSink(sink))
		closeSink = func(ctx context.Context) { _ = sink.Close(ctx) }
	}
	return fanout.New(opts...), closeSink, nil
}

// NewSynchronizer wires the rate-limited client, the strategy chain and the
// announcement portal into a synchronizer.
func NewSynchronizer(cfg *config.Config, store reconcileservice.Store, publisher reconcileservice.Publisher,
	locker lease.Locker, logger *slog.Logger, m *syncmetrics.Metrics,
) (*reconcileservice.Synchronizer, *source.Portal, error) {
	client := fetch.NewFromConfig(cfg.Fetch, fetch.WithLogger(logger), fetch.WithMetrics(m))
	chain := source.NewDefaultChain(cfg.Fetch, client, source.WithChainLogger(logger), source.WithChainMetrics(m))
	portal := source.NewPortal(client, cfg.Fetch.BaseURL, cfg.Fetch.FormsURL)

	sync, err := reconcileservice.New(store, chain, publisher,
		reconcileservice.WithLogger(logger),
		reconcileservice.WithMetrics(m),
		reconcileservice.WithAnnouncements(portal),
		reconcileservice.WithLocker(locker),
		reconcileservice.WithLeaseTTL(cfg.Sync.LeaseTTL),
		reconcileservice.WithMaxConcurrent(cfg.Sync.MaxConcurrent),
		reconcileservice.WithArchiveAfter(cfg.Sync.ArchiveAfter),
	)
	if err != nil {
		return nil, nil, err
	}
	return sync, portal, nil
}
