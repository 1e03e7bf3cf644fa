package di

import (
	"context"
	"fmt"
	"time"

	"SignalDesk/internal/domain/models"
	"SignalDesk/internal/domain/repository"
	"SignalDesk/internal/handler/api"
	mid "SignalDesk/internal/middleware"
	internalrepo "SignalDesk/internal/repository"
	"SignalDesk/internal/service/platform"
	"SignalDesk/internal/usecase"
	pkgcache "SignalDesk/pkg/cache"
	pkgch "SignalDesk/pkg/clickhouse"
	"SignalDesk/pkg/config"
	pkgkafka "SignalDesk/pkg/kafka"
	applogger "SignalDesk/pkg/logger"
	"SignalDesk/pkg/metrics"
	"SignalDesk/pkg/scheduler"
	"SignalDesk/pkg/server"
)

// ProvideLogger creates the application logger.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	return applogger.New(&applogger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

// ProvideCache creates the cache service. With Redis enabled the memory layer
// fronts Redis, so a tracked commitment survives process restarts.
func ProvideCache(cfg *config.Config) (pkgcache.Service, error) {
	if !cfg.Redis.Enabled {
		return pkgcache.NewMemoryCache(), nil
	}
	redisCache, err := pkgcache.NewRedisCache(
		pkgcache.WithRedisHost(cfg.Redis.Host),
		pkgcache.WithRedisPort(cfg.Redis.Port),
		pkgcache.WithRedisPassword(cfg.Redis.Password),
		pkgcache.WithRedisDB(cfg.Redis.DB),
		pkgcache.WithRedisPrefix("signaldesk"),
	)
	if err != nil {
		return nil, fmt.Errorf("redis cache: %w", err)
	}
	return pkgcache.NewLayeredCache(redisCache), nil
}

// ProvidePlatformAPI creates the upstream platform client.
func ProvidePlatformAPI(cfg *config.Config, m repository.Metrics) repository.PlatformAPI {
	return platform.New(cfg.Platform.BaseURL, cfg.Platform.APIKey, cfg.Platform.Timeout, m)
}

// ProvideScheduler creates the wall-clock scheduler shared by the countdown
// and the settlement poller.
func ProvideScheduler() scheduler.Real {
	return scheduler.New()
}

// ProvideKafkaProducer creates the Kafka producer, or nil when disabled.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatchTimeout(cfg.Kafka.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.WriteTimeout, cfg.Kafka.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.MaxAttempts),
		pkgkafka.WithAsync(cfg.Kafka.Async),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvideClickHouseClient creates the ClickHouse client, or nil when disabled.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	if !cfg.ClickHouse.Enabled {
		return nil, nil
	}
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout, cfg.ClickHouse.WriteTimeout),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	db := cfg.ClickHouse.Database
	if err := client.InitSchema(ctx, []string{
		"CREATE DATABASE IF NOT EXISTS " + db,
		"CREATE TABLE IF NOT EXISTS " + db + ".settled_commitments (" +
			"usage_id String, signal_id String, committed_amount Float64, " +
			"outcome String, result_amount Float64, profit_percent Float64, " +
			"movement_balance_after Float64, confirmed_at DateTime, settled_at DateTime" +
			") ENGINE=MergeTree ORDER BY (settled_at, usage_id)",
	}); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	return client, nil
}

// ProvideArchive creates the settled-commitment archive, or nil when
// ClickHouse is disabled.
func ProvideArchive(chClient *pkgch.Client, cfg *config.Config) repository.Archive {
	if chClient == nil {
		return nil
	}
	return internalrepo.NewClickHouseArchive(chClient.DB(), cfg.ClickHouse.Database+".settled_commitments")
}

// ProvideCommitmentStore creates the persistent active-commitment store.
func ProvideCommitmentStore(c pkgcache.Service) repository.CommitmentStore {
	return internalrepo.NewCacheCommitmentStore(c)
}

// ProvideWalletCache creates the wallet snapshot cache.
func ProvideWalletCache(pAPI repository.PlatformAPI, c pkgcache.Service, sched scheduler.Real) *internalrepo.WalletCache {
	return internalrepo.NewWalletCache(pAPI, c, sched)
}

// ProvideHistoryView creates the local trade history view.
func ProvideHistoryView(pAPI repository.PlatformAPI) *internalrepo.HistoryView {
	return internalrepo.NewHistoryView(pAPI)
}

// ProvideStreamHub creates the WebSocket push hub.
func ProvideStreamHub(logger *applogger.Logger) *api.StreamHub {
	return api.NewStreamHub(logger)
}

// ProvideEventPipeline builds the lifecycle event fan-out. The WebSocket hub
// is always downstream; Kafka joins when a producer is configured.
func ProvideEventPipeline(
	hub *api.StreamHub,
	producer *pkgkafka.Producer,
	m repository.Metrics,
	cfg *config.Config,
) *mid.EventPipeline {
	downstreams := []mid.Downstream{hub}
	if producer != nil {
		pub := internalrepo.NewKafkaEventPublisher(producer, cfg.Kafka.Topic)
		downstreams = append(downstreams, publisherDownstream{pub})
	}
	return mid.NewEventPipeline(m, downstreams)
}

// ProvideOrchestrator assembles the commitment lifecycle state machine.
func ProvideOrchestrator(
	cfg *config.Config,
	pAPI repository.PlatformAPI,
	sched scheduler.Real,
	store repository.CommitmentStore,
	archive repository.Archive,
	wallets *internalrepo.WalletCache,
	history *internalrepo.HistoryView,
	pipeline *mid.EventPipeline,
	m repository.Metrics,
	logger *applogger.Logger,
) *usecase.Orchestrator {
	gate := usecase.NewGate(cfg.Trading.MinMovementBalance)
	catalog := usecase.NewSignalCatalog(pAPI, cfg.Trading.CatalogTTL, logger)
	confirmer := usecase.NewConfirmer(pAPI, gate, m, logger)
	countdown := usecase.NewCountdownClock(sched, sched, cfg.Trading.CountdownTick)
	poller := usecase.NewSettlementPoller(pAPI, sched, sched, usecase.RetryPolicy{
		Interval:        cfg.Trading.Poll.Interval,
		BackoffInterval: cfg.Trading.Poll.BackoffInterval,
		MaxAttempts:     cfg.Trading.Poll.MaxAttempts,
		Budget:          cfg.Trading.Poll.Budget,
	}, m, logger)
	reconciler := usecase.NewOutcomeReconciler(wallets, history, store, archive, m, logger)

	return usecase.NewOrchestrator(
		catalog, confirmer, countdown, poller, reconciler,
		wallets, history, store, m, logger, pipeline,
	)
}

// ProvideTradingHandler creates the dashboard HTTP handler.
func ProvideTradingHandler(logger *applogger.Logger, orch *usecase.Orchestrator, hub *api.StreamHub) *api.TradingHandler {
	return api.NewTradingHandler(logger, orch, hub)
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	logger *applogger.Logger,
	orch *usecase.Orchestrator,
	pipeline *mid.EventPipeline,
	handler *api.TradingHandler,
	producer *pkgkafka.Producer,
	chClient *pkgch.Client,
) *server.App {
	return server.New(cfg, logger, orch, pipeline, handler, producer, chClient)
}

// publisherDownstream adapts the Kafka publisher to the pipeline interface.
type publisherDownstream struct {
	pub repository.Publisher
}

func (d publisherDownstream) Deliver(ctx context.Context, ev models.LifecycleEvent) error {
	return d.pub.Publish(ctx, ev)
}
