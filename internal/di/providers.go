package di

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"StratGate/internal/domain/repository"
	"StratGate/internal/handler/api"
	internalrepo "StratGate/internal/repository"
	"StratGate/internal/usecase"
	"StratGate/pkg/cache"
	pkgch "StratGate/pkg/clickhouse"
	"StratGate/pkg/config"
	xhttp "StratGate/pkg/http"
	pkgkafka "StratGate/pkg/kafka"
	"StratGate/pkg/logger"
	"StratGate/pkg/metrics"
	"StratGate/pkg/server"
)

// ProvideLogger creates the application logger from config. When log
// collection is enabled and a producer is available, repeated error logs
// are aggregated and shipped to Kafka.
func ProvideLogger(cfg *config.Config, producer *pkgkafka.Producer) (*logger.Logger, error) {
	log, err := logger.New(&logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
	if err != nil {
		return nil, err
	}

	if cfg.Logging.Collect.Enabled && producer != nil {
		interval := cfg.Logging.Collect.Interval
		if interval <= 0 {
			interval = 30 * time.Second
		}
		threshold := cfg.Logging.Collect.Threshold
		if threshold <= 0 {
			threshold = 100
		}
		topic := cfg.Logging.Collect.Topic
		if topic == "" {
			topic = "stratgate.logs"
		}
		log.AddCollector(&logger.CollectionConfig{
			TimeInterval:   interval,
			CountThreshold: threshold,
			Topic:          topic,
			Publisher:      logPublisher{producer: producer},
		})
	}
	return log, nil
}

// logPublisher adapts the Kafka producer to the logger's collection
// publisher contract.
type logPublisher struct {
	producer *pkgkafka.Producer
}

func (p logPublisher) PublishMessage(ctx context.Context, topic string, payload interface{}) error {
	return p.producer.Publish(ctx, topic, nil, payload)
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

// ProvideReportStore creates the ClickHouse-backed report store, or nil
// when the backend is disabled. Schema creation is deferred to
// ReportStore.Init so the CLI can construct the graph without a live
// database.
func ProvideReportStore(cfg *config.Config) (repository.ReportStore, error) {
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
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}
	return internalrepo.NewClickHouseReportStore(client), nil
}

// ProvideKafkaProducer creates the shared Kafka producer, or nil when the
// backend is disabled.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatchSize(cfg.Kafka.Producer.BatchSize),
		pkgkafka.WithBatchBytes(cfg.Kafka.Producer.BatchBytes),
		pkgkafka.WithBatchTimeout(cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvidePublisher creates the Kafka report publisher, or nil when the
// backend is disabled.
func ProvidePublisher(cfg *config.Config, producer *pkgkafka.Producer) repository.Publisher {
	if producer == nil {
		return nil
	}
	topic := cfg.Kafka.Topic
	if topic == "" {
		topic = "stratgate.reports"
	}
	return internalrepo.NewKafkaPublisher(producer, topic)
}

// ProvideSeriesProvider creates the bar data source: CSV files from
// cfg.Data.Dir, optionally wrapped in a read-through cache.
func ProvideSeriesProvider(cfg *config.Config, log *logger.Logger) (repository.SeriesProvider, error) {
	var provider repository.SeriesProvider = internalrepo.NewCSVProvider(cfg.Data.Dir)
	if !cfg.Cache.Enabled {
		return provider, nil
	}

	var svc cache.Service
	if cfg.Cache.Redis.Enabled {
		host, port, err := splitRedisAddr(cfg.Cache.Redis.Addr)
		if err != nil {
			return nil, err
		}
		redisCache, err := cache.NewRedisCache(
			cache.WithRedisHost(host),
			cache.WithRedisPort(port),
			cache.WithRedisPassword(cfg.Cache.Redis.Password),
			cache.WithRedisDB(cfg.Cache.Redis.DB),
			cache.WithRedisPrefix("stratgate"),
		)
		if err != nil {
			return nil, fmt.Errorf("redis cache: %w", err)
		}
		svc = cache.NewLayeredCache(redisCache)
	} else {
		svc = cache.NewMemoryCache()
	}

	ttl := cfg.Cache.TTL
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return internalrepo.NewCachedProvider(provider, svc, ttl, log), nil
}

func splitRedisAddr(addr string) (string, int, error) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return "", 0, fmt.Errorf("redis addr %q: %w", addr, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return "", 0, fmt.Errorf("redis addr %q: %w", addr, err)
	}
	return host, port, nil
}

// ProvidePipeline creates the single-symbol validation pipeline.
func ProvidePipeline(cfg *config.Config, log *logger.Logger, rec repository.Metrics) *usecase.Pipeline {
	return usecase.NewPipeline(cfg.Validation, log, rec)
}

// ProvideOrchestrator creates the multi-symbol orchestrator.
func ProvideOrchestrator(
	cfg *config.Config,
	provider repository.SeriesProvider,
	pipeline *usecase.Pipeline,
	store repository.ReportStore,
	pub repository.Publisher,
	log *logger.Logger,
	rec repository.Metrics,
) *usecase.Orchestrator {
	return usecase.NewOrchestrator(cfg.Validation, provider, pipeline, store, pub, log, rec)
}

// ProvideReportsHandler creates the HTTP handler surface.
func ProvideReportsHandler(log *logger.Logger, orch *usecase.Orchestrator, store repository.ReportStore) xhttp.Handler {
	return api.NewReportsHandler(log, orch, store)
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	log *logger.Logger,
	handler xhttp.Handler,
	store repository.ReportStore,
	pub repository.Publisher,
) *server.App {
	return server.New(cfg, log, handler, store, pub)
}
