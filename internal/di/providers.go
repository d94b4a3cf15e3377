package di

import (
	"context"
	"fmt"
	"time"

	"FinRank/internal/domain/repository"
	"FinRank/internal/handler/api"
	internalrepo "FinRank/internal/repository"
	"FinRank/internal/services/ml"
	"FinRank/internal/usecase"
	"FinRank/pkg/cache"
	pkgch "FinRank/pkg/clickhouse"
	"FinRank/pkg/config"
	xhttp "FinRank/pkg/http"
	pkgkafka "FinRank/pkg/kafka"
	applogger "FinRank/pkg/logger"
	"FinRank/pkg/metrics"
	"FinRank/pkg/server"
	"FinRank/pkg/util"
)

// ProvideLogger builds the application logger from config.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	l, err := applogger.New(&applogger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	return l.With(applogger.String("env", cfg.Environment)), nil
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

// ProvideCache selects the cache backend used for the universe and retrain locks.
func ProvideCache(cfg *config.Config, l *applogger.Logger) (cache.Service, func(), error) {
	switch cfg.Cache.Backend {
	case "redis", "layered":
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		rc, err := cache.NewRedisCache(ctx,
			cache.WithRedisAddr(cfg.Cache.Redis.Addr),
			cache.WithRedisPassword(cfg.Cache.Redis.Password),
			cache.WithRedisDB(cfg.Cache.Redis.DB),
		)
		if err != nil {
			return nil, nil, fmt.Errorf("redis cache: %w", err)
		}
		var svc cache.Service = rc
		if cfg.Cache.Backend == "layered" {
			svc = cache.NewLayeredCache(rc,
				cache.WithLayeredMemorySize(cfg.Cache.MemoryCapacity),
				cache.WithLayeredL1TTL(cfg.Cache.L1TTL),
			)
		}
		cleanup := func() {
			if err := svc.Close(); err != nil {
				l.Warn("cache close error", applogger.Error(err))
			}
		}
		return svc, cleanup, nil
	default:
		mc := cache.NewMemoryCache(cache.WithMemoryMaxSize(cfg.Cache.MemoryCapacity))
		return mc, func() { _ = mc.Close() }, nil
	}
}

// ProvideClickHouseClient returns nil when ClickHouse is disabled.
func ProvideClickHouseClient(cfg *config.Config, l *applogger.Logger) (*pkgch.Client, func(), error) {
	if !cfg.ClickHouse.Enabled {
		return nil, func() {}, nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := pkgch.NewClient(ctx,
		pkgch.WithAddress(cfg.ClickHouse.Host, cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("clickhouse client: %w", err)
	}
	if err := client.InitSchema(ctx, internalrepo.BarSchema); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	cleanup := func() {
		if err := client.Close(); err != nil {
			l.Warn("clickhouse close error", applogger.Error(err))
		}
	}
	return client, cleanup, nil
}

// ProvidePriceSource builds the configured provider. With ClickHouse enabled
// the bar store serves as fallback and, optionally, as archive.
func ProvidePriceSource(cfg *config.Config, ch *pkgch.Client, m repository.Metrics, l *applogger.Logger) (repository.PriceSource, error) {
	md := cfg.MarketData
	var bars *internalrepo.ClickHouseBarStore
	if ch != nil {
		bars = internalrepo.NewClickHouseBarStore(ch, l)
	}

	var primary repository.PriceSource
	switch md.Provider {
	case "alpaca":
		primary = internalrepo.NewAlpacaPriceSource(internalrepo.AlpacaOptions{
			APIKey:            md.Alpaca.APIKey,
			APISecret:         md.Alpaca.APISecret,
			BaseURL:           md.Alpaca.BaseURL,
			Feed:              md.Alpaca.Feed,
			RequestsPerSecond: md.Alpaca.RequestsPerSecond,
			Burst:             md.Alpaca.Burst,
			SymbolSuffix:      md.SymbolSuffix,
		}, l)
	case "http":
		client := xhttp.NewClient(
			xhttp.WithTimeout(md.HTTP.Timeout),
			xhttp.WithRetry(md.HTTP.RetryAttempts, md.HTTP.RetryBackoff),
		)
		primary = internalrepo.NewHTTPPriceSource(md.HTTP.BaseURL, md.SymbolSuffix, client, l)
	case "clickhouse":
		if bars == nil {
			return nil, fmt.Errorf("price source: clickhouse provider requires clickhouse.enabled")
		}
		return bars, nil
	default:
		return nil, fmt.Errorf("price source: unknown provider %q", md.Provider)
	}

	var fallback repository.PriceSource
	var archive repository.BarArchive
	if bars != nil {
		fallback = bars
		if md.ArchiveBars {
			archive = bars
		}
	}
	if !md.Breaker.Enabled && fallback == nil {
		return primary, nil
	}
	return internalrepo.NewResilientPriceSource(primary, fallback, archive, internalrepo.BreakerSettings{
		Name:             md.Provider,
		MaxRequests:      md.Breaker.MaxRequests,
		Interval:         md.Breaker.Interval,
		Timeout:          md.Breaker.Timeout,
		FailureThreshold: md.Breaker.FailureThreshold,
	}, m, l), nil
}

func ProvideArtifactStore(cfg *config.Config, l *applogger.Logger) repository.ArtifactStore {
	return internalrepo.NewFileArtifactStore(cfg.Model.ArtifactDir, cfg.Model.KeepGenerations, l)
}

// ProvideRegistry loads whatever segment models are on disk.
func ProvideRegistry(store repository.ArtifactStore, l *applogger.Logger) *usecase.Registry {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return usecase.LoadRegistry(ctx, store, l)
}

// ProvideKafkaProducer returns nil when Kafka is disabled.
func ProvideKafkaProducer(cfg *config.Config, l *applogger.Logger) (*pkgkafka.Producer, func(), error) {
	if !cfg.Kafka.Enabled {
		return nil, func() {}, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithBatching(cfg.Kafka.Producer.BatchSize, cfg.Kafka.Producer.Linger),
		pkgkafka.WithWriteTimeout(cfg.Kafka.Producer.WriteTimeout),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("kafka producer: %w", err)
	}
	cleanup := func() {
		if err := producer.Close(); err != nil {
			l.Warn("kafka producer close error", applogger.Error(err))
		}
	}
	return producer, cleanup, nil
}

// ProvideRecommendationSink fans recommendation sets out to Postgres and Kafka
// when they are enabled.
func ProvideRecommendationSink(cfg *config.Config, producer *pkgkafka.Producer, l *applogger.Logger) (repository.RecommendationSink, func(), error) {
	var sinks internalrepo.MultiSink
	cleanup := func() {}

	if cfg.Postgres.Enabled {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		db, err := internalrepo.OpenPostgres(ctx, cfg.Postgres.DSN, cfg.Postgres.MaxOpenConns)
		if err != nil {
			return nil, nil, fmt.Errorf("postgres: %w", err)
		}
		store := internalrepo.NewPostgresRecommendationStore(db, l)
		if err := store.Init(ctx); err != nil {
			_ = db.Close()
			return nil, nil, fmt.Errorf("postgres schema: %w", err)
		}
		sinks = append(sinks, store)
		cleanup = func() {
			if err := db.Close(); err != nil {
				l.Warn("postgres close error", applogger.Error(err))
			}
		}
	}
	if producer != nil {
		sinks = append(sinks, internalrepo.NewKafkaRecommendationPublisher(producer, cfg.Kafka.Topics.Recommendations))
	}

	if len(sinks) == 0 {
		return internalrepo.NopSink{}, cleanup, nil
	}
	return sinks, cleanup, nil
}

func ProvideEventPublisher(cfg *config.Config, producer *pkgkafka.Producer) repository.EventPublisher {
	if producer == nil {
		return internalrepo.NopEventPublisher{}
	}
	return internalrepo.NewKafkaEventPublisher(producer, cfg.Kafka.Topics.SegmentTrained)
}

func ProvideTrainer(
	cfg *config.Config,
	source repository.PriceSource,
	store repository.ArtifactStore,
	registry *usecase.Registry,
	events repository.EventPublisher,
	m repository.Metrics,
	l *applogger.Logger,
) *usecase.Trainer {
	return usecase.NewTrainer(source, store, registry, events, m, usecase.TrainerConfig{
		Period: util.MustParsePeriod(cfg.Model.TrainingPeriod),
		Forest: ml.ForestConfig{
			Trees:          cfg.Model.Trees,
			Seed:           cfg.Model.Seed,
			MaxDepth:       cfg.Model.MaxDepth,
			MinSamplesLeaf: cfg.Model.MinSamplesLeaf,
			Workers:        cfg.Model.Workers,
		},
		FetchWorkers: cfg.Model.Workers,
	}, l)
}

func ProvideRecommender(cfg *config.Config, m repository.Metrics, l *applogger.Logger) *usecase.Recommender {
	return usecase.NewRecommender(cfg.Scoring.TopN, m, l)
}

func ProvideUniverse(cfg *config.Config, c cache.Service, l *applogger.Logger) *usecase.Universe {
	return usecase.NewUniverse(c, cfg.Universe.CacheTTL, cfg.Universe.Segments, l)
}

func ProvideOrchestrator(
	cfg *config.Config,
	registry *usecase.Registry,
	recommender *usecase.Recommender,
	trainer *usecase.Trainer,
	universe *usecase.Universe,
	locks cache.Service,
	source repository.PriceSource,
	m repository.Metrics,
	l *applogger.Logger,
) *usecase.Orchestrator {
	return usecase.NewOrchestrator(registry, recommender, trainer, universe, locks, source, m, usecase.OrchestratorConfig{
		VerifyPeriod:   util.MustParsePeriod(cfg.Universe.VerifyPeriod),
		MinHistoryDays: cfg.Universe.MinHistoryDays,
		MinSymbols:     cfg.Universe.MinSymbols,
		LockTTL:        cfg.Retrain.LockTTL,
		RetrainTimeout: cfg.Retrain.Timeout,
		TopN:           cfg.Scoring.TopN,
	}, l)
}

func ProvideRecommendationsUseCase(
	orch *usecase.Orchestrator,
	sink repository.RecommendationSink,
	m repository.Metrics,
	l *applogger.Logger,
) *usecase.RecommendationsUseCase {
	return usecase.NewRecommendationsUseCase(orch, sink, m, l)
}

// ProvideRetrainScheduler returns nil when scheduled retraining is disabled.
func ProvideRetrainScheduler(cfg *config.Config, orch *usecase.Orchestrator, l *applogger.Logger) *usecase.RetrainScheduler {
	if !cfg.Retrain.Enabled {
		return nil
	}
	hour, minute, _ := util.ParseClock(cfg.Retrain.At)
	return usecase.NewRetrainScheduler(orch, usecase.SchedulerConfig{
		Hour:      hour,
		Minute:    minute,
		OnStartup: cfg.Retrain.OnStartup,
		Timeout:   cfg.Retrain.Timeout,
	}, l)
}

// ProvideRetrainCommandHandler handles admin retrain commands from Kafka.
func ProvideRetrainCommandHandler(cfg *config.Config, orch *usecase.Orchestrator, m repository.Metrics, l *applogger.Logger) *usecase.RetrainCommandHandler {
	return usecase.NewRetrainCommandHandler(cfg.Kafka.Topics.RetrainCommands, orch, cfg.Retrain.Timeout, m, l)
}

// ProvideKafkaConsumer returns nil when Kafka is disabled.
func ProvideKafkaConsumer(cfg *config.Config, l *applogger.Logger) (*pkgkafka.Consumer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	consumer, err := pkgkafka.NewConsumer(l,
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.Consumer.DLQTopic),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	consumer.WithConsumerHook(pkgkafka.NoopHook{})
	return consumer, nil
}

func ProvideHTTPServer(cfg *config.Config, uc *usecase.RecommendationsUseCase, l *applogger.Logger) *xhttp.Server {
	handlers := []xhttp.Handler{api.NewRecommendationsEchoHandler(l, uc)}
	opts := []xhttp.ServerOption{
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
	}
	if cfg.Metrics.Enabled {
		opts = append(opts, xhttp.WithMetricsPath(cfg.Metrics.Path))
	} else {
		opts = append(opts, xhttp.WithMetricsPath(""))
	}
	return xhttp.NewServer(l, handlers, opts...)
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	l *applogger.Logger,
	srv *xhttp.Server,
	orch *usecase.Orchestrator,
	scheduler *usecase.RetrainScheduler,
	consumer *pkgkafka.Consumer,
	kh *usecase.RetrainCommandHandler,
) *server.App {
	return server.New(cfg, l, srv, orch, scheduler, consumer, kh)
}
