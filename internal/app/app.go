// Package app wires the iris collaborators together and owns their lifecycle.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/Gobusters/ectologger"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/Ramsey-B/iris/config"
	"github.com/Ramsey-B/iris/internal/repositories/decisionrecord"
	"github.com/Ramsey-B/iris/pkg/audit"
	"github.com/Ramsey-B/iris/pkg/database"
	"github.com/Ramsey-B/iris/pkg/disambiguation"
	"github.com/Ramsey-B/iris/pkg/embedding"
	"github.com/Ramsey-B/iris/pkg/events"
	"github.com/Ramsey-B/iris/pkg/graph"
	"github.com/Ramsey-B/iris/pkg/indexguard"
	"github.com/Ramsey-B/iris/pkg/kafka"
	"github.com/Ramsey-B/iris/pkg/matching"
	"github.com/Ramsey-B/iris/pkg/redis"
	"github.com/Ramsey-B/iris/pkg/rerank"
	"github.com/Ramsey-B/iris/pkg/retrieval"
	"github.com/Ramsey-B/iris/pkg/startup"
	"github.com/Ramsey-B/iris/pkg/tracing"
	"github.com/Ramsey-B/iris/pkg/tracing/exporters"
)

const (
	DependencyTracing  = "tracing"
	DependencyDatabase = "database"
	DependencyGraph    = "graph"
	DependencyRedis    = "redis"
	DependencyKafka    = "kafka"
	DependencyService  = "service"
	DependencyIndex    = "index"
)

// Options select which parts of the application start
type Options struct {
	// MigrateOnly starts the audit database and nothing else
	MigrateOnly bool
	// WarmIndex builds the candidate index once the service is up
	WarmIndex bool
}

// App holds the running collaborators
type App struct {
	cfg     *config.Config
	logger  ectologger.Logger
	startup *startup.Startup

	tracerProvider *sdktrace.TracerProvider
	db             database.DB
	graph          *graph.Client
	entities       *graph.EntityStore
	redis          *redis.Client
	producer       *kafka.Producer
	emitter        *events.Emitter
	guard          *indexguard.Guard[retrieval.Index]
	service        *disambiguation.Service
}

// New registers the startup dependencies selected by opts. Nothing connects until Start.
func New(cfg *config.Config, logger ectologger.Logger, opts Options) *App {
	a := &App{
		cfg:     cfg,
		logger:  logger,
		startup: startup.NewStartup(logger, cfg.StartupMaxAttempts),
	}

	if opts.MigrateOnly {
		a.startup.AddDependency(&startup.Dependency{
			Name:      DependencyDatabase,
			StartFunc: a.startDatabase,
			StopFunc:  a.stopDatabase,
		})
		return a
	}

	serviceRequires := []string{DependencyGraph}

	if cfg.OtelEnabled {
		a.startup.AddDependency(&startup.Dependency{
			Name:      DependencyTracing,
			StartFunc: a.startTracing,
			StopFunc:  a.stopTracing,
		})
		serviceRequires = append(serviceRequires, DependencyTracing)
	}

	if cfg.DatabaseEnabled {
		a.startup.AddDependency(&startup.Dependency{
			Name:      DependencyDatabase,
			StartFunc: a.startDatabase,
			StopFunc:  a.stopDatabase,
		})
		serviceRequires = append(serviceRequires, DependencyDatabase)
	}

	a.startup.AddDependency(&startup.Dependency{
		Name:      DependencyGraph,
		StartFunc: a.startGraph,
		StopFunc:  a.stopGraph,
	})

	if cfg.RedisEnabled {
		a.startup.AddDependency(&startup.Dependency{
			Name:      DependencyRedis,
			StartFunc: a.startRedis,
			StopFunc:  a.stopRedis,
		})
		serviceRequires = append(serviceRequires, DependencyRedis)
	}

	if cfg.KafkaEnabled {
		a.startup.AddDependency(&startup.Dependency{
			Name:      DependencyKafka,
			StartFunc: a.startKafka,
			StopFunc:  a.stopKafka,
		})
		serviceRequires = append(serviceRequires, DependencyKafka)
	}

	a.startup.AddDependency(&startup.Dependency{
		Name:      DependencyService,
		Requires:  serviceRequires,
		StartFunc: a.startService,
	})

	if opts.WarmIndex {
		a.startup.AddDependency(&startup.Dependency{
			Name:      DependencyIndex,
			Requires:  []string{DependencyService},
			StartFunc: a.warmIndex,
		})
	}

	return a
}

// Start starts every registered dependency in order
func (a *App) Start(ctx context.Context) error {
	return a.startup.Start(ctx)
}

// Stop stops the started dependencies in reverse order
func (a *App) Stop(ctx context.Context) error {
	return a.startup.Stop(ctx)
}

// Service returns the disambiguation service. Nil until Start succeeds.
func (a *App) Service() *disambiguation.Service {
	return a.service
}

// Database returns the audit database. Nil when disabled or not started.
func (a *App) Database() database.DB {
	return a.db
}

func (a *App) startTracing(ctx context.Context) error {
	headers, err := exporters.ParseHeaders(a.cfg.OtelHeaders)
	if err != nil {
		return err
	}
	exporter, err := exporters.NewOTLPExporter(ctx, exporters.OTLPConfig{
		Endpoint: a.cfg.OtelEndpoint,
		Protocol: a.cfg.OtelProtocol,
		Insecure: a.cfg.OtelInsecure,
		Headers:  headers,
	})
	if err != nil {
		return fmt.Errorf("failed to create OTLP exporter: %w", err)
	}
	a.tracerProvider = tracing.Setup(a.cfg.AppName, exporter)
	a.logger.Infof("Tracing enabled, exporting to %s over %s", a.cfg.OtelEndpoint, a.cfg.OtelProtocol)
	return nil
}

func (a *App) stopTracing(ctx context.Context) error {
	if a.tracerProvider == nil {
		return nil
	}
	return a.tracerProvider.Shutdown(ctx)
}

func (a *App) startDatabase(ctx context.Context) error {
	db, err := database.Open(ctx, a.cfg.DatabaseDriver, a.cfg.DatabaseDSN(), a.logger)
	if err != nil {
		return err
	}

	if a.cfg.DatabaseDriver == database.DriverPostgres {
		sqlDB := db.SQLDB()
		sqlDB.SetMaxOpenConns(a.cfg.DatabaseMaxOpenConns)
		sqlDB.SetMaxIdleConns(a.cfg.DatabaseMaxIdleConns)
		sqlDB.SetConnMaxLifetime(a.cfg.DatabaseConnMaxLifetime)
	}

	migrations := database.NewMigrationService(a.logger, &database.MigrationConfig{
		MigrationFolderPath: a.cfg.DatabaseMigrationFolderPath,
		Version:             uint(a.cfg.DatabaseMigrationVersion),
		Force:               a.cfg.DatabaseMigrationForce,
		AutoRollback:        a.cfg.DatabaseMigrationAutoRollback,
	})
	if err := migrations.Migrate(db); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	a.db = db
	return nil
}

func (a *App) stopDatabase(context.Context) error {
	if a.db == nil {
		return nil
	}
	return a.db.Close()
}

func (a *App) startGraph(ctx context.Context) error {
	client, err := graph.NewClient(graph.Config{
		Scheme:         a.cfg.GraphDBScheme,
		Host:           a.cfg.GraphDBHost,
		Port:           a.cfg.GraphDBPort,
		Username:       a.cfg.GraphDBUser,
		Password:       a.cfg.GraphDBPassword,
		Database:       a.cfg.GraphDBName,
		MaxPoolSize:    a.cfg.GraphDBMaxPoolSize,
		AcquireTimeout: a.cfg.GraphDBAcquireTimeout,
	}, a.logger)
	if err != nil {
		return err
	}

	if err := client.VerifyConnectivity(ctx); err != nil {
		_ = client.Close(ctx)
		return fmt.Errorf("failed to reach graph database: %w", err)
	}

	entities := graph.NewEntityStore(client, a.logger)
	if err := entities.EnsureSchema(ctx); err != nil {
		_ = client.Close(ctx)
		return err
	}

	a.graph = client
	a.entities = entities
	return nil
}

func (a *App) stopGraph(ctx context.Context) error {
	if a.graph == nil {
		return nil
	}
	return a.graph.Close(ctx)
}

func (a *App) startRedis(ctx context.Context) error {
	client, err := redis.NewClient(ctx, redis.Config{
		Host:      a.cfg.RedisHost,
		Port:      a.cfg.RedisPort,
		Password:  a.cfg.RedisPassword,
		DB:        a.cfg.RedisDB,
		PoolSize:  a.cfg.RedisPoolSize,
		OpTimeout: a.cfg.RedisOpTimeout,
	}, a.logger)
	if err != nil {
		return err
	}
	a.redis = client
	return nil
}

func (a *App) stopRedis(context.Context) error {
	if a.redis == nil {
		return nil
	}
	return a.redis.Close()
}

func (a *App) startKafka(context.Context) error {
	a.producer = kafka.NewProducer(kafka.ProducerConfig{
		Brokers:      a.cfg.KafkaBrokers,
		Topic:        a.cfg.KafkaOutputTopic,
		BatchSize:    a.cfg.KafkaBatchSize,
		BatchTimeout: time.Duration(a.cfg.KafkaBatchTimeout) * time.Millisecond,
		RequiredAcks: a.cfg.KafkaRequiredAcks,
		Compression:  a.cfg.KafkaCompression,
	}, a.logger)
	a.emitter = events.NewEmitter(a.producer, a.logger)
	a.logger.Infof("Publishing events to %s", a.cfg.KafkaOutputTopic)
	return nil
}

func (a *App) stopKafka(context.Context) error {
	if a.producer == nil {
		return nil
	}
	return a.producer.Close()
}

func (a *App) startService(ctx context.Context) error {
	embedder, err := embedding.NewEmbedder(ctx, a.cfg.EmbeddingConfig())
	if err != nil {
		return fmt.Errorf("failed to create embedder: %w", err)
	}

	cacheOpts := []embedding.Option{embedding.WithLocalCache(embedding.NewLocalCache(a.cfg.EmbeddingCacheTTL))}
	if a.redis != nil {
		cacheOpts = append(cacheOpts, embedding.WithSharedCache(embedding.NewSharedCache(a.redis, a.cfg.EmbeddingCacheTTL, a.logger)))
	}
	embeddings := embedding.NewService(embedder, a.cfg.EmbeddingModel, a.logger, cacheOpts...)

	reranker, err := rerank.NewClient(rerank.Config{
		BaseURL: a.cfg.RerankerURL,
		Timeout: a.cfg.RerankerTimeout,
	}, a.logger)
	if err != nil {
		return err
	}

	a.guard = indexguard.New[retrieval.Index](indexguard.Options{
		ReadTimeout: a.cfg.IndexReadTimeout,
		MaxReaders:  a.cfg.IndexMaxReaders,
	}, a.logger)

	deps := disambiguation.Dependencies{
		Embedder: embeddings,
		Reranker: reranker,
		Matcher:  matching.NewScorer(),
		Store:    a.entities,
		Writer:   a.entities,
		Builder:  retrieval.NewBuilder(a.entities, embeddings, a.cfg.EmbeddingBatchSize, a.logger),
		Guard:    a.guard,
	}

	// interface fields stay nil for disabled targets
	var records audit.RecordStore
	if a.db != nil {
		repo := decisionrecord.NewRepository(a.db, a.logger)
		records = repo
		deps.History = repo
	}
	var publisher audit.DecisionPublisher
	if a.emitter != nil {
		publisher = a.emitter
		deps.Events = a.emitter
	}
	if records != nil || publisher != nil {
		deps.Audit = audit.NewSink(records, publisher, a.logger)
	}

	svc, err := disambiguation.NewService(deps, a.cfg.EngineSettings(), a.logger)
	if err != nil {
		return err
	}
	a.service = svc
	return nil
}

func (a *App) warmIndex(ctx context.Context) error {
	size, err := a.service.RebuildIndex(ctx)
	if err != nil {
		return err
	}
	a.logger.Infof("Index warmed with %d entities", size)
	return nil
}
