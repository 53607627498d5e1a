package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/Ramsey-B/iris/pkg/decision"
	"github.com/Ramsey-B/iris/pkg/disambiguation"
	"github.com/Ramsey-B/iris/pkg/embedding"
	"github.com/Ramsey-B/iris/pkg/scoring"
	"github.com/Ramsey-B/iris/pkg/tracing/exporters"
)

// ErrConfigurationInvalid is returned when configuration cannot be loaded or fails validation
var ErrConfigurationInvalid = errors.New("configuration invalid")

type Config struct {
	AppName                       string   `env:"APP_NAME" env-default:"iris-api"`
	Port                          int      `env:"PORT" env-default:"3004" validate:"min=1,max=65535"`
	LogLevel                      string   `env:"LOG_LEVEL" env-default:"info" validate:"oneof=debug info warn error"`
	PrettyLogs                    bool     `env:"PRETTY_LOGS" env-default:"false"`
	HttpServerWriteTimeoutSeconds int      `env:"HTTP_SERVER_WRITE_TIMEOUT_SECONDS" env-default:"30"`
	HttpServerReadTimeoutSeconds  int      `env:"HTTP_SERVER_READ_TIMEOUT_SECONDS" env-default:"10"`
	HttpServerIdleTimeoutSeconds  int      `env:"HTTP_SERVER_IDLE_TIMEOUT_SECONDS" env-default:"60"`
	MaxHeaderBytes                int      `env:"HTTP_SERVER_MAX_HEADER_BYTES" env-default:"64000"` // 64KB
	ReadHeaderTimeoutSeconds      int      `env:"HTTP_SERVER_READ_HEADER_TIMEOUT_SECONDS" env-default:"10"`
	AllowOrigins                  []string `env:"HTTP_SERVER_ALLOW_ORIGINS" env-default:"*"`
	AllowMethods                  []string `env:"HTTP_SERVER_ALLOW_METHODS" env-default:"GET,POST,PUT,DELETE"`
	StartupMaxAttempts            int      `env:"STARTUP_MAX_ATTEMPTS" env-default:"5" validate:"min=1"`
	ShutdownTimeoutSeconds        int      `env:"SHUTDOWN_TIMEOUT_SECONDS" env-default:"15" validate:"min=1"`
	IndexWarmupOnStart            bool     `env:"INDEX_WARMUP_ON_START" env-default:"true"`

	// Audit database
	DatabaseEnabled               bool          `env:"DB_ENABLED" env-default:"true"`
	DatabaseDriver                string        `env:"DB_DRIVER" env-default:"postgres" validate:"oneof=postgres sqlite"`
	DatabaseHost                  string        `env:"DB_HOST" env-default:"localhost"`
	DatabasePort                  string        `env:"DB_PORT" env-default:"5432"`
	DatabaseUserName              string        `env:"DB_USER_NAME" env-default:""`
	DatabasePassword              string        `env:"DB_PASSWORD" env-default:""`
	DatabaseName                  string        `env:"DB_NAME" env-default:"iris"`
	DatabaseSSLMode               string        `env:"DB_SSL_MODE" env-default:"disable"`
	DatabaseSQLitePath            string        `env:"DB_SQLITE_PATH" env-default:"iris.db"`
	DatabaseMaxOpenConns          int           `env:"DB_MAX_OPEN_CONNS" env-default:"25"`
	DatabaseMaxIdleConns          int           `env:"DB_MAX_IDLE_CONNS" env-default:"10"`
	DatabaseConnMaxLifetime       time.Duration `env:"DB_CONN_MAX_LIFETIME" env-default:"10m"`
	DatabaseMigrationFolderPath   string        `env:"DB_MIGRATION_FOLDER_PATH" env-default:"db/migrations"`
	DatabaseMigrationVersion      int           `env:"DB_MIGRATION_VERSION" env-default:"0" validate:"min=0"`
	DatabaseMigrationForce        int           `env:"DB_MIGRATION_FORCE" env-default:"0"`
	DatabaseMigrationAutoRollback bool          `env:"DB_MIGRATION_AUTO_ROLLBACK" env-default:"true"`

	// Graph Database (entity store)
	GraphDBScheme         string        `env:"GRAPH_DB_SCHEME" env-default:"bolt" validate:"oneof=bolt bolt+s neo4j neo4j+s"`
	GraphDBHost           string        `env:"GRAPH_DB_HOST" env-default:"localhost"`
	GraphDBPort           int           `env:"GRAPH_DB_PORT" env-default:"7687"`
	GraphDBUser           string        `env:"GRAPH_DB_USER" env-default:""`
	GraphDBPassword       string        `env:"GRAPH_DB_PASSWORD" env-default:""`
	GraphDBName           string        `env:"GRAPH_DB_NAME" env-default:""`
	GraphDBMaxPoolSize    int           `env:"GRAPH_DB_MAX_POOL_SIZE" env-default:"50"`
	GraphDBAcquireTimeout time.Duration `env:"GRAPH_DB_ACQUIRE_TIMEOUT" env-default:"30s"`

	// Redis (shared embedding cache)
	RedisEnabled   bool          `env:"REDIS_ENABLED" env-default:"false"`
	RedisHost      string        `env:"REDIS_HOST" env-default:"localhost"`
	RedisPort      int           `env:"REDIS_PORT" env-default:"6379"`
	RedisPassword  string        `env:"REDIS_PASSWORD" env-default:""`
	RedisDB        int           `env:"REDIS_DB" env-default:"0"`
	RedisPoolSize  int           `env:"REDIS_POOL_SIZE" env-default:"10"`
	RedisOpTimeout time.Duration `env:"REDIS_OP_TIMEOUT" env-default:"250ms"`

	// Kafka Producer (decision events)
	KafkaEnabled      bool     `env:"KAFKA_ENABLED" env-default:"false"`
	KafkaBrokers      []string `env:"KAFKA_BROKERS" env-default:"localhost:9092"`
	KafkaOutputTopic  string   `env:"KAFKA_OUTPUT_TOPIC" env-default:"disambiguation-events"`
	KafkaBatchSize    int      `env:"KAFKA_BATCH_SIZE" env-default:"100"`
	KafkaBatchTimeout int      `env:"KAFKA_BATCH_TIMEOUT_MS" env-default:"100"`
	KafkaRequiredAcks int      `env:"KAFKA_REQUIRED_ACKS" env-default:"1"`
	KafkaCompression  string   `env:"KAFKA_COMPRESSION" env-default:"snappy" validate:"oneof=snappy gzip lz4 zstd none"`

	// Embedding
	EmbeddingProvider  string        `env:"EMBEDDING_PROVIDER" env-default:"tei"`
	EmbeddingModel     string        `env:"EMBEDDING_MODEL" env-default:""`
	EmbeddingAPIKey    string        `env:"EMBEDDING_API_KEY" env-default:""`
	EmbeddingBaseURL   string        `env:"EMBEDDING_BASE_URL" env-default:"http://localhost:8080"`
	EmbeddingTimeout   time.Duration `env:"EMBEDDING_TIMEOUT" env-default:"30s"`
	EmbeddingBatchSize int           `env:"EMBEDDING_BATCH_SIZE" env-default:"64" validate:"min=1"`
	EmbeddingCacheTTL  time.Duration `env:"EMBEDDING_CACHE_TTL" env-default:"1h"`

	// Reranker (TEI /rerank)
	RerankerURL     string        `env:"RERANKER_URL" env-default:"http://localhost:8081" validate:"required,url"`
	RerankerTimeout time.Duration `env:"RERANKER_TIMEOUT" env-default:"10s"`

	// Decision engine
	WeightSemantic        float64       `env:"WEIGHT_SEMANTIC" env-default:"0.4"`
	WeightReranker        float64       `env:"WEIGHT_RERANKER" env-default:"0.3"`
	WeightFuzzy           float64       `env:"WEIGHT_FUZZY" env-default:"0.2"`
	WeightEdit            float64       `env:"WEIGHT_EDIT" env-default:"0.1"`
	TypeMatchBonus        float64       `env:"TYPE_MATCH_BONUS" env-default:"1.1"`
	TypeMismatchPenalty   float64       `env:"TYPE_MISMATCH_PENALTY" env-default:"0.3"`
	ThresholdHigh         float64       `env:"THRESHOLD_HIGH" env-default:"0.85"`
	ThresholdLow          float64       `env:"THRESHOLD_LOW" env-default:"0.65"`
	ForcePolicy           string        `env:"FORCE_POLICY" env-default:"midpoint"`
	RerankerNormalization string        `env:"RERANKER_NORMALIZATION" env-default:"linear"`
	RerankerScoreLow      float64       `env:"RERANKER_SCORE_LOW" env-default:"-6.5"`
	RerankerScoreHigh     float64       `env:"RERANKER_SCORE_HIGH" env-default:"7.7"`
	DefaultTopK           int           `env:"DEFAULT_TOP_K" env-default:"10"`
	MinSimilarity         float64       `env:"MIN_SIMILARITY" env-default:"-1"` // negative uses THRESHOLD_LOW
	SignalTimeout         time.Duration `env:"SIGNAL_TIMEOUT" env-default:"5s"`
	ScoringConcurrency    int           `env:"SCORING_CONCURRENCY" env-default:"8"`
	IndexReadTimeout      time.Duration `env:"INDEX_READ_TIMEOUT" env-default:"2s"`
	IndexMaxReaders       int64         `env:"INDEX_MAX_READERS" env-default:"1024" validate:"min=1"`

	// Tracing
	OtelEnabled  bool     `env:"OTEL_ENABLED" env-default:"false"`
	OtelEndpoint string   `env:"OTEL_EXPORTER_OTLP_ENDPOINT" env-default:"localhost:4317"`
	OtelProtocol string   `env:"OTEL_EXPORTER_OTLP_PROTOCOL" env-default:"grpc" validate:"oneof=grpc http"`
	OtelInsecure bool     `env:"OTEL_EXPORTER_OTLP_INSECURE" env-default:"true"`
	OtelHeaders  []string `env:"OTEL_EXPORTER_OTLP_HEADERS" env-default:""`
}

// EngineSettings maps the decision engine fields onto disambiguation settings
func (c *Config) EngineSettings() disambiguation.Settings {
	minSimilarity := c.MinSimilarity
	if minSimilarity < 0 {
		minSimilarity = c.ThresholdLow
	}
	return disambiguation.Settings{
		Weights: scoring.Weights{
			Semantic: c.WeightSemantic,
			Reranker: c.WeightReranker,
			Fuzzy:    c.WeightFuzzy,
			Edit:     c.WeightEdit,
		},
		Adjustment: scoring.TypeAdjustment{
			MatchBonus:      c.TypeMatchBonus,
			MismatchPenalty: c.TypeMismatchPenalty,
		},
		Thresholds:    decision.Thresholds{High: c.ThresholdHigh, Low: c.ThresholdLow},
		ForcePolicy:   decision.ForcePolicy(c.ForcePolicy),
		Normalization: scoring.NormalizationStrategy(c.RerankerNormalization),
		RerankerLow:   c.RerankerScoreLow,
		RerankerHigh:  c.RerankerScoreHigh,
		DefaultTopK:   c.DefaultTopK,
		MinSimilarity: minSimilarity,
		SignalTimeout: c.SignalTimeout,
		Concurrency:   c.ScoringConcurrency,
	}
}

// EmbeddingConfig returns the embedding provider configuration
func (c *Config) EmbeddingConfig() embedding.Config {
	return embedding.Config{
		Provider: embedding.Provider(c.EmbeddingProvider),
		Model:    c.EmbeddingModel,
		APIKey:   c.EmbeddingAPIKey,
		BaseURL:  c.EmbeddingBaseURL,
		Timeout:  c.EmbeddingTimeout,
	}
}

// DatabaseDSN builds the connection string for the configured driver
func (c *Config) DatabaseDSN() string {
	if c.DatabaseDriver == "sqlite" {
		return c.DatabaseSQLitePath
	}
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.DatabaseHost, c.DatabasePort, c.DatabaseUserName, c.DatabasePassword, c.DatabaseName, c.DatabaseSSLMode)
}

// Validate checks the cross-field rules that struct tags cannot express
func (c *Config) Validate() error {
	if _, err := embedding.ValidateProvider(c.EmbeddingProvider); err != nil {
		return err
	}
	if err := c.EngineSettings().Validate(); err != nil {
		return err
	}
	if _, err := exporters.ParseHeaders(c.OtelHeaders); err != nil {
		return err
	}
	return nil
}
