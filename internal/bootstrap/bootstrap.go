package bootstrap

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/rshsreehari/coderev-platform/internal/analyzer"
	"github.com/rshsreehari/coderev-platform/internal/audit"
	"github.com/rshsreehari/coderev-platform/internal/cache"
	"github.com/rshsreehari/coderev-platform/internal/dlq"
	"github.com/rshsreehari/coderev-platform/internal/httpapi"
	"github.com/rshsreehari/coderev-platform/internal/jobstore"
	"github.com/rshsreehari/coderev-platform/internal/mlog"
	"github.com/rshsreehari/coderev-platform/internal/queue"
	"github.com/rshsreehari/coderev-platform/internal/stats"
	"github.com/rshsreehari/coderev-platform/internal/submission"
	"github.com/rshsreehari/coderev-platform/internal/worker"
)

const tracerName = "github.com/rshsreehari/coderev-platform"

// Common is the set of dependencies shared by every process (API, Worker,
// DLQ Handler): the Job Store, Job Queue, and structured logger.
type Common struct {
	Config   *Config
	Logger   mlog.Logger
	Tracer   trace.Tracer
	Postgres *jobstore.PostgresConnection
	Store    *jobstore.PostgresStore
	Queue    *queue.RabbitMQQueue
}

func newLogger(cfg *Config) (mlog.Logger, error) {
	return mlog.New(cfg.EnvName, cfg.LogLevel)
}

func newTopology(cfg *Config) queue.Topology {
	return queue.Topology{
		MainQueue:       cfg.MainQueue,
		MainExchange:    cfg.MainExchange,
		MainRoutingKey:  cfg.MainRoutingKey,
		DLQQueue:        cfg.DLQQueue,
		DLQExchange:     cfg.DLQExchange,
		DLQRoutingKey:   cfg.DLQRoutingKey,
		MaxReceiveCount: cfg.MaxReceiveCount,
		ReceiveTimeout:  time.Duration(cfg.VisibilitySeconds) * time.Second,
	}
}

// newCommon connects to Postgres and RabbitMQ and builds the shared Job
// Store and Job Queue, common to every process.
func newCommon(ctx context.Context, cfg *Config) (*Common, error) {
	logger, err := newLogger(cfg)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: logger: %w", err)
	}

	pgConn := &jobstore.PostgresConnection{ConnectionString: cfg.postgresDSN(), Logger: logger}
	if err := pgConn.Connect(ctx); err != nil {
		return nil, fmt.Errorf("bootstrap: postgres: %w", err)
	}

	if err := jobstore.Migrate(cfg.postgresDSN()); err != nil {
		return nil, fmt.Errorf("bootstrap: migrate: %w", err)
	}

	store := jobstore.NewPostgresStore(pgConn)

	rmqConn := &queue.RabbitMQConnection{ConnectionStringSource: cfg.RabbitMQURI, Logger: logger}
	if err := rmqConn.Connect(); err != nil {
		return nil, fmt.Errorf("bootstrap: rabbitmq: %w", err)
	}

	q, err := queue.NewRabbitMQQueue(rmqConn, newTopology(cfg))
	if err != nil {
		return nil, fmt.Errorf("bootstrap: queue topology: %w", err)
	}

	return &Common{
		Config:   cfg,
		Logger:   logger,
		Tracer:   otel.Tracer(tracerName),
		Postgres: pgConn,
		Store:    store,
		Queue:    q,
	}, nil
}

func newAuditWriter(cfg *Config, logger mlog.Logger) audit.Writer {
	if cfg.MongoURI == "" {
		return audit.NoopWriter{}
	}

	conn := &audit.MongoConnection{ConnectionStringSource: cfg.MongoURI, Database: cfg.MongoDBName, Logger: logger}
	if err := conn.Connect(context.Background()); err != nil {
		logger.Warnf("bootstrap: mongo audit trail unavailable, falling back to noop: %v", err)
		return audit.NoopWriter{}
	}

	return audit.NewMongoWriter(conn)
}

func newAnalyzer(cfg *Config, logger mlog.Logger, tracer trace.Tracer) *analyzer.Analyzer {
	acfg := analyzer.Config{
		EnableAI:           cfg.EnableAI,
		MinLinesForAI:      cfg.MinFileLinesForAI,
		MaxLinesForAI:      cfg.MaxFileLinesForAI,
		AllowForceFail:     cfg.AllowForceFail,
		AIRequestTimeoutMS: cfg.AIRequestTimeoutMS,
	}

	linter := &analyzer.ProcessLinterClient{
		Binary:  cfg.LinterBinary,
		Args:    []string{cfg.LinterArgs},
		Timeout: time.Duration(cfg.LinterTimeoutMS) * time.Millisecond,
		Logger:  logger,
	}

	var ai *analyzer.AIDetector
	if cfg.EnableAI {
		provider := &analyzer.HTTPAIProvider{
			Endpoint: cfg.AIProviderEndpoint,
			APIKey:   cfg.AIProviderAPIKey,
			Model:    cfg.AIModel,
			Client:   &http.Client{Timeout: time.Duration(cfg.AIRequestTimeoutMS) * time.Millisecond},
		}
		ai = analyzer.NewAIDetector(provider, cfg.AIModel, time.Duration(cfg.AIRequestTimeoutMS)*time.Millisecond, logger)
	}

	return analyzer.New(acfg, linter, ai, logger, tracer)
}

// APIApp is everything needed to serve the HTTP surface.
type APIApp struct {
	Common *Common
	Server *httpapi.Server
}

// InitAPI wires the Submission Service and DLQ Handler behind the HTTP
// surface, mirroring the teacher's InitServers bootstrap shape.
func InitAPI(ctx context.Context) (*APIApp, error) {
	cfg, err := LoadConfig()
	if err != nil {
		return nil, err
	}

	common, err := newCommon(ctx, cfg)
	if err != nil {
		return nil, err
	}

	redisConn := &cache.RedisConnection{ConnectionStringSource: cfg.RedisURL, Logger: common.Logger}
	if err := redisConn.Connect(ctx); err != nil {
		return nil, fmt.Errorf("bootstrap: redis: %w", err)
	}

	resultCache := cache.NewRedisCache(redisConn, cache.Options{TTLSeconds: cfg.CacheTTLSeconds, KeyPrefix: cfg.CacheKeyPrefix}, common.Logger)

	collector := stats.New()
	svc := submission.New(common.Store, resultCache, common.Queue, common.Logger, cfg.MaxContentBytes, collector)

	dlqStore := dlq.NewPostgresEntryStore(common.Postgres)
	dlqHandler := dlq.New(dlqStore, common.Store, common.Queue, common.Logger)

	server := httpapi.New(svc, dlqHandler, common.Store, collector, cfg.WorkerConcurrency, common.Logger)

	return &APIApp{Common: common, Server: server}, nil
}

// WorkerApp is everything needed to run the Worker pool.
type WorkerApp struct {
	Common *Common
	Worker *worker.Worker
}

// InitWorker wires the Worker pool against the Job Store, Job Queue,
// Result Cache, Analyzer, and audit trail.
func InitWorker(ctx context.Context) (*WorkerApp, error) {
	cfg, err := LoadConfig()
	if err != nil {
		return nil, err
	}

	common, err := newCommon(ctx, cfg)
	if err != nil {
		return nil, err
	}

	redisConn := &cache.RedisConnection{ConnectionStringSource: cfg.RedisURL, Logger: common.Logger}
	if err := redisConn.Connect(ctx); err != nil {
		return nil, fmt.Errorf("bootstrap: redis: %w", err)
	}

	resultCache := cache.NewRedisCache(redisConn, cache.Options{TTLSeconds: cfg.CacheTTLSeconds, KeyPrefix: cfg.CacheKeyPrefix}, common.Logger)
	auditWriter := newAuditWriter(cfg, common.Logger)
	a := newAnalyzer(cfg, common.Logger, common.Tracer)

	w := worker.New(common.Store, resultCache, common.Queue, a, auditWriter, common.Logger, common.Tracer, worker.Config{
		MaxReceiveCount:   cfg.MaxReceiveCount,
		Concurrency:       cfg.WorkerConcurrency,
		ShutdownGraceTime: 30 * time.Second,
	})

	return &WorkerApp{Common: common, Worker: w}, nil
}

// DLQHandlerApp is everything needed to run the DLQ Handler process.
type DLQHandlerApp struct {
	Common  *Common
	Handler *dlq.Handler
}

// InitDLQHandler wires the standalone DLQ Handler process.
func InitDLQHandler(ctx context.Context) (*DLQHandlerApp, error) {
	cfg, err := LoadConfig()
	if err != nil {
		return nil, err
	}

	common, err := newCommon(ctx, cfg)
	if err != nil {
		return nil, err
	}

	dlqStore := dlq.NewPostgresEntryStore(common.Postgres)
	handler := dlq.New(dlqStore, common.Store, common.Queue, common.Logger)

	return &DLQHandlerApp{Common: common, Handler: handler}, nil
}
