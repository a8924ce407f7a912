package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/kirillkom/docindex/internal/config"
	"github.com/kirillkom/docindex/internal/core/chunking"
	"github.com/kirillkom/docindex/internal/core/ports"
	"github.com/kirillkom/docindex/internal/core/usecase"
	"github.com/kirillkom/docindex/internal/infrastructure/indexer"
	"github.com/kirillkom/docindex/internal/infrastructure/jobstore/postgres"
	"github.com/kirillkom/docindex/internal/infrastructure/parser"
	"github.com/kirillkom/docindex/internal/infrastructure/queue/nats"
	"github.com/kirillkom/docindex/internal/infrastructure/resilience"
	"github.com/kirillkom/docindex/internal/infrastructure/search/opensearch"
	"github.com/kirillkom/docindex/internal/infrastructure/storage/localfs"
	"github.com/kirillkom/docindex/internal/infrastructure/vector/qdrant"
	"github.com/kirillkom/docindex/internal/observability/metrics"
)

type App struct {
	Config config.Config

	Queue     ports.MessageQueue
	Jobs      ports.JobStore
	SubmitUC  ports.IngestSubmitter
	ProcessUC ports.JobProcessor
	SearchUC  ports.SearchService

	HTTPMetrics   *metrics.HTTPServerMetrics
	WorkerMetrics *metrics.WorkerMetrics

	db      *sql.DB
	closeFn func()
}

func New(ctx context.Context, cfg config.Config, log *slog.Logger) (*App, error) {
	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	jobs := postgres.NewJobStore(db, time.Duration(cfg.JobTTLSeconds)*time.Second)
	if err := jobs.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	storage, err := localfs.New(cfg.StoragePath, cfg.AllowedPrefixes)
	if err != nil {
		return nil, fmt.Errorf("init object storage: %w", err)
	}

	queue, err := nats.New(cfg.NATSURL, cfg.NATSSubject)
	if err != nil {
		return nil, fmt.Errorf("init message queue: %w", err)
	}

	keyword := opensearch.New(cfg.OpenSearchURL, cfg.OpenSearchIndex, cfg.OpenSearchAlias)
	if err := keyword.EnsureIndexAndAlias(ctx); err != nil {
		return nil, fmt.Errorf("ensure keyword index: %w", err)
	}
	vector := qdrant.New(cfg.QdrantURL, cfg.QdrantCollection, cfg.VectorDim)

	storeTimeout := time.Duration(cfg.StoreTimeoutSeconds) * time.Second
	exec := resilience.NewExecutor(resilience.DefaultConfig())
	dual := indexer.NewDualStore(keyword, vector, exec, storeTimeout, cfg.VectorDim)

	chunker := chunking.New(chunking.Config{
		TargetTokens:    cfg.ChunkTargetTokens,
		OverlapFraction: float64(cfg.ChunkOverlapPct) / 100,
	}, parser.Segmenter{})

	httpMetrics := metrics.NewHTTPServerMetrics("api")

	submitUC := usecase.NewSubmitIngestUseCase(storage, jobs, queue)
	processUC := usecase.NewProcessJobUseCase(storage, parser.NewComposite(), chunker, dual, jobs, nil)
	searchUC := usecase.NewHybridSearchUseCase(keyword, vector, usecase.SearchConfig{
		TopN:         cfg.SearchTopN,
		TopK:         cfg.SearchTopK,
		RRFK:         cfg.FusionRRFK,
		StoreTimeout: storeTimeout,
		VectorDim:    cfg.VectorDim,
		DegradedHook: func(store string) {
			httpMetrics.RecordSearchDegraded("api", store)
		},
	}, log)

	return &App{
		Config: cfg,

		Queue:     queue,
		Jobs:      jobs,
		SubmitUC:  submitUC,
		ProcessUC: processUC,
		SearchUC:  searchUC,

		HTTPMetrics:   httpMetrics,
		WorkerMetrics: metrics.NewWorkerMetrics("worker"),

		db: db,
		closeFn: func() {
			queue.Close()
			_ = db.Close()
		},
	}, nil
}

// Ready probes the one dependency every request path needs. Store
// clients are checked lazily per call, so they stay out of readiness.
func (a *App) Ready(ctx context.Context) error {
	if err := a.db.PingContext(ctx); err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	return nil
}

// SweepJobs removes expired job rows on a fixed cadence until ctx ends.
func (a *App) SweepJobs(ctx context.Context, log *slog.Logger) {
	jobs, ok := a.Jobs.(*postgres.JobStore)
	if !ok {
		return
	}
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := jobs.Sweep(ctx)
			if err != nil {
				log.Warn("job sweep failed", "error", err)
				continue
			}
			if removed > 0 {
				log.Info("job sweep", "removed", removed)
			}
		}
	}
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
