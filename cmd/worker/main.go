package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kirillkom/docindex/internal/bootstrap"
	"github.com/kirillkom/docindex/internal/config"
	"github.com/kirillkom/docindex/internal/core/domain"
	"github.com/kirillkom/docindex/internal/observability/logging"
)

func main() {
	cfg := config.Load()
	logger := logging.NewJSONLogger("worker", cfg.LogLevel)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("bootstrap error: %v", err)
	}
	defer app.Close()

	metricsServer := &http.Server{
		Addr:    ":" + cfg.WorkerMetricsPort,
		Handler: metricsMux(app),
	}
	go func() {
		logger.Info("worker metrics listening", "port", cfg.WorkerMetricsPort)
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("worker metrics server error", "error", err)
		}
	}()

	go app.SweepJobs(ctx, logger)

	logger.Info("worker subscribed", "subject", cfg.NATSSubject)
	err = app.Queue.SubscribeIngestJobs(ctx, func(handlerCtx context.Context, msg domain.IngestMessage) error {
		app.WorkerMetrics.ObserveQueueLag("worker", time.Since(msg.SubmittedAt))
		app.WorkerMetrics.StartJob()
		start := time.Now()

		processCtx, cancel := context.WithTimeout(handlerCtx, 5*time.Minute)
		defer cancel()
		processErr := app.ProcessUC.ProcessJob(processCtx, msg)

		app.WorkerMetrics.FinishJob("worker", time.Since(start), processErr)
		if domain.IsKind(processErr, domain.ErrPartialIndex) {
			app.WorkerMetrics.RecordParityFailure("worker")
		}
		if processErr == nil {
			if job, err := app.Jobs.Get(handlerCtx, msg.JobID); err == nil {
				for _, stage := range job.Stages {
					if stage.Name == string(domain.JobChunking) {
						app.WorkerMetrics.ObserveChunks("worker", int(stage.Counts["chunks"]))
					}
				}
			}
		}
		return processErr
	})
	if err != nil {
		log.Fatalf("worker subscribe error: %v", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = metricsServer.Shutdown(shutdownCtx)
}

func metricsMux(app *bootstrap.App) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", app.WorkerMetrics.Handler())
	mux.HandleFunc("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return mux
}
