package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/scholaris-erp/scholaris-erp/internal/app"
	"github.com/scholaris-erp/scholaris-erp/internal/fees"
	feeshttp "github.com/scholaris-erp/scholaris-erp/internal/fees/http"
	"github.com/scholaris-erp/scholaris-erp/internal/observability"
	"github.com/scholaris-erp/scholaris-erp/internal/platform/cache"
	"github.com/scholaris-erp/scholaris-erp/internal/platform/db"
	"github.com/scholaris-erp/scholaris-erp/internal/reporting"
	reportinghttp "github.com/scholaris-erp/scholaris-erp/internal/reporting/http"
	"github.com/scholaris-erp/scholaris-erp/internal/shared"
	"github.com/scholaris-erp/scholaris-erp/internal/students"
	"github.com/scholaris-erp/scholaris-erp/jobs"
)

// feeEvents bridges ledger mutations to the job queue and the reporting
// cache. Failures are logged, never surfaced to the paying client.
type feeEvents struct {
	jobs    *jobs.Client
	reports *reporting.Service
	logger  *slog.Logger
}

func (e feeEvents) ReceiptIssued(ctx context.Context, schoolID int64, pr fees.PaymentReceipt) {
	_, err := e.jobs.EnqueueReceiptIssued(ctx, jobs.ReceiptIssuedPayload{
		SchoolID:      schoolID,
		StudentFeeID:  pr.Receipt.StudentFeeID,
		ReceiptID:     pr.Receipt.ID,
		ReceiptNumber: pr.Receipt.ReceiptNumber,
		Amount:        pr.Receipt.Amount.StringFixed(2),
	})
	if err != nil {
		e.logger.Warn("enqueue receipt notification", slog.Any("error", err))
	}
}

func (e feeEvents) LedgerMutated(ctx context.Context) {
	if err := e.reports.Invalidate(ctx); err != nil {
		e.logger.Warn("reporting cache bump", slog.Any("error", err))
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()
	idempotencyStore := shared.NewIdempotencyStore(pool)

	feesRepo := fees.NewRepository(pool)
	directory := students.NewRepository(pool)
	feesService := fees.NewService(feesRepo, directory)

	reportingRepo := reporting.NewRepository(pool)
	reportingCache := reporting.NewCache(redisClient, cfg.ReportCacheTTL)
	reportingService := reporting.NewService(reportingRepo, reportingCache)
	if err := reportingCache.ListenForInvalidation(ctx, ""); err != nil {
		logger.Warn("cache invalidation listener", slog.Any("error", err))
	}

	jobClient := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()

	events := feeEvents{jobs: jobClient, reports: reportingService, logger: logger}
	feesHandler := feeshttp.NewHandler(logger, feesService, idempotencyStore, metrics, events)
	reportingHandler := reportinghttp.NewHandler(logger, reportingService)

	router := app.NewRouter(app.RouterParams{
		Logger:           logger,
		Config:           cfg,
		FeesHandler:      feesHandler,
		ReportingHandler: reportingHandler,
		Metrics:          metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
