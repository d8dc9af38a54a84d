package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"

	"github.com/aleksgain/crypto-market-analyzer/internal/service/callqueue"
	"github.com/aleksgain/crypto-market-analyzer/internal/usecase"
	pkgch "github.com/aleksgain/crypto-market-analyzer/pkg/clickhouse"
	"github.com/aleksgain/crypto-market-analyzer/pkg/config"
	applogger "github.com/aleksgain/crypto-market-analyzer/pkg/logger"
)

// jobTimeout bounds one scheduled run. Collection jobs wait on queued
// upstream calls, so this must comfortably exceed worst-case backoff.
const jobTimeout = 5 * time.Minute

// App encapsulates the entire application lifecycle: the call queue, the
// scheduled collection and prediction jobs, and graceful shutdown.
type App struct {
	cfg         *config.Config
	queue       *callqueue.Queue
	market      *usecase.MarketDataService
	predictions *usecase.PredictionEngine
	accuracy    *usecase.AccuracyTracker
	chClient    *pkgch.Client
	l           *applogger.Logger

	cron       *cron.Cron
	metricsSrv *http.Server
}

// New creates a new App instance with all dependencies.
func New(
	cfg *config.Config,
	queue *callqueue.Queue,
	market *usecase.MarketDataService,
	predictions *usecase.PredictionEngine,
	accuracy *usecase.AccuracyTracker,
	chClient *pkgch.Client,
	l *applogger.Logger,
) *App {
	if l == nil {
		l = applogger.Nop()
	}
	return &App{
		cfg:         cfg,
		queue:       queue,
		market:      market,
		predictions: predictions,
		accuracy:    accuracy,
		chClient:    chClient,
		l:           l,
	}
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	a.queue.Start()

	if err := a.startJobs(); err != nil {
		a.queue.Stop()
		return err
	}

	if a.cfg.Metrics.Enabled {
		a.startMetrics()
	}

	// Seed the stores so the first prediction round has data to work with.
	go a.runJob("prices", a.market.CollectPrices)
	go a.runJob("news", a.market.CollectNews)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	a.l.Info("shutdown signal received")
	return a.shutdown()
}

func (a *App) startJobs() error {
	a.cron = cron.New()

	jobs := []struct {
		name string
		spec string
		fn   func(context.Context) error
	}{
		{"prices", a.cfg.Jobs.Prices, a.market.CollectPrices},
		{"news", a.cfg.Jobs.News, a.market.CollectNews},
		{"predictions", a.cfg.Jobs.Predictions, func(ctx context.Context) error {
			_, err := a.predictions.GeneratePredictions(ctx)
			return err
		}},
		{"accuracy", a.cfg.Jobs.Accuracy, func(ctx context.Context) error {
			_, err := a.accuracy.Reconcile(ctx)
			return err
		}},
	}

	for _, job := range jobs {
		job := job
		if _, err := a.cron.AddFunc(job.spec, func() { a.runJob(job.name, job.fn) }); err != nil {
			return fmt.Errorf("schedule %s job: %w", job.name, err)
		}
		a.l.Info("job scheduled",
			applogger.String("job", job.name),
			applogger.String("spec", job.spec))
	}

	a.cron.Start()
	return nil
}

func (a *App) runJob(name string, fn func(context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	start := time.Now()
	if err := fn(ctx); err != nil {
		a.l.Error("job failed",
			applogger.String("job", name),
			applogger.Duration("elapsed", time.Since(start)),
			applogger.Error(err))
		return
	}
	a.l.Debug("job done",
		applogger.String("job", name),
		applogger.Duration("elapsed", time.Since(start)))
}

func (a *App) startMetrics() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	a.metricsSrv = &http.Server{Addr: a.cfg.Metrics.Addr, Handler: mux}
	go func() {
		if err := a.metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.l.Error("metrics server", applogger.Error(err))
		}
	}()
	a.l.Info("metrics listening", applogger.String("addr", a.cfg.Metrics.Addr))
}

// shutdown gracefully stops the jobs, the call queue and infrastructure
// clients, in that order.
func (a *App) shutdown() error {
	cronCtx := a.cron.Stop()
	select {
	case <-cronCtx.Done():
	case <-time.After(30 * time.Second):
		a.l.Warn("jobs did not finish in time")
	}

	a.queue.Stop()

	if a.metricsSrv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.metricsSrv.Shutdown(ctx); err != nil {
			a.l.Warn("metrics shutdown", applogger.Error(err))
		}
	}

	if a.chClient != nil {
		if err := a.chClient.Close(); err != nil {
			a.l.Warn("clickhouse close", applogger.Error(err))
		}
	}

	a.l.Info("shutdown complete")
	return nil
}
