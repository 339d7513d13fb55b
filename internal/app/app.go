package app

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"calsched/internal/config"
	"calsched/internal/scheduler"
	"calsched/internal/storage"
	"calsched/internal/worker"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Application holds all the major components of the service.
type Application struct {
	Config        *config.Config
	Logger        *log.Logger
	Store         *storage.Store
	Scheduler     *scheduler.Scheduler
	WorkerPool    *worker.Pool
	HttpServer    *http.Server
	MetricsServer *http.Server

	pruneStop chan struct{}
	pruneDone chan struct{}
}

// New creates and initializes a new Application instance.
func New(cfg *config.Config) (*Application, error) {
	logger := log.New(os.Stdout, "calsched: ", log.LstdFlags)

	// Setup: Database
	store, err := storage.Open(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open storage: %w", err)
	}

	jobStore := scheduler.NewSQLiteJobStore(store.DB())
	if err := jobStore.Initialize(context.Background()); err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to initialize job store: %w", err)
	}

	// Setup: WorkerPool
	pool := worker.NewPool(cfg.NumWorkers, cfg.Webhook.QueueSize,
		cfg.Webhook.MaxAttempts, cfg.Webhook.Backoff.Duration, logger)

	// Setup: Scheduler
	notifier := scheduler.NewWebhookNotifier(cfg.Webhook.Timeout.Duration)
	sched, err := scheduler.NewScheduler(context.Background(), jobStore, store, pool, notifier, logger)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}

	// Setup: HTTP Server for metrics
	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())
	metricsServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.MetricsPort),
		Handler: metricsMux,
	}

	app := &Application{
		Config:        cfg,
		Logger:        logger,
		Store:         store,
		Scheduler:     sched,
		WorkerPool:    pool,
		MetricsServer: metricsServer,
		pruneStop:     make(chan struct{}),
		pruneDone:     make(chan struct{}),
	}

	// Setup: Main HTTP Server
	app.HttpServer = &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler: app.loggingMiddleware(app.routes()),
	}

	return app, nil
}

// routes builds the API mux.
func (a *Application) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", a.handleHealth)
	mux.HandleFunc("POST /api/schedules", a.handleCreateSchedule)
	mux.HandleFunc("GET /api/schedules", a.handleListSchedules)
	mux.HandleFunc("GET /api/schedules/{id}", a.handleGetSchedule)
	mux.HandleFunc("DELETE /api/schedules/{id}", a.handleDeleteSchedule)
	mux.HandleFunc("GET /api/schedules/{id}/runs", a.handleListRuns)
	mux.HandleFunc("POST /api/preview", a.handlePreview)
	return mux
}

// Start begins the application's services.
func (a *Application) Start(ctx context.Context) error {
	a.Logger.Println("Starting application services...")

	a.WorkerPool.Start()
	a.Logger.Println("Worker pool started.")

	a.Scheduler.Start()
	a.Logger.Println("Scheduler started.")

	go a.pruneLoop()

	go func() {
		a.Logger.Printf("Starting metrics server on %s", a.MetricsServer.Addr)
		if err := a.MetricsServer.ListenAndServe(); err != http.ErrServerClosed {
			a.Logger.Fatalf("Metrics server ListenAndServe: %v", err)
		}
	}()

	go func() {
		a.Logger.Printf("Starting HTTP server on %s", a.HttpServer.Addr)
		if err := a.HttpServer.ListenAndServe(); err != http.ErrServerClosed {
			a.Logger.Fatalf("HTTP server ListenAndServe: %v", err)
		}
	}()

	return nil
}

// pruneLoop periodically trims old run history.
func (a *Application) pruneLoop() {
	defer close(a.pruneDone)
	ticker := time.NewTicker(a.Config.Scheduler.PruneInterval.Duration)
	defer ticker.Stop()
	for {
		select {
		case <-a.pruneStop:
			return
		case <-ticker.C:
			n, err := a.Store.PruneRuns(context.Background(), a.Config.Scheduler.RunRetention.Duration)
			if err != nil {
				a.Logger.Printf("failed to prune run history: %v", err)
				continue
			}
			if n > 0 {
				a.Logger.Printf("pruned %d old runs", n)
			}
		}
	}
}

// Stop gracefully shuts down the application's services.
func (a *Application) Stop(ctx context.Context) error {
	a.Logger.Println("Stopping application services...")

	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := a.HttpServer.Shutdown(shutdownCtx); err != nil {
		a.Logger.Printf("HTTP server shutdown error: %v", err)
	}
	if err := a.MetricsServer.Shutdown(shutdownCtx); err != nil {
		a.Logger.Printf("Metrics server shutdown error: %v", err)
	}

	close(a.pruneStop)
	<-a.pruneDone

	a.Scheduler.Stop()
	a.Logger.Println("Scheduler stopped.")

	a.WorkerPool.Stop()
	a.Logger.Println("Worker pool stopped.")

	if err := a.Store.Close(); err != nil {
		a.Logger.Printf("Error closing database: %v", err)
	}

	a.Logger.Println("Application stopped gracefully.")
	return nil
}
