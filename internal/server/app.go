// Package server wires the mediavault components together and runs them:
// storage backends, the upload coordinator with its reaper, and the HTTP API,
// with graceful shutdown on SIGINT/SIGTERM.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dmitrijs2005/mediavault/internal/logging"
	"github.com/dmitrijs2005/mediavault/internal/server/cache"
	"github.com/dmitrijs2005/mediavault/internal/server/config"
	"github.com/dmitrijs2005/mediavault/internal/server/events"
	"github.com/dmitrijs2005/mediavault/internal/server/httpapi"
	"github.com/dmitrijs2005/mediavault/internal/server/metrics"
	"github.com/dmitrijs2005/mediavault/internal/server/objectstore"
	"github.com/dmitrijs2005/mediavault/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/mediavault/internal/server/services"
	"github.com/dmitrijs2005/mediavault/internal/server/uploads"
)

type App struct {
	config      *config.Config
	logger      logging.Logger
	db          *sql.DB
	coordinator *uploads.Coordinator
	images      *services.ImageService
	registry    *prometheus.Registry
	recorder    *metrics.AsyncRecorder
	closers     []func() error
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger := logging.NewJSONLogger(os.Stdout, parseLevel(c.LogLevel))
	app := &App{config: c, logger: logger}

	if err := app.init(ctx); err != nil {
		app.close()
		return nil, err
	}
	return app, nil
}

func (app *App) init(ctx context.Context) error {
	c := app.config

	db, err := repomanager.OpenPostgres(ctx, c.DatabaseDSN)
	if err != nil {
		return fmt.Errorf("db init error: %w", err)
	}
	app.db = db
	app.closers = append(app.closers, db.Close)

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		return fmt.Errorf("migrations error: %w", err)
	}

	backend, err := newBackend(ctx, c)
	if err != nil {
		return fmt.Errorf("object store init error: %w", err)
	}

	var readCache cache.Cache
	if c.RedisAddr != "" {
		rc, client, err := cache.NewRedisCache(ctx, c.RedisAddr, c.CacheTTL, app.logger)
		if err != nil {
			return fmt.Errorf("redis init error: %w", err)
		}
		app.closers = append(app.closers, client.Close)
		readCache = rc
	} else {
		readCache = cache.NewMemoryCache(c.CacheSize, c.CacheTTL)
	}

	app.registry = prometheus.NewRegistry()
	app.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	prom, err := metrics.NewPrometheusRecorder("mediavault", app.registry)
	if err != nil {
		return err
	}
	app.recorder = metrics.NewAsyncRecorder(prom, 4096, prom.Dropped)

	var notifier events.Notifier = events.Nop{}
	if brokers := c.Brokers(); len(brokers) > 0 {
		kn := events.NewKafkaNotifier(brokers, c.KafkaTopic, app.logger)
		app.closers = append(app.closers, kn.Close)
		notifier = kn
	}

	app.images = services.NewImageService(db, rm, readCache, app.logger)
	app.coordinator = uploads.New(uploads.Dependencies{
		Objects:  objectstore.NewClient(backend),
		Records:  services.NewRecordService(db, rm),
		Cache:    readCache,
		Metrics:  app.recorder,
		Notifier: notifier,
	}, uploads.Options{
		MaxAttempts:     c.MaxAttempts,
		CallTimeout:     c.CallTimeout,
		Concurrency:     c.UploadConcurrency,
		RetentionWindow: c.RetentionWindow,
	}, app.logger)

	return nil
}

func newBackend(ctx context.Context, c *config.Config) (objectstore.Backend, error) {
	switch c.ObjectStoreDriver {
	case config.DriverMinio:
		mc, err := minioConfigFrom(c)
		if err != nil {
			return nil, err
		}
		return objectstore.NewMinioBackend(ctx, mc)
	case config.DriverMemory:
		base := c.S3PublicURL
		if base == "" {
			base = "http://localhost" + c.HTTPAddr + "/" + c.S3Bucket
		}
		return objectstore.NewMemoryBackend(base), nil
	}
	return objectstore.NewS3Backend(ctx, objectstore.S3Config{
		AccessKey:    c.S3RootUser,
		SecretKey:    c.S3RootPassword,
		Region:       c.S3Region,
		BaseEndpoint: c.S3BaseEndpoint,
		Bucket:       c.S3Bucket,
		PublicURL:    c.S3PublicURL,
	})
}

// minioConfigFrom derives host and TLS from the S3 endpoint URL.
func minioConfigFrom(c *config.Config) (objectstore.MinioConfig, error) {
	u, err := url.Parse(c.S3BaseEndpoint)
	if err != nil || u.Host == "" {
		return objectstore.MinioConfig{}, fmt.Errorf("invalid object store endpoint %q", c.S3BaseEndpoint)
	}
	return objectstore.MinioConfig{
		Endpoint:  u.Host,
		AccessKey: c.S3RootUser,
		SecretKey: c.S3RootPassword,
		UseSSL:    u.Scheme == "https",
		Bucket:    c.S3Bucket,
		PublicURL: c.S3PublicURL,
	}, nil
}

func parseLevel(s string) slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return l
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {
	metricsHandler := promhttp.HandlerFor(app.registry, promhttp.HandlerOpts{})
	s := httpapi.NewHTTPServer(app.config.HTTPAddr, app.logger, app.coordinator, app.images,
		app.config.SecretKey, app.config.MaxUploadBytes, metricsHandler)

	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

// Run blocks until a signal arrives or the HTTP server fails, then releases
// every resource.
func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(2)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()
	go func() {
		defer wg.Done()
		app.coordinator.RunReaper(ctx, app.config.ReapInterval)
	}()

	wg.Wait()

	app.coordinator.Wait()
	app.close()
	app.logger.Info(context.Background(), "App stopped")
}

func (app *App) close() {
	if app.recorder != nil {
		app.recorder.Close()
	}
	for i := len(app.closers) - 1; i >= 0; i-- {
		if err := app.closers[i](); err != nil {
			app.logger.Warn(context.Background(), "close failed", "error", err)
		}
	}
	app.closers = nil
}
