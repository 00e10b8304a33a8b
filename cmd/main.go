package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/okian/applicantpool/internal/adapters/http/api"
	"github.com/okian/applicantpool/internal/adapters/http/swagger"
	"github.com/okian/applicantpool/internal/adapters/lock"
	"github.com/okian/applicantpool/internal/adapters/repository"
	app "github.com/okian/applicantpool/internal/app"
	"github.com/okian/applicantpool/internal/config"
	"github.com/okian/applicantpool/internal/domain/dedupe"
	"github.com/okian/applicantpool/internal/domain/normalize"
	"github.com/okian/applicantpool/pkg/logger"
)

// HTTP server timeout constants.
const (
	readTimeout            = 30 * time.Second
	writeTimeout           = 5 * time.Minute
	idleTimeout            = 60 * time.Second
	readHeaderTimeout      = 5 * time.Second
	serviceMetricsInterval = 5 * time.Second
)

func main() {
	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration (defaults -> optional file -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		// Use stderr for initialization errors since logger isn't available yet
		_, _ = os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		os.Exit(1)
	}

	// Initialize logging
	if err := logger.Init(logger.WithFormat(cfg.LogFormat)); err != nil {
		_, _ = os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(ctx, cfg); err != nil {
		logger.Get().Error(context.Background(), "applicant pool exited", logger.Error(err))
		os.Exit(1)
	}
}

// run wires the service from cfg and serves HTTP until ctx is canceled.
func run(ctx context.Context, cfg *config.Config) error {
	log := logger.Get()

	// Apply configured log level (fallback to info on invalid input)
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	store, err := buildStore(ctx, cfg)
	if err != nil {
		return err
	}
	locker, lockCloser, err := buildLocker(ctx, cfg)
	if err != nil {
		_ = store.Close()
		return err
	}
	defer func() { _ = lockCloser.Close() }()

	engine := dedupe.NewEngine(
		dedupe.WithNormalizer(normalize.New(normalize.WithDayFirst(cfg.DateDayFirst))),
	)
	svc := app.New(
		app.WithLogger(log.Named("service")),
		app.WithStore(store),
		app.WithLocker(locker),
		app.WithEngine(engine),
		app.WithQueueSize(cfg.QueueSize),
		app.WithMaxBatchRows(cfg.MaxBatchRows),
	)
	if err := svc.Start(ctx); err != nil {
		_ = store.Close()
		return fmt.Errorf("start service: %w", err)
	}
	defer func() {
		if err := svc.Close(); err != nil {
			log.Warn(context.Background(), "close store", logger.Error(err))
		}
	}()

	// Start service metrics updater
	go startServiceMetricsUpdater(ctx, svc)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           newHandler(ctx, svc, cfg),
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr), logger.String("store", cfg.StoreDriver))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
		close(errCh)
	}()

	// Wait for shutdown signal
	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return err
		}
	}
	log.Info(context.Background(), "shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout())
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(shutdownCtx, "server shutdown failed", logger.Error(err))
	}

	log.Info(shutdownCtx, "server stopped")
	return nil
}

// newHandler registers the business API and docs routes on a fresh mux.
func newHandler(ctx context.Context, svc *app.Service, cfg *config.Config) http.Handler {
	mux := http.NewServeMux()
	apiServer := api.NewServer(svc, svc,
		api.WithMaxLimit(cfg.MaxListLimit),
		api.WithMaxBodyBytes(cfg.MaxBodyBytes),
	)
	apiServer.Register(ctx, mux)
	swagger.Register(ctx, mux)
	return mux
}

// buildStore opens the configured pool store.
func buildStore(ctx context.Context, cfg *config.Config) (repository.Store, error) {
	if cfg.StoreDriver == config.StoreMemory {
		return repository.NewMemoryStore(), nil
	}
	dialect, err := repository.ParseDialect(cfg.StoreDriver)
	if err != nil {
		return nil, err
	}
	store, err := repository.OpenSQL(ctx, dialect, cfg.StoreDSN)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	return store, nil
}

// buildLocker returns a Redis writer lock when redis_addr is set, and a
// no-op lock otherwise. The closer releases the Redis client.
func buildLocker(ctx context.Context, cfg *config.Config) (lock.Locker, io.Closer, error) {
	if cfg.RedisAddr == "" {
		return lock.NopLocker{}, io.NopCloser(nil), nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("ping redis %s: %w", cfg.RedisAddr, err)
	}
	return lock.NewRedisLocker(client,
		lock.WithKey(cfg.LockKey),
		lock.WithTTL(cfg.LockTTL()),
		lock.WithWait(cfg.LockWait()),
	), client, nil
}

// startServiceMetricsUpdater refreshes service gauges until ctx is done.
func startServiceMetricsUpdater(ctx context.Context, svc *app.Service) {
	ticker := time.NewTicker(serviceMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			svc.UpdateGauges()
		}
	}
}
