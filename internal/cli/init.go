// Package cli provides common CLI initialization utilities.
// This package consolidates the start-up sequence shared by the service
// binaries, the log worker and costctl.
package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"costmanager/internal/amqp"
	"costmanager/internal/backend"
	"costmanager/internal/cache"
	"costmanager/internal/config"
	"costmanager/internal/core"
	apphttp "costmanager/internal/http"
	"costmanager/internal/log"
	"costmanager/internal/report"
	"costmanager/internal/services"
	"costmanager/internal/userdir"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"
)

// SetupLogger initializes structured logging at the given level and sets
// it as the default logger.
func SetupLogger(level string) *log.Logger {
	cfg := log.DefaultConfig()
	cfg.Level = log.ParseLevel(level)
	logger := log.New(cfg)
	log.SetDefault(logger)
	return logger
}

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// LoadAndValidateConfig loads the configuration of one binary, sets up the
// logger from it and validates it. The process exits on validation failure.
func LoadAndValidateConfig(service, defaultPort string) (*config.Config, *log.Logger) {
	cfg := config.LoadFor(service, defaultPort)
	logger := SetupLogger(cfg.LogLevel)
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", log.FieldError, err.Error())
		os.Exit(1)
	}
	return cfg, logger
}

// OpenBackend creates the storage backend selected by DATA_BACKEND.
func OpenBackend(ctx context.Context, logger *log.Logger, cfg *config.Config) (*backend.BackendResult, error) {
	bc, err := backend.FromAppConfig(cfg)
	if err != nil {
		return nil, err
	}
	return backend.NewFactory(logger).CreateBackend(ctx, bc)
}

// NewRecorder picks where request logs go: the broker when AMQP_URL is set
// and reachable, otherwise straight into the log store. The returned
// function releases the broker connection.
func NewRecorder(logger *log.Logger, cfg *config.Config, logs services.LogStore) (log.RequestRecorder, func()) {
	local := services.NewLogService(logs)
	if cfg.AMQPURL == "" {
		logger.Info("AMQP disabled - request logs are written to the log store directly")
		return local, func() {}
	}

	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
	if err != nil {
		logger.Warn("Failed to initialize AMQP client, writing request logs directly",
			log.FieldError, err.Error())
		return local, func() {}
	}
	logger.Info("AMQP client initialized - request logs go through the log worker",
		"exchange", cfg.AMQPExchange,
		"queue", cfg.AMQPQueue)
	return client, func() { _ = client.Close() }
}

// NewReportEngine builds the report engine over b. A positive cache size
// adds an in-process hit cache swept by the returned manager.
func NewReportEngine(logger *log.Logger, cfg *config.Config, b backend.Backend) (*report.Engine, *cache.Manager, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, nil, err
	}

	opts := []report.Option{
		report.WithLocation(loc),
		report.WithLogger(logger),
		report.WithObserver(report.ObserverFunc(func(ctx context.Context, res report.Result) {
			if res.Dropped > 0 {
				logger.WarnContext(ctx, "Report skipped costs with unknown categories",
					append(log.NewFields().WithReportKey(res.Report.UserID, res.Report.Year, res.Report.Month).ToSlice(),
						log.FieldItems, res.Dropped)...)
			}
		})),
	}

	manager := cache.NewManager(logger.WithComponent(log.ComponentCache).Logger)
	if cfg.ReportCacheSize > 0 {
		hits := cache.NewLRU[core.ReportKey, core.MonthlyReport](cfg.ReportCacheSize, cfg.ReportCacheTTL)
		manager.Register("reports", hits)
		opts = append(opts, report.WithHitCache(hits))
	}

	return report.NewEngine(b, b, opts...), manager, nil
}

// NewUserDirectory asks the users service when USERS_SERVICE_URL is set and
// the shared user store otherwise.
func NewUserDirectory(cfg *config.Config, b backend.Backend) services.UserDirectory {
	if cfg.UsersServiceURL != "" {
		return userdir.NewClient(cfg.UsersServiceURL, nil)
	}
	return userdir.NewStore(b)
}

// NewServer wires the collaborators of service and returns its server.
// The cleanup function releases everything NewServer started.
func NewServer(logger *log.Logger, cfg *config.Config, service apphttp.Service, b backend.Backend) (*apphttp.Server, func(), error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, nil, err
	}

	deps := apphttp.Deps{
		Team:     cfg.Team(),
		Location: loc,
		Logger:   logger,
	}
	cleanup := func() {}

	if b != nil {
		recorder, closeRecorder := NewRecorder(logger, cfg, b)
		deps.Recorder = recorder
		deps.Ready = b
		cleanup = closeRecorder
	}

	switch service {
	case apphttp.ServiceCosts:
		engine, manager, err := NewReportEngine(logger, cfg, b)
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		manager.Start(cfg.CacheSweepInterval)
		closeRecorder := cleanup
		cleanup = func() {
			manager.Stop()
			closeRecorder()
		}
		deps.Reports = engine
		deps.Costs = services.NewCostService(b, NewUserDirectory(cfg, b), logger)
	case apphttp.ServiceUsers:
		deps.Users = services.NewUserService(b, logger)
	case apphttp.ServiceLogs:
		deps.Logs = services.NewLogService(b)
	}

	srv, err := apphttp.NewServer(":"+cfg.Port, service, deps)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	return srv, cleanup, nil
}

// Serve runs srv until ctx is done, then shuts it down within timeout.
func Serve(ctx context.Context, logger *log.Logger, srv *apphttp.Server, timeout time.Duration) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("Starting server", "service", srv.Service(), "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen on %s: %w", srv.Addr, err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		logger.Info("Shutting down server", "service", srv.Service())
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	})

	return g.Wait()
}

// SignalContext returns a context cancelled on SIGINT or SIGTERM.
func SignalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

// RunService is the whole main of a service binary.
func RunService(service apphttp.Service, defaultPort string) {
	LoadEnvFile()
	cfg, logger := LoadAndValidateConfig(string(service), defaultPort)
	logger = logger.With(log.FieldService, string(service))

	ctx, cancel := SignalContext()
	defer cancel()

	if err := runService(ctx, logger, cfg, service); err != nil {
		logger.Error("Service failed", log.FieldError, err.Error())
		cancel()
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully")
}

func runService(ctx context.Context, logger *log.Logger, cfg *config.Config, service apphttp.Service) error {
	var b backend.Backend
	// The admin service only reports its configured team.
	if service != apphttp.ServiceAdmin {
		res, err := OpenBackend(ctx, logger, cfg)
		if err != nil {
			return err
		}
		if res.Cleanup != nil {
			defer func() {
				if err := res.Cleanup(); err != nil {
					logger.Warn("Backend cleanup failed", log.FieldError, err.Error())
				}
			}()
		}
		b = res.Backend
		if cfg.DataBackend == string(backend.MemoryBackend) {
			logger.Warn("Memory backend is private to this process; other services will not see its users, costs or logs",
				log.FieldBackend, cfg.DataBackend)
		}
	}

	srv, cleanup, err := NewServer(logger, cfg, service, b)
	if err != nil {
		return err
	}
	defer cleanup()

	return Serve(ctx, logger, srv, cfg.ShutdownTimeout)
}
