// Command apiserver serves charge assignment over HTTP and gRPC.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/turtacn/ChargeMatch/internal/config"
	"github.com/turtacn/ChargeMatch/internal/domain/charge"
	"github.com/turtacn/ChargeMatch/internal/infrastructure/canonical"
	"github.com/turtacn/ChargeMatch/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/ChargeMatch/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/ChargeMatch/internal/infrastructure/repostore"
	grpcserver "github.com/turtacn/ChargeMatch/internal/interfaces/grpc"
	httpserver "github.com/turtacn/ChargeMatch/internal/interfaces/http"
	"github.com/turtacn/ChargeMatch/internal/interfaces/http/handlers"
	"github.com/turtacn/ChargeMatch/internal/interfaces/http/middleware"
)

// Build-time variables injected via ldflags.
var (
	version = "dev"
	commit  = "unknown"
)

const shutdownTimeout = 30 * time.Second

func main() {
	configPath := flag.String("config", "", "path to configuration file (default: environment only)")
	httpPort := flag.Int("http-port", 0, "HTTP server port (overrides config)")
	grpcPort := flag.Int("grpc-port", 0, "gRPC server port (overrides config)")
	canonizers := flag.Int("canonizers", runtime.NumCPU(), "size of the canonizer pool")
	flag.Parse()

	cfg, err := config.LoadOptional(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if *httpPort > 0 {
		cfg.Server.Port = *httpPort
	}
	if *grpcPort > 0 {
		cfg.GRPC.Port = *grpcPort
	}

	logger, err := logging.NewLogger(cfg.Log.LoggerConfig())
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()
	logging.SetDefault(logger)

	if err := run(cfg, *configPath, *canonizers, logger); err != nil {
		logger.Error("apiserver exited with error", logging.Err(err))
		os.Exit(1)
	}
}

func run(cfg *config.Config, configPath string, canonizers int, logger logging.Logger) error {
	logger.Info("starting ChargeMatch API server",
		logging.String("version", version),
		logging.String("commit", commit),
		logging.Int("http_port", cfg.Server.Port),
		logging.Int("grpc_port", cfg.GRPC.Port),
		logging.String("repository_source", cfg.Repository.Source))

	collector, err := prometheus.NewMetricsCollector(prometheus.CollectorConfig{
		Namespace:            cfg.Metrics.Namespace,
		Subsystem:            cfg.Metrics.Subsystem,
		EnableProcessMetrics: true,
		EnableGoMetrics:      true,
	}, logger)
	if err != nil {
		return fmt.Errorf("metrics: %w", err)
	}
	metrics := prometheus.NewAppMetrics(collector)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	repo, err := repostore.Open(ctx, cfg, cfg.Repository.Source, repostore.Options{Logger: logger, CacheRecorder: metrics})
	if err != nil {
		return fmt.Errorf("repository: %w", err)
	}
	defer repo.Close()
	for _, s := range repo.Stats() {
		for _, sh := range s.Shells {
			metrics.SetRepositoryKeys(s.Kind, sh.Shell, sh.Keys)
		}
	}

	pool, err := canonical.NewPoolFromConfig(cfg.Charge, canonizers, logger)
	if err != nil {
		return fmt.Errorf("canonizer pool: %w", err)
	}
	defer pool.Close()

	svc := charge.NewService(repo.Repository, pool, repostore.ServiceConfig(cfg.Charge), metrics, logger)
	if configPath != "" {
		// Only charge defaults are reloaded; listeners and backends need a restart.
		config.Watch(configPath, func(next *config.Config) {
			svc.Reconfigure(repostore.ServiceConfig(next.Charge))
			logger.Info("configuration reloaded", logging.String("variant", next.Charge.Variant))
		}, func(err error) {
			logger.Warn("ignoring invalid configuration change", logging.Err(err))
		})
	}

	// HTTP
	health := handlers.NewHealthHandler(version,
		handlers.CheckFunc{Component: "repository", Fn: repo.Ping},
		handlers.CheckFunc{Component: "canonizer", Fn: func(ctx context.Context) error {
			c, err := pool.Acquire(ctx)
			if err != nil {
				return err
			}
			pool.Release(c)
			return nil
		}},
	).WithObserver(metrics)

	limiter := middleware.NewTokenBucketLimiter(50, 100, 5*time.Minute)
	defer limiter.Stop()

	routerCfg := httpserver.RouterConfig{
		ChargeHandler: handlers.NewChargeHandler(svc, repo.Stats, logger),
		HealthHandler: health,
		RateLimiter:   limiter,
		RateLimit:     middleware.DefaultRateLimitConfig(),
		Logging:       middleware.DefaultLoggingConfig(),
		MaxBodySize:   cfg.Server.MaxBodySize,
		Logger:        logger,
		Metrics:       metrics,
		Mode:          cfg.Server.Mode,
	}
	if cfg.Metrics.Enabled {
		routerCfg.MetricsCollector = collector
	}
	httpSrv := httpserver.NewServer(cfg.Server, httpserver.NewRouter(routerCfg), logger)

	// gRPC
	grpcSrv, err := grpcserver.NewServer(&cfg.GRPC,
		grpcserver.WithLogger(logger),
		grpcserver.WithMetrics(metrics),
		grpcserver.WithGracefulTimeout(cfg.Server.ShutdownTimeout))
	if err != nil {
		return err
	}
	grpcSrv.RegisterService(&grpcserver.ChargeServiceDesc, grpcserver.NewChargeService(svc, logger))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(httpSrv.Start)
	g.Go(grpcSrv.Start)
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down servers")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := httpSrv.Stop(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", logging.Err(err))
		}
		if err := grpcSrv.Stop(shutdownCtx); err != nil {
			logger.Error("gRPC server shutdown error", logging.Err(err))
		}
		return nil
	})

	err = g.Wait()
	logger.Info("servers stopped")
	return err
}

//Personal.AI order the ending
