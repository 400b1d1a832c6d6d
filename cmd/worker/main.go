// Command worker consumes charge jobs from Kafka and publishes their results.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/turtacn/ChargeMatch/internal/config"
	"github.com/turtacn/ChargeMatch/internal/domain/charge"
	"github.com/turtacn/ChargeMatch/internal/infrastructure/canonical"
	"github.com/turtacn/ChargeMatch/internal/infrastructure/messaging/kafka"
	"github.com/turtacn/ChargeMatch/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/ChargeMatch/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/ChargeMatch/internal/infrastructure/repostore"
	httpserver "github.com/turtacn/ChargeMatch/internal/interfaces/http"
	"github.com/turtacn/ChargeMatch/internal/interfaces/http/handlers"
)

// Build-time variables injected via ldflags.
var version = "dev"

const (
	defaultHealthPort = 8081
	shutdownTimeout   = 30 * time.Second
	topicSetupTimeout = 30 * time.Second
)

func main() {
	configPath := flag.String("config", "", "path to configuration file (default: environment only)")
	workerCount := flag.Int("workers", 0, "number of concurrent jobs (overrides worker.concurrency)")
	healthPort := flag.Int("health-port", defaultHealthPort, "port for /healthz, /readyz and /metrics")
	ensureTopics := flag.Bool("ensure-topics", true, "create the job, result and dead-letter topics when missing")
	flag.Parse()

	cfg, err := config.LoadOptional(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if *workerCount > 0 {
		cfg.Worker.Concurrency = *workerCount
	}

	logger, err := logging.NewLogger(cfg.Log.LoggerConfig())
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()
	logging.SetDefault(logger)

	if err := run(cfg, *healthPort, *ensureTopics, logger); err != nil {
		logger.Error("worker exited with error", logging.Err(err))
		os.Exit(1)
	}
}

func run(cfg *config.Config, healthPort int, ensureTopics bool, logger logging.Logger) error {
	logger.Info("starting ChargeMatch worker",
		logging.String("version", version),
		logging.Int("workers", cfg.Worker.Concurrency),
		logging.String("job_topic", cfg.Kafka.JobTopic),
		logging.String("result_topic", cfg.Kafka.ResultTopic))

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

	if ensureTopics {
		if err := setupTopics(ctx, cfg.Kafka, logger); err != nil {
			// Brokers with auto-create enabled still work.
			logger.Warn("failed to ensure Kafka topics", logging.Err(err))
		}
	}

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

	// One canonizer per concurrent job.
	pool, err := canonical.NewPoolFromConfig(cfg.Charge, cfg.Worker.Concurrency, logger)
	if err != nil {
		return fmt.Errorf("canonizer pool: %w", err)
	}
	defer pool.Close()

	svc := charge.NewService(repo.Repository, pool, repostore.ServiceConfig(cfg.Charge), metrics, logger)

	producer, err := kafka.NewProducer(kafka.ProducerConfig{
		Brokers:          cfg.Kafka.Brokers,
		Acks:             "all",
		CompressionCodec: "zstd",
	}, logger)
	if err != nil {
		return fmt.Errorf("kafka producer: %w", err)
	}
	defer producer.Close()

	consumer, err := kafka.NewConsumer(kafka.ConsumerConfig{
		Brokers:         cfg.Kafka.Brokers,
		GroupID:         cfg.Kafka.GroupID,
		Topics:          []string{cfg.Kafka.JobTopic},
		AutoOffsetReset: cfg.Kafka.StartOffset,
		Concurrency:     cfg.Worker.Concurrency,
		RetryConfig: kafka.RetryConfig{
			MaxRetries:      cfg.Worker.MaxRetries,
			RetryBackoff:    cfg.Worker.RetryBackoff,
			DeadLetterTopic: cfg.Kafka.DLQTopic,
		},
	}, producer, metrics, logger)
	if err != nil {
		return fmt.Errorf("kafka consumer: %w", err)
	}
	defer consumer.Close()

	worker := kafka.NewWorker(svc, producer, cfg.Kafka.ResultTopic, logger)
	consumer.Subscribe(cfg.Kafka.JobTopic, worker.Handle)

	health := handlers.NewHealthHandler(version,
		handlers.CheckFunc{Component: "repository", Fn: repo.Ping},
	).WithObserver(metrics)
	routerCfg := httpserver.RouterConfig{HealthHandler: health, Logger: logger, Mode: cfg.Server.Mode}
	if cfg.Metrics.Enabled {
		routerCfg.MetricsCollector = collector
	}
	healthSrv := httpserver.NewServer(config.ServerConfig{Port: healthPort}, httpserver.NewRouter(routerCfg), logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(healthSrv.Start)
	g.Go(func() error {
		logger.Info("consuming charge jobs", logging.Int("workers", cfg.Worker.Concurrency))
		return consumer.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("received shutdown signal, draining in-flight jobs")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := healthSrv.Stop(shutdownCtx); err != nil {
			logger.Error("health server shutdown error", logging.Err(err))
		}
		return nil
	})

	err = g.Wait()
	logger.Info("ChargeMatch worker stopped")
	return err
}

func setupTopics(ctx context.Context, cfg config.KafkaConfig, logger logging.Logger) error {
	ctx, cancel := context.WithTimeout(ctx, topicSetupTimeout)
	defer cancel()

	tm, err := kafka.NewTopicManager(cfg.Brokers, logger)
	if err != nil {
		return err
	}
	defer tm.Close()
	return tm.EnsureTopics(ctx, kafka.DefaultTopics(cfg))
}

//Personal.AI order the ending
