package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"typesense-sync/internal/cache"
	"typesense-sync/internal/config"
	"typesense-sync/internal/metrics"
	"typesense-sync/internal/nats"
	"typesense-sync/internal/processor"
	"typesense-sync/internal/provisioner"
	"typesense-sync/internal/query"
	"typesense-sync/internal/router"
	"typesense-sync/internal/secrets"
	"typesense-sync/internal/server"
	"typesense-sync/internal/typesense"
)

func main() {
	// Setup logger
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})
	logger.SetLevel(logrus.InfoLevel)

	// Load configuration; in Lambda the environment is usually enough
	configPath := os.Getenv("CONFIG_PATH")
	if len(os.Args) > 1 {
		configPath = os.Args[1]
	}

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		logger.Fatalf("Failed to load config: %v", err)
	}

	if level, err := logrus.ParseLevel(cfg.Logging.Level); err == nil {
		logger.SetLevel(level)
	}
	if cfg.Logging.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}

	if err := cfg.Validate(); err != nil {
		logger.Fatalf("Invalid config: %v", err)
	}

	inLambda := os.Getenv("AWS_LAMBDA_RUNTIME_API") != ""
	logger.Infof("Starting Typesense sync service (lambda=%t)...", inLambda)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Typesense.APIKey == "" {
		store, err := secrets.NewParameterStore(ctx)
		if err != nil {
			logger.Fatalf("Failed to create parameter store: %v", err)
		}
		apiKey, err := store.Get(ctx, cfg.Typesense.APIKeyParameter)
		if err != nil {
			logger.Fatalf("Failed to resolve Typesense API key: %v", err)
		}
		cfg.Typesense.APIKey = apiKey
		logger.Infof("Resolved Typesense API key from parameter %s", cfg.Typesense.APIKeyParameter)
	}

	registry := prometheus.NewRegistry()
	m := metrics.NewMetrics(registry)

	client := typesense.NewClient(typesense.Options{
		Host:              cfg.Typesense.Host,
		Port:              cfg.Typesense.Port,
		Protocol:          cfg.Typesense.Protocol,
		APIKey:            cfg.Typesense.APIKey,
		ConnectionTimeout: cfg.Typesense.ConnectionTimeout,
	}, m, logger)

	checker := NewTypesenseChecker(client, logger)
	checkCtx, checkCancel := context.WithTimeout(ctx, 10*time.Second)
	if err := checker.CheckConnectionAndPermissions(checkCtx); err != nil {
		// A cold Lambda should still try the batch; Typesense may come back
		if inLambda {
			logger.Warnf("Typesense check failed: %v", err)
		} else {
			checkCancel()
			logger.Fatalf("Typesense check failed: %v", err)
		}
	}
	checkCancel()

	// Initialize collection existence cache
	var existence cache.ExistenceCache
	switch cfg.Cache.Backend {
	case "redis":
		redisCache, err := cache.NewRedisCache(cfg.Cache.RedisURL, cfg.Cache.Prefix, cfg.Cache.TTL)
		if err != nil {
			logger.Fatalf("Failed to create redis cache: %v", err)
		}
		defer redisCache.Close()
		existence = redisCache
	default:
		memoryCache, err := cache.NewMemoryCache(cfg.Cache.Size)
		if err != nil {
			logger.Fatalf("Failed to create memory cache: %v", err)
		}
		existence = memoryCache
	}
	logger.Infof("Using %s collection cache", cfg.Cache.Backend)

	// Initialize NATS publisher when configured
	var notifier processor.Notifier
	if cfg.NATS.URL != "" {
		publisher, err := nats.NewPublisher(
			cfg.NATS.URL,
			cfg.NATS.Subject,
			cfg.NATS.MaxReconnect,
			cfg.NATS.ReconnectWait,
			logger,
		)
		if err != nil {
			logger.Fatalf("Failed to create NATS publisher: %v", err)
		}
		defer publisher.Close()
		notifier = publisher
	}

	prov := provisioner.New(client, existence, m, logger)
	expander := processor.NewExpander(cfg.Fields, logger)
	proc := processor.NewProcessor(client, prov, expander, notifier, m, logger)
	proxy := query.NewProxy(client, m, logger)
	rt := router.New(proc, proxy, logger)

	if inLambda {
		lambda.StartWithOptions(rt.Handle, lambda.WithContext(ctx))
		return
	}

	srv := server.New(cfg.Server.Addr, server.NewHandlers(rt, client, registry, logger), cfg.Server.ShutdownTimeout, logger)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Start(ctx)
	}()

	// Wait for signal or error
	select {
	case sig := <-sigChan:
		logger.Infof("Received signal: %v, shutting down...", sig)
		cancel()
		if err := <-errChan; err != nil {
			logger.Errorf("Server error: %v", err)
		}
	case err := <-errChan:
		if err != nil {
			logger.Errorf("Server error: %v", err)
		}
	}

	logger.Info("Typesense sync service stopped")
}
