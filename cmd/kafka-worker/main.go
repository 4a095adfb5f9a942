package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"partner-server/internal/cache"
	kafkaClient "partner-server/internal/clients/kafka"
	"partner-server/internal/config"
	dispatchProcessor "partner-server/internal/dispatch/processor"
	"partner-server/internal/events"
	"partner-server/internal/gateway"
	"partner-server/internal/notifications"
	"partner-server/internal/observability"
	"partner-server/internal/partnerauth"
	provisioningProcessor "partner-server/internal/provisioning/processor"
	"partner-server/internal/store"
	"partner-server/internal/vault"
	"partner-server/internal/workers"
	campaignWorker "partner-server/internal/workers/campaign"

	"github.com/redis/go-redis/v9"
)

func main() {
	logger := observability.NewLogger()
	ctx := context.Background()

	logger.Info(ctx, "Starting campaign worker server...")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	dataStore, err := store.New(cfg.Database.ConnectionString(), logger)
	if err != nil {
		log.Fatalf("Failed to initialize store: %v", err)
	}

	credentialVault, err := vault.New(cfg.Gateway.CredentialKey)
	if err != nil {
		log.Fatalf("Failed to initialize credential vault: %v", err)
	}

	gatewayClient := gateway.NewClient(cfg.Gateway.BaseURL, logger)
	partnerAuth := partnerauth.NewManager(
		&dataStore,
		gatewayClient,
		credentialVault,
		cache.NewMemory(),
		logger,
		cfg.Gateway.PartnerEmail,
		cfg.Gateway.PartnerPassword,
	)

	provisioningProc := provisioningProcessor.New(&dataStore, gatewayClient, partnerAuth, logger)
	dispatchProc := dispatchProcessor.New(&dataStore, gatewayClient, provisioningProc, logger, cfg.Gateway.DefaultCountryCode)

	// Kafka clients: the producer records terminal campaign transitions, the
	// consumer feeds campaign-start events into the worker pool.
	brokers := strings.Split(cfg.Kafka.Brokers, ",")
	kafkaProducer := kafkaClient.NewProducer(kafkaClient.ProducerConfig{
		Brokers: brokers,
		Topic:   cfg.Kafka.Topic,
	}, logger)
	defer kafkaProducer.Close()

	kafkaConsumer := kafkaClient.NewConsumer(kafkaClient.ConsumerConfig{
		Brokers: brokers,
		Topic:   cfg.Kafka.Topic,
		GroupID: cfg.Kafka.ConsumerGroup,
	}, logger)

	eventDispatcher := events.NewEventDispatcher(kafkaProducer, logger)

	// Redis pub/sub publisher for per-agent progress notifications
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()
	notifier := notifications.NewPublisher(redisClient, logger)

	campaignProc := campaignWorker.NewProcessor(
		&dataStore,
		dispatchProc,
		notifier,
		eventDispatcher,
		logger,
		campaignWorker.DefaultConfig(cfg.Campaign.MessageInterval),
	)

	poolConfig := workers.DefaultPoolConfig()
	poolConfig.NumWorkers = cfg.Campaign.Workers
	pool := workers.NewPool(poolConfig, campaignProc, logger)

	consumer := workers.NewConsumer(kafkaConsumer, pool, logger)

	// Handle graceful shutdown
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info(runCtx, "Starting campaign event consumer...")
		if err := consumer.Start(runCtx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error(runCtx, "campaign consumer error", err)
			cancel()
		}
	}()

	logger.Info(ctx, "Campaign worker server started successfully")

	<-sigChan
	logger.Info(ctx, "Received shutdown signal, stopping workers...")
	cancel()

	consumer.Stop(context.Background())
	logger.Info(ctx, "Campaign worker server stopped")
}
