package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"partner-server/internal/cache"
	"partner-server/internal/config"
	"partner-server/internal/gateway"
	"partner-server/internal/jobs"
	"partner-server/internal/jobs/workers"
	"partner-server/internal/observability"
	"partner-server/internal/partnerauth"
	provisioningProcessor "partner-server/internal/provisioning/processor"
	"partner-server/internal/store"
	templateProcessor "partner-server/internal/templates/processor"
	"partner-server/internal/vault"

	"github.com/hibiken/asynq"
)

func main() {
	logger := observability.NewLogger()
	ctx := context.Background()

	logger.Info(ctx, "Starting background worker server...")

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
	templateProc := templateProcessor.New(&dataStore, gatewayClient, provisioningProc, logger)
	templateWorker := workers.NewTemplateWorker(templateProc, logger)

	redisOpt := asynq.RedisClientOpt{
		Addr:     cfg.Redis.Addr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}

	// Create Asynq server
	srv := asynq.NewServer(
		redisOpt,
		asynq.Config{
			Concurrency: 1, // the poll touches all submitted templates, one run at a time
			Queues: map[string]int{
				jobs.QueueDefault: 1,
			},
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				logger.Error(ctx, fmt.Sprintf("task %s failed", task.Type()), err)
			}),
		},
	)

	mux := asynq.NewServeMux()
	mux.HandleFunc(jobs.TypeTemplatePoll, templateWorker.ProcessTemplatePollTask)

	// Schedule the recurring template status poll
	scheduler := asynq.NewScheduler(
		redisOpt,
		&asynq.SchedulerOpts{
			Logger: &asynqLogger{logger: logger},
		},
	)

	if _, err := scheduler.Register(jobs.TemplatePollInterval, jobs.NewTemplatePollTask()); err != nil {
		log.Fatalf("Failed to register template poll task: %v", err)
	}

	if err := scheduler.Start(); err != nil {
		log.Fatalf("Failed to start scheduler: %v", err)
	}
	defer scheduler.Shutdown()

	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info(ctx, fmt.Sprintf("Worker server started on Redis: %s", cfg.Redis.Addr()))
		if err := srv.Run(mux); err != nil {
			log.Fatalf("Failed to run server: %v", err)
		}
	}()

	<-sigChan
	logger.Info(ctx, "Shutting down worker server...")

	srv.Shutdown()
	logger.Info(ctx, "Worker server stopped")
}

// asynqLogger adapts observability.Logger to asynq.Logger interface
type asynqLogger struct {
	logger *observability.Logger
}

func (l *asynqLogger) Debug(args ...interface{}) {
	l.logger.Debug(context.Background(), fmt.Sprint(args...))
}

func (l *asynqLogger) Info(args ...interface{}) {
	l.logger.Info(context.Background(), fmt.Sprint(args...))
}

func (l *asynqLogger) Warn(args ...interface{}) {
	l.logger.Warn(context.Background(), fmt.Sprint(args...))
}

func (l *asynqLogger) Error(args ...interface{}) {
	l.logger.Error(context.Background(), fmt.Sprint(args...), nil)
}

func (l *asynqLogger) Fatal(args ...interface{}) {
	l.logger.Error(context.Background(), fmt.Sprint(args...), nil)
	os.Exit(1)
}
