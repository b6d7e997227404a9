// cmd/worker-manager/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"jobapply-workers/internal/apply"
	"jobapply-workers/internal/common/auth"
	"jobapply-workers/internal/common/aws"
	"jobapply-workers/internal/common/camunda"
	"jobapply-workers/internal/common/config"
	"jobapply-workers/internal/common/database"
	"jobapply-workers/internal/common/logger"
	"jobapply-workers/internal/common/observability"
	"jobapply-workers/internal/httpapi"
	"jobapply-workers/internal/pipeline"
	"jobapply-workers/internal/progress"
	"jobapply-workers/internal/store"
	"jobapply-workers/internal/tracker"
	"jobapply-workers/pkg/registry"

	// Application workers
	sa "jobapply-workers/internal/workers/application/speed-apply"
	wa "jobapply-workers/internal/workers/application/workday-apply"

	// Submission steps
	af "jobapply-workers/internal/workers/submission/autofillform"
	cs "jobapply-workers/internal/workers/submission/confirmsubmission"
	fr "jobapply-workers/internal/workers/submission/formatresume"
	mm "jobapply-workers/internal/workers/submission/messagemanager"
	pl "jobapply-workers/internal/workers/submission/portallogin"
	sub "jobapply-workers/internal/workers/submission/submitapplication"
	ur "jobapply-workers/internal/workers/submission/uploadresume"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting worker manager...",
		zap.String("version", cfg.App.Version),
		zap.String("environment", cfg.App.Environment),
	)

	obs, err := observability.New(cfg.Observability.ServiceName)
	if err != nil {
		zapLog.Warn("otel metrics disabled", zap.Error(err))
	}
	defer obs.Shutdown()

	tracing, err := observability.NewTracing(cfg.Observability, cfg.App.Version)
	if err != nil {
		zapLog.Warn("tracing disabled", zap.Error(err))
	}
	defer tracing.Shutdown()

	ctx := context.Background()

	// --- Init Zeebe Client with retry ---
	var zeebe *camunda.Client
	err = retryWithBackoff(func() error {
		var err error
		zeebe, err = camunda.NewClientWithConfig(&camunda.ClientConfig{
			GatewayAddress:         cfg.Camunda.BrokerAddress,
			UsePlaintextConnection: true,
			ConnectionTimeout:      10 * time.Second,
			RequestTimeout:         config.GetDuration(cfg.Camunda.RequestTimeout),
		})
		return err
	}, 10, 2*time.Second, zapLog, "Zeebe client initialization")
	if err != nil {
		zapLog.Fatal("zeebe client failed after retries", zap.Error(err))
	}
	zapLog.Info("Zeebe client connected successfully")

	// --- Init PostgreSQL with retry ---
	var pg *database.PostgresClient
	err = retryWithBackoff(func() error {
		var err error
		pg, err = database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		return pg.Ping(ctx)
	}, 15, 2*time.Second, zapLog, "PostgreSQL connection")
	if err != nil {
		zapLog.Fatal("postgres failed after retries", zap.Error(err))
	}
	defer pg.Close()
	if err := pg.Migrate(ctx); err != nil {
		zapLog.Fatal("postgres migration failed", zap.Error(err))
	}
	zapLog.Info("PostgreSQL connected successfully")

	// --- Init Elasticsearch with retry ---
	var esClient *database.ElasticsearchClient
	err = retryWithBackoff(func() error {
		var err error
		esClient, err = database.NewElasticsearch(cfg.Database.Elasticsearch)
		if err != nil {
			return err
		}
		return esClient.Ping()
	}, 15, 2*time.Second, zapLog, "Elasticsearch connection")
	if err != nil {
		zapLog.Fatal("elasticsearch failed after retries", zap.Error(err))
	}
	if err := esClient.EnsureIndex(ctx, cfg.Database.Elasticsearch.BatchIndex); err != nil {
		zapLog.Fatal("elasticsearch index setup failed", zap.Error(err))
	}
	zapLog.Info("Elasticsearch connected successfully")

	// --- Init Redis with retry ---
	var rdb *database.RedisClient
	err = retryWithBackoff(func() error {
		var err error
		rdb, err = database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return err
		}
		return rdb.Ping(ctx)
	}, 10, 2*time.Second, zapLog, "Redis connection")
	if err != nil {
		zapLog.Fatal("redis failed after retries", zap.Error(err))
	}
	defer rdb.Close()
	zapLog.Info("Redis connected successfully")

	// --- Init External Service Clients ---
	var mailer mm.Mailer
	sesCfg := cfg.Integrations.AWS.SES
	if sesCfg.Enabled {
		ses, err := aws.NewSESClient(ctx, cfg.Integrations.AWS.Region, sesCfg.FromEmail)
		if err != nil {
			zapLog.Fatal("ses client failed", zap.Error(err))
		}
		mailer = ses
	}

	pgStore := store.NewPostgres(pg.DB)
	var notifications store.NotificationStore = pgStore
	if snsCfg := cfg.Integrations.AWS.SNS; snsCfg.Enabled {
		sns, err := aws.NewSNSClient(ctx, cfg.Integrations.AWS.Region, snsCfg.DefaultSMSSenderID)
		if err != nil {
			zapLog.Fatal("sns client failed", zap.Error(err))
		}
		notifications = store.NewSMSNotificationStore(pgStore, pgStore, sns, log)
	}

	portal := auth.NewPortalClient(
		cfg.Portal.TokenURL,
		cfg.Portal.ClientID,
		cfg.Portal.ClientSecret,
		config.GetDuration(cfg.Portal.Timeout),
	)
	zapLog.Info("All external service clients initialized")

	// --- Submission steps ---
	autofill, err := af.NewHandler(&af.Config{}, log)
	if err != nil {
		zapLog.Fatal("failed to create autofill step", zap.Error(err))
	}
	executors := map[string]pipeline.Executor{
		registry.StepFormat:   fr.NewHandler(&fr.Config{StorageDir: cfg.Pipeline.StorageDir}, log),
		registry.StepAutofill: autofill,
		registry.StepUpload:   ur.NewHandler(&ur.Config{}, pg.DB, log),
		registry.StepSubmit:   sub.NewHandler(&sub.Config{}, pg.DB, log),
		registry.StepMessage:  mm.NewHandler(&mm.Config{Enabled: mailer != nil}, mailer, log),
		registry.StepLogin: pl.NewHandler(&pl.Config{
			SessionTTL:    time.Duration(cfg.Portal.SessionTTL) * time.Second,
			RefreshMargin: time.Minute,
		}, portal, rdb.Client, log),
		registry.StepConfirm: cs.NewHandler(&cs.Config{}, pg.DB, log),
	}

	flows, err := registry.LoadOrDefault(cfg.Pipeline.FlowRegistryPath)
	if err != nil {
		zapLog.Fatal("flow registry invalid", zap.Error(err))
	}

	// --- Progress and reporting ---
	resultTTL := time.Duration(cfg.Pipeline.ResultTTLHours) * time.Hour
	redisProgress := progress.NewRedisPublisher(rdb.Client, resultTTL, log)
	hub := progress.NewHub(log)
	batchIndex := store.NewBatchIndex(esClient.Client, cfg.Database.Elasticsearch.BatchIndex, log)
	trk := tracker.New(pgStore, notifications, time.Duration(cfg.Pipeline.FollowUpDays)*24*time.Hour, log)
	completion := progress.NewZeebeNotifier(zeebe, time.Hour, log)

	svc, err := apply.NewService(apply.Dependencies{
		Registry:      flows,
		Executors:     executors,
		Jobs:          pgStore,
		Applicants:    pgStore,
		Hook:          trk,
		Reporter:      pipeline.BatchReporters{trk, redisProgress, batchIndex, hub, completion},
		Observer:      pipeline.Observers{redisProgress, hub},
		Logger:        log,
		Observability: obs,
		StepTimeout:   config.GetDuration(cfg.Pipeline.StepTimeout),
	})
	if err != nil {
		zapLog.Fatal("failed to assemble flows", zap.Error(err))
	}
	zapLog.Info("Flows assembled", zap.Strings("flows", svc.Flows()))

	// --- Camunda workers ---
	var workers []*camunda.CamundaWorker
	startWorker := func(taskType string, handler camunda.JobHandler) {
		wcfg := config.GetWorkerConfig(cfg, taskType)
		if !wcfg.Enabled {
			zapLog.Info("worker disabled", zap.String("taskType", taskType))
			return
		}
		workers = append(workers, camunda.NewWorker(zeebe.GetClient(), taskType, camunda.WorkerOptions{
			MaxJobsActive: wcfg.MaxJobsActive,
			Timeout:       config.GetDuration(wcfg.Timeout),
		}, handler, zapLog))
	}

	speedApply, err := sa.NewHandler(&sa.Config{
		Timeout: config.GetDuration(config.GetWorkerConfig(cfg, sa.TaskType).Timeout),
	}, svc, log)
	if err != nil {
		zapLog.Fatal("failed to create speed-apply handler", zap.Error(err))
	}
	startWorker(sa.TaskType, speedApply)

	workdayApply, err := wa.NewHandler(&wa.Config{
		Timeout: config.GetDuration(config.GetWorkerConfig(cfg, wa.TaskType).Timeout),
	}, svc, log)
	if err != nil {
		zapLog.Fatal("failed to create workday-apply handler", zap.Error(err))
	}
	startWorker(wa.TaskType, workdayApply)
	zapLog.Info("Workers registered", zap.Int("count", len(workers)))

	// --- HTTP API, Health & Metrics Server ---
	server := &http.Server{
		Addr: cfg.HTTP.ListenAddress,
		Handler: httpapi.NewRouter(httpapi.Options{
			Runner:   svc,
			Progress: redisProgress,
			Archive:  batchIndex,
			Stream:   hub,
			Logger:   log,
			Version:  cfg.App.Version,
			Checks: map[string]httpapi.Check{
				"postgres": pg.Ping,
				"redis":    rdb.Ping,
				"zeebe":    zeebe.HealthCheck,
			},
		}),
		ReadTimeout: config.GetDuration(cfg.HTTP.ReadTimeout),
	}
	go func() {
		zapLog.Info("HTTP server listening", zap.String("address", cfg.HTTP.ListenAddress))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLog.Error("HTTP server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, stopping workers...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Error stopping HTTP server", zap.Error(err))
	}
	for _, w := range workers {
		w.Stop(shutdownCtx)
	}
	if err := svc.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Background batches did not finish", zap.Error(err))
	}
	if err := zeebe.Close(); err != nil {
		zapLog.Error("Error closing Zeebe client", zap.Error(err))
	}

	zapLog.Info("Worker manager stopped gracefully")
}
