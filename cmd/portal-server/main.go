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

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"geoincra-portal/internal/bootstrap"
	"geoincra-portal/internal/common/aws"
	"geoincra-portal/internal/common/camunda"
	"geoincra-portal/internal/common/config"
	"geoincra-portal/internal/common/database"
	"geoincra-portal/internal/common/logger"
	"geoincra-portal/internal/common/observability"
	"geoincra-portal/internal/municipality"
	"geoincra-portal/internal/notification"
	"geoincra-portal/internal/server"
	"geoincra-portal/internal/session"
	"geoincra-portal/internal/wizard"

	gp "geoincra-portal/internal/workers/proposal/generate-proposal"
	rm "geoincra-portal/internal/workers/municipality/resolve-municipality"
)

const notifyTimeout = 30 * time.Second

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

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting portal server...",
		zap.String("version", cfg.App.Version),
		zap.String("environment", cfg.App.Environment),
	)

	obs := observability.New(cfg.Observability.ServiceName, cfg.Observability.JaegerEndpoint)
	defer obs.Shutdown()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	apiClient, err := bootstrap.APIClient(cfg)
	if err != nil {
		zapLog.Fatal("portal client setup failed", zap.Error(err))
	}

	checks := map[string]server.Checker{}

	// --- Elasticsearch (municipality resolver) ---
	var es *elasticsearch.Client
	if cfg.Municipality.Resolver == config.ResolverElasticsearch {
		var esClient *database.ElasticsearchClient
		err = retryWithBackoff(func() error {
			var err error
			esClient, err = database.NewElasticsearch(cfg.Database.Elasticsearch)
			if err != nil {
				return err
			}
			return esClient.Ping(ctx)
		}, 15, 2*time.Second, zapLog, "Elasticsearch connection")
		if err != nil {
			zapLog.Fatal("elasticsearch failed after retries", zap.Error(err))
		}
		if err := esClient.EnsureIndex(ctx, cfg.Municipality.Index); err != nil {
			zapLog.Fatal("municipality index setup failed", zap.Error(err))
		}
		es = esClient.Client
		checks["elasticsearch"] = esClient.Ping
		zapLog.Info("Elasticsearch connected successfully")
	}

	// --- Redis (shared municipality cache) ---
	var store municipality.SharedStore
	if cfg.Municipality.SharedCache {
		var rc *database.RedisClient
		err = retryWithBackoff(func() error {
			var err error
			rc, err = database.NewRedis(cfg.Database.Redis)
			if err != nil {
				return err
			}
			return rc.Ping(ctx)
		}, 10, 2*time.Second, zapLog, "Redis connection")
		if err != nil {
			zapLog.Fatal("redis failed after retries", zap.Error(err))
		}
		defer rc.Close()
		store = municipality.NewRedisStore(rc.GetClient())
		checks["redis"] = rc.Ping
		zapLog.Info("Redis connected successfully")
	}

	// --- PostgreSQL (session snapshots) ---
	var repo *session.PostgresRepository
	if cfg.Sessions.Persist {
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
		if err := pg.EnsureSchema(ctx); err != nil {
			zapLog.Fatal("postgres schema failed", zap.Error(err))
		}
		repo = session.NewPostgresRepository(pg.GetDB())
		checks["postgres"] = pg.Ping
		zapLog.Info("PostgreSQL connected successfully")
	}

	resolver, err := bootstrap.Resolver(cfg, apiClient, es)
	if err != nil {
		zapLog.Fatal("municipality resolver setup failed", zap.Error(err))
	}
	cache := bootstrap.Cache(cfg, resolver, store, log)

	// --- Post-submission hooks ---
	var notifyHooks, hooks []wizard.SubmittedHook
	if notifier := newNotifier(ctx, cfg, log, zapLog); notifier != nil {
		notifyHooks = append(notifyHooks, notification.NotifyHook(notifier, notifyTimeout))
	}
	hooks = append(hooks, notifyHooks...)

	var zeebe *camunda.Client
	if cfg.Camunda.Enabled {
		err = retryWithBackoff(func() error {
			var err error
			zeebe, err = camunda.NewClientWithConfig(&camunda.ClientConfig{
				GatewayAddress:         cfg.Camunda.BrokerAddress,
				UsePlaintextConnection: true,
				ConnectionTimeout:      10 * time.Second,
				RequestTimeout:         config.GetDuration(cfg.Camunda.Timeout),
			})
			return err
		}, 10, 2*time.Second, zapLog, "Zeebe client initialization")
		if err != nil {
			zapLog.Fatal("zeebe client failed after retries", zap.Error(err))
		}
		defer zeebe.Close()
		hooks = append(hooks, notification.PublishHook(zeebe, log))
		checks["zeebe"] = zeebe.HealthCheck
		zapLog.Info("Zeebe client connected successfully")
	}

	wizards := bootstrap.Wizards{Client: apiClient, Obs: obs, Logger: log, Hooks: hooks}
	sessions := bootstrap.Sessions(cfg, wizards, repo, log)
	if idle := config.GetDuration(cfg.Sessions.IdleTimeout); idle > 0 {
		go sessions.Run(ctx, idle/2)
	}

	// --- Workers ---
	var workers []*camunda.CamundaWorker
	if zeebe != nil {
		if wcfg := rm.FromAppConfig(cfg); wcfg.Enabled {
			handler, err := rm.NewHandler(wcfg, cache, log)
			if err != nil {
				zapLog.Fatal("failed to create resolve-municipality handler", zap.Error(err))
			}
			workers = append(workers, startWorker(zeebe, rm.TaskType, wcfg.MaxJobsActive, wcfg.Timeout, handler, zapLog))
		}
		if wcfg := gp.FromAppConfig(cfg); wcfg.Enabled {
			handler, err := gp.NewHandler(gp.HandlerOptions{
				Config:    wcfg,
				Submitter: wizards.BudgetSubmitter(),
				Hooks:     notifyHooks,
				Logger:    log,
			})
			if err != nil {
				zapLog.Fatal("failed to create generate-proposal handler", zap.Error(err))
			}
			workers = append(workers, startWorker(zeebe, gp.TaskType, wcfg.MaxJobsActive, wcfg.Timeout, handler, zapLog))
		}
		zapLog.Info("Workers registered", zap.Int("count", len(workers)))
	}

	// --- HTTP API ---
	if cfg.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	srv := &http.Server{
		Addr: cfg.Server.Address,
		Handler: server.New(server.Options{
			Sessions:     sessions,
			Municipios:   cache,
			DefaultState: cfg.Municipality.DefaultState,
			Portal:       bootstrap.Portal(apiClient, log),
			Checks:       checks,
			Logger:       log,

			MaxUploadBytes: cfg.Server.MaxUploadBytes,
		}),
		ReadTimeout:  config.GetDuration(cfg.Server.ReadTimeout),
		WriteTimeout: config.GetDuration(cfg.Server.WriteTimeout),
	}
	go func() {
		zapLog.Info("HTTP server listening", zap.String("address", cfg.Server.Address))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLog.Error("HTTP server failed", zap.Error(err))
			stop()
		}
	}()

	// --- Graceful Shutdown ---
	<-ctx.Done()
	zapLog.Info("Shutdown signal received, stopping...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Error shutting down HTTP server", zap.Error(err))
	}
	for _, w := range workers {
		w.Stop(shutdownCtx)
	}

	zapLog.Info("Portal server stopped gracefully")
}

// newNotifier returns nil when no notification channel is enabled.
func newNotifier(ctx context.Context, cfg *config.Config, log logger.Logger, zapLog *zap.Logger) *notification.Notifier {
	n := cfg.Notifications
	if !n.Email.Enabled && !n.SMS.Enabled {
		return nil
	}

	var email notification.EmailSender
	if n.Email.Enabled {
		ses, err := aws.NewSESClient(ctx, n.AWS.Region)
		if err != nil {
			zapLog.Fatal("SES client setup failed", zap.Error(err))
		}
		email = ses
	}
	var sms notification.SMSSender
	if n.SMS.Enabled {
		sns, err := aws.NewSNSClient(ctx, n.AWS.Region)
		if err != nil {
			zapLog.Fatal("SNS client setup failed", zap.Error(err))
		}
		sms = sns
	}
	return notification.NewNotifier(n, email, sms, log)
}

func startWorker(client *camunda.Client, taskType string, maxJobsActive int, timeout time.Duration, handler camunda.JobHandler, log *zap.Logger) *camunda.CamundaWorker {
	w := camunda.NewWorker(client.GetClient(), camunda.WorkerOptions{
		TaskType:      taskType,
		MaxJobsActive: maxJobsActive,
		Timeout:       timeout,
	}, handler, log)
	log.Info("worker started",
		zap.String("taskType", taskType),
		zap.Int("maxJobsActive", maxJobsActive),
		zap.Duration("timeout", timeout),
	)
	return w
}
