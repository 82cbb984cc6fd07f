package main

import (
	"context"
	"crypto/tls"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/voicelane/callcore/cmd/mainconfig"
	appconfig "github.com/voicelane/callcore/internal/config"
	"github.com/voicelane/callcore/internal/conversation"
	"github.com/voicelane/callcore/internal/export"
	"github.com/voicelane/callcore/internal/gateway"
	"github.com/voicelane/callcore/internal/observability/metrics"
	"github.com/voicelane/callcore/internal/session"
	"github.com/voicelane/callcore/internal/tools"
	"github.com/voicelane/callcore/pkg/logging"
)

func main() {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting callcore agent",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	ctx := context.Background()
	callMetrics := metrics.NewCallMetrics(nil)

	// Tool registry: every tool name the engine can dispatch is validated here,
	// before the first call comes in.
	registry, err := tools.NewRegistry(
		tools.Tool{
			Name:     conversation.ToolSearchKnowledge,
			Provider: "knowledge",
			Handler:  tools.NewHTTPHandler(nil, cfg.KnowledgeServiceURL),
			Fallback: "Let me answer that from what I already know.",
		},
		tools.Tool{
			Name:     conversation.ToolBookSalesCall,
			Provider: "scheduler",
			Handler:  tools.NewHTTPHandler(nil, cfg.SchedulerServiceURL),
			Fallback: "I can't reach the calendar right now, so I'll have our sales team email you to set up a time.",
		},
	)
	if err != nil {
		logger.Error("failed to build tool registry", "error", err)
		os.Exit(1)
	}

	// Live call state mirror.
	redisOpts := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	}
	if cfg.RedisTLS {
		redisOpts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	store := session.NewStore(redis.NewClient(redisOpts))

	// Analytics export sinks.
	var queue export.Queue
	var archive *export.Archive
	var repo *export.Repository

	if cfg.UseMemoryQueue || cfg.AnalyticsQueueURL == "" {
		queue = export.NewMemoryQueue(256)
		logger.Warn("analytics queue is in-memory; summaries will not survive restarts")
	}
	if cfg.AnalyticsQueueURL != "" || cfg.AnalyticsS3Bucket != "" {
		awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
		if err != nil {
			logger.Error("failed to load AWS config", "error", err)
			os.Exit(1)
		}
		if cfg.AnalyticsQueueURL != "" && !cfg.UseMemoryQueue {
			queue = export.NewSQSQueue(sqs.NewFromConfig(awsCfg), cfg.AnalyticsQueueURL)
		}
		if cfg.AnalyticsS3Bucket != "" {
			archive = export.NewArchive(s3.NewFromConfig(awsCfg), cfg.AnalyticsS3Bucket, logger)
		}
	}
	if cfg.DatabaseURL != "" {
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer pool.Close()
		repo = export.NewRepository(pool)
	}
	exporter := export.NewExporter(queue, archive, repo, logger)

	streamHandler := gateway.NewHandler(cfg, registry, store, exporter, callMetrics, logger)
	router := gateway.NewRouter(gateway.RouterConfig{
		Stream:         streamHandler,
		MetricsHandler: promhttp.Handler(),
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}
