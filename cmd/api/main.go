package main

import (
	"context"
	"crypto/tls"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/upilink/upilink/cmd/awsconfig"
	"github.com/upilink/upilink/internal/api/router"
	"github.com/upilink/upilink/internal/clients"
	appconfig "github.com/upilink/upilink/internal/config"
	"github.com/upilink/upilink/internal/observability/metrics"
	"github.com/upilink/upilink/internal/uploads"
	"github.com/upilink/upilink/pkg/logging"
)

func main() {
	// .env is optional; real deployments configure through the environment.
	_ = godotenv.Load()

	cfg := appconfig.Load()

	logger := logging.New(cfg.LogLevel, cfg.Env)
	logger.Info("starting upilink API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	repo, cleanup := buildRepository(cfg, logger)
	defer cleanup()

	cache := clients.NewDetailsCache(buildRedisClient(cfg, logger), cfg.CacheTTL)
	clientMetrics := metrics.NewClientMetrics(nil)
	uploadStore := uploads.NewStore(cfg.ContentDir, logger)

	clientsHandler := clients.NewHandler(repo, uploadStore, cache, clientMetrics, logger)

	r := router.New(&router.Config{
		Logger:             logger,
		ClientsHandler:     clientsHandler,
		ContentDir:         cfg.ContentDir,
		MetricsHandler:     promhttp.Handler(),
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
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

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}

// buildRepository selects the record store: Postgres when DATABASE_URL is set,
// DynamoDB when a table is configured, in-memory otherwise.
func buildRepository(cfg *appconfig.Config, logger *logging.Logger) (clients.Repository, func()) {
	if cfg.UseMemoryStore {
		logger.Warn("using in-memory client store; records will not survive restarts")
		return clients.NewInMemoryRepository(), func() {}
	}

	if cfg.DatabaseURL != "" {
		pool, err := pgxpool.New(context.Background(), cfg.DatabaseURL)
		if err != nil {
			logger.Error("failed to connect to Postgres", "error", err)
			os.Exit(1)
		}
		logger.Info("client store: postgres")
		return clients.NewPostgresRepository(pool), pool.Close
	}

	if cfg.ClientsTable != "" {
		awsCfg, err := awsconfig.Load(context.Background(), cfg)
		if err != nil {
			logger.Error("failed to load AWS config", "error", err)
			os.Exit(1)
		}
		logger.Info("client store: dynamodb", "table", cfg.ClientsTable)
		return clients.NewDynamoRepository(dynamodb.NewFromConfig(awsCfg), cfg.ClientsTable, logger), func() {}
	}

	logger.Warn("no store configured; falling back to in-memory client store")
	return clients.NewInMemoryRepository(), func() {}
}

// buildRedisClient returns nil when Redis is not configured or unreachable;
// the lookup cache degrades to a no-op in that case.
func buildRedisClient(cfg *appconfig.Config, logger *logging.Logger) *redis.Client {
	if cfg.RedisAddr == "" {
		return nil
	}

	options := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	}
	if cfg.RedisTLS {
		options.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	client := redis.NewClient(options)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("redis unreachable; lookup cache disabled", "addr", cfg.RedisAddr, "error", err)
		_ = client.Close()
		return nil
	}

	logger.Info("lookup cache: redis", "addr", cfg.RedisAddr)
	return client
}
