package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"beacon.app/feedback/common/id"
	"beacon.app/feedback/common/logger"
	"beacon.app/feedback/common/otel"
	"beacon.app/feedback/core/config"
	"beacon.app/feedback/core/db"
	"beacon.app/feedback/internal/http/handler"
	"beacon.app/feedback/internal/http/middleware"
	httprouter "beacon.app/feedback/internal/http/router"
	"beacon.app/feedback/internal/queue"
	"beacon.app/feedback/internal/service"
	"beacon.app/feedback/internal/store"
)

func main() {
	fmt.Printf("%s\n", banner)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		slog.Error("intake exited", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfg, err := config.Load(config.ServiceTypeServer)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	// The production log handler exports through the otel provider.
	telemetry, err := otel.Setup(ctx, cfg.OTel)
	if err != nil {
		return fmt.Errorf("setting up otel: %w", err)
	}
	logger.Setup(cfg)
	slog.InfoContext(ctx, "beacon intake starting",
		"env", cfg.Env,
		"service", cfg.OTel.ServiceName,
		"otel", telemetry != nil)

	if err := id.Init(1); err != nil {
		return fmt.Errorf("initializing id generator: %w", err)
	}

	database, err := db.New(ctx, cfg.DB)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer database.Close()

	redisOpts, err := redis.ParseURL(cfg.Pipeline.RedisURL)
	if err != nil {
		return fmt.Errorf("parsing redis url: %w", err)
	}
	redisClient := redis.NewClient(redisOpts)
	if err := redisClient.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("connecting to redis: %w", err)
	}
	producer := queue.NewRedisProducer(redisClient, cfg.Pipeline.RedisStream, slog.Default())
	defer producer.Close()
	slog.InfoContext(ctx, "dependencies ready", "stream", cfg.Pipeline.RedisStream)

	services := service.NewServices(
		store.NewStores(database.Conn()),
		service.NewTxRunner(database),
		service.NewWorkOSAuthenticator(cfg.WorkOS),
		producer,
		slog.Default(),
	)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	server := &http.Server{
		Addr: ":" + cfg.Port,
		Handler: setupRouter(cfg, services, map[string]handler.Pinger{
			"postgres": database,
			"redis":    redisPinger{client: redisClient},
		}),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}

	serveErr := make(chan error, 1)
	go func() {
		slog.InfoContext(ctx, "http server listening", "port", cfg.Port)
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		return fmt.Errorf("serving http: %w", err)
	case <-ctx.Done():
	}

	slog.InfoContext(ctx, "shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.ErrorContext(shutdownCtx, "http server shutdown error", "error", err)
	}
	if err := telemetry.Shutdown(shutdownCtx); err != nil {
		slog.ErrorContext(shutdownCtx, "otel shutdown error", "error", err)
	}
	return nil
}

func setupRouter(cfg config.Config, services *service.Services, ready map[string]handler.Pinger) *gin.Engine {
	router := gin.New()

	// The otel span must exist before Recovery and Logger run.
	if cfg.OTel.Enabled() {
		router.Use(otelgin.Middleware(cfg.OTel.ServiceName))
	}
	router.Use(middleware.Recovery())
	router.Use(middleware.Logger("/health"))

	httprouter.SetupRoutes(router, services, httprouter.RouterConfig{
		TraceHeaderName: cfg.Pipeline.TraceHeaderName,
		Ready:           ready,
	})

	return router
}

type redisPinger struct {
	client *redis.Client
}

func (p redisPinger) Ping(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}

const banner = `
 _                                   _       _        _
| |__   ___  __ _  ___ ___  _ __    (_)_ __ | |_ __ _| | _____
| '_ \ / _ \/ _' |/ __/ _ \| '_ \   | | '_ \| __/ _' | |/ / _ \
| |_) |  __/ (_| | (_| (_) | | | |  | | | | | || (_| |   <  __/
|_.__/ \___|\__,_|\___\___/|_| |_|  |_|_| |_|\__\__,_|_|\_\___|
`
