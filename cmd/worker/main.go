package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"beacon.app/feedback/common/id"
	"beacon.app/feedback/common/llm"
	"beacon.app/feedback/common/logger"
	"beacon.app/feedback/common/otel"
	"beacon.app/feedback/core/config"
	"beacon.app/feedback/core/db"
	"beacon.app/feedback/internal/queue"
	"beacon.app/feedback/internal/store"
	"beacon.app/feedback/internal/worker"
)

const sessionSweepInterval = time.Hour

func main() {
	ctx := context.Background()

	cfg, err := config.Load(config.ServiceTypeWorker)
	if err != nil {
		slog.ErrorContext(ctx, "failed to load config", "error", err)
		os.Exit(1)
	}

	fmt.Printf("%s\n", banner)

	telemetry, err := otel.Setup(ctx, cfg.OTel)
	if err != nil {
		os.Stderr.WriteString("failed to initialize otel: " + err.Error() + "\n")
		os.Exit(1)
	}
	logger.Setup(cfg)

	slog.InfoContext(ctx, "beacon triage worker starting",
		"env", cfg.Env,
		"consumer_group", cfg.Pipeline.RedisGroup,
		"consumer_name", cfg.Pipeline.RedisConsumer)

	// Node 2; the intake server is node 1
	if err := id.Init(2); err != nil {
		slog.ErrorContext(ctx, "failed to initialize id generator", "error", err)
		os.Exit(1)
	}

	database, err := db.New(ctx, cfg.DB)
	if err != nil {
		slog.ErrorContext(ctx, "failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer database.Close()
	slog.InfoContext(ctx, "database connected")

	redisOpts, err := redis.ParseURL(cfg.Pipeline.RedisURL)
	if err != nil {
		slog.ErrorContext(ctx, "failed to parse redis url", "error", err)
		os.Exit(1)
	}

	redisClient := redis.NewClient(redisOpts)
	if err := redisClient.Ping(ctx).Err(); err != nil {
		slog.ErrorContext(ctx, "failed to connect to redis", "error", err)
		os.Exit(1)
	}
	defer redisClient.Close()
	slog.InfoContext(ctx, "redis connected", "stream", cfg.Pipeline.RedisStream)

	consumer, err := queue.NewRedisConsumer(redisClient, queue.ConsumerConfig{
		Stream:       cfg.Pipeline.RedisStream,
		Group:        cfg.Pipeline.RedisGroup,
		Consumer:     cfg.Pipeline.RedisConsumer,
		DLQStream:    cfg.Pipeline.RedisDLQStream,
		BatchSize:    10,
		Block:        5 * time.Second,
		MaxAttempts:  cfg.Pipeline.MaxAttempts,
		RequeueDelay: time.Second,
	})
	if err != nil {
		slog.ErrorContext(ctx, "failed to create consumer", "error", err)
		os.Exit(1)
	}

	triager := worker.NewTriager(newFiler(ctx, cfg.GitLab), newLLM(ctx, cfg.TriageLLM))

	w := worker.New(consumer, &workerTxRunnerAdapter{db: database}, triager, worker.Config{
		MaxAttempts: cfg.Pipeline.MaxAttempts,
	})

	reclaimer := worker.NewRedisReclaimer(redisClient, worker.RedisReclaimerConfig{
		Stream:        cfg.Pipeline.RedisStream,
		Group:         cfg.Pipeline.RedisGroup,
		Consumer:      cfg.Pipeline.RedisConsumer + "-reclaimer",
		MinIdle:       5 * time.Minute,
		Interval:      time.Minute,
		BatchSize:     10,
		MaxDeliveries: int64(cfg.Pipeline.MaxAttempts) + 2,
	}, consumer, w.ProcessMessage)

	producer := queue.NewRedisProducer(redisClient, cfg.Pipeline.RedisStream, slog.Default())
	sweeper := worker.NewSweeper(producer, sessionSweepInterval)

	errCh := make(chan error, 1)
	go func() {
		errCh <- w.Run(ctx)
	}()
	go reclaimer.Run(ctx)
	go sweeper.Run(ctx)

	slog.InfoContext(ctx, "worker initialized and running")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.InfoContext(ctx, "shutting down worker...")

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	// Stop the quick loops first
	sweeper.Stop()
	reclaimer.Stop()

	stopped := make(chan struct{})
	go func() {
		w.Stop()
		close(stopped)
	}()

	select {
	case <-shutdownCtx.Done():
		slog.WarnContext(ctx, "shutdown timeout exceeded")
	case <-stopped:
		if err := <-errCh; err != nil {
			slog.ErrorContext(ctx, "worker error during shutdown", "error", err)
		}
	}

	if err := telemetry.Shutdown(shutdownCtx); err != nil {
		slog.ErrorContext(ctx, "otel shutdown error", "error", err)
	}

	slog.InfoContext(ctx, "worker shutdown complete")
}

func newFiler(ctx context.Context, cfg config.GitLabConfig) worker.IssueFiler {
	if !cfg.Enabled() {
		slog.InfoContext(ctx, "gitlab disabled, bugs will only be triaged")
		return nil
	}
	filer, err := worker.NewGitLabFiler(cfg.BaseURL, cfg.Token)
	if err != nil {
		slog.ErrorContext(ctx, "failed to create gitlab client", "error", err)
		os.Exit(1)
	}
	return filer
}

func newLLM(ctx context.Context, cfg config.LLMConfig) llm.Client {
	if !cfg.Enabled() {
		slog.InfoContext(ctx, "triage llm disabled, issue titles come from the message")
		return nil
	}
	client, err := llm.New(llm.Config{
		APIKey:     cfg.APIKey,
		BaseURL:    cfg.BaseURL,
		Model:      cfg.Model,
		MaxTokens:  cfg.MaxTokens,
		MaxRetries: 2,
	})
	if err != nil {
		slog.ErrorContext(ctx, "failed to create llm client", "error", err)
		os.Exit(1)
	}
	return client
}

// workerTxRunnerAdapter bridges db.DB to worker.TxRunner.
type workerTxRunnerAdapter struct {
	db *db.DB
}

func (a *workerTxRunnerAdapter) WithTx(ctx context.Context, fn func(stores worker.StoreProvider) error) error {
	return a.db.WithTx(ctx, func(tx db.DBTX) error {
		return fn(store.NewStores(tx))
	})
}

const banner = `
 _                                   _        _
| |__   ___  __ _  ___ ___  _ __    | |_ _ __(_) __ _  __ _  ___
| '_ \ / _ \/ _' |/ __/ _ \| '_ \   | __| '__| |/ _' |/ _' |/ _ \
| |_) |  __/ (_| | (_| (_) | | | |  | |_| |  | | (_| | (_| |  __/
|_.__/ \___|\__,_|\___\___/|_| |_|   \__|_|  |_|\__,_|\__, |\___|
                                                      |___/
`
