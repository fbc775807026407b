package queue

import (
	"context"
	"log/slog"

	"github.com/hibiken/asynq"
	"github.com/hugh/agentops/pkg/config"
)

// Queue names. Mail is user facing and drains first.
const (
	Critical = "critical"
	Default  = "default"
	Low      = "low"
)

func redisOpt(cfg *config.RedisConfig) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
	}
}

func NewClient(cfg *config.RedisConfig) *asynq.Client {
	return asynq.NewClient(redisOpt(cfg))
}

// NewServer builds the worker server. Failed attempts are logged with the
// task type and retry counters; asynq handles the retry itself.
func NewServer(cfg *config.RedisConfig, concurrency int, logger *slog.Logger) *asynq.Server {
	if concurrency <= 0 {
		concurrency = 10
	}

	return asynq.NewServer(redisOpt(cfg), asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			Critical: 6,
			Default:  3,
			Low:      1,
		},
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			retried, _ := asynq.GetRetryCount(ctx)
			maxRetry, _ := asynq.GetMaxRetry(ctx)
			logger.Error("task failed",
				"type", task.Type(),
				"retry", retried,
				"max_retry", maxRetry,
				"error", err,
			)
		}),
	})
}

func NewInspector(cfg *config.RedisConfig) *asynq.Inspector {
	return asynq.NewInspector(redisOpt(cfg))
}
