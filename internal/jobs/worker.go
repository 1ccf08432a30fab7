package jobs

import (
	"context"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
)

// NewWorkerServer builds the asynq server and mux that execute invoice
// tasks. The redis-backed queue gives at-least-once delivery; a task
// occupies one worker slot until it completes, fails, or times out, so
// attempts for the same order never overlap.
func NewWorkerServer(redisOpt asynq.RedisClientOpt, processor *InvoiceProcessor, logger zerolog.Logger) (*asynq.Server, *asynq.ServeMux) {
	srv := asynq.NewServer(redisOpt, asynq.Config{
		Concurrency: 10,
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			retried, _ := asynq.GetRetryCount(ctx)
			logger.Warn().
				Str("task_type", task.Type()).
				Int("retried", retried).
				Err(err).
				Msg("task attempt failed")
		}),
	})

	mux := asynq.NewServeMux()
	mux.HandleFunc(TypeInvoiceGenerate, processor.HandleInvoiceGenerate)
	return srv, mux
}
