package queue

import (
	"context"
	"time"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

// HandlersRegistry routes task types to their workers and logs every run.
type HandlersRegistry struct {
	mux *asynq.ServeMux
}

func NewHandlersRegistry(logger *zap.Logger) *HandlersRegistry {
	mux := asynq.NewServeMux()
	mux.Use(loggingMiddleware(logger))
	return &HandlersRegistry{mux: mux}
}

func (r *HandlersRegistry) Register(taskType string, handler asynq.Handler) {
	r.mux.Handle(taskType, handler)
}

func (r *HandlersRegistry) Mux() *asynq.ServeMux {
	return r.mux
}

func loggingMiddleware(logger *zap.Logger) asynq.MiddlewareFunc {
	return func(next asynq.Handler) asynq.Handler {
		return asynq.HandlerFunc(func(ctx context.Context, t *asynq.Task) error {
			start := time.Now()
			err := next.ProcessTask(ctx, t)
			fields := []zap.Field{
				zap.String("task_type", t.Type()),
				zap.Duration("duration", time.Since(start)),
			}
			if id, ok := asynq.GetTaskID(ctx); ok {
				fields = append(fields, zap.String("task_id", id))
			}
			if err != nil {
				logger.Warn("task failed", append(fields, zap.Error(err))...)
				return err
			}
			logger.Debug("task processed", fields...)
			return nil
		})
	}
}
