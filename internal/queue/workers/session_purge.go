package workers

import (
	"context"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

type ExpiredSessionPurger interface {
	DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error)
}

// SessionPurgeWorker deletes session rows whose refresh window has closed.
type SessionPurgeWorker struct {
	store  ExpiredSessionPurger
	logger *zap.Logger
	now    func() time.Time
}

func NewSessionPurgeWorker(store ExpiredSessionPurger, logger *zap.Logger) *SessionPurgeWorker {
	return &SessionPurgeWorker{store: store, logger: logger, now: time.Now}
}

func (w *SessionPurgeWorker) ProcessTask(ctx context.Context, _ *asynq.Task) error {
	n, err := w.store.DeleteExpired(ctx, w.now())
	if err != nil {
		return fmt.Errorf("purge sessions: %w", err)
	}
	if n > 0 {
		w.logger.Info("purged expired sessions", zap.Int64("count", n))
	}
	return nil
}
