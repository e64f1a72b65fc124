package notify

import (
	"context"
	"time"

	"github.com/nikhilbhutani/tableside/internal/queue"
)

// Enqueuer is the part of queue.Client the QueueSender needs.
type Enqueuer interface {
	EnqueueOTPEmail(ctx context.Context, payload queue.OTPEmailPayload, validFor time.Duration) error
}

// QueueSender hands codes to the worker process. A send succeeds once the task
// is durably queued.
type QueueSender struct {
	enqueuer Enqueuer
	validFor time.Duration
}

func NewQueueSender(e Enqueuer, validFor time.Duration) *QueueSender {
	return &QueueSender{enqueuer: e, validFor: validFor}
}

func (s *QueueSender) SendOTP(ctx context.Context, email, code string) error {
	return s.enqueuer.EnqueueOTPEmail(ctx, queue.OTPEmailPayload{Email: email, Code: code}, s.validFor)
}
