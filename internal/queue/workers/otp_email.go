package workers

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/nikhilbhutani/tableside/internal/queue"
	"go.uber.org/zap"
)

// Mailer delivers a code synchronously.
type Mailer interface {
	SendOTP(ctx context.Context, email, code string) error
}

type OTPEmailWorker struct {
	mailer Mailer
	logger *zap.Logger
}

func NewOTPEmailWorker(mailer Mailer, logger *zap.Logger) *OTPEmailWorker {
	return &OTPEmailWorker{mailer: mailer, logger: logger}
}

func (w *OTPEmailWorker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload queue.OTPEmailPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %v: %w", err, asynq.SkipRetry)
	}
	if payload.Email == "" || payload.Code == "" {
		return fmt.Errorf("incomplete otp payload: %w", asynq.SkipRetry)
	}

	if err := w.mailer.SendOTP(ctx, payload.Email, payload.Code); err != nil {
		return fmt.Errorf("deliver otp: %w", err)
	}

	w.logger.Info("registration code delivered", zap.String("email", payload.Email))
	return nil
}
