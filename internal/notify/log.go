package notify

import (
	"context"

	"go.uber.org/zap"
)

// LogSender writes codes to the log instead of sending them. Local development only.
type LogSender struct {
	logger *zap.Logger
}

func NewLogSender(logger *zap.Logger) *LogSender {
	return &LogSender{logger: logger}
}

func (s *LogSender) SendOTP(_ context.Context, email, code string) error {
	s.logger.Info("registration code issued (log delivery)", zap.String("email", email), zap.String("code", code))
	return nil
}
