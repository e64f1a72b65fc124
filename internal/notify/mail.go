// Package notify delivers registration codes to users.
package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/nikhilbhutani/tableside/internal/config"
)

const otpSubject = "Your Tableside verification code"

type mailMessage struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	Text    string   `json:"text"`
}

// MailClient posts messages to a transactional email HTTP API.
type MailClient struct {
	http *resty.Client
	from string
}

func NewMailClient(cfg config.MailConfig) (*MailClient, error) {
	if cfg.APIURL == "" {
		return nil, errors.New("mail API URL is required")
	}
	c := resty.New().
		SetBaseURL(strings.TrimRight(cfg.APIURL, "/")).
		SetTimeout(cfg.Timeout).
		SetHeader("Content-Type", "application/json")
	if cfg.APIKey != "" {
		c.SetAuthToken(cfg.APIKey)
	}
	return &MailClient{http: c, from: cfg.From}, nil
}

// Sender delivers one registration code to one address.
type Sender interface {
	SendOTP(ctx context.Context, email, code string) error
}

// NewDeliveryMailer returns the sender the worker delivers queued codes with.
// Only MAIL_MODE=log selects the log sender; every other mode needs the mail API.
func NewDeliveryMailer(cfg config.MailConfig, logger *zap.Logger) (Sender, error) {
	if cfg.Mode == config.MailModeLog {
		return NewLogSender(logger), nil
	}
	mc, err := NewMailClient(cfg)
	if err != nil {
		return nil, err
	}
	return mc, nil
}

func (m *MailClient) SendOTP(ctx context.Context, email, code string) error {
	msg := mailMessage{
		From:    m.from,
		To:      []string{email},
		Subject: otpSubject,
		Text:    otpBody(code),
	}

	resp, err := m.http.R().
		SetContext(ctx).
		SetBody(msg).
		Post("/messages")
	if err != nil {
		return fmt.Errorf("send mail: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("send mail: provider returned %d", resp.StatusCode())
	}
	return nil
}

func otpBody(code string) string {
	return fmt.Sprintf("Your verification code is %s.\n\nEnter it to finish creating your restaurant account. "+
		"If you did not sign up, you can ignore this email.", code)
}
