package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/nikhilbhutani/tableside/internal/config"
	"github.com/nikhilbhutani/tableside/internal/queue"
)

func TestMailClient_SendOTP(t *testing.T) {
	var (
		gotAuth string
		gotPath string
		gotMsg  mailMessage
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotMsg))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	mc, err := NewMailClient(config.MailConfig{
		APIURL:  srv.URL + "/",
		APIKey:  "mail-key",
		From:    "no-reply@tableside.test",
		Timeout: time.Second,
	})
	require.NoError(t, err)

	require.NoError(t, mc.SendOTP(context.Background(), "a@b.com", "123456"))
	require.Equal(t, "Bearer mail-key", gotAuth)
	require.Equal(t, "/messages", gotPath)
	require.Equal(t, []string{"a@b.com"}, gotMsg.To)
	require.Equal(t, "no-reply@tableside.test", gotMsg.From)
	require.Contains(t, gotMsg.Text, "123456")
}

func TestMailClient_ProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	mc, err := NewMailClient(config.MailConfig{APIURL: srv.URL, Timeout: time.Second})
	require.NoError(t, err)

	err = mc.SendOTP(context.Background(), "a@b.com", "123456")
	require.Error(t, err)
	require.Contains(t, err.Error(), "502")
}

func TestNewMailClient_RequiresURL(t *testing.T) {
	_, err := NewMailClient(config.MailConfig{})
	require.Error(t, err)
}

func TestNewDeliveryMailer(t *testing.T) {
	logger := zap.NewNop()

	_, err := NewDeliveryMailer(config.MailConfig{Mode: config.MailModeQueue}, logger)
	require.Error(t, err)

	m, err := NewDeliveryMailer(config.MailConfig{Mode: config.MailModeQueue, APIURL: "https://mail.example", Timeout: time.Second}, logger)
	require.NoError(t, err)
	require.IsType(t, &MailClient{}, m)

	m, err = NewDeliveryMailer(config.MailConfig{Mode: config.MailModeLog}, logger)
	require.NoError(t, err)
	require.IsType(t, &LogSender{}, m)
}

type fakeEnqueuer struct {
	payloads []queue.OTPEmailPayload
	validFor time.Duration
	err      error
}

func (f *fakeEnqueuer) EnqueueOTPEmail(_ context.Context, p queue.OTPEmailPayload, validFor time.Duration) error {
	if f.err != nil {
		return f.err
	}
	f.payloads = append(f.payloads, p)
	f.validFor = validFor
	return nil
}

func TestQueueSender(t *testing.T) {
	fe := &fakeEnqueuer{}
	s := NewQueueSender(fe, 10*time.Minute)

	require.NoError(t, s.SendOTP(context.Background(), "a@b.com", "654321"))
	require.Equal(t, []queue.OTPEmailPayload{{Email: "a@b.com", Code: "654321"}}, fe.payloads)
	require.Equal(t, 10*time.Minute, fe.validFor)

	fe.err = errors.New("redis down")
	require.Error(t, s.SendOTP(context.Background(), "a@b.com", "654321"))
}
