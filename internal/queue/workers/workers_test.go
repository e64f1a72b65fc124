package workers

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/nikhilbhutani/tableside/internal/models"
	"github.com/nikhilbhutani/tableside/internal/queue"
	"github.com/nikhilbhutani/tableside/internal/session"
)

type fakeMailer struct {
	sent map[string]string
	err  error
}

func (f *fakeMailer) SendOTP(_ context.Context, email, code string) error {
	if f.err != nil {
		return f.err
	}
	f.sent[email] = code
	return nil
}

func otpTask(t *testing.T, p queue.OTPEmailPayload) *asynq.Task {
	t.Helper()
	data, err := json.Marshal(p)
	require.NoError(t, err)
	return asynq.NewTask(queue.TypeOTPEmail, data)
}

func TestOTPEmailWorker_Delivers(t *testing.T) {
	m := &fakeMailer{sent: map[string]string{}}
	w := NewOTPEmailWorker(m, zap.NewNop())

	err := w.ProcessTask(context.Background(), otpTask(t, queue.OTPEmailPayload{Email: "a@b.com", Code: "123456"}))
	require.NoError(t, err)
	require.Equal(t, "123456", m.sent["a@b.com"])
}

func TestOTPEmailWorker_MailerFailureRetries(t *testing.T) {
	m := &fakeMailer{sent: map[string]string{}, err: errors.New("smtp down")}
	w := NewOTPEmailWorker(m, zap.NewNop())

	err := w.ProcessTask(context.Background(), otpTask(t, queue.OTPEmailPayload{Email: "a@b.com", Code: "123456"}))
	require.Error(t, err)
	require.NotErrorIs(t, err, asynq.SkipRetry)
}

func TestOTPEmailWorker_BadPayloadSkipsRetry(t *testing.T) {
	w := NewOTPEmailWorker(&fakeMailer{sent: map[string]string{}}, zap.NewNop())

	err := w.ProcessTask(context.Background(), asynq.NewTask(queue.TypeOTPEmail, []byte("{not json")))
	require.ErrorIs(t, err, asynq.SkipRetry)

	err = w.ProcessTask(context.Background(), otpTask(t, queue.OTPEmailPayload{Email: "a@b.com"}))
	require.ErrorIs(t, err, asynq.SkipRetry)
}

func TestSessionPurgeWorker(t *testing.T) {
	ctx := context.Background()
	store := session.NewMemoryStore()
	userID := uuid.New()
	now := time.Now()

	live := &models.UserSession{UserID: userID, DeviceInfo: "live", ExpiresAt: now.Add(time.Hour), LastUsedAt: now}
	dead := &models.UserSession{UserID: userID, DeviceInfo: "dead", ExpiresAt: now.Add(-time.Hour), LastUsedAt: now}
	require.NoError(t, store.Create(ctx, live))
	require.NoError(t, store.Create(ctx, dead))

	w := NewSessionPurgeWorker(store, zap.NewNop())
	require.NoError(t, w.ProcessTask(ctx, queue.NewSessionPurgeTask()))

	require.Equal(t, 1, store.Count(userID))
	active, err := store.ListActive(ctx, userID, now)
	require.NoError(t, err)
	require.Len(t, active, 1)
	require.Equal(t, live.ID, active[0].ID)
}
