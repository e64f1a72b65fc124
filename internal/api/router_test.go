package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/nikhilbhutani/tableside/internal/auth"
	"github.com/nikhilbhutani/tableside/internal/cache"
	"github.com/nikhilbhutani/tableside/internal/config"
	"github.com/nikhilbhutani/tableside/internal/otp"
	"github.com/nikhilbhutani/tableside/internal/password"
	"github.com/nikhilbhutani/tableside/internal/session"
	"github.com/nikhilbhutani/tableside/internal/tenant"
	"github.com/nikhilbhutani/tableside/internal/token"
)

type inbox struct {
	mu    sync.Mutex
	codes map[string]string
}

func (i *inbox) SendOTP(_ context.Context, email, code string) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.codes[email] = code
	return nil
}

func (i *inbox) code(email string) string {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.codes[email]
}

func newTestServer(t *testing.T, mutate func(*config.Config)) (http.Handler, *inbox) {
	t.Helper()

	cfg := config.Defaults()
	cfg.Auth.JWTSecret = "router-test-secret-router-test-secret"
	cfg.Server.RateLimitBurst = 1000
	cfg.Server.RateLimitRPS = 1000
	if mutate != nil {
		mutate(cfg)
	}

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	hasher, err := password.NewHasher(bcrypt.MinCost)
	require.NoError(t, err)
	tokens, err := token.NewIssuer(token.Config{
		Secret:     cfg.Auth.JWTSecret,
		Issuer:     cfg.Auth.Issuer,
		AccessTTL:  cfg.Auth.AccessTTL,
		RefreshTTL: cfg.Auth.RefreshTTL,
	})
	require.NoError(t, err)
	gen, err := otp.NewGenerator(cfg.Auth.OTPDigits)
	require.NoError(t, err)

	box := &inbox{codes: map[string]string{}}
	svc, err := auth.NewService(auth.Deps{
		Accounts:      tenant.NewMemoryStore(),
		Sessions:      session.NewMemoryStore(),
		Registrations: cache.NewRegistrationStore(cache.NewCache(rdb)),
		Sender:        box,
		Hasher:        hasher,
		Tokens:        tokens,
		OTP:           gen,
	}, auth.Options{RegistrationTTL: cfg.Auth.RegistrationTTL, SessionTTL: cfg.Auth.SessionTTL})
	require.NoError(t, err)

	rt := NewRouter(Deps{
		Config: cfg,
		Logger: zap.NewNop(),
		Redis:  rdb,
		Auth:   svc,
		Tokens: tokens,
	})
	t.Cleanup(rt.Close)
	return rt.Setup(), box
}

func do(t *testing.T, h http.Handler, method, path, bearer string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, dest interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), dest))
}

var signup = map[string]string{
	"email":      "mai@example.com",
	"password":   "hunter2hunter2",
	"fullName":   "Mai Tran",
	"tenantName": "Pho Corner",
	"slug":       "pho-corner",
}

func register(t *testing.T, h http.Handler, box *inbox) auth.AuthResponse {
	t.Helper()

	rec := do(t, h, http.MethodPost, "/api/v1/auth/register", "", signup)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var sub auth.RegisterResponse
	decode(t, rec, &sub)

	rec = do(t, h, http.MethodPost, "/api/v1/auth/register/confirm", "", map[string]string{
		"registrationToken": sub.RegistrationToken,
		"otp":               box.code("mai@example.com"),
		"deviceInfo":        "Front counter",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var out auth.AuthResponse
	decode(t, rec, &out)
	return out
}

func TestHealth(t *testing.T) {
	h, _ := newTestServer(t, nil)

	rec := do(t, h, http.MethodGet, "/healthz", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, h, http.MethodGet, "/readyz", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"redis":"ok"`)
	require.Contains(t, rec.Body.String(), `"database":"in-memory"`)
}

func TestAuthFlow(t *testing.T) {
	h, box := newTestServer(t, nil)
	reg := register(t, h, box)
	require.NotEmpty(t, reg.AccessToken)
	require.Equal(t, "pho-corner", reg.Tenant.Slug)

	rec := do(t, h, http.MethodGet, "/api/v1/auth/me", reg.AccessToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var me auth.Profile
	decode(t, rec, &me)
	require.Equal(t, reg.User.ID, me.User.ID)

	rec = do(t, h, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"email": "mai@example.com", "password": "hunter2hunter2", "deviceInfo": "Kitchen",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	var login auth.AuthResponse
	decode(t, rec, &login)

	rec = do(t, h, http.MethodGet, "/api/v1/auth/sessions", reg.AccessToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var listed struct {
		Count int `json:"count"`
	}
	decode(t, rec, &listed)
	require.Equal(t, 2, listed.Count)
	require.NotContains(t, rec.Body.String(), "refreshTokenHash")

	rec = do(t, h, http.MethodPost, "/api/v1/auth/refresh", "", map[string]string{"refreshToken": reg.RefreshToken})
	require.Equal(t, http.StatusOK, rec.Code)
	var refreshed auth.RefreshResponse
	decode(t, rec, &refreshed)
	require.NotEmpty(t, refreshed.AccessToken)
	require.Equal(t, 900, refreshed.ExpiresInSeconds)

	rec = do(t, h, http.MethodPost, "/api/v1/auth/logout", reg.AccessToken, map[string]string{"refreshToken": reg.RefreshToken})
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = do(t, h, http.MethodPost, "/api/v1/auth/refresh", "", map[string]string{"refreshToken": reg.RefreshToken})
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(t, h, http.MethodPost, "/api/v1/auth/logout-all", login.AccessToken, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = do(t, h, http.MethodPost, "/api/v1/auth/refresh", "", map[string]string{"refreshToken": login.RefreshToken})
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestErrorStatuses(t *testing.T) {
	h, box := newTestServer(t, nil)
	reg := register(t, h, box)

	rec := do(t, h, http.MethodPost, "/api/v1/auth/register", "", signup)
	require.Equal(t, http.StatusConflict, rec.Code)

	bad := map[string]string{"email": "x", "password": "p", "fullName": "", "tenantName": "", "slug": ""}
	rec = do(t, h, http.MethodPost, "/api/v1/auth/register", "", bad)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodPost, "/api/v1/auth/register/confirm", "", map[string]string{"registrationToken": "nope", "otp": "123456"})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	unknown := do(t, h, http.MethodPost, "/api/v1/auth/login", "", map[string]string{"email": "ghost@example.com", "password": "hunter2hunter2"})
	wrong := do(t, h, http.MethodPost, "/api/v1/auth/login", "", map[string]string{"email": "mai@example.com", "password": "nothunter2"})
	require.Equal(t, http.StatusUnauthorized, unknown.Code)
	require.Equal(t, http.StatusUnauthorized, wrong.Code)
	require.Equal(t, unknown.Body.String(), wrong.Body.String())

	rec = do(t, h, http.MethodPost, "/api/v1/auth/refresh", "", map[string]string{"refreshToken": "garbage"})
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(t, h, http.MethodPost, "/api/v1/auth/logout", reg.AccessToken, map[string]string{"refreshToken": "garbage"})
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(t, h, http.MethodGet, "/api/v1/auth/me", "", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	// A refresh token cannot stand in for an access token.
	rec = do(t, h, http.MethodGet, "/api/v1/auth/me", reg.RefreshToken, nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewBufferString("{"))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestAdminRoutesAbsentWithoutAudit(t *testing.T) {
	h, box := newTestServer(t, nil)
	reg := register(t, h, box)

	rec := do(t, h, http.MethodGet, "/api/v1/admin/audit", reg.AccessToken, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRateLimit(t *testing.T) {
	h, _ := newTestServer(t, func(c *config.Config) {
		c.Server.RateLimitRPS = 0.001
		c.Server.RateLimitBurst = 2
	})

	for i := 0; i < 2; i++ {
		require.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/healthz", "", nil).Code)
	}
	rec := do(t, h, http.MethodGet, "/healthz", "", nil)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	require.Equal(t, "1", rec.Header().Get("Retry-After"))
}

func TestCORSPreflight(t *testing.T) {
	h, _ := newTestServer(t, func(c *config.Config) {
		c.Server.AllowedOrigins = []string{"https://app.tableside.test"}
	})

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/auth/login", nil)
	req.Header.Set("Origin", "https://app.tableside.test")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Equal(t, "https://app.tableside.test", rec.Header().Get("Access-Control-Allow-Origin"))
	require.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), http.MethodPost)

	req = httptest.NewRequest(http.MethodOptions, "/api/v1/auth/login", nil)
	req.Header.Set("Origin", "https://evil.test")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRegisterReportsConfiguredTTL(t *testing.T) {
	h, box := newTestServer(t, func(c *config.Config) {
		c.Auth.RegistrationTTL = time.Minute
	})

	rec := do(t, h, http.MethodPost, "/api/v1/auth/register", "", signup)
	require.Equal(t, http.StatusCreated, rec.Code)
	var sub auth.RegisterResponse
	decode(t, rec, &sub)
	require.Equal(t, 60, sub.ExpiresInSeconds)
	require.Len(t, box.code("mai@example.com"), 6)
}
