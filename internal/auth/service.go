package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nikhilbhutani/tableside/internal/audit"
	"github.com/nikhilbhutani/tableside/internal/cache"
	"github.com/nikhilbhutani/tableside/internal/models"
	"github.com/nikhilbhutani/tableside/internal/otp"
	"github.com/nikhilbhutani/tableside/internal/password"
	"github.com/nikhilbhutani/tableside/internal/session"
	"github.com/nikhilbhutani/tableside/internal/tenant"
	"github.com/nikhilbhutani/tableside/internal/token"
)

const (
	defaultDeviceInfo = "Unknown"
	submitMessage     = "Verification code sent to your email"
)

// AccountStore is the durable Tenant/User store.
type AccountStore interface {
	EmailExists(ctx context.Context, email string) (bool, error)
	SlugExists(ctx context.Context, slug string) (bool, error)
	CreateOwnerAccount(ctx context.Context, acct tenant.NewOwnerAccount) (*models.Tenant, *models.User, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Tenant, error)
	GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
}

// SessionStore is the durable UserSession store.
type SessionStore interface {
	Create(ctx context.Context, sess *models.UserSession) error
	ListActive(ctx context.Context, userID uuid.UUID, now time.Time) ([]models.UserSession, error)
	Touch(ctx context.Context, id uuid.UUID, at time.Time) error
	Delete(ctx context.Context, id uuid.UUID) error
	DeleteAllForUser(ctx context.Context, userID uuid.UUID) (int64, error)
}

// RegistrationCache stages registrations until they are confirmed. Get
// returns cache.ErrMiss for unknown or expired tokens.
type RegistrationCache interface {
	Put(ctx context.Context, token string, reg models.PendingRegistration, ttl time.Duration) error
	Get(ctx context.Context, token string) (*models.PendingRegistration, error)
	Delete(ctx context.Context, token string) error
}

type OTPSender interface {
	SendOTP(ctx context.Context, email, code string) error
}

type AuditLogger interface {
	Log(ctx context.Context, entry audit.Entry) error
}

type Deps struct {
	Accounts      AccountStore
	Sessions      SessionStore
	Registrations RegistrationCache
	Sender        OTPSender
	Hasher        *password.Hasher
	Tokens        *token.Issuer
	OTP           *otp.Generator
	Audit         AuditLogger // optional
	Logger        *zap.Logger
}

type Options struct {
	RegistrationTTL time.Duration
	SessionTTL      time.Duration
}

// Service runs registration and the session lifecycle. It holds no per-user
// state; every call carries the acting identity explicitly.
type Service struct {
	accounts      AccountStore
	sessions      SessionStore
	registrations RegistrationCache
	sender        OTPSender
	hasher        *password.Hasher
	tokens        *token.Issuer
	otp           *otp.Generator
	audit         AuditLogger
	logger        *zap.Logger

	registrationTTL time.Duration
	sessionTTL      time.Duration
	dummyHash       string
	now             func() time.Time

	pending sync.WaitGroup
}

func NewService(deps Deps, opts Options) (*Service, error) {
	if deps.Accounts == nil || deps.Sessions == nil || deps.Registrations == nil || deps.Sender == nil ||
		deps.Hasher == nil || deps.Tokens == nil || deps.OTP == nil {
		return nil, errors.New("auth: missing dependency")
	}
	if opts.RegistrationTTL <= 0 || opts.SessionTTL <= 0 {
		return nil, errors.New("auth: TTLs must be positive")
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	// Unknown emails are verified against this so both login failures cost one bcrypt.
	dummy, err := deps.Hasher.Hash("tableside-unknown-account-0")
	if err != nil {
		return nil, fmt.Errorf("auth: prepare dummy hash: %w", err)
	}

	return &Service{
		accounts:        deps.Accounts,
		sessions:        deps.Sessions,
		registrations:   deps.Registrations,
		sender:          deps.Sender,
		hasher:          deps.Hasher,
		tokens:          deps.Tokens,
		otp:             deps.OTP,
		audit:           deps.Audit,
		logger:          logger,
		registrationTTL: opts.RegistrationTTL,
		sessionTTL:      opts.SessionTTL,
		dummyHash:       dummy,
		now:             time.Now,
	}, nil
}

type RegisterRequest struct {
	Email      string `json:"email"`
	Password   string `json:"password"`
	FullName   string `json:"fullName"`
	TenantName string `json:"tenantName"`
	Slug       string `json:"slug"`
}

type RegisterResponse struct {
	Message           string `json:"message"`
	RegistrationToken string `json:"registrationToken"`
	ExpiresInSeconds  int    `json:"expiresInSeconds"`
}

type ConfirmRequest struct {
	RegistrationToken string `json:"registrationToken"`
	OTP               string `json:"otp"`
	DeviceInfo        string `json:"deviceInfo,omitempty"`
	IPAddress         string `json:"-"`
}

type LoginRequest struct {
	Email      string `json:"email"`
	Password   string `json:"password"`
	DeviceInfo string `json:"deviceInfo,omitempty"`
	IPAddress  string `json:"-"`
}

// AuthResponse is returned by confirm and login.
type AuthResponse struct {
	AccessToken      string               `json:"accessToken"`
	RefreshToken     string               `json:"refreshToken"`
	ExpiresInSeconds int                  `json:"expiresInSeconds"`
	User             models.UserSummary   `json:"user"`
	Tenant           models.TenantSummary `json:"tenant"`
}

type RefreshResponse struct {
	AccessToken      string `json:"accessToken"`
	ExpiresInSeconds int    `json:"expiresInSeconds"`
}

type SessionView struct {
	ID         uuid.UUID `json:"id"`
	DeviceInfo string    `json:"deviceInfo"`
	CreatedAt  time.Time `json:"createdAt"`
	LastUsedAt time.Time `json:"lastUsedAt"`
	ExpiresAt  time.Time `json:"expiresAt"`
}

type Profile struct {
	User   models.UserSummary   `json:"user"`
	Tenant models.TenantSummary `json:"tenant"`
}

// SubmitRegistration stages a sign-up and emails its code. Nothing durable is
// written; if the code cannot be dispatched the staged entry is removed again.
func (s *Service) SubmitRegistration(ctx context.Context, req RegisterRequest) (*RegisterResponse, error) {
	if err := req.normalize(); err != nil {
		return nil, err
	}

	// Advisory only: the unique constraints decide at confirm time.
	taken, err := s.accounts.EmailExists(ctx, req.Email)
	if err != nil {
		return nil, fmt.Errorf("check email: %w", err)
	}
	if taken {
		s.logger.Info("registration rejected", zap.String("reason", "email_taken"))
		return nil, ErrEmailTaken
	}
	taken, err = s.accounts.SlugExists(ctx, req.Slug)
	if err != nil {
		return nil, fmt.Errorf("check slug: %w", err)
	}
	if taken {
		s.logger.Info("registration rejected", zap.String("reason", "slug_taken"), zap.String("slug", req.Slug))
		return nil, ErrSlugTaken
	}

	passwordHash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	code, err := s.otp.Generate()
	if err != nil {
		return nil, err
	}
	regToken, err := otp.NewToken()
	if err != nil {
		return nil, err
	}

	pending := models.PendingRegistration{
		Email:        req.Email,
		PasswordHash: passwordHash,
		FullName:     req.FullName,
		TenantName:   req.TenantName,
		Slug:         req.Slug,
		OTP:          code,
	}
	if err := s.registrations.Put(ctx, regToken, pending, s.registrationTTL); err != nil {
		return nil, fmt.Errorf("stage registration: %w", err)
	}

	if err := s.sender.SendOTP(ctx, req.Email, code); err != nil {
		s.logger.Warn("registration code dispatch failed", zap.String("reason", "dispatch_failed"), zap.Error(err))
		if delErr := s.registrations.Delete(context.WithoutCancel(ctx), regToken); delErr != nil {
			s.logger.Error("failed to discard staged registration", zap.Error(delErr))
		}
		return nil, ErrDispatchFailed
	}

	return &RegisterResponse{
		Message:           submitMessage,
		RegistrationToken: regToken,
		ExpiresInSeconds:  int(s.registrationTTL / time.Second),
	}, nil
}

// ConfirmRegistration trades a staged registration and its code for a new
// tenant, its owner and a first session.
func (s *Service) ConfirmRegistration(ctx context.Context, req ConfirmRequest) (*AuthResponse, error) {
	if req.RegistrationToken == "" {
		return nil, ErrInvalidOrExpiredToken
	}

	pending, err := s.registrations.Get(ctx, req.RegistrationToken)
	if errors.Is(err, cache.ErrMiss) {
		return nil, ErrInvalidOrExpiredToken
	}
	if err != nil {
		return nil, fmt.Errorf("load registration: %w", err)
	}

	// A wrong code leaves the entry in place so the user can retry within the TTL.
	if subtle.ConstantTimeCompare([]byte(req.OTP), []byte(pending.OTP)) != 1 {
		s.logger.Info("registration confirm rejected", zap.String("reason", "otp_mismatch"))
		return nil, ErrInvalidOTP
	}

	t, u, err := s.accounts.CreateOwnerAccount(ctx, tenant.NewOwnerAccount{
		TenantName:   pending.TenantName,
		Slug:         pending.Slug,
		Email:        pending.Email,
		PasswordHash: pending.PasswordHash,
		FullName:     pending.FullName,
	})
	if err != nil {
		// The staged entry is kept on purpose; see ErrRegistrationConflict.
		if errors.Is(err, tenant.ErrConflict) {
			s.logger.Warn("registration commit lost a uniqueness race", zap.String("reason", "durable_conflict"), zap.String("slug", pending.Slug))
			return nil, ErrRegistrationConflict
		}
		s.logger.Error("registration commit failed", zap.String("reason", "durable_error"), zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrRegistrationConflict, err)
	}

	if err := s.registrations.Delete(ctx, req.RegistrationToken); err != nil {
		// The account exists; a replay of this token now fails on the unique constraints.
		s.logger.Warn("failed to delete confirmed registration", zap.Error(err))
	}

	resp, err := s.createSession(ctx, u, t, req.DeviceInfo)
	if err != nil {
		return nil, err
	}

	s.record(ctx, audit.Entry{
		TenantID:  t.ID,
		UserID:    &u.ID,
		Action:    models.AuditRegistrationConfirmed,
		Details:   map[string]interface{}{"slug": t.Slug},
		IPAddress: req.IPAddress,
	})
	s.logger.Info("tenant registered", zap.String("tenant_id", t.ID.String()), zap.String("user_id", u.ID.String()))
	return resp, nil
}

// Login checks credentials and opens a new session for the device. Unknown
// email and wrong password fail identically; the account status is only
// revealed after the password has been proven.
func (s *Service) Login(ctx context.Context, req LoginRequest) (*AuthResponse, error) {
	email := normalizeEmail(req.Email)

	u, err := s.accounts.GetUserByEmail(ctx, email)
	if errors.Is(err, tenant.ErrNotFound) {
		_, _ = s.hasher.Verify(req.Password, s.dummyHash)
		s.logger.Info("login failed", zap.String("reason", "unknown_email"))
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}

	ok, err := s.hasher.Verify(req.Password, u.PasswordHash)
	if err != nil {
		s.logger.Error("stored password hash is unreadable", zap.String("user_id", u.ID.String()), zap.Error(err))
	}
	if !ok {
		s.logger.Info("login failed", zap.String("reason", "wrong_password"), zap.String("user_id", u.ID.String()))
		s.record(ctx, audit.Entry{TenantID: u.TenantID, UserID: &u.ID, Action: models.AuditLoginFailed, IPAddress: req.IPAddress})
		return nil, ErrInvalidCredentials
	}

	if u.Status != models.UserActive {
		s.logger.Info("login failed", zap.String("reason", "account_not_active"), zap.String("user_id", u.ID.String()), zap.String("status", string(u.Status)))
		return nil, ErrAccountNotActive
	}

	t, err := s.accounts.GetByID(ctx, u.TenantID)
	if err != nil {
		return nil, fmt.Errorf("load tenant: %w", err)
	}

	resp, err := s.createSession(ctx, u, t, req.DeviceInfo)
	if err != nil {
		return nil, err
	}

	s.record(ctx, audit.Entry{
		TenantID:  t.ID,
		UserID:    &u.ID,
		Action:    models.AuditLoginSucceeded,
		Details:   map[string]interface{}{"device": deviceOrDefault(req.DeviceInfo)},
		IPAddress: req.IPAddress,
	})
	return resp, nil
}

// createSession issues both tokens and persists the refresh token's hash as a
// new session row. The raw refresh token only ever leaves through the response.
func (s *Service) createSession(ctx context.Context, u *models.User, t *models.Tenant, deviceInfo string) (*AuthResponse, error) {
	access, err := s.tokens.IssueAccess(identity(u))
	if err != nil {
		return nil, err
	}
	refresh, err := s.tokens.IssueRefresh(u.ID)
	if err != nil {
		return nil, err
	}
	refreshHash, err := s.hasher.HashToken(refresh)
	if err != nil {
		return nil, fmt.Errorf("hash refresh token: %w", err)
	}

	now := s.now().UTC()
	sess := &models.UserSession{
		UserID:           u.ID,
		RefreshTokenHash: refreshHash,
		DeviceInfo:       deviceOrDefault(deviceInfo),
		ExpiresAt:        now.Add(s.sessionTTL),
		LastUsedAt:       now,
	}
	if err := s.sessions.Create(ctx, sess); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	return &AuthResponse{
		AccessToken:      access,
		RefreshToken:     refresh,
		ExpiresInSeconds: int(s.tokens.AccessTTL() / time.Second),
		User:             u.Summary(),
		Tenant:           t.Summary(),
	}, nil
}

// RefreshAccessToken mints a new access token. The presented refresh token
// must verify and must match the stored hash of one of its subject's live
// sessions. The refresh token itself is not rotated.
func (s *Service) RefreshAccessToken(ctx context.Context, refreshToken string) (*RefreshResponse, error) {
	claims, err := s.tokens.ParseRefresh(refreshToken)
	if err != nil {
		s.logger.Info("refresh rejected", zap.String("reason", "token_invalid"), zap.Error(err))
		return nil, ErrInvalidRefreshToken
	}
	userID, err := token.UserID(claims)
	if err != nil {
		return nil, ErrInvalidRefreshToken
	}

	sess, err := s.matchSession(ctx, userID, refreshToken)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		s.logger.Info("refresh rejected", zap.String("reason", "no_live_session"), zap.String("user_id", userID.String()))
		return nil, ErrSessionExpiredOrInvalid
	}

	u, err := s.accounts.GetUserByID(ctx, userID)
	if errors.Is(err, tenant.ErrNotFound) {
		return nil, ErrSessionExpiredOrInvalid
	}
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	if u.Status != models.UserActive {
		return nil, ErrAccountNotActive
	}

	if err := s.sessions.Touch(ctx, sess.ID, s.now().UTC()); err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return nil, ErrSessionExpiredOrInvalid
		}
		return nil, fmt.Errorf("touch session: %w", err)
	}

	access, err := s.tokens.IssueAccess(identity(u))
	if err != nil {
		return nil, err
	}
	return &RefreshResponse{
		AccessToken:      access,
		ExpiresInSeconds: int(s.tokens.AccessTTL() / time.Second),
	}, nil
}

// Logout ends the one session whose stored hash matches refreshToken.
func (s *Service) Logout(ctx context.Context, userID uuid.UUID, refreshToken string) error {
	sess, err := s.matchSession(ctx, userID, refreshToken)
	if err != nil {
		return err
	}
	if sess == nil {
		return ErrInvalidRefreshToken
	}

	if err := s.sessions.Delete(ctx, sess.ID); err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return ErrInvalidRefreshToken
		}
		return fmt.Errorf("delete session: %w", err)
	}

	s.recordForUser(ctx, userID, models.AuditLogout, map[string]interface{}{"session_id": sess.ID.String()})
	return nil
}

// LogoutAll deletes every session the user holds.
func (s *Service) LogoutAll(ctx context.Context, userID uuid.UUID) error {
	n, err := s.sessions.DeleteAllForUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("delete sessions: %w", err)
	}
	s.recordForUser(ctx, userID, models.AuditLogoutAll, map[string]interface{}{"sessions": n})
	return nil
}

// ListSessions returns the user's live sessions without their hashes.
func (s *Service) ListSessions(ctx context.Context, userID uuid.UUID) ([]SessionView, error) {
	sessions, err := s.sessions.ListActive(ctx, userID, s.now())
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	views := make([]SessionView, 0, len(sessions))
	for _, ss := range sessions {
		views = append(views, SessionView{
			ID:         ss.ID,
			DeviceInfo: ss.DeviceInfo,
			CreatedAt:  ss.CreatedAt,
			LastUsedAt: ss.LastUsedAt,
			ExpiresAt:  ss.ExpiresAt,
		})
	}
	return views, nil
}

func (s *Service) Me(ctx context.Context, userID uuid.UUID) (*Profile, error) {
	u, err := s.accounts.GetUserByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	t, err := s.accounts.GetByID(ctx, u.TenantID)
	if err != nil {
		return nil, fmt.Errorf("load tenant: %w", err)
	}
	return &Profile{User: u.Summary(), Tenant: t.Summary()}, nil
}

// matchSession scans the user's live sessions for the one holding the hash of
// refreshToken. It returns nil when none match.
func (s *Service) matchSession(ctx context.Context, userID uuid.UUID, refreshToken string) (*models.UserSession, error) {
	sessions, err := s.sessions.ListActive(ctx, userID, s.now())
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	for i := range sessions {
		ok, err := s.hasher.VerifyToken(refreshToken, sessions[i].RefreshTokenHash)
		if err != nil {
			s.logger.Warn("unreadable session hash", zap.String("session_id", sessions[i].ID.String()), zap.Error(err))
			continue
		}
		if ok {
			return &sessions[i], nil
		}
	}
	return nil, nil
}

// Close waits for audit writes still in flight.
func (s *Service) Close() {
	s.pending.Wait()
}

// record writes the audit entry in the background so the caller's latency
// does not depend on it.
func (s *Service) record(ctx context.Context, entry audit.Entry) {
	if s.audit == nil {
		return
	}
	ctx = context.WithoutCancel(ctx)
	s.pending.Add(1)
	go func() {
		defer s.pending.Done()
		if err := s.audit.Log(ctx, entry); err != nil {
			s.logger.Warn("audit log write failed", zap.String("action", entry.Action), zap.Error(err))
		}
	}()
}

func (s *Service) recordForUser(ctx context.Context, userID uuid.UUID, action string, details map[string]interface{}) {
	if s.audit == nil {
		return
	}
	u, err := s.accounts.GetUserByID(ctx, userID)
	if err != nil {
		s.logger.Warn("audit skipped: user lookup failed", zap.String("action", action), zap.Error(err))
		return
	}
	s.record(ctx, audit.Entry{TenantID: u.TenantID, UserID: &u.ID, Action: action, Details: details})
}

func identity(u *models.User) token.Identity {
	return token.Identity{
		UserID:   u.ID,
		Email:    u.Email,
		Role:     string(u.Role),
		TenantID: u.TenantID,
	}
}

func deviceOrDefault(deviceInfo string) string {
	if deviceInfo == "" {
		return defaultDeviceInfo
	}
	return deviceInfo
}
