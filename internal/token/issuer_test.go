package token

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func newTestIssuer(t *testing.T) *Issuer {
	t.Helper()
	iss, err := NewIssuer(Config{
		Secret:     "test-secret",
		Issuer:     "tableside-test",
		AccessTTL:  15 * time.Minute,
		RefreshTTL: 7 * 24 * time.Hour,
	})
	require.NoError(t, err)
	return iss
}

func TestAccessRoundTrip(t *testing.T) {
	iss := newTestIssuer(t)
	id := Identity{
		UserID:   uuid.New(),
		Email:    "a@b.com",
		Role:     "OWNER",
		TenantID: uuid.New(),
	}

	signed, err := iss.IssueAccess(id)
	require.NoError(t, err)

	claims, err := iss.ParseAccess(signed)
	require.NoError(t, err)
	require.Equal(t, id.Email, claims.Email)
	require.Equal(t, id.Role, claims.Role)
	require.Equal(t, id.TenantID.String(), claims.TenantID)

	sub, err := UserID(claims)
	require.NoError(t, err)
	require.Equal(t, id.UserID, sub)
}

func TestRefreshCarriesSubjectOnly(t *testing.T) {
	iss := newTestIssuer(t)
	userID := uuid.New()

	a, err := iss.IssueRefresh(userID)
	require.NoError(t, err)
	b, err := iss.IssueRefresh(userID)
	require.NoError(t, err)
	require.NotEqual(t, a, b, "refresh tokens issued together must differ")

	claims, err := iss.ParseRefresh(a)
	require.NoError(t, err)
	sub, err := UserID(claims)
	require.NoError(t, err)
	require.Equal(t, userID, sub)
	require.NotEmpty(t, claims.ID)
}

func TestKindsAreNotInterchangeable(t *testing.T) {
	iss := newTestIssuer(t)
	userID := uuid.New()

	access, err := iss.IssueAccess(Identity{UserID: userID, TenantID: uuid.New()})
	require.NoError(t, err)
	refresh, err := iss.IssueRefresh(userID)
	require.NoError(t, err)

	_, err = iss.ParseRefresh(access)
	require.ErrorIs(t, err, ErrInvalid)
	_, err = iss.ParseAccess(refresh)
	require.ErrorIs(t, err, ErrInvalid)
}

func TestExpiredTokenRejected(t *testing.T) {
	iss := newTestIssuer(t)
	past := iss.WithClock(func() time.Time { return time.Now().Add(-8 * 24 * time.Hour) })

	refresh, err := past.IssueRefresh(uuid.New())
	require.NoError(t, err)

	_, err = iss.ParseRefresh(refresh)
	require.ErrorIs(t, err, ErrInvalid)
	require.ErrorContains(t, err, "expired")
}

func TestWrongSecretRejected(t *testing.T) {
	iss := newTestIssuer(t)
	other, err := NewIssuer(Config{
		Secret:     "other-secret",
		Issuer:     "tableside-test",
		AccessTTL:  time.Minute,
		RefreshTTL: time.Hour,
	})
	require.NoError(t, err)

	refresh, err := other.IssueRefresh(uuid.New())
	require.NoError(t, err)

	_, err = iss.ParseRefresh(refresh)
	require.ErrorIs(t, err, ErrInvalid)
}

func TestUnexpectedAlgorithmRejected(t *testing.T) {
	iss := newTestIssuer(t)

	claims := RefreshClaims{
		Kind: kindRefresh,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   uuid.NewString(),
			Issuer:    "tableside-test",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = iss.ParseRefresh(unsigned)
	require.ErrorIs(t, err, ErrInvalid)
}

func TestNewIssuerValidation(t *testing.T) {
	_, err := NewIssuer(Config{AccessTTL: time.Minute, RefreshTTL: time.Hour})
	require.Error(t, err)
	_, err = NewIssuer(Config{Secret: "s", AccessTTL: 0, RefreshTTL: time.Hour})
	require.Error(t, err)
}
