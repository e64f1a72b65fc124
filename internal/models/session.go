package models

import (
	"time"

	"github.com/google/uuid"
)

// UserSession is one logged-in device. Only a hash of the refresh token is kept.
type UserSession struct {
	ID               uuid.UUID `json:"id" db:"id"`
	UserID           uuid.UUID `json:"user_id" db:"user_id"`
	RefreshTokenHash string    `json:"-" db:"refresh_token_hash"`
	DeviceInfo       string    `json:"device_info" db:"device_info"`
	ExpiresAt        time.Time `json:"expires_at" db:"expires_at"`
	LastUsedAt       time.Time `json:"last_used_at" db:"last_used_at"`
	CreatedAt        time.Time `json:"created_at" db:"created_at"`
}

// PendingRegistration is the staged sign-up payload held in the cache until the
// OTP is confirmed. It carries no reference into the durable store.
type PendingRegistration struct {
	Email        string `json:"email"`
	PasswordHash string `json:"password_hash"`
	FullName     string `json:"full_name"`
	TenantName   string `json:"tenant_name"`
	Slug         string `json:"slug"`
	OTP          string `json:"otp"`
}
