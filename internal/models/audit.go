package models

import (
	"encoding/json"
	"net/netip"
	"time"

	"github.com/google/uuid"
)

const (
	AuditRegistrationConfirmed = "auth.registration_confirmed"
	AuditLoginSucceeded        = "auth.login_succeeded"
	AuditLoginFailed           = "auth.login_failed"
	AuditLogout                = "auth.logout"
	AuditLogoutAll             = "auth.logout_all"
)

type AuditLog struct {
	ID        uuid.UUID       `json:"id" db:"id"`
	TenantID  uuid.UUID       `json:"tenant_id" db:"tenant_id"`
	UserID    *uuid.UUID      `json:"user_id,omitempty" db:"user_id"`
	Action    string          `json:"action" db:"action"`
	Details   json.RawMessage `json:"details" db:"details"`
	IPAddress *netip.Addr     `json:"ip_address,omitempty" db:"ip_address"`
	CreatedAt time.Time       `json:"created_at" db:"created_at"`
}
