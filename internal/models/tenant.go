package models

import (
	"time"

	"github.com/google/uuid"
)

type TenantStatus string

const (
	TenantDraft     TenantStatus = "DRAFT"
	TenantActive    TenantStatus = "ACTIVE"
	TenantSuspended TenantStatus = "SUSPENDED"
)

type Tenant struct {
	ID             uuid.UUID    `json:"id" db:"id"`
	Name           string       `json:"name" db:"name"`
	Slug           string       `json:"slug" db:"slug"`
	Status         TenantStatus `json:"status" db:"status"`
	OnboardingStep int          `json:"onboarding_step" db:"onboarding_step"`
	CreatedAt      time.Time    `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time    `json:"updated_at" db:"updated_at"`
}

// TenantSummary is the tenant shape returned alongside issued tokens.
type TenantSummary struct {
	ID             uuid.UUID    `json:"id"`
	Name           string       `json:"name"`
	Slug           string       `json:"slug"`
	Status         TenantStatus `json:"status"`
	OnboardingStep int          `json:"onboardingStep"`
}

func (t *Tenant) Summary() TenantSummary {
	return TenantSummary{
		ID:             t.ID,
		Name:           t.Name,
		Slug:           t.Slug,
		Status:         t.Status,
		OnboardingStep: t.OnboardingStep,
	}
}
