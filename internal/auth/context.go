package auth

import (
	"context"

	"github.com/google/uuid"

	"github.com/nikhilbhutani/tableside/internal/models"
)

// Principal is the caller identity taken from a verified access token.
type Principal struct {
	UserID   uuid.UUID
	Email    string
	Role     models.Role
	TenantID uuid.UUID
}

type contextKey string

const principalKey contextKey = "principal"

func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

func PrincipalFromContext(ctx context.Context) *Principal {
	p, _ := ctx.Value(principalKey).(*Principal)
	return p
}

func TenantIDFromContext(ctx context.Context) uuid.UUID {
	if p := PrincipalFromContext(ctx); p != nil {
		return p.TenantID
	}
	return uuid.Nil
}
