package tenant

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nikhilbhutani/tableside/internal/database"
	"github.com/nikhilbhutani/tableside/internal/models"
)

var (
	ErrNotFound = errors.New("not found")
	// ErrConflict means a unique email or slug was taken by a concurrent writer.
	ErrConflict = errors.New("email or slug already exists")
)

// NewOwnerAccount is everything needed to open a tenant with its first user.
type NewOwnerAccount struct {
	TenantName   string
	Slug         string
	Email        string
	PasswordHash string
	FullName     string
}

const (
	tenantColumns = "id, name, slug, status, onboarding_step, created_at, updated_at"
	userColumns   = "id, tenant_id, email, password_hash, full_name, role, status, created_at, updated_at"
)

type Service struct {
	db *pgxpool.Pool
}

func NewService(db *pgxpool.Pool) *Service {
	return &Service{db: db}
}

func (s *Service) EmailExists(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := s.db.QueryRow(ctx, "SELECT EXISTS(SELECT 1 FROM users WHERE email = $1)", email).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check email: %w", err)
	}
	return exists, nil
}

func (s *Service) SlugExists(ctx context.Context, slug string) (bool, error) {
	var exists bool
	err := s.db.QueryRow(ctx, "SELECT EXISTS(SELECT 1 FROM tenants WHERE slug = $1)", slug).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check slug: %w", err)
	}
	return exists, nil
}

// CreateOwnerAccount inserts an ACTIVE tenant and its OWNER in one transaction.
// A unique violation on either row rolls both back and yields ErrConflict.
func (s *Service) CreateOwnerAccount(ctx context.Context, acct NewOwnerAccount) (*models.Tenant, *models.User, error) {
	var (
		t models.Tenant
		u models.User
	)
	err := pgx.BeginFunc(ctx, s.db, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx,
			`INSERT INTO tenants (name, slug, status, onboarding_step) VALUES ($1, $2, $3, $4)
			 RETURNING `+tenantColumns,
			acct.TenantName, acct.Slug, models.TenantActive, 1,
		).Scan(&t.ID, &t.Name, &t.Slug, &t.Status, &t.OnboardingStep, &t.CreatedAt, &t.UpdatedAt)
		if err != nil {
			return fmt.Errorf("insert tenant: %w", err)
		}

		err = tx.QueryRow(ctx,
			`INSERT INTO users (tenant_id, email, password_hash, full_name, role, status) VALUES ($1, $2, $3, $4, $5, $6)
			 RETURNING `+userColumns,
			t.ID, acct.Email, acct.PasswordHash, acct.FullName, models.RoleOwner, models.UserActive,
		).Scan(&u.ID, &u.TenantID, &u.Email, &u.PasswordHash, &u.FullName, &u.Role, &u.Status, &u.CreatedAt, &u.UpdatedAt)
		if err != nil {
			return fmt.Errorf("insert owner: %w", err)
		}
		return nil
	})
	if err != nil {
		if _, ok := database.IsUniqueViolation(err); ok {
			return nil, nil, fmt.Errorf("%w: %v", ErrConflict, err)
		}
		return nil, nil, fmt.Errorf("create owner account: %w", err)
	}
	return &t, &u, nil
}

func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (*models.Tenant, error) {
	var t models.Tenant
	err := s.db.QueryRow(ctx,
		"SELECT "+tenantColumns+" FROM tenants WHERE id = $1", id,
	).Scan(&t.ID, &t.Name, &t.Slug, &t.Status, &t.OnboardingStep, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, notFound("get tenant", err)
	}
	return &t, nil
}

func (s *Service) GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return s.getUser(ctx, "id", id)
}

func (s *Service) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.getUser(ctx, "email", email)
}

func (s *Service) getUser(ctx context.Context, column string, value interface{}) (*models.User, error) {
	var u models.User
	err := s.db.QueryRow(ctx,
		"SELECT "+userColumns+" FROM users WHERE "+column+" = $1", value,
	).Scan(&u.ID, &u.TenantID, &u.Email, &u.PasswordHash, &u.FullName, &u.Role, &u.Status, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, notFound("get user", err)
	}
	return &u, nil
}

func notFound(op string, err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return fmt.Errorf("%s: %w", op, err)
}
