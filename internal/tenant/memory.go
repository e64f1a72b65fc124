package tenant

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nikhilbhutani/tableside/internal/models"
)

// MemoryStore keeps tenants and users in process memory. It is used when no
// database is configured and backs the service tests. Email and slug
// uniqueness are enforced the way the database constraints enforce them.
type MemoryStore struct {
	mu      sync.RWMutex
	tenants map[uuid.UUID]models.Tenant
	users   map[uuid.UUID]models.User
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		tenants: map[uuid.UUID]models.Tenant{},
		users:   map[uuid.UUID]models.User{},
	}
}

func (m *MemoryStore) EmailExists(_ context.Context, email string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.emailTaken(email), nil
}

func (m *MemoryStore) SlugExists(_ context.Context, slug string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.slugTaken(slug), nil
}

func (m *MemoryStore) CreateOwnerAccount(_ context.Context, acct NewOwnerAccount) (*models.Tenant, *models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.emailTaken(acct.Email) || m.slugTaken(acct.Slug) {
		return nil, nil, ErrConflict
	}

	now := time.Now().UTC()
	t := models.Tenant{
		ID:             uuid.New(),
		Name:           acct.TenantName,
		Slug:           acct.Slug,
		Status:         models.TenantActive,
		OnboardingStep: 1,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	u := models.User{
		ID:           uuid.New(),
		TenantID:     t.ID,
		Email:        acct.Email,
		PasswordHash: acct.PasswordHash,
		FullName:     acct.FullName,
		Role:         models.RoleOwner,
		Status:       models.UserActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	m.tenants[t.ID] = t
	m.users[u.ID] = u
	return &t, &u, nil
}

func (m *MemoryStore) GetByID(_ context.Context, id uuid.UUID) (*models.Tenant, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.tenants[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &t, nil
}

func (m *MemoryStore) GetUserByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &u, nil
}

func (m *MemoryStore) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, u := range m.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, ErrNotFound
}

// SetUserStatus changes a user's status. Account administration lives outside
// this service; this exists for local tooling and tests.
func (m *MemoryStore) SetUserStatus(id uuid.UUID, status models.UserStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return ErrNotFound
	}
	u.Status = status
	u.UpdatedAt = time.Now().UTC()
	m.users[id] = u
	return nil
}

// Counts returns the number of tenants and users held.
func (m *MemoryStore) Counts() (tenants, users int) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.tenants), len(m.users)
}

func (m *MemoryStore) emailTaken(email string) bool {
	for _, u := range m.users {
		if u.Email == email {
			return true
		}
	}
	return false
}

func (m *MemoryStore) slugTaken(slug string) bool {
	for _, t := range m.tenants {
		if t.Slug == slug {
			return true
		}
	}
	return false
}
