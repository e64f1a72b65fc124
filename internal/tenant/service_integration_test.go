//go:build integration

package tenant

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/nikhilbhutani/tableside/internal/config"
	"github.com/nikhilbhutani/tableside/internal/database"
)

func getTestPool(t *testing.T) *pgxpool.Pool {
	t.Helper()

	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("Skipping integration test: TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	pool, err := database.NewPool(ctx, config.DatabaseConfig{URL: url, MaxConns: 5, MinConns: 1})
	if err != nil {
		t.Skipf("Skipping integration test: cannot connect to database: %v", err)
	}
	t.Cleanup(pool.Close)

	require.NoError(t, database.RunMigrations(ctx, pool, database.Migrations(), zap.NewNop()))
	return pool
}

func uniqueAccount() NewOwnerAccount {
	suffix := uuid.NewString()[:8]
	return NewOwnerAccount{
		TenantName:   "Pho " + suffix,
		Slug:         "pho-" + suffix,
		Email:        "owner-" + suffix + "@example.com",
		PasswordHash: "$2a$04$hash",
		FullName:     "Owner " + suffix,
	}
}

func TestService_CreateOwnerAccount(t *testing.T) {
	pool := getTestPool(t)
	svc := NewService(pool)
	ctx := context.Background()
	acct := uniqueAccount()

	tn, u, err := svc.CreateOwnerAccount(ctx, acct)
	require.NoError(t, err)
	require.Equal(t, acct.Slug, tn.Slug)
	require.Equal(t, "ACTIVE", string(tn.Status))
	require.Equal(t, 1, tn.OnboardingStep)
	require.Equal(t, "OWNER", string(u.Role))
	require.Equal(t, tn.ID, u.TenantID)

	exists, err := svc.EmailExists(ctx, acct.Email)
	require.NoError(t, err)
	require.True(t, exists)

	exists, err = svc.SlugExists(ctx, acct.Slug)
	require.NoError(t, err)
	require.True(t, exists)

	got, err := svc.GetUserByEmail(ctx, acct.Email)
	require.NoError(t, err)
	require.Equal(t, u.ID, got.ID)

	_, err = svc.GetUserByID(ctx, uuid.New())
	require.ErrorIs(t, err, ErrNotFound)
}

func TestService_DuplicateSlugRollsBack(t *testing.T) {
	pool := getTestPool(t)
	svc := NewService(pool)
	ctx := context.Background()

	first := uniqueAccount()
	_, _, err := svc.CreateOwnerAccount(ctx, first)
	require.NoError(t, err)

	second := uniqueAccount()
	second.Slug = first.Slug
	_, _, err = svc.CreateOwnerAccount(ctx, second)
	require.ErrorIs(t, err, ErrConflict)

	// The user row must not survive the failed tenant insert.
	exists, err := svc.EmailExists(ctx, second.Email)
	require.NoError(t, err)
	require.False(t, exists)
}

func TestService_ConcurrentCreateSingleWinner(t *testing.T) {
	pool := getTestPool(t)
	svc := NewService(pool)
	ctx := context.Background()
	acct := uniqueAccount()

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		conflicts int
	)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := svc.CreateOwnerAccount(ctx, acct)
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				successes++
			} else if errors.Is(err, ErrConflict) {
				conflicts++
			}
		}()
	}
	wg.Wait()

	require.Equal(t, 1, successes)
	require.Equal(t, 1, conflicts)
}
