package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nikhilbhutani/tableside/internal/models"
)

const registrationPrefix = "registration:"

// RegistrationStore stages sign-up payloads under their registration token
// until the OTP is confirmed or the TTL lapses.
type RegistrationStore struct {
	cache *Cache
}

func NewRegistrationStore(c *Cache) *RegistrationStore {
	return &RegistrationStore{cache: c}
}

// Put stages reg under token. Tokens are single-use, so an existing entry is
// never overwritten.
func (s *RegistrationStore) Put(ctx context.Context, token string, reg models.PendingRegistration, ttl time.Duration) error {
	ok, err := s.cache.SetNX(ctx, registrationPrefix+token, reg, ttl)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("registration token collision")
	}
	return nil
}

func (s *RegistrationStore) Get(ctx context.Context, token string) (*models.PendingRegistration, error) {
	var reg models.PendingRegistration
	if err := s.cache.Get(ctx, registrationPrefix+token, &reg); err != nil {
		if errors.Is(err, ErrMiss) {
			return nil, ErrMiss
		}
		return nil, err
	}
	return &reg, nil
}

func (s *RegistrationStore) Delete(ctx context.Context, token string) error {
	return s.cache.Delete(ctx, registrationPrefix+token)
}
