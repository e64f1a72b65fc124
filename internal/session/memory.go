package session

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nikhilbhutani/tableside/internal/models"
)

// MemoryStore is the in-process counterpart of Store.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[uuid.UUID]models.UserSession
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: map[uuid.UUID]models.UserSession{}}
}

func (m *MemoryStore) Create(_ context.Context, sess *models.UserSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess.ID = uuid.New()
	sess.CreatedAt = time.Now().UTC()
	m.sessions[sess.ID] = *sess
	return nil
}

func (m *MemoryStore) ListActive(_ context.Context, userID uuid.UUID, now time.Time) ([]models.UserSession, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []models.UserSession
	for _, s := range m.sessions {
		if s.UserID == userID && s.ExpiresAt.After(now) {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (m *MemoryStore) Touch(_ context.Context, id uuid.UUID, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[id]
	if !ok {
		return ErrNotFound
	}
	s.LastUsedAt = at
	m.sessions[id] = s
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sessions[id]; !ok {
		return ErrNotFound
	}
	delete(m.sessions, id)
	return nil
}

func (m *MemoryStore) DeleteAllForUser(_ context.Context, userID uuid.UUID) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var n int64
	for id, s := range m.sessions {
		if s.UserID == userID {
			delete(m.sessions, id)
			n++
		}
	}
	return n, nil
}

func (m *MemoryStore) DeleteExpired(_ context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var n int64
	for id, s := range m.sessions {
		if !s.ExpiresAt.After(cutoff) {
			delete(m.sessions, id)
			n++
		}
	}
	return n, nil
}

// Expire moves a session's expiry into the past.
func (m *MemoryStore) Expire(id uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.sessions[id]; ok {
		s.ExpiresAt = time.Now().Add(-time.Minute)
		m.sessions[id] = s
	}
}

// Count returns the number of rows held for userID, expired or not.
func (m *MemoryStore) Count(userID uuid.UUID) int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	n := 0
	for _, s := range m.sessions {
		if s.UserID == userID {
			n++
		}
	}
	return n
}
