package user

import (
	"context"
	"strings"
	"sync"

	"certverify/internal/auth/models"
	id "certverify/pkg/domain"
	"certverify/pkg/platform/sentinel"
)

// InMemoryUserStore keeps administrators in memory for single-process deployments and tests.
type InMemoryUserStore struct {
	mu    sync.RWMutex
	users map[id.UserID]*models.User
}

func New() *InMemoryUserStore {
	return &InMemoryUserStore{users: make(map[id.UserID]*models.User)}
}

// Save inserts or replaces a user. Another user already holding the email
// (case-insensitive) or username yields sentinel.ErrAlreadyUsed.
func (s *InMemoryUserStore) Save(_ context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.users {
		if existing.ID == user.ID {
			continue
		}
		if strings.EqualFold(existing.Email, user.Email) {
			return sentinel.ErrAlreadyUsed
		}
		if user.Username != "" && existing.Username == user.Username {
			return sentinel.ErrAlreadyUsed
		}
	}
	stored := *user
	s.users[user.ID] = &stored
	return nil
}

func (s *InMemoryUserStore) FindByID(_ context.Context, userID id.UserID) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[userID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	found := *u
	return &found, nil
}

// FindByIdentifier matches the email case-insensitively or the username exactly.
func (s *InMemoryUserStore) FindByIdentifier(_ context.Context, identifier string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.users {
		if strings.EqualFold(u.Email, identifier) || (u.Username != "" && u.Username == identifier) {
			found := *u
			return &found, nil
		}
	}
	return nil, sentinel.ErrNotFound
}
