package user

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"certverify/internal/auth/models"
	id "certverify/pkg/domain"
	"certverify/pkg/platform/sentinel"
)

type InMemoryUserStoreSuite struct {
	suite.Suite
	store *InMemoryUserStore
}

func (s *InMemoryUserStoreSuite) SetupTest() {
	s.store = New()
}

func TestInMemoryUserStoreSuite(t *testing.T) {
	suite.Run(t, new(InMemoryUserStoreSuite))
}

func newUser(email, username string) *models.User {
	return &models.User{
		ID:           id.UserID(uuid.New()),
		Email:        email,
		Username:     username,
		PasswordHash: "hash",
		Role:         models.RoleAdmin,
		CreatedAt:    time.Now(),
	}
}

// TestLookupBehavior tests user retrieval by ID and identifier.
func (s *InMemoryUserStoreSuite) TestLookupBehavior() {
	ctx := context.Background()
	user := newUser("Jane.Doe@example.com", "jane")
	s.Require().NoError(s.store.Save(ctx, user))

	s.Run("returns user by ID when exists", func() {
		found, err := s.store.FindByID(ctx, user.ID)
		s.Require().NoError(err)
		s.Equal(user, found)
	})

	s.Run("returns user by email ignoring case", func() {
		found, err := s.store.FindByIdentifier(ctx, "jane.doe@EXAMPLE.com")
		s.Require().NoError(err)
		s.Equal(user.ID, found.ID)
	})

	s.Run("returns user by username", func() {
		found, err := s.store.FindByIdentifier(ctx, "jane")
		s.Require().NoError(err)
		s.Equal(user.ID, found.ID)
	})

	s.Run("username match is exact", func() {
		_, err := s.store.FindByIdentifier(ctx, "JANE")
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("returns ErrNotFound when user ID does not exist", func() {
		_, err := s.store.FindByID(ctx, id.UserID(uuid.New()))
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("returned user is a copy", func() {
		found, err := s.store.FindByID(ctx, user.ID)
		s.Require().NoError(err)
		found.Email = "mutated@example.com"

		again, err := s.store.FindByID(ctx, user.ID)
		s.Require().NoError(err)
		s.Equal("Jane.Doe@example.com", again.Email)
	})
}

// TestUniqueness tests that email and username cannot be shared.
func (s *InMemoryUserStoreSuite) TestUniqueness() {
	ctx := context.Background()
	s.Require().NoError(s.store.Save(ctx, newUser("admin@example.com", "admin")))

	s.Run("duplicate email differing in case is rejected", func() {
		err := s.store.Save(ctx, newUser("ADMIN@example.com", ""))
		s.Require().ErrorIs(err, sentinel.ErrAlreadyUsed)
	})

	s.Run("duplicate username is rejected", func() {
		err := s.store.Save(ctx, newUser("other@example.com", "admin"))
		s.Require().ErrorIs(err, sentinel.ErrAlreadyUsed)
	})

	s.Run("re-saving the same user updates it", func() {
		u := newUser("update@example.com", "")
		s.Require().NoError(s.store.Save(ctx, u))
		u.PasswordHash = "new-hash"
		s.Require().NoError(s.store.Save(ctx, u))

		found, err := s.store.FindByID(ctx, u.ID)
		s.Require().NoError(err)
		s.Equal("new-hash", found.PasswordHash)
	})
}
