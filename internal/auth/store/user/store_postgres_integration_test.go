//go:build integration

package user_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"certverify/internal/auth/models"
	"certverify/internal/auth/store/user"
	id "certverify/pkg/domain"
	"certverify/pkg/platform/sentinel"
	"certverify/pkg/testutil/containers"
)

type PostgresUserStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *user.PostgresStore
}

func TestPostgresUserStoreSuite(t *testing.T) {
	suite.Run(t, new(PostgresUserStoreSuite))
}

func (s *PostgresUserStoreSuite) SetupSuite() {
	s.postgres = containers.NewPostgresContainer(s.T())
	s.store = user.NewPostgres(s.postgres.DB)
}

func (s *PostgresUserStoreSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateTables(context.Background(), "admin_users"))
}

func (s *PostgresUserStoreSuite) newUser(email, username string) *models.User {
	return &models.User{
		ID:           id.UserID(uuid.New()),
		Email:        email,
		Username:     username,
		PasswordHash: "$2a$10$abcdefghijklmnopqrstuv",
		Role:         models.RoleAdmin,
		CreatedAt:    time.Now().UTC().Truncate(time.Microsecond),
	}
}

func (s *PostgresUserStoreSuite) TestSaveAndFind() {
	ctx := context.Background()
	u := s.newUser("Admin@Example.com", "root")
	s.Require().NoError(s.store.Save(ctx, u))

	s.Run("by id", func() {
		found, err := s.store.FindByID(ctx, u.ID)
		s.Require().NoError(err)
		s.Equal(u.Email, found.Email)
		s.Equal(u.Username, found.Username)
		s.True(u.CreatedAt.Equal(found.CreatedAt))
	})

	s.Run("by email ignoring case", func() {
		found, err := s.store.FindByIdentifier(ctx, "admin@example.COM")
		s.Require().NoError(err)
		s.Equal(u.ID, found.ID)
	})

	s.Run("by username", func() {
		found, err := s.store.FindByIdentifier(ctx, "root")
		s.Require().NoError(err)
		s.Equal(u.ID, found.ID)
	})

	s.Run("missing", func() {
		_, err := s.store.FindByIdentifier(ctx, "nobody@example.com")
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})
}

func (s *PostgresUserStoreSuite) TestUniqueEmail() {
	ctx := context.Background()
	s.Require().NoError(s.store.Save(ctx, s.newUser("dup@example.com", "")))

	err := s.store.Save(ctx, s.newUser("DUP@example.com", ""))
	s.Require().ErrorIs(err, sentinel.ErrAlreadyUsed)
}

func (s *PostgresUserStoreSuite) TestUsersWithoutUsernameCoexist() {
	ctx := context.Background()
	s.Require().NoError(s.store.Save(ctx, s.newUser("a@example.com", "")))
	s.Require().NoError(s.store.Save(ctx, s.newUser("b@example.com", "")))
}
