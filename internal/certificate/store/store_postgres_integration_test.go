//go:build integration

package store_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"certverify/internal/certificate/models"
	"certverify/internal/certificate/store"
	id "certverify/pkg/domain"
	"certverify/pkg/platform/sentinel"
	"certverify/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *store.PostgresStore
	ctx      context.Context
	base     time.Time
}

func TestPostgresStoreSuite(t *testing.T) {
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.postgres = containers.NewPostgresContainer(s.T())
	s.store = store.NewPostgres(s.postgres.DB)
	s.ctx = context.Background()
}

func (s *PostgresStoreSuite) SetupTest() {
	s.base = time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)
	s.Require().NoError(s.postgres.TruncateTables(s.ctx, "certificates"))
}

func (s *PostgresStoreSuite) newCert(dni, course string, createdOffset time.Duration) *models.Certificate {
	return &models.Certificate{
		ID:         id.CertificateID(uuid.New()),
		DNI:        dni,
		FullName:   "Holder " + dni,
		Course:     course,
		Company:    "Acme",
		IssueDate:  time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		ExpiryDate: time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC),
		PDFURL:     models.DownloadPath(dni + "-x-1.pdf"),
		IsActive:   true,
		CreatedAt:  s.base.Add(createdOffset),
		UpdatedAt:  s.base.Add(createdOffset),
	}
}

func (s *PostgresStoreSuite) TestRoundTrip() {
	cert := s.newCert("12345678", "Safety 101", 0)
	s.Require().NoError(s.store.Create(s.ctx, cert))

	found, err := s.store.FindByID(s.ctx, cert.ID)
	s.Require().NoError(err)
	s.Equal(cert.DNI, found.DNI)
	s.Equal(cert.PDFURL, found.PDFURL)
	s.True(cert.IssueDate.Equal(found.IssueDate))
	s.True(cert.ExpiryDate.Equal(found.ExpiryDate))
	s.True(cert.CreatedAt.Equal(found.CreatedAt))
	s.True(found.IsActive)
}

func (s *PostgresStoreSuite) TestPartialUniqueIndex() {
	first := s.newCert("111", "Safety", 0)
	s.Require().NoError(s.store.Create(s.ctx, first))
	s.ErrorIs(s.store.Create(s.ctx, s.newCert("111", "Safety", time.Minute)), sentinel.ErrAlreadyUsed)

	s.Require().NoError(s.store.Deactivate(s.ctx, first.ID, s.base.Add(time.Hour)))
	s.Require().NoError(s.store.Create(s.ctx, s.newCert("111", "Safety", 2*time.Hour)))

	found, err := s.store.FindByID(s.ctx, first.ID)
	s.Require().NoError(err)
	s.False(found.IsActive)
	s.Empty(found.PDFURL)
}

func (s *PostgresStoreSuite) TestConcurrentCreatesYieldOneSuccess() {
	const workers = 10
	var (
		wg        sync.WaitGroup
		successes atomic.Int32
		conflicts atomic.Int32
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.store.Create(s.ctx, s.newCert("222", "Forklift", 0))
			switch {
			case err == nil:
				successes.Add(1)
			case errors.Is(err, sentinel.ErrAlreadyUsed):
				conflicts.Add(1)
			}
		}()
	}
	wg.Wait()

	s.Equal(int32(1), successes.Load())
	s.Equal(int32(workers-1), conflicts.Load())
}

func (s *PostgresStoreSuite) TestListingAndSearch() {
	a := s.newCert("333", "A", 0)
	b := s.newCert("333", "B", time.Hour)
	c := s.newCert("444", "C", 2*time.Hour)
	for _, cert := range []*models.Certificate{a, b, c} {
		s.Require().NoError(s.store.Create(s.ctx, cert))
	}
	s.Require().NoError(s.store.Deactivate(s.ctx, a.ID, s.base.Add(3*time.Hour)))

	list, err := s.store.List(s.ctx, false)
	s.Require().NoError(err)
	s.Require().Len(list, 2)
	s.Equal(c.ID, list[0].ID)

	all, err := s.store.List(s.ctx, true)
	s.Require().NoError(err)
	s.Len(all, 3)

	byDNI, err := s.store.FindActiveByDNI(s.ctx, "333")
	s.Require().NoError(err)
	s.Require().Len(byDNI, 1)
	s.Equal(b.ID, byDNI[0].ID)

	_, err = s.store.FindActiveByDNIAndCourse(s.ctx, "333", "A")
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestUpdate() {
	cert := s.newCert("555", "X", 0)
	s.Require().NoError(s.store.Create(s.ctx, cert))

	cert.FullName = "Renamed"
	cert.PDFURL = ""
	cert.UpdatedAt = s.base.Add(time.Hour)
	s.Require().NoError(s.store.Update(s.ctx, cert))

	found, err := s.store.FindByID(s.ctx, cert.ID)
	s.Require().NoError(err)
	s.Equal("Renamed", found.FullName)
	s.Empty(found.PDFURL)

	s.ErrorIs(s.store.Update(s.ctx, s.newCert("666", "Y", 0)), sentinel.ErrNotFound)
}
