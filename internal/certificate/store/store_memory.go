package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"certverify/internal/certificate/models"
	id "certverify/pkg/domain"
	"certverify/pkg/platform/sentinel"
)

// InMemoryStore keeps certificates in memory. The (dni, course) uniqueness
// among active certificates is checked under the same lock as the write.
type InMemoryStore struct {
	mu    sync.RWMutex
	certs map[id.CertificateID]*models.Certificate
}

func NewInMemory() *InMemoryStore {
	return &InMemoryStore{certs: make(map[id.CertificateID]*models.Certificate)}
}

func (s *InMemoryStore) Create(_ context.Context, cert *models.Certificate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.certs[cert.ID]; exists {
		return sentinel.ErrConflict
	}
	if cert.IsActive && s.activeConflict(cert) {
		return sentinel.ErrAlreadyUsed
	}
	stored := *cert
	s.certs[cert.ID] = &stored
	return nil
}

func (s *InMemoryStore) Update(_ context.Context, cert *models.Certificate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.certs[cert.ID]; !exists {
		return sentinel.ErrNotFound
	}
	if cert.IsActive && s.activeConflict(cert) {
		return sentinel.ErrAlreadyUsed
	}
	stored := *cert
	s.certs[cert.ID] = &stored
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, certID id.CertificateID) (*models.Certificate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.certs[certID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	found := *c
	return &found, nil
}

// FindActiveByDNI returns active certificates for dni, newest first.
func (s *InMemoryStore) FindActiveByDNI(_ context.Context, dni string) ([]*models.Certificate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.Certificate
	for _, c := range s.certs {
		if c.IsActive && c.DNI == dni {
			found := *c
			out = append(out, &found)
		}
	}
	sortNewestFirst(out)
	return out, nil
}

func (s *InMemoryStore) FindActiveByDNIAndCourse(_ context.Context, dni, course string) (*models.Certificate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, c := range s.certs {
		if c.IsActive && c.DNI == dni && c.Course == course {
			found := *c
			return &found, nil
		}
	}
	return nil, sentinel.ErrNotFound
}

// List returns certificates newest first; inactive ones only when includeInactive.
func (s *InMemoryStore) List(_ context.Context, includeInactive bool) ([]*models.Certificate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.Certificate, 0, len(s.certs))
	for _, c := range s.certs {
		if c.IsActive || includeInactive {
			found := *c
			out = append(out, &found)
		}
	}
	sortNewestFirst(out)
	return out, nil
}

// Deactivate soft-deletes an active certificate and clears its file reference.
func (s *InMemoryStore) Deactivate(_ context.Context, certID id.CertificateID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.certs[certID]
	if !ok || !c.IsActive {
		return sentinel.ErrNotFound
	}
	c.IsActive = false
	c.PDFURL = ""
	c.UpdatedAt = at
	return nil
}

func (s *InMemoryStore) activeConflict(cert *models.Certificate) bool {
	for _, c := range s.certs {
		if c.ID != cert.ID && c.IsActive && c.DNI == cert.DNI && c.Course == cert.Course {
			return true
		}
	}
	return false
}

func sortNewestFirst(certs []*models.Certificate) {
	sort.SliceStable(certs, func(i, j int) bool {
		if certs[i].CreatedAt.Equal(certs[j].CreatedAt) {
			return certs[i].ID.String() > certs[j].ID.String()
		}
		return certs[i].CreatedAt.After(certs[j].CreatedAt)
	})
}
