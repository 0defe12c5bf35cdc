package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"certverify/internal/archive"
	"certverify/internal/certificate/metrics"
	"certverify/internal/certificate/models"
	id "certverify/pkg/domain"
	dErrors "certverify/pkg/domain-errors"
	"certverify/pkg/platform/sentinel"
	"certverify/pkg/requestcontext"
)

const tracerName = "certverify/internal/certificate/service"

// Store persists certificate records. Conflicts on an active (dni, course)
// pair surface as sentinel.ErrAlreadyUsed; missing rows as sentinel.ErrNotFound.
type Store interface {
	Create(ctx context.Context, cert *models.Certificate) error
	Update(ctx context.Context, cert *models.Certificate) error
	FindByID(ctx context.Context, certID id.CertificateID) (*models.Certificate, error)
	FindActiveByDNI(ctx context.Context, dni string) ([]*models.Certificate, error)
	FindActiveByDNIAndCourse(ctx context.Context, dni, course string) (*models.Certificate, error)
	List(ctx context.Context, includeInactive bool) ([]*models.Certificate, error)
	Deactivate(ctx context.Context, certID id.CertificateID, at time.Time) error
}

// Archive stores certificate PDFs by file name.
type Archive interface {
	Store(ctx context.Context, name string, r io.Reader) error
	Open(ctx context.Context, name string) (io.ReadCloser, int64, error)
	Delete(ctx context.Context, name string) error
}

// Service orchestrates the certificate lifecycle across the record store and the file archive.
type Service struct {
	store          Store
	archive        Archive
	logger         *slog.Logger
	metrics        *metrics.Metrics
	tracer         trace.Tracer
	maxUploadBytes int64
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithTracer(tracer trace.Tracer) Option {
	return func(s *Service) {
		s.tracer = tracer
	}
}

func WithMaxUploadBytes(n int64) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxUploadBytes = n
		}
	}
}

func New(store Store, archive Archive, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("certificate store is required")
	}
	if archive == nil {
		return nil, errors.New("archive is required")
	}
	svc := &Service{
		store:          store,
		archive:        archive,
		maxUploadBytes: models.MaxUploadBytes,
	}
	for _, opt := range opts {
		opt(svc)
	}
	if svc.logger == nil {
		svc.logger = slog.Default()
	}
	if svc.tracer == nil {
		svc.tracer = otel.Tracer(tracerName)
	}
	return svc, nil
}

// List returns certificates newest first, active only unless the filter says otherwise.
func (s *Service) List(ctx context.Context, filter models.ListFilter) (certs []*models.Certificate, err error) {
	ctx, span, start := s.begin(ctx, "list", attribute.Bool("certificate.include_inactive", filter.IncludeInactive))
	defer func() { s.end(span, "list", start, err) }()

	certs, err = s.store.List(ctx, filter.IncludeInactive)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list certificates")
	}
	if certs == nil {
		certs = []*models.Certificate{}
	}
	return certs, nil
}

// Search returns the valid certificates of a holder, newest first. Expired
// certificates are never returned: a holder with only expired ones gets AllExpired.
func (s *Service) Search(ctx context.Context, dni string) (certs []*models.Certificate, err error) {
	ctx, span, start := s.begin(ctx, "search")
	defer func() { s.end(span, "search", start, err) }()

	dni = strings.TrimSpace(dni)
	if err := models.ValidateDNI(dni); err != nil {
		return nil, err
	}

	active, err := s.store.FindActiveByDNI(ctx, dni)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to search certificates")
	}
	if len(active) == 0 {
		s.countSearch("not_found")
		return nil, dErrors.New(dErrors.CodeNotFound, "no certificates found for this DNI")
	}

	now := requestcontext.Now(ctx)
	valid := make([]*models.Certificate, 0, len(active))
	for _, c := range active {
		if c.IsValidAt(now) {
			valid = append(valid, c)
		}
	}
	if len(valid) == 0 {
		s.countSearch("all_expired")
		return nil, dErrors.New(dErrors.CodeAllExpired, "no valid certificates found for this DNI; all have expired")
	}

	s.countSearch("found")
	span.SetAttributes(attribute.Int("certificate.results", len(valid)))
	return valid, nil
}

// Get returns an active certificate by id.
func (s *Service) Get(ctx context.Context, certID id.CertificateID) (cert *models.Certificate, err error) {
	ctx, span, start := s.begin(ctx, "get", attribute.String("certificate.id", certID.String()))
	defer func() { s.end(span, "get", start, err) }()

	return s.activeCertificate(ctx, certID)
}

// Create validates input, stores the optional PDF and persists a new active certificate.
// No file is written when validation or the duplicate check fails.
func (s *Service) Create(ctx context.Context, in models.CertificateInput, upload *models.Upload) (cert *models.Certificate, err error) {
	ctx, span, start := s.begin(ctx, "create", attribute.Bool("certificate.has_file", upload != nil))
	defer func() { s.end(span, "create", start, err) }()

	in.Normalize()
	if err := in.Validate(); err != nil {
		return nil, err
	}
	if upload != nil {
		if err := upload.Validate(s.maxUploadBytes); err != nil {
			return nil, err
		}
	}

	if err := s.ensureNoActiveDuplicate(ctx, in.DNI, in.Course, id.CertificateID{}); err != nil {
		return nil, err
	}

	now := requestcontext.Now(ctx).UTC()
	issue, expiry := in.Dates()
	cert = &models.Certificate{
		ID:         id.CertificateID(uuid.New()),
		DNI:        in.DNI,
		FullName:   in.FullName,
		Course:     in.Course,
		Company:    in.Company,
		IssueDate:  issue,
		ExpiryDate: expiry,
		IsActive:   true,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	var fileName string
	if upload != nil {
		fileName, err = s.storeFile(ctx, cert.DNI, cert.Course, upload, now)
		if err != nil {
			return nil, err
		}
		cert.PDFURL = models.DownloadPath(fileName)
	}

	if err := s.store.Create(ctx, cert); err != nil {
		s.discardFile(ctx, fileName)
		if errors.Is(err, sentinel.ErrAlreadyUsed) {
			return nil, duplicateError()
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create certificate")
	}

	if s.metrics != nil {
		s.metrics.IncrementCreated()
	}
	s.logger.InfoContext(ctx, "certificate created",
		"certificate_id", cert.ID.String(),
		"has_file", fileName != "",
		"admin_id", requestcontext.UserID(ctx).String(),
		"request_id", requestcontext.RequestID(ctx),
	)
	return cert, nil
}

// Update replaces the editable fields of an active certificate and, when a new
// PDF is supplied, swaps the stored file. The previous file is removed only
// after the record points at the new one.
func (s *Service) Update(ctx context.Context, certID id.CertificateID, in models.CertificateInput, upload *models.Upload) (cert *models.Certificate, err error) {
	ctx, span, start := s.begin(ctx, "update",
		attribute.String("certificate.id", certID.String()),
		attribute.Bool("certificate.has_file", upload != nil),
	)
	defer func() { s.end(span, "update", start, err) }()

	existing, err := s.activeCertificate(ctx, certID)
	if err != nil {
		return nil, err
	}

	in.Normalize()
	if err := in.Validate(); err != nil {
		return nil, err
	}
	if upload != nil {
		if err := upload.Validate(s.maxUploadBytes); err != nil {
			return nil, err
		}
	}
	if in.DNI != existing.DNI || in.Course != existing.Course {
		if err := s.ensureNoActiveDuplicate(ctx, in.DNI, in.Course, certID); err != nil {
			return nil, err
		}
	}

	now := requestcontext.Now(ctx).UTC()
	issue, expiry := in.Dates()
	updated := *existing
	updated.DNI = in.DNI
	updated.FullName = in.FullName
	updated.Course = in.Course
	updated.Company = in.Company
	updated.IssueDate = issue
	updated.ExpiryDate = expiry
	updated.UpdatedAt = now

	oldFile := existing.FileName()
	var newFile string
	if upload != nil {
		newFile, err = s.storeFile(ctx, updated.DNI, updated.Course, upload, now)
		if err != nil {
			return nil, err
		}
		updated.PDFURL = models.DownloadPath(newFile)
	}

	if err := s.store.Update(ctx, &updated); err != nil {
		s.discardFile(ctx, newFile)
		switch {
		case errors.Is(err, sentinel.ErrAlreadyUsed):
			return nil, duplicateError()
		case errors.Is(err, sentinel.ErrNotFound):
			return nil, notFoundError()
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to update certificate")
	}

	if newFile != "" && oldFile != "" && oldFile != newFile {
		s.removeFile(ctx, oldFile, certID)
	}

	if s.metrics != nil {
		s.metrics.IncrementUpdated()
	}
	s.logger.InfoContext(ctx, "certificate updated",
		"certificate_id", certID.String(),
		"file_replaced", newFile != "",
		"admin_id", requestcontext.UserID(ctx).String(),
		"request_id", requestcontext.RequestID(ctx),
	)
	return &updated, nil
}

// Delete soft-deletes an active certificate, then removes its file. A file that
// cannot be removed is logged; a record that cannot be deactivated keeps its file.
func (s *Service) Delete(ctx context.Context, certID id.CertificateID) (err error) {
	ctx, span, start := s.begin(ctx, "delete", attribute.String("certificate.id", certID.String()))
	defer func() { s.end(span, "delete", start, err) }()

	cert, err := s.activeCertificate(ctx, certID)
	if err != nil {
		return err
	}

	fileName := cert.FileName()
	if err := s.store.Deactivate(ctx, certID, requestcontext.Now(ctx).UTC()); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return notFoundError()
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to delete certificate")
	}
	// The record no longer references the file.
	if fileName != "" {
		s.removeFile(ctx, fileName, certID)
	}

	if s.metrics != nil {
		s.metrics.IncrementDeleted()
	}
	s.logger.InfoContext(ctx, "certificate deleted",
		"certificate_id", certID.String(),
		"admin_id", requestcontext.UserID(ctx).String(),
		"request_id", requestcontext.RequestID(ctx),
	)
	return nil
}

// OpenFile returns the stored PDF called name and its size.
func (s *Service) OpenFile(ctx context.Context, name string) (rc io.ReadCloser, size int64, err error) {
	ctx, span, start := s.begin(ctx, "download")
	defer func() { s.end(span, "download", start, err) }()

	rc, size, err = s.archive.Open(ctx, name)
	if err != nil {
		switch {
		case errors.Is(err, archive.ErrInvalidName):
			return nil, 0, dErrors.New(dErrors.CodeBadRequest, "invalid file name")
		case errors.Is(err, sentinel.ErrNotFound):
			return nil, 0, dErrors.New(dErrors.CodeNotFound, "file not found")
		}
		return nil, 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to open file")
	}
	if s.metrics != nil {
		s.metrics.IncrementDownloads()
	}
	return rc, size, nil
}

func (s *Service) activeCertificate(ctx context.Context, certID id.CertificateID) (*models.Certificate, error) {
	if certID.IsNil() {
		return nil, notFoundError()
	}
	cert, err := s.store.FindByID(ctx, certID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, notFoundError()
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load certificate")
	}
	if !cert.IsActive {
		return nil, notFoundError()
	}
	return cert, nil
}

func (s *Service) ensureNoActiveDuplicate(ctx context.Context, dni, course string, self id.CertificateID) error {
	existing, err := s.store.FindActiveByDNIAndCourse(ctx, dni, course)
	switch {
	case err == nil:
		if existing.ID != self {
			return duplicateError()
		}
		return nil
	case errors.Is(err, sentinel.ErrNotFound):
		return nil
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to check for duplicate certificate")
	}
}

func (s *Service) storeFile(ctx context.Context, dni, course string, upload *models.Upload, at time.Time) (string, error) {
	name := models.GenerateFileName(dni, course, at)
	err := s.archive.Store(ctx, name, &cappedReader{r: upload.Content, remaining: s.maxUploadBytes})
	if err == nil {
		return name, nil
	}
	switch {
	case errors.Is(err, errTooLarge):
		return "", dErrors.New(dErrors.CodePayloadTooLarge, "file exceeds the maximum upload size")
	case errors.Is(err, sentinel.ErrAlreadyUsed):
		return "", dErrors.New(dErrors.CodeConflict, "a file with the same name was just stored; retry the request")
	case errors.Is(err, archive.ErrInvalidName):
		return "", dErrors.New(dErrors.CodeValidation, "dni and course do not form a valid file name")
	}
	s.logger.ErrorContext(ctx, "failed to store certificate file",
		"error", err,
		"file", name,
		"request_id", requestcontext.RequestID(ctx),
	)
	return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to store file")
}

// discardFile removes a file written for a request that then failed.
func (s *Service) discardFile(ctx context.Context, name string) {
	if name == "" {
		return
	}
	if err := s.archive.Delete(ctx, name); err != nil && !errors.Is(err, sentinel.ErrNotFound) {
		s.logger.WarnContext(ctx, "failed to discard orphaned certificate file",
			"error", err,
			"file", name,
			"request_id", requestcontext.RequestID(ctx),
		)
	}
}

func (s *Service) removeFile(ctx context.Context, name string, certID id.CertificateID) {
	err := s.archive.Delete(ctx, name)
	if err == nil {
		return
	}
	level := slog.LevelWarn
	if errors.Is(err, sentinel.ErrNotFound) {
		level = slog.LevelDebug
	}
	s.logger.Log(ctx, level, "failed to delete certificate file",
		"error", err,
		"file", name,
		"certificate_id", certID.String(),
		"request_id", requestcontext.RequestID(ctx),
	)
}

func (s *Service) begin(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, trace.Span, time.Time) {
	ctx, span := s.tracer.Start(ctx, "certificate."+op, trace.WithAttributes(attrs...))
	return ctx, span, time.Now()
}

func (s *Service) end(span trace.Span, op string, start time.Time, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(dErrors.CodeOf(err)))
	}
	span.End()
	if s.metrics != nil {
		s.metrics.ObserveOperation(op, start)
	}
}

func (s *Service) countSearch(outcome string) {
	if s.metrics != nil {
		s.metrics.IncrementSearch(outcome)
	}
}

func duplicateError() error {
	return dErrors.New(dErrors.CodeDuplicate, "an active certificate already exists for this DNI and course")
}

func notFoundError() error {
	return dErrors.New(dErrors.CodeNotFound, "certificate not found")
}

var errTooLarge = errors.New("upload exceeds size limit")

// cappedReader fails once more than remaining bytes have been read.
type cappedReader struct {
	r         io.Reader
	remaining int64
}

func (c *cappedReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.remaining -= int64(n)
	if c.remaining < 0 {
		return n, errTooLarge
	}
	return n, err
}
