package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"certverify/internal/certificate/models"
	id "certverify/pkg/domain"
	"certverify/pkg/platform/sentinel"
)

const uniqueViolation = "23505"

const selectColumns = `
	SELECT id, dni, full_name, course, company, issue_date, expiry_date,
	       pdf_url, is_active, created_at, updated_at
	FROM certificates`

// PostgresStore persists certificates in PostgreSQL. Uniqueness of (dni, course)
// among active rows is enforced by a partial unique index.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Create(ctx context.Context, cert *models.Certificate) error {
	query := `
		INSERT INTO certificates (id, dni, full_name, course, company, issue_date, expiry_date,
		                          pdf_url, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err := s.db.ExecContext(ctx, query,
		cert.ID.String(), cert.DNI, cert.FullName, cert.Course, cert.Company,
		cert.IssueDate, cert.ExpiryDate, nullString(cert.PDFURL), cert.IsActive,
		cert.CreatedAt, cert.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return sentinel.ErrAlreadyUsed
		}
		return fmt.Errorf("insert certificate: %w", err)
	}
	return nil
}

func (s *PostgresStore) Update(ctx context.Context, cert *models.Certificate) error {
	query := `
		UPDATE certificates SET
			dni = $2, full_name = $3, course = $4, company = $5,
			issue_date = $6, expiry_date = $7, pdf_url = $8, is_active = $9, updated_at = $10
		WHERE id = $1
	`
	res, err := s.db.ExecContext(ctx, query,
		cert.ID.String(), cert.DNI, cert.FullName, cert.Course, cert.Company,
		cert.IssueDate, cert.ExpiryDate, nullString(cert.PDFURL), cert.IsActive, cert.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return sentinel.ErrAlreadyUsed
		}
		return fmt.Errorf("update certificate: %w", err)
	}
	return expectOneRow(res)
}

func (s *PostgresStore) FindByID(ctx context.Context, certID id.CertificateID) (*models.Certificate, error) {
	row := s.db.QueryRowContext(ctx, selectColumns+` WHERE id = $1`, certID.String())
	cert, err := scanCertificate(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find certificate: %w", err)
	}
	return cert, nil
}

func (s *PostgresStore) FindActiveByDNI(ctx context.Context, dni string) ([]*models.Certificate, error) {
	return s.query(ctx, selectColumns+` WHERE dni = $1 AND is_active ORDER BY created_at DESC, id DESC`, dni)
}

func (s *PostgresStore) FindActiveByDNIAndCourse(ctx context.Context, dni, course string) (*models.Certificate, error) {
	row := s.db.QueryRowContext(ctx, selectColumns+` WHERE dni = $1 AND course = $2 AND is_active`, dni, course)
	cert, err := scanCertificate(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find certificate by dni and course: %w", err)
	}
	return cert, nil
}

func (s *PostgresStore) List(ctx context.Context, includeInactive bool) ([]*models.Certificate, error) {
	if includeInactive {
		return s.query(ctx, selectColumns+` ORDER BY created_at DESC, id DESC`)
	}
	return s.query(ctx, selectColumns+` WHERE is_active ORDER BY created_at DESC, id DESC`)
}

func (s *PostgresStore) Deactivate(ctx context.Context, certID id.CertificateID, at time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE certificates SET is_active = FALSE, pdf_url = NULL, updated_at = $2
		WHERE id = $1 AND is_active
	`, certID.String(), at)
	if err != nil {
		return fmt.Errorf("deactivate certificate: %w", err)
	}
	return expectOneRow(res)
}

func (s *PostgresStore) query(ctx context.Context, query string, args ...any) ([]*models.Certificate, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query certificates: %w", err)
	}
	defer rows.Close()

	var out []*models.Certificate
	for rows.Next() {
		cert, err := scanCertificate(rows)
		if err != nil {
			return nil, fmt.Errorf("scan certificate: %w", err)
		}
		out = append(out, cert)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate certificates: %w", err)
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanCertificate(row scanner) (*models.Certificate, error) {
	var (
		c      models.Certificate
		rawID  string
		pdfURL sql.NullString
	)
	if err := row.Scan(&rawID, &c.DNI, &c.FullName, &c.Course, &c.Company,
		&c.IssueDate, &c.ExpiryDate, &pdfURL, &c.IsActive, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	certID, err := id.ParseCertificateID(rawID)
	if err != nil {
		return nil, fmt.Errorf("parse certificate id: %w", err)
	}
	c.ID = certID
	c.PDFURL = pdfURL.String
	c.IssueDate = models.StartOfDay(c.IssueDate)
	c.ExpiryDate = models.StartOfDay(c.ExpiryDate)
	return &c, nil
}

func expectOneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
