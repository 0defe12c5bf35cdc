package models

import (
	"strings"
	"time"

	id "certverify/pkg/domain"
)

// DownloadPathPrefix is prepended to archive file names to form a certificate's pdfUrl.
const DownloadPathPrefix = "/api/certificates/download/"

// Certificate is a course completion record tied to a holder's identity number.
type Certificate struct {
	ID         id.CertificateID `json:"id"`
	DNI        string           `json:"dni"`
	FullName   string           `json:"fullName"`
	Course     string           `json:"course"`
	Company    string           `json:"company"`
	IssueDate  time.Time        `json:"issueDate"`
	ExpiryDate time.Time        `json:"expiryDate"`
	PDFURL     string           `json:"pdfUrl,omitempty"`
	IsActive   bool             `json:"isActive"`
	CreatedAt  time.Time        `json:"createdAt"`
	UpdatedAt  time.Time        `json:"updatedAt"`
}

// IsValidAt reports whether the certificate has not expired on the calendar
// day containing now (UTC). A certificate expiring today is still valid.
func (c *Certificate) IsValidAt(now time.Time) bool {
	return !c.ExpiryDate.Before(StartOfDay(now))
}

// FileName returns the archive name referenced by PDFURL, or "" when there is none.
func (c *Certificate) FileName() string {
	return FileNameFromURL(c.PDFURL)
}

// DownloadPath builds the pdfUrl for an archive file name.
func DownloadPath(fileName string) string {
	return DownloadPathPrefix + fileName
}

// FileNameFromURL extracts the archive name from a pdfUrl.
func FileNameFromURL(url string) string {
	name, ok := strings.CutPrefix(url, DownloadPathPrefix)
	if !ok {
		return ""
	}
	return name
}

// StartOfDay truncates t to midnight UTC.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ListFilter narrows the admin listing.
type ListFilter struct {
	IncludeInactive bool
}
