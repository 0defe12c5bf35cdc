package models

import (
	"fmt"
	"io"
	"strings"
	"time"

	dErrors "certverify/pkg/domain-errors"
)

const (
	ContentTypePDF = "application/pdf"
	// MaxUploadBytes is the default size limit for a certificate PDF (10 MiB).
	MaxUploadBytes = 10 << 20
)

// Upload is a PDF file received alongside a create or update request.
type Upload struct {
	FileName    string
	ContentType string
	Size        int64
	Content     io.Reader
}

// Validate enforces the declared media type and the size limit.
func (u *Upload) Validate(maxBytes int64) error {
	if u.ContentType != ContentTypePDF {
		return dErrors.New(dErrors.CodeUnsupportedMediaType, "only PDF files are allowed")
	}
	if u.Size > maxBytes {
		return dErrors.New(dErrors.CodePayloadTooLarge, fmt.Sprintf("file exceeds the maximum size of %d bytes", maxBytes))
	}
	if u.Size == 0 || u.Content == nil {
		return dErrors.New(dErrors.CodeValidation, "file is empty")
	}
	return nil
}

// maxCourseInFileName bounds the course segment so a generated name stays
// under the 255-byte file name limit with a 20-character dni.
const maxCourseInFileName = 200

// GenerateFileName returns "{dni}-{course}-{unixMillis}.pdf" where every
// character of course outside [A-Za-z0-9] becomes "_". The course segment is
// cut to its first 200 characters.
func GenerateFileName(dni, course string, at time.Time) string {
	sanitized := SanitizeCourse(course)
	if len(sanitized) > maxCourseInFileName {
		sanitized = sanitized[:maxCourseInFileName]
	}
	return fmt.Sprintf("%s-%s-%d.pdf", dni, sanitized, at.UnixMilli())
}

// SanitizeCourse replaces every non-alphanumeric character with "_".
func SanitizeCourse(course string) string {
	return strings.Map(func(r rune) rune {
		if r < 128 && isAlnum(byte(r)) {
			return r
		}
		return '_'
	}, course)
}
