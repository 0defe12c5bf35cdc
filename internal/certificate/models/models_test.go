package models

import (
	"bytes"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "certverify/pkg/domain-errors"
)

func validInput() CertificateInput {
	return CertificateInput{
		DNI:        "12345678",
		FullName:   "Ana Pérez",
		Course:     "Safety 101",
		Company:    "Acme",
		IssueDate:  "2024-01-15",
		ExpiryDate: "2026-01-15",
	}
}

func TestCertificateInputValidate(t *testing.T) {
	t.Run("valid input", func(t *testing.T) {
		in := validInput()
		require.NoError(t, in.Validate())

		issue, expiry := in.Dates()
		assert.Equal(t, time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC), issue)
		assert.Equal(t, time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC), expiry)
	})

	t.Run("normalize trims before validation", func(t *testing.T) {
		in := validInput()
		in.DNI = "  12345678 "
		in.Course = " Safety 101\t"
		in.Normalize()
		require.NoError(t, in.Validate())
		assert.Equal(t, "12345678", in.DNI)
		assert.Equal(t, "Safety 101", in.Course)
	})

	cases := []struct {
		name   string
		mutate func(*CertificateInput)
	}{
		{"missing dni", func(in *CertificateInput) { in.DNI = "" }},
		{"missing company", func(in *CertificateInput) { in.Company = "" }},
		{"dni with path characters", func(in *CertificateInput) { in.DNI = "../etc" }},
		{"dni with spaces", func(in *CertificateInput) { in.DNI = "123 456" }},
		{"dni too long", func(in *CertificateInput) { in.DNI = strings.Repeat("9", 21) }},
		{"course too long", func(in *CertificateInput) { in.Course = strings.Repeat("c", 256) }},
		{"bad issue date", func(in *CertificateInput) { in.IssueDate = "15/01/2024" }},
		{"bad expiry date", func(in *CertificateInput) { in.ExpiryDate = "soon" }},
		{"expiry before issue", func(in *CertificateInput) { in.ExpiryDate = "2023-12-31" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in := validInput()
			tc.mutate(&in)
			err := in.Validate()
			require.Error(t, err)
			assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
		})
	}

	t.Run("same-day expiry is allowed", func(t *testing.T) {
		in := validInput()
		in.ExpiryDate = in.IssueDate
		assert.NoError(t, in.Validate())
	})
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2025-03-09")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 3, 9, 0, 0, 0, 0, time.UTC), d)

	d, err = ParseDate("2025-03-09T22:30:00Z")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 3, 9, 0, 0, 0, 0, time.UTC), d)

	_, err = ParseDate("2025-13-01")
	assert.Error(t, err)
}

func TestIsValidAt(t *testing.T) {
	c := &Certificate{ExpiryDate: time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC)}

	assert.True(t, c.IsValidAt(time.Date(2025, 6, 29, 12, 0, 0, 0, time.UTC)))
	assert.True(t, c.IsValidAt(time.Date(2025, 6, 30, 23, 59, 0, 0, time.UTC)), "expires at end of its last day")
	assert.False(t, c.IsValidAt(time.Date(2025, 7, 1, 0, 0, 1, 0, time.UTC)))
}

func TestGenerateFileName(t *testing.T) {
	at := time.UnixMilli(1718000000123)

	assert.Equal(t, "12345678-Safety_101-1718000000123.pdf", GenerateFileName("12345678", "Safety 101", at))
	assert.Equal(t, "1-Trabajo_en_altura___nivel_2-1718000000123.pdf", GenerateFileName("1", "Trabajo en altura - nivel 2", at))
	assert.Equal(t, "X-C__-1718000000123.pdf", GenerateFileName("X", "C++", at))
	assert.Equal(t, "X-Se_or-1718000000123.pdf", GenerateFileName("X", "Señor", at))

	pattern := regexp.MustCompile(`^12345678-Safety_101-\d+\.pdf$`)
	assert.Regexp(t, pattern, GenerateFileName("12345678", "Safety 101", time.Now()))

	t.Run("longest valid input fits a file name", func(t *testing.T) {
		dni := strings.Repeat("9", MaxDNILength)
		course := strings.Repeat("c", MaxTextLength)

		name := GenerateFileName(dni, course, at)
		assert.LessOrEqual(t, len(name), 255)
		assert.Equal(t, dni+"-"+strings.Repeat("c", 200)+"-1718000000123.pdf", name)
	})
}

func TestDownloadPathRoundTrip(t *testing.T) {
	name := "12345678-Safety_101-1.pdf"
	c := &Certificate{PDFURL: DownloadPath(name)}
	assert.Equal(t, "/api/certificates/download/12345678-Safety_101-1.pdf", c.PDFURL)
	assert.Equal(t, name, c.FileName())
	assert.Empty(t, FileNameFromURL("https://elsewhere/x.pdf"))
}

func TestUploadValidate(t *testing.T) {
	pdf := func(size int64, contentType string) *Upload {
		return &Upload{FileName: "c.pdf", ContentType: contentType, Size: size, Content: bytes.NewReader([]byte("%PDF"))}
	}

	assert.NoError(t, pdf(4, ContentTypePDF).Validate(MaxUploadBytes))
	assert.NoError(t, pdf(MaxUploadBytes, ContentTypePDF).Validate(MaxUploadBytes))

	err := pdf(4, "image/png").Validate(MaxUploadBytes)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnsupportedMediaType))

	err = pdf(4, "application/pdf; charset=binary").Validate(MaxUploadBytes)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnsupportedMediaType))

	err = pdf(MaxUploadBytes+1, ContentTypePDF).Validate(MaxUploadBytes)
	assert.True(t, dErrors.HasCode(err, dErrors.CodePayloadTooLarge))

	err = pdf(0, ContentTypePDF).Validate(MaxUploadBytes)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
}
