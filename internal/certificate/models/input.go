package models

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	dErrors "certverify/pkg/domain-errors"
)

const (
	MaxDNILength  = 20
	MaxTextLength = 255
	dateLayout    = "2006-01-02"
)

// CertificateInput carries the user-editable fields of a certificate, as
// received from a JSON body or a multipart form. Dates are YYYY-MM-DD or RFC 3339.
type CertificateInput struct {
	DNI        string `json:"dni"`
	FullName   string `json:"fullName"`
	Course     string `json:"course"`
	Company    string `json:"company"`
	IssueDate  string `json:"issueDate"`
	ExpiryDate string `json:"expiryDate"`
}

// Normalize trims surrounding whitespace from every field.
func (in *CertificateInput) Normalize() {
	in.DNI = strings.TrimSpace(in.DNI)
	in.FullName = strings.TrimSpace(in.FullName)
	in.Course = strings.TrimSpace(in.Course)
	in.Company = strings.TrimSpace(in.Company)
	in.IssueDate = strings.TrimSpace(in.IssueDate)
	in.ExpiryDate = strings.TrimSpace(in.ExpiryDate)
}

func (in *CertificateInput) Validate() error {
	if in.DNI == "" || in.FullName == "" || in.Course == "" || in.Company == "" ||
		in.IssueDate == "" || in.ExpiryDate == "" {
		return dErrors.New(dErrors.CodeValidation, "all fields are required: dni, fullName, course, company, issueDate, expiryDate")
	}
	if err := ValidateDNI(in.DNI); err != nil {
		return err
	}
	for _, f := range []struct{ name, value string }{
		{"fullName", in.FullName},
		{"course", in.Course},
		{"company", in.Company},
	} {
		if utf8.RuneCountInString(f.value) > MaxTextLength {
			return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("%s must be at most %d characters", f.name, MaxTextLength))
		}
	}

	issue, err := ParseDate(in.IssueDate)
	if err != nil {
		return dErrors.New(dErrors.CodeValidation, "issueDate must be a date (YYYY-MM-DD)")
	}
	expiry, err := ParseDate(in.ExpiryDate)
	if err != nil {
		return dErrors.New(dErrors.CodeValidation, "expiryDate must be a date (YYYY-MM-DD)")
	}
	if expiry.Before(issue) {
		return dErrors.New(dErrors.CodeValidation, "expiryDate must not be before issueDate")
	}
	return nil
}

// Dates returns the parsed issue and expiry dates. Call after Validate.
func (in *CertificateInput) Dates() (issue, expiry time.Time) {
	issue, _ = ParseDate(in.IssueDate)
	expiry, _ = ParseDate(in.ExpiryDate)
	return issue, expiry
}

// ValidateDNI checks that dni is 1 to 20 ASCII letters or digits.
func ValidateDNI(dni string) error {
	if dni == "" {
		return dErrors.New(dErrors.CodeValidation, "dni is required")
	}
	if len(dni) > MaxDNILength {
		return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("dni must be at most %d characters", MaxDNILength))
	}
	for i := 0; i < len(dni); i++ {
		if !isAlnum(dni[i]) {
			return dErrors.New(dErrors.CodeValidation, "dni may only contain letters and digits")
		}
	}
	return nil
}

// ParseDate accepts YYYY-MM-DD or RFC 3339 and returns midnight UTC of that calendar date.
func ParseDate(raw string) (time.Time, error) {
	if t, err := time.Parse(dateLayout, raw); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, err
	}
	return StartOfDay(t), nil
}

func isAlnum(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9')
}
