package main

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"certverify/internal/auth/store/revocation"
	userstore "certverify/internal/auth/store/user"
	certstore "certverify/internal/certificate/store"
	"certverify/internal/platform/config"
	authmw "certverify/pkg/platform/middleware/auth"
	"certverify/pkg/testutil"
)

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	cfg := config.Server{
		CertificatesDir: t.TempDir(),
		MaxUploadBytes:  config.DefaultMaxUploadBytes,
		Auth: config.AuthConfig{
			JWTSecret: "test-secret",
			JWTIssuer: config.DefaultIssuer,
			TokenTTL:  time.Hour,
		},
		Bootstrap: config.BootstrapConfig{
			AdminEmail:    "admin@example.com",
			AdminPassword: "correct-password",
		},
	}
	deps := &dependencies{
		users:       userstore.New(),
		certs:       certstore.NewInMemory(),
		revocations: revocation.NewInMemoryTRL(),
	}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	app, err := newApplication(context.Background(), cfg, deps, log, prometheus.NewRegistry())
	require.NoError(t, err)
	return app.Router()
}

func sessionCookie(t *testing.T, rr *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range rr.Result().Cookies() {
		if c.Name == authmw.CookieName {
			return c
		}
	}
	t.Fatalf("no %s cookie in response", authmw.CookieName)
	return nil
}

func TestCertificateLifecycle(t *testing.T) {
	router := newTestRouter(t)
	pdf := []byte("%PDF-1.7\nlifecycle test body")

	testutil.Given(t, "no session", func(t *testing.T) {
		for _, path := range []string{"/admin", "/api/admin/certificates", "/api/admin/certificates/anything"} {
			rr := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, path))
			assert.Equal(t, http.StatusSeeOther, rr.Code, path)
			assert.Equal(t, "/", rr.Header().Get("Location"), path)
		}

		rr := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/administrator"))
		assert.Equal(t, http.StatusNotFound, rr.Code)
	})

	var cookie *http.Cookie
	testutil.When(t, "the administrator logs in", func(t *testing.T) {
		rr := testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodPost, "/api/auth/login", map[string]string{
			"email":    "admin@example.com",
			"password": "correct-password",
		}))
		require.Equal(t, http.StatusOK, rr.Code)
		cookie = sessionCookie(t, rr)
		assert.True(t, cookie.HttpOnly)
	})
	require.NotNil(t, cookie)

	var pdfURL string
	testutil.Then(t, "a certificate with a PDF can be created", func(t *testing.T) {
		req := testutil.NewMultipartRequest(t, http.MethodPost, "/api/admin/certificates", map[string]string{
			"dni":        "12345678",
			"fullName":   "Ana Perez",
			"course":     "Safety 101",
			"company":    "ACME",
			"issueDate":  "2024-01-01",
			"expiryDate": "2999-01-01",
		}, &testutil.FilePart{Field: "pdfFile", FileName: "cert.pdf", ContentType: "application/pdf", Content: pdf})
		req.AddCookie(cookie)
		rr := testutil.DoRequest(router, req)
		require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

		body := testutil.UnmarshalResponse[struct {
			Certificate struct {
				PDFURL string `json:"pdfUrl"`
			} `json:"certificate"`
		}](t, rr)
		pdfURL = body.Certificate.PDFURL
		assert.Regexp(t, `^/api/certificates/download/12345678-Safety_101-\d+\.pdf$`, pdfURL)
	})

	testutil.Then(t, "the public can find and download it", func(t *testing.T) {
		rr := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/api/certificates/search?dni=12345678"))
		require.Equal(t, http.StatusOK, rr.Code)

		rr = testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, pdfURL))
		require.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, pdf, rr.Body.Bytes())
		assert.Equal(t, "application/pdf", rr.Header().Get("Content-Type"))
	})

	testutil.Then(t, "download paths outside the archive are rejected", func(t *testing.T) {
		for _, path := range []string{
			"/api/certificates/download/../../etc/passwd.pdf",
			"/api/certificates/download/..%2F..%2Fetc%2Fpasswd.pdf",
		} {
			rr := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, path))
			testutil.AssertStatusAndError(t, rr, http.StatusBadRequest, "bad_request")
		}
	})

	testutil.Then(t, "a duplicate is rejected", func(t *testing.T) {
		req := testutil.NewJSONRequest(t, http.MethodPost, "/api/admin/certificates", map[string]string{
			"dni":        "12345678",
			"fullName":   "Ana Perez",
			"course":     "Safety 101",
			"company":    "ACME",
			"issueDate":  "2024-01-01",
			"expiryDate": "2999-01-01",
		})
		req.AddCookie(cookie)
		rr := testutil.DoRequest(router, req)
		testutil.AssertStatusAndError(t, rr, http.StatusBadRequest, "duplicate")
	})

	testutil.When(t, "the administrator logs out", func(t *testing.T) {
		req := testutil.NewRequest(t, http.MethodPost, "/api/auth/logout")
		req.AddCookie(cookie)
		rr := testutil.DoRequest(router, req)
		require.Equal(t, http.StatusOK, rr.Code)
		assert.Less(t, sessionCookie(t, rr).MaxAge, 0)

		req = testutil.NewRequest(t, http.MethodGet, "/api/admin/certificates")
		req.AddCookie(cookie)
		rr = testutil.DoRequest(router, req)
		assert.Equal(t, http.StatusSeeOther, rr.Code)
	})
}

func TestOperationalEndpoints(t *testing.T) {
	router := newTestRouter(t)

	rr := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/"))
	testutil.AssertStatusOK(t, rr)
	testutil.AssertJSONContains(t, rr, "status", "ok")

	rr = testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/health"))
	testutil.AssertStatusOK(t, rr)

	rr = testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/metrics"))
	testutil.AssertStatusOK(t, rr)
	assert.Contains(t, rr.Body.String(), "certverify_http_request_duration_seconds")
}
