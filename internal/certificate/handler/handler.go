package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"certverify/internal/archive"
	"certverify/internal/certificate/models"
	id "certverify/pkg/domain"
	dErrors "certverify/pkg/domain-errors"
	"certverify/pkg/platform/httputil"
	"certverify/pkg/requestcontext"
)

const (
	// FileField is the multipart field carrying the certificate PDF.
	FileField = "pdfFile"
	// formOverhead is allowed on top of the upload limit for the other form fields.
	formOverhead = 1 << 20
)

// Service defines the certificate operations used by the HTTP layer.
type Service interface {
	List(ctx context.Context, filter models.ListFilter) ([]*models.Certificate, error)
	Search(ctx context.Context, dni string) ([]*models.Certificate, error)
	Get(ctx context.Context, certID id.CertificateID) (*models.Certificate, error)
	Create(ctx context.Context, in models.CertificateInput, upload *models.Upload) (*models.Certificate, error)
	Update(ctx context.Context, certID id.CertificateID, in models.CertificateInput, upload *models.Upload) (*models.Certificate, error)
	Delete(ctx context.Context, certID id.CertificateID) error
	OpenFile(ctx context.Context, name string) (io.ReadCloser, int64, error)
}

// Handler serves the admin certificate CRUD and the public search and download endpoints.
type Handler struct {
	certs          Service
	logger         *slog.Logger
	maxUploadBytes int64
}

func New(certs Service, logger *slog.Logger, maxUploadBytes int64) *Handler {
	if maxUploadBytes <= 0 {
		maxUploadBytes = models.MaxUploadBytes
	}
	return &Handler{
		certs:          certs,
		logger:         logger,
		maxUploadBytes: maxUploadBytes,
	}
}

// Register registers the certificate routes. Routes under /api/admin rely on
// the session gate mounted ahead of the router.
func (h *Handler) Register(r chi.Router) {
	r.Route("/api/admin/certificates", func(r chi.Router) {
		r.Get("/", h.HandleList)
		r.Post("/", h.HandleCreate)
		r.Get("/{id}", h.HandleGet)
		r.Put("/{id}", h.HandleUpdate)
		r.Delete("/{id}", h.HandleDelete)
	})
	r.Get("/api/certificates/search", h.HandleSearch)
	// Catch-all so names with extra segments are answered here rather than by NotFound.
	r.Get("/api/certificates/download/*", h.HandleDownload)
}

type listResponse struct {
	Certificates []*models.Certificate `json:"certificates"`
	Total        int                   `json:"total"`
}

type searchResponse struct {
	Certificates []*models.Certificate `json:"certificates"`
}

type certificateResponse struct {
	Message     string              `json:"message,omitempty"`
	Certificate *models.Certificate `json:"certificate"`
}

type messageResponse struct {
	Message string `json:"message"`
}

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	filter := models.ListFilter{}
	if raw := r.URL.Query().Get("includeInactive"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "includeInactive must be a boolean"))
			return
		}
		filter.IncludeInactive = v
	}

	certs, err := h.certs.List(ctx, filter)
	if err != nil {
		h.logFailure(ctx, "list certificates", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, listResponse{Certificates: certs, Total: len(certs)})
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	certID, ok := h.certificateID(w, r)
	if !ok {
		return
	}
	cert, err := h.certs.Get(ctx, certID)
	if err != nil {
		h.logFailure(ctx, "get certificate", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, certificateResponse{Certificate: cert})
}

func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	in, upload, cleanup, ok := h.readCertificateRequest(w, r)
	if !ok {
		return
	}
	defer cleanup()

	cert, err := h.certs.Create(ctx, *in, upload)
	if err != nil {
		h.logFailure(ctx, "create certificate", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, certificateResponse{
		Message:     "Certificate created successfully",
		Certificate: cert,
	})
}

func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	certID, ok := h.certificateID(w, r)
	if !ok {
		return
	}
	in, upload, cleanup, ok := h.readCertificateRequest(w, r)
	if !ok {
		return
	}
	defer cleanup()

	cert, err := h.certs.Update(ctx, certID, *in, upload)
	if err != nil {
		h.logFailure(ctx, "update certificate", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, certificateResponse{
		Message:     "Certificate updated successfully",
		Certificate: cert,
	})
}

func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	certID, ok := h.certificateID(w, r)
	if !ok {
		return
	}
	if err := h.certs.Delete(ctx, certID); err != nil {
		h.logFailure(ctx, "delete certificate", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, messageResponse{Message: "Certificate deleted successfully"})
}

// HandleSearch is the public lookup by DNI. Only currently valid certificates are returned.
func (h *Handler) HandleSearch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	certs, err := h.certs.Search(ctx, r.URL.Query().Get("dni"))
	if err != nil {
		h.logFailure(ctx, "search certificates", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, searchResponse{Certificates: certs})
}

// HandleDownload streams a stored PDF as an attachment. Names that are not a
// single valid archive entry are rejected before the archive is touched.
func (h *Handler) HandleDownload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	name, err := url.PathUnescape(chi.URLParam(r, "*"))
	if err == nil {
		err = archive.ValidateName(name)
	}
	if err != nil {
		h.logger.InfoContext(ctx, "rejected certificate download",
			"file", name,
			"request_id", requestcontext.RequestID(ctx),
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid file name"))
		return
	}

	rc, size, err := h.certs.OpenFile(ctx, name)
	if err != nil {
		h.logFailure(ctx, "open certificate file", err)
		httputil.WriteError(w, err)
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", models.ContentTypePDF)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": name}))
	w.Header().Set("Content-Length", strconv.FormatInt(size, 10))
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, rc); err != nil {
		h.logger.WarnContext(ctx, "certificate download interrupted",
			"error", err,
			"file", name,
			"request_id", requestcontext.RequestID(ctx),
		)
	}
}

// readCertificateRequest reads the certificate fields and optional PDF from a
// multipart form, or the fields alone from a JSON body. cleanup releases any
// spooled upload and must be called once the request has been served.
func (h *Handler) readCertificateRequest(w http.ResponseWriter, r *http.Request) (*models.CertificateInput, *models.Upload, func(), bool) {
	ctx := r.Context()
	noop := func() {}

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		in, ok := httputil.DecodeAndPrepare[models.CertificateInput](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
		return in, nil, noop, ok
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes+formOverhead)
	if err := r.ParseMultipartForm(formOverhead); err != nil {
		h.logger.WarnContext(ctx, "invalid multipart form",
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			httputil.WriteError(w, dErrors.New(dErrors.CodePayloadTooLarge, "request body too large"))
		} else {
			httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid multipart form"))
		}
		return nil, nil, noop, false
	}
	cleanup := func() {
		if err := r.MultipartForm.RemoveAll(); err != nil {
			h.logger.WarnContext(ctx, "failed to remove spooled upload",
				"error", err,
				"request_id", requestcontext.RequestID(ctx),
			)
		}
	}

	in := &models.CertificateInput{
		DNI:        r.FormValue("dni"),
		FullName:   r.FormValue("fullName"),
		Course:     r.FormValue("course"),
		Company:    r.FormValue("company"),
		IssueDate:  r.FormValue("issueDate"),
		ExpiryDate: r.FormValue("expiryDate"),
	}

	file, header, err := r.FormFile(FileField)
	switch {
	case errors.Is(err, http.ErrMissingFile):
		return in, nil, cleanup, true
	case err != nil:
		cleanup()
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid file upload"))
		return nil, nil, noop, false
	}

	upload := &models.Upload{
		FileName:    header.Filename,
		ContentType: strings.TrimSpace(header.Header.Get("Content-Type")),
		Size:        header.Size,
		Content:     file,
	}
	return in, upload, func() {
		_ = file.Close()
		cleanup()
	}, true
}

// certificateID parses the {id} path parameter. Malformed ids cannot name a
// certificate and are reported as not found.
func (h *Handler) certificateID(w http.ResponseWriter, r *http.Request) (id.CertificateID, bool) {
	certID, err := id.ParseCertificateID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, "certificate not found"))
		return id.CertificateID{}, false
	}
	return certID, true
}

func (h *Handler) logFailure(ctx context.Context, op string, err error) {
	if dErrors.CodeOf(err) != dErrors.CodeInternal {
		return
	}
	h.logger.ErrorContext(ctx, op+" failed",
		"error", err,
		"request_id", requestcontext.RequestID(ctx),
	)
}
