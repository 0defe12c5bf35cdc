package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"certverify/internal/auth/models"
	id "certverify/pkg/domain"
	dErrors "certverify/pkg/domain-errors"
	"certverify/pkg/platform/httputil"
	authmw "certverify/pkg/platform/middleware/auth"
	"certverify/pkg/requestcontext"
)

// Service defines the authentication operations used by the HTTP layer.
type Service interface {
	Authenticate(ctx context.Context, identifier, password string) (*models.LoginResult, error)
	Verify(ctx context.Context, token string) (*models.Claims, bool)
	Logout(ctx context.Context, claims *models.Claims) error
	CurrentUser(ctx context.Context, userID id.UserID) (*models.User, error)
}

// CookieConfig controls the session cookie attributes.
type CookieConfig struct {
	Secure bool
	MaxAge time.Duration
}

// Handler serves login, logout and the admin landing endpoint.
type Handler struct {
	auth   Service
	logger *slog.Logger
	cookie CookieConfig
}

func New(auth Service, logger *slog.Logger, cookie CookieConfig) *Handler {
	if cookie.MaxAge <= 0 {
		cookie.MaxAge = 24 * time.Hour
	}
	return &Handler{
		auth:   auth,
		logger: logger,
		cookie: cookie,
	}
}

// Register registers the auth routes. GET /admin must sit behind the session gate.
func (h *Handler) Register(r chi.Router) {
	r.Post("/api/auth/login", h.HandleLogin)
	r.Post("/api/auth/logout", h.HandleLogout)
	r.Get("/admin", h.HandleAdminLanding)
}

type loginResponse struct {
	Message   string            `json:"message"`
	Token     string            `json:"token"`
	ExpiresAt time.Time         `json:"expiresAt"`
	User      models.PublicUser `json:"user"`
}

func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[models.LoginRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	result, err := h.auth.Authenticate(ctx, req.Identifier, req.Password)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeInternal) {
			h.logger.ErrorContext(ctx, "login failed",
				"error", err,
				"request_id", requestID,
			)
		}
		httputil.WriteError(w, err)
		return
	}

	http.SetCookie(w, h.sessionCookie(result.Token))
	httputil.WriteJSON(w, http.StatusOK, loginResponse{
		Message:   "Login successful",
		Token:     result.Token,
		ExpiresAt: result.ExpiresAt,
		User:      result.User,
	})
}

// HandleLogout clears the session cookie and, when possible, revokes the token.
func (h *Handler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	http.SetCookie(w, h.expiredCookie())

	if cookie, err := r.Cookie(authmw.CookieName); err == nil && cookie.Value != "" {
		if claims, ok := h.auth.Verify(ctx, cookie.Value); ok {
			if err := h.auth.Logout(ctx, claims); err != nil {
				h.logger.ErrorContext(ctx, "failed to revoke session on logout",
					"error", err,
					"request_id", requestID,
				)
				httputil.WriteError(w, err)
				return
			}
		}
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]string{"message": "Logged out"})
}

// HandleAdminLanding returns the authenticated administrator.
func (h *Handler) HandleAdminLanding(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := requestcontext.UserID(ctx)
	if userID.IsNil() {
		// Only reachable when the gate is not mounted.
		h.logger.ErrorContext(ctx, "admin landing reached without session",
			"request_id", requestcontext.RequestID(ctx),
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}

	user, err := h.auth.CurrentUser(ctx, userID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"message": "Welcome to the certificate administration panel",
		"user":    user.Public(),
	})
}

func (h *Handler) sessionCookie(token string) *http.Cookie {
	return &http.Cookie{
		Name:     authmw.CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(h.cookie.MaxAge.Seconds()),
		HttpOnly: true,
		Secure:   h.cookie.Secure,
		SameSite: http.SameSiteLaxMode,
	}
}

func (h *Handler) expiredCookie() *http.Cookie {
	return &http.Cookie{
		Name:     authmw.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		Secure:   h.cookie.Secure,
		SameSite: http.SameSiteLaxMode,
	}
}
