package auth

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	id "certverify/pkg/domain"
	"certverify/pkg/requestcontext"
)

// CookieName carries the session token between browser and server.
const CookieName = "auth-token"

// DefaultRedirect is where rejected requests are sent.
const DefaultRedirect = "/"

// Session is what the gate needs to know about a verified token.
type Session struct {
	UserID     id.UserID
	Identifier string
}

// SessionVerifier validates a raw session token. Any failure is reported as
// ok=false; the reason stays with the verifier.
type SessionVerifier interface {
	VerifySession(ctx context.Context, token string) (*Session, bool)
}

// RejectionRecorder counts rejected requests. May be nil.
type RejectionRecorder interface {
	IncrementGateRejection()
}

// RequireSession gates every request whose path is one of prefixes or lies
// beneath one. Requests without a valid auth-token cookie are answered with
// 303 See Other to redirectTo and never reach next. Other paths pass untouched.
func RequireSession(verifier SessionVerifier, logger *slog.Logger, recorder RejectionRecorder, redirectTo string, prefixes ...string) func(http.Handler) http.Handler {
	if redirectTo == "" {
		redirectTo = DefaultRedirect
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !underPrefix(r.URL.Path, prefixes) {
				next.ServeHTTP(w, r)
				return
			}

			ctx := r.Context()
			reject := func(reason string) {
				logger.InfoContext(ctx, "admin gate rejected request",
					"reason", reason,
					"path", r.URL.Path,
					"request_id", requestcontext.RequestID(ctx),
				)
				if recorder != nil {
					recorder.IncrementGateRejection()
				}
				http.Redirect(w, r, redirectTo, http.StatusSeeOther)
			}

			cookie, err := r.Cookie(CookieName)
			if err != nil || cookie.Value == "" {
				reject("missing session cookie")
				return
			}

			session, ok := verifier.VerifySession(ctx, cookie.Value)
			if !ok || session == nil {
				reject("invalid session token")
				return
			}

			ctx = requestcontext.WithUserID(ctx, session.UserID)
			ctx = requestcontext.WithIdentifier(ctx, session.Identifier)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func underPrefix(path string, prefixes []string) bool {
	for _, p := range prefixes {
		p = strings.TrimSuffix(p, "/")
		if path == p || strings.HasPrefix(path, p+"/") {
			return true
		}
	}
	return false
}
