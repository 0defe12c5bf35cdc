package main

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"certverify/internal/archive"
	authhandler "certverify/internal/auth/handler"
	authservice "certverify/internal/auth/service"
	certhandler "certverify/internal/certificate/handler"
	certmetrics "certverify/internal/certificate/metrics"
	certservice "certverify/internal/certificate/service"
	jwttoken "certverify/internal/jwt_token"
	"certverify/internal/platform/config"
	"certverify/internal/platform/metrics"
	platformmw "certverify/internal/platform/middleware"
	dErrors "certverify/pkg/domain-errors"
	"certverify/pkg/platform/httputil"
	authmw "certverify/pkg/platform/middleware/auth"
	"certverify/pkg/platform/middleware/metadata"
	"certverify/pkg/platform/middleware/requesttime"
	"certverify/pkg/platform/sentinel"
)

const healthTimeout = 2 * time.Second

// pinger reports whether the storage backends are reachable.
type pinger interface {
	Ping(ctx context.Context) error
}

// application is the fully wired HTTP surface.
type application struct {
	log      *slog.Logger
	metrics  *metrics.Metrics
	gatherer prometheus.Gatherer
	health   pinger

	auth        *authservice.Service
	authHandler *authhandler.Handler
	certHandler *certhandler.Handler
}

func newApplication(ctx context.Context, cfg config.Server, deps *dependencies, log *slog.Logger, reg *prometheus.Registry) (*application, error) {
	platformMetrics := metrics.New(reg)

	tokens := jwttoken.NewJWTService(cfg.Auth.JWTSecret, cfg.Auth.JWTIssuer)
	auth, err := authservice.New(deps.users, tokens,
		authservice.WithLogger(log),
		authservice.WithMetrics(platformMetrics),
		authservice.WithRevocationList(deps.revocations),
		authservice.WithTokenTTL(cfg.Auth.TokenTTL),
	)
	if err != nil {
		return nil, err
	}

	files, err := archive.New(cfg.CertificatesDir)
	if err != nil {
		return nil, err
	}
	certs, err := certservice.New(deps.certs, files,
		certservice.WithLogger(log),
		certservice.WithMetrics(certmetrics.New(reg)),
		certservice.WithMaxUploadBytes(cfg.MaxUploadBytes),
	)
	if err != nil {
		return nil, err
	}

	if deps.db == nil && cfg.Bootstrap.Enabled() {
		if err := bootstrapAdmin(ctx, auth, cfg.Bootstrap, log); err != nil {
			return nil, err
		}
	}

	return &application{
		log:      log,
		metrics:  platformMetrics,
		gatherer: prometheus.Gatherers{prometheus.DefaultGatherer, reg},
		health:   deps,
		auth:     auth,
		authHandler: authhandler.New(auth, log, authhandler.CookieConfig{
			Secure: cfg.Auth.CookieSecure,
			MaxAge: cfg.Auth.TokenTTL,
		}),
		certHandler: certhandler.New(certs, log, cfg.MaxUploadBytes),
	}, nil
}

// bootstrapAdmin seeds the in-memory user store with a development administrator.
func bootstrapAdmin(ctx context.Context, auth *authservice.Service, b config.BootstrapConfig, log *slog.Logger) error {
	username, _, _ := strings.Cut(b.AdminEmail, "@")
	user, err := auth.CreateAdmin(ctx, b.AdminEmail, username, b.AdminPassword)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeDuplicate) {
			return nil
		}
		return err
	}
	log.Info("bootstrap administrator created", "user_id", user.ID.String(), "email", user.Email)
	return nil
}

// Router builds the chi router. The session gate wraps every route so that
// admin prefixes are checked before routing.
func (a *application) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(platformmw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(metadata.ClientMetadata)
	r.Use(requesttime.Middleware)
	r.Use(platformmw.Logger(a.log, a.metrics))
	r.Use(chimw.Recoverer)
	r.Use(authmw.RequireSession(authservice.NewSessionVerifier(a.auth), a.log, a.metrics, authmw.DefaultRedirect, config.AdminPrefixes...))

	r.Get("/", a.handleIndex)
	r.Get("/health", a.handleHealth)
	r.Handle("/metrics", promhttp.HandlerFor(a.gatherer, promhttp.HandlerOpts{}))

	a.authHandler.Register(r)
	a.certHandler.Register(r)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, "route not found"))
	})
	return r
}

func (a *application) handleIndex(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]string{
		"service": "certverify",
		"status":  "ok",
		"search":  "/api/certificates/search?dni={dni}",
		"login":   "/api/auth/login",
	})
}

func (a *application) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()
	if err := a.health.Ping(ctx); err != nil {
		a.log.WarnContext(ctx, "health check failed", "error", err)
		httputil.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "unavailable",
			"error":  sentinel.ErrUnavailable.Error(),
		})
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
