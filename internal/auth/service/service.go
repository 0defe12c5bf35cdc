package service

import (
	"context"
	"errors"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"

	"certverify/internal/auth/device"
	"certverify/internal/auth/models"
	"certverify/internal/auth/password"
	jwttoken "certverify/internal/jwt_token"
	"certverify/internal/platform/metrics"
	id "certverify/pkg/domain"
	dErrors "certverify/pkg/domain-errors"
	"certverify/pkg/platform/sentinel"
	"certverify/pkg/requestcontext"
)

// DefaultTokenTTL is the lifetime of a session token.
const DefaultTokenTTL = 24 * time.Hour

const invalidCredentialsMessage = "invalid email/username or password"

type UserStore interface {
	Save(ctx context.Context, user *models.User) error
	FindByID(ctx context.Context, userID id.UserID) (*models.User, error)
	FindByIdentifier(ctx context.Context, identifier string) (*models.User, error)
}

// RevocationList blacklists token IDs until the token would have expired anyway.
type RevocationList interface {
	RevokeToken(ctx context.Context, jti string, ttl time.Duration) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

type TokenIssuer interface {
	GenerateAccessToken(userID id.UserID, identifier string, role string, expiresIn time.Duration) (string, *jwttoken.Claims, error)
	ValidateToken(tokenString string) (*jwttoken.Claims, error)
}

// Service authenticates administrators and verifies their session tokens.
type Service struct {
	users       UserStore
	tokens      TokenIssuer
	revocations RevocationList
	logger      *slog.Logger
	metrics     *metrics.Metrics
	tokenTTL    time.Duration
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithRevocationList enables server-side logout. Without it Logout is a no-op.
func WithRevocationList(trl RevocationList) Option {
	return func(s *Service) {
		s.revocations = trl
	}
}

func WithTokenTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.tokenTTL = ttl
		}
	}
}

func New(users UserStore, tokens TokenIssuer, opts ...Option) (*Service, error) {
	if users == nil {
		return nil, errors.New("users store is required")
	}
	if tokens == nil {
		return nil, errors.New("token issuer is required")
	}
	svc := &Service{
		users:    users,
		tokens:   tokens,
		tokenTTL: DefaultTokenTTL,
	}
	for _, opt := range opts {
		opt(svc)
	}
	if svc.logger == nil {
		svc.logger = slog.Default()
	}
	return svc, nil
}

// Authenticate checks identifier and password and issues a session token.
// Unknown identifiers and wrong passwords produce the same error after the
// same amount of bcrypt work.
func (s *Service) Authenticate(ctx context.Context, identifier, plainPassword string) (*models.LoginResult, error) {
	req := models.LoginRequest{Identifier: identifier, Password: plainPassword}
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	user, err := s.users.FindByIdentifier(ctx, req.Identifier)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			password.BurnCompare(req.Password)
			s.loginFailed(ctx, "unknown identifier")
			return nil, dErrors.New(dErrors.CodeInvalidCredentials, invalidCredentialsMessage)
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to look up user")
	}

	ok, err := password.Verify(req.Password, user.PasswordHash)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to verify password")
	}
	if !ok {
		s.loginFailed(ctx, "password mismatch")
		return nil, dErrors.New(dErrors.CodeInvalidCredentials, invalidCredentialsMessage)
	}

	token, claims, err := s.tokens.GenerateAccessToken(user.ID, req.Identifier, user.Role, s.tokenTTL)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to issue token")
	}

	if s.metrics != nil {
		s.metrics.IncrementLogin("success")
	}
	s.logger.InfoContext(ctx, "admin logged in",
		"user_id", user.ID.String(),
		"device", device.ParseUserAgent(requestcontext.UserAgent(ctx)),
		"client_ip", requestcontext.ClientIP(ctx),
		"request_id", requestcontext.RequestID(ctx),
	)

	return &models.LoginResult{
		Token:     token,
		ExpiresAt: claims.ExpiresAt.Time,
		User:      user.Public(),
	}, nil
}

// Verify validates a session token. Malformed, expired, tampered and revoked
// tokens are indistinguishable to the caller.
func (s *Service) Verify(ctx context.Context, token string) (*models.Claims, bool) {
	if token == "" {
		return nil, false
	}
	claims, err := s.tokens.ValidateToken(token)
	if err != nil {
		s.logger.DebugContext(ctx, "session token rejected",
			"reason", dErrors.MessageOf(err),
			"request_id", requestcontext.RequestID(ctx),
		)
		return nil, false
	}
	userID, err := id.ParseUserID(claims.UserID)
	if err != nil {
		return nil, false
	}

	if s.revocations != nil {
		revoked, err := s.revocations.IsRevoked(ctx, claims.ID)
		if err != nil {
			s.logger.ErrorContext(ctx, "failed to check token revocation",
				"error", err,
				"request_id", requestcontext.RequestID(ctx),
			)
			return nil, false
		}
		if revoked {
			s.logger.DebugContext(ctx, "session token rejected",
				"reason", "revoked",
				"request_id", requestcontext.RequestID(ctx),
			)
			return nil, false
		}
	}

	return &models.Claims{
		UserID:     userID,
		Identifier: claims.Identifier,
		Role:       claims.Role,
		TokenID:    claims.ID,
		ExpiresAt:  claims.ExpiresAt.Time,
	}, true
}

// Logout revokes the token until its own expiry when a revocation list is configured.
func (s *Service) Logout(ctx context.Context, claims *models.Claims) error {
	if claims == nil || s.revocations == nil {
		return nil
	}
	ttl := claims.ExpiresAt.Sub(requestcontext.Now(ctx))
	if ttl <= 0 {
		return nil
	}
	if err := s.revocations.RevokeToken(ctx, claims.TokenID, ttl); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to revoke token")
	}
	s.logger.InfoContext(ctx, "admin logged out",
		"user_id", claims.UserID.String(),
		"request_id", requestcontext.RequestID(ctx),
	)
	return nil
}

// CurrentUser returns the administrator behind a verified session.
func (s *Service) CurrentUser(ctx context.Context, userID id.UserID) (*models.User, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "user not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to look up user")
	}
	return user, nil
}

// CreateAdmin provisions an administrator. Used by the seed command and the
// development bootstrap, never by an HTTP route.
func (s *Service) CreateAdmin(ctx context.Context, email, username, plainPassword string) (*models.User, error) {
	email = strings.TrimSpace(email)
	username = strings.TrimSpace(username)
	if _, err := mail.ParseAddress(email); err != nil || !strings.Contains(email, "@") {
		return nil, dErrors.New(dErrors.CodeValidation, "a valid email is required")
	}
	if len(plainPassword) < password.MinLength {
		return nil, dErrors.New(dErrors.CodeValidation, "password must be at least 8 characters")
	}

	hash, err := password.Hash(plainPassword)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeInvalidInput) {
			return nil, dErrors.New(dErrors.CodeValidation, dErrors.MessageOf(err))
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to hash password")
	}

	user := &models.User{
		ID:           id.UserID(uuid.New()),
		Email:        email,
		Username:     username,
		PasswordHash: hash,
		Role:         models.RoleAdmin,
		CreatedAt:    requestcontext.Now(ctx).UTC(),
	}
	if err := s.users.Save(ctx, user); err != nil {
		if errors.Is(err, sentinel.ErrAlreadyUsed) {
			return nil, dErrors.New(dErrors.CodeDuplicate, "an administrator with this email or username already exists")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to save administrator")
	}
	return user, nil
}

func (s *Service) loginFailed(ctx context.Context, reason string) {
	if s.metrics != nil {
		s.metrics.IncrementLogin("failure")
	}
	s.logger.WarnContext(ctx, "login failed",
		"reason", reason,
		"client_ip", requestcontext.ClientIP(ctx),
		"request_id", requestcontext.RequestID(ctx),
	)
}
