package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	DefaultAddr            = ":8080"
	DefaultIssuer          = "certverify"
	DefaultTokenTTL        = 24 * time.Hour
	DefaultCertificatesDir = "./data/certificates"
	DefaultMaxUploadBytes  = 10 << 20
)

// AdminPrefixes are the path prefixes guarded by the session gate.
var AdminPrefixes = []string{"/admin", "/api/admin"}

// Server captures HTTP server level configuration. It is built once in main
// and handed to every component that needs a setting.
type Server struct {
	Addr            string
	DatabaseURL     string
	CertificatesDir string
	MaxUploadBytes  int64
	LogLevel        string
	LogFormat       string

	Auth      AuthConfig
	Redis     RedisConfig
	Bootstrap BootstrapConfig
}

// AuthConfig holds token signing and cookie settings.
type AuthConfig struct {
	JWTSecret    string
	JWTIssuer    string
	TokenTTL     time.Duration
	CookieSecure bool
}

// RedisConfig configures the optional Redis connection backing token revocation.
// An empty URL means Redis is not used.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// BootstrapConfig seeds a development administrator when running without a database.
type BootstrapConfig struct {
	AdminEmail    string
	AdminPassword string
}

// Enabled reports whether both bootstrap credentials are set.
func (b BootstrapConfig) Enabled() bool {
	return b.AdminEmail != "" && b.AdminPassword != ""
}

// ErrMissingJWTSecret is returned when JWT_SECRET is unset. There is no fallback secret.
var ErrMissingJWTSecret = errors.New("JWT_SECRET must be set")

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() (Server, error) {
	return fromLookup(os.LookupEnv)
}

func fromLookup(lookup func(string) (string, bool)) (Server, error) {
	get := func(key, def string) string {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
		return def
	}

	var errs []error
	duration := func(key string, def time.Duration) time.Duration {
		raw := get(key, "")
		if raw == "" {
			return def
		}
		d, err := time.ParseDuration(raw)
		if err != nil || d <= 0 {
			errs = append(errs, fmt.Errorf("%s: invalid duration %q", key, raw))
			return def
		}
		return d
	}
	integer := func(key string, def int64) int64 {
		raw := get(key, "")
		if raw == "" {
			return def
		}
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || n <= 0 {
			errs = append(errs, fmt.Errorf("%s: invalid positive integer %q", key, raw))
			return def
		}
		return n
	}

	cfg := Server{
		Addr:            get("CERTVERIFY_ADDR", DefaultAddr),
		DatabaseURL:     get("DATABASE_URL", ""),
		CertificatesDir: get("CERTIFICATES_DIR", DefaultCertificatesDir),
		MaxUploadBytes:  integer("MAX_UPLOAD_BYTES", DefaultMaxUploadBytes),
		LogLevel:        get("LOG_LEVEL", "info"),
		LogFormat:       get("LOG_FORMAT", "json"),
		Auth: AuthConfig{
			JWTSecret:    get("JWT_SECRET", ""),
			JWTIssuer:    get("JWT_ISSUER", DefaultIssuer),
			TokenTTL:     duration("TOKEN_TTL", DefaultTokenTTL),
			CookieSecure: get("COOKIE_SECURE", "false") == "true",
		},
		Redis: RedisConfig{
			URL:          get("REDIS_URL", ""),
			PoolSize:     int(integer("REDIS_POOL_SIZE", 10)),
			MinIdleConns: int(integer("REDIS_MIN_IDLE_CONNS", 2)),
			DialTimeout:  duration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  duration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: duration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Bootstrap: BootstrapConfig{
			AdminEmail:    get("BOOTSTRAP_ADMIN_EMAIL", ""),
			AdminPassword: get("BOOTSTRAP_ADMIN_PASSWORD", ""),
		},
	}

	if cfg.Auth.JWTSecret == "" {
		errs = append(errs, ErrMissingJWTSecret)
	}
	if len(errs) > 0 {
		return Server{}, errors.Join(errs...)
	}
	return cfg, nil
}
