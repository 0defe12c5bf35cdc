package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lookupFrom(env map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}
}

func TestFromLookup(t *testing.T) {
	t.Run("missing JWT secret is fatal", func(t *testing.T) {
		_, err := fromLookup(lookupFrom(map[string]string{}))
		require.ErrorIs(t, err, ErrMissingJWTSecret)
	})

	t.Run("blank JWT secret is treated as missing", func(t *testing.T) {
		_, err := fromLookup(lookupFrom(map[string]string{"JWT_SECRET": "   "}))
		require.ErrorIs(t, err, ErrMissingJWTSecret)
	})

	t.Run("defaults apply when only the secret is set", func(t *testing.T) {
		cfg, err := fromLookup(lookupFrom(map[string]string{"JWT_SECRET": "s3cret"}))
		require.NoError(t, err)

		assert.Equal(t, DefaultAddr, cfg.Addr)
		assert.Equal(t, DefaultCertificatesDir, cfg.CertificatesDir)
		assert.Equal(t, int64(DefaultMaxUploadBytes), cfg.MaxUploadBytes)
		assert.Equal(t, DefaultTokenTTL, cfg.Auth.TokenTTL)
		assert.Equal(t, DefaultIssuer, cfg.Auth.JWTIssuer)
		assert.False(t, cfg.Auth.CookieSecure)
		assert.Empty(t, cfg.DatabaseURL)
		assert.Empty(t, cfg.Redis.URL)
		assert.False(t, cfg.Bootstrap.Enabled())
	})

	t.Run("overrides are parsed", func(t *testing.T) {
		cfg, err := fromLookup(lookupFrom(map[string]string{
			"JWT_SECRET":               "s3cret",
			"CERTVERIFY_ADDR":          ":9090",
			"TOKEN_TTL":                "2h",
			"MAX_UPLOAD_BYTES":         "1024",
			"COOKIE_SECURE":            "true",
			"REDIS_URL":                "redis://localhost:6379/0",
			"REDIS_POOL_SIZE":          "20",
			"BOOTSTRAP_ADMIN_EMAIL":    "admin@example.com",
			"BOOTSTRAP_ADMIN_PASSWORD": "changeme",
		}))
		require.NoError(t, err)

		assert.Equal(t, ":9090", cfg.Addr)
		assert.Equal(t, 2*time.Hour, cfg.Auth.TokenTTL)
		assert.Equal(t, int64(1024), cfg.MaxUploadBytes)
		assert.True(t, cfg.Auth.CookieSecure)
		assert.Equal(t, "redis://localhost:6379/0", cfg.Redis.URL)
		assert.Equal(t, 20, cfg.Redis.PoolSize)
		assert.True(t, cfg.Bootstrap.Enabled())
	})

	t.Run("invalid values are reported together", func(t *testing.T) {
		_, err := fromLookup(lookupFrom(map[string]string{
			"TOKEN_TTL":        "forever",
			"MAX_UPLOAD_BYTES": "-1",
		}))
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrMissingJWTSecret)
		assert.Contains(t, err.Error(), "TOKEN_TTL")
		assert.Contains(t, err.Error(), "MAX_UPLOAD_BYTES")
	})
}
