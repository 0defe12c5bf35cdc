package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"certverify/internal/auth/store/revocation"
	userstore "certverify/internal/auth/store/user"
	authservice "certverify/internal/auth/service"
	certservice "certverify/internal/certificate/service"
	certstore "certverify/internal/certificate/store"
	"certverify/internal/platform/config"
	"certverify/internal/platform/database"
	redisclient "certverify/internal/platform/redis"
)

// dependencies holds the storage backends chosen from configuration.
type dependencies struct {
	db    *sql.DB
	redis *redisclient.Client

	users       authservice.UserStore
	revocations authservice.RevocationList
	certs       certservice.Store
}

// openDependencies connects to PostgreSQL when DATABASE_URL is set and falls
// back to in-memory stores otherwise. Token revocation prefers Redis, then
// PostgreSQL, then memory.
func openDependencies(ctx context.Context, cfg config.Server, log *slog.Logger) (*dependencies, error) {
	deps := &dependencies{}

	if cfg.DatabaseURL != "" {
		db, err := database.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		applied, err := database.Migrate(ctx, db)
		if err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("migrate database: %w", err)
		}
		if len(applied) > 0 {
			log.Info("applied migrations", "migrations", applied)
		}
		deps.db = db
		deps.users = userstore.NewPostgres(db)
		deps.certs = certstore.NewPostgres(db)
	} else {
		log.Warn("DATABASE_URL not set; using in-memory stores, data is lost on restart")
		deps.users = userstore.New()
		deps.certs = certstore.NewInMemory()
	}

	client, err := redisclient.New(ctx, cfg.Redis)
	if err != nil {
		deps.Close(log)
		return nil, err
	}
	switch {
	case client != nil:
		deps.redis = client
		deps.revocations = revocation.NewRedisTRL(client.Client)
	case deps.db != nil:
		deps.revocations = revocation.NewPostgresTRL(deps.db)
	default:
		deps.revocations = revocation.NewInMemoryTRL()
	}
	return deps, nil
}

// Backend names the record storage in use.
func (d *dependencies) Backend() string {
	if d.db != nil {
		return "postgres"
	}
	return "memory"
}

// Ping checks every networked backend.
func (d *dependencies) Ping(ctx context.Context) error {
	if d.db != nil {
		if err := d.db.PingContext(ctx); err != nil {
			return fmt.Errorf("database: %w", err)
		}
	}
	if d.redis != nil {
		if err := d.redis.Health(ctx); err != nil {
			return fmt.Errorf("redis: %w", err)
		}
	}
	return nil
}

func (d *dependencies) Close(log *slog.Logger) {
	if d.redis != nil {
		if err := d.redis.Close(); err != nil {
			log.Warn("redis close error", "error", err)
		}
	}
	if d.db != nil {
		if err := d.db.Close(); err != nil {
			log.Warn("database close error", "error", err)
		}
	}
}
