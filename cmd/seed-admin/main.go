// Command seed-admin provisions an administrator account in PostgreSQL.
//
//	DATABASE_URL=postgres://... JWT_SECRET=... seed-admin -email admin@example.com -password '...'
//
// Flags default to BOOTSTRAP_ADMIN_EMAIL and BOOTSTRAP_ADMIN_PASSWORD from the environment.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	authservice "certverify/internal/auth/service"
	userstore "certverify/internal/auth/store/user"
	jwttoken "certverify/internal/jwt_token"
	"certverify/internal/platform/config"
	"certverify/internal/platform/database"
	"certverify/internal/platform/logger"
	dErrors "certverify/pkg/domain-errors"
)

func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	log := logger.New(cfg.LogLevel, cfg.LogFormat)

	email := flag.String("email", cfg.Bootstrap.AdminEmail, "administrator email")
	username := flag.String("username", "", "administrator username (defaults to the email local part)")
	password := flag.String("password", cfg.Bootstrap.AdminPassword, "administrator password")
	flag.Parse()

	if *username == "" {
		*username, _, _ = strings.Cut(*email, "@")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := seed(ctx, cfg, log, *email, *username, *password); err != nil {
		log.Error("seed failed", "error", err)
		os.Exit(1)
	}
}

func seed(ctx context.Context, cfg config.Server, log *slog.Logger, email, username, password string) error {
	if cfg.DatabaseURL == "" {
		return errors.New("DATABASE_URL must be set")
	}
	db, err := database.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	if _, err := database.Migrate(ctx, db); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}

	auth, err := authservice.New(userstore.NewPostgres(db), jwttoken.NewJWTService(cfg.Auth.JWTSecret, cfg.Auth.JWTIssuer),
		authservice.WithLogger(log),
	)
	if err != nil {
		return err
	}

	user, err := auth.CreateAdmin(ctx, email, username, password)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeDuplicate) {
			log.Info("administrator already exists", "email", email)
			return nil
		}
		return err
	}
	log.Info("administrator created", "user_id", user.ID.String(), "email", user.Email, "username", user.Username)
	return nil
}
